package modkit

import (
	"net/http"

	phttp "feedmirror/internal/platform/net/http"
)

// Option sets one field of a module's Built
type Option func(*Built)

// Built is what a module constructor reads back from its options
type Built struct {
	Name     string
	Prefix   string
	Mw       []func(http.Handler) http.Handler
	Ports    any
	Register func(phttp.Router)
}

// WithName names the module in logs and the registry
func WithName(name string) Option { return func(b *Built) { b.Name = name } }

// WithPrefix mounts the module under prefix; "" and "/" mean the root
func WithPrefix(prefix string) Option { return func(b *Built) { b.Prefix = prefix } }

// WithMiddlewares appends per module middleware, outermost first
func WithMiddlewares(mw ...func(http.Handler) http.Handler) Option {
	return func(b *Built) { b.Mw = append(b.Mw, mw...) }
}

// WithPorts hands the module the ports of another module. The importer owns T
func WithPorts[T any](p T) Option { return func(b *Built) { b.Ports = p } }

// WithRegister adds extra routes after the module's own
func WithRegister(fn func(phttp.Router)) Option {
	return func(b *Built) {
		prev := b.Register
		b.Register = func(r phttp.Router) {
			if prev != nil {
				prev(r)
			}
			fn(r)
		}
	}
}

// Build applies opts in order. The result owns its middleware slice
func Build(opts ...Option) Built {
	var b Built
	for _, o := range opts {
		o(&b)
	}
	b.Mw = append([]func(http.Handler) http.Handler(nil), b.Mw...)
	if b.Register == nil {
		b.Register = func(phttp.Router) {}
	}
	return b
}

// Mount attaches the middleware and routes under the prefix
func (b Built) Mount(r phttp.Router, routes func(phttp.Router)) {
	mount := func(sub phttp.Router) {
		sub.Use(b.Mw...)
		routes(sub)
		b.Register(sub)
	}
	if b.Prefix == "" || b.Prefix == "/" {
		r.Group(mount)
		return
	}
	r.Route(b.Prefix, mount)
}
