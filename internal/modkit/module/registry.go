package module

import (
	"sort"
	"sync"
)

// Registry maps module names to the port sets they exported
type Registry struct {
	mu    sync.RWMutex
	ports map[string]any
}

// NewRegistry returns an empty registry
func NewRegistry() *Registry { return &Registry{ports: map[string]any{}} }

// Register stores ports under name, replacing any previous set
func (r *Registry) Register(name string, ports any) {
	r.mu.Lock()
	r.ports[name] = ports
	r.mu.Unlock()
}

// Names returns the registered module names, sorted
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.ports))
	for n := range r.ports {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Lookup returns name's port set as T
func Lookup[T any](r *Registry, name string) (T, bool) {
	r.mu.RLock()
	v, ok := r.ports[name]
	r.mu.RUnlock()
	out, ok2 := v.(T)
	return out, ok && ok2
}

var std = NewRegistry()

// Register stores ports in the process registry
func Register(name string, ports any) { std.Register(name, ports) }

// PortsAs looks name up in the process registry
func PortsAs[T any](name string) (T, bool) { return Lookup[T](std, name) }

// Names lists the process registry
func Names() []string { return std.Names() }

// Reset clears the process registry for tests
func Reset() {
	std.mu.Lock()
	std.ports = map[string]any{}
	std.mu.Unlock()
}
