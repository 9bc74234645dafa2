// Package module wires the status endpoints into a small http server
package module

import (
	"context"
	"time"

	"feedmirror/internal/modkit"
	phttp "feedmirror/internal/platform/net/http"
	"feedmirror/internal/platform/net/middleware"
	"feedmirror/internal/services/mirror/domain"
	statushttp "feedmirror/internal/services/status/http"

	"github.com/prometheus/client_golang/prometheus"
)

// Sources are the ports the status module reads, handed in with modkit.WithPorts
type Sources struct {
	Progress domain.ProgressSource
	Metrics  prometheus.Gatherer
}

// Module serves the status endpoints
type Module struct {
	deps      modkit.Deps
	built     modkit.Built
	src       Sources
	startedAt time.Time
}

// Enabled reports whether CORE_STATUS_ADDR is set
func Enabled(deps modkit.Deps) bool {
	return deps.Cfg.Prefix("CORE_STATUS_").MayString("ADDR", "") != ""
}

// New builds the module. Sources arrive through modkit.WithPorts
func New(deps modkit.Deps, opts ...modkit.Option) *Module {
	base := []modkit.Option{
		modkit.WithName("status"),
		modkit.WithMiddlewares(
			middleware.RequestID(),
			middleware.RecoverJSON,
			middleware.AccessLogZerolog(middleware.AccessLogOptions{
				Slow:  time.Second,
				Quiet: []string{"/healthz", "/metrics"},
			}),
		),
	}
	b := modkit.Build(append(base, opts...)...)
	src, _ := b.Ports.(Sources)
	return &Module{deps: deps, built: b, src: src, startedAt: time.Now()}
}

// MountRoutes mounts the status endpoints plus any WithRegister extras
func (m *Module) MountRoutes(r phttp.Router) {
	m.built.Mount(r, func(sub phttp.Router) {
		statushttp.Register(sub, statushttp.Deps{
			Service:   "feedmirror",
			StartedAt: m.startedAt,
			Progress:  m.src.Progress,
			Metrics:   m.src.Metrics,
		})
	})
}

// Serve listens on CORE_STATUS_ADDR until ctx is done
func (m *Module) Serve(ctx context.Context) error {
	srv := phttp.NewServer(m.deps.Cfg.Prefix("CORE_STATUS_"))
	m.MountRoutes(srv.Router())
	return srv.Run(ctx)
}

// Name implements the modkit.Module interface
func (m *Module) Name() string { return m.built.Name }

// Ports implements the modkit.Module interface; status exports none
func (m *Module) Ports() any { return nil }
