// Package http provides the status endpoints served while a run is in flight
package http

import (
	"net/http"
	"time"

	"feedmirror/internal/core/version"
	phttp "feedmirror/internal/platform/net/http"
	"feedmirror/internal/services/mirror/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Deps are the handler dependencies
type Deps struct {
	Service   string
	StartedAt time.Time
	Progress  domain.ProgressSource
	Metrics   prometheus.Gatherer

	// Now defaults to time.Now
	Now func() time.Time
}

type handlers struct {
	deps Deps
}

// Register mounts the status routes
func Register(r phttp.Router, d Deps) {
	if d.Now == nil {
		d.Now = time.Now
	}
	h := &handlers{deps: d}

	phttp.GetJSON(r, "/healthz", h.health)
	phttp.GetJSON(r, "/progress", h.progress)
	if d.Metrics != nil {
		r.Handle("/metrics", promhttp.HandlerFor(d.Metrics, promhttp.HandlerOpts{}))
	}
}

// HealthResponse is the liveness payload
type HealthResponse struct {
	OK      bool              `json:"ok"`
	Service string            `json:"service"`
	Started string            `json:"started"`
	Uptime  int64             `json:"uptime"`
	Build   version.BuildInfo `json:"build"`
}

// ProgressResponse is the fetch progress of the current run
type ProgressResponse struct {
	Running   bool                    `json:"running"`
	Processed int64                   `json:"processed"`
	Total     int64                   `json:"total"`
	Percent   float64                 `json:"percent"`
	Workers   []domain.WorkerProgress `json:"workers"`
}

func (h *handlers) health(_ *http.Request) (any, error) {
	return HealthResponse{
		OK:      true,
		Service: h.deps.Service,
		Started: h.deps.StartedAt.UTC().Format(time.RFC3339),
		Uptime:  int64(h.deps.Now().Sub(h.deps.StartedAt) / time.Second),
		Build:   version.Info(),
	}, nil
}

func (h *handlers) progress(_ *http.Request) (any, error) {
	out := ProgressResponse{Workers: []domain.WorkerProgress{}}
	if h.deps.Progress == nil {
		return out, nil
	}
	snap := h.deps.Progress.Snapshot()
	if snap == nil {
		return out, nil
	}
	out.Running = true
	out.Workers = snap
	for _, w := range snap {
		out.Processed += w.Processed
		out.Total += w.Total
	}
	if out.Total > 0 {
		out.Percent = float64(out.Processed) * 100 / float64(out.Total)
	}
	return out, nil
}
