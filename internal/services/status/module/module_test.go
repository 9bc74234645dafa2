package module

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"feedmirror/internal/modkit"
	"feedmirror/internal/platform/config"
	phttp "feedmirror/internal/platform/net/http"
	"feedmirror/internal/services/mirror/domain"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
)

type board struct{}

func (board) Snapshot() []domain.WorkerProgress {
	return []domain.WorkerProgress{{Worker: 0, Processed: 1, Total: 2}}
}

func TestEnabled(t *testing.T) {
	deps := modkit.Deps{Cfg: config.New()}
	if Enabled(deps) {
		t.Fatalf("should be disabled without CORE_STATUS_ADDR")
	}
	t.Setenv("CORE_STATUS_ADDR", ":9108")
	if !Enabled(deps) {
		t.Fatalf("should be enabled")
	}
}

func TestMountRoutes_WithPrefixAndExtraRegister(t *testing.T) {
	m := New(modkit.Deps{Cfg: config.New()},
		modkit.WithPrefix("/status"),
		modkit.WithPorts(Sources{Progress: board{}, Metrics: prometheus.NewRegistry()}),
		modkit.WithRegister(func(r phttp.Router) {
			r.Get("/extra", func(w http.ResponseWriter, _ *http.Request) { _, _ = io.WriteString(w, "x") })
		}),
	)
	if m.Name() != "status" || m.Ports() != nil {
		t.Fatalf("unexpected identity %q %v", m.Name(), m.Ports())
	}
	r := phttp.AdaptChi(chi.NewRouter())
	m.MountRoutes(r)

	for path, want := range map[string]string{
		"/status/healthz":  `"ok":true`,
		"/status/progress": `"percent":50`,
		"/status/extra":    "x",
	} {
		rec := httptest.NewRecorder()
		r.Mux().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), want) {
			t.Fatalf("%s: %d %q", path, rec.Code, rec.Body.String())
		}
		if path != "/status/extra" && !strings.Contains(rec.Body.String(), `"request_id"`) {
			t.Fatalf("%s: request id missing from envelope", path)
		}
	}
}

func TestServe_StopsWithContext(t *testing.T) {
	t.Setenv("CORE_STATUS_ADDR", "127.0.0.1:0")
	m := New(modkit.Deps{Cfg: config.New()}, modkit.WithPorts(Sources{Progress: board{}}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Serve(ctx) }()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Serve: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("Serve did not stop")
	}
}
