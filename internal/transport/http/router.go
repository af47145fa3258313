// Package httptransport assembles the full HTTP surface: registration routes,
// health, and metrics.
package httptransport

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"registrar/pkg/platform/httputil"
)

// HealthChecker reports whether a backing dependency is reachable.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Registrar is anything that can mount its routes on the router.
type Registrar interface {
	Register(r chi.Router)
}

// NewRouter wires all endpoints. Health checks run against every non-nil
// dependency passed in.
func NewRouter(registration Registrar, deps map[string]HealthChecker) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", handleHealth(deps))
	r.Handle("/metrics", promhttp.Handler())

	registration.Register(r)
	return r
}

func handleHealth(deps map[string]HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := http.StatusOK
		checks := make(map[string]string, len(deps))
		for name, dep := range deps {
			if dep == nil {
				continue
			}
			if err := dep.Health(r.Context()); err != nil {
				checks[name] = err.Error()
				status = http.StatusServiceUnavailable
				continue
			}
			checks[name] = "ok"
		}
		httputil.WriteJSON(w, status, map[string]any{
			"status": http.StatusText(status),
			"checks": checks,
		})
	}
}
