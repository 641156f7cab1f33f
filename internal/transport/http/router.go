// Package httptransport assembles the HTTP surface: middleware, health,
// metrics, and the pipeline handlers.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"loanflow/pkg/platform/httputil"
	"loanflow/pkg/platform/middleware/admin"
	"loanflow/pkg/platform/middleware/ratelimit"
	request "loanflow/pkg/platform/middleware/request"
	"loanflow/pkg/platform/middleware/requesttime"
)

// HealthCheck probes one dependency.
type HealthCheck func(ctx context.Context) error

// Routes mounts a feature's endpoints.
type Routes interface {
	Register(r chi.Router)
	RegisterAdmin(r chi.Router)
}

// Config controls router assembly.
type Config struct {
	Logger         *slog.Logger
	Gatherer       prometheus.Gatherer
	AdminToken     string
	RequestTimeout time.Duration
	HealthChecks   map[string]HealthCheck
	// RateLimit caps public requests per client per minute; 0 disables it.
	RateLimit int
}

const healthCheckTimeout = 2 * time.Second

// NewRouter wires middleware, infrastructure endpoints and routes.
func NewRouter(cfg Config, routes ...Routes) chi.Router {
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(request.RequestID)
	r.Use(middleware.RealIP)
	r.Use(request.Logger(cfg.Logger))
	r.Use(middleware.Recoverer)
	r.Use(requesttime.Middleware)

	r.Get("/healthz", healthHandler(cfg.HealthChecks))
	if cfg.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Group(func(r chi.Router) {
		r.Use(ratelimit.Middleware(ratelimit.New(cfg.RateLimit, time.Minute), cfg.Logger))
		r.Use(middleware.Timeout(cfg.RequestTimeout))
		for _, rt := range routes {
			rt.Register(r)
		}
	})
	r.Group(func(r chi.Router) {
		r.Use(admin.RequireAdminToken(cfg.AdminToken, cfg.Logger))
		for _, rt := range routes {
			rt.RegisterAdmin(r)
		}
	})
	return r
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func healthHandler(checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()

		resp := healthResponse{Status: "ok", Checks: make(map[string]string, len(checks))}
		status := http.StatusOK
		for name, check := range checks {
			if err := check(ctx); err != nil {
				resp.Checks[name] = err.Error()
				resp.Status = "degraded"
				status = http.StatusServiceUnavailable
				continue
			}
			resp.Checks[name] = "ok"
		}
		httputil.WriteJSON(w, status, resp)
	}
}
