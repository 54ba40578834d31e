// Package app assembles the HTTP router and the background maintenance
// loops from the adapters and services.
package app

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fairyhunter13/docqueue/internal/adapter/httpserver"
	"github.com/fairyhunter13/docqueue/internal/adapter/observability"
	"github.com/fairyhunter13/docqueue/internal/config"
	"github.com/fairyhunter13/docqueue/internal/domain"
)

// NewRouter mounts the full API surface. All task and queue routes sit
// behind bearer authentication; permission checks for the admin routes run
// as route middleware so a denied request never reaches the handler.
func NewRouter(cfg config.Config, srv *httpserver.Server, verifier domain.TokenVerifier) http.Handler {
	r := chi.NewRouter()
	r.Use(httpserver.Recoverer())
	r.Use(httpserver.RequestID())
	r.Use(httpserver.AccessLog())
	r.Use(httpserver.TimeoutMiddleware(cfg.HTTPWriteTimeout))
	r.Use(httpserver.SecurityHeaders)
	r.Use(observability.HTTPMetricsMiddleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   splitOrigins(cfg.CORSAllowOrigins),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Request-Id"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/api/v1/health", srv.Health)
	r.Get("/api/v1/engines", srv.ListEngines)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(httpserver.RequireAuth(verifier))

		r.Group(func(r chi.Router) {
			if cfg.RateLimitPerMin > 0 {
				r.Use(httprate.LimitByIP(cfg.RateLimitPerMin, time.Minute))
			}
			r.With(httpserver.RequirePermission(domain.PermTaskSubmit)).
				Post("/tasks/submit", srv.SubmitTask)
			r.Delete("/tasks/{id}", srv.CancelTask)
		})

		r.Get("/tasks/{id}", srv.GetTask)
		r.With(httpserver.RequirePermission(domain.PermQueueView)).
			Get("/queue/stats", srv.QueueStats)
		r.Get("/queue/tasks", srv.ListTasks)

		r.Route("/admin", func(r chi.Router) {
			r.Use(httpserver.RequirePermission(domain.PermQueueManage))
			r.Post("/cleanup", srv.AdminCleanup)
			r.Post("/reset-stale", srv.AdminResetStale)
		})
	})

	return r
}

func splitOrigins(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		out = []string{"*"}
	}
	return out
}
