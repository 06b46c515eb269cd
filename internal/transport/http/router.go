// Package http собирает REST-роутер auth-сервиса на chi.
package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/pribylovaa/storefront-auth/internal/service"
	"github.com/pribylovaa/storefront-auth/internal/transport/http/handlers"
	"github.com/pribylovaa/storefront-auth/internal/transport/http/middleware"
)

// Options: параметры сборки HTTP-роутера.
type Options struct {
	Logger  *slog.Logger
	Timeout time.Duration

	// Metrics получает длительности запросов; nil отключает сбор.
	Metrics middleware.Observer
	// MetricsHandler, если задан, публикуется на /metrics.
	MetricsHandler http.Handler
	// Ready проверяет зависимости для /healthz; nil: всегда готов.
	Ready func(ctx context.Context) error
}

// NewRouter собирает http.Handler с middleware, служебными и API-маршрутами.
func NewRouter(svc *service.Service, opts Options) http.Handler {
	root := chi.NewRouter()

	root.Use(
		chimw.RealIP,
		middleware.Recover(),
		middleware.RequestID(),
		middleware.Logging(opts.Logger),
		middleware.Metrics(opts.Metrics),
		middleware.Timeout(opts.Timeout),
	)

	root.Get("/livez", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	root.Get("/healthz", readiness(opts.Ready))
	if opts.MetricsHandler != nil {
		root.Method(http.MethodGet, "/metrics", opts.MetricsHandler)
	}

	h := handlers.New(svc)
	root.Route("/api", func(r chi.Router) {
		r.Use(middleware.AuthBearer())
		registerRoutes(r, h)
	})

	return root
}

// registerRoutes: единая точка регистрации REST-эндпойнтов.
func registerRoutes(r chi.Router, h *handlers.Handlers) {
	// users
	r.Post("/users", h.RegisterUser)
	r.Post("/users/guest", h.CreateGuest)
	r.Post("/users/login", h.Login)
	r.Post("/users/logout", h.Logout)
	r.Get("/users/me", h.Me)

	// auth
	r.Post("/auth/refresh", h.Refresh)
	r.Post("/auth/refresh/expired", h.RefreshExpired)
	r.Post("/auth/validate", h.Validate)
}

func readiness(ready func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ready != nil {
			if err := ready(r.Context()); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
	}
}
