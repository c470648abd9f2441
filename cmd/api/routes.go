package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	commonMiddleware "github.com/fleetdesk/dispatch/common/middleware"
)

func (app *Config) routes() http.Handler {
	mux := chi.NewRouter()

	// Request ID must be first
	mux.Use(commonMiddleware.RequestID)
	mux.Use(commonMiddleware.Logger)
	mux.Use(commonMiddleware.Recovery)
	mux.Use(commonMiddleware.Metrics(serviceName))

	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token", "X-Request-ID"},
		ExposedHeaders:   []string{"Link", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	mux.Use(middleware.Heartbeat("/ping"))

	mux.Use(func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(
			next,
			serviceName+".http",
			otelhttp.WithFilter(func(req *http.Request) bool {
				return !commonMiddleware.ShouldSkipTrace(req.URL.Path)
			}),
			otelhttp.WithSpanNameFormatter(func(operation string, r *http.Request) string {
				return r.Method + " " + r.URL.Path
			}),
		)
	})

	// Health check endpoints for Kubernetes
	mux.Get("/health/live", app.Liveness)
	mux.Get("/health/ready", app.Readiness)

	// Metrics endpoint for Prometheus
	mux.Handle("/metrics", promhttp.Handler())

	// Session establishment
	mux.Post("/authenticate", app.Authenticate)
	mux.Post("/token", app.TokenLogin)
	mux.Post("/refresh", app.RefreshSession)

	// Driver-scoped resources
	mux.Group(func(r chi.Router) {
		r.Use(app.RequireDriver)

		r.Get("/projects", app.ListProjects)
		r.Post("/projects/{projectID}/status", app.TransitionStatus)
		r.Get("/references", app.ListReferences)
	})

	return mux
}
