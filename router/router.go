package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/tracebridge/otlp-bridge/backend"
	"github.com/tracebridge/otlp-bridge/config"
	"github.com/tracebridge/otlp-bridge/handler"
	bmw "github.com/tracebridge/otlp-bridge/middleware"
	"github.com/tracebridge/otlp-bridge/session"
)

// NewRouter returns a configured chi Router serving the bridge's
// ingress surface (spec.md §6).
func NewRouter(cfg *config.Config, appLogger zerolog.Logger, registry *session.Registry, sink backend.Sink) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(mwRequestLogger(appLogger))
	r.Use(bmw.MaxBodySize(cfg.MaxBodyBytes))

	ingest := handler.NewIngestHandler(registry, appLogger)
	health := handler.NewHealthHandler(registry, ingest, sink)

	r.Get("/health", health.Handle)
	r.Get("/openapi.json", handler.OpenAPIHandler())
	r.Get("/docs", handler.SwaggerUIHandler())

	authMW := bmw.NewAuthMiddleware(appLogger, cfg.APIKey)
	timeoutMW := bmw.NewTimeoutMiddleware(appLogger, 30*time.Second)

	r.Group(func(r chi.Router) {
		r.Use(authMW.Handler)
		r.Use(timeoutMW.Handler)

		r.Post("/v1/logs", ingest.Logs)
		r.Post("/v1/metrics", ingest.Metrics)
		r.Post("/v1/traces", ingest.Traces)
	})

	return r
}

func mwRequestLogger(appLogger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(rw, r)
			appLogger.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Str("req_id", chimw.GetReqID(r.Context())).
				Int("status", rw.Status()).
				Dur("duration", time.Since(start)).
				Msg("request completed")
		})
	}
}
