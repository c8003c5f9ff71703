package handler

import (
	"net/http"
	"time"

	"github.com/tracebridge/otlp-bridge/backend"
	"github.com/tracebridge/otlp-bridge/session"
)

// HealthHandler serves GET /health (spec.md §6).
type HealthHandler struct {
	registry  *session.Registry
	ingest    *IngestHandler
	sink      backend.Sink
	startedAt time.Time
}

func NewHealthHandler(registry *session.Registry, ingest *IngestHandler, sink backend.Sink) *HealthHandler {
	return &HealthHandler{registry: registry, ingest: ingest, sink: sink, startedAt: time.Now()}
}

func (h *HealthHandler) Handle(w http.ResponseWriter, r *http.Request) {
	status := "connected"
	if _, ok := h.sink.(*backend.LogSink); ok {
		status = "not_configured"
	}
	body := map[string]interface{}{
		"status":       "healthy",
		"uptime":       time.Since(h.startedAt).Seconds(),
		"sessions":     h.registry.Active(),
		"requestCount": h.ingest.RequestCount(),
		"errorCount":   h.ingest.ErrorCount(),
		"langfuse":     status,
	}
	// clusterSessions surfaces the cross-replica gauge (SPEC_FULL.md
	// §4.13) when the registry is coordinating over Redis; omitted
	// entirely for single-instance deployments or a degraded read.
	if coord := h.registry.Coordinator(); coord != nil {
		if count, ok := coord.ClusterActiveSessions(r.Context()); ok {
			body["clusterSessions"] = count
		}
	}
	writeJSON(w, http.StatusOK, body)
}
