package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/tracebridge/otlp-bridge/mapper"
	"github.com/tracebridge/otlp-bridge/otlp"
	"github.com/tracebridge/otlp-bridge/session"
	"github.com/tracebridge/otlp-bridge/telemetry"
)

// IngestHandler implements the OTLP logs/metrics/traces ingress
// (spec.md §6): decode, schema-validate, dispatch to mappers, and
// always acknowledge well-formed envelopes regardless of backend
// outcome (spec.md §7's ingress/backend decoupling policy).
type IngestHandler struct {
	registry *session.Registry
	logger   zerolog.Logger

	requestCount int64
	errorCount   int64
}

func NewIngestHandler(registry *session.Registry, logger zerolog.Logger) *IngestHandler {
	return &IngestHandler{registry: registry, logger: logger.With().Str("component", "ingest_handler").Logger()}
}

// RequestCount and ErrorCount back the /health response.
func (h *IngestHandler) RequestCount() int64 { return h.requestCount }
func (h *IngestHandler) ErrorCount() int64   { return h.errorCount }

func (h *IngestHandler) Logs(w http.ResponseWriter, r *http.Request) {
	h.requestCount++
	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.fail(w, "failed to read request body")
		return
	}

	if err := otlp.ValidateLogsEnvelope(body); err != nil {
		h.fail(w, "malformed logs envelope: "+err.Error())
		return
	}

	var env otlp.LogsEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		h.fail(w, "malformed JSON: "+err.Error())
		return
	}

	telemetry.RecordEnvelopeReceived(r.Context())

	for _, rec := range env.Records() {
		h.dispatchLog(r.Context(), rec)
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"partialSuccess": map[string]interface{}{}})
}

func (h *IngestHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	h.requestCount++
	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.fail(w, "failed to read request body")
		return
	}

	if err := otlp.ValidateMetricsEnvelope(body); err != nil {
		h.fail(w, "malformed metrics envelope: "+err.Error())
		return
	}

	var env otlp.MetricsEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		h.fail(w, "malformed JSON: "+err.Error())
		return
	}

	telemetry.RecordEnvelopeReceived(r.Context())

	for _, dp := range env.DataPoints() {
		h.dispatchMetric(r.Context(), dp)
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"partialSuccess": map[string]interface{}{}})
}

// Traces is accepted but treated as a no-op per spec.md §6.
func (h *IngestHandler) Traces(w http.ResponseWriter, r *http.Request) {
	h.requestCount++
	io.Copy(io.Discard, r.Body)
	writeJSON(w, http.StatusOK, map[string]interface{}{"partialSuccess": map[string]interface{}{}})
}

func (h *IngestHandler) dispatchLog(ctx context.Context, rec otlp.LogRecord) {
	attrs := standardAttrs(rec.Attributes)
	key, ok := session.DeriveKey(attrs, recordTime(rec.TimeUnixNano))
	if !ok {
		h.logger.Debug().Msg("log record has no resolvable session key — ignored")
		telemetry.RecordRecordIgnored(ctx)
		return
	}

	s := h.registry.GetOrCreate(ctx, key, time.Now())
	s.ApplyIdentity(attrs.OrganizationID, attrs.UserAccountUUID, attrs.UserEmail, attrs.TerminalType, attrs.AppVersion)
	mapper.MapEvent(ctx, s, rec, h.logger)
	s.Touch(time.Now())
	telemetry.RecordRecordMapped(ctx)
}

func (h *IngestHandler) dispatchMetric(ctx context.Context, dp otlp.DataPoint) {
	attrs := standardAttrs(dp.Attributes)
	key, ok := session.DeriveKey(attrs, recordTime(dp.TimeUnixNano))
	if !ok {
		h.logger.Debug().Msg("metric datapoint has no resolvable session key — ignored")
		telemetry.RecordRecordIgnored(ctx)
		return
	}

	s := h.registry.GetOrCreate(ctx, key, time.Now())
	s.ApplyIdentity(attrs.OrganizationID, attrs.UserAccountUUID, attrs.UserEmail, attrs.TerminalType, attrs.AppVersion)
	mapper.MapMetric(ctx, s, dp, h.logger)
	s.Touch(time.Now())
	telemetry.RecordRecordMapped(ctx)
}

func standardAttrs(bag otlp.Bag) session.StandardAttrs {
	attrs := session.StandardAttrs{
		SessionID:       bag.Get("session.id").AsString(""),
		OrganizationID:  bag.Get("organization.id").AsString(""),
		UserAccountUUID: bag.Get("user.account_uuid").AsString(""),
		UserEmail:       bag.Get("user.email").AsString(""),
		TerminalType:    bag.Get("terminal.type").AsString(""),
		AppVersion:      bag.Get("app.version").AsString(""),
	}
	if ts := bag.Get("event.timestamp").AsString(""); ts != "" {
		if parsed, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			attrs.EventTimestamp = parsed
		}
	}
	return attrs
}

func recordTime(timeUnixNano int64) time.Time {
	if timeUnixNano == 0 {
		return time.Now()
	}
	return time.Unix(0, timeUnixNano)
}

func (h *IngestHandler) fail(w http.ResponseWriter, message string) {
	h.errorCount++
	writeJSON(w, http.StatusBadRequest, map[string]interface{}{"error": message})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
