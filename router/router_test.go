package router

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"github.com/tracebridge/otlp-bridge/backend"
	"github.com/tracebridge/otlp-bridge/config"
	"github.com/tracebridge/otlp-bridge/session"
)

func testSetup(apiKey string) (http.Handler, *session.Registry) {
	cfg := &config.Config{Addr: ":0", Env: "test", MaxBodyBytes: 1 << 20, APIKey: apiKey}
	log := zerolog.New(io.Discard).With().Timestamp().Logger()
	sink := backend.NewLogSink(log)
	reg := session.NewRegistry(sink, log, nil, nil)
	r := NewRouter(cfg, log, reg, sink)
	return r, reg
}

func TestHealthEndpoint(t *testing.T) {
	r, _ := testSetup("")

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rw := httptest.NewRecorder()
	r.ServeHTTP(rw, req)

	if rw.Result().StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for /health, got %d", rw.Result().StatusCode)
	}
}

func TestOpenAPIAndDocs(t *testing.T) {
	r, _ := testSetup("")

	for _, path := range []string{"/openapi.json", "/docs"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rw := httptest.NewRecorder()
		r.ServeHTTP(rw, req)
		if rw.Result().StatusCode != http.StatusOK {
			t.Fatalf("expected 200 for %s, got %d", path, rw.Result().StatusCode)
		}
	}
}

func TestIngestWithoutAPIKeyRejected(t *testing.T) {
	r, _ := testSetup("secret")

	req := httptest.NewRequest(http.MethodPost, "/v1/logs", bytes.NewBufferString(`{"resourceLogs":[]}`))
	rw := httptest.NewRecorder()
	r.ServeHTTP(rw, req)

	if rw.Result().StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without bearer token, got %d", rw.Result().StatusCode)
	}
}

func TestIngestWithAPIKeyAccepted(t *testing.T) {
	r, _ := testSetup("secret")

	req := httptest.NewRequest(http.MethodPost, "/v1/logs", bytes.NewBufferString(`{"resourceLogs":[]}`))
	req.Header.Set("Authorization", "Bearer secret")
	rw := httptest.NewRecorder()
	r.ServeHTTP(rw, req)

	if rw.Result().StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", rw.Result().StatusCode)
	}
}

func TestIngestMalformedJSONReturns400(t *testing.T) {
	r, _ := testSetup("")

	req := httptest.NewRequest(http.MethodPost, "/v1/logs", bytes.NewBufferString(`{`))
	rw := httptest.NewRecorder()
	r.ServeHTTP(rw, req)

	if rw.Result().StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed JSON, got %d", rw.Result().StatusCode)
	}
}

func TestTracesIsNoOp(t *testing.T) {
	r, _ := testSetup("")

	req := httptest.NewRequest(http.MethodPost, "/v1/traces", bytes.NewBufferString(`{"anything":"goes"}`))
	rw := httptest.NewRecorder()
	r.ServeHTTP(rw, req)

	if rw.Result().StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for /v1/traces no-op, got %d", rw.Result().StatusCode)
	}
}
