package backend

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestNewLangfuseSinkRequiresCredentials(t *testing.T) {
	if _, err := NewLangfuseSink("", "pub", "secret", time.Second, zerolog.New(io.Discard)); err != ErrNotConfigured {
		t.Fatalf("expected ErrNotConfigured when host is empty, got %v", err)
	}
	if _, err := NewLangfuseSink("http://host", "", "secret", time.Second, zerolog.New(io.Discard)); err != ErrNotConfigured {
		t.Fatalf("expected ErrNotConfigured when public key is empty, got %v", err)
	}
}

func TestLangfuseSinkDeliversEventsInFIFOOrderPerHandle(t *testing.T) {
	var mu sync.Mutex
	var received []map[string]interface{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&body)
		mu.Lock()
		received = append(received, body)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sink, err := NewLangfuseSink(srv.URL, "pub", "secret", 5*time.Second, zerolog.New(io.Discard))
	if err != nil {
		t.Fatalf("unexpected error constructing sink: %v", err)
	}

	ctx := context.Background()
	handle := sink.Trace(ctx, "conversation-1", "sess-1", nil, nil, nil)
	for i := 0; i < 5; i++ {
		sink.Score(ctx, handle, "quality", float64(i), "")
	}

	flushCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := sink.Flush(flushCtx); err != nil {
		t.Fatalf("flush failed: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(received) != 6 {
		t.Fatalf("expected 6 delivered entities (1 trace + 5 scores), got %d", len(received))
	}
	if received[0]["type"] != "trace-create" {
		t.Fatalf("expected trace-create to be delivered first, got %v", received[0]["type"])
	}
	for i := 1; i < len(received); i++ {
		body, _ := received[i]["body"].(map[string]interface{})
		val, _ := body["value"].(float64)
		if int(val) != i-1 {
			t.Fatalf("expected scores delivered in FIFO order, got value %v at position %d", val, i)
		}
	}
}

func TestLangfuseSinkSwallowsTransportErrors(t *testing.T) {
	sink, err := NewLangfuseSink("http://127.0.0.1:0", "pub", "secret", 1*time.Second, zerolog.New(io.Discard))
	if err != nil {
		t.Fatalf("unexpected error constructing sink: %v", err)
	}
	ctx := context.Background()
	handle := sink.Trace(ctx, "conversation-1", "sess-1", nil, nil, nil)
	sink.Score(ctx, handle, "quality", 1.0, "")

	flushCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := sink.Flush(flushCtx); err != nil {
		t.Fatalf("expected Flush to swallow delivery failures and return nil, got %v", err)
	}
}
