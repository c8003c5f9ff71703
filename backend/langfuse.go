package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tracebridge/otlp-bridge/telemetry"
)

// ErrNotConfigured is returned by NewLangfuseSink when credentials are
// absent; callers fall back to a no-op sink in that case.
type sinkError string

func (e sinkError) Error() string { return string(e) }

const ErrNotConfigured = sinkError("backend sink not configured: LANGFUSE_HOST/LANGFUSE_PUBLIC_KEY/LANGFUSE_SECRET_KEY required")

// job is one queued ingestion call. Jobs for the same trace handle are
// drained strictly in enqueue order.
type job struct {
	path string
	body interface{}
}

// handleQueue is a per-trace-handle FIFO worker, grounded on the
// gateway's AsyncLogger buffered-channel-plus-drain-goroutine pattern;
// keyed per handle here so that observations on one conversation trace
// are never reordered relative to each other while remaining
// fire-and-forget from the session core's perspective.
type handleQueue struct {
	ch chan job
	wg sync.WaitGroup
}

// LangfuseSink is the Backend Sink Adapter: a thin, best-effort,
// asynchronous client for the Langfuse ingestion API. It never lets
// transport failures propagate to the session core.
type LangfuseSink struct {
	client    *http.Client
	host      string
	publicKey string
	secretKey string
	logger    zerolog.Logger

	mu      sync.Mutex
	queues  map[TraceHandle]*handleQueue
	closing bool
}

// NewLangfuseSink constructs a sink talking to host with the given
// credentials. Returns ErrNotConfigured if any of the three are empty.
func NewLangfuseSink(host, publicKey, secretKey string, requestTimeout time.Duration, logger zerolog.Logger) (*LangfuseSink, error) {
	if host == "" || publicKey == "" || secretKey == "" {
		return nil, ErrNotConfigured
	}
	return &LangfuseSink{
		client:    newClient(requestTimeout),
		host:      host,
		publicKey: publicKey,
		secretKey: secretKey,
		logger:    logger.With().Str("component", "backend_sink").Logger(),
		queues:    make(map[TraceHandle]*handleQueue),
	}, nil
}

func (s *LangfuseSink) Trace(ctx context.Context, name, sessionID string, input, output, metadata map[string]interface{}) TraceHandle {
	handle := TraceHandle(uuid.NewString())
	s.enqueue(handle, job{
		path: "/api/public/ingestion",
		body: ingestionEvent("trace-create", map[string]interface{}{
			"id":        string(handle),
			"name":      name,
			"sessionId": sessionID,
			"input":     input,
			"output":    output,
			"metadata":  metadata,
		}),
	})
	return handle
}

func (s *LangfuseSink) Generation(ctx context.Context, handle TraceHandle, name, model string, start, end time.Time, usage Usage, metadata map[string]interface{}) {
	s.enqueue(handle, job{
		path: "/api/public/ingestion",
		body: ingestionEvent("generation-create", map[string]interface{}{
			"traceId":   string(handle),
			"name":      name,
			"model":     model,
			"startTime": start.Format(time.RFC3339Nano),
			"endTime":   end.Format(time.RFC3339Nano),
			"usage":     usage,
			"metadata":  metadata,
		}),
	})
}

func (s *LangfuseSink) Event(ctx context.Context, handle TraceHandle, name string, input, output, metadata map[string]interface{}, level Level) {
	s.enqueue(handle, job{
		path: "/api/public/ingestion",
		body: ingestionEvent("event-create", map[string]interface{}{
			"traceId":  string(handle),
			"name":     name,
			"input":    input,
			"output":   output,
			"metadata": metadata,
			"level":    string(level),
		}),
	})
}

func (s *LangfuseSink) Score(ctx context.Context, handle TraceHandle, name string, value float64, comment string) {
	s.enqueue(handle, job{
		path: "/api/public/ingestion",
		body: ingestionEvent("score-create", map[string]interface{}{
			"traceId": string(handle),
			"name":    name,
			"value":   value,
			"comment": comment,
		}),
	})
}

// Flush drains all per-handle queues, bounded by ctx's deadline. Any
// queue still draining when ctx expires is abandoned and logged.
func (s *LangfuseSink) Flush(ctx context.Context) error {
	s.mu.Lock()
	s.closing = true
	queues := make([]*handleQueue, 0, len(s.queues))
	for _, q := range s.queues {
		close(q.ch)
		queues = append(queues, q)
	}
	s.queues = make(map[TraceHandle]*handleQueue)
	s.closing = false
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		for _, q := range queues {
			q.wg.Wait()
		}
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		s.logger.Warn().Int("pending_queues", len(queues)).Msg("flush timed out — abandoning pending deliveries")
		return ctx.Err()
	}
}

func (s *LangfuseSink) enqueue(handle TraceHandle, j job) {
	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		return
	}
	q, ok := s.queues[handle]
	if !ok {
		q = &handleQueue{ch: make(chan job, 256)}
		s.queues[handle] = q
		q.wg.Add(1)
		go s.drain(q)
	}
	s.mu.Unlock()

	select {
	case q.ch <- j:
	default:
		s.logger.Warn().Str("trace_handle", string(handle)).Msg("backend queue full — dropping entity")
	}
}

func (s *LangfuseSink) drain(q *handleQueue) {
	defer q.wg.Done()
	for j := range q.ch {
		s.deliver(j)
	}
}

func (s *LangfuseSink) deliver(j job) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	body, err := json.Marshal(j.body)
	if err != nil {
		s.logger.Debug().Err(err).Msg("marshal backend payload failed")
		telemetry.RecordBackendCall(ctx, false)
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.host+j.path, bytes.NewReader(body))
	if err != nil {
		s.logger.Debug().Err(err).Msg("build backend request failed")
		telemetry.RecordBackendCall(ctx, false)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(s.publicKey, s.secretKey)

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Debug().Err(err).Msg("backend delivery failed — swallowed")
		telemetry.RecordBackendCall(ctx, false)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		s.logger.Debug().Int("status", resp.StatusCode).Msg("backend rejected entity — swallowed")
		telemetry.RecordBackendCall(ctx, false)
		return
	}
	telemetry.RecordBackendCall(ctx, true)
}

func ingestionEvent(eventType string, body map[string]interface{}) map[string]interface{} {
	return map[string]interface{}{
		"id":        uuid.NewString(),
		"type":      eventType,
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		"body":      body,
	}
}
