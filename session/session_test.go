package session

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/tracebridge/otlp-bridge/backend"
)

type scoreCall struct {
	name    string
	value   float64
	comment string
}

type fakeSink struct {
	traces      int
	generations int
	events      int
	scores      []scoreCall
	flushed     bool
}

func (f *fakeSink) Trace(ctx context.Context, name, sessionID string, input, output, metadata map[string]interface{}) backend.TraceHandle {
	f.traces++
	return backend.TraceHandle("handle")
}

func (f *fakeSink) Generation(ctx context.Context, handle backend.TraceHandle, name, model string, start, end time.Time, usage backend.Usage, metadata map[string]interface{}) {
	f.generations++
}

func (f *fakeSink) Event(ctx context.Context, handle backend.TraceHandle, name string, input, output, metadata map[string]interface{}, level backend.Level) {
	f.events++
}

func (f *fakeSink) Score(ctx context.Context, handle backend.TraceHandle, name string, value float64, comment string) {
	f.scores = append(f.scores, scoreCall{name: name, value: value, comment: comment})
}

func (f *fakeSink) Flush(ctx context.Context) error {
	f.flushed = true
	return nil
}

func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

func TestOpenConversationIncrementsIndex(t *testing.T) {
	sink := &fakeSink{}
	s := New("key-1", time.Now(), sink, testLogger())

	s.OpenConversation(context.Background(), "first prompt", 12)
	s.OpenConversation(context.Background(), "second prompt", 20)

	if sink.traces != 2 {
		t.Fatalf("expected 2 traces opened, got %d", sink.traces)
	}
}

func TestRecordGenerationOpensSyntheticConversationWhenNoneOpen(t *testing.T) {
	sink := &fakeSink{}
	s := New("key-1", time.Now(), sink, testLogger())

	s.RecordGeneration(context.Background(), "claude-x", time.Now(), 100, 10, 20, 0, 0, 0.01, "req-1")

	if sink.traces != 1 {
		t.Fatalf("expected a synthetic conversation trace to be opened, got %d traces", sink.traces)
	}
	if sink.generations != 1 {
		t.Fatalf("expected 1 generation recorded, got %d", sink.generations)
	}
}

func TestAddCostMetricSuppressedWithinDoubleCountingWindow(t *testing.T) {
	sink := &fakeSink{}
	s := New("key-1", time.Now(), sink, testLogger())

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.RecordGeneration(context.Background(), "claude-x", start, 100, 10, 20, 0, 0, 1.00, "req-1")

	// Metric-derived cost for the same model arriving 1s later should be
	// suppressed as already accounted for by the event-derived cost.
	s.AddCostMetric("claude-x", 0.50, start.Add(1*time.Second))

	ctx := context.Background()
	s.Finalize(ctx)

	// totalCostUSD should reflect only the event-derived $1.00, not +0.50.
	// Exercised indirectly via the efficiency score's cost/call comment,
	// since totalCostUSD itself is unexported: a call count of 1 and a
	// cost of $1.00 yields cost/call $1.0000.
	found := false
	for _, sc := range sink.scores {
		if sc.name == "efficiency" {
			found = true
			if sc.comment != "cache ratio 0.00, cost/call $1.0000" {
				t.Fatalf("expected cost/call to reflect only event-derived cost, got %q", sc.comment)
			}
		}
	}
	if !found {
		t.Fatal("expected an efficiency score to be recorded")
	}
}

func TestAddCostMetricAppliesOutsideDoubleCountingWindow(t *testing.T) {
	sink := &fakeSink{}
	s := New("key-1", time.Now(), sink, testLogger())

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.RecordGeneration(context.Background(), "claude-x", start, 100, 10, 20, 0, 0, 1.00, "req-1")
	s.AddCostMetric("claude-x", 0.50, start.Add(10*time.Second))

	s.Finalize(context.Background())

	for _, sc := range sink.scores {
		if sc.name == "efficiency" && sc.comment != "cache ratio 0.00, cost/call $1.5000" {
			t.Fatalf("expected metric-derived cost outside the window to be added, got %q", sc.comment)
		}
	}
}

func TestFinalizeIsIdempotent(t *testing.T) {
	sink := &fakeSink{}
	s := New("key-1", time.Now(), sink, testLogger())

	ctx := context.Background()
	s.Finalize(ctx)
	s.Finalize(ctx)

	if sink.traces != 1 {
		t.Fatalf("expected exactly 1 session-summary trace across two Finalize calls, got %d", sink.traces)
	}
	if len(sink.scores) != 2 {
		t.Fatalf("expected exactly 2 scores (quality, efficiency), got %d", len(sink.scores))
	}
}

func TestFinalizeQualityScorePenalizesErrorsAndRejections(t *testing.T) {
	sink := &fakeSink{}
	s := New("key-1", time.Now(), sink, testLogger())

	ctx := context.Background()
	s.RecordError(ctx, "claude-x", "boom", 500, "req-1")
	s.RecordToolDecision(ctx, "edit_file", "reject", "user")

	s.Finalize(ctx)

	for _, sc := range sink.scores {
		if sc.name == "quality" {
			// 1.0 - 0.1*1 error - 0.05*1 rejection = 0.85
			want := 0.85
			if diff := sc.value - want; diff > 1e-9 || diff < -1e-9 {
				t.Fatalf("expected quality score %v, got %v", want, sc.value)
			}
		}
	}
}

func TestMutationsAfterFinalizeAreNoOps(t *testing.T) {
	sink := &fakeSink{}
	s := New("key-1", time.Now(), sink, testLogger())

	ctx := context.Background()
	s.Finalize(ctx)
	tracesBefore := sink.traces

	s.OpenConversation(ctx, "ignored", 1)
	s.RecordGeneration(ctx, "claude-x", time.Now(), 1, 1, 1, 0, 0, 1, "req-1")
	s.ApplyIdentity("org", "user", "email", "terminal", "1.0")

	if sink.traces != tracesBefore {
		t.Fatalf("expected no further sink activity after finalize, traces went from %d to %d", tracesBefore, sink.traces)
	}
}

func TestApplyIdentityIsFirstWriteWins(t *testing.T) {
	sink := &fakeSink{}
	s := New("key-1", time.Now(), sink, testLogger())

	s.ApplyIdentity("org-1", "user-1", "a@b.com", "vscode", "1.0.0")
	s.ApplyIdentity("org-2", "user-2", "c@d.com", "cli", "2.0.0")

	if s.organizationID != "org-1" {
		t.Fatalf("expected first-write-wins organization_id, got %q", s.organizationID)
	}
}

func TestTouchUpdatesLastActivity(t *testing.T) {
	sink := &fakeSink{}
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s := New("key-1", start, sink, testLogger())

	later := start.Add(time.Hour)
	s.Touch(later)

	if s.LastActivityNs() != later.UnixNano() {
		t.Fatal("expected Touch to update last activity timestamp")
	}
}
