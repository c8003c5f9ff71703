// Package backend adapts the session core to the observability
// backend's ingestion contract: trace/generation/event/score/flush.
// Calls are fire-and-forget from the caller's perspective; the sink
// preserves FIFO order per trace handle internally.
package backend

import (
	"context"
	"time"
)

// Level is the severity attached to a backend event.
type Level string

const (
	LevelDefault Level = "DEFAULT"
	LevelWarning Level = "WARNING"
	LevelError   Level = "ERROR"
)

// Usage carries token accounting for a generation.
type Usage struct {
	Input  int64  `json:"input"`
	Output int64  `json:"output"`
	Total  int64  `json:"total"`
	Unit   string `json:"unit"`
}

// TraceHandle identifies a created trace for subsequent generation,
// event and score calls.
type TraceHandle string

// Sink is the minimal, language-neutral contract a backend adapter
// must satisfy. Implementations MUST NOT let transport failures
// propagate to the session core — swallow and log instead.
type Sink interface {
	Trace(ctx context.Context, name, sessionID string, input, output, metadata map[string]interface{}) TraceHandle
	Generation(ctx context.Context, handle TraceHandle, name, model string, start, end time.Time, usage Usage, metadata map[string]interface{})
	Event(ctx context.Context, handle TraceHandle, name string, input, output, metadata map[string]interface{}, level Level)
	Score(ctx context.Context, handle TraceHandle, name string, value float64, comment string)
	// Flush completes when all buffered entities are delivered or
	// abandoned, bounded by ctx's deadline.
	Flush(ctx context.Context) error
}
