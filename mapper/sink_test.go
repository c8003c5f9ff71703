package mapper

import (
	"context"
	"time"

	"github.com/tracebridge/otlp-bridge/backend"
)

// recordingSink counts Sink calls so mapper tests can assert on
// dispatch behavior without depending on backend internals.
type recordingSink struct {
	traces      int
	generations int
	events      int
	scores      int

	lastEventLevel backend.Level
	scoreComments  map[string]string
}

func (r *recordingSink) Trace(ctx context.Context, name, sessionID string, input, output, metadata map[string]interface{}) backend.TraceHandle {
	r.traces++
	return backend.TraceHandle("handle")
}

func (r *recordingSink) Generation(ctx context.Context, handle backend.TraceHandle, name, model string, start, end time.Time, usage backend.Usage, metadata map[string]interface{}) {
	r.generations++
}

func (r *recordingSink) Event(ctx context.Context, handle backend.TraceHandle, name string, input, output, metadata map[string]interface{}, level backend.Level) {
	r.events++
	r.lastEventLevel = level
}

func (r *recordingSink) Score(ctx context.Context, handle backend.TraceHandle, name string, value float64, comment string) {
	r.scores++
	if r.scoreComments == nil {
		r.scoreComments = make(map[string]string)
	}
	r.scoreComments[name] = comment
}

func (r *recordingSink) Flush(ctx context.Context) error { return nil }
