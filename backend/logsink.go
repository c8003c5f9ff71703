package backend

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// LogSink is a Sink that only logs at debug level. It is used when no
// backend credentials are configured, so the session core never needs
// a nil check on the sink it holds.
type LogSink struct {
	logger zerolog.Logger
}

func NewLogSink(logger zerolog.Logger) *LogSink {
	return &LogSink{logger: logger.With().Str("component", "backend_sink").Logger()}
}

func (s *LogSink) Trace(ctx context.Context, name, sessionID string, input, output, metadata map[string]interface{}) TraceHandle {
	handle := TraceHandle(uuid.NewString())
	s.logger.Debug().Str("trace", name).Str("session_id", sessionID).Str("handle", string(handle)).Msg("trace (log sink)")
	return handle
}

func (s *LogSink) Generation(ctx context.Context, handle TraceHandle, name, model string, start, end time.Time, usage Usage, metadata map[string]interface{}) {
	s.logger.Debug().Str("handle", string(handle)).Str("model", model).Int64("total_tokens", usage.Total).Msg("generation (log sink)")
}

func (s *LogSink) Event(ctx context.Context, handle TraceHandle, name string, input, output, metadata map[string]interface{}, level Level) {
	s.logger.Debug().Str("handle", string(handle)).Str("name", name).Str("level", string(level)).Msg("event (log sink)")
}

func (s *LogSink) Score(ctx context.Context, handle TraceHandle, name string, value float64, comment string) {
	s.logger.Debug().Str("handle", string(handle)).Str("name", name).Float64("value", value).Msg("score (log sink)")
}

func (s *LogSink) Flush(ctx context.Context) error {
	return nil
}
