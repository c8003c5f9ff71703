package mapper

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/tracebridge/otlp-bridge/otlp"
	"github.com/tracebridge/otlp-bridge/session"
)

// MapMetric classifies one decoded OTLP datapoint by its metric name
// and applies the matching Session mutation. Unknown metric names are
// ignored at debug level, matching §4.3's rule.
func MapMetric(ctx context.Context, s *session.Session, dp otlp.DataPoint, logger zerolog.Logger) {
	at := time.Unix(0, dp.TimeUnixNano)
	attrs := dp.Attributes

	switch dp.MetricName {
	case "claude_code.cost.usage":
		model := attrs.Get("model").AsString("unknown")
		s.AddCostMetric(model, dp.Value, at)

	case "claude_code.token.usage":
		tokenType := attrs.Get("type").AsString("unknown")
		s.AddTokenMetric(tokenType, int64(dp.Value))

	case "claude_code.lines_of_code.count":
		kind := attrs.Get("type").AsString("unknown")
		s.AddLinesMetric(kind, int64(dp.Value))

	case "claude_code.commit.count":
		s.AddCommitMetric(int64(dp.Value))

	case "claude_code.pr.count", "claude_code.pull_request.count":
		s.AddPRMetric(int64(dp.Value), at)

	case "claude_code.session.count":
		s.SetStarted()

	case "claude_code.active_time.total":
		s.SetActiveTime(dp.Value)

	case "claude_code.code_edit_tool.decision":
		tool := attrs.Get("tool").AsString("unknown")
		decision := attrs.Get("decision").AsString("unknown")
		language := attrs.Get("language").AsString("unknown")
		count := int64(dp.Value)
		s.RecordCodeEditDecision(ctx, tool, decision, language, count)

	default:
		logger.Debug().Str("metric", dp.MetricName).Msg("ignoring unrecognized metric name")
	}
}
