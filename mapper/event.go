// Package mapper classifies decoded OTLP records into the Session
// mutations and Backend Sink calls described in spec §4.2 and §4.3.
package mapper

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/tracebridge/otlp-bridge/otlp"
	"github.com/tracebridge/otlp-bridge/session"
)

// MapEvent classifies one decoded log record's body and applies the
// matching Session mutation. Unknown bodies are ignored at debug
// level, matching §4.2's "unknown body values are ignored" rule.
func MapEvent(ctx context.Context, s *session.Session, rec otlp.LogRecord, logger zerolog.Logger) {
	at := time.Unix(0, rec.TimeUnixNano)
	attrs := rec.Attributes

	switch rec.Body {
	case "claude_code.user_prompt":
		prompt := attrs.Get("prompt").AsString("")
		length := attrs.Get("prompt_length").AsInt(0)
		s.OpenConversation(ctx, prompt, length)

	case "claude_code.api_request":
		model := attrs.Get("model").AsString("unknown")
		inputTokens := attrs.Get("input_tokens").AsInt(0)
		outputTokens := attrs.Get("output_tokens").AsInt(0)
		cacheRead := attrs.Get("cache_read_tokens").AsInt(0)
		cacheCreation := attrs.Get("cache_creation_tokens").AsInt(0)
		cost := attrs.Get("cost_usd").AsFloat(0)
		durationMs := attrs.Get("duration_ms").AsInt(0)
		requestID := attrs.Get("request_id").AsString("unknown")
		s.RecordGeneration(ctx, model, at, durationMs, inputTokens, outputTokens, cacheRead, cacheCreation, cost, requestID)

	case "claude_code.api_error":
		model := attrs.Get("model").AsString("unknown")
		errorMessage := attrs.Get("error_message").AsString("unknown")
		statusCode := attrs.Get("status_code").AsInt(0)
		requestID := attrs.Get("request_id").AsString("unknown")
		s.RecordError(ctx, model, errorMessage, statusCode, requestID)

	case "claude_code.tool_result":
		toolName := attrs.Get("tool_name").AsString("unknown")
		success := attrs.Get("success").AsBool(false)
		durationMs := attrs.Get("duration_ms").AsInt(0)
		s.RecordToolResult(ctx, toolName, success, durationMs)

	case "claude_code.tool_decision":
		toolName := attrs.Get("tool_name").AsString("unknown")
		decision := attrs.Get("decision").AsString("unknown")
		source := attrs.Get("source").AsString("unknown")
		s.RecordToolDecision(ctx, toolName, decision, source)

	default:
		logger.Debug().Str("body", rec.Body).Msg("ignoring unrecognized log record body")
	}
}
