package session

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/tracebridge/otlp-bridge/backend"
)

// New creates a session for key, created at now, with identity fields
// unset; ApplyIdentity fills them first-write-wins from here on.
func New(key string, now time.Time, sink backend.Sink, logger zerolog.Logger) *Session {
	return &Session{
		key:             key,
		perModelCost:    make(map[string]float64),
		perModelTokens:  make(map[string]int64),
		lastEventCostAt: make(map[string]time.Time),
		createdNs:       now.UnixNano(),
		lastActivityNs:  now.UnixNano(),
		sink:            sink,
		logger:          logger.With().Str("component", "session").Str("session_key", key).Logger(),
	}
}

// Key returns the session's key.
func (s *Session) Key() string { return s.key }

// setIdentity applies first-write-wins identity attributes. Call under lock.
func (s *Session) setIdentity(organizationID, userAccountUUID, userEmail, terminalType, appVersion string) {
	if s.organizationID == "" {
		s.organizationID = organizationID
	} else if organizationID != "" && organizationID != s.organizationID {
		s.logger.Debug().Str("attempted", organizationID).Msg("ignoring conflicting organization_id (first-write-wins)")
	}
	if s.userAccountUUID == "" {
		s.userAccountUUID = userAccountUUID
	}
	if s.userEmail == "" {
		s.userEmail = userEmail
	}
	if s.terminalType == "" {
		s.terminalType = terminalType
	}
	if s.appVersion == "" {
		s.appVersion = appVersion
	}
}

func (s *Session) identityMetadata() map[string]interface{} {
	return map[string]interface{}{
		"organizationId":  s.organizationID,
		"userAccountUuid": s.userAccountUUID,
		"userEmail":       s.userEmail,
		"terminalType":    s.terminalType,
		"appVersion":      s.appVersion,
	}
}

// Touch updates last-activity, regardless of finalization state (the
// registry is responsible for not routing ingest to a removed session).
func (s *Session) Touch(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActivityNs = now.UnixNano()
}

// LastActivityNs returns the last-activity timestamp in unix nanoseconds.
func (s *Session) LastActivityNs() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivityNs
}

// CreatedNs returns the session's creation timestamp in unix nanoseconds.
func (s *Session) CreatedNs() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createdNs
}

// Finalized reports whether finalize() has already run.
func (s *Session) Finalized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finalized
}

// ApplyIdentity is the entry point ingest uses to merge first-seen
// identity attributes before dispatching to a mapper.
func (s *Session) ApplyIdentity(organizationID, userAccountUUID, userEmail, terminalType, appVersion string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finalized {
		return
	}
	s.setIdentity(organizationID, userAccountUUID, userEmail, terminalType, appVersion)
}

// OpenConversation increments the conversation counter and opens a new
// backend trace, per §4.2's user-prompt handling. Returns the new handle.
func (s *Session) OpenConversation(ctx context.Context, prompt string, promptLength int64) backend.TraceHandle {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finalized {
		return ""
	}
	return s.openConversationLocked(ctx, prompt, promptLength)
}

func (s *Session) openConversationLocked(ctx context.Context, prompt string, promptLength int64) backend.TraceHandle {
	s.conversationIndex++
	name := fmt.Sprintf("conversation-%d", s.conversationIndex)
	handle := s.sink.Trace(ctx, name, s.key,
		map[string]interface{}{"prompt": prompt, "length": promptLength},
		nil,
		s.identityMetadata(),
	)
	s.currentTraceHandle = handle
	s.hasCurrentTrace = true
	return handle
}

// ensureConversationLocked opens a synthetic empty-prompt conversation
// if none is open yet, per §4.2's api_request handling note. Call
// under lock.
func (s *Session) ensureConversationLocked(ctx context.Context) backend.TraceHandle {
	if s.hasCurrentTrace {
		return s.currentTraceHandle
	}
	return s.openConversationLocked(ctx, "", 0)
}

// RecordGeneration records an api_request event: creates a generation
// under the current (or synthetic) conversation and updates aggregates.
func (s *Session) RecordGeneration(ctx context.Context, model string, start time.Time, durationMs int64, inputTokens, outputTokens, cacheReadTokens, cacheCreationTokens int64, costUSD float64, requestID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finalized {
		return
	}
	handle := s.ensureConversationLocked(ctx)

	end := start.Add(time.Duration(durationMs) * time.Millisecond)
	usage := backend.Usage{
		Input:  inputTokens,
		Output: outputTokens,
		Total:  inputTokens + outputTokens,
		Unit:   "TOKENS",
	}
	s.sink.Generation(ctx, handle, "", model, start, end, usage, map[string]interface{}{
		"cost": costUSD,
		"cache": map[string]interface{}{
			"read":     cacheReadTokens,
			"creation": cacheCreationTokens,
		},
		"requestId": requestID,
	})

	s.inputTokens += inputTokens
	s.outputTokens += outputTokens
	s.cacheReadTokens += cacheReadTokens
	s.cacheCreationTokens += cacheCreationTokens
	s.apiCallCount++
	if costUSD != 0 {
		s.totalCostUSD += costUSD
		s.perModelCost[model] += costUSD
		s.perModelTokens[model] += inputTokens + outputTokens
		s.lastEventCostAt[model] = start
	}
}

// RecordError records an api_error event under the current conversation.
func (s *Session) RecordError(ctx context.Context, model, errorMessage string, statusCode int64, requestID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finalized {
		return
	}
	handle := s.ensureConversationLocked(ctx)
	s.sink.Event(ctx, handle, "api-error", nil,
		map[string]interface{}{"message": errorMessage, "statusCode": statusCode},
		map[string]interface{}{"model": model, "requestId": requestID},
		backend.LevelError,
	)
	s.apiErrorCount++
}

// RecordToolResult records a tool_result event under the current conversation.
func (s *Session) RecordToolResult(ctx context.Context, toolName string, success bool, durationMs int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finalized {
		return
	}
	handle := s.ensureConversationLocked(ctx)
	s.sink.Event(ctx, handle, "tool-"+toolName, nil,
		map[string]interface{}{"success": success, "durationMs": durationMs},
		nil,
		backend.LevelDefault,
	)
	s.toolResultCount++
}

// RecordToolDecision records a tool_decision event under the current conversation.
func (s *Session) RecordToolDecision(ctx context.Context, toolName, decision, source string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finalized {
		return
	}
	level := backend.LevelDefault
	if decision != "accept" {
		level = backend.LevelWarning
	}
	handle := s.ensureConversationLocked(ctx)
	s.sink.Event(ctx, handle, "tool-decision", map[string]interface{}{"tool": toolName, "source": source},
		map[string]interface{}{"decision": decision}, nil, level)
	s.toolDecisions = append(s.toolDecisions, ToolDecision{Tool: toolName, Decision: decision, Source: source, Timestamp: time.Now()})
}

// AddCostMetric applies claude_code.cost.usage, subject to the
// event-authoritative double-counting guard in §3.
func (s *Session) AddCostMetric(model string, v float64, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finalized {
		return
	}
	if last, ok := s.lastEventCostAt[model]; ok && at.Sub(last) < 2*time.Second && at.Sub(last) >= 0 {
		s.logger.Debug().Str("model", model).Msg("ignoring metric-derived cost: event-derived cost recorded within 2s window")
		return
	}
	s.totalCostUSD += v
	s.perModelCost[model] += v
}

// AddTokenMetric applies claude_code.token.usage for the given type
// (input, output, cacheRead, cacheCreation).
func (s *Session) AddTokenMetric(tokenType string, v int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finalized {
		return
	}
	switch tokenType {
	case "input":
		s.inputTokens += v
	case "output":
		s.outputTokens += v
	case "cacheRead":
		s.cacheReadTokens += v
	case "cacheCreation":
		s.cacheCreationTokens += v
	}
}

// AddLinesMetric applies claude_code.lines_of_code.count.
func (s *Session) AddLinesMetric(kind string, v int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finalized {
		return
	}
	switch kind {
	case "added":
		s.linesAdded += v
	case "removed":
		s.linesRemoved += v
	}
}

// AddCommitMetric applies claude_code.commit.count.
func (s *Session) AddCommitMetric(v int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finalized {
		return
	}
	s.commitCount += v
}

// AddPRMetric applies claude_code.pr.count / claude_code.pull_request.count.
// The client sometimes emits both names for the same action; both are
// treated identically, with a debug note if they land within 2s of
// each other (see spec's open question on this).
func (s *Session) AddPRMetric(v int64, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finalized {
		return
	}
	if !s.lastPRAddAt.IsZero() && at.Sub(s.lastPRAddAt).Abs() < 2*time.Second {
		s.logger.Debug().Msg("pr.count and pull_request.count both observed within 2s — counting both")
	}
	s.lastPRAddAt = at
	s.prCount += v
}

// SetStarted applies claude_code.session.count: a marker metric with
// no further aggregate effect beyond recording that the client
// reported a session start.
func (s *Session) SetStarted() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finalized {
		return
	}
	s.started = true
}

// SetActiveTime applies claude_code.active_time.total (last-wins).
func (s *Session) SetActiveTime(v float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finalized {
		return
	}
	s.activeTimeSeconds = v
}

// RecordCodeEditDecision applies claude_code.code_edit_tool.decision:
// appends a tool decision and, if a conversation is open, emits a
// backend event (it does not open a synthetic one).
func (s *Session) RecordCodeEditDecision(ctx context.Context, tool, decision, language string, count int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finalized {
		return
	}
	s.toolDecisions = append(s.toolDecisions, ToolDecision{Tool: tool, Decision: decision, Language: language, Timestamp: time.Now()})
	if s.hasCurrentTrace {
		level := backend.LevelDefault
		if decision != "accept" {
			level = backend.LevelWarning
		}
		s.sink.Event(ctx, s.currentTraceHandle, "code-edit-decision",
			map[string]interface{}{"tool": tool, "language": language, "count": count},
			map[string]interface{}{"decision": decision}, nil, level)
	}
}

// Finalize is idempotent: computes and emits the session summary on
// the first call, and is a no-op thereafter.
func (s *Session) Finalize(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finalized {
		return
	}
	s.finalized = true

	rejections := 0
	for _, d := range s.toolDecisions {
		if d.Decision != "accept" {
			rejections++
		}
	}

	quality := 1.0 - 0.1*float64(s.apiErrorCount) - 0.05*float64(rejections)
	if quality < 0 {
		quality = 0
	}

	totalTokens := s.inputTokens + s.outputTokens + s.cacheReadTokens + s.cacheCreationTokens
	cacheTotal := s.cacheReadTokens + s.cacheCreationTokens
	denom := totalTokens
	if denom < 1 {
		denom = 1
	}
	cacheRatio := float64(cacheTotal) / float64(denom)

	calls := s.apiCallCount
	if calls < 1 {
		calls = 1
	}
	costPerCall := s.totalCostUSD / float64(calls)
	costPenalty := costPerCall / 0.30
	if costPenalty > 1 {
		costPenalty = 1
	}
	efficiency := cacheRatio + (1 - costPenalty)
	if efficiency < 0 {
		efficiency = 0
	}
	if efficiency > 2 {
		efficiency = 2
	}
	efficiency /= 2

	summary := Summary{
		ConversationCount: s.conversationIndex,
		APICallCount:      s.apiCallCount,
		ToolCallCount:     s.toolResultCount,
		TotalCost:         s.totalCostUSD,
		TotalTokens:       totalTokens,
		CacheTokens: map[string]int64{
			"read":     s.cacheReadTokens,
			"creation": s.cacheCreationTokens,
		},
		AdditionalMetrics: map[string]interface{}{
			"activeTime":       s.activeTimeSeconds,
			"commitCount":      s.commitCount,
			"pullRequestCount": s.prCount,
			"toolDecisions":    s.toolDecisions,
		},
	}

	handle := s.sink.Trace(ctx, "session-summary", s.key, nil, summaryOutput(summary), s.identityMetadata())
	s.sink.Score(ctx, handle, "quality", quality, fmt.Sprintf("%d errors, %d rejections", s.apiErrorCount, rejections))
	s.sink.Score(ctx, handle, "efficiency", efficiency, fmt.Sprintf("cache ratio %.2f, cost/call $%.4f", cacheRatio, costPerCall))
}

func summaryOutput(s Summary) map[string]interface{} {
	return map[string]interface{}{
		"conversationCount": s.ConversationCount,
		"apiCallCount":      s.APICallCount,
		"toolCallCount":     s.ToolCallCount,
		"totalCost":         s.TotalCost,
		"totalTokens":       s.TotalTokens,
		"cacheTokens":       s.CacheTokens,
		"additionalMetrics": s.AdditionalMetrics,
	}
}
