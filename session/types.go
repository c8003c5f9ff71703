package session

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/tracebridge/otlp-bridge/backend"
)

// ToolDecision records one code-edit or tool-use decision observed
// during the session, whether it arrived as a log record or a metric.
type ToolDecision struct {
	Tool      string
	Decision  string
	Source    string
	Language  string
	Timestamp time.Time
}

// Summary is the terminal output attached to the session-summary trace.
type Summary struct {
	ConversationCount int                    `json:"conversationCount"`
	APICallCount      int64                  `json:"apiCallCount"`
	ToolCallCount     int64                  `json:"toolCallCount"`
	TotalCost         float64                `json:"totalCost"`
	TotalTokens       int64                  `json:"totalTokens"`
	CacheTokens       map[string]int64       `json:"cacheTokens"`
	AdditionalMetrics map[string]interface{} `json:"additionalMetrics"`
}

// Session owns all mutable state for one session key. All mutations
// run under its own exclusive lock (mu, below); no field here
// is ever read or written without holding it.
type Session struct {
	mu sync.Mutex

	key string

	// Identity: first-write-wins, empty string means unset.
	organizationID  string
	userAccountUUID string
	userEmail       string
	terminalType    string
	appVersion      string

	// Aggregates.
	totalCostUSD        float64
	inputTokens         int64
	outputTokens        int64
	cacheReadTokens     int64
	cacheCreationTokens int64
	perModelCost        map[string]float64
	perModelTokens      map[string]int64
	linesAdded          int64
	linesRemoved        int64
	commitCount         int64
	prCount             int64
	lastPRAddAt         time.Time
	started             bool
	activeTimeSeconds   float64
	toolDecisions       []ToolDecision
	toolResultCount     int64
	apiErrorCount       int64
	apiCallCount        int64

	// Conversation state.
	conversationIndex   int
	currentTraceHandle  backend.TraceHandle
	hasCurrentTrace     bool
	lastActivityNs      int64
	createdNs           int64

	// Double-counting guard: last event-derived cost timestamp per model,
	// so a metric-derived cost arriving within 2s for the same model is
	// treated as already accounted for by the authoritative event cost.
	lastEventCostAt map[string]time.Time

	finalized bool

	sink   backend.Sink
	logger zerolog.Logger
}
