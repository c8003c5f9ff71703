package session

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/tracebridge/otlp-bridge/backend"
	"github.com/tracebridge/otlp-bridge/telemetry"
)

// Coordinator is the optional distributed-coordination hook a Registry
// can report active-session counts and sweep leases through. A nil
// Coordinator makes the registry single-instance only.
type Coordinator interface {
	SessionOpened(ctx context.Context)
	SessionClosed(ctx context.Context)
	TryAcquireSweepLease(ctx context.Context) bool

	// ClusterActiveSessions returns the cross-replica active-session
	// count for /health, and false if it could not be read (e.g. a
	// transient Redis error).
	ClusterActiveSessions(ctx context.Context) (int64, bool)
}

// Registry owns every live Session, keyed by session key. Creation
// races are serialized per key via a keyedMutex so two concurrent
// first-sightings of the same key never create two Sessions.
type Registry struct {
	sink   backend.Sink
	logger zerolog.Logger
	coord  Coordinator

	// timeoutFn returns the currently effective idle timeout. Reading it
	// on every sweep tick (rather than caching a fixed value) is what
	// lets SESSION_TIMEOUT hot-reload take effect without a restart,
	// the same way logger.syncLevel tracks cfg.HotLogLevel().
	timeoutFn func() time.Duration

	km *keyedMutex

	mu       sync.RWMutex
	sessions map[string]*Session

	cancel context.CancelFunc
	done   chan struct{}
}

// NewRegistry builds a registry. timeoutFn is called on every sweep
// tick to get the current idle threshold (default 3600s per the spec
// if timeoutFn is nil); pass config.Config.HotSessionTimeout for
// SESSION_TIMEOUT hot-reload, or a fixed closure in tests. coord may
// be nil.
func NewRegistry(sink backend.Sink, logger zerolog.Logger, timeoutFn func() time.Duration, coord Coordinator) *Registry {
	if timeoutFn == nil {
		timeoutFn = func() time.Duration { return 3600 * time.Second }
	}
	return &Registry{
		sink:      sink,
		logger:    logger.With().Str("component", "session_registry").Logger(),
		coord:     coord,
		timeoutFn: timeoutFn,
		km:        newKeyedMutex(),
		sessions:  make(map[string]*Session),
		done:      make(chan struct{}),
	}
}

// GetOrCreate returns the session for key, creating it with now as its
// creation time if it does not already exist.
func (r *Registry) GetOrCreate(ctx context.Context, key string, now time.Time) *Session {
	r.mu.RLock()
	s, ok := r.sessions[key]
	r.mu.RUnlock()
	if ok {
		return s
	}

	unlock := r.km.lock(key)
	defer unlock()

	r.mu.RLock()
	s, ok = r.sessions[key]
	r.mu.RUnlock()
	if ok {
		return s
	}

	s = New(key, now, r.sink, r.logger)
	r.mu.Lock()
	r.sessions[key] = s
	count := len(r.sessions)
	r.mu.Unlock()

	r.logger.Debug().Str("session_key", key).Int("active_sessions", count).Msg("session opened")
	telemetry.RecordSessionOpened(ctx)
	if r.coord != nil {
		r.coord.SessionOpened(ctx)
	}
	return s
}

// Get returns the session for key if it exists, without creating one.
func (r *Registry) Get(key string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[key]
	return s, ok
}

// finalizeAndRemove finalizes s (idempotent) and removes it from the
// registry. Call with the registry lock not held.
func (r *Registry) finalizeAndRemove(ctx context.Context, key string, s *Session) {
	createdNs := s.CreatedNs()
	s.Finalize(ctx)
	r.mu.Lock()
	delete(r.sessions, key)
	count := len(r.sessions)
	r.mu.Unlock()
	r.logger.Debug().Str("session_key", key).Int("active_sessions", count).Msg("session finalized and removed")
	telemetry.RecordSessionFinalized(ctx, time.Since(time.Unix(0, createdNs)))
	if r.coord != nil {
		r.coord.SessionClosed(ctx)
	}
}

// Start begins the background idle sweeper, grounded on the gateway's
// health poller: sweep on a ticker until Stop (no sweep at startup). The
// tick cadence is derived once from the timeout in effect at startup;
// the threshold itself is re-read from timeoutFn on every tick, so a
// hot-reloaded SESSION_TIMEOUT still takes effect without a restart.
func (r *Registry) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel

	timeout := r.timeoutFn()
	interval := timeout / 4
	if interval < 30*time.Second {
		interval = 30 * time.Second
	}

	r.logger.Info().Dur("idle_timeout", timeout).Dur("sweep_interval", interval).Msg("starting session sweeper")
	go r.sweepLoop(ctx, interval)
}

// Stop cancels the sweeper and waits for it to exit, then finalizes
// every remaining session (used during process shutdown).
func (r *Registry) Stop(ctx context.Context) {
	if r.cancel != nil {
		r.cancel()
		<-r.done
	}
	r.finalizeAll(ctx)
}

func (r *Registry) sweepLoop(ctx context.Context, interval time.Duration) {
	defer close(r.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.sweep(ctx)
		}
	}
}

func (r *Registry) sweep(ctx context.Context) {
	if r.coord != nil && !r.coord.TryAcquireSweepLease(ctx) {
		r.logger.Debug().Msg("sweep lease held elsewhere — skipping this cycle")
		return
	}

	timeout := r.timeoutFn()
	now := time.Now()
	r.mu.RLock()
	idle := make([]*Session, 0)
	for _, s := range r.sessions {
		if now.Sub(time.Unix(0, s.LastActivityNs())) >= timeout {
			idle = append(idle, s)
		}
	}
	r.mu.RUnlock()

	for _, s := range idle {
		r.finalizeAndRemove(ctx, s.Key(), s)
	}
	if len(idle) > 0 {
		r.logger.Info().Int("swept", len(idle)).Msg("idle sessions finalized")
	}
}

func (r *Registry) finalizeAll(ctx context.Context) {
	r.mu.RLock()
	all := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		all = append(all, s)
	}
	r.mu.RUnlock()

	for _, s := range all {
		r.finalizeAndRemove(ctx, s.Key(), s)
	}
}

// Active returns the current number of live sessions on this instance.
func (r *Registry) Active() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Coordinator returns the registry's Coordinator, or nil when running
// single-instance. Exposed so /health can surface the cross-replica
// session count described in SPEC_FULL.md §4.13.
func (r *Registry) Coordinator() Coordinator {
	return r.coord
}
