package session

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/tracebridge/otlp-bridge/redisclient"
)

// RedisCoordinator adapts a redisclient.Client to the Coordinator
// interface the Registry uses for cross-instance visibility. It is
// best-effort throughout: every call swallows its own errors rather
// than let a Redis outage affect ingest.
type RedisCoordinator struct {
	client     *redisclient.Client
	instanceID string
	leaseTTL   time.Duration
	logger     zerolog.Logger
}

func NewRedisCoordinator(client *redisclient.Client, leaseTTL time.Duration, logger zerolog.Logger) *RedisCoordinator {
	return &RedisCoordinator{
		client:     client,
		instanceID: uuid.NewString(),
		leaseTTL:   leaseTTL,
		logger:     logger.With().Str("component", "redis_coordinator").Logger(),
	}
}

func (c *RedisCoordinator) SessionOpened(ctx context.Context) {
	if err := c.client.IncrActiveSessions(ctx); err != nil {
		c.logger.Debug().Err(err).Msg("incr active sessions failed")
	}
}

func (c *RedisCoordinator) SessionClosed(ctx context.Context) {
	if err := c.client.DecrActiveSessions(ctx); err != nil {
		c.logger.Debug().Err(err).Msg("decr active sessions failed")
	}
}

// TryAcquireSweepLease returns true (proceed with this sweep cycle) on
// any Redis error, so a coordination outage degrades to every
// instance sweeping independently rather than none sweeping at all.
func (c *RedisCoordinator) TryAcquireSweepLease(ctx context.Context) bool {
	ok, err := c.client.TryAcquireSweepLease(ctx, c.instanceID, c.leaseTTL)
	if err != nil {
		c.logger.Debug().Err(err).Msg("sweep lease acquisition failed — sweeping independently")
		return true
	}
	return ok
}

// ClusterActiveSessions reads the shared active-session gauge. Returns
// false on any Redis error so callers fall back to the local count
// rather than surfacing a stale or zero value as authoritative.
func (c *RedisCoordinator) ClusterActiveSessions(ctx context.Context) (int64, bool) {
	count, err := c.client.ActiveSessions(ctx)
	if err != nil {
		c.logger.Debug().Err(err).Msg("reading cluster active sessions failed")
		return 0, false
	}
	return count, true
}
