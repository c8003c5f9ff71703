// Package redisclient wraps the optional Redis connection used for
// cross-instance session coordination (see SPEC_FULL.md §4.13). It is
// never required: the bridge runs single-instance with no persisted
// state when REDIS_URL is unset.
package redisclient

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/tracebridge/otlp-bridge/config"
)

const (
	activeSessionsKey = "bridge:active_sessions"
	sweepLeaseKey     = "bridge:sweep_lease"
)

type Client struct {
	c *redis.Client
}

// New creates a Redis client from the provided config. Returns an error
// if the Redis URL cannot be parsed.
func New(cfg *config.Config) (*Client, error) {
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	r := redis.NewClient(opt)
	return &Client{c: r}, nil
}

func (r *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return r.c.Ping(ctx).Err()
}

func (r *Client) Close() error {
	return r.c.Close()
}

// IncrActiveSessions increments the shared active-session gauge. This
// is a plain counter, not a membership set: it is advisory telemetry,
// never consulted to decide correctness, so drift under a crash
// (counter incremented, decrement never runs) is harmless. Nothing
// here resets the counter, so such drift persists.
func (r *Client) IncrActiveSessions(ctx context.Context) error {
	return r.c.Incr(ctx, activeSessionsKey).Err()
}

func (r *Client) DecrActiveSessions(ctx context.Context) error {
	return r.c.Decr(ctx, activeSessionsKey).Err()
}

func (r *Client) ActiveSessions(ctx context.Context) (int64, error) {
	return r.c.Get(ctx, activeSessionsKey).Int64()
}

// TryAcquireSweepLease attempts to become the instance responsible for
// this sweep cycle via SET NX with the given TTL. Losing the race is not an error: it means another
// instance already owns this cycle.
func (r *Client) TryAcquireSweepLease(ctx context.Context, owner string, ttl time.Duration) (bool, error) {
	return r.c.SetNX(ctx, sweepLeaseKey, owner, ttl).Result()
}
