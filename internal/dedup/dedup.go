// Package dedup gates duplicate copy signals for the same (wallet,
// token, side) within a sliding time window. Backed by Redis when
// configured so multiple process instances share state; falls back to an
// in-process mutex map otherwise.
package dedup

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Gate reports whether a (wallet, tokenID, side) key has already fired
// within the configured window.
type Gate interface {
	// Seen returns true if the key fired within the window, without
	// recording this occurrence (a repeat does not extend the window);
	// false, recording it, if it's new.
	Seen(ctx context.Context, wallet, tokenID, side string, window time.Duration) (bool, error)
}

// memGate is the in-process fallback, used when no Redis URL is configured.
type memGate struct {
	mu   sync.Mutex
	seen map[string]time.Time
}

// NewMemGate builds an in-process dedup gate.
func NewMemGate() Gate {
	return &memGate{seen: make(map[string]time.Time)}
}

func (g *memGate) Seen(_ context.Context, wallet, tokenID, side string, window time.Duration) (bool, error) {
	key := dedupKey(wallet, tokenID, side)
	now := time.Now()

	g.mu.Lock()
	defer g.mu.Unlock()

	if at, ok := g.seen[key]; ok && now.Sub(at) < window {
		return true, nil
	}
	g.seen[key] = now
	return false, nil
}

// redisGate shares dedup state across process instances via a Redis
// SET-with-TTL, using SetNX to make the check-and-record atomic.
type redisGate struct {
	client *redis.Client
}

// NewRedisGate builds a dedup gate backed by the given Redis client.
func NewRedisGate(client *redis.Client) Gate {
	return &redisGate{client: client}
}

func (g *redisGate) Seen(ctx context.Context, wallet, tokenID, side string, window time.Duration) (bool, error) {
	key := "polybot:dedup:" + dedupKey(wallet, tokenID, side)
	ok, err := g.client.SetNX(ctx, key, "1", window).Result()
	if err != nil {
		return false, err
	}
	// SetNX returns true when the key was newly set (not seen before).
	return !ok, nil
}

func dedupKey(wallet, tokenID, side string) string {
	return fmt.Sprintf("%s:%s:%s", wallet, tokenID, side)
}
