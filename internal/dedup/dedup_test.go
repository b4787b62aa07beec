package dedup

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemGateFirstSeenIsFalse(t *testing.T) {
	g := NewMemGate()
	seen, err := g.Seen(context.Background(), "0xabc", "token-1", "BUY", time.Minute)
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestMemGateRepeatWithinWindowIsTrue(t *testing.T) {
	g := NewMemGate()
	ctx := context.Background()

	seen, err := g.Seen(ctx, "0xabc", "token-1", "BUY", time.Minute)
	require.NoError(t, err)
	assert.False(t, seen)

	seen, err = g.Seen(ctx, "0xabc", "token-1", "BUY", time.Minute)
	require.NoError(t, err)
	assert.True(t, seen)
}

func TestMemGateExpiresAfterWindow(t *testing.T) {
	g := NewMemGate()
	ctx := context.Background()
	window := 10 * time.Millisecond

	seen, err := g.Seen(ctx, "0xabc", "token-1", "BUY", window)
	require.NoError(t, err)
	assert.False(t, seen)

	time.Sleep(2 * window)

	seen, err = g.Seen(ctx, "0xabc", "token-1", "BUY", window)
	require.NoError(t, err)
	assert.False(t, seen, "key should have expired out of the dedup window")
}

func TestMemGateDistinctKeysAreIndependent(t *testing.T) {
	g := NewMemGate()
	ctx := context.Background()

	seen, err := g.Seen(ctx, "0xabc", "token-1", "BUY", time.Minute)
	require.NoError(t, err)
	assert.False(t, seen)

	// Different side on the same (wallet, token) is a distinct key.
	seen, err = g.Seen(ctx, "0xabc", "token-1", "SELL", time.Minute)
	require.NoError(t, err)
	assert.False(t, seen)

	// Different wallet on the same (token, side) is a distinct key.
	seen, err = g.Seen(ctx, "0xdef", "token-1", "BUY", time.Minute)
	require.NoError(t, err)
	assert.False(t, seen)
}

// TestRedisGateSeenTTL exercises the distributed gate's SetNX-based
// check-and-record against a real Redis instance. Skipped when one isn't
// reachable (no Redis is started for unit-test runs of this package).
func TestRedisGateSeenTTL(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:6379"})
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skip("no local redis reachable, skipping redisGate integration test:", err)
	}

	g := NewRedisGate(client)
	window := 50 * time.Millisecond

	seen, err := g.Seen(context.Background(), "0xabc", "token-1", "BUY", window)
	require.NoError(t, err)
	assert.False(t, seen)

	seen, err = g.Seen(context.Background(), "0xabc", "token-1", "BUY", window)
	require.NoError(t, err)
	assert.True(t, seen)

	time.Sleep(2 * window)

	seen, err = g.Seen(context.Background(), "0xabc", "token-1", "BUY", window)
	require.NoError(t, err)
	assert.False(t, seen, "redis key should have expired via TTL")
}
