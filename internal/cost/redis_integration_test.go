//go:build integration

package cost

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisLedgerLive(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()
	ctx := context.Background()
	require.NoError(t, client.Ping(ctx).Err())

	l := NewRedisLedger(client, "fieldmapper:test", time.Minute)
	session := uuid.NewString()
	defer client.Del(ctx, l.key(session))

	spent, err := l.Spent(ctx, session)
	require.NoError(t, err)
	assert.Equal(t, 0.0, spent)

	g := NewGovernor(DefaultCeilingUSD, l)
	_, err = g.Charge(ctx, session, 0.0007)
	require.NoError(t, err)
	total, err := g.Charge(ctx, session, 0.0005)
	require.NoError(t, err)
	assert.InDelta(t, 0.0012, total, 1e-9)

	ok, err := g.Allow(ctx, session)
	require.NoError(t, err)
	assert.False(t, ok)

	ttl, err := client.TTL(ctx, l.key(session)).Result()
	require.NoError(t, err)
	assert.Positive(t, ttl)
}
