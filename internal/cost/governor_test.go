package cost

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGovernorTracksSessionsSeparately(t *testing.T) {
	ctx := context.Background()
	g := NewGovernor(DefaultCeilingUSD, nil)
	assert.Equal(t, DefaultCeilingUSD, g.Ceiling())

	remaining, err := g.Remaining(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, DefaultCeilingUSD, remaining)

	total, err := g.Charge(ctx, "a", 0.0004)
	require.NoError(t, err)
	assert.InDelta(t, 0.0004, total, 1e-12)

	remaining, err = g.Remaining(ctx, "a")
	require.NoError(t, err)
	assert.InDelta(t, 0.0006, remaining, 1e-12)

	remaining, err = g.Remaining(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, DefaultCeilingUSD, remaining)
}

func TestGovernorExhausted(t *testing.T) {
	ctx := context.Background()
	g := NewGovernor(DefaultCeilingUSD, NewMemoryLedger())

	ok, err := g.Allow(ctx, "s")
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = g.Charge(ctx, "s", 0.0015)
	require.NoError(t, err)

	remaining, err := g.Remaining(ctx, "s")
	require.NoError(t, err)
	assert.Equal(t, 0.0, remaining)

	ok, err = g.Allow(ctx, "s")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGovernorIgnoresNonPositiveCharges(t *testing.T) {
	ctx := context.Background()
	g := NewGovernor(DefaultCeilingUSD, nil)
	_, err := g.Charge(ctx, "s", 0.0002)
	require.NoError(t, err)

	total, err := g.Charge(ctx, "s", 0)
	require.NoError(t, err)
	assert.InDelta(t, 0.0002, total, 1e-12)

	total, err = g.Charge(ctx, "s", -1)
	require.NoError(t, err)
	assert.InDelta(t, 0.0002, total, 1e-12)
}

func TestMemoryLedgerConcurrentAdds(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLedger()

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = l.Add(ctx, "s", 0.00001)
		}()
	}
	wg.Wait()

	spent, err := l.Spent(ctx, "s")
	require.NoError(t, err)
	assert.InDelta(t, 0.001, spent, 1e-9)
}
