package guard_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/pushkit/pkg/guard"
)

func bucketCfg(capacity int) guard.BucketConfig {
	return guard.BucketConfig{
		Capacity:       capacity,
		RefillRate:     capacity,
		RefillInterval: time.Minute,
	}
}

func TestMemoryStore_ConsumeTokens(t *testing.T) {
	store := guard.NewMemoryStore(guard.WithCleanupInterval(0))
	defer store.Close()
	ctx := context.Background()

	cfg := bucketCfg(3)

	for i := 2; i >= 0; i-- {
		remaining, _, err := store.ConsumeTokens(ctx, "k", 1, cfg)
		require.NoError(t, err)
		assert.Equal(t, i, remaining)
	}

	remaining, resetAt, err := store.ConsumeTokens(ctx, "k", 1, cfg)
	require.NoError(t, err)
	assert.Negative(t, remaining)
	assert.True(t, resetAt.After(time.Now()))
}

func TestMemoryStore_IndependentKeys(t *testing.T) {
	store := guard.NewMemoryStore(guard.WithCleanupInterval(0))
	defer store.Close()
	ctx := context.Background()

	cfg := bucketCfg(1)

	remaining, _, err := store.ConsumeTokens(ctx, "a", 1, cfg)
	require.NoError(t, err)
	assert.Equal(t, 0, remaining)

	remaining, _, err = store.ConsumeTokens(ctx, "b", 1, cfg)
	require.NoError(t, err)
	assert.Equal(t, 0, remaining, "key b must have its own bucket")
}

func TestMemoryStore_Refill(t *testing.T) {
	store := guard.NewMemoryStore(guard.WithCleanupInterval(0))
	defer store.Close()
	ctx := context.Background()

	cfg := guard.BucketConfig{Capacity: 2, RefillRate: 2, RefillInterval: 30 * time.Millisecond}

	for i := 0; i < 2; i++ {
		_, _, err := store.ConsumeTokens(ctx, "k", 1, cfg)
		require.NoError(t, err)
	}
	remaining, _, err := store.ConsumeTokens(ctx, "k", 1, cfg)
	require.NoError(t, err)
	require.Negative(t, remaining)

	time.Sleep(60 * time.Millisecond)

	remaining, _, err = store.ConsumeTokens(ctx, "k", 1, cfg)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, remaining, 0, "tokens must refill after the interval")
}

func TestMemoryStore_Reset(t *testing.T) {
	store := guard.NewMemoryStore(guard.WithCleanupInterval(0))
	defer store.Close()
	ctx := context.Background()

	cfg := bucketCfg(1)
	_, _, err := store.ConsumeTokens(ctx, "k", 1, cfg)
	require.NoError(t, err)

	require.NoError(t, store.Reset(ctx, "k"))

	remaining, _, err := store.ConsumeTokens(ctx, "k", 1, cfg)
	require.NoError(t, err)
	assert.Equal(t, 0, remaining, "reset must restore a full bucket")
}

func TestMemoryStore_ConcurrentConsume(t *testing.T) {
	store := guard.NewMemoryStore(guard.WithCleanupInterval(0))
	defer store.Close()
	ctx := context.Background()

	cfg := bucketCfg(100)

	var wg sync.WaitGroup
	allowed := make(chan struct{}, 200)
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			remaining, _, err := store.ConsumeTokens(ctx, "k", 1, cfg)
			if err == nil && remaining >= 0 {
				allowed <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(allowed)

	count := 0
	for range allowed {
		count++
	}
	assert.Equal(t, 100, count, "exactly the capacity must be admitted under contention")
}
