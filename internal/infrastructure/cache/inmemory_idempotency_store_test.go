package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryIdempotencyStore(t *testing.T) {
	ctx := context.Background()

	t.Run("first mark wins, duplicates are rejected", func(t *testing.T) {
		store := NewInMemoryIdempotencyStore()
		defer store.Close()

		fresh, err := store.MarkProcessed(ctx, "itsm:corr-1:ticket.closed", time.Minute)
		require.NoError(t, err)
		assert.True(t, fresh)

		fresh, err = store.MarkProcessed(ctx, "itsm:corr-1:ticket.closed", time.Minute)
		require.NoError(t, err)
		assert.False(t, fresh)

		processed, err := store.IsProcessed(ctx, "itsm:corr-1:ticket.closed")
		require.NoError(t, err)
		assert.True(t, processed)
	})

	t.Run("expired entries can be claimed again", func(t *testing.T) {
		store := NewInMemoryIdempotencyStore()
		defer store.Close()

		_, err := store.MarkProcessed(ctx, "ev-1", time.Millisecond)
		require.NoError(t, err)
		time.Sleep(5 * time.Millisecond)

		processed, err := store.IsProcessed(ctx, "ev-1")
		require.NoError(t, err)
		assert.False(t, processed)

		fresh, err := store.MarkProcessed(ctx, "ev-1", time.Minute)
		require.NoError(t, err)
		assert.True(t, fresh)
	})

	t.Run("exactly one concurrent claimer wins", func(t *testing.T) {
		store := NewInMemoryIdempotencyStore()
		defer store.Close()

		var wg sync.WaitGroup
		var mu sync.Mutex
		winners := 0
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				fresh, err := store.MarkProcessed(ctx, "contested", time.Minute)
				require.NoError(t, err)
				if fresh {
					mu.Lock()
					winners++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, 1, winners)
	})

	t.Run("released marks can be claimed again", func(t *testing.T) {
		store := NewInMemoryIdempotencyStore()
		defer store.Close()

		fresh, err := store.MarkProcessed(ctx, "itsm:corr-9:ticket.approved", time.Minute)
		require.NoError(t, err)
		require.True(t, fresh)

		require.NoError(t, store.Release(ctx, "itsm:corr-9:ticket.approved"))

		fresh, err = store.MarkProcessed(ctx, "itsm:corr-9:ticket.approved", time.Minute)
		require.NoError(t, err)
		assert.True(t, fresh)
	})

	t.Run("close is idempotent", func(t *testing.T) {
		store := NewInMemoryIdempotencyStore()
		assert.NoError(t, store.Close())
		assert.NoError(t, store.Close())
	})
}
