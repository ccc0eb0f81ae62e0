package connectors

import (
	"context"
	"testing"
	"time"

	"github.com/fieldbridge/backend/internal/domain/connector"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastPolicy(attempts int) retryPolicy {
	return retryPolicy{
		MaxAttempts: attempts,
		BaseDelay:   time.Millisecond,
		MaxDelay:    5 * time.Millisecond,
	}
}

func TestCallWithRetry(t *testing.T) {
	transient := connector.NewTransientError("erp", "CreateOrder", 503, assert.AnError)
	permanent := connector.NewPermanentError("erp", "CreateOrder", 422, assert.AnError)

	t.Run("succeeds after transient failures", func(t *testing.T) {
		calls := 0
		err := callWithRetry(context.Background(), fastPolicy(3), func() error {
			calls++
			if calls < 3 {
				return transient
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("permanent errors are not retried", func(t *testing.T) {
		calls := 0
		err := callWithRetry(context.Background(), fastPolicy(3), func() error {
			calls++
			return permanent
		})
		require.Error(t, err)
		assert.True(t, connector.IsPermanent(err))
		assert.Equal(t, 1, calls)
	})

	t.Run("returns the last error after exhausting attempts", func(t *testing.T) {
		calls := 0
		err := callWithRetry(context.Background(), fastPolicy(3), func() error {
			calls++
			return transient
		})
		require.Error(t, err)
		assert.True(t, connector.IsTransient(err))
		assert.Equal(t, 3, calls)
	})

	t.Run("stops when the context is cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		calls := 0
		err := callWithRetry(ctx, fastPolicy(5), func() error {
			calls++
			return transient
		})
		require.Error(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("zero-value policy falls back to defaults", func(t *testing.T) {
		calls := 0
		err := callWithRetry(context.Background(), retryPolicy{BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}, func() error {
			calls++
			return transient
		})
		require.Error(t, err)
		assert.Equal(t, defaultRetryPolicy().MaxAttempts, calls)
	})
}
