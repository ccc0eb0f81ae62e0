package orchestration

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackoffPolicy(t *testing.T) {
	policy := DefaultBackoffPolicy()

	t.Run("delay doubles up to the cap", func(t *testing.T) {
		for attempt, want := range map[int]time.Duration{
			1: 2 * time.Second,
			2: 4 * time.Second,
			3: 8 * time.Second,
			4: 16 * time.Second,
			5: 32 * time.Second,
			8: 60 * time.Second,
		} {
			d := policy.Delay(attempt)
			assert.GreaterOrEqual(t, d, want, "attempt %d", attempt)
			// Jitter adds at most 20%
			assert.LessOrEqual(t, d, want+want/5, "attempt %d", attempt)
		}
	})

	t.Run("next retry is in the future until exhausted", func(t *testing.T) {
		now := time.Now()
		next := policy.NextRetryAt(1, now)
		require.NotNil(t, next)
		assert.True(t, next.After(now))

		assert.Nil(t, policy.NextRetryAt(5, now))
	})

	t.Run("exhaustion at max attempts", func(t *testing.T) {
		assert.False(t, policy.Exhausted(4))
		assert.True(t, policy.Exhausted(5))
		assert.True(t, policy.Exhausted(6))
	})
}
