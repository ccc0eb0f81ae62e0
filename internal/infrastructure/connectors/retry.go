package connectors

import (
	"context"
	"math/rand"
	"time"

	"github.com/fieldbridge/backend/internal/domain/connector"
)

// retryPolicy bounds adapter-local retries. These only smooth over short
// blips; durable retry scheduling with its own backoff lives in the
// orchestrator, keyed off the stored next_retry_at.
type retryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

func defaultRetryPolicy() retryPolicy {
	return retryPolicy{
		MaxAttempts: 3,
		BaseDelay:   200 * time.Millisecond,
		MaxDelay:    2 * time.Second,
	}
}

// callWithRetry runs fn, retrying transient connector errors with
// exponential backoff and jitter. Permanent errors and context
// cancellation return immediately. Callers pass idempotency keys on
// mutating operations, so a retried call never duplicates side effects.
func callWithRetry(ctx context.Context, policy retryPolicy, fn func() error) error {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = defaultRetryPolicy().MaxAttempts
	}
	if policy.BaseDelay <= 0 {
		policy.BaseDelay = defaultRetryPolicy().BaseDelay
	}
	if policy.MaxDelay <= 0 {
		policy.MaxDelay = defaultRetryPolicy().MaxDelay
	}

	var err error
	for attempt := 1; ; attempt++ {
		err = fn()
		if err == nil || !connector.IsTransient(err) || attempt >= policy.MaxAttempts {
			return err
		}

		delay := policy.BaseDelay << (attempt - 1)
		if delay > policy.MaxDelay {
			delay = policy.MaxDelay
		}
		delay += time.Duration(rand.Int63n(int64(delay)/2 + 1))

		select {
		case <-ctx.Done():
			return err
		case <-time.After(delay):
		}
	}
}
