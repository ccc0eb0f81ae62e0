package orchestration

import (
	"math/rand"
	"time"
)

// BackoffPolicy computes retry delays for transient external failures.
// The delay doubles per attempt from Base up to Cap, with up to 20% random
// jitter added so retries from many requests do not line up.
type BackoffPolicy struct {
	Base        time.Duration
	Cap         time.Duration
	MaxAttempts int
}

// DefaultBackoffPolicy returns the standard retry policy
func DefaultBackoffPolicy() BackoffPolicy {
	return BackoffPolicy{
		Base:        2 * time.Second,
		Cap:         60 * time.Second,
		MaxAttempts: 5,
	}
}

// Delay returns the backoff delay after the given attempt number (1-based)
func (p BackoffPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := p.Base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= p.Cap {
			d = p.Cap
			break
		}
	}
	jitter := time.Duration(rand.Int63n(int64(d)/5 + 1))
	return d + jitter
}

// NextRetryAt returns the absolute time of the next retry after the given
// attempt, or nil when the retry budget is exhausted.
func (p BackoffPolicy) NextRetryAt(attempt int, now time.Time) *time.Time {
	if p.Exhausted(attempt) {
		return nil
	}
	at := now.Add(p.Delay(attempt))
	return &at
}

// Exhausted reports whether the attempt number has used up the retry budget
func (p BackoffPolicy) Exhausted(attempt int) bool {
	return attempt >= p.MaxAttempts
}
