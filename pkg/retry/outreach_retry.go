// Package retry provides the shared retry/backoff policy used by every
// outbound integration.
package retry

import (
	"context"
	"time"
)

// Policy describes a bounded retry schedule. The zero value never retries.
type Policy struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int
	// Delays is the wait before each retry. Delays[0] precedes attempt 2.
	// When there are more retries than delays the last delay repeats.
	Delays []time.Duration
	// Retryable decides whether an error is worth another attempt.
	// A nil predicate retries every error.
	Retryable func(error) bool
}

// APIBackoff is the schedule for downstream HTTP APIs: three retries with
// fixed exponential delays, no jitter.
func APIBackoff() Policy {
	return Policy{
		MaxAttempts: 4,
		Delays:      []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second},
	}
}

// ModelCallBackoff is the schedule for LLM invocations: one retry after a
// short fixed wait.
func ModelCallBackoff() Policy {
	return Policy{
		MaxAttempts: 2,
		Delays:      []time.Duration{500 * time.Millisecond},
	}
}

// Do runs fn until it succeeds, exhausts the attempt budget, or hits a
// non-retryable error. Waits are context-aware; cancellation surfaces as
// ctx.Err().
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			if waitErr := p.wait(ctx, attempt-1); waitErr != nil {
				return waitErr
			}
		}

		if err = fn(ctx); err == nil {
			return nil
		}
		if p.Retryable != nil && !p.Retryable(err) {
			return err
		}
	}
	return err
}

func (p Policy) wait(ctx context.Context, retry int) error {
	if len(p.Delays) == 0 {
		return nil
	}
	if retry >= len(p.Delays) {
		retry = len(p.Delays) - 1
	}

	timer := time.NewTimer(p.Delays[retry])
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
