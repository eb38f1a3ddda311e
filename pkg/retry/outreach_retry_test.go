package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestPolicyRetriesUntilSuccess(t *testing.T) {
	p := Policy{
		MaxAttempts: 4,
		Delays:      []time.Duration{time.Millisecond},
	}

	calls := 0
	err := p.Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})

	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestPolicyExhaustsBudget(t *testing.T) {
	p := Policy{
		MaxAttempts: 4,
		Delays:      []time.Duration{time.Millisecond},
	}

	failure := errors.New("still down")
	calls := 0
	err := p.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return failure
	})

	if !errors.Is(err, failure) {
		t.Fatalf("expected final error to surface, got %v", err)
	}
	if calls != 4 {
		t.Errorf("expected 4 attempts, got %d", calls)
	}
}

func TestPolicyStopsOnNonRetryable(t *testing.T) {
	fatal := errors.New("401")
	p := Policy{
		MaxAttempts: 4,
		Delays:      []time.Duration{time.Millisecond},
		Retryable:   func(err error) bool { return !errors.Is(err, fatal) },
	}

	calls := 0
	err := p.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return fatal
	})

	if !errors.Is(err, fatal) {
		t.Fatalf("expected fatal error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call for non-retryable error, got %d", calls)
	}
}

func TestPolicyZeroValueRunsOnce(t *testing.T) {
	var p Policy

	calls := 0
	_ = p.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return errors.New("nope")
	})

	if calls != 1 {
		t.Errorf("expected exactly 1 call, got %d", calls)
	}
}

func TestPolicyHonorsContextCancellation(t *testing.T) {
	p := Policy{
		MaxAttempts: 3,
		Delays:      []time.Duration{time.Minute},
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := p.Do(ctx, func(ctx context.Context) error {
		return errors.New("transient")
	})

	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestAPIBackoffSchedule(t *testing.T) {
	p := APIBackoff()

	if p.MaxAttempts != 4 {
		t.Errorf("expected 4 attempts (3 retries), got %d", p.MaxAttempts)
	}
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}
	if len(p.Delays) != len(want) {
		t.Fatalf("expected %d delays, got %d", len(want), len(p.Delays))
	}
	for i, d := range want {
		if p.Delays[i] != d {
			t.Errorf("delay %d: expected %v, got %v", i, d, p.Delays[i])
		}
	}
}
