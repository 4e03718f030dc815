package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func observingPolicy(maxRetries int, initial time.Duration, retryable func(error) bool) (Policy, *[]time.Duration) {
	delays := &[]time.Duration{}
	p := New(maxRetries, initial, retryable, nil)
	p.sleep = func(ctx context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return nil
	}
	return p, delays
}

func TestDoRetriesWithExponentialBackoff(t *testing.T) {
	retryable := errors.New("status 429")
	calls := 0
	p, delays := observingPolicy(5, 100*time.Millisecond, func(err error) bool { return errors.Is(err, retryable) })

	err := p.Do(context.Background(), "generate", func() error {
		calls++
		if calls <= 3 {
			return retryable
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 4 {
		t.Fatalf("calls = %d, want 4", calls)
	}
	want := []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 400 * time.Millisecond}
	if len(*delays) != len(want) {
		t.Fatalf("delays = %v, want %v", *delays, want)
	}
	for i, d := range want {
		if (*delays)[i] != d {
			t.Fatalf("delay[%d] = %v, want %v", i, (*delays)[i], d)
		}
	}
}

func TestDoAbortsOnNonRetryableError(t *testing.T) {
	fatal := errors.New("status 400: bad prompt")
	calls := 0
	p, delays := observingPolicy(5, time.Millisecond, func(err error) bool { return false })

	err := p.Do(context.Background(), "generate", func() error {
		calls++
		return fatal
	})
	if !errors.Is(err, fatal) {
		t.Fatalf("error = %v, want original fatal error", err)
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
	if len(*delays) != 0 {
		t.Fatalf("no backoff expected, got %v", *delays)
	}
}

func TestDoReturnsLastErrorUnchangedOnExhaustion(t *testing.T) {
	transient := errors.New("status 503")
	calls := 0
	p, _ := observingPolicy(2, time.Millisecond, func(err error) bool { return true })

	err := p.Do(context.Background(), "poll", func() error {
		calls++
		return transient
	})
	if !errors.Is(err, transient) {
		t.Fatalf("error = %v, want last transient error unchanged", err)
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3 (initial + 2 retries)", calls)
	}
}

func TestDoStopsWhenContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := New(3, time.Minute, func(err error) bool { return true }, nil)
	calls := 0

	cancel()
	err := p.Do(ctx, "submit", func() error {
		calls++
		return errors.New("status 500")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1 (cancelled before first backoff elapsed)", calls)
	}
}
