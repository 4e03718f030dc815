// Package retry provides a reusable backoff executor for remote calls.
package retry

import (
	"context"
	"io"
	"time"

	"github.com/rs/zerolog"

	"server/internal/infra"
)

// Policy wraps an operation with bounded retries and exponential backoff.
// The delay before attempt n (n >= 2) is InitialDelay * 2^(n-2); there is no
// jitter. IsRetryable classifies the last error; a non-retryable error aborts
// immediately and is returned unmodified, as is the last error once retries
// are exhausted, so callers can inspect the original provider response.
type Policy struct {
	MaxRetries   int
	InitialDelay time.Duration
	IsRetryable  func(error) bool
	Logger       *infra.Logger

	// sleep is swapped in tests to observe delays without waiting.
	sleep func(ctx context.Context, d time.Duration) error
}

// New builds a policy with the given bounds. A nil isRetryable retries nothing.
func New(maxRetries int, initialDelay time.Duration, isRetryable func(error) bool, logger *infra.Logger) Policy {
	return Policy{
		MaxRetries:   maxRetries,
		InitialDelay: initialDelay,
		IsRetryable:  isRetryable,
		Logger:       logger,
	}
}

// Do runs fn up to MaxRetries+1 times. The op name only feeds log fields.
func (p Policy) Do(ctx context.Context, op string, fn func() error) error {
	logger := p.logger()
	wait := p.sleep
	if wait == nil {
		wait = sleepContext
	}

	var lastErr error
	for attempt := 1; attempt <= p.MaxRetries+1; attempt++ {
		if attempt > 1 {
			delay := p.InitialDelay << (attempt - 2)
			logger.Debug().
				Str("op", op).
				Int("attempt", attempt).
				Dur("delay", delay).
				Msg("retry: backing off")
			if err := wait(ctx, delay); err != nil {
				return err
			}
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if p.IsRetryable == nil || !p.IsRetryable(lastErr) {
			return lastErr
		}
		logger.Warn().
			Err(lastErr).
			Str("op", op).
			Int("attempt", attempt).
			Msg("retry: transient failure")
	}
	return lastErr
}

func (p Policy) logger() infra.Logger {
	if p.Logger != nil {
		return *p.Logger
	}
	return zerolog.New(io.Discard)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
