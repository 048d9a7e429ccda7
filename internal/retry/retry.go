// Package retry provides a bounded fixed-delay retry policy shared by the
// remote-write call sites.
package retry

import (
	"context"
	"time"
)

// Policy retries an operation a bounded number of times with a fixed delay
// between attempts. Only errors accepted by Retryable are retried; any other
// error aborts immediately.
type Policy struct {
	MaxAttempts int
	Delay       time.Duration
	Retryable   func(error) bool
}

// Do runs fn until it succeeds, returns a non-retryable error, exhausts
// MaxAttempts, or the context is done. The delay sleep honors context
// cancellation.
func (p Policy) Do(ctx context.Context, fn func() error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if p.Retryable != nil && !p.Retryable(err) {
			return err
		}
		if attempt == attempts {
			break
		}
		select {
		case <-time.After(p.Delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}
