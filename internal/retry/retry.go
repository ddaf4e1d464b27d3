// Package retry provides a bounded retry loop with fixed or growing delays.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrExhausted is returned when every attempt failed.
var ErrExhausted = errors.New("retry budget exhausted")

// Policy bounds the number of consecutive attempts.
type Policy struct {
	Attempts   int
	Delay      time.Duration
	Multiplier float64 // values <= 1 keep the delay fixed
}

// Fixed returns a policy with a constant delay between attempts.
func Fixed(attempts int, delay time.Duration) Policy {
	return Policy{Attempts: attempts, Delay: delay}
}

// Exponential returns a policy whose delay doubles after each failure.
func Exponential(attempts int, initial time.Duration) Policy {
	return Policy{Attempts: attempts, Delay: initial, Multiplier: 2}
}

func (p Policy) delay(attempt int) time.Duration {
	d := p.Delay
	if p.Multiplier > 1 {
		for i := 1; i < attempt; i++ {
			d = time.Duration(float64(d) * p.Multiplier)
		}
	}
	return d
}

// FailureFunc observes a failed attempt (1-based) before the next delay.
type FailureFunc func(attempt int, err error)

// Do runs op until it succeeds, the policy is exhausted, or ctx is done.
// No delay follows the final failed attempt.
func Do(ctx context.Context, p Policy, op func(ctx context.Context) error, onFailure FailureFunc) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := op(ctx)
		if err == nil {
			return nil
		}
		lastErr = err
		if onFailure != nil {
			onFailure(attempt, err)
		}
		if attempt == attempts {
			break
		}
		if d := p.delay(attempt); d > 0 {
			timer := time.NewTimer(d)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
	}
	return fmt.Errorf("%w after %d attempts: %w", ErrExhausted, attempts, lastErr)
}
