package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"appdeck/internal/domain/model"
)

// Class is the retry classification of an apply failure.
type Class int

const (
	ClassNone Class = iota
	ClassTimeout
	ClassOther
)

func (c Class) String() string {
	switch c {
	case ClassNone:
		return "none"
	case ClassTimeout:
		return "timeout"
	default:
		return "other"
	}
}

// Classify inspects the error type only, never process output.
func Classify(err error) Class {
	switch {
	case err == nil:
		return ClassNone
	case errors.Is(err, model.ErrApplyTimeout), errors.Is(err, context.DeadlineExceeded):
		return ClassTimeout
	default:
		return ClassOther
	}
}

// Policy bounds retries of timed out operations and extends the timeout
// budget on each retry.
type Policy struct {
	MaxRetries int
	Factor     float64
}

// DefaultPolicy retries a timeout once with a 1.5x budget.
func DefaultPolicy() Policy {
	return Policy{MaxRetries: 1, Factor: 1.5}
}

// Next decides what happens after attempt (zero based) failed with err under
// timeout. It returns the budget for the next attempt and whether to retry.
// The returned budget is always strictly larger than timeout.
func (p Policy) Next(attempt int, err error, timeout time.Duration) (time.Duration, bool) {
	if Classify(err) != ClassTimeout || attempt >= p.MaxRetries {
		return 0, false
	}
	factor := p.Factor
	if factor <= 1 {
		factor = 1.5
	}
	next := time.Duration(float64(timeout) * factor)
	if next <= timeout {
		next = timeout + time.Second
	}
	return next, true
}

// Do runs op until it succeeds, fails with a non-timeout error or the
// retries are exhausted. onRetry, when set, is called before each retry.
func (p Policy) Do(ctx context.Context, timeout time.Duration, op func(ctx context.Context, timeout time.Duration) error, onRetry func(attempt int, next time.Duration, err error)) error {
	for attempt := 0; ; attempt++ {
		err := op(ctx, timeout)
		if err == nil {
			return nil
		}
		next, retry := p.Next(attempt, err, timeout)
		if !retry {
			if attempt > 0 && Classify(err) == ClassTimeout {
				return fmt.Errorf("timed out after %d retry: %w", attempt, err)
			}
			return err
		}
		if ctx.Err() != nil {
			return err
		}
		if onRetry != nil {
			onRetry(attempt+1, next, err)
		}
		timeout = next
	}
}
