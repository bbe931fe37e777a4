package fn

import (
	"context"
	"errors"
	"math/rand"
	"time"
)

// RetryOpts configures retry behavior.
type RetryOpts struct {
	MaxAttempts int
	InitialWait time.Duration
	MaxWait     time.Duration
	Jitter      bool
	// Retryable decides whether an error is worth another attempt.
	// Nil retries every error except context cancellation.
	Retryable func(error) bool
	// OnRetry is called before each backoff sleep.
	OnRetry func(attempt int, wait time.Duration, err error)
}

// NoRetry runs the call exactly once.
var NoRetry = RetryOpts{MaxAttempts: 1}

// DefaultRetry provides bounded exponential backoff.
var DefaultRetry = RetryOpts{
	MaxAttempts: 3,
	InitialWait: 200 * time.Millisecond,
	MaxWait:     5 * time.Second,
	Jitter:      true,
}

func (o RetryOpts) retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if o.Retryable != nil {
		return o.Retryable(err)
	}
	return true
}

// Retry retries f up to MaxAttempts times with exponential backoff.
func Retry[T any](ctx context.Context, opts RetryOpts, f func(context.Context) Result[T]) Result[T] {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 1
	}
	var result Result[T]
	wait := opts.InitialWait

	for attempt := 0; attempt < opts.MaxAttempts; attempt++ {
		result = f(ctx)
		if result.IsOk() {
			return result
		}
		if attempt == opts.MaxAttempts-1 || !opts.retryable(result.err) {
			break
		}
		if ctx.Err() != nil {
			return Err[T](ctx.Err())
		}

		sleepDur := wait
		if opts.Jitter {
			sleepDur = time.Duration(float64(wait) * (0.5 + rand.Float64()))
		}
		if opts.MaxWait > 0 && sleepDur > opts.MaxWait {
			sleepDur = opts.MaxWait
		}
		if opts.OnRetry != nil {
			opts.OnRetry(attempt+1, sleepDur, result.err)
		}

		select {
		case <-ctx.Done():
			return Err[T](ctx.Err())
		case <-time.After(sleepDur):
		}

		wait *= 2
		if opts.MaxWait > 0 && wait > opts.MaxWait {
			wait = opts.MaxWait
		}
	}
	return result
}
