package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/WessleyAI/hybrid-rag/pkg/fn"
)

// ErrCallTimeout reports that a single attempt exceeded GuardOpts.CallTimeout.
// Unlike the caller's own deadline it is retryable.
var ErrCallTimeout = errors.New("call timed out")

// GuardOpts configures a Guard. The zero value performs a single attempt
// with no breaker and no rate limit.
type GuardOpts struct {
	Retry fn.RetryOpts
	// Breaker enables a circuit breaker when non-nil.
	Breaker *BreakerOpts
	// RatePerSecond enables a token bucket limiter when > 0.
	RatePerSecond float64
	Burst         int
	// CallTimeout bounds each individual attempt when > 0.
	CallTimeout time.Duration
}

// Guard wraps calls to one external dependency with rate limiting, a
// circuit breaker and bounded exponential backoff, in that order per attempt.
// A nil *Guard calls through directly. Safe for concurrent use.
type Guard struct {
	name    string
	opts    GuardOpts
	breaker *Breaker
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewGuard creates a Guard for the named dependency.
func NewGuard(name string, opts GuardOpts, logger *slog.Logger) *Guard {
	if logger == nil {
		logger = slog.Default()
	}
	g := &Guard{name: name, opts: opts, logger: logger}
	if opts.Breaker != nil {
		bo := *opts.Breaker
		userHook := bo.OnStateChange
		bo.OnStateChange = func(from, to State) {
			logger.Warn("circuit breaker state change", "dependency", name, "from", from.String(), "to", to.String())
			if userHook != nil {
				userHook(from, to)
			}
		}
		g.breaker = NewBreaker(bo)
	}
	if opts.RatePerSecond > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		g.limiter = rate.NewLimiter(rate.Limit(opts.RatePerSecond), burst)
	}

	retry := opts.Retry
	userRetryable := retry.Retryable
	retry.Retryable = func(err error) bool {
		if errors.Is(err, ErrCircuitOpen) {
			return false
		}
		if userRetryable != nil {
			return userRetryable(err)
		}
		return true
	}
	userOnRetry := retry.OnRetry
	retry.OnRetry = func(attempt int, wait time.Duration, err error) {
		logger.Debug("retrying call", "dependency", name, "attempt", attempt, "wait", wait, "err", err)
		if userOnRetry != nil {
			userOnRetry(attempt, wait, err)
		}
	}
	g.opts.Retry = retry
	return g
}

// Name returns the dependency name.
func (g *Guard) Name() string {
	if g == nil {
		return ""
	}
	return g.name
}

// Do runs f under the guard's policies.
func Do[T any](ctx context.Context, g *Guard, f func(context.Context) (T, error)) (T, error) {
	if g == nil {
		return f(ctx)
	}
	call := func(ctx context.Context) (T, error) {
		if g.opts.CallTimeout <= 0 {
			return f(ctx)
		}
		callCtx, cancel := context.WithTimeout(ctx, g.opts.CallTimeout)
		defer cancel()
		out, err := f(callCtx)
		if err != nil && callCtx.Err() != nil && ctx.Err() == nil {
			err = fmt.Errorf("%s: %w after %s", g.name, ErrCallTimeout, g.opts.CallTimeout)
		}
		return out, err
	}
	attempt := func(ctx context.Context) fn.Result[T] {
		if g.limiter != nil {
			if err := g.limiter.Wait(ctx); err != nil {
				return fn.Err[T](err)
			}
		}
		if g.breaker == nil {
			return fn.FromPair(call(ctx))
		}
		var out T
		err := g.breaker.Call(ctx, func(ctx context.Context) error {
			var err error
			out, err = call(ctx)
			return err
		})
		return fn.FromPair(out, err)
	}
	return fn.Retry(ctx, g.opts.Retry, attempt).Unwrap()
}
