package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"net"
	"time"
)

// RetryPolicy wraps one network operation with bounded exponential-backoff
// retry. Retryable failures are rate limiting (429), server errors (5xx),
// and connection/timeout errors; everything else propagates immediately.
//
// Design decision: Outcomes are explicit Result values, not errors raised
// through control flow. Retry exhaustion is an expected condition the
// export driver handles per project; reserving raised errors for truly
// exceptional states (auth failure, disk full) keeps the two apart.
type RetryPolicy struct {
	// MaxAttempts is the total attempt budget, including the first try.
	MaxAttempts int

	// BaseDelay is the delay before the second attempt. The delay doubles
	// on each subsequent attempt: base, 2*base, 4*base, ...
	BaseDelay time.Duration

	// Jitter adds a random sub-second component to each delay to avoid
	// synchronized retry storms against a rate-limited API.
	Jitter bool

	// Logger reports retry attempts at debug level. Nil means slog.Default.
	Logger *slog.Logger

	// sleep allows tests to replace the real clock. Nil means a real
	// context-aware sleep.
	sleep func(ctx context.Context, d time.Duration) error
}

// Result reports the outcome of a retried operation.
type Result struct {
	// Attempts is the number of attempts actually made (1..MaxAttempts).
	Attempts int

	// Err is nil on success. On exhaustion it wraps ErrRetryExhausted and
	// the last underlying cause; on a non-retryable failure it is that
	// failure unchanged.
	Err error
}

// Do runs op until it succeeds, fails non-retryably, or the attempt budget
// is exhausted. Context cancellation stops the loop immediately and is
// never retried.
func (p RetryPolicy) Do(ctx context.Context, op func(ctx context.Context) error) Result {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	sleep := p.sleep
	if sleep == nil {
		sleep = sleepCtx
	}

	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return Result{Attempts: attempt - 1, Err: err}
		}

		err := op(ctx)
		if err == nil {
			return Result{Attempts: attempt}
		}
		if !Retryable(err) {
			return Result{Attempts: attempt, Err: err}
		}
		lastErr = err

		if attempt == p.MaxAttempts {
			break
		}

		delay := p.delay(attempt)
		logger.Debug("retrying after transient failure",
			"attempt", attempt,
			"maxAttempts", p.MaxAttempts,
			"delay", delay,
			"cause", err.Error(),
		)
		if err := sleep(ctx, delay); err != nil {
			return Result{Attempts: attempt, Err: err}
		}
	}

	return Result{
		Attempts: p.MaxAttempts,
		Err:      fmt.Errorf("%w after %d attempts: %w", ErrRetryExhausted, p.MaxAttempts, lastErr),
	}
}

// delay computes the backoff before the attempt following `attempt`
// (1-based): base * 2^(attempt-1), plus sub-second jitter when enabled.
func (p RetryPolicy) delay(attempt int) time.Duration {
	d := p.BaseDelay << (attempt - 1)
	if p.Jitter {
		d += time.Duration(rand.Int63n(int64(time.Second))) //nolint:gosec // Jitter needs no crypto randomness
	}
	return d
}

// Retryable classifies an error as transient or permanent.
//
// Transient: HTTP 429 and 5xx (via StatusError), per-call timeouts
// (TimeoutError and anything reporting Timeout() true), and connection
// errors. Permanent: other HTTP statuses, malformed responses, and outer
// context cancellation, since retrying a cancelled context only delays
// shutdown. The per-call vs outer distinction is made in Client.doOnce,
// which wraps a per-call deadline in TimeoutError while the run context
// is still alive.
func Retryable(err error) bool {
	if err == nil {
		return false
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Retryable()
	}

	// Outer context errors come before the generic timeout check:
	// context.DeadlineExceeded itself reports Timeout() true, but an
	// expired run deadline must never be retried.
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var timeoutErr interface{ Timeout() bool }
	if errors.As(err, &timeoutErr) && timeoutErr.Timeout() {
		return true
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		// Connection refused, reset, broken pipe and friends.
		return true
	}

	return false
}

// sleepCtx sleeps for d or until the context is done, whichever comes
// first. Returns the context error on cancellation.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
