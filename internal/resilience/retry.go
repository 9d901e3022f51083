package resilience

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"math/rand"
	"net"
	"time"
)

// Retry defaults.
const (
	DefaultMaxRetries = 3
	DefaultBaseDelay  = 500 * time.Millisecond
	DefaultMaxDelay   = 10 * time.Second
)

// IsRetryable reports whether an error is transient: a retryable HTTP
// status, a timeout, or a connection-level failure. Anything else
// (including context cancellation) fails immediately.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var se *StatusError
	if errors.As(err, &se) {
		return retryableStatus(se.StatusCode)
	}

	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	var oe *net.OpError
	return errors.As(err, &oe)
}

// Backoff computes the delay before retry attempt n (0-based):
// exponential growth from base, capped at max, with ±25% jitter to
// avoid thundering herds. The result is never negative.
func Backoff(attempt int, base, max time.Duration) time.Duration {
	d := float64(base) * math.Pow(2, float64(attempt))
	if d > float64(max) {
		d = float64(max)
	}
	jitter := d * 0.25 * (2*rand.Float64() - 1)
	out := time.Duration(d + jitter)
	if out < 0 {
		out = 0
	}
	return out
}

// RetrierConfig tunes a Retrier. Zero fields take the defaults.
type RetrierConfig struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Breaker    *Breaker
	Logger     *slog.Logger
}

// Retrier runs operations with exponential backoff and, when
// configured, a circuit breaker consulted before the first attempt.
type Retrier struct {
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
	breaker    *Breaker
	logger     *slog.Logger

	// sleep is replaceable in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewRetrier creates a Retrier.
func NewRetrier(cfg RetrierConfig) *Retrier {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = DefaultBaseDelay
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = DefaultMaxDelay
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Retrier{
		maxRetries: cfg.MaxRetries,
		baseDelay:  cfg.BaseDelay,
		maxDelay:   cfg.MaxDelay,
		breaker:    cfg.Breaker,
		logger:     cfg.Logger,
		sleep:      sleepCtx,
	}
}

// Breaker returns the circuit breaker this retrier consults, or nil.
func (r *Retrier) Breaker() *Breaker { return r.breaker }

// Do runs fn, retrying transient failures with backoff. Breaker
// bookkeeping: every retryable failure records a failure, a success
// records a success, and non-retryable errors leave the breaker
// untouched. Returns ErrCircuitOpen without calling fn if the breaker
// is rejecting requests.
func (r *Retrier) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	if r.breaker != nil && !r.breaker.Allow() {
		return ErrCircuitOpen
	}

	var lastErr error
	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		err := fn(ctx)
		if err == nil {
			if r.breaker != nil {
				r.breaker.RecordSuccess()
			}
			return nil
		}
		lastErr = err

		if !IsRetryable(err) {
			return err
		}
		if r.breaker != nil {
			r.breaker.RecordFailure()
		}

		if attempt < r.maxRetries {
			delay := Backoff(attempt, r.baseDelay, r.maxDelay)
			r.logger.Warn("retrying after transient error",
				"op", op,
				"attempt", attempt+1,
				"max_retries", r.maxRetries,
				"delay", delay,
				"error", err)
			if serr := r.sleep(ctx, delay); serr != nil {
				return serr
			}
		} else {
			r.logger.Error("all retries exhausted",
				"op", op,
				"retries", r.maxRetries,
				"error", err)
		}
	}
	return lastErr
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
