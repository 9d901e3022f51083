package resilience

import (
	"log/slog"
	"sync"
	"time"
)

// State is the circuit breaker state.
type State string

const (
	// StateClosed means normal operation: requests flow through.
	StateClosed State = "closed"

	// StateOpen means the upstream is failing: requests are rejected
	// immediately instead of waiting for timeouts.
	StateOpen State = "open"

	// StateHalfOpen means the recovery timeout has elapsed and a
	// limited number of trial requests are allowed through.
	StateHalfOpen State = "half_open"
)

// BreakerConfig tunes a Breaker. Zero fields take the defaults.
type BreakerConfig struct {
	// FailureThreshold is the number of consecutive retryable failures
	// before the circuit opens (default 5).
	FailureThreshold int

	// RecoveryTimeout is how long the circuit stays open before
	// allowing a trial request (default 30s).
	RecoveryTimeout time.Duration

	// HalfOpenMaxCalls caps concurrent trial requests while half-open
	// (default 1).
	HalfOpenMaxCalls int

	Logger *slog.Logger
}

// Breaker implements the circuit breaker pattern. When the upstream
// fails repeatedly the circuit opens and calls fail fast; after
// RecoveryTimeout a trial request probes whether the service recovered.
//
// The open → half-open transition happens lazily when state is read,
// not on a timer.
type Breaker struct {
	failureThreshold int
	recoveryTimeout  time.Duration
	halfOpenMaxCalls int
	logger           *slog.Logger

	mu            sync.Mutex
	state         State
	failureCount  int
	lastFailure   time.Time
	halfOpenCalls int

	// now is replaceable in tests.
	now func() time.Time
}

// NewBreaker creates a circuit breaker in the closed state.
func NewBreaker(cfg BreakerConfig) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.RecoveryTimeout <= 0 {
		cfg.RecoveryTimeout = 30 * time.Second
	}
	if cfg.HalfOpenMaxCalls <= 0 {
		cfg.HalfOpenMaxCalls = 1
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Breaker{
		failureThreshold: cfg.FailureThreshold,
		recoveryTimeout:  cfg.RecoveryTimeout,
		halfOpenMaxCalls: cfg.HalfOpenMaxCalls,
		logger:           cfg.Logger,
		state:            StateClosed,
		now:              time.Now,
	}
}

// State returns the current state, transitioning open → half-open if
// the recovery timeout has elapsed.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stateLocked()
}

func (b *Breaker) stateLocked() State {
	if b.state == StateOpen && b.now().Sub(b.lastFailure) >= b.recoveryTimeout {
		b.logger.Info("circuit breaker entering half-open state")
		b.state = StateHalfOpen
		b.halfOpenCalls = 0
	}
	return b.state
}

// Allow reports whether a request should be let through. In half-open
// state it also counts the caller as a trial request.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.stateLocked() {
	case StateClosed:
		return true
	case StateHalfOpen:
		if b.halfOpenCalls < b.halfOpenMaxCalls {
			b.halfOpenCalls++
			return true
		}
		return false
	default:
		return false
	}
}

// RecordSuccess notes a successful request, closing the circuit.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateHalfOpen {
		b.logger.Info("circuit breaker closing after successful test")
	}
	b.state = StateClosed
	b.failureCount = 0
	b.halfOpenCalls = 0
}

// RecordFailure notes a failed request. The circuit opens once the
// failure threshold is reached, or immediately if a half-open trial
// fails.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failureCount++
	b.lastFailure = b.now()

	switch {
	case b.state == StateHalfOpen:
		b.logger.Warn("circuit breaker re-opening after failed test")
		b.state = StateOpen
	case b.failureCount >= b.failureThreshold:
		b.logger.Warn("circuit breaker opening",
			"failures", b.failureCount)
		b.state = StateOpen
	}
}

// Reset returns the breaker to its initial closed state.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.state = StateClosed
	b.failureCount = 0
	b.lastFailure = time.Time{}
	b.halfOpenCalls = 0
}
