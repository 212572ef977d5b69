// Package resilience provides a circuit breaker and a failover chat backend
// built on it.
//
// [Breaker] is a three-state breaker (closed → open → half-open). [Failover]
// is an llm.Provider that tries a list of backends in order, each behind its
// own Breaker, so a failing primary is bypassed until it recovers.
//
// All types are safe for concurrent use.
package resilience

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrCircuitOpen is returned by [Breaker.Do] while the breaker rejects
// calls.
var ErrCircuitOpen = errors.New("resilience: circuit open")

// State is the operating mode of a [Breaker].
type State int

const (
	// StateClosed forwards every call.
	StateClosed State = iota

	// StateOpen rejects calls with [ErrCircuitOpen] until the cooldown ends.
	StateOpen

	// StateHalfOpen lets a limited number of trial calls through. They all
	// have to succeed for the breaker to close; one failure re-opens it.
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerConfig tunes a [Breaker]. Zero values take the defaults.
type BreakerConfig struct {
	// Name labels the breaker in logs.
	Name string

	// MaxFailures is the number of consecutive failures that opens the
	// breaker. Default: 3.
	MaxFailures int

	// Cooldown is how long the breaker stays open before probing. Default: 30s.
	Cooldown time.Duration

	// Trials is the number of successful half-open calls needed to close.
	// Default: 1.
	Trials int

	// Logger receives state transitions. Default: slog.Default.
	Logger *slog.Logger

	// Now is the clock. Default: time.Now.
	Now func() time.Time
}

// Breaker implements the circuit breaker pattern.
type Breaker struct {
	name        string
	maxFailures int
	cooldown    time.Duration
	trials      int
	logger      *slog.Logger
	now         func() time.Time

	mu        sync.Mutex
	state     State
	failures  int
	openedAt  time.Time
	inFlight  int // half-open calls started
	succeeded int // half-open calls that succeeded
}

// NewBreaker creates a closed [Breaker].
func NewBreaker(cfg BreakerConfig) *Breaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 3
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 30 * time.Second
	}
	if cfg.Trials <= 0 {
		cfg.Trials = 1
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Breaker{
		name:        cfg.Name,
		maxFailures: cfg.MaxFailures,
		cooldown:    cfg.Cooldown,
		trials:      cfg.Trials,
		logger:      cfg.Logger,
		now:         cfg.Now,
	}
}

// Do runs fn unless the breaker rejects the call. A nil error from fn counts
// as success. Errors for which ignore returns true (e.g. caller
// cancellation) pass through without being counted; ignore may be nil.
func (b *Breaker) Do(fn func() error, ignore func(error) bool) error {
	trial, err := b.admit()
	if err != nil {
		return err
	}

	err = fn()

	b.mu.Lock()
	defer b.mu.Unlock()
	switch {
	case err == nil:
		b.onSuccess(trial)
	case ignore != nil && ignore(err):
		if trial {
			b.inFlight--
		}
	default:
		b.onFailure(trial)
	}
	return err
}

// admit decides whether a call may proceed and whether it is a trial.
func (b *Breaker) admit() (trial bool, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateOpen {
		if b.now().Sub(b.openedAt) < b.cooldown {
			return false, ErrCircuitOpen
		}
		b.state = StateHalfOpen
		b.inFlight, b.succeeded = 0, 0
		b.logger.Info("circuit half-open", "name", b.name)
	}
	if b.state == StateHalfOpen {
		if b.inFlight >= b.trials {
			return false, ErrCircuitOpen
		}
		b.inFlight++
		return true, nil
	}
	return false, nil
}

// onSuccess records a success. Callers hold mu.
func (b *Breaker) onSuccess(trial bool) {
	if !trial {
		b.failures = 0
		return
	}
	b.succeeded++
	if b.succeeded >= b.trials {
		b.state = StateClosed
		b.failures = 0
		b.logger.Info("circuit closed", "name", b.name)
	}
}

// onFailure records a failure. Callers hold mu.
func (b *Breaker) onFailure(trial bool) {
	if trial {
		b.trip()
		return
	}
	b.failures++
	if b.failures >= b.maxFailures {
		b.trip()
	}
}

func (b *Breaker) trip() {
	b.state = StateOpen
	b.openedAt = b.now()
	b.logger.Warn("circuit opened", "name", b.name, "consecutive_failures", b.failures)
}

// State returns the current state. An open breaker whose cooldown has passed
// reports [StateHalfOpen]; the transition itself happens on the next call.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateOpen && b.now().Sub(b.openedAt) >= b.cooldown {
		return StateHalfOpen
	}
	return b.state
}

// Reset closes the breaker and clears its counters.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = StateClosed
	b.failures, b.inFlight, b.succeeded = 0, 0, 0
}
