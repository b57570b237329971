// Package circuitbreaker guards the forecast upstream: after repeated fetch
// failures the circuit opens and calls fail fast until a cooldown elapses,
// then a probe decides whether to close again.
package circuitbreaker

import (
	"errors"
	"sync"
	"time"
)

// ErrOpen is returned when the circuit is open and the cooldown has not
// elapsed. Callers treat it like any other upstream failure.
var ErrOpen = errors.New("circuit breaker open")

// State is the circuit state.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// CircuitBreaker opens after FailureThreshold consecutive failures and lets
// a probe through after Cooldown. A failed probe reopens the circuit;
// SuccessThreshold consecutive probe successes close it.
type CircuitBreaker struct {
	mu            sync.RWMutex
	state         State
	failures      int
	successes     int
	openedAt      time.Time
	onStateChange func(from, to State)

	failureThreshold int
	successThreshold int
	cooldown         time.Duration
}

// Config holds circuit breaker parameters.
type Config struct {
	FailureThreshold int
	SuccessThreshold int
	Cooldown         time.Duration
	// OnStateChange, when set, is called on every transition while the
	// breaker lock is held; it must not call back into the breaker. Used
	// for logging and metrics.
	OnStateChange func(from, to State)
}

// New creates a CircuitBreaker with the given config, applying defaults for
// unset fields.
func New(cfg Config) *CircuitBreaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = 2
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 30 * time.Second
	}
	return &CircuitBreaker{
		state:            StateClosed,
		failureThreshold: cfg.FailureThreshold,
		successThreshold: cfg.SuccessThreshold,
		cooldown:         cfg.Cooldown,
		onStateChange:    cfg.OnStateChange,
	}
}

// Call runs fn when the circuit allows it. Returns ErrOpen without invoking
// fn when the circuit is open and cooling down.
func (cb *CircuitBreaker) Call(fn func() error) error {
	if !cb.allow() {
		return ErrOpen
	}
	err := fn()
	cb.record(err == nil)
	return err
}

func (cb *CircuitBreaker) allow() bool {
	cb.mu.Lock()
	if cb.state == StateOpen {
		if time.Since(cb.openedAt) < cb.cooldown {
			cb.mu.Unlock()
			return false
		}
		cb.transition(StateHalfOpen)
	}
	cb.mu.Unlock()
	return true
}

func (cb *CircuitBreaker) record(success bool) {
	cb.mu.Lock()
	if success {
		cb.failures = 0
		if cb.state == StateHalfOpen {
			cb.successes++
			if cb.successes >= cb.successThreshold {
				cb.transition(StateClosed)
			}
		}
		cb.mu.Unlock()
		return
	}

	cb.failures++
	if cb.state == StateHalfOpen || cb.failures >= cb.failureThreshold {
		cb.openedAt = time.Now()
		cb.transition(StateOpen)
	}
	cb.mu.Unlock()
}

// transition updates state and fires the callback. Caller holds the lock;
// the callback must not call back into the breaker.
func (cb *CircuitBreaker) transition(to State) {
	from := cb.state
	if from == to {
		return
	}
	cb.state = to
	cb.failures = 0
	cb.successes = 0
	if cb.onStateChange != nil {
		cb.onStateChange(from, to)
	}
}

// State returns the current state (for health reporting).
func (cb *CircuitBreaker) State() State {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.state
}
