// Package circuitbreaker cuts off calls to a failing downstream sink
// for a cool-off period, so the import pipeline never stacks up behind
// a dependency that keeps erroring.
package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	// ErrCircuitOpen is returned while the circuit is open and calls
	// are rejected without running.
	ErrCircuitOpen = errors.New("circuit breaker is open")

	// ErrTooManyRequests is returned when the half-open probe budget
	// is already in flight.
	ErrTooManyRequests = errors.New("too many requests in half-open state")
)

// State is the circuit position.
type State int

const (
	// StateClosed lets every call through.
	StateClosed State = iota

	// StateOpen rejects every call until the cool-off expires.
	StateOpen

	// StateHalfOpen lets a limited number of probe calls through.
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

// Config tunes the breaker.
type Config struct {
	// MaxFailures is how many consecutive failures open the circuit.
	MaxFailures int

	// Timeout is the cool-off before an open circuit admits a probe.
	Timeout time.Duration

	// HalfOpenMaxRequests caps concurrent probes while half-open.
	HalfOpenMaxRequests int

	// OnStateChange, when set, is called after every transition. It
	// runs outside the breaker's lock, so it may call GetState.
	OnStateChange func(from, to State)
}

// DefaultConfig returns the settings used when New gets nil.
func DefaultConfig() *Config {
	return &Config{
		MaxFailures:         5,
		Timeout:             60 * time.Second,
		HalfOpenMaxRequests: 1,
	}
}

// CircuitBreaker tracks consecutive failures of one downstream call
// site. Safe for concurrent use.
type CircuitBreaker struct {
	cfg Config

	mu               sync.Mutex
	state            State
	failures         int
	halfOpenInFlight int
	openedAt         time.Time
}

// New creates a breaker; a nil config uses DefaultConfig. Zero or
// negative fields fall back to their defaults individually.
func New(config *Config) *CircuitBreaker {
	cfg := *DefaultConfig()
	if config != nil {
		if config.MaxFailures > 0 {
			cfg.MaxFailures = config.MaxFailures
		}
		if config.Timeout > 0 {
			cfg.Timeout = config.Timeout
		}
		if config.HalfOpenMaxRequests > 0 {
			cfg.HalfOpenMaxRequests = config.HalfOpenMaxRequests
		}
		cfg.OnStateChange = config.OnStateChange
	}
	return &CircuitBreaker{cfg: cfg}
}

// Execute runs fn unless the circuit rejects it. A canceled context is
// reported before fn runs and counts neither as success nor failure.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := cb.admit(); err != nil {
		return err
	}

	err := fn()
	cb.record(err == nil)
	return err
}

// GetState returns the current circuit position.
func (cb *CircuitBreaker) GetState() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// admit decides whether a call may proceed right now.
func (cb *CircuitBreaker) admit() error {
	cb.mu.Lock()
	notify := func() {}

	var err error
	switch cb.state {
	case StateClosed:
		// Fall through.
	case StateOpen:
		if time.Since(cb.openedAt) < cb.cfg.Timeout {
			err = ErrCircuitOpen
			break
		}
		// Cool-off over; this call becomes the first probe.
		notify = cb.shift(StateHalfOpen)
		cb.halfOpenInFlight = 1
	case StateHalfOpen:
		if cb.halfOpenInFlight >= cb.cfg.HalfOpenMaxRequests {
			err = ErrTooManyRequests
			break
		}
		cb.halfOpenInFlight++
	}

	cb.mu.Unlock()
	notify()
	return err
}

// record books the outcome of an admitted call.
func (cb *CircuitBreaker) record(success bool) {
	cb.mu.Lock()
	notify := func() {}

	switch cb.state {
	case StateClosed:
		if success {
			cb.failures = 0
			break
		}
		cb.failures++
		if cb.failures >= cb.cfg.MaxFailures {
			notify = cb.shift(StateOpen)
			cb.openedAt = time.Now()
		}
	case StateHalfOpen:
		cb.halfOpenInFlight--
		if success {
			// One good probe closes the circuit again.
			notify = cb.shift(StateClosed)
			cb.failures = 0
			cb.halfOpenInFlight = 0
			break
		}
		notify = cb.shift(StateOpen)
		cb.openedAt = time.Now()
		cb.halfOpenInFlight = 0
	}

	cb.mu.Unlock()
	notify()
}

// shift moves to a new state and returns the caller's notification,
// to be invoked after the lock is released.
func (cb *CircuitBreaker) shift(to State) func() {
	from := cb.state
	cb.state = to
	if cb.cfg.OnStateChange == nil || from == to {
		return func() {}
	}
	hook := cb.cfg.OnStateChange
	return func() { hook(from, to) }
}
