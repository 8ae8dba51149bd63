// Package circuitbreaker guards calls to an unreliable dependency.
package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"
)

// State represents the circuit breaker state.
type State int

// State constants for circuit breaker.
const (
	StateClosed   State = iota // calls pass through
	StateOpen                  // calls are rejected
	StateHalfOpen              // a few trial calls probe recovery
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

var (
	// ErrCircuitOpen is returned without calling the protected function while the circuit is open.
	ErrCircuitOpen = errors.New("circuit breaker is open")

	// ErrTooManyRequests is returned when every half-open trial slot is taken.
	ErrTooManyRequests = errors.New("circuit breaker is probing, too many requests")
)

// Counts is a snapshot of the calls seen in the current generation.
// A generation starts whenever the state changes.
type Counts struct {
	Requests             int
	TotalFailures        int
	ConsecutiveFailures  int
	ConsecutiveSuccesses int
}

// Settings configures the circuit breaker.
type Settings struct {
	// Name identifies the breaker in logs and metrics.
	Name string

	// MaxFailures is the number of consecutive failures that opens the circuit.
	MaxFailures int

	// Timeout is how long the circuit stays open before probing.
	Timeout time.Duration

	// MaxHalfOpenRequests is both the number of concurrent trial calls and the
	// number of successes needed to close the circuit again.
	MaxHalfOpenRequests int

	// IsFailure decides whether an error counts against the circuit.
	// Defaults to every non-nil error except caller cancellation.
	IsFailure func(err error) bool

	// OnStateChange is called asynchronously after every transition.
	OnStateChange func(name string, from, to State)

	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
}

// DefaultSettings returns the settings used for upstream HTTP dependencies.
func DefaultSettings(name string) Settings {
	return Settings{
		Name:                name,
		MaxFailures:         5,
		Timeout:             30 * time.Second,
		MaxHalfOpenRequests: 1,
	}
}

func defaultIsFailure(err error) bool {
	return err != nil && !errors.Is(err, context.Canceled)
}

// CircuitBreaker implements the circuit breaker pattern.
type CircuitBreaker struct {
	settings Settings

	mu         sync.Mutex
	state      State
	generation uint64
	counts     Counts
	inFlight   int
	openUntil  time.Time
}

// New creates a new circuit breaker, filling unset settings with defaults.
func New(settings Settings) *CircuitBreaker {
	defaults := DefaultSettings(settings.Name)
	if settings.MaxFailures <= 0 {
		settings.MaxFailures = defaults.MaxFailures
	}
	if settings.Timeout <= 0 {
		settings.Timeout = defaults.Timeout
	}
	if settings.MaxHalfOpenRequests <= 0 {
		settings.MaxHalfOpenRequests = defaults.MaxHalfOpenRequests
	}
	if settings.IsFailure == nil {
		settings.IsFailure = defaultIsFailure
	}
	if settings.Now == nil {
		settings.Now = time.Now
	}
	return &CircuitBreaker{settings: settings}
}

// Name returns the breaker name.
func (cb *CircuitBreaker) Name() string {
	return cb.settings.Name
}

// Execute runs fn unless the circuit rejects the call.
// The outcome of fn is returned unchanged.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	generation, err := cb.admit()
	if err != nil {
		return err
	}

	err = fn(ctx)
	cb.settle(generation, err)
	return err
}

// State returns the current state, moving an expired open circuit to half-open.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.refresh(cb.settings.Now())
	return cb.state
}

// Counts returns the counters of the current generation.
func (cb *CircuitBreaker) Counts() Counts {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.counts
}

// Failures returns the current consecutive failure count.
func (cb *CircuitBreaker) Failures() int {
	return cb.Counts().ConsecutiveFailures
}

// admit reserves a call slot and returns the generation it belongs to.
func (cb *CircuitBreaker) admit() (uint64, error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.refresh(cb.settings.Now())

	switch cb.state {
	case StateOpen:
		return cb.generation, ErrCircuitOpen
	case StateHalfOpen:
		if cb.inFlight >= cb.settings.MaxHalfOpenRequests {
			return cb.generation, ErrTooManyRequests
		}
	}

	cb.inFlight++
	cb.counts.Requests++
	return cb.generation, nil
}

// settle records the outcome of a call admitted in generation.
// Outcomes of calls from an earlier generation are ignored.
func (cb *CircuitBreaker) settle(generation uint64, err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if generation != cb.generation {
		return
	}
	cb.inFlight--

	switch {
	case err == nil:
		cb.counts.ConsecutiveSuccesses++
		cb.counts.ConsecutiveFailures = 0
		if cb.state == StateHalfOpen && cb.counts.ConsecutiveSuccesses >= cb.settings.MaxHalfOpenRequests {
			cb.transition(StateClosed)
		}
	case cb.settings.IsFailure(err):
		cb.counts.TotalFailures++
		cb.counts.ConsecutiveFailures++
		cb.counts.ConsecutiveSuccesses = 0
		if cb.state == StateHalfOpen || cb.counts.ConsecutiveFailures >= cb.settings.MaxFailures {
			cb.transition(StateOpen)
		}
	default:
		// Not the dependency's fault: the call leaves no trace.
		cb.counts.Requests--
	}
}

// refresh moves an open circuit whose timeout elapsed to half-open. Callers hold cb.mu.
func (cb *CircuitBreaker) refresh(now time.Time) {
	if cb.state == StateOpen && now.After(cb.openUntil) {
		cb.transition(StateHalfOpen)
	}
}

// transition starts a new generation in state to. Callers hold cb.mu.
func (cb *CircuitBreaker) transition(to State) {
	from := cb.state
	if from == to {
		return
	}

	cb.state = to
	cb.generation++
	cb.counts = Counts{}
	cb.inFlight = 0
	if to == StateOpen {
		cb.openUntil = cb.settings.Now().Add(cb.settings.Timeout)
	}

	if cb.settings.OnStateChange != nil {
		go cb.settings.OnStateChange(cb.settings.Name, from, to)
	}
}
