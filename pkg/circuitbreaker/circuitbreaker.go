package circuitbreaker

import (
	"errors"
	"sync"
	"time"
)

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
		return "half-open"
	}
	return "unknown"
}

var ErrOpen = errors.New("circuit breaker is open")

// CircuitBreaker stops calling a failing dependency once more than maxFailures calls
// failed within window. After timeout one trial call is let through; its outcome closes
// or reopens the breaker.
type CircuitBreaker struct {
	name        string
	maxFailures int
	window      time.Duration
	timeout     time.Duration

	mu       sync.Mutex
	state    State
	failures []time.Time
	openedAt time.Time
	trial    bool
	now      func() time.Time
	onChange func(name string, from, to State)
}

func NewCircuitBreaker(name string, maxFailures int, timeout time.Duration) *CircuitBreaker {
	return NewCircuitBreakerWithWindow(name, maxFailures, timeout, 60*time.Second)
}

func NewCircuitBreakerWithWindow(name string, maxFailures int, timeout, window time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		name:        name,
		maxFailures: maxFailures,
		window:      window,
		timeout:     timeout,
		state:       StateClosed,
		now:         time.Now,
	}
}

// OnStateChange registers fn to be called after every state change.
func (cb *CircuitBreaker) OnStateChange(fn func(name string, from, to State)) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.onChange = fn
}

func (cb *CircuitBreaker) Name() string {
	return cb.name
}

// Execute runs fn unless the breaker is open, in which case fallback runs instead (or
// ErrOpen is returned when fallback is nil). fn runs without the lock held.
func (cb *CircuitBreaker) Execute(fn func() error, fallback func() error) error {
	if !cb.allow() {
		if fallback != nil {
			return fallback()
		}
		return ErrOpen
	}

	err := fn()
	cb.record(err)
	return err
}

func (cb *CircuitBreaker) allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateOpen:
		if cb.now().Sub(cb.openedAt) < cb.timeout {
			return false
		}
		cb.setState(StateHalfOpen)
		cb.trial = true
		return true
	case StateHalfOpen:
		if cb.trial {
			return false
		}
		cb.trial = true
		return true
	}
	return true
}

func (cb *CircuitBreaker) record(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	now := cb.now()
	if err == nil {
		cb.dropExpired(now)
		if cb.state == StateHalfOpen {
			cb.failures = cb.failures[:0]
			cb.trial = false
			cb.setState(StateClosed)
		}
		return
	}

	cb.failures = append(cb.failures, now)
	cb.dropExpired(now)
	if cb.state == StateHalfOpen || len(cb.failures) > cb.maxFailures {
		cb.trial = false
		cb.openedAt = now
		cb.setState(StateOpen)
	}
}

func (cb *CircuitBreaker) dropExpired(now time.Time) {
	cutoff := now.Add(-cb.window)
	keep := cb.failures[:0]
	for _, at := range cb.failures {
		if at.After(cutoff) {
			keep = append(keep, at)
		}
	}
	cb.failures = keep
}

func (cb *CircuitBreaker) setState(to State) {
	from := cb.state
	if from == to {
		return
	}
	cb.state = to
	if cb.onChange != nil {
		cb.onChange(cb.name, from, to)
	}
}

func (cb *CircuitBreaker) GetState() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}
