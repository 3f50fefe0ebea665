package safety

import (
	"fmt"
	"sync"
	"time"
)

// CircuitBreakerState is the lifecycle state of an order-submission breaker.
type CircuitBreakerState int

const (
	StateClosed CircuitBreakerState = iota
	StateOpen
	StateHalfOpen
)

// String returns the string representation of the circuit breaker state.
func (s CircuitBreakerState) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// CircuitBreakerConfig tunes how many consecutive submission failures a
// CircuitBreaker tolerates before it stops forwarding TradeIntents to the
// execution ledger, and how long it waits before probing again.
type CircuitBreakerConfig struct {
	FailureThreshold uint32        // consecutive submission failures before OPEN
	SuccessThreshold uint32        // consecutive HALF_OPEN probe successes before CLOSED
	Timeout          time.Duration // time an OPEN breaker waits before probing
	ResetTimeout     time.Duration // failure streak forgotten if idle this long
}

// CircuitBreaker guards a single downstream collaborator (an execution
// ledger commit, a broker order-submission call) against cascading
// failures: once FailureThreshold consecutive failures are seen it stops
// invoking the wrapped function until Timeout has elapsed.
type CircuitBreaker struct {
	config      CircuitBreakerConfig
	state       CircuitBreakerState
	failures    uint32
	successes   uint32
	lastFailure time.Time
	nextAttempt time.Time
	mutex       sync.RWMutex
	name        string
}

// NewCircuitBreaker creates a circuit breaker identified by name, which
// shows up in Call's open-circuit error and CircuitBreakerManager lookups
// (e.g. "paper-ledger-db").
func NewCircuitBreaker(name string, config CircuitBreakerConfig) *CircuitBreaker {
	if config.FailureThreshold == 0 {
		config.FailureThreshold = 5
	}
	if config.SuccessThreshold == 0 {
		config.SuccessThreshold = 3
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.ResetTimeout == 0 {
		config.ResetTimeout = 5 * time.Minute
	}

	return &CircuitBreaker{
		config: config,
		state:  StateClosed,
		name:   name,
	}
}

// Call executes fn with circuit breaker protection, rejecting the call
// outright without invoking fn when the breaker is OPEN.
func (cb *CircuitBreaker) Call(fn func() error) error {
	if !cb.canExecute() {
		return fmt.Errorf("circuit breaker %s is open", cb.name)
	}

	err := fn()

	if err != nil {
		cb.recordFailure()
		return err
	}

	cb.recordSuccess()
	return nil
}

// canExecute determines if the circuit breaker allows execution.
func (cb *CircuitBreaker) canExecute() bool {
	cb.mutex.RLock()
	state := cb.state
	nextAttempt := cb.nextAttempt
	cb.mutex.RUnlock()

	switch state {
	case StateClosed:
		return true
	case StateOpen:
		if time.Now().After(nextAttempt) {
			cb.toHalfOpen()
			return true
		}
		return false
	case StateHalfOpen:
		return true
	default:
		return false
	}
}

// recordSuccess records a successful execution.
func (cb *CircuitBreaker) recordSuccess() {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	cb.failures = 0

	switch cb.state {
	case StateHalfOpen:
		cb.successes++
		if cb.successes >= cb.config.SuccessThreshold {
			cb.toClosed()
		}
	case StateOpen:
		cb.toClosed()
	}
}

// recordFailure records a failed execution. A failure streak older than
// ResetTimeout is forgotten before counting this one, so an isolated
// failure long after the last one doesn't carry stale weight toward
// FailureThreshold.
func (cb *CircuitBreaker) recordFailure() {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	now := time.Now()
	if cb.failures > 0 && !cb.lastFailure.IsZero() && now.Sub(cb.lastFailure) > cb.config.ResetTimeout {
		cb.failures = 0
	}

	cb.failures++
	cb.lastFailure = now

	switch cb.state {
	case StateClosed:
		if cb.failures >= cb.config.FailureThreshold {
			cb.toOpen()
		}
	case StateHalfOpen:
		cb.toOpen()
	case StateOpen:
		cb.nextAttempt = now.Add(cb.config.Timeout)
	}
}

// toClosed transitions to closed state. Caller must hold the write lock.
func (cb *CircuitBreaker) toClosed() {
	cb.state = StateClosed
	cb.failures = 0
	cb.successes = 0
}

// toOpen transitions to open state. Caller must hold the write lock.
func (cb *CircuitBreaker) toOpen() {
	cb.state = StateOpen
	cb.nextAttempt = time.Now().Add(cb.config.Timeout)
	cb.successes = 0
}

// toHalfOpen transitions to half-open state. Calls pass through until
// SuccessThreshold successes close the breaker; any failure re-opens it.
func (cb *CircuitBreaker) toHalfOpen() {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	cb.state = StateHalfOpen
	cb.successes = 0
}

// GetState returns the current state of the circuit breaker.
func (cb *CircuitBreaker) GetState() CircuitBreakerState {
	cb.mutex.RLock()
	defer cb.mutex.RUnlock()
	return cb.state
}

// Reset forces the circuit breaker back to CLOSED, clearing its failure
// streak. Used by operator tooling after a known-transient outage clears.
func (cb *CircuitBreaker) Reset() {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	cb.toClosed()
}

// CircuitBreakerManager keys a set of breakers by name, one per execution
// collaborator (the paper ledger, a future live-broker adapter, ...), so
// each downstream dependency trips independently.
type CircuitBreakerManager struct {
	breakers map[string]*CircuitBreaker
	mutex    sync.RWMutex
}

// NewCircuitBreakerManager creates an empty circuit breaker manager.
func NewCircuitBreakerManager() *CircuitBreakerManager {
	return &CircuitBreakerManager{
		breakers: make(map[string]*CircuitBreaker),
	}
}

// GetOrCreate gets an existing named circuit breaker or creates one with config.
func (cbm *CircuitBreakerManager) GetOrCreate(name string, config CircuitBreakerConfig) *CircuitBreaker {
	cbm.mutex.RLock()
	if cb, exists := cbm.breakers[name]; exists {
		cbm.mutex.RUnlock()
		return cb
	}
	cbm.mutex.RUnlock()

	cbm.mutex.Lock()
	defer cbm.mutex.Unlock()

	if cb, exists := cbm.breakers[name]; exists {
		return cb
	}

	cb := NewCircuitBreaker(name, config)
	cbm.breakers[name] = cb
	return cb
}

// HasOpenCircuits reports whether any managed breaker is currently OPEN —
// a signal an operator dashboard can poll to flag degraded execution.
func (cbm *CircuitBreakerManager) HasOpenCircuits() bool {
	cbm.mutex.RLock()
	defer cbm.mutex.RUnlock()

	for _, cb := range cbm.breakers {
		if cb.GetState() == StateOpen {
			return true
		}
	}
	return false
}

// GetOpenCircuits returns the names of every currently OPEN breaker.
func (cbm *CircuitBreakerManager) GetOpenCircuits() []string {
	cbm.mutex.RLock()
	defer cbm.mutex.RUnlock()

	var open []string
	for name, cb := range cbm.breakers {
		if cb.GetState() == StateOpen {
			open = append(open, name)
		}
	}
	return open
}
