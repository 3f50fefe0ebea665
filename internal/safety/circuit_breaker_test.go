package safety

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCircuitBreaker_StartsClosed(t *testing.T) {
	cb := NewCircuitBreaker("test", CircuitBreakerConfig{})
	assert.Equal(t, StateClosed, cb.GetState())
}

func TestCircuitBreaker_OpensAfterFailureThreshold(t *testing.T) {
	cb := NewCircuitBreaker("test", CircuitBreakerConfig{FailureThreshold: 2, Timeout: time.Minute})
	failing := errors.New("boom")

	err1 := cb.Call(func() error { return failing })
	require.Equal(t, failing, err1)
	assert.Equal(t, StateClosed, cb.GetState())

	err2 := cb.Call(func() error { return failing })
	require.Equal(t, failing, err2)
	assert.Equal(t, StateOpen, cb.GetState())
}

func TestCircuitBreaker_OpenRejectsCallsWithoutInvokingFn(t *testing.T) {
	cb := NewCircuitBreaker("test", CircuitBreakerConfig{FailureThreshold: 1, Timeout: time.Minute})
	_ = cb.Call(func() error { return errors.New("boom") })
	require.Equal(t, StateOpen, cb.GetState())

	called := false
	err := cb.Call(func() error { called = true; return nil })
	assert.False(t, called, "fn must not run while the breaker is open")
	assert.Error(t, err)
}

func TestCircuitBreaker_HalfOpenClosesAfterSuccessThreshold(t *testing.T) {
	cb := NewCircuitBreaker("test", CircuitBreakerConfig{FailureThreshold: 1, SuccessThreshold: 2, Timeout: time.Millisecond})
	_ = cb.Call(func() error { return errors.New("boom") })
	require.Equal(t, StateOpen, cb.GetState())

	time.Sleep(5 * time.Millisecond)

	err1 := cb.Call(func() error { return nil })
	require.NoError(t, err1)
	assert.Equal(t, StateHalfOpen, cb.GetState())

	err2 := cb.Call(func() error { return nil })
	require.NoError(t, err2)
	assert.Equal(t, StateClosed, cb.GetState())
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	cb := NewCircuitBreaker("test", CircuitBreakerConfig{FailureThreshold: 1, SuccessThreshold: 2, Timeout: time.Millisecond})
	_ = cb.Call(func() error { return errors.New("boom") })
	time.Sleep(5 * time.Millisecond)

	err := cb.Call(func() error { return errors.New("still broken") })
	assert.Error(t, err)
	assert.Equal(t, StateOpen, cb.GetState())
}

func TestCircuitBreaker_ResetForcesClosed(t *testing.T) {
	cb := NewCircuitBreaker("test", CircuitBreakerConfig{FailureThreshold: 1, Timeout: time.Minute})
	_ = cb.Call(func() error { return errors.New("boom") })
	require.Equal(t, StateOpen, cb.GetState())
	cb.Reset()
	assert.Equal(t, StateClosed, cb.GetState())
}

func TestCircuitBreakerManager_GetOrCreateReturnsSameInstance(t *testing.T) {
	m := NewCircuitBreakerManager()
	a := m.GetOrCreate("db", CircuitBreakerConfig{})
	b := m.GetOrCreate("db", CircuitBreakerConfig{})
	assert.Same(t, a, b)
}

func TestCircuitBreakerManager_HasOpenCircuitsReflectsState(t *testing.T) {
	m := NewCircuitBreakerManager()
	cb := m.GetOrCreate("db", CircuitBreakerConfig{FailureThreshold: 1, Timeout: time.Minute})
	assert.False(t, m.HasOpenCircuits())
	_ = cb.Call(func() error { return errors.New("boom") })
	assert.True(t, m.HasOpenCircuits())
	assert.Contains(t, m.GetOpenCircuits(), "db")
}
