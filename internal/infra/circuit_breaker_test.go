package infra

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCircuitBreaker_OpensAndRecovers(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		Name: "test", FailureThreshold: 2, SuccessThreshold: 1, OpenTimeout: 20 * time.Millisecond,
	})
	boom := errors.New("gateway 502")

	assert.ErrorIs(t, cb.Execute(func() error { return boom }), boom)
	assert.Equal(t, CBClosed, cb.State())
	assert.ErrorIs(t, cb.Execute(func() error { return boom }), boom)
	assert.Equal(t, CBOpen, cb.State())

	called := false
	err := cb.Execute(func() error { called = true; return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)

	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, CBHalfOpen, cb.State())
	assert.NoError(t, cb.Execute(func() error { return nil }))
	assert.Equal(t, CBClosed, cb.State())
}

func TestCircuitBreaker_FailedProbeReopens(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 1, OpenTimeout: 10 * time.Millisecond})
	_ = cb.Execute(func() error { return errors.New("down") })
	time.Sleep(15 * time.Millisecond)
	assert.Equal(t, CBHalfOpen, cb.State())

	_ = cb.Execute(func() error { return errors.New("still down") })
	assert.Equal(t, "open", cb.StateName())
}

func TestCircuitBreaker_NilStateName(t *testing.T) {
	var cb *CircuitBreaker
	assert.Equal(t, "disabled", cb.StateName())
}

func TestCircuitBreaker_RejectionsDoNotTrip(t *testing.T) {
	cfg := DefaultCBConfig()
	cfg.FailureThreshold = 2
	cb := NewCircuitBreaker(cfg)

	for i := 0; i < 5; i++ {
		err := cb.Execute(func() error { return &GatewayRejectedError{Status: 400} })
		assert.Error(t, err)
	}
	assert.Equal(t, CBClosed, cb.State())

	_ = cb.Execute(func() error { return errors.New("dial tcp: refused") })
	_ = cb.Execute(func() error { return errors.New("dial tcp: refused") })
	assert.Equal(t, CBOpen, cb.State())
}

func TestCircuitBreaker_SingleProbeInFlight(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 1, SuccessThreshold: 1, OpenTimeout: 10 * time.Millisecond})
	_ = cb.Execute(func() error { return errors.New("down") })
	time.Sleep(15 * time.Millisecond)

	release := make(chan struct{})
	started := make(chan struct{})
	done := make(chan error)
	go func() {
		done <- cb.Execute(func() error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	called := false
	err := cb.Execute(func() error { called = true; return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)

	close(release)
	assert.NoError(t, <-done)
	assert.Equal(t, CBClosed, cb.State())
}
