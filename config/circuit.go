package config

import (
	"sync"
	"time"
)

// circuitState mirrors the Closed/Open/HalfOpen vocabulary of a
// classic circuit breaker, trimmed to what one client's fetch loop
// needs — there is no shared/distributed state to coordinate, unlike a
// server-side breaker guarding a fleet of callers.
type circuitState int

const (
	circuitClosed circuitState = iota
	circuitOpen
	circuitHalfOpen
)

// circuitBreaker protects the network fetch source (spec §4.C7 "ADDED
// circuit breaker"): after failureThreshold consecutive failures it
// opens for breakDuration, during which network fetches are rejected
// outright: Bootstrap then goes on to the next source in precedence
// order, and Fetch reports ErrorFetchedFailed while the applied
// configuration stays in place. One trial call is allowed through in
// the half-open state to probe recovery.
type circuitBreaker struct {
	failureThreshold int
	breakDuration    time.Duration

	mu          sync.Mutex
	state       circuitState
	failures    int
	openedAt    time.Time
	halfOpenTry bool
}

func newCircuitBreaker(failureThreshold int, breakDuration time.Duration) *circuitBreaker {
	if failureThreshold <= 0 {
		failureThreshold = 5
	}
	if breakDuration <= 0 {
		breakDuration = 30 * time.Second
	}
	return &circuitBreaker{failureThreshold: failureThreshold, breakDuration: breakDuration}
}

// Allow reports whether a network fetch attempt may proceed right now.
func (c *circuitBreaker) Allow() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case circuitClosed:
		return true
	case circuitOpen:
		if time.Since(c.openedAt) < c.breakDuration {
			return false
		}
		c.state = circuitHalfOpen
		c.halfOpenTry = false
		fallthrough
	case circuitHalfOpen:
		if c.halfOpenTry {
			return false
		}
		c.halfOpenTry = true
		return true
	default:
		return true
	}
}

// RecordSuccess closes the circuit and resets the failure count.
func (c *circuitBreaker) RecordSuccess() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = circuitClosed
	c.failures = 0
	c.halfOpenTry = false
}

// RecordFailure increments the failure count, opening the circuit once
// failureThreshold is reached (or immediately, if the failing call was
// the half-open trial).
func (c *circuitBreaker) RecordFailure() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == circuitHalfOpen {
		c.state = circuitOpen
		c.openedAt = time.Now()
		return
	}

	c.failures++
	if c.failures >= c.failureThreshold {
		c.state = circuitOpen
		c.openedAt = time.Now()
	}
}
