// Package resilience guards calls to remote agent endpoints.
package resilience

import (
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned when an endpoint's breaker is rejecting calls.
var ErrCircuitOpen = errors.New("circuit breaker is open")

type state int

const (
	stateClosed state = iota
	stateOpen
	stateHalfOpen
)

func (s state) String() string {
	switch s {
	case stateOpen:
		return "open"
	case stateHalfOpen:
		return "half_open"
	default:
		return "closed"
	}
}

// Breaker opens after a run of consecutive failures and rejects calls until
// its cool-down elapses. While half-open exactly one trial call is let
// through; its outcome closes or re-opens the circuit.
type Breaker struct {
	mu          sync.Mutex
	state       state
	trialing    bool
	failures    int
	maxFailures int
	timeout     time.Duration
	openedAt    time.Time
	now         func() time.Time // for testing
}

// NewBreaker creates a Breaker that opens after maxFailures consecutive
// failures and stays open for timeout.
func NewBreaker(maxFailures int, timeout time.Duration) *Breaker {
	if maxFailures < 1 {
		maxFailures = 1
	}
	return &Breaker{
		maxFailures: maxFailures,
		timeout:     timeout,
		now:         time.Now,
	}
}

// Execute runs fn unless the circuit is open.
func (b *Breaker) Execute(fn func() error) error {
	if !b.allow() {
		return ErrCircuitOpen
	}

	err := fn()

	b.mu.Lock()
	defer b.mu.Unlock()
	b.trialing = false
	if err != nil {
		b.failures++
		if b.state == stateHalfOpen || b.failures >= b.maxFailures {
			b.state = stateOpen
			b.openedAt = b.now()
		}
		return err
	}
	b.failures = 0
	b.state = stateClosed
	return nil
}

// State reports "closed", "open" or "half_open".
func (b *Breaker) State() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state.String()
}

func (b *Breaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case stateOpen:
		if b.now().Sub(b.openedAt) < b.timeout {
			return false
		}
		b.state = stateHalfOpen
		b.trialing = true
		return true
	case stateHalfOpen:
		if b.trialing {
			return false
		}
		b.trialing = true
		return true
	}
	return true
}

// Breakers hands out one Breaker per endpoint key, created on first use.
type Breakers struct {
	mu          sync.Mutex
	byKey       map[string]*Breaker
	maxFailures int
	timeout     time.Duration
}

// NewBreakers creates an empty set sharing one threshold and cool-down.
func NewBreakers(maxFailures int, timeout time.Duration) *Breakers {
	return &Breakers{
		byKey:       make(map[string]*Breaker),
		maxFailures: maxFailures,
		timeout:     timeout,
	}
}

// For returns the Breaker for key.
func (s *Breakers) For(key string) *Breaker {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.byKey[key]
	if !ok {
		b = NewBreaker(s.maxFailures, s.timeout)
		s.byKey[key] = b
	}
	return b
}

// States returns the current state of every known breaker.
func (s *Breakers) States() map[string]string {
	s.mu.Lock()
	keys := make(map[string]*Breaker, len(s.byKey))
	for k, b := range s.byKey {
		keys[k] = b
	}
	s.mu.Unlock()

	out := make(map[string]string, len(keys))
	for k, b := range keys {
		out[k] = b.State()
	}
	return out
}
