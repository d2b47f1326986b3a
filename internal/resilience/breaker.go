// Package resilience guards calls to external recognizers with circuit
// breakers and ordered failover.
package resilience

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrCircuitOpen is returned when a breaker rejects a call without running it
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State is the operating mode of a Breaker
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

// BreakerConfig tunes a Breaker. Zero fields take defaults.
type BreakerConfig struct {
	Name string

	// MaxFailures is the number of consecutive failures that opens the
	// breaker. Default 5.
	MaxFailures int

	// ResetTimeout is how long the breaker stays open before probing.
	// Default 30s.
	ResetTimeout time.Duration

	// HalfOpenMax is the number of successful probes needed to close again.
	// Default 3.
	HalfOpenMax int
}

// Breaker is a three-state circuit breaker. Safe for concurrent use.
type Breaker struct {
	name         string
	maxFailures  int
	resetTimeout time.Duration
	halfOpenMax  int
	now          func() time.Time

	mu            sync.Mutex
	state         State
	failures      int
	openedAt      time.Time
	probes        int
	probeSuccess  int
}

// NewBreaker creates a closed breaker
func NewBreaker(cfg BreakerConfig) *Breaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 30 * time.Second
	}
	if cfg.HalfOpenMax <= 0 {
		cfg.HalfOpenMax = 3
	}
	return &Breaker{
		name:         cfg.Name,
		maxFailures:  cfg.MaxFailures,
		resetTimeout: cfg.ResetTimeout,
		halfOpenMax:  cfg.HalfOpenMax,
		now:          time.Now,
	}
}

// Execute runs fn unless the breaker is open. A context cancellation returned
// by fn is passed through without counting against the breaker.
func (b *Breaker) Execute(fn func() error) error {
	probing, err := b.admit()
	if err != nil {
		return err
	}

	err = fn()

	b.mu.Lock()
	defer b.mu.Unlock()
	switch {
	case err == nil:
		b.onSuccess(probing)
	case errors.Is(err, context.Canceled):
		if probing {
			b.probes--
		}
	default:
		b.onFailure(probing)
	}
	return err
}

func (b *Breaker) admit() (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateOpen {
		if b.now().Sub(b.openedAt) < b.resetTimeout {
			return false, ErrCircuitOpen
		}
		b.state = StateHalfOpen
		b.probes = 0
		b.probeSuccess = 0
		slog.Info("circuit breaker half-open", "name", b.name)
	}

	if b.state == StateHalfOpen {
		if b.probes >= b.halfOpenMax {
			return false, ErrCircuitOpen
		}
		b.probes++
		return true, nil
	}
	return false, nil
}

// must hold b.mu
func (b *Breaker) onFailure(probing bool) {
	if probing {
		b.trip()
		slog.Warn("circuit breaker re-opened", "name", b.name)
		return
	}
	b.failures++
	if b.failures >= b.maxFailures {
		b.trip()
		slog.Warn("circuit breaker opened", "name", b.name, "consecutive_failures", b.failures)
	}
}

// must hold b.mu
func (b *Breaker) onSuccess(probing bool) {
	if !probing {
		b.failures = 0
		return
	}
	b.probeSuccess++
	if b.probeSuccess >= b.halfOpenMax {
		b.state = StateClosed
		b.failures = 0
		slog.Info("circuit breaker closed", "name", b.name)
	}
}

func (b *Breaker) trip() {
	b.state = StateOpen
	b.openedAt = b.now()
	b.failures = 0
	b.probes = 0
	b.probeSuccess = 0
}

// State reports the current state. An open breaker whose timeout has
// elapsed reports half-open; the transition itself happens on the next call.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateOpen && b.now().Sub(b.openedAt) >= b.resetTimeout {
		return StateHalfOpen
	}
	return b.state
}

// Reset forces the breaker closed
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = StateClosed
	b.failures = 0
	b.probes = 0
	b.probeSuccess = 0
}
