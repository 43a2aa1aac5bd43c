// Package resilience holds the transport's fault-tolerance primitives: a
// backoff policy for repeating engine calls, a circuit breaker that stops
// calling an engine that keeps failing, and a per-attempt deadline.
package resilience

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ErrCircuitOpen matches every *OpenError.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State is the breaker's phase. The numeric values are exported as a gauge.
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
	return fmt.Sprintf("State(%d)", int(s))
}

// OpenError is returned instead of calling through an open breaker.
type OpenError struct {
	Name string
	// RetryAfter is how long until the breaker lets a probe through; zero
	// while a half-open probe is already running.
	RetryAfter time.Duration
}

func (e *OpenError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("circuit %s is open, retry after %v", e.Name, e.RetryAfter.Round(time.Millisecond))
	}
	return fmt.Sprintf("circuit %s is half-open, probe in progress", e.Name)
}

func (e *OpenError) Is(target error) bool { return target == ErrCircuitOpen }

// BreakerConfig controls when the breaker trips and recovers. Zero values
// take defaults: five failures, a thirty second cooldown and one probe.
type BreakerConfig struct {
	Threshold int
	Cooldown  time.Duration
	Probes    int
	// Counts decides which errors count as failures. An engine rejecting
	// a bad request is still available, so callers usually narrow this.
	// Nil counts every error.
	Counts func(error) bool
	// OnChange runs with the breaker's lock held and must not block.
	OnChange func(State)
}

// Breaker trips open after Threshold consecutive failures, refuses calls
// for Cooldown, then lets Probes calls through half-open. One successful
// probe closes it; a failed one opens it again.
type Breaker struct {
	name   string
	cfg    BreakerConfig
	now    func() time.Time
	logger *slog.Logger

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	probing  int
}

func NewBreaker(name string, cfg BreakerConfig) *Breaker {
	if cfg.Threshold <= 0 {
		cfg.Threshold = 5
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 30 * time.Second
	}
	if cfg.Probes <= 0 {
		cfg.Probes = 1
	}
	return &Breaker{
		name:   name,
		cfg:    cfg,
		now:    time.Now,
		logger: slog.Default().With("component", "breaker", "name", name),
	}
}

// Do runs fn unless the breaker is open, and records how it went.
func (b *Breaker) Do(fn func() error) error {
	probe, err := b.admit()
	if err != nil {
		return err
	}
	err = fn()
	b.record(probe, err)
	return err
}

// State returns the current phase, moving an open breaker whose cooldown
// has passed to half-open.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cool()
	return b.state
}

// Reset closes the breaker and forgets past failures.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures, b.probing = 0, 0
	b.transition(StateClosed)
}

func (b *Breaker) admit() (probe bool, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cool()
	switch b.state {
	case StateOpen:
		return false, &OpenError{Name: b.name, RetryAfter: b.cfg.Cooldown - b.now().Sub(b.openedAt)}
	case StateHalfOpen:
		if b.probing >= b.cfg.Probes {
			return false, &OpenError{Name: b.name}
		}
		b.probing++
		return true, nil
	}
	return false, nil
}

func (b *Breaker) cool() {
	if b.state == StateOpen && b.now().Sub(b.openedAt) >= b.cfg.Cooldown {
		b.probing = 0
		b.transition(StateHalfOpen)
	}
}

func (b *Breaker) record(probe bool, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if probe {
		b.probing--
	}
	failed := err != nil && (b.cfg.Counts == nil || b.cfg.Counts(err))
	if !failed {
		b.failures = 0
		if b.state == StateHalfOpen && probe {
			b.transition(StateClosed)
		}
		return
	}

	b.failures++
	switch {
	case b.state == StateHalfOpen && probe:
		b.open(err)
	case b.state == StateClosed && b.failures >= b.cfg.Threshold:
		b.open(err)
	}
}

func (b *Breaker) open(cause error) {
	b.openedAt = b.now()
	b.transition(StateOpen)
	b.logger.Warn("circuit opened", "consecutive_failures", b.failures, "cooldown", b.cfg.Cooldown, "error", cause)
}

func (b *Breaker) transition(to State) {
	if b.state == to {
		return
	}
	from := b.state
	b.state = to
	if to != StateOpen {
		b.logger.Info("circuit state changed", "from", from, "to", to)
	}
	if b.cfg.OnChange != nil {
		b.cfg.OnChange(to)
	}
}
