// Package breaker provides a circuit breaker for calls to failing external
// dependencies. State is process-local and mutated only through the breaker's
// own methods.
package breaker

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned when the breaker is open and the reset timeout
// has not elapsed. The wrapped operation is not invoked.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State identifies the breaker position.
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half-open"
)

// Options configure a breaker.
type Options struct {
	// FailureThreshold is the number of consecutive failures that opens
	// the circuit.
	FailureThreshold int
	// ResetTimeout is how long the circuit stays open before a trial call
	// is allowed.
	ResetTimeout time.Duration
	// HalfOpenSuccessThreshold is the number of consecutive successes in
	// half-open state required to close the circuit.
	HalfOpenSuccessThreshold int
}

// Breaker wraps calls to an external dependency and trips after repeated
// failures. All transitions happen under one mutex so concurrent callers
// observe a consistent state.
type Breaker struct {
	name string
	opts Options

	mu               sync.Mutex
	state            State
	failures         int
	halfOpenSuccess  int
	openedAt         time.Time
	now              func() time.Time
}

// Snapshot is a point-in-time view of breaker state for health reporting.
type Snapshot struct {
	Name     string `json:"name"`
	State    State  `json:"state"`
	Failures int    `json:"failures"`
}

// New creates a closed breaker. Zero or negative option values fall back to
// safe defaults (5 failures, 60s reset, 2 half-open successes).
func New(name string, opts Options) *Breaker {
	if opts.FailureThreshold < 1 {
		opts.FailureThreshold = 5
	}
	if opts.ResetTimeout <= 0 {
		opts.ResetTimeout = 60 * time.Second
	}
	if opts.HalfOpenSuccessThreshold < 1 {
		opts.HalfOpenSuccessThreshold = 2
	}
	return &Breaker{
		name:  name,
		opts:  opts,
		state: StateClosed,
		now:   time.Now,
	}
}

// Execute runs op through the breaker. While open and within the reset
// timeout it fails fast with ErrCircuitOpen without invoking op. The breaker
// performs no retries; retry policy belongs to the caller's queue layer.
func (b *Breaker) Execute(ctx context.Context, op func(ctx context.Context) error) error {
	if err := b.attempt(); err != nil {
		return err
	}

	if err := op(ctx); err != nil {
		b.onFailure()
		return err
	}

	b.onSuccess()
	return nil
}

// attempt decides whether a call may proceed, moving open to half-open once
// the reset timeout has elapsed.
func (b *Breaker) attempt() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != StateOpen {
		return nil
	}

	if b.now().Sub(b.openedAt) < b.opts.ResetTimeout {
		return ErrCircuitOpen
	}

	b.state = StateHalfOpen
	b.halfOpenSuccess = 0
	return nil
}

func (b *Breaker) onSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateHalfOpen:
		b.halfOpenSuccess++
		if b.halfOpenSuccess >= b.opts.HalfOpenSuccessThreshold {
			b.state = StateClosed
			b.failures = 0
			b.halfOpenSuccess = 0
		}
	case StateClosed:
		b.failures = 0
	}
}

func (b *Breaker) onFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateHalfOpen:
		// A single failure during the trial period reopens immediately.
		b.state = StateOpen
		b.openedAt = b.now()
		b.halfOpenSuccess = 0
	case StateClosed:
		b.failures++
		if b.failures >= b.opts.FailureThreshold {
			b.state = StateOpen
			b.openedAt = b.now()
		}
	}
}

// Snapshot returns the current state and failure count.
func (b *Breaker) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Snapshot{
		Name:     b.name,
		State:    b.state,
		Failures: b.failures,
	}
}
