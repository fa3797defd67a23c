// Package circuitbreaker fails provider calls fast after repeated
// upstream failures instead of hammering a broken API.
package circuitbreaker

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrOpen is returned while the breaker refuses calls. It reads as a
// transient condition, so retry policies treat it like any other
// provider hiccup.
var ErrOpen = errors.New("provider temporarily unavailable: circuit open")

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
	default:
		return "unknown"
	}
}

type Config struct {
	MaxFailures int           // consecutive failures before opening (default: 5)
	Timeout     time.Duration // how long to stay open (default: 30s)
}

type Breaker struct {
	mu          sync.Mutex
	state       State
	failures    int
	openedAt    time.Time
	maxFailures int
	timeout     time.Duration
	now         func() time.Time
}

func New(cfg Config) *Breaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	return &Breaker{
		state:       StateClosed,
		maxFailures: cfg.MaxFailures,
		timeout:     cfg.Timeout,
		now:         time.Now,
	}
}

// Call runs fn unless the breaker is open. After the open timeout one
// probe call is let through; its outcome decides whether the breaker
// closes again.
func (b *Breaker) Call(fn func() error) error {
	b.mu.Lock()
	if b.state == StateOpen {
		if b.now().Sub(b.openedAt) < b.timeout {
			b.mu.Unlock()
			return ErrOpen
		}
		b.transition(StateHalfOpen)
	}
	b.mu.Unlock()

	err := fn()

	b.mu.Lock()
	defer b.mu.Unlock()

	if err != nil {
		b.failures++
		if b.state == StateHalfOpen || b.failures >= b.maxFailures {
			b.openedAt = b.now()
			b.transition(StateOpen)
		}
		return err
	}

	b.failures = 0
	if b.state != StateClosed {
		b.transition(StateClosed)
	}
	return nil
}

func (b *Breaker) transition(next State) {
	if b.state == next {
		return
	}
	slog.Info("circuit breaker state change", "from", b.state.String(), "to", next.String())
	b.state = next
}

func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
