package ratelimit

import (
	"context"
	"time"
)

// Caps are the per-identity request budgets for each window.
type Caps struct {
	PerMinute int
	PerHour   int
	PerDay    int
}

func DefaultCaps() Caps {
	return Caps{PerMinute: 15, PerHour: 250, PerDay: 500}
}

// WindowState is one quota counter. Max and duration live on the
// limiter; only the mutable part is stored per identity.
type WindowState struct {
	Used    int       `json:"used"`
	ResetAt time.Time `json:"reset_at"`
}

// Quota holds the three windows tracked for one identity.
type Quota struct {
	Minute WindowState `json:"minute"`
	Hour   WindowState `json:"hour"`
	Day    WindowState `json:"day"`
}

type WindowUsage struct {
	Limit     int   `json:"limit"`
	Remaining int   `json:"remaining"`
	ResetInMs int64 `json:"reset_in_ms"`
}

type Usage struct {
	Minute WindowUsage `json:"minute"`
	Hour   WindowUsage `json:"hour"`
	Day    WindowUsage `json:"day"`
}

// Limiter enforces the three overlapping windows for every identity.
// All per-identity state lives in the Store passed at construction.
type Limiter struct {
	store Store
	caps  Caps
	now   func() time.Time
}

type Option func(*Limiter)

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

func New(store Store, caps Caps, opts ...Option) *Limiter {
	if caps.PerMinute <= 0 || caps.PerHour <= 0 || caps.PerDay <= 0 {
		caps = DefaultCaps()
	}

	l := &Limiter{
		store: store,
		caps:  caps,
		now:   time.Now,
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

type windowRef struct {
	state    *WindowState
	max      int
	duration time.Duration
}

// Fixed evaluation order: minute, hour, day.
func (l *Limiter) windows(q *Quota) [3]windowRef {
	return [3]windowRef{
		{&q.Minute, l.caps.PerMinute, time.Minute},
		{&q.Hour, l.caps.PerHour, time.Hour},
		{&q.Day, l.caps.PerDay, 24 * time.Hour},
	}
}

// Admit checks all three windows and, only if every one approves,
// increments all of them. A request denied by any window consumes no
// quota in the others, so a daily-cap rejection never burns minute or
// hour budget. The store serializes the whole check-and-increment.
func (l *Limiter) Admit(ctx context.Context, identity string) (bool, error) {
	allowed := false

	err := l.store.Update(ctx, identity, func(q *Quota) {
		now := l.now()
		windows := l.windows(q)

		for i := range windows {
			w := windows[i]
			if now.After(w.state.ResetAt) {
				w.state.Used = 0
				w.state.ResetAt = now.Add(w.duration)
			}
			if w.state.Used >= w.max {
				return // deny, nothing committed
			}
		}

		for i := range windows {
			windows[i].state.Used++
		}
		allowed = true
	})
	if err != nil {
		return false, err
	}

	return allowed, nil
}

// Describe reports remaining budget and reset delay per window without
// touching state. An identity never seen before gets the full caps with
// a zero reset delay.
func (l *Limiter) Describe(ctx context.Context, identity string) (Usage, error) {
	quota, found, err := l.store.Peek(ctx, identity)
	if err != nil {
		return Usage{}, err
	}

	now := l.now()
	if !found {
		quota = &Quota{}
	}

	windows := l.windows(quota)
	describe := func(w windowRef) WindowUsage {
		if !found || now.After(w.state.ResetAt) {
			return WindowUsage{Limit: w.max, Remaining: w.max, ResetInMs: 0}
		}
		remaining := w.max - w.state.Used
		if remaining < 0 {
			remaining = 0
		}
		return WindowUsage{
			Limit:     w.max,
			Remaining: remaining,
			ResetInMs: w.state.ResetAt.Sub(now).Milliseconds(),
		}
	}

	return Usage{
		Minute: describe(windows[0]),
		Hour:   describe(windows[1]),
		Day:    describe(windows[2]),
	}, nil
}
