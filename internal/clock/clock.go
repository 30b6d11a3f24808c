// Package clock abstracts wall-clock time so session timing can run on
// virtual time in tests.
package clock

import (
	"context"
	"sync"
	"time"
)

// Clock reports the current time and sleeps with cancellation.
type Clock interface {
	Now() time.Time
	// Sleep blocks for d or until ctx is done, whichever comes first.
	// It returns ctx.Err() when interrupted.
	Sleep(ctx context.Context, d time.Duration) error
}

// Real is the system clock.
type Real struct{}

func (Real) Now() time.Time { return time.Now() }

func (Real) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Manual is a virtual clock. Sleep advances the clock immediately and
// runs any registered hooks with the slept duration.
type Manual struct {
	mu    sync.Mutex
	now   time.Time
	hooks []func(d time.Duration)
}

// NewManual returns a Manual clock starting at start.
func NewManual(start time.Time) *Manual {
	return &Manual{now: start}
}

func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

func (m *Manual) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.Advance(d)
	return ctx.Err()
}

// Advance moves the clock forward by d and notifies hooks.
func (m *Manual) Advance(d time.Duration) {
	if d <= 0 {
		return
	}
	m.mu.Lock()
	m.now = m.now.Add(d)
	hooks := append([]func(time.Duration){}, m.hooks...)
	m.mu.Unlock()
	for _, h := range hooks {
		h(d)
	}
}

// OnAdvance registers fn to run after every advance.
func (m *Manual) OnAdvance(fn func(d time.Duration)) {
	m.mu.Lock()
	m.hooks = append(m.hooks, fn)
	m.mu.Unlock()
}
