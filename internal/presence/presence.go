// Package presence decides whether the bot is the only participant left
// in a call, debouncing a noisy participant-count signal.
package presence

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/08351ty/Google-Meet-Bot/internal/clock"
)

// ErrSignalUnavailable is returned by a Source when the participant
// count cannot be read right now.
var ErrSignalUnavailable = errors.New("participant signal unavailable")

// DefaultConfirmInterval is the spacing between confirmation samples.
const DefaultConfirmInterval = 3 * time.Second

// DefaultConfirmations is the number of consecutive low samples needed.
const DefaultConfirmations = 2

// Source reads the current participant count.
type Source interface {
	ParticipantCount(ctx context.Context) (int, error)
}

// Sample is one observation of the participant count.
type Sample struct {
	Count int
	Known bool
	At    time.Time
}

// Alone reports whether the sample is a known count of at most one.
func (s Sample) Alone() bool { return s.Known && s.Count <= 1 }

// State is the outcome of the confirmation logic so far.
type State int

const (
	Unknown State = iota
	Accompanied
	Alone
)

func (s State) String() string {
	switch s {
	case Accompanied:
		return "accompanied"
	case Alone:
		return "alone"
	default:
		return "unknown"
	}
}

// Decision accumulates samples toward an aloneness verdict.
type Decision struct {
	Required    int
	Consecutive int
	State       State
}

// NewDecision returns a Decision requiring n consecutive low samples.
func NewDecision(n int) *Decision {
	if n < 1 {
		n = 1
	}
	return &Decision{Required: n}
}

// Observe folds s into the decision and returns the new state. A count
// above one resets progress. Unknown samples change nothing.
func (d *Decision) Observe(s Sample) State {
	switch {
	case !s.Known:
	case s.Count > 1:
		d.Consecutive = 0
		d.State = Accompanied
	default:
		d.Consecutive++
		if d.Consecutive >= d.Required {
			d.State = Alone
		}
	}
	return d.State
}

// Monitor samples a Source and confirms aloneness.
type Monitor struct {
	source   Source
	clock    clock.Clock
	interval time.Duration
	// extra samples allowed beyond the required count
	slack int
	log   *zap.Logger
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithInterval sets the spacing between confirmation samples.
func WithInterval(d time.Duration) Option {
	return func(m *Monitor) { m.interval = d }
}

// WithSlack sets how many samples beyond the required count IsAlone may
// take before giving up.
func WithSlack(n int) Option {
	return func(m *Monitor) { m.slack = n }
}

// WithClock replaces the wall clock.
func WithClock(c clock.Clock) Option {
	return func(m *Monitor) { m.clock = c }
}

// NewMonitor returns a Monitor reading from source.
func NewMonitor(source Source, log *zap.Logger, opts ...Option) *Monitor {
	if log == nil {
		log = zap.NewNop()
	}
	m := &Monitor{
		source:   source,
		clock:    clock.Real{},
		interval: DefaultConfirmInterval,
		slack:    2,
		log:      log.With(zap.String("component", "presence")),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// SampleCount reads the participant count once. Failures are reported
// as an unknown sample, never as an error.
func (m *Monitor) SampleCount(ctx context.Context) Sample {
	s := Sample{At: m.clock.Now()}
	n, err := m.source.ParticipantCount(ctx)
	if err != nil {
		m.log.Debug("participant count unavailable", zap.Error(err))
		return s
	}
	if n < 0 {
		m.log.Debug("participant count unavailable", zap.Error(ErrSignalUnavailable))
		return s
	}
	s.Count = n
	s.Known = true
	return s
}

// IsAlone takes samples spaced by the monitor interval until required
// consecutive samples report at most one participant. It gives up and
// returns false once its sample budget is spent or ctx is done.
func (m *Monitor) IsAlone(ctx context.Context, required int) bool {
	return m.IsAloneBefore(ctx, required, time.Time{})
}

// IsAloneBefore is IsAlone with a deadline on the monitor's clock. No
// sample is taken at or after until; a zero until means no deadline.
func (m *Monitor) IsAloneBefore(ctx context.Context, required int, until time.Time) bool {
	d := NewDecision(required)
	budget := d.Required + m.slack

	for i := 0; i < budget; i++ {
		if !until.IsZero() && !m.clock.Now().Add(m.interval).Before(until) {
			m.log.Debug("confirmation cut short by deadline",
				zap.Int("consecutive", d.Consecutive),
				zap.Int("required", d.Required))
			return false
		}
		if err := m.clock.Sleep(ctx, m.interval); err != nil {
			return false
		}
		s := m.SampleCount(ctx)
		state := d.Observe(s)
		m.log.Debug("confirmation sample",
			zap.Int("attempt", i+1),
			zap.Bool("known", s.Known),
			zap.Int("count", s.Count),
			zap.Int("consecutive", d.Consecutive),
			zap.Int("required", d.Required))
		if state == Alone {
			return true
		}
	}
	return false
}
