package presence

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/08351ty/Google-Meet-Bot/internal/clock"
)

// scriptedSource replays counts in order; -1 means the signal failed.
// Once the script is exhausted every call fails.
type scriptedSource struct {
	counts []int
	calls  int
}

func (s *scriptedSource) ParticipantCount(ctx context.Context) (int, error) {
	i := s.calls
	s.calls++
	if i >= len(s.counts) || s.counts[i] < 0 {
		return 0, ErrSignalUnavailable
	}
	return s.counts[i], nil
}

func newTestMonitor(src Source, opts ...Option) (*Monitor, *clock.Manual) {
	clk := clock.NewManual(time.Unix(0, 0))
	opts = append([]Option{WithClock(clk)}, opts...)
	return NewMonitor(src, nil, opts...), clk
}

// expectAlone is the reference model: walk the first budget samples and
// report whether required consecutive low samples occur, and after how
// many samples.
func expectAlone(counts []int, required, budget int) (bool, int) {
	run := 0
	for i := 0; i < budget; i++ {
		c := -1
		if i < len(counts) {
			c = counts[i]
		}
		switch {
		case c < 0:
		case c > 1:
			run = 0
		default:
			run++
			if run >= required {
				return true, i + 1
			}
		}
	}
	return false, budget
}

func TestIsAlone_MatchesReferenceModel(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		counts := rapid.SliceOfN(rapid.IntRange(-1, 4), 0, 12).Draw(t, "counts")
		required := rapid.IntRange(1, 4).Draw(t, "required")
		slack := rapid.IntRange(0, 4).Draw(t, "slack")

		src := &scriptedSource{counts: counts}
		m, clk := newTestMonitor(src, WithSlack(slack), WithInterval(5*time.Second))
		start := clk.Now()

		got := m.IsAlone(context.Background(), required)
		want, samples := expectAlone(counts, required, required+slack)

		if got != want {
			t.Fatalf("IsAlone(%v, %d) = %v, want %v", counts, required, got, want)
		}
		if src.calls != samples {
			t.Fatalf("took %d samples, want %d", src.calls, samples)
		}
		if elapsed := clk.Now().Sub(start); elapsed != time.Duration(samples)*5*time.Second {
			t.Fatalf("elapsed %v for %d samples", elapsed, samples)
		}
	})
}

func TestIsAlone_AlwaysUnknownNeverConfirms(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		required := rapid.IntRange(1, 5).Draw(t, "required")
		slack := rapid.IntRange(0, 10).Draw(t, "slack")
		m, _ := newTestMonitor(&scriptedSource{}, WithSlack(slack))
		if m.IsAlone(context.Background(), required) {
			t.Fatal("confirmed aloneness from an unavailable signal")
		}
	})
}

func TestIsAlone_ResetOnCrowd(t *testing.T) {
	src := &scriptedSource{counts: []int{1, 3, 1, 1}}
	m, _ := newTestMonitor(src)
	require.True(t, m.IsAlone(context.Background(), 2))
	require.Equal(t, 4, src.calls)
}

func TestIsAlone_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	src := &scriptedSource{counts: []int{1, 1, 1}}
	m, _ := newTestMonitor(src)
	require.False(t, m.IsAlone(ctx, 2))
	require.Zero(t, src.calls)
}

func TestIsAloneBefore_StopsAtDeadline(t *testing.T) {
	src := &scriptedSource{counts: []int{1, 1, 1, 1}}
	m, clk := newTestMonitor(src, WithInterval(5*time.Second))
	until := clk.Now().Add(12 * time.Second)

	require.False(t, m.IsAloneBefore(context.Background(), 3, until))
	require.Equal(t, 2, src.calls)
	require.True(t, clk.Now().Before(until))
}

func TestIsAloneBefore_ConfirmsInsideDeadline(t *testing.T) {
	src := &scriptedSource{counts: []int{1, 1}}
	m, clk := newTestMonitor(src, WithInterval(5*time.Second))

	require.True(t, m.IsAloneBefore(context.Background(), 2, clk.Now().Add(11*time.Second)))
	require.Equal(t, 2, src.calls)
}

func TestSampleCount_NeverFails(t *testing.T) {
	m, clk := newTestMonitor(&scriptedSource{counts: []int{3, -1}})

	s := m.SampleCount(context.Background())
	require.True(t, s.Known)
	require.Equal(t, 3, s.Count)
	require.Equal(t, clk.Now(), s.At)
	require.False(t, s.Alone())

	s = m.SampleCount(context.Background())
	require.False(t, s.Known)
	require.False(t, s.Alone())
}

type negativeSource struct{}

func (negativeSource) ParticipantCount(context.Context) (int, error) { return -1, nil }

type brokenSource struct{}

func (brokenSource) ParticipantCount(context.Context) (int, error) {
	return 0, errors.New("websocket closed")
}

func TestSampleCount_UnknownSignals(t *testing.T) {
	for _, src := range []Source{negativeSource{}, brokenSource{}} {
		m, _ := newTestMonitor(src)
		require.False(t, m.SampleCount(context.Background()).Known)
	}
}

func TestDecision_Observe(t *testing.T) {
	d := NewDecision(2)
	require.Equal(t, Unknown, d.Observe(Sample{}))
	require.Equal(t, Accompanied, d.Observe(Sample{Known: true, Count: 4}))
	require.Equal(t, Accompanied, d.Observe(Sample{Known: true, Count: 1}))
	require.Equal(t, 1, d.Consecutive)
	require.Equal(t, Accompanied, d.Observe(Sample{}))
	require.Equal(t, 1, d.Consecutive)
	require.Equal(t, Alone, d.Observe(Sample{Known: true, Count: 0}))
	require.Equal(t, Accompanied, d.Observe(Sample{Known: true, Count: 2}))
	require.Zero(t, d.Consecutive)
}
