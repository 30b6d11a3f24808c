package history

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/08351ty/Google-Meet-Bot/internal/domain/meeting"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Init(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_BeginFinishGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	m := &meeting.Meeting{
		Name:      "standup",
		URL:       "https://meet.google.com/abc-defg-hij",
		Dir:       "/tmp/meetings/x",
		StartedAt: start,
		AudioPath: "/tmp/meetings/x/recording.wav",
	}
	require.NoError(t, s.Begin(ctx, m))
	require.Len(t, m.ID, 26)

	got, err := s.Get(ctx, m.ID)
	require.NoError(t, err)
	require.Equal(t, meeting.StateRecording, got.Outcome)
	require.True(t, got.EndedAt.IsZero())

	m.EndedAt = start.Add(50 * time.Second)
	m.Outcome = meeting.StateEarlyExit
	m.AudioDuration = 50 * time.Second
	m.TranscriptPath = "/tmp/meetings/x/transcript.md"
	m.ManualLeave = true
	require.NoError(t, s.Finish(ctx, m))

	got, err = s.Get(ctx, m.ID)
	require.NoError(t, err)
	require.Equal(t, "standup", got.Name)
	require.Equal(t, meeting.StateEarlyExit, got.Outcome)
	require.Equal(t, 50*time.Second, got.AudioDuration)
	require.True(t, got.EndedAt.Equal(m.EndedAt))
	require.True(t, got.StartedAt.Equal(start))
	require.Equal(t, m.TranscriptPath, got.TranscriptPath)
	require.True(t, got.ManualLeave)
}

func TestStore_NotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Get(context.Background(), "nope")
	require.ErrorIs(t, err, ErrNotFound)

	err = s.Finish(context.Background(), &meeting.Meeting{ID: "nope"})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestStore_ListNewestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		m := &meeting.Meeting{URL: "u", Dir: "d", StartedAt: base.Add(time.Duration(i) * time.Hour)}
		require.NoError(t, s.Begin(ctx, m))
	}

	all, err := s.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.True(t, all[0].StartedAt.After(all[1].StartedAt))
	require.True(t, all[1].StartedAt.After(all[2].StartedAt))

	two, err := s.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, two, 2)
}

func TestInit_Reopen(t *testing.T) {
	dir := t.TempDir()
	s, err := Init(dir)
	require.NoError(t, err)
	m := &meeting.Meeting{URL: "u", Dir: "d", StartedAt: time.Now()}
	require.NoError(t, s.Begin(context.Background(), m))
	require.NoError(t, s.Close())

	s, err = Init(dir)
	require.NoError(t, err)
	defer s.Close()
	got, err := s.Get(context.Background(), m.ID)
	require.NoError(t, err)
	require.Equal(t, m.ID, got.ID)
}
