package output

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/08351ty/Google-Meet-Bot/internal/audio"
	"github.com/08351ty/Google-Meet-Bot/internal/domain/meeting"
)

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "0s"},
		{1500 * time.Millisecond, "2s"},
		{65 * time.Second, "1m05s"},
		{time.Hour + 2*time.Minute + 3*time.Second, "1h02m03s"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatDuration(tt.d))
	}
}

func TestBufferOutputIsUnstyled(t *testing.T) {
	var buf bytes.Buffer
	f := NewFormatter(&buf)
	f.Success("done")
	assert.Equal(t, "✅ done\n", buf.String())
}

func TestSessionEnded(t *testing.T) {
	var buf bytes.Buffer
	f := NewFormatter(&buf)
	f.SessionEnded(&meeting.SessionResult{
		Outcome:             meeting.StateEarlyExit,
		AudioDuration:       42 * time.Second,
		Warnings:            []string{"control not found, continuing without mute microphone"},
		ManualLeaveRequired: true,
	})

	out := buf.String()
	assert.Contains(t, out, "42s, everyone else left")
	assert.Contains(t, out, "continuing without mute microphone")
	assert.Contains(t, out, "Leave the call manually")
}

func TestSessionEndedNil(t *testing.T) {
	var buf bytes.Buffer
	NewFormatter(&buf).SessionEnded(nil)
	assert.Empty(t, buf.String())
}

func TestMeetingListItem(t *testing.T) {
	var buf bytes.Buffer
	f := NewFormatter(&buf)
	f.MeetingListItem(meeting.Meeting{
		ID:             "01JABCDEF0123456789XYZ",
		URL:            "https://meet.google.com/abc-defg-hij",
		StartedAt:      time.Date(2026, 3, 4, 10, 0, 0, 0, time.Local),
		AudioDuration:  90 * time.Second,
		Outcome:        meeting.StateTimedOut,
		TranscriptPath: "/m/transcript.md",
	})

	out := buf.String()
	assert.Contains(t, out, "https://meet.google.com/abc-defg-hij 📝")
	assert.Contains(t, out, "2026-03-04 10:00, 1m30s, timed_out")
}

func TestDeviceListItem(t *testing.T) {
	var buf bytes.Buffer
	NewFormatter(&buf).DeviceListItem(audio.InputDevice{
		Name: "Built-in Mic", HostAPI: "Core Audio", Channels: 1, DefaultSampleRate: 48000, Default: true,
	})
	assert.Equal(t, "★ Built-in Mic (Core Audio, 1 ch, 48000 Hz)\n", buf.String())
}
