package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/08351ty/Google-Meet-Bot/config"
	"github.com/08351ty/Google-Meet-Bot/internal/app"
	"github.com/08351ty/Google-Meet-Bot/internal/audio"
	"github.com/08351ty/Google-Meet-Bot/internal/browser"
	"github.com/08351ty/Google-Meet-Bot/internal/domain/meeting"
	"github.com/08351ty/Google-Meet-Bot/internal/domain/meeting/usecases"
)

func executeCommand(root *cobra.Command, args ...string) (output string, err error) {
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	_, err = root.ExecuteC()
	return buf.String(), err
}

// fakeBrowser answers /json/version like a debugging Chrome.
func fakeBrowser(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/json/version" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewEncoder(w).Encode(browser.VersionInfo{Browser: "Chrome/126.0.0.0"})
	}))
	t.Cleanup(srv.Close)
	return strings.TrimPrefix(srv.URL, "http://")
}

// deadAddr is a host:port nothing listens on.
func deadAddr(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := strings.TrimPrefix(srv.URL, "http://")
	srv.Close()
	return addr
}

func newTestDeps(t *testing.T, debugAddr string) *Dependencies {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Defaults()
	cfg.MeetingsDir = filepath.Join(dir, "meetings")
	cfg.DataDir = filepath.Join(dir, "data")
	cfg.ChromeDebugAddr = debugAddr
	cfg.MistralAPIKey = ""
	cfg.AnthropicKey = ""

	a, err := app.New(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })

	return &Dependencies{
		App:    a,
		Config: cfg,
		ListDevices: func() ([]audio.InputDevice, error) {
			return []audio.InputDevice{
				{Name: "USB Mic", HostAPI: "ALSA", Channels: 1, DefaultSampleRate: 48000},
				{Name: "default", HostAPI: "ALSA", Channels: 2, DefaultSampleRate: 44100, Default: true},
			}, nil
		},
		LocalProcesses: func(context.Context) ([]browser.LocalProcess, error) {
			return nil, nil
		},
	}
}

func TestListEmpty(t *testing.T) {
	deps := newTestDeps(t, deadAddr(t))
	out, err := executeCommand(NewRootCmd(deps), "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No meetings found")
}

func TestListShowsHistory(t *testing.T) {
	deps := newTestDeps(t, deadAddr(t))
	ctx := context.Background()
	m := &meeting.Meeting{
		Name:      "standup",
		URL:       "https://meet.google.com/abc-defg-hij",
		Dir:       t.TempDir(),
		StartedAt: time.Now().Add(-time.Minute),
	}
	require.NoError(t, deps.App.History.Begin(ctx, m))
	m.EndedAt = time.Now()
	m.Outcome = meeting.StateEarlyExit
	m.AudioDuration = 45 * time.Second
	require.NoError(t, deps.App.History.Finish(ctx, m))

	out, err := executeCommand(NewRootCmd(deps), "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Meetings:")
	assert.Contains(t, out, "standup")
	assert.Contains(t, out, "45s, early_exit")
	assert.Contains(t, out, m.ID)
}

func TestDevices(t *testing.T) {
	deps := newTestDeps(t, deadAddr(t))
	out, err := executeCommand(NewRootCmd(deps), "devices")
	require.NoError(t, err)
	assert.Contains(t, out, "  USB Mic (ALSA, 1 ch, 48000 Hz)")
	assert.Contains(t, out, "★ default")
}

func TestDevicesError(t *testing.T) {
	deps := newTestDeps(t, deadAddr(t))
	deps.ListDevices = func() ([]audio.InputDevice, error) {
		return nil, errors.New("portaudio unavailable")
	}
	_, err := executeCommand(NewRootCmd(deps), "devices")
	require.ErrorContains(t, err, "portaudio unavailable")
}

func TestDoctorAllGood(t *testing.T) {
	addr := fakeBrowser(t)
	deps := newTestDeps(t, addr)
	deps.Config.Transcribe = false
	_, port, _ := strings.Cut(addr, ":")
	deps.LocalProcesses = func(context.Context) ([]browser.LocalProcess, error) {
		return []browser.LocalProcess{{PID: 42, Name: "chrome", DebugPort: port}}, nil
	}

	out, err := executeCommand(NewRootCmd(deps), "doctor")
	require.NoError(t, err)
	assert.Contains(t, out, "✅ Audio input: default")
	assert.Contains(t, out, "✅ Chrome process: running with --remote-debugging-port="+port)
	assert.Contains(t, out, "✅ Debug endpoint: Chrome/126.0.0.0")
	assert.Contains(t, out, "All prerequisites met")
}

func TestDoctorReportsMissing(t *testing.T) {
	deps := newTestDeps(t, deadAddr(t))

	out, err := executeCommand(NewRootCmd(deps), "doctor")
	require.NoError(t, err)
	assert.Contains(t, out, "❌ Chrome process: not running")
	assert.Contains(t, out, "❌ Debug endpoint")
	assert.Contains(t, out, "❌ Mistral API key")
	assert.Contains(t, out, "Some prerequisites are missing")
}

func TestSetupPrintsLaunchCommand(t *testing.T) {
	deps := newTestDeps(t, deadAddr(t))
	deps.Config.ChromePath = "/opt/chrome/chrome"
	deps.Config.ChromeUserDataDir = "/tmp/profile"
	_, port, _ := strings.Cut(deps.Config.ChromeDebugAddr, ":")

	out, err := executeCommand(NewRootCmd(deps), "setup")
	require.NoError(t, err)
	assert.Contains(t, out, `"/opt/chrome/chrome" --remote-debugging-port=`+port+` --user-data-dir="/tmp/profile"`)
	assert.Contains(t, out, "meetbot setup --launch")
}

func TestSetupReady(t *testing.T) {
	deps := newTestDeps(t, fakeBrowser(t))
	out, err := executeCommand(NewRootCmd(deps), "setup")
	require.NoError(t, err)
	assert.Contains(t, out, "Chrome is ready")
}

func TestJoinWithoutLink(t *testing.T) {
	deps := newTestDeps(t, deadAddr(t))
	_, err := executeCommand(NewRootCmd(deps), "join")
	require.Error(t, err)
	assert.True(t, config.IsConfigurationError(err))
}

func TestJoinRejectsBadDuration(t *testing.T) {
	deps := newTestDeps(t, deadAddr(t))
	_, err := executeCommand(NewRootCmd(deps), "join", "https://meet.google.com/abc-defg-hij", "--duration=-5s")
	require.Error(t, err)
	assert.True(t, config.IsConfigurationError(err))
}

func TestJoinBrowserUnreachableIsRecorded(t *testing.T) {
	deps := newTestDeps(t, deadAddr(t))
	_, err := executeCommand(NewRootCmd(deps), "join", "https://meet.google.com/abc-defg-hij", "--name", "retro")
	require.ErrorContains(t, err, "attaching to browser")

	list, err := deps.App.History.List(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, meeting.StateFailed, list[0].Outcome)
	assert.Equal(t, "retro", list[0].Name)
	assert.Empty(t, list[0].AudioPath)
}

func TestTranscribeMissingFile(t *testing.T) {
	deps := newTestDeps(t, deadAddr(t))
	_, err := executeCommand(NewRootCmd(deps), "transcribe", filepath.Join(t.TempDir(), "nope.wav"))
	require.ErrorContains(t, err, "reading audio file")
}

func TestTranscribeWithoutKey(t *testing.T) {
	deps := newTestDeps(t, deadAddr(t))
	path := filepath.Join(t.TempDir(), usecases.AudioFileName)
	require.NoError(t, audio.WriteWAV(path, 8000, make([]float32, 800)))

	_, err := executeCommand(NewRootCmd(deps), "transcribe", path)
	require.ErrorIs(t, err, usecases.ErrMissingAPIKey)
}
