package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/08351ty/Google-Meet-Bot/config"
	"github.com/08351ty/Google-Meet-Bot/internal/archive"
	"github.com/08351ty/Google-Meet-Bot/internal/audio"
	"github.com/08351ty/Google-Meet-Bot/internal/browser"
	"github.com/08351ty/Google-Meet-Bot/internal/clock"
	"github.com/08351ty/Google-Meet-Bot/internal/domain/meeting/usecases"
	"github.com/08351ty/Google-Meet-Bot/internal/history"
	"github.com/08351ty/Google-Meet-Bot/internal/presence"
)

// stallTimeout ends a recording whose device stopped delivering audio.
const stallTimeout = 5 * time.Second

type App struct {
	Config   *config.Config
	Logger   *zap.Logger
	Recorder *audio.Recorder
	History  *history.Store
	Browser  *browser.Endpoint
	// Archiver is nil when no archive provider is configured.
	Archiver *archive.Archiver

	Prepare    *usecases.PrepareMeeting
	Transcribe *usecases.Transcribe
	Summarize  *usecases.Summarize
}

func New(ctx context.Context, cfg *config.Config, log *zap.Logger) (*App, error) {
	store, err := history.Init(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("opening history: %w", err)
	}

	archiver, err := newArchiver(ctx, cfg.Archive, log)
	if err != nil {
		store.Close()
		return nil, err
	}

	recorder := audio.NewRecorder(audio.NewPortAudio(), audio.Options{
		SampleRate:   cfg.SampleRate,
		StallTimeout: stallTimeout,
	}, log)

	return &App{
		Config:   cfg,
		Logger:   log,
		Recorder: recorder,
		History:  store,
		Browser:  browser.NewEndpoint(cfg.ChromeDebugAddr),
		Archiver: archiver,
		Prepare: &usecases.PrepareMeeting{
			MeetingsDir:    cfg.MeetingsDir,
			FolderTemplate: cfg.FolderTemplate,
		},
		Transcribe: &usecases.Transcribe{
			APIKey: cfg.MistralAPIKey,
			Logger: log,
		},
		Summarize: &usecases.Summarize{
			APIKey:       cfg.AnthropicKey,
			SystemPrompt: cfg.SummaryPrompt,
			Logger:       log,
		},
	}, nil
}

func newArchiver(ctx context.Context, ac config.ArchiveConfig, log *zap.Logger) (*archive.Archiver, error) {
	var provider archive.Provider
	switch ac.Provider {
	case "":
		return nil, nil
	case "local":
		provider = archive.NewLocalProvider(ac.Path)
	case "s3":
		s3p, err := archive.NewS3Provider(ctx, archive.S3Options{
			Bucket:          ac.Bucket,
			Region:          ac.Region,
			Prefix:          ac.Prefix,
			Endpoint:        ac.Endpoint,
			AccessKeyID:     ac.AccessKeyID,
			SecretAccessKey: ac.SecretAccessKey,
		})
		if err != nil {
			return nil, fmt.Errorf("configuring s3 archive: %w", err)
		}
		provider = s3p
	default:
		return nil, fmt.Errorf("unknown archive provider %q", ac.Provider)
	}
	return &archive.Archiver{Provider: provider, Logger: log}, nil
}

// Session is an Attend use case bound to an attached browser tab.
type Session struct {
	*usecases.Attend
	page *browser.Page
}

// Close closes the session's browser tab.
func (s *Session) Close() error {
	return s.page.Close()
}

// NewSession opens a tab in the debugging browser and wires the presence
// monitor to its participant count.
func (a *App) NewSession(ctx context.Context) (*Session, error) {
	page, err := browser.Attach(ctx, a.Browser, a.Logger)
	if err != nil {
		return nil, fmt.Errorf("attaching to browser at %s (see: meetbot setup): %w", a.Config.ChromeDebugAddr, err)
	}

	clk := clock.Real{}
	monitor := presence.NewMonitor(page, a.Logger,
		presence.WithInterval(a.Config.ConfirmInterval),
		presence.WithClock(clk),
	)
	return &Session{
		Attend: &usecases.Attend{
			Browser:  page,
			Capture:  a.Recorder,
			Presence: monitor,
			Clock:    clk,
			Timings:  usecases.DefaultTimings(),
			Logger:   a.Logger,
		},
		page: page,
	}, nil
}

func (a *App) Close() error {
	_ = a.Logger.Sync()
	return a.History.Close()
}
