package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/08351ty/Google-Meet-Bot/config"
	"github.com/08351ty/Google-Meet-Bot/internal/domain/meeting"
	"github.com/08351ty/Google-Meet-Bot/internal/domain/meeting/usecases"
	"github.com/08351ty/Google-Meet-Bot/internal/output"
)

type joinOptions struct {
	name          string
	duration      time.Duration
	noMonitor     bool
	confirmations int
	noTranscribe  bool
	summarize     bool
	noArchive     bool
}

func NewJoinCmd(deps *Dependencies) *cobra.Command {
	var opts joinOptions

	cmd := &cobra.Command{
		Use:   "join [meeting-url]",
		Short: "Join a meeting, record it and leave",
		Long: "Join a Google Meet call in the Chrome instance listening on the debug address,\n" +
			"mute the microphone and camera, record the default input device, and leave when\n" +
			"the time limit is reached or everyone else has left. Ctrl+C leaves early and keeps the audio.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := *deps.Config
			if len(args) == 1 {
				cfg.MeetingURL = args[0]
			}
			if cmd.Flags().Changed("duration") {
				cfg.MaxDuration = opts.duration
			}
			if cmd.Flags().Changed("confirmations") {
				cfg.Confirmations = opts.confirmations
			}
			if opts.noMonitor {
				cfg.MonitorParticipants = false
			}
			if opts.noTranscribe {
				cfg.Transcribe = false
			}
			if opts.summarize {
				cfg.Summarize = true
			}

			plan, err := cfg.Plan()
			if err != nil {
				return err
			}
			return runJoin(cmd.Context(), deps, &cfg, plan, opts, output.NewFormatter(cmd.OutOrStdout()))
		},
	}

	cmd.Flags().StringVarP(&opts.name, "name", "n", "", "Meeting name (used in folder name)")
	cmd.Flags().DurationVarP(&opts.duration, "duration", "d", 0, "Maximum recording length (default from config)")
	cmd.Flags().BoolVar(&opts.noMonitor, "no-monitor", false, "Record for the full duration even if everyone leaves")
	cmd.Flags().IntVar(&opts.confirmations, "confirmations", 0, "Consecutive alone samples needed before leaving")
	cmd.Flags().BoolVar(&opts.noTranscribe, "no-transcribe", false, "Skip transcription after the call")
	cmd.Flags().BoolVar(&opts.summarize, "summarize", false, "Generate a summary after transcription")
	cmd.Flags().BoolVar(&opts.noArchive, "no-archive", false, "Do not archive the meeting folder")

	return cmd
}

func runJoin(parent context.Context, deps *Dependencies, cfg *config.Config, plan meeting.SessionPlan, opts joinOptions, f *output.Formatter) error {
	a := deps.App

	m, err := a.Prepare.Execute(time.Now(), plan.MeetingURL, opts.name)
	if err != nil {
		return err
	}
	if err := a.History.Begin(parent, m); err != nil {
		return err
	}
	log := a.Logger.With(zap.String("session", m.ID))

	ctx, cancel := context.WithCancel(parent)
	defer cancel()
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-sigs:
			f.Stopping()
			cancel()
		case <-ctx.Done():
		}
	}()

	f.Joining(plan.MeetingURL, plan.MaxDuration)
	res, runErr := attend(ctx, deps, plan, m.AudioPath)
	// a second Ctrl+C during post-processing terminates the process
	signal.Stop(sigs)

	m.EndedAt = time.Now()
	m.Outcome = meeting.StateFailed
	audioPath := m.AudioPath
	m.AudioPath = ""
	if res != nil {
		m.Outcome = res.Outcome
		m.EndedAt = res.EndedAt
		m.AudioDuration = res.AudioDuration
		m.ManualLeave = res.ManualLeaveRequired
		if res.AudioSamples > 0 {
			m.AudioPath = audioPath
		}
		f.SessionEnded(res)
	}

	var postErr error
	if m.AudioPath != "" {
		postErr = postProcess(parent, deps, cfg, m, opts, f)
	} else if runErr == nil {
		f.Warning("No audio was captured")
	}

	if err := a.History.Finish(context.WithoutCancel(parent), m); err != nil {
		log.Warn("recording session history", zap.Error(err))
	}
	if m.AudioPath != "" {
		f.MeetingComplete(m.Dir)
	}

	var interrupted *usecases.InterruptedError
	if errors.As(runErr, &interrupted) {
		// the user asked to stop; only cleanup problems are errors
		runErr = multierr.Combine(withoutInterrupt(runErr)...)
	}
	return multierr.Combine(runErr, postErr)
}

func withoutInterrupt(err error) []error {
	var rest []error
	for _, e := range multierr.Errors(err) {
		var interrupted *usecases.InterruptedError
		if !errors.As(e, &interrupted) {
			rest = append(rest, e)
		}
	}
	return rest
}

func attend(ctx context.Context, deps *Dependencies, plan meeting.SessionPlan, audioPath string) (*meeting.SessionResult, error) {
	session, err := deps.App.NewSession(ctx)
	if err != nil {
		return nil, err
	}
	defer session.Close()
	return session.Execute(ctx, plan, audioPath)
}

// postProcess archives the recording while the transcript and summary
// are produced, then archives those too.
func postProcess(ctx context.Context, deps *Dependencies, cfg *config.Config, m *meeting.Meeting, opts joinOptions, f *output.Formatter) error {
	a := deps.App
	archiver := a.Archiver
	if opts.noArchive {
		archiver = nil
	}

	g, gctx := errgroup.WithContext(ctx)
	if archiver != nil {
		g.Go(func() error {
			loc, err := archiver.Files(gctx, m.Dir, usecases.AudioFileName)
			if err != nil {
				return fmt.Errorf("archiving recording: %w", err)
			}
			m.ArchivedTo = loc
			return nil
		})
	}
	transcribe := cfg.Transcribe
	if transcribe && a.Transcribe.APIKey == "" {
		f.Warning("Skipping transcription, no Mistral API key configured")
		transcribe = false
	}
	summarize := cfg.Summarize
	if summarize && a.Summarize.APIKey == "" {
		f.Warning("Skipping summary, no Anthropic API key configured")
		summarize = false
	}
	if transcribe {
		g.Go(func() error {
			f.Transcribing()
			result, err := a.Transcribe.Execute(gctx, m.AudioPath, m.Dir)
			if err != nil {
				return err
			}
			m.TranscriptPath = result.Path
			f.TranscribeDone(result.Path)

			if !summarize {
				return nil
			}
			f.Summarizing()
			path, err := a.Summarize.Execute(gctx, result.Text, m.Dir)
			if err != nil {
				return err
			}
			m.SummaryPath = path
			f.SummarizeDone(path)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if archiver == nil {
		return nil
	}
	var rest []string
	for _, name := range []string{m.TranscriptPath, m.SummaryPath} {
		if name != "" {
			rest = append(rest, filepath.Base(name))
		}
	}
	if len(rest) > 0 {
		if _, err := archiver.Files(ctx, m.Dir, rest...); err != nil {
			return fmt.Errorf("archiving transcript: %w", err)
		}
	}
	f.Archived(m.ArchivedTo)
	return nil
}
