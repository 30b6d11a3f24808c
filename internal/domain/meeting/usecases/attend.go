package usecases

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/08351ty/Google-Meet-Bot/internal/audio"
	"github.com/08351ty/Google-Meet-Bot/internal/browser"
	"github.com/08351ty/Google-Meet-Bot/internal/clock"
	"github.com/08351ty/Google-Meet-Bot/internal/domain/meeting"
	"github.com/08351ty/Google-Meet-Bot/internal/presence"
)

// Browser is the UI automation surface the session needs.
type Browser interface {
	Navigate(ctx context.Context, url string) error
	FindControl(ctx context.Context, intent browser.Intent) (browser.Handle, error)
	Activate(ctx context.Context, h browser.Handle) error
	WaitUntil(ctx context.Context, pred browser.Predicate, timeout time.Duration) error
	CurrentLocation(ctx context.Context) (string, error)
}

// Capture records the session audio.
type Capture interface {
	Start(path string) error
	Stop() (audio.Recording, error)
	IsRecording() bool
}

// Presence answers whether anyone else is still in the call.
type Presence interface {
	SampleCount(ctx context.Context) presence.Sample
	IsAloneBefore(ctx context.Context, required int, until time.Time) bool
}

// InterruptedError is returned when the run was cancelled from outside.
type InterruptedError struct {
	State meeting.State
	Err   error
}

func (e *InterruptedError) Error() string {
	return fmt.Sprintf("session interrupted while %s: %v", e.State, e.Err)
}

func (e *InterruptedError) Unwrap() error { return e.Err }

// Timings are the fixed waits of the join and leave choreography.
type Timings struct {
	PageLoad      time.Duration
	PageSettle    time.Duration
	PreJoin       time.Duration
	JoinSettle    time.Duration
	JoinFallback  time.Duration
	LeaveSettle   time.Duration
	LeaveTimeout  time.Duration
	ProgressEvery time.Duration
}

// DefaultTimings returns the production waits.
func DefaultTimings() Timings {
	return Timings{
		PageLoad:      30 * time.Second,
		PageSettle:    5 * time.Second,
		PreJoin:       3 * time.Second,
		JoinSettle:    3 * time.Second,
		JoinFallback:  10 * time.Second,
		LeaveSettle:   2 * time.Second,
		LeaveTimeout:  15 * time.Second,
		ProgressEvery: 30 * time.Second,
	}
}

// Attend joins a call, records it and leaves.
type Attend struct {
	Browser  Browser
	Capture  Capture
	Presence Presence
	Clock    clock.Clock
	Timings  Timings
	Logger   *zap.Logger
}

type run struct {
	*Attend
	log *zap.Logger
	res *meeting.SessionResult
}

// Execute runs one session according to plan, writing audio to
// audioPath. The returned result is populated even on error.
func (a *Attend) Execute(ctx context.Context, plan meeting.SessionPlan, audioPath string) (*meeting.SessionResult, error) {
	if a.Clock == nil {
		a.Clock = clock.Real{}
	}
	if a.Logger == nil {
		a.Logger = zap.NewNop()
	}
	r := &run{
		Attend: a,
		log:    a.Logger.With(zap.String("component", "session"), zap.String("meeting", plan.MeetingURL)),
		res:    &meeting.SessionResult{StartedAt: a.Clock.Now(), AudioPath: audioPath},
	}
	r.enter(meeting.StateCreated)

	err := r.execute(ctx, plan, audioPath)
	r.res.EndedAt = a.Clock.Now()
	if err != nil {
		return r.res, r.abort(ctx, err)
	}
	r.enter(meeting.StateDone)
	return r.res, nil
}

func (r *run) execute(ctx context.Context, plan meeting.SessionPlan, audioPath string) error {
	if err := r.disableInputs(ctx, plan.MeetingURL); err != nil {
		return err
	}
	if err := r.join(ctx); err != nil {
		return err
	}

	if err := r.Capture.Start(audioPath); err != nil {
		return fmt.Errorf("starting capture: %w", err)
	}
	r.enter(meeting.StateRecording)

	outcome, err := r.record(ctx, plan)
	if err != nil {
		return err
	}

	if err := r.stopCapture(); err != nil {
		return err
	}
	r.res.Outcome = outcome
	r.enter(outcome)

	if outcome == meeting.StateEarlyExit {
		if err := r.leave(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (r *run) enter(st meeting.State) {
	r.res.States = append(r.res.States, st)
	r.log.Debug("session state", zap.Stringer("state", st))
}

func (r *run) warn(msg string, fields ...zap.Field) {
	r.res.Warnings = append(r.res.Warnings, msg)
	r.log.Warn(msg, fields...)
}

func (r *run) sleep(ctx context.Context, d time.Duration) error {
	return r.Clock.Sleep(ctx, d)
}

func (r *run) disableInputs(ctx context.Context, target string) error {
	if err := r.Browser.Navigate(ctx, target); err != nil {
		return fmt.Errorf("opening meeting: %w", err)
	}
	if err := r.Browser.WaitUntil(ctx, browser.DocumentReady, r.Timings.PageLoad); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		r.warn("page did not finish loading, continuing", zap.Error(err))
	}
	r.checkLocation(ctx, target)

	if _, err := r.activateFirst(ctx, browser.PermissionPromptIntents, false); err != nil {
		return err
	}
	if err := r.sleep(ctx, r.Timings.PageSettle); err != nil {
		return err
	}

	for _, intents := range [][]browser.Intent{browser.MuteIntents, browser.CameraOffIntents} {
		if _, err := r.activateFirst(ctx, intents, true); err != nil {
			return err
		}
	}
	r.enter(meeting.StateInputsDisabled)
	return nil
}

// checkLocation warns when the browser ended up somewhere other than
// the meeting host, usually a sign-in page.
func (r *run) checkLocation(ctx context.Context, target string) {
	loc, err := r.Browser.CurrentLocation(ctx)
	if err != nil {
		r.log.Debug("reading current location", zap.Error(err))
		return
	}
	want, err1 := url.Parse(target)
	got, err2 := url.Parse(loc)
	if err1 != nil || err2 != nil {
		return
	}
	if want.Host != "" && got.Host != want.Host {
		r.warn("browser was redirected away from the meeting, the profile may not be signed in",
			zap.String("location", loc))
	}
}

func (r *run) join(ctx context.Context) error {
	r.enter(meeting.StateJoining)
	if err := r.sleep(ctx, r.Timings.PreJoin); err != nil {
		return err
	}

	joined, err := r.activateFirst(ctx, browser.JoinIntents, true)
	if err != nil {
		return err
	}
	if joined {
		r.res.JoinConfirmed = true
		r.log.Info("join requested")
		if err := r.sleep(ctx, r.Timings.JoinSettle); err != nil {
			return err
		}
	} else {
		r.log.Info("waiting before continuing without a join control", zap.Duration("wait", r.Timings.JoinFallback))
		if err := r.sleep(ctx, r.Timings.JoinFallback); err != nil {
			return err
		}
	}
	r.enter(meeting.StateJoined)
	return nil
}

// activateFirst tries intents in order and stops at the first control
// that activates. Only context errors are returned; a miss is reported
// through the boolean and, when warn is set, a warning.
func (r *run) activateFirst(ctx context.Context, intents []browser.Intent, warn bool) (bool, error) {
	if len(intents) == 0 {
		return false, nil
	}
	action := intents[0].Action
	for i, in := range intents {
		h, err := r.Browser.FindControl(ctx, in)
		if err == nil {
			err = r.Browser.Activate(ctx, h)
		}
		if err == nil {
			r.log.Debug("control activated", zap.String("action", action), zap.Int("descriptor", i))
			return true, nil
		}
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		r.log.Debug("descriptor did not match", zap.String("action", action), zap.Int("descriptor", i), zap.Error(err))
	}
	if warn {
		r.warn("control not found, continuing without "+action,
			zap.String("action", action), zap.Error(browser.ErrControlNotFound))
	}
	return false, nil
}

// record runs the monitoring loop and returns the state that ends
// recording.
func (r *run) record(ctx context.Context, plan meeting.SessionPlan) (meeting.State, error) {
	start := r.Clock.Now()
	deadline := start.Add(plan.MaxDuration)
	lastProgress := start

	r.log.Info("recording",
		zap.Duration("max_duration", plan.MaxDuration),
		zap.Bool("monitor_presence", plan.MonitorPresence))

	for {
		remaining := deadline.Sub(r.Clock.Now())
		if remaining <= 0 {
			r.log.Info("recording duration reached")
			return meeting.StateTimedOut, nil
		}
		if !r.Capture.IsRecording() {
			r.warn("audio capture stopped on its own, ending session")
			return meeting.StateCaptureLost, nil
		}

		if err := r.sleep(ctx, min(plan.PollInterval, remaining)); err != nil {
			return 0, err
		}
		now := r.Clock.Now()
		if !now.Before(deadline) {
			continue
		}

		sample := presence.Sample{}
		if plan.MonitorPresence {
			sample = r.Presence.SampleCount(ctx)
			if sample.Alone() {
				r.log.Info("participant count low, confirming", zap.Int("count", sample.Count))
				if r.Presence.IsAloneBefore(ctx, plan.Confirmations, deadline) {
					r.log.Info("everyone else has left")
					return meeting.StateEarlyExit, nil
				}
				if err := ctx.Err(); err != nil {
					return 0, err
				}
			}
		}

		if now.Sub(lastProgress) >= r.Timings.ProgressEvery {
			lastProgress = now
			fields := []zap.Field{
				zap.Duration("elapsed", now.Sub(start).Round(time.Second)),
				zap.Duration("remaining", deadline.Sub(now).Round(time.Second)),
			}
			if sample.Known {
				fields = append(fields, zap.Int("participants", sample.Count))
			}
			r.log.Info("recording in progress", fields...)
		}
	}
}

func (r *run) stopCapture() error {
	rec, err := r.Capture.Stop()
	if err != nil {
		return fmt.Errorf("stopping capture: %w", err)
	}
	if rec.Empty() {
		return nil
	}
	r.res.AudioSamples = rec.Samples
	r.res.AudioDuration = rec.Duration()
	return nil
}

func (r *run) leave(ctx context.Context) error {
	r.res.LeaveAttempted = true
	left, err := r.activateFirst(ctx, browser.LeaveIntents, false)
	if err != nil {
		return err
	}
	if !left {
		r.res.ManualLeaveRequired = true
		r.warn("could not find a leave control, leave the call manually",
			zap.String("action", "leave call"), zap.Error(browser.ErrControlNotFound))
		r.enter(meeting.StateLeft)
		return nil
	}
	r.log.Info("left call")
	if err := r.sleep(ctx, r.Timings.LeaveSettle); err != nil {
		return err
	}
	if _, err := r.activateFirst(ctx, browser.FeedbackDialogIntents, false); err != nil {
		return err
	}
	r.enter(meeting.StateLeft)
	return nil
}

// abort stops capture before the error surfaces. On interruption it
// also tries to leave the call with a fresh bounded context.
func (r *run) abort(ctx context.Context, cause error) error {
	stopErr := r.stopCapture()

	if ctx.Err() == nil || !errors.Is(cause, ctx.Err()) {
		r.res.Outcome = meeting.StateFailed
		r.enter(meeting.StateFailed)
		r.log.Error("session failed", zap.Error(cause))
		return multierr.Append(cause, stopErr)
	}

	interrupted := &InterruptedError{State: r.res.Last(), Err: cause}
	// an outcome reached before the interrupt stands
	if r.res.Outcome == meeting.StateCreated {
		r.res.Outcome = meeting.StateInterrupted
	}
	r.enter(meeting.StateInterrupted)
	r.log.Warn("session interrupted, cleaning up", zap.Stringer("during", interrupted.State))

	var leaveErr error
	if r.res.Reached(meeting.StateJoined) && !r.res.LeaveAttempted {
		lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.Timings.LeaveTimeout)
		defer cancel()
		leaveErr = r.leave(lctx)
	}
	return multierr.Combine(interrupted, stopErr, leaveErr)
}
