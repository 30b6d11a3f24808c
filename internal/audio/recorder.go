package audio

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// DefaultSampleRate is the capture rate used when none is configured.
const DefaultSampleRate = 44100

// DefaultStopGrace bounds how long Stop waits for the capture goroutine.
const DefaultStopGrace = 3 * time.Second

const frameQueueSize = 256

var (
	// ErrAlreadyRecording is returned by Start while a session is active.
	ErrAlreadyRecording = errors.New("a recording is already in progress")
	// ErrCaptureStuck is returned by Stop when the device stream did not
	// stop within the grace period. No file is written.
	ErrCaptureStuck = errors.New("capture did not stop within grace period")
)

// Status is the lifecycle state of a capture session.
type Status int32

const (
	StatusIdle Status = iota
	StatusRecording
	StatusStopping
	StatusStopped
)

func (s Status) String() string {
	switch s {
	case StatusRecording:
		return "recording"
	case StatusStopping:
		return "stopping"
	case StatusStopped:
		return "stopped"
	default:
		return "idle"
	}
}

// Recording describes a finalized capture.
type Recording struct {
	Path       string
	SampleRate int
	Samples    int
	Overflows  int64
	Dropped    int64
}

// Empty reports whether nothing was captured and no file was written.
func (r Recording) Empty() bool { return r.Samples == 0 }

// Duration is the audio length of the recording.
func (r Recording) Duration() time.Duration {
	if r.SampleRate == 0 {
		return 0
	}
	return time.Duration(r.Samples) * time.Second / time.Duration(r.SampleRate)
}

// Options configures a Recorder.
type Options struct {
	SampleRate int
	// StopGrace bounds the wait for the device stream to stop in Stop.
	StopGrace time.Duration
	// StallTimeout stops the session when the device delivers no frames
	// for this long. Zero disables stall detection.
	StallTimeout time.Duration
}

// Recorder captures mono audio from a Device into memory and writes it
// out as WAV when stopped.
type Recorder struct {
	device Device
	opts   Options
	log    *zap.Logger

	mu      sync.Mutex // serializes Start and Stop
	current atomic.Pointer[session]
}

type session struct {
	path   string
	stream Stream
	cancel context.CancelFunc
	frames chan []float32
	done   chan struct{}
	status atomic.Int32

	// written only by the capture goroutine until done is closed
	buf []float32

	overflows atomic.Int64
	dropped   atomic.Int64
	lastFrame atomic.Int64
}

func (s *session) setStatus(st Status) { s.status.Store(int32(st)) }
func (s *session) getStatus() Status   { return Status(s.status.Load()) }

// NewRecorder returns a Recorder reading from device.
func NewRecorder(device Device, opts Options, log *zap.Logger) *Recorder {
	if opts.SampleRate <= 0 {
		opts.SampleRate = DefaultSampleRate
	}
	if opts.StopGrace <= 0 {
		opts.StopGrace = DefaultStopGrace
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Recorder{
		device: device,
		opts:   opts,
		log:    log.With(zap.String("component", "audio")),
	}
}

// SampleRate is the configured capture rate.
func (r *Recorder) SampleRate() int { return r.opts.SampleRate }

// Start opens the device and begins capturing asynchronously. The
// capture ends when Stop is called or the device faults.
func (r *Recorder) Start(path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s := r.current.Load(); s != nil {
		return fmt.Errorf("%w (status %s, target %s)", ErrAlreadyRecording, s.getStatus(), s.path)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &session{
		path:   path,
		cancel: cancel,
		frames: make(chan []float32, frameQueueSize),
		done:   make(chan struct{}),
	}
	s.lastFrame.Store(time.Now().UnixNano())

	stream, err := r.device.Open(r.opts.SampleRate, func(in []float32, overflow bool) {
		r.deliver(ctx, s, in, overflow)
	})
	if err != nil {
		cancel()
		return &DeviceAcquisitionError{Op: "open", Err: err}
	}
	if err := stream.Start(); err != nil {
		cancel()
		return &DeviceAcquisitionError{Op: "start", Err: multierr.Append(err, stream.Close())}
	}
	s.stream = stream
	s.setStatus(StatusRecording)
	r.current.Store(s)

	go r.capture(ctx, s)

	r.log.Info("recording started",
		zap.String("path", path),
		zap.Int("sample_rate", r.opts.SampleRate))
	return nil
}

// deliver runs on the device thread. It must never block.
func (r *Recorder) deliver(ctx context.Context, s *session, in []float32, overflow bool) {
	if ctx.Err() != nil {
		return
	}
	if overflow {
		s.overflows.Add(1)
	}
	s.lastFrame.Store(time.Now().UnixNano())
	chunk := make([]float32, len(in))
	copy(chunk, in)
	select {
	case s.frames <- chunk:
	default:
		s.dropped.Add(1)
	}
}

func (r *Recorder) capture(ctx context.Context, s *session) {
	defer close(s.done)

	var stall <-chan time.Time
	if r.opts.StallTimeout > 0 {
		t := time.NewTicker(r.opts.StallTimeout / 2)
		defer t.Stop()
		stall = t.C
	}

	var reportedOverflows int64
	for {
		select {
		case chunk := <-s.frames:
			s.buf = append(s.buf, chunk...)
			if n := s.overflows.Load(); n > reportedOverflows {
				r.log.Warn("input overflow reported by device", zap.Int64("overflows", n))
				reportedOverflows = n
			}
		case <-stall:
			idle := time.Since(time.Unix(0, s.lastFrame.Load()))
			if idle >= r.opts.StallTimeout {
				r.log.Error("capture stalled, device may be disconnected",
					zap.Duration("idle", idle))
				s.setStatus(StatusStopped)
				r.drain(s)
				return
			}
		case <-ctx.Done():
			r.drain(s)
			return
		}
	}
}

func (r *Recorder) drain(s *session) {
	for {
		select {
		case chunk := <-s.frames:
			s.buf = append(s.buf, chunk...)
		default:
			return
		}
	}
}

// IsRecording reports whether a session is actively capturing.
func (r *Recorder) IsRecording() bool {
	s := r.current.Load()
	return s != nil && s.getStatus() == StatusRecording
}

// Status reports the current session status, or StatusIdle.
func (r *Recorder) Status() Status {
	if s := r.current.Load(); s != nil {
		return s.getStatus()
	}
	return StatusIdle
}

// Stop ends the active session and writes the WAV file. With no active
// session it does nothing and returns a zero Recording. When no frames
// were captured no file is written and the returned Recording is Empty.
func (r *Recorder) Stop() (Recording, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.current.Load()
	if s == nil {
		return Recording{}, nil
	}
	defer r.current.Store(nil)

	s.setStatus(StatusStopping)
	s.cancel()

	// Stream.Stop waits for the driver to return from its callback and
	// can hang on a wedged device.
	closed := make(chan error, 1)
	go func() { closed <- r.closeStream(s) }()

	timer := time.NewTimer(r.opts.StopGrace)
	defer timer.Stop()
	var streamErr error
	select {
	case streamErr = <-closed:
	case <-timer.C:
		r.log.Error("audio stream did not stop", zap.Duration("grace", r.opts.StopGrace))
		s.setStatus(StatusStopped)
		return Recording{}, ErrCaptureStuck
	}
	<-s.done
	s.setStatus(StatusStopped)

	if streamErr != nil {
		r.log.Warn("closing audio stream", zap.Error(streamErr))
	}

	rec := Recording{
		SampleRate: r.opts.SampleRate,
		Samples:    len(s.buf),
		Overflows:  s.overflows.Load(),
		Dropped:    s.dropped.Load(),
	}
	if rec.Dropped > 0 {
		r.log.Warn("audio buffers dropped", zap.Int64("dropped", rec.Dropped))
	}
	if rec.Empty() {
		r.log.Warn("no audio captured", zap.String("path", s.path))
		return rec, nil
	}

	if err := WriteWAV(s.path, r.opts.SampleRate, s.buf); err != nil {
		return rec, fmt.Errorf("saving recording: %w", err)
	}
	rec.Path = s.path
	r.log.Info("recording saved",
		zap.String("path", s.path),
		zap.Int("samples", rec.Samples),
		zap.Duration("duration", rec.Duration()))
	return rec, nil
}

func (r *Recorder) closeStream(s *session) error {
	return multierr.Combine(s.stream.Stop(), s.stream.Close())
}
