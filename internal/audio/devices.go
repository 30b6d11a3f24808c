package audio

import (
	"fmt"

	"github.com/gordonklaus/portaudio"
	"go.uber.org/multierr"
)

// FrameFunc receives one buffer of mono float samples from the device.
// The slice is only valid for the duration of the call. overflow is set
// when the driver discarded input before this buffer.
type FrameFunc func(in []float32, overflow bool)

// Device opens mono input streams.
type Device interface {
	Open(sampleRate int, fn FrameFunc) (Stream, error)
}

// Stream is an open device stream.
type Stream interface {
	Start() error
	Stop() error
	Close() error
}

// DeviceAcquisitionError reports that the recording device could not be
// opened or started.
type DeviceAcquisitionError struct {
	Op  string
	Err error
}

func (e *DeviceAcquisitionError) Error() string {
	return fmt.Sprintf("audio device %s: %v", e.Op, e.Err)
}

func (e *DeviceAcquisitionError) Unwrap() error { return e.Err }

// InputDevice describes a capture-capable device.
type InputDevice struct {
	Name              string
	HostAPI           string
	Channels          int
	DefaultSampleRate float64
	Default           bool
}

// PortAudio captures from the system default input device.
type PortAudio struct{}

// NewPortAudio returns the default-input device backed by PortAudio.
func NewPortAudio() *PortAudio {
	return &PortAudio{}
}

func (p *PortAudio) Open(sampleRate int, fn FrameFunc) (Stream, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("initializing portaudio: %w", err)
	}
	if _, err := portaudio.DefaultInputDevice(); err != nil {
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("no default input device: %w", err)
	}

	cb := func(in []float32, _ portaudio.StreamCallbackTimeInfo, flags portaudio.StreamCallbackFlags) {
		fn(in, flags&portaudio.InputOverflow != 0)
	}
	s, err := portaudio.OpenDefaultStream(1, 0, float64(sampleRate), portaudio.FramesPerBufferUnspecified, cb)
	if err != nil {
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("opening input stream at %d Hz: %w", sampleRate, err)
	}
	return &paStream{s: s}, nil
}

type paStream struct {
	s *portaudio.Stream
}

func (p *paStream) Start() error { return p.s.Start() }
func (p *paStream) Stop() error  { return p.s.Stop() }

func (p *paStream) Close() error {
	return multierr.Combine(p.s.Close(), portaudio.Terminate())
}

// ListInputDevices returns every device with at least one input channel.
func ListInputDevices() ([]InputDevice, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("initializing portaudio: %w", err)
	}
	defer portaudio.Terminate()

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("listing devices: %w", err)
	}

	var defaultName string
	if d, err := portaudio.DefaultInputDevice(); err == nil {
		defaultName = d.Name
	}

	var inputs []InputDevice
	for _, d := range devices {
		if d.MaxInputChannels < 1 {
			continue
		}
		host := ""
		if d.HostApi != nil {
			host = d.HostApi.Name
		}
		inputs = append(inputs, InputDevice{
			Name:              d.Name,
			HostAPI:           host,
			Channels:          d.MaxInputChannels,
			DefaultSampleRate: d.DefaultSampleRate,
			Default:           d.Name == defaultName,
		})
	}
	return inputs, nil
}
