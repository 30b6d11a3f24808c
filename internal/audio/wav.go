package audio

import (
	"fmt"
	"math"
	"os"
	"path/filepath"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const (
	bitDepth     = 16
	pcmFormat    = 1
	int16Scale   = 32767
	monoChannels = 1
)

// ToPCM16 converts float samples to 16-bit PCM values. Samples are
// clipped to [-1, 1] and scaled by 32767 with rounding. NaN maps to 0.
func ToPCM16(samples []float32) []int {
	out := make([]int, len(samples))
	for i, s := range samples {
		v := float64(s)
		switch {
		case math.IsNaN(v):
			v = 0
		case v > 1:
			v = 1
		case v < -1:
			v = -1
		}
		out[i] = int(math.Round(v * int16Scale))
	}
	return out
}

// WriteWAV writes samples as a mono 16-bit PCM WAV file. The file is
// written to a temporary sibling and renamed into place.
func WriteWAV(path string, sampleRate int, samples []float32) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		if tmpPath != "" {
			os.Remove(tmpPath)
		}
	}()

	enc := wav.NewEncoder(tmp, sampleRate, bitDepth, monoChannels, pcmFormat)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: monoChannels, SampleRate: sampleRate},
		Data:           ToPCM16(samples),
		SourceBitDepth: bitDepth,
	}
	if err := enc.Write(buf); err != nil {
		tmp.Close()
		return fmt.Errorf("encoding samples: %w", err)
	}
	if err := enc.Close(); err != nil {
		tmp.Close()
		return fmt.Errorf("finalizing wav header: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("renaming wav into place: %w", err)
	}
	tmpPath = ""
	return nil
}
