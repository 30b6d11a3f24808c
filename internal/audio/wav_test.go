package audio

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/wav"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestToPCM16_Properties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		samples := rapid.SliceOf(rapid.Float32Range(-1.5, 1.5)).Draw(t, "samples")
		got := ToPCM16(samples)
		if len(got) != len(samples) {
			t.Fatalf("length %d, want %d", len(got), len(samples))
		}
		for i, s := range samples {
			v := math.Max(-1, math.Min(1, float64(s)))
			want := int(math.Round(v * 32767))
			if got[i] != want {
				t.Fatalf("sample %d: %v -> %d, want %d", i, s, got[i], want)
			}
			if got[i] > math.MaxInt16 || got[i] < -math.MaxInt16 {
				t.Fatalf("sample %d out of int16 range: %d", i, got[i])
			}
		}
	})
}

func TestToPCM16_Edges(t *testing.T) {
	got := ToPCM16([]float32{1, -1, 0, 2, -3, float32(math.NaN()), 0.5})
	require.Equal(t, []int{32767, -32767, 0, 32767, -32767, 0, 16384}, got)
}

func TestWriteWAV_RoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		samples := rapid.SliceOfN(rapid.Float32Range(-1, 1), 1, 512).Draw(t, "samples")
		rate := rapid.SampledFrom([]int{8000, 16000, 44100}).Draw(t, "rate")

		dir, err := os.MkdirTemp("", "wav")
		if err != nil {
			t.Fatal(err)
		}
		defer os.RemoveAll(dir)
		path := filepath.Join(dir, "out.wav")

		if err := WriteWAV(path, rate, samples); err != nil {
			t.Fatal(err)
		}
		f, err := os.Open(path)
		if err != nil {
			t.Fatal(err)
		}
		defer f.Close()

		dec := wav.NewDecoder(f)
		buf, err := dec.FullPCMBuffer()
		if err != nil {
			t.Fatal(err)
		}
		if int(dec.SampleRate) != rate {
			t.Fatalf("rate %d, want %d", dec.SampleRate, rate)
		}
		want := ToPCM16(samples)
		if len(buf.Data) != len(want) {
			t.Fatalf("decoded %d samples, want %d", len(buf.Data), len(want))
		}
		for i := range want {
			if buf.Data[i] != want[i] {
				t.Fatalf("sample %d: %d, want %d", i, buf.Data[i], want[i])
			}
		}
	})
}

func TestWriteWAV_LeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, WriteWAV(filepath.Join(dir, "a.wav"), 8000, []float32{0, 0.1}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "a.wav", entries[0].Name())
}
