package dsp_test

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/MrWong99/speechcheck/pkg/dsp"
	"github.com/MrWong99/speechcheck/pkg/dsp/dsptest"
)

func TestLoad_WAVMono(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "tone.wav")
	want := dsptest.Sine(440, 16000, 500*time.Millisecond, 0.5)
	dsptest.WriteWAV(t, path, want, 16000)

	w, err := dsp.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if w.SampleRate != 16000 {
		t.Errorf("SampleRate = %d, want 16000", w.SampleRate)
	}
	if len(w.Samples) != len(want) {
		t.Fatalf("len(Samples) = %d, want %d", len(w.Samples), len(want))
	}
	for i := range want {
		if math.Abs(w.Samples[i]-want[i]) > 1e-3 {
			t.Fatalf("Samples[%d] = %f, want %f", i, w.Samples[i], want[i])
		}
	}
	if got := w.Duration(); got != 500*time.Millisecond {
		t.Errorf("Duration = %v, want 500ms", got)
	}
}

func TestLoad_WAVStereoMixdown(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "stereo.WAV")
	left := []float64{0.5, 0.5, 0.5, 0.5}
	right := []float64{-0.5, 0, 0.5, 0.25}
	dsptest.WriteWAVChannels(t, path, [][]float64{left, right}, 8000)

	w, err := dsp.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := []float64{0, 0.25, 0.5, 0.375}
	if len(w.Samples) != len(want) {
		t.Fatalf("len(Samples) = %d, want %d", len(w.Samples), len(want))
	}
	for i := range want {
		if math.Abs(w.Samples[i]-want[i]) > 1e-3 {
			t.Errorf("Samples[%d] = %f, want %f", i, w.Samples[i], want[i])
		}
	}
}

func TestLoad_Errors(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	garbage := filepath.Join(dir, "garbage.wav")
	if err := os.WriteFile(garbage, []byte("definitely not a RIFF header"), 0o644); err != nil {
		t.Fatal(err)
	}
	text := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(text, []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name        string
		path        string
		unsupported bool
	}{
		{name: "missing file", path: filepath.Join(dir, "nope.wav")},
		{name: "corrupt wav", path: garbage},
		{name: "unknown extension", path: text, unsupported: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := dsp.Load(tc.path)
			if !errors.Is(err, dsp.ErrDecode) {
				t.Fatalf("err = %v, want ErrDecode", err)
			}
			if got := errors.Is(err, dsp.ErrUnsupportedFormat); got != tc.unsupported {
				t.Errorf("errors.Is(err, ErrUnsupportedFormat) = %v, want %v", got, tc.unsupported)
			}
		})
	}
}

func TestLoadAny_NoTranscoder(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "clip.m4a")
	if err := os.WriteFile(path, []byte{0, 1, 2, 3}, 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := dsp.LoadAny(context.Background(), path, nil)
	if !errors.Is(err, dsp.ErrUnsupportedFormat) {
		t.Fatalf("err = %v, want ErrUnsupportedFormat", err)
	}

	_, err = dsp.LoadAny(context.Background(), path, &dsp.Transcoder{})
	if !errors.Is(err, dsp.ErrUnsupportedFormat) {
		t.Fatalf("err = %v, want ErrUnsupportedFormat", err)
	}
}

func TestTranscoder_Unavailable(t *testing.T) {
	t.Parallel()

	tr := &dsp.Transcoder{Bin: "speechcheck-no-such-ffmpeg"}
	if tr.Available() {
		t.Fatal("Available() = true for a missing binary")
	}
	_, cleanup, err := tr.ToWAV(context.Background(), "in.m4a")
	if !errors.Is(err, dsp.ErrTranscoderUnavailable) {
		t.Fatalf("err = %v, want ErrTranscoderUnavailable", err)
	}
	if cleanup != nil {
		t.Error("cleanup should be nil on failure")
	}
}
