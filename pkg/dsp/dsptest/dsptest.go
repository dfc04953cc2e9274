// Package dsptest generates synthetic signals and WAV fixtures for tests.
package dsptest

import (
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

func sampleCount(sampleRate int, dur time.Duration) int {
	return int(float64(sampleRate) * dur.Seconds())
}

// Sine returns a sine tone at freq Hz with peak amplitude amp.
func Sine(freq float64, sampleRate int, dur time.Duration, amp float64) []float64 {
	out := make([]float64, sampleCount(sampleRate, dur))
	for i := range out {
		out[i] = amp * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate))
	}
	return out
}

// Silence returns dur worth of zero samples.
func Silence(sampleRate int, dur time.Duration) []float64 {
	return make([]float64, sampleCount(sampleRate, dur))
}

// Noise returns uniformly distributed white noise in [-amp, amp). The same
// seed always yields the same signal.
func Noise(seed uint64, sampleRate int, dur time.Duration, amp float64) []float64 {
	r := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	out := make([]float64, sampleCount(sampleRate, dur))
	for i := range out {
		out[i] = amp * (2*r.Float64() - 1)
	}
	return out
}

// Clicks returns n unit impulses spaced period samples apart, starting at
// sample period/2.
func Clicks(period, n int) []float64 {
	out := make([]float64, period*n)
	for i := range n {
		out[period/2+i*period] = 1
	}
	return out
}

// Fade applies a linear fade-in and fade-out of n samples in place and
// returns x.
func Fade(x []float64, n int) []float64 {
	n = min(n, len(x)/2)
	for i := range n {
		g := float64(i) / float64(n)
		x[i] *= g
		x[len(x)-1-i] *= g
	}
	return x
}

// WriteWAV encodes mono samples in [-1, 1] as 16-bit PCM WAV at path. Parent
// directories are created as needed.
func WriteWAV(t testing.TB, path string, samples []float64, sampleRate int) {
	t.Helper()
	WriteWAVChannels(t, path, [][]float64{samples}, sampleRate)
}

// WriteWAVChannels is like [WriteWAV] but interleaves several equal-length
// channels.
func WriteWAVChannels(t testing.TB, path string, channels [][]float64, sampleRate int) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("dsptest: mkdir: %v", err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("dsptest: create %s: %v", path, err)
	}
	defer f.Close()

	numChans := len(channels)
	frames := len(channels[0])
	data := make([]int, 0, frames*numChans)
	for i := range frames {
		for _, ch := range channels {
			v := max(-1, min(1, ch[i]))
			data = append(data, int(math.Round(v*32767)))
		}
	}

	enc := wav.NewEncoder(f, sampleRate, 16, numChans, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: numChans, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("dsptest: encode: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("dsptest: close encoder: %v", err)
	}
}
