package dsp

import (
	"math"
	"testing"
	"time"

	"github.com/MrWong99/speechcheck/pkg/dsp/dsptest"
)

const testSR = 22050

func spectra(y []float64) (mag, pow Matrix) {
	spec := STFT(y, DefaultNFFT, DefaultHop)
	return Magnitude(spec), Power(spec)
}

func TestSTFT_Shape(t *testing.T) {
	t.Parallel()

	y := dsptest.Silence(testSR, time.Second)
	spec := STFT(y, DefaultNFFT, DefaultHop)
	if got, want := len(spec), DefaultNFFT/2+1; got != want {
		t.Fatalf("bins = %d, want %d", got, want)
	}
	if got, want := len(spec[0]), 1+len(y)/DefaultHop; got != want {
		t.Errorf("frames = %d, want %d", got, want)
	}
}

func TestSTFT_PeakBin(t *testing.T) {
	t.Parallel()

	// 1000 Hz at 16 kHz with n_fft 2048 lands exactly on bin 128.
	y := dsptest.Sine(1000, 16000, time.Second, 0.8)
	mag := Magnitude(STFT(y, DefaultNFFT, DefaultHop))
	frame := mag.Frames() / 2

	best := 0
	for f := range mag {
		if mag[f][frame] > mag[best][frame] {
			best = f
		}
	}
	if best != 128 {
		t.Errorf("peak bin = %d, want 128", best)
	}
}

func TestHann_Periodic(t *testing.T) {
	t.Parallel()

	w := hann(8)
	if w[0] != 0 {
		t.Errorf("w[0] = %f, want 0", w[0])
	}
	if math.Abs(w[4]-1) > 1e-12 {
		t.Errorf("w[4] = %f, want 1", w[4])
	}
	if math.Abs(w[1]-w[7]) > 1e-12 {
		t.Errorf("w[1] = %f, w[7] = %f, want equal", w[1], w[7])
	}
}

func TestMelFilterBank(t *testing.T) {
	t.Parallel()

	fb := MelFilterBank(testSR, DefaultNFFT, 128, 0, testSR/2)
	if fb.Rows() != 128 || fb.Frames() != DefaultNFFT/2+1 {
		t.Fatalf("shape = %dx%d, want 128x%d", fb.Rows(), fb.Frames(), DefaultNFFT/2+1)
	}
	for i, row := range fb {
		var sum float64
		for _, w := range row {
			if w < 0 {
				t.Fatalf("negative weight in filter %d", i)
			}
			sum += w
		}
		if sum == 0 {
			t.Errorf("filter %d is empty", i)
		}
	}
}

func TestMelScale_RoundTrip(t *testing.T) {
	t.Parallel()

	for _, hz := range []float64{0, 200, 999, 1000, 4000, 11025} {
		if got := MelToHz(HzToMel(hz)); math.Abs(got-hz) > 1e-6 {
			t.Errorf("MelToHz(HzToMel(%f)) = %f", hz, got)
		}
	}
}

func TestPowerToDB_TopDB(t *testing.T) {
	t.Parallel()

	db := PowerToDB(Matrix{{1, 1e-3, 0}}, 1, 1e-10, 20)
	want := []float64{0, -20, -20}
	for i, w := range want {
		if math.Abs(db[0][i]-w) > 1e-9 {
			t.Errorf("db[%d] = %f, want %f", i, db[0][i], w)
		}
	}
}

func TestZeroCrossingRate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		y     []float64
		frame int
		hop   int
		want  []float64
	}{
		{
			name:  "alternating",
			y:     []float64{1, -1, 1, -1},
			frame: 4,
			hop:   2,
			want:  []float64{0.25, 0.75, 0.25},
		},
		{
			name:  "below threshold counts as zero",
			y:     []float64{1e-11, -1e-11, 1e-11, -1e-11},
			frame: 4,
			hop:   2,
			want:  []float64{0, 0, 0},
		},
		{
			name:  "zero is positive",
			y:     []float64{0, -1, 0, 0},
			frame: 4,
			hop:   2,
			want:  []float64{0.25, 0.5, 0},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := ZeroCrossingRate(tc.y, tc.frame, tc.hop)
			if len(got) != len(tc.want) {
				t.Fatalf("len = %d, want %d (%v)", len(got), len(tc.want), got)
			}
			for i := range tc.want {
				if math.Abs(got[i]-tc.want[i]) > 1e-12 {
					t.Errorf("zcr[%d] = %f, want %f", i, got[i], tc.want[i])
				}
			}
		})
	}
}

func TestZeroCrossingRate_Sine(t *testing.T) {
	t.Parallel()

	y := dsptest.Fade(dsptest.Sine(440, testSR, 2*time.Second, 0.5), 1024)
	got := Mean(ZeroCrossingRate(y, DefaultNFFT, DefaultHop))
	want := 2 * 440.0 / testSR
	if math.Abs(got-want) > 0.005 {
		t.Errorf("mean ZCR = %f, want ~%f", got, want)
	}
}

func TestSpectralCentroid_Sine(t *testing.T) {
	t.Parallel()

	y := dsptest.Fade(dsptest.Sine(1000, testSR, time.Second, 0.5), 2048)
	mag, _ := spectra(y)
	got := Mean(SpectralCentroid(mag, testSR, DefaultNFFT))
	if math.Abs(got-1000) > 100 {
		t.Errorf("mean centroid = %f, want ~1000", got)
	}
}

func TestPitchTrack_Sine(t *testing.T) {
	t.Parallel()

	y := dsptest.Fade(dsptest.Sine(440, testSR, time.Second, 0.5), 2048)
	mag, _ := spectra(y)
	pitches, mags := PitchTrack(mag, testSR, DefaultPitchOptions())

	var sum float64
	var n int
	for f, row := range pitches {
		for i, p := range row {
			if mags[f][i] > 0 {
				sum += p
				n++
			}
		}
	}
	if n == 0 {
		t.Fatal("no pitch peaks found")
	}
	if avg := sum / float64(n); math.Abs(avg-440) > 15 {
		t.Errorf("average pitch = %f, want ~440", avg)
	}
}

func TestPitchTrack_RespectsRange(t *testing.T) {
	t.Parallel()

	// 100 Hz lies below the default 150 Hz floor.
	y := dsptest.Fade(dsptest.Sine(100, testSR, time.Second, 0.5), 2048)
	mag, _ := spectra(y)
	pitches, _ := PitchTrack(mag, testSR, DefaultPitchOptions())
	for _, row := range pitches {
		for _, p := range row {
			if p > 0 && p < 140 {
				t.Fatalf("pitch %f below FMin reported", p)
			}
		}
	}
}

func TestParabolicShift(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		x    []float64
		want float64
	}{
		{"symmetric peak", []float64{1, 2, 1}, 0},
		// a = -3, b = 0.5.
		{"right-leaning peak", []float64{1, 3, 2}, 1.0 / 6},
		{"left-leaning peak", []float64{2, 3, 1}, -1.0 / 6},
		// a = -1, b = 0.5: vertex half a bin to the right.
		{"flat top", []float64{0, 1, 1}, 0.5},
		// a = 0: straight line, no vertex.
		{"linear ramp", []float64{0, 1, 2}, 0},
		// a = -1, b = 1: vertex a full bin away.
		{"vertex on neighbour", []float64{0, 1.5, 2}, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := parabolicShift(tc.x, 1); math.Abs(got-tc.want) > 1e-12 {
				t.Errorf("parabolicShift(%v) = %f, want %f", tc.x, got, tc.want)
			}
		})
	}
}

func TestBeatTempo_ClickTrack(t *testing.T) {
	t.Parallel()

	// One click every 22 frames (≈117 BPM).
	y := dsptest.Clicks(22*DefaultHop, 20)
	_, pow := spectra(y)
	env := OnsetStrength(pow, testSR)
	got := BeatTempo(env, testSR, DefaultHop)
	if got < 100 || got > 140 {
		t.Errorf("tempo = %f BPM, want ~117", got)
	}
}

func TestBeatTempo_Silence(t *testing.T) {
	t.Parallel()

	_, pow := spectra(dsptest.Silence(testSR, 2*time.Second))
	env := OnsetStrength(pow, testSR)
	if got := BeatTempo(env, testSR, DefaultHop); got != 0 {
		t.Errorf("tempo = %f, want 0", got)
	}
}

func TestOnsetStrength_Length(t *testing.T) {
	t.Parallel()

	_, pow := spectra(dsptest.Noise(1, testSR, time.Second, 0.3))
	env := OnsetStrength(pow, testSR)
	if len(env) != pow.Frames() {
		t.Fatalf("len(env) = %d, want %d", len(env), pow.Frames())
	}
	for i := range 3 {
		if env[i] != 0 {
			t.Errorf("env[%d] = %f, want 0 (lag padding)", i, env[i])
		}
	}
}

func TestPitchTuning(t *testing.T) {
	t.Parallel()

	if got := pitchTuning(nil, 0.01, 12); got != 0 {
		t.Errorf("empty tuning = %f, want 0", got)
	}
	if got := pitchTuning([]float64{440, 880, 220}, 0.01, 12); math.Abs(got) > 1e-9 {
		t.Errorf("A440 tuning = %f, want 0", got)
	}
	sharp := 440 * math.Pow(2, 0.2/12)
	if got := pitchTuning([]float64{sharp, 2 * sharp}, 0.01, 12); math.Abs(got-0.2) > 0.011 {
		t.Errorf("sharp tuning = %f, want ~0.2", got)
	}
}

func TestChromaSTFT_A440(t *testing.T) {
	t.Parallel()

	y := dsptest.Fade(dsptest.Sine(440, testSR, time.Second, 0.5), 2048)
	_, pow := spectra(y)
	chroma := ChromaSTFT(pow, testSR)
	if chroma.Rows() != NChroma {
		t.Fatalf("rows = %d, want %d", chroma.Rows(), NChroma)
	}

	best := 0
	means := make([]float64, NChroma)
	for c, row := range chroma {
		means[c] = Mean(row)
		if means[c] > means[best] {
			best = c
		}
	}
	if best != 9 {
		t.Errorf("dominant pitch class = %d, want 9 (A); means %v", best, means)
	}
	for _, row := range chroma {
		for _, v := range row {
			if v < 0 || v > 1+1e-9 {
				t.Fatalf("chroma value %f outside [0, 1]", v)
			}
		}
	}
}

func TestChromaSTFT_Silence(t *testing.T) {
	t.Parallel()

	_, pow := spectra(dsptest.Silence(testSR, time.Second))
	if got := MeanMatrix(ChromaSTFT(pow, testSR)); got != 0 {
		t.Errorf("chroma mean = %f, want 0", got)
	}
}

func TestMedian(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   []float64
		want float64
	}{
		{nil, 0},
		{[]float64{3}, 3},
		{[]float64{3, 1, 2}, 2},
		{[]float64{4, 1, 3, 2}, 2.5},
	}
	for _, tc := range tests {
		if got := Median(tc.in); got != tc.want {
			t.Errorf("Median(%v) = %f, want %f", tc.in, got, tc.want)
		}
	}
}
