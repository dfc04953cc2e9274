package dsp

import "math"

// PitchOptions configures [PitchTrack].
type PitchOptions struct {
	// FMin and FMax bound the admissible pitch range in Hz (FMin inclusive,
	// FMax exclusive). FMax is clamped to the Nyquist frequency.
	FMin, FMax float64

	// Threshold is the fraction of each frame's peak magnitude a bin must
	// exceed to be considered.
	Threshold float64

	// NFFT is the FFT size the spectrogram was computed with.
	NFFT int
}

// DefaultPitchOptions returns the tracker defaults: 150–4000 Hz, threshold
// 0.1, [DefaultNFFT].
func DefaultPitchOptions() PitchOptions {
	return PitchOptions{FMin: 150, FMax: 4000, Threshold: 0.1, NFFT: DefaultNFFT}
}

// PitchTrack finds, for every frame of spectrogram s, the bins that are
// local maxima above Threshold×(frame peak) within [FMin, FMax), and refines
// each with parabolic interpolation. It returns two matrices shaped like s:
// the interpolated frequency in Hz and the interpolated magnitude. Cells
// that are not peaks are zero.
func PitchTrack(s Matrix, sampleRate float64, opts PitchOptions) (pitches, mags Matrix) {
	bins, frames := s.Rows(), s.Frames()
	pitches = newMatrix(bins, frames)
	mags = newMatrix(bins, frames)
	if bins < 3 || frames == 0 {
		return pitches, mags
	}

	fmin := math.Max(opts.FMin, 0)
	fmax := math.Min(opts.FMax, sampleRate/2)
	freqs := FFTFrequencies(sampleRate, opts.NFFT)
	binHz := sampleRate / float64(opts.NFFT)

	col := make([]float64, bins)
	gated := make([]float64, bins)

	for t := range frames {
		peak := math.Inf(-1)
		for f := range bins {
			col[f] = s[f][t]
			if col[f] > peak {
				peak = col[f]
			}
		}
		ref := opts.Threshold * peak
		for f, v := range col {
			if v > ref {
				gated[f] = v
			} else {
				gated[f] = 0
			}
		}

		for f := 1; f < bins-1; f++ {
			if freqs[f] < fmin || freqs[f] >= fmax {
				continue
			}
			if !isLocalMax(gated, f) {
				continue
			}
			shift := parabolicShift(col, f)
			grad := (col[f+1] - col[f-1]) / 2
			pitches[f][t] = (float64(f) + shift) * binHz
			mags[f][t] = col[f] + 0.5*grad*shift
		}
	}
	return pitches, mags
}

// isLocalMax reports whether x[i] is strictly greater than its left
// neighbour and at least its right neighbour, replicating edge values.
func isLocalMax(x []float64, i int) bool {
	prev, next := x[max(i-1, 0)], x[min(i+1, len(x)-1)]
	return x[i] > prev && x[i] >= next
}

// parabolicShift returns the sub-bin offset of the vertex of the parabola
// through x[i-1], x[i], x[i+1]. When |b| >= |a|, which includes a degenerate
// parabola (a == 0) and any vertex a full bin or more away, the shift is 0.
func parabolicShift(x []float64, i int) float64 {
	a := x[i+1] + x[i-1] - 2*x[i]
	b := (x[i+1] - x[i-1]) / 2
	if math.Abs(b) >= math.Abs(a) {
		return 0
	}
	return -b / a
}
