package dsp

import "math"

// Slaney mel-scale constants: linear below 1 kHz, logarithmic above.
const (
	melFSp       = 200.0 / 3
	melMinLogHz  = 1000.0
	melMinLogMel = melMinLogHz / melFSp
)

var melLogStep = math.Log(6.4) / 27.0

// HzToMel converts a frequency to the Slaney mel scale.
func HzToMel(hz float64) float64 {
	if hz >= melMinLogHz {
		return melMinLogMel + math.Log(hz/melMinLogHz)/melLogStep
	}
	return hz / melFSp
}

// MelToHz is the inverse of [HzToMel].
func MelToHz(mel float64) float64 {
	if mel >= melMinLogMel {
		return melMinLogHz * math.Exp(melLogStep*(mel-melMinLogMel))
	}
	return melFSp * mel
}

// melFrequencies returns n frequencies evenly spaced on the mel scale
// between fmin and fmax inclusive.
func melFrequencies(n int, fmin, fmax float64) []float64 {
	lo, hi := HzToMel(fmin), HzToMel(fmax)
	out := make([]float64, n)
	for i := range n {
		var m float64
		if n > 1 {
			m = lo + (hi-lo)*float64(i)/float64(n-1)
		} else {
			m = lo
		}
		out[i] = MelToHz(m)
	}
	return out
}

// MelFilterBank builds an [nMels][nFFT/2+1] bank of triangular filters with
// Slaney area normalisation.
func MelFilterBank(sampleRate float64, nFFT, nMels int, fmin, fmax float64) Matrix {
	fftFreqs := FFTFrequencies(sampleRate, nFFT)
	melF := melFrequencies(nMels+2, fmin, fmax)

	fdiff := make([]float64, len(melF)-1)
	for i := range fdiff {
		fdiff[i] = melF[i+1] - melF[i]
	}

	weights := newMatrix(nMels, len(fftFreqs))
	for i := range nMels {
		enorm := 2.0 / (melF[i+2] - melF[i])
		for k, f := range fftFreqs {
			lower := -(melF[i] - f) / fdiff[i]
			upper := (melF[i+2] - f) / fdiff[i+1]
			w := math.Max(0, math.Min(lower, upper))
			weights[i][k] = w * enorm
		}
	}
	return weights
}

// PowerToDB converts a power spectrogram to decibels relative to ref,
// flooring inputs at amin and clipping the output to topDB below its peak.
// A non-positive topDB disables clipping.
func PowerToDB(s Matrix, ref, amin, topDB float64) Matrix {
	refDB := 10 * math.Log10(math.Max(amin, ref))
	out := newMatrix(s.Rows(), s.Frames())
	peak := math.Inf(-1)
	for f, row := range s {
		for t, v := range row {
			db := 10*math.Log10(math.Max(amin, v)) - refDB
			out[f][t] = db
			if db > peak {
				peak = db
			}
		}
	}
	if topDB > 0 {
		floor := peak - topDB
		for _, row := range out {
			for t, v := range row {
				if v < floor {
					row[t] = floor
				}
			}
		}
	}
	return out
}
