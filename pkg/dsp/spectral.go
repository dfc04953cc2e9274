package dsp

import "math"

// zcrThreshold is the magnitude at or below which a sample counts as zero.
const zcrThreshold = 1e-10

// SpectralCentroid returns the magnitude-weighted mean frequency of each
// frame of magnitude spectrogram s. Silent frames yield 0.
func SpectralCentroid(s Matrix, sampleRate float64, nFFT int) []float64 {
	freqs := FFTFrequencies(sampleRate, nFFT)
	frames := s.Frames()
	out := make([]float64, frames)
	for t := range frames {
		var num, den float64
		for f, row := range s {
			num += freqs[f] * row[t]
			den += math.Abs(row[t])
		}
		if den < tiny {
			continue
		}
		out[t] = num / den
	}
	return out
}

// ZeroCrossingRate returns, for each centred frame of y, the fraction of
// adjacent sample pairs whose sign differs. The signal is extended at both
// ends by repeating its edge samples. Samples within ±1e-10 of zero are
// treated as zero, and zero counts as positive.
func ZeroCrossingRate(y []float64, frameLength, hop int) []float64 {
	if len(y) == 0 || frameLength <= 0 || hop <= 0 {
		return nil
	}
	pad := frameLength / 2
	padded := make([]float64, len(y)+2*pad)
	copy(padded[pad:], y)
	for i := range pad {
		padded[i] = y[0]
		padded[pad+len(y)+i] = y[len(y)-1]
	}

	neg := make([]bool, len(padded))
	for i, v := range padded {
		neg[i] = math.Abs(v) > zcrThreshold && v < 0
	}

	nFrames := 1 + (len(padded)-frameLength)/hop
	out := make([]float64, nFrames)
	for t := range nFrames {
		start := t * hop
		crossings := 0
		for i := start + 1; i < start+frameLength; i++ {
			if neg[i] != neg[i-1] {
				crossings++
			}
		}
		out[t] = float64(crossings) / float64(frameLength)
	}
	return out
}
