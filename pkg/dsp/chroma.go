package dsp

import "math"

const (
	// NChroma is the number of pitch classes.
	NChroma = 12

	tuningResolution = 0.01
	chromaCtrOct     = 5.0
	chromaOctWidth   = 2.0
)

// hzToOcts converts a frequency to octaves relative to C0 (A440/16), with
// A440 shifted by tuning fractions of a bin.
func hzToOcts(hz, tuning float64, binsPerOctave int) float64 {
	a440 := 440.0 * math.Pow(2, tuning/float64(binsPerOctave))
	return math.Log2(hz / (a440 / 16))
}

// EstimateTuning returns the deviation, in fractions of a semitone within
// [-0.5, 0.5), of the spectrogram's strong spectral peaks from A440 equal
// temperament. Only peaks at or above the median peak magnitude contribute.
func EstimateTuning(s Matrix, sampleRate float64) float64 {
	opts := DefaultPitchOptions()
	opts.NFFT = 2 * (s.Rows() - 1)
	pitches, mags := PitchTrack(s, sampleRate, opts)

	var peakMags []float64
	for f, row := range pitches {
		for t, p := range row {
			if p > 0 {
				peakMags = append(peakMags, mags[f][t])
			}
		}
	}
	threshold := 0.0
	if len(peakMags) > 0 {
		threshold = Median(peakMags)
	}

	var freqs []float64
	for f, row := range pitches {
		for t, p := range row {
			if p > 0 && mags[f][t] >= threshold {
				freqs = append(freqs, p)
			}
		}
	}
	return pitchTuning(freqs, tuningResolution, NChroma)
}

// pitchTuning histograms the semitone residuals of freqs into bins of width
// resolution over [-0.5, 0.5] and returns the left edge of the fullest bin.
func pitchTuning(freqs []float64, resolution float64, binsPerOctave int) float64 {
	nBins := int(math.Ceil(1 / resolution))
	edges := make([]float64, nBins+1)
	for i := range edges {
		edges[i] = -0.5 + float64(i)/float64(nBins)
	}

	counts := make([]int, nBins)
	seen := false
	for _, f := range freqs {
		if f <= 0 {
			continue
		}
		seen = true
		r := math.Mod(float64(binsPerOctave)*hzToOcts(f, 0, binsPerOctave), 1)
		if r < 0 {
			r++
		}
		if r >= 0.5 {
			r--
		}
		idx := int((r + 0.5) * float64(nBins))
		idx = min(max(idx, 0), nBins-1)
		for idx > 0 && r < edges[idx] {
			idx--
		}
		for idx < nBins-1 && r >= edges[idx+1] {
			idx++
		}
		counts[idx]++
	}
	if !seen {
		return 0
	}

	best := 0
	for i, c := range counts {
		if c > counts[best] {
			best = i
		}
	}
	return edges[best]
}

// ChromaFilterBank builds a [12][nFFT/2+1] matrix projecting STFT bins onto
// pitch classes starting at C. Each bin spreads over neighbouring classes
// with a Gaussian whose width follows the bin spacing, and bins far from
// octave 5 are attenuated.
func ChromaFilterBank(sampleRate float64, nFFT int, tuning float64) Matrix {
	n := float64(NChroma)

	frq := make([]float64, nFFT)
	for k := 1; k < nFFT; k++ {
		hz := float64(k) * sampleRate / float64(nFFT)
		frq[k] = n * hzToOcts(hz, tuning, NChroma)
	}
	frq[0] = frq[1] - 1.5*n

	width := make([]float64, nFFT)
	for k := range nFFT - 1 {
		width[k] = math.Max(frq[k+1]-frq[k], 1)
	}
	width[nFFT-1] = 1

	raw := newMatrix(NChroma, nFFT)
	half := math.Round(n / 2)
	for c := range NChroma {
		for k := range nFFT {
			d := math.Mod(frq[k]-float64(c)+half+10*n, n) - half
			z := 2 * d / width[k]
			raw[c][k] = math.Exp(-0.5 * z * z)
		}
	}

	for k := range nFFT {
		var sq float64
		for c := range NChroma {
			sq += raw[c][k] * raw[c][k]
		}
		norm := math.Sqrt(sq)
		if norm < tiny {
			norm = 1
		}
		z := (frq[k]/n - chromaCtrOct) / chromaOctWidth
		oct := math.Exp(-0.5 * z * z)
		for c := range NChroma {
			raw[c][k] = raw[c][k] / norm * oct
		}
	}

	bins := nFFT/2 + 1
	out := newMatrix(NChroma, bins)
	for c := range NChroma {
		copy(out[c], raw[(c+3)%NChroma][:bins])
	}
	return out
}

// ChromaSTFT computes a chromagram from power spectrogram s. The tuning
// offset is estimated from s, and each frame is scaled so its strongest
// pitch class is 1.
func ChromaSTFT(s Matrix, sampleRate float64) Matrix {
	nFFT := 2 * (s.Rows() - 1)
	tuning := EstimateTuning(s, sampleRate)
	chroma := applyFilterBank(ChromaFilterBank(sampleRate, nFFT, tuning), s)

	for t := range chroma.Frames() {
		peak := 0.0
		for _, row := range chroma {
			peak = math.Max(peak, math.Abs(row[t]))
		}
		if peak < tiny {
			continue
		}
		for _, row := range chroma {
			row[t] /= peak
		}
	}
	return chroma
}
