package dsp

import (
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
)

// Tempo estimation parameters.
const (
	tempoStartBPM  = 120.0
	tempoStdBPM    = 1.0 // octaves
	tempoACSeconds = 8.0
	tempoMaxBPM    = 320.0
)

// BeatTempo estimates a single global tempo in beats per minute from an
// onset envelope sampled every hop samples. An envelope with no energy
// yields 0.
//
// The estimate is the peak of the time-averaged autocorrelation tempogram
// weighted by a log-normal prior centred on 120 BPM; periods faster than
// 320 BPM are never selected.
func BeatTempo(env []float64, sampleRate, hop int) float64 {
	if !anyNonZero(env) || sampleRate <= 0 || hop <= 0 {
		return 0
	}

	winLength := int(tempoACSeconds*float64(sampleRate)) / hop
	if winLength < 2 {
		return 0
	}

	tg := meanTempogram(env, winLength)
	bpms := tempoFrequencies(winLength, hop, sampleRate)

	// First lag whose tempo is below the ceiling; everything before it is
	// excluded.
	maxIdx := 0
	for i, b := range bpms {
		if b < tempoMaxBPM {
			maxIdx = i
			break
		}
	}

	best := -1
	bestScore := math.Inf(-1)
	logStart := math.Log2(tempoStartBPM)
	for i := maxIdx; i < len(bpms); i++ {
		if math.IsInf(bpms[i], 1) {
			continue
		}
		z := (math.Log2(bpms[i]) - logStart) / tempoStdBPM
		score := math.Log1p(1e6*tg[i]) - 0.5*z*z
		if score > bestScore {
			bestScore = score
			best = i
		}
	}
	if best < 0 {
		return 0
	}
	return bpms[best]
}

// tempoFrequencies maps autocorrelation lags to BPM. Lag 0 is +Inf.
func tempoFrequencies(n, hop, sampleRate int) []float64 {
	bpms := make([]float64, n)
	bpms[0] = math.Inf(1)
	for i := 1; i < n; i++ {
		bpms[i] = 60.0 * float64(sampleRate) / (float64(hop) * float64(i))
	}
	return bpms
}

// meanTempogram computes the autocorrelation tempogram of env with a
// window of winLength frames and returns its average over time. Each frame
// is centred (linear ramp to zero at the edges), Hann-windowed,
// autocorrelated, and normalised by its peak.
func meanTempogram(env []float64, winLength int) []float64 {
	n := len(env)
	p := winLength / 2

	padded := make([]float64, n+2*p)
	for i := range p {
		padded[i] = env[0] * float64(i) / float64(p)
		padded[p+n+i] = env[n-1] * float64(p-1-i) / float64(p)
	}
	copy(padded[p:], env)

	nFrames := len(padded) - winLength + 1
	if nFrames > n {
		nFrames = n
	}

	win := hann(winLength)
	nPad := 2*winLength - 1
	fft := fourier.NewFFT(nPad)
	buf := make([]float64, nPad)
	coeff := make([]complex128, nPad/2+1)
	ac := make([]float64, nPad)

	mean := make([]float64, winLength)
	for t := range nFrames {
		clear(buf)
		for i := range winLength {
			buf[i] = padded[t+i] * win[i]
		}
		coeff = fft.Coefficients(coeff, buf)
		for k, c := range coeff {
			re, im := real(c), imag(c)
			coeff[k] = complex(re*re+im*im, 0)
		}
		ac = fft.Sequence(ac, coeff)

		peak := 0.0
		for k := range winLength {
			if a := math.Abs(ac[k]); a > peak {
				peak = a
			}
		}
		norm := 1.0
		if peak >= tiny {
			norm = peak
		}
		for k := range winLength {
			mean[k] += ac[k] / norm
		}
	}
	if nFrames > 0 {
		for k := range mean {
			mean[k] /= float64(nFrames)
		}
	}
	return mean
}

func anyNonZero(x []float64) bool {
	for _, v := range x {
		if v != 0 {
			return true
		}
	}
	return false
}
