package dsp

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
)

const (
	// DefaultNFFT is the analysis frame length in samples.
	DefaultNFFT = 2048
	// DefaultHop is the number of samples between successive frames.
	DefaultHop = 512
)

// tiny is the smallest positive normal float64. Columns whose norm falls
// below it are left unnormalised.
const tiny = 2.2250738585072014e-308

// Matrix is a frequency-major 2-D array: m[row][frame].
type Matrix [][]float64

// Rows returns the number of rows.
func (m Matrix) Rows() int { return len(m) }

// Frames returns the number of columns (time frames).
func (m Matrix) Frames() int {
	if len(m) == 0 {
		return 0
	}
	return len(m[0])
}

func newMatrix(rows, cols int) Matrix {
	m := make(Matrix, rows)
	for i := range m {
		m[i] = make([]float64, cols)
	}
	return m
}

// hann returns a periodic Hann window of length n, the variant used for
// spectral analysis (the window is symmetric over n+1 points with the last
// point dropped).
func hann(n int) []float64 {
	w := make([]float64, n)
	for i := range n {
		w[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(n))
	}
	return w
}

// FFTFrequencies returns the centre frequency in Hz of each of the
// nFFT/2+1 real-FFT bins.
func FFTFrequencies(sampleRate float64, nFFT int) []float64 {
	bins := nFFT/2 + 1
	f := make([]float64, bins)
	for i := range bins {
		f[i] = float64(i) * sampleRate / float64(nFFT)
	}
	return f
}

// STFT computes the short-time Fourier transform of y with a periodic Hann
// window. Frames are centred: y is padded with nFFT/2 zeros on both sides.
// The result is indexed [bin][frame] with nFFT/2+1 bins.
func STFT(y []float64, nFFT, hop int) [][]complex128 {
	pad := nFFT / 2
	padded := make([]float64, len(y)+2*pad)
	copy(padded[pad:], y)

	nFrames := 1 + (len(padded)-nFFT)/hop
	bins := nFFT/2 + 1

	out := make([][]complex128, bins)
	for f := range out {
		out[f] = make([]complex128, nFrames)
	}

	win := hann(nFFT)
	fft := fourier.NewFFT(nFFT)
	frame := make([]float64, nFFT)
	coeff := make([]complex128, bins)

	for t := range nFrames {
		start := t * hop
		for i := range nFFT {
			frame[i] = padded[start+i] * win[i]
		}
		coeff = fft.Coefficients(coeff, frame)
		for f := range bins {
			out[f][t] = coeff[f]
		}
	}
	return out
}

// Magnitude returns |X| for every cell of a complex spectrogram.
func Magnitude(spec [][]complex128) Matrix {
	m := make(Matrix, len(spec))
	for f, row := range spec {
		m[f] = make([]float64, len(row))
		for t, c := range row {
			m[f][t] = cmplx.Abs(c)
		}
	}
	return m
}

// Power returns |X|² for every cell of a complex spectrogram.
func Power(spec [][]complex128) Matrix {
	m := make(Matrix, len(spec))
	for f, row := range spec {
		m[f] = make([]float64, len(row))
		for t, c := range row {
			re, im := real(c), imag(c)
			m[f][t] = re*re + im*im
		}
	}
	return m
}

// applyFilterBank multiplies an [out][bins] filter bank with a [bins][frames]
// spectrogram.
func applyFilterBank(fb Matrix, s Matrix) Matrix {
	frames := s.Frames()
	out := newMatrix(len(fb), frames)
	for r, weights := range fb {
		row := out[r]
		for f, w := range weights {
			if w == 0 {
				continue
			}
			src := s[f]
			for t := range frames {
				row[t] += w * src[t]
			}
		}
	}
	return out
}
