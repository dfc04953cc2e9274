package dsp

// Onset envelope parameters.
const (
	onsetMels  = 128
	onsetLag   = 1
	onsetAmin  = 1e-10
	onsetTopDB = 80.0
)

// OnsetStrength computes a spectral-flux onset envelope from a power
// spectrogram produced with [DefaultNFFT] and [DefaultHop].
//
// The spectrogram is projected onto a 128-band mel scale, converted to dB,
// differenced across one frame, half-wave rectified, and averaged over bands.
// The envelope is shifted right to compensate for the lag and frame
// centring so that index t lines up with STFT frame t.
func OnsetStrength(power Matrix, sampleRate float64) []float64 {
	fb := MelFilterBank(sampleRate, DefaultNFFT, onsetMels, 0, sampleRate/2)
	db := PowerToDB(applyFilterBank(fb, power), 1.0, onsetAmin, onsetTopDB)

	nFrames := db.Frames()
	env := make([]float64, nFrames)
	shift := onsetLag + DefaultNFFT/(2*DefaultHop)

	for t := 0; t+onsetLag < nFrames; t++ {
		dst := t + shift
		if dst >= nFrames {
			break
		}
		var sum float64
		for _, row := range db {
			if d := row[t+onsetLag] - row[t]; d > 0 {
				sum += d
			}
		}
		env[dst] = sum / float64(len(db))
	}
	return env
}
