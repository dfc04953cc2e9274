// Package analysis turns a stored audio recording into a fixed five-value
// speech feature summary and classifies that summary into a diagnosis label.
//
// The feature extraction is delegated to [dsp]; this package chooses the
// parameters, reduces the frame-wise series to scalars, and owns the
// classification rule. Everything here is deterministic for a given input
// file.
package analysis

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/MrWong99/speechcheck/internal/observe"
	"github.com/MrWong99/speechcheck/pkg/dsp"
)

// Features is the five-value summary of one recording. All values are
// non-negative and finite.
type Features struct {
	// Tempo is the estimated global tempo in beats per minute. 0 when the
	// recording has no onsets.
	Tempo float64 `json:"tempo"`

	// AvgPitch is the mean frequency in Hz of the strong spectral peaks.
	// 0 when no peak survives the median-magnitude filter.
	AvgPitch float64 `json:"average_pitch"`

	// SpectralCentroid is the mean of the per-frame spectral centroid in Hz.
	SpectralCentroid float64 `json:"spectral_centroid"`

	// ZeroCrossingRate is the mean per-frame zero-crossing rate in [0, 1].
	ZeroCrossingRate float64 `json:"zero_crossing_rate"`

	// ChromaMean is the mean over all pitch classes and frames of the
	// frame-normalised chromagram, in [0, 1].
	ChromaMean float64 `json:"chroma_mean"`
}

// featureLabels is the display order shared by [Features.Labels] and
// [Features.Values].
var featureLabels = []string{"Tempo", "Pitch", "Spectral Centroid", "Zero Crossing Rate", "Chroma"}

// Labels returns the human-readable feature names in display order.
func (f Features) Labels() []string {
	out := make([]string, len(featureLabels))
	copy(out, featureLabels)
	return out
}

// Values returns the feature values in the same order as [Features.Labels].
func (f Features) Values() []float64 {
	return []float64{f.Tempo, f.AvgPitch, f.SpectralCentroid, f.ZeroCrossingRate, f.ChromaMean}
}

// Extractor computes [Features] for the audio file at path.
//
// Implementations must be safe for concurrent use. Errors caused by
// unreadable or unsupported audio wrap [dsp.ErrDecode].
type Extractor interface {
	Extract(ctx context.Context, path string) (Features, error)
}

// DSPExtractor is the production [Extractor]. It decodes natively and, when a
// transcoder is configured, falls back to ffmpeg for other containers.
type DSPExtractor struct {
	transcoder *dsp.Transcoder
}

// ExtractorOption configures a [DSPExtractor].
type ExtractorOption func(*DSPExtractor)

// WithTranscoder enables ffmpeg fallback decoding. A nil or unavailable
// transcoder leaves the extractor with native decoders only.
func WithTranscoder(t *dsp.Transcoder) ExtractorOption {
	return func(e *DSPExtractor) { e.transcoder = t }
}

// NewDSPExtractor returns a [DSPExtractor] with the given options applied.
func NewDSPExtractor(opts ...ExtractorOption) *DSPExtractor {
	e := &DSPExtractor{}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Extract implements [Extractor].
func (e *DSPExtractor) Extract(ctx context.Context, path string) (Features, error) {
	w, err := dsp.LoadAny(ctx, path, e.transcoder)
	if err != nil {
		return Features{}, fmt.Errorf("analysis: extract: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return Features{}, fmt.Errorf("analysis: extract: %w", err)
	}
	trace.SpanFromContext(ctx).SetAttributes(
		attribute.Int("audio.sample_rate", w.SampleRate),
		attribute.Float64("audio.duration_s", w.Duration().Seconds()),
	)
	observe.Logger(ctx).Debug("audio decoded",
		"path", path,
		"sample_rate", w.SampleRate,
		"duration", w.Duration(),
	)
	return Compute(w), nil
}

// Compute derives [Features] from a decoded waveform. The STFT is computed
// once and shared by every spectral feature.
func Compute(w *dsp.Waveform) Features {
	sr := float64(w.SampleRate)
	spec := dsp.STFT(w.Samples, dsp.DefaultNFFT, dsp.DefaultHop)
	mag := dsp.Magnitude(spec)
	pow := dsp.Power(spec)

	env := dsp.OnsetStrength(pow, sr)
	pitches, mags := dsp.PitchTrack(mag, sr, dsp.DefaultPitchOptions())

	return Features{
		Tempo:            dsp.BeatTempo(env, w.SampleRate, dsp.DefaultHop),
		AvgPitch:         averagePitch(pitches, mags),
		SpectralCentroid: dsp.Mean(dsp.SpectralCentroid(mag, sr, dsp.DefaultNFFT)),
		ZeroCrossingRate: dsp.Mean(dsp.ZeroCrossingRate(w.Samples, dsp.DefaultNFFT, dsp.DefaultHop)),
		ChromaMean:       dsp.MeanMatrix(dsp.ChromaSTFT(pow, sr)),
	}
}

// averagePitch returns the mean of the pitch cells whose magnitude is
// strictly greater than the median of all magnitude cells, or 0 if none is.
func averagePitch(pitches, mags dsp.Matrix) float64 {
	all := make([]float64, 0, mags.Rows()*mags.Frames())
	for _, row := range mags {
		all = append(all, row...)
	}
	median := dsp.Median(all)

	var sum float64
	var n int
	for f, row := range mags {
		for t, m := range row {
			if m > median {
				sum += pitches[f][t]
				n++
			}
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}
