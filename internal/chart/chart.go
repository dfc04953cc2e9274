// Package chart renders the per-upload feature bar chart next to the stored
// audio file.
package chart

import (
	"context"
	"errors"
	"fmt"
	"image/color"
	"path/filepath"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/MrWong99/speechcheck/internal/analysis"
)

// ErrRender is wrapped by every error returned from [BarRenderer.Render].
var ErrRender = errors.New("chart: render failed")

// GraphSuffix is appended to the audio base name to form the chart file name.
const GraphSuffix = "_graph.png"

// GraphPath returns the chart location for an audio file: the audio path with
// its extension replaced by [GraphSuffix]. Leading dots of the base name are
// not an extension, so ".wav" keeps its whole name.
func GraphPath(audioPath string) string {
	return strings.TrimSuffix(audioPath, audioExt(audioPath)) + GraphSuffix
}

func audioExt(path string) string {
	if !strings.Contains(strings.TrimLeft(filepath.Base(path), "."), ".") {
		return ""
	}
	return filepath.Ext(path)
}

// Renderer draws the feature chart for one upload and returns the path of the
// written image.
type Renderer interface {
	Render(ctx context.Context, f analysis.Features, d analysis.Diagnosis, audioPath string) (string, error)
}

// skyBlue is the bar fill colour.
var skyBlue = color.RGBA{R: 135, G: 206, B: 235, A: 255}

// BarRenderer renders a PNG bar chart with one bar per feature using gonum/plot.
type BarRenderer struct {
	// Width and Height are the image dimensions. Zero means 8×6 inches.
	Width, Height vg.Length
}

// NewBarRenderer returns a BarRenderer with the default 8×6 inch canvas.
func NewBarRenderer() *BarRenderer {
	return &BarRenderer{Width: 8 * vg.Inch, Height: 6 * vg.Inch}
}

// Render implements [Renderer]. The image is written to [GraphPath] of
// audioPath, replacing any existing file.
func (r *BarRenderer) Render(ctx context.Context, f analysis.Features, d analysis.Diagnosis, audioPath string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %w", ErrRender, err)
	}
	out := GraphPath(audioPath)

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Speech Features Analysis (%s)", d)
	p.X.Label.Text = "Speech Features"
	p.Y.Label.Text = "Feature Values"
	p.Y.Min = 0

	bars, err := plotter.NewBarChart(plotter.Values(f.Values()), vg.Points(40))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrRender, err)
	}
	bars.Color = skyBlue
	bars.LineStyle.Width = 0
	p.Add(bars)
	p.NominalX(f.Labels()...)

	w, h := r.Width, r.Height
	if w == 0 || h == 0 {
		w, h = 8*vg.Inch, 6*vg.Inch
	}
	if err := p.Save(w, h, out); err != nil {
		return "", fmt.Errorf("%w: save %s: %w", ErrRender, out, err)
	}
	return out, nil
}
