// Package mock provides a test double for the chart.Renderer interface.
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/speechcheck/internal/analysis"
	"github.com/MrWong99/speechcheck/internal/chart"
)

// RenderCall records a single invocation of Render.
type RenderCall struct {
	Features  analysis.Features
	Diagnosis analysis.Diagnosis
	AudioPath string
}

// Renderer is a mock implementation of chart.Renderer. It writes nothing and
// returns chart.GraphPath(audioPath) unless Err is set.
type Renderer struct {
	mu sync.Mutex

	// Err, if non-nil, is returned as the error from Render.
	Err error

	// Calls records every call to Render in order.
	Calls []RenderCall
}

var _ chart.Renderer = (*Renderer)(nil)

// Render records the call and returns the conventional graph path, Err.
func (r *Renderer) Render(_ context.Context, f analysis.Features, d analysis.Diagnosis, audioPath string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Calls = append(r.Calls, RenderCall{Features: f, Diagnosis: d, AudioPath: audioPath})
	if r.Err != nil {
		return "", r.Err
	}
	return chart.GraphPath(audioPath), nil
}

// CallCount returns the number of times Render was called.
func (r *Renderer) CallCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.Calls)
}
