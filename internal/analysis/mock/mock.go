// Package mock provides a test double for the analysis.Extractor interface.
//
// Example:
//
//	ext := &mock.Extractor{
//	    Result: analysis.Features{ZeroCrossingRate: 0.09},
//	}
//	f, _ := ext.Extract(ctx, "uploads/clip.wav")
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/speechcheck/internal/analysis"
)

// ExtractCall records a single invocation of Extract.
type ExtractCall struct {
	Ctx  context.Context
	Path string
}

// Extractor is a mock implementation of analysis.Extractor.
type Extractor struct {
	mu sync.Mutex

	// Result is returned by Extract when Err is nil.
	Result analysis.Features

	// Err, if non-nil, is returned as the error from Extract.
	Err error

	// Calls records every call to Extract in order.
	Calls []ExtractCall
}

var _ analysis.Extractor = (*Extractor)(nil)

// Extract records the call and returns Result, Err.
func (e *Extractor) Extract(ctx context.Context, path string) (analysis.Features, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Calls = append(e.Calls, ExtractCall{Ctx: ctx, Path: path})
	if e.Err != nil {
		return analysis.Features{}, e.Err
	}
	return e.Result, nil
}

// CallCount returns the number of times Extract was called.
func (e *Extractor) CallCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.Calls)
}
