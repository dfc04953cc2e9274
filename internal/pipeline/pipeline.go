// Package pipeline orchestrates one upload end to end: store the audio,
// extract features, classify, persist the record, render the chart, and
// assemble the response.
//
// Every request runs the stages sequentially on the calling goroutine;
// independent requests may run concurrently. Stage failures abort the
// request and are reported as [*StageError]. Nothing is retried and files
// already written are left in place.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/MrWong99/speechcheck/internal/analysis"
	"github.com/MrWong99/speechcheck/internal/chart"
	"github.com/MrWong99/speechcheck/internal/observe"
	"github.com/MrWong99/speechcheck/internal/record"
	"github.com/MrWong99/speechcheck/internal/upload"
)

// SuccessMessage is the message returned for every analysed upload.
const SuccessMessage = "Audio file successfully uploaded and analyzed"

// DefaultUserID is attributed to uploads that do not name a user.
const DefaultUserID = "1"

// ErrNoAudio is returned when the request carries no audio file.
var ErrNoAudio = errors.New("pipeline: no audio file uploaded")

// Upload is one received audio file.
type Upload struct {
	// Filename is the client-supplied name. Only its base is used.
	Filename string

	// UserID attributes the record. Empty means [DefaultUserID].
	UserID string

	// Body is the audio content. Nil means no file was sent.
	Body io.Reader
}

// Result is the outcome of a successful [Orchestrator.Analyze].
type Result struct {
	Message   string
	Diagnosis analysis.Diagnosis
	GraphPath string
	AudioPath string
	UserID    string
	Features  analysis.Features
}

// Deps are the collaborators of an [Orchestrator]. All fields except
// Metrics are required.
type Deps struct {
	Uploads   *upload.Dir
	Extractor analysis.Extractor
	Writer    *record.Writer
	Renderer  chart.Renderer
	Metrics   *observe.Metrics
}

// Orchestrator runs uploads through the pipeline. It is safe for concurrent
// use.
type Orchestrator struct {
	uploads   *upload.Dir
	extractor analysis.Extractor
	writer    *record.Writer
	renderer  chart.Renderer
	metrics   *observe.Metrics
}

// New validates deps and returns an Orchestrator.
func New(deps Deps) (*Orchestrator, error) {
	var errs []error
	if deps.Uploads == nil {
		errs = append(errs, errors.New("uploads directory is required"))
	}
	if deps.Extractor == nil {
		errs = append(errs, errors.New("extractor is required"))
	}
	if deps.Writer == nil {
		errs = append(errs, errors.New("record writer is required"))
	}
	if deps.Renderer == nil {
		errs = append(errs, errors.New("chart renderer is required"))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	m := deps.Metrics
	if m == nil {
		m = observe.DefaultMetrics()
	}
	return &Orchestrator{
		uploads:   deps.Uploads,
		extractor: deps.Extractor,
		writer:    deps.Writer,
		renderer:  deps.Renderer,
		metrics:   m,
	}, nil
}

// IsClientError reports whether err was caused by the request rather than
// by the server.
func IsClientError(err error) bool {
	return errors.Is(err, ErrNoAudio) || errors.Is(err, upload.ErrInvalidFilename)
}

// Analyze runs u through every stage and returns the assembled result.
func (o *Orchestrator) Analyze(ctx context.Context, u Upload) (res *Result, err error) {
	ctx, span := observe.StartSpan(ctx, "pipeline.Analyze")
	defer span.End()

	defer func() {
		status := observe.StatusOK
		switch {
		case err == nil:
		case IsClientError(err):
			status = observe.StatusClientError
		default:
			status = observe.StatusError
			observe.FailSpan(span, err)
		}
		o.metrics.RecordUpload(ctx, status)
	}()

	userID := u.UserID
	if userID == "" {
		userID = DefaultUserID
	}
	span.SetAttributes(observe.AttrUserID.String(userID))

	var (
		audioPath string
		features  analysis.Features
		diagnosis analysis.Diagnosis
		graphPath string
	)

	if err := o.stage(ctx, Received, func(context.Context) error {
		if u.Body == nil || u.Filename == "" {
			return ErrNoAudio
		}
		return nil
	}); err != nil {
		return nil, err
	}

	if err := o.stage(ctx, Stored, func(context.Context) error {
		p, err := o.uploads.Save(u.Filename, u.Body)
		audioPath = p
		return err
	}); err != nil {
		return nil, err
	}

	if err := o.stage(ctx, FeaturesExtracted, func(ctx context.Context) error {
		f, err := o.extractor.Extract(ctx, audioPath)
		features = f
		return err
	}); err != nil {
		return nil, err
	}

	_ = o.stage(ctx, Classified, func(ctx context.Context) error {
		diagnosis = analysis.Classify(features.ZeroCrossingRate)
		span.SetAttributes(observe.AttrDiagnosis.String(string(diagnosis)))
		o.metrics.RecordDiagnosis(ctx, string(diagnosis))
		return nil
	})

	if err := o.stage(ctx, Persisted, func(ctx context.Context) error {
		return o.writer.Save(ctx, userID, audioPath, features, diagnosis)
	}); err != nil {
		return nil, err
	}

	if err := o.stage(ctx, Charted, func(ctx context.Context) error {
		p, err := o.renderer.Render(ctx, features, diagnosis, audioPath)
		graphPath = p
		return err
	}); err != nil {
		return nil, err
	}

	_ = o.stage(ctx, Responded, func(context.Context) error {
		res = &Result{
			Message:   SuccessMessage,
			Diagnosis: diagnosis,
			GraphPath: graphPath,
			AudioPath: audioPath,
			UserID:    userID,
			Features:  features,
		}
		return nil
	})

	observe.Logger(ctx).Info("upload analysed",
		"user_id", userID,
		"audio_path", audioPath,
		"diagnosis", diagnosis,
		"zero_crossing_rate", features.ZeroCrossingRate,
	)
	return res, nil
}

// stage runs fn inside a child span and records its duration. A failure is
// wrapped in [*StageError].
func (o *Orchestrator) stage(ctx context.Context, s Stage, fn func(context.Context) error) error {
	ctx, span := observe.StartStage(ctx, s.String())
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	o.metrics.RecordStage(ctx, s.String(), time.Since(start))

	if err != nil {
		observe.FailSpan(span, err)
		return &StageError{Stage: s, Err: err}
	}
	return nil
}
