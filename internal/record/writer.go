package record

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/MrWong99/speechcheck/internal/analysis"
	"github.com/MrWong99/speechcheck/internal/observe"
)

// Writer turns analysis results into [DiagnosisRecord] values and appends
// them to a [Store].
type Writer struct {
	store    Store
	driver   string
	required bool
	metrics  *observe.Metrics

	disabledOnce sync.Once
}

// WriterOption configures a [Writer].
type WriterOption func(*Writer)

// WithRequired switches the writer to strict mode: append failures are
// returned from [Writer.Save] wrapped in [ErrPersistence].
func WithRequired(required bool) WriterOption {
	return func(w *Writer) { w.required = required }
}

// WithDriver sets the driver name used in logs and failure metrics.
func WithDriver(name string) WriterOption {
	return func(w *Writer) { w.driver = name }
}

// WithMetrics sets the metrics instance. Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) WriterOption {
	return func(w *Writer) { w.metrics = m }
}

// NewWriter returns a Writer appending to store. A nil store disables
// persistence; Save then only logs once that records are being dropped.
func NewWriter(store Store, opts ...WriterOption) *Writer {
	w := &Writer{store: store, driver: "none"}
	for _, o := range opts {
		o(w)
	}
	if w.metrics == nil {
		w.metrics = observe.DefaultMetrics()
	}
	return w
}

// Driver returns the configured driver name.
func (w *Writer) Driver() string { return w.driver }

// Save appends one record for the given upload.
//
// In best-effort mode (the default) a failed append is logged at error level
// and counted, and Save returns nil. In strict mode the failure is returned.
func (w *Writer) Save(ctx context.Context, userID, audioPath string, f analysis.Features, d analysis.Diagnosis) error {
	log := observe.Logger(ctx)
	if w.store == nil {
		w.disabledOnce.Do(func() {
			log.Warn("record: no datastore configured, diagnosis records are not persisted")
		})
		return nil
	}

	rec := NewRecord(userID, audioPath, f, d)
	err := w.store.Append(ctx, rec)
	if err == nil {
		log.Debug("record: saved", "id", rec.ID, "user_id", userID, "diagnosis", d)
		return nil
	}

	w.metrics.RecordPersistenceFailure(ctx, w.driver)
	if w.required {
		return fmt.Errorf("%w: %s: %w", ErrPersistence, w.driver, err)
	}
	log.Error("record: failed to persist diagnosis record",
		slog.String("driver", w.driver),
		slog.String("user_id", userID),
		slog.String("audio_path", audioPath),
		slog.String("diagnosis", string(d)),
		slog.Any("err", err),
	)
	return nil
}

// Ping probes the underlying store. A writer without a store is always
// reachable.
func (w *Writer) Ping(ctx context.Context) error {
	if w.store == nil {
		return nil
	}
	return w.store.Ping(ctx)
}

// Close closes the underlying store, if any.
func (w *Writer) Close() error {
	if w.store == nil {
		return nil
	}
	return w.store.Close()
}
