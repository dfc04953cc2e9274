// Package observe provides application-wide observability primitives for
// speechcheck: OpenTelemetry metrics, distributed tracing, structured logging,
// and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all speechcheck metrics.
const meterName = "github.com/MrWong99/speechcheck"

// Upload outcome values for the "status" attribute of [Metrics.Uploads].
const (
	StatusOK          = "ok"
	StatusClientError = "client_error"
	StatusError       = "error"
)

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use; the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// StageDuration tracks the latency of each upload pipeline stage. Use with
	// attribute:
	//   attribute.String("stage", ...)
	StageDuration metric.Float64Histogram

	// Diagnoses counts classification results. Use with attribute:
	//   attribute.String("diagnosis", ...)
	Diagnoses metric.Int64Counter

	// Uploads counts finished upload requests. Use with attribute:
	//   attribute.String("status", ok|client_error|error)
	Uploads metric.Int64Counter

	// PersistenceFailures counts record writes that failed. Use with attribute:
	//   attribute.String("driver", ...)
	PersistenceFailures metric.Int64Counter

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds). Feature
// extraction on long recordings dominates the upper end.
var latencyBuckets = []float64{
	0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.StageDuration, err = m.Float64Histogram("speechcheck.stage.duration",
		metric.WithDescription("Latency of each upload pipeline stage."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	if met.Diagnoses, err = m.Int64Counter("speechcheck.diagnoses",
		metric.WithDescription("Total classified recordings by diagnosis."),
	); err != nil {
		return nil, err
	}
	if met.Uploads, err = m.Int64Counter("speechcheck.uploads",
		metric.WithDescription("Total upload requests by outcome."),
	); err != nil {
		return nil, err
	}
	if met.PersistenceFailures, err = m.Int64Counter("speechcheck.persistence.failures",
		metric.WithDescription("Total failed diagnosis record writes by driver."),
	); err != nil {
		return nil, err
	}

	if met.HTTPRequestDuration, err = m.Float64Histogram("speechcheck.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordStage records the duration of one pipeline stage.
func (m *Metrics) RecordStage(ctx context.Context, stage string, d time.Duration) {
	m.StageDuration.Record(ctx, d.Seconds(),
		metric.WithAttributes(attribute.String("stage", stage)),
	)
}

// RecordDiagnosis increments the diagnosis counter.
func (m *Metrics) RecordDiagnosis(ctx context.Context, diagnosis string) {
	m.Diagnoses.Add(ctx, 1,
		metric.WithAttributes(attribute.String("diagnosis", diagnosis)),
	)
}

// RecordUpload increments the upload counter for the given outcome.
func (m *Metrics) RecordUpload(ctx context.Context, status string) {
	m.Uploads.Add(ctx, 1,
		metric.WithAttributes(attribute.String("status", status)),
	)
}

// RecordPersistenceFailure increments the persistence failure counter.
func (m *Metrics) RecordPersistenceFailure(ctx context.Context, driver string) {
	m.PersistenceFailures.Add(ctx, 1,
		metric.WithAttributes(attribute.String("driver", driver)),
	)
}
