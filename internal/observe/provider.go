package observe

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// Resource attribute keys describing how this instance stores its output.
const (
	AttrRecordDriver = attribute.Key("speechcheck.record.driver")
	AttrUploadDir    = attribute.Key("speechcheck.upload.dir")
)

// ProviderConfig configures the OpenTelemetry SDK providers.
type ProviderConfig struct {
	// ServiceName defaults to "speechcheck".
	ServiceName    string
	ServiceVersion string

	// RecordDriver and UploadDir are attached to the resource so every
	// exported series and span says where diagnoses and files end up.
	RecordDriver string
	UploadDir    string

	// Registerer receives the Prometheus collector. Nil means
	// [prometheus.DefaultRegisterer], which is what /metrics serves.
	Registerer prometheus.Registerer

	// TraceExporter is optional. Without one, spans are recorded for log
	// correlation but never leave the process.
	TraceExporter sdktrace.SpanExporter
}

// NewResource builds the telemetry resource for cfg.
func NewResource(ctx context.Context, cfg ProviderConfig) (*resource.Resource, error) {
	name := cfg.ServiceName
	if name == "" {
		name = "speechcheck"
	}
	attrs := []attribute.KeyValue{semconv.ServiceName(name)}
	if cfg.ServiceVersion != "" {
		attrs = append(attrs, semconv.ServiceVersion(cfg.ServiceVersion))
	}
	if cfg.RecordDriver != "" {
		attrs = append(attrs, AttrRecordDriver.String(cfg.RecordDriver))
	}
	if cfg.UploadDir != "" {
		attrs = append(attrs, AttrUploadDir.String(cfg.UploadDir))
	}

	// Schemaless attributes: the SDK detectors carry their own schema URL.
	res, err := resource.New(ctx,
		resource.WithTelemetrySDK(),
		resource.WithFromEnv(),
		resource.WithAttributes(attrs...),
	)
	if err != nil {
		return nil, fmt.Errorf("observe: resource: %w", err)
	}
	return res, nil
}

// InitProvider registers global meter and tracer providers built from cfg.
// Metrics are exposed through a Prometheus collector on cfg.Registerer.
//
// The returned function flushes and stops both providers.
func InitProvider(ctx context.Context, cfg ProviderConfig) (shutdown func(context.Context) error, err error) {
	res, err := NewResource(ctx, cfg)
	if err != nil {
		return nil, err
	}

	reg := cfg.Registerer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	promExp, err := promexporter.New(promexporter.WithRegisterer(reg))
	if err != nil {
		return nil, fmt.Errorf("observe: prometheus exporter: %w", err)
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(promExp),
	)

	tpOpts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}
	if cfg.TraceExporter != nil {
		tpOpts = append(tpOpts, sdktrace.WithBatcher(cfg.TraceExporter))
	}
	tp := sdktrace.NewTracerProvider(tpOpts...)

	otel.SetMeterProvider(mp)
	otel.SetTracerProvider(tp)

	return func(ctx context.Context) error {
		return errors.Join(tp.Shutdown(ctx), mp.Shutdown(ctx))
	}, nil
}
