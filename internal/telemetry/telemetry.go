// Package telemetry provides opt-in tracing and metrics for sync passes.
//
// Nothing leaves the device unless telemetry is explicitly enabled in the
// configuration. A disabled Telemetry hands out no-op tracers and meters,
// so callers never need to check whether it is switched on.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// InstrumentationName names the tracer and meter.
const InstrumentationName = "github.com/kimhsiao/lifelog/backend"

// ExporterType selects where spans and metrics go.
type ExporterType string

const (
	ExporterNone   ExporterType = "none"
	ExporterStdout ExporterType = "stdout"
	ExporterOTLP   ExporterType = "otlp"
)

// ParseExporter validates an exporter name.
func ParseExporter(s string) (ExporterType, error) {
	switch ExporterType(s) {
	case ExporterNone, ExporterStdout, ExporterOTLP:
		return ExporterType(s), nil
	case "":
		return ExporterNone, nil
	}
	return "", fmt.Errorf("unknown telemetry exporter %q", s)
}

// Outcome labels a dispatched queue entry.
type Outcome string

const (
	OutcomeSynced    Outcome = "synced"
	OutcomeDiscarded Outcome = "discarded"
	OutcomeFailed    Outcome = "failed"
)

// Config holds telemetry configuration.
type Config struct {
	Enabled         bool
	Exporter        ExporterType
	Endpoint        string // OTLP/HTTP trace collector, host:port
	MetricsEndpoint string // OTLP/gRPC metric collector, host:port
	ServiceName     string
	SampleRate      float64 // 0.0 to 1.0
	Output          io.Writer
}

// DefaultConfig returns telemetry switched off.
func DefaultConfig() Config {
	return Config{
		Enabled:         false,
		Exporter:        ExporterNone,
		Endpoint:        "localhost:4318",
		MetricsEndpoint: "localhost:4317",
		ServiceName:     "lifelog",
		SampleRate:      1.0,
	}
}

// Telemetry owns the tracer and meter providers and the sync instruments.
type Telemetry struct {
	config         Config
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	reader         *sdkmetric.ManualReader

	tracer trace.Tracer
	meter  metric.Meter

	drains        metric.Int64Counter
	dispatches    metric.Int64Counter
	drainDuration metric.Float64Histogram
	pending       metric.Int64Gauge
}

// Noop returns a Telemetry that records nothing.
func Noop() *Telemetry {
	t := &Telemetry{
		config: DefaultConfig(),
		tracer: tracenoop.NewTracerProvider().Tracer(InstrumentationName),
		meter:  metricnoop.NewMeterProvider().Meter(InstrumentationName),
	}
	// the noop meter never fails
	_ = t.initInstruments()
	return t
}

// New builds providers for cfg. A disabled config yields Noop().
func New(ctx context.Context, cfg Config) (*Telemetry, error) {
	if !cfg.Enabled || cfg.Exporter == ExporterNone || cfg.Exporter == "" {
		return Noop(), nil
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = DefaultConfig().ServiceName
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
		),
		resource.WithHost(),
		resource.WithTelemetrySDK(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	spanExporter, err := newSpanExporter(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create span exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(spanExporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sampler(cfg.SampleRate))),
	)

	t := &Telemetry{config: cfg, tracerProvider: tp}

	var reader sdkmetric.Reader
	switch cfg.Exporter {
	case ExporterOTLP:
		metricExporter, err := otlpmetricgrpc.New(ctx,
			otlpmetricgrpc.WithEndpoint(cfg.MetricsEndpoint),
			otlpmetricgrpc.WithInsecure(),
			otlpmetricgrpc.WithTimeout(30*time.Second),
		)
		if err != nil {
			_ = tp.Shutdown(ctx)
			return nil, fmt.Errorf("failed to create metric exporter: %w", err)
		}
		reader = sdkmetric.NewPeriodicReader(metricExporter, sdkmetric.WithInterval(30*time.Second))
	default:
		// stdout keeps metrics in process; Collect reads them
		t.reader = sdkmetric.NewManualReader()
		reader = t.reader
	}

	t.meterProvider = sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(reader),
		sdkmetric.WithResource(res),
	)
	t.tracer = tp.Tracer(InstrumentationName)
	t.meter = t.meterProvider.Meter(InstrumentationName)
	if err := t.initInstruments(); err != nil {
		_ = t.Shutdown(ctx)
		return nil, err
	}
	return t, nil
}

// InstallGlobal makes t the process-wide otel provider.
func (t *Telemetry) InstallGlobal() {
	if t.tracerProvider != nil {
		otel.SetTracerProvider(t.tracerProvider)
	}
	if t.meterProvider != nil {
		otel.SetMeterProvider(t.meterProvider)
	}
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
}

func newSpanExporter(ctx context.Context, cfg Config) (sdktrace.SpanExporter, error) {
	switch cfg.Exporter {
	case ExporterStdout:
		out := cfg.Output
		if out == nil {
			out = os.Stdout
		}
		return stdouttrace.New(stdouttrace.WithWriter(out))
	case ExporterOTLP:
		return otlptracehttp.New(ctx,
			otlptracehttp.WithEndpoint(cfg.Endpoint),
			otlptracehttp.WithInsecure(),
		)
	}
	return nil, fmt.Errorf("unsupported exporter %q", cfg.Exporter)
}

func sampler(rate float64) sdktrace.Sampler {
	switch {
	case rate >= 1.0:
		return sdktrace.AlwaysSample()
	case rate <= 0.0:
		return sdktrace.NeverSample()
	default:
		return sdktrace.TraceIDRatioBased(rate)
	}
}

func (t *Telemetry) initInstruments() error {
	var err error
	if t.drains, err = t.meter.Int64Counter("lifelog.sync.drains",
		metric.WithDescription("Drain passes by result")); err != nil {
		return err
	}
	if t.dispatches, err = t.meter.Int64Counter("lifelog.sync.entries",
		metric.WithDescription("Queue entries processed by table and outcome")); err != nil {
		return err
	}
	if t.drainDuration, err = t.meter.Float64Histogram("lifelog.sync.drain.duration",
		metric.WithDescription("Drain pass duration"), metric.WithUnit("s")); err != nil {
		return err
	}
	if t.pending, err = t.meter.Int64Gauge("lifelog.sync.pending",
		metric.WithDescription("Unsynced queue entries after the last pass")); err != nil {
		return err
	}
	return nil
}

// Enabled reports whether anything is exported.
func (t *Telemetry) Enabled() bool {
	return t != nil && t.tracerProvider != nil
}

// Tracer returns the sync tracer.
func (t *Telemetry) Tracer() trace.Tracer {
	return t.tracer
}

// StartDrain opens the span covering one drain pass.
func (t *Telemetry) StartDrain(ctx context.Context) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "sync.drain", trace.WithSpanKind(trace.SpanKindInternal))
}

// StartDispatch opens a client span for one remote call.
func (t *Telemetry) StartDispatch(ctx context.Context, table, op, recordID string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "sync.dispatch",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("sync.table", table),
			attribute.String("sync.operation", op),
			attribute.String("sync.record_id", recordID),
		))
}

// RecordEntry counts one processed queue entry.
func (t *Telemetry) RecordEntry(ctx context.Context, table string, outcome Outcome) {
	t.dispatches.Add(ctx, 1, metric.WithAttributes(
		attribute.String("table", table),
		attribute.String("outcome", string(outcome)),
	))
}

// RecordDrain records the result of a finished pass.
func (t *Telemetry) RecordDrain(ctx context.Context, ok bool, d time.Duration, remaining int) {
	result := "ok"
	if !ok {
		result = "failed"
	}
	attrs := metric.WithAttributes(attribute.String("result", result))
	t.drains.Add(ctx, 1, attrs)
	t.drainDuration.Record(ctx, d.Seconds(), attrs)
	t.pending.Record(ctx, int64(remaining))
}

// EndSpan sets the span status from err and ends it.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// Collect reads in-process metrics. It only works with the stdout exporter.
func (t *Telemetry) Collect(ctx context.Context) (*metricdata.ResourceMetrics, error) {
	if t.reader == nil {
		return nil, errors.New("telemetry: no in-process metric reader")
	}
	var rm metricdata.ResourceMetrics
	if err := t.reader.Collect(ctx, &rm); err != nil {
		return nil, err
	}
	return &rm, nil
}

// Shutdown flushes and stops the providers.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	var errs []error
	if t.tracerProvider != nil {
		if err := t.tracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if t.meterProvider != nil {
		if err := t.meterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
