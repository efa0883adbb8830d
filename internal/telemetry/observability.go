package telemetry

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	oteltrace "go.opentelemetry.io/otel/trace"
)

type Config struct {
	OTLPEndpoint string  `json:"otlp_endpoint" yaml:"otlp_endpoint"`
	ServiceName  string  `json:"service_name" yaml:"service_name"`
	SampleRatio  float64 `json:"sample_ratio" yaml:"sample_ratio"`
}

type Observability struct {
	Tracer oteltrace.Tracer
	Meter  metric.Meter

	traceProvider *sdktrace.TracerProvider

	CaseCounter       metric.Int64Counter
	InfraErrorCounter metric.Int64Counter
	RetryCounter      metric.Int64Counter
	ProviderCallMS    metric.Int64Histogram
}

func Setup(ctx context.Context, cfg Config) (*Observability, error) {
	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "qa-probe"
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("build otel resource: %w", err)
	}
	ratio := cfg.SampleRatio
	if ratio <= 0 || ratio > 1 {
		ratio = 1
	}
	sampler := sdktrace.TraceIDRatioBased(ratio)
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
	)
	if cfg.OTLPEndpoint != "" {
		exporter, exportErr := otlptracegrpc.New(ctx,
			otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint),
			otlptracegrpc.WithInsecure(),
		)
		if exportErr != nil {
			return nil, fmt.Errorf("create otlp trace exporter: %w", exportErr)
		}
		tp = sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(exporter),
			sdktrace.WithResource(res),
			sdktrace.WithSampler(sampler),
		)
	} else {
		slog.Info("otel trace exporter not configured; using local tracer provider")
	}
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	meter := otel.Meter(serviceName)
	tracer := otel.Tracer(serviceName)
	caseCounter, _ := meter.Int64Counter("qa_case_total")
	infraErrors, _ := meter.Int64Counter("qa_infra_error_total")
	retries, _ := meter.Int64Counter("qa_retry_total")
	callMS, _ := meter.Int64Histogram("qa_provider_call_ms")
	return &Observability{
		Tracer:            tracer,
		Meter:             meter,
		traceProvider:     tp,
		CaseCounter:       caseCounter,
		InfraErrorCounter: infraErrors,
		RetryCounter:      retries,
		ProviderCallMS:    callMS,
	}, nil
}

func (o *Observability) Shutdown(ctx context.Context) error {
	if o == nil || o.traceProvider == nil {
		return nil
	}
	return o.traceProvider.Shutdown(ctx)
}

// MarkCase records one finished test case with its category and outcome
// (pass, fail or error).
func (o *Observability) MarkCase(ctx context.Context, category, outcome string) {
	if o == nil {
		return
	}
	o.CaseCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("category", category),
		attribute.String("outcome", outcome),
	))
}

func (o *Observability) MarkInfraError(ctx context.Context, kind string) {
	if o == nil {
		return
	}
	o.InfraErrorCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

func (o *Observability) MarkRetry(ctx context.Context, provider string) {
	if o == nil {
		return
	}
	o.RetryCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("provider", provider)))
}

func (o *Observability) RecordProviderCall(ctx context.Context, provider string, durationMS int64, ok bool) {
	if o == nil {
		return
	}
	o.ProviderCallMS.Record(ctx, durationMS, metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.Bool("ok", ok),
	))
}

// StartCase opens a span for one test case; callers end it when the
// verdict is in.
func (o *Observability) StartCase(ctx context.Context, testID, category string) (context.Context, oteltrace.Span) {
	if o == nil {
		return ctx, oteltrace.SpanFromContext(ctx)
	}
	return o.Tracer.Start(ctx, "qa.case",
		oteltrace.WithAttributes(
			attribute.String("test_id", testID),
			attribute.String("category", category),
		))
}
