package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// OtlpConnConfig is one exporter endpoint, grpc wins when both are set.
type OtlpConnConfig struct {
	GrpcEndpoint string            `json:"grpc_endpoint"`
	HttpEndpoint string            `json:"http_endpoint"`
	Headers      map[string]string `json:"headers"`
}

type OtlpConfig struct {
	Traces  OtlpConnConfig `json:"traces"`
	Metrics OtlpConnConfig `json:"metrics"`
}

// Config is the shape of telemetry.json5. A signal without an endpoint is not exported.
type Config struct {
	Otlp OtlpConfig `json:"otlp"`
	// SampleRatio is the share of runs traced, 0 or >= 1 traces everything.
	SampleRatio           float64 `json:"sample_ratio"`
	MetricIntervalSeconds float64 `json:"metric_interval_seconds"`
	// Attributes are added to the resource, e.g. {"deployment": "codespace"}.
	Attributes map[string]string `json:"attributes"`
}

type exporterKind string

const (
	exporterNone exporterKind = ""
	exporterGrpc exporterKind = "grpc"
	exporterHttp exporterKind = "http"
)

func (c OtlpConnConfig) kind() (exporterKind, string, error) {
	endpoint := c.HttpEndpoint
	kind := exporterHttp
	if c.GrpcEndpoint != "" {
		endpoint, kind = c.GrpcEndpoint, exporterGrpc
	}
	if endpoint == "" {
		return exporterNone, "", nil
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return exporterNone, "", fmt.Errorf("otlp endpoint %q: %w", endpoint, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return exporterNone, "", fmt.Errorf("otlp endpoint %q: scheme must be http or https", endpoint)
	}
	return kind, endpoint, nil
}

func (c Config) sampler() trace.Sampler {
	if c.SampleRatio <= 0 || c.SampleRatio >= 1 {
		return trace.AlwaysSample()
	}
	return trace.ParentBased(trace.TraceIDRatioBased(c.SampleRatio))
}

func (c Config) metricInterval() time.Duration {
	if c.MetricIntervalSeconds <= 0 {
		return 15 * time.Second
	}
	return time.Duration(c.MetricIntervalSeconds * float64(time.Second))
}

func newResource(serviceName string, extra map[string]string) (*resource.Resource, error) {
	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	attrs := []attribute.KeyValue{semconv.ServiceName(serviceName)}
	for _, k := range keys {
		attrs = append(attrs, attribute.String(k, extra[k]))
	}
	return resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(semconv.SchemaURL, attrs...),
	)
}

// newTraceProvider returns nil when no trace endpoint is configured.
func newTraceProvider(ctx context.Context, r *resource.Resource, config Config) (*trace.TracerProvider, error) {
	kind, endpoint, err := config.Otlp.Traces.kind()
	if err != nil || kind == exporterNone {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*3)
	defer cancel()

	var exporter trace.SpanExporter
	switch kind {
	case exporterGrpc:
		exporter, err = otlptracegrpc.New(
			ctx,
			otlptracegrpc.WithEndpointURL(endpoint),
			otlptracegrpc.WithHeaders(config.Otlp.Traces.Headers),
		)
	default:
		exporter, err = otlptracehttp.New(
			ctx,
			otlptracehttp.WithEndpointURL(endpoint),
			otlptracehttp.WithHeaders(config.Otlp.Traces.Headers),
		)
	}
	if err != nil {
		return nil, err
	}
	slog.Info("trace exporter initialized", "type", kind, "endpoint", endpoint)

	return trace.NewTracerProvider(
		trace.WithBatcher(exporter, trace.WithBatchTimeout(2*time.Second)),
		trace.WithSampler(config.sampler()),
		trace.WithResource(r),
	), nil
}

// newMetricProvider returns nil when no metric endpoint is configured.
func newMetricProvider(ctx context.Context, r *resource.Resource, config Config) (*metric.MeterProvider, error) {
	kind, endpoint, err := config.Otlp.Metrics.kind()
	if err != nil || kind == exporterNone {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*3)
	defer cancel()

	var exporter metric.Exporter
	switch kind {
	case exporterGrpc:
		exporter, err = otlpmetricgrpc.New(
			ctx,
			otlpmetricgrpc.WithEndpointURL(endpoint),
			otlpmetricgrpc.WithHeaders(config.Otlp.Metrics.Headers),
		)
	default:
		exporter, err = otlpmetrichttp.New(
			ctx,
			otlpmetrichttp.WithEndpointURL(endpoint),
			otlpmetrichttp.WithHeaders(config.Otlp.Metrics.Headers),
		)
	}
	if err != nil {
		return nil, err
	}
	slog.Info("metric exporter initialized", "type", kind, "endpoint", endpoint)

	return metric.NewMeterProvider(
		metric.WithReader(metric.NewPeriodicReader(exporter, metric.WithInterval(config.metricInterval()))),
		metric.WithResource(r),
	), nil
}
