package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"deckharvest/pkg/configutil"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// ConfigFile is searched for from the working directory upwards.
const ConfigFile = "telemetry.json5"

const metricInterval = 5 * time.Second

// Collector is an OTLP endpoint, grpc is used when both endpoints are set.
type Collector struct {
	GrpcEndpoint string            `json:"grpc_endpoint"`
	HttpEndpoint string            `json:"http_endpoint"`
	Headers      map[string]string `json:"headers"`
}

func (c Collector) grpc() bool {
	return c.GrpcEndpoint != ""
}

func (c Collector) validate(signal string) error {
	if c.GrpcEndpoint == "" && c.HttpEndpoint == "" {
		return fmt.Errorf("otlp %s: no grpc_endpoint or http_endpoint", signal)
	}
	return nil
}

func (c Collector) log(signal string) {
	protocol, endpoint := "http", c.HttpEndpoint
	if c.grpc() {
		protocol, endpoint = "grpc", c.GrpcEndpoint
	}
	slog.Info(
		"otlp exporter configured",
		"signal", signal,
		"protocol", protocol,
		"endpoint", endpoint,
		"headers", len(c.Headers),
	)
}

type Config struct {
	Otlp struct {
		Traces  Collector `json:"traces"`
		Metrics Collector `json:"metrics"`
	} `json:"otlp"`
}

func (c Config) Validate() error {
	return errors.Join(
		c.Otlp.Traces.validate("traces"),
		c.Otlp.Metrics.validate("metrics"),
	)
}

// Otel holds the installed providers, a zero Otel shuts down without doing
// anything.
type Otel struct {
	TracerProvider *trace.TracerProvider
	MeterProvider  *metric.MeterProvider
}

// Shutdown flushes whatever the providers still buffer.
func (t Otel) Shutdown(ctx context.Context) error {
	var errs []error
	if t.TracerProvider != nil {
		errs = append(errs, t.TracerProvider.Shutdown(ctx))
	}
	if t.MeterProvider != nil {
		errs = append(errs, t.MeterProvider.Shutdown(ctx))
	}
	return errors.Join(errs...)
}

// SetupFromEnv calls Setup with the closest telemetry.json5, os.ErrNotExist
// means there is none.
func SetupFromEnv(ctx context.Context, serviceName string) (Otel, error) {
	config, err := configutil.ReadRecursively[Config](ConfigFile)
	if err != nil {
		return Otel{}, err
	}
	return Setup(ctx, serviceName, config)
}

// Setup installs global trace and meter providers that export to the
// configured collectors.
func Setup(ctx context.Context, serviceName string, config Config) (Otel, error) {
	err := config.Validate()
	if err != nil {
		return Otel{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(semconv.SchemaURL, semconv.ServiceName(serviceName)),
	)
	if err != nil {
		return Otel{}, err
	}

	var out Otel

	spans, err := spanExporter(ctx, config.Otlp.Traces)
	if err != nil {
		return out, fmt.Errorf("otlp traces: %w", err)
	}
	out.TracerProvider = trace.NewTracerProvider(
		trace.WithBatcher(spans),
		trace.WithResource(res),
	)
	otel.SetTracerProvider(out.TracerProvider)

	metrics, err := metricExporter(ctx, config.Otlp.Metrics)
	if err != nil {
		return out, fmt.Errorf("otlp metrics: %w", err)
	}
	out.MeterProvider = metric.NewMeterProvider(
		metric.WithReader(metric.NewPeriodicReader(metrics, metric.WithInterval(metricInterval))),
		metric.WithResource(res),
	)
	otel.SetMeterProvider(out.MeterProvider)

	return out, nil
}

func spanExporter(ctx context.Context, c Collector) (trace.SpanExporter, error) {
	c.log("traces")
	if c.grpc() {
		return otlptracegrpc.New(
			ctx,
			otlptracegrpc.WithEndpointURL(c.GrpcEndpoint),
			otlptracegrpc.WithHeaders(c.Headers),
		)
	}
	return otlptracehttp.New(
		ctx,
		otlptracehttp.WithEndpointURL(c.HttpEndpoint),
		otlptracehttp.WithHeaders(c.Headers),
	)
}

func metricExporter(ctx context.Context, c Collector) (metric.Exporter, error) {
	c.log("metrics")
	if c.grpc() {
		return otlpmetricgrpc.New(
			ctx,
			otlpmetricgrpc.WithEndpointURL(c.GrpcEndpoint),
			otlpmetricgrpc.WithHeaders(c.Headers),
		)
	}
	return otlpmetrichttp.New(
		ctx,
		otlpmetrichttp.WithEndpointURL(c.HttpEndpoint),
		otlpmetrichttp.WithHeaders(c.Headers),
	)
}

// OtelAPI forwards every report to an inner API and also records counts
// as otel gauges keyed by id.
type OtelAPI struct {
	API
	gauge otelmetric.Int64Gauge
}

// NewOtelAPI reads the global meter provider, so it belongs after Setup.
func NewOtelAPI(inner API) (OtelAPI, error) {
	gauge, err := otel.Meter("deckharvest").Int64Gauge("deckharvest.count")
	if err != nil {
		return OtelAPI{}, err
	}
	return OtelAPI{API: inner, gauge: gauge}, nil
}

func (o OtelAPI) ReportCount(id string, count int64) {
	o.API.ReportCount(id, count)
	o.gauge.Record(
		context.Background(),
		count,
		otelmetric.WithAttributes(attribute.String("id", id)),
	)
}
