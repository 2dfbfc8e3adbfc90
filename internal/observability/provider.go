// Package observability wires the engine's OpenTelemetry tracer and meter,
// exporting metrics through Prometheus the way the rest of the example
// fleet does it. One span per FSM transition, one counter per terminal
// outcome.
package observability

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	otelprometheus "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

const (
	tracerName = "sentinel.cycle"
	meterName  = "sentinel.cycle"
)

// Config configures the Provider. ServiceName/ServiceVersion populate the
// OTel resource attached to every span and metric point.
type Config struct {
	ServiceName    string
	ServiceVersion string
	Enabled        bool
}

// DefaultConfig returns observability on, with the engine's own name.
func DefaultConfig() Config {
	return Config{ServiceName: "sentinel-cycle-engine", ServiceVersion: "0.1.0", Enabled: true}
}

// Provider owns the TracerProvider and MeterProvider for one process.
// Spans are created in-process (no network exporter is wired); metrics
// are exported through a dedicated Prometheus registry, scraped via
// MetricsHandler.
type Provider struct {
	cfg            Config
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	tracer         trace.Tracer
	meter          metric.Meter
	metrics        *cycleMetrics
	registry       *prometheus.Registry
}

// New builds a Provider. Each Provider owns its own Prometheus registry,
// so constructing more than one in the same process (as tests do) never
// collides on duplicate metric registration.
func New(cfg Config) (*Provider, error) {
	res, err := resource.Merge(
		resource.Default(),
		resource.NewSchemaless(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("merge otel resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(sdktrace.WithResource(res))
	otel.SetTracerProvider(tp)

	registry := prometheus.NewRegistry()
	exporter, err := otelprometheus.New(otelprometheus.WithRegisterer(registry))
	if err != nil {
		return nil, fmt.Errorf("new prometheus exporter: %w", err)
	}
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithResource(res), sdkmetric.WithReader(exporter))
	otel.SetMeterProvider(mp)

	p := &Provider{
		cfg:            cfg,
		tracerProvider: tp,
		meterProvider:  mp,
		tracer:         tp.Tracer(tracerName),
		meter:          mp.Meter(meterName),
		registry:       registry,
	}

	metrics, err := newCycleMetrics(p.meter)
	if err != nil {
		return nil, fmt.Errorf("init cycle metrics: %w", err)
	}
	p.metrics = metrics

	return p, nil
}

func (p *Provider) Tracer() trace.Tracer { return p.tracer }
func (p *Provider) Meter() metric.Meter  { return p.meter }

// Shutdown flushes and releases both providers.
func (p *Provider) Shutdown(ctx context.Context) error {
	if err := p.tracerProvider.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown tracer provider: %w", err)
	}
	if err := p.meterProvider.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown meter provider: %w", err)
	}
	return nil
}
