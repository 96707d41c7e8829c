package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes application-level instruments.
type Metrics struct {
	eventIngest   metric.Int64Counter
	scoreComputed metric.Int64Counter
	scoreDuration metric.Float64Histogram
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				if log != nil {
					log.Info("shutting down meter provider")
				}
				return provider.Shutdown(ctx)
			},
		})
	}

	return provider, nil
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	switch strings.ToLower(strings.TrimSpace(protocol)) {
	case "", "grpc":
		return otlpmetricgrpc.New(context.Background(),
			otlpmetricgrpc.WithEndpoint(endpoint),
			otlpmetricgrpc.WithInsecure(),
		)
	case "http", "http/protobuf":
		return otlpmetrichttp.New(context.Background(),
			otlpmetrichttp.WithEndpoint(endpoint),
			otlpmetrichttp.WithInsecure(),
		)
	default:
		return nil, fmt.Errorf("unsupported otlp protocol %q", protocol)
	}
}

// New creates the application instruments from the registered provider.
func New(provider metric.MeterProvider) (*Metrics, error) {
	meter := provider.Meter("pulselens")

	eventIngest, err := meter.Int64Counter("pulselens.events.ingested",
		metric.WithDescription("Usage events accepted by the event store"))
	if err != nil {
		return nil, err
	}

	scoreComputed, err := meter.Int64Counter("pulselens.scores.computed",
		metric.WithDescription("Score computations by engine"))
	if err != nil {
		return nil, err
	}

	scoreDuration, err := meter.Float64Histogram("pulselens.scores.duration_ms",
		metric.WithDescription("Score computation latency by engine"))
	if err != nil {
		return nil, err
	}

	return &Metrics{
		eventIngest:   eventIngest,
		scoreComputed: scoreComputed,
		scoreDuration: scoreDuration,
	}, nil
}

func (m *Metrics) RecordEventIngest(ctx context.Context, eventType string) {
	if m == nil || m.eventIngest == nil {
		return
	}
	m.eventIngest.Add(ctx, 1, metric.WithAttributes(
		attribute.String("event_type", eventType),
	))
}

func (m *Metrics) RecordScore(ctx context.Context, engine string, elapsed time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("engine", engine))
	if m.scoreComputed != nil {
		m.scoreComputed.Add(ctx, 1, attrs)
	}
	if m.scoreDuration != nil {
		m.scoreDuration.Record(ctx, float64(elapsed.Milliseconds()), attrs)
	}
}
