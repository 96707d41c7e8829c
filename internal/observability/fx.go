package observability

import (
	"os"
	"strings"

	"github.com/pulselens/pulselens/internal/config"
	"github.com/pulselens/pulselens/internal/observability/metrics"
	"go.uber.org/fx"
)

var Module = fx.Module("observability",
	fx.Provide(
		provideMetricsConfig,
		metrics.NewProvider,
		metrics.New,
	),
)

func provideMetricsConfig(cfg config.Config) metrics.Config {
	endpoint := getenv("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.OTLPEndpoint)
	protocol := strings.ToLower(getenv("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc"))
	enabled := strings.TrimSpace(os.Getenv("OTEL_ENABLED"))

	return metrics.Config{
		Enabled:          enabled == "1" || strings.EqualFold(enabled, "true"),
		ExporterEndpoint: endpoint,
		ExporterProtocol: protocol,
		ServiceName:      cfg.AppName,
		Environment:      cfg.Environment,
	}
}

func getenv(key, def string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return def
}
