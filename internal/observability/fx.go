package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/smallbiznis/equiprent/internal/observability/logger"
	"github.com/smallbiznis/equiprent/internal/observability/metrics"
	"go.uber.org/fx"
)

var Module = fx.Module("observability",
	fx.Provide(
		LoadConfig,
		provideLoggerConfig,
		logger.New,
		provideMetricsConfig,
		provideRegistry,
		metrics.New,
		metrics.NewSchedulerMetrics,
	),
	fx.Invoke(metrics.RunHTTP),
)

func provideLoggerConfig(cfg Config) logger.Config {
	return logger.Config{
		ServiceName:         cfg.ServiceName,
		Environment:         cfg.Environment,
		Version:             cfg.Version,
		Level:               cfg.LogLevel,
		Format:              cfg.LogFormat,
		IncludeCaller:       true,
		IncludeStackOnError: cfg.Debug(),
	}
}

func provideMetricsConfig(cfg Config) metrics.Config {
	return metrics.Config{
		Enabled:     cfg.MetricsEnabled,
		Addr:        cfg.MetricsAddr,
		ServiceName: cfg.ServiceName,
		Environment: cfg.Environment,
	}
}

func provideRegistry() (prometheus.Registerer, prometheus.Gatherer) {
	return prometheus.DefaultRegisterer, prometheus.DefaultGatherer
}
