package cmd

import (
	"context"
	"log/slog"
	"time"

	"github.com/spf13/pflag"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/fx"

	"github.com/webitel/im-thread-gateway/internal/audit"
	"github.com/webitel/im-thread-gateway/internal/backend"
	"github.com/webitel/im-thread-gateway/internal/config"
	"github.com/webitel/im-thread-gateway/internal/handler/rest"
	"github.com/webitel/im-thread-gateway/internal/handler/sse"
	"github.com/webitel/im-thread-gateway/internal/httpserver"
	"github.com/webitel/im-thread-gateway/internal/logging"
	"github.com/webitel/im-thread-gateway/internal/registry"
	"github.com/webitel/im-thread-gateway/internal/router"
	"github.com/webitel/im-thread-gateway/internal/stats"
	"github.com/webitel/im-thread-gateway/internal/tracing"
)

func NewApp(flags *pflag.FlagSet) *fx.App {
	return fx.New(
		fx.Provide(
			func() (*config.Config, *config.Source, error) { return config.Load(flags) },
			ProvideLogger,
			ProvideTracerProvider,
			ProvideRegistryDeps,
			func(cfg *config.Config) audit.Config { return audit.Config{AMQPURL: cfg.AuditAMQPURL} },
		),
		fx.Invoke(func(tp *sdktrace.TracerProvider) {}),
		backend.Module,
		registry.Module,
		router.Module,
		sse.Module,
		rest.Module,
		httpserver.Module,
		audit.Module,
		fx.Invoke(wireConfigReload),
		fx.Invoke(wireDashboard),
	)
}

// wireConfigReload registers the fsnotify-driven hot-reload callback that
// retunes the running Registry's heartbeat interval and timeout durations
// whenever the config file on disk changes. A no-op when Load was never
// given a config_file (the registered callback then never fires).
func wireConfigReload(src *config.Source, reg *registry.Registry) {
	src.OnChange(func(cfg *config.Config) {
		reg.SetDurations(cfg.Durations)
		reg.SetHeartbeatInterval(cfg.HeartbeatInterval)
		slog.Info("config: reloaded", "heartbeat_interval", cfg.HeartbeatInterval)
	})
}

// wireDashboard starts the operator dashboard against the server's own
// Registry when --dashboard is set, stopping it on fx shutdown.
func wireDashboard(lc fx.Lifecycle, cfg *config.Config, reg *registry.Registry) {
	if !cfg.Dashboard {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				if err := stats.Run(ctx, reg, time.Second); err != nil {
					slog.Error("dashboard: run", "err", err)
				}
			}()
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			return nil
		},
	})
}

func ProvideLogger(cfg *config.Config) *slog.Logger {
	logger := logging.New(logging.Options{
		Level:       cfg.LogLevel,
		ServiceName: ServiceName,
	})
	slog.SetDefault(logger)
	return logger
}

func ProvideTracerProvider() (*sdktrace.TracerProvider, error) {
	return tracing.NewProvider(ServiceName)
}

func ProvideRegistryDeps(cfg *config.Config) registry.Deps {
	return registry.Deps{
		HeartbeatInterval: cfg.HeartbeatInterval,
		Durations:         cfg.Durations,
		Logger:            slog.Default(),
	}
}
