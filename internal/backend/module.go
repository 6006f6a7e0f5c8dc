package backend

import (
	"log/slog"

	"go.uber.org/fx"

	"github.com/webitel/im-thread-gateway/internal/backend/local"
	"github.com/webitel/im-thread-gateway/internal/config"
	"github.com/webitel/im-thread-gateway/internal/registry"
)

var Module = fx.Module("backend",
	fx.Provide(
		func() local.Factory { return local.NewEchoRuntimeFactory() },
		func(cfg *config.Config, runtimeFactory local.Factory, logger *slog.Logger) registry.InstanceFactory {
			return NewFactory(Config{UseAgentOS: cfg.UseAgentOS, AgentOSURL: cfg.AgentOSURL}, runtimeFactory, logger)
		},
	),
)
