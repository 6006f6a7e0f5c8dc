package sse

import (
	"log/slog"

	"go.uber.org/fx"

	"github.com/webitel/im-thread-gateway/internal/registry"
)

var Module = fx.Module("sse-handler",
	fx.Provide(func(reg *registry.Registry, logger *slog.Logger) *Handler {
		return New(reg, logger)
	}),
)
