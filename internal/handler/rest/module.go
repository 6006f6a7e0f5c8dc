package rest

import (
	"log/slog"

	"go.uber.org/fx"

	"github.com/webitel/im-thread-gateway/internal/router"
)

var Module = fx.Module("rest-handler",
	fx.Provide(func(r *router.Router, logger *slog.Logger) *Handler {
		return New(r, logger)
	}),
)
