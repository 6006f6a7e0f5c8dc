package router

import (
	"go.uber.org/fx"

	"github.com/webitel/im-thread-gateway/internal/registry"
)

var Module = fx.Module("router",
	fx.Provide(func(reg *registry.Registry) *Router {
		return New(reg)
	}),
)
