package registry

import (
	"context"

	"go.uber.org/fx"

	"github.com/webitel/im-thread-gateway/internal/audit"
)

// Module wires the Registry as a singleton, shut down gracefully on fx
// OnStop.
var Module = fx.Module("registry",
	fx.Provide(func(factory InstanceFactory, auditPub *audit.Publisher, deps Deps) *Registry {
		opts := []Option{
			WithHeartbeatInterval(deps.HeartbeatInterval),
			WithDurations(deps.Durations),
			WithLogger(deps.Logger),
			WithAuditPublisher(auditPub),
		}
		if deps.Clock != nil {
			opts = append(opts, WithClock(deps.Clock))
		}
		return New(factory, opts...)
	}),
	fx.Invoke(func(lc fx.Lifecycle, r *Registry) {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				return r.Shutdown(ctx)
			},
		})
	}),
)
