package audit

import (
	"context"
	"log/slog"

	"go.uber.org/fx"
)

// Module wires a Publisher from AUDIT_AMQP_URL, lifecycle-managed by fx the
// the pattern an amqp.Module typically uses to wire its router.
var Module = fx.Module("audit",
	fx.Provide(func(logger *slog.Logger, cfg Config) (*Publisher, error) {
		if cfg.AMQPURL == "" {
			return nil, nil
		}
		return NewAMQPPublisher(cfg.AMQPURL, logger)
	}),
	fx.Invoke(func(lc fx.Lifecycle, p *Publisher) {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				return p.Close()
			},
		})
	}),
)

// Config is the audit package's slice of the process configuration.
type Config struct {
	AMQPURL string
}
