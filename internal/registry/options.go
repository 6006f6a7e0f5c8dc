package registry

import (
	"log/slog"
	"time"

	"github.com/webitel/im-thread-gateway/internal/audit"
	"github.com/webitel/im-thread-gateway/internal/domain/timeoutsvc"
)

// Option configures a Registry at construction time, mirroring the
// teacher's functional-option Hub configuration.
type Option func(*Registry)

// WithHeartbeatInterval overrides the default 30s heartbeat interval.
func WithHeartbeatInterval(d time.Duration) Option {
	return func(r *Registry) { r.heartbeatInterval = d }
}

// WithDurations overrides the three configurable timeout constants.
func WithDurations(d timeoutsvc.Durations) Option {
	return func(r *Registry) { r.durations = d }
}

// WithClock injects a Clock, used by tests to fake time.
func WithClock(c timeoutsvc.Clock) Option {
	return func(r *Registry) { r.clock = c }
}

// WithLogger attaches a structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) { r.logger = l }
}

// WithAuditPublisher wires a lifecycle-event publisher (internal/audit);
// nil is a valid, fully-functional no-op.
func WithAuditPublisher(p *audit.Publisher) Option {
	return func(r *Registry) { r.audit = p }
}
