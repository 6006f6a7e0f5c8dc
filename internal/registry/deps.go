package registry

import (
	"log/slog"
	"time"

	"github.com/webitel/im-thread-gateway/internal/domain/timeoutsvc"
)

// Deps is the fx-provided configuration slice consumed by Module.
type Deps struct {
	HeartbeatInterval time.Duration
	Durations         timeoutsvc.Durations
	Logger            *slog.Logger
	Clock             timeoutsvc.Clock // nil selects the real wall clock
}
