package logging

import (
	"context"
	"log/slog"
)

// fanoutHandler forwards every record to both the local JSON handler and
// the otel log-bridge handler, so a single *slog.Logger serves both
// on-disk logs and otel log export.
type fanoutHandler struct {
	primary slog.Handler
	bridge  slog.Handler
}

func (h fanoutHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.primary.Enabled(ctx, level) || h.bridge.Enabled(ctx, level)
}

func (h fanoutHandler) Handle(ctx context.Context, record slog.Record) error {
	if h.primary.Enabled(ctx, record.Level) {
		if err := h.primary.Handle(ctx, record.Clone()); err != nil {
			return err
		}
	}
	if h.bridge.Enabled(ctx, record.Level) {
		return h.bridge.Handle(ctx, record.Clone())
	}
	return nil
}

func (h fanoutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return fanoutHandler{primary: h.primary.WithAttrs(attrs), bridge: h.bridge.WithAttrs(attrs)}
}

func (h fanoutHandler) WithGroup(name string) slog.Handler {
	return fanoutHandler{primary: h.primary.WithGroup(name), bridge: h.bridge.WithGroup(name)}
}
