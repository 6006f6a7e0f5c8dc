package audit

import (
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
)

func watermillSlog(logger *slog.Logger) watermill.LoggerAdapter {
	return watermill.NewSlogLogger(logger)
}

func newMessageID() string {
	return watermill.NewUUID()
}
