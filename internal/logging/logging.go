// Package logging builds the process-wide *slog.Logger: a JSON handler
// writing to stdout and, when Options.FilePath is set, also to a
// lumberjack-rotated file, fanned out through the
// otelslog bridge so log records carry trace/span correlation. Factored
// into its own package, rather than built ad hoc in cmd, for reuse by
// fx.Provide.
package logging

import (
	"io"
	"log/slog"
	"os"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Options struct {
	Level      string
	FilePath   string // empty disables file rotation, logging only to stdout
	ServiceName string
}

func New(opts Options) *slog.Logger {
	level := parseLevel(opts.Level)

	var writers []io.Writer
	writers = append(writers, os.Stdout)
	if opts.FilePath != "" {
		writers = append(writers, &lumberjack.Logger{
			Filename:   opts.FilePath,
			MaxSize:    100, // megabytes
			MaxBackups: 5,
			MaxAge:     28, // days
			Compress:   true,
		})
	}

	handler := slog.NewJSONHandler(io.MultiWriter(writers...), &slog.HandlerOptions{Level: level})
	base := slog.New(handler)

	if opts.ServiceName == "" {
		return base
	}
	// otelslog.NewLogger gives us an slog.Handler backed by the otel log
	// bridge; wrap it so every record also flows to any configured otel
	// log exporter without changing call sites.
	bridged := otelslog.NewLogger(opts.ServiceName)
	return slog.New(fanoutHandler{primary: base.Handler(), bridge: bridged.Handler()})
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
