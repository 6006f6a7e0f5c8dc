package httpserver

import (
	"context"
	"log/slog"

	"go.uber.org/fx"

	"github.com/webitel/im-thread-gateway/internal/config"
	"github.com/webitel/im-thread-gateway/internal/handler/rest"
	"github.com/webitel/im-thread-gateway/internal/handler/sse"
)

var Module = fx.Module("httpserver",
	fx.Provide(func(sseHandler *sse.Handler, restHandler *rest.Handler, cfg *config.Config) *Server {
		return NewServer(":"+cfg.Port, NewRouter(sseHandler, restHandler))
	}),
	fx.Invoke(func(lc fx.Lifecycle, srv *Server, logger *slog.Logger) {
		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				go func() {
					if err := srv.ListenAndServe(logger); err != nil {
						logger.Error("http server stopped", "err", err)
					}
				}()
				return nil
			},
			OnStop: func(ctx context.Context) error {
				return srv.Shutdown(ctx)
			},
		})
	}),
)
