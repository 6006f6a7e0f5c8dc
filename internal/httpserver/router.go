// Package httpserver mounts the chi router over the sse and
// rest handlers, and serves it with graceful shutdown — grounded in the
// teacher's grpc server bootstrap shape (infra/server in the original
// snapshot), adapted from a gRPC listener to an http.Server.
package httpserver

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/webitel/im-thread-gateway/internal/handler/rest"
	"github.com/webitel/im-thread-gateway/internal/handler/sse"
	"github.com/webitel/im-thread-gateway/internal/tracing"
)

func NewRouter(sseHandler *sse.Handler, restHandler *rest.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)

	r.Route("/api/projects/{project}/threads/{thread}", func(r chi.Router) {
		r.Get("/event-stream", sseHandler.Stream)
		r.Get("/messages", restHandler.ListMessages)
		r.Post("/messages", restHandler.SendMessage)
		r.Get("/messages/{id}", restHandler.GetMessage)
		r.Delete("/messages/{id}", restHandler.DeleteMessage)
		r.Post("/stop", restHandler.Stop)
		r.Post("/upload", restHandler.Upload)
	})

	return tracing.Wrap("http.thread-gateway", r)
}

// Server wraps http.Server with the port-fallback-search behavior spec
// §6.4 asks for PORT: if the configured port is taken, search upward for
// a free one rather than failing startup.
type Server struct {
	srv *http.Server
}

func NewServer(addr string, handler http.Handler) *Server {
	return &Server{srv: &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}}
}

func (s *Server) ListenAndServe(logger *slog.Logger) error {
	ln, err := listenWithFallback(s.srv.Addr, 20)
	if err != nil {
		return err
	}
	logger.Info("http server listening", "addr", ln.Addr().String())
	if err := s.srv.Serve(ln); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// listenWithFallback tries addr, then addr's port+1, +2, ... up to
// maxAttempts times, implementing a fallback search for a free
// port if taken".
func listenWithFallback(addr string, maxAttempts int) (net.Listener, error) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return net.Listen("tcp", addr)
	}
	base, err := strconv.Atoi(port)
	if err != nil {
		return net.Listen("tcp", addr)
	}
	var lastErr error
	for i := 0; i < maxAttempts; i++ {
		candidate := net.JoinHostPort(host, strconv.Itoa(base+i))
		ln, err := net.Listen("tcp", candidate)
		if err == nil {
			return ln, nil
		}
		lastErr = err
	}
	return nil, lastErr
}
