// Package sse implements the SSE Endpoint (C8): GET
// .../threads/{id}/event-stream: chi.URLParam extraction, a
// subscribe/defer-unsubscribe shape, and a held-open streaming
// connection in place of a one-shot long-poll drain.
package sse

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/webitel/im-thread-gateway/internal/apperr"
	"github.com/webitel/im-thread-gateway/internal/auth"
	"github.com/webitel/im-thread-gateway/internal/domain/broadcast"
	"github.com/webitel/im-thread-gateway/internal/registry"
)

const mailboxSize = 64

type Handler struct {
	registry *registry.Registry
	logger   *slog.Logger
}

func New(reg *registry.Registry, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{registry: reg, logger: logger}
}

// Stream validates the request, opens the SSE response, and attaches
// the connection to its thread instance.
func (h *Handler) Stream(w http.ResponseWriter, r *http.Request) {
	project := chi.URLParam(r, "project")
	threadID := chi.URLParam(r, "thread")
	username, err := auth.Resolve(r)
	if err != nil {
		http.Error(w, err.Error(), apperr.HTTPStatus(err))
		return
	}
	if project == "" || threadID == "" {
		http.Error(w, "missing projectName or threadId", http.StatusBadRequest)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	conn := broadcast.NewConn(r.Context(), connID(), mailboxSize,
		func(b []byte) error { _, err := w.Write(b); return err },
		flusher.Flush,
	)
	defer conn.Close()

	inst := h.registry.GetOrCreate(r.Context(), threadID, project, username, conn)
	defer h.registry.RemoveConnection(threadID, conn)

	if err := inst.Start(r.Context()); err != nil {
		h.logger.Error("sse: instance start failed", "thread_id", threadID, "err", err)
	}

	select {
	case <-r.Context().Done():
	case <-conn.Done():
	}
}

func connID() string {
	return uuid.New().String()
}
