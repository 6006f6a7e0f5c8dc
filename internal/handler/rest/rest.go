// Package rest implements the REST actions other than the
// SSE stream: list/get/delete messages, send answer, stop, upload.
// Uses chi.URLParam extraction, http.Error status mapping, and JSON
// response encoding throughout.
package rest

import (
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/webitel/im-thread-gateway/internal/apperr"
	"github.com/webitel/im-thread-gateway/internal/auth"
	"github.com/webitel/im-thread-gateway/internal/domain/instance"
	"github.com/webitel/im-thread-gateway/internal/router"
)

type Handler struct {
	router *router.Router
	logger *slog.Logger
}

func New(r *router.Router, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{router: r, logger: logger}
}

func (h *Handler) identity(w http.ResponseWriter, r *http.Request) (project, threadID, username string, ok bool) {
	project = chi.URLParam(r, "project")
	threadID = chi.URLParam(r, "thread")
	username, err := auth.Resolve(r)
	if err != nil {
		writeError(w, err)
		return "", "", "", false
	}
	if project == "" || threadID == "" {
		writeError(w, apperr.New(apperr.KindInputValidation, "missing projectName or threadId"))
		return "", "", "", false
	}
	return project, threadID, username, true
}

func writeError(w http.ResponseWriter, err error) {
	http.Error(w, err.Error(), apperr.HTTPStatus(err))
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(v)
}

// ListMessages: GET .../messages
func (h *Handler) ListMessages(w http.ResponseWriter, r *http.Request) {
	_, threadID, username, ok := h.identity(w, r)
	if !ok {
		return
	}
	msgs, err := h.router.ListMessages(r.Context(), threadID, username)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, msgs)
}

// GetMessage: GET .../messages/{id}
func (h *Handler) GetMessage(w http.ResponseWriter, r *http.Request) {
	_, threadID, username, ok := h.identity(w, r)
	if !ok {
		return
	}
	eventID := chi.URLParam(r, "id")
	msgs, err := h.router.ListMessages(r.Context(), threadID, username)
	if err != nil {
		writeError(w, err)
		return
	}
	for _, m := range msgs {
		if m.EventID == eventID {
			writeJSON(w, m)
			return
		}
	}
	writeError(w, apperr.New(apperr.KindNotFound, "unknown event id"))
}

type sendMessageRequest struct {
	Content         []instance.ContentPart `json:"content"`
	AnswerToEventID string                  `json:"answerToEventId"`
	Type            string                  `json:"type"`
	Provider        string                  `json:"provider"`
	Code            string                  `json:"code"`
	State           string                  `json:"state"`
}

// SendMessage: POST .../messages
func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	_, threadID, username, ok := h.identity(w, r)
	if !ok {
		return
	}
	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperr.Wrap(apperr.KindInputValidation, "decode message body", err))
		return
	}

	var err error
	if req.Type == "oauth_callback" {
		err = h.router.SendOAuthCallback(r.Context(), threadID, username, instance.OAuthCallback{
			Provider: req.Provider, Code: req.Code, State: req.State,
		})
	} else {
		err = h.router.SendAnswer(r.Context(), threadID, username, instance.InboundAnswer{
			Content: req.Content, AnswerToEventID: req.AnswerToEventID,
		})
	}
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// DeleteMessage (truncate): DELETE .../messages/{id}
func (h *Handler) DeleteMessage(w http.ResponseWriter, r *http.Request) {
	_, threadID, username, ok := h.identity(w, r)
	if !ok {
		return
	}
	eventID := chi.URLParam(r, "id")
	if err := h.router.Truncate(r.Context(), threadID, username, eventID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]string{"status": "truncated"})
}

// Stop: POST .../stop
func (h *Handler) Stop(w http.ResponseWriter, r *http.Request) {
	_, threadID, username, ok := h.identity(w, r)
	if !ok {
		return
	}
	if err := h.router.Stop(r.Context(), threadID, username); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]string{"status": "stopped"})
}

type uploadRequest struct {
	Content  string `json:"content"` // base64
	MimeType string `json:"mimeType"`
	Filename string `json:"filename"`
}

type uploadResponse struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Upload: POST .../upload
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	_, threadID, username, ok := h.identity(w, r)
	if !ok {
		return
	}
	var req uploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperr.Wrap(apperr.KindInputValidation, "decode upload body", err))
		return
	}
	raw, err := base64.StdEncoding.DecodeString(req.Content)
	if err != nil {
		writeError(w, apperr.Wrap(apperr.KindInputValidation, "decode base64 image content", err))
		return
	}
	if err := h.router.UploadImage(r.Context(), threadID, username, instance.InboundImage{
		Content: raw, MimeType: req.MimeType, Filename: req.Filename,
	}); err != nil {
		writeError(w, err)
		return
	}
	dims := DecodeDimensions(raw, req.MimeType)
	writeJSON(w, uploadResponse{Width: dims.Width, Height: dims.Height})
}
