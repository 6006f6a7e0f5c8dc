// Package router implements the Message Router (C7): resolve the
// addressed Thread Instance, enforce ownership, then dispatch the action.
// It never talks HTTP directly — internal/handler/rest translates Router
// errors to status codes via apperr.HTTPStatus.
package router

import (
	"context"

	"github.com/webitel/im-thread-gateway/internal/apperr"
	"github.com/webitel/im-thread-gateway/internal/domain/instance"
	"github.com/webitel/im-thread-gateway/internal/registry"
)

// Router dispatches inbound REST actions onto the instance addressed by
// (threadID), after checking that username owns it.
type Router struct {
	registry *registry.Registry
}

func New(reg *registry.Registry) *Router {
	return &Router{registry: reg}
}

// resolve looks up the addressed instance: 404 if absent, 403 on mismatch.
func (r *Router) resolve(threadID, username string) (instance.Instance, error) {
	inst, ok := r.registry.Get(threadID)
	if !ok {
		return nil, apperr.New(apperr.KindNotFound, "unknown thread")
	}
	if inst.Username() != username {
		return nil, apperr.New(apperr.KindForbidden, "thread belongs to a different user")
	}
	return inst, nil
}

func (r *Router) ListMessages(ctx context.Context, threadID, username string) ([]*instance.StoredMessage, error) {
	inst, err := r.resolve(threadID, username)
	if err != nil {
		return nil, err
	}
	return inst.ListMessages(ctx)
}

func (r *Router) SendAnswer(ctx context.Context, threadID, username string, in instance.InboundAnswer) error {
	inst, err := r.resolve(threadID, username)
	if err != nil {
		return err
	}
	return inst.SendAnswer(ctx, in)
}

func (r *Router) SendOAuthCallback(ctx context.Context, threadID, username string, cb instance.OAuthCallback) error {
	inst, err := r.resolve(threadID, username)
	if err != nil {
		return err
	}
	return inst.SendOAuthCallback(ctx, cb)
}

func (r *Router) UploadImage(ctx context.Context, threadID, username string, img instance.InboundImage) error {
	inst, err := r.resolve(threadID, username)
	if err != nil {
		return err
	}
	return inst.UploadImage(ctx, img)
}

func (r *Router) Stop(ctx context.Context, threadID, username string) error {
	inst, err := r.resolve(threadID, username)
	if err != nil {
		return err
	}
	inst.Stop()
	return nil
}

// Truncate deletes eventID's message; 400 if the runtime rejects the
// target (not a user message, not found, or the first message).
func (r *Router) Truncate(ctx context.Context, threadID, username, eventID string) error {
	inst, err := r.resolve(threadID, username)
	if err != nil {
		return err
	}
	return inst.Truncate(ctx, eventID)
}
