// Package local implements the Local Backend (C3): in-process execution of
// the AI agent loop, with message replay for late-joining subscribers.
package local

import (
	"context"

	"github.com/webitel/im-thread-gateway/internal/domain/event"
	"github.com/webitel/im-thread-gateway/internal/domain/instance"
)

// AgentRuntime is the external collaborator this module treats as out of scope:
// the LLM client, tool execution, and prompt chain machinery. The Local
// Backend only needs this narrow contract to drive it.
type AgentRuntime interface {
	// Run executes the agent loop until ctx is cancelled or the loop ends
	// naturally, invoking emit for every event the loop produces. Run's
	// own errors are reported as `error` events by the caller, never
	// returned to a caller that would propagate them further.
	Run(ctx context.Context, emit func(*event.Event)) error
	// Cancel requests best-effort cooperative cancellation of the current
	// turn; the runtime remains usable afterward.
	Cancel()
	// History returns the thread's persisted messages, oldest first.
	History(ctx context.Context) ([]*instance.StoredMessage, error)
	// Truncate deletes the given user message and everything after it.
	Truncate(ctx context.Context, eventID string) error
	// Answer feeds a user answer into the running (or about-to-run) turn.
	Answer(ctx context.Context, content []instance.ContentPart, answerToEventID string) error
	// OAuthCallback routes an OAuth callback into the integration
	// subsystem rather than the regular answer path.
	OAuthCallback(ctx context.Context, cb instance.OAuthCallback) error
	// UploadImage hands a decoded image to the runtime's inbound queue.
	UploadImage(ctx context.Context, img instance.InboundImage) error
	// Terminate releases all runtime resources. Idempotent.
	Terminate()
}

// Factory constructs a fresh AgentRuntime for one thread.
type Factory func(threadID, projectName, username string) AgentRuntime
