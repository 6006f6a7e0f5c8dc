// Package instance implements the Thread Instance (C5): the uniform
// contract both the Local and Remote backends satisfy, aggregating a
// Broadcaster and a Timeout Supervisor over shared connection bookkeeping.
package instance

import (
	"context"
	"time"

	"github.com/webitel/im-thread-gateway/internal/domain/broadcast"
)

// Instance is the uniform contract both backends satisfy. Both the Local Backend
// and the Remote Backend implement it; the Instance Registry depends only
// on this interface.
type Instance interface {
	ThreadID() string
	ProjectName() string
	Username() string

	AddConnection(sub broadcast.Subscriber)
	RemoveConnection(sub broadcast.Subscriber)
	HasConnections() bool
	IsOneshot() bool

	// Prepare constructs backend state and subscribes its producer to the
	// Broadcaster without starting execution. Returns false if already
	// prepared.
	Prepare(ctx context.Context) (bool, error)
	// Start prepares (if needed) and kicks off execution in the
	// background; it never blocks on the agent loop / remote stream.
	Start(ctx context.Context) error
	// Stop best-effort cancels the current turn; the instance stays usable.
	Stop()
	// Cleanup idempotently tears down timers, subscribers and backend
	// resources, and unregisters the instance from future use.
	Cleanup()

	SendHeartbeat(timestamp string)
	MarkOneshot()
	GetInactiveTime() time.Duration

	// Inbound-event actions routed by the Message Router (C7).
	SendAnswer(ctx context.Context, in InboundAnswer) error
	SendOAuthCallback(ctx context.Context, in OAuthCallback) error
	UploadImage(ctx context.Context, in InboundImage) error
	Truncate(ctx context.Context, eventID string) error
	ListMessages(ctx context.Context) ([]*StoredMessage, error)
}

// InboundAnswer is a user's answer/message submitted through POST messages.
type InboundAnswer struct {
	Content        []ContentPart
	AnswerToEventID string
}

type ContentPart struct {
	Type     string // "text" | "image"
	Content  string
	MimeType string
}

// OAuthCallback carries the payload of an inbound `type = oauth_callback`
// message, routed to the integration subsystem rather than as a regular
// answer.
type OAuthCallback struct {
	Provider string
	Code     string
	State    string
}

// InboundImage is a decoded image upload awaiting hand-off to the external
// image processor.
type InboundImage struct {
	Content  []byte
	MimeType string
	Filename string
}

// StoredMessage is one persisted message as read back from the agent
// runtime's thread store, used both for replay and for "list messages".
type StoredMessage struct {
	EventID   string
	Role      string
	Name      string
	Content   []ContentPart
	Timestamp string
}
