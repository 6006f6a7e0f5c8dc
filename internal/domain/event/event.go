// Package event defines the tagged event record that flows from a Thread
// Instance's backend to its Broadcaster, and the SSE wire encoding of it.
package event

import (
	"encoding/json"
	"sync"
)

// Kind enumerates the event types the core must preserve end-to-end.
type Kind string

const (
	KindMessage      Kind = "message"
	KindThinking     Kind = "thinking"
	KindToolRequest  Kind = "tool_request"
	KindToolResponse Kind = "tool_response"
	KindTextChunk    Kind = "text_chunk"
	KindWarn         Kind = "warn"
	KindError        Kind = "error"
	KindInvite       Kind = "invite"
	KindHeartbeat    Kind = "heartbeat"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ContentBlock is either a text block or a base64-encoded image block.
type ContentBlock struct {
	Type     string `json:"type"`
	Content  string `json:"content,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
}

func TextBlock(s string) ContentBlock { return ContentBlock{Type: "text", Content: s} }

// Event is the tagged record broadcast to subscribers. Its JSON encoding is memoized the
// first time Bytes is called, so a Broadcaster fanning out to N subscribers
// encodes the payload exactly once — mirrors the GetCached/SetCached
// memoization, computed once and reused across subscribers.
type Event struct {
	Type          Kind           `json:"type"`
	Timestamp     string         `json:"timestamp,omitempty"`
	Role          Role           `json:"role,omitempty"`
	Name          string         `json:"name,omitempty"`
	Content       []ContentBlock `json:"content,omitempty"`
	ToolRequestID string         `json:"toolRequestId,omitempty"`
	Args          string         `json:"args,omitempty"`
	Output        string         `json:"output,omitempty"`
	Chunk         string         `json:"chunk,omitempty"`
	Warn          string         `json:"warn,omitempty"`
	Error         string         `json:"error,omitempty"`

	// Raw, when non-nil, is forwarded byte-for-byte instead of the typed
	// fields above. Used for unknown event types the Local Backend must
	// pass through unchanged.
	Raw json.RawMessage `json:"-"`

	once      sync.Once
	cached    []byte
	cachedErr error
}

// eventAlias prevents MarshalJSON recursion while reusing Event's tags.
type eventAlias Event

// Bytes returns the SSE `data: <json>` payload (without the frame
// delimiters), encoding it at most once regardless of how many times it is
// called — safe for concurrent callers.
func (e *Event) Bytes() ([]byte, error) {
	e.once.Do(func() {
		if len(e.Raw) > 0 {
			e.cached, e.cachedErr = append([]byte(nil), e.Raw...), nil
			return
		}
		e.cached, e.cachedErr = json.Marshal((*eventAlias)(e))
	})
	return e.cached, e.cachedErr
}

// Frame returns the complete SSE wire record: `data: <json>\n\n`. No
// `event:` or `id:` lines are ever emitted.
func (e *Event) Frame() ([]byte, error) {
	b, err := e.Bytes()
	if err != nil {
		return nil, err
	}
	frame := make([]byte, 0, len(b)+8)
	frame = append(frame, "data: "...)
	frame = append(frame, b...)
	frame = append(frame, '\n', '\n')
	return frame, nil
}

func NewHeartbeat(timestamp string) *Event {
	return &Event{Type: KindHeartbeat, Timestamp: timestamp}
}

func NewInvite(timestamp string) *Event {
	return &Event{Type: KindInvite, Timestamp: timestamp}
}

func NewError(timestamp, message string) *Event {
	return &Event{Type: KindError, Timestamp: timestamp, Error: message}
}

func NewWarn(timestamp, message string) *Event {
	return &Event{Type: KindWarn, Timestamp: timestamp, Warn: message}
}
