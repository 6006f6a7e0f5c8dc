package remote

import (
	"encoding/json"
	"regexp"

	"github.com/google/uuid"

	"github.com/webitel/im-thread-gateway/internal/domain/event"
)

// uuidPattern filters answerToEventId down to well-formed UUIDs.
var uuidPattern = regexp.MustCompile(`(?i)^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

// IsUUID reports whether s matches uuidPattern, the shape an
// answerToEventId must have to be forwarded to AgentOS.
func IsUUID(s string) bool { return uuidPattern.MatchString(s) }

type remoteActor struct {
	Role        string `json:"role"`
	DisplayName string `json:"displayName"`
}

type remoteContentPart struct {
	Content string `json:"content"`
}

type remoteMessageData struct {
	Actor   remoteActor         `json:"actor"`
	Content []remoteContentPart `json:"content"`
}

type remoteToolRequestData struct {
	ToolRequestID string          `json:"toolRequestId"`
	ToolName      string          `json:"toolName"`
	Args          json.RawMessage `json:"args"`
}

type remoteToolResponseData struct {
	ToolRequestID string `json:"toolRequestId"`
	Output        any    `json:"output"`
}

type remoteTextChunkData struct {
	Chunk string `json:"chunk"`
}

type remoteMessageField struct {
	Message string `json:"message"`
}

// mapRemoteEvent maps one AgentOS record onto the in-process event shape. It returns nil
// for every row mapped to "dropped": agent_selected/agent_running/
// agent_finished, status, and unknown types.
func mapRemoteEvent(rec record) *event.Event {
	// AgentOS is expected to set id: on every record; generate a local
	// event ID on the rare record that omits it so every event the
	// browser sees is still individually addressable.
	eventID := rec.ID
	if eventID == "" {
		eventID = uuid.New().String()
	}

	switch rec.Event {
	case "message":
		var d remoteMessageData
		_ = json.Unmarshal([]byte(rec.Data), &d)
		role := event.RoleAssistant
		switch d.Actor.Role {
		case "AGENT":
			role = event.RoleAssistant
		case "USER":
			role = event.RoleUser
		default:
			role = event.RoleAssistant
		}
		name := d.Actor.DisplayName
		if name == "" {
			name = string(role)
		}
		blocks := make([]event.ContentBlock, 0, len(d.Content))
		for _, c := range d.Content {
			blocks = append(blocks, event.TextBlock(c.Content))
		}
		return &event.Event{Type: event.KindMessage, Timestamp: eventID, Role: role, Name: name, Content: blocks}

	case "thinking":
		return &event.Event{Type: event.KindThinking, Timestamp: eventID}

	case "tool_request":
		var d remoteToolRequestData
		_ = json.Unmarshal([]byte(rec.Data), &d)
		return &event.Event{
			Type: event.KindToolRequest, Timestamp: eventID,
			ToolRequestID: correlationID(d.ToolRequestID, eventID), Name: d.ToolName, Args: string(d.Args),
		}

	case "tool_response":
		var d remoteToolResponseData
		_ = json.Unmarshal([]byte(rec.Data), &d)
		return &event.Event{
			Type: event.KindToolResponse, Timestamp: eventID,
			ToolRequestID: correlationID(d.ToolRequestID, eventID), Output: stringifyOutput(d.Output),
		}

	case "text_chunk":
		var d remoteTextChunkData
		_ = json.Unmarshal([]byte(rec.Data), &d)
		return &event.Event{Type: event.KindTextChunk, Timestamp: eventID, Chunk: d.Chunk}

	case "warning":
		return &event.Event{Type: event.KindWarn, Timestamp: eventID, Warn: extractMessageOrRaw(rec.Data)}

	case "error":
		return &event.Event{Type: event.KindError, Timestamp: eventID, Error: extractMessageOrRaw(rec.Data)}

	case "agent_selected", "agent_running", "agent_finished", "status":
		return nil

	default:
		return nil
	}
}

// correlationID picks the tool-request ID the remote supplied, falling
// back to the enclosing record's ID, and finally to a generated UUID when
// the remote gave us nothing to correlate the request and response on.
func correlationID(fromBody, recID string) string {
	if fromBody != "" {
		return fromBody
	}
	if recID != "" {
		return recID
	}
	return uuid.New().String()
}

func stringifyOutput(v any) string {
	switch o := v.(type) {
	case string:
		return o
	case nil:
		return ""
	default:
		b, err := json.Marshal(o)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

func extractMessageOrRaw(data string) string {
	var m remoteMessageField
	if err := json.Unmarshal([]byte(data), &m); err == nil && m.Message != "" {
		return m.Message
	}
	return data
}
