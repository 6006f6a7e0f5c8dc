package local

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/webitel/im-thread-gateway/internal/domain/event"
	"github.com/webitel/im-thread-gateway/internal/domain/instance"
)

// echoRuntime is a placeholder AgentRuntime: the actual LLM/tool-execution
// loop is an external collaborator out of scope for this manager (spec
// §1). It exists so the module wires end-to-end without a real agent
// attached; production deployments supply their own Factory.
type echoRuntime struct {
	mu       sync.Mutex
	answers  chan instance.InboundAnswer
	messages []*instance.StoredMessage
	cancel   context.CancelFunc
}

func NewEchoRuntimeFactory() Factory {
	return func(threadID, projectName, username string) AgentRuntime {
		return &echoRuntime{answers: make(chan instance.InboundAnswer, 16)}
	}
}

func (e *echoRuntime) Run(ctx context.Context, emit func(*event.Event)) error {
	ctx, cancel := context.WithCancel(ctx)
	e.mu.Lock()
	e.cancel = cancel
	e.mu.Unlock()

	for {
		select {
		case <-ctx.Done():
			return nil
		case in := <-e.answers:
			ts := strconv.FormatInt(time.Now().UnixNano(), 10)
			blocks := make([]event.ContentBlock, 0, len(in.Content))
			for _, c := range in.Content {
				blocks = append(blocks, event.ContentBlock{Type: c.Type, Content: c.Content, MimeType: c.MimeType})
			}
			msg := &instance.StoredMessage{EventID: ts, Role: string(event.RoleAssistant), Content: blocks, Timestamp: ts}
			e.mu.Lock()
			e.messages = append(e.messages, msg)
			e.mu.Unlock()
			emit(&event.Event{Type: event.KindMessage, Timestamp: ts, Role: event.RoleAssistant, Content: blocks})
		}
	}
}

func (e *echoRuntime) Cancel() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cancel != nil {
		e.cancel()
	}
}

func (e *echoRuntime) History(ctx context.Context) ([]*instance.StoredMessage, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*instance.StoredMessage, len(e.messages))
	copy(out, e.messages)
	return out, nil
}

func (e *echoRuntime) Truncate(ctx context.Context, eventID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, m := range e.messages {
		if m.EventID == eventID {
			e.messages = e.messages[:i]
			return nil
		}
	}
	return nil
}

func (e *echoRuntime) Answer(ctx context.Context, content []instance.ContentPart, answerToEventID string) error {
	select {
	case e.answers <- instance.InboundAnswer{Content: content, AnswerToEventID: answerToEventID}:
	default:
	}
	return nil
}

func (e *echoRuntime) OAuthCallback(ctx context.Context, cb instance.OAuthCallback) error { return nil }

func (e *echoRuntime) UploadImage(ctx context.Context, img instance.InboundImage) error { return nil }

func (e *echoRuntime) Terminate() {
	e.Cancel()
}
