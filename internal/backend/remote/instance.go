package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/webitel/im-thread-gateway/internal/apperr"
	"github.com/webitel/im-thread-gateway/internal/domain/event"
	"github.com/webitel/im-thread-gateway/internal/domain/instance"
)

var _ instance.Instance = (*Instance)(nil)

// Instance is the Remote Backend's implementation of the Thread Instance
// contract: a protocol adaptor delegating execution to AgentOS over HTTP.
type Instance struct {
	*instance.Base

	client *Client
	logger *slog.Logger

	mu          sync.Mutex
	caseID      string
	prepared    atomic.Bool
	cleanupOnce sync.Once
	cancel      context.CancelFunc
}

func New(base *instance.Base, client *Client, logger *slog.Logger) *Instance {
	if logger == nil {
		logger = slog.Default()
	}
	return &Instance{Base: base, client: client, logger: logger}
}

func (ri *Instance) timestamp() string { return strconv.FormatInt(ri.Clock.Now().UnixNano(), 10) }

// Prepare creates the remote case, starts the SSE consumer, and emits a
// synthetic `invite` event so the browser is unblocked before the remote
// produces anything.
func (ri *Instance) Prepare(ctx context.Context) (bool, error) {
	if !ri.prepared.CompareAndSwap(false, true) {
		return false, nil
	}
	runCtx, cancel := context.WithCancel(context.Background())
	ri.cancel = cancel

	caseID, err := ri.client.CreateCase(ctx, ri.ProjectName())
	if err != nil {
		ri.prepared.Store(false)
		cancel()
		return false, apperr.Wrap(apperr.KindBackendTransient, "create remote case", err)
	}
	ri.mu.Lock()
	ri.caseID = caseID
	ri.mu.Unlock()

	go ri.consumeEvents(runCtx, caseID)

	ri.Broadcaster.Broadcast(event.NewInvite(ri.timestamp()))
	return true, nil
}

// Start is equivalent to Prepare: the remote case starts emitting on
// creation.
func (ri *Instance) Start(ctx context.Context) error {
	_, err := ri.Prepare(ctx)
	return err
}

func (ri *Instance) consumeEvents(ctx context.Context, caseID string) {
	stream, err := ri.client.OpenEventStream(ctx, caseID)
	if err != nil {
		ri.Broadcaster.Broadcast(event.NewError(ri.timestamp(), err.Error()))
		return
	}
	defer stream.Close()

	err = scanRecords(stream, func(rec record) {
		select {
		case <-ctx.Done():
			return
		default:
		}
		mapped := mapRemoteEvent(rec)
		if mapped == nil {
			ri.logger.Debug("remote backend: dropped event", "thread_id", ri.ThreadID(), "remote_event", rec.Event)
			return
		}
		ri.Broadcaster.Broadcast(mapped)
		ri.TouchActivity()
	})
	if err != nil {
		ri.Broadcaster.Broadcast(event.NewError(ri.timestamp(), fmt.Sprintf("remote stream error: %s", err)))
	}
	// Stream ended: the consumer returns without reconnecting. No
	// connection-down state is recorded; Cleanup still works afterward.
}

// Stop fires a fire-and-forget POST to /stop; errors are swallowed.
func (ri *Instance) Stop() {
	ri.mu.Lock()
	caseID := ri.caseID
	ri.mu.Unlock()
	if caseID == "" {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		ri.client.Stop(ctx, caseID)
	}()
}

// Cleanup cancels the SSE consumer, closes subscribers, and best-effort
// deletes the remote case. Idempotent.
func (ri *Instance) Cleanup() {
	ri.cleanupOnce.Do(func() {
		ri.Supervisor.Stop()
		ri.Broadcaster.CloseAll()
		if ri.cancel != nil {
			ri.cancel()
		}
		ri.mu.Lock()
		caseID := ri.caseID
		ri.mu.Unlock()
		if caseID != "" {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			ri.client.DeleteCase(ctx, caseID)
		}
	})
}

func (ri *Instance) SendAnswer(ctx context.Context, in instance.InboundAnswer) error {
	ri.TouchActivity()
	ri.mu.Lock()
	caseID := ri.caseID
	ri.mu.Unlock()
	if caseID == "" {
		return apperr.New(apperr.KindBackendTransient, "remote case not prepared")
	}
	answerToEventID := ""
	if IsUUID(in.AnswerToEventID) {
		answerToEventID = in.AnswerToEventID
	}
	content := make([]map[string]string, 0, len(in.Content))
	for _, c := range in.Content {
		content = append(content, map[string]string{"type": c.Type, "content": c.Content, "mimeType": c.MimeType})
	}
	if err := ri.client.SendMessage(ctx, caseID, ri.Username(), content, answerToEventID); err != nil {
		return apperr.Wrap(apperr.KindBackendTransient, "send message to remote case", err)
	}
	return nil
}

// SendOAuthCallback is routed to the integration subsystem rather than
// the regular answer path; here that means a distinct content
// shape on the same messages endpoint.
func (ri *Instance) SendOAuthCallback(ctx context.Context, in instance.OAuthCallback) error {
	ri.TouchActivity()
	ri.mu.Lock()
	caseID := ri.caseID
	ri.mu.Unlock()
	if caseID == "" {
		return apperr.New(apperr.KindBackendTransient, "remote case not prepared")
	}
	payload, _ := json.Marshal(map[string]string{
		"type": "oauth_callback", "provider": in.Provider, "code": in.Code, "state": in.State,
	})
	if err := ri.client.SendMessage(ctx, caseID, ri.Username(), json.RawMessage(payload), ""); err != nil {
		return apperr.Wrap(apperr.KindBackendTransient, "send oauth callback to remote case", err)
	}
	return nil
}

func (ri *Instance) UploadImage(ctx context.Context, in instance.InboundImage) error {
	ri.TouchActivity()
	ri.mu.Lock()
	caseID := ri.caseID
	ri.mu.Unlock()
	if caseID == "" {
		return apperr.New(apperr.KindBackendTransient, "remote case not prepared")
	}
	content := map[string]string{"type": "image", "mimeType": in.MimeType, "filename": in.Filename}
	if err := ri.client.SendMessage(ctx, caseID, ri.Username(), content, ""); err != nil {
		return apperr.Wrap(apperr.KindBackendTransient, "send image upload to remote case", err)
	}
	return nil
}

// ListMessages is not supported by the Remote backend.
func (ri *Instance) ListMessages(ctx context.Context) ([]*instance.StoredMessage, error) {
	return nil, apperr.New(apperr.KindNotSupported, "listing messages is not supported by the remote backend")
}

// Truncate: the remote protocol has no truncate endpoint.
func (ri *Instance) Truncate(ctx context.Context, eventID string) error {
	return apperr.New(apperr.KindNotSupported, "truncating messages is not supported by the remote backend")
}
