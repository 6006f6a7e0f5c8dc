package local

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/webitel/im-thread-gateway/internal/apperr"
	"github.com/webitel/im-thread-gateway/internal/domain/broadcast"
	"github.com/webitel/im-thread-gateway/internal/domain/event"
	"github.com/webitel/im-thread-gateway/internal/domain/instance"
)

var _ instance.Instance = (*Instance)(nil)

// Instance is the Local Backend's implementation of the Thread Instance
// contract: it runs the AI agent loop inside this process.
type Instance struct {
	*instance.Base

	runtime AgentRuntime
	cache   *ReplayCache
	logger  *slog.Logger

	prepared    atomic.Bool
	started     atomic.Bool
	cleanupOnce sync.Once

	runCtx    context.Context
	runCancel context.CancelFunc
}

func New(base *instance.Base, runtime AgentRuntime, cache *ReplayCache, logger *slog.Logger) *Instance {
	if logger == nil {
		logger = slog.Default()
	}
	return &Instance{Base: base, runtime: runtime, cache: cache, logger: logger}
}

// Prepare marks the instance prepared and creates the run context, without
// starting the agent loop; the runtime's events reach the Broadcaster once
// Start runs the loop. Idempotent: returns false on re-entry.
func (li *Instance) Prepare(ctx context.Context) (bool, error) {
	if !li.prepared.CompareAndSwap(false, true) {
		return false, nil
	}
	li.runCtx, li.runCancel = context.WithCancel(context.Background())
	return true, nil
}

// Start prepares (if needed) then kicks the agent loop in the background.
// Errors inside the loop become `error` events, never a returned error.
func (li *Instance) Start(ctx context.Context) error {
	if _, err := li.Prepare(ctx); err != nil {
		return err
	}
	if li.started.CompareAndSwap(false, true) {
		go li.runLoop()
	}
	return nil
}

func (li *Instance) runLoop() {
	defer func() {
		if r := recover(); r != nil {
			li.logger.Error("local backend: agent loop panicked", "thread_id", li.ThreadID(), "panic", r)
			li.Broadcaster.Broadcast(event.NewError(li.timestamp(), "internal agent error"))
		}
	}()
	if err := li.runtime.Run(li.runCtx, li.handleEvent); err != nil {
		li.logger.Warn("local backend: agent loop ended with error", "thread_id", li.ThreadID(), "error", err)
		li.Broadcaster.Broadcast(event.NewError(li.timestamp(), err.Error()))
	}
}

func (li *Instance) handleEvent(ev *event.Event) {
	if ev.Timestamp == "" {
		ev.Timestamp = li.timestamp()
	}
	li.Broadcaster.Broadcast(ev)
	li.cache.Invalidate(li.ThreadID())
	li.TouchActivity()
}

func (li *Instance) timestamp() string {
	return strconv.FormatInt(li.Clock.Now().UnixNano(), 10)
}

// Stop is a best-effort cooperative cancellation of the current turn; the
// instance remains usable afterward.
func (li *Instance) Stop() {
	li.runtime.Cancel()
}

// Cleanup idempotently cancels timers, closes subscribers, and terminates
// the agent runtime.
func (li *Instance) Cleanup() {
	li.cleanupOnce.Do(func() {
		li.Supervisor.Stop()
		li.Broadcaster.CloseAll()
		li.runtime.Terminate()
		if li.runCancel != nil {
			li.runCancel()
		}
		li.cache.Invalidate(li.ThreadID())
	})
}

// AddConnection replays the thread's persisted history to sub before it
// becomes eligible for live broadcasts.
func (li *Instance) AddConnection(sub broadcast.Subscriber) {
	li.Base.AddConnection(sub, func() {
		if !li.prepared.Load() {
			return
		}
		li.replayTo(sub)
	})
}

func (li *Instance) replayTo(sub broadcast.Subscriber) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	msgs, ok := li.cache.Get(li.ThreadID())
	if !ok {
		var err error
		msgs, err = li.runtime.History(ctx)
		if err != nil {
			li.logger.Warn("local backend: replay history fetch failed", "thread_id", li.ThreadID(), "error", err)
			return
		}
		li.cache.Put(li.ThreadID(), msgs)
	}
	for _, m := range msgs {
		ev := storedToEvent(m)
		frame, err := ev.Frame()
		if err != nil {
			continue
		}
		sub.Enqueue(frame)
	}
}

func storedToEvent(m *instance.StoredMessage) *event.Event {
	blocks := make([]event.ContentBlock, 0, len(m.Content))
	for _, c := range m.Content {
		blocks = append(blocks, event.ContentBlock{Type: c.Type, Content: c.Content, MimeType: c.MimeType})
	}
	return &event.Event{
		Type:      event.KindMessage,
		Timestamp: m.Timestamp,
		Role:      event.Role(m.Role),
		Name:      m.Name,
		Content:   blocks,
	}
}

func (li *Instance) ListMessages(ctx context.Context) ([]*instance.StoredMessage, error) {
	return li.runtime.History(ctx)
}

func (li *Instance) Truncate(ctx context.Context, eventID string) error {
	if err := li.runtime.Truncate(ctx, eventID); err != nil {
		return apperr.Wrap(apperr.KindInputValidation, "truncate failed", err)
	}
	li.cache.Invalidate(li.ThreadID())
	return nil
}

func (li *Instance) SendAnswer(ctx context.Context, in instance.InboundAnswer) error {
	li.TouchActivity()
	return li.runtime.Answer(ctx, in.Content, in.AnswerToEventID)
}

func (li *Instance) SendOAuthCallback(ctx context.Context, in instance.OAuthCallback) error {
	li.TouchActivity()
	return li.runtime.OAuthCallback(ctx, in)
}

func (li *Instance) UploadImage(ctx context.Context, in instance.InboundImage) error {
	li.TouchActivity()
	return li.runtime.UploadImage(ctx, in)
}
