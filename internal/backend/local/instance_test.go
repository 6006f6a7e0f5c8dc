package local

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/webitel/im-thread-gateway/internal/domain/broadcast"
	"github.com/webitel/im-thread-gateway/internal/domain/event"
	"github.com/webitel/im-thread-gateway/internal/domain/instance"
	"github.com/webitel/im-thread-gateway/internal/domain/timeoutsvc"
)

type fakeRuntime struct {
	mu          sync.Mutex
	history     []*instance.StoredMessage
	terminated  bool
	truncatedID string
	emit        func(*event.Event)
}

func (f *fakeRuntime) Run(ctx context.Context, emit func(*event.Event)) error {
	f.mu.Lock()
	f.emit = emit
	f.mu.Unlock()
	<-ctx.Done()
	return nil
}
func (f *fakeRuntime) Cancel() {}
func (f *fakeRuntime) History(ctx context.Context) ([]*instance.StoredMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.history, nil
}
func (f *fakeRuntime) Truncate(ctx context.Context, eventID string) error {
	f.mu.Lock()
	f.truncatedID = eventID
	f.mu.Unlock()
	return nil
}
func (f *fakeRuntime) Answer(ctx context.Context, content []instance.ContentPart, answerToEventID string) error {
	return nil
}
func (f *fakeRuntime) OAuthCallback(ctx context.Context, cb instance.OAuthCallback) error { return nil }
func (f *fakeRuntime) UploadImage(ctx context.Context, img instance.InboundImage) error   { return nil }
func (f *fakeRuntime) Terminate() {
	f.mu.Lock()
	f.terminated = true
	f.mu.Unlock()
}

type capturingSubscriber struct {
	mu     sync.Mutex
	id     string
	frames [][]byte
}

func (c *capturingSubscriber) ID() string { return c.id }
func (c *capturingSubscriber) Enqueue(frame []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = append(c.frames, frame)
	return true
}
func (c *capturingSubscriber) Close() {}
func (c *capturingSubscriber) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.frames)
}

func newTestInstance(rt *fakeRuntime) (*Instance, *timeoutsvc.FakeClock) {
	clock := timeoutsvc.NewFakeClock(time.Unix(0, 0))
	sup := timeoutsvc.New(clock, timeoutsvc.Durations{
		Disconnect: time.Minute, Interactive: time.Hour, Oneshot: time.Minute,
	}, false, func() {})
	base := instance.NewBase("t1", "proj", "alice", clock, broadcast.New(nil), sup, false)
	cache := NewReplayCache(8)
	return New(base, rt, cache, nil), clock
}

func TestInstance_AddConnection_ReplaysHistoryBeforeLiveBroadcast(t *testing.T) {
	rt := &fakeRuntime{history: []*instance.StoredMessage{
		{EventID: "e1", Role: "user", Content: []instance.ContentPart{{Type: "text", Content: "hi"}}, Timestamp: "1"},
	}}
	inst, _ := newTestInstance(rt)
	require.NoError(t, inst.Start(context.Background()))
	defer inst.Cleanup()

	sub := &capturingSubscriber{id: "s1"}
	inst.AddConnection(sub)
	inst.Broadcaster.Broadcast(event.NewHeartbeat("2"))

	require.Eventually(t, func() bool { return sub.count() >= 2 }, time.Second, time.Millisecond)
	sub.mu.Lock()
	defer sub.mu.Unlock()
	assert.Contains(t, string(sub.frames[0]), `"type":"message"`, "replayed history must arrive before the live broadcast")
	assert.Contains(t, string(sub.frames[1]), `"type":"heartbeat"`)
}

func TestInstance_HandleEvent_InvalidatesReplayCache(t *testing.T) {
	rt := &fakeRuntime{history: []*instance.StoredMessage{{EventID: "e1", Role: "user", Timestamp: "1"}}}
	inst, _ := newTestInstance(rt)
	require.NoError(t, inst.Start(context.Background()))
	defer inst.Cleanup()

	sub := &capturingSubscriber{id: "s1"}
	inst.AddConnection(sub)
	require.Eventually(t, func() bool { return rt.emit != nil }, time.Second, time.Millisecond)

	inst.cache.Put("t1", rt.history)
	rt.emit(&event.Event{Type: event.KindMessage, Role: event.RoleAssistant, Content: []event.ContentBlock{{Type: "text", Content: "reply"}}})

	_, ok := inst.cache.Get("t1")
	assert.False(t, ok, "a live broadcast must invalidate the replay cache")
}

func TestInstance_Truncate_InvalidatesReplayCache(t *testing.T) {
	rt := &fakeRuntime{}
	inst, _ := newTestInstance(rt)
	inst.cache.Put("t1", []*instance.StoredMessage{{EventID: "e1"}})

	require.NoError(t, inst.Truncate(context.Background(), "e1"))
	assert.Equal(t, "e1", rt.truncatedID)

	_, ok := inst.cache.Get("t1")
	assert.False(t, ok)
}

func TestInstance_Cleanup_TerminatesRuntimeAndIsIdempotent(t *testing.T) {
	rt := &fakeRuntime{}
	inst, _ := newTestInstance(rt)
	require.NoError(t, inst.Start(context.Background()))

	inst.Cleanup()
	inst.Cleanup()

	rt.mu.Lock()
	defer rt.mu.Unlock()
	assert.True(t, rt.terminated)
}
