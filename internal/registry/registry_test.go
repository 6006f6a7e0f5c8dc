package registry

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/webitel/im-thread-gateway/internal/audit"
	"github.com/webitel/im-thread-gateway/internal/domain/broadcast"
	"github.com/webitel/im-thread-gateway/internal/domain/instance"
	"github.com/webitel/im-thread-gateway/internal/domain/timeoutsvc"
)

// stubInstance counts Cleanup calls and exposes HasConnections for the
// heartbeat loop, without pulling in a real backend.
type stubInstance struct {
	*instance.Base
	cleaned int32
}

func (s *stubInstance) AddConnection(sub broadcast.Subscriber) { s.Base.AddConnection(sub, nil) }
func (s *stubInstance) Prepare(ctx context.Context) (bool, error) { return true, nil }
func (s *stubInstance) Start(ctx context.Context) error           { return nil }
func (s *stubInstance) Stop()                                     {}
func (s *stubInstance) Cleanup()                                  { atomic.AddInt32(&s.cleaned, 1) }
func (s *stubInstance) SendAnswer(context.Context, instance.InboundAnswer) error        { return nil }
func (s *stubInstance) SendOAuthCallback(context.Context, instance.OAuthCallback) error { return nil }
func (s *stubInstance) UploadImage(context.Context, instance.InboundImage) error        { return nil }
func (s *stubInstance) Truncate(context.Context, string) error                         { return nil }
func (s *stubInstance) ListMessages(context.Context) ([]*instance.StoredMessage, error) { return nil, nil }

func newTestRegistry() (*Registry, *timeoutsvc.FakeClock, map[string]*stubInstance) {
	clock := timeoutsvc.NewFakeClock(time.Unix(0, 0))
	instances := make(map[string]*stubInstance)
	factory := func(base *instance.Base) instance.Instance {
		si := &stubInstance{Base: base}
		instances[base.ThreadID()] = si
		return si
	}
	reg := New(factory,
		WithClock(clock),
		WithHeartbeatInterval(time.Hour),
		WithDurations(timeoutsvc.Durations{Disconnect: time.Minute, Interactive: time.Hour, Oneshot: time.Minute}),
	)
	return reg, clock, instances
}

func TestRegistry_GetOrCreate_ReturnsSameInstanceForSameThread(t *testing.T) {
	reg, _, _ := newTestRegistry()
	defer reg.Shutdown(context.Background())

	i1 := reg.GetOrCreate(context.Background(), "t1", "proj", "alice", nil)
	i2 := reg.GetOrCreate(context.Background(), "t1", "proj", "alice", nil)
	assert.Same(t, i1, i2)
}

func TestRegistry_Cleanup_IsIdempotent(t *testing.T) {
	reg, _, instances := newTestRegistry()
	defer reg.Shutdown(context.Background())

	reg.GetOrCreate(context.Background(), "t1", "proj", "alice", nil)
	reg.Cleanup("t1")
	reg.Cleanup("t1")

	si := instances["t1"]
	require.NotNil(t, si)
	assert.EqualValues(t, 1, atomic.LoadInt32(&si.cleaned))

	_, ok := reg.Get("t1")
	assert.False(t, ok)
}

func TestRegistry_DisconnectTimeout_TriggersCleanup(t *testing.T) {
	reg, clock, instances := newTestRegistry()
	defer reg.Shutdown(context.Background())

	sub := &fakeSub{id: "s1"}
	reg.GetOrCreate(context.Background(), "t1", "proj", "alice", sub)
	reg.RemoveConnection("t1", sub)

	clock.Advance(2 * time.Minute)

	si := instances["t1"]
	require.NotNil(t, si)
	assert.EqualValues(t, 1, atomic.LoadInt32(&si.cleaned))
	_, ok := reg.Get("t1")
	assert.False(t, ok)
}

type fakeSub struct{ id string }

func (f *fakeSub) ID() string                { return f.id }
func (f *fakeSub) Enqueue(frame []byte) bool { return true }
func (f *fakeSub) Close()                    {}

var _ broadcast.Subscriber = (*fakeSub)(nil)

// recordingPublisher captures every lifecycle event published, standing in
// for the AMQP transport in tests.
type recordingPublisher struct {
	mu   sync.Mutex
	msgs []*message.Message
}

func (p *recordingPublisher) Publish(_ string, msgs ...*message.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, msgs...)
	return nil
}
func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) transitions(t *testing.T) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.msgs))
	for i, m := range p.msgs {
		var ev audit.LifecycleEvent
		require.NoError(t, json.Unmarshal(m.Payload, &ev))
		out[i] = ev.Transition
	}
	return out
}

func TestRegistry_TimeoutCleanup_PublishesDistinctTransition(t *testing.T) {
	clock := timeoutsvc.NewFakeClock(time.Unix(0, 0))
	rec := &recordingPublisher{}
	factory := func(base *instance.Base) instance.Instance {
		return &stubInstance{Base: base}
	}
	reg := New(factory,
		WithClock(clock),
		WithHeartbeatInterval(time.Hour),
		WithDurations(timeoutsvc.Durations{Disconnect: time.Minute, Interactive: time.Hour, Oneshot: time.Minute}),
		WithAuditPublisher(audit.NewPublisher(rec, nil)),
	)
	defer reg.Shutdown(context.Background())

	sub := &fakeSub{id: "s1"}
	reg.GetOrCreate(context.Background(), "t1", "proj", "alice", sub)
	reg.RemoveConnection("t1", sub)
	clock.Advance(2 * time.Minute)

	assert.Equal(t, []string{"thread.created", "thread.timeout_fired"}, rec.transitions(t))
}

func TestRegistry_Cleanup_PublishesCleanedUpTransition(t *testing.T) {
	clock := timeoutsvc.NewFakeClock(time.Unix(0, 0))
	rec := &recordingPublisher{}
	factory := func(base *instance.Base) instance.Instance {
		return &stubInstance{Base: base}
	}
	reg := New(factory,
		WithClock(clock),
		WithHeartbeatInterval(time.Hour),
		WithDurations(timeoutsvc.Durations{Disconnect: time.Minute, Interactive: time.Hour, Oneshot: time.Minute}),
		WithAuditPublisher(audit.NewPublisher(rec, nil)),
	)
	defer reg.Shutdown(context.Background())

	reg.GetOrCreate(context.Background(), "t1", "proj", "alice", nil)
	reg.Cleanup("t1")

	assert.Equal(t, []string{"thread.created", "thread.cleaned_up"}, rec.transitions(t))
}

func TestRegistry_Snapshot_CountsOneshotThreads(t *testing.T) {
	reg, _, _ := newTestRegistry()
	defer reg.Shutdown(context.Background())

	reg.CreateWithoutConnection(context.Background(), "t1", "proj", "alice")
	reg.GetOrCreate(context.Background(), "t2", "proj", "bob", &fakeSub{id: "s1"})

	s := reg.Snapshot()
	assert.Equal(t, 2, s.ThreadCount)
	assert.Equal(t, 1, s.ConnectedThreads)
	assert.Equal(t, 1, s.OneshotThreads)
}

func TestRegistry_SetDurations_AppliesToInstancesCreatedAfterward(t *testing.T) {
	reg, clock, instances := newTestRegistry()
	defer reg.Shutdown(context.Background())

	reg.SetDurations(timeoutsvc.Durations{Disconnect: time.Hour, Interactive: time.Hour, Oneshot: time.Hour})

	sub := &fakeSub{id: "s1"}
	reg.GetOrCreate(context.Background(), "t1", "proj", "alice", sub)
	reg.RemoveConnection("t1", sub)

	// The old 1-minute disconnect timeout would have fired here; the
	// retuned 1-hour duration must not have.
	clock.Advance(2 * time.Minute)

	si := instances["t1"]
	require.NotNil(t, si)
	assert.EqualValues(t, 0, atomic.LoadInt32(&si.cleaned))
}

func TestRegistry_SetHeartbeatInterval_ResetsTicker(t *testing.T) {
	reg, _, _ := newTestRegistry()
	defer reg.Shutdown(context.Background())

	// Exercises the ticker-reset path; a deadlock or panic here would fail
	// the test under the race detector.
	reg.SetHeartbeatInterval(5 * time.Millisecond)
	time.Sleep(20 * time.Millisecond)
}
