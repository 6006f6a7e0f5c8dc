package broadcast

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/webitel/im-thread-gateway/internal/domain/event"
)

type fakeSubscriber struct {
	id      string
	mu      sync.Mutex
	frames  [][]byte
	reject  bool
	closed  bool
}

func (f *fakeSubscriber) ID() string { return f.id }

func (f *fakeSubscriber) Enqueue(frame []byte) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.reject || f.closed {
		return false
	}
	f.frames = append(f.frames, frame)
	return true
}

func (f *fakeSubscriber) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

func (f *fakeSubscriber) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.frames)
}

func TestBroadcaster_FanOut_AllSubscribersReceiveSameBytes(t *testing.T) {
	b := New(nil)
	s1 := &fakeSubscriber{id: "a"}
	s2 := &fakeSubscriber{id: "b"}
	b.Add(s1)
	b.Add(s2)

	b.Broadcast(event.NewHeartbeat("1"))

	require.Equal(t, 1, s1.count())
	require.Equal(t, 1, s2.count())
	assert.Equal(t, s1.frames[0], s2.frames[0])
}

func TestBroadcaster_DropsSubscriberThatRejectsFrame(t *testing.T) {
	b := New(nil)
	dead := &fakeSubscriber{id: "dead", reject: true}
	alive := &fakeSubscriber{id: "alive"}
	b.Add(dead)
	b.Add(alive)

	b.Broadcast(event.NewHeartbeat("1"))

	assert.Equal(t, 1, b.Count(), "a rejecting subscriber must not take the others down with it")
	assert.Equal(t, 1, alive.count())
	assert.True(t, dead.closed)
}

func TestBroadcaster_AddRemoveIsIdempotentAndDeduplicated(t *testing.T) {
	b := New(nil)
	s := &fakeSubscriber{id: "x"}
	b.Add(s)
	b.Add(s)
	assert.Equal(t, 1, b.Count())

	b.Remove(s)
	b.Remove(s)
	assert.Equal(t, 0, b.Count())
}

func TestConn_Enqueue_NeverBlocksWhenMailboxFull(t *testing.T) {
	block := make(chan struct{})
	conn := NewConn(context.Background(), "c1", 1,
		func(b []byte) error { <-block; return nil },
		func() {},
	)
	defer func() { close(block); conn.Close() }()

	frame, _ := event.NewHeartbeat("1").Frame()
	// First Enqueue is picked up by drain() and blocks on write; second
	// fills the buffered channel; third must be rejected without blocking.
	conn.Enqueue(frame)
	time.Sleep(10 * time.Millisecond)
	assert.True(t, conn.Enqueue(frame))
	assert.False(t, conn.Enqueue(frame))
}
