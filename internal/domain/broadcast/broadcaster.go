package broadcast

import (
	"log/slog"
	"sync"

	"github.com/webitel/im-thread-gateway/internal/domain/event"
)

// Broadcaster owns the set of live SSE subscribers for one thread. It
// JSON-encodes an event once and writes the identical bytes to every
// subscriber currently registered; a subscriber whose write fails is
// removed silently. A Broadcaster never returns an error and never
// blocks on a socket write — see package broadcast.Subscriber.
type Broadcaster struct {
	mu     sync.Mutex
	subs   map[string]Subscriber
	logger *slog.Logger
}

func New(logger *slog.Logger) *Broadcaster {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broadcaster{subs: make(map[string]Subscriber), logger: logger}
}

// Add inserts sub if not already present. Idempotent.
func (b *Broadcaster) Add(sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.subs[sub.ID()]; exists {
		return
	}
	b.subs[sub.ID()] = sub
}

// Remove deletes sub from the set. Idempotent.
func (b *Broadcaster) Remove(sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs, sub.ID())
}

// Count returns the number of live subscribers.
func (b *Broadcaster) Count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Broadcast encodes ev exactly once and enqueues the resulting frame to
// every subscriber that was in the set at call-entry. Because the set is
// snapshotted under the lock and then released before any write is
// attempted, a Broadcast call never holds the lock across a socket write
// to every live subscriber. Subscribers whose mailbox rejects the frame are treated as
// dead and dropped from the set.
func (b *Broadcaster) Broadcast(ev *event.Event) {
	frame, err := ev.Frame()
	if err != nil {
		b.logger.Error("broadcast: encode event", "error", err, "type", ev.Type)
		return
	}

	b.mu.Lock()
	snapshot := make([]Subscriber, 0, len(b.subs))
	for _, s := range b.subs {
		snapshot = append(snapshot, s)
	}
	b.mu.Unlock()

	var dead []Subscriber
	for _, s := range snapshot {
		if !s.Enqueue(frame) {
			dead = append(dead, s)
		}
	}
	for _, s := range dead {
		b.Remove(s)
		s.Close()
	}
}

// CloseAll attempts to end every subscriber and clears the set. Errors are
// swallowed; CloseAll never fails.
func (b *Broadcaster) CloseAll() {
	b.mu.Lock()
	snapshot := make([]Subscriber, 0, len(b.subs))
	for _, s := range b.subs {
		snapshot = append(snapshot, s)
	}
	b.subs = make(map[string]Subscriber)
	b.mu.Unlock()

	for _, s := range snapshot {
		s.Close()
	}
}
