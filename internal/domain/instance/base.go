package instance

import (
	"sync"
	"time"

	"github.com/webitel/im-thread-gateway/internal/domain/broadcast"
	"github.com/webitel/im-thread-gateway/internal/domain/timeoutsvc"
)

// Base holds the bookkeeping common to both backends: the connection set,
// activity tracking, and the timer interaction shared by both backends. It
// is embedded by local.Instance and remote.Instance, each of which supplies
// its own Prepare/Start/Stop/Cleanup and inbound-action semantics.
type Base struct {
	threadID, project, username string

	Broadcaster *broadcast.Broadcaster
	Supervisor  *timeoutsvc.Supervisor
	Clock       timeoutsvc.Clock

	mu           sync.Mutex
	conns        map[string]broadcast.Subscriber
	oneshot      bool
	lastActivity time.Time
}

func NewBase(threadID, project, username string, clock timeoutsvc.Clock, b *broadcast.Broadcaster, sup *timeoutsvc.Supervisor, oneshot bool) *Base {
	return &Base{
		threadID:     threadID,
		project:      project,
		username:     username,
		Broadcaster:  b,
		Supervisor:   sup,
		Clock:        clock,
		conns:        make(map[string]broadcast.Subscriber),
		oneshot:      oneshot,
		lastActivity: clock.Now(),
	}
}

func (b *Base) ThreadID() string    { return b.threadID }
func (b *Base) ProjectName() string { return b.project }
func (b *Base) Username() string    { return b.username }

func (b *Base) HasConnections() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.conns) > 0
}

func (b *Base) IsOneshot() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.oneshot
}

// AddConnection records the connection, re-arms the timers, and joins the
// subscriber to the Broadcaster. preAttach,
// if non-nil, runs after bookkeeping but strictly before sub is added to
// the Broadcaster's live set — the hook a Local Backend uses to replay
// history directly into sub's mailbox so replay frames precede any frame
// a concurrent Broadcast could produce for it.
func (b *Base) AddConnection(sub broadcast.Subscriber, preAttach func()) {
	b.mu.Lock()
	if _, exists := b.conns[sub.ID()]; exists {
		b.mu.Unlock()
		return
	}
	b.conns[sub.ID()] = sub
	b.oneshot = false
	b.lastActivity = b.Clock.Now()
	b.mu.Unlock()

	if preAttach != nil {
		preAttach()
	}

	b.Broadcaster.Add(sub)
	b.Supervisor.DisarmDisconnect()
	b.Supervisor.ResetInactivity(false)
}

// RemoveConnection drops sub and arms the disconnect timer once the
// connection set is empty.
func (b *Base) RemoveConnection(sub broadcast.Subscriber) {
	b.mu.Lock()
	delete(b.conns, sub.ID())
	empty := len(b.conns) == 0
	b.mu.Unlock()

	b.Broadcaster.Remove(sub)
	if empty {
		b.Supervisor.ArmDisconnect()
	}
}

// MarkOneshot is a no-op while connections exist.
func (b *Base) MarkOneshot() {
	b.mu.Lock()
	if len(b.conns) > 0 {
		b.mu.Unlock()
		return
	}
	b.oneshot = true
	b.mu.Unlock()
	b.Supervisor.ResetInactivity(true)
}

// TouchActivity records inbound-message / outbound-broadcast-decision
// activity and re-arms the inactivity timer.
func (b *Base) TouchActivity() {
	b.mu.Lock()
	b.lastActivity = b.Clock.Now()
	oneshot := b.oneshot
	b.mu.Unlock()
	b.Supervisor.ResetInactivity(oneshot)
}

func (b *Base) GetInactiveTime() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.Clock.Now().Sub(b.lastActivity)
}

func (b *Base) SendHeartbeat(timestamp string) {
	b.mu.Lock()
	hasConns := len(b.conns) > 0
	b.mu.Unlock()
	if !hasConns {
		return
	}
	b.Broadcaster.Broadcast(heartbeatEvent(timestamp))
}
