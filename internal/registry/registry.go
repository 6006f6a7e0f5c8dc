// Package registry implements the Instance Registry (C6): the
// process-wide mapping from ThreadId to Thread Instance, the global
// heartbeat ticker, and orchestrated shutdown.
package registry

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/webitel/im-thread-gateway/internal/audit"
	"github.com/webitel/im-thread-gateway/internal/domain/broadcast"
	"github.com/webitel/im-thread-gateway/internal/domain/instance"
	"github.com/webitel/im-thread-gateway/internal/domain/timeoutsvc"
)

// InstanceFactory builds the backend-specific Thread Instance (Local or
// Remote) around a freshly constructed Base. The Registry is agnostic to
// which backend is in play — backend selection is a single
// environment switch made once, at Registry construction, by whichever
// InstanceFactory the caller supplies.
type InstanceFactory func(base *instance.Base) instance.Instance

// Registry is the process-wide Instance Registry.
type Registry struct {
	instances sync.Map // ThreadId -> instance.Instance
	factory   InstanceFactory

	clock  timeoutsvc.Clock
	logger *slog.Logger
	audit  *audit.Publisher

	// durations and heartbeatInterval are retuned at runtime by
	// config.Source.OnChange; mu guards both so buildInstance and
	// runHeartbeat always observe a consistent value.
	mu                sync.RWMutex
	durations         timeoutsvc.Durations
	heartbeatInterval time.Duration
	intervalCh        chan time.Duration

	stopCh chan struct{}
	stopWg sync.WaitGroup
}

func New(factory InstanceFactory, opts ...Option) *Registry {
	r := &Registry{
		factory:           factory,
		clock:             timeoutsvc.Real,
		durations:         timeoutsvc.DefaultDurations(),
		heartbeatInterval: 30 * time.Second,
		logger:            slog.Default(),
		intervalCh:        make(chan time.Duration, 1),
		stopCh:            make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.stopWg.Add(1)
	go r.runHeartbeat()
	return r
}

// SetDurations retunes the disconnect/inactivity/oneshot timeouts applied
// to every instance created from this point on. Instances already running
// keep whatever durations their Supervisor was armed with; only newly
// created threads pick up the change. Wired from config.Source.OnChange so
// operators can retune without a restart.
func (r *Registry) SetDurations(d timeoutsvc.Durations) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.durations = d
}

// SetHeartbeatInterval retunes the global heartbeat ticker in place.
func (r *Registry) SetHeartbeatInterval(d time.Duration) {
	r.mu.Lock()
	r.heartbeatInterval = d
	r.mu.Unlock()
	select {
	case r.intervalCh <- d:
	default:
	}
}

func (r *Registry) newOnTimeout(threadID string) func() {
	// A plain closure capturing the Registry (not a back-pointer from the
	// instance) — keeps each
	// instance independently testable without a reference to its Registry.
	return func() { r.cleanup(threadID, "thread.timeout_fired") }
}

func (r *Registry) buildInstance(threadID, project, username string, oneshot bool) instance.Instance {
	b := broadcast.New(r.logger)
	onTimeout := r.newOnTimeout(threadID)
	r.mu.RLock()
	durations := r.durations
	r.mu.RUnlock()
	sup := timeoutsvc.New(r.clock, durations, oneshot, onTimeout)
	base := instance.NewBase(threadID, project, username, r.clock, b, sup, oneshot)
	return r.factory(base)
}

// GetOrCreate adds sub to the existing instance for threadID, or
// constructs a new one with the configured backend.
func (r *Registry) GetOrCreate(ctx context.Context, threadID, project, username string, sub broadcast.Subscriber) instance.Instance {
	if existing, ok := r.instances.Load(threadID); ok {
		inst := existing.(instance.Instance)
		if sub != nil {
			inst.AddConnection(sub)
		}
		return inst
	}

	candidate := r.buildInstance(threadID, project, username, false)
	actual, loaded := r.instances.LoadOrStore(threadID, candidate)
	inst := actual.(instance.Instance)
	if !loaded {
		r.publishLifecycle("thread.created", threadID, project, username)
	} else if candidate != inst {
		// Lost the race to another goroutine; the candidate was never
		// started so there is nothing to tear down beyond its timers.
		candidate.Cleanup()
	}
	if sub != nil {
		inst.AddConnection(sub)
	}
	return inst
}

// CreateWithoutConnection is used for webhook/oneshot-driven threads: it
// sets oneshot and does not attach a Subscriber.
func (r *Registry) CreateWithoutConnection(ctx context.Context, threadID, project, username string) instance.Instance {
	if existing, ok := r.instances.Load(threadID); ok {
		return existing.(instance.Instance)
	}
	candidate := r.buildInstance(threadID, project, username, true)
	actual, loaded := r.instances.LoadOrStore(threadID, candidate)
	inst := actual.(instance.Instance)
	if !loaded {
		r.publishLifecycle("thread.created", threadID, project, username)
	}
	return inst
}

func (r *Registry) Get(threadID string) (instance.Instance, bool) {
	v, ok := r.instances.Load(threadID)
	if !ok {
		return nil, false
	}
	return v.(instance.Instance), true
}

// RemoveConnection delegates to the instance; zero connections afterward
// does NOT delete the instance — the disconnect timer does that.
func (r *Registry) RemoveConnection(threadID string, sub broadcast.Subscriber) {
	if inst, ok := r.Get(threadID); ok {
		inst.RemoveConnection(sub)
	}
}

func (r *Registry) Stop(threadID string) {
	if inst, ok := r.Get(threadID); ok {
		inst.Stop()
	}
}

// Cleanup idempotently removes threadID's instance and tears it down.
// sync.Map.LoadAndDelete is itself atomic, so concurrent Cleanup calls for
// the same threadID naturally collapse to a single teardown.
func (r *Registry) Cleanup(threadID string) {
	r.cleanup(threadID, "thread.cleaned_up")
}

// cleanup does the actual teardown, tagging the audit trail with transition
// so timer-driven cleanups ("thread.timeout_fired") stay distinguishable
// from explicit ones ("thread.cleaned_up").
func (r *Registry) cleanup(threadID, transition string) {
	v, loaded := r.instances.LoadAndDelete(threadID)
	if !loaded {
		return
	}
	inst := v.(instance.Instance)
	inst.Cleanup()
	r.publishLifecycle(transition, threadID, inst.ProjectName(), inst.Username())
}

func (r *Registry) publishLifecycle(transition, threadID, project, username string) {
	if r.audit == nil {
		return
	}
	r.audit.PublishLifecycle(audit.LifecycleEvent{
		Transition: transition,
		ThreadID:   threadID,
		Project:    project,
		Username:   username,
		OccurredAt: r.clock.Now(),
	})
}

func (r *Registry) runHeartbeat() {
	defer r.stopWg.Done()
	r.mu.RLock()
	interval := r.heartbeatInterval
	r.mu.RUnlock()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-r.stopCh:
			return
		case d := <-r.intervalCh:
			ticker.Reset(d)
		case <-ticker.C:
			r.broadcastHeartbeats()
		}
	}
}

func (r *Registry) broadcastHeartbeats() {
	ts := strconv.FormatInt(r.clock.Now().UnixNano(), 10)
	r.instances.Range(func(_, v any) bool {
		inst := v.(instance.Instance)
		if inst.HasConnections() {
			inst.SendHeartbeat(ts)
		}
		return true
	})
}

// Stats returns a point-in-time snapshot used by the operator dashboard
// (internal/stats) and by observability consumers generally.
type Stats struct {
	ThreadCount      int
	ConnectedThreads int
	OneshotThreads   int
}

func (r *Registry) Snapshot() Stats {
	var s Stats
	r.instances.Range(func(_, v any) bool {
		inst := v.(instance.Instance)
		s.ThreadCount++
		if inst.HasConnections() {
			s.ConnectedThreads++
		}
		if inst.IsOneshot() {
			s.OneshotThreads++
		}
		return true
	})
	return s
}

// Shutdown cancels the heartbeat ticker and cleans up every instance
// concurrently via an errgroup fan-out, returning once every cleanup has
// completed. Calling it again after it has returned is a no-op.
func (r *Registry) Shutdown(ctx context.Context) error {
	select {
	case <-r.stopCh:
	default:
		close(r.stopCh)
	}
	r.stopWg.Wait()

	var threadIDs []string
	r.instances.Range(func(k, _ any) bool {
		threadIDs = append(threadIDs, k.(string))
		return true
	})

	g, _ := errgroup.WithContext(ctx)
	for _, id := range threadIDs {
		id := id
		g.Go(func() error {
			r.Cleanup(id)
			return nil
		})
	}
	return g.Wait()
}
