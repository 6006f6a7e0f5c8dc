package timeoutsvc

import (
	"sync"
	"time"
)

// Durations are the three configuration-overridable timeout defaults.
type Durations struct {
	Disconnect  time.Duration
	Interactive time.Duration
	Oneshot     time.Duration
}

// DefaultDurations holds the concrete fallback defaults.
func DefaultDurations() Durations {
	return Durations{
		Disconnect:  5 * time.Minute,
		Interactive: 8 * time.Hour,
		Oneshot:     30 * time.Minute,
	}
}

// Supervisor holds the disconnect timer and the inactivity timer for one
// Thread Instance. Both timers invoke the same onTimeout callback; the
// Supervisor guarantees it fires at most once even if both timers expire
// within the same clock tick.
type Supervisor struct {
	mu        sync.Mutex
	clock     Clock
	durations Durations
	onTimeout func()

	disconnectTimer Timer
	inactivityTimer Timer
	fired           bool
	stopped         bool
}

// New builds a Supervisor and immediately arms the inactivity timer, since
// the inactivity timer must stay armed whenever the instance is alive. The
// disconnect timer starts unarmed; the caller arms it once connections
// drop to zero.
func New(clock Clock, durations Durations, oneshot bool, onTimeout func()) *Supervisor {
	s := &Supervisor{clock: clock, durations: durations, onTimeout: onTimeout}
	s.inactivityTimer = clock.AfterFunc(s.inactivityDuration(oneshot), s.fire)
	return s
}

func (s *Supervisor) inactivityDuration(oneshot bool) time.Duration {
	if oneshot {
		return s.durations.Oneshot
	}
	return s.durations.Interactive
}

func (s *Supervisor) fire() {
	s.mu.Lock()
	if s.fired || s.stopped {
		s.mu.Unlock()
		return
	}
	s.fired = true
	s.mu.Unlock()
	s.onTimeout()
}

// ArmDisconnect starts (or restarts) the disconnect timer. Called exactly
// when the connection set becomes empty.
func (s *Supervisor) ArmDisconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	if s.disconnectTimer != nil {
		s.disconnectTimer.Stop()
	}
	s.disconnectTimer = s.clock.AfterFunc(s.durations.Disconnect, s.fire)
}

// DisarmDisconnect stops the disconnect timer. Called whenever a
// connection is added.
func (s *Supervisor) DisarmDisconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disconnectTimer != nil {
		s.disconnectTimer.Stop()
		s.disconnectTimer = nil
	}
}

// ResetInactivity re-arms the inactivity timer with the duration matching
// the current oneshot flag. Called on every inbound or outbound activity.
func (s *Supervisor) ResetInactivity(oneshot bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	d := s.inactivityDuration(oneshot)
	if s.inactivityTimer != nil && s.inactivityTimer.Reset(d) {
		return
	}
	s.inactivityTimer = s.clock.AfterFunc(d, s.fire)
}

// Stop cancels both timers. Idempotent; safe to call from cleanup any
// number of times.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.stopped = true
	if s.disconnectTimer != nil {
		s.disconnectTimer.Stop()
	}
	if s.inactivityTimer != nil {
		s.inactivityTimer.Stop()
	}
}
