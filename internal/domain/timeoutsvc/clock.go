// Package timeoutsvc implements the Timeout Supervisor (C2): the two
// independent timers (disconnect, inactivity) that every Thread Instance
// holds, built on an injectable clock so tests can fake time.
package timeoutsvc

import "time"

// Timer is the minimal handle a Clock hands back for a scheduled callback.
type Timer interface {
	// Stop prevents the timer from firing, if it hasn't already. It
	// returns true if the stop was effective.
	Stop() bool
	// Reset reschedules the timer to fire d after now, returning true if
	// the timer had been active.
	Reset(d time.Duration) bool
}

// Clock abstracts wall-clock time so the Supervisor never couples to
// time.AfterFunc directly.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// realClock is the production Clock, a thin wrapper over time.AfterFunc.
type realClock struct{}

// Real is the Clock used outside of tests.
var Real Clock = realClock{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return &realTimer{t: time.AfterFunc(d, f)}
}

type realTimer struct{ t *time.Timer }

func (r *realTimer) Stop() bool              { return r.t.Stop() }
func (r *realTimer) Reset(d time.Duration) bool { return r.t.Reset(d) }
