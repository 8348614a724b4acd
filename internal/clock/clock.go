// Package clock abstracts wall-clock reads and one-shot timers so that
// session and privilege expiry can be simulated deterministically in tests.
package clock

import "time"

// Clock provides the current time and single-shot countdown timers.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is a cancellable one-shot countdown.
type Timer interface {
	// Stop cancels the timer. It reports whether the timer was stopped
	// before its function ran.
	Stop() bool
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) AfterFunc(d time.Duration, f func()) Timer {
	return systemTimer{t: time.AfterFunc(d, f)}
}

type systemTimer struct {
	t *time.Timer
}

func (t systemTimer) Stop() bool { return t.t.Stop() }

// System returns a Clock backed by the real wall clock.
func System() Clock { return systemClock{} }
