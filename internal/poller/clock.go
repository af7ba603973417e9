package poller

import "time"

// Timer is an armed callback that can be cancelled before it fires.
type Timer interface {
	Stop() bool
}

// Clock abstracts wall time and timer scheduling so tests can drive the
// poll loop deterministically.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, fn func()) Timer
}

type systemClock struct{}

// SystemClock returns a Clock backed by the runtime timers.
func SystemClock() Clock { return systemClock{} }

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) AfterFunc(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, fn)
}
