package tierq

import "time"

// Clock abstracts time for testing.
type Clock interface {
	Now() time.Time
	// AfterFunc arms a one-shot timer that calls f after d.
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is a cancelable one-shot timer handle.
type Timer interface {
	// Stop cancels the timer. It reports whether the call prevented the
	// timer from firing.
	Stop() bool
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
