package lifecycle

import "time"

// Timer is a cancellable scheduled callback. Stop reports whether the call
// was prevented from firing.
type Timer interface {
	Stop() bool
}

// Clock abstracts time for the lifecycle package so tests can drive poll
// intervals, deadlines, and cleanup delays deterministically.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// AfterFunc schedules f to run after d elapses and returns a Timer
	// that can cancel the pending call.
	AfterFunc(d time.Duration, f func()) Timer
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now()
}

func (systemClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// SystemClock returns the wall-clock implementation used in production.
func SystemClock() Clock {
	return systemClock{}
}
