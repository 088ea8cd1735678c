package recorder

import "time"

// Clock abstracts wall-clock time and single-shot timers so the auto-stop
// deadline is testable without real waits.
type Clock interface {
	Now() time.Time

	// AfterFunc arms a single-shot timer that runs fn after d
	AfterFunc(d time.Duration, fn func()) Timer
}

// Timer is a cancellable single-shot timer
type Timer interface {
	// Stop cancels the timer. Returns false if it already fired or was stopped.
	Stop() bool
}

// SystemClock is the production Clock backed by the time package
type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now()
}

func (SystemClock) AfterFunc(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, fn)
}
