package cleanup

import "time"

type (
	// Timer is a pending callback that may be stopped before it fires.
	Timer interface {
		Stop() bool
	}

	// Clock abstracts the passage of time so that delayed removals can be
	// driven deterministically.
	Clock interface {
		Now() time.Time
		AfterFunc(d time.Duration, f func()) Timer
	}

	systemClock struct{}
)

// SystemClock is the wall clock.
var SystemClock Clock = systemClock{}

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }
