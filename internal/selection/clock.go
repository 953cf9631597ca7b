package selection

import "time"

// Timer is a pending deadline.
type Timer interface {
	Stop() bool
}

// Clock schedules deadlines. It exists so tests can fire them by hand.
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

// RealClock schedules with the time package.
type RealClock struct{}

func (RealClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
