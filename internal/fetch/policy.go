package fetch

import (
	"time"

	"getpoetry/internal/config"
)

// Policy decides whether a connected attempt gets a deadline, and how long.
type Policy func(addr config.Address) (time.Duration, bool)

// EvenPortPolicy arms d on even ports and never on odd ones. This is the
// fixture that separates the timeout path from the normal path; it is not
// a general timeout heuristic.
func EvenPortPolicy(d time.Duration) Policy {
	return func(addr config.Address) (time.Duration, bool) {
		if addr.Even() {
			return d, true
		}
		return 0, false
	}
}

// NoDeadline never arms a timer.
func NoDeadline(config.Address) (time.Duration, bool) {
	return 0, false
}

// Always arms d regardless of the port.
func Always(d time.Duration) Policy {
	return func(config.Address) (time.Duration, bool) {
		return d, true
	}
}
