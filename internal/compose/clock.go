package compose

import "time"

// Clock abstracts wall time for cache expiry and artifact stamps so tests
// can drive the TTL deterministically.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock returns the real-time clock.
func SystemClock() Clock { return systemClock{} }
