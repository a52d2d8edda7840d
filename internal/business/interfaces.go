package business

import "time"

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces opaque unique identifiers.
type IDGenerator interface {
	NewID() (string, error)
}
