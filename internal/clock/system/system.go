// Package system provides the wall clock used outside tests.
package system

import "time"

// Clock implements crawler.Clock. Timestamps are UTC and truncated to
// microseconds, the resolution Postgres stores.
type Clock struct {
	precision time.Duration
}

// New creates a Clock with microsecond precision.
func New() *Clock {
	return &Clock{precision: time.Microsecond}
}

// Now returns the current time.
func (c *Clock) Now() time.Time {
	now := time.Now().UTC()
	if c == nil || c.precision <= 0 {
		return now
	}
	return now.Truncate(c.precision)
}
