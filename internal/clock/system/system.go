// Package system provides the wall clock used outside tests.
package system

import "time"

// Clock implements scan.Clock. All timestamps are UTC so stored jobs and
// result file names do not depend on the host time zone.
type Clock struct{}

// New creates a new Clock.
func New() Clock {
	return Clock{}
}

// Now returns the current UTC time.
func (Clock) Now() time.Time {
	return time.Now().UTC()
}
