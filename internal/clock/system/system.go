// Package system provides wall-clock and fixed clock implementations.
package system

import "time"

// Clock implements advisory.Clock using time.Now in the process's local zone,
// so the advisory year rolls over at local midnight. TZ selects the zone.
type Clock struct{}

// New creates a new Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current local time.
func (Clock) Now() time.Time {
	return time.Now().In(time.Local)
}

// Fixed is a Clock frozen at one instant, used to pin the advisory year in tests and
// backfill runs.
type Fixed struct {
	at time.Time
}

// NewFixed returns a Clock that always reports at, in at's own zone.
func NewFixed(at time.Time) Fixed {
	return Fixed{at: at}
}

// Now returns the fixed instant.
func (f Fixed) Now() time.Time {
	return f.at
}
