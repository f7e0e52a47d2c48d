// Package system provides the wall clock used for date validation.
package system

import (
	"time"
	_ "time/tzdata" // embedded zone database for minimal containers
)

// DefaultZone is the zone publication dates are judged in.
const DefaultZone = "Europe/Stockholm"

// Clock implements crawler.Clock in a fixed location.
type Clock struct {
	loc *time.Location
}

// New creates a Clock in DefaultZone, falling back to UTC.
func New() *Clock {
	loc, err := time.LoadLocation(DefaultZone)
	if err != nil {
		loc = time.UTC
	}
	return &Clock{loc: loc}
}

// Now returns the current time in the clock's location.
func (c *Clock) Now() time.Time {
	return time.Now().In(c.loc)
}

// Location returns the clock's location.
func (c *Clock) Location() *time.Location {
	return c.loc
}
