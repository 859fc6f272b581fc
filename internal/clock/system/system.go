// Package system provides a real clock implementation.
package system

import (
	"time"

	"github.com/JakeFAU/bookshelf-crawler/internal/catalog"
)

// Clock implements catalog.Clock using time.Now.
type Clock struct{}

var _ catalog.Clock = Clock{}

// New creates a new Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current time in UTC, truncated to microseconds so values
// survive a round trip through Postgres timestamptz unchanged.
func (Clock) Now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}
