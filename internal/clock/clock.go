// Package clock approximates wall-clock time on devices without a real-time clock.
//
// The clock counts from a monotonic boot-time source and adds an offset that an
// operator sets from a browser. Until SetTime is called, Now reports time since boot.
package clock

import (
	"sync/atomic"
	"time"
)

// DisplayLayout is the layout used for the on-frame timestamp overlay.
const DisplayLayout = "2006-01-02 15:04:05"

// Source reports the current time in nanoseconds since the Unix epoch.
type Source interface {
	Now() int64
}

// Clock is a monotonic clock with an adjustable offset. The zero value is ready to use.
type Clock struct {
	offset atomic.Int64
}

// New creates a clock with no offset applied.
func New() *Clock {
	return &Clock{}
}

// Now returns monotonic nanoseconds plus the configured offset.
func (c *Clock) Now() int64 {
	return monotonic() + c.offset.Load()
}

// SetTime recalibrates the offset so that Now returns wall at the moment of the call.
// Values are not range checked and may move Now backwards.
func (c *Clock) SetTime(wall int64) {
	c.offset.Store(wall - monotonic())
}

// Offset returns the current offset in nanoseconds.
func (c *Clock) Offset() int64 {
	return c.offset.Load()
}

// String formats the current time for the overlay.
func (c *Clock) String() string {
	return DisplayString(c.Now())
}

// DisplayString formats ts as UTC "YYYY-MM-DD HH:MM:SS".
func DisplayString(ts int64) string {
	return time.Unix(0, ts).UTC().Format(DisplayLayout)
}

// Fixed is a Source that always reports the same instant. Used by tests and tools.
type Fixed int64

// Now implements Source.
func (f Fixed) Now() int64 {
	return int64(f)
}
