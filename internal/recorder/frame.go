// Package recorder writes the H.264 stream of the recording encoder into
// one file pair per schedule segment and hands closed segments to a finalizer.
//
// A segment consists of the raw elementary stream (<work_dir>/<id>.h264) and a
// timestamp file in mkvmerge "timestamp format v2" (<work_dir>/<id>-timestamp.txt).
// Finalizing muxes both into <output_dir>/<id>.mkv.
package recorder

import (
	"fmt"
	"time"
)

// Frame is one encoded access unit.
type Frame struct {
	Data []byte

	// Delta marks a frame that depends on earlier frames. The zero value is a keyframe.
	Delta bool

	// Timestamp is the presentation time since the encoder started.
	// It is only meaningful when HasTimestamp is set.
	Timestamp    time.Duration
	HasTimestamp bool
}

// Keyframe reports whether a segment may start with this frame.
func (f Frame) Keyframe() bool {
	return !f.Delta
}

// Output consumes encoded frames.
type Output interface {
	Open() error
	WriteFrame(frame Frame) error
	Close() error
}

// formatPTS renders a timestamp as milliseconds with microsecond precision.
func formatPTS(ts time.Duration) string {
	us := ts.Microseconds()
	sign := ""
	if us < 0 {
		sign = "-"
		us = -us
	}
	return fmt.Sprintf("%s%d.%03d", sign, us/1000, us%1000)
}
