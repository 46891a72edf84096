package schedule

import (
	"fmt"
	"time"
)

const (
	// Day is the length of one recurring schedule day in nanoseconds.
	Day = int64(24 * time.Hour)
	// SegmentDuration is the bucket size segments are aligned to.
	SegmentDuration = int64(time.Hour)
	// PreRoll is how long before a range begins the recording encoder is warmed up.
	PreRoll = int64(3 * time.Minute)
)

// TimeRange is a daily [Begin, End) window in nanoseconds since midnight.
// A range with Begin >= End is valid but never matches.
type TimeRange struct {
	Begin int64
	End   int64
}

// Start returns the start of the segment bucket containing ts, or false when the
// time of day of ts is outside the range. Buckets are aligned to SegmentDuration
// except the first one of a range, which starts exactly at Begin.
func (r TimeRange) Start(ts int64) (int64, bool) {
	timeOfDay := floorMod(ts, Day)
	day := ts - timeOfDay

	if timeOfDay < r.Begin || timeOfDay >= r.End {
		return 0, false
	}

	start := timeOfDay - timeOfDay%SegmentDuration
	if start < r.Begin {
		start = r.Begin
	}
	return day + start, true
}

// Close reports whether ts is inside the range or at most PreRoll before it begins.
// The lead-in wraps across midnight for ranges starting shortly after 00:00.
func (r TimeRange) Close(ts int64) bool {
	if r.Begin >= r.End {
		return false
	}

	timeOfDay := floorMod(ts, Day)
	if timeOfDay >= r.Begin && timeOfDay < r.End {
		return true
	}
	return floorMod(r.Begin-timeOfDay, Day) <= PreRoll
}

// String renders the range as "HH:MM-HH:MM"; the end of day renders as 24:00.
func (r TimeRange) String() string {
	return formatTimeOfDay(r.Begin) + "-" + formatTimeOfDay(r.End)
}

func formatTimeOfDay(ns int64) string {
	hours := ns / int64(time.Hour)
	minutes := (ns % int64(time.Hour)) / int64(time.Minute)
	return fmt.Sprintf("%02d:%02d", hours, minutes)
}

// floorMod is a modulo whose result has the sign of m, so negative
// timestamps still map into [0, m).
func floorMod(v, m int64) int64 {
	r := v % m
	if r < 0 {
		r += m
	}
	return r
}
