// Package schedule decides when the camera records and how segments are named.
//
// A schedule is a list of daily time ranges plus a recording name. Lookups take an
// immutable snapshot under a short lock, so evaluating ranges never blocks writers.
package schedule

import (
	"strings"
	"sync"
	"time"
)

// SegmentLayout formats the segment start inside a segment id.
const SegmentLayout = "2006-01-02T15:04:05"

// Snapshot is an immutable view of the schedule. The zero value is idle.
type Snapshot struct {
	Ranges []TimeRange
	Name   string
}

// Idle reports whether nothing is scheduled.
func (s Snapshot) Idle() bool {
	return len(s.Ranges) == 0
}

// RangesString renders all ranges joined with ", ".
func (s Snapshot) RangesString() string {
	parts := make([]string, len(s.Ranges))
	for i, r := range s.Ranges {
		parts[i] = r.String()
	}
	return strings.Join(parts, ", ")
}

// ShouldRecord returns the id of the segment ts belongs to. The first listed
// range that contains ts wins, even when a later range is more specific.
func (s Snapshot) ShouldRecord(ts int64) (string, bool) {
	for _, r := range s.Ranges {
		if start, ok := r.Start(ts); ok {
			return SegmentID(s.Name, start), true
		}
	}
	return "", false
}

// ShouldRunEncoder reports whether ts is inside a range or within its pre-roll.
func (s Snapshot) ShouldRunEncoder(ts int64) bool {
	for _, r := range s.Ranges {
		if r.Close(ts) {
			return true
		}
	}
	return false
}

// SegmentID builds "<name>-<UTC start>" for a segment starting at start.
func SegmentID(name string, start int64) string {
	return name + "-" + time.Unix(0, start).UTC().Format(SegmentLayout)
}

// Schedule holds the active recording schedule for one camera.
type Schedule struct {
	// notify is held across a swap and its dispatch, so handlers see
	// changes in the order they were applied.
	notify sync.Mutex

	mu       sync.Mutex
	current  Snapshot
	handlers []func(Snapshot)
}

// New creates an idle schedule.
func New() *Schedule {
	return &Schedule{}
}

// Set parses ranges and replaces the schedule. On error the previous schedule is kept
// and the returned error is a *ParseError.
func (s *Schedule) Set(ranges, name string) error {
	parsed, err := ParseRanges(ranges)
	if err != nil {
		return err
	}

	s.replace(Snapshot{Ranges: parsed, Name: name})
	return nil
}

// Stop clears the schedule.
func (s *Schedule) Stop() {
	s.replace(Snapshot{})
}

// Snapshot returns the current schedule.
func (s *Schedule) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Get returns the rendered ranges and name, or false when idle.
func (s *Schedule) Get() (ranges, name string, ok bool) {
	snap := s.Snapshot()
	if snap.Idle() {
		return "", "", false
	}
	return snap.RangesString(), snap.Name, true
}

// ShouldRecord returns the current segment id for ts, or false when nothing records.
func (s *Schedule) ShouldRecord(ts int64) (string, bool) {
	return s.Snapshot().ShouldRecord(ts)
}

// ShouldRunEncoder reports whether the recording encoder should be running at ts.
func (s *Schedule) ShouldRunEncoder(ts int64) bool {
	return s.Snapshot().ShouldRunEncoder(ts)
}

// OnChange registers a handler called after every Set or Stop. Handlers run
// one at a time in the order the changes were applied; they may read the
// schedule but must not change it.
func (s *Schedule) OnChange(handler func(Snapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers = append(s.handlers, handler)
}

func (s *Schedule) replace(next Snapshot) {
	s.notify.Lock()
	defer s.notify.Unlock()

	s.mu.Lock()
	s.current = next
	handlers := make([]func(Snapshot), len(s.handlers))
	copy(handlers, s.handlers)
	s.mu.Unlock()

	for _, h := range handlers {
		h(next)
	}
}
