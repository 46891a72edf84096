package schedule

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Parse failure causes. A *ParseError wraps exactly one of these.
var (
	ErrMissingSeparator = errors.New("time range needs a begin and an end separated by '-'")
	ErrNotNumeric       = errors.New("not a number")
	ErrHourOutOfRange   = errors.New("hour needs to be between 0 and 24")
	ErrMinuteOutOfRange = errors.New("minute needs to be between 0 and 59")
	ErrInvalidMidnight  = errors.New("for hour 24 minutes need to be 00")
)

// Sides of a time range reported by ParseError.
const (
	SideBegin = "begin"
	SideEnd   = "end"
)

// ParseError describes why a schedule string was rejected.
type ParseError struct {
	Range string // sub-range as written by the user
	Side  string // SideBegin, SideEnd or empty when the separator is missing
	Value string // offending token
	Err   error
}

func (e *ParseError) Error() string {
	if e.Side == "" {
		return fmt.Sprintf("invalid time range %q: %v", e.Range, e.Err)
	}
	return fmt.Sprintf("invalid %s of time range %q: %q: %v", e.Side, e.Range, e.Value, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// ParseRanges parses a comma separated list of "HH[:MM]-HH[:MM]" ranges.
// Order is preserved. Backward ranges are accepted and never match.
func ParseRanges(data string) ([]TimeRange, error) {
	parts := strings.Split(data, ",")
	ranges := make([]TimeRange, 0, len(parts))
	for _, part := range parts {
		r, err := parseRange(part)
		if err != nil {
			return nil, err
		}
		ranges = append(ranges, r)
	}
	return ranges, nil
}

func parseRange(data string) (TimeRange, error) {
	text := strings.TrimSpace(data)
	beginStr, endStr, found := strings.Cut(text, "-")
	if !found {
		return TimeRange{}, &ParseError{Range: text, Err: ErrMissingSeparator}
	}

	begin, err := parseTimeOfDay(beginStr)
	if err != nil {
		return TimeRange{}, &ParseError{Range: text, Side: SideBegin, Value: strings.TrimSpace(beginStr), Err: err}
	}
	end, err := parseTimeOfDay(endStr)
	if err != nil {
		return TimeRange{}, &ParseError{Range: text, Side: SideEnd, Value: strings.TrimSpace(endStr), Err: err}
	}
	return TimeRange{Begin: begin, End: end}, nil
}

// parseTimeOfDay parses "HH" or "HH:MM" into nanoseconds since midnight.
func parseTimeOfDay(data string) (int64, error) {
	hourStr, minuteStr, hasMinute := strings.Cut(strings.TrimSpace(data), ":")

	hour, err := strconv.Atoi(strings.TrimSpace(hourStr))
	if err != nil {
		return 0, fmt.Errorf("hour %q: %w", hourStr, ErrNotNumeric)
	}

	minute := 0
	if hasMinute {
		minute, err = strconv.Atoi(strings.TrimSpace(minuteStr))
		if err != nil {
			return 0, fmt.Errorf("minute %q: %w", minuteStr, ErrNotNumeric)
		}
	}

	switch {
	case hour < 0 || hour > 24:
		return 0, fmt.Errorf("got %02d: %w", hour, ErrHourOutOfRange)
	case minute < 0 || minute >= 60:
		return 0, fmt.Errorf("got %02d: %w", minute, ErrMinuteOutOfRange)
	case hour == 24 && minute > 0:
		return 0, fmt.Errorf("got %02d:%02d: %w", hour, minute, ErrInvalidMidnight)
	}

	return int64(hour)*int64(time.Hour) + int64(minute)*int64(time.Minute), nil
}
