package telemetry

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Accepted range-bound layouts, tried in order. Layouts without a zone are
// read as UTC.
var rangeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02",
}

// ParseRangeBounds parses the start and end query values of a range request.
//
// Each bound may be RFC 3339 (with or without fractional seconds), a zone-less
// "YYYY-MM-DDTHH:MM:SS" (UTC), a date "YYYY-MM-DD" (UTC midnight), or Unix
// seconds. Missing or unparseable bounds, or end before start, yield
// ErrInvalidRange.
func ParseRangeBounds(start, end string) (time.Time, time.Time, error) {
	from, err := parseBound("start", start)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	to, err := parseBound("end", end)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if to.Before(from) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: end is before start", ErrInvalidRange)
	}
	return from, to, nil
}

func parseBound(name, value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("%w: %s is required", ErrInvalidRange, name)
	}

	for _, layout := range rangeLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	if secs, err := strconv.ParseInt(value, 10, 64); err == nil {
		return time.Unix(secs, 0).UTC(), nil
	}

	return time.Time{}, fmt.Errorf("%w: %s %q is not a recognised timestamp", ErrInvalidRange, name, value)
}

// ParseLimit parses a window limit query value. An empty value selects the
// default (0); anything that is not an integer is an error.
func ParseLimit(value string) (int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("limit %q is not an integer", value)
	}
	return n, nil
}
