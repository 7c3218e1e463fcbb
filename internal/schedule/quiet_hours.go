// Package schedule holds the pure time arithmetic of the scheduler: quiet
// hour deferral and recurrence expansion.
package schedule

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// QuietHours is a nightly suppression window in a user's local time. The
// window may span midnight (Start > End, e.g. 22:00-08:00).
type QuietHours struct {
	Enabled  bool   `json:"enabled"`
	Start    string `json:"start"` // HH:MM
	End      string `json:"end"`   // HH:MM
	Timezone string `json:"timezone"`
}

// AdjustForQuietHours defers t to the end of the quiet window if it falls
// inside one. Timestamps outside the window, or with quiet hours disabled,
// pass through unchanged. The returned time is never before t.
func AdjustForQuietHours(t time.Time, qh QuietHours) (time.Time, error) {
	if !qh.Enabled {
		return t, nil
	}

	start, err := parseClock(qh.Start)
	if err != nil {
		return t, fmt.Errorf("quiet hours start: %w", err)
	}
	end, err := parseClock(qh.End)
	if err != nil {
		return t, fmt.Errorf("quiet hours end: %w", err)
	}

	loc := locationOrUTC(qh.Timezone)
	local := t.In(loc)
	minute := local.Hour()*60 + local.Minute()

	spansMidnight := start > end
	var inside bool
	if spansMidnight {
		inside = minute >= start || minute < end
	} else {
		inside = minute >= start && minute < end
	}
	if !inside {
		return t, nil
	}

	adjusted := time.Date(local.Year(), local.Month(), local.Day(), end/60, end%60, 0, 0, loc)
	// In a window spanning midnight the end time belongs to the next
	// calendar day for timestamps on the pre-midnight side.
	if spansMidnight && minute >= start {
		adjusted = adjusted.AddDate(0, 0, 1)
	}
	return adjusted, nil
}

// parseClock converts "HH:MM" to a minute-of-day.
func parseClock(s string) (int, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("malformed clock value %q", s)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, fmt.Errorf("malformed clock value %q", s)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("malformed clock value %q", s)
	}
	return hour*60 + minute, nil
}

// locationOrUTC resolves an IANA timezone name, defaulting to UTC when the
// name is empty or unknown.
func locationOrUTC(name string) *time.Location {
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}
