package schedule

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Frequency is how often a recurring notification repeats.
type Frequency string

const (
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
)

// ErrInvalidPattern indicates a recurrence pattern that cannot be expanded.
var ErrInvalidPattern = errors.New("invalid recurrence pattern")

// RecurrencePattern describes a symbolic repeating schedule.
type RecurrencePattern struct {
	Frequency Frequency `json:"frequency"`
	Time      string    `json:"time"` // HH:MM

	// DaysOfWeek restricts weekly patterns to the given weekdays
	// (0 = Sunday .. 6 = Saturday). Empty means every day.
	DaysOfWeek []int `json:"days_of_week,omitempty"`

	// DayOfMonth picks the day for monthly patterns; 0 means the 1st.
	DayOfMonth int `json:"day_of_month,omitempty"`

	// EndDate bounds the expansion, inclusive. Zero means one year from
	// the expansion start.
	EndDate time.Time `json:"end_date,omitempty"`
}

// ExpandRecurrence turns a pattern into the concrete timestamps between
// from (exclusive) and the pattern's end date (inclusive), evaluated in
// loc. The first occurrence is always strictly after from.
func ExpandRecurrence(p RecurrencePattern, from time.Time, loc *time.Location) ([]time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}

	spec, err := cronSpec(p)
	if err != nil {
		return nil, err
	}
	sched, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPattern, err)
	}

	end := p.EndDate
	if end.IsZero() {
		end = from.AddDate(1, 0, 0)
	}

	var occurrences []time.Time
	t := from.In(loc)
	for {
		t = sched.Next(t)
		if t.IsZero() || t.After(end) {
			break
		}
		occurrences = append(occurrences, t)
	}
	return occurrences, nil
}

// cronSpec compiles a pattern into a standard five-field cron expression.
func cronSpec(p RecurrencePattern) (string, error) {
	minute, err := parseClock(p.Time)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidPattern, err)
	}
	clock := fmt.Sprintf("%d %d", minute%60, minute/60)

	switch p.Frequency {
	case FrequencyDaily:
		return clock + " * * *", nil

	case FrequencyWeekly:
		if len(p.DaysOfWeek) == 0 {
			// No weekday restriction: treat as daily.
			return clock + " * * *", nil
		}
		days := make([]string, 0, len(p.DaysOfWeek))
		for _, d := range p.DaysOfWeek {
			if d < 0 || d > 6 {
				return "", fmt.Errorf("%w: weekday %d out of range", ErrInvalidPattern, d)
			}
			days = append(days, strconv.Itoa(d))
		}
		return clock + " * * " + strings.Join(days, ","), nil

	case FrequencyMonthly:
		day := p.DayOfMonth
		if day == 0 {
			day = 1
		}
		if day < 1 || day > 31 {
			return "", fmt.Errorf("%w: day of month %d out of range", ErrInvalidPattern, day)
		}
		return fmt.Sprintf("%s %d * *", clock, day), nil

	default:
		return "", fmt.Errorf("%w: unknown frequency %q", ErrInvalidPattern, p.Frequency)
	}
}
