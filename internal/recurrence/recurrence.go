// Package recurrence turns a campaign's repeat interval into the time of its
// next occurrence.
//
// An interval is one of the named periods hourly, daily, weekly or monthly,
// which repeat relative to the previous run, or a standard 5-field cron
// expression ("0 9 * * MON"), which repeats on the wall clock.
package recurrence

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// MaxRuns caps how many occurrences one schedule may have.
const MaxRuns = 365

// ErrInvalidInterval is returned for intervals that are neither a named
// period nor a valid cron expression.
var ErrInvalidInterval = errors.New("invalid repeat interval")

type monthly struct{}

func (monthly) Next(t time.Time) time.Time { return t.AddDate(0, 1, 0) }

type weekly struct{}

func (weekly) Next(t time.Time) time.Time { return t.AddDate(0, 0, 7) }

type daily struct{}

func (daily) Next(t time.Time) time.Time { return t.AddDate(0, 0, 1) }

// Parse returns the schedule for interval.
func Parse(interval string) (cron.Schedule, error) {
	switch strings.ToLower(strings.TrimSpace(interval)) {
	case "hourly":
		return cron.Every(time.Hour), nil
	case "daily":
		return daily{}, nil
	case "weekly":
		return weekly{}, nil
	case "monthly":
		return monthly{}, nil
	case "":
		return nil, ErrInvalidInterval
	}
	sched, err := cron.ParseStandard(interval)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInterval, err)
	}
	return sched, nil
}

// Validate checks interval and the total number of runs together. An empty
// interval means a one-off send and needs runs <= 1.
func Validate(interval string, runs int) error {
	if strings.TrimSpace(interval) == "" {
		if runs > 1 {
			return fmt.Errorf("repeat_count needs a repeat_interval")
		}
		return nil
	}
	if _, err := Parse(interval); err != nil {
		return err
	}
	if runs < 1 || runs > MaxRuns {
		return fmt.Errorf("repeat_count must be between 1 and %d", MaxRuns)
	}
	return nil
}

// Next returns the first occurrence strictly after prev.
func Next(interval string, prev time.Time) (time.Time, error) {
	sched, err := Parse(interval)
	if err != nil {
		return time.Time{}, err
	}
	next := sched.Next(prev)
	if next.IsZero() {
		return time.Time{}, fmt.Errorf("%w: %q never fires", ErrInvalidInterval, interval)
	}
	return next, nil
}
