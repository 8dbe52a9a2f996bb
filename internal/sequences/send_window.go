package sequences

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

var windowParser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// NextSendTime returns the first instant at or after from that falls inside
// the cron send window, evaluated in timezone. An empty window returns from.
//
// Examples of windows: "0 9 * * 1-5" (weekdays 09:00), "*/30 9-17 * * *".
func NextSendTime(window, timezone string, from time.Time) (time.Time, error) {
	if window == "" {
		return from.UTC(), nil
	}

	loc, err := resolveTimezone(timezone)
	if err != nil {
		return time.Time{}, err
	}

	schedule, err := windowParser.Parse(window)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid send window: %w", err)
	}

	// Next is strictly after its argument; stepping back a nanosecond keeps an
	// exact match without ever returning an instant before from.
	next := schedule.Next(from.Add(-time.Nanosecond).In(loc))
	if next.IsZero() {
		return time.Time{}, fmt.Errorf("send window %q never opens", window)
	}
	return next.UTC(), nil
}

// ValidateSendWindow reports whether window parses and timezone resolves.
func ValidateSendWindow(window, timezone string) error {
	_, err := NextSendTime(window, timezone, time.Now())
	return err
}

// resolveTimezone resolves a timezone string to a time.Location.
// Empty string defaults to UTC.
func resolveTimezone(tz string) (*time.Location, error) {
	if tz == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %s: %w", tz, err)
	}
	return loc, nil
}
