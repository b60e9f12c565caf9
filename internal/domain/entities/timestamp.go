package entities

import (
	"fmt"
	"time"
)

// TimestampLayout is the literal revision timestamp format (yyyy-MM-dd_HH-mm-ss).
// Lexical order of formatted timestamps equals chronological order.
const TimestampLayout = "2006-01-02_15-04-05"

// FormatTimestamp formats t in UTC using TimestampLayout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// ParseTimestamp parses a revision timestamp. Anything that is not exactly
// the literal format is rejected with ErrValidation.
func ParseTimestamp(s string) (time.Time, error) {
	if s == "" || s == "null" || len(s) != len(TimestampLayout) {
		return time.Time{}, fmt.Errorf("%w: timestamp %q not parseable", ErrValidation, s)
	}
	t, err := time.ParseInLocation(TimestampLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: timestamp %q not parseable", ErrValidation, s)
	}
	return t, nil
}

// IsValidTimestamp reports whether s is a well-formed revision timestamp.
func IsValidTimestamp(s string) bool {
	_, err := ParseTimestamp(s)
	return err == nil
}

// NextTimestamp returns the timestamp to record a change observed at now,
// given the latest existing timestamp for the entity (empty if none).
// Changes landing in the same second, or a clock that went backwards, are
// pushed to one second after latest so timestamps stay unique and increasing.
func NextTimestamp(now time.Time, latest string) string {
	candidate := now.UTC().Truncate(time.Second)
	if latest == "" {
		return FormatTimestamp(candidate)
	}
	last, err := ParseTimestamp(latest)
	if err != nil {
		return FormatTimestamp(candidate)
	}
	if !candidate.After(last) {
		candidate = last.Add(time.Second)
	}
	return FormatTimestamp(candidate)
}
