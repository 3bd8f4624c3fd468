package utils

import (
	"fmt"
	"time"

	"github.com/julianstephens/habitd/internal/constants"
)

// LoadLocation loads a timezone location from an IANA timezone name.
// An empty name resolves to UTC; "Local" resolves to the system timezone.
func LoadLocation(timezone string) (*time.Location, error) {
	switch timezone {
	case "":
		return time.UTC, nil
	case "Local":
		return time.Local, nil
	}
	return time.LoadLocation(timezone)
}

// ValidateTimezone checks if the timezone name is valid.
func ValidateTimezone(timezone string) bool {
	_, err := LoadLocation(timezone)
	return err == nil
}

// DayIn returns the calendar day (YYYY-MM-DD) that t falls on in loc.
func DayIn(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(constants.DateFormat)
}

// GetTodayInTimezone returns today's date string (YYYY-MM-DD) in the specified timezone.
func GetTodayInTimezone(timezone string) (string, error) {
	loc, err := LoadLocation(timezone)
	if err != nil {
		return "", fmt.Errorf("invalid timezone %q: %w", timezone, err)
	}
	return DayIn(time.Now(), loc), nil
}

// AddDays shifts a YYYY-MM-DD day by n calendar days.
func AddDays(day string, n int) (string, error) {
	t, err := time.Parse(constants.DateFormat, day)
	if err != nil {
		return "", fmt.Errorf("invalid date format (expected YYYY-MM-DD): %w", err)
	}
	return t.AddDate(0, 0, n).Format(constants.DateFormat), nil
}

// PreviousDay returns the calendar day before day.
func PreviousDay(day string) (string, error) {
	return AddDays(day, -1)
}
