package services

import (
	"fmt"
	"strings"
	"time"
)

const (
	isoDateLayout    = "2006-01-02"
	portalDateLayout = "02/01/2006"
)

// ParseOptionalDate parses a YYYY-MM-DD date in loc; an empty value yields nil
func ParseOptionalDate(value string, loc *time.Location) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation(isoDateLayout, value, loc)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", value)
	}
	return &t, nil
}

// ParseAvailabilityDate parses a date as the portal publishes it (DD/MM/YYYY),
// falling back to ISO for rows written by other tools.
func ParseAvailabilityDate(dateStr string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	dateStr = strings.TrimSpace(dateStr)
	for _, layout := range []string{portalDateLayout, isoDateLayout} {
		if t, err := time.ParseInLocation(layout, dateStr, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid availability date %q", dateStr)
}

// FormatISODate renders a date as the portal query expects it
func FormatISODate(t time.Time) string {
	return t.Format(isoDateLayout)
}

// StartOfDay truncates t to midnight in its own location
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
