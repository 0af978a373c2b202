package Models

import (
	"strings"
	"time"
)

// DateLayout is the only calendar date format persisted for trips, invoices
// and fuel entries. Dates are stored as text so they never shift with the
// server's time zone.
const DateLayout = "2006-01-02"

var acceptedDateLayouts = []string{
	DateLayout,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"02/01/2006",
}

// NormalizeDate turns any accepted input into YYYY-MM-DD. Timestamps keep the
// calendar day they were written in rather than being converted to UTC.
func NormalizeDate(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", Invalid("date", "required")
	}
	for _, layout := range acceptedDateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Format(DateLayout), nil
		}
	}
	return "", Invalid("date", "unparsable date "+raw)
}

// NormalizeDatePtr is NormalizeDate for optional fields.
func NormalizeDatePtr(raw *string) (*string, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, nil
	}
	d, err := NormalizeDate(*raw)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// ParseDate reads a normalized date as midnight UTC.
func ParseDate(date string) (time.Time, error) {
	d, err := NormalizeDate(date)
	if err != nil {
		return time.Time{}, err
	}
	return time.Parse(DateLayout, d)
}

// MonthYear is the reporting bucket of a date.
func MonthYear(date string) (int, int, error) {
	t, err := ParseDate(date)
	if err != nil {
		return 0, 0, err
	}
	return int(t.Month()), t.Year(), nil
}

// Today is the calendar date of now in the server's location.
func Today(now time.Time) string {
	return now.Format(DateLayout)
}
