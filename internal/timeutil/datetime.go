// Package timeutil normalizes user-supplied dates to UTC instants and
// renders stored instants back in the reference zone (IST, UTC+05:30).
package timeutil

import (
	"errors"
	"time"
)

// IST is the fixed reference zone all zoneless input is interpreted in.
var IST = time.FixedZone("Asia/Kolkata", 5*3600+30*60)

// ErrInvalidDate is returned when no parsing rule accepts the input.
var ErrInvalidDate = errors.New("invalid date format")

// DisplayFormat is the wall-clock rendering used in task responses.
const DisplayFormat = "2006-01-02 15:04"

const isoOffsetFormat = "2006-01-02T15:04:05.000-07:00"

// Formats carrying an explicit offset or zone marker. These are honored
// as-is and only converted to UTC.
var zonedFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04Z07:00",
}

// Zoneless formats interpreted as IST wall-clock time.
var wallClockFormats = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// Fallback formats for loosely formatted input. Parsed leniently, then the
// wall-clock value is reinterpreted as IST.
var fallbackFormats = []string{
	"2006/01/02 15:04",
	"Jan 2, 2006 15:04",
	"Jan 2, 2006",
	time.RFC1123,
}

// ParseIncomingAsUTC converts a user-supplied date string into a UTC
// instant. Rules, tried in order: an explicit offset is honored directly; a
// zoneless ISO value is parsed as IST wall-clock; otherwise a lenient parse
// is attempted and its wall-clock value reinterpreted as IST.
func ParseIncomingAsUTC(input string) (time.Time, error) {
	if input == "" {
		return time.Time{}, ErrInvalidDate
	}

	for _, f := range zonedFormats {
		if t, err := time.Parse(f, input); err == nil {
			return t.UTC(), nil
		}
	}

	for _, f := range wallClockFormats {
		if t, err := time.ParseInLocation(f, input, IST); err == nil {
			return t.UTC(), nil
		}
	}

	for _, f := range fallbackFormats {
		if t, err := time.Parse(f, input); err == nil {
			return asIST(t).UTC(), nil
		}
	}

	return time.Time{}, ErrInvalidDate
}

// ToISTString renders a stored UTC instant as an IST wall-clock string.
func ToISTString(t time.Time) string {
	return t.In(IST).Format(DisplayFormat)
}

// ToISTISOString renders a stored UTC instant as an ISO string with the IST
// offset, e.g. 2025-12-10T10:00:00.000+05:30.
func ToISTISOString(t time.Time) string {
	return t.In(IST).Format(isoOffsetFormat)
}

// asIST rebuilds t with the same wall-clock value in IST.
func asIST(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), IST)
}
