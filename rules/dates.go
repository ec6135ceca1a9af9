package rules

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// SerialEpoch is day zero of spreadsheet serial dates
var SerialEpoch = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)

// dateLayouts are tried in order for strings without a slash.
// Layouts without a zone are read as UTC.
var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseDate converts a record value to a time.
// It accepts times, spreadsheet serial numbers, DD/MM/YYYY strings and
// ISO-style strings. The boolean is false for anything unparseable.
func ParseDate(value any) (time.Time, bool) {
	switch v := value.(type) {
	case nil:
		return time.Time{}, false
	case time.Time:
		return v, !v.IsZero()
	case *time.Time:
		if v == nil {
			return time.Time{}, false
		}
		return *v, !v.IsZero()
	case string:
		return parseDateString(v)
	}

	serial, ok := numberValue(value)
	if !ok {
		return time.Time{}, false
	}
	return serialToTime(serial)
}

func serialToTime(serial float64) (time.Time, bool) {
	if math.IsNaN(serial) || math.IsInf(serial, 0) {
		return time.Time{}, false
	}
	// Past roughly 290 years a Duration overflows
	if math.Abs(serial) > 100000 {
		return time.Time{}, false
	}
	return SerialEpoch.Add(time.Duration(serial * float64(24*time.Hour))), true
}

func parseDateString(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	if strings.Contains(s, "/") {
		iso, err := slashDateToISO(s)
		if err != nil {
			return time.Time{}, false
		}
		s = iso
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// slashDateToISO rewrites DD/MM/YYYY as YYYY-MM-DD
func slashDateToISO(s string) (string, error) {
	parts := strings.Split(s, "/")
	if len(parts) != 3 {
		return "", fmt.Errorf("date %q is not DD/MM/YYYY", s)
	}

	day, err := strconv.Atoi(parts[0])
	if err != nil {
		return "", fmt.Errorf("invalid day in %q: %w", s, err)
	}
	month, err := strconv.Atoi(parts[1])
	if err != nil {
		return "", fmt.Errorf("invalid month in %q: %w", s, err)
	}
	year, err := strconv.Atoi(parts[2])
	if err != nil {
		return "", fmt.Errorf("invalid year in %q: %w", s, err)
	}

	if year < 1 || year > 9999 || month < 1 || month > 12 || day < 1 {
		return "", fmt.Errorf("date %q out of range", s)
	}
	// time.Date normalises 31/02 into March; reject instead
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Day() != day || int(t.Month()) != month {
		return "", fmt.Errorf("date %q does not exist", s)
	}

	return fmt.Sprintf("%04d-%02d-%02d", year, month, day), nil
}

// sameDayOrder compares the calendar days of a and b, each read in its own
// location: -1 if a is an earlier day, 0 if same day, 1 if later.
func sameDayOrder(a, b time.Time) int {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	da := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	db := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	return da.Compare(db)
}
