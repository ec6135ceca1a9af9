package rules

import (
	"math"
	"testing"
	"time"
)

// TestParseDateSlashFormatIsDayFirst verifies DD/MM/YYYY is not read as MM/DD/YYYY
func TestParseDateSlashFormatIsDayFirst(t *testing.T) {
	got, ok := ParseDate("01/02/2024")
	if !ok {
		t.Fatal("ParseDate(\"01/02/2024\") should succeed")
	}

	want := time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("ParseDate(\"01/02/2024\") = %v, want %v", got, want)
	}
}

// TestParseDateSerial verifies spreadsheet serial numbers use the 1899-12-30 epoch
func TestParseDateSerial(t *testing.T) {
	testCases := []struct {
		name  string
		value any
		want  time.Time
	}{
		{"float serial", 45000.0, time.Date(2023, time.March, 15, 0, 0, 0, 0, time.UTC)},
		{"int serial", 45000, time.Date(2023, time.March, 15, 0, 0, 0, 0, time.UTC)},
		{"int64 serial", int64(1), time.Date(1899, time.December, 31, 0, 0, 0, 0, time.UTC)},
		{"fractional serial", 45000.5, time.Date(2023, time.March, 15, 12, 0, 0, 0, time.UTC)},
		{"zero serial", 0, SerialEpoch},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := ParseDate(tc.value)
			if !ok {
				t.Fatalf("ParseDate(%v) should succeed", tc.value)
			}
			if !got.Equal(tc.want) {
				t.Errorf("ParseDate(%v) = %v, want %v", tc.value, got, tc.want)
			}
		})
	}
}

// TestParseDateStrings verifies the accepted string layouts
func TestParseDateStrings(t *testing.T) {
	testCases := []struct {
		name  string
		value string
		want  time.Time
	}{
		{"ISO date", "2024-03-15", time.Date(2024, time.March, 15, 0, 0, 0, 0, time.UTC)},
		{"RFC3339", "2024-03-15T10:30:00Z", time.Date(2024, time.March, 15, 10, 30, 0, 0, time.UTC)},
		{"RFC3339 with offset", "2024-03-15T10:30:00+01:00", time.Date(2024, time.March, 15, 9, 30, 0, 0, time.UTC)},
		{"ISO without zone", "2024-03-15T10:30:00", time.Date(2024, time.March, 15, 10, 30, 0, 0, time.UTC)},
		{"SQL style", "2024-03-15 10:30:00", time.Date(2024, time.March, 15, 10, 30, 0, 0, time.UTC)},
		{"padded slash date", " 15/03/2024 ", time.Date(2024, time.March, 15, 0, 0, 0, 0, time.UTC)},
		{"unpadded slash date", "5/3/2024", time.Date(2024, time.March, 5, 0, 0, 0, 0, time.UTC)},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := ParseDate(tc.value)
			if !ok {
				t.Fatalf("ParseDate(%q) should succeed", tc.value)
			}
			if !got.Equal(tc.want) {
				t.Errorf("ParseDate(%q) = %v, want %v", tc.value, got, tc.want)
			}
		})
	}
}

// TestParseDateInvalid verifies unparseable input yields no date and no panic
func TestParseDateInvalid(t *testing.T) {
	var nilTime *time.Time

	testCases := []struct {
		name  string
		value any
	}{
		{"nil", nil},
		{"empty string", ""},
		{"blank string", "   "},
		{"garbage", "not a date"},
		{"two slash parts", "01/2024"},
		{"four slash parts", "01/02/2024/05"},
		{"non numeric day", "aa/02/2024"},
		{"month 13", "01/13/2024"},
		{"day 31 in february", "31/02/2024"},
		{"slash date with time", "01/02/2024 10:00"},
		{"zero time", time.Time{}},
		{"nil time pointer", nilTime},
		{"NaN serial", math.NaN()},
		{"infinite serial", math.Inf(1)},
		{"huge serial", 1e12},
		{"bool", true},
		{"slice", []string{"2024-01-01"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got, ok := ParseDate(tc.value); ok {
				t.Errorf("ParseDate(%v) = %v, want no date", tc.value, got)
			}
		})
	}
}

// TestParseDateKeepsTimes verifies time values are returned unchanged
func TestParseDateKeepsTimes(t *testing.T) {
	paris := time.FixedZone("CET", 3600)
	in := time.Date(2024, time.June, 1, 8, 0, 0, 0, paris)

	got, ok := ParseDate(in)
	if !ok || !got.Equal(in) || got.Location() != paris {
		t.Errorf("ParseDate(time) = %v, %v; want %v, true", got, ok, in)
	}

	got, ok = ParseDate(&in)
	if !ok || !got.Equal(in) {
		t.Errorf("ParseDate(*time) = %v, %v; want %v, true", got, ok, in)
	}
}

func TestSameDayOrder(t *testing.T) {
	base := time.Date(2024, time.March, 15, 0, 0, 0, 0, time.UTC)

	testCases := []struct {
		name string
		a, b time.Time
		want int
	}{
		{"same instant", base, base, 0},
		{"same day later hour", base, base.Add(23 * time.Hour), 0},
		{"previous day", base.Add(-time.Minute), base, -1},
		{"next day", base.Add(24 * time.Hour), base.Add(time.Hour), 1},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := sameDayOrder(tc.a, tc.b); got != tc.want {
				t.Errorf("sameDayOrder(%v, %v) = %d, want %d", tc.a, tc.b, got, tc.want)
			}
		})
	}
}
