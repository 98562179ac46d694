package core

import (
	"errors"
	"testing"
	"time"
)

func TestParseDateStrict(t *testing.T) {
	cases := []struct {
		in string
		ok bool
	}{
		{"29/02/2024", true},
		{"1/2/2024", true},
		{"31/12/2023", true},
		{"31/02/2024", false},
		{"29/02/2023", false},
		{"00/01/2024", false},
		{"01/13/2024", false},
		{"01/01/24", false},
		{"2024-01-01", false},
		{"aa/01/2024", false},
		{"", false},
	}
	for _, tc := range cases {
		_, err := ParseDate(tc.in, time.UTC)
		if tc.ok && err != nil {
			t.Fatalf("%q expected ok, got %v", tc.in, err)
		}
		if !tc.ok && !errors.Is(err, ErrInvalidDate) {
			t.Fatalf("%q expected ErrInvalidDate, got %v", tc.in, err)
		}
	}
}

func TestParseDateUsesLocation(t *testing.T) {
	loc := time.FixedZone("WIB", 7*3600)
	d, err := ParseDate("15/10/2026", loc)
	if err != nil {
		t.Fatal(err)
	}
	if d.Location() != loc || d.Day() != 15 || d.Month() != time.October || d.Year() != 2026 {
		t.Fatalf("unexpected date %v", d)
	}
}

func TestTimestampRoundTrip(t *testing.T) {
	ts := time.Date(2024, 3, 9, 14, 5, 6, 0, time.UTC)
	s := FormatTimestamp(ts)
	if s != "03-09-2024 14:05:06" {
		t.Fatalf("unexpected format %q", s)
	}
	back, err := ParseTimestamp(s, time.UTC)
	if err != nil || !back.Equal(ts) {
		t.Fatalf("round trip failed: %v %v", back, err)
	}
}

func TestParseTimestampLegacyLayouts(t *testing.T) {
	for _, s := range []string{"03-09-2024", "09/03/2024", "2024-03-09", "2024-03-09 10:00:00"} {
		got, err := ParseTimestamp(s, time.UTC)
		if err != nil {
			t.Fatalf("%q: %v", s, err)
		}
		if got.Year() != 2024 || got.Month() != time.March || got.Day() != 9 {
			t.Fatalf("%q parsed to %v", s, got)
		}
	}
	if _, err := ParseTimestamp("Date", time.UTC); err == nil {
		t.Fatal("header cell should not parse")
	}
}
