package core

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	// TimestampLayout is how transaction timestamps are written to the ledger.
	TimestampLayout = "01-02-2006 15:04:05"

	// DateLayout is the user-facing day format (dd/mm/yyyy).
	DateLayout = "02/01/2006"
)

// legacyLayouts are accepted when reading rows written by older revisions or
// typed into the sheet by hand.
var legacyLayouts = []string{
	TimestampLayout,
	"01-02-2006",
	"02/01/2006 15:04:05",
	DateLayout,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func FormatTimestamp(t time.Time) string {
	return t.Format(TimestampLayout)
}

// ParseTimestamp reads a ledger date cell in loc.
func ParseTimestamp(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if loc == nil {
		loc = time.UTC
	}
	for _, layout := range legacyLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
}

// ParseDate parses a strict dd/mm/yyyy calendar date in loc. Day, month and
// year must round-trip exactly, so 31/02/2024 is rejected instead of being
// normalized into March.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	parts := strings.Split(strings.TrimSpace(s), "/")
	if len(parts) != 3 || len(parts[2]) != 4 || len(parts[0]) == 0 || len(parts[0]) > 2 || len(parts[1]) == 0 || len(parts[1]) > 2 {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	var nums [3]int
	for i, p := range parts {
		if !isDigits(p) {
			return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
		}
		n, err := strconv.Atoi(p)
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
		}
		nums[i] = n
	}
	day, month, year := nums[0], nums[1], nums[2]
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, loc)
	if t.Day() != day || int(t.Month()) != month || t.Year() != year {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return t, nil
}

// SameDay reports whether a and b fall on the same calendar date.
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
