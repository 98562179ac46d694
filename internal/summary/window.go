// Package summary computes income, expense and balance over a date window.
package summary

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"

	"moneybot/internal/core"
)

// Window is a half-open interval [Start, End) of calendar days.
type Window struct {
	Label string
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// ParseWindow resolves the argument of a summary query. Shapes are tried in
// order: empty (today), a dd/mm/yyyy - dd/mm/yyyy range, a four digit year,
// a month name with an optional year, a single dd/mm/yyyy date. Dates are
// interpreted in now's location.
func ParseWindow(rawArgs string, now time.Time) (Window, error) {
	args := strings.TrimSpace(rawArgs)
	loc := now.Location()

	switch {
	case args == "":
		return day(now), nil

	case strings.Contains(args, "-"):
		return parseRange(args, loc)

	case len(args) == 4 && isDigits(args):
		year, _ := strconv.Atoi(args)
		start := time.Date(year, time.January, 1, 0, 0, 0, 0, loc)
		return Window{Label: args, Start: start, End: start.AddDate(1, 0, 0)}, nil
	}

	fields := strings.Fields(args)
	if isLetters(fields[0]) && (len(fields) == 1 || (len(fields) == 2 && len(fields[1]) == 4 && isDigits(fields[1]))) {
		return parseMonth(fields, now)
	}

	if strings.Contains(args, "/") && len(fields) == 1 {
		d, err := core.ParseDate(args, loc)
		if err != nil {
			// A single date that does not exist matches none of the shapes.
			return Window{}, fmt.Errorf("%w: %q is not a calendar date", core.ErrInvalidSummaryFormat, args)
		}
		return day(d), nil
	}

	return Window{}, fmt.Errorf("%w: %q", core.ErrInvalidSummaryFormat, args)
}

func day(t time.Time) Window {
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	return Window{Label: start.Format(core.DateLayout), Start: start, End: start.AddDate(0, 0, 1)}
}

// parseRange accepts "dd/mm/yyyy - dd/mm/yyyy". Both ends are included.
func parseRange(args string, loc *time.Location) (Window, error) {
	parts := strings.Split(args, "-")
	if len(parts) != 2 {
		return Window{}, fmt.Errorf("%w: %q", core.ErrInvalidRange, args)
	}
	start, err := core.ParseDate(parts[0], loc)
	if err != nil {
		return Window{}, fmt.Errorf("%w: %v", core.ErrInvalidRange, err)
	}
	end, err := core.ParseDate(parts[1], loc)
	if err != nil {
		return Window{}, fmt.Errorf("%w: %v", core.ErrInvalidRange, err)
	}
	if end.Before(start) {
		return Window{}, fmt.Errorf("%w: end %s before start %s", core.ErrInvalidRange,
			end.Format(core.DateLayout), start.Format(core.DateLayout))
	}
	return Window{
		Label: start.Format(core.DateLayout) + " - " + end.Format(core.DateLayout),
		Start: start,
		End:   end.AddDate(0, 0, 1),
	}, nil
}

// parseMonth accepts a full English month name and an optional year,
// defaulting to the year of now.
func parseMonth(fields []string, now time.Time) (Window, error) {
	month, ok := monthByName(fields[0])
	if !ok {
		return Window{}, fmt.Errorf("%w: %q", core.ErrInvalidMonth, fields[0])
	}
	year := now.Year()
	if len(fields) == 2 {
		year, _ = strconv.Atoi(fields[1])
	}
	start := time.Date(year, month, 1, 0, 0, 0, 0, now.Location())
	return Window{
		Label: fmt.Sprintf("%s %d", month, year),
		Start: start,
		End:   start.AddDate(0, 1, 0),
	}, nil
}

func monthByName(name string) (time.Month, bool) {
	for m := time.January; m <= time.December; m++ {
		if strings.EqualFold(name, m.String()) {
			return m, true
		}
	}
	return 0, false
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

func isLetters(s string) bool {
	for _, r := range s {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return s != ""
}
