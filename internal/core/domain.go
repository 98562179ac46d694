package core

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	In  Direction = "in"
	Out Direction = "out"

	KindCategory ConfigKind = "Category"
	KindSource   ConfigKind = "Source"
)

type (
	// Direction tells whether an amount is incoming or outgoing cash flow.
	Direction string

	// ConfigKind names the reference list a ConfigItem extends.
	ConfigKind string

	UserAccount struct {
		ExternalID  string
		DisplayName string
		LedgerID    string
	}

	// ReferenceSet holds the valid categories and sources of one ledger.
	ReferenceSet struct {
		Categories []string
		Sources    []string
	}

	TransactionItem struct {
		Timestamp time.Time
		Item      string
		Category  string
		Source    string
		Amount    int64
		Direction Direction
	}

	ConfigItem struct {
		Name string
		Kind ConfigKind
	}
)

var (
	ErrNotRegistered        = errors.New("not registered")
	ErrAccessDenied         = errors.New("access denied")
	ErrLedgerNotFound       = errors.New("ledger not found")
	ErrInvalidLink          = errors.New("invalid spreadsheet link")
	ErrInvalidRange         = errors.New("invalid date range")
	ErrInvalidMonth         = errors.New("invalid month")
	ErrInvalidDate          = errors.New("invalid date")
	ErrInvalidSummaryFormat = errors.New("invalid summary format")
	ErrInvalidAmount        = errors.New("invalid amount")
	ErrEmptyItem            = errors.New("empty item")
)

// ValidationError reports the first field of a line that failed validation.
type ValidationError struct {
	Field string
	Value string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %q", e.Field, e.Value)
}

// ParseDirection accepts "in" or "out" in any case.
func ParseDirection(s string) (Direction, bool) {
	switch Direction(strings.ToLower(strings.TrimSpace(s))) {
	case In:
		return In, true
	case Out:
		return Out, true
	}
	return "", false
}

// ParseConfigKind accepts a normalized or raw kind name.
func ParseConfigKind(s string) (ConfigKind, bool) {
	switch ConfigKind(Normalize(strings.TrimSpace(s))) {
	case KindCategory:
		return KindCategory, true
	case KindSource:
		return KindSource, true
	}
	return "", false
}

func (s ReferenceSet) HasCategory(name string) bool {
	return contains(s.Categories, name)
}

func (s ReferenceSet) HasSource(name string) bool {
	return contains(s.Sources, name)
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

func (t TransactionItem) Validate() error {
	if strings.TrimSpace(t.Item) == "" {
		return ErrEmptyItem
	}
	if t.Amount < 0 {
		return ErrInvalidAmount
	}
	if _, ok := ParseDirection(string(t.Direction)); !ok {
		return &ValidationError{Field: "direction", Value: string(t.Direction)}
	}
	return nil
}

// Row returns the positional block written to either side of the cash flow
// sheet: date, item, category, source, amount.
func (t TransactionItem) Row() []any {
	return []any{FormatTimestamp(t.Timestamp), t.Item, t.Category, t.Source, t.Amount}
}

func (a UserAccount) Row() []any {
	return []any{a.ExternalID, a.DisplayName, a.LedgerID}
}

// Signed returns the amount with outgoing flows negated.
func (t TransactionItem) Signed() int64 {
	if t.Direction == Out {
		return -t.Amount
	}
	return t.Amount
}

// ParseAmount parses a run of digits into a non-negative amount.
func ParseAmount(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidAmount
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, ErrInvalidAmount
		}
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	return v, nil
}
