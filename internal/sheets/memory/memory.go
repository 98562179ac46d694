package memory

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"moneybot/internal/core"
	ports "moneybot/internal/sheets"
)

var _ ports.Ledger = (*Store)(nil)

// Store is an in-process backend holding any number of ledgers. Unknown
// ledger ids are created on first use from the seed reference lists, the
// way a user copies the template spreadsheet.
type Store struct {
	mu        sync.Mutex
	cats      []string
	srcs      []string
	ledgers   map[string]*ledger
	forbidden map[string]bool

	// configWriteDelay widens the window between computing a config row
	// index and writing it.
	configWriteDelay time.Duration
}

type ledger struct {
	columns  map[ports.Column][]string
	cashflow [][]string
}

func New(cats, srcs []string) *Store {
	return &Store{
		cats:      dedupe(cats),
		srcs:      dedupe(srcs),
		ledgers:   make(map[string]*ledger),
		forbidden: make(map[string]bool),
	}
}

func NewFromFiles(base string) *Store {
	return New(LoadSeeds(base))
}

// LoadSeeds reads seed_categories.txt and seed_sources.txt from base, one
// value per line, falling back to a built-in list when a file is missing.
func LoadSeeds(base string) (cats, srcs []string) {
	cats = readLines(filepath.Join(base, "seed_categories.txt"))
	srcs = readLines(filepath.Join(base, "seed_sources.txt"))
	if len(cats) == 0 {
		cats = []string{"Food", "Transport", "Bills", "Shopping", "Salary"}
	}
	if len(srcs) == 0 {
		srcs = []string{"Cash", "Bank", "E wallet"}
	}
	return cats, srcs
}

// Forbid makes every call against ledgerID fail with core.ErrAccessDenied.
func (s *Store) Forbid(ledgerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.forbidden[ledgerID] = true
}

func (s *Store) SetConfigWriteDelay(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.configWriteDelay = d
}

// ledgerLocked returns the ledger, creating it when missing. s.mu must be held.
func (s *Store) ledgerLocked(id string) (*ledger, error) {
	if s.forbidden[id] {
		return nil, fmt.Errorf("ledger %s: %w", id, core.ErrAccessDenied)
	}
	l, ok := s.ledgers[id]
	if !ok {
		l = &ledger{
			columns: map[ports.Column][]string{
				ports.ColumnCategories: append([]string{"Category"}, s.cats...),
				ports.ColumnSources:    append([]string{"Source"}, s.srcs...),
				ports.ColumnUsers:      {"Phone"},
				ports.ColumnNames:      {"Name"},
				ports.ColumnLedgerIDs:  {"Spreadsheet"},
			},
			cashflow: [][]string{{"Date", "Item", "Category", "Source", "Out", "", "Date", "Item", "Category", "Source", "In"}},
		}
		s.ledgers[id] = l
	}
	return l, nil
}

func (s *Store) AppendTransaction(_ context.Context, ledgerID string, t core.TransactionItem) error {
	if err := t.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	l, err := s.ledgerLocked(ledgerID)
	if err != nil {
		return err
	}
	row := make([]string, core.RowWidth)
	start := 0
	if t.Direction == core.In {
		start = core.RowWidth - 5
	}
	for i, v := range t.Row() {
		row[start+i] = cellString(v)
	}
	l.cashflow = append(l.cashflow, row)
	return nil
}

// AppendConfig reads the column length, then writes at that index in a
// second step, exactly like the spreadsheet backend does. Two unserialized
// calls for the same column can pick the same index.
func (s *Store) AppendConfig(ctx context.Context, ledgerID string, c core.ConfigItem) error {
	col := ports.ColumnFor(c.Kind)

	s.mu.Lock()
	l, err := s.ledgerLocked(ledgerID)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	idx := len(l.columns[col])
	delay := s.configWriteDelay
	s.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	values := l.columns[col]
	if idx < len(values) {
		values[idx] = c.Name
	} else {
		values = append(values, c.Name)
	}
	l.columns[col] = values
	return nil
}

func (s *Store) AppendAccount(_ context.Context, adminLedgerID string, a core.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, err := s.ledgerLocked(adminLedgerID)
	if err != nil {
		return err
	}
	l.columns[ports.ColumnUsers] = append(l.columns[ports.ColumnUsers], a.ExternalID)
	l.columns[ports.ColumnNames] = append(l.columns[ports.ColumnNames], a.DisplayName)
	l.columns[ports.ColumnLedgerIDs] = append(l.columns[ports.ColumnLedgerIDs], a.LedgerID)
	return nil
}

func (s *Store) ReadColumn(_ context.Context, ledgerID string, col ports.Column) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, err := s.ledgerLocked(ledgerID)
	if err != nil {
		return nil, err
	}
	values, ok := l.columns[col]
	if !ok {
		return nil, fmt.Errorf("unknown column %q", col)
	}
	return append([]string(nil), values...), nil
}

func (s *Store) ReadTransactionRows(_ context.Context, ledgerID string) ([][]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, err := s.ledgerLocked(ledgerID)
	if err != nil {
		return nil, err
	}
	out := make([][]string, len(l.cashflow))
	for i, row := range l.cashflow {
		out[i] = append([]string(nil), row...)
	}
	return out, nil
}

// AppendRawRow adds a cash flow row as-is, for seeding historical data.
func (s *Store) AppendRawRow(ledgerID string, row []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, err := s.ledgerLocked(ledgerID)
	if err != nil {
		return err
	}
	l.cashflow = append(l.cashflow, append([]string(nil), row...))
	return nil
}

func cellString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	default:
		return fmt.Sprint(x)
	}
}

func readLines(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return dedupe(out)
}

func dedupe(in []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
