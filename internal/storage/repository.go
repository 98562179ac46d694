package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"moneybot/internal/core"
	ports "moneybot/internal/sheets"

	_ "modernc.org/sqlite"
)

var _ ports.Ledger = (*SQLiteRepository)(nil)

var cashflowHeader = []string{"Date", "Item", "Category", "Source", "Out", "", "Date", "Item", "Category", "Source", "In"}

var columnHeaders = map[ports.Column]string{
	ports.ColumnCategories: "Category",
	ports.ColumnSources:    "Source",
	ports.ColumnUsers:      "Phone",
	ports.ColumnNames:      "Name",
	ports.ColumnLedgerIDs:  "Spreadsheet",
}

// SQLiteRepository stores many ledgers in one database file. Ledger ids are
// opaque keys; a ledger exists once anything has been written under its id.
type SQLiteRepository struct {
	db   *sql.DB
	cats []string
	srcs []string

	// seeded remembers ledgers whose reference lists have been checked.
	seeded sync.Map
}

// NewSQLiteRepository opens (or creates) the database, applies migrations and
// uses cats and srcs as the initial reference lists of every new ledger.
func NewSQLiteRepository(dbPath string, cats, srcs []string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One writer at a time keeps SQLite away from SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		db:   db,
		cats: core.NormalizeAll(cats),
		srcs: core.NormalizeAll(srcs),
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// ensureSeeded writes the seed reference lists for a ledger that has none.
func (r *SQLiteRepository) ensureSeeded(ctx context.Context, ledgerID string) error {
	if _, ok := r.seeded.Load(ledgerID); ok {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin seed: %w", err)
	}
	defer tx.Rollback()

	var n int
	err = tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM config_values WHERE ledger_id = ?`, ledgerID).Scan(&n)
	if err != nil {
		return fmt.Errorf("count config: %w", err)
	}
	if n == 0 {
		seeds := map[ports.Column][]string{
			ports.ColumnCategories: r.cats,
			ports.ColumnSources:    r.srcs,
		}
		for col, values := range seeds {
			for i, v := range values {
				_, err := tx.ExecContext(ctx,
					`INSERT OR IGNORE INTO config_values (ledger_id, kind, row_index, value) VALUES (?, ?, ?, ?)`,
					ledgerID, string(col), i+1, v)
				if err != nil {
					return fmt.Errorf("seed %s: %w", col, err)
				}
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit seed: %w", err)
	}
	r.seeded.Store(ledgerID, struct{}{})
	return nil
}

func (r *SQLiteRepository) AppendTransaction(ctx context.Context, ledgerID string, t core.TransactionItem) error {
	if err := t.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO cashflow (ledger_id, direction, occurred_at, item, category, source, amount) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ledgerID, string(t.Direction), core.FormatTimestamp(t.Timestamp), t.Item, t.Category, t.Source, t.Amount)
	if err != nil {
		return fmt.Errorf("insert cashflow: %w", err)
	}
	id, _ := res.LastInsertId()

	slog.InfoContext(ctx, "Transaction saved to SQLite",
		"id", id,
		"ledger_id", ledgerID,
		"direction", t.Direction,
		"amount", t.Amount)
	return nil
}

// AppendConfig stores the item one row below the current last row. The
// unique constraint on (ledger_id, kind, row_index) rejects a second writer
// that computed the same row.
func (r *SQLiteRepository) AppendConfig(ctx context.Context, ledgerID string, item core.ConfigItem) error {
	if err := r.ensureSeeded(ctx, ledgerID); err != nil {
		return err
	}
	col := ports.ColumnFor(item.Kind)
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO config_values (ledger_id, kind, row_index, value)
		 VALUES (?, ?, (SELECT COALESCE(MAX(row_index), 0) + 1 FROM config_values WHERE ledger_id = ? AND kind = ?), ?)`,
		ledgerID, string(col), ledgerID, string(col), item.Name)
	if err != nil {
		return fmt.Errorf("insert config %s: %w", col, err)
	}
	return nil
}

func (r *SQLiteRepository) AppendAccount(ctx context.Context, adminLedgerID string, a core.UserAccount) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO accounts (registry_id, external_id, display_name, ledger_id) VALUES (?, ?, ?, ?)`,
		adminLedgerID, a.ExternalID, a.DisplayName, a.LedgerID)
	if err != nil {
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) ReadColumn(ctx context.Context, ledgerID string, col ports.Column) ([]string, error) {
	header, ok := columnHeaders[col]
	if !ok {
		return nil, fmt.Errorf("unknown column %q", col)
	}

	var query string
	switch col {
	case ports.ColumnCategories, ports.ColumnSources:
		if err := r.ensureSeeded(ctx, ledgerID); err != nil {
			return nil, err
		}
		return r.readConfigColumn(ctx, ledgerID, col, header)
	case ports.ColumnUsers:
		query = `SELECT external_id FROM accounts WHERE registry_id = ? ORDER BY id`
	case ports.ColumnNames:
		query = `SELECT display_name FROM accounts WHERE registry_id = ? ORDER BY id`
	case ports.ColumnLedgerIDs:
		query = `SELECT ledger_id FROM accounts WHERE registry_id = ? ORDER BY id`
	}

	rows, err := r.db.QueryContext(ctx, query, ledgerID)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", col, err)
	}
	defer rows.Close()

	out := []string{header}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan %s: %w", col, err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// readConfigColumn returns the column with gaps in row_index kept as blanks.
func (r *SQLiteRepository) readConfigColumn(ctx context.Context, ledgerID string, col ports.Column, header string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT row_index, value FROM config_values WHERE ledger_id = ? AND kind = ? ORDER BY row_index`,
		ledgerID, string(col))
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", col, err)
	}
	defer rows.Close()

	out := []string{header}
	for rows.Next() {
		var (
			idx int
			v   string
		)
		if err := rows.Scan(&idx, &v); err != nil {
			return nil, fmt.Errorf("scan %s: %w", col, err)
		}
		for len(out) < idx {
			out = append(out, "")
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// ReadTransactionRows renders stored entries in the same positional layout a
// spreadsheet ledger uses, header row first.
func (r *SQLiteRepository) ReadTransactionRows(ctx context.Context, ledgerID string) ([][]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT direction, occurred_at, item, category, source, amount FROM cashflow WHERE ledger_id = ? ORDER BY id`,
		ledgerID)
	if err != nil {
		return nil, fmt.Errorf("query cashflow: %w", err)
	}
	defer rows.Close()

	out := [][]string{append([]string(nil), cashflowHeader...)}
	for rows.Next() {
		var (
			direction, occurredAt, item, category, source string
			amount                                        int64
		)
		if err := rows.Scan(&direction, &occurredAt, &item, &category, &source, &amount); err != nil {
			return nil, fmt.Errorf("scan cashflow: %w", err)
		}
		row := make([]string, core.RowWidth)
		start := 0
		if core.Direction(direction) == core.In {
			start = core.RowWidth - 5
		}
		copy(row[start:], []string{occurredAt, item, category, source, strconv.FormatInt(amount, 10)})
		out = append(out, row)
	}
	return out, rows.Err()
}
