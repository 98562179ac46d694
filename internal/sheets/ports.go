package sheets

import (
	"context"

	"moneybot/internal/core"
)

// Column names one of the single-column lists kept in a ledger or in the
// admin registry.
type Column string

const (
	ColumnCategories Column = "categories"
	ColumnSources    Column = "sources"
	ColumnUsers      Column = "users"
	ColumnNames      Column = "names"
	ColumnLedgerIDs  Column = "ledger_ids"
)

// ColumnFor maps a config kind to the column it extends.
func ColumnFor(kind core.ConfigKind) Column {
	if kind == core.KindSource {
		return ColumnSources
	}
	return ColumnCategories
}

// Ports for outbound adapters.
type (
	LedgerWriter interface {
		AppendTransaction(ctx context.Context, ledgerID string, t core.TransactionItem) error
		// AppendConfig places the item right after the current end of its
		// column. Callers must serialize calls per ledger.
		AppendConfig(ctx context.Context, ledgerID string, c core.ConfigItem) error
	}

	AccountWriter interface {
		AppendAccount(ctx context.Context, adminLedgerID string, a core.UserAccount) error
	}

	// ColumnReader returns a column top to bottom, header row included.
	// Blank cells inside the column are returned as empty strings so that
	// parallel columns stay aligned by index.
	ColumnReader interface {
		ReadColumn(ctx context.Context, ledgerID string, col Column) ([]string, error)
	}

	// TransactionReader returns the raw cash flow rows, positionally encoded
	// as described by core.DecodeTransactionRow.
	TransactionReader interface {
		ReadTransactionRows(ctx context.Context, ledgerID string) ([][]string, error)
	}

	// Ledger is everything a backend must provide.
	Ledger interface {
		LedgerWriter
		AccountWriter
		ColumnReader
		TransactionReader
	}
)
