package backend

import (
	"context"

	"moneybot/internal/sheets"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult contains the ledger backend and optional cleanup function
type BackendResult struct {
	Ledger  sheets.Ledger
	Cleanup CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// Seed lists for memory and sqlite ledgers
	SeedDirectory string

	// SQLite specific
	SQLiteDBPath string

	// Google Sheets specific
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string
	CashflowSheetName        string
	ConfigSheetName          string
	AccountsSheetName        string
}

// BackendType represents the type of backend
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	SheetsBackend BackendType = "sheets"
	MemoryBackend BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, SheetsBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
