package backend

import (
	"context"
	"fmt"
	"log/slog"

	gsheet "moneybot/internal/sheets/google"
	"moneybot/internal/sheets/memory"
	"moneybot/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{logger: logger}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case SQLiteBackend:
		return f.createSQLiteBackend(config)
	case SheetsBackend:
		return f.createSheetsBackend(ctx, config)
	case MemoryBackend:
		return f.createMemoryBackend(config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createSQLiteBackend(config Config) (*BackendResult, error) {
	cats, srcs := memory.LoadSeeds(seedDir(config))
	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath, cats, srcs)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	f.logger.Info("Initialized SQLite backend",
		"db_path", config.SQLiteDBPath,
		"seed_categories", len(cats),
		"seed_sources", len(srcs))

	return &BackendResult{
		Ledger:  repo,
		Cleanup: repo.Close,
	}, nil
}

func (f *DefaultFactory) createSheetsBackend(ctx context.Context, config Config) (*BackendResult, error) {
	cli, err := gsheet.New(ctx,
		gsheet.Credentials{JSON: config.GoogleServiceAccountJSON, File: config.GoogleServiceAccountFile},
		gsheet.SheetNames{Cashflow: config.CashflowSheetName, Config: config.ConfigSheetName, Accounts: config.AccountsSheetName})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
	}

	f.logger.Info("Initialized Google Sheets backend")

	return &BackendResult{Ledger: cli}, nil
}

func (f *DefaultFactory) createMemoryBackend(config Config) (*BackendResult, error) {
	dir := seedDir(config)
	store := memory.NewFromFiles(dir)

	f.logger.Info("Initialized memory backend", "seed_directory", dir)

	return &BackendResult{Ledger: store}, nil
}

func seedDir(config Config) string {
	if config.SeedDirectory == "" {
		return "data"
	}
	return config.SeedDirectory
}
