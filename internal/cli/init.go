// Package cli provides the start-up steps shared by cmd/moneybot and
// cmd/moneybot-worker.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"moneybot/internal/backend"
	"moneybot/internal/cache"
	"moneybot/internal/config"
	"moneybot/internal/core"
	applog "moneybot/internal/log"
	"moneybot/internal/refcache"
	"moneybot/internal/services"

	"github.com/joho/godotenv"
)

// SetupLogger builds the process logger from LOG_LEVEL and LOG_FORMAT and
// makes it the slog default.
func SetupLogger(cfg *config.Config, component string) *applog.Logger {
	logger := applog.New(applog.Config{
		Level:     applog.ParseLevel(cfg.LogLevel),
		Format:    cfg.LogFormat,
		Component: component,
		Output:    os.Stdout,
	})
	applog.SetDefault(logger)
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads the .env file and the configuration, sets up
// logging and validates. The process exits on validation failure.
func LoadAndValidateConfig(component string, validate func(*config.Config) error) (*config.Config, *applog.Logger) {
	LoadEnvFile()
	cfg := config.Load()
	logger := SetupLogger(cfg, component)
	if validate == nil {
		validate = (*config.Config).Validate
	}
	if err := validate(cfg); err != nil {
		logger.Error("Configuration validation failed", applog.FieldError, err)
		os.Exit(1)
	}
	return cfg, logger
}

// InitBackend opens the configured ledger backend or exits the process.
func InitBackend(ctx context.Context, logger *applog.Logger, cfg *config.Config) *backend.BackendResult {
	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", applog.FieldError, err)
		os.Exit(1)
	}
	res, err := backend.NewFactory(logger.WithComponent(applog.ComponentBackend).Logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backend", applog.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	return res
}

// NewBotService wires the reference cache and the bot. The returned manager
// is nil unless REFERENCE_CACHE_TTL enables caching; run it to evict
// expired entries.
func NewBotService(cfg *config.Config, res *backend.BackendResult, logger *applog.Logger) (*services.BotService, *cache.Manager) {
	loc, err := cfg.Location()
	if err != nil {
		loc = time.UTC
	}

	opts := []refcache.Option{refcache.WithLogger(logger.WithComponent(applog.ComponentCache).Logger)}
	var manager *cache.Manager
	if cfg.ReferenceCacheTTL > 0 {
		lru := cache.NewLRUCache[core.ReferenceSet](cfg.ReferenceCacheSize, cfg.ReferenceCacheTTL)
		opts = append(opts, refcache.WithReferenceCache(lru))
		manager = cache.NewManager(logger.WithComponent(applog.ComponentCache).Logger)
		manager.Register("references", lru)
	}
	refs := refcache.New(res.Ledger, cfg.AdminLedgerID, opts...)

	bot := services.NewBotService(res.Ledger, refs, services.Options{
		AdminLedgerID:       cfg.AdminLedgerID,
		ServiceAccountEmail: cfg.ServiceAccountEmail,
		TemplateLink:        cfg.TemplateLink,
		HelpTokens:          cfg.HelpTokens,
		BackendTimeout:      cfg.BackendTimeout,
		Location:            loc,
		Logger:              logger.Logger,
	})
	return bot, manager
}

// GracefulShutdown returns a context cancelled on SIGINT, SIGTERM or a call
// to stop. Cleanup then runs with a context bounded by timeout, and done is
// closed once it returns.
func GracefulShutdown(logger *applog.Logger, timeout time.Duration, cleanup func(context.Context)) (ctx context.Context, stop func(), done <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	finished := make(chan struct{})

	go func() {
		defer close(finished)
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigChan)

		select {
		case sig := <-sigChan:
			logger.Info("Shutdown signal received", "signal", sig.String())
		case <-ctx.Done():
		}
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()
		if cleanup != nil {
			cleanup(shutdownCtx)
		}
		if shutdownCtx.Err() != nil {
			logger.Warn("Shutdown timeout reached")
			return
		}
		logger.Info("Shutdown complete")
	}()

	return ctx, cancel, finished
}
