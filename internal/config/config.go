package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"
)

type Config struct {
	// HTTP Server
	Port               string
	RateLimitPerMinute int
	TrustedProxies     []string
	ShutdownTimeout    time.Duration

	// Backend selection
	DataBackend   string
	AdminLedgerID string
	SeedDir       string

	// Database
	SQLiteDBPath string

	// Google Sheets
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string
	CashflowSheetName        string
	ConfigSheetName          string
	AccountsSheetName        string

	// Bot behaviour
	ServiceAccountEmail string
	TemplateLink        string
	Timezone            string
	HelpTokens          []string
	BackendTimeout      time.Duration
	ReferenceCacheTTL   time.Duration
	ReferenceCacheSize  int

	// AMQP
	AMQPURL          string
	AMQPExchange     string
	AMQPInboundQueue string
	AMQPReplyQueue   string

	// Logging
	LogLevel  string
	LogFormat string
}

func Load() *Config {
	cfg := &Config{
		Port:               getEnv("PORT", "8081"),
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
		TrustedProxies:     getEnvList("TRUSTED_PROXIES", nil),
		ShutdownTimeout:    getEnvDuration("SHUTDOWN_TIMEOUT", 15*time.Second),

		DataBackend:   getEnv("DATA_BACKEND", "memory"),
		AdminLedgerID: getEnv("ADMIN_LEDGER_ID", ""),
		SeedDir:       getEnv("SEED_DIR", "./data"),

		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/moneybot.db"),

		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", getEnv("GOOGLE_APPLICATION_CREDENTIALS", "")),
		CashflowSheetName:        getEnv("CASHFLOW_SHEET_NAME", "Cashflow"),
		ConfigSheetName:          getEnv("CONFIG_SHEET_NAME", "Config"),
		AccountsSheetName:        getEnv("ACCOUNTS_SHEET_NAME", "Accounts"),

		ServiceAccountEmail: getEnv("SERVICE_ACCOUNT_EMAIL", ""),
		TemplateLink:        getEnv("TEMPLATE_LINK", ""),
		Timezone:            getEnv("TIMEZONE", "UTC"),
		HelpTokens:          getEnvList("HELP_TOKENS", nil),
		BackendTimeout:      getEnvDuration("BACKEND_TIMEOUT", 10*time.Second),
		ReferenceCacheTTL:   getEnvDuration("REFERENCE_CACHE_TTL", 0),
		ReferenceCacheSize:  getEnvInt("REFERENCE_CACHE_SIZE", 256),

		AMQPURL:          getEnv("AMQP_URL", ""),
		AMQPExchange:     getEnv("AMQP_EXCHANGE", "moneybot"),
		AMQPInboundQueue: getEnv("AMQP_INBOUND_QUEUE", "inbound_messages"),
		AMQPReplyQueue:   getEnv("AMQP_REPLY_QUEUE", "outbound_replies"),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
	}

	return cfg
}

// Location returns the zone used for arrival timestamps and summary windows.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(c.Timezone)
}

// QueueEnabled reports whether messages go through AMQP.
func (c *Config) QueueEnabled() bool {
	return c.AMQPURL != ""
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	validBackends := []string{"memory", "sheets", "sqlite"}
	isValidBackend := false
	for _, backend := range validBackends {
		if c.DataBackend == backend {
			isValidBackend = true
			break
		}
	}
	if !isValidBackend {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	if strings.TrimSpace(c.AdminLedgerID) == "" {
		errors = append(errors, "ADMIN_LEDGER_ID is required: it names the ledger holding the user registry")
	}

	if c.DataBackend == "sqlite" {
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else {
			dir := filepath.Dir(c.SQLiteDBPath)
			if dir != "." && dir != "" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					if err := os.MkdirAll(dir, 0755); err != nil {
						errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
					}
				}
			}
		}
	}

	if c.DataBackend == "sheets" {
		hasJSON := c.GoogleServiceAccountJSON != ""
		hasFile := c.GoogleServiceAccountFile != ""
		if !hasJSON && !hasFile {
			errors = append(errors, "either GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE must be provided for sheets backend")
		}
		if hasFile && !hasJSON {
			if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
			}
		}
		for name, value := range map[string]string{
			"CASHFLOW_SHEET_NAME": c.CashflowSheetName,
			"CONFIG_SHEET_NAME":   c.ConfigSheetName,
			"ACCOUNTS_SHEET_NAME": c.AccountsSheetName,
		} {
			if strings.TrimSpace(value) == "" {
				errors = append(errors, fmt.Sprintf("%s cannot be empty when using sheets backend", name))
			}
		}
	}

	if _, err := c.Location(); err != nil {
		errors = append(errors, fmt.Sprintf("invalid timezone '%s': %v", c.Timezone, err))
	}

	if c.BackendTimeout < 0 {
		errors = append(errors, fmt.Sprintf("invalid backend timeout %v: must not be negative", c.BackendTimeout))
	} else if c.BackendTimeout > 5*time.Minute {
		errors = append(errors, fmt.Sprintf("invalid backend timeout %v: must be at most 5 minutes", c.BackendTimeout))
	}
	if c.ReferenceCacheTTL < 0 {
		errors = append(errors, fmt.Sprintf("invalid reference cache TTL %v: must not be negative", c.ReferenceCacheTTL))
	}
	if c.ReferenceCacheTTL > 0 && c.ReferenceCacheSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid reference cache size %d: must be at least 1", c.ReferenceCacheSize))
	}

	if c.RateLimitPerMinute < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1 request per minute", c.RateLimitPerMinute))
	}
	for _, cidr := range c.TrustedProxies {
		if _, _, err := net.ParseCIDR(cidr); err != nil {
			errors = append(errors, fmt.Sprintf("invalid trusted proxy '%s': must be a CIDR", cidr))
		}
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPInboundQueue == "" || c.AMQPReplyQueue == "" {
			errors = append(errors, "AMQP inbound and reply queue names cannot be empty when AMQP URL is provided")
		} else if c.AMQPInboundQueue == c.AMQPReplyQueue {
			errors = append(errors, "AMQP inbound and reply queues must differ")
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// ValidateWorker is Validate plus the settings only the queue worker needs.
func (c *Config) ValidateWorker() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.AMQPURL == "" {
		return fmt.Errorf("configuration validation failed:\n- AMQP_URL is required for the worker")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvList splits a comma separated value, dropping empty items.
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
