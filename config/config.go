// Package config loads server settings from the environment and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type Config struct {
	Env       string
	LogLevel  logrus.Level
	Server    ServerConfig
	Database  DatabaseConfig
	RateLimit RateLimitConfig
	Recurring RecurringConfig
	Budget    BudgetConfig
}

type ServerConfig struct {
	Host               string
	Port               int
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	IdleTimeout        time.Duration
	ShutdownTimeout    time.Duration
	CORSAllowedOrigins []string
}

type DatabaseConfig struct {
	// Path is the SQLite file. Empty selects the in-memory store.
	Path string
}

type RateLimitConfig struct {
	PerMinute int
	Burst     int
}

type RecurringConfig struct {
	Enabled  bool
	Schedule string // cron spec, e.g. "@daily" or "0 6 * * *"
}

type BudgetConfig struct {
	EmergencyFundPercentage decimal.Decimal
}

// Addr is the listen address.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// IsLocal reports whether logs should be human-readable.
func (c Config) IsLocal() bool {
	return c.Env == "local" || c.Env == "dev"
}

// Load reads the configuration from the environment and .env.
func Load() (Config, error) {
	cfg := Config{}

	if err := loadEnv(); err != nil {
		return cfg, err
	}

	cfg.Env = getEnv("APP_ENV", "local")

	level, err := logrus.ParseLevel(getEnv("LOG_LEVEL", "info"))
	if err != nil {
		return cfg, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	cfg.LogLevel = level

	port, err := parseIntEnv("SERVER_PORT", 8080)
	if err != nil {
		return cfg, err
	}
	readTimeout, err := parseDurationEnv("SERVER_READ_TIMEOUT", 5*time.Second)
	if err != nil {
		return cfg, err
	}
	writeTimeout, err := parseDurationEnv("SERVER_WRITE_TIMEOUT", 10*time.Second)
	if err != nil {
		return cfg, err
	}
	idleTimeout, err := parseDurationEnv("SERVER_IDLE_TIMEOUT", 60*time.Second)
	if err != nil {
		return cfg, err
	}
	shutdownTimeout, err := parseDurationEnv("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		return cfg, err
	}

	cfg.Server = ServerConfig{
		Host:               getEnv("SERVER_HOST", "0.0.0.0"),
		Port:               port,
		ReadTimeout:        readTimeout,
		WriteTimeout:       writeTimeout,
		IdleTimeout:        idleTimeout,
		ShutdownTimeout:    shutdownTimeout,
		CORSAllowedOrigins: parseCSVEnv("CORS_ALLOWED_ORIGINS", []string{"*"}),
	}

	cfg.Database = DatabaseConfig{Path: getEnv("SQLITE_DB_PATH", "./budget.db")}

	perMinute, err := parseIntEnv("RATE_LIMIT_PER_MINUTE", 600)
	if err != nil {
		return cfg, err
	}
	burst, err := parseIntEnv("RATE_LIMIT_BURST", 50)
	if err != nil {
		return cfg, err
	}
	cfg.RateLimit = RateLimitConfig{PerMinute: perMinute, Burst: burst}

	enabled, err := parseBoolEnv("RECURRING_ENABLED", true)
	if err != nil {
		return cfg, err
	}
	cfg.Recurring = RecurringConfig{
		Enabled:  enabled,
		Schedule: getEnv("RECURRING_SCHEDULE", "@daily"),
	}

	efPct, err := parseDecimalEnv("EMERGENCY_FUND_PERCENTAGE", decimal.NewFromInt(10))
	if err != nil {
		return cfg, err
	}
	cfg.Budget = BudgetConfig{EmergencyFundPercentage: efPct}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c Config) Validate() error {
	var errs []error

	if c.Server.Port > 65535 {
		errs = append(errs, errors.New("SERVER_PORT must be at most 65535"))
	}
	if c.RateLimit.Burst < 1 {
		errs = append(errs, errors.New("RATE_LIMIT_BURST must be at least 1"))
	}
	if c.Recurring.Enabled {
		if _, err := cron.ParseStandard(c.Recurring.Schedule); err != nil {
			errs = append(errs, fmt.Errorf("RECURRING_SCHEDULE %q: %w", c.Recurring.Schedule, err))
		}
	}
	pct := c.Budget.EmergencyFundPercentage
	if pct.IsNegative() || pct.GreaterThan(decimal.NewFromInt(100)) {
		errs = append(errs, errors.New("EMERGENCY_FUND_PERCENTAGE must be between 0 and 100"))
	}

	return errors.Join(errs...)
}

// =============================================================================
// ENV HELPERS
// =============================================================================

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func parseIntEnv(key string, fallback int) (int, error) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback, nil
	}

	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	if parsed <= 0 {
		return 0, fmt.Errorf("%s must be greater than 0", key)
	}
	return parsed, nil
}

func parseDurationEnv(key string, fallback time.Duration) (time.Duration, error) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback, nil
	}

	parsed, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration: %w", key, err)
	}
	if parsed <= 0 {
		return 0, fmt.Errorf("%s must be greater than 0", key)
	}
	return parsed, nil
}

func parseBoolEnv(key string, fallback bool) (bool, error) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback, nil
	}

	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("%s must be a boolean: %w", key, err)
	}
	return parsed, nil
}

func parseDecimalEnv(key string, fallback decimal.Decimal) (decimal.Decimal, error) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback, nil
	}

	parsed, err := decimal.NewFromString(strings.TrimSpace(value))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s must be a decimal: %w", key, err)
	}
	return parsed, nil
}

func parseCSVEnv(key string, fallback []string) []string {
	value, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(value) == "" {
		return fallback
	}

	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func loadEnv() error {
	if envFile := os.Getenv("ENV_FILE"); envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return fmt.Errorf("load env file %s: %w", envFile, err)
		}
		return nil
	}

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}
