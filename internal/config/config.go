// Package config defines the top-level configuration for the trading
// engine and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/arjunr-dev/scantrader/internal/ratelimit"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by SCANTRADER_* environment variables.
type Config struct {
	Broker     BrokerConfig     `toml:"broker"`
	Market     MarketConfig     `toml:"market"`
	Credential CredentialConfig `toml:"credential"`
	Budget     BudgetConfig     `toml:"budget"`
	Trading    TradingConfig    `toml:"trading"`
	Postgres   PostgresConfig   `toml:"postgres"`
	Redis      RedisConfig      `toml:"redis"`
	S3         S3Config         `toml:"s3"`
	Scheduler  SchedulerConfig  `toml:"scheduler"`
	Server     ServerConfig     `toml:"server"`
	Notify     NotifyConfig     `toml:"notify"`
	LogLevel   string           `toml:"log_level"`
}

// BrokerConfig holds Kite Connect API parameters.
type BrokerConfig struct {
	BaseURL   string `toml:"base_url"`
	APIKey    string `toml:"api_key"`
	APISecret string `toml:"api_secret"`
	Product   string `toml:"product"`
	Exchange  string `toml:"exchange"`
}

// MarketConfig holds the trading window definition.
type MarketConfig struct {
	Timezone     string `toml:"timezone"`
	SessionOpen  string `toml:"session_open"`
	SessionClose string `toml:"session_close"`
}

// CredentialConfig holds the daily session expiry cutover.
type CredentialConfig struct {
	// ExpiryCutover is the local wall-clock time ("HH:MM") at which the
	// broker invalidates all session tokens each day.
	ExpiryCutover string `toml:"expiry_cutover"`
}

// BudgetConfig holds the broker call budget parameters.
type BudgetConfig struct {
	// Capacity is the burst size of the token bucket.
	Capacity int `toml:"capacity"`
	// RatePerSecond is the sustained refill rate.
	RatePerSecond float64 `toml:"rate_per_second"`
	// AcquireTimeout bounds how long one order attempt may wait for budget.
	AcquireTimeout duration `toml:"acquire_timeout"`
}

// TradingConfig holds initial trading settings. After first startup the
// settings document in the database takes precedence.
type TradingConfig struct {
	MaxTradeValue   float64  `toml:"max_trade_value"`
	DefaultQuantity int64    `toml:"default_quantity"`
	DefaultAction   string   `toml:"default_action"`
	BuyKeywords     []string `toml:"buy_keywords"`
	SellKeywords    []string `toml:"sell_keywords"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters for ledger
// archival. Archival is skipped entirely when Enabled is false.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// SchedulerConfig holds the housekeeping loop cadence.
type SchedulerConfig struct {
	OpenInterval   duration `toml:"open_interval"`
	ClosedInterval duration `toml:"closed_interval"`
	WarnWindow     duration `toml:"warn_window"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Port              int      `toml:"port"`
	CORSOrigins       []string `toml:"cors_origins"`
	APIKey            string   `toml:"api_key"`
	WebhookRateLimit  int      `toml:"webhook_rate_limit"`
	WebhookRateWindow duration `toml:"webhook_rate_window"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken  string   `toml:"telegram_token"`
	TelegramChatID string   `toml:"telegram_chat_id"`
	Events         []string `toml:"events"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Broker: BrokerConfig{
			BaseURL:  "https://api.kite.trade",
			Product:  "CNC",
			Exchange: "NSE",
		},
		Market: MarketConfig{
			Timezone:     "Asia/Kolkata",
			SessionOpen:  "09:00",
			SessionClose: "15:30",
		},
		Credential: CredentialConfig{
			ExpiryCutover: "06:00",
		},
		Budget: BudgetConfig{
			Capacity:       10,
			RatePerSecond:  3,
			AcquireTimeout: duration{30 * time.Second},
		},
		Trading: TradingConfig{
			MaxTradeValue: 5000,
			DefaultAction: "BUY",
			BuyKeywords:   []string{"buy", "long", "bullish", "breakout"},
			SellKeywords:  []string{"sell", "short", "bearish"},
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "scantrader",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   20,
			MaxRetries: 3,
		},
		S3: S3Config{
			Enabled:        false,
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "scantrader-data",
			ForcePathStyle: true,
		},
		Scheduler: SchedulerConfig{
			OpenInterval:   duration{30 * time.Second},
			ClosedInterval: duration{5 * time.Minute},
			WarnWindow:     duration{15 * time.Minute},
		},
		Server: ServerConfig{
			Port:              8000,
			CORSOrigins:       []string{"http://localhost:3000", "http://localhost:5173"},
			WebhookRateLimit:  10,
			WebhookRateWindow: duration{time.Second},
		},
		Notify: NotifyConfig{
			Events: []string{
				"signal_discarded", "batch_result", "credential_expired",
				"credential_warning", "market_transition", "eod_summary",
			},
		},
		LogLevel: "info",
	}
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	if c.Broker.APIKey == "" {
		errs = append(errs, "broker: api_key must be set")
	}
	if c.Broker.APISecret == "" {
		errs = append(errs, "broker: api_secret must be set")
	}

	if _, err := time.LoadLocation(c.Market.Timezone); err != nil {
		errs = append(errs, fmt.Sprintf("market: unknown timezone %q", c.Market.Timezone))
	}
	if !validClock(c.Market.SessionOpen) {
		errs = append(errs, fmt.Sprintf("market: session_open %q is not HH:MM", c.Market.SessionOpen))
	}
	if !validClock(c.Market.SessionClose) {
		errs = append(errs, fmt.Sprintf("market: session_close %q is not HH:MM", c.Market.SessionClose))
	}
	if !validClock(c.Credential.ExpiryCutover) {
		errs = append(errs, fmt.Sprintf("credential: expiry_cutover %q is not HH:MM", c.Credential.ExpiryCutover))
	}

	// An order costs ratelimit.CostOrder tokens; a bucket smaller than that
	// can never admit one.
	if c.Budget.Capacity < ratelimit.CostOrder {
		errs = append(errs, fmt.Sprintf("budget: capacity must be at least %d", ratelimit.CostOrder))
	}
	if c.Budget.RatePerSecond <= 0 {
		errs = append(errs, "budget: rate_per_second must be positive")
	}

	if c.Trading.MaxTradeValue <= 0 {
		errs = append(errs, "trading: max_trade_value must be positive")
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server: invalid port %d", c.Server.Port))
	}

	if c.S3.Enabled {
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must be set when s3 is enabled")
		}
		if c.S3.Region == "" {
			errs = append(errs, "s3: region must be set when s3 is enabled")
		}
	}

	if c.Notify.TelegramToken != "" && c.Notify.TelegramChatID == "" {
		errs = append(errs, "notify: telegram_chat_id is required when telegram_token is set")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// validClock reports whether s parses as HH:MM wall-clock time.
func validClock(s string) bool {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return false
	}
	return h >= 0 && h < 24 && m >= 0 && m < 60
}
