package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies SCANTRADER_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known SCANTRADER_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Broker ──
	setStr(&cfg.Broker.BaseURL, "SCANTRADER_BROKER_BASE_URL")
	setStr(&cfg.Broker.APIKey, "SCANTRADER_BROKER_API_KEY")
	setStr(&cfg.Broker.APISecret, "SCANTRADER_BROKER_API_SECRET")
	setStr(&cfg.Broker.Product, "SCANTRADER_BROKER_PRODUCT")
	setStr(&cfg.Broker.Exchange, "SCANTRADER_BROKER_EXCHANGE")

	// ── Market ──
	setStr(&cfg.Market.Timezone, "SCANTRADER_MARKET_TIMEZONE")
	setStr(&cfg.Market.SessionOpen, "SCANTRADER_MARKET_SESSION_OPEN")
	setStr(&cfg.Market.SessionClose, "SCANTRADER_MARKET_SESSION_CLOSE")

	// ── Credential ──
	setStr(&cfg.Credential.ExpiryCutover, "SCANTRADER_CREDENTIAL_EXPIRY_CUTOVER")

	// ── Budget ──
	setInt(&cfg.Budget.Capacity, "SCANTRADER_BUDGET_CAPACITY")
	setFloat64(&cfg.Budget.RatePerSecond, "SCANTRADER_BUDGET_RATE_PER_SECOND")
	setDuration(&cfg.Budget.AcquireTimeout, "SCANTRADER_BUDGET_ACQUIRE_TIMEOUT")

	// ── Trading ──
	setFloat64(&cfg.Trading.MaxTradeValue, "SCANTRADER_TRADING_MAX_TRADE_VALUE")
	setInt64(&cfg.Trading.DefaultQuantity, "SCANTRADER_TRADING_DEFAULT_QUANTITY")
	setStr(&cfg.Trading.DefaultAction, "SCANTRADER_TRADING_DEFAULT_ACTION")
	setStringSlice(&cfg.Trading.BuyKeywords, "SCANTRADER_TRADING_BUY_KEYWORDS")
	setStringSlice(&cfg.Trading.SellKeywords, "SCANTRADER_TRADING_SELL_KEYWORDS")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "SCANTRADER_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "SCANTRADER_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "SCANTRADER_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "SCANTRADER_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "SCANTRADER_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "SCANTRADER_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "SCANTRADER_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "SCANTRADER_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "SCANTRADER_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "SCANTRADER_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "SCANTRADER_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "SCANTRADER_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "SCANTRADER_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "SCANTRADER_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "SCANTRADER_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "SCANTRADER_REDIS_TLS_ENABLED")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "SCANTRADER_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "SCANTRADER_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "SCANTRADER_S3_REGION")
	setStr(&cfg.S3.Bucket, "SCANTRADER_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "SCANTRADER_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "SCANTRADER_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "SCANTRADER_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "SCANTRADER_S3_FORCE_PATH_STYLE")

	// ── Scheduler ──
	setDuration(&cfg.Scheduler.OpenInterval, "SCANTRADER_SCHEDULER_OPEN_INTERVAL")
	setDuration(&cfg.Scheduler.ClosedInterval, "SCANTRADER_SCHEDULER_CLOSED_INTERVAL")
	setDuration(&cfg.Scheduler.WarnWindow, "SCANTRADER_SCHEDULER_WARN_WINDOW")

	// ── Server ──
	setInt(&cfg.Server.Port, "SCANTRADER_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "SCANTRADER_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "SCANTRADER_SERVER_API_KEY")
	setInt(&cfg.Server.WebhookRateLimit, "SCANTRADER_SERVER_WEBHOOK_RATE_LIMIT")
	setDuration(&cfg.Server.WebhookRateWindow, "SCANTRADER_SERVER_WEBHOOK_RATE_WINDOW")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "SCANTRADER_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "SCANTRADER_NOTIFY_TELEGRAM_CHAT_ID")
	setStringSlice(&cfg.Notify.Events, "SCANTRADER_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.LogLevel, "SCANTRADER_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
