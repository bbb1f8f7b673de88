package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	s3blob "github.com/arjunr-dev/scantrader/internal/blob/s3"
	"github.com/arjunr-dev/scantrader/internal/cache/redis"
	"github.com/arjunr-dev/scantrader/internal/classify"
	"github.com/arjunr-dev/scantrader/internal/config"
	"github.com/arjunr-dev/scantrader/internal/credential"
	"github.com/arjunr-dev/scantrader/internal/domain"
	"github.com/arjunr-dev/scantrader/internal/executor"
	"github.com/arjunr-dev/scantrader/internal/market"
	"github.com/arjunr-dev/scantrader/internal/notify"
	"github.com/arjunr-dev/scantrader/internal/platform/kite"
	"github.com/arjunr-dev/scantrader/internal/ratelimit"
	"github.com/arjunr-dev/scantrader/internal/scheduler"
	"github.com/arjunr-dev/scantrader/internal/server"
	"github.com/arjunr-dev/scantrader/internal/server/handler"
	"github.com/arjunr-dev/scantrader/internal/store/postgres"
)

// Dependencies bundles everything the application runs: the HTTP server,
// the housekeeping scheduler, and the notifier used for the startup
// banner. It is constructed by Wire and torn down by the returned
// cleanup function.
type Dependencies struct {
	Server    *server.Server
	Scheduler *scheduler.Scheduler
	Notifier  *notify.Notifier
	Creds     *credential.Store
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that
// should be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	notifier := notify.NewNotifier(senders, cfg.Notify.Events, logger)

	// --- Market calendar ---
	calendar, err := market.NewCalendar(cfg.Market.Timezone, cfg.Market.SessionOpen, cfg.Market.SessionClose)
	if err != nil {
		return nil, nil, fmt.Errorf("wire: market calendar: %w", err)
	}

	// --- Credential store ---
	cutHour, cutMinute, err := parseClock(cfg.Credential.ExpiryCutover)
	if err != nil {
		return nil, nil, fmt.Errorf("wire: credential cutover: %w", err)
	}
	creds := credential.NewStore(cutHour, cutMinute, calendar.Location())
	creds.OnExpired(func(cred domain.Credential) {
		bg, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = notifier.Publish(bg, notify.Event{
			Category: notify.CategoryCredentialExpired,
			Severity: notify.SeverityCritical,
			Title:    "broker session expired",
			Body:     fmt.Sprintf("Session for %s passed the daily cutover. Complete the login flow to resume trading.", cred.UserID),
		})
	})

	// --- Broker client ---
	broker := kite.NewClient(cfg.Broker.BaseURL, cfg.Broker.APIKey, cfg.Broker.APISecret, cfg.Broker.Product)

	// --- Call budget ---
	budget := ratelimit.New(cfg.Budget.Capacity, cfg.Budget.RatePerSecond)

	// --- PostgreSQL ---
	pgClient, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Postgres.DSN,
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		Database: cfg.Postgres.Database,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
		SSLMode:  cfg.Postgres.SSLMode,
		MaxConns: cfg.Postgres.PoolMaxConns,
		MinConns: cfg.Postgres.PoolMinConns,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: postgres: %w", err)
	}
	closers = append(closers, pgClient.Close)

	if cfg.Postgres.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}
	}

	pool := pgClient.Pool()
	ledger := postgres.NewLedgerStore(pool)
	settings := postgres.NewSettingsStore(pool)
	if err := settings.SeedDefault(ctx, initialSettings(cfg)); err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: seed settings: %w", err)
	}

	// --- Redis ---
	redisClient, err := redis.New(ctx, redis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: redis: %w", err)
	}
	closers = append(closers, func() { _ = redisClient.Close() })

	holidays := market.NewHolidayFetcher(redis.NewHolidayCache(redisClient), logger)
	ingressLimiter := redis.NewRateLimiter(redisClient)

	// --- S3 blob storage (optional ledger archival) ---
	var blob domain.BlobWriter
	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		blob = s3blob.NewWriter(s3Client)
	}

	// --- Execution pipeline ---
	orch := executor.New(broker, creds, calendar, budget, settings, ledger, notifier, executor.Config{
		AcquireTimeout:  cfg.Budget.AcquireTimeout.Duration,
		DefaultExchange: cfg.Broker.Exchange,
	}, logger)

	// --- Housekeeping scheduler ---
	sched := scheduler.New(calendar, creds, holidays, ledger, blob, notifier, scheduler.Config{
		OpenInterval:   cfg.Scheduler.OpenInterval.Duration,
		ClosedInterval: cfg.Scheduler.ClosedInterval.Duration,
		WarnWindow:     cfg.Scheduler.WarnWindow.Duration,
	}, logger)

	// --- HTTP server ---
	handlers := server.Handlers{
		Health:   handler.NewHealthHandler(version, logger),
		Webhook:  handler.NewWebhookHandler(classify.New(), settings, orch, logger),
		Status:   handler.NewStatusHandler(calendar, creds, budget, version, logger),
		Auth:     handler.NewAuthHandler(broker, creds, logger),
		Settings: handler.NewSettingsHandler(settings, logger),
		Trades:   handler.NewTradesHandler(ledger, logger),
	}
	srv := server.NewServer(server.Config{
		Port:              cfg.Server.Port,
		CORSOrigins:       cfg.Server.CORSOrigins,
		APIKey:            cfg.Server.APIKey,
		WebhookRateLimit:  cfg.Server.WebhookRateLimit,
		WebhookRateWindow: cfg.Server.WebhookRateWindow.Duration,
	}, handlers, ingressLimiter, logger)

	deps := &Dependencies{
		Server:    srv,
		Scheduler: sched,
		Notifier:  notifier,
		Creds:     creds,
	}
	return deps, cleanup, nil
}

// initialSettings derives the first trading settings document from the
// configuration file. It only applies until an operator saves a document
// through the dashboard.
func initialSettings(cfg *config.Config) domain.Settings {
	s := domain.DefaultSettings()
	if cfg.Trading.MaxTradeValue > 0 {
		s.MaxTradeValue = cfg.Trading.MaxTradeValue
	}
	if cfg.Trading.DefaultQuantity > 0 {
		s.DefaultQuantity = cfg.Trading.DefaultQuantity
	}
	if cfg.Trading.DefaultAction != "" {
		s.DefaultAction = cfg.Trading.DefaultAction
	}
	if len(cfg.Trading.BuyKeywords) > 0 {
		s.BuyKeywords = cfg.Trading.BuyKeywords
	}
	if len(cfg.Trading.SellKeywords) > 0 {
		s.SellKeywords = cfg.Trading.SellKeywords
	}
	return s
}

// parseClock parses a "HH:MM" wall-clock string.
func parseClock(s string) (hour, minute int, err error) {
	if _, err := fmt.Sscanf(s, "%d:%d", &hour, &minute); err != nil {
		return 0, 0, fmt.Errorf("invalid clock %q: %w", s, err)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("clock %q out of range", s)
	}
	return hour, minute, nil
}
