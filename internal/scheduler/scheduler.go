// Package scheduler runs the background housekeeping loop: market
// open/close transition notices, credential expiry warnings, holiday
// refresh, and the end-of-day ledger report with cold-storage archival.
package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/arjunr-dev/scantrader/internal/domain"
	"github.com/arjunr-dev/scantrader/internal/notify"
)

// MarketClock reports the trading window at a given instant.
type MarketClock interface {
	Status(now time.Time) domain.MarketStatus
	SetHolidays(holidays []domain.Holiday)
	Location() *time.Location
}

// CredentialWatcher exposes the session credential's remaining lifetime.
type CredentialWatcher interface {
	IsValid() bool
	TimeToExpiry() time.Duration
}

// HolidaySource provides the exchange holiday list for a calendar year.
type HolidaySource interface {
	Holidays(ctx context.Context, year int) ([]domain.Holiday, error)
}

// Publisher delivers operator notifications.
type Publisher interface {
	Publish(ctx context.Context, ev notify.Event) error
}

// Scheduler drives periodic checks on a single goroutine. All state
// below is touched only from Run's loop, so no locking is needed.
type Scheduler struct {
	calendar MarketClock
	creds    CredentialWatcher
	holidays HolidaySource
	ledger   domain.LedgerStore
	blob     domain.BlobWriter
	notifier Publisher
	logger   *slog.Logger

	openInterval   time.Duration
	closedInterval time.Duration
	warnWindow     time.Duration
	now            func() time.Time

	primed          bool
	lastOpen        bool
	warned          bool
	lastHolidayDate string
	lastReportDate  string
}

// Config holds the scheduler's tunables. Zero values select defaults.
type Config struct {
	// OpenInterval is the check cadence while the market is open.
	OpenInterval time.Duration
	// ClosedInterval is the check cadence outside the trading window.
	ClosedInterval time.Duration
	// WarnWindow is how far before credential expiry the warning fires.
	WarnWindow time.Duration
}

// New creates a Scheduler. blob may be nil, in which case the end-of-day
// report is emitted without archival.
func New(
	calendar MarketClock,
	creds CredentialWatcher,
	holidays HolidaySource,
	ledger domain.LedgerStore,
	blob domain.BlobWriter,
	notifier Publisher,
	cfg Config,
	logger *slog.Logger,
) *Scheduler {
	if cfg.OpenInterval <= 0 {
		cfg.OpenInterval = 30 * time.Second
	}
	if cfg.ClosedInterval <= 0 {
		cfg.ClosedInterval = 5 * time.Minute
	}
	if cfg.WarnWindow <= 0 {
		cfg.WarnWindow = 15 * time.Minute
	}
	return &Scheduler{
		calendar:       calendar,
		creds:          creds,
		holidays:       holidays,
		ledger:         ledger,
		blob:           blob,
		notifier:       notifier,
		logger:         logger.With(slog.String("component", "scheduler")),
		openInterval:   cfg.OpenInterval,
		closedInterval: cfg.ClosedInterval,
		warnWindow:     cfg.WarnWindow,
		now:            time.Now,
	}
}

// Run executes the housekeeping loop until the context is cancelled.
// The first tick runs immediately so a restart re-primes holiday data
// before the first webhook arrives.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("scheduler started",
		slog.Duration("open_interval", s.openInterval),
		slog.Duration("closed_interval", s.closedInterval),
	)

	interval := s.Tick(ctx)
	for {
		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			s.logger.Info("scheduler stopped")
			return ctx.Err()
		case <-timer.C:
			interval = s.Tick(ctx)
		}
	}
}

// Tick runs one round of checks and returns the delay until the next.
func (s *Scheduler) Tick(ctx context.Context) time.Duration {
	now := s.now()

	s.refreshHolidays(ctx, now)

	status := s.calendar.Status(now)
	s.observeMarket(ctx, now, status)
	s.observeCredential(ctx, status)

	if status.IsOpen {
		return s.openInterval
	}
	return s.closedInterval
}

// refreshHolidays reloads the exchange holiday list once per local day.
// In December the next year is loaded too, so the first sessions of
// January gate correctly before the daily refresh runs.
func (s *Scheduler) refreshHolidays(ctx context.Context, now time.Time) {
	local := now.In(s.calendar.Location())
	date := local.Format(time.DateOnly)
	if date == s.lastHolidayDate {
		return
	}

	years := []int{local.Year()}
	if local.Month() == time.December {
		years = append(years, local.Year()+1)
	}

	var all []domain.Holiday
	for _, year := range years {
		holidays, err := s.holidays.Holidays(ctx, year)
		if err != nil {
			s.logger.Error("holiday refresh failed",
				slog.Int("year", year),
				slog.String("error", err.Error()),
			)
			return
		}
		all = append(all, holidays...)
	}

	s.calendar.SetHolidays(all)
	s.lastHolidayDate = date
	s.logger.Info("holiday calendar refreshed",
		slog.Int("count", len(all)),
		slog.String("date", date),
	)
}

// observeMarket emits a notification on each open/close transition and
// kicks off the end-of-day report when the session closes.
func (s *Scheduler) observeMarket(ctx context.Context, now time.Time, status domain.MarketStatus) {
	if !s.primed {
		s.primed = true
		s.lastOpen = status.IsOpen
		return
	}
	if status.IsOpen == s.lastOpen {
		return
	}
	s.lastOpen = status.IsOpen

	if status.IsOpen {
		s.publish(ctx, notify.Event{
			Category: notify.CategoryMarketTransition,
			Severity: notify.SeverityInfo,
			Title:    "Market open",
			Body:     "The trading session has started. Incoming signals will be executed.",
		})
		return
	}

	s.publish(ctx, notify.Event{
		Category: notify.CategoryMarketTransition,
		Severity: notify.SeverityInfo,
		Title:    "Market closed",
		Body: fmt.Sprintf("The trading session has ended (%s). Next open: %s.",
			status.Reason, status.NextOpenAt.Format(time.RFC1123)),
	})

	if status.Reason == domain.CloseReasonAfterHours {
		s.emitDailyReport(ctx, now)
	}
}

// observeCredential fires the expiry warning once per credential when
// the remaining lifetime drops inside the warning window. A fresh
// credential re-arms the warning.
func (s *Scheduler) observeCredential(ctx context.Context, status domain.MarketStatus) {
	// IsValid edge-detects expiry internally; calling it here is what
	// drives the expired notification between webhooks.
	if !s.creds.IsValid() {
		s.warned = false
		return
	}

	remaining := s.creds.TimeToExpiry()
	if remaining > s.warnWindow {
		s.warned = false
		return
	}
	if s.warned {
		return
	}
	s.warned = true

	severity := notify.SeverityInfo
	if status.IsOpen {
		severity = notify.SeverityWarning
	}
	s.publish(ctx, notify.Event{
		Category: notify.CategoryCredentialWarning,
		Severity: severity,
		Title:    "Credential expiring soon",
		Body: fmt.Sprintf("The broker session expires in %s. Re-authenticate to avoid dropped signals.",
			remaining.Round(time.Minute)),
	})
}

// emitDailyReport summarizes the day's ledger activity, archives the raw
// rows to cold storage, and notifies the operator. It runs at most once
// per local day.
func (s *Scheduler) emitDailyReport(ctx context.Context, now time.Time) {
	local := now.In(s.calendar.Location())
	date := local.Format(time.DateOnly)
	if date == s.lastReportDate {
		return
	}
	s.lastReportDate = date

	dayStart := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, local.Location())
	summary, err := s.ledger.SummarizeBetween(ctx, dayStart, local)
	if err != nil {
		s.logger.Error("daily summary query failed", slog.String("error", err.Error()))
		return
	}

	if err := s.archiveDay(ctx, date, dayStart, local); err != nil {
		s.logger.Error("ledger archival failed",
			slog.String("date", date),
			slog.String("error", err.Error()),
		)
	}

	s.publish(ctx, notify.Event{
		Category: notify.CategoryEODSummary,
		Severity: notify.SeverityInfo,
		Title:    fmt.Sprintf("Daily report %s", date),
		Body: fmt.Sprintf("Placed %d, skipped %d, rejected %d. Committed value: %.2f.",
			summary.Placed, summary.Skipped, summary.Rejected, summary.CommittedValue),
	})
	s.logger.Info("daily report emitted",
		slog.String("date", date),
		slog.Int("placed", summary.Placed),
		slog.Int("skipped", summary.Skipped),
		slog.Int("rejected", summary.Rejected),
	)
}

// archiveDay uploads the day's ledger rows as JSON lines.
func (s *Scheduler) archiveDay(ctx context.Context, date string, from, to time.Time) error {
	if s.blob == nil {
		return nil
	}

	entries, err := s.ledger.ListBetween(ctx, from, to)
	if err != nil {
		return fmt.Errorf("scheduler: list ledger for %s: %w", date, err)
	}
	if len(entries) == 0 {
		return nil
	}

	// Encode rows into the upload as they are consumed instead of
	// buffering the whole day.
	pr, pw := io.Pipe()
	go func() {
		enc := json.NewEncoder(pw)
		for _, e := range entries {
			if err := enc.Encode(e); err != nil {
				pw.CloseWithError(fmt.Errorf("scheduler: encode ledger entry %s: %w", e.ID, err))
				return
			}
		}
		pw.Close()
	}()

	path := fmt.Sprintf("ledger/%s.jsonl", date)
	if err := s.blob.Put(ctx, path, pr, "application/x-ndjson"); err != nil {
		pr.CloseWithError(err)
		return fmt.Errorf("scheduler: upload %s: %w", path, err)
	}

	s.logger.Info("ledger archived",
		slog.String("path", path),
		slog.Int("entries", len(entries)),
	)
	return nil
}

func (s *Scheduler) publish(ctx context.Context, ev notify.Event) {
	if err := s.notifier.Publish(ctx, ev); err != nil {
		s.logger.Warn("notification delivery failed",
			slog.String("category", string(ev.Category)),
			slog.String("error", err.Error()),
		)
	}
}
