// Package executor drives classified signals through gating, budgeting,
// and order placement. Every signal settles deterministically: gate
// failures discard it with zero side effects, and per-symbol broker
// failures never abort the surviving attempts in the same batch.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/arjunr-dev/scantrader/internal/domain"
	"github.com/arjunr-dev/scantrader/internal/notify"
	"github.com/arjunr-dev/scantrader/internal/ratelimit"
)

// CredentialChecker is the single validity authority consulted before
// and during execution.
type CredentialChecker interface {
	IsValid() bool
}

// MarketClock reports the trading window at a given instant.
type MarketClock interface {
	Status(now time.Time) domain.MarketStatus
}

// CallBudget meters outbound broker calls. Acquisition blocks until
// budget is available or the bound elapses.
type CallBudget interface {
	AcquireTimeout(ctx context.Context, cost int, timeout time.Duration) (time.Duration, error)
}

// Publisher delivers operator notifications.
type Publisher interface {
	Publish(ctx context.Context, ev notify.Event) error
}

// Orchestrator executes one signal at a time per call; calls are safe to
// run concurrently because all shared state (rate bucket, credential)
// lives behind its own synchronization.
type Orchestrator struct {
	broker   domain.Broker
	creds    CredentialChecker
	calendar MarketClock
	budget   CallBudget
	settings domain.SettingsStore
	ledger   domain.LedgerStore
	notifier Publisher
	logger   *slog.Logger

	acquireTimeout  time.Duration
	defaultExchange string
	now             func() time.Time
}

// Config holds the orchestrator's tunables.
type Config struct {
	// AcquireTimeout bounds how long one attempt may wait on the call
	// budget before it is marked rejected.
	AcquireTimeout time.Duration
	// DefaultExchange is used for symbols without an exchange prefix.
	DefaultExchange string
}

// New creates an Orchestrator.
func New(
	broker domain.Broker,
	creds CredentialChecker,
	calendar MarketClock,
	budget CallBudget,
	settings domain.SettingsStore,
	ledger domain.LedgerStore,
	notifier Publisher,
	cfg Config,
	logger *slog.Logger,
) *Orchestrator {
	if cfg.AcquireTimeout <= 0 {
		cfg.AcquireTimeout = 30 * time.Second
	}
	if cfg.DefaultExchange == "" {
		cfg.DefaultExchange = "NSE"
	}
	return &Orchestrator{
		broker:          broker,
		creds:           creds,
		calendar:        calendar,
		budget:          budget,
		settings:        settings,
		ledger:          ledger,
		notifier:        notifier,
		logger:          logger.With(slog.String("component", "executor")),
		acquireTimeout:  cfg.AcquireTimeout,
		defaultExchange: cfg.DefaultExchange,
		now:             time.Now,
	}
}

// Process runs one signal to settlement and returns the consolidated
// summary. It never returns an error: every failure mode below the
// ingestion boundary becomes a terminal attempt status or a discard.
func (o *Orchestrator) Process(ctx context.Context, sig domain.Signal) domain.BatchSummary {
	log := o.logger.With(
		slog.String("signal_id", sig.ID),
		slog.String("scan", sig.ScanName),
	)
	log.InfoContext(ctx, "processing signal",
		slog.Int("symbols", len(sig.Symbols)),
		slog.String("action", string(sig.Action)),
	)

	// Gate: market window and credential. Failure here discards the
	// signal before any resource is acquired or attempt created.
	if summary, err := o.gate(ctx, sig, log); err != nil {
		return summary
	}

	settings := o.loadSettings(ctx, log)

	// Budget: one metered funds read shared by the whole batch.
	attempts, note, budgetErr := o.budgetAttempts(ctx, sig, settings, log)
	if budgetErr != nil {
		// Funds were unobtainable or covered nothing; all attempts are
		// already terminal.
		return o.settle(ctx, sig, attempts, note, log)
	}

	// Execute the non-skipped attempts concurrently. Each goroutine owns
	// exactly one attempt slot, so no locking is needed on the slice.
	g, gctx := errgroup.WithContext(ctx)
	for i := range attempts {
		if attempts[i].Status != domain.AttemptPending {
			continue
		}
		attempt := &attempts[i]
		g.Go(func() error {
			o.place(gctx, attempt, log)
			return nil
		})
	}
	_ = g.Wait()

	return o.settle(ctx, sig, attempts, "", log)
}

// gate checks the trading window and credential validity. The two
// outcomes are distinguishable to the operator, not merged; both wrap
// domain.ErrGateClosed.
func (o *Orchestrator) gate(ctx context.Context, sig domain.Signal, log *slog.Logger) (domain.BatchSummary, error) {
	status := o.calendar.Status(o.now())
	if !status.IsOpen {
		reason := fmt.Sprintf("market closed: %s", status.Reason)
		log.WarnContext(ctx, "signal discarded",
			slog.String("reason", reason),
			slog.Time("next_open", status.NextOpenAt),
		)
		o.notifyDiscard(ctx, sig, reason,
			fmt.Sprintf("Market is closed (%s). Next open: %s.",
				status.Reason, status.NextOpenAt.Format(time.RFC1123)))
		return discardSummary(sig, reason), fmt.Errorf("executor: %s: %w", reason, domain.ErrGateClosed)
	}

	if !o.creds.IsValid() {
		reason := "credential expired"
		log.WarnContext(ctx, "signal discarded", slog.String("reason", reason))
		o.notifyDiscard(ctx, sig, reason,
			"The broker session credential has expired. Re-authenticate to resume trading.")
		return discardSummary(sig, reason), fmt.Errorf("executor: %s: %w", reason, domain.ErrGateClosed)
	}

	return domain.BatchSummary{}, nil
}

// budgetAttempts fetches available funds and sizes one attempt per
// symbol. Overpriced and unaffordable symbols are skipped before any
// order call. The returned error is non-nil only when every attempt is
// already terminal: the funds read failed, or the batch starved on the
// shared capital budget (domain.ErrBudgetExceeded). The note, when set,
// is folded into the settle notification.
func (o *Orchestrator) budgetAttempts(ctx context.Context, sig domain.Signal, settings domain.Settings, log *slog.Logger) ([]domain.OrderAttempt, string, error) {
	attempts := make([]domain.OrderAttempt, len(sig.Symbols))
	for i, sym := range sig.Symbols {
		attempts[i] = domain.OrderAttempt{
			ID:           uuid.New().String(),
			SignalID:     sig.ID,
			Symbol:       sym,
			Side:         domain.SideForAction(sig.Action),
			TriggerPrice: sig.Prices[i],
			Status:       domain.AttemptPending,
			CreatedAt:    o.now().UTC(),
		}
	}

	funds, err := o.readFunds(ctx)
	if err != nil {
		log.ErrorContext(ctx, "funds query failed", slog.String("error", err.Error()))
		for i := range attempts {
			o.resolve(&attempts[i], domain.AttemptRejected, "", fmt.Sprintf("funds query failed: %v", err))
		}
		return attempts, "", err
	}

	available := funds.Available
	committed := 0.0
	affordableExists := false

	for i := range attempts {
		a := &attempts[i]
		price := a.TriggerPrice

		if price > settings.MaxTradeValue {
			o.resolve(a, domain.AttemptSkipped, "",
				fmt.Sprintf("trigger price %.2f exceeds max trade value %.2f", price, settings.MaxTradeValue))
			continue
		}
		affordableExists = true

		qty := int64(math.Floor(settings.MaxTradeValue / price))
		if settings.DefaultQuantity > 0 && qty > settings.DefaultQuantity {
			qty = settings.DefaultQuantity
		}

		// Shrink to what the remaining shared budget still covers.
		if remaining := available - committed; float64(qty)*price > remaining {
			qty = int64(math.Floor(remaining / price))
		}
		if qty <= 0 {
			o.resolve(a, domain.AttemptSkipped, "", "insufficient funds for any quantity")
			continue
		}

		a.Quantity = qty
		committed += float64(qty) * price
	}

	if affordableExists && committed == 0 {
		// Not a single symbol was fundable: the whole batch starves on
		// the shared capital budget.
		log.WarnContext(ctx, "batch skipped",
			slog.Float64("available", available),
		)
		note := fmt.Sprintf("No symbol affordable with %.2f available.", available)
		return attempts, note, fmt.Errorf("executor: size batch: %w", domain.ErrBudgetExceeded)
	}

	return attempts, "", nil
}

// readFunds performs the metered funds query.
func (o *Orchestrator) readFunds(ctx context.Context) (domain.Funds, error) {
	if _, err := o.budget.AcquireTimeout(ctx, ratelimit.CostDataRead, o.acquireTimeout); err != nil {
		return domain.Funds{}, err
	}
	return o.broker.Funds(ctx)
}

// place runs one order attempt to a terminal status. Failures stay on
// this attempt; siblings in the batch are unaffected.
func (o *Orchestrator) place(ctx context.Context, a *domain.OrderAttempt, log *slog.Logger) {
	// A credential can die mid-batch at the daily cutover. Calls known
	// to fail are not spent against the rate budget.
	if !o.creds.IsValid() {
		o.resolve(a, domain.AttemptRejected, "", "credential expired mid-execution")
		return
	}

	waited, err := o.budget.AcquireTimeout(ctx, ratelimit.CostOrder, o.acquireTimeout)
	if err != nil {
		if errors.Is(err, domain.ErrRateLimitTimeout) {
			o.resolve(a, domain.AttemptRejected, "", "rate limit budget not obtained in time")
		} else {
			o.resolve(a, domain.AttemptRejected, "", fmt.Sprintf("budget acquisition failed: %v", err))
		}
		return
	}
	if waited > 0 {
		log.DebugContext(ctx, "order throttled",
			slog.String("symbol", a.Symbol),
			slog.Duration("waited", waited),
		)
	}

	exchange, symbol := splitExchange(a.Symbol, o.defaultExchange)
	orderID, err := o.broker.PlaceOrder(ctx, domain.OrderRequest{
		Symbol:   symbol,
		Exchange: exchange,
		Side:     a.Side,
		Quantity: a.Quantity,
	})
	if err != nil {
		// Not retried: blindly re-sending a market order risks duplicate
		// execution.
		log.ErrorContext(ctx, "order placement failed",
			slog.String("symbol", a.Symbol),
			slog.String("error", err.Error()),
		)
		o.resolve(a, domain.AttemptRejected, "", err.Error())
		return
	}

	log.InfoContext(ctx, "order placed",
		slog.String("symbol", a.Symbol),
		slog.String("broker_order_id", orderID),
		slog.Int64("quantity", a.Quantity),
	)
	o.resolve(a, domain.AttemptPlaced, orderID, "")
}

// settle appends every terminal attempt to the ledger, emits the single
// consolidated notification, and builds the response summary. A non-empty
// note carries batch-level failure detail into the notification.
func (o *Orchestrator) settle(ctx context.Context, sig domain.Signal, attempts []domain.OrderAttempt, note string, log *slog.Logger) domain.BatchSummary {
	summary := domain.BatchSummary{
		SignalID: sig.ID,
		ScanName: sig.ScanName,
		Status:   domain.SignalSettled,
	}

	for i := range attempts {
		a := attempts[i]
		switch a.Status {
		case domain.AttemptPlaced:
			summary.Placed++
			summary.CommittedValue += a.CommittedValue()
		case domain.AttemptSkipped:
			summary.Skipped++
		case domain.AttemptRejected:
			summary.Rejected++
		}

		entry := domain.LedgerEntry{
			ID:            a.ID,
			SignalID:      a.SignalID,
			ScanName:      sig.ScanName,
			Symbol:        a.Symbol,
			Side:          a.Side,
			TriggerPrice:  a.TriggerPrice,
			Quantity:      a.Quantity,
			Status:        a.Status,
			BrokerOrderID: a.BrokerOrderID,
			FailureReason: a.FailureReason,
			RecordedAt:    a.ResolvedAt,
		}
		if err := o.ledger.Append(ctx, entry); err != nil {
			log.ErrorContext(ctx, "ledger append failed",
				slog.String("attempt_id", a.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	severity := notify.SeverityInfo
	if summary.Rejected > 0 || note != "" {
		severity = notify.SeverityWarning
	}
	body := fmt.Sprintf("Placed %d, skipped %d, rejected %d. Committed value: %.2f.",
		summary.Placed, summary.Skipped, summary.Rejected, summary.CommittedValue)
	if note != "" {
		body += " " + note
	}
	if err := o.notifier.Publish(ctx, notify.Event{
		Category: notify.CategoryBatchResult,
		Severity: severity,
		Title:    fmt.Sprintf("Signal settled: %s", sig.ScanName),
		Body:     body,
	}); err != nil {
		log.WarnContext(ctx, "notification delivery failed", slog.String("error", err.Error()))
	}

	log.InfoContext(ctx, "signal settled",
		slog.Int("placed", summary.Placed),
		slog.Int("skipped", summary.Skipped),
		slog.Int("rejected", summary.Rejected),
		slog.Float64("committed_value", summary.CommittedValue),
	)
	return summary
}

func (o *Orchestrator) resolve(a *domain.OrderAttempt, status domain.AttemptStatus, brokerOrderID, reason string) {
	a.Status = status
	a.BrokerOrderID = brokerOrderID
	a.FailureReason = reason
	a.ResolvedAt = o.now().UTC()
}

func (o *Orchestrator) loadSettings(ctx context.Context, log *slog.Logger) domain.Settings {
	settings, err := o.settings.Get(ctx)
	if err != nil {
		log.WarnContext(ctx, "settings load failed, using defaults",
			slog.String("error", err.Error()),
		)
		return domain.DefaultSettings()
	}
	return settings
}

func (o *Orchestrator) notifyDiscard(ctx context.Context, sig domain.Signal, reason, body string) {
	if err := o.notifier.Publish(ctx, notify.Event{
		Category: notify.CategorySignalDiscarded,
		Severity: notify.SeverityWarning,
		Title:    fmt.Sprintf("Signal discarded: %s", reason),
		Body:     fmt.Sprintf("Scan %q (%d symbols). %s", sig.ScanName, len(sig.Symbols), body),
	}); err != nil {
		o.logger.WarnContext(ctx, "notification delivery failed", slog.String("error", err.Error()))
	}
}

func discardSummary(sig domain.Signal, reason string) domain.BatchSummary {
	return domain.BatchSummary{
		SignalID:      sig.ID,
		ScanName:      sig.ScanName,
		Status:        domain.SignalDiscarded,
		DiscardReason: reason,
	}
}

// splitExchange peels an exchange prefix like "NSE:" or "NFO:" off a
// symbol, falling back to the configured default exchange.
func splitExchange(symbol, defaultExchange string) (exchange, clean string) {
	if i := strings.IndexByte(symbol, ':'); i > 0 {
		return symbol[:i], symbol[i+1:]
	}
	return defaultExchange, symbol
}
