package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arjunr-dev/scantrader/internal/domain"
	"github.com/arjunr-dev/scantrader/internal/notify"
)

type stubCreds struct {
	mu         sync.Mutex
	validCalls int // calls returning true before flipping invalid; -1 = always valid
}

func (s *stubCreds) IsValid() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.validCalls < 0 {
		return true
	}
	if s.validCalls > 0 {
		s.validCalls--
		return true
	}
	return false
}

type stubCalendar struct {
	status domain.MarketStatus
}

func (s stubCalendar) Status(time.Time) domain.MarketStatus { return s.status }

type stubBudget struct {
	err error
}

func (s stubBudget) AcquireTimeout(context.Context, int, time.Duration) (time.Duration, error) {
	return 0, s.err
}

type mockBroker struct {
	mu       sync.Mutex
	funds    domain.Funds
	fundsErr error
	placeErr map[string]error // keyed by symbol
	placed   []domain.OrderRequest
	nextID   int
}

func (m *mockBroker) Authenticate(context.Context, string) (domain.Credential, error) {
	return domain.Credential{}, errors.New("not implemented")
}

func (m *mockBroker) Profile(context.Context) (domain.Profile, error) {
	return domain.Profile{}, nil
}

func (m *mockBroker) Funds(context.Context) (domain.Funds, error) {
	return m.funds, m.fundsErr
}

func (m *mockBroker) PlaceOrder(_ context.Context, req domain.OrderRequest) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.placeErr[req.Symbol]; ok {
		return "", err
	}
	m.placed = append(m.placed, req)
	m.nextID++
	return fmt.Sprintf("ORD-%d", m.nextID), nil
}

type memLedger struct {
	mu      sync.Mutex
	entries []domain.LedgerEntry
}

func (l *memLedger) Append(_ context.Context, e domain.LedgerEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, e)
	return nil
}

func (l *memLedger) ListRecent(context.Context, domain.ListOpts) ([]domain.LedgerEntry, error) {
	return nil, nil
}

func (l *memLedger) ListBetween(context.Context, time.Time, time.Time) ([]domain.LedgerEntry, error) {
	return nil, nil
}

func (l *memLedger) SummarizeBetween(context.Context, time.Time, time.Time) (domain.LedgerSummary, error) {
	return domain.LedgerSummary{}, nil
}

type memSettings struct {
	settings domain.Settings
	err      error
}

func (s memSettings) Get(context.Context) (domain.Settings, error) { return s.settings, s.err }
func (s memSettings) Put(context.Context, domain.Settings) error   { return nil }

type memNotifier struct {
	mu     sync.Mutex
	events []notify.Event
}

func (n *memNotifier) Publish(_ context.Context, ev notify.Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
	return nil
}

func (n *memNotifier) byCategory(c notify.Category) []notify.Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []notify.Event
	for _, ev := range n.events {
		if ev.Category == c {
			out = append(out, ev)
		}
	}
	return out
}

type fixture struct {
	orch     *Orchestrator
	broker   *mockBroker
	creds    *stubCreds
	ledger   *memLedger
	notifier *memNotifier
}

func openMarket() domain.MarketStatus {
	return domain.MarketStatus{IsOpen: true, NextOpenAt: time.Now().Add(24 * time.Hour)}
}

func newFixture(t *testing.T, status domain.MarketStatus, creds *stubCreds, broker *mockBroker) *fixture {
	t.Helper()
	ledger := &memLedger{}
	notifier := &memNotifier{}
	orch := New(
		broker,
		creds,
		stubCalendar{status: status},
		stubBudget{},
		memSettings{settings: domain.DefaultSettings()},
		ledger,
		notifier,
		Config{},
		slog.Default(),
	)
	return &fixture{orch: orch, broker: broker, creds: creds, ledger: ledger, notifier: notifier}
}

func testSignal(symbols []string, prices []float64) domain.Signal {
	return domain.Signal{
		ID:       "sig-1",
		ScanName: "bullish breakout",
		Symbols:  symbols,
		Prices:   prices,
		Action:   domain.ActionBuy,
	}
}

func TestProcessPlacesAndSkipsBySizing(t *testing.T) {
	broker := &mockBroker{funds: domain.Funds{Available: 100000}}
	f := newFixture(t, openMarket(), &stubCreds{validCalls: -1}, broker)

	summary := f.orch.Process(context.Background(), testSignal(
		[]string{"AAA", "BBB"}, []float64{100, 10000},
	))

	assert.Equal(t, domain.SignalSettled, summary.Status)
	assert.Equal(t, 1, summary.Placed)
	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, 0, summary.Rejected)
	assert.Equal(t, 5000.0, summary.CommittedValue)

	require.Len(t, broker.placed, 1)
	assert.Equal(t, "AAA", broker.placed[0].Symbol)
	assert.Equal(t, int64(50), broker.placed[0].Quantity)
	assert.Equal(t, domain.OrderSideBuy, broker.placed[0].Side)

	require.Len(t, f.ledger.entries, 2)
	batch := f.notifier.byCategory(notify.CategoryBatchResult)
	require.Len(t, batch, 1)
	assert.Contains(t, batch[0].Body, "Placed 1, skipped 1, rejected 0")
}

func TestProcessDiscardsOnExpiredCredential(t *testing.T) {
	broker := &mockBroker{funds: domain.Funds{Available: 100000}}
	f := newFixture(t, openMarket(), &stubCreds{validCalls: 0}, broker)

	summary := f.orch.Process(context.Background(), testSignal(
		[]string{"AAA", "BBB"}, []float64{100, 10000},
	))

	assert.Equal(t, domain.SignalDiscarded, summary.Status)
	assert.Equal(t, "credential expired", summary.DiscardReason)
	assert.Empty(t, broker.placed)
	assert.Empty(t, f.ledger.entries)

	discards := f.notifier.byCategory(notify.CategorySignalDiscarded)
	require.Len(t, discards, 1)
	assert.Contains(t, discards[0].Title, "credential expired")
}

func TestProcessDiscardsOnClosedMarket(t *testing.T) {
	broker := &mockBroker{funds: domain.Funds{Available: 100000}}
	closed := domain.MarketStatus{
		IsOpen:     false,
		Reason:     domain.CloseReasonWeekend,
		NextOpenAt: time.Now().Add(48 * time.Hour),
	}
	f := newFixture(t, closed, &stubCreds{validCalls: -1}, broker)

	summary := f.orch.Process(context.Background(), testSignal([]string{"AAA"}, []float64{100}))

	assert.Equal(t, domain.SignalDiscarded, summary.Status)
	assert.Equal(t, "market closed: weekend", summary.DiscardReason)
	assert.Empty(t, f.ledger.entries)

	discards := f.notifier.byCategory(notify.CategorySignalDiscarded)
	require.Len(t, discards, 1)
	assert.Contains(t, discards[0].Title, "weekend")
}

func TestProcessIsolatesPerSymbolFailures(t *testing.T) {
	broker := &mockBroker{
		funds:    domain.Funds{Available: 100000},
		placeErr: map[string]error{"AAA": errors.New("exchange rejected order")},
	}
	f := newFixture(t, openMarket(), &stubCreds{validCalls: -1}, broker)

	summary := f.orch.Process(context.Background(), testSignal(
		[]string{"AAA", "BBB"}, []float64{100, 200},
	))

	assert.Equal(t, domain.SignalSettled, summary.Status)
	assert.Equal(t, 1, summary.Placed)
	assert.Equal(t, 1, summary.Rejected)

	require.Len(t, f.ledger.entries, 2)
	byStatus := map[domain.AttemptStatus]domain.LedgerEntry{}
	for _, e := range f.ledger.entries {
		byStatus[e.Status] = e
	}
	assert.Equal(t, "BBB", byStatus[domain.AttemptPlaced].Symbol)
	assert.Equal(t, "AAA", byStatus[domain.AttemptRejected].Symbol)
	assert.Contains(t, byStatus[domain.AttemptRejected].FailureReason, "exchange rejected")
}

func TestProcessSkipsWholeBatchOnInsufficientFunds(t *testing.T) {
	broker := &mockBroker{funds: domain.Funds{Available: 5}}
	f := newFixture(t, openMarket(), &stubCreds{validCalls: -1}, broker)

	summary := f.orch.Process(context.Background(), testSignal(
		[]string{"AAA", "BBB"}, []float64{100, 200},
	))

	assert.Equal(t, domain.SignalSettled, summary.Status)
	assert.Equal(t, 0, summary.Placed)
	assert.Equal(t, 2, summary.Skipped)
	assert.Empty(t, broker.placed)

	// Exactly one consolidated notification, carrying the starvation
	// detail in its body.
	batch := f.notifier.byCategory(notify.CategoryBatchResult)
	require.Len(t, batch, 1)
	assert.Equal(t, notify.SeverityWarning, batch[0].Severity)
	assert.Contains(t, batch[0].Body, "Placed 0, skipped 2, rejected 0")
	assert.Contains(t, batch[0].Body, "No symbol affordable")
}

func TestBudgetStarvationReportsBudgetExceeded(t *testing.T) {
	broker := &mockBroker{funds: domain.Funds{Available: 5}}
	f := newFixture(t, openMarket(), &stubCreds{validCalls: -1}, broker)

	_, note, err := f.orch.budgetAttempts(context.Background(),
		testSignal([]string{"AAA"}, []float64{100}),
		domain.DefaultSettings(), slog.Default())

	require.ErrorIs(t, err, domain.ErrBudgetExceeded)
	assert.Contains(t, note, "No symbol affordable")
}

func TestGateFailuresWrapGateClosed(t *testing.T) {
	closed := domain.MarketStatus{IsOpen: false, Reason: domain.CloseReasonWeekend, NextOpenAt: time.Now().Add(48 * time.Hour)}
	f := newFixture(t, closed, &stubCreds{validCalls: -1}, &mockBroker{})

	_, err := f.orch.gate(context.Background(), testSignal([]string{"AAA"}, []float64{100}), slog.Default())
	require.ErrorIs(t, err, domain.ErrGateClosed)

	f = newFixture(t, openMarket(), &stubCreds{}, &mockBroker{})
	_, err = f.orch.gate(context.Background(), testSignal([]string{"AAA"}, []float64{100}), slog.Default())
	require.ErrorIs(t, err, domain.ErrGateClosed)
}

func TestProcessSharedBudgetShrinksLaterSymbols(t *testing.T) {
	// 5000 ceiling per symbol but only 6000 available: the second symbol
	// gets the remainder.
	broker := &mockBroker{funds: domain.Funds{Available: 6000}}
	f := newFixture(t, openMarket(), &stubCreds{validCalls: -1}, broker)

	summary := f.orch.Process(context.Background(), testSignal(
		[]string{"AAA", "BBB"}, []float64{100, 100},
	))

	assert.Equal(t, 2, summary.Placed)
	assert.InDelta(t, 6000.0, summary.CommittedValue, 100.0)

	total := int64(0)
	for _, req := range broker.placed {
		total += req.Quantity
	}
	assert.Equal(t, int64(60), total)
}

func TestProcessRejectsRemainingOnMidBatchExpiry(t *testing.T) {
	broker := &mockBroker{funds: domain.Funds{Available: 100000}}
	// Valid for the gate check only; every per-attempt check sees an
	// expired credential.
	f := newFixture(t, openMarket(), &stubCreds{validCalls: 1}, broker)

	summary := f.orch.Process(context.Background(), testSignal(
		[]string{"AAA", "BBB"}, []float64{100, 200},
	))

	assert.Equal(t, domain.SignalSettled, summary.Status)
	assert.Equal(t, 0, summary.Placed)
	assert.Equal(t, 2, summary.Rejected)
	assert.Empty(t, broker.placed)

	for _, e := range f.ledger.entries {
		assert.Equal(t, "credential expired mid-execution", e.FailureReason)
	}
}

func TestProcessRejectsAllWhenFundsQueryFails(t *testing.T) {
	broker := &mockBroker{fundsErr: errors.New("gateway timeout")}
	f := newFixture(t, openMarket(), &stubCreds{validCalls: -1}, broker)

	summary := f.orch.Process(context.Background(), testSignal(
		[]string{"AAA", "BBB"}, []float64{100, 200},
	))

	assert.Equal(t, domain.SignalSettled, summary.Status)
	assert.Equal(t, 2, summary.Rejected)
	assert.Empty(t, broker.placed)
	require.Len(t, f.ledger.entries, 2)
	assert.Contains(t, f.ledger.entries[0].FailureReason, "funds query failed")
}

func TestProcessRejectsOnRateLimitTimeout(t *testing.T) {
	broker := &mockBroker{funds: domain.Funds{Available: 100000}}
	ledger := &memLedger{}
	notifier := &memNotifier{}
	orch := New(
		broker,
		&stubCreds{validCalls: -1},
		stubCalendar{status: openMarket()},
		stubBudget{err: domain.ErrRateLimitTimeout},
		memSettings{settings: domain.DefaultSettings()},
		ledger,
		notifier,
		Config{},
		slog.Default(),
	)

	summary := orch.Process(context.Background(), testSignal([]string{"AAA"}, []float64{100}))

	// The funds read itself is budget-metered, so the timeout surfaces
	// there first and the whole batch rejects without broker calls.
	assert.Equal(t, domain.SignalSettled, summary.Status)
	assert.Equal(t, 1, summary.Rejected)
	assert.Empty(t, broker.placed)
}

func TestProcessStripsExchangePrefix(t *testing.T) {
	broker := &mockBroker{funds: domain.Funds{Available: 100000}}
	f := newFixture(t, openMarket(), &stubCreds{validCalls: -1}, broker)

	f.orch.Process(context.Background(), testSignal(
		[]string{"NFO:FOO", "BAR"}, []float64{100, 100},
	))

	require.Len(t, broker.placed, 2)
	byExchange := map[string]string{}
	for _, req := range broker.placed {
		byExchange[req.Exchange] = req.Symbol
	}
	assert.Equal(t, "FOO", byExchange["NFO"])
	assert.Equal(t, "BAR", byExchange["NSE"])
}
