package domain

import "time"

// OrderSide indicates whether this is a buy or sell.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "BUY"
	OrderSideSell OrderSide = "SELL"
)

// SideForAction maps a classified trade action onto the broker order side.
func SideForAction(a TradeAction) OrderSide {
	if a == ActionSell {
		return OrderSideSell
	}
	return OrderSideBuy
}

// AttemptStatus tracks a per-symbol order attempt through its lifecycle.
// An attempt is terminal once it leaves pending.
type AttemptStatus string

const (
	AttemptPending  AttemptStatus = "pending"
	AttemptPlaced   AttemptStatus = "placed"
	AttemptRejected AttemptStatus = "rejected"
	AttemptSkipped  AttemptStatus = "skipped"
)

// Terminal reports whether the status is one of the three terminal states.
func (s AttemptStatus) Terminal() bool {
	return s == AttemptPlaced || s == AttemptRejected || s == AttemptSkipped
}

// OrderAttempt is one per-symbol order placement outcome derived from a
// Signal. It is created pending when the executor budgets a signal and is
// mutated only by the executor as the broker call resolves.
type OrderAttempt struct {
	ID            string
	SignalID      string
	Symbol        string
	Side          OrderSide
	TriggerPrice  float64
	Quantity      int64
	Status        AttemptStatus
	BrokerOrderID string
	FailureReason string
	CreatedAt     time.Time
	ResolvedAt    time.Time
}

// CommittedValue is the capital this attempt commits if it was placed,
// zero otherwise.
func (a OrderAttempt) CommittedValue() float64 {
	if a.Status != AttemptPlaced {
		return 0
	}
	return float64(a.Quantity) * a.TriggerPrice
}

// OrderRequest is the broker-facing order payload. Only market delivery
// orders are placed by this system.
type OrderRequest struct {
	Symbol   string
	Exchange string
	Side     OrderSide
	Quantity int64
}

// BatchSummary consolidates the terminal outcome of one Signal for the
// webhook response and the batch notification.
type BatchSummary struct {
	SignalID       string       `json:"signal_id"`
	ScanName       string       `json:"scan_name"`
	Status         SignalStatus `json:"status"`
	DiscardReason  string       `json:"discard_reason,omitempty"`
	Placed         int          `json:"placed"`
	Skipped        int          `json:"skipped"`
	Rejected       int          `json:"rejected"`
	CommittedValue float64      `json:"committed_value"`
}

// LedgerEntry is the append-only record derived from a terminal
// OrderAttempt. It is never mutated after append.
type LedgerEntry struct {
	ID            string
	SignalID      string
	ScanName      string
	Symbol        string
	Side          OrderSide
	TriggerPrice  float64
	Quantity      int64
	Status        AttemptStatus
	BrokerOrderID string
	FailureReason string
	RecordedAt    time.Time
}

// LedgerSummary aggregates ledger rows over a time window, used for the
// end-of-day report.
type LedgerSummary struct {
	Placed         int
	Skipped        int
	Rejected       int
	CommittedValue float64
}
