package domain

import "time"

// TradeAction is the resolved buy/sell intent of a scanner signal.
type TradeAction string

const (
	ActionBuy  TradeAction = "BUY"
	ActionSell TradeAction = "SELL"
)

// Valid reports whether the action is one of the two known values.
func (a TradeAction) Valid() bool {
	return a == ActionBuy || a == ActionSell
}

// Signal is one inbound scanner alert, potentially covering several
// symbols. It is immutable once built by the classifier and consumed
// exactly once by the executor.
type Signal struct {
	ID          string
	ReceivedAt  time.Time
	ScanName    string
	ScanURL     string
	AlertName   string
	TriggeredAt string // free-form clock string as sent by the scanner
	Symbols     []string
	Prices      []float64 // paired with Symbols by index
	Action      TradeAction
}

// SignalStatus is the terminal disposition of a processed Signal. The
// Signal itself always settles; per-symbol outcomes live on the
// individual OrderAttempts.
type SignalStatus string

const (
	SignalSettled   SignalStatus = "settled"
	SignalDiscarded SignalStatus = "discarded"
)
