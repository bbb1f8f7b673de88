package domain

// Settings are the read-mostly trading parameters consumed by the
// executor. They live behind the SettingsStore so the dashboard can
// change them without a restart.
type Settings struct {
	// MaxTradeValue is the per-symbol capital ceiling. A symbol whose
	// trigger price alone exceeds it is skipped, never rounded down to a
	// zero-quantity order.
	MaxTradeValue float64 `json:"max_trade_value"`

	// DefaultQuantity caps the computed quantity per order when
	// positive. Zero leaves sizing purely value-driven.
	DefaultQuantity int64 `json:"default_quantity"`

	// DefaultAction decides ambiguous signals: "BUY", "SELL", or
	// "reject" to refuse signals that match neither keyword set.
	DefaultAction string `json:"default_action"`

	// BuyKeywords and SellKeywords drive intent classification from the
	// scan and alert names. Buy keywords win when both sets match.
	BuyKeywords  []string `json:"buy_keywords"`
	SellKeywords []string `json:"sell_keywords"`
}

// DefaultSettings returns the settings used until the store holds a
// saved document.
func DefaultSettings() Settings {
	return Settings{
		MaxTradeValue:   5000,
		DefaultQuantity: 0,
		DefaultAction:   string(ActionBuy),
		BuyKeywords:     []string{"buy", "long", "bullish", "breakout"},
		SellKeywords:    []string{"sell", "short", "bearish"},
	}
}
