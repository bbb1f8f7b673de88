// Package classify turns raw scanner webhook payloads into structured
// trade signals with a resolved buy/sell intent.
package classify

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/arjunr-dev/scantrader/internal/domain"
)

// AlertPayload is the JSON body posted by the scanner webhook. Symbols
// and trigger prices arrive as comma-separated strings paired by index.
type AlertPayload struct {
	Stocks        string `json:"stocks"`
	TriggerPrices string `json:"trigger_prices"`
	TriggeredAt   string `json:"triggered_at"`
	ScanName      string `json:"scan_name"`
	ScanURL       string `json:"scan_url"`
	AlertName     string `json:"alert_name"`
	Action        string `json:"action,omitempty"`
}

// DefaultActionReject configures the classifier to refuse signals whose
// intent cannot be resolved, instead of defaulting to a live trade.
const DefaultActionReject = "reject"

// Classifier parses alert payloads into Signals. It is stateless; the
// keyword sets and ambiguity policy come from settings at call time.
type Classifier struct {
	now func() time.Time
}

// New creates a Classifier.
func New() *Classifier {
	return &Classifier{now: time.Now}
}

// Classify validates the payload and builds an immutable Signal. It
// returns a *domain.SchemaError for malformed payloads; no other error
// kind escapes.
func (c *Classifier) Classify(payload AlertPayload, settings domain.Settings) (domain.Signal, error) {
	rawSymbols := splitList(payload.Stocks)
	rawPrices := splitList(payload.TriggerPrices)

	if len(rawSymbols) == 0 {
		return domain.Signal{}, domain.NewSchemaError("stocks", "at least one symbol is required")
	}
	if len(rawSymbols) != len(rawPrices) {
		return domain.Signal{}, domain.NewSchemaError("trigger_prices",
			"%d symbols but %d prices", len(rawSymbols), len(rawPrices))
	}

	symbols := make([]string, 0, len(rawSymbols))
	prices := make([]float64, 0, len(rawPrices))
	for i, sym := range rawSymbols {
		if sym == "" {
			// Positional pairing survives a blank entry: both the symbol
			// and its price slot are dropped together.
			continue
		}
		price, err := strconv.ParseFloat(rawPrices[i], 64)
		if err != nil {
			return domain.Signal{}, domain.NewSchemaError("trigger_prices",
				"price %q for symbol %q is not a number", rawPrices[i], sym)
		}
		if price <= 0 {
			return domain.Signal{}, domain.NewSchemaError("trigger_prices",
				"price %v for symbol %q must be positive", price, sym)
		}
		symbols = append(symbols, sym)
		prices = append(prices, price)
	}
	if len(symbols) == 0 {
		return domain.Signal{}, domain.NewSchemaError("stocks", "no non-empty symbols")
	}

	action, err := resolveAction(payload, settings)
	if err != nil {
		return domain.Signal{}, err
	}

	return domain.Signal{
		ID:          uuid.New().String(),
		ReceivedAt:  c.now().UTC(),
		ScanName:    payload.ScanName,
		ScanURL:     payload.ScanURL,
		AlertName:   payload.AlertName,
		TriggeredAt: payload.TriggeredAt,
		Symbols:     symbols,
		Prices:      prices,
		Action:      action,
	}, nil
}

// resolveAction picks the trade intent. Resolution order: explicit
// action field, then keyword scan over scan and alert names with buy
// keywords winning a double match, then the configured default. The
// default may be "reject", which refuses ambiguous signals rather than
// silently buying.
func resolveAction(payload AlertPayload, settings domain.Settings) (domain.TradeAction, error) {
	if payload.Action != "" {
		explicit := domain.TradeAction(strings.ToUpper(strings.TrimSpace(payload.Action)))
		if !explicit.Valid() {
			return "", domain.NewSchemaError("action", "unknown action %q", payload.Action)
		}
		return explicit, nil
	}

	haystack := strings.ToLower(payload.ScanName + " " + payload.AlertName)
	if containsAny(haystack, settings.BuyKeywords) {
		return domain.ActionBuy, nil
	}
	if containsAny(haystack, settings.SellKeywords) {
		return domain.ActionSell, nil
	}

	switch strings.ToLower(strings.TrimSpace(settings.DefaultAction)) {
	case strings.ToLower(string(domain.ActionBuy)), "":
		return domain.ActionBuy, nil
	case strings.ToLower(string(domain.ActionSell)):
		return domain.ActionSell, nil
	case DefaultActionReject:
		return "", domain.NewSchemaError("action",
			"no intent keywords matched and ambiguous signals are rejected")
	default:
		return "", domain.NewSchemaError("action",
			"invalid default action %q in settings", settings.DefaultAction)
	}
}

func containsAny(haystack string, keywords []string) bool {
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" && strings.Contains(haystack, kw) {
			return true
		}
	}
	return false
}

func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, len(parts))
	for i, p := range parts {
		out[i] = strings.TrimSpace(p)
	}
	return out
}
