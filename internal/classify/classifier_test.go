package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arjunr-dev/scantrader/internal/domain"
)

func TestClassifyPairsSymbolsWithPrices(t *testing.T) {
	c := New()
	sig, err := c.Classify(AlertPayload{
		Stocks:        "RELIANCE, TCS",
		TriggerPrices: "2900.5, 4100",
		ScanName:      "bullish breakout",
	}, domain.DefaultSettings())
	require.NoError(t, err)

	assert.NotEmpty(t, sig.ID)
	assert.Equal(t, []string{"RELIANCE", "TCS"}, sig.Symbols)
	assert.Equal(t, []float64{2900.5, 4100}, sig.Prices)
	assert.Equal(t, domain.ActionBuy, sig.Action)
}

func TestClassifyLengthMismatch(t *testing.T) {
	c := New()
	_, err := c.Classify(AlertPayload{
		Stocks:        "AAA,BBB",
		TriggerPrices: "10,20,30",
	}, domain.DefaultSettings())
	require.Error(t, err)
	assert.True(t, domain.IsSchemaError(err))
}

func TestClassifyMalformedPayloads(t *testing.T) {
	c := New()
	cases := []struct {
		name    string
		payload AlertPayload
	}{
		{"empty stocks", AlertPayload{Stocks: "", TriggerPrices: "10"}},
		{"only commas", AlertPayload{Stocks: ",,", TriggerPrices: ",,"}},
		{"non numeric price", AlertPayload{Stocks: "AAA", TriggerPrices: "ten"}},
		{"negative price", AlertPayload{Stocks: "AAA", TriggerPrices: "-5"}},
		{"bad explicit action", AlertPayload{Stocks: "AAA", TriggerPrices: "10", Action: "HOLD"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := c.Classify(tc.payload, domain.DefaultSettings())
			require.Error(t, err)
			assert.True(t, domain.IsSchemaError(err))
		})
	}
}

func TestClassifyBlankEntryDropsPairedSlot(t *testing.T) {
	c := New()
	sig, err := c.Classify(AlertPayload{
		Stocks:        "AAA,,BBB",
		TriggerPrices: "10,0,20",
		ScanName:      "breakout scan",
	}, domain.DefaultSettings())
	require.NoError(t, err)
	assert.Equal(t, []string{"AAA", "BBB"}, sig.Symbols)
	assert.Equal(t, []float64{10, 20}, sig.Prices)
}

func TestIntentResolution(t *testing.T) {
	settings := domain.DefaultSettings()
	cases := []struct {
		name    string
		payload AlertPayload
		want    domain.TradeAction
	}{
		{"explicit action wins over keywords",
			AlertPayload{Stocks: "AAA", TriggerPrices: "10", ScanName: "bearish reversal", Action: "buy"},
			domain.ActionBuy},
		{"sell keyword in scan name",
			AlertPayload{Stocks: "AAA", TriggerPrices: "10", ScanName: "bearish reversal"},
			domain.ActionSell},
		{"sell keyword in alert name",
			AlertPayload{Stocks: "AAA", TriggerPrices: "10", AlertName: "short squeeze fade"},
			domain.ActionSell},
		{"buy wins when both sets match",
			AlertPayload{Stocks: "AAA", TriggerPrices: "10", ScanName: "bullish short covering"},
			domain.ActionBuy},
		{"no keywords falls back to default buy",
			AlertPayload{Stocks: "AAA", TriggerPrices: "10", ScanName: "volume spike"},
			domain.ActionBuy},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := New()
			sig, err := c.Classify(tc.payload, settings)
			require.NoError(t, err)
			assert.Equal(t, tc.want, sig.Action)
		})
	}
}

func TestAmbiguousSignalRejectedWhenConfigured(t *testing.T) {
	settings := domain.DefaultSettings()
	settings.DefaultAction = DefaultActionReject

	c := New()
	_, err := c.Classify(AlertPayload{
		Stocks: "AAA", TriggerPrices: "10", ScanName: "volume spike",
	}, settings)
	require.Error(t, err)
	assert.True(t, domain.IsSchemaError(err))

	// Keyword matches still classify under the reject policy.
	sig, err := c.Classify(AlertPayload{
		Stocks: "AAA", TriggerPrices: "10", ScanName: "bearish breakdown",
	}, settings)
	require.NoError(t, err)
	assert.Equal(t, domain.ActionSell, sig.Action)
}

func TestDefaultActionSell(t *testing.T) {
	settings := domain.DefaultSettings()
	settings.DefaultAction = "SELL"

	c := New()
	sig, err := c.Classify(AlertPayload{
		Stocks: "AAA", TriggerPrices: "10", ScanName: "volume spike",
	}, settings)
	require.NoError(t, err)
	assert.Equal(t, domain.ActionSell, sig.Action)
}
