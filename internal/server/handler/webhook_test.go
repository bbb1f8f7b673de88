package handler

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arjunr-dev/scantrader/internal/classify"
	"github.com/arjunr-dev/scantrader/internal/domain"
)

type memSettings struct {
	settings domain.Settings
	saved    *domain.Settings
	err      error
}

func (s *memSettings) Get(context.Context) (domain.Settings, error) {
	return s.settings, s.err
}

func (s *memSettings) Put(_ context.Context, settings domain.Settings) error {
	s.saved = &settings
	return nil
}

type fakeProcessor struct {
	got     *domain.Signal
	summary domain.BatchSummary
}

func (p *fakeProcessor) Process(_ context.Context, sig domain.Signal) domain.BatchSummary {
	p.got = &sig
	p.summary.SignalID = sig.ID
	return p.summary
}

func TestWebhookReceiveProcessesAlert(t *testing.T) {
	processor := &fakeProcessor{summary: domain.BatchSummary{
		Status: domain.SignalSettled,
		Placed: 2,
	}}
	h := NewWebhookHandler(
		classify.New(),
		&memSettings{settings: domain.DefaultSettings()},
		processor,
		slog.Default(),
	)

	body := `{
		"stocks": "RELIANCE,TCS",
		"trigger_prices": "2500.5,3300",
		"triggered_at": "10:15 am",
		"scan_name": "Bullish breakout scan",
		"scan_url": "bullish-breakout-scan",
		"alert_name": "Alert for Bullish breakout scan"
	}`
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
	rec := httptest.NewRecorder()

	h.Receive(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, processor.got)
	assert.Equal(t, []string{"RELIANCE", "TCS"}, processor.got.Symbols)
	assert.Equal(t, []float64{2500.5, 3300}, processor.got.Prices)
	assert.Equal(t, domain.ActionBuy, processor.got.Action)
	assert.Contains(t, rec.Body.String(), `"placed":2`)
}

func TestWebhookReceiveRejectsMalformedPayload(t *testing.T) {
	processor := &fakeProcessor{}
	h := NewWebhookHandler(
		classify.New(),
		&memSettings{settings: domain.DefaultSettings()},
		processor,
		slog.Default(),
	)

	tests := []struct {
		name string
		body string
	}{
		{"not json", `{{{`},
		{"length mismatch", `{"stocks":"AAA,BBB","trigger_prices":"100","scan_name":"buy scan"}`},
		{"no symbols", `{"stocks":"","trigger_prices":"","scan_name":"buy scan"}`},
		{"bad price", `{"stocks":"AAA","trigger_prices":"abc","scan_name":"buy scan"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()

			h.Receive(rec, req)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Nil(t, processor.got)
		})
	}
}

func TestWebhookReceiveFallsBackToDefaultSettings(t *testing.T) {
	processor := &fakeProcessor{summary: domain.BatchSummary{Status: domain.SignalSettled}}
	h := NewWebhookHandler(
		classify.New(),
		&memSettings{err: assert.AnError},
		processor,
		slog.Default(),
	)

	body := `{"stocks":"AAA","trigger_prices":"100","scan_name":"bullish momentum"}`
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
	rec := httptest.NewRecorder()

	h.Receive(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, processor.got)
	assert.Equal(t, domain.ActionBuy, processor.got.Action)
}
