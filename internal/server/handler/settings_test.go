package handler

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arjunr-dev/scantrader/internal/domain"
)

func TestUpdateSettingsStoresValidDocument(t *testing.T) {
	store := &memSettings{settings: domain.DefaultSettings()}
	h := NewSettingsHandler(store, slog.Default())

	body := `{
		"max_trade_value": 10000,
		"default_quantity": 5,
		"default_action": "reject",
		"buy_keywords": ["buy", "long"],
		"sell_keywords": ["sell"]
	}`
	req := httptest.NewRequest(http.MethodPut, "/api/settings", strings.NewReader(body))
	rec := httptest.NewRecorder()

	h.UpdateSettings(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, store.saved)
	assert.Equal(t, 10000.0, store.saved.MaxTradeValue)
	assert.Equal(t, "reject", store.saved.DefaultAction)
}

func TestUpdateSettingsRejectsInvalidDocuments(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"zero trade value", `{"max_trade_value":0,"default_action":"BUY","buy_keywords":["buy"]}`},
		{"negative quantity", `{"max_trade_value":5000,"default_quantity":-1,"default_action":"BUY","buy_keywords":["buy"]}`},
		{"bad action", `{"max_trade_value":5000,"default_action":"HOLD","buy_keywords":["buy"]}`},
		{"no keywords", `{"max_trade_value":5000,"default_action":"BUY"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &memSettings{}
			h := NewSettingsHandler(store, slog.Default())

			req := httptest.NewRequest(http.MethodPut, "/api/settings", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()

			h.UpdateSettings(rec, req)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Nil(t, store.saved)
		})
	}
}

func TestGetSettingsReturnsStoredDocument(t *testing.T) {
	store := &memSettings{settings: domain.DefaultSettings()}
	h := NewSettingsHandler(store, slog.Default())

	req := httptest.NewRequest(http.MethodGet, "/api/settings", nil)
	rec := httptest.NewRecorder()

	h.GetSettings(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"max_trade_value":5000`)
}
