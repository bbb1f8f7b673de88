package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/arjunr-dev/scantrader/internal/classify"
	"github.com/arjunr-dev/scantrader/internal/domain"
)

// SettingsHandler serves reads and writes of the trading settings
// document.
type SettingsHandler struct {
	store  domain.SettingsStore
	logger *slog.Logger
}

// NewSettingsHandler creates a SettingsHandler.
func NewSettingsHandler(store domain.SettingsStore, logger *slog.Logger) *SettingsHandler {
	return &SettingsHandler{
		store:  store,
		logger: logger.With(slog.String("handler", "settings")),
	}
}

// GetSettings returns the current trading settings.
// GET /api/settings
func (h *SettingsHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.store.Get(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "settings load failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to load settings")
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

// UpdateSettings validates and stores a new settings document.
// PUT /api/settings
func (h *SettingsHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var settings domain.Settings
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if msg := validateSettings(settings); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	if err := h.store.Put(r.Context(), settings); err != nil {
		h.logger.ErrorContext(r.Context(), "settings save failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to save settings")
		return
	}

	h.logger.InfoContext(r.Context(), "settings updated",
		slog.Float64("max_trade_value", settings.MaxTradeValue),
		slog.String("default_action", settings.DefaultAction),
	)
	writeJSON(w, http.StatusOK, settings)
}

// validateSettings returns a rejection message, or "" when the document
// is acceptable.
func validateSettings(s domain.Settings) string {
	if s.MaxTradeValue <= 0 {
		return "max_trade_value must be positive"
	}
	if s.DefaultQuantity < 0 {
		return "default_quantity must not be negative"
	}

	switch strings.ToUpper(s.DefaultAction) {
	case string(domain.ActionBuy), string(domain.ActionSell):
	default:
		if !strings.EqualFold(s.DefaultAction, classify.DefaultActionReject) {
			return "default_action must be BUY, SELL, or reject"
		}
	}

	if len(s.BuyKeywords) == 0 && len(s.SellKeywords) == 0 {
		return "at least one keyword set must be non-empty"
	}
	return ""
}
