package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/arjunr-dev/scantrader/internal/domain"
)

// MarketReporter reports the trading window at a given instant.
type MarketReporter interface {
	Status(now time.Time) domain.MarketStatus
}

// CredentialReporter exposes the current session credential state.
type CredentialReporter interface {
	Get() (domain.Credential, bool)
	IsValid() bool
	TimeToExpiry() time.Duration
}

// BudgetReporter exposes the broker call budget's remaining tokens.
type BudgetReporter interface {
	Available() float64
}

// StatusHandler serves the operational status endpoint used by the
// dashboard.
type StatusHandler struct {
	market  MarketReporter
	creds   CredentialReporter
	budget  BudgetReporter
	version string
	logger  *slog.Logger
}

// NewStatusHandler creates a StatusHandler.
func NewStatusHandler(market MarketReporter, creds CredentialReporter, budget BudgetReporter, version string, logger *slog.Logger) *StatusHandler {
	return &StatusHandler{
		market:  market,
		creds:   creds,
		budget:  budget,
		version: version,
		logger:  logger,
	}
}

type statusResponse struct {
	Version    string           `json:"version"`
	Market     marketStatus     `json:"market"`
	Credential credentialStatus `json:"credential"`
	Budget     budgetStatus     `json:"budget"`
}

type marketStatus struct {
	IsOpen     bool   `json:"is_open"`
	Reason     string `json:"reason,omitempty"`
	NextOpenAt string `json:"next_open_at"`
}

type credentialStatus struct {
	Valid     bool   `json:"valid"`
	UserID    string `json:"user_id,omitempty"`
	UserName  string `json:"user_name,omitempty"`
	ExpiresAt string `json:"expires_at,omitempty"`
	ExpiresIn string `json:"expires_in,omitempty"`
}

type budgetStatus struct {
	AvailableTokens float64 `json:"available_tokens"`
}

// GetStatus reports the market window, credential state, and call budget.
// GET /api/status
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	now := time.Now()
	market := h.market.Status(now)

	resp := statusResponse{
		Version: h.version,
		Market: marketStatus{
			IsOpen:     market.IsOpen,
			Reason:     string(market.Reason),
			NextOpenAt: market.NextOpenAt.Format(time.RFC3339),
		},
		Credential: credentialStatus{
			Valid: h.creds.IsValid(),
		},
		Budget: budgetStatus{
			AvailableTokens: h.budget.Available(),
		},
	}

	if cred, ok := h.creds.Get(); ok {
		resp.Credential.UserID = cred.UserID
		resp.Credential.UserName = cred.UserName
		resp.Credential.ExpiresAt = cred.ExpiresAt.Format(time.RFC3339)
		resp.Credential.ExpiresIn = h.creds.TimeToExpiry().Round(time.Second).String()
	}

	writeJSON(w, http.StatusOK, resp)
}
