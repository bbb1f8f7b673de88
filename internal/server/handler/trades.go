package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/arjunr-dev/scantrader/internal/domain"
)

// TradesHandler serves the order ledger to the dashboard.
type TradesHandler struct {
	ledger domain.LedgerStore
	logger *slog.Logger
}

// NewTradesHandler creates a TradesHandler.
func NewTradesHandler(ledger domain.LedgerStore, logger *slog.Logger) *TradesHandler {
	return &TradesHandler{
		ledger: ledger,
		logger: logger.With(slog.String("handler", "trades")),
	}
}

// ListTrades returns ledger entries. Without query parameters it pages
// through recent entries newest first; with from/to (RFC 3339) it
// returns the window oldest first.
// GET /api/trades
func (h *TradesHandler) ListTrades(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	fromStr, toStr := q.Get("from"), q.Get("to")

	if fromStr != "" || toStr != "" {
		from, err := time.Parse(time.RFC3339, fromStr)
		if err != nil {
			writeError(w, http.StatusBadRequest, "from must be RFC 3339")
			return
		}
		to, err := time.Parse(time.RFC3339, toStr)
		if err != nil {
			writeError(w, http.StatusBadRequest, "to must be RFC 3339")
			return
		}

		entries, err := h.ledger.ListBetween(r.Context(), from, to)
		if err != nil {
			h.logger.ErrorContext(r.Context(), "ledger query failed",
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusInternalServerError, "failed to load trades")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"trades": entries})
		return
	}

	entries, err := h.ledger.ListRecent(r.Context(), parseListOpts(r))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "ledger query failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to load trades")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"trades": entries})
}
