package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/arjunr-dev/scantrader/internal/classify"
	"github.com/arjunr-dev/scantrader/internal/domain"
)

// SignalProcessor runs a classified signal to settlement.
type SignalProcessor interface {
	Process(ctx context.Context, sig domain.Signal) domain.BatchSummary
}

// WebhookHandler receives scanner alert payloads, classifies them, and
// hands them to the executor. The response always carries the batch
// summary so the scanner's delivery log doubles as an execution trace.
type WebhookHandler struct {
	classifier *classify.Classifier
	settings   domain.SettingsStore
	processor  SignalProcessor
	logger     *slog.Logger
}

// NewWebhookHandler creates a WebhookHandler.
func NewWebhookHandler(classifier *classify.Classifier, settings domain.SettingsStore, processor SignalProcessor, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		classifier: classifier,
		settings:   settings,
		processor:  processor,
		logger:     logger.With(slog.String("handler", "webhook")),
	}
}

// Receive handles an incoming scanner alert.
// POST /webhook
func (h *WebhookHandler) Receive(w http.ResponseWriter, r *http.Request) {
	var payload classify.AlertPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	settings, err := h.settings.Get(r.Context())
	if err != nil {
		h.logger.WarnContext(r.Context(), "settings load failed, using defaults",
			slog.String("error", err.Error()),
		)
		settings = domain.DefaultSettings()
	}

	sig, err := h.classifier.Classify(payload, settings)
	if err != nil {
		if domain.IsSchemaError(err) {
			h.logger.WarnContext(r.Context(), "alert rejected",
				slog.String("scan", payload.ScanName),
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.ErrorContext(r.Context(), "classification failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "classification failed")
		return
	}

	summary := h.processor.Process(r.Context(), sig)

	writeJSON(w, http.StatusOK, summary)
}
