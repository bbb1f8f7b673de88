package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/arjunr-dev/scantrader/internal/domain"
)

// Authenticator exchanges a login request token for a session credential
// and can probe the account profile to prove the session is live.
type Authenticator interface {
	Authenticate(ctx context.Context, requestToken string) (domain.Credential, error)
	Profile(ctx context.Context) (domain.Profile, error)
}

// CredentialInstaller stamps and stores a fresh credential, returning it
// with its computed expiry.
type CredentialInstaller interface {
	Set(cred domain.Credential) domain.Credential
}

// AuthHandler completes the daily broker login from the dashboard.
type AuthHandler struct {
	broker Authenticator
	creds  CredentialInstaller
	logger *slog.Logger
}

// NewAuthHandler creates an AuthHandler.
func NewAuthHandler(broker Authenticator, creds CredentialInstaller, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		broker: broker,
		creds:  creds,
		logger: logger.With(slog.String("handler", "auth")),
	}
}

type sessionRequest struct {
	RequestToken string `json:"request_token"`
}

type sessionResponse struct {
	UserID    string `json:"user_id"`
	UserName  string `json:"user_name"`
	ExpiresAt string `json:"expires_at"`
}

// CreateSession exchanges the request token from the broker's login
// redirect for a session credential and installs it.
// POST /api/auth/session
func (h *AuthHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.RequestToken == "" {
		writeError(w, http.StatusBadRequest, "request_token is required")
		return
	}

	cred, err := h.broker.Authenticate(r.Context(), req.RequestToken)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "login failed",
			slog.String("error", err.Error()),
		)
		if errors.Is(err, domain.ErrCredentialExpired) || errors.Is(err, domain.ErrUnauthorized) {
			writeError(w, http.StatusUnauthorized, "request token rejected by broker")
			return
		}
		writeError(w, http.StatusBadGateway, "broker login failed")
		return
	}

	// Probe the profile with the fresh token before installing it; a
	// session the broker cannot serve is not worth storing.
	profile, err := h.broker.Profile(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "session verification failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadGateway, "session verification failed")
		return
	}
	if cred.UserName == "" {
		cred.UserName = profile.UserName
	}

	stamped := h.creds.Set(cred)

	h.logger.InfoContext(r.Context(), "session established",
		slog.String("user_id", stamped.UserID),
		slog.Time("expires_at", stamped.ExpiresAt),
	)

	writeJSON(w, http.StatusOK, sessionResponse{
		UserID:    stamped.UserID,
		UserName:  stamped.UserName,
		ExpiresAt: stamped.ExpiresAt.Format(time.RFC3339),
	})
}
