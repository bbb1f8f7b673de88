// Package kite is the REST client for the Zerodha Kite Connect API.
package kite

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/arjunr-dev/scantrader/internal/domain"
)

const apiVersion = "3"

// Client is the REST client for Kite Connect. It implements
// domain.Broker. The access token is replaced on each daily login, so
// it sits behind its own lock while the rest of the client is
// immutable after construction.
type Client struct {
	baseURL    string
	apiKey     string
	apiSecret  string
	product    string
	httpClient *http.Client

	mu          sync.RWMutex
	accessToken string
}

// NewClient creates a new Kite REST client.
//
// baseURL is the API root, e.g. "https://api.kite.trade". product is
// the order product code; "CNC" places delivery orders.
func NewClient(baseURL, apiKey, apiSecret, product string) *Client {
	if product == "" {
		product = "CNC"
	}
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		apiKey:    apiKey,
		apiSecret: apiSecret,
		product:   product,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// SetAccessToken installs the session token used on authenticated calls.
func (c *Client) SetAccessToken(token string) {
	c.mu.Lock()
	c.accessToken = token
	c.mu.Unlock()
}

// Authenticate exchanges a request token from the Kite login redirect
// for a session credential and installs its access token on the client.
func (c *Client) Authenticate(ctx context.Context, requestToken string) (domain.Credential, error) {
	checksum := sha256.Sum256([]byte(c.apiKey + requestToken + c.apiSecret))

	form := url.Values{}
	form.Set("api_key", c.apiKey)
	form.Set("request_token", requestToken)
	form.Set("checksum", hex.EncodeToString(checksum[:]))

	var data sessionData
	if err := c.doRequest(ctx, http.MethodPost, "/session/token", form, &data); err != nil {
		return domain.Credential{}, fmt.Errorf("kite: exchange request token: %w", err)
	}
	if data.AccessToken == "" {
		return domain.Credential{}, fmt.Errorf("kite: session response carried no access token")
	}

	c.SetAccessToken(data.AccessToken)

	return domain.Credential{
		AccessToken: data.AccessToken,
		UserID:      data.UserID,
		UserName:    data.UserName,
	}, nil
}

// Profile returns the authenticated user's profile.
func (c *Client) Profile(ctx context.Context) (domain.Profile, error) {
	var data profileData
	if err := c.doRequest(ctx, http.MethodGet, "/user/profile", nil, &data); err != nil {
		return domain.Profile{}, fmt.Errorf("kite: get profile: %w", err)
	}

	return domain.Profile{
		UserID:   data.UserID,
		UserName: data.UserName,
		Email:    data.Email,
		Broker:   data.Broker,
	}, nil
}

// Funds returns the equity segment's available cash balance.
func (c *Client) Funds(ctx context.Context) (domain.Funds, error) {
	var data marginsData
	if err := c.doRequest(ctx, http.MethodGet, "/user/margins/equity", nil, &data); err != nil {
		return domain.Funds{}, fmt.Errorf("kite: get margins: %w", err)
	}

	available := data.Available.LiveBalance
	if available == 0 {
		available = data.Available.Cash
	}

	return domain.Funds{
		Available: available,
		Currency:  "INR",
	}, nil
}

// PlaceOrder submits a regular market order and returns the broker's
// order ID.
func (c *Client) PlaceOrder(ctx context.Context, req domain.OrderRequest) (string, error) {
	form := url.Values{}
	form.Set("tradingsymbol", req.Symbol)
	form.Set("exchange", req.Exchange)
	form.Set("transaction_type", string(req.Side))
	form.Set("quantity", strconv.FormatInt(req.Quantity, 10))
	form.Set("order_type", "MARKET")
	form.Set("product", c.product)
	form.Set("validity", "DAY")

	var data orderData
	if err := c.doRequest(ctx, http.MethodPost, "/orders/regular", form, &data); err != nil {
		return "", fmt.Errorf("kite: place order %s %s: %w", req.Side, req.Symbol, err)
	}
	if data.OrderID == "" {
		return "", fmt.Errorf("kite: order response carried no order id")
	}

	return data.OrderID, nil
}

// --------------------------------------------------------------------------
// Internal helpers
// --------------------------------------------------------------------------

// doRequest builds, sends, and decodes one API call. out receives the
// envelope's data payload and may be nil.
func (c *Client) doRequest(ctx context.Context, method, path string, form url.Values, out any) error {
	var bodyReader io.Reader
	if form != nil {
		bodyReader = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	req.Header.Set("X-Kite-Version", apiVersion)
	if auth := c.authHeader(); auth != "" {
		req.Header.Set("Authorization", auth)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %v: %w", err, domain.ErrExternalCall)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if err := c.checkStatus(resp.StatusCode, respBody); err != nil {
		return err
	}

	if out != nil {
		var payload struct {
			Data json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(respBody, &payload); err != nil {
			return fmt.Errorf("decode envelope: %w", err)
		}
		if err := json.Unmarshal(payload.Data, out); err != nil {
			return fmt.Errorf("decode data: %w", err)
		}
	}

	return nil
}

// authHeader builds the Kite auth header. The token exchange itself
// runs unauthenticated, so an empty token yields no header.
func (c *Client) authHeader() string {
	c.mu.RLock()
	token := c.accessToken
	c.mu.RUnlock()
	if token == "" {
		return ""
	}
	return "token " + c.apiKey + ":" + token
}

// checkStatus maps non-2xx HTTP status codes to appropriate errors.
// TokenException marks a dead session and is surfaced as a credential
// error so callers can distinguish it from transient broker failures.
func (c *Client) checkStatus(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}

	var apiErr envelope
	_ = json.Unmarshal(body, &apiErr)

	if apiErr.ErrorType == "TokenException" {
		return fmt.Errorf("kite: %s: %w", apiErr.Message, domain.ErrCredentialExpired)
	}

	switch statusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		// A 401/403 without a TokenException means the API key or
		// checksum itself was refused, not that the session lapsed.
		return fmt.Errorf("kite: unauthorized: %s (%s): %w", apiErr.Message, apiErr.ErrorType, domain.ErrUnauthorized)
	case http.StatusTooManyRequests:
		return fmt.Errorf("kite: rate limited: %s: %w", apiErr.Message, domain.ErrExternalCall)
	case http.StatusBadRequest:
		return fmt.Errorf("kite: bad request: %s (%s)", apiErr.Message, apiErr.ErrorType)
	default:
		return fmt.Errorf("kite: HTTP %d: %s (%s): %w", statusCode, apiErr.Message, apiErr.ErrorType, domain.ErrExternalCall)
	}
}
