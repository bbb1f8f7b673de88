package kite

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arjunr-dev/scantrader/internal/domain"
)

func TestAuthenticateExchangesRequestToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/session/token", r.URL.Path)
		require.NoError(t, r.ParseForm())

		sum := sha256.Sum256([]byte("key" + "reqtok" + "secret"))
		assert.Equal(t, hex.EncodeToString(sum[:]), r.PostForm.Get("checksum"))
		assert.Equal(t, "key", r.PostForm.Get("api_key"))
		assert.Empty(t, r.Header.Get("Authorization"))

		w.Write([]byte(`{"status":"success","data":{"access_token":"tok123","user_id":"AB1234","user_name":"Test User"}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key", "secret", "")
	cred, err := c.Authenticate(context.Background(), "reqtok")
	require.NoError(t, err)
	assert.Equal(t, "tok123", cred.AccessToken)
	assert.Equal(t, "AB1234", cred.UserID)
}

func TestPlaceOrderSendsRegularMarketOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/orders/regular", r.URL.Path)
		require.NoError(t, r.ParseForm())

		assert.Equal(t, "token key:tok123", r.Header.Get("Authorization"))
		assert.Equal(t, "3", r.Header.Get("X-Kite-Version"))
		assert.Equal(t, "RELIANCE", r.PostForm.Get("tradingsymbol"))
		assert.Equal(t, "NSE", r.PostForm.Get("exchange"))
		assert.Equal(t, "BUY", r.PostForm.Get("transaction_type"))
		assert.Equal(t, "50", r.PostForm.Get("quantity"))
		assert.Equal(t, "MARKET", r.PostForm.Get("order_type"))
		assert.Equal(t, "CNC", r.PostForm.Get("product"))

		w.Write([]byte(`{"status":"success","data":{"order_id":"230101000001"}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key", "secret", "")
	c.SetAccessToken("tok123")

	orderID, err := c.PlaceOrder(context.Background(), domain.OrderRequest{
		Symbol:   "RELIANCE",
		Exchange: "NSE",
		Side:     domain.OrderSideBuy,
		Quantity: 50,
	})
	require.NoError(t, err)
	assert.Equal(t, "230101000001", orderID)
}

func TestTokenExceptionMapsToCredentialError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"status":"error","message":"Token is invalid or has expired.","error_type":"TokenException"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key", "secret", "")
	c.SetAccessToken("stale")

	_, err := c.Funds(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrCredentialExpired)
}

func TestRefusedKeyMapsToUnauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"status":"error","message":"Invalid API credentials.","error_type":"InputException"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key", "secret", "")

	_, err := c.Authenticate(context.Background(), "reqtok")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	assert.NotErrorIs(t, err, domain.ErrCredentialExpired)
}

func TestFundsPrefersLiveBalance(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/user/margins/equity", r.URL.Path)
		w.Write([]byte(`{"status":"success","data":{"net":9000,"available":{"cash":8000,"live_balance":9000}}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key", "secret", "")
	c.SetAccessToken("tok123")

	funds, err := c.Funds(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 9000.0, funds.Available)
	assert.Equal(t, "INR", funds.Currency)
}
