package domain

import "context"

// Broker is the abstract brokerage capability the core depends on. The
// concrete wire protocol lives in internal/platform/kite and is
// invisible here.
type Broker interface {
	// Authenticate completes the interactive login handshake using the
	// request token produced by the broker's login redirect and returns
	// a fresh session credential.
	Authenticate(ctx context.Context, requestToken string) (Credential, error)

	// Profile fetches the account profile for the current session.
	Profile(ctx context.Context) (Profile, error)

	// Funds returns the available trading balance.
	Funds(ctx context.Context) (Funds, error)

	// PlaceOrder submits a market delivery order and returns the broker
	// order id. Orders are not cancellable once sent.
	PlaceOrder(ctx context.Context, req OrderRequest) (string, error)
}
