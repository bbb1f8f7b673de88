package domain

import "time"

// Credential is the daily-expiring session token that authorises broker
// API calls. It is replaced wholesale on re-authentication and never
// mutated field by field.
type Credential struct {
	AccessToken string
	UserID      string
	UserName    string
	IssuedAt    time.Time
	ExpiresAt   time.Time
}

// Empty reports whether no token is held.
func (c Credential) Empty() bool {
	return c.AccessToken == ""
}

// ValidAt reports whether the credential authorises calls at the given
// instant. Validity requires a non-empty token strictly before expiry.
func (c Credential) ValidAt(now time.Time) bool {
	return !c.Empty() && now.Before(c.ExpiresAt)
}

// Funds is the available trading balance reported by the broker.
type Funds struct {
	Available float64
	Currency  string
}

// Profile identifies the broker account owning the session.
type Profile struct {
	UserID   string
	UserName string
	Email    string
	Broker   string
}
