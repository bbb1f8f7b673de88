package kite

// --------------------------------------------------------------------------
// Kite API DTOs
// --------------------------------------------------------------------------

// envelope is the standard Kite response wrapper. Data is decoded per
// endpoint by the caller.
type envelope struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	ErrorType string `json:"error_type"`
}

// sessionData is the payload returned by the token exchange endpoint.
type sessionData struct {
	AccessToken string `json:"access_token"`
	UserID      string `json:"user_id"`
	UserName    string `json:"user_name"`
	Email       string `json:"email"`
	LoginTime   string `json:"login_time"`
}

// profileData is the payload returned by the user profile endpoint.
type profileData struct {
	UserID   string `json:"user_id"`
	UserName string `json:"user_name"`
	Email    string `json:"email"`
	Broker   string `json:"broker"`
}

// marginsData is the payload returned by the equity margins endpoint.
type marginsData struct {
	Net       float64 `json:"net"`
	Available struct {
		Cash        float64 `json:"cash"`
		LiveBalance float64 `json:"live_balance"`
	} `json:"available"`
}

// orderData is the payload returned when an order is accepted.
type orderData struct {
	OrderID string `json:"order_id"`
}
