package domain

import "time"

// CloseReason explains why the market is closed at a given instant.
type CloseReason string

const (
	CloseReasonNone        CloseReason = ""
	CloseReasonWeekend     CloseReason = "weekend"
	CloseReasonHoliday     CloseReason = "holiday"
	CloseReasonBeforeHours CloseReason = "before-hours"
	CloseReasonAfterHours  CloseReason = "after-hours"
)

// MarketStatus is the computed open/closed state of the trading window.
// It is derived, never stored.
type MarketStatus struct {
	IsOpen     bool
	Reason     CloseReason
	NextOpenAt time.Time
}

// Holiday is one exchange trading holiday.
type Holiday struct {
	Date        string `json:"date"` // YYYY-MM-DD in the session timezone
	Description string `json:"description"`
}
