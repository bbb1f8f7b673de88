// Package market computes the exchange trading window and maintains the
// holiday set it is judged against.
package market

import (
	"fmt"
	"sync"
	"time"

	"github.com/arjunr-dev/scantrader/internal/domain"
)

const dateLayout = "2006-01-02"

// Calendar answers whether the market is open at a given instant.
// Status is deterministic given the instant and the currently loaded
// holiday set; the only mutable state is the holiday set itself, which
// the app refreshes from the exchange feed.
type Calendar struct {
	loc          *time.Location
	sessionStart int // minutes from midnight
	sessionEnd   int

	mu       sync.RWMutex
	holidays map[string]domain.Holiday // keyed by YYYY-MM-DD in loc
}

// NewCalendar builds a Calendar for the given IANA timezone and session
// window expressed as "HH:MM" strings.
func NewCalendar(timezone, sessionStart, sessionEnd string) (*Calendar, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("market: load timezone %q: %w", timezone, err)
	}
	start, err := parseClock(sessionStart)
	if err != nil {
		return nil, fmt.Errorf("market: session start: %w", err)
	}
	end, err := parseClock(sessionEnd)
	if err != nil {
		return nil, fmt.Errorf("market: session end: %w", err)
	}
	if end <= start {
		return nil, fmt.Errorf("market: session end %q not after start %q", sessionEnd, sessionStart)
	}
	return &Calendar{
		loc:          loc,
		sessionStart: start,
		sessionEnd:   end,
		holidays:     make(map[string]domain.Holiday),
	}, nil
}

// SetHolidays replaces the holiday set wholesale.
func (c *Calendar) SetHolidays(holidays []domain.Holiday) {
	m := make(map[string]domain.Holiday, len(holidays))
	for _, h := range holidays {
		m[h.Date] = h
	}
	c.mu.Lock()
	c.holidays = m
	c.mu.Unlock()
}

// Location returns the session timezone.
func (c *Calendar) Location() *time.Location {
	return c.loc
}

// Status reports the trading window at the given instant. Closure rules
// apply in priority order: weekend, holiday, outside session hours.
// NextOpenAt is always strictly after now and never falls on a weekend
// or holiday.
func (c *Calendar) Status(now time.Time) domain.MarketStatus {
	local := now.In(c.loc)

	status := domain.MarketStatus{}
	switch {
	case isWeekend(local):
		status.Reason = domain.CloseReasonWeekend
	case c.isHoliday(local):
		status.Reason = domain.CloseReasonHoliday
	default:
		minutes := local.Hour()*60 + local.Minute()
		switch {
		case minutes < c.sessionStart:
			status.Reason = domain.CloseReasonBeforeHours
		case minutes >= c.sessionEnd:
			status.Reason = domain.CloseReasonAfterHours
		default:
			status.IsOpen = true
		}
	}

	status.NextOpenAt = c.nextOpen(local)
	return status
}

// isHoliday compares by calendar date in the session timezone, never by
// instant, so a valid trading day is not misclassified at a timezone
// boundary.
func (c *Calendar) isHoliday(local time.Time) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.holidays[local.Format(dateLayout)]
	return ok
}

// HolidayFor returns the holiday on the given instant's date, if any.
func (c *Calendar) HolidayFor(now time.Time) (domain.Holiday, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	h, ok := c.holidays[now.In(c.loc).Format(dateLayout)]
	return h, ok
}

// nextOpen advances day by day from local until a date clears the
// weekend and holiday rules, then fixes the time to session start. If
// today's session start is not strictly in the future, the scan begins
// tomorrow.
func (c *Calendar) nextOpen(local time.Time) time.Time {
	day := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, c.loc)
	candidate := c.atSessionStart(day)
	if !candidate.After(local) {
		day = day.AddDate(0, 0, 1)
	}

	// 366 days is more than any run of closed dates a real exchange has.
	for i := 0; i < 366; i++ {
		if !isWeekend(day) && !c.isHoliday(day) {
			open := c.atSessionStart(day)
			if open.After(local) {
				return open
			}
		}
		day = day.AddDate(0, 0, 1)
	}
	return c.atSessionStart(day)
}

func (c *Calendar) atSessionStart(day time.Time) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), c.sessionStart/60, c.sessionStart%60, 0, 0, c.loc)
}

func isWeekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

func parseClock(s string) (int, error) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return 0, fmt.Errorf("parse clock %q: %w", s, err)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("clock %q out of range", s)
	}
	return h*60 + m, nil
}
