package market

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arjunr-dev/scantrader/internal/domain"
)

func newTestCalendar(t *testing.T) *Calendar {
	t.Helper()
	cal, err := NewCalendar("Asia/Kolkata", "09:00", "15:30")
	require.NoError(t, err)
	cal.SetHolidays([]domain.Holiday{
		{Date: "2026-01-26", Description: "Republic Day"}, // a Monday
	})
	return cal
}

func ist(t *testing.T, value string) time.Time {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Kolkata")
	require.NoError(t, err)
	ts, err := time.ParseInLocation("2006-01-02 15:04", value, loc)
	require.NoError(t, err)
	return ts
}

func TestStatusRules(t *testing.T) {
	cal := newTestCalendar(t)

	cases := []struct {
		name   string
		now    string
		open   bool
		reason domain.CloseReason
	}{
		{"saturday", "2026-01-24 11:00", false, domain.CloseReasonWeekend},
		{"sunday", "2026-01-25 11:00", false, domain.CloseReasonWeekend},
		{"holiday", "2026-01-26 11:00", false, domain.CloseReasonHoliday},
		{"before open", "2026-01-27 08:59", false, domain.CloseReasonBeforeHours},
		{"at open", "2026-01-27 09:00", true, domain.CloseReasonNone},
		{"midday", "2026-01-27 12:30", true, domain.CloseReasonNone},
		{"at close", "2026-01-27 15:30", false, domain.CloseReasonAfterHours},
		{"evening", "2026-01-27 18:00", false, domain.CloseReasonAfterHours},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			st := cal.Status(ist(t, tc.now))
			assert.Equal(t, tc.open, st.IsOpen)
			assert.Equal(t, tc.reason, st.Reason)
		})
	}
}

func TestWeekendTakesPriorityOverHours(t *testing.T) {
	cal := newTestCalendar(t)
	// Saturday at midday would be in-session on a weekday.
	st := cal.Status(ist(t, "2026-01-24 12:00"))
	assert.False(t, st.IsOpen)
	assert.Equal(t, domain.CloseReasonWeekend, st.Reason)
}

func TestNextOpenSkipsWeekendAndHoliday(t *testing.T) {
	cal := newTestCalendar(t)

	// Friday after close: Sat/Sun are weekend, Mon 26th is a holiday, so
	// next open is Tuesday 27th at session start.
	st := cal.Status(ist(t, "2026-01-23 16:00"))
	assert.Equal(t, ist(t, "2026-01-27 09:00"), st.NextOpenAt)
}

func TestNextOpenSameDayBeforeHours(t *testing.T) {
	cal := newTestCalendar(t)
	st := cal.Status(ist(t, "2026-01-27 07:00"))
	assert.Equal(t, ist(t, "2026-01-27 09:00"), st.NextOpenAt)
}

func TestNextOpenStrictlyAfterNowAndNeverClosed(t *testing.T) {
	cal := newTestCalendar(t)
	probes := []string{
		"2026-01-23 09:00", // exactly session start, open day
		"2026-01-24 00:00",
		"2026-01-26 09:00",
		"2026-01-27 15:30",
		"2026-01-28 12:00",
	}
	for _, p := range probes {
		now := ist(t, p)
		st := cal.Status(now)
		require.True(t, st.NextOpenAt.After(now), "next open %s not after %s", st.NextOpenAt, now)
		next := cal.Status(st.NextOpenAt)
		assert.True(t, next.IsOpen, "next open %s is itself closed (%s)", st.NextOpenAt, next.Reason)
	}
}

func TestHolidayComparisonNormalizesTimezone(t *testing.T) {
	cal := newTestCalendar(t)

	// 2026-01-26 04:00 IST is still 2026-01-25 in UTC. The holiday check
	// must be done on the IST calendar date.
	utc := ist(t, "2026-01-26 04:00").UTC()
	require.Equal(t, 25, utc.Day())

	st := cal.Status(utc)
	assert.Equal(t, domain.CloseReasonHoliday, st.Reason)
}

func TestHolidayFor(t *testing.T) {
	cal := newTestCalendar(t)
	h, ok := cal.HolidayFor(ist(t, "2026-01-26 11:00"))
	require.True(t, ok)
	assert.Equal(t, "Republic Day", h.Description)

	_, ok = cal.HolidayFor(ist(t, "2026-01-27 11:00"))
	assert.False(t, ok)
}
