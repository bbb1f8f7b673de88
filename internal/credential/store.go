// Package credential holds the broker session credential and is the
// single authority on its validity. Broker sessions die at a fixed
// wall-clock instant every day regardless of when they were issued,
// which lands mid-session for exchanges that open after the cutover.
package credential

import (
	"sync"
	"time"

	"github.com/arjunr-dev/scantrader/internal/domain"
)

// Store owns the current session credential. The credential is swapped
// wholesale under one mutex; no partial reads are possible. Every other
// subsystem that needs a validity judgement must ask this store.
type Store struct {
	expiryHour   int
	expiryMinute int
	loc          *time.Location
	now          func() time.Time

	mu        sync.Mutex
	cred      domain.Credential
	notified  bool // expiry callback already fired for this credential
	onExpired func(domain.Credential)
}

// NewStore creates a Store whose credentials expire at the given daily
// wall-clock time in loc.
func NewStore(expiryHour, expiryMinute int, loc *time.Location) *Store {
	return &Store{
		expiryHour:   expiryHour,
		expiryMinute: expiryMinute,
		loc:          loc,
		now:          time.Now,
	}
}

// OnExpired registers the callback fired exactly once per valid→invalid
// transition. It is re-armed by Set.
func (s *Store) OnExpired(fn func(domain.Credential)) {
	s.mu.Lock()
	s.onExpired = fn
	s.mu.Unlock()
}

// Set installs a fresh credential. Expiry is computed once, here: the
// next occurrence of the daily cutover strictly after issuance, so a
// credential issued after the cutover lives until tomorrow's.
func (s *Store) Set(cred domain.Credential) domain.Credential {
	issued := cred.IssuedAt
	if issued.IsZero() {
		issued = s.now()
	}
	cred.IssuedAt = issued
	cred.ExpiresAt = s.nextExpiry(issued)

	s.mu.Lock()
	s.cred = cred
	s.notified = false
	s.mu.Unlock()
	return cred
}

// Get returns the stored credential and whether one is held at all,
// valid or not.
func (s *Store) Get() (domain.Credential, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cred, !s.cred.Empty()
}

// IsValid reports whether the stored credential authorises calls right
// now. Crossing the expiry instant is detected here lazily as well as by
// the scheduler tick; whichever observes it first fires the one-time
// expiry callback.
func (s *Store) IsValid() bool {
	valid, fire, cred := s.check()
	if fire != nil {
		fire(cred)
	}
	return valid
}

// TimeToExpiry returns the remaining credential lifetime, or zero when
// no valid credential is held.
func (s *Store) TimeToExpiry() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.cred.ValidAt(s.now()) {
		return 0
	}
	return s.cred.ExpiresAt.Sub(s.now())
}

// check evaluates validity and, on a fresh valid→invalid transition,
// hands back the callback so the caller can invoke it outside the lock.
func (s *Store) check() (valid bool, fire func(domain.Credential), cred domain.Credential) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cred = s.cred
	valid = cred.ValidAt(s.now())
	if !valid && !cred.Empty() && !s.notified {
		s.notified = true
		fire = s.onExpired
	}
	return valid, fire, cred
}

// nextExpiry is the next occurrence of the daily cutover strictly after
// the given instant.
func (s *Store) nextExpiry(after time.Time) time.Time {
	local := after.In(s.loc)
	expiry := time.Date(local.Year(), local.Month(), local.Day(), s.expiryHour, s.expiryMinute, 0, 0, s.loc)
	if !expiry.After(local) {
		expiry = expiry.AddDate(0, 0, 1)
	}
	return expiry
}
