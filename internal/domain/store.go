package domain

import (
	"context"
	"io"
	"time"
)

// ListOpts provides pagination for list queries.
type ListOpts struct {
	Limit  int
	Offset int
}

// LedgerStore persists terminal order attempts. Append-only: rows are
// never updated after insertion.
type LedgerStore interface {
	Append(ctx context.Context, entry LedgerEntry) error
	ListRecent(ctx context.Context, opts ListOpts) ([]LedgerEntry, error)
	ListBetween(ctx context.Context, from, to time.Time) ([]LedgerEntry, error)
	SummarizeBetween(ctx context.Context, from, to time.Time) (LedgerSummary, error)
}

// SettingsStore persists the trading settings document.
type SettingsStore interface {
	Get(ctx context.Context) (Settings, error)
	Put(ctx context.Context, s Settings) error
}

// HolidayCache caches the fetched exchange holiday list.
type HolidayCache interface {
	Get(ctx context.Context, year int) ([]Holiday, bool, error)
	Set(ctx context.Context, year int, holidays []Holiday, ttl time.Duration) error
}

// RateLimiter is the ingress-side request limiter used by the HTTP
// middleware. The broker call budget uses the in-process token bucket in
// internal/ratelimit instead; this interface only shields the webhook
// from scanner retry storms.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// BlobWriter uploads objects to cold storage, used by the end-of-day
// ledger archival. The body is streamed, never buffered whole.
type BlobWriter interface {
	Put(ctx context.Context, path string, body io.Reader, contentType string) error
}
