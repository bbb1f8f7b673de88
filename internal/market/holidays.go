package market

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/arjunr-dev/scantrader/internal/domain"
)

// nseHolidayURL serves the exchange's trading-holiday master list.
const nseHolidayURL = "https://www.nseindia.com/api/holiday-master?type=trading"

// nseDateLayout is the date format used by the holiday feed, e.g. "26-Jan-2026".
const nseDateLayout = "02-Jan-2006"

// HolidayFetcher pulls the exchange holiday list over HTTP and caches it
// for a day. On fetch failure it falls back to whatever the cache still
// holds, stale or not, because a stale holiday list beats an empty one.
type HolidayFetcher struct {
	client *http.Client
	cache  domain.HolidayCache
	ttl    time.Duration
	logger *slog.Logger
}

// NewHolidayFetcher creates a fetcher backed by the given cache.
func NewHolidayFetcher(cache domain.HolidayCache, logger *slog.Logger) *HolidayFetcher {
	return &HolidayFetcher{
		client: &http.Client{Timeout: 10 * time.Second},
		cache:  cache,
		ttl:    24 * time.Hour,
		logger: logger.With(slog.String("component", "holidays")),
	}
}

// nseHolidayResponse mirrors the subset of the feed we read. CM is the
// capital-market segment.
type nseHolidayResponse struct {
	CM []struct {
		TradingDate string `json:"tradingDate"`
		Description string `json:"description"`
	} `json:"CM"`
}

// Holidays returns the holiday list for the given year, from cache when
// fresh, otherwise from the exchange feed.
func (f *HolidayFetcher) Holidays(ctx context.Context, year int) ([]domain.Holiday, error) {
	if f.cache != nil {
		cached, ok, err := f.cache.Get(ctx, year)
		if err != nil {
			f.logger.WarnContext(ctx, "holiday cache read failed", slog.String("error", err.Error()))
		} else if ok {
			return cached, nil
		}
	}

	holidays, err := f.fetch(ctx)
	if err != nil {
		// Fetch failed; a stale cache entry is still usable.
		if f.cache != nil {
			if cached, ok, cacheErr := f.cache.Get(ctx, year); cacheErr == nil && ok {
				f.logger.WarnContext(ctx, "using stale holiday cache after fetch failure",
					slog.String("error", err.Error()),
				)
				return cached, nil
			}
		}
		return nil, err
	}

	if f.cache != nil {
		if err := f.cache.Set(ctx, year, holidays, f.ttl); err != nil {
			f.logger.WarnContext(ctx, "holiday cache write failed", slog.String("error", err.Error()))
		}
	}
	return holidays, nil
}

func (f *HolidayFetcher) fetch(ctx context.Context) ([]domain.Holiday, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, nseHolidayURL, nil)
	if err != nil {
		return nil, fmt.Errorf("market: create holiday request: %w", err)
	}
	// The exchange endpoint rejects requests without a browser-like agent.
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64)")
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("market: fetch holidays: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("market: fetch holidays: status %d: %s", resp.StatusCode, string(body))
	}

	var parsed nseHolidayResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("market: decode holiday feed: %w", err)
	}

	holidays := make([]domain.Holiday, 0, len(parsed.CM))
	for _, h := range parsed.CM {
		d, err := time.Parse(nseDateLayout, h.TradingDate)
		if err != nil {
			f.logger.Warn("skipping unparsable holiday date",
				slog.String("trading_date", h.TradingDate),
			)
			continue
		}
		holidays = append(holidays, domain.Holiday{
			Date:        d.Format(dateLayout),
			Description: h.Description,
		})
	}
	return holidays, nil
}
