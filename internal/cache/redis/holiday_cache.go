package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/arjunr-dev/scantrader/internal/domain"
)

// HolidayCache implements domain.HolidayCache using Redis string values
// with JSON-serialized holiday lists.
//
// Key schema:
//
//	holidays:{year} - JSON array of holidays for that calendar year
type HolidayCache struct {
	rdb *redis.Client
}

// NewHolidayCache creates a HolidayCache backed by the given Client.
func NewHolidayCache(c *Client) *HolidayCache {
	return &HolidayCache{rdb: c.Underlying()}
}

func holidayKey(year int) string { return "holidays:" + strconv.Itoa(year) }

// Get retrieves the cached holiday list for a year. The second return
// reports whether the year was present.
func (hc *HolidayCache) Get(ctx context.Context, year int) ([]domain.Holiday, bool, error) {
	data, err := hc.rdb.Get(ctx, holidayKey(year)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("redis: get holidays %d: %w", year, err)
	}

	var holidays []domain.Holiday
	if err := json.Unmarshal(data, &holidays); err != nil {
		return nil, false, fmt.Errorf("redis: unmarshal holidays %d: %w", year, err)
	}
	return holidays, true, nil
}

// Set stores the holiday list for a year with the given TTL.
func (hc *HolidayCache) Set(ctx context.Context, year int, holidays []domain.Holiday, ttl time.Duration) error {
	data, err := json.Marshal(holidays)
	if err != nil {
		return fmt.Errorf("redis: marshal holidays %d: %w", year, err)
	}

	if err := hc.rdb.Set(ctx, holidayKey(year), data, ttl).Err(); err != nil {
		return fmt.Errorf("redis: set holidays %d: %w", year, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.HolidayCache = (*HolidayCache)(nil)
