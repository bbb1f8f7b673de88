package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/arjunr-dev/scantrader/internal/domain"
)

// SettingsStore implements domain.SettingsStore using PostgreSQL. The
// settings live in a single JSONB document row.
type SettingsStore struct {
	pool *pgxpool.Pool
}

// NewSettingsStore creates a new SettingsStore backed by the given connection pool.
func NewSettingsStore(pool *pgxpool.Pool) *SettingsStore {
	return &SettingsStore{pool: pool}
}

// Get retrieves the trading settings. Defaults are returned when no
// document has been stored yet.
func (s *SettingsStore) Get(ctx context.Context) (domain.Settings, error) {
	const query = `SELECT doc FROM trading_settings WHERE id = 1`

	var doc []byte
	err := s.pool.QueryRow(ctx, query).Scan(&doc)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.DefaultSettings(), nil
		}
		return domain.Settings{}, fmt.Errorf("postgres: get settings: %w", err)
	}

	var settings domain.Settings
	if err := json.Unmarshal(doc, &settings); err != nil {
		return domain.Settings{}, fmt.Errorf("postgres: unmarshal settings: %w", err)
	}
	return settings, nil
}

// Put stores the trading settings document, replacing any previous one.
func (s *SettingsStore) Put(ctx context.Context, settings domain.Settings) error {
	doc, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("postgres: marshal settings: %w", err)
	}

	const query = `
		INSERT INTO trading_settings (id, doc, updated_at)
		VALUES (1, $1, NOW())
		ON CONFLICT (id) DO UPDATE SET
			doc        = EXCLUDED.doc,
			updated_at = NOW()`

	if _, err := s.pool.Exec(ctx, query, doc); err != nil {
		return fmt.Errorf("postgres: put settings: %w", err)
	}
	return nil
}

// SeedDefault stores the given settings only when no document exists
// yet. An operator-edited document is never overwritten on restart.
func (s *SettingsStore) SeedDefault(ctx context.Context, settings domain.Settings) error {
	doc, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("postgres: marshal settings: %w", err)
	}

	const query = `
		INSERT INTO trading_settings (id, doc, updated_at)
		VALUES (1, $1, NOW())
		ON CONFLICT (id) DO NOTHING`

	if _, err := s.pool.Exec(ctx, query, doc); err != nil {
		return fmt.Errorf("postgres: seed settings: %w", err)
	}
	return nil
}
