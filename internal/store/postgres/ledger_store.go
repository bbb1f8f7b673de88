package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/arjunr-dev/scantrader/internal/domain"
)

// LedgerStore implements domain.LedgerStore using PostgreSQL.
type LedgerStore struct {
	pool *pgxpool.Pool
}

// NewLedgerStore creates a new LedgerStore backed by the given connection pool.
func NewLedgerStore(pool *pgxpool.Pool) *LedgerStore {
	return &LedgerStore{pool: pool}
}

const ledgerSelectCols = `id, signal_id, scan_name, symbol, side, trigger_price,
	quantity, status, broker_order_id, failure_reason, recorded_at`

func scanLedgerRows(rows pgx.Rows) ([]domain.LedgerEntry, error) {
	var entries []domain.LedgerEntry
	for rows.Next() {
		var e domain.LedgerEntry
		if err := rows.Scan(
			&e.ID, &e.SignalID, &e.ScanName, &e.Symbol, &e.Side,
			&e.TriggerPrice, &e.Quantity, &e.Status,
			&e.BrokerOrderID, &e.FailureReason, &e.RecordedAt,
		); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Append inserts one terminal attempt. Re-appending the same attempt ID
// is a no-op, so a retried settlement cannot duplicate rows.
func (s *LedgerStore) Append(ctx context.Context, entry domain.LedgerEntry) error {
	const query = `
		INSERT INTO order_ledger (
			id, signal_id, scan_name, symbol, side, trigger_price,
			quantity, status, broker_order_id, failure_reason, recorded_at
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10, $11
		) ON CONFLICT (id) DO NOTHING`

	_, err := s.pool.Exec(ctx, query,
		entry.ID, entry.SignalID, entry.ScanName, entry.Symbol, entry.Side,
		entry.TriggerPrice, entry.Quantity, entry.Status,
		entry.BrokerOrderID, entry.FailureReason, entry.RecordedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: append ledger entry %s: %w", entry.ID, err)
	}
	return nil
}

// ListRecent returns the most recently recorded entries, newest first.
func (s *LedgerStore) ListRecent(ctx context.Context, opts domain.ListOpts) ([]domain.LedgerEntry, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT ` + ledgerSelectCols + ` FROM order_ledger
		ORDER BY recorded_at DESC LIMIT $1 OFFSET $2`

	rows, err := s.pool.Query(ctx, query, limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("postgres: list recent ledger entries: %w", err)
	}
	defer rows.Close()

	entries, err := scanLedgerRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan ledger entries: %w", err)
	}
	return entries, nil
}

// ListBetween returns entries recorded in [from, to), oldest first.
func (s *LedgerStore) ListBetween(ctx context.Context, from, to time.Time) ([]domain.LedgerEntry, error) {
	query := `SELECT ` + ledgerSelectCols + ` FROM order_ledger
		WHERE recorded_at >= $1 AND recorded_at < $2
		ORDER BY recorded_at ASC`

	rows, err := s.pool.Query(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("postgres: list ledger entries between %v and %v: %w", from, to, err)
	}
	defer rows.Close()

	entries, err := scanLedgerRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan ledger entries: %w", err)
	}
	return entries, nil
}

// SummarizeBetween aggregates attempt counts and placed value over
// [from, to).
func (s *LedgerStore) SummarizeBetween(ctx context.Context, from, to time.Time) (domain.LedgerSummary, error) {
	const query = `
		SELECT
			COUNT(*) FILTER (WHERE status = 'placed'),
			COUNT(*) FILTER (WHERE status = 'skipped'),
			COUNT(*) FILTER (WHERE status = 'rejected'),
			COALESCE(SUM(trigger_price * quantity) FILTER (WHERE status = 'placed'), 0)
		FROM order_ledger
		WHERE recorded_at >= $1 AND recorded_at < $2`

	var summary domain.LedgerSummary
	err := s.pool.QueryRow(ctx, query, from, to).Scan(
		&summary.Placed, &summary.Skipped, &summary.Rejected, &summary.CommittedValue,
	)
	if err != nil {
		return domain.LedgerSummary{}, fmt.Errorf("postgres: summarize ledger between %v and %v: %w", from, to, err)
	}
	return summary, nil
}
