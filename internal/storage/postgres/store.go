package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"swapScope/internal/model"
)

// Store provides Postgres persistence for the swap journal.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// PutSwapBatch inserts or updates swap records keyed by correlation id.
func (s *Store) PutSwapBatch(records []model.SwapRecord) error {
	return s.UpsertSwaps(context.Background(), records)
}

// UpsertSwaps inserts or updates swap journal rows.
func (s *Store) UpsertSwaps(ctx context.Context, records []model.SwapRecord) error {
	if len(records) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, record := range records {
		batch.Queue(`
			INSERT INTO swaps (
				correlation_id, owner, from_root, to_root, route,
				spent, received, status, cancelled_hop, submitted_at, settled_at, created_at, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,now(),now())
			ON CONFLICT (correlation_id)
			DO UPDATE SET
				spent = EXCLUDED.spent,
				received = EXCLUDED.received,
				status = EXCLUDED.status,
				cancelled_hop = EXCLUDED.cancelled_hop,
				settled_at = EXCLUDED.settled_at,
				updated_at = now()
		`,
			int64(record.CorrelationID),
			record.Owner,
			record.FromRoot,
			record.ToRoot,
			record.Route,
			record.Spent,
			record.Received,
			record.Status,
			record.CancelledHop,
			time.Unix(record.SubmittedAt, 0).UTC(),
			time.Unix(record.SettledAt, 0).UTC(),
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range records {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// RecentSwaps returns the latest journal rows for an owner.
func (s *Store) RecentSwaps(ctx context.Context, owner string, limit int) ([]model.SwapRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT correlation_id, owner, from_root, to_root, route,
		       spent, received, status, cancelled_hop, submitted_at, settled_at
		FROM swaps
		WHERE owner = $1
		ORDER BY submitted_at DESC
		LIMIT $2
	`, owner, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []model.SwapRecord
	for rows.Next() {
		var record model.SwapRecord
		var correlationID int64
		var submittedAt, settledAt time.Time
		if err := rows.Scan(
			&correlationID,
			&record.Owner,
			&record.FromRoot,
			&record.ToRoot,
			&record.Route,
			&record.Spent,
			&record.Received,
			&record.Status,
			&record.CancelledHop,
			&submittedAt,
			&settledAt,
		); err != nil {
			return nil, err
		}
		record.CorrelationID = uint64(correlationID)
		record.SubmittedAt = submittedAt.Unix()
		record.SettledAt = settledAt.Unix()
		records = append(records, record)
	}
	return records, rows.Err()
}
