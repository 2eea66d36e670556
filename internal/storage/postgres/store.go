package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"priceScope/internal/model"
)

// Store provides Postgres persistence for price quotes.
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

// PutQuoteBatch upserts token symbols and inserts one row per quote.
func (s *Store) PutQuoteBatch(ctx context.Context, quotes []model.PriceQuote) error {
	if len(quotes) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, q := range quotes {
		batch.Queue(`
			INSERT INTO tokens (chain_id, address, symbol, created_at, updated_at)
			VALUES ($1, $2, $3, now(), now())
			ON CONFLICT (chain_id, address)
			DO UPDATE SET
				symbol = COALESCE(NULLIF(EXCLUDED.symbol, ''), tokens.symbol),
				updated_at = now()
		`,
			int64(q.ChainID),
			q.Token,
			q.Symbol,
		)
		batch.Queue(`
			INSERT INTO price_quotes (
				chain_id, token, quote_token, block_number, block_ts,
				numerator, denominator, price, route, available, observed_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
			ON CONFLICT (chain_id, token, quote_token, block_number)
			DO UPDATE SET
				numerator = EXCLUDED.numerator,
				denominator = EXCLUDED.denominator,
				price = EXCLUDED.price,
				route = EXCLUDED.route,
				available = EXCLUDED.available,
				observed_at = EXCLUDED.observed_at
		`,
			int64(q.ChainID),
			q.Token,
			q.Quote,
			int64(q.BlockNumber),
			int64(q.Timestamp),
			nullable(q.Numerator),
			nullable(q.Denominator),
			nullable(q.Price),
			q.Route,
			q.Available,
			q.ObservedAt,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("store quotes: %w", err)
		}
	}
	return nil
}

// LoadState returns the last processed block for a name.
func (s *Store) LoadState(ctx context.Context, name string) (uint64, bool, error) {
	if name == "" {
		return 0, false, fmt.Errorf("state name required")
	}
	var block int64
	row := s.pool.QueryRow(ctx, `SELECT last_processed_block FROM pricer_state WHERE name=$1`, name)
	if err := row.Scan(&block); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return uint64(block), true, nil
}

// SaveState upserts the last processed block for a name.
func (s *Store) SaveState(ctx context.Context, name string, block uint64) error {
	if name == "" {
		return fmt.Errorf("state name required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO pricer_state (name, last_processed_block, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE
		SET last_processed_block = EXCLUDED.last_processed_block, updated_at = now()
	`, name, int64(block))
	return err
}

func nullable(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
