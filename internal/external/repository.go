package external

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mtlprog/eventpass/internal/domain"
)

// RateRecord is one stored spot rate.
type RateRecord struct {
	TokenID   string    `json:"tokenId"`
	Currency  string    `json:"currency"`
	Rate      float64   `json:"rate"`
	FetchedAt time.Time `json:"fetchedAt"`
}

// RateRepository defines persistent storage for spot-rate history.
type RateRepository interface {
	SaveSnapshot(ctx context.Context, prices domain.Prices, fetchedAt time.Time) error
	ListRates(ctx context.Context, tokenID, currency string, limit int) ([]RateRecord, error)
}

// PgRateRepository implements RateRepository with PostgreSQL.
type PgRateRepository struct {
	pool *pgxpool.Pool
}

// NewPgRateRepository creates a new PostgreSQL rate repository.
func NewPgRateRepository(pool *pgxpool.Pool) *PgRateRepository {
	return &PgRateRepository{pool: pool}
}

func (r *PgRateRepository) SaveSnapshot(ctx context.Context, prices domain.Prices, fetchedAt time.Time) error {
	batch := &pgx.Batch{}
	for tokenID, rates := range prices {
		for currency, rate := range rates {
			batch.Queue(
				`INSERT INTO spot_rates (token_id, currency, rate, fetched_at)
				 VALUES ($1, $2, $3, $4)
				 ON CONFLICT (token_id, currency, fetched_at) DO NOTHING`,
				tokenID, strings.ToLower(currency), rate, fetchedAt)
		}
	}
	if batch.Len() == 0 {
		return nil
	}
	if err := r.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("saving %d spot rates: %w", batch.Len(), err)
	}
	return nil
}

func (r *PgRateRepository) ListRates(ctx context.Context, tokenID, currency string, limit int) ([]RateRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx,
		`SELECT token_id, currency, rate, fetched_at FROM spot_rates
		 WHERE token_id = $1 AND currency = $2
		 ORDER BY fetched_at DESC
		 LIMIT $3`,
		tokenID, strings.ToLower(currency), limit)
	if err != nil {
		return nil, fmt.Errorf("listing rates for %s/%s: %w", tokenID, currency, err)
	}

	records, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (RateRecord, error) {
		var rec RateRecord
		err := row.Scan(&rec.TokenID, &rec.Currency, &rec.Rate, &rec.FetchedAt)
		return rec, err
	})
	if err != nil {
		return nil, fmt.Errorf("scanning rates: %w", err)
	}
	return records, nil
}
