package fx

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresHistory reads and writes the currency_rates table.
type PostgresHistory struct {
	pool *pgxpool.Pool
}

var _ History = (*PostgresHistory)(nil)

// NewPostgresHistory constructs the Postgres-backed history.
func NewPostgresHistory(pool *pgxpool.Pool) *PostgresHistory {
	return &PostgresHistory{pool: pool}
}

func (h *PostgresHistory) RateInMonth(ctx context.Context, pair Pair, month time.Time) (Rate, bool, error) {
	start := monthStart(month)
	return h.one(ctx, `SELECT rate_date, rate FROM currency_rates
WHERE from_currency = $1 AND to_currency = $2 AND rate_date >= $3 AND rate_date < $4
ORDER BY rate_date DESC LIMIT 1`, pair, pair.From, pair.To, start, start.AddDate(0, 1, 0))
}

func (h *PostgresHistory) LatestRate(ctx context.Context, pair Pair, asOf time.Time) (Rate, bool, error) {
	if asOf.IsZero() {
		return h.one(ctx, `SELECT rate_date, rate FROM currency_rates
WHERE from_currency = $1 AND to_currency = $2 ORDER BY rate_date DESC LIMIT 1`, pair, pair.From, pair.To)
	}
	return h.one(ctx, `SELECT rate_date, rate FROM currency_rates
WHERE from_currency = $1 AND to_currency = $2 AND rate_date <= $3
ORDER BY rate_date DESC LIMIT 1`, pair, pair.From, pair.To, asOf)
}

// SaveRate upserts a rate for its pair and date.
func (h *PostgresHistory) SaveRate(ctx context.Context, rate Rate) error {
	if err := checkRate(rate); err != nil {
		return err
	}
	_, err := h.pool.Exec(ctx, `INSERT INTO currency_rates (from_currency, to_currency, rate_date, rate)
VALUES ($1, $2, $3, $4)
ON CONFLICT (from_currency, to_currency, rate_date) DO UPDATE SET rate = EXCLUDED.rate`,
		rate.Pair.From, rate.Pair.To, rate.Date, rate.Value)
	if err != nil {
		return fmt.Errorf("fx: save rate %s: %w", rate.Pair, err)
	}
	return nil
}

func (h *PostgresHistory) one(ctx context.Context, sql string, pair Pair, args ...any) (Rate, bool, error) {
	rate := Rate{Pair: pair}
	err := h.pool.QueryRow(ctx, sql, args...).Scan(&rate.Date, &rate.Value)
	if errors.Is(err, pgx.ErrNoRows) {
		return Rate{}, false, nil
	}
	if err != nil {
		return Rate{}, false, err
	}
	return rate, true, nil
}

func checkRate(rate Rate) error {
	if rate.Pair.From == "" || rate.Pair.To == "" {
		return fmt.Errorf("fx: rate pair required")
	}
	if rate.Date.IsZero() {
		return fmt.Errorf("fx: rate date required")
	}
	if !rate.Value.IsPositive() {
		return fmt.Errorf("fx: rate for %s must be positive", rate.Pair)
	}
	return nil
}
