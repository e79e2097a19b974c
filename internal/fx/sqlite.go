package fx

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const sqliteDate = "2006-01-02"

// SQLiteHistory reads and writes the currency_rates table of a SQLite ledger.
type SQLiteHistory struct {
	db *sql.DB
}

var _ History = (*SQLiteHistory)(nil)

// NewSQLiteHistory constructs the SQLite-backed history.
func NewSQLiteHistory(db *sql.DB) *SQLiteHistory {
	return &SQLiteHistory{db: db}
}

func (h *SQLiteHistory) RateInMonth(ctx context.Context, pair Pair, month time.Time) (Rate, bool, error) {
	start := monthStart(month)
	return h.one(ctx, `SELECT rate_date, rate FROM currency_rates
WHERE from_currency = ? AND to_currency = ? AND rate_date >= ? AND rate_date < ?
ORDER BY rate_date DESC LIMIT 1`, pair, pair.From, pair.To, start.Format(sqliteDate), start.AddDate(0, 1, 0).Format(sqliteDate))
}

func (h *SQLiteHistory) LatestRate(ctx context.Context, pair Pair, asOf time.Time) (Rate, bool, error) {
	if asOf.IsZero() {
		return h.one(ctx, `SELECT rate_date, rate FROM currency_rates
WHERE from_currency = ? AND to_currency = ? ORDER BY rate_date DESC LIMIT 1`, pair, pair.From, pair.To)
	}
	return h.one(ctx, `SELECT rate_date, rate FROM currency_rates
WHERE from_currency = ? AND to_currency = ? AND rate_date <= ?
ORDER BY rate_date DESC LIMIT 1`, pair, pair.From, pair.To, asOf.Format(sqliteDate))
}

// SaveRate upserts a rate for its pair and date.
func (h *SQLiteHistory) SaveRate(ctx context.Context, rate Rate) error {
	if err := checkRate(rate); err != nil {
		return err
	}
	_, err := h.db.ExecContext(ctx, `INSERT INTO currency_rates (from_currency, to_currency, rate_date, rate)
VALUES (?, ?, ?, ?)
ON CONFLICT (from_currency, to_currency, rate_date) DO UPDATE SET rate = excluded.rate`,
		rate.Pair.From, rate.Pair.To, rate.Date.Format(sqliteDate), rate.Value)
	if err != nil {
		return fmt.Errorf("fx: save rate %s: %w", rate.Pair, err)
	}
	return nil
}

func (h *SQLiteHistory) one(ctx context.Context, query string, pair Pair, args ...any) (Rate, bool, error) {
	var (
		rate = Rate{Pair: pair}
		date string
	)
	err := h.db.QueryRowContext(ctx, query, args...).Scan(&date, &rate.Value)
	if errors.Is(err, sql.ErrNoRows) {
		return Rate{}, false, nil
	}
	if err != nil {
		return Rate{}, false, err
	}
	if rate.Date, err = time.Parse(sqliteDate, date); err != nil {
		return Rate{}, false, fmt.Errorf("fx: rate date %q: %w", date, err)
	}
	return rate, true, nil
}
