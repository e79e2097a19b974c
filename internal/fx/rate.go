package fx

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Pair is a conversion direction: one unit of From is worth Rate units of To.
type Pair struct {
	From string
	To   string
}

// NewPair normalizes the currency codes of a pair.
func NewPair(from, to string) Pair {
	return Pair{From: normalizeCode(from), To: normalizeCode(to)}
}

func (p Pair) String() string {
	return p.From + p.To
}

// Rate is a single entry of the rate history.
type Rate struct {
	Pair  Pair
	Date  time.Time
	Value decimal.Decimal
}

// History exposes the stored exchange rate time series.
type History interface {
	// RateInMonth returns the latest rate dated inside the calendar month
	// containing month.
	RateInMonth(ctx context.Context, pair Pair, month time.Time) (Rate, bool, error)
	// LatestRate returns the latest rate dated on or before asOf. A zero asOf
	// returns the latest rate overall.
	LatestRate(ctx context.Context, pair Pair, asOf time.Time) (Rate, bool, error)
}

// ErrRateNotFound is matched by every RateNotFoundError.
var ErrRateNotFound = errors.New("fx: rate not found")

// RateNotFoundError reports a conversion that has no usable history entry.
type RateNotFoundError struct {
	Pair Pair
	AsOf time.Time
}

func (e *RateNotFoundError) Error() string {
	if e.AsOf.IsZero() {
		return fmt.Sprintf("fx: no rate for %s/%s", e.Pair.From, e.Pair.To)
	}
	return fmt.Sprintf("fx: no rate for %s/%s as of %s", e.Pair.From, e.Pair.To, e.AsOf.Format("2006-01-02"))
}

func (e *RateNotFoundError) Is(target error) bool {
	return target == ErrRateNotFound
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func monthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
