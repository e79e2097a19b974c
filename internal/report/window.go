package report

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bitlabstudio/account-keeping/internal/fx"
)

// ErrInvalidWindow marks a malformed reporting period.
var ErrInvalidWindow = errors.New("report: invalid window")

// Kind names a window strategy.
type Kind string

const (
	KindMonth      Kind = "month"
	KindAllTime    Kind = "all_time"
	KindYearToDate Kind = "year_to_date"
	KindYear       Kind = "year"
)

// RateSource converts currencies into the base currency.
type RateSource interface {
	Base() string
	Resolve(ctx context.Context, currency string, asOf time.Time) (decimal.Decimal, error)
	Latest(ctx context.Context, currency string) (decimal.Decimal, error)
	LatestPair(ctx context.Context, pair fx.Pair) (decimal.Decimal, error)
}

// Window is a reporting period together with the rate policy used to value
// it. Start is inclusive and End exclusive; a zero time leaves that side open.
type Window interface {
	Kind() Kind
	Label() string
	Start() time.Time
	End() time.Time
	Rate(ctx context.Context, rates RateSource, currency string) (decimal.Decimal, error)
}

// Month covers one calendar month and values it at that month's rates.
type Month struct {
	start time.Time
}

// NewMonth returns the window for year and month.
func NewMonth(year int, month time.Month) Month {
	return Month{start: time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)}
}

// MonthOf returns the month containing t.
func MonthOf(t time.Time) Month {
	return NewMonth(t.Year(), t.Month())
}

// ParseMonth reads a YYYY-MM period.
func ParseMonth(raw string) (Month, error) {
	t, err := time.Parse("2006-01", strings.TrimSpace(raw))
	if err != nil {
		return Month{}, fmt.Errorf("%w: period %q must be YYYY-MM", ErrInvalidWindow, raw)
	}
	return MonthOf(t), nil
}

func (m Month) Kind() Kind { return KindMonth }
func (m Month) Label() string { return m.start.Format("January 2006") }
func (m Month) Start() time.Time { return m.start }
func (m Month) End() time.Time { return m.start.AddDate(0, 1, 0) }
func (m Month) Previous() Month { return Month{start: m.start.AddDate(0, -1, 0)} }
func (m Month) Next() Month { return Month{start: m.End()} }
func (m Month) Period() string { return m.start.Format("2006-01") }
func (m Month) Contains(t time.Time) bool {
	return !t.Before(m.start) && t.Before(m.End())
}

func (m Month) Rate(ctx context.Context, rates RateSource, currency string) (decimal.Decimal, error) {
	return rates.Resolve(ctx, currency, m.start)
}

// AllTime covers the whole ledger and values it at the latest known rates.
type AllTime struct{}

func (AllTime) Kind() Kind { return KindAllTime }
func (AllTime) Label() string { return "All Time Overview" }
func (AllTime) Start() time.Time { return time.Time{} }
func (AllTime) End() time.Time { return time.Time{} }

func (AllTime) Rate(ctx context.Context, rates RateSource, currency string) (decimal.Decimal, error) {
	return rates.Latest(ctx, currency)
}

// YearToDate runs from January 1st to the end of the last elapsed month and
// values it at that month's rates.
type YearToDate struct {
	year int
	end  time.Time
}

// NewYearToDate returns the window for year as seen at now.
func NewYearToDate(year int, now time.Time) YearToDate {
	elapsed := MonthsElapsed(year, now)
	start := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	return YearToDate{year: year, end: start.AddDate(0, elapsed, 0)}
}

func (y YearToDate) Kind() Kind { return KindYearToDate }
func (y YearToDate) Label() string { return strconv.Itoa(y.year) + " year to date" }
func (y YearToDate) Start() time.Time { return time.Date(y.year, time.January, 1, 0, 0, 0, 0, time.UTC) }
func (y YearToDate) End() time.Time { return y.end }

func (y YearToDate) Rate(ctx context.Context, rates RateSource, currency string) (decimal.Decimal, error) {
	return rates.Resolve(ctx, currency, y.end.AddDate(0, -1, 0))
}

// MonthsElapsed is the divisor for yearly averages: the current month number
// for the current year, 12 for past years and 1 for future years.
func MonthsElapsed(year int, now time.Time) int {
	switch {
	case year == now.Year():
		return int(now.Month())
	case year > now.Year():
		return 1
	default:
		return 12
	}
}

var (
	_ Window = Month{}
	_ Window = AllTime{}
	_ Window = YearToDate{}
)
