package report

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/bitlabstudio/account-keeping/internal/ledger"
)

// MonthPoint is one month of the year series, in the base currency.
type MonthPoint struct {
	Month       time.Time       `json:"month"`
	Income      decimal.Decimal `json:"income"`
	Expenses    decimal.Decimal `json:"expenses"`
	Profit      decimal.Decimal `json:"profit"`
	NewInvoices decimal.Decimal `json:"new_invoices"`
	Outstanding decimal.Decimal `json:"outstanding"`
	Balance     decimal.Decimal `json:"balance"`
	Equity      decimal.Decimal `json:"equity"`
}

func (p MonthPoint) add(o MonthPoint) MonthPoint {
	return MonthPoint{
		Month:       p.Month,
		Income:      p.Income.Add(o.Income),
		Expenses:    p.Expenses.Add(o.Expenses),
		Profit:      p.Profit.Add(o.Profit),
		NewInvoices: p.NewInvoices.Add(o.NewInvoices),
		Outstanding: p.Outstanding.Add(o.Outstanding),
		Balance:     p.Balance.Add(o.Balance),
		Equity:      p.Equity.Add(o.Equity),
	}
}

func (p MonthPoint) div(n int64) MonthPoint {
	d := decimal.NewFromInt(n)
	q := func(v decimal.Decimal) decimal.Decimal {
		return v.DivRound(d, ledger.AmountPlaces)
	}
	return MonthPoint{
		Income:      q(p.Income),
		Expenses:    q(p.Expenses),
		Profit:      q(p.Profit),
		NewInvoices: q(p.NewInvoices),
		Outstanding: q(p.Outstanding),
		Balance:     q(p.Balance),
		Equity:      q(p.Equity),
	}
}

// YearSeries is the twelve-month view of a year. Totals cover the elapsed
// months only and Averages divide them by MonthsElapsed.
type YearSeries struct {
	RunID         string       `json:"run_id"`
	GeneratedAt   time.Time    `json:"generated_at"`
	Year          int          `json:"year"`
	BaseCurrency  string       `json:"base_currency"`
	Months        []MonthPoint `json:"months"`
	MonthsElapsed int          `json:"months_elapsed"`
	Totals        MonthPoint   `json:"totals"`
	Averages      MonthPoint   `json:"averages"`
	Previous      int          `json:"previous"`
	Next          *int         `json:"next,omitempty"`
}

// monthRates memoizes base rates per currency for one month.
type monthRates struct {
	month Month
	rates RateSource

	mu    sync.Mutex
	cache map[string]decimal.Decimal
}

func (m *monthRates) get(ctx context.Context, currency string) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rate, ok := m.cache[currency]; ok {
		return rate, nil
	}
	rate, err := m.month.Rate(ctx, m.rates, currency)
	if err != nil {
		return decimal.Zero, err
	}
	m.cache[currency] = rate
	return rate, nil
}

func (m *monthRates) convert(ctx context.Context, currency string, amount decimal.Decimal) (decimal.Decimal, error) {
	if amount.IsZero() {
		return decimal.Zero, nil
	}
	rate, err := m.get(ctx, currency)
	if err != nil {
		return decimal.Zero, err
	}
	return amount.Mul(rate), nil
}

// BuildYearSeries computes income, expenses, profit, newly issued invoices,
// outstanding receivables, balance and equity for every month of year.
func (b *Builder) BuildYearSeries(ctx context.Context, year int) (YearSeries, error) {
	if year < 1 || year > 9999 {
		return YearSeries{}, fmt.Errorf("%w: year %d out of range", ErrInvalidWindow, year)
	}
	accounts, err := b.repo.ActiveAccounts(ctx)
	if err != nil {
		return YearSeries{}, fmt.Errorf("report: active accounts: %w", err)
	}

	now := b.now()
	series := YearSeries{
		RunID:         uuid.NewString(),
		GeneratedAt:   now,
		Year:          year,
		BaseCurrency:  b.rates.Base(),
		Months:        make([]MonthPoint, 12),
		MonthsElapsed: MonthsElapsed(year, now),
		Previous:      year - 1,
	}
	if next := year + 1; next <= now.Year() {
		series.Next = &next
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)
	for i := range series.Months {
		g.Go(func() error {
			point, err := b.monthPoint(gctx, accounts, NewMonth(year, time.Month(i+1)))
			if err != nil {
				return err
			}
			series.Months[i] = point
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return YearSeries{}, err
	}

	for _, point := range series.Months[:series.MonthsElapsed] {
		series.Totals = series.Totals.add(point)
	}
	series.Totals.Month = time.Time{}
	series.Averages = series.Totals.div(int64(series.MonthsElapsed))

	b.logger.Debug("year series built",
		slog.String("run_id", series.RunID),
		slog.Int("year", year),
		slog.Int("months_elapsed", series.MonthsElapsed),
		slog.Int("accounts", len(accounts)))
	return series, nil
}

func (b *Builder) monthPoint(ctx context.Context, accounts []ledger.Account, m Month) (MonthPoint, error) {
	rates := &monthRates{month: m, rates: b.rates, cache: make(map[string]decimal.Decimal)}
	point := MonthPoint{Month: m.Start()}

	for _, account := range accounts {
		sums, _, err := b.agg.ComputeWindowAggregate(ctx, account, m)
		if err != nil {
			return MonthPoint{}, err
		}
		income, err := rates.convert(ctx, account.Currency, sums.IncomeGross)
		if err != nil {
			return MonthPoint{}, err
		}
		expenses, err := rates.convert(ctx, account.Currency, sums.ExpensesGross)
		if err != nil {
			return MonthPoint{}, err
		}
		point.Income = point.Income.Add(income)
		point.Expenses = point.Expenses.Add(expenses)

		balance, err := b.agg.ComputeBalance(ctx, account, m.End())
		if err != nil {
			return MonthPoint{}, err
		}
		balance, err = rates.convert(ctx, account.Currency, balance)
		if err != nil {
			return MonthPoint{}, err
		}
		point.Balance = point.Balance.Add(balance)
	}

	issued, err := b.repo.IssuedInvoices(ctx, m.Start(), m.End())
	if err != nil {
		return MonthPoint{}, fmt.Errorf("report: issued invoices %s: %w", m.Period(), err)
	}
	for _, inv := range issued {
		if inv.Type != ledger.Deposit {
			continue
		}
		v, err := rates.convert(ctx, inv.Currency, inv.AmountGross)
		if err != nil {
			return MonthPoint{}, err
		}
		point.NewInvoices = point.NewInvoices.Add(v)
	}

	point.Outstanding, err = b.outstandingReceivables(ctx, m, rates)
	if err != nil {
		return MonthPoint{}, err
	}

	point.Income = point.Income.Round(ledger.AmountPlaces)
	point.Expenses = point.Expenses.Round(ledger.AmountPlaces)
	point.Profit = point.Income.Sub(point.Expenses)
	point.NewInvoices = point.NewInvoices.Round(ledger.AmountPlaces)
	point.Balance = point.Balance.Round(ledger.AmountPlaces)
	point.Equity = point.Balance.Add(point.Outstanding)
	return point, nil
}

// outstandingReceivables values the deposit invoices still open at the end
// of m, net of partial payments recorded against them before that date.
// An invoice never contributes less than zero.
func (b *Builder) outstandingReceivables(ctx context.Context, m Month, rates *monthRates) (decimal.Decimal, error) {
	open, err := b.repo.OutstandingInvoices(ctx, m.End())
	if err != nil {
		return decimal.Zero, fmt.Errorf("report: outstanding invoices %s: %w", m.Period(), err)
	}
	receivables := make(map[int64]ledger.Invoice, len(open))
	ids := make([]int64, 0, len(open))
	for _, inv := range open {
		if inv.Type != ledger.Deposit {
			continue
		}
		receivables[inv.ID] = inv
		ids = append(ids, inv.ID)
	}
	if len(ids) == 0 {
		return decimal.Zero, nil
	}

	payments, err := b.repo.ListTransactions(ctx, ledger.TransactionFilter{
		To:         m.End(),
		Scope:      ledger.ScopeAll,
		InvoiceIDs: ids,
	})
	if err != nil {
		return decimal.Zero, fmt.Errorf("report: partial payments %s: %w", m.Period(), err)
	}
	paid := make(map[int64]decimal.Decimal, len(payments))
	for _, p := range payments {
		v, err := rates.convert(ctx, p.Currency, p.AmountGross)
		if err != nil {
			return decimal.Zero, err
		}
		paid[*p.InvoiceID] = paid[*p.InvoiceID].Add(v)
	}

	total := decimal.Zero
	for _, id := range ids {
		inv := receivables[id]
		v, err := rates.convert(ctx, inv.Currency, inv.AmountGross)
		if err != nil {
			return decimal.Zero, err
		}
		if rest := v.Sub(paid[id]); rest.IsPositive() {
			total = total.Add(rest)
		}
	}
	return total.Round(ledger.AmountPlaces), nil
}
