package report

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bitlabstudio/account-keeping/internal/fx"
	"github.com/bitlabstudio/account-keeping/internal/ledger"
)

// Sums holds the per-window totals of a set of root transactions. Net and
// Gross are signed values; the expense and income fields are unsigned amounts.
type Sums struct {
	Net           decimal.Decimal `json:"net"`
	Gross         decimal.Decimal `json:"gross"`
	ExpensesNet   decimal.Decimal `json:"expenses_net"`
	ExpensesGross decimal.Decimal `json:"expenses_gross"`
	IncomeNet     decimal.Decimal `json:"income_net"`
	IncomeGross   decimal.Decimal `json:"income_gross"`
}

// SumTransactions totals txs. An empty set sums to zero.
func SumTransactions(txs []ledger.Transaction) Sums {
	var s Sums
	for _, t := range txs {
		s.Net = s.Net.Add(t.ValueNet)
		s.Gross = s.Gross.Add(t.ValueGross)
		switch t.Type {
		case ledger.Withdrawal:
			s.ExpensesNet = s.ExpensesNet.Add(t.AmountNet)
			s.ExpensesGross = s.ExpensesGross.Add(t.AmountGross)
		case ledger.Deposit:
			s.IncomeNet = s.IncomeNet.Add(t.AmountNet)
			s.IncomeGross = s.IncomeGross.Add(t.AmountGross)
		}
	}
	return s
}

// Convert multiplies every field by rate, rounding to cents.
func (s Sums) Convert(rate decimal.Decimal) Sums {
	conv := func(v decimal.Decimal) decimal.Decimal {
		return v.Mul(rate).Round(ledger.AmountPlaces)
	}
	return Sums{
		Net:           conv(s.Net),
		Gross:         conv(s.Gross),
		ExpensesNet:   conv(s.ExpensesNet),
		ExpensesGross: conv(s.ExpensesGross),
		IncomeNet:     conv(s.IncomeNet),
		IncomeGross:   conv(s.IncomeGross),
	}
}

// Add returns the field-wise sum of s and o.
func (s Sums) Add(o Sums) Sums {
	return Sums{
		Net:           s.Net.Add(o.Net),
		Gross:         s.Gross.Add(o.Gross),
		ExpensesNet:   s.ExpensesNet.Add(o.ExpensesNet),
		ExpensesGross: s.ExpensesGross.Add(o.ExpensesGross),
		IncomeNet:     s.IncomeNet.Add(o.IncomeNet),
		IncomeGross:   s.IncomeGross.Add(o.IncomeGross),
	}
}

// CurrencyOutstanding is the open invoice exposure in one currency. Rate is
// nil when the currency has no open invoices and no lookup was made.
type CurrencyOutstanding struct {
	Currency     string           `json:"currency"`
	Rate         *decimal.Decimal `json:"rate,omitempty"`
	Expenses     decimal.Decimal `json:"expenses"`
	Income       decimal.Decimal `json:"income"`
	Profit       decimal.Decimal `json:"profit"`
	ExpensesBase decimal.Decimal `json:"expenses_base"`
	IncomeBase   decimal.Decimal `json:"income_base"`
	ProfitBase   decimal.Decimal `json:"profit_base"`
	InvoiceCount int             `json:"invoice_count"`
}

// Aggregator computes balances and window totals for single accounts.
type Aggregator struct {
	repo  ledger.Reader
	rates RateSource
}

// NewAggregator constructs an Aggregator.
func NewAggregator(repo ledger.Reader, rates RateSource) *Aggregator {
	return &Aggregator{repo: repo, rates: rates}
}

// ComputeBalance returns the initial amount plus the gross value of every
// root transaction dated strictly before asOf. A zero asOf yields the
// initial amount alone.
func (a *Aggregator) ComputeBalance(ctx context.Context, account ledger.Account, asOf time.Time) (decimal.Decimal, error) {
	if account.ID == 0 {
		return decimal.Zero, ledger.ErrAccountNotFound
	}
	if asOf.IsZero() {
		return account.InitialAmount, nil
	}
	txs, err := a.repo.ListTransactions(ctx, ledger.TransactionFilter{
		AccountID: account.ID,
		To:        asOf,
		Scope:     ledger.ScopeRoots,
	})
	if err != nil {
		return decimal.Zero, fmt.Errorf("report: balance of %s: %w", account.Slug, err)
	}
	return account.InitialAmount.Add(SumTransactions(txs).Gross), nil
}

// CurrentBalance is the balance including every transaction up to the end
// of the month containing month.
func (a *Aggregator) CurrentBalance(ctx context.Context, account ledger.Account, month time.Time) (decimal.Decimal, error) {
	return a.ComputeBalance(ctx, account, MonthOf(month).End())
}

// ComputeWindowAggregate returns the root transactions of account inside w
// and their totals in the account's currency.
func (a *Aggregator) ComputeWindowAggregate(ctx context.Context, account ledger.Account, w Window) (Sums, []ledger.Transaction, error) {
	if w == nil {
		return Sums{}, nil, ErrInvalidWindow
	}
	if err := checkBounds(w); err != nil {
		return Sums{}, nil, err
	}
	txs, err := a.repo.ListTransactions(ctx, ledger.TransactionFilter{
		AccountID: account.ID,
		From:      w.Start(),
		To:        w.End(),
		Scope:     ledger.ScopeRoots,
	})
	if err != nil {
		return Sums{}, nil, fmt.Errorf("report: transactions of %s: %w", account.Slug, err)
	}
	return SumTransactions(txs), txs, nil
}

// ComputeOutstandingInvoices returns the invoices open at the end of w. For
// an open-ended window these are the invoices without a payment date.
func (a *Aggregator) ComputeOutstandingInvoices(ctx context.Context, w Window) ([]ledger.Invoice, error) {
	if w == nil {
		return nil, ErrInvalidWindow
	}
	if err := checkBounds(w); err != nil {
		return nil, err
	}
	invoices, err := a.repo.OutstandingInvoices(ctx, w.End())
	if err != nil {
		return nil, fmt.Errorf("report: outstanding invoices: %w", err)
	}
	return invoices, nil
}

// OutstandingByCurrency groups invoices by currency and converts each group
// at the window's rate. Every code in currencies gets a row even when it has
// no open invoices.
func (a *Aggregator) OutstandingByCurrency(ctx context.Context, w Window, invoices []ledger.Invoice, currencies []string) ([]CurrencyOutstanding, error) {
	rows := make(map[string]*CurrencyOutstanding)
	ensure := func(code string) *CurrencyOutstanding {
		row, ok := rows[code]
		if !ok {
			row = &CurrencyOutstanding{Currency: code}
			rows[code] = row
		}
		return row
	}
	for _, code := range currencies {
		ensure(code)
	}
	for _, inv := range invoices {
		row := ensure(inv.Currency)
		row.InvoiceCount++
		switch inv.Type {
		case ledger.Withdrawal:
			row.Expenses = row.Expenses.Add(inv.AmountGross)
		case ledger.Deposit:
			row.Income = row.Income.Add(inv.AmountGross)
		}
	}

	out := make([]CurrencyOutstanding, 0, len(rows))
	for code, row := range rows {
		row.Profit = row.Income.Sub(row.Expenses)
		if row.InvoiceCount == 0 {
			// Nothing to convert; skip the lookup so a currency without
			// rates does not fail the report.
			if code == a.rates.Base() {
				one := decimal.NewFromInt(1)
				row.Rate = &one
			}
			out = append(out, *row)
			continue
		}
		rate, err := w.Rate(ctx, a.rates, code)
		if err != nil {
			return nil, err
		}
		row.Rate = &rate
		row.ExpensesBase = row.Expenses.Mul(rate).Round(ledger.AmountPlaces)
		row.IncomeBase = row.Income.Mul(rate).Round(ledger.AmountPlaces)
		row.ProfitBase = row.IncomeBase.Sub(row.ExpensesBase)
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Currency < out[j].Currency })
	return out, nil
}

// InvoiceBalance is what has been paid against an invoice minus its net
// amount: the net amounts of its transactions, each converted into the
// invoice currency at the latest rate, less the invoice's own net amount.
func (a *Aggregator) InvoiceBalance(ctx context.Context, invoice ledger.Invoice) (decimal.Decimal, error) {
	txs, err := a.repo.ListTransactions(ctx, ledger.TransactionFilter{
		Scope:      ledger.ScopeAll,
		InvoiceIDs: []int64{invoice.ID},
	})
	if err != nil {
		return decimal.Zero, fmt.Errorf("report: invoice %d transactions: %w", invoice.ID, err)
	}
	byCurrency := make(map[string]decimal.Decimal)
	for _, t := range txs {
		byCurrency[t.Currency] = byCurrency[t.Currency].Add(t.AmountNet)
	}
	codes := make([]string, 0, len(byCurrency))
	for code := range byCurrency {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	paid := decimal.Zero
	for _, code := range codes {
		rate, err := a.rates.LatestPair(ctx, fx.NewPair(code, invoice.Currency))
		if err != nil {
			return decimal.Zero, err
		}
		paid = paid.Add(byCurrency[code].Mul(rate))
	}
	return paid.Round(ledger.AmountPlaces).Sub(invoice.AmountNet), nil
}

func checkBounds(w Window) error {
	start, end := w.Start(), w.End()
	if !start.IsZero() && !end.IsZero() && !start.Before(end) {
		return fmt.Errorf("%w: %s starts at %s but ends at %s", ErrInvalidWindow, w.Label(),
			start.Format("2006-01-02"), end.Format("2006-01-02"))
	}
	return nil
}
