package report

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/bitlabstudio/account-keeping/internal/ledger"
)

// AccountRow is one account's line in an accounts report. Balance and Sums
// are in the account currency, SumsBase in the base currency.
type AccountRow struct {
	Account      ledger.Account       `json:"account"`
	Rate         decimal.Decimal      `json:"rate"`
	Balance      decimal.Decimal      `json:"balance"`
	Transactions []ledger.Transaction `json:"transactions"`
	Sums         Sums                 `json:"sums"`
	SumsBase     Sums                 `json:"sums_base"`
}

// OutstandingTotals is the open invoice exposure across currencies, in the
// base currency.
type OutstandingTotals struct {
	ExpensesGross decimal.Decimal `json:"expenses_gross"`
	IncomeGross   decimal.Decimal `json:"income_gross"`
	AmountGross   decimal.Decimal `json:"amount_gross"`
}

// AccountsReport is the composite month, year-to-date or all-time view.
type AccountsReport struct {
	RunID                 string                `json:"run_id"`
	GeneratedAt           time.Time             `json:"generated_at"`
	Kind                  Kind                  `json:"kind"`
	Label                 string                `json:"label"`
	Start                 time.Time             `json:"start"`
	End                   time.Time             `json:"end"`
	BaseCurrency          string                `json:"base_currency"`
	Accounts              []AccountRow          `json:"accounts"`
	Totals                Sums                  `json:"totals"`
	Outstanding           []ledger.Invoice      `json:"outstanding"`
	OutstandingByCurrency []CurrencyOutstanding `json:"outstanding_by_currency"`
	OutstandingTotals     OutstandingTotals     `json:"outstanding_totals"`
	Previous              *time.Time            `json:"previous,omitempty"`
	Next                  *time.Time            `json:"next,omitempty"`
}

// BuilderOptions configures a Builder.
type BuilderOptions struct {
	// Currencies always appear in the outstanding table.
	Currencies []string
	// Concurrency bounds parallel account and month computations.
	Concurrency int
	Now         func() time.Time
	Logger      *slog.Logger
}

// Builder assembles reports across all active accounts.
type Builder struct {
	repo        ledger.Reader
	rates       RateSource
	agg         *Aggregator
	currencies  []string
	concurrency int
	now         func() time.Time
	logger      *slog.Logger
}

// NewBuilder constructs a report builder.
func NewBuilder(repo ledger.Reader, rates RateSource, opts BuilderOptions) *Builder {
	b := &Builder{
		repo:        repo,
		rates:       rates,
		agg:         NewAggregator(repo, rates),
		currencies:  opts.Currencies,
		concurrency: opts.Concurrency,
		now:         opts.Now,
		logger:      opts.Logger,
	}
	if b.concurrency <= 0 {
		b.concurrency = 4
	}
	if b.now == nil {
		b.now = time.Now
	}
	if b.logger == nil {
		b.logger = slog.Default()
	}
	return b
}

// Aggregator exposes the per-account calculator the builder uses.
func (b *Builder) Aggregator() *Aggregator {
	return b.agg
}

// BuildAccounts produces the accounts report for w.
func (b *Builder) BuildAccounts(ctx context.Context, w Window) (AccountsReport, error) {
	if w == nil {
		return AccountsReport{}, ErrInvalidWindow
	}
	if err := checkBounds(w); err != nil {
		return AccountsReport{}, err
	}
	accounts, err := b.repo.ActiveAccounts(ctx)
	if err != nil {
		return AccountsReport{}, fmt.Errorf("report: active accounts: %w", err)
	}

	rows := make([]AccountRow, len(accounts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)
	for i, account := range accounts {
		g.Go(func() error {
			row, err := b.accountRow(gctx, account, w)
			if err != nil {
				return err
			}
			rows[i] = row
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return AccountsReport{}, err
	}

	rep := AccountsReport{
		RunID:        uuid.NewString(),
		GeneratedAt:  b.now(),
		Kind:         w.Kind(),
		Label:        w.Label(),
		Start:        w.Start(),
		End:          w.End(),
		BaseCurrency: b.rates.Base(),
		Accounts:     rows,
	}
	for _, row := range rows {
		rep.Totals = rep.Totals.Add(row.SumsBase)
	}

	rep.Outstanding, err = b.agg.ComputeOutstandingInvoices(ctx, w)
	if err != nil {
		return AccountsReport{}, err
	}
	currencies, err := b.systemCurrencies(ctx)
	if err != nil {
		return AccountsReport{}, err
	}
	rep.OutstandingByCurrency, err = b.agg.OutstandingByCurrency(ctx, w, rep.Outstanding, currencies)
	if err != nil {
		return AccountsReport{}, err
	}
	for _, row := range rep.OutstandingByCurrency {
		rep.OutstandingTotals.ExpensesGross = rep.OutstandingTotals.ExpensesGross.Add(row.ExpensesBase)
		rep.OutstandingTotals.IncomeGross = rep.OutstandingTotals.IncomeGross.Add(row.IncomeBase)
	}
	rep.OutstandingTotals.AmountGross = rep.OutstandingTotals.IncomeGross.Sub(rep.OutstandingTotals.ExpensesGross)

	if m, ok := w.(Month); ok {
		prev := m.Previous().Start()
		rep.Previous = &prev
		if next := m.Next().Start(); !next.After(b.now()) {
			rep.Next = &next
		}
	}
	b.logger.Debug("accounts report built",
		slog.String("run_id", rep.RunID),
		slog.String("kind", string(w.Kind())),
		slog.String("label", w.Label()),
		slog.Int("accounts", len(rows)),
		slog.Int("outstanding", len(rep.Outstanding)))
	return rep, nil
}

func (b *Builder) accountRow(ctx context.Context, account ledger.Account, w Window) (AccountRow, error) {
	rate, err := w.Rate(ctx, b.rates, account.Currency)
	if err != nil {
		return AccountRow{}, err
	}
	balance, err := b.agg.ComputeBalance(ctx, account, w.Start())
	if err != nil {
		return AccountRow{}, err
	}
	sums, txs, err := b.agg.ComputeWindowAggregate(ctx, account, w)
	if err != nil {
		return AccountRow{}, err
	}
	return AccountRow{
		Account:      account,
		Rate:         rate,
		Balance:      balance,
		Transactions: txs,
		Sums:         sums,
		SumsBase:     sums.Convert(rate),
	}, nil
}

// systemCurrencies merges the configured catalogue with the currencies in use.
func (b *Builder) systemCurrencies(ctx context.Context) ([]string, error) {
	inUse, err := b.repo.CurrenciesInUse(ctx)
	if err != nil {
		return nil, fmt.Errorf("report: currencies in use: %w", err)
	}
	set := make(map[string]struct{}, len(inUse)+len(b.currencies)+1)
	set[b.rates.Base()] = struct{}{}
	for _, code := range append(append([]string(nil), b.currencies...), inUse...) {
		set[code] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for code := range set {
		out = append(out, code)
	}
	sort.Strings(out)
	return out, nil
}
