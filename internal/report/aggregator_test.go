package report

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bitlabstudio/account-keeping/internal/fx"
	"github.com/bitlabstudio/account-keeping/internal/ledger"
)

func TestComputeBalanceCountsRootsBeforeAsOf(t *testing.T) {
	f := newFixture()
	agg := NewAggregator(f.store, newResolver(t, f.store))
	ctx := context.Background()

	root := f.tx(f.eur, ledger.Deposit, day(2024, time.March, 10), "11.90")
	f.store.AddTransaction(ledger.Transaction{
		AccountID:  f.eur.ID,
		ParentID:   &root.ID,
		Type:       ledger.Deposit,
		Date:       day(2024, time.March, 10),
		PayeeID:    1,
		CategoryID: 1,
		Amounts:    ledger.Amounts{Currency: "EUR", AmountGross: dec("5")},
	})

	balance, err := agg.ComputeBalance(ctx, f.eur, day(2024, time.April, 1))
	require.NoError(t, err)
	requireAmount(t, "11.90", balance)

	balance, err = agg.ComputeBalance(ctx, f.eur, day(2024, time.March, 1))
	require.NoError(t, err)
	requireAmount(t, "0", balance)

	balance, err = agg.ComputeBalance(ctx, f.usd, time.Time{})
	require.NoError(t, err)
	requireAmount(t, "100", balance)

	current, err := agg.CurrentBalance(ctx, f.eur, day(2024, time.March, 2))
	require.NoError(t, err)
	requireAmount(t, "11.90", current)
}

func TestComputeBalanceIsMonotonicInTransactionCount(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.tx(f.eur, ledger.Deposit, day(2024, time.January, 5), "10")
	f.tx(f.eur, ledger.Withdrawal, day(2024, time.February, 5), "30")
	f.tx(f.eur, ledger.Deposit, day(2024, time.March, 5), "5")

	previous := -1
	for m := time.January; m <= time.April; m++ {
		txs, err := f.store.ListTransactions(ctx, ledger.TransactionFilter{
			AccountID: f.eur.ID,
			To:        day(2024, m, 1),
			Scope:     ledger.ScopeRoots,
		})
		require.NoError(t, err)
		require.GreaterOrEqual(t, len(txs), previous)
		previous = len(txs)
	}
	require.Equal(t, 3, previous)
}

func TestComputeBalanceRequiresStoredAccount(t *testing.T) {
	f := newFixture()
	agg := NewAggregator(f.store, newResolver(t, f.store))
	_, err := agg.ComputeBalance(context.Background(), ledger.Account{}, day(2024, time.January, 1))
	require.ErrorIs(t, err, ledger.ErrAccountNotFound)
}

func TestComputeWindowAggregate(t *testing.T) {
	f := newFixture()
	agg := NewAggregator(f.store, newResolver(t, f.store))
	ctx := context.Background()

	f.store.AddTransaction(ledger.Transaction{
		AccountID: f.eur.ID, Type: ledger.Withdrawal, Date: day(2024, time.May, 2), PayeeID: 1, CategoryID: 1,
		Amounts: ledger.Amounts{Currency: "EUR", AmountNet: dec("50"), VAT: dec("19")},
	})
	f.store.AddTransaction(ledger.Transaction{
		AccountID: f.eur.ID, Type: ledger.Deposit, Date: day(2024, time.May, 31), PayeeID: 1, CategoryID: 1,
		Amounts: ledger.Amounts{Currency: "EUR", AmountNet: dec("100"), VAT: dec("0")},
	})
	f.tx(f.eur, ledger.Deposit, day(2024, time.June, 1), "999")

	sums, txs, err := agg.ComputeWindowAggregate(ctx, f.eur, NewMonth(2024, time.May))
	require.NoError(t, err)
	require.Len(t, txs, 2)
	requireAmount(t, "50", sums.Net)
	requireAmount(t, "40.50", sums.Gross)
	requireAmount(t, "50", sums.ExpensesNet)
	requireAmount(t, "59.50", sums.ExpensesGross)
	requireAmount(t, "100", sums.IncomeNet)
	requireAmount(t, "100", sums.IncomeGross)

	empty, txs, err := agg.ComputeWindowAggregate(ctx, f.eur, NewMonth(2023, time.May))
	require.NoError(t, err)
	require.Empty(t, txs)
	requireAmount(t, "0", empty.Gross)
	requireAmount(t, "0", empty.IncomeNet)
}

func TestComputeWindowAggregateRejectsNilWindow(t *testing.T) {
	f := newFixture()
	agg := NewAggregator(f.store, newResolver(t, f.store))
	_, _, err := agg.ComputeWindowAggregate(context.Background(), f.eur, nil)
	require.ErrorIs(t, err, ErrInvalidWindow)
}

func TestOutstandingInvoicesAcrossMonths(t *testing.T) {
	f := newFixture()
	agg := NewAggregator(f.store, newResolver(t, f.store))
	ctx := context.Background()

	paid := day(2024, time.March, 1)
	inv := f.invoice(ledger.Deposit, "EUR", day(2024, time.January, 15), &paid, "119")

	tests := []struct {
		month time.Month
		want  bool
	}{
		{month: time.January, want: true},
		{month: time.February, want: true},
		{month: time.March, want: false},
	}
	for _, tc := range tests {
		t.Run(tc.month.String(), func(t *testing.T) {
			open, err := agg.ComputeOutstandingInvoices(ctx, NewMonth(2024, tc.month))
			require.NoError(t, err)
			found := false
			for _, o := range open {
				found = found || o.ID == inv.ID
			}
			require.Equal(t, tc.want, found)
		})
	}

	open, err := agg.ComputeOutstandingInvoices(ctx, AllTime{})
	require.NoError(t, err)
	require.Empty(t, open)
}

func TestOutstandingByCurrency(t *testing.T) {
	f := newFixture()
	f.store.AddRate("USD", "EUR", day(2024, time.January, 1), "0.90")
	agg := NewAggregator(f.store, newResolver(t, f.store))
	ctx := context.Background()

	f.invoice(ledger.Deposit, "USD", day(2024, time.January, 3), nil, "200")
	f.invoice(ledger.Withdrawal, "USD", day(2024, time.January, 4), nil, "50")
	f.invoice(ledger.Deposit, "EUR", day(2024, time.January, 5), nil, "10")

	w := NewMonth(2024, time.January)
	open, err := agg.ComputeOutstandingInvoices(ctx, w)
	require.NoError(t, err)
	require.Len(t, open, 3)

	rows, err := agg.OutstandingByCurrency(ctx, w, open, []string{"CHF", "EUR", "USD"})
	require.NoError(t, err)
	require.Len(t, rows, 3)

	require.Equal(t, "CHF", rows[0].Currency)
	require.Zero(t, rows[0].InvoiceCount)
	require.Nil(t, rows[0].Rate)
	raw, err := json.Marshal(rows[0])
	require.NoError(t, err)
	require.NotContains(t, string(raw), `"rate"`)

	require.Equal(t, "EUR", rows[1].Currency)
	require.NotNil(t, rows[1].Rate)
	requireAmount(t, "1", *rows[1].Rate)
	requireAmount(t, "10", rows[1].IncomeBase)

	usd := rows[2]
	require.Equal(t, 2, usd.InvoiceCount)
	requireAmount(t, "200", usd.Income)
	requireAmount(t, "50", usd.Expenses)
	requireAmount(t, "150", usd.Profit)
	requireAmount(t, "180", usd.IncomeBase)
	requireAmount(t, "45", usd.ExpensesBase)
	requireAmount(t, "135", usd.ProfitBase)
}

func TestOutstandingByCurrencyPropagatesMissingRate(t *testing.T) {
	f := newFixture()
	agg := NewAggregator(f.store, newResolver(t, f.store))
	ctx := context.Background()
	f.invoice(ledger.Deposit, "USD", day(2024, time.January, 3), nil, "200")

	w := NewMonth(2024, time.January)
	open, err := agg.ComputeOutstandingInvoices(ctx, w)
	require.NoError(t, err)

	_, err = agg.OutstandingByCurrency(ctx, w, open, nil)
	require.ErrorIs(t, err, fx.ErrRateNotFound)
	var notFound *fx.RateNotFoundError
	require.ErrorAs(t, err, &notFound)
	require.Equal(t, fx.NewPair("USD", "EUR"), notFound.Pair)
}

func TestInvoiceBalance(t *testing.T) {
	f := newFixture()
	f.store.AddRate("EUR", "USD", day(2023, time.June, 1), "1.05")
	f.store.AddRate("EUR", "USD", day(2024, time.June, 1), "1.10")
	agg := NewAggregator(f.store, newResolver(t, f.store))
	ctx := context.Background()

	inv := f.store.AddInvoice(ledger.Invoice{
		Type:    ledger.Deposit,
		Date:    day(2024, time.January, 2),
		Amounts: ledger.Amounts{Currency: "USD", AmountNet: dec("100"), VAT: dec("0")},
	})

	balance, err := agg.InvoiceBalance(ctx, inv)
	require.NoError(t, err)
	requireAmount(t, "-100", balance)

	f.store.AddTransaction(ledger.Transaction{
		AccountID: f.eur.ID, Type: ledger.Deposit, Date: day(2024, time.February, 1), PayeeID: 1, CategoryID: 1,
		InvoiceID: &inv.ID,
		Amounts:   ledger.Amounts{Currency: "EUR", AmountNet: dec("45"), VAT: dec("0")},
	})
	f.store.AddTransaction(ledger.Transaction{
		AccountID: f.usd.ID, Type: ledger.Deposit, Date: day(2024, time.February, 3), PayeeID: 1, CategoryID: 1,
		InvoiceID: &inv.ID,
		Amounts:   ledger.Amounts{Currency: "USD", AmountNet: dec("50"), VAT: dec("0")},
	})

	balance, err = agg.InvoiceBalance(ctx, inv)
	require.NoError(t, err)
	requireAmount(t, "-0.50", balance)
}

func TestSumsConvertRounds(t *testing.T) {
	s := Sums{Net: dec("10.005"), Gross: dec("-3.333"), IncomeGross: dec("1")}
	c := s.Convert(dec("1.1"))
	requireAmount(t, "11.01", c.Net)
	requireAmount(t, "-3.67", c.Gross)
	requireAmount(t, "1.1", c.IncomeGross)
}
