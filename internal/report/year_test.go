package report

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bitlabstudio/account-keeping/internal/ledger"
	"github.com/bitlabstudio/account-keeping/internal/ledger/ledgertest"
)

type yearFixture struct {
	fixture
	receivable ledger.Invoice
}

func newYearFixture(t *testing.T) yearFixture {
	t.Helper()
	store := ledgertest.New()
	f := fixture{
		store: store,
		eur:   store.AddAccount(ledger.Account{Name: "Bank", Slug: "bank", Currency: "EUR", Active: true}),
	}
	store.AddRate("USD", "EUR", day(2024, time.January, 1), "0.50")

	f.tx(f.eur, ledger.Deposit, day(2024, time.January, 10), "100")
	f.tx(f.eur, ledger.Withdrawal, day(2024, time.February, 5), "40")

	paidOn := day(2024, time.March, 5)
	receivable := f.invoice(ledger.Deposit, "USD", day(2024, time.January, 20), &paidOn, "200")
	f.invoice(ledger.Withdrawal, "EUR", day(2024, time.January, 21), nil, "500")

	store.AddTransaction(ledger.Transaction{
		AccountID:  f.eur.ID,
		Type:       ledger.Deposit,
		Date:       day(2024, time.February, 10),
		InvoiceID:  &receivable.ID,
		PayeeID:    1,
		CategoryID: 1,
		Amounts:    ledger.Amounts{Currency: "EUR", AmountGross: dec("30")},
	})
	return yearFixture{fixture: f, receivable: receivable}
}

func TestBuildYearSeries(t *testing.T) {
	f := newYearFixture(t)
	builder := NewBuilder(f.store, newResolver(t, f.store), BuilderOptions{
		Now: fixedClock(day(2024, time.March, 15)),
	})

	series, err := builder.BuildYearSeries(context.Background(), 2024)
	require.NoError(t, err)
	require.Len(t, series.Months, 12)
	require.Equal(t, 3, series.MonthsElapsed)
	require.Equal(t, 2023, series.Previous)
	require.Nil(t, series.Next)

	jan, feb, mar := series.Months[0], series.Months[1], series.Months[2]
	require.Equal(t, day(2024, time.January, 1), jan.Month)

	requireAmount(t, "100", jan.Income)
	requireAmount(t, "0", jan.Expenses)
	requireAmount(t, "100", jan.Profit)
	requireAmount(t, "100", jan.NewInvoices)
	requireAmount(t, "100", jan.Outstanding)
	requireAmount(t, "100", jan.Balance)
	requireAmount(t, "200", jan.Equity)

	requireAmount(t, "30", feb.Income)
	requireAmount(t, "40", feb.Expenses)
	requireAmount(t, "-10", feb.Profit)
	requireAmount(t, "0", feb.NewInvoices)
	requireAmount(t, "70", feb.Outstanding)
	requireAmount(t, "90", feb.Balance)
	requireAmount(t, "160", feb.Equity)

	requireAmount(t, "0", mar.Outstanding)
	requireAmount(t, "90", mar.Equity)
	requireAmount(t, "90", series.Months[11].Balance)

	requireAmount(t, "130", series.Totals.Income)
	requireAmount(t, "40", series.Totals.Expenses)
	requireAmount(t, "90", series.Totals.Profit)
	requireAmount(t, "170", series.Totals.Outstanding)
	requireAmount(t, "450", series.Totals.Equity)

	requireAmount(t, "43.33", series.Averages.Income)
	requireAmount(t, "13.33", series.Averages.Expenses)
	requireAmount(t, "30", series.Averages.Profit)
	requireAmount(t, "33.33", series.Averages.NewInvoices)
	requireAmount(t, "56.67", series.Averages.Outstanding)
	requireAmount(t, "93.33", series.Averages.Balance)
	requireAmount(t, "150", series.Averages.Equity)
}

func TestBuildYearSeriesAveragesPastYearOverTwelveMonths(t *testing.T) {
	f := newYearFixture(t)
	builder := NewBuilder(f.store, newResolver(t, f.store), BuilderOptions{
		Now: fixedClock(day(2026, time.June, 1)),
	})

	series, err := builder.BuildYearSeries(context.Background(), 2024)
	require.NoError(t, err)
	require.Equal(t, 12, series.MonthsElapsed)
	require.NotNil(t, series.Next)
	require.Equal(t, 2025, *series.Next)
	requireAmount(t, "130", series.Totals.Income)
	requireAmount(t, "10.83", series.Averages.Income)
}

func TestBuildYearSeriesFutureYearDividesByOne(t *testing.T) {
	f := newYearFixture(t)
	builder := NewBuilder(f.store, newResolver(t, f.store), BuilderOptions{
		Now: fixedClock(day(2023, time.June, 1)),
	})

	series, err := builder.BuildYearSeries(context.Background(), 2024)
	require.NoError(t, err)
	require.Equal(t, 1, series.MonthsElapsed)
	requireAmount(t, "100", series.Totals.Income)
	requireAmount(t, "100", series.Averages.Income)
}

func TestBuildYearSeriesClampsOverpaidInvoices(t *testing.T) {
	store := ledgertest.New()
	f := fixture{
		store: store,
		eur:   store.AddAccount(ledger.Account{Name: "Bank", Slug: "bank", Currency: "EUR", Active: true}),
	}
	inv := f.invoice(ledger.Deposit, "EUR", day(2024, time.January, 2), nil, "100")
	store.AddTransaction(ledger.Transaction{
		AccountID:  f.eur.ID,
		Type:       ledger.Deposit,
		Date:       day(2024, time.January, 3),
		InvoiceID:  &inv.ID,
		PayeeID:    1,
		CategoryID: 1,
		Amounts:    ledger.Amounts{Currency: "EUR", AmountGross: dec("150")},
	})

	builder := NewBuilder(store, newResolver(t, store), BuilderOptions{
		Now: fixedClock(day(2024, time.February, 1)),
	})
	series, err := builder.BuildYearSeries(context.Background(), 2024)
	require.NoError(t, err)
	requireAmount(t, "0", series.Months[0].Outstanding)
	requireAmount(t, "150", series.Months[0].Equity)
}

func TestBuildYearSeriesRejectsInvalidYear(t *testing.T) {
	f := newYearFixture(t)
	builder := NewBuilder(f.store, newResolver(t, f.store), BuilderOptions{})
	_, err := builder.BuildYearSeries(context.Background(), 0)
	require.ErrorIs(t, err, ErrInvalidWindow)
}
