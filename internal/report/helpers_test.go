package report

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/bitlabstudio/account-keeping/internal/fx"
	"github.com/bitlabstudio/account-keeping/internal/ledger"
	"github.com/bitlabstudio/account-keeping/internal/ledger/ledgertest"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func requireAmount(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	if !got.Equal(dec(want)) {
		t.Fatalf("expected %s, got %s", want, got.String())
	}
}

func newResolver(t *testing.T, store *ledgertest.Store) *fx.Resolver {
	t.Helper()
	resolver, err := fx.NewResolver("EUR", store)
	require.NoError(t, err)
	return resolver
}

type fixture struct {
	store *ledgertest.Store
	eur   ledger.Account
	usd   ledger.Account
}

func newFixture() fixture {
	store := ledgertest.New()
	return fixture{
		store: store,
		eur:   store.AddAccount(ledger.Account{Name: "Bank", Slug: "bank", Currency: "EUR", Active: true}),
		usd:   store.AddAccount(ledger.Account{Name: "Dollar", Slug: "dollar", Currency: "USD", InitialAmount: dec("100"), Active: true}),
	}
}

func (f fixture) tx(account ledger.Account, typ ledger.EntryType, date time.Time, gross string) ledger.Transaction {
	return f.store.AddTransaction(ledger.Transaction{
		AccountID:  account.ID,
		Type:       typ,
		Date:       date,
		PayeeID:    1,
		CategoryID: 1,
		Amounts:    ledger.Amounts{Currency: account.Currency, AmountGross: dec(gross)},
	})
}

func (f fixture) invoice(typ ledger.EntryType, currency string, date time.Time, paid *time.Time, gross string) ledger.Invoice {
	return f.store.AddInvoice(ledger.Invoice{
		Type:        typ,
		Date:        date,
		PaymentDate: paid,
		Amounts:     ledger.Amounts{Currency: currency, AmountGross: dec(gross)},
	})
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}
