package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/bitlabstudio/account-keeping/internal/fx"
	"github.com/bitlabstudio/account-keeping/internal/ledger"
	"github.com/bitlabstudio/account-keeping/internal/report"
)

func openTestEngine(t *testing.T) *Engine {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cfg := &Config{
		LedgerStore:    StoreSQLite,
		SQLitePath:     filepath.Join(t.TempDir(), "ledger.db"),
		BaseCurrency:   "EUR",
		ReportCacheTTL: time.Minute,
	}
	engine, err := Open(context.Background(), cfg, EngineOptions{Migrate: true, Redis: client})
	require.NoError(t, err)
	t.Cleanup(engine.Close)
	return engine
}

func TestEngineReportsFollowLedgerWrites(t *testing.T) {
	ctx := context.Background()
	engine := openTestEngine(t)

	account, err := engine.Ledger.CreateAccount(ctx, ledger.Account{Name: "Bank", Slug: "bank", Currency: "EUR", InitialAmount: decimal.RequireFromString("10"), Active: true})
	require.NoError(t, err)
	payee, err := engine.Ledger.CreatePayee(ctx, ledger.Payee{Name: "ACME"})
	require.NoError(t, err)
	category, err := engine.Ledger.CreateCategory(ctx, ledger.Category{Name: "Sales"})
	require.NoError(t, err)

	january := report.NewMonth(2024, time.January)
	before, err := engine.Reports.Accounts(ctx, january)
	require.NoError(t, err)
	require.Len(t, before.Accounts, 1)
	require.True(t, before.Accounts[0].Balance.Equal(decimal.RequireFromString("10")))

	_, err = engine.Ledger.SaveTransaction(ctx, ledger.Transaction{
		AccountID:  account.ID,
		Type:       ledger.Deposit,
		Date:       time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC),
		PayeeID:    payee.ID,
		CategoryID: category.ID,
		Amounts:    ledger.Amounts{Currency: "EUR", AmountGross: decimal.RequireFromString("5")},
	})
	require.NoError(t, err)

	after, err := engine.Reports.Accounts(ctx, january)
	require.NoError(t, err)
	require.True(t, after.Accounts[0].Balance.Equal(decimal.RequireFromString("15")), "got %s", after.Accounts[0].Balance)
}

func TestEngineSaveRateRefreshesCachedLookups(t *testing.T) {
	ctx := context.Background()
	engine := openTestEngine(t)
	asOf := time.Date(2024, 1, 20, 0, 0, 0, 0, time.UTC)

	_, err := engine.Rates.Resolve(ctx, "USD", asOf)
	require.ErrorIs(t, err, fx.ErrRateNotFound)

	require.NoError(t, engine.SaveRate(ctx, fx.Rate{Pair: fx.NewPair("USD", "EUR"), Date: time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC), Value: decimal.RequireFromString("0.9")}))
	rate, err := engine.Rates.Resolve(ctx, "USD", asOf)
	require.NoError(t, err)
	require.True(t, rate.Equal(decimal.RequireFromString("0.9")))

	require.NoError(t, engine.SaveRate(ctx, fx.Rate{Pair: fx.NewPair("USD", "EUR"), Date: time.Date(2024, 1, 25, 0, 0, 0, 0, time.UTC), Value: decimal.RequireFromString("0.95")}))
	rate, err = engine.Rates.Resolve(ctx, "USD", asOf)
	require.NoError(t, err)
	require.True(t, rate.Equal(decimal.RequireFromString("0.95")))
}

func TestEngineHealthChecks(t *testing.T) {
	engine := openTestEngine(t)

	checks := engine.HealthChecks()
	require.Len(t, checks, 2)
	for name, check := range checks {
		require.NoError(t, check(context.Background()), name)
	}
}

func TestEngineCheckerWithoutTokenIsUnavailable(t *testing.T) {
	ctx := context.Background()
	engine := openTestEngine(t)

	checker, err := engine.Checker(ctx)
	require.NoError(t, err)
	result, err := checker.UnpaidInvoicesWithTransactions(ctx)
	require.NoError(t, err)
	require.True(t, result.Unavailable)
}
