package report

import (
	"context"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/bitlabstudio/account-keeping/internal/fx"
	"github.com/bitlabstudio/account-keeping/internal/ledger"
	"github.com/bitlabstudio/account-keeping/internal/platform/cache"
)

type recorder struct {
	mu     sync.Mutex
	builds map[string]int
	hits   int
	misses int
}

func (r *recorder) ObserveReportBuild(kind string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.builds == nil {
		r.builds = make(map[string]int)
	}
	r.builds[kind]++
}

func (r *recorder) ObserveReportCache(_ string, hit bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if hit {
		r.hits++
	} else {
		r.misses++
	}
}

func newCachedService(t *testing.T, f fixture, rec *recorder) (*Service, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	builder := NewBuilder(f.store, newResolver(t, f.store), BuilderOptions{
		Now: fixedClock(day(2024, time.March, 15)),
	})
	svc := NewService(builder, f.store, ServiceOptions{
		Cache:    cache.NewVersioned(client, "reports", time.Minute),
		Recorder: rec,
	})
	return svc, mr
}

func TestServiceCachesUntilInvalidated(t *testing.T) {
	f := newFixture()
	f.store.AddRate("USD", "EUR", day(2024, time.January, 1), "0.90")
	f.tx(f.eur, ledger.Deposit, day(2024, time.January, 10), "100")
	rec := &recorder{}
	svc, _ := newCachedService(t, f, rec)
	ctx := context.Background()
	w := NewMonth(2024, time.January)

	first, err := svc.Accounts(ctx, w)
	require.NoError(t, err)
	requireAmount(t, "100", first.Totals.Gross)

	f.tx(f.eur, ledger.Deposit, day(2024, time.January, 11), "5")

	second, err := svc.Accounts(ctx, w)
	require.NoError(t, err)
	require.Equal(t, first.RunID, second.RunID)
	requireAmount(t, "100", second.Totals.Gross)

	require.NoError(t, svc.Invalidate(ctx))
	third, err := svc.Accounts(ctx, w)
	require.NoError(t, err)
	require.NotEqual(t, first.RunID, third.RunID)
	requireAmount(t, "105", third.Totals.Gross)

	require.Equal(t, 1, rec.hits)
	require.Equal(t, 2, rec.misses)
	require.Equal(t, 2, rec.builds[string(KindMonth)])
}

func TestServiceYearIsCached(t *testing.T) {
	f := newFixture()
	f.store.AddRate("USD", "EUR", day(2024, time.January, 1), "0.90")
	f.tx(f.eur, ledger.Deposit, day(2024, time.January, 10), "100")
	rec := &recorder{}
	svc, _ := newCachedService(t, f, rec)
	ctx := context.Background()

	first, err := svc.Year(ctx, 2024)
	require.NoError(t, err)
	second, err := svc.Year(ctx, 2024)
	require.NoError(t, err)
	require.Equal(t, first.RunID, second.RunID)
	requireAmount(t, "100", second.Months[0].Income)
	require.Equal(t, 1, rec.builds[string(KindYear)])
}

func TestServiceBuildsWhenRedisIsDown(t *testing.T) {
	f := newFixture()
	f.store.AddRate("USD", "EUR", day(2024, time.January, 1), "0.90")
	f.tx(f.eur, ledger.Deposit, day(2024, time.January, 10), "100")
	svc, mr := newCachedService(t, f, &recorder{})
	mr.Close()

	rep, err := svc.Accounts(context.Background(), NewMonth(2024, time.January))
	require.NoError(t, err)
	requireAmount(t, "100", rep.Totals.Gross)
}

func TestServicePropagatesBuildErrors(t *testing.T) {
	f := newFixture()
	svc, _ := newCachedService(t, f, &recorder{})
	_, err := svc.Accounts(context.Background(), NewMonth(2024, time.January))
	require.ErrorIs(t, err, fx.ErrRateNotFound)
}

func TestServiceWithoutCache(t *testing.T) {
	f := newFixture()
	f.store.AddRate("USD", "EUR", day(2024, time.January, 1), "0.90")
	builder := NewBuilder(f.store, newResolver(t, f.store), BuilderOptions{})
	svc := NewService(builder, f.store, ServiceOptions{})
	ctx := context.Background()

	rep, err := svc.Accounts(ctx, AllTime{})
	require.NoError(t, err)
	require.Len(t, rep.Accounts, 2)
	require.NoError(t, svc.Invalidate(ctx))
}

func TestServiceInvoiceBalance(t *testing.T) {
	f := newFixture()
	inv := f.store.AddInvoice(ledger.Invoice{
		Type:    ledger.Withdrawal,
		Date:    day(2024, time.January, 2),
		Amounts: ledger.Amounts{Currency: "EUR", AmountNet: dec("80"), VAT: dec("19")},
	})
	f.store.AddTransaction(ledger.Transaction{
		AccountID: f.eur.ID, Type: ledger.Withdrawal, Date: day(2024, time.January, 5), PayeeID: 1, CategoryID: 1,
		InvoiceID: &inv.ID,
		Amounts:   ledger.Amounts{Currency: "EUR", AmountNet: dec("80"), VAT: dec("19")},
	})
	builder := NewBuilder(f.store, newResolver(t, f.store), BuilderOptions{})
	svc := NewService(builder, f.store, ServiceOptions{})

	balance, err := svc.InvoiceBalance(context.Background(), inv.ID)
	require.NoError(t, err)
	requireAmount(t, "0", balance)

	_, err = svc.InvoiceBalance(context.Background(), 9999)
	require.ErrorIs(t, err, ledger.ErrInvoiceNotFound)
}
