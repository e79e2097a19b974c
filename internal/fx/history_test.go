package fx

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

type fakeHistory struct {
	mu    sync.Mutex
	rates []Rate
	err   error
	calls int
}

func (f *fakeHistory) add(from, to string, date time.Time, value string) {
	f.rates = append(f.rates, Rate{Pair: NewPair(from, to), Date: date, Value: decimal.RequireFromString(value)})
}

func (f *fakeHistory) RateInMonth(ctx context.Context, pair Pair, month time.Time) (Rate, bool, error) {
	start := monthStart(month)
	end := start.AddDate(0, 1, 0)
	return f.pick(pair, func(r Rate) bool { return !r.Date.Before(start) && r.Date.Before(end) })
}

func (f *fakeHistory) LatestRate(ctx context.Context, pair Pair, asOf time.Time) (Rate, bool, error) {
	return f.pick(pair, func(r Rate) bool { return asOf.IsZero() || !r.Date.After(asOf) })
}

func (f *fakeHistory) pick(pair Pair, keep func(Rate) bool) (Rate, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return Rate{}, false, f.err
	}
	var (
		best  Rate
		found bool
	)
	for _, r := range f.rates {
		if r.Pair != pair || !keep(r) {
			continue
		}
		if !found || r.Date.After(best.Date) {
			best, found = r, true
		}
	}
	return best, found, nil
}

func (f *fakeHistory) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
