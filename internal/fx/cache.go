package fx

import (
	"context"
	"time"

	"github.com/bitlabstudio/account-keeping/internal/platform/cache"
)

// CachedHistory is a read-through Redis cache in front of a History. Misses
// are cached too, so a currency without rates costs one query per version.
type CachedHistory struct {
	next  History
	cache *cache.Versioned
}

var _ History = (*CachedHistory)(nil)

// NewCachedHistory wraps next with c.
func NewCachedHistory(next History, c *cache.Versioned) *CachedHistory {
	return &CachedHistory{next: next, cache: c}
}

type cachedRate struct {
	Found bool `json:"found"`
	Rate  Rate `json:"rate"`
}

func (h *CachedHistory) RateInMonth(ctx context.Context, pair Pair, month time.Time) (Rate, bool, error) {
	return h.fetch(ctx, []string{"month", pair.String(), monthStart(month).Format("2006-01")}, func(ctx context.Context) (Rate, bool, error) {
		return h.next.RateInMonth(ctx, pair, month)
	})
}

func (h *CachedHistory) LatestRate(ctx context.Context, pair Pair, asOf time.Time) (Rate, bool, error) {
	day := "latest"
	if !asOf.IsZero() {
		day = asOf.Format("2006-01-02")
	}
	return h.fetch(ctx, []string{"upto", pair.String(), day}, func(ctx context.Context) (Rate, bool, error) {
		return h.next.LatestRate(ctx, pair, asOf)
	})
}

// Invalidate drops every cached lookup.
func (h *CachedHistory) Invalidate(ctx context.Context) error {
	return h.cache.Bump(ctx)
}

func (h *CachedHistory) fetch(ctx context.Context, parts []string, load func(context.Context) (Rate, bool, error)) (Rate, bool, error) {
	key, err := h.cache.BuildKey(ctx, parts...)
	if err != nil {
		return load(ctx)
	}
	var (
		out     cachedRate
		loadErr error
	)
	_, err = h.cache.FetchJSON(ctx, key, &out, func(ctx context.Context) (any, error) {
		rate, ok, err := load(ctx)
		if err != nil {
			loadErr = err
			return nil, err
		}
		return cachedRate{Found: ok, Rate: rate}, nil
	})
	if loadErr != nil {
		return Rate{}, false, loadErr
	}
	if err != nil {
		// Redis trouble: answer from the history directly.
		return load(ctx)
	}
	return out.Rate, out.Found, nil
}
