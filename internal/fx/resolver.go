package fx

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Lookup outcomes reported to an Observer.
const (
	OutcomeIdentity     = "identity"
	OutcomeMonth        = "month"
	OutcomeCarryForward = "carry_forward"
	OutcomeLatest       = "latest"
	OutcomeMissing      = "missing"
)

// Observer receives the outcome of each rate lookup.
type Observer interface {
	ObserveRateLookup(outcome string)
}

// Resolver converts currencies into the configured base currency.
type Resolver struct {
	base     string
	history  History
	observer Observer
}

// Option customises a Resolver.
type Option func(*Resolver)

// WithObserver reports lookup outcomes to o.
func WithObserver(o Observer) Option {
	return func(r *Resolver) { r.observer = o }
}

// NewResolver constructs a resolver targeting base.
func NewResolver(base string, history History, opts ...Option) (*Resolver, error) {
	base = normalizeCode(base)
	if len(base) != 3 {
		return nil, fmt.Errorf("fx: base currency %q is not an ISO code", base)
	}
	if history == nil {
		return nil, fmt.Errorf("fx: rate history required")
	}
	r := &Resolver{base: base, history: history}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Base returns the base currency code.
func (r *Resolver) Base() string {
	return r.base
}

// Resolve returns the rate converting currency into the base currency for
// the month of asOf, carrying the latest earlier rate forward when that
// month has none.
func (r *Resolver) Resolve(ctx context.Context, currency string, asOf time.Time) (decimal.Decimal, error) {
	return r.ResolvePair(ctx, NewPair(currency, r.base), asOf)
}

// Latest returns the most recent known rate from currency into the base currency.
func (r *Resolver) Latest(ctx context.Context, currency string) (decimal.Decimal, error) {
	return r.LatestPair(ctx, NewPair(currency, r.base))
}

// ResolvePair applies the month then carry-forward policy to any pair.
func (r *Resolver) ResolvePair(ctx context.Context, pair Pair, asOf time.Time) (decimal.Decimal, error) {
	if pair.From == pair.To {
		r.observe(OutcomeIdentity)
		return decimal.NewFromInt(1), nil
	}
	if asOf.IsZero() {
		return decimal.Zero, fmt.Errorf("fx: as-of date required for %s", pair)
	}
	rate, ok, err := r.history.RateInMonth(ctx, pair, asOf)
	if err != nil {
		return decimal.Zero, fmt.Errorf("fx: month rate %s: %w", pair, err)
	}
	if ok {
		r.observe(OutcomeMonth)
		return rate.Value, nil
	}
	rate, ok, err = r.history.LatestRate(ctx, pair, asOf)
	if err != nil {
		return decimal.Zero, fmt.Errorf("fx: carry-forward rate %s: %w", pair, err)
	}
	if !ok {
		r.observe(OutcomeMissing)
		return decimal.Zero, &RateNotFoundError{Pair: pair, AsOf: asOf}
	}
	r.observe(OutcomeCarryForward)
	return rate.Value, nil
}

// LatestPair returns the most recent rate of pair regardless of date.
func (r *Resolver) LatestPair(ctx context.Context, pair Pair) (decimal.Decimal, error) {
	if pair.From == pair.To {
		r.observe(OutcomeIdentity)
		return decimal.NewFromInt(1), nil
	}
	rate, ok, err := r.history.LatestRate(ctx, pair, time.Time{})
	if err != nil {
		return decimal.Zero, fmt.Errorf("fx: latest rate %s: %w", pair, err)
	}
	if !ok {
		r.observe(OutcomeMissing)
		return decimal.Zero, &RateNotFoundError{Pair: pair}
	}
	r.observe(OutcomeLatest)
	return rate.Value, nil
}

func (r *Resolver) observe(outcome string) {
	if r.observer != nil {
		r.observer.ObserveRateLookup(outcome)
	}
}
