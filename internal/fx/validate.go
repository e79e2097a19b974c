package fx

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// Gap is a pair without a rate inside the checked month.
type Gap struct {
	Pair Pair
	// CarryForward holds the earlier rate reports will fall back to, if any.
	CarryForward *Rate
}

// Result summarises a coverage check for one month.
type Result struct {
	Period    time.Time
	Checked   int
	Gaps      []Gap
	Available map[string]Rate
}

// Blocking reports whether any gap has no carry-forward fallback, which
// would make reports for the period fail.
func (r Result) Blocking() bool {
	for _, gap := range r.Gaps {
		if gap.CarryForward == nil {
			return true
		}
	}
	return false
}

// Validate checks that every currency has a rate into base for the month of
// asOf. The base currency itself is skipped.
func Validate(ctx context.Context, history History, base string, asOf time.Time, currencies []string) (Result, error) {
	var res Result
	if history == nil {
		return res, fmt.Errorf("fx: rate history required")
	}
	if asOf.IsZero() {
		return res, fmt.Errorf("fx: period is required")
	}
	base = normalizeCode(base)
	if base == "" {
		return res, fmt.Errorf("fx: base currency required")
	}
	res.Period = monthStart(asOf)
	res.Available = make(map[string]Rate)
	res.Gaps = make([]Gap, 0)

	seen := make(map[string]struct{}, len(currencies))
	codes := make([]string, 0, len(currencies))
	for _, raw := range currencies {
		code := normalizeCode(raw)
		if code == "" {
			return Result{}, fmt.Errorf("fx: currency code required")
		}
		if code == base {
			continue
		}
		if _, ok := seen[code]; ok {
			continue
		}
		seen[code] = struct{}{}
		codes = append(codes, code)
	}
	sort.Strings(codes)

	monthEnd := res.Period.AddDate(0, 1, -1)
	for _, code := range codes {
		pair := NewPair(code, base)
		rate, ok, err := history.RateInMonth(ctx, pair, res.Period)
		if err != nil {
			return Result{}, err
		}
		res.Checked++
		if ok {
			res.Available[pair.String()] = rate
			continue
		}
		gap := Gap{Pair: pair}
		prior, ok, err := history.LatestRate(ctx, pair, monthEnd)
		if err != nil {
			return Result{}, err
		}
		if ok {
			gap.CarryForward = &prior
		}
		res.Gaps = append(res.Gaps, gap)
	}
	return res, nil
}
