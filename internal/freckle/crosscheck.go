package freckle

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Source lists the invoices freckle considers unpaid.
type Source interface {
	UnpaidInvoices(ctx context.Context) ([]Invoice, error)
}

// NumberMatcher reports which invoice numbers have local transactions.
type NumberMatcher interface {
	InvoiceNumbersWithTransactions(ctx context.Context, numbers []string) ([]string, error)
}

// CrossCheck is the outcome of comparing freckle with the local ledger.
// When freckle cannot be reached Unavailable is set and Err wraps
// ErrLookupUnavailable; Invoices is then empty.
type CrossCheck struct {
	Invoices    []Invoice
	Unavailable bool
	Err         error
}

// Checker finds invoices that are unpaid in freckle but already have
// transactions in the ledger: either partially paid, or paid in full and
// still to be closed in freckle.
type Checker struct {
	source  Source
	matcher NumberMatcher
	logger  *slog.Logger
}

// NewChecker wires a checker. A nil source reports every check as unavailable.
func NewChecker(source Source, matcher NumberMatcher, logger *slog.Logger) *Checker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Checker{source: source, matcher: matcher, logger: logger}
}

// UnpaidInvoicesWithTransactions runs the cross-check. Only local failures
// are returned as errors; an unreachable freckle degrades to no data.
func (c *Checker) UnpaidInvoicesWithTransactions(ctx context.Context) (CrossCheck, error) {
	if c.source == nil {
		return CrossCheck{Unavailable: true, Err: fmt.Errorf("%w: not configured", ErrLookupUnavailable)}, nil
	}
	unpaid, err := c.source.UnpaidInvoices(ctx)
	if err != nil {
		c.logger.Warn("freckle lookup unavailable", slog.Any("error", err))
		return CrossCheck{Unavailable: true, Err: fmt.Errorf("%w: %v", ErrLookupUnavailable, err)}, nil
	}

	numbers := make([]string, 0, len(unpaid))
	for _, inv := range unpaid {
		if n := strings.TrimSpace(inv.Number); n != "" {
			numbers = append(numbers, n)
		}
	}
	if len(numbers) == 0 {
		return CrossCheck{Invoices: []Invoice{}}, nil
	}
	matched, err := c.matcher.InvoiceNumbersWithTransactions(ctx, numbers)
	if err != nil {
		return CrossCheck{}, fmt.Errorf("freckle: match invoice numbers: %w", err)
	}
	keep := make(map[string]struct{}, len(matched))
	for _, n := range matched {
		keep[n] = struct{}{}
	}
	out := make([]Invoice, 0, len(matched))
	for _, inv := range unpaid {
		if _, ok := keep[strings.TrimSpace(inv.Number)]; ok {
			out = append(out, inv)
		}
	}
	return CrossCheck{Invoices: out}, nil
}
