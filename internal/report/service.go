package report

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"github.com/bitlabstudio/account-keeping/internal/ledger"
	"github.com/bitlabstudio/account-keeping/internal/platform/cache"
)

// Recorder receives build timings and cache outcomes.
type Recorder interface {
	ObserveReportBuild(kind string, d time.Duration)
	ObserveReportCache(kind string, hit bool)
}

// InvoiceSource loads single invoices.
type InvoiceSource interface {
	GetInvoice(ctx context.Context, id int64) (ledger.Invoice, error)
}

// ServiceOptions configures a Service.
type ServiceOptions struct {
	Cache    *cache.Versioned
	Recorder Recorder
	Logger   *slog.Logger
}

// Service serves reports through the versioned cache and collapses
// concurrent builds of the same report into one.
type Service struct {
	builder  *Builder
	invoices InvoiceSource
	cache    *cache.Versioned
	recorder Recorder
	logger   *slog.Logger
	group    singleflight.Group
}

// NewService wires a report service around builder.
func NewService(builder *Builder, invoices InvoiceSource, opts ServiceOptions) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		builder:  builder,
		invoices: invoices,
		cache:    opts.Cache,
		recorder: opts.Recorder,
		logger:   logger,
	}
}

// Accounts returns the accounts report for w.
func (s *Service) Accounts(ctx context.Context, w Window) (AccountsReport, error) {
	if w == nil {
		return AccountsReport{}, ErrInvalidWindow
	}
	parts := []string{"accounts", string(w.Kind()), dateKey(w.Start()), dateKey(w.End())}
	var rep AccountsReport
	err := s.fetch(ctx, string(w.Kind()), parts, &rep, func(ctx context.Context) (any, error) {
		return s.builder.BuildAccounts(ctx, w)
	})
	return rep, err
}

// Year returns the twelve-month series of year.
func (s *Service) Year(ctx context.Context, year int) (YearSeries, error) {
	parts := []string{"year", strconv.Itoa(year)}
	var series YearSeries
	err := s.fetch(ctx, string(KindYear), parts, &series, func(ctx context.Context) (any, error) {
		return s.builder.BuildYearSeries(ctx, year)
	})
	return series, err
}

// InvoiceBalance loads an invoice and returns its balance.
func (s *Service) InvoiceBalance(ctx context.Context, id int64) (decimal.Decimal, error) {
	invoice, err := s.invoices.GetInvoice(ctx, id)
	if err != nil {
		return decimal.Zero, err
	}
	return s.builder.Aggregator().InvoiceBalance(ctx, invoice)
}

// Invalidate drops every cached report. It satisfies ledger.Invalidator.
func (s *Service) Invalidate(ctx context.Context) error {
	return s.cache.Invalidate(ctx)
}

func (s *Service) fetch(ctx context.Context, kind string, parts []string, dest any, build func(context.Context) (any, error)) error {
	// Navigation and elapsed-month averages depend on the current month.
	parts = append(parts, "as-of", s.builder.now().Format("2006-01"))
	key, err := s.cache.BuildKey(ctx, parts...)
	if err != nil {
		s.logger.Warn("report cache key unavailable", slog.String("kind", kind), slog.Any("error", err))
		key = ""
	}

	timed := func(ctx context.Context) (any, error) {
		start := time.Now()
		value, err := build(ctx)
		if s.recorder != nil {
			s.recorder.ObserveReportBuild(kind, time.Since(start))
		}
		return value, err
	}

	if key != "" {
		hit, err := s.cache.FetchJSON(ctx, key, dest, func(ctx context.Context) (any, error) {
			value, err := s.shared(ctx, key, timed)
			if err != nil {
				return nil, buildError{err: err}
			}
			return value, nil
		})
		if err == nil {
			if s.recorder != nil {
				s.recorder.ObserveReportCache(kind, hit)
			}
			return nil
		}
		var be buildError
		if errors.As(err, &be) {
			return be.err
		}
		s.logger.Warn("report cache unavailable", slog.String("kind", kind), slog.Any("error", err))
	}

	value, err := s.shared(ctx, fmt.Sprint(parts), timed)
	if err != nil {
		return err
	}
	return assign(dest, value)
}

// shared runs fn once per key across concurrent callers. The build is
// detached from the first caller's cancellation; each caller still stops
// waiting when its own context ends.
func (s *Service) shared(ctx context.Context, key string, fn func(context.Context) (any, error)) (any, error) {
	detached := context.WithoutCancel(ctx)
	ch := s.group.DoChan(key, func() (any, error) {
		return fn(detached)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		return res.Val, res.Err
	}
}

// buildError separates report failures from cache failures.
type buildError struct{ err error }

func (e buildError) Error() string { return e.err.Error() }
func (e buildError) Unwrap() error { return e.err }

func assign(dest, value any) error {
	switch d := dest.(type) {
	case *AccountsReport:
		v, ok := value.(AccountsReport)
		if !ok {
			return fmt.Errorf("report: unexpected value %T", value)
		}
		*d = v
	case *YearSeries:
		v, ok := value.(YearSeries)
		if !ok {
			return fmt.Errorf("report: unexpected value %T", value)
		}
		*d = v
	default:
		return fmt.Errorf("report: unsupported destination %T", dest)
	}
	return nil
}

func dateKey(t time.Time) string {
	if t.IsZero() {
		return "open"
	}
	return t.Format("2006-01-02")
}
