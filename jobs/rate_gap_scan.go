package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/bitlabstudio/account-keeping/internal/fx"
	jobmetrics "github.com/bitlabstudio/account-keeping/internal/jobs"
)

// CurrencyLister reports the currencies stored in the ledger.
type CurrencyLister interface {
	CurrenciesInUse(ctx context.Context) ([]string, error)
}

// RateGapScanJob checks that every ledger currency has a rate into the base
// currency for a month and logs the gaps.
type RateGapScanJob struct {
	History    fx.History
	Ledger     CurrencyLister
	Base       string
	Currencies []string
	Logger     *slog.Logger
	Metrics    *jobmetrics.Metrics
	clock      func() time.Time
}

// NewRateGapScanJob wires dependencies for the scan handler. catalogue lists
// currencies to check in addition to those in use.
func NewRateGapScanJob(history fx.History, ledger CurrencyLister, base string, catalogue []string, logger *slog.Logger, metrics *jobmetrics.Metrics) *RateGapScanJob {
	return &RateGapScanJob{
		History:    history,
		Ledger:     ledger,
		Base:       base,
		Currencies: catalogue,
		Logger:     logger,
		Metrics:    metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes rate gap scan tasks.
func (j *RateGapScanJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.History == nil || j.Ledger == nil {
		return errors.New("rate gap scan: handler not configured")
	}
	var payload RateGapScanPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	period, err := parsePeriod(payload.Period, j.now())
	if err != nil {
		return asynq.SkipRetry
	}

	tracker := j.metrics().Track(TaskRateGapScan)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(slog.String("period", period.Format("2006-01")))

	inUse, err := j.Ledger.CurrenciesInUse(ctx)
	if err != nil {
		resultErr = err
		logger.Error("list currencies", slog.Any("error", err))
		return resultErr
	}
	currencies := append(append([]string{}, j.Currencies...), inUse...)

	result, err := fx.Validate(ctx, j.History, j.Base, period, currencies)
	if err != nil {
		resultErr = err
		logger.Error("validate rates", slog.Any("error", err))
		return resultErr
	}

	blocking := 0
	for _, gap := range result.Gaps {
		attrs := []any{slog.String("pair", gap.Pair.String())}
		if gap.CarryForward == nil {
			blocking++
			logger.Warn("rate missing without fallback", attrs...)
			continue
		}
		attrs = append(attrs, slog.String("fallback_date", gap.CarryForward.Date.Format("2006-01-02")))
		logger.Info("rate carried forward", attrs...)
	}
	j.metrics().SetRateGaps(period.Format("2006-01"), len(result.Gaps), blocking)

	logger.Info("completed rate gap scan", slog.Int("checked", result.Checked), slog.Int("gaps", len(result.Gaps)), slog.Int("blocking", blocking))
	return resultErr
}

func (j *RateGapScanJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskRateGapScan))
	}
	return slog.Default().With(slog.String("job", TaskRateGapScan))
}

func (j *RateGapScanJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *RateGapScanJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
