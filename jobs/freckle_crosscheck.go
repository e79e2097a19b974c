package jobs

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/bitlabstudio/account-keeping/internal/freckle"
	jobmetrics "github.com/bitlabstudio/account-keeping/internal/jobs"
)

// CrossChecker finds freckle invoices that are unpaid there but already
// settled in the ledger.
type CrossChecker interface {
	UnpaidInvoicesWithTransactions(ctx context.Context) (freckle.CrossCheck, error)
}

// FreckleCrossCheckJob runs the cross-check on a schedule and logs each
// invoice that needs attention in freckle.
type FreckleCrossCheckJob struct {
	Checker CrossChecker
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewFreckleCrossCheckJob wires dependencies for the cross-check handler.
func NewFreckleCrossCheckJob(checker CrossChecker, logger *slog.Logger, metrics *jobmetrics.Metrics) *FreckleCrossCheckJob {
	return &FreckleCrossCheckJob{Checker: checker, Logger: logger, Metrics: metrics}
}

// Handle processes freckle cross-check tasks. An unreachable freckle API is
// logged and does not fail the task.
func (j *FreckleCrossCheckJob) Handle(ctx context.Context, _ *asynq.Task) error {
	if j == nil || j.Checker == nil {
		return errors.New("freckle cross-check: handler not configured")
	}

	tracker := j.metrics().Track(TaskFreckleCrossCheck)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger()
	result, err := j.Checker.UnpaidInvoicesWithTransactions(ctx)
	if err != nil {
		resultErr = err
		logger.Error("cross-check invoices", slog.Any("error", err))
		return resultErr
	}
	if result.Unavailable {
		logger.Warn("freckle lookup unavailable", slog.Any("error", result.Err))
		return resultErr
	}
	for _, inv := range result.Invoices {
		logger.Warn("invoice unpaid in freckle but paid in ledger", slog.Int64("freckle_id", inv.ID), slog.String("number", inv.Number))
	}
	j.metrics().SetCrossCheckMismatches(len(result.Invoices))
	logger.Info("completed freckle cross-check", slog.Int("mismatches", len(result.Invoices)))
	return resultErr
}

func (j *FreckleCrossCheckJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskFreckleCrossCheck))
	}
	return slog.Default().With(slog.String("job", TaskFreckleCrossCheck))
}

func (j *FreckleCrossCheckJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
