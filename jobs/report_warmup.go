package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/bitlabstudio/account-keeping/internal/jobs"
	"github.com/bitlabstudio/account-keeping/internal/report"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// ReportSource builds and caches reports.
type ReportSource interface {
	Accounts(ctx context.Context, w report.Window) (report.AccountsReport, error)
	Year(ctx context.Context, year int) (report.YearSeries, error)
}

// ReportWarmupJob pre-populates the report cache so the first reader after an
// invalidation does not pay for the build.
type ReportWarmupJob struct {
	Reports ReportSource
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewReportWarmupJob wires dependencies for the warmup handler.
func NewReportWarmupJob(reports ReportSource, logger *slog.Logger, metrics *jobmetrics.Metrics) *ReportWarmupJob {
	return &ReportWarmupJob{
		Reports: reports,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes report warmup tasks.
func (j *ReportWarmupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Reports == nil {
		return errors.New("report warmup: handler not configured")
	}
	var payload ReportWarmupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	now := j.now()
	period, err := parsePeriod(payload.Period, now)
	if err != nil {
		return asynq.SkipRetry
	}

	tracker := j.metrics().Track(TaskReportWarmup)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	start := time.Now()
	month := report.MonthOf(period)
	logger := j.logger().With(slog.String("period", month.Period()))
	logger.Info("starting report warmup")

	windows := []report.Window{month, report.NewYearToDate(period.Year(), now), report.AllTime{}}
	for _, w := range windows {
		if _, err := j.Reports.Accounts(ctx, w); err != nil {
			resultErr = err
			logger.Error("warm accounts report", slog.String("window", w.Label()), slog.Any("error", err))
			return resultErr
		}
	}
	if _, err := j.Reports.Year(ctx, period.Year()); err != nil {
		resultErr = err
		logger.Error("warm year series", slog.Int("year", period.Year()), slog.Any("error", err))
		return resultErr
	}

	logger.Info("completed report warmup", slog.Int("reports", len(windows)+1), slog.Duration("duration", time.Since(start)))
	return resultErr
}

func (j *ReportWarmupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskReportWarmup))
	}
	return slog.Default().With(slog.String("job", TaskReportWarmup))
}

func (j *ReportWarmupJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *ReportWarmupJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
