package jobs

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"

	// TaskReportWarmup rebuilds the cached month, year-to-date and year reports.
	TaskReportWarmup = "ledger:report_warmup"
	// TaskRateGapScan checks exchange rate coverage for a month.
	TaskRateGapScan = "ledger:rate_gap_scan"
	// TaskFreckleCrossCheck compares freckle's unpaid invoices with the ledger.
	TaskFreckleCrossCheck = "ledger:freckle_crosscheck"
)

// TaskTypes lists every task the worker handles.
var TaskTypes = []string{TaskReportWarmup, TaskRateGapScan, TaskFreckleCrossCheck}

// ReportWarmupPayload selects the month to warm; empty means the current month.
type ReportWarmupPayload struct {
	Period string `json:"period,omitempty"`
}

// RateGapScanPayload selects the month to scan; empty means the current month.
type RateGapScanPayload struct {
	Period string `json:"period,omitempty"`
}

// FreckleCrossCheckPayload has no parameters yet.
type FreckleCrossCheckPayload struct{}

// NewReportWarmupTask constructs a report warmup task.
func NewReportWarmupTask(payload ReportWarmupPayload) (*asynq.Task, error) {
	return newTask(TaskReportWarmup, payload)
}

// NewRateGapScanTask constructs a rate gap scan task.
func NewRateGapScanTask(payload RateGapScanPayload) (*asynq.Task, error) {
	return newTask(TaskRateGapScan, payload)
}

// NewFreckleCrossCheckTask constructs a freckle cross-check task.
func NewFreckleCrossCheckTask() (*asynq.Task, error) {
	return newTask(TaskFreckleCrossCheck, FreckleCrossCheckPayload{})
}

// NewTask builds an empty-payload task of the given type, for triggers that
// run a job with its defaults.
func NewTask(taskType string) (*asynq.Task, error) {
	switch taskType {
	case TaskReportWarmup:
		return NewReportWarmupTask(ReportWarmupPayload{})
	case TaskRateGapScan:
		return NewRateGapScanTask(RateGapScanPayload{})
	case TaskFreckleCrossCheck:
		return NewFreckleCrossCheckTask()
	}
	return nil, fmt.Errorf("jobs: unknown task type %q", taskType)
}

func newTask(taskType string, payload any) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(taskType, data), nil
}

// parsePeriod reads a "2006-01" month, defaulting to the month of now.
func parsePeriod(raw string, now time.Time) (time.Time, error) {
	if raw == "" {
		return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC), nil
	}
	return time.Parse("2006-01", raw)
}
