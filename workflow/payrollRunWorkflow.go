package workflow

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"bitbucket.org/mmdatafocus/fieldserve_backend/config"
	"bitbucket.org/mmdatafocus/fieldserve_backend/models"
	"bitbucket.org/mmdatafocus/fieldserve_backend/utils"
	"github.com/bsm/redislock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// PayrollRunSummary is returned alongside the run id rather than failing the
// whole call on per-worker errors: the caller can retry a correctable subset
// of workers without recomputing the run. Partial completion is visible as
// Failed > 0 (or Succeeded < Eligible under cancellation).
type PayrollRunSummary struct {
	RunId           int             `json:"run_id"`
	Eligible        int             `json:"eligible"`
	Succeeded       int             `json:"succeeded"`
	Failed          int             `json:"failed"`
	FailedWorkerIds []int           `json:"failed_worker_ids,omitempty"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
}

// CreatePayrollRun reconciles and prices the whole active technician
// workforce for [periodStart, periodEnd] and persists one timesheet per
// worker under a new run row.
//
// Per-worker steps are pure over that worker's events, so they fan out across
// a bounded goroutine pool. Timesheet inserts are independent rows; the only
// shared write is the run total, recomputed once after the fan-out settles.
// There is no cross-worker transaction: committed timesheets stay committed
// when another worker's step fails, and the run can be re-run per missing
// worker. On ctx cancellation no new workers are dispatched, in-flight ones
// finish, and the run stays pending for a safe retry.
func CreatePayrollRun(ctx context.Context, store PayrollStore, logger *logrus.Logger, periodStart time.Time, periodEnd time.Time) (*PayrollRunSummary, error) {
	if !utils.IsAdminFromContext(ctx) {
		return nil, fmt.Errorf("%w: payroll runs require the admin role", utils.ErrorUnauthorized)
	}
	if periodStart.IsZero() || periodEnd.IsZero() {
		return nil, fmt.Errorf("%w: period bounds are required", utils.ErrorInvalidInput)
	}
	if periodEnd.Before(periodStart) {
		return nil, fmt.Errorf("%w: period end before period start", utils.ErrorInvalidInput)
	}

	// Best-effort fence against two concurrent runs over the same period.
	// Redis being down must not block payroll; duplicate runs are visible and
	// re-runnable, not corrupting.
	if locker := config.GetRedisLock(); locker != nil {
		lockKey := fmt.Sprintf("payrollRun:%d:%d", periodStart.Unix(), periodEnd.Unix())
		lock, err := locker.Obtain(ctx, lockKey, 5*time.Minute, nil)
		if err == nil {
			defer lock.Release(context.WithoutCancel(ctx))
		} else if err == redislock.ErrNotObtained {
			return nil, fmt.Errorf("%w: a payroll run for this period is already in progress", utils.ErrorInvalidInput)
		}
	}

	run := models.PayrollRun{
		PeriodStart:   periodStart,
		PeriodEnd:     periodEnd,
		Status:        models.PayrollRunStatusPending,
		TotalAmount:   decimal.Zero,
		CorrelationId: correlationIdFromContextOrNew(ctx),
	}
	if err := store.InsertPayrollRun(ctx, &run); err != nil {
		config.LogError(logger, "payrollRunWorkflow.go", "CreatePayrollRun", "InsertPayrollRun", run, err)
		return nil, err
	}

	workers, err := store.ListActiveTechnicians(ctx)
	if err != nil {
		config.LogError(logger, "payrollRunWorkflow.go", "CreatePayrollRun", "ListActiveTechnicians", run.ID, err)
		return nil, fmt.Errorf("%w: listing technicians: %s", utils.ErrorPersistence, err.Error())
	}

	policy := PolicyFromConfig()
	threshold := config.OvertimeThresholdHours()
	multiplier := config.OvertimeMultiplier()

	summary := &PayrollRunSummary{
		RunId:       run.ID,
		Eligible:    len(workers),
		TotalAmount: decimal.Zero,
	}

	var (
		mu   sync.Mutex
		wg   sync.WaitGroup
		pool = make(chan struct{}, config.PayrollWorkerPoolSize())
	)

	markFailed := func(workerId int) {
		mu.Lock()
		summary.Failed++
		summary.FailedWorkerIds = append(summary.FailedWorkerIds, workerId)
		mu.Unlock()
	}

	for i := range workers {
		select {
		case <-ctx.Done():
			// Stop dispatching; the run stays pending and partially populated.
		default:
			wg.Add(1)
			go func(worker models.User) {
				defer wg.Done()
				select {
				case pool <- struct{}{}:
					defer func() { <-pool }()
				case <-ctx.Done():
					// Queued but never started; visible as Succeeded < Eligible.
					return
				}

				ts, err := buildTimesheet(ctx, store, &run, worker, policy, threshold, multiplier)
				if err != nil {
					config.LogError(logger, "payrollRunWorkflow.go", "CreatePayrollRun", "buildTimesheet", worker.ID, err)
					markFailed(worker.ID)
					return
				}
				if err := store.InsertTimesheet(ctx, ts); err != nil {
					config.LogError(logger, "payrollRunWorkflow.go", "CreatePayrollRun", "InsertTimesheet", worker.ID, err)
					markFailed(worker.ID)
					return
				}
				mu.Lock()
				summary.Succeeded++
				summary.TotalAmount = summary.TotalAmount.Add(ts.GrossPay)
				mu.Unlock()
			}(workers[i])
			continue
		}
		break
	}
	wg.Wait()

	sort.Ints(summary.FailedWorkerIds)

	// The aggregates are written once, after all per-worker writes are known.
	// Counts first: a run whose timesheets fall short of its eligible workers
	// must read as partial even when only this request saw the summary.
	// Failing here leaves the summary valid; the error reports only the
	// aggregate write.
	if err := store.UpdatePayrollRunCounts(ctx, run.ID, summary.Eligible, summary.Succeeded, summary.Failed); err != nil {
		config.LogError(logger, "payrollRunWorkflow.go", "CreatePayrollRun", "UpdatePayrollRunCounts", run.ID, err)
		return summary, err
	}
	if err := store.UpdatePayrollRunTotal(ctx, run.ID, summary.TotalAmount); err != nil {
		config.LogError(logger, "payrollRunWorkflow.go", "CreatePayrollRun", "UpdatePayrollRunTotal", run.ID, err)
		return summary, err
	}

	logger.WithFields(logrus.Fields{
		"module":    "payrollRunWorkflow.go",
		"run_id":    run.ID,
		"eligible":  summary.Eligible,
		"succeeded": summary.Succeeded,
		"failed":    summary.Failed,
		"total":     summary.TotalAmount.String(),
	}).Info("payroll run completed")

	return summary, nil
}

// buildTimesheet is the per-worker unit of work: events -> sessions -> pay.
// A timesheet whose reconciliation flagged anomalies starts as draft and
// waits for a manual approval; a clean one is approved immediately.
func buildTimesheet(ctx context.Context, store PayrollStore, run *models.PayrollRun, worker models.User, policy SessionPolicy, threshold, multiplier decimal.Decimal) (*models.Timesheet, error) {
	events, err := store.ListWorkEvents(ctx, worker.ID, run.PeriodStart, run.PeriodEnd)
	if err != nil {
		return nil, fmt.Errorf("%w: listing work events: %s", utils.ErrorPersistence, err.Error())
	}

	reconciled := ReconcileSessions(events, run.PeriodStart, run.PeriodEnd, policy)
	pay, err := ComputePay(reconciled.TotalMinutes, worker.HourlyRate, threshold, multiplier)
	if err != nil {
		return nil, err
	}

	status := models.TimesheetStatusApproved
	if !reconciled.Clean() {
		status = models.TimesheetStatusDraft
	}

	return &models.Timesheet{
		WorkerId:        worker.ID,
		PayrollRunId:    run.ID,
		PeriodStart:     run.PeriodStart,
		PeriodEnd:       run.PeriodEnd,
		TotalHours:      pay.TotalHours,
		RegularHours:    pay.RegularHours,
		OvertimeHours:   pay.OvertimeHours,
		HourlyRate:      worker.HourlyRate,
		GrossPay:        pay.GrossPay,
		Status:          status,
		OpenCheckIns:    len(reconciled.OpenCheckIns),
		OrphanCheckOuts: len(reconciled.OrphanCheckOuts),
	}, nil
}

func correlationIdFromContextOrNew(ctx context.Context) string {
	if v, ok := utils.GetCorrelationIdFromContext(ctx); ok && v != "" {
		return v
	}
	return uuid.NewString()
}
