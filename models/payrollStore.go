package models

import (
	"context"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/fieldserve_backend/config"
	"bitbucket.org/mmdatafocus/fieldserve_backend/utils"
	"github.com/shopspring/decimal"
)

// GormPayrollStore backs workflow.PayrollStore with the shared GORM handle.
type GormPayrollStore struct{}

func NewPayrollStore() GormPayrollStore {
	return GormPayrollStore{}
}

func (GormPayrollStore) ListActiveTechnicians(ctx context.Context) ([]User, error) {
	return ListActiveTechnicians(ctx)
}

func (GormPayrollStore) ListWorkEvents(ctx context.Context, workerId int, from time.Time, to time.Time) ([]WorkEvent, error) {
	return ListWorkEvents(ctx, workerId, from, to)
}

func (GormPayrollStore) InsertPayrollRun(ctx context.Context, run *PayrollRun) error {
	db := config.GetDB()
	if err := db.WithContext(ctx).Create(run).Error; err != nil {
		return fmt.Errorf("%w: %s", utils.ErrorPersistence, err.Error())
	}
	return nil
}

func (GormPayrollStore) InsertTimesheet(ctx context.Context, ts *Timesheet) error {
	db := config.GetDB()
	if err := db.WithContext(ctx).Create(ts).Error; err != nil {
		return fmt.Errorf("%w: %s", utils.ErrorPersistence, err.Error())
	}
	return nil
}

func (GormPayrollStore) UpdatePayrollRunTotal(ctx context.Context, runId int, total decimal.Decimal) error {
	db := config.GetDB()
	if err := db.WithContext(ctx).Model(&PayrollRun{}).
		Where("id = ?", runId).
		Update("total_amount", total).Error; err != nil {
		return fmt.Errorf("%w: %s", utils.ErrorPersistence, err.Error())
	}
	return nil
}

func (GormPayrollStore) UpdatePayrollRunCounts(ctx context.Context, runId int, eligible int, succeeded int, failed int) error {
	db := config.GetDB()
	if err := db.WithContext(ctx).Model(&PayrollRun{}).
		Where("id = ?", runId).
		Updates(map[string]interface{}{
			"eligible_workers":  eligible,
			"succeeded_workers": succeeded,
			"failed_workers":    failed,
		}).Error; err != nil {
		return fmt.Errorf("%w: %s", utils.ErrorPersistence, err.Error())
	}
	return nil
}

func (GormPayrollStore) GetTimesheet(ctx context.Context, id int) (Timesheet, error) {
	return GetTimesheet(ctx, id)
}

func (GormPayrollStore) UpdateTimesheetStatus(ctx context.Context, id int, status TimesheetStatus) error {
	db := config.GetDB()
	if err := db.WithContext(ctx).Model(&Timesheet{}).
		Where("id = ?", id).
		Update("status", status).Error; err != nil {
		return fmt.Errorf("%w: %s", utils.ErrorPersistence, err.Error())
	}
	return nil
}
