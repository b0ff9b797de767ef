package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/fieldserve_backend/config"
	"bitbucket.org/mmdatafocus/fieldserve_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type PayrollRunStatus string

const (
	PayrollRunStatusPending    PayrollRunStatus = "pending"
	PayrollRunStatusProcessing PayrollRunStatus = "processing"
	PayrollRunStatusPaid       PayrollRunStatus = "paid"
	PayrollRunStatusFailed     PayrollRunStatus = "failed"
)

// PayrollRun is one batch invocation over a pay period. It owns its
// timesheets; total_amount is recomputed after the per-worker fan-out, so it
// is eventually consistent with the timesheet rows, never ahead of them.
// The pending -> paid transition is owned by the disbursement side, not here.
type PayrollRun struct {
	ID            int              `gorm:"primary_key" json:"id"`
	PeriodStart   time.Time        `gorm:"not null" json:"period_start"`
	PeriodEnd     time.Time        `gorm:"not null" json:"period_end"`
	Status        PayrollRunStatus `gorm:"type:enum('pending','processing','paid','failed');default:pending" json:"status"`
	TotalAmount   decimal.Decimal  `gorm:"type:decimal(20,4);default:0" json:"total_amount"`
	CorrelationId string           `gorm:"size:64" json:"correlation_id"`

	// Fan-out outcome, persisted with the total so partial completion stays
	// visible after the creating request's summary is gone.
	EligibleWorkers  int  `gorm:"default:0" json:"eligible_workers"`
	SucceededWorkers int  `gorm:"default:0" json:"succeeded_workers"`
	FailedWorkers    int  `gorm:"default:0" json:"failed_workers"`
	Partial          bool `gorm:"-" json:"partial"`

	Timesheets []Timesheet `gorm:"foreignKey:PayrollRunId" json:"timesheets"`
	CreatedAt  time.Time   `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time   `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsPartial reports whether the run carries fewer timesheets than it had
// eligible workers, from failures or cancellation. Partial runs must be
// rendered distinctly; they are re-runnable per missing worker.
func (r PayrollRun) IsPartial() bool {
	return r.SucceededWorkers < r.EligibleWorkers
}

func GetPayrollRun(ctx context.Context, id int) (PayrollRun, error) {
	var run PayrollRun
	db := config.GetDB()
	if err := db.WithContext(ctx).Preload("Timesheets").First(&run, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return run, utils.ErrorRecordNotFound
		}
		return run, err
	}
	run.Partial = run.IsPartial()
	return run, nil
}
