package workflow

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/fieldserve_backend/models"
	"github.com/shopspring/decimal"
)

// PayrollStore is the repository collaborator the payroll workflows consume.
// models.GormPayrollStore is the production implementation; tests swap in an
// in-memory fake so the run semantics stay DB-free testable.
type PayrollStore interface {
	ListActiveTechnicians(ctx context.Context) ([]models.User, error)
	ListWorkEvents(ctx context.Context, workerId int, from time.Time, to time.Time) ([]models.WorkEvent, error)
	InsertPayrollRun(ctx context.Context, run *models.PayrollRun) error
	InsertTimesheet(ctx context.Context, ts *models.Timesheet) error
	UpdatePayrollRunTotal(ctx context.Context, runId int, total decimal.Decimal) error
	UpdatePayrollRunCounts(ctx context.Context, runId int, eligible int, succeeded int, failed int) error
	GetTimesheet(ctx context.Context, id int) (models.Timesheet, error)
	UpdateTimesheetStatus(ctx context.Context, id int, status models.TimesheetStatus) error
}
