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

type TimesheetStatus string

const (
	TimesheetStatusDraft    TimesheetStatus = "draft"
	TimesheetStatusApproved TimesheetStatus = "approved"
	TimesheetStatusPaid     TimesheetStatus = "paid"
)

// CanTransitionTo encodes the one-way status ladder draft -> approved -> paid.
// A status never regresses; same-status transitions are allowed (idempotent
// approval retries).
func (s TimesheetStatus) CanTransitionTo(next TimesheetStatus) bool {
	if s == next {
		return true
	}
	switch s {
	case TimesheetStatusDraft:
		return next == TimesheetStatusApproved || next == TimesheetStatusPaid
	case TimesheetStatusApproved:
		return next == TimesheetStatusPaid
	}
	return false
}

// Timesheet is the per-(worker, payroll run) outcome: the reconciled hours
// split and gross pay for one period. A timesheet with reconciliation
// anomalies starts as draft and needs a manual approval; a clean one is
// approved at creation.
type Timesheet struct {
	ID              int             `gorm:"primary_key" json:"id"`
	WorkerId        int             `gorm:"index;not null" json:"worker_id"`
	PayrollRunId    int             `gorm:"index;not null" json:"payroll_run_id"`
	PeriodStart     time.Time       `gorm:"not null" json:"period_start"`
	PeriodEnd       time.Time       `gorm:"not null" json:"period_end"`
	TotalHours      decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total_hours"`
	RegularHours    decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"regular_hours"`
	OvertimeHours   decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"overtime_hours"`
	HourlyRate      decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"hourly_rate"`
	GrossPay        decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"gross_pay"`
	Status          TimesheetStatus `gorm:"type:enum('draft','approved','paid');default:draft" json:"status"`
	OpenCheckIns    int             `gorm:"default:0" json:"open_check_ins"`
	OrphanCheckOuts int             `gorm:"default:0" json:"orphan_check_outs"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (t Timesheet) HasAnomalies() bool {
	return t.OpenCheckIns > 0 || t.OrphanCheckOuts > 0
}

func GetTimesheet(ctx context.Context, id int) (Timesheet, error) {
	var ts Timesheet
	db := config.GetDB()
	if err := db.WithContext(ctx).First(&ts, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ts, utils.ErrorRecordNotFound
		}
		return ts, err
	}
	return ts, nil
}
