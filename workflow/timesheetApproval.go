package workflow

import (
	"context"
	"fmt"

	"bitbucket.org/mmdatafocus/fieldserve_backend/config"
	"bitbucket.org/mmdatafocus/fieldserve_backend/models"
	"bitbucket.org/mmdatafocus/fieldserve_backend/utils"
	"github.com/sirupsen/logrus"
)

// ApproveTimesheet is the manual override for timesheets that reconciled as
// draft. It does not re-validate the underlying reconciliation: an admin
// approving a flagged timesheet is accepting its anomalies. A paid timesheet
// never moves back.
func ApproveTimesheet(ctx context.Context, store PayrollStore, logger *logrus.Logger, timesheetId int) error {
	if !utils.IsAdminFromContext(ctx) {
		return fmt.Errorf("%w: timesheet approval requires the admin role", utils.ErrorUnauthorized)
	}

	ts, err := store.GetTimesheet(ctx, timesheetId)
	if err != nil {
		return err
	}
	if ts.Status == models.TimesheetStatusApproved {
		return nil
	}
	if !ts.Status.CanTransitionTo(models.TimesheetStatusApproved) {
		return fmt.Errorf("%w: timesheet %d is %s and cannot move to approved", utils.ErrorInvalidInput, timesheetId, ts.Status)
	}

	if err := store.UpdateTimesheetStatus(ctx, timesheetId, models.TimesheetStatusApproved); err != nil {
		config.LogError(logger, "timesheetApproval.go", "ApproveTimesheet", "UpdateTimesheetStatus", timesheetId, err)
		return err
	}

	userId, _ := utils.GetUserIdFromContext(ctx)
	logger.WithFields(logrus.Fields{
		"module":       "timesheetApproval.go",
		"timesheet_id": timesheetId,
		"approved_by":  userId,
	}).Info("timesheet approved")
	return nil
}
