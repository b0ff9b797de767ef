package reports

import (
	"fmt"
	"net/http"

	"bitbucket.org/mmdatafocus/fieldserve_backend/models"
	"github.com/xuri/excelize/v2"
)

// WritePayrollRunExcel streams a payroll run's timesheets as an xlsx workbook.
// One row per timesheet; decimals are written as strings so nothing gets
// rounded through a float cell.
func WritePayrollRunExcel(w http.ResponseWriter, run *models.PayrollRun) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := "Timesheets"
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}
	f.DeleteSheet("Sheet1")

	headers := []string{"WorkerId", "PeriodStart", "PeriodEnd", "TotalHours", "RegularHours", "OvertimeHours", "HourlyRate", "GrossPay", "Status", "OpenCheckIns", "OrphanCheckOuts"}
	for i, h := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		f.SetCellValue(sheet, cell, h)
	}

	for i, ts := range run.Timesheets {
		row := i + 2
		values := []interface{}{
			ts.WorkerId,
			ts.PeriodStart.Format("2006-01-02 15:04"),
			ts.PeriodEnd.Format("2006-01-02 15:04"),
			ts.TotalHours.String(),
			ts.RegularHours.String(),
			ts.OvertimeHours.String(),
			ts.HourlyRate.String(),
			ts.GrossPay.String(),
			string(ts.Status),
			ts.OpenCheckIns,
			ts.OrphanCheckOuts,
		}
		for col, v := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, row)
			if err != nil {
				return err
			}
			f.SetCellValue(sheet, cell, v)
		}
	}

	f.SetCellValue(sheet, fmt.Sprintf("A%d", len(run.Timesheets)+3), "RunTotal")
	f.SetCellValue(sheet, fmt.Sprintf("B%d", len(run.Timesheets)+3), run.TotalAmount.String())

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=payroll-run-%d.xlsx", run.ID))
	return f.Write(w)
}
