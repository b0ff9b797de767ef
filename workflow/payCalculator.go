package workflow

import (
	"fmt"

	"bitbucket.org/mmdatafocus/fieldserve_backend/utils"
	"github.com/shopspring/decimal"
)

var minutesPerHour = decimal.NewFromInt(60)

// PayBreakdown is the exact-decimal hours split and gross pay for one worker
// over one period. RegularHours + OvertimeHours always equals TotalHours with
// no rounding drift; addition and subtraction on decimals are exact.
type PayBreakdown struct {
	TotalHours    decimal.Decimal `json:"total_hours"`
	RegularHours  decimal.Decimal `json:"regular_hours"`
	OvertimeHours decimal.Decimal `json:"overtime_hours"`
	GrossPay      decimal.Decimal `json:"gross_pay"`
}

// ComputePay splits worked minutes into regular/overtime hours against the
// threshold and prices them. Negative inputs are rejected up front, never
// clamped: a negative rate reaching payroll is a data bug upstream and must
// surface under audit.
func ComputePay(totalMinutes, hourlyRate, overtimeThresholdHours, overtimeMultiplier decimal.Decimal) (PayBreakdown, error) {
	var breakdown PayBreakdown

	if totalMinutes.IsNegative() {
		return breakdown, fmt.Errorf("%w: total minutes cannot be negative", utils.ErrorInvalidInput)
	}
	if hourlyRate.IsNegative() {
		return breakdown, fmt.Errorf("%w: hourly rate cannot be negative", utils.ErrorInvalidInput)
	}
	if overtimeThresholdHours.IsNegative() {
		return breakdown, fmt.Errorf("%w: overtime threshold cannot be negative", utils.ErrorInvalidInput)
	}
	if overtimeMultiplier.IsNegative() {
		return breakdown, fmt.Errorf("%w: overtime multiplier cannot be negative", utils.ErrorInvalidInput)
	}

	breakdown.TotalHours = totalMinutes.Div(minutesPerHour)
	breakdown.RegularHours = decimal.Min(breakdown.TotalHours, overtimeThresholdHours)
	breakdown.OvertimeHours = decimal.Max(decimal.Zero, breakdown.TotalHours.Sub(overtimeThresholdHours))
	breakdown.GrossPay = hourlyRate.Mul(breakdown.RegularHours).
		Add(hourlyRate.Mul(overtimeMultiplier).Mul(breakdown.OvertimeHours))

	return breakdown, nil
}
