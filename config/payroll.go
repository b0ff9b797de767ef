package config

import (
	"os"
	"strings"

	"github.com/shopspring/decimal"
)

// Payroll policy knobs. All env-driven with conservative defaults so a bare
// deployment matches the statutory 40h/1.5x weekly overtime rule.
//
// - PAYROLL_OVERTIME_THRESHOLD_HOURS (default 40)
// - PAYROLL_OVERTIME_MULTIPLIER     (default 1.5)
// - PAYROLL_WORKER_POOL_SIZE        (default 8)
// - PAYROLL_DANGLING_CREDIT_POLICY  (discard | period_end, default discard)
// - PAYROLL_MAX_SHIFT_MINUTES       (cap under period_end, default 960, 0 = uncapped)

// DanglingCreditPolicy decides what a check-in without a matching check-out is
// worth. Discard pays nothing for it (operator error must not overpay);
// PeriodEnd credits time up to the period end, capped by MaxShiftMinutes.
type DanglingCreditPolicy string

const (
	CreditPolicyDiscard   DanglingCreditPolicy = "discard"
	CreditPolicyPeriodEnd DanglingCreditPolicy = "period_end"
)

func OvertimeThresholdHours() decimal.Decimal {
	return decimalFromEnv("PAYROLL_OVERTIME_THRESHOLD_HOURS", decimal.NewFromInt(40))
}

func OvertimeMultiplier() decimal.Decimal {
	return decimalFromEnv("PAYROLL_OVERTIME_MULTIPLIER", decimal.RequireFromString("1.5"))
}

func PayrollWorkerPoolSize() int {
	n := intFromEnv("PAYROLL_WORKER_POOL_SIZE", 8)
	if n < 1 {
		n = 1
	}
	return n
}

func PayrollDanglingCreditPolicy() DanglingCreditPolicy {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("PAYROLL_DANGLING_CREDIT_POLICY")))
	if v == string(CreditPolicyPeriodEnd) {
		return CreditPolicyPeriodEnd
	}
	return CreditPolicyDiscard
}

func PayrollMaxShiftMinutes() int {
	n := intFromEnv("PAYROLL_MAX_SHIFT_MINUTES", 960)
	if n < 0 {
		n = 0
	}
	return n
}

func decimalFromEnv(key string, fallback decimal.Decimal) decimal.Decimal {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	v, err := decimal.NewFromString(raw)
	if err != nil || v.IsNegative() {
		return fallback
	}
	return v
}
