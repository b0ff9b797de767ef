package workflow

import (
	"sort"
	"time"

	"bitbucket.org/mmdatafocus/fieldserve_backend/config"
	"bitbucket.org/mmdatafocus/fieldserve_backend/models"
	"github.com/shopspring/decimal"
)

var nanosPerMinute = decimal.NewFromInt(int64(time.Minute))

// ReconciliationResult is what one worker's event stream reconciles to for a
// period. Anomalies are data, not errors: an unmatched check-in or check-out
// downgrades the timesheet to draft instead of failing the run.
type ReconciliationResult struct {
	TotalMinutes    decimal.Decimal
	OpenCheckIns    []time.Time
	OrphanCheckOuts []time.Time
}

// Clean reports whether the stream paired up without anomalies.
func (r ReconciliationResult) Clean() bool {
	return len(r.OpenCheckIns) == 0 && len(r.OrphanCheckOuts) == 0
}

// SessionPolicy controls what a dangling check-in (no matching check-out
// before period end) is worth. The zero value discards its time entirely.
type SessionPolicy struct {
	DanglingCredit  config.DanglingCreditPolicy
	MaxShiftMinutes int
}

func PolicyFromConfig() SessionPolicy {
	return SessionPolicy{
		DanglingCredit:  config.PayrollDanglingCreditPolicy(),
		MaxShiftMinutes: config.PayrollMaxShiftMinutes(),
	}
}

// ReconcileSessions pairs one worker's check-ins with check-outs and totals
// the worked minutes. Pure and total: any finite event list, in any order,
// reconciles deterministically and never errors.
//
// Events are sorted by time with a stable sort, so same-timestamp events keep
// their insertion order. The caller (the repository query) is responsible for
// restricting events to [periodStart, periodEnd].
//
// Rules:
//   - check_in while one is already open: the earlier check-in is flagged and
//     replaced (last check-in wins).
//   - check_out with no open check-in: flagged as orphan, credits nothing.
//   - check-in still open after the walk: flagged; credited per policy.
func ReconcileSessions(events []models.WorkEvent, periodStart time.Time, periodEnd time.Time, policy SessionPolicy) ReconciliationResult {
	result := ReconciliationResult{
		TotalMinutes: decimal.Zero,
	}

	sorted := make([]models.WorkEvent, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].EventTime.Before(sorted[j].EventTime)
	})

	var openCheckIn *time.Time
	for i := range sorted {
		event := sorted[i]
		switch event.EventType {
		case models.WorkEventTypeCheckIn:
			if openCheckIn != nil {
				result.OpenCheckIns = append(result.OpenCheckIns, *openCheckIn)
			}
			t := event.EventTime
			openCheckIn = &t
		case models.WorkEventTypeCheckOut:
			if openCheckIn == nil {
				result.OrphanCheckOuts = append(result.OrphanCheckOuts, event.EventTime)
				continue
			}
			result.TotalMinutes = result.TotalMinutes.Add(minutesBetween(*openCheckIn, event.EventTime))
			openCheckIn = nil
		}
	}

	if openCheckIn != nil {
		result.OpenCheckIns = append(result.OpenCheckIns, *openCheckIn)
		if policy.DanglingCredit == config.CreditPolicyPeriodEnd {
			creditEnd := periodEnd
			if policy.MaxShiftMinutes > 0 {
				capEnd := openCheckIn.Add(time.Duration(policy.MaxShiftMinutes) * time.Minute)
				if capEnd.Before(creditEnd) {
					creditEnd = capEnd
				}
			}
			if creditEnd.After(*openCheckIn) {
				result.TotalMinutes = result.TotalMinutes.Add(minutesBetween(*openCheckIn, creditEnd))
			}
		}
	}

	return result
}

// minutesBetween stays off floating point: nanoseconds divided by 6e10 in
// decimal space, exact for whole-minute durations and within decimal
// precision for sub-minute remainders.
func minutesBetween(from time.Time, to time.Time) decimal.Decimal {
	if !to.After(from) {
		return decimal.Zero
	}
	return decimal.NewFromInt(to.Sub(from).Nanoseconds()).Div(nanosPerMinute)
}
