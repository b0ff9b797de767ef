package workflow

import (
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/fieldserve_backend/config"
	"bitbucket.org/mmdatafocus/fieldserve_backend/models"
	"github.com/shopspring/decimal"
)

var day = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

func at(hour, min int) time.Time {
	return day.Add(time.Duration(hour)*time.Hour + time.Duration(min)*time.Minute)
}

func checkIn(t time.Time) models.WorkEvent {
	return models.WorkEvent{EventType: models.WorkEventTypeCheckIn, EventTime: t}
}

func checkOut(t time.Time) models.WorkEvent {
	return models.WorkEvent{EventType: models.WorkEventTypeCheckOut, EventTime: t}
}

func mustMinutes(t *testing.T, got decimal.Decimal, want int64) {
	t.Helper()
	if !got.Equal(decimal.NewFromInt(want)) {
		t.Fatalf("total minutes: expected %d, got %s", want, got.String())
	}
}

func TestReconcileSessions_AlternatingPairs(t *testing.T) {
	events := []models.WorkEvent{
		checkIn(at(9, 0)), checkOut(at(13, 0)),
		checkIn(at(13, 30)), checkOut(at(17, 30)),
	}
	res := ReconcileSessions(events, at(0, 0), at(23, 59), SessionPolicy{})

	mustMinutes(t, res.TotalMinutes, 480)
	if !res.Clean() {
		t.Fatalf("expected clean reconciliation, got open=%v orphan=%v", res.OpenCheckIns, res.OrphanCheckOuts)
	}
}

func TestReconcileSessions_DoubleCheckIn_LastWins(t *testing.T) {
	events := []models.WorkEvent{
		checkIn(at(9, 0)),
		checkIn(at(10, 0)),
		checkOut(at(11, 30)),
	}
	res := ReconcileSessions(events, at(0, 0), at(23, 59), SessionPolicy{})

	mustMinutes(t, res.TotalMinutes, 90)
	if len(res.OpenCheckIns) != 1 || !res.OpenCheckIns[0].Equal(at(9, 0)) {
		t.Fatalf("expected the first check-in flagged, got %v", res.OpenCheckIns)
	}
	if len(res.OrphanCheckOuts) != 0 {
		t.Fatalf("unexpected orphan check-outs: %v", res.OrphanCheckOuts)
	}
}

func TestReconcileSessions_DanglingCheckIn_DiscardsTime(t *testing.T) {
	events := []models.WorkEvent{checkIn(at(9, 0))}
	res := ReconcileSessions(events, at(0, 0), at(17, 0), SessionPolicy{})

	mustMinutes(t, res.TotalMinutes, 0)
	if len(res.OpenCheckIns) != 1 || !res.OpenCheckIns[0].Equal(at(9, 0)) {
		t.Fatalf("expected dangling check-in flagged, got %v", res.OpenCheckIns)
	}
}

func TestReconcileSessions_OrphanCheckOut(t *testing.T) {
	events := []models.WorkEvent{checkOut(at(12, 0))}
	res := ReconcileSessions(events, at(0, 0), at(23, 59), SessionPolicy{})

	mustMinutes(t, res.TotalMinutes, 0)
	if len(res.OrphanCheckOuts) != 1 || !res.OrphanCheckOuts[0].Equal(at(12, 0)) {
		t.Fatalf("expected orphan check-out flagged, got %v", res.OrphanCheckOuts)
	}
	if len(res.OpenCheckIns) != 0 {
		t.Fatalf("unexpected open check-ins: %v", res.OpenCheckIns)
	}
}

func TestReconcileSessions_Empty(t *testing.T) {
	res := ReconcileSessions(nil, at(0, 0), at(23, 59), SessionPolicy{})
	mustMinutes(t, res.TotalMinutes, 0)
	if !res.Clean() {
		t.Fatal("empty stream must reconcile clean")
	}
}

func TestReconcileSessions_InputOrderDoesNotMatter(t *testing.T) {
	ordered := []models.WorkEvent{
		checkIn(at(9, 0)), checkOut(at(13, 0)),
		checkIn(at(13, 30)), checkOut(at(17, 30)),
	}
	shuffled := []models.WorkEvent{ordered[3], ordered[1], ordered[2], ordered[0]}

	a := ReconcileSessions(ordered, at(0, 0), at(23, 59), SessionPolicy{})
	b := ReconcileSessions(shuffled, at(0, 0), at(23, 59), SessionPolicy{})

	if !a.TotalMinutes.Equal(b.TotalMinutes) || len(a.OpenCheckIns) != len(b.OpenCheckIns) || len(a.OrphanCheckOuts) != len(b.OrphanCheckOuts) {
		t.Fatalf("order-dependent reconciliation: %v vs %v", a, b)
	}
}

func TestReconcileSessions_SameTimestampKeepsInsertionOrder(t *testing.T) {
	// A zero-length session: check-in and check-out at the same instant,
	// inserted in that order. Stable sort must not swap them into an orphan
	// check-out followed by a dangling check-in.
	events := []models.WorkEvent{
		{ID: 1, EventType: models.WorkEventTypeCheckIn, EventTime: at(9, 0)},
		{ID: 2, EventType: models.WorkEventTypeCheckOut, EventTime: at(9, 0)},
	}
	res := ReconcileSessions(events, at(0, 0), at(23, 59), SessionPolicy{})

	mustMinutes(t, res.TotalMinutes, 0)
	if !res.Clean() {
		t.Fatalf("expected clean zero-length session, got open=%v orphan=%v", res.OpenCheckIns, res.OrphanCheckOuts)
	}
}

func TestReconcileSessions_PeriodEndCreditPolicy(t *testing.T) {
	events := []models.WorkEvent{checkIn(at(9, 0))}
	policy := SessionPolicy{DanglingCredit: config.CreditPolicyPeriodEnd}

	res := ReconcileSessions(events, at(0, 0), at(17, 0), policy)
	mustMinutes(t, res.TotalMinutes, 480)
	if len(res.OpenCheckIns) != 1 {
		t.Fatal("credited dangling check-in must still be flagged")
	}
}

func TestReconcileSessions_PeriodEndCreditPolicy_ShiftCap(t *testing.T) {
	events := []models.WorkEvent{checkIn(at(9, 0))}
	policy := SessionPolicy{DanglingCredit: config.CreditPolicyPeriodEnd, MaxShiftMinutes: 240}

	res := ReconcileSessions(events, at(0, 0), at(17, 0), policy)
	mustMinutes(t, res.TotalMinutes, 240)
}
