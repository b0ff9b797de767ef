package workflow

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/fieldserve_backend/config"
	"bitbucket.org/mmdatafocus/fieldserve_backend/models"
	"bitbucket.org/mmdatafocus/fieldserve_backend/utils"
	"github.com/shopspring/decimal"
)

// fakeStore is an in-memory PayrollStore. Mutating methods take the lock so
// the fan-out's concurrent inserts stay race-free, mirroring how independent
// rows don't contend in the real DB.
type runCounts struct {
	eligible, succeeded, failed int
}

type fakeStore struct {
	mu         sync.Mutex
	workers    []models.User
	events     map[int][]models.WorkEvent
	runs       []*models.PayrollRun
	timesheets []models.Timesheet
	runTotals  map[int]decimal.Decimal
	counts     map[int]runCounts

	failRunInsert       bool
	failWorkerList      bool
	failTimesheetWorker map[int]bool

	// insertDelay widens the insert window so overlapping callers are
	// observable; inFlight/maxInFlight track them.
	insertDelay time.Duration
	inFlight    int
	maxInFlight int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		events:              map[int][]models.WorkEvent{},
		runTotals:           map[int]decimal.Decimal{},
		counts:              map[int]runCounts{},
		failTimesheetWorker: map[int]bool{},
	}
}

func (s *fakeStore) ListActiveTechnicians(ctx context.Context) ([]models.User, error) {
	if s.failWorkerList {
		return nil, errors.New("boom")
	}
	return s.workers, nil
}

func (s *fakeStore) ListWorkEvents(ctx context.Context, workerId int, from, to time.Time) ([]models.WorkEvent, error) {
	return s.events[workerId], nil
}

func (s *fakeStore) InsertPayrollRun(ctx context.Context, run *models.PayrollRun) error {
	if s.failRunInsert {
		return utils.ErrorPersistence
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	run.ID = len(s.runs) + 1
	s.runs = append(s.runs, run)
	return nil
}

func (s *fakeStore) InsertTimesheet(ctx context.Context, ts *models.Timesheet) error {
	s.mu.Lock()
	s.inFlight++
	if s.inFlight > s.maxInFlight {
		s.maxInFlight = s.inFlight
	}
	s.mu.Unlock()

	if s.insertDelay > 0 {
		time.Sleep(s.insertDelay)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.inFlight--
	if s.failTimesheetWorker[ts.WorkerId] {
		return utils.ErrorPersistence
	}
	ts.ID = len(s.timesheets) + 1
	s.timesheets = append(s.timesheets, *ts)
	return nil
}

func (s *fakeStore) UpdatePayrollRunTotal(ctx context.Context, runId int, total decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runTotals[runId] = total
	return nil
}

func (s *fakeStore) UpdatePayrollRunCounts(ctx context.Context, runId int, eligible int, succeeded int, failed int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts[runId] = runCounts{eligible: eligible, succeeded: succeeded, failed: failed}
	return nil
}

func (s *fakeStore) GetTimesheet(ctx context.Context, id int) (models.Timesheet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ts := range s.timesheets {
		if ts.ID == id {
			return ts, nil
		}
	}
	return models.Timesheet{}, utils.ErrorRecordNotFound
}

func (s *fakeStore) UpdateTimesheetStatus(ctx context.Context, id int, status models.TimesheetStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.timesheets {
		if s.timesheets[i].ID == id {
			s.timesheets[i].Status = status
			return nil
		}
	}
	return utils.ErrorRecordNotFound
}

func (s *fakeStore) timesheetForWorker(workerId int) (models.Timesheet, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ts := range s.timesheets {
		if ts.WorkerId == workerId {
			return ts, true
		}
	}
	return models.Timesheet{}, false
}

func adminCtx() context.Context {
	ctx := utils.SetUserIdInContext(context.Background(), 1)
	ctx = utils.SetUserRoleInContext(ctx, string(models.UserRoleAdmin))
	return utils.SetIsAdminInContext(ctx, true)
}

func technician(id int, rate string) models.User {
	active := true
	return models.User{
		ID:         id,
		Role:       models.UserRoleTechnician,
		IsActive:   &active,
		HourlyRate: dec(rate),
	}
}

func TestCreatePayrollRun_RequiresAdmin(t *testing.T) {
	store := newFakeStore()
	_, err := CreatePayrollRun(context.Background(), store, config.GetLogger(), at(0, 0), at(23, 59))
	if !errors.Is(err, utils.ErrorUnauthorized) {
		t.Fatalf("expected ErrorUnauthorized, got %v", err)
	}
	if len(store.runs) != 0 {
		t.Fatal("unauthorized call must not write anything")
	}
}

func TestCreatePayrollRun_RejectsInvertedPeriod(t *testing.T) {
	store := newFakeStore()
	_, err := CreatePayrollRun(adminCtx(), store, config.GetLogger(), at(23, 59), at(0, 0))
	if !errors.Is(err, utils.ErrorInvalidInput) {
		t.Fatalf("expected ErrorInvalidInput, got %v", err)
	}
	if len(store.runs) != 0 {
		t.Fatal("invalid period must not write anything")
	}
}

func TestCreatePayrollRun_RunInsertFailureAborts(t *testing.T) {
	store := newFakeStore()
	store.failRunInsert = true
	store.workers = []models.User{technician(1, "25")}

	_, err := CreatePayrollRun(adminCtx(), store, config.GetLogger(), at(0, 0), at(23, 59))
	if !errors.Is(err, utils.ErrorPersistence) {
		t.Fatalf("expected ErrorPersistence, got %v", err)
	}
	if len(store.timesheets) != 0 {
		t.Fatal("nothing downstream may happen when the run insert fails")
	}
}

func TestCreatePayrollRun_EmptyWorkforce(t *testing.T) {
	store := newFakeStore()
	summary, err := CreatePayrollRun(adminCtx(), store, config.GetLogger(), at(0, 0), at(23, 59))
	if err != nil {
		t.Fatalf("CreatePayrollRun error: %v", err)
	}
	if summary.Eligible != 0 || summary.Succeeded != 0 || summary.Failed != 0 {
		t.Fatalf("expected empty summary, got %+v", summary)
	}
	if !store.runTotals[summary.RunId].Equal(decimal.Zero) {
		t.Fatalf("expected run total 0, got %s", store.runTotals[summary.RunId])
	}
}

// One clean worker and one who forgot to clock out: both get timesheets, the
// anomalous one lands as a zero-pay draft, and the run total only carries the
// clean worker's pay.
func TestCreatePayrollRun_CleanAndAnomalousWorkers(t *testing.T) {
	store := newFakeStore()
	store.workers = []models.User{technician(1, "25"), technician(2, "30")}
	store.events[1] = []models.WorkEvent{
		checkIn(at(9, 0)), checkOut(at(13, 0)),
		checkIn(at(13, 30)), checkOut(at(17, 30)),
	}
	store.events[2] = []models.WorkEvent{checkIn(at(9, 0))}

	summary, err := CreatePayrollRun(adminCtx(), store, config.GetLogger(), at(0, 0), at(23, 59))
	if err != nil {
		t.Fatalf("CreatePayrollRun error: %v", err)
	}

	if summary.Eligible != 2 || summary.Succeeded != 2 || summary.Failed != 0 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if !summary.TotalAmount.Equal(dec("200")) {
		t.Fatalf("expected run total 200, got %s", summary.TotalAmount)
	}
	if !store.runTotals[summary.RunId].Equal(dec("200")) {
		t.Fatalf("persisted run total mismatch: %s", store.runTotals[summary.RunId])
	}

	clean, ok := store.timesheetForWorker(1)
	if !ok {
		t.Fatal("missing timesheet for worker 1")
	}
	if clean.Status != models.TimesheetStatusApproved {
		t.Fatalf("clean worker should be approved, got %s", clean.Status)
	}
	if !clean.TotalHours.Equal(dec("8")) || !clean.GrossPay.Equal(dec("200")) {
		t.Fatalf("worker 1: expected 8h / 200, got %s / %s", clean.TotalHours, clean.GrossPay)
	}

	flagged, ok := store.timesheetForWorker(2)
	if !ok {
		t.Fatal("missing timesheet for worker 2")
	}
	if flagged.Status != models.TimesheetStatusDraft {
		t.Fatalf("anomalous worker should be draft, got %s", flagged.Status)
	}
	if !flagged.GrossPay.Equal(decimal.Zero) || flagged.OpenCheckIns != 1 {
		t.Fatalf("worker 2: expected zero pay and one open check-in, got %s / %d", flagged.GrossPay, flagged.OpenCheckIns)
	}
}

func TestCreatePayrollRun_PerWorkerFailureDoesNotAbortBatch(t *testing.T) {
	store := newFakeStore()
	store.workers = []models.User{technician(1, "25"), technician(2, "25"), technician(3, "25")}
	for _, w := range store.workers {
		store.events[w.ID] = []models.WorkEvent{checkIn(at(9, 0)), checkOut(at(17, 0))}
	}
	store.failTimesheetWorker[2] = true

	summary, err := CreatePayrollRun(adminCtx(), store, config.GetLogger(), at(0, 0), at(23, 59))
	if err != nil {
		t.Fatalf("CreatePayrollRun error: %v", err)
	}

	if summary.Succeeded != 2 || summary.Failed != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if len(summary.FailedWorkerIds) != 1 || summary.FailedWorkerIds[0] != 2 {
		t.Fatalf("expected failed worker [2], got %v", summary.FailedWorkerIds)
	}
	// 8h at 25/h each for the two committed workers.
	if !summary.TotalAmount.Equal(dec("400")) {
		t.Fatalf("expected total 400 from committed timesheets, got %s", summary.TotalAmount)
	}
	if len(store.timesheets) != 2 {
		t.Fatalf("prior successful timesheets must remain committed, got %d", len(store.timesheets))
	}

	// The outcome counts survive on the run row, so a later read still sees
	// the shortfall against the eligible workforce.
	counts := store.counts[summary.RunId]
	if counts != (runCounts{eligible: 3, succeeded: 2, failed: 1}) {
		t.Fatalf("persisted counts mismatch: %+v", counts)
	}
	run := models.PayrollRun{
		EligibleWorkers:  counts.eligible,
		SucceededWorkers: counts.succeeded,
		FailedWorkers:    counts.failed,
	}
	if !run.IsPartial() {
		t.Fatal("run short of its eligible count must read as partial")
	}
}

func TestCreatePayrollRun_CancelledContextStopsDispatch(t *testing.T) {
	store := newFakeStore()
	store.workers = []models.User{technician(1, "25"), technician(2, "25")}

	ctx, cancel := context.WithCancel(adminCtx())
	cancel()

	summary, err := CreatePayrollRun(ctx, store, config.GetLogger(), at(0, 0), at(23, 59))
	if err != nil {
		t.Fatalf("CreatePayrollRun error: %v", err)
	}
	if summary.Succeeded != 0 || len(store.timesheets) != 0 {
		t.Fatalf("cancelled run must not dispatch workers, got %+v", summary)
	}
	if len(store.runs) != 1 || store.runs[0].Status != models.PayrollRunStatusPending {
		t.Fatal("run row must stay pending for a safe retry")
	}
	counts := store.counts[summary.RunId]
	if counts.eligible != 2 || counts.succeeded != 0 {
		t.Fatalf("cancelled run must persist its shortfall, got %+v", counts)
	}
}

func TestCreatePayrollRun_FanOutRespectsPoolBound(t *testing.T) {
	t.Setenv("PAYROLL_WORKER_POOL_SIZE", "2")

	store := newFakeStore()
	store.insertDelay = 10 * time.Millisecond
	for id := 1; id <= 12; id++ {
		store.workers = append(store.workers, technician(id, "25"))
		store.events[id] = []models.WorkEvent{checkIn(at(9, 0)), checkOut(at(17, 0))}
	}

	summary, err := CreatePayrollRun(adminCtx(), store, config.GetLogger(), at(0, 0), at(23, 59))
	if err != nil {
		t.Fatalf("CreatePayrollRun error: %v", err)
	}
	if summary.Succeeded != 12 {
		t.Fatalf("expected all 12 workers processed, got %+v", summary)
	}
	if store.maxInFlight > 2 {
		t.Fatalf("pool bound exceeded: %d concurrent inserts with pool size 2", store.maxInFlight)
	}
}

func TestApproveTimesheet(t *testing.T) {
	store := newFakeStore()
	store.timesheets = []models.Timesheet{
		{ID: 1, WorkerId: 1, Status: models.TimesheetStatusDraft},
		{ID: 2, WorkerId: 2, Status: models.TimesheetStatusPaid},
		{ID: 3, WorkerId: 3, Status: models.TimesheetStatusApproved},
	}
	logger := config.GetLogger()

	if err := ApproveTimesheet(context.Background(), store, logger, 1); !errors.Is(err, utils.ErrorUnauthorized) {
		t.Fatalf("expected ErrorUnauthorized for non-admin, got %v", err)
	}

	if err := ApproveTimesheet(adminCtx(), store, logger, 1); err != nil {
		t.Fatalf("approving a draft failed: %v", err)
	}
	if ts, _ := store.GetTimesheet(context.Background(), 1); ts.Status != models.TimesheetStatusApproved {
		t.Fatalf("expected approved, got %s", ts.Status)
	}

	if err := ApproveTimesheet(adminCtx(), store, logger, 2); !errors.Is(err, utils.ErrorInvalidInput) {
		t.Fatalf("paid timesheet must not regress, got %v", err)
	}

	// Already approved: idempotent no-op.
	if err := ApproveTimesheet(adminCtx(), store, logger, 3); err != nil {
		t.Fatalf("re-approving should be a no-op, got %v", err)
	}

	if err := ApproveTimesheet(adminCtx(), store, logger, 99); !errors.Is(err, utils.ErrorRecordNotFound) {
		t.Fatalf("expected ErrorRecordNotFound, got %v", err)
	}
}
