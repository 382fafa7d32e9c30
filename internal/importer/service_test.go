package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ujenga-aus/JengaIQ-sub003/internal/dlq"
	"github.com/ujenga-aus/JengaIQ-sub003/internal/retry"
	"github.com/ujenga-aus/JengaIQ-sub003/internal/state"
	"github.com/ujenga-aus/JengaIQ-sub003/internal/storage"
	"github.com/ujenga-aus/JengaIQ-sub003/internal/testutil"
	"github.com/ujenga-aus/JengaIQ-sub003/pkg/models"
)

type fakeImportRepo struct {
	imports     map[string]*models.Import
	payloads    map[string][]byte
	results     map[string]storage.ImportResult
	failures    map[string]string
	transitions []string

	getErr    error
	updateErr error
}

func newFakeImportRepo() *fakeImportRepo {
	return &fakeImportRepo{
		imports:  make(map[string]*models.Import),
		payloads: make(map[string][]byte),
		results:  make(map[string]storage.ImportResult),
		failures: make(map[string]string),
	}
}

func (f *fakeImportRepo) Create(ctx context.Context, imp *models.Import, payload []byte) error {
	if imp.ID == "" {
		imp.ID = fmt.Sprintf("imp%d", len(f.imports)+1)
	}
	imp.CreatedAt = time.Now()
	stored := *imp
	f.imports[imp.ID] = &stored
	if payload != nil {
		f.payloads[imp.ID] = payload
	}
	return nil
}

func (f *fakeImportRepo) Get(ctx context.Context, id string) (*models.Import, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	imp, ok := f.imports[id]
	if !ok {
		return nil, fmt.Errorf("import %s: %w", id, storage.ErrNotFound)
	}
	copied := *imp
	return &copied, nil
}

func (f *fakeImportRepo) GetPayload(ctx context.Context, id string) ([]byte, error) {
	payload, ok := f.payloads[id]
	if !ok {
		return nil, fmt.Errorf("payload for import %s: %w", id, storage.ErrNotFound)
	}
	return payload, nil
}

func (f *fakeImportRepo) List(ctx context.Context, filters storage.ImportFilters) ([]*models.Import, int64, error) {
	return nil, 0, nil
}

func (f *fakeImportRepo) UpdateStatus(ctx context.Context, id string, oldStatus, newStatus models.ImportStatus) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	imp, ok := f.imports[id]
	if !ok {
		return fmt.Errorf("import %s: %w", id, storage.ErrNotFound)
	}
	if imp.Status != oldStatus {
		return state.ErrOptimisticLock
	}
	imp.Status = newStatus
	f.transitions = append(f.transitions, string(oldStatus)+"->"+string(newStatus))
	return nil
}

func (f *fakeImportRepo) SetResult(ctx context.Context, id string, result storage.ImportResult) error {
	if _, ok := f.imports[id]; !ok {
		return fmt.Errorf("import %s: %w", id, storage.ErrNotFound)
	}
	f.results[id] = result
	return nil
}

func (f *fakeImportRepo) MarkFailed(ctx context.Context, id string, message string) error {
	imp, ok := f.imports[id]
	if !ok {
		return fmt.Errorf("import %s: %w", id, storage.ErrNotFound)
	}
	imp.Status = models.ImportFailed
	imp.Error = message
	f.failures[id] = message
	return nil
}

func (f *fakeImportRepo) Cancel(ctx context.Context, id string) error { return nil }

func (f *fakeImportRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

func (f *fakeImportRepo) seed(imp *models.Import, payload []byte) {
	stored := *imp
	f.imports[imp.ID] = &stored
	if payload != nil {
		f.payloads[imp.ID] = payload
	}
}

type fakeScheduleRepo struct {
	replaced  map[string]*models.Schedule
	calls     int
	failTimes int
}

func newFakeScheduleRepo() *fakeScheduleRepo {
	return &fakeScheduleRepo{replaced: make(map[string]*models.Schedule)}
}

func (f *fakeScheduleRepo) Replace(ctx context.Context, importID string, schedule *models.Schedule) error {
	f.calls++
	if f.calls <= f.failTimes {
		return errors.New("connection refused")
	}
	f.replaced[importID] = schedule
	return nil
}

func (f *fakeScheduleRepo) GetByImport(ctx context.Context, importID string) (*models.Schedule, error) {
	return nil, storage.ErrNotFound
}

func (f *fakeScheduleRepo) GetForProgram(ctx context.Context, programID string) (*models.Schedule, string, error) {
	return nil, "", storage.ErrNotFound
}

func (f *fakeScheduleRepo) ListTasks(ctx context.Context, filters storage.TaskFilters) ([]models.Task, int64, error) {
	return nil, 0, nil
}

func newTestService(imports storage.ImportRepository, schedules storage.ScheduleRepository, dlqManager *dlq.Manager) *Service {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	policy := retry.NewPolicy(3, retry.NewFixed(0, false)).WithRetryIf(IsTransient)
	return NewService(imports, schedules, dlqManager, logger, policy)
}

func TestService_CreateImport(t *testing.T) {
	repo := newFakeImportRepo()
	svc := newTestService(repo, newFakeScheduleRepo(), nil)

	payload := []byte(testutil.SampleExport())
	imp, err := svc.CreateImport(context.Background(), "prog1", "baseline.xer", models.SourceAPI, payload)
	if err != nil {
		t.Fatalf("CreateImport() error = %v", err)
	}

	if imp.ID == "" {
		t.Error("CreateImport() should assign an id")
	}
	if imp.Status != models.ImportReceived {
		t.Errorf("Status = %s, want received", imp.Status)
	}
	if imp.SizeBytes != int64(len(payload)) {
		t.Errorf("SizeBytes = %d, want %d", imp.SizeBytes, len(payload))
	}
	if _, ok := repo.payloads[imp.ID]; !ok {
		t.Error("payload was not stored")
	}
}

func TestService_ProcessImport_Completes(t *testing.T) {
	repo := newFakeImportRepo()
	schedules := newFakeScheduleRepo()
	svc := newTestService(repo, schedules, nil)

	repo.seed(testutil.CreateTestImport("imp1", "prog1", models.ImportQueued), []byte(testutil.SampleExport()))

	imp, err := svc.ProcessImport(context.Background(), "imp1")
	if err != nil {
		t.Fatalf("ProcessImport() error = %v", err)
	}

	if imp.Status != models.ImportCompleted {
		t.Errorf("Status = %s, want completed", imp.Status)
	}

	wantTransitions := []string{
		"queued->parsing",
		"parsing->computing",
		"computing->persisting",
		"persisting->completed",
	}
	if len(repo.transitions) != len(wantTransitions) {
		t.Fatalf("transitions = %v, want %v", repo.transitions, wantTransitions)
	}
	for i, want := range wantTransitions {
		if repo.transitions[i] != want {
			t.Errorf("transitions[%d] = %s, want %s", i, repo.transitions[i], want)
		}
	}

	res := repo.results["imp1"]
	if res.TaskCount != 3 || res.RelationshipCount != 1 || res.CriticalCount != 2 {
		t.Errorf("result = %d/%d/%d, want 3/1/2", res.TaskCount, res.RelationshipCount, res.CriticalCount)
	}
	if len(res.CycleTaskIDs) != 0 {
		t.Errorf("CycleTaskIDs = %v, want none", res.CycleTaskIDs)
	}

	if imp.TaskCount != 3 || imp.CriticalCount != 2 {
		t.Errorf("returned import counts = %d/%d, want 3/2", imp.TaskCount, imp.CriticalCount)
	}

	if _, ok := schedules.replaced["imp1"]; !ok {
		t.Error("schedule was not persisted")
	}
}

func TestService_ProcessImport_AlreadyTerminal(t *testing.T) {
	repo := newFakeImportRepo()
	svc := newTestService(repo, newFakeScheduleRepo(), nil)

	repo.seed(testutil.CreateTestImport("imp1", "prog1", models.ImportCompleted), nil)

	imp, err := svc.ProcessImport(context.Background(), "imp1")
	if err != nil {
		t.Fatalf("ProcessImport() error = %v", err)
	}

	if imp.Status != models.ImportCompleted {
		t.Errorf("Status = %s, want completed", imp.Status)
	}
	if len(repo.transitions) != 0 {
		t.Errorf("transitions = %v, want none for a finished import", repo.transitions)
	}
}

func TestService_ProcessImport_MissingPayload(t *testing.T) {
	repo := newFakeImportRepo()
	queue := dlq.NewManager(dlq.NewMemoryQueue(), 10)
	svc := newTestService(repo, newFakeScheduleRepo(), queue)

	imp := testutil.CreateTestImport("imp1", "prog1", models.ImportQueued)
	imp.Filename = "gone.xer"
	repo.seed(imp, nil)

	imp, err := svc.ProcessImport(context.Background(), "imp1")
	if err != nil {
		t.Fatalf("ProcessImport() error = %v, want recorded failure", err)
	}

	if imp.Status != models.ImportFailed {
		t.Errorf("Status = %s, want failed", imp.Status)
	}
	if repo.failures["imp1"] == "" {
		t.Error("failure message was not recorded")
	}

	entry, err := queue.GetQueue().Get(context.Background(), "imp1")
	if err != nil {
		t.Fatalf("dead letter entry missing: %v", err)
	}
	if entry.FailureStage != StageParsing {
		t.Errorf("FailureStage = %s, want %s", entry.FailureStage, StageParsing)
	}
}

func TestService_ProcessImport_RetriesTransientPersist(t *testing.T) {
	repo := newFakeImportRepo()
	schedules := newFakeScheduleRepo()
	schedules.failTimes = 1
	svc := newTestService(repo, schedules, nil)

	repo.seed(testutil.CreateTestImport("imp1", "prog1", models.ImportQueued), []byte(testutil.SampleExport()))

	imp, err := svc.ProcessImport(context.Background(), "imp1")
	if err != nil {
		t.Fatalf("ProcessImport() error = %v", err)
	}

	if imp.Status != models.ImportCompleted {
		t.Errorf("Status = %s, want completed after retry", imp.Status)
	}
	if schedules.calls != 2 {
		t.Errorf("Replace calls = %d, want 2", schedules.calls)
	}
}

func TestService_ProcessImport_PersistGiveUp(t *testing.T) {
	repo := newFakeImportRepo()
	schedules := newFakeScheduleRepo()
	schedules.failTimes = 100
	queue := dlq.NewManager(dlq.NewMemoryQueue(), 10)
	svc := newTestService(repo, schedules, queue)

	repo.seed(testutil.CreateTestImport("imp1", "prog1", models.ImportQueued), []byte(testutil.SampleExport()))

	imp, err := svc.ProcessImport(context.Background(), "imp1")
	if err != nil {
		t.Fatalf("ProcessImport() error = %v, want recorded failure", err)
	}

	if imp.Status != models.ImportFailed {
		t.Errorf("Status = %s, want failed", imp.Status)
	}
	if schedules.calls != 3 {
		t.Errorf("Replace calls = %d, want 3", schedules.calls)
	}

	entry, err := queue.GetQueue().Get(context.Background(), "imp1")
	if err != nil {
		t.Fatalf("dead letter entry missing: %v", err)
	}
	if entry.FailureStage != StagePersisting {
		t.Errorf("FailureStage = %s, want %s", entry.FailureStage, StagePersisting)
	}
	if entry.Attempts != 3 {
		t.Errorf("Attempts = %d, want 3", entry.Attempts)
	}
}

func TestService_ProcessImport_LoadFailureIsRetryable(t *testing.T) {
	repo := newFakeImportRepo()
	repo.getErr = errors.New("connection refused")
	svc := newTestService(repo, newFakeScheduleRepo(), nil)

	_, err := svc.ProcessImport(context.Background(), "imp1")
	if err == nil {
		t.Fatal("ProcessImport() should surface load failures for redelivery")
	}
}

func TestService_MarkQueued(t *testing.T) {
	repo := newFakeImportRepo()
	svc := newTestService(repo, newFakeScheduleRepo(), nil)

	repo.seed(testutil.CreateTestImport("imp1", "prog1", models.ImportReceived), nil)

	if err := svc.MarkQueued(context.Background(), "imp1"); err != nil {
		t.Fatalf("MarkQueued() error = %v", err)
	}
	if repo.imports["imp1"].Status != models.ImportQueued {
		t.Errorf("Status = %s, want queued", repo.imports["imp1"].Status)
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"network error", errors.New("connection refused"), true},
		{"not found", storage.ErrNotFound, false},
		{"wrapped not found", fmt.Errorf("import x: %w", storage.ErrNotFound), false},
		{"invalid id", storage.ErrInvalidID, false},
		{"optimistic lock", state.ErrOptimisticLock, false},
		{"invalid transition", state.ErrInvalidTransition, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransient(tt.err); got != tt.want {
				t.Errorf("IsTransient(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
