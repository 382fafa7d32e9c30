package importer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ujenga-aus/JengaIQ-sub003/internal/cpm"
	"github.com/ujenga-aus/JengaIQ-sub003/internal/dlq"
	"github.com/ujenga-aus/JengaIQ-sub003/internal/retry"
	"github.com/ujenga-aus/JengaIQ-sub003/internal/state"
	"github.com/ujenga-aus/JengaIQ-sub003/internal/storage"
	"github.com/ujenga-aus/JengaIQ-sub003/internal/xer"
	"github.com/ujenga-aus/JengaIQ-sub003/pkg/models"
)

// Service orchestrates the import lifecycle: it creates import records
// with their stored payloads and drives queued imports through the
// parsing, computing and persisting stages.
type Service struct {
	imports   storage.ImportRepository
	schedules storage.ScheduleRepository
	dlq       *dlq.Manager
	logger    *logrus.Logger
	policy    *retry.Policy
}

// NewService wires the import pipeline. A nil retry policy uses
// DefaultRetryPolicy; a nil logger uses the logrus standard logger.
// The dead letter manager may be nil.
func NewService(
	imports storage.ImportRepository,
	schedules storage.ScheduleRepository,
	dlqManager *dlq.Manager,
	logger *logrus.Logger,
	policy *retry.Policy,
) *Service {
	if policy == nil {
		policy = DefaultRetryPolicy()
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	return &Service{
		imports:   imports,
		schedules: schedules,
		dlq:       dlqManager,
		logger:    logger,
		policy:    policy,
	}
}

// DefaultRetryPolicy retries transient persistence failures with
// exponential backoff before the import is declared failed.
func DefaultRetryPolicy() *retry.Policy {
	return retry.NewPolicy(3, retry.NewExponential(500*time.Millisecond, 10*time.Second, true)).
		WithRetryIf(IsTransient)
}

// IsTransient reports whether a pipeline error is worth another try.
// The sentinel errors describe states that do not heal on their own;
// everything else is assumed to be infrastructure trouble.
func IsTransient(err error) bool {
	return !errors.Is(err, storage.ErrNotFound) &&
		!errors.Is(err, storage.ErrInvalidID) &&
		!errors.Is(err, state.ErrOptimisticLock) &&
		!errors.Is(err, state.ErrInvalidTransition)
}

// CreateImport records a new import in received status with its raw
// payload stored alongside, ready to be queued or processed inline.
func (s *Service) CreateImport(ctx context.Context, programID, filename string, source models.ImportSource, payload []byte) (*models.Import, error) {
	imp := &models.Import{
		ProgramID: programID,
		Filename:  filename,
		SizeBytes: int64(len(payload)),
		Source:    source,
		Status:    models.ImportReceived,
	}

	if err := s.imports.Create(ctx, imp, payload); err != nil {
		return nil, fmt.Errorf("failed to create import: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"import_id":  imp.ID,
		"program_id": programID,
		"filename":   filename,
		"size_bytes": imp.SizeBytes,
	}).Info("Import received")

	return imp, nil
}

// MarkQueued moves a freshly received import into queued status once
// its job is on the queue.
func (s *Service) MarkQueued(ctx context.Context, importID string) error {
	return s.imports.UpdateStatus(ctx, importID, models.ImportReceived, models.ImportQueued)
}

// ProcessImport runs a stored import through the pipeline. A nil error
// means the outcome is durably recorded, whether the import completed
// or failed; a non-nil error means nothing was recorded and the work
// can be retried by the caller.
func (s *Service) ProcessImport(ctx context.Context, importID string) (*models.Import, error) {
	imp, err := s.imports.Get(ctx, importID)
	if err != nil {
		return nil, fmt.Errorf("failed to load import: %w", err)
	}

	// A redelivered job whose import already finished is a no-op.
	if imp.Status.IsTerminal() {
		return imp, nil
	}

	// Parsing: pull the stored payload apart into tables and a model.
	if err := s.setStatus(ctx, imp, models.ImportParsing); err != nil {
		return nil, err
	}

	payload, err := s.imports.GetPayload(ctx, importID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return s.fail(ctx, imp, StageParsing, 1, fmt.Errorf("import payload missing: %w", err))
		}
		return nil, fmt.Errorf("failed to load payload: %w", err)
	}

	tables, err := xer.Extract(bytes.NewReader(payload))
	if err != nil {
		// Stored bytes never change, so a read failure cannot heal.
		return s.fail(ctx, imp, StageParsing, 1, fmt.Errorf("failed to read schedule export: %w", err))
	}
	schedule := xer.BuildSchedule(tables)

	// Computing: recompute total float over the relationship graph.
	if err := s.setStatus(ctx, imp, models.ImportComputing); err != nil {
		return nil, err
	}

	result := cpm.Analyze(schedule.Tasks, schedule.Relationships)
	schedule.Tasks = result.Tasks

	if result.HasCycles() {
		s.logger.WithFields(logrus.Fields{
			"import_id":   imp.ID,
			"cycle_tasks": result.CycleTaskIDs,
		}).Warn("Relationship graph contains cycles")
	}

	// Persisting: replace the stored schedule and record the summary.
	if err := s.setStatus(ctx, imp, models.ImportPersisting); err != nil {
		return nil, err
	}

	res := storage.ImportResult{
		TaskCount:         len(schedule.Tasks),
		RelationshipCount: len(schedule.Relationships),
		CriticalCount:     criticalCount(schedule.Tasks),
		CycleTaskIDs:      result.CycleTaskIDs,
	}

	persist := func() error {
		if err := s.schedules.Replace(ctx, imp.ID, schedule); err != nil {
			return err
		}
		return s.imports.SetResult(ctx, imp.ID, res)
	}
	if err := s.policy.Do(ctx, persist); err != nil {
		return s.fail(ctx, imp, StagePersisting, s.policy.MaxAttempts, err)
	}

	if err := s.setStatus(ctx, imp, models.ImportCompleted); err != nil {
		return nil, err
	}

	imp.TaskCount = res.TaskCount
	imp.RelationshipCount = res.RelationshipCount
	imp.CriticalCount = res.CriticalCount
	imp.CycleTaskIDs = res.CycleTaskIDs

	s.logger.WithFields(logrus.Fields{
		"import_id":     imp.ID,
		"program_id":    imp.ProgramID,
		"tasks":         res.TaskCount,
		"relationships": res.RelationshipCount,
		"critical":      res.CriticalCount,
	}).Info("Import completed")

	return imp, nil
}

// setStatus advances the import through the pipeline and keeps the
// in-memory copy in step with the row.
func (s *Service) setStatus(ctx context.Context, imp *models.Import, to models.ImportStatus) error {
	if err := s.imports.UpdateStatus(ctx, imp.ID, imp.Status, to); err != nil {
		return fmt.Errorf("failed to move import %s to %s: %w", imp.ID, to, err)
	}
	imp.Status = to
	return nil
}

// fail records a permanent failure on the import row and in the dead
// letter queue. If even the record cannot be written the error is
// returned so the caller can retry the whole job.
func (s *Service) fail(ctx context.Context, imp *models.Import, stage string, attempts int, cause error) (*models.Import, error) {
	if err := s.imports.MarkFailed(ctx, imp.ID, cause.Error()); err != nil {
		return nil, fmt.Errorf("failed to record import failure: %w (original: %v)", err, cause)
	}
	imp.Status = models.ImportFailed
	imp.Error = cause.Error()

	if s.dlq != nil {
		if err := s.dlq.AddFailedImport(ctx, imp, stage, attempts, cause); err != nil {
			s.logger.WithError(err).WithField("import_id", imp.ID).Warn("Failed to record import in dead letter queue")
		}
	}

	s.logger.WithError(cause).WithFields(logrus.Fields{
		"import_id": imp.ID,
		"stage":     stage,
	}).Error("Import failed")

	return imp, nil
}
