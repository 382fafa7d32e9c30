package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ujenga-aus/JengaIQ-sub003/internal/state"
	"github.com/ujenga-aus/JengaIQ-sub003/pkg/models"
)

type importRepository struct {
	db           *gorm.DB
	stateManager *state.Manager
}

// NewImportRepository creates a new import repository
func NewImportRepository(db *gorm.DB, stateManager *state.Manager) ImportRepository {
	return &importRepository{
		db:           db,
		stateManager: stateManager,
	}
}

func (r *importRepository) Create(ctx context.Context, imp *models.Import, payload []byte) error {
	model := FromImport(imp)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(model).Error; err != nil {
			return err
		}

		if len(payload) > 0 {
			record := ImportPayloadModel{
				ImportID: model.ID,
				Data:     payload,
			}
			if err := tx.Create(&record).Error; err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to create import: %w", err)
	}

	imp.ID = model.ID.String()
	imp.CreatedAt = model.CreatedAt

	return nil
}

func (r *importRepository) Get(ctx context.Context, id string) (*models.Import, error) {
	importID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("invalid import ID %q: %w", id, ErrInvalidID)
	}

	var model ImportModel
	if err := r.db.WithContext(ctx).Where("id = ?", importID).First(&model).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("import %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get import: %w", err)
	}

	return model.ToImport(), nil
}

func (r *importRepository) GetPayload(ctx context.Context, id string) ([]byte, error) {
	importID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("invalid import ID %q: %w", id, ErrInvalidID)
	}

	var model ImportPayloadModel
	if err := r.db.WithContext(ctx).Where("import_id = ?", importID).First(&model).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("payload for import %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get import payload: %w", err)
	}

	return model.Data, nil
}

func (r *importRepository) List(ctx context.Context, filters ImportFilters) ([]*models.Import, int64, error) {
	query := r.db.WithContext(ctx).Model(&ImportModel{})

	if filters.ProgramID != "" {
		query = query.Where("program_id = ?", filters.ProgramID)
	}

	if filters.Status != nil {
		query = query.Where("status = ?", string(*filters.Status))
	}

	if filters.Source != "" {
		query = query.Where("source = ?", filters.Source)
	}

	if filters.After != nil {
		query = query.Where("created_at > ?", *filters.After)
	}

	if filters.Before != nil {
		query = query.Where("created_at < ?", *filters.Before)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count imports: %w", err)
	}

	query = query.Order("created_at DESC")

	if filters.Limit > 0 {
		query = query.Limit(filters.Limit)
	}

	if filters.Offset > 0 {
		query = query.Offset(filters.Offset)
	}

	var importModels []ImportModel
	if err := query.Find(&importModels).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list imports: %w", err)
	}

	imports := make([]*models.Import, len(importModels))
	for i, model := range importModels {
		imports[i] = model.ToImport()
	}

	return imports, total, nil
}

func (r *importRepository) UpdateStatus(ctx context.Context, id string, oldStatus, newStatus models.ImportStatus) error {
	importID, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("invalid import ID %q: %w", id, ErrInvalidID)
	}

	// Validate status transition
	if err := r.stateManager.Transition(state.EntityImport, id, oldStatus, newStatus, nil); err != nil {
		return fmt.Errorf("invalid status transition: %w", err)
	}

	updates := map[string]interface{}{
		"status":  string(newStatus),
		"version": gorm.Expr("version + 1"),
	}

	// Stamp the processing window as the import moves through the pipeline
	now := time.Now().UTC()
	if newStatus == models.ImportParsing {
		updates["started_at"] = now
	}
	if newStatus.IsTerminal() {
		updates["finished_at"] = now
	}

	// Use optimistic locking to prevent concurrent updates
	result := r.db.WithContext(ctx).
		Model(&ImportModel{}).
		Where("id = ? AND status = ?", importID, string(oldStatus)).
		Updates(updates)

	if result.Error != nil {
		return fmt.Errorf("failed to update import status: %w", result.Error)
	}

	if result.RowsAffected == 0 {
		return state.ErrOptimisticLock
	}

	return nil
}

func (r *importRepository) SetResult(ctx context.Context, id string, res ImportResult) error {
	importID, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("invalid import ID %q: %w", id, ErrInvalidID)
	}

	cycleIDs := res.CycleTaskIDs
	if cycleIDs == nil {
		cycleIDs = []string{}
	}

	result := r.db.WithContext(ctx).
		Model(&ImportModel{}).
		Where("id = ?", importID).
		Updates(map[string]interface{}{
			"task_count":         res.TaskCount,
			"relationship_count": res.RelationshipCount,
			"critical_count":     res.CriticalCount,
			"cycle_task_ids":     StringArray(cycleIDs),
		})

	if result.Error != nil {
		return fmt.Errorf("failed to record import result: %w", result.Error)
	}

	if result.RowsAffected == 0 {
		return fmt.Errorf("import %s: %w", id, ErrNotFound)
	}

	return nil
}

func (r *importRepository) MarkFailed(ctx context.Context, id string, message string) error {
	return r.forceStatus(ctx, id, models.ImportFailed, map[string]interface{}{
		"error": message,
	})
}

func (r *importRepository) Cancel(ctx context.Context, id string) error {
	return r.forceStatus(ctx, id, models.ImportCanceled, nil)
}

// forceStatus moves an import to a terminal status from whatever status
// it currently holds, as long as the state machine allows it.
func (r *importRepository) forceStatus(ctx context.Context, id string, target models.ImportStatus, metadata map[string]interface{}) error {
	importID, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("invalid import ID %q: %w", id, ErrInvalidID)
	}

	var model ImportModel
	if err := r.db.WithContext(ctx).Where("id = ?", importID).First(&model).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return fmt.Errorf("import %s: %w", id, ErrNotFound)
		}
		return fmt.Errorf("failed to get import: %w", err)
	}

	current := models.ImportStatus(model.Status)
	if err := r.stateManager.Transition(state.EntityImport, id, current, target, metadata); err != nil {
		return fmt.Errorf("invalid status transition: %w", err)
	}

	updates := map[string]interface{}{
		"status":      string(target),
		"finished_at": time.Now().UTC(),
		"version":     gorm.Expr("version + 1"),
	}
	if msg, ok := metadata["error"].(string); ok {
		updates["error"] = msg
	}

	result := r.db.WithContext(ctx).
		Model(&ImportModel{}).
		Where("id = ? AND status = ?", importID, model.Status).
		Updates(updates)

	if result.Error != nil {
		return fmt.Errorf("failed to update import status: %w", result.Error)
	}

	if result.RowsAffected == 0 {
		return state.ErrOptimisticLock
	}

	return nil
}

func (r *importRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	// Schedule rows, payloads and history cascade from the imports table
	result := r.db.WithContext(ctx).
		Where("created_at < ?", cutoff).
		Delete(&ImportModel{})

	if result.Error != nil {
		return 0, fmt.Errorf("failed to purge imports: %w", result.Error)
	}

	return result.RowsAffected, nil
}
