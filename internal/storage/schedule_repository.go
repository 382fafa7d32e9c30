package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ujenga-aus/JengaIQ-sub003/pkg/models"
)

// persistBatchSize bounds the row count per INSERT when persisting
// large schedules.
const persistBatchSize = 500

type scheduleRepository struct {
	db *gorm.DB
}

// NewScheduleRepository creates a new schedule repository
func NewScheduleRepository(db *gorm.DB) ScheduleRepository {
	return &scheduleRepository{db: db}
}

func (r *scheduleRepository) Replace(ctx context.Context, importID string, schedule *models.Schedule) error {
	id, err := uuid.Parse(importID)
	if err != nil {
		return fmt.Errorf("invalid import ID %q: %w", importID, ErrInvalidID)
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Re-persisting the same import must not duplicate rows
		for _, model := range []interface{}{
			&ScheduleProjectModel{},
			&ScheduleTaskModel{},
			&ScheduleWBSModel{},
			&ScheduleRelationshipModel{},
			&ScheduleCalendarModel{},
		} {
			if err := tx.Where("import_id = ?", id).Delete(model).Error; err != nil {
				return fmt.Errorf("failed to clear previous schedule rows: %w", err)
			}
		}

		if schedule.Project != nil {
			if err := tx.Create(FromProject(id, schedule.Project)).Error; err != nil {
				return fmt.Errorf("failed to persist project: %w", err)
			}
		}

		if len(schedule.Tasks) > 0 {
			taskModels := make([]*ScheduleTaskModel, len(schedule.Tasks))
			for i := range schedule.Tasks {
				taskModels[i] = FromTask(id, &schedule.Tasks[i])
			}
			if err := tx.CreateInBatches(taskModels, persistBatchSize).Error; err != nil {
				return fmt.Errorf("failed to persist tasks: %w", err)
			}
		}

		if len(schedule.WBS) > 0 {
			wbsModels := make([]*ScheduleWBSModel, len(schedule.WBS))
			for i := range schedule.WBS {
				wbsModels[i] = FromWBSNode(id, &schedule.WBS[i])
			}
			if err := tx.CreateInBatches(wbsModels, persistBatchSize).Error; err != nil {
				return fmt.Errorf("failed to persist WBS nodes: %w", err)
			}
		}

		if len(schedule.Relationships) > 0 {
			relModels := make([]*ScheduleRelationshipModel, len(schedule.Relationships))
			for i := range schedule.Relationships {
				relModels[i] = FromRelationship(id, &schedule.Relationships[i])
			}
			if err := tx.CreateInBatches(relModels, persistBatchSize).Error; err != nil {
				return fmt.Errorf("failed to persist relationships: %w", err)
			}
		}

		if len(schedule.Calendars) > 0 {
			calModels := make([]*ScheduleCalendarModel, len(schedule.Calendars))
			for i := range schedule.Calendars {
				calModels[i] = FromCalendar(id, &schedule.Calendars[i])
			}
			if err := tx.CreateInBatches(calModels, persistBatchSize).Error; err != nil {
				return fmt.Errorf("failed to persist calendars: %w", err)
			}
		}

		return nil
	})
}

func (r *scheduleRepository) GetByImport(ctx context.Context, importID string) (*models.Schedule, error) {
	id, err := uuid.Parse(importID)
	if err != nil {
		return nil, fmt.Errorf("invalid import ID %q: %w", importID, ErrInvalidID)
	}

	var count int64
	if err := r.db.WithContext(ctx).Model(&ImportModel{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("failed to check import: %w", err)
	}
	if count == 0 {
		return nil, fmt.Errorf("import %s: %w", importID, ErrNotFound)
	}

	return r.loadSchedule(ctx, id)
}

func (r *scheduleRepository) GetForProgram(ctx context.Context, programID string) (*models.Schedule, string, error) {
	var model ImportModel
	err := r.db.WithContext(ctx).
		Where("program_id = ? AND status = ?", programID, string(models.ImportCompleted)).
		Order("created_at DESC").
		First(&model).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, "", fmt.Errorf("no completed import for program %s: %w", programID, ErrNotFound)
		}
		return nil, "", fmt.Errorf("failed to resolve latest import: %w", err)
	}

	schedule, err := r.loadSchedule(ctx, model.ID)
	if err != nil {
		return nil, "", err
	}

	return schedule, model.ID.String(), nil
}

func (r *scheduleRepository) ListTasks(ctx context.Context, filters TaskFilters) ([]models.Task, int64, error) {
	query := r.db.WithContext(ctx).Model(&ScheduleTaskModel{})

	if filters.ImportID != "" {
		id, err := uuid.Parse(filters.ImportID)
		if err != nil {
			return nil, 0, fmt.Errorf("invalid import ID %q: %w", filters.ImportID, ErrInvalidID)
		}
		query = query.Where("import_id = ?", id)
	} else if filters.ProgramID != "" {
		var model ImportModel
		err := r.db.WithContext(ctx).
			Where("program_id = ? AND status = ?", filters.ProgramID, string(models.ImportCompleted)).
			Order("created_at DESC").
			First(&model).Error
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return nil, 0, fmt.Errorf("no completed import for program %s: %w", filters.ProgramID, ErrNotFound)
			}
			return nil, 0, fmt.Errorf("failed to resolve latest import: %w", err)
		}
		query = query.Where("import_id = ?", model.ID)
	}

	if filters.CriticalOnly {
		query = query.Where("is_critical = ?", true)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count tasks: %w", err)
	}

	query = query.Order("task_id ASC")

	if filters.Limit > 0 {
		query = query.Limit(filters.Limit)
	}

	if filters.Offset > 0 {
		query = query.Offset(filters.Offset)
	}

	var taskModels []ScheduleTaskModel
	if err := query.Find(&taskModels).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list tasks: %w", err)
	}

	tasks := make([]models.Task, len(taskModels))
	for i := range taskModels {
		tasks[i] = taskModels[i].ToTask()
	}

	return tasks, total, nil
}

// loadSchedule assembles a full schedule from its per-table rows.
func (r *scheduleRepository) loadSchedule(ctx context.Context, importID uuid.UUID) (*models.Schedule, error) {
	schedule := &models.Schedule{
		Tasks:         []models.Task{},
		WBS:           []models.WBSNode{},
		Relationships: []models.Relationship{},
		Calendars:     []models.Calendar{},
	}

	var project ScheduleProjectModel
	err := r.db.WithContext(ctx).Where("import_id = ?", importID).First(&project).Error
	switch {
	case err == nil:
		schedule.Project = project.ToProject()
	case err == gorm.ErrRecordNotFound:
		// A file without a PROJECT table still builds a schedule
	default:
		return nil, fmt.Errorf("failed to load project: %w", err)
	}

	var taskModels []ScheduleTaskModel
	if err := r.db.WithContext(ctx).Where("import_id = ?", importID).Order("task_id ASC").Find(&taskModels).Error; err != nil {
		return nil, fmt.Errorf("failed to load tasks: %w", err)
	}
	for i := range taskModels {
		schedule.Tasks = append(schedule.Tasks, taskModels[i].ToTask())
	}

	var wbsModels []ScheduleWBSModel
	if err := r.db.WithContext(ctx).Where("import_id = ?", importID).Order("wbs_id ASC").Find(&wbsModels).Error; err != nil {
		return nil, fmt.Errorf("failed to load WBS nodes: %w", err)
	}
	for i := range wbsModels {
		schedule.WBS = append(schedule.WBS, wbsModels[i].ToWBSNode())
	}

	var relModels []ScheduleRelationshipModel
	if err := r.db.WithContext(ctx).Where("import_id = ?", importID).Order("pred_task_id ASC, task_id ASC").Find(&relModels).Error; err != nil {
		return nil, fmt.Errorf("failed to load relationships: %w", err)
	}
	for i := range relModels {
		schedule.Relationships = append(schedule.Relationships, relModels[i].ToRelationship())
	}

	var calModels []ScheduleCalendarModel
	if err := r.db.WithContext(ctx).Where("import_id = ?", importID).Order("calendar_id ASC").Find(&calModels).Error; err != nil {
		return nil, fmt.Errorf("failed to load calendars: %w", err)
	}
	for i := range calModels {
		schedule.Calendars = append(schedule.Calendars, calModels[i].ToCalendar())
	}

	return schedule, nil
}
