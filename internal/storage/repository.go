package storage

import (
	"context"
	"time"

	"github.com/ujenga-aus/JengaIQ-sub003/pkg/models"
)

// ImportRepository defines the interface for import persistence
type ImportRepository interface {
	Create(ctx context.Context, imp *models.Import, payload []byte) error
	Get(ctx context.Context, id string) (*models.Import, error)
	GetPayload(ctx context.Context, id string) ([]byte, error)
	List(ctx context.Context, filters ImportFilters) ([]*models.Import, int64, error)
	UpdateStatus(ctx context.Context, id string, oldStatus, newStatus models.ImportStatus) error
	SetResult(ctx context.Context, id string, result ImportResult) error
	MarkFailed(ctx context.Context, id string, message string) error
	Cancel(ctx context.Context, id string) error
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// ImportFilters defines filters for listing imports
type ImportFilters struct {
	ProgramID string
	Status    *models.ImportStatus
	Source    string
	After     *time.Time
	Before    *time.Time
	Limit     int
	Offset    int
}

// ImportResult carries the counters recorded when an import finishes
type ImportResult struct {
	TaskCount         int
	RelationshipCount int
	CriticalCount     int
	CycleTaskIDs      []string
}

// ScheduleRepository defines the interface for built-schedule persistence
type ScheduleRepository interface {
	Replace(ctx context.Context, importID string, schedule *models.Schedule) error
	GetByImport(ctx context.Context, importID string) (*models.Schedule, error)
	GetForProgram(ctx context.Context, programID string) (*models.Schedule, string, error)
	ListTasks(ctx context.Context, filters TaskFilters) ([]models.Task, int64, error)
}

// TaskFilters defines filters for listing schedule tasks. ImportID wins
// over ProgramID; a ProgramID resolves to its latest completed import.
type TaskFilters struct {
	ImportID     string
	ProgramID    string
	CriticalOnly bool
	Limit        int
	Offset       int
}
