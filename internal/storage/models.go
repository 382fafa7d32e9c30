package storage

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/ujenga-aus/JengaIQ-sub003/pkg/models"
)

// JSONB is a custom type for JSONB columns
type JSONB map[string]interface{}

// Value implements the driver.Valuer interface
func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

// Scan implements the sql.Scanner interface
func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}

	return json.Unmarshal(bytes, j)
}

// StringArray is a custom type for string array columns
type StringArray []string

// Value implements the driver.Valuer interface
func (s StringArray) Value() (driver.Value, error) {
	if s == nil {
		return nil, nil
	}
	return json.Marshal(s)
}

// Scan implements the sql.Scanner interface
func (s *StringArray) Scan(value interface{}) error {
	if value == nil {
		*s = nil
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}

	return json.Unmarshal(bytes, s)
}

// ImportModel represents the database model for a schedule import.
// The program id stays an opaque string: callers key their schedules
// however they like.
type ImportModel struct {
	ID                uuid.UUID   `gorm:"type:uuid;primary_key;default:uuid_generate_v4()"`
	ProgramID         string      `gorm:"type:varchar(255);not null;index:idx_imports_program_id"`
	Filename          string      `gorm:"type:varchar(512);not null"`
	SizeBytes         int64       `gorm:"not null;default:0"`
	Source            string      `gorm:"type:varchar(20);not null;default:'api'"`
	Status            string      `gorm:"type:varchar(20);not null;default:'received';index:idx_imports_status"`
	Error             string      `gorm:"type:text"`
	TaskCount         int         `gorm:"not null;default:0"`
	RelationshipCount int         `gorm:"not null;default:0"`
	CriticalCount     int         `gorm:"not null;default:0"`
	CycleTaskIDs      StringArray `gorm:"type:jsonb;default:'[]'"`
	StartedAt         *time.Time
	FinishedAt        *time.Time
	CreatedAt         time.Time `gorm:"not null;default:CURRENT_TIMESTAMP;index:idx_imports_created_at"`
	UpdatedAt         time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	Version           int       `gorm:"not null;default:1"` // For optimistic locking
}

// TableName specifies the table name for ImportModel
func (ImportModel) TableName() string {
	return "imports"
}

// ImportPayloadModel holds the raw uploaded bytes, kept out of the
// imports table so listing stays cheap.
type ImportPayloadModel struct {
	ImportID  uuid.UUID `gorm:"type:uuid;primary_key"`
	Data      []byte    `gorm:"type:bytea;not null"`
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName specifies the table name for ImportPayloadModel
func (ImportPayloadModel) TableName() string {
	return "import_payloads"
}

// ToImport converts an ImportModel to a models.Import
func (m *ImportModel) ToImport() *models.Import {
	return &models.Import{
		ID:                m.ID.String(),
		ProgramID:         m.ProgramID,
		Filename:          m.Filename,
		SizeBytes:         m.SizeBytes,
		Source:            models.ImportSource(m.Source),
		Status:            models.ImportStatus(m.Status),
		Error:             m.Error,
		TaskCount:         m.TaskCount,
		RelationshipCount: m.RelationshipCount,
		CriticalCount:     m.CriticalCount,
		CycleTaskIDs:      []string(m.CycleTaskIDs),
		StartedAt:         m.StartedAt,
		FinishedAt:        m.FinishedAt,
		CreatedAt:         m.CreatedAt,
	}
}

// FromImport converts a models.Import to an ImportModel
func FromImport(imp *models.Import) *ImportModel {
	id, err := uuid.Parse(imp.ID)
	if err != nil {
		id = uuid.New()
	}

	return &ImportModel{
		ID:                id,
		ProgramID:         imp.ProgramID,
		Filename:          imp.Filename,
		SizeBytes:         imp.SizeBytes,
		Source:            string(imp.Source),
		Status:            string(imp.Status),
		Error:             imp.Error,
		TaskCount:         imp.TaskCount,
		RelationshipCount: imp.RelationshipCount,
		CriticalCount:     imp.CriticalCount,
		CycleTaskIDs:      StringArray(imp.CycleTaskIDs),
		StartedAt:         imp.StartedAt,
		FinishedAt:        imp.FinishedAt,
		CreatedAt:         imp.CreatedAt,
		Version:           1,
	}
}

// ScheduleProjectModel represents the database model for the project
// header of one import.
type ScheduleProjectModel struct {
	ID          uuid.UUID `gorm:"type:uuid;primary_key;default:uuid_generate_v4()"`
	ImportID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_schedule_projects_import_id"`
	ProjectID   string    `gorm:"type:varchar(255)"`
	ProjectName string    `gorm:"type:varchar(512)"`
	DataDate    *time.Time
	StartDate   *time.Time
	FinishDate  *time.Time
	CreatedAt   time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName specifies the table name for ScheduleProjectModel
func (ScheduleProjectModel) TableName() string {
	return "schedule_projects"
}

// ToProject converts a ScheduleProjectModel to a models.Project
func (m *ScheduleProjectModel) ToProject() *models.Project {
	return &models.Project{
		ProjectID:   m.ProjectID,
		ProjectName: m.ProjectName,
		DataDate:    m.DataDate,
		StartDate:   m.StartDate,
		FinishDate:  m.FinishDate,
	}
}

// FromProject converts a models.Project to a ScheduleProjectModel
func FromProject(importID uuid.UUID, p *models.Project) *ScheduleProjectModel {
	return &ScheduleProjectModel{
		ImportID:    importID,
		ProjectID:   p.ProjectID,
		ProjectName: p.ProjectName,
		DataDate:    p.DataDate,
		StartDate:   p.StartDate,
		FinishDate:  p.FinishDate,
	}
}

// ScheduleTaskModel represents the database model for one task row of
// an imported schedule. IsCritical is derived from the computed float
// at persist time so the critical-only listing is a plain indexed
// query.
type ScheduleTaskModel struct {
	ID              uuid.UUID `gorm:"type:uuid;primary_key;default:uuid_generate_v4()"`
	ImportID        uuid.UUID `gorm:"type:uuid;not null;index:idx_schedule_tasks_import_id"`
	TaskID          string    `gorm:"type:varchar(255);not null;index:idx_schedule_tasks_task_id"`
	TaskCode        string    `gorm:"type:varchar(255)"`
	TaskName        string    `gorm:"type:varchar(512)"`
	StartDate       *time.Time
	FinishDate      *time.Time
	DurationHrs     *float64
	PercentComplete *float64
	TotalFloatHrs   *float64
	IsCritical      bool      `gorm:"not null;default:false;index:idx_schedule_tasks_is_critical"`
	WBSID           string    `gorm:"type:varchar(255)"`
	CalendarID      string    `gorm:"type:varchar(255)"`
	TaskType        string    `gorm:"type:varchar(50)"`
	Status          string    `gorm:"type:varchar(50)"`
	CstrType        string    `gorm:"type:varchar(50)"`
	CstrDate        string    `gorm:"type:varchar(50)"`
	CreatedAt       time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName specifies the table name for ScheduleTaskModel
func (ScheduleTaskModel) TableName() string {
	return "schedule_tasks"
}

// ToTask converts a ScheduleTaskModel to a models.Task
func (m *ScheduleTaskModel) ToTask() models.Task {
	return models.Task{
		TaskID:          m.TaskID,
		TaskCode:        m.TaskCode,
		TaskName:        m.TaskName,
		StartDate:       m.StartDate,
		FinishDate:      m.FinishDate,
		Duration:        m.DurationHrs,
		PercentComplete: m.PercentComplete,
		TotalFloat:      m.TotalFloatHrs,
		WBSID:           m.WBSID,
		CalendarID:      m.CalendarID,
		TaskType:        m.TaskType,
		Status:          m.Status,
		CstrType:        m.CstrType,
		CstrDate:        m.CstrDate,
	}
}

// FromTask converts a models.Task to a ScheduleTaskModel
func FromTask(importID uuid.UUID, t *models.Task) *ScheduleTaskModel {
	return &ScheduleTaskModel{
		ImportID:        importID,
		TaskID:          t.TaskID,
		TaskCode:        t.TaskCode,
		TaskName:        t.TaskName,
		StartDate:       t.StartDate,
		FinishDate:      t.FinishDate,
		DurationHrs:     t.Duration,
		PercentComplete: t.PercentComplete,
		TotalFloatHrs:   t.TotalFloat,
		IsCritical:      t.IsCritical(),
		WBSID:           t.WBSID,
		CalendarID:      t.CalendarID,
		TaskType:        t.TaskType,
		Status:          t.Status,
		CstrType:        t.CstrType,
		CstrDate:        t.CstrDate,
	}
}

// ScheduleWBSModel represents the database model for one WBS node.
type ScheduleWBSModel struct {
	ID          uuid.UUID `gorm:"type:uuid;primary_key;default:uuid_generate_v4()"`
	ImportID    uuid.UUID `gorm:"type:uuid;not null;index:idx_schedule_wbs_import_id"`
	WBSID       string    `gorm:"type:varchar(255)"`
	WBSName     string    `gorm:"type:varchar(512)"`
	ShortName   string    `gorm:"type:varchar(255)"`
	ParentWBSID string    `gorm:"type:varchar(255)"`
	SeqNum      *int
	CreatedAt   time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName specifies the table name for ScheduleWBSModel
func (ScheduleWBSModel) TableName() string {
	return "schedule_wbs"
}

// ToWBSNode converts a ScheduleWBSModel to a models.WBSNode
func (m *ScheduleWBSModel) ToWBSNode() models.WBSNode {
	return models.WBSNode{
		WBSID:       m.WBSID,
		WBSName:     m.WBSName,
		ShortName:   m.ShortName,
		ParentWBSID: m.ParentWBSID,
		SeqNum:      m.SeqNum,
	}
}

// FromWBSNode converts a models.WBSNode to a ScheduleWBSModel
func FromWBSNode(importID uuid.UUID, n *models.WBSNode) *ScheduleWBSModel {
	return &ScheduleWBSModel{
		ImportID:    importID,
		WBSID:       n.WBSID,
		WBSName:     n.WBSName,
		ShortName:   n.ShortName,
		ParentWBSID: n.ParentWBSID,
		SeqNum:      n.SeqNum,
	}
}

// ScheduleRelationshipModel represents the database model for one
// precedence relationship.
type ScheduleRelationshipModel struct {
	ID         uuid.UUID `gorm:"type:uuid;primary_key;default:uuid_generate_v4()"`
	ImportID   uuid.UUID `gorm:"type:uuid;not null;index:idx_schedule_relationships_import_id"`
	PredTaskID string    `gorm:"type:varchar(255);not null"`
	TaskID     string    `gorm:"type:varchar(255);not null"`
	PredType   string    `gorm:"type:varchar(10);not null;default:'PR_FS'"`
	LagHrs     *float64
	CreatedAt  time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName specifies the table name for ScheduleRelationshipModel
func (ScheduleRelationshipModel) TableName() string {
	return "schedule_relationships"
}

// ToRelationship converts a ScheduleRelationshipModel to a models.Relationship
func (m *ScheduleRelationshipModel) ToRelationship() models.Relationship {
	return models.Relationship{
		PredTaskID: m.PredTaskID,
		TaskID:     m.TaskID,
		PredType:   models.PredType(m.PredType),
		Lag:        m.LagHrs,
	}
}

// FromRelationship converts a models.Relationship to a ScheduleRelationshipModel
func FromRelationship(importID uuid.UUID, r *models.Relationship) *ScheduleRelationshipModel {
	return &ScheduleRelationshipModel{
		ImportID:   importID,
		PredTaskID: r.PredTaskID,
		TaskID:     r.TaskID,
		PredType:   string(r.PredType),
		LagHrs:     r.Lag,
	}
}

// ScheduleCalendarModel represents the database model for one calendar.
type ScheduleCalendarModel struct {
	ID           uuid.UUID `gorm:"type:uuid;primary_key;default:uuid_generate_v4()"`
	ImportID     uuid.UUID `gorm:"type:uuid;not null;index:idx_schedule_calendars_import_id"`
	CalendarID   string    `gorm:"type:varchar(255)"`
	CalendarName string    `gorm:"type:varchar(512)"`
	CreatedAt    time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName specifies the table name for ScheduleCalendarModel
func (ScheduleCalendarModel) TableName() string {
	return "schedule_calendars"
}

// ToCalendar converts a ScheduleCalendarModel to a models.Calendar
func (m *ScheduleCalendarModel) ToCalendar() models.Calendar {
	return models.Calendar{
		CalendarID:   m.CalendarID,
		CalendarName: m.CalendarName,
	}
}

// FromCalendar converts a models.Calendar to a ScheduleCalendarModel
func FromCalendar(importID uuid.UUID, c *models.Calendar) *ScheduleCalendarModel {
	return &ScheduleCalendarModel{
		ImportID:     importID,
		CalendarID:   c.CalendarID,
		CalendarName: c.CalendarName,
	}
}
