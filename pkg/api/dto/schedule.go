package dto

import (
	"time"

	"github.com/ujenga-aus/JengaIQ-sub003/pkg/models"
)

// ProjectDTO represents the project header of a built schedule
type ProjectDTO struct {
	ProjectID   string     `json:"project_id"`
	ProjectName string     `json:"project_name"`
	DataDate    *time.Time `json:"data_date,omitempty"`
	StartDate   *time.Time `json:"start_date,omitempty"`
	FinishDate  *time.Time `json:"finish_date,omitempty"`
}

// ScheduleTaskDTO represents one schedule activity with its computed
// total float
type ScheduleTaskDTO struct {
	TaskID          string     `json:"task_id"`
	TaskCode        string     `json:"task_code,omitempty"`
	TaskName        string     `json:"task_name,omitempty"`
	StartDate       *time.Time `json:"start_date,omitempty"`
	FinishDate      *time.Time `json:"finish_date,omitempty"`
	Duration        *float64   `json:"duration,omitempty"`
	PercentComplete *float64   `json:"percent_complete,omitempty"`
	TotalFloat      *float64   `json:"total_float,omitempty"`
	Critical        bool       `json:"critical"`
	WBSID           string     `json:"wbs_id,omitempty"`
	CalendarID      string     `json:"calendar_id,omitempty"`
	TaskType        string     `json:"task_type,omitempty"`
	Status          string     `json:"status,omitempty"`
	CstrType        string     `json:"cstr_type,omitempty"`
	CstrDate        string     `json:"cstr_date,omitempty"`
}

// WBSNodeDTO represents one work breakdown structure row
type WBSNodeDTO struct {
	WBSID       string `json:"wbs_id"`
	WBSName     string `json:"wbs_name,omitempty"`
	ShortName   string `json:"wbs_short_name,omitempty"`
	ParentWBSID string `json:"parent_wbs_id,omitempty"`
	SeqNum      *int   `json:"seq_num,omitempty"`
}

// RelationshipDTO represents one predecessor link
type RelationshipDTO struct {
	PredTaskID string   `json:"pred_task_id"`
	TaskID     string   `json:"task_id"`
	PredType   string   `json:"pred_type"`
	Lag        *float64 `json:"lag,omitempty"`
}

// CalendarDTO represents one calendar row
type CalendarDTO struct {
	CalendarID   string `json:"calendar_id"`
	CalendarName string `json:"calendar_name,omitempty"`
}

// ScheduleResponse represents a stored schedule with the import that
// produced it
type ScheduleResponse struct {
	ImportID      string            `json:"import_id"`
	Project       *ProjectDTO       `json:"project"`
	Tasks         []ScheduleTaskDTO `json:"tasks"`
	WBS           []WBSNodeDTO      `json:"wbs"`
	Relationships []RelationshipDTO `json:"relationships"`
	Calendars     []CalendarDTO     `json:"calendars"`
}

// TaskListResponse represents a paginated list of schedule tasks
type TaskListResponse struct {
	Tasks      []ScheduleTaskDTO `json:"tasks"`
	Pagination PaginationMeta    `json:"pagination"`
}

// TaskQueryParams represents the query parameters of the schedule task
// list endpoint
type TaskQueryParams struct {
	Page     int  `form:"page,default=1" validate:"min=1"`
	PageSize int  `form:"page_size,default=50" validate:"min=1,max=500"`
	Critical bool `form:"critical"`
}

// PreviewResponse represents the result of a synchronous schedule
// preview: the annotated structure plus cycle diagnostics, nothing
// persisted
type PreviewResponse struct {
	Project           *ProjectDTO       `json:"project"`
	TaskCount         int               `json:"task_count"`
	RelationshipCount int               `json:"relationship_count"`
	CriticalCount     int               `json:"critical_count"`
	CycleTaskIDs      []string          `json:"cycle_task_ids,omitempty"`
	Tasks             []ScheduleTaskDTO `json:"tasks"`
}

// ToProjectDTO converts a models.Project to a ProjectDTO
func ToProjectDTO(p *models.Project) *ProjectDTO {
	if p == nil {
		return nil
	}
	return &ProjectDTO{
		ProjectID:   p.ProjectID,
		ProjectName: p.ProjectName,
		DataDate:    p.DataDate,
		StartDate:   p.StartDate,
		FinishDate:  p.FinishDate,
	}
}

// ToScheduleTaskDTO converts a models.Task to a ScheduleTaskDTO
func ToScheduleTaskDTO(t *models.Task) ScheduleTaskDTO {
	return ScheduleTaskDTO{
		TaskID:          t.TaskID,
		TaskCode:        t.TaskCode,
		TaskName:        t.TaskName,
		StartDate:       t.StartDate,
		FinishDate:      t.FinishDate,
		Duration:        t.Duration,
		PercentComplete: t.PercentComplete,
		TotalFloat:      t.TotalFloat,
		Critical:        t.IsCritical(),
		WBSID:           t.WBSID,
		CalendarID:      t.CalendarID,
		TaskType:        t.TaskType,
		Status:          t.Status,
		CstrType:        t.CstrType,
		CstrDate:        t.CstrDate,
	}
}

// ToScheduleResponse converts a stored models.Schedule to a
// ScheduleResponse
func ToScheduleResponse(importID string, s *models.Schedule) ScheduleResponse {
	tasks := make([]ScheduleTaskDTO, len(s.Tasks))
	for i := range s.Tasks {
		tasks[i] = ToScheduleTaskDTO(&s.Tasks[i])
	}

	wbs := make([]WBSNodeDTO, len(s.WBS))
	for i, n := range s.WBS {
		wbs[i] = WBSNodeDTO{
			WBSID:       n.WBSID,
			WBSName:     n.WBSName,
			ShortName:   n.ShortName,
			ParentWBSID: n.ParentWBSID,
			SeqNum:      n.SeqNum,
		}
	}

	rels := make([]RelationshipDTO, len(s.Relationships))
	for i, r := range s.Relationships {
		rels[i] = RelationshipDTO{
			PredTaskID: r.PredTaskID,
			TaskID:     r.TaskID,
			PredType:   string(r.PredType),
			Lag:        r.Lag,
		}
	}

	cals := make([]CalendarDTO, len(s.Calendars))
	for i, cal := range s.Calendars {
		cals[i] = CalendarDTO{
			CalendarID:   cal.CalendarID,
			CalendarName: cal.CalendarName,
		}
	}

	return ScheduleResponse{
		ImportID:      importID,
		Project:       ToProjectDTO(s.Project),
		Tasks:         tasks,
		WBS:           wbs,
		Relationships: rels,
		Calendars:     cals,
	}
}

// ToPreviewResponse converts an analyzed models.Schedule and its cycle
// diagnostics to a PreviewResponse
func ToPreviewResponse(s *models.Schedule, cycleTaskIDs []string) PreviewResponse {
	tasks := make([]ScheduleTaskDTO, len(s.Tasks))
	critical := 0
	for i := range s.Tasks {
		tasks[i] = ToScheduleTaskDTO(&s.Tasks[i])
		if tasks[i].Critical {
			critical++
		}
	}

	return PreviewResponse{
		Project:           ToProjectDTO(s.Project),
		TaskCount:         len(s.Tasks),
		RelationshipCount: len(s.Relationships),
		CriticalCount:     critical,
		CycleTaskIDs:      cycleTaskIDs,
		Tasks:             tasks,
	}
}
