package models

import "time"

// Schedule is the fully built result of one XER import: the project
// header plus every task, WBS node, relationship and calendar found in
// the file, with task floats populated by the critical path engine.
type Schedule struct {
	Project       *Project       `json:"project"`
	Tasks         []Task         `json:"tasks"`
	WBS           []WBSNode      `json:"wbs"`
	Relationships []Relationship `json:"relationships"`
	Calendars     []Calendar     `json:"calendars"`
}

// Project is the PROJECT header row of an export (first row wins)
type Project struct {
	ProjectID   string     `json:"project_id"`
	ProjectName string     `json:"project_name"`
	DataDate    *time.Time `json:"data_date,omitempty"`
	StartDate   *time.Time `json:"start_date,omitempty"`
	FinishDate  *time.Time `json:"finish_date,omitempty"`
}

// Task represents a single schedule activity
type Task struct {
	TaskID          string     `json:"task_id"`
	TaskCode        string     `json:"task_code,omitempty"`
	TaskName        string     `json:"task_name,omitempty"`
	StartDate       *time.Time `json:"start_date,omitempty"`
	FinishDate      *time.Time `json:"finish_date,omitempty"`
	Duration        *float64   `json:"duration,omitempty"`         // planned duration, hours
	PercentComplete *float64   `json:"percent_complete,omitempty"` // 0-100
	TotalFloat      *float64   `json:"total_float,omitempty"`      // signed hours, written by the engine
	WBSID           string     `json:"wbs_id,omitempty"`
	CalendarID      string     `json:"calendar_id,omitempty"`
	TaskType        string     `json:"task_type,omitempty"`
	Status          string     `json:"status,omitempty"`
	CstrType        string     `json:"cstr_type,omitempty"`
	CstrDate        string     `json:"cstr_date,omitempty"`
}

// HasDates reports whether the task has both a start and a finish date.
// Only dated tasks participate in the backward pass.
func (t *Task) HasDates() bool {
	return t.StartDate != nil && t.FinishDate != nil
}

// IsCritical reports whether the task sits on the critical path.
// A task with no computed float is never critical.
func (t *Task) IsCritical() bool {
	return t.TotalFloat != nil && *t.TotalFloat <= 0
}

// WBSNode is one row of the work breakdown structure forest
type WBSNode struct {
	WBSID       string `json:"wbs_id"`
	WBSName     string `json:"wbs_name,omitempty"`
	ShortName   string `json:"wbs_short_name,omitempty"`
	ParentWBSID string `json:"parent_wbs_id,omitempty"`
	SeqNum      *int   `json:"seq_num,omitempty"`
}

// PredType identifies one of the four precedence relationship types
type PredType string

const (
	PredFinishToStart  PredType = "PR_FS"
	PredStartToStart   PredType = "PR_SS"
	PredFinishToFinish PredType = "PR_FF"
	PredStartToFinish  PredType = "PR_SF"
)

// NormalizePredType maps a raw pred_type value onto one of the four
// known types. Unknown or blank values default to finish-to-start.
func NormalizePredType(raw string) PredType {
	switch PredType(raw) {
	case PredStartToStart, PredFinishToFinish, PredStartToFinish:
		return PredType(raw)
	default:
		return PredFinishToStart
	}
}

// Relationship links a predecessor task to a successor task
type Relationship struct {
	PredTaskID string   `json:"pred_task_id"`
	TaskID     string   `json:"task_id"` // successor
	PredType   PredType `json:"pred_type"`
	Lag        *float64 `json:"lag,omitempty"` // signed hours
}

// LagHours returns the relationship lag in hours, zero when unset
func (r *Relationship) LagHours() float64 {
	if r.Lag == nil {
		return 0
	}
	return *r.Lag
}

// Calendar is a passthrough CALENDAR row, unused by the engine
type Calendar struct {
	CalendarID   string `json:"calendar_id"`
	CalendarName string `json:"calendar_name,omitempty"`
}
