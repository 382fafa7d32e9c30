package xer

import (
	"github.com/ujenga-aus/JengaIQ-sub003/pkg/models"
)

// Table names recognized by the schedule builder.
const (
	TableProject      = "PROJECT"
	TableTask         = "TASK"
	TableWBS          = "PROJWBS"
	TableRelationship = "TASKPRED"
	TableCalendar     = "CALENDAR"
)

// BuildSchedule maps raw tables onto the typed schedule model. Mapping
// is permissive: missing tables yield empty collections, missing or
// unparseable fields yield nil, and duplicate ids or references to
// unknown tasks pass through untouched. No coercion failure is fatal.
func BuildSchedule(tables Tables) *models.Schedule {
	return &models.Schedule{
		Project:       buildProject(tables[TableProject]),
		Tasks:         buildTasks(tables[TableTask]),
		WBS:           buildWBS(tables[TableWBS]),
		Relationships: buildRelationships(tables[TableRelationship]),
		Calendars:     buildCalendars(tables[TableCalendar]),
	}
}

func buildProject(table *Table) *models.Project {
	if table == nil || len(table.Rows) == 0 {
		return nil
	}
	row := table.Rows[0]

	finish := ParseOptionalDate(row["plan_end_date"])
	if finish == nil {
		finish = ParseOptionalDate(row["scd_end_date"])
	}

	return &models.Project{
		ProjectID:   row["proj_id"],
		ProjectName: row["proj_short_name"],
		DataDate:    ParseOptionalDate(row["last_recalc_date"]),
		StartDate:   ParseOptionalDate(row["plan_start_date"]),
		FinishDate:  finish,
	}
}

func buildTasks(table *Table) []models.Task {
	if table == nil {
		return []models.Task{}
	}
	tasks := make([]models.Task, 0, len(table.Rows))
	for _, row := range table.Rows {
		// Actual dates win over planned ones when both are present.
		start := ParseOptionalDate(row["act_start_date"])
		if start == nil {
			start = ParseOptionalDate(row["target_start_date"])
		}
		finish := ParseOptionalDate(row["act_end_date"])
		if finish == nil {
			finish = ParseOptionalDate(row["target_end_date"])
		}

		// The imported float survives only on tasks the backward pass
		// cannot date; everywhere else it is recomputed.
		tasks = append(tasks, models.Task{
			TaskID:          row["task_id"],
			TaskCode:        row["task_code"],
			TaskName:        row["task_name"],
			StartDate:       start,
			FinishDate:      finish,
			Duration:        ParseOptionalFloat(row["target_drtn_hr_cnt"]),
			PercentComplete: ParseOptionalFloat(row["phys_complete_pct"]),
			TotalFloat:      ParseOptionalFloat(row["total_float_hr_cnt"]),
			WBSID:           row["wbs_id"],
			CalendarID:      row["clndr_id"],
			TaskType:        row["task_type"],
			Status:          row["status_code"],
			CstrType:        row["cstr_type"],
			CstrDate:        row["cstr_date"],
		})
	}
	return tasks
}

func buildWBS(table *Table) []models.WBSNode {
	if table == nil {
		return []models.WBSNode{}
	}
	nodes := make([]models.WBSNode, 0, len(table.Rows))
	for _, row := range table.Rows {
		nodes = append(nodes, models.WBSNode{
			WBSID:       row["wbs_id"],
			WBSName:     row["wbs_name"],
			ShortName:   row["wbs_short_name"],
			ParentWBSID: row["parent_wbs_id"],
			SeqNum:      ParseOptionalInt(row["seq_num"]),
		})
	}
	return nodes
}

func buildRelationships(table *Table) []models.Relationship {
	if table == nil {
		return []models.Relationship{}
	}
	rels := make([]models.Relationship, 0, len(table.Rows))
	for _, row := range table.Rows {
		rels = append(rels, models.Relationship{
			PredTaskID: row["pred_task_id"],
			TaskID:     row["task_id"],
			PredType:   models.NormalizePredType(row["pred_type"]),
			Lag:        ParseOptionalFloat(row["lag_hr_cnt"]),
		})
	}
	return rels
}

func buildCalendars(table *Table) []models.Calendar {
	if table == nil {
		return []models.Calendar{}
	}
	cals := make([]models.Calendar, 0, len(table.Rows))
	for _, row := range table.Rows {
		cals = append(cals, models.Calendar{
			CalendarID:   row["clndr_id"],
			CalendarName: row["clndr_name"],
		})
	}
	return cals
}
