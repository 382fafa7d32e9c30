package dto

import (
	"time"

	"github.com/ujenga-aus/JengaIQ-sub003/pkg/models"
)

// ImportResponse represents the response for a schedule import
type ImportResponse struct {
	ID                string     `json:"id"`
	ProgramID         string     `json:"program_id"`
	Filename          string     `json:"filename"`
	SizeBytes         int64      `json:"size_bytes"`
	Source            string     `json:"source"`
	Status            string     `json:"status"`
	Error             string     `json:"error,omitempty"`
	TaskCount         int        `json:"task_count"`
	RelationshipCount int        `json:"relationship_count"`
	CriticalCount     int        `json:"critical_count"`
	CycleTaskIDs      []string   `json:"cycle_task_ids,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	StartedAt         *time.Time `json:"started_at,omitempty"`
	FinishedAt        *time.Time `json:"finished_at,omitempty"`
}

// ImportListResponse represents a paginated list of imports
type ImportListResponse struct {
	Imports    []ImportResponse `json:"imports"`
	Pagination PaginationMeta   `json:"pagination"`
}

// ImportHistoryEntry represents one recorded status change of an import
type ImportHistoryEntry struct {
	OldStatus *string                `json:"old_status"`
	NewStatus string                 `json:"new_status"`
	ChangedAt time.Time              `json:"changed_at"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// ImportHistoryResponse represents the status history of an import,
// newest change first
type ImportHistoryResponse struct {
	ImportID string               `json:"import_id"`
	History  []ImportHistoryEntry `json:"history"`
}

// ToImportResponse converts a models.Import to an ImportResponse
func ToImportResponse(imp *models.Import) ImportResponse {
	return ImportResponse{
		ID:                imp.ID,
		ProgramID:         imp.ProgramID,
		Filename:          imp.Filename,
		SizeBytes:         imp.SizeBytes,
		Source:            string(imp.Source),
		Status:            string(imp.Status),
		Error:             imp.Error,
		TaskCount:         imp.TaskCount,
		RelationshipCount: imp.RelationshipCount,
		CriticalCount:     imp.CriticalCount,
		CycleTaskIDs:      imp.CycleTaskIDs,
		CreatedAt:         imp.CreatedAt,
		StartedAt:         imp.StartedAt,
		FinishedAt:        imp.FinishedAt,
	}
}
