package models

import "time"

// ImportStatus represents the lifecycle state of a schedule import
type ImportStatus string

const (
	ImportReceived   ImportStatus = "received"
	ImportQueued     ImportStatus = "queued"
	ImportParsing    ImportStatus = "parsing"
	ImportComputing  ImportStatus = "computing"
	ImportPersisting ImportStatus = "persisting"
	ImportCompleted  ImportStatus = "completed"
	ImportFailed     ImportStatus = "failed"
	ImportCanceled   ImportStatus = "canceled"
)

// IsTerminal returns true if the status is a terminal status (the
// normal flow is over; a failed import may still be replayed manually)
func (s ImportStatus) IsTerminal() bool {
	return s == ImportCompleted || s == ImportFailed || s == ImportCanceled
}

// ImportSource identifies where an import entered the system
type ImportSource string

const (
	SourceAPI   ImportSource = "api"
	SourceWatch ImportSource = "watch"
)

// Import is one schedule-import job: an uploaded or watched XER file
// travelling through the parse/compute/persist pipeline. The raw file
// payload lives in storage, never on the Import itself.
type Import struct {
	ID                string       `json:"id"`
	ProgramID         string       `json:"program_id"`
	Filename          string       `json:"filename"`
	SizeBytes         int64        `json:"size_bytes"`
	Source            ImportSource `json:"source"`
	Status            ImportStatus `json:"status"`
	Error             string       `json:"error,omitempty"`
	TaskCount         int          `json:"task_count"`
	RelationshipCount int          `json:"relationship_count"`
	CriticalCount     int          `json:"critical_count"`
	CycleTaskIDs      []string     `json:"cycle_task_ids,omitempty"`
	CreatedAt         time.Time    `json:"created_at"`
	StartedAt         *time.Time   `json:"started_at,omitempty"`
	FinishedAt        *time.Time   `json:"finished_at,omitempty"`
}
