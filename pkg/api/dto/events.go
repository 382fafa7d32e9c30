package dto

import "time"

// ImportEvent is one status transition on the event feed.
type ImportEvent struct {
	ImportID  string                 `json:"import_id"`
	OldStatus *string                `json:"old_status"`
	NewStatus string                 `json:"new_status"`
	ChangedAt time.Time              `json:"changed_at"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// ImportEventsResponse carries the recent transitions across all
// imports, newest first.
type ImportEventsResponse struct {
	Events []ImportEvent `json:"events"`
}

// EventsQueryParams are the query parameters of the recent-events
// endpoint.
type EventsQueryParams struct {
	Limit int `form:"limit,default=50" validate:"min=1,max=500"`
}
