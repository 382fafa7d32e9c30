package state

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ujenga-aus/JengaIQ-sub003/pkg/models"
)

// HistoryEntry is one recorded status transition of an import.
type HistoryEntry struct {
	ID        uuid.UUID              `gorm:"type:uuid;primary_key;default:uuid_generate_v4()" json:"id"`
	ImportID  uuid.UUID              `gorm:"type:uuid;not null;index:idx_import_history_import_id" json:"import_id"`
	OldStatus *string                `gorm:"type:varchar(50)" json:"old_status"`
	NewStatus string                 `gorm:"type:varchar(50);not null" json:"new_status"`
	ChangedAt time.Time              `gorm:"not null;default:CURRENT_TIMESTAMP;index:idx_import_history_changed_at" json:"changed_at"`
	Metadata  map[string]interface{} `gorm:"serializer:json;type:jsonb;default:'{}'" json:"metadata"`
}

// TableName maps HistoryEntry onto the import_history table.
func (HistoryEntry) TableName() string {
	return "import_history"
}

// HistoryTracker records and reads status transitions. It backs both
// the per-import history endpoint and the recent-events feed.
type HistoryTracker struct {
	db *gorm.DB
}

// NewHistoryTracker creates a tracker on the shared gorm handle.
func NewHistoryTracker(db *gorm.DB) *HistoryTracker {
	return &HistoryTracker{db: db}
}

// Record appends one transition to the history table.
func (h *HistoryTracker) Record(ctx context.Context, importID string, oldStatus, newStatus models.ImportStatus, metadata map[string]interface{}) error {
	importUUID, err := uuid.Parse(importID)
	if err != nil {
		return fmt.Errorf("invalid import ID: %w", err)
	}

	var old *string
	if oldStatus != "" {
		s := string(oldStatus)
		old = &s
	}

	entry := HistoryEntry{
		ImportID:  importUUID,
		OldStatus: old,
		NewStatus: string(newStatus),
		ChangedAt: time.Now().UTC(),
		Metadata:  metadata,
	}
	if err := h.db.WithContext(ctx).Create(&entry).Error; err != nil {
		return fmt.Errorf("failed to record status history: %w", err)
	}
	return nil
}

// GetHistory returns one import's transitions, newest first.
func (h *HistoryTracker) GetHistory(ctx context.Context, importID string, limit int) ([]HistoryEntry, error) {
	importUUID, err := uuid.Parse(importID)
	if err != nil {
		return nil, fmt.Errorf("invalid import ID: %w", err)
	}

	var entries []HistoryEntry
	if err := h.recent(ctx, limit).Where("import_id = ?", importUUID).Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("failed to get status history: %w", err)
	}
	return entries, nil
}

// GetRecentHistory returns the latest transitions across all imports,
// newest first.
func (h *HistoryTracker) GetRecentHistory(ctx context.Context, limit int) ([]HistoryEntry, error) {
	var entries []HistoryEntry
	if err := h.recent(ctx, limit).Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("failed to get recent history: %w", err)
	}
	return entries, nil
}

// recent builds the newest-first base query. limit <= 0 means no cap.
func (h *HistoryTracker) recent(ctx context.Context, limit int) *gorm.DB {
	q := h.db.WithContext(ctx).Order("changed_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	return q
}

// HistoryPublisher adapts the tracker to the EventPublisher interface
// so transitions land in the history table like any other sink.
type HistoryPublisher struct {
	tracker *HistoryTracker
}

// NewHistoryPublisher creates a history-writing publisher.
func NewHistoryPublisher(db *gorm.DB) *HistoryPublisher {
	return &HistoryPublisher{tracker: NewHistoryTracker(db)}
}

// Publish records the transition with a bounded timeout.
func (p *HistoryPublisher) Publish(event TransitionEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	return p.tracker.Record(ctx, event.EntityID, event.OldStatus, event.NewStatus, event.Metadata)
}
