package dlq

import (
	"context"
	"time"

	"github.com/ujenga-aus/JengaIQ-sub003/pkg/models"
)

// Manager fills the queue from the import pipeline and raises hooks
// for logging and alerting. Hooks must be set before the manager is
// shared between goroutines.
type Manager struct {
	queue     Queue
	threshold int

	onEntryAdded       func(*Entry)
	onThresholdReached func(count int)
}

// NewManager wraps a queue. When the queue grows to threshold entries
// the threshold hook fires on every further add; zero disables it.
func NewManager(queue Queue, threshold int) *Manager {
	return &Manager{queue: queue, threshold: threshold}
}

// OnEntryAdded sets the hook raised after each dead-lettered import.
func (m *Manager) OnEntryAdded(hook func(*Entry)) {
	m.onEntryAdded = hook
}

// OnThresholdReached sets the hook raised when the queue is at or
// above its threshold.
func (m *Manager) OnThresholdReached(hook func(count int)) {
	m.onThresholdReached = hook
}

// GetQueue exposes the underlying queue for inspection and replay.
func (m *Manager) GetQueue() Queue {
	return m.queue
}

// AddFailedImport dead-letters an import. The stage names the pipeline
// step that gave up (parsing, computing, persisting).
func (m *Manager) AddFailedImport(ctx context.Context, imp *models.Import, stage string, attempts int, cause error) error {
	entry := &Entry{
		ImportID:     imp.ID,
		ProgramID:    imp.ProgramID,
		Filename:     imp.Filename,
		FailureStage: stage,
		FailedAt:     time.Now(),
		Attempts:     attempts,
	}
	if cause != nil {
		entry.Error = cause.Error()
	}

	if err := m.queue.Add(ctx, entry); err != nil {
		return err
	}

	if m.onEntryAdded != nil {
		m.onEntryAdded(entry)
	}
	if m.threshold > 0 && m.onThresholdReached != nil {
		if count, err := m.queue.Count(ctx); err == nil && count >= m.threshold {
			m.onThresholdReached(count)
		}
	}
	return nil
}
