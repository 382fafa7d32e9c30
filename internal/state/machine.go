package state

import (
	"errors"
	"fmt"

	"github.com/ujenga-aus/JengaIQ-sub003/pkg/models"
)

var (
	// ErrInvalidTransition is returned when an invalid status transition is attempted
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrOptimisticLock is returned when optimistic locking fails
	ErrOptimisticLock = errors.New("optimistic lock failed - import was modified")
)

// EntityImport is the entity type stamped on import status events.
const EntityImport = "import"

// StateMachine guards the lifecycle of a schedule import
type StateMachine struct {
	validTransitions map[models.ImportStatus][]models.ImportStatus
}

// NewStateMachine creates a new state machine
func NewStateMachine() *StateMachine {
	return &StateMachine{
		validTransitions: map[models.ImportStatus][]models.ImportStatus{
			models.ImportReceived: {
				models.ImportQueued,
				models.ImportParsing, // Synchronous imports skip the queue
				models.ImportFailed,
				models.ImportCanceled,
			},
			models.ImportQueued: {
				models.ImportParsing,
				models.ImportFailed,
				models.ImportCanceled,
			},
			models.ImportParsing: {
				models.ImportComputing,
				models.ImportFailed,
			},
			models.ImportComputing: {
				models.ImportPersisting,
				models.ImportFailed,
			},
			models.ImportPersisting: {
				models.ImportCompleted,
				models.ImportFailed,
			},
			models.ImportFailed: {
				models.ImportQueued, // Manual replay
			},
			// Terminal states don't transition
			models.ImportCompleted: {},
			models.ImportCanceled:  {},
		},
	}
}

// CanTransition checks if a status transition is valid
func (sm *StateMachine) CanTransition(from, to models.ImportStatus) bool {
	// Allow transition to same status (idempotent)
	if from == to {
		return true
	}

	validStatuses, exists := sm.validTransitions[from]
	if !exists {
		return false
	}

	for _, status := range validStatuses {
		if status == to {
			return true
		}
	}

	return false
}

// ValidateTransition validates a status transition and returns an error if invalid
func (sm *StateMachine) ValidateTransition(from, to models.ImportStatus) error {
	if !sm.CanTransition(from, to) {
		return fmt.Errorf("%w: cannot transition from %s to %s", ErrInvalidTransition, from, to)
	}
	return nil
}

// GetNextStatuses returns all valid next statuses from the current one
func (sm *StateMachine) GetNextStatuses(current models.ImportStatus) []models.ImportStatus {
	statuses, exists := sm.validTransitions[current]
	if !exists {
		return []models.ImportStatus{}
	}
	return statuses
}

// IsTerminalStatus checks if a status is terminal (no further transitions)
func (sm *StateMachine) IsTerminalStatus(status models.ImportStatus) bool {
	return status.IsTerminal()
}

// TransitionEvent represents an import status transition event
type TransitionEvent struct {
	EntityType string // currently always "import"
	EntityID   string // UUID of the import
	OldStatus  models.ImportStatus
	NewStatus  models.ImportStatus
	Metadata   map[string]interface{}
}

// EventPublisher is an interface for publishing status change events
type EventPublisher interface {
	Publish(event TransitionEvent) error
}

// NoOpPublisher is a no-op event publisher for testing
type NoOpPublisher struct{}

// Publish does nothing
func (p *NoOpPublisher) Publish(event TransitionEvent) error {
	return nil
}

// Manager handles status transitions with event publishing
type Manager struct {
	machine   *StateMachine
	publisher EventPublisher
}

// NewManager creates a new state manager
func NewManager(publisher EventPublisher) *Manager {
	if publisher == nil {
		publisher = &NoOpPublisher{}
	}
	return &Manager{
		machine:   NewStateMachine(),
		publisher: publisher,
	}
}

// Transition performs a status transition and publishes an event
func (m *Manager) Transition(entityType, entityID string, from, to models.ImportStatus, metadata map[string]interface{}) error {
	if err := m.machine.ValidateTransition(from, to); err != nil {
		return err
	}

	event := TransitionEvent{
		EntityType: entityType,
		EntityID:   entityID,
		OldStatus:  from,
		NewStatus:  to,
		Metadata:   metadata,
	}

	if err := m.publisher.Publish(event); err != nil {
		return fmt.Errorf("failed to publish status transition event: %w", err)
	}

	return nil
}

// CanTransition delegates to the state machine
func (m *Manager) CanTransition(from, to models.ImportStatus) bool {
	return m.machine.CanTransition(from, to)
}
