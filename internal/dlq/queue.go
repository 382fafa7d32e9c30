// Package dlq holds imports that exhausted their retries so an
// operator can inspect and replay them.
package dlq

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

var (
	// ErrNotFound is returned when no entry exists for an import.
	ErrNotFound = errors.New("dlq entry not found")

	// ErrAlreadyExists is returned when an import is already dead
	// lettered. An import gets one entry; replay it or delete it.
	ErrAlreadyExists = errors.New("dlq entry already exists")
)

// Entry records one dead-lettered import.
type Entry struct {
	ImportID     string     `json:"import_id"`
	ProgramID    string     `json:"program_id"`
	Filename     string     `json:"filename"`
	FailureStage string     `json:"failure_stage"`
	FailedAt     time.Time  `json:"failed_at"`
	Attempts     int        `json:"attempts"`
	Error        string     `json:"error"`
	Replayed     bool       `json:"replayed"`
	ReplayedAt   *time.Time `json:"replayed_at,omitempty"`
}

// Queue stores dead-lettered imports keyed by import id.
type Queue interface {
	Add(ctx context.Context, entry *Entry) error
	Get(ctx context.Context, importID string) (*Entry, error)
	List(ctx context.Context, filters *Filters) ([]*Entry, error)

	// Replay marks an entry as handed back to the pipeline.
	Replay(ctx context.Context, importID string) error

	Delete(ctx context.Context, importID string) error
	Purge(ctx context.Context) error
	Count(ctx context.Context) (int, error)
}

// Filters narrows a List call. Zero fields match everything.
type Filters struct {
	ProgramID string
	Stage     string
	Replayed  *bool
	After     *time.Time
	Before    *time.Time
	Limit     int
	Offset    int
}

func (f *Filters) match(e *Entry) bool {
	if f == nil {
		return true
	}
	if f.ProgramID != "" && e.ProgramID != f.ProgramID {
		return false
	}
	if f.Stage != "" && e.FailureStage != f.Stage {
		return false
	}
	if f.Replayed != nil && e.Replayed != *f.Replayed {
		return false
	}
	if f.After != nil && e.FailedAt.Before(*f.After) {
		return false
	}
	if f.Before != nil && e.FailedAt.After(*f.Before) {
		return false
	}
	return true
}

// window applies offset and limit to an already-sorted result.
func (f *Filters) window(entries []*Entry) []*Entry {
	if f == nil {
		return entries
	}
	start := min(max(f.Offset, 0), len(entries))
	entries = entries[start:]
	if f.Limit > 0 && f.Limit < len(entries) {
		entries = entries[:f.Limit]
	}
	return entries
}

// MemoryQueue keeps entries in process memory. Entries are copied on
// the way in and out, so callers cannot mutate stored state.
type MemoryQueue struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// NewMemoryQueue returns an empty in-memory queue.
func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{entries: make(map[string]Entry)}
}

func (q *MemoryQueue) Add(ctx context.Context, entry *Entry) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.entries[entry.ImportID]; ok {
		return ErrAlreadyExists
	}
	q.entries[entry.ImportID] = *entry
	return nil
}

func (q *MemoryQueue) Get(ctx context.Context, importID string) (*Entry, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	e, ok := q.entries[importID]
	if !ok {
		return nil, ErrNotFound
	}
	return &e, nil
}

// List returns matching entries, newest failures first.
func (q *MemoryQueue) List(ctx context.Context, filters *Filters) ([]*Entry, error) {
	q.mu.RLock()
	out := make([]*Entry, 0, len(q.entries))
	for _, e := range q.entries {
		if filters.match(&e) {
			copied := e
			out = append(out, &copied)
		}
	}
	q.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].FailedAt.Equal(out[j].FailedAt) {
			return out[i].ImportID < out[j].ImportID
		}
		return out[i].FailedAt.After(out[j].FailedAt)
	})

	return filters.window(out), nil
}

func (q *MemoryQueue) Replay(ctx context.Context, importID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	e, ok := q.entries[importID]
	if !ok {
		return ErrNotFound
	}

	now := time.Now()
	e.Replayed = true
	e.ReplayedAt = &now
	q.entries[importID] = e
	return nil
}

func (q *MemoryQueue) Delete(ctx context.Context, importID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.entries[importID]; !ok {
		return ErrNotFound
	}
	delete(q.entries, importID)
	return nil
}

func (q *MemoryQueue) Purge(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.entries = make(map[string]Entry)
	return nil
}

func (q *MemoryQueue) Count(ctx context.Context) (int, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	return len(q.entries), nil
}
