package watch

import (
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler drives the recurring maintenance jobs, drop-root rescans
// and retention purges, on six-field cron schedules.
type Scheduler struct {
	cron     *cron.Cron
	location *time.Location
	entries  map[string]cron.EntryID
	mu       sync.RWMutex
}

// NewScheduler creates a scheduler in the given location. Nil means UTC.
func NewScheduler(location *time.Location) *Scheduler {
	if location == nil {
		location = time.UTC
	}
	return &Scheduler{
		cron:     cron.New(cron.WithLocation(location), cron.WithSeconds()),
		location: location,
		entries:  make(map[string]cron.EntryID),
	}
}

// Start starts the scheduler.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop stops the scheduler and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// AddJob registers a named job. The schedule uses six fields, seconds
// first.
func (s *Scheduler) AddJob(name, schedule string, job func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[name]; exists {
		return fmt.Errorf("job %s is already registered", name)
	}

	entryID, err := s.cron.AddFunc(schedule, job)
	if err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", schedule, err)
	}

	s.entries[name] = entryID
	return nil
}

// RemoveJob unregisters a job if present.
func (s *Scheduler) RemoveJob(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entryID, exists := s.entries[name]; exists {
		s.cron.Remove(entryID)
		delete(s.entries, name)
	}
}

// IsRegistered reports whether a job name is registered.
func (s *Scheduler) IsRegistered(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, exists := s.entries[name]
	return exists
}

// Jobs returns the names of all registered jobs.
func (s *Scheduler) Jobs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.entries))
	for name := range s.entries {
		names = append(names, name)
	}
	return names
}

// NextRun returns the next scheduled run of a registered job. The
// time is only meaningful once the scheduler has started.
func (s *Scheduler) NextRun(name string) (*time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entryID, exists := s.entries[name]
	if !exists {
		return nil, fmt.Errorf("job %s is not registered", name)
	}

	next := s.cron.Entry(entryID).Next
	return &next, nil
}
