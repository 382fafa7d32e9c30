package watch

import (
	"testing"
	"time"
)

func TestScheduler_AddJob(t *testing.T) {
	s := NewScheduler(time.UTC)

	if err := s.AddJob("rescan", "0 */5 * * * *", func() {}); err != nil {
		t.Fatalf("AddJob() error = %v", err)
	}
	if !s.IsRegistered("rescan") {
		t.Error("rescan should be registered")
	}

	// Duplicate names are rejected.
	if err := s.AddJob("rescan", "0 */10 * * * *", func() {}); err == nil {
		t.Error("AddJob() should reject a duplicate name")
	}

	// Five-field expressions are invalid with seconds enabled.
	if err := s.AddJob("bad", "*/5 * * * *", func() {}); err == nil {
		t.Error("AddJob() should reject a malformed schedule")
	}
	if s.IsRegistered("bad") {
		t.Error("failed registration should leave nothing behind")
	}
}

func TestScheduler_RemoveJob(t *testing.T) {
	s := NewScheduler(time.UTC)

	if err := s.AddJob("purge", "0 0 3 * * *", func() {}); err != nil {
		t.Fatalf("AddJob() error = %v", err)
	}

	s.RemoveJob("purge")
	if s.IsRegistered("purge") {
		t.Error("purge should be gone after RemoveJob")
	}

	// Removing an unknown job is a no-op.
	s.RemoveJob("missing")
}

func TestScheduler_Jobs(t *testing.T) {
	s := NewScheduler(nil)

	s.AddJob("rescan", "0 */5 * * * *", func() {})
	s.AddJob("purge", "0 0 3 * * *", func() {})

	jobs := s.Jobs()
	if len(jobs) != 2 {
		t.Fatalf("Jobs() = %v, want 2 entries", jobs)
	}
}

func TestScheduler_NextRun(t *testing.T) {
	s := NewScheduler(time.UTC)

	if _, err := s.NextRun("missing"); err == nil {
		t.Error("NextRun() should fail for an unregistered job")
	}

	if err := s.AddJob("rescan", "0 */5 * * * *", func() {}); err != nil {
		t.Fatalf("AddJob() error = %v", err)
	}

	s.Start()
	defer s.Stop()

	next, err := s.NextRun("rescan")
	if err != nil {
		t.Fatalf("NextRun() error = %v", err)
	}
	if next.IsZero() {
		t.Error("NextRun() should be set once the scheduler has started")
	}
	if !next.After(time.Now().Add(-time.Second)) {
		t.Errorf("NextRun() = %v, want a future time", next)
	}
}
