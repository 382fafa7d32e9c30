package dlq

import (
	"context"
	"fmt"
	"testing"
	"time"
)

var entryBase = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func testEntry(importID string, failedAt time.Time) *Entry {
	return &Entry{
		ImportID:     importID,
		ProgramID:    "prog1",
		Filename:     "baseline.xer",
		FailureStage: "persisting",
		FailedAt:     failedAt,
		Attempts:     3,
		Error:        "database unavailable",
	}
}

func TestMemoryQueue_AddAndGet(t *testing.T) {
	q := NewMemoryQueue()
	ctx := context.Background()

	if err := q.Add(ctx, testEntry("imp1", entryBase)); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	got, err := q.Get(ctx, "imp1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.ImportID != "imp1" || got.FailureStage != "persisting" || got.Attempts != 3 {
		t.Errorf("Get() = %+v, want the stored entry back", got)
	}
}

func TestMemoryQueue_OneEntryPerImport(t *testing.T) {
	q := NewMemoryQueue()
	ctx := context.Background()

	if err := q.Add(ctx, testEntry("imp1", entryBase)); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if err := q.Add(ctx, testEntry("imp1", entryBase.Add(time.Hour))); err != ErrAlreadyExists {
		t.Errorf("second Add() error = %v, want ErrAlreadyExists", err)
	}
}

func TestMemoryQueue_GetUnknownImport(t *testing.T) {
	if _, err := NewMemoryQueue().Get(context.Background(), "nope"); err != ErrNotFound {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}
}

func TestMemoryQueue_StoredEntriesAreIsolated(t *testing.T) {
	q := NewMemoryQueue()
	ctx := context.Background()

	q.Add(ctx, testEntry("imp1", entryBase))

	got, _ := q.Get(ctx, "imp1")
	got.Attempts = 99

	again, _ := q.Get(ctx, "imp1")
	if again.Attempts != 3 {
		t.Errorf("Attempts after caller mutation = %d, want 3", again.Attempts)
	}
}

func TestMemoryQueue_ListFilters(t *testing.T) {
	q := NewMemoryQueue()
	ctx := context.Background()

	a := testEntry("impA", entryBase)
	b := testEntry("impB", entryBase.Add(time.Hour))
	b.FailureStage = "parsing"
	c := testEntry("impC", entryBase.Add(2*time.Hour))
	c.ProgramID = "prog2"
	c.Replayed = true
	for _, e := range []*Entry{a, b, c} {
		q.Add(ctx, e)
	}

	replayed := false
	after := entryBase.Add(30 * time.Minute)
	tests := []struct {
		name    string
		filters *Filters
		want    []string
	}{
		{"nil matches all", nil, []string{"impC", "impB", "impA"}},
		{"by program", &Filters{ProgramID: "prog1"}, []string{"impB", "impA"}},
		{"by stage", &Filters{Stage: "parsing"}, []string{"impB"}},
		{"by replayed", &Filters{Replayed: &replayed}, []string{"impB", "impA"}},
		{"by time", &Filters{After: &after}, []string{"impC", "impB"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := q.List(ctx, tt.filters)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("List() returned %d entries, want %d", len(got), len(tt.want))
			}
			for i, id := range tt.want {
				if got[i].ImportID != id {
					t.Errorf("List()[%d] = %s, want %s", i, got[i].ImportID, id)
				}
			}
		})
	}
}

func TestMemoryQueue_ListWindow(t *testing.T) {
	q := NewMemoryQueue()
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		q.Add(ctx, testEntry(fmt.Sprintf("imp%02d", i), entryBase.Add(time.Duration(i)*time.Minute)))
	}

	tests := []struct {
		name    string
		filters *Filters
		wantLen int
		first   string
	}{
		{"limit", &Filters{Limit: 4}, 4, "imp09"},
		{"offset", &Filters{Offset: 6}, 4, "imp03"},
		{"offset and limit", &Filters{Offset: 2, Limit: 3}, 3, "imp07"},
		{"offset past end", &Filters{Offset: 50}, 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := q.List(ctx, tt.filters)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if len(got) != tt.wantLen {
				t.Fatalf("List() returned %d entries, want %d", len(got), tt.wantLen)
			}
			if tt.wantLen > 0 && got[0].ImportID != tt.first {
				t.Errorf("List()[0] = %s, want %s", got[0].ImportID, tt.first)
			}
		})
	}
}

func TestMemoryQueue_Replay(t *testing.T) {
	q := NewMemoryQueue()
	ctx := context.Background()

	q.Add(ctx, testEntry("imp1", entryBase))

	if err := q.Replay(ctx, "imp1"); err != nil {
		t.Fatalf("Replay() error = %v", err)
	}

	got, _ := q.Get(ctx, "imp1")
	if !got.Replayed {
		t.Error("Replayed = false, want true after Replay")
	}
	if got.ReplayedAt == nil {
		t.Error("ReplayedAt = nil, want the replay timestamp")
	}

	if err := q.Replay(ctx, "ghost"); err != ErrNotFound {
		t.Errorf("Replay() of unknown import error = %v, want ErrNotFound", err)
	}
}

func TestMemoryQueue_Delete(t *testing.T) {
	q := NewMemoryQueue()
	ctx := context.Background()

	q.Add(ctx, testEntry("imp1", entryBase))

	if err := q.Delete(ctx, "imp1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := q.Get(ctx, "imp1"); err != ErrNotFound {
		t.Errorf("Get() after delete error = %v, want ErrNotFound", err)
	}
	if err := q.Delete(ctx, "imp1"); err != ErrNotFound {
		t.Errorf("second Delete() error = %v, want ErrNotFound", err)
	}
}

func TestMemoryQueue_PurgeAndCount(t *testing.T) {
	q := NewMemoryQueue()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		q.Add(ctx, testEntry(fmt.Sprintf("imp%d", i), entryBase))
	}

	count, err := q.Count(ctx)
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if count != 5 {
		t.Errorf("Count() = %d, want 5", count)
	}

	if err := q.Purge(ctx); err != nil {
		t.Fatalf("Purge() error = %v", err)
	}
	if count, _ := q.Count(ctx); count != 0 {
		t.Errorf("Count() after purge = %d, want 0", count)
	}
}
