// Package importer runs uploaded XER schedule exports through the
// parse, compute and persist pipeline.
package importer

import (
	"fmt"
	"io"

	"github.com/ujenga-aus/JengaIQ-sub003/internal/cpm"
	"github.com/ujenga-aus/JengaIQ-sub003/internal/xer"
	"github.com/ujenga-aus/JengaIQ-sub003/pkg/models"
)

// Pipeline stage names recorded on failures.
const (
	StageParsing    = "parsing"
	StageComputing  = "computing"
	StagePersisting = "persisting"
)

// Process runs a schedule export end to end: extract the tab-separated
// tables, build the schedule model, and recompute total float over the
// relationship graph. The returned ids name the tasks found on
// dependency cycles. The only failure mode is a stream read error;
// malformed content degrades to an emptier schedule instead.
func Process(r io.Reader) (*models.Schedule, []string, error) {
	tables, err := xer.Extract(r)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read schedule export: %w", err)
	}

	schedule := xer.BuildSchedule(tables)
	result := cpm.Analyze(schedule.Tasks, schedule.Relationships)
	schedule.Tasks = result.Tasks

	return schedule, result.CycleTaskIDs, nil
}

// criticalCount counts tasks whose recomputed total float puts them on
// the critical path.
func criticalCount(tasks []models.Task) int {
	n := 0
	for i := range tasks {
		if tasks[i].IsCritical() {
			n++
		}
	}
	return n
}
