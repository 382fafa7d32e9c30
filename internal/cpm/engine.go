package cpm

import (
	"sort"
	"time"

	"github.com/ujenga-aus/JengaIQ-sub003/pkg/models"
)

// Traversal colors for the iterative depth-first walk.
const (
	colorWhite uint8 = iota
	colorGray
	colorBlack
)

// Result carries the annotated tasks plus cycle diagnostics gathered
// while walking the relationship graph.
type Result struct {
	Tasks        []models.Task
	CycleTaskIDs []string
}

// HasCycles reports whether the relationship graph contained a cycle.
func (r *Result) HasCycles() bool {
	return len(r.CycleTaskIDs) > 0
}

// edge is one precedence constraint from a predecessor to a successor.
type edge struct {
	succID   string
	predType models.PredType
	lag      time.Duration
}

// node holds the working dates for one task during the backward pass.
type node struct {
	start      time.Time
	finish     time.Time
	duration   time.Duration
	lateStart  time.Time
	lateFinish time.Time
	resolved   bool
}

// graph is the per-call working set. Nothing survives between calls;
// concurrent imports each build their own.
type graph struct {
	nodes  map[string]*node
	succs  map[string][]edge
	anchor time.Time
}

// ComputeFloat returns every input task unchanged except that total
// float is recalculated, in signed hours, for each task carrying both
// a start and a finish date. Dates are trusted as the early schedule;
// only late dates are derived here, against the project end anchor
// (the latest finish date found anywhere). Tasks missing either date,
// and all tasks when no anchor exists, keep their prior float. The
// input slices are never modified.
func ComputeFloat(tasks []models.Task, rels []models.Relationship) []models.Task {
	return Analyze(tasks, rels).Tasks
}

// Analyze runs the backward pass and also reports which tasks sit on a
// relationship cycle, sorted by id.
func Analyze(tasks []models.Task, rels []models.Relationship) *Result {
	out := make([]models.Task, len(tasks))
	copy(out, tasks)

	g, ok := buildGraph(tasks, rels)
	if !ok {
		// No finish date anywhere means no project end anchor, so
		// float is undefined for every task.
		return &Result{Tasks: out}
	}

	cycleIDs := g.traverse()

	for i := range out {
		if !out[i].HasDates() {
			continue
		}
		n, found := g.nodes[out[i].TaskID]
		if !found || !n.resolved {
			continue
		}
		f := n.lateStart.Sub(n.start).Hours()
		out[i].TotalFloat = &f
	}

	return &Result{Tasks: out, CycleTaskIDs: cycleIDs}
}

// buildGraph indexes tasks by id (later rows win), keeps a node for
// each task with both dates and locates the project end anchor. ok is
// false when no task has a finish date.
func buildGraph(tasks []models.Task, rels []models.Relationship) (*graph, bool) {
	var anchor time.Time
	haveAnchor := false
	for i := range tasks {
		if f := tasks[i].FinishDate; f != nil {
			if !haveAnchor || f.After(anchor) {
				anchor = *f
				haveAnchor = true
			}
		}
	}
	if !haveAnchor {
		return nil, false
	}

	index := make(map[string]*models.Task, len(tasks))
	for i := range tasks {
		index[tasks[i].TaskID] = &tasks[i]
	}

	g := &graph{
		nodes:  make(map[string]*node, len(index)),
		succs:  make(map[string][]edge, len(index)),
		anchor: anchor,
	}
	for id, task := range index {
		if !task.HasDates() {
			continue
		}
		g.nodes[id] = &node{
			start:    *task.StartDate,
			finish:   *task.FinishDate,
			duration: task.FinishDate.Sub(*task.StartDate),
		}
	}

	for _, rel := range rels {
		g.succs[rel.PredTaskID] = append(g.succs[rel.PredTaskID], edge{
			succID:   rel.TaskID,
			predType: rel.PredType,
			lag:      time.Duration(rel.LagHours() * float64(time.Hour)),
		})
	}

	return g, true
}

// frame is one entry of the explicit traversal stack: a task id plus
// the index of its next unexamined successor edge.
type frame struct {
	id   string
	next int
}

// traverse resolves late dates for every node with an iterative
// depth-first walk over the successor graph, so deep dependency chains
// never grow the call stack. Roots are visited in sorted id order to
// keep the outcome deterministic. The returned ids are the tasks found
// on at least one cycle, sorted.
func (g *graph) traverse() []string {
	ids := make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	colors := make(map[string]uint8, len(g.nodes))
	inCycle := make(map[string]bool)

	for _, root := range ids {
		if colors[root] != colorWhite {
			continue
		}
		colors[root] = colorGray
		stack := []frame{{id: root}}

		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			edges := g.succs[top.id]

			pushed := false
			for top.next < len(edges) {
				e := edges[top.next]
				top.next++

				if _, known := g.nodes[e.succID]; !known {
					// Successors without usable dates impose no constraint.
					continue
				}
				switch colors[e.succID] {
				case colorWhite:
					colors[e.succID] = colorGray
					stack = append(stack, frame{id: e.succID})
					pushed = true
				case colorGray:
					// Back edge: everything between the successor's
					// frame and the top of the stack is on a cycle.
					markCycle(stack, e.succID, inCycle)
				}
				if pushed {
					break
				}
			}
			if pushed {
				continue
			}

			colors[top.id] = colorBlack
			g.resolve(top.id)
			stack = stack[:len(stack)-1]
		}
	}

	if len(inCycle) == 0 {
		return nil
	}
	cycleIDs := make([]string, 0, len(inCycle))
	for id := range inCycle {
		cycleIDs = append(cycleIDs, id)
	}
	sort.Strings(cycleIDs)
	return cycleIDs
}

// markCycle records every task from the back edge's target up to the
// top of the walk stack as a cycle member.
func markCycle(stack []frame, succID string, inCycle map[string]bool) {
	for i := len(stack) - 1; i >= 0; i-- {
		inCycle[stack[i].id] = true
		if stack[i].id == succID {
			return
		}
	}
}

// resolve finalizes a node's late dates once all its successor subtrees
// have been examined. A successor still on the walk stack is part of a
// cycle with this node and contributes no constraint.
func (g *graph) resolve(id string) {
	n := g.nodes[id]

	var lateFinish time.Time
	constrained := false
	for _, e := range g.succs[id] {
		succ, known := g.nodes[e.succID]
		if !known || !succ.resolved {
			continue
		}

		var candidate time.Time
		switch e.predType {
		case models.PredStartToStart:
			candidate = succ.lateStart.Add(-e.lag).Add(n.duration)
		case models.PredFinishToFinish:
			candidate = succ.lateFinish.Add(-e.lag)
		case models.PredStartToFinish:
			candidate = succ.lateFinish.Add(-e.lag).Add(n.duration)
		default:
			candidate = succ.lateStart.Add(-e.lag)
		}

		// The tightest constraint governs.
		if !constrained || candidate.Before(lateFinish) {
			lateFinish = candidate
			constrained = true
		}
	}
	if !constrained {
		lateFinish = g.anchor
	}

	n.lateFinish = lateFinish
	n.lateStart = lateFinish.Add(-n.duration)
	n.resolved = true
}
