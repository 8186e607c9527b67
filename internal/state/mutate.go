// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package state

import (
	"fmt"

	"github.com/Nukesor/pueue/internal/task"
)

// ValidateDependencies checks that every id in deps refers to an
// existing task, that none equals self, and that none of them
// (transitively) depends on self — which would create a cycle.
// selfID may be -1 (task.ID(-1)) when validating a brand-new task
// that has not yet been assigned an id.
func ValidateDependencies(snapshot Snapshot, deps []task.ID, selfID task.ID) error {
	for _, dep := range deps {
		if dep == selfID {
			return fmt.Errorf("task cannot depend on itself")
		}
		if _, ok := snapshot.Tasks[dep]; !ok {
			return fmt.Errorf("dependency %d does not exist", dep)
		}
	}
	for _, dep := range deps {
		if reaches(snapshot, dep, selfID, make(map[task.ID]bool)) {
			return fmt.Errorf("dependency %d would create a cycle back to task %d", dep, selfID)
		}
	}
	return nil
}

// reaches reports whether, starting from `from`, following dependency
// edges eventually reaches `target`.
func reaches(snapshot Snapshot, from, target task.ID, visited map[task.ID]bool) bool {
	if from == target {
		return true
	}
	if visited[from] {
		return false
	}
	visited[from] = true
	t, ok := snapshot.Tasks[from]
	if !ok {
		return false
	}
	for _, dep := range t.Dependencies {
		if reaches(snapshot, dep, target, visited) {
			return true
		}
	}
	return false
}

// RewriteDependencies swaps a and b everywhere they appear in any
// task's dependency list. Used by Switch (spec.md §4.4).
func RewriteDependencies(snapshot *Snapshot, a, b task.ID) {
	for id, t := range snapshot.Tasks {
		changed := false
		for i, dep := range t.Dependencies {
			switch dep {
			case a:
				t.Dependencies[i] = b
				changed = true
			case b:
				t.Dependencies[i] = a
				changed = true
			}
		}
		if changed {
			snapshot.Tasks[id] = t
		}
	}
}

// CountInFlight returns the number of tasks in groupName that are
// Running or Paused and not force-started — the count that is
// compared against the group's parallelism cap (spec.md §3, §4.3).
func CountInFlight(snapshot Snapshot, groupName string) int {
	count := 0
	for _, t := range snapshot.Tasks {
		if t.Group == groupName && t.InFlight() && !t.ForceStarted {
			count++
		}
	}
	return count
}

// Dependents returns the ids of non-terminal tasks that list id among
// their dependencies. Used to reject Remove(id) when something still
// depends on it (spec.md §4.4).
func Dependents(snapshot Snapshot, id task.ID) []task.ID {
	var out []task.ID
	for otherID, t := range snapshot.Tasks {
		if t.IsTerminal() {
			continue
		}
		for _, dep := range t.Dependencies {
			if dep == id {
				out = append(out, otherID)
				break
			}
		}
	}
	return out
}

// GroupTaskCount returns how many tasks currently reference groupName,
// regardless of status. Used to reject Group remove when non-empty
// (spec.md §3, §4.4).
func GroupTaskCount(snapshot Snapshot, groupName string) int {
	count := 0
	for _, t := range snapshot.Tasks {
		if t.Group == groupName {
			count++
		}
	}
	return count
}
