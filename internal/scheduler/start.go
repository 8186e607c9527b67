// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package scheduler

import (
	"sort"

	"github.com/Nukesor/pueue/internal/group"
	"github.com/Nukesor/pueue/internal/state"
	"github.com/Nukesor/pueue/internal/task"
)

// eligibleToStart picks, for each group with free capacity, the next
// Queued task to start: dependencies all Success, highest priority
// first, ties broken by lowest id (spec.md §4.3 step 4). It returns
// one task per currently-free slot across all groups; callers spawn
// them one at a time and re-check capacity before the next one, since
// a single Tick's snapshot is taken before any of them have started.
func eligibleToStart(snapshot state.Snapshot) []task.ID {
	candidatesByGroup := make(map[string][]task.Task)
	var result []task.ID

	for _, t := range snapshot.Tasks {
		if t.Status.Kind != task.StatusQueued {
			continue
		}
		if !dependenciesSatisfied(snapshot, t) {
			continue
		}
		g, ok := snapshot.Groups[t.Group]
		if !ok {
			continue
		}
		// A force-started task bypasses both the group's run state and
		// its parallelism cap (spec.md §3, §9 open question).
		if t.ForceStarted {
			result = append(result, t.ID)
			continue
		}
		if g.RunState != group.Running {
			continue
		}
		candidatesByGroup[t.Group] = append(candidatesByGroup[t.Group], t)
	}

	for groupName, candidates := range candidatesByGroup {
		g := snapshot.Groups[groupName]
		inFlight := state.CountInFlight(snapshot, groupName)
		free := freeSlots(g, inFlight)
		if free <= 0 {
			continue
		}

		sort.Slice(candidates, func(i, j int) bool {
			if candidates[i].Priority != candidates[j].Priority {
				return candidates[i].Priority > candidates[j].Priority
			}
			return candidates[i].ID < candidates[j].ID
		})

		for i := 0; i < free && i < len(candidates); i++ {
			result = append(result, candidates[i].ID)
		}
	}
	return result
}

// freeSlots returns how many more tasks groupName's cap allows right
// now. A zero cap means unlimited, represented as a large but finite
// number of slots so the caller's simple loop still works.
func freeSlots(g group.Group, inFlight int) int {
	if g.Parallel <= 0 {
		return 1 << 30
	}
	free := g.Parallel - inFlight
	if free < 0 {
		return 0
	}
	return free
}

func dependenciesSatisfied(snapshot state.Snapshot, t task.Task) bool {
	for _, depID := range t.Dependencies {
		dep, ok := snapshot.Tasks[depID]
		if !ok {
			return false
		}
		if dep.Status.Kind != task.StatusDone || !dep.Status.Result.Success() {
			return false
		}
	}
	return true
}
