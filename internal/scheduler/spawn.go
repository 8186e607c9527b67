// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package scheduler

import (
	"github.com/Nukesor/pueue/internal/group"
	"github.com/Nukesor/pueue/internal/state"
	"github.com/Nukesor/pueue/internal/task"
)

// startTask re-validates that id is still startable, computes its
// worker slot, and spawns it through the process handler. Spawning is
// a syscall and must happen outside the state lock (spec.md §5); the
// task is re-read under the lock immediately before and after.
func (s *Scheduler) startTask(id task.ID) {
	var (
		toSpawn    task.Task
		workerSlot int
		ready      bool
	)

	s.store.Do(func(snapshot *state.Snapshot) {
		t, ok := snapshot.Tasks[id]
		if !ok || t.Status.Kind != task.StatusQueued {
			return
		}
		g, ok := snapshot.Groups[t.Group]
		if !ok {
			return
		}
		if !t.ForceStarted {
			if g.RunState != group.Running {
				return
			}
			if g.Parallel > 0 && state.CountInFlight(*snapshot, t.Group) >= g.Parallel {
				return
			}
		}
		toSpawn = t
		workerSlot = nextWorkerSlot(*snapshot, t.Group)
		ready = true
	})
	if !ready {
		return
	}

	start, err := s.procs.Spawn(toSpawn, workerSlot)

	var failed task.Task
	s.store.Do(func(snapshot *state.Snapshot) {
		t, ok := snapshot.Tasks[id]
		if !ok {
			return
		}
		if err != nil {
			end := s.clock.Now()
			t.Status = task.NewDone(end, end, task.Result{Kind: task.ResultFailedToStart, Reason: err.Error()}, t.Status.EnqueuedAt)
			t.ForceStarted = false
			snapshot.Tasks[id] = t
			failed = t
			return
		}
		t.Status = task.NewRunning(start, t.Status.EnqueuedAt)
		t.WorkerSlot = workerSlot
		snapshot.Tasks[id] = t
	})

	if err != nil {
		s.logger.Warn("task failed to start", "task", id, "error", err)
		s.applyPauseOnFailurePolicy([]finishedTask{{task: failed}})
		s.fireCallbacks([]finishedTask{{task: failed}})
	}
}

// nextWorkerSlot returns the smallest slot index in [0, cap) not
// currently used by an in-flight task of groupName. Force-started
// tasks (which run over-cap) are assigned the next free index beyond
// the cap if every in-cap slot is occupied.
func nextWorkerSlot(snapshot state.Snapshot, groupName string) int {
	used := make(map[int]bool)
	for _, t := range snapshot.Tasks {
		if t.Group == groupName && t.InFlight() {
			used[t.WorkerSlot] = true
		}
	}
	for slot := 0; ; slot++ {
		if !used[slot] {
			return slot
		}
	}
}
