// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package scheduler

import (
	"github.com/Nukesor/pueue/internal/state"
	"github.com/Nukesor/pueue/internal/task"
)

// reap polls every in-flight task's process handle and, for each one
// that has exited, records its Done status under the lock (spec.md
// §4.3 step 3). TryReap itself is a non-blocking channel receive, so
// the candidate list is read outside the lock and each resulting
// mutation is applied in its own short Do call.
func (s *Scheduler) reap() []finishedTask {
	inFlight := state.View(s.store, func(snapshot state.Snapshot) []task.ID {
		var ids []task.ID
		for id, t := range snapshot.Tasks {
			if t.InFlight() {
				ids = append(ids, id)
			}
		}
		return ids
	})

	var finished []finishedTask
	for _, id := range inFlight {
		result, ok := s.procs.TryReap(id)
		if !ok {
			continue
		}

		s.store.Do(func(snapshot *state.Snapshot) {
			t, ok := snapshot.Tasks[id]
			if !ok {
				return
			}
			start := s.clock.Now()
			if t.Status.Start != nil {
				start = *t.Status.Start
			}
			t.Status = task.NewDone(start, result.End, result.Result, t.Status.EnqueuedAt)
			t.ForceStarted = false
			snapshot.Tasks[id] = t
			finished = append(finished, finishedTask{task: t})
		})
	}
	return finished
}
