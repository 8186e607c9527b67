// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package scheduler

import (
	"log/slog"
	"time"

	"github.com/Nukesor/pueue/internal/group"
	"github.com/Nukesor/pueue/internal/state"
	"github.com/Nukesor/pueue/internal/task"
)

// finishedTask is a task that just reached Done this tick, passed
// along for pause-on-failure policy and callback firing.
type finishedTask struct {
	task task.Task
}

// resolveDependencies transitions Queued tasks whose dependencies
// already failed straight to Done(DependencyFailed), without ever
// spawning a process (spec.md §4.3 step 2). Tasks in a paused group
// are left alone so a fixed and restarted dependency can still
// satisfy them (grounded on
// original_source/daemon/task_handler.rs's check_failed_dependencies).
func resolveDependencies(snapshot *state.Snapshot, now time.Time, logger *slog.Logger) []finishedTask {
	var finished []finishedTask

	for id, t := range snapshot.Tasks {
		if t.Status.Kind != task.StatusQueued || len(t.Dependencies) == 0 {
			continue
		}

		if g, ok := snapshot.Groups[t.Group]; ok && g.RunState == group.Paused {
			continue
		}

		failedDependency := false
		for _, depID := range t.Dependencies {
			dep, ok := snapshot.Tasks[depID]
			if !ok {
				logger.Error("task references unknown dependency", "task", id, "dependency", depID)
				continue
			}
			if dep.Status.Kind == task.StatusDone && !dep.Status.Result.Success() {
				failedDependency = true
				break
			}
		}
		if !failedDependency {
			continue
		}

		t.Status = task.NewDone(now, now, task.Result{Kind: task.ResultDependencyFailed}, t.Status.EnqueuedAt)
		snapshot.Tasks[id] = t
		finished = append(finished, finishedTask{task: t})
	}

	return finished
}
