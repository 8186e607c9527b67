// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package scheduler

import (
	"github.com/Nukesor/pueue/internal/group"
	"github.com/Nukesor/pueue/internal/state"
)

// applyPauseOnFailurePolicy pauses groups in reaction to a failed task,
// per the daemon config (spec.md §4.3 step 5, §6): pause_group_on_failure
// pauses the failing task's own group, pause_all_on_failure pauses
// every group. Grounded on
// original_source/daemon/process_handler/finish.rs's pause_on_failure.
func (s *Scheduler) applyPauseOnFailurePolicy(finished []finishedTask) {
	if !s.cfg.PauseGroupOnFailure && !s.cfg.PauseAllOnFailure {
		return
	}

	failedGroups := make(map[string]bool)
	anyFailed := false
	for _, f := range finished {
		if f.task.Status.Result != nil && !f.task.Status.Result.Success() {
			failedGroups[f.task.Group] = true
			anyFailed = true
		}
	}
	if !anyFailed {
		return
	}

	s.store.Do(func(snapshot *state.Snapshot) {
		if s.cfg.PauseAllOnFailure {
			for name, g := range snapshot.Groups {
				g.RunState = group.Paused
				snapshot.Groups[name] = g
			}
			return
		}
		for name := range failedGroups {
			g, ok := snapshot.Groups[name]
			if !ok {
				continue
			}
			g.RunState = group.Paused
			snapshot.Groups[name] = g
		}
	})
}
