// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package scheduler

import (
	"github.com/Nukesor/pueue/internal/procmgr"
	"github.com/Nukesor/pueue/internal/state"
	"github.com/Nukesor/pueue/internal/task"
)

// fireCallbacks runs the configured callback command for every task
// that just reached Done, if one is configured (spec.md §4.2, §6).
// Grounded on original_source/daemon/callbacks.rs's spawn_callback.
func (s *Scheduler) fireCallbacks(finished []finishedTask) {
	if s.cfg.Callback == "" {
		return
	}

	for _, f := range finished {
		t := f.task
		params := s.callbackParams(t)

		if err := s.procs.RunCallback(s.cfg.Callback, params); err != nil {
			s.logger.Warn("callback failed to start", "task", t.ID, "error", err)
		}
	}
}

func (s *Scheduler) callbackParams(t task.Task) procmgr.CallbackParams {
	counts := state.View(s.store, func(snapshot state.Snapshot) [2]int {
		var c [2]int
		for _, other := range snapshot.Tasks {
			switch other.Status.Kind {
			case task.StatusQueued:
				c[0]++
			case task.StatusStashed:
				c[1]++
			}
		}
		return c
	})
	queued, stashed := counts[0], counts[1]

	params := procmgr.CallbackParams{
		ID:           t.ID,
		Command:      t.Command,
		Path:         t.Path,
		Label:        t.Label,
		Group:        t.Group,
		QueuedCount:  queued,
		StashedCount: stashed,
	}

	if t.Status.Result != nil {
		params.Result = string(t.Status.Result.Kind)
		params.ExitCode = procmgr.FormatExitCode(*t.Status.Result)
	}
	if t.Status.EnqueuedAt != nil {
		params.EnqueuedAt = t.Status.EnqueuedAt.Format(timeLayout)
	}
	if t.Status.Start != nil {
		params.Start = t.Status.Start.Format(timeLayout)
	}
	if t.Status.End != nil {
		params.End = t.Status.End.Format(timeLayout)
	}

	if output, _, err := s.procs.ReadLastLines(t.ID, s.cfg.CallbackLogLines); err == nil {
		params.Output = string(output)
	}

	return params
}

const timeLayout = "2006-01-02T15:04:05Z07:00"
