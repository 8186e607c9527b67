// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package dispatch

import (
	"fmt"
	"syscall"
	"time"

	"github.com/Nukesor/pueue/internal/group"
	"github.com/Nukesor/pueue/internal/state"
	"github.com/Nukesor/pueue/internal/task"
	"github.com/Nukesor/pueue/internal/wire"
)

func (d *Dispatcher) handleStash(req *wire.StashRequest) error {
	if req == nil {
		return fmt.Errorf("missing stash request")
	}

	d.store.Do(func(snapshot *state.Snapshot) {
		for _, id := range resolveSelection(*snapshot, req.Selection) {
			t := snapshot.Tasks[id]
			if t.Status.Kind != task.StatusQueued {
				continue
			}
			t.Status = task.NewStashed(time.Time{})
			snapshot.Tasks[id] = t
		}
	})
	return nil
}

func (d *Dispatcher) handleEnqueue(req *wire.EnqueueRequest) error {
	if req == nil {
		return fmt.Errorf("missing enqueue request")
	}

	d.store.Do(func(snapshot *state.Snapshot) {
		now := d.clock.Now()
		for _, id := range resolveSelection(*snapshot, req.Selection) {
			t := snapshot.Tasks[id]
			if t.Status.Kind != task.StatusStashed {
				continue
			}
			if req.EnqueueAt != nil {
				t.Status = task.NewStashed(*req.EnqueueAt)
			} else {
				t.Status = task.NewQueued(now)
			}
			snapshot.Tasks[id] = t
		}
	})
	d.wake()
	return nil
}

// handleStart resumes paused tasks, force-starts queued ones, or (when
// the selection names a group or every group) flips the group's run
// state to Running and resumes everything paused inside it (spec.md
// §4.4).
func (d *Dispatcher) handleStart(req *wire.StartRequest) error {
	if req == nil {
		return fmt.Errorf("missing start request")
	}

	var toResume []task.ID
	d.store.Do(func(snapshot *state.Snapshot) {
		if req.Selection.Group != "" || req.Selection.All {
			for _, name := range scopedGroups(*snapshot, req.Selection) {
				g := snapshot.Groups[name]
				g.RunState = group.Running
				snapshot.Groups[name] = g
			}
		}

		for _, id := range resolveSelection(*snapshot, req.Selection) {
			t := snapshot.Tasks[id]
			switch t.Status.Kind {
			case task.StatusPaused:
				toResume = append(toResume, id)
			case task.StatusQueued:
				if req.ForceStart {
					t.ForceStarted = true
					snapshot.Tasks[id] = t
				}
			}
		}
	})

	for _, id := range toResume {
		if err := d.procs.Resume(id); err != nil {
			d.logger.Warn("failed to resume task", "task", id, "error", err)
			continue
		}
		d.store.Do(func(snapshot *state.Snapshot) {
			t, ok := snapshot.Tasks[id]
			if !ok || t.Status.Start == nil {
				return
			}
			t.Status = task.NewRunning(*t.Status.Start, t.Status.EnqueuedAt)
			snapshot.Tasks[id] = t
		})
	}

	d.wake()
	return nil
}

// handlePause stops running tasks, or (when the selection names a
// group or every group) flips the group's run state to Paused and
// stops everything currently running inside it. WaitForChildren only
// flips the run state and leaves already-running children to finish
// on their own, grounded on original_source/daemon/task_handler.rs's
// pause's `wait` flag.
func (d *Dispatcher) handlePause(req *wire.PauseRequest) error {
	if req == nil {
		return fmt.Errorf("missing pause request")
	}

	var toPause []task.ID
	d.store.Do(func(snapshot *state.Snapshot) {
		if req.Selection.Group != "" || req.Selection.All {
			for _, name := range scopedGroups(*snapshot, req.Selection) {
				g := snapshot.Groups[name]
				g.RunState = group.Paused
				snapshot.Groups[name] = g
			}
		}

		if req.WaitForChildren {
			return
		}
		for _, id := range resolveSelection(*snapshot, req.Selection) {
			if snapshot.Tasks[id].Status.Kind == task.StatusRunning {
				toPause = append(toPause, id)
			}
		}
	})

	for _, id := range toPause {
		if err := d.procs.Pause(id); err != nil {
			d.logger.Warn("failed to pause task", "task", id, "error", err)
			continue
		}
		d.store.Do(func(snapshot *state.Snapshot) {
			t, ok := snapshot.Tasks[id]
			if !ok || t.Status.Start == nil {
				return
			}
			enqueuedAt := t.Status.EnqueuedAt
			t.Status = task.NewPaused(*t.Status.Start)
			t.Status.EnqueuedAt = enqueuedAt
			snapshot.Tasks[id] = t
		})
	}
	return nil
}

func (d *Dispatcher) handleKill(req *wire.KillRequest) error {
	if req == nil {
		return fmt.Errorf("missing kill request")
	}
	sig := syscall.SIGTERM
	if req.Signal != 0 {
		sig = syscall.Signal(req.Signal)
	}

	type target struct {
		id        task.ID
		wasPaused bool
	}
	var targets []target
	d.store.Do(func(snapshot *state.Snapshot) {
		for _, id := range resolveSelection(*snapshot, req.Selection) {
			t := snapshot.Tasks[id]
			if t.InFlight() {
				targets = append(targets, target{id: id, wasPaused: t.Status.Kind == task.StatusPaused})
			}
		}
	})

	for _, tg := range targets {
		if err := d.procs.Kill(tg.id, sig, tg.wasPaused); err != nil {
			d.logger.Warn("failed to kill task", "task", tg.id, "error", err)
		}
	}
	d.wake()
	return nil
}

// scopedGroups returns the group names a Group/All selection applies
// to: either every group, or the single named one (if it exists).
func scopedGroups(snapshot state.Snapshot, sel wire.Selection) []string {
	if sel.All {
		names := make([]string, 0, len(snapshot.Groups))
		for name := range snapshot.Groups {
			names = append(names, name)
		}
		return names
	}
	if _, ok := snapshot.Groups[sel.Group]; ok {
		return []string{sel.Group}
	}
	return nil
}
