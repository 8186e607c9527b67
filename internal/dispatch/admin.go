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

// handleClean drops Done tasks matching the filter and deletes their
// logs.
func (d *Dispatcher) handleClean(req *wire.CleanRequest) error {
	if req == nil {
		req = &wire.CleanRequest{}
	}

	var removed []task.ID
	d.store.Do(func(snapshot *state.Snapshot) {
		for _, id := range state.SortedTaskIDs(*snapshot) {
			t := snapshot.Tasks[id]
			if t.Status.Kind != task.StatusDone {
				continue
			}
			if req.Group != "" && t.Group != req.Group {
				continue
			}
			if req.SuccessfulOnly && (t.Status.Result == nil || !t.Status.Result.Success()) {
				continue
			}
			delete(snapshot.Tasks, id)
			removed = append(removed, id)
		}
	})

	for _, id := range removed {
		if err := d.procs.RemoveLog(id); err != nil {
			d.logger.Warn("failed to remove log during clean", "task", id, "error", err)
		}
	}
	return nil
}

// handleReset kills every running task in scope, then removes every
// task and log in scope. Groups themselves are preserved, but a
// whole-daemon reset also pauses every group first, matching
// original_source/daemon/task_handler.rs's kill-all behavior
// (self.change_running(false) before killing) — spec.md §4.4.
func (d *Dispatcher) handleReset(req *wire.ResetRequest) error {
	if req == nil {
		req = &wire.ResetRequest{}
	}

	inScope := func(groupName string) bool {
		if req.All {
			return true
		}
		for _, name := range req.Groups {
			if name == groupName {
				return true
			}
		}
		return false
	}

	var toKill []task.ID
	var toRemove []task.ID
	d.store.Do(func(snapshot *state.Snapshot) {
		if req.All {
			for name, g := range snapshot.Groups {
				g.RunState = group.Paused
				snapshot.Groups[name] = g
			}
		}
		for _, id := range state.SortedTaskIDs(*snapshot) {
			t := snapshot.Tasks[id]
			if !inScope(t.Group) {
				continue
			}
			if t.InFlight() {
				toKill = append(toKill, id)
			}
			toRemove = append(toRemove, id)
		}
	})

	for _, id := range toKill {
		if err := d.procs.Kill(id, syscall.SIGKILL, false); err != nil {
			d.logger.Warn("failed to kill task during reset", "task", id, "error", err)
		}
	}

	// Give killed processes a moment (up to two seconds in total) to
	// exit and reap them here, because once their tasks are deleted the
	// scheduler no longer calls TryReap for those ids; a process still
	// alive after the bound keeps its procmgr handle.
	deadline := time.Now().Add(2 * time.Second)
	for _, id := range toKill {
		for d.procs.IsRunning(id) && time.Now().Before(deadline) {
			if _, ok := d.procs.TryReap(id); ok {
				break
			}
			time.Sleep(10 * time.Millisecond)
		}
	}
	d.store.Do(func(snapshot *state.Snapshot) {
		for _, id := range toRemove {
			delete(snapshot.Tasks, id)
		}
	})
	for _, id := range toRemove {
		if err := d.procs.RemoveLog(id); err != nil {
			d.logger.Warn("failed to remove log during reset", "task", id, "error", err)
		}
	}

	d.wake()
	return nil
}

// handleShutdown pauses every group so the scheduler starts nothing
// new, then hands off to the Shutdown callback to drain and exit. A
// Graceful shutdown stops there: drainTasks in main.go waits for
// in-flight tasks to finish naturally. An Immediate shutdown also
// kills every in-flight task with SIGTERM before handing off, matching
// spec.md §4.4's split between the two modes.
func (d *Dispatcher) handleShutdown(req *wire.ShutdownRequest) error {
	mode := wire.ShutdownGraceful
	if req != nil && req.Mode != "" {
		mode = req.Mode
	}
	if d.Shutdown == nil {
		return fmt.Errorf("shutdown is not wired up")
	}

	var toKill []task.ID
	d.store.Do(func(snapshot *state.Snapshot) {
		for name, g := range snapshot.Groups {
			g.RunState = group.Paused
			snapshot.Groups[name] = g
		}
		if mode != wire.ShutdownImmediate {
			return
		}
		for id, t := range snapshot.Tasks {
			if t.InFlight() {
				toKill = append(toKill, id)
			}
		}
	})
	for _, id := range toKill {
		if err := d.procs.Kill(id, syscall.SIGTERM, false); err != nil {
			d.logger.Warn("failed to kill task during shutdown", "task", id, "error", err)
		}
	}

	go d.Shutdown(mode)
	return nil
}
