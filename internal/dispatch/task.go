// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package dispatch

import (
	"fmt"
	"time"

	"github.com/Nukesor/pueue/internal/group"
	"github.com/Nukesor/pueue/internal/state"
	"github.com/Nukesor/pueue/internal/task"
	"github.com/Nukesor/pueue/internal/wire"
)

func (d *Dispatcher) handleAdd(req *wire.AddRequest) (*wire.AddResponse, error) {
	if req == nil {
		return nil, fmt.Errorf("missing add request")
	}
	if req.Command == "" {
		return nil, fmt.Errorf("command must not be empty")
	}

	groupName := req.Group
	if groupName == "" {
		groupName = group.Default
	}

	var id task.ID
	var rejectErr error

	d.store.Do(func(snapshot *state.Snapshot) {
		if _, ok := snapshot.Groups[groupName]; !ok {
			rejectErr = fmt.Errorf("group %q does not exist", groupName)
			return
		}
		if err := state.ValidateDependencies(*snapshot, req.Dependencies, task.ID(-1)); err != nil {
			rejectErr = err
			return
		}

		id = state.NextID(*snapshot)
		now := d.clock.Now()

		var status task.Status
		switch {
		case req.EnqueueAt != nil:
			status = task.NewStashed(*req.EnqueueAt)
		case req.Stashed:
			status = task.NewStashed(time.Time{}) // held indefinitely
		default:
			status = task.NewQueued(now)
		}

		snapshot.Tasks[id] = task.Task{
			ID:           id,
			Command:      req.Command,
			Path:         req.Path,
			Environment:  req.Environment,
			Group:        groupName,
			Label:        req.Label,
			Dependencies: req.Dependencies,
			Priority:     req.Priority,
			CreatedAt:    now,
			Status:       status,
			ForceStarted: req.Immediate,
		}
	})
	if rejectErr != nil {
		return nil, rejectErr
	}

	d.wake()
	return &wire.AddResponse{ID: id}, nil
}

func (d *Dispatcher) handleRemove(req *wire.RemoveRequest) error {
	if req == nil {
		return fmt.Errorf("missing remove request")
	}

	var rejectErr error
	d.store.Do(func(snapshot *state.Snapshot) {
		for _, id := range req.IDs {
			t, ok := snapshot.Tasks[id]
			if !ok {
				rejectErr = fmt.Errorf("task %d does not exist", id)
				return
			}
			if t.InFlight() {
				rejectErr = fmt.Errorf("task %d is running; kill it before removing", id)
				return
			}
			if deps := state.Dependents(*snapshot, id); len(deps) > 0 {
				rejectErr = fmt.Errorf("task %d is a dependency of %v", id, deps)
				return
			}
		}
		for _, id := range req.IDs {
			delete(snapshot.Tasks, id)
		}
	})
	if rejectErr != nil {
		return rejectErr
	}

	for _, id := range req.IDs {
		if err := d.procs.RemoveLog(id); err != nil {
			d.logger.Warn("failed to remove log on task removal", "task", id, "error", err)
		}
	}
	return nil
}

func (d *Dispatcher) handleSwitch(req *wire.SwitchRequest) error {
	if req == nil {
		return fmt.Errorf("missing switch request")
	}

	var rejectErr error
	d.store.Do(func(snapshot *state.Snapshot) {
		a, ok := snapshot.Tasks[req.A]
		if !ok {
			rejectErr = fmt.Errorf("task %d does not exist", req.A)
			return
		}
		b, ok := snapshot.Tasks[req.B]
		if !ok {
			rejectErr = fmt.Errorf("task %d does not exist", req.B)
			return
		}
		if !switchable(a.Status.Kind) || !switchable(b.Status.Kind) {
			rejectErr = fmt.Errorf("both tasks must be Queued or Stashed to switch")
			return
		}

		a.ID, b.ID = req.B, req.A
		snapshot.Tasks[req.A] = b
		snapshot.Tasks[req.B] = a
		state.RewriteDependencies(snapshot, req.A, req.B)
	})
	return rejectErr
}

func switchable(kind task.StatusKind) bool {
	return kind == task.StatusQueued || kind == task.StatusStashed
}
