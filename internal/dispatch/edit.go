// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package dispatch

import (
	"fmt"

	"github.com/Nukesor/pueue/internal/state"
	"github.com/Nukesor/pueue/internal/task"
	"github.com/Nukesor/pueue/internal/wire"
)

// handleEditBegin locks the given tasks (must be Queued or Stashed)
// and returns their current editable fields (spec.md §4.4).
func (d *Dispatcher) handleEditBegin(req *wire.EditBeginRequest) (*wire.EditBeginResponse, error) {
	if req == nil {
		return nil, fmt.Errorf("missing edit_begin request")
	}

	var fields []wire.EditableFields
	var rejectErr error

	d.store.Do(func(snapshot *state.Snapshot) {
		for _, id := range req.IDs {
			t, ok := snapshot.Tasks[id]
			if !ok {
				rejectErr = fmt.Errorf("task %d does not exist", id)
				return
			}
			if !switchable(t.Status.Kind) {
				rejectErr = fmt.Errorf("task %d must be Queued or Stashed to edit", id)
				return
			}
		}

		for _, id := range req.IDs {
			t := snapshot.Tasks[id]
			t.Status = task.NewLocked(t.Status)
			snapshot.Tasks[id] = t
			fields = append(fields, wire.EditableFields{
				ID:       id,
				Command:  t.Command,
				Path:     t.Path,
				Label:    t.Label,
				Priority: t.Priority,
			})
		}
	})
	if rejectErr != nil {
		return nil, rejectErr
	}
	return &wire.EditBeginResponse{Tasks: fields}, nil
}

// handleEditEnd applies edits to Locked tasks and returns them to
// their pre-lock status, or discards edits when Restore is set.
func (d *Dispatcher) handleEditEnd(req *wire.EditEndRequest) error {
	if req == nil {
		return fmt.Errorf("missing edit_end request")
	}

	var rejectErr error
	d.store.Do(func(snapshot *state.Snapshot) {
		for _, id := range req.IDs {
			t, ok := snapshot.Tasks[id]
			if !ok {
				rejectErr = fmt.Errorf("task %d does not exist", id)
				return
			}
			if t.Status.Kind != task.StatusLocked {
				rejectErr = fmt.Errorf("task %d is not locked for editing", id)
				return
			}
		}

		for _, id := range req.IDs {
			t := snapshot.Tasks[id]
			if !req.Restore {
				if req.EditCommand != nil {
					t.Command = *req.EditCommand
				}
				if req.EditPath != nil {
					t.Path = *req.EditPath
				}
				if req.EditLabel != nil {
					t.Label = *req.EditLabel
				}
				if req.EditPriority != nil {
					t.Priority = *req.EditPriority
				}
			}
			t.Status = t.Status.Restore()
			snapshot.Tasks[id] = t
		}
	})
	if rejectErr != nil {
		return rejectErr
	}
	d.wake()
	return nil
}

// handleEnv mutates a Queued/Stashed task's captured environment.
func (d *Dispatcher) handleEnv(req *wire.EnvRequest) error {
	if req == nil {
		return fmt.Errorf("missing env request")
	}

	var rejectErr error
	d.store.Do(func(snapshot *state.Snapshot) {
		t, ok := snapshot.Tasks[req.ID]
		if !ok {
			rejectErr = fmt.Errorf("task %d does not exist", req.ID)
			return
		}
		if !switchable(t.Status.Kind) {
			rejectErr = fmt.Errorf("task %d must be Queued or Stashed to edit its environment", req.ID)
			return
		}

		if t.Environment == nil {
			t.Environment = make(map[string]string)
		}
		switch req.Op {
		case wire.EnvSet:
			t.Environment[req.Name] = req.Value
		case wire.EnvUnset:
			delete(t.Environment, req.Name)
		default:
			rejectErr = fmt.Errorf("unknown env operation %q", req.Op)
			return
		}
		snapshot.Tasks[req.ID] = t
	})
	return rejectErr
}

// handleSend writes to a running task's stdin.
func (d *Dispatcher) handleSend(req *wire.SendRequest) error {
	if req == nil {
		return fmt.Errorf("missing send request")
	}
	running := state.View(d.store, func(snapshot state.Snapshot) bool {
		return snapshot.Tasks[req.ID].Status.Kind == task.StatusRunning
	})
	if !running {
		return fmt.Errorf("task %d is not running", req.ID)
	}
	return d.procs.Send(req.ID, req.Data)
}
