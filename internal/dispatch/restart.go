// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package dispatch

import (
	"fmt"
	"time"

	"github.com/Nukesor/pueue/internal/state"
	"github.com/Nukesor/pueue/internal/task"
	"github.com/Nukesor/pueue/internal/wire"
)

// handleRestart re-queues finished tasks, either reusing their id
// (InPlace) or allocating fresh ones, applying any edits atomically
// (spec.md §4.4).
func (d *Dispatcher) handleRestart(req *wire.RestartRequest) (*wire.RestartResponse, error) {
	if req == nil {
		return nil, fmt.Errorf("missing restart request")
	}

	var resultIDs []task.ID
	var rejectErr error

	d.store.Do(func(snapshot *state.Snapshot) {
		for _, id := range req.IDs {
			t, ok := snapshot.Tasks[id]
			if !ok {
				rejectErr = fmt.Errorf("task %d does not exist", id)
				return
			}
			if t.Status.Kind != task.StatusDone {
				rejectErr = fmt.Errorf("task %d has not finished", id)
				return
			}
		}

		now := d.clock.Now()
		for _, id := range req.IDs {
			original := snapshot.Tasks[id]
			restarted := original.Clone()
			applyRestartEdits(&restarted, req)

			var newStatus task.Status
			switch {
			case req.Stashed:
				newStatus = task.NewStashed(time.Time{})
			default:
				newStatus = task.NewQueued(now)
			}
			restarted.Status = newStatus
			restarted.ForceStarted = req.Immediate
			restarted.CreatedAt = now
			restarted.WorkerSlot = 0

			if req.InPlace {
				restarted.ID = id
				snapshot.Tasks[id] = restarted
				resultIDs = append(resultIDs, id)
				continue
			}

			newID := state.NextID(*snapshot)
			restarted.ID = newID
			snapshot.Tasks[newID] = restarted
			resultIDs = append(resultIDs, newID)
		}
	})
	if rejectErr != nil {
		return nil, rejectErr
	}

	d.wake()
	return &wire.RestartResponse{IDs: resultIDs}, nil
}

func applyRestartEdits(t *task.Task, req *wire.RestartRequest) {
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
