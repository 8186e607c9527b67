// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package dispatch

import (
	"fmt"

	"github.com/Nukesor/pueue/internal/state"
	"github.com/Nukesor/pueue/internal/task"
	"github.com/Nukesor/pueue/internal/wire"
)

// handleLog reads the selected tasks' log files outside the state
// lock — disk I/O must never happen while the store's mutex is held
// (spec.md §5).
func (d *Dispatcher) handleLog(req *wire.LogRequest) (*wire.LogResponse, error) {
	if req == nil {
		return nil, fmt.Errorf("missing log request")
	}

	ids := state.View(d.store, func(snapshot state.Snapshot) []task.ID {
		return resolveSelection(snapshot, req.Selection)
	})

	resp := &wire.LogResponse{}
	for _, id := range ids {
		entry := wire.LogEntry{ID: id}

		if req.Full {
			data, err := d.procs.ReadLog(id)
			if err != nil {
				entry.Error = err.Error()
			} else {
				entry.Output = data
			}
		} else {
			data, truncated, err := d.procs.ReadLastLines(id, req.Lines)
			if err != nil {
				entry.Error = err.Error()
			} else {
				entry.Output = data
				entry.Truncated = truncated
			}
		}
		resp.Entries = append(resp.Entries, entry)
	}
	return resp, nil
}

// handleStatus returns a full snapshot of tasks and groups, optionally
// filtered to a single group.
func (d *Dispatcher) handleStatus(req *wire.StatusRequest) (*wire.StatusResponse, error) {
	groupFilter := ""
	if req != nil {
		groupFilter = req.Group
	}

	resp := state.View(d.store, func(snapshot state.Snapshot) *wire.StatusResponse {
		out := &wire.StatusResponse{Groups: make(map[string]wire.GroupInfo, len(snapshot.Groups))}
		for name, g := range snapshot.Groups {
			if groupFilter != "" && name != groupFilter {
				continue
			}
			out.Groups[name] = wire.GroupInfo{Parallel: g.Parallel, RunState: string(g.RunState)}
		}
		for _, id := range state.SortedTaskIDs(snapshot) {
			t := snapshot.Tasks[id]
			if groupFilter != "" && t.Group != groupFilter {
				continue
			}
			out.Tasks = append(out.Tasks, t)
		}
		return out
	})
	return resp, nil
}

// handleWait blocks the response until every selected task reaches
// TargetStatus (Done by default), or returns immediately if the
// selection is already empty or already satisfied. This is the one
// handler that legitimately holds a connection open for a long time;
// it never holds the store's lock while waiting (state.WaitUntil
// re-acquires it only to check the condition).
func (d *Dispatcher) handleWait(req *wire.WaitRequest) error {
	if req == nil {
		return fmt.Errorf("missing wait request")
	}
	target := req.TargetStatus
	if target == "" {
		target = task.StatusDone
	}

	stop := make(chan struct{})
	defer close(stop)

	d.store.WaitUntil(stop, func(snapshot state.Snapshot) bool {
		for _, id := range resolveSelection(snapshot, req.Selection) {
			if snapshot.Tasks[id].Status.Kind != target {
				return false
			}
		}
		return true
	})
	return nil
}
