// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package dispatch

import (
	"fmt"

	"github.com/Nukesor/pueue/internal/group"
	"github.com/Nukesor/pueue/internal/state"
	"github.com/Nukesor/pueue/internal/wire"
)

func (d *Dispatcher) handleGroupAdd(req *wire.GroupAddRequest) error {
	if req == nil {
		return fmt.Errorf("missing group_add request")
	}
	if req.Name == "" {
		return fmt.Errorf("group name must not be empty")
	}

	var rejectErr error
	d.store.Do(func(snapshot *state.Snapshot) {
		if _, ok := snapshot.Groups[req.Name]; ok {
			rejectErr = fmt.Errorf("group %q already exists", req.Name)
			return
		}
		snapshot.Groups[req.Name] = group.Group{
			Name:     req.Name,
			Parallel: req.Parallel,
			RunState: group.Running,
		}
	})
	return rejectErr
}

func (d *Dispatcher) handleGroupRemove(req *wire.GroupRemoveRequest) error {
	if req == nil {
		return fmt.Errorf("missing group_remove request")
	}
	if req.Name == group.Default {
		return fmt.Errorf("the default group cannot be removed")
	}

	var rejectErr error
	d.store.Do(func(snapshot *state.Snapshot) {
		if _, ok := snapshot.Groups[req.Name]; !ok {
			rejectErr = fmt.Errorf("group %q does not exist", req.Name)
			return
		}
		if n := state.GroupTaskCount(*snapshot, req.Name); n > 0 {
			rejectErr = fmt.Errorf("group %q still has %d task(s)", req.Name, n)
			return
		}
		delete(snapshot.Groups, req.Name)
	})
	return rejectErr
}

func (d *Dispatcher) handleGroupList(req *wire.GroupListRequest) (*wire.GroupListResponse, error) {
	resp := state.View(d.store, func(snapshot state.Snapshot) *wire.GroupListResponse {
		out := &wire.GroupListResponse{Groups: make(map[string]wire.GroupInfo, len(snapshot.Groups))}
		for name, g := range snapshot.Groups {
			out.Groups[name] = wire.GroupInfo{Parallel: g.Parallel, RunState: string(g.RunState)}
		}
		return out
	})
	return resp, nil
}

func (d *Dispatcher) handleParallel(req *wire.ParallelRequest) error {
	if req == nil {
		return fmt.Errorf("missing parallel request")
	}
	if req.Parallel < 0 {
		return fmt.Errorf("parallel must be >= 0")
	}

	var rejectErr error
	d.store.Do(func(snapshot *state.Snapshot) {
		g, ok := snapshot.Groups[req.Group]
		if !ok {
			rejectErr = fmt.Errorf("group %q does not exist", req.Group)
			return
		}
		g.Parallel = req.Parallel
		snapshot.Groups[req.Group] = g
	})
	if rejectErr != nil {
		return rejectErr
	}
	d.wake()
	return nil
}
