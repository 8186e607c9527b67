// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package dispatch maps each wire.Request action onto synchronous
// mutations of the state store and process handler, the daemon's
// request-handling half of spec.md §4.4. Every handler runs to
// completion inside the one request/response cycle its connection
// gets (spec.md §6); handlers that must touch procmgr do so outside
// the store's lock, the same discipline internal/scheduler follows.
package dispatch

import (
	"fmt"
	"log/slog"

	"github.com/Nukesor/pueue/internal/config"
	"github.com/Nukesor/pueue/internal/procmgr"
	"github.com/Nukesor/pueue/internal/scheduler"
	"github.com/Nukesor/pueue/internal/state"
	"github.com/Nukesor/pueue/internal/task"
	"github.com/Nukesor/pueue/internal/wire"
	"github.com/Nukesor/pueue/lib/clock"
)

// Dispatcher holds everything a request handler needs to read and
// mutate daemon state.
type Dispatcher struct {
	store     *state.Store
	procs     *procmgr.Handler
	scheduler *scheduler.Scheduler
	cfg       *config.Config
	clock     clock.Clock
	logger    *slog.Logger

	// Shutdown is invoked for a ShutdownRequest, once the response has
	// been prepared. Wired up by cmd/pueued to stop the listener,
	// scheduler, and process.
	Shutdown func(mode wire.ShutdownMode)
}

// New returns a Dispatcher backed by the given store, process handler,
// and scheduler (used only for Wake, to react promptly to mutations
// made here instead of waiting for the next fixed-cadence tick).
func New(store *state.Store, procs *procmgr.Handler, sched *scheduler.Scheduler, cfg *config.Config, clk clock.Clock, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		store:     store,
		procs:     procs,
		scheduler: sched,
		cfg:       cfg,
		clock:     clk,
		logger:    logger,
	}
}

// Handle routes req to its handler and returns the wire response.
// Handler errors are turned into {ok: false, error: "..."} responses;
// nothing here panics on a malformed request, since the connection
// that sent it stays open only for this one cycle.
func (d *Dispatcher) Handle(req wire.Request) wire.Response {
	result, err := d.dispatch(req)
	if err != nil {
		return wire.Response{OK: false, Error: err.Error()}
	}
	if result == nil {
		return wire.Response{OK: true}
	}
	data, err := wire.EncodeData(result)
	if err != nil {
		return wire.Response{OK: false, Error: fmt.Sprintf("encoding response: %v", err)}
	}
	return wire.Response{OK: true, Data: data}
}

func (d *Dispatcher) dispatch(req wire.Request) (any, error) {
	switch req.Action {
	case "add":
		return d.handleAdd(req.Add)
	case "remove":
		return nil, d.handleRemove(req.Remove)
	case "switch":
		return nil, d.handleSwitch(req.Switch)
	case "stash":
		return nil, d.handleStash(req.Stash)
	case "enqueue":
		return nil, d.handleEnqueue(req.Enqueue)
	case "start":
		return nil, d.handleStart(req.Start)
	case "pause":
		return nil, d.handlePause(req.Pause)
	case "kill":
		return nil, d.handleKill(req.Kill)
	case "restart":
		return d.handleRestart(req.Restart)
	case "edit_begin":
		return d.handleEditBegin(req.EditBegin)
	case "edit_end":
		return nil, d.handleEditEnd(req.EditEnd)
	case "send":
		return nil, d.handleSend(req.Send)
	case "log":
		return d.handleLog(req.Log)
	case "status":
		return d.handleStatus(req.Status)
	case "group_add":
		return nil, d.handleGroupAdd(req.GroupAdd)
	case "group_remove":
		return nil, d.handleGroupRemove(req.GroupRemove)
	case "group_list":
		return d.handleGroupList(req.GroupList)
	case "parallel":
		return nil, d.handleParallel(req.Parallel)
	case "clean":
		return nil, d.handleClean(req.Clean)
	case "reset":
		return nil, d.handleReset(req.Reset)
	case "env":
		return nil, d.handleEnv(req.Env)
	case "wait":
		return nil, d.handleWait(req.Wait)
	case "shutdown":
		return nil, d.handleShutdown(req.Shutdown)
	default:
		return nil, fmt.Errorf("unknown action %q", req.Action)
	}
}

// resolveSelection expands a wire.Selection against snapshot into a
// concrete, stable-ordered list of task ids.
func resolveSelection(snapshot state.Snapshot, sel wire.Selection) []task.ID {
	if sel.All {
		return state.SortedTaskIDs(snapshot)
	}
	if sel.Group != "" {
		var ids []task.ID
		for _, id := range state.SortedTaskIDs(snapshot) {
			if snapshot.Tasks[id].Group == sel.Group {
				ids = append(ids, id)
			}
		}
		return ids
	}
	var ids []task.ID
	for _, id := range sel.IDs {
		if _, ok := snapshot.Tasks[id]; ok {
			ids = append(ids, id)
		}
	}
	return ids
}

// wake pings the scheduler so a mutation made here is acted on without
// waiting for the next fixed-cadence tick. Safe to call with a nil
// scheduler (tests that don't run one).
func (d *Dispatcher) wake() {
	if d.scheduler != nil {
		d.scheduler.Wake()
	}
}
