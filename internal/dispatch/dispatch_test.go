// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package dispatch

import (
	"io"
	"log/slog"
	"syscall"
	"testing"
	"time"

	"github.com/Nukesor/pueue/internal/config"
	"github.com/Nukesor/pueue/internal/group"
	"github.com/Nukesor/pueue/internal/procmgr"
	"github.com/Nukesor/pueue/internal/state"
	"github.com/Nukesor/pueue/internal/task"
	"github.com/Nukesor/pueue/internal/wire"
	"github.com/Nukesor/pueue/lib/clock"
)

func newTestDispatcher(t *testing.T) (*Dispatcher, *state.Store) {
	t.Helper()
	fake := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	cfg := config.Default()
	store := state.New(fake, cfg.DefaultParallelTasks)
	cfg.DataDir = t.TempDir()
	procs := procmgr.New(cfg.DataDir, []string{"sh", "-c", "{{.Command}}"}, nil, clock.Real())
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(store, procs, nil, cfg, fake, logger), store
}

func TestHandleAddAssignsIDAndQueues(t *testing.T) {
	d, store := newTestDispatcher(t)

	resp := d.Handle(wire.Request{Action: "add", Add: &wire.AddRequest{Command: "true", Path: "/tmp"}})
	if !resp.OK {
		t.Fatalf("add failed: %s", resp.Error)
	}

	var added wire.AddResponse
	if err := wire.DecodeData(resp.Data, &added); err != nil {
		t.Fatalf("decoding add response: %v", err)
	}
	if added.ID != 0 {
		t.Fatalf("id = %d, want 0", added.ID)
	}
	kind := state.View(store, func(snapshot state.Snapshot) task.StatusKind { return snapshot.Tasks[added.ID].Status.Kind })
	if kind != task.StatusQueued {
		t.Fatalf("status = %s, want Queued", kind)
	}
}

func TestHandleAddRejectsUnknownGroup(t *testing.T) {
	d, _ := newTestDispatcher(t)

	resp := d.Handle(wire.Request{Action: "add", Add: &wire.AddRequest{Command: "true", Group: "ghost"}})
	if resp.OK {
		t.Fatal("expected failure for unknown group")
	}
}

func TestHandleAddRejectsMissingDependency(t *testing.T) {
	d, _ := newTestDispatcher(t)

	resp := d.Handle(wire.Request{Action: "add", Add: &wire.AddRequest{
		Command:      "true",
		Dependencies: []task.ID{99},
	}})
	if resp.OK {
		t.Fatal("expected failure for dependency on a nonexistent task")
	}
}

func TestHandleAddWithDependencyQueuesBoth(t *testing.T) {
	d, store := newTestDispatcher(t)

	first := d.Handle(wire.Request{Action: "add", Add: &wire.AddRequest{Command: "true"}})
	var firstID wire.AddResponse
	_ = wire.DecodeData(first.Data, &firstID)

	second := d.Handle(wire.Request{Action: "add", Add: &wire.AddRequest{
		Command:      "true",
		Dependencies: []task.ID{firstID.ID},
	}})
	if !second.OK {
		t.Fatalf("add with dependency failed: %s", second.Error)
	}
	var secondID wire.AddResponse
	_ = wire.DecodeData(second.Data, &secondID)

	for _, id := range []task.ID{firstID.ID, secondID.ID} {
		kind := state.View(store, func(snapshot state.Snapshot) task.StatusKind { return snapshot.Tasks[id].Status.Kind })
		if kind != task.StatusQueued {
			t.Fatalf("task %d status = %s, want Queued", id, kind)
		}
	}
}

func TestHandleStatusFiltersByGroup(t *testing.T) {
	d, store := newTestDispatcher(t)
	store.Do(func(snapshot *state.Snapshot) {
		snapshot.Groups["build"] = group.Group{Name: "build", RunState: group.Running}
	})

	add := d.Handle(wire.Request{Action: "add", Add: &wire.AddRequest{Command: "true", Group: "build"}})
	if !add.OK {
		t.Fatalf("add failed: %s", add.Error)
	}

	resp := d.Handle(wire.Request{Action: "status", Status: &wire.StatusRequest{Group: "build"}})
	if !resp.OK {
		t.Fatalf("status failed: %s", resp.Error)
	}
	var status wire.StatusResponse
	if err := wire.DecodeData(resp.Data, &status); err != nil {
		t.Fatalf("decoding status: %v", err)
	}
	if len(status.Tasks) != 1 || status.Tasks[0].Group != "build" {
		t.Fatalf("tasks = %+v, want one task in group build", status.Tasks)
	}
	if _, ok := status.Groups["build"]; !ok {
		t.Fatal("expected build group in filtered status")
	}
	if _, ok := status.Groups[group.Default]; ok {
		t.Fatal("default group should be excluded by the filter")
	}
}

func TestHandleGroupAddAndParallel(t *testing.T) {
	d, _ := newTestDispatcher(t)

	add := d.Handle(wire.Request{Action: "group_add", GroupAdd: &wire.GroupAddRequest{Name: "build", Parallel: 2}})
	if !add.OK {
		t.Fatalf("group_add failed: %s", add.Error)
	}

	dup := d.Handle(wire.Request{Action: "group_add", GroupAdd: &wire.GroupAddRequest{Name: "build"}})
	if dup.OK {
		t.Fatal("expected duplicate group_add to fail")
	}

	par := d.Handle(wire.Request{Action: "parallel", Parallel: &wire.ParallelRequest{Group: "build", Parallel: 5}})
	if !par.OK {
		t.Fatalf("parallel failed: %s", par.Error)
	}

	list := d.Handle(wire.Request{Action: "group_list", GroupList: &wire.GroupListRequest{}})
	var groups wire.GroupListResponse
	if err := wire.DecodeData(list.Data, &groups); err != nil {
		t.Fatalf("decoding group_list: %v", err)
	}
	if groups.Groups["build"].Parallel != 5 {
		t.Fatalf("parallel = %d, want 5", groups.Groups["build"].Parallel)
	}
}

func TestHandleGroupRemoveRejectsNonEmptyGroup(t *testing.T) {
	d, _ := newTestDispatcher(t)
	d.Handle(wire.Request{Action: "group_add", GroupAdd: &wire.GroupAddRequest{Name: "build"}})
	d.Handle(wire.Request{Action: "add", Add: &wire.AddRequest{Command: "true", Group: "build"}})

	resp := d.Handle(wire.Request{Action: "group_remove", GroupRemove: &wire.GroupRemoveRequest{Name: "build"}})
	if resp.OK {
		t.Fatal("expected group_remove to fail while tasks remain")
	}
}

func TestHandleEnvSetAndUnset(t *testing.T) {
	d, store := newTestDispatcher(t)
	add := d.Handle(wire.Request{Action: "add", Add: &wire.AddRequest{Command: "true"}})
	var added wire.AddResponse
	_ = wire.DecodeData(add.Data, &added)

	resp := d.Handle(wire.Request{Action: "env", Env: &wire.EnvRequest{ID: added.ID, Op: wire.EnvSet, Name: "FOO", Value: "bar"}})
	if !resp.OK {
		t.Fatalf("env set failed: %s", resp.Error)
	}

	value := state.View(store, func(snapshot state.Snapshot) string {
		return snapshot.Tasks[added.ID].Environment["FOO"]
	})
	if value != "bar" {
		t.Fatalf("env FOO = %q, want bar", value)
	}

	resp = d.Handle(wire.Request{Action: "env", Env: &wire.EnvRequest{ID: added.ID, Op: wire.EnvUnset, Name: "FOO"}})
	if !resp.OK {
		t.Fatalf("env unset failed: %s", resp.Error)
	}
}

func TestHandleUnknownAction(t *testing.T) {
	d, _ := newTestDispatcher(t)
	resp := d.Handle(wire.Request{Action: "not-a-real-action"})
	if resp.OK {
		t.Fatal("expected unknown action to fail")
	}
}

func TestHandleSwitchMovesFullTaskContent(t *testing.T) {
	d, store := newTestDispatcher(t)
	store.Do(func(snapshot *state.Snapshot) {
		snapshot.Tasks[0] = task.Task{
			ID: 0, Command: "echo a", Path: "/a", Label: "first",
			Priority: 1, Group: group.Default, Status: task.NewQueued(time.Time{}),
		}
		snapshot.Tasks[1] = task.Task{
			ID: 1, Command: "echo b", Path: "/b", Label: "second",
			Priority: 2, Group: group.Default, Status: task.NewQueued(time.Time{}),
		}
	})

	resp := d.Handle(wire.Request{Action: "switch", Switch: &wire.SwitchRequest{A: 0, B: 1}})
	if !resp.OK {
		t.Fatalf("switch failed: %s", resp.Error)
	}

	state.View(store, func(snapshot state.Snapshot) struct{} {
		at0, at1 := snapshot.Tasks[0], snapshot.Tasks[1]
		if at0.Command != "echo b" || at0.Path != "/b" || at0.Label != "second" || at0.Priority != 2 {
			t.Fatalf("task 0 = %+v, want task B's content", at0)
		}
		if at1.Command != "echo a" || at1.Path != "/a" || at1.Label != "first" || at1.Priority != 1 {
			t.Fatalf("task 1 = %+v, want task A's content", at1)
		}
		if at0.ID != 0 || at1.ID != 1 {
			t.Fatalf("ID fields = %d, %d, want 0, 1 (must track the map key)", at0.ID, at1.ID)
		}
		return struct{}{}
	})
}

func TestHandleSwitchRejectsRunningTask(t *testing.T) {
	d, store := newTestDispatcher(t)
	store.Do(func(snapshot *state.Snapshot) {
		snapshot.Tasks[0] = task.Task{ID: 0, Command: "true", Group: group.Default, Status: task.NewRunning(time.Time{}, nil)}
		snapshot.Tasks[1] = task.Task{ID: 1, Command: "true", Group: group.Default, Status: task.NewQueued(time.Time{})}
	})

	resp := d.Handle(wire.Request{Action: "switch", Switch: &wire.SwitchRequest{A: 0, B: 1}})
	if resp.OK {
		t.Fatal("expected switch of a Running task to fail")
	}
}

func TestHandleShutdownGracefulPausesButLeavesRunningTasks(t *testing.T) {
	d, store := newTestDispatcher(t)
	start, err := d.procs.Spawn(task.Task{ID: 0, Command: "sleep 5", Path: t.TempDir()}, 0)
	if err != nil {
		t.Fatalf("spawning test task: %v", err)
	}
	store.Do(func(snapshot *state.Snapshot) {
		snapshot.Tasks[0] = task.Task{ID: 0, Command: "sleep 5", Group: group.Default, Status: task.NewRunning(start, nil)}
	})

	gotMode := make(chan wire.ShutdownMode, 1)
	d.Shutdown = func(mode wire.ShutdownMode) { gotMode <- mode }

	resp := d.Handle(wire.Request{Action: "shutdown", Shutdown: &wire.ShutdownRequest{Mode: wire.ShutdownGraceful}})
	if !resp.OK {
		t.Fatalf("shutdown failed: %s", resp.Error)
	}
	if mode := <-gotMode; mode != wire.ShutdownGraceful {
		t.Fatalf("Shutdown callback mode = %s, want graceful", mode)
	}
	if !d.procs.IsRunning(0) {
		t.Fatal("graceful shutdown must not kill running tasks")
	}
	if g := state.View(store, func(snapshot state.Snapshot) group.Group { return snapshot.Groups[group.Default] }); g.RunState != group.Paused {
		t.Fatalf("default group run state = %s, want Paused", g.RunState)
	}

	d.procs.Kill(0, syscall.SIGKILL, false)
}

func TestHandleShutdownImmediateKillsRunningTasks(t *testing.T) {
	d, store := newTestDispatcher(t)
	start, err := d.procs.Spawn(task.Task{ID: 0, Command: "sleep 5", Path: t.TempDir()}, 0)
	if err != nil {
		t.Fatalf("spawning test task: %v", err)
	}
	store.Do(func(snapshot *state.Snapshot) {
		snapshot.Tasks[0] = task.Task{ID: 0, Command: "sleep 5", Group: group.Default, Status: task.NewRunning(start, nil)}
	})

	gotMode := make(chan wire.ShutdownMode, 1)
	d.Shutdown = func(mode wire.ShutdownMode) { gotMode <- mode }

	resp := d.Handle(wire.Request{Action: "shutdown", Shutdown: &wire.ShutdownRequest{Mode: wire.ShutdownImmediate}})
	if !resp.OK {
		t.Fatalf("shutdown failed: %s", resp.Error)
	}
	if mode := <-gotMode; mode != wire.ShutdownImmediate {
		t.Fatalf("Shutdown callback mode = %s, want immediate", mode)
	}

	deadline := time.Now().Add(2 * time.Second)
	for d.procs.IsRunning(0) && time.Now().Before(deadline) {
		d.procs.TryReap(0)
		time.Sleep(10 * time.Millisecond)
	}
	if d.procs.IsRunning(0) {
		t.Fatal("immediate shutdown must kill running tasks")
	}
}
