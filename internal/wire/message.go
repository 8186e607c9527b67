// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import (
	"time"

	"github.com/Nukesor/pueue/internal/task"
)

// Selection identifies which tasks a request applies to: an explicit
// id list, a whole group, or every task (spec.md §4.4).
type Selection struct {
	IDs   []task.ID `cbor:"ids,omitempty"`
	Group string    `cbor:"group,omitempty"`
	All   bool      `cbor:"all,omitempty"`
}

// Request is the envelope for every client request. Action selects
// which field is populated; exactly one should be non-nil. Mirrors the
// action-tagged dispatch in lib/service/socket.go, adapted to a single
// framed request per connection instead of a long-lived handler table.
type Request struct {
	Action string `cbor:"action"`

	Add         *AddRequest         `cbor:"add,omitempty"`
	Remove      *RemoveRequest      `cbor:"remove,omitempty"`
	Switch      *SwitchRequest      `cbor:"switch,omitempty"`
	Stash       *StashRequest       `cbor:"stash,omitempty"`
	Enqueue     *EnqueueRequest     `cbor:"enqueue,omitempty"`
	Start       *StartRequest       `cbor:"start,omitempty"`
	Pause       *PauseRequest       `cbor:"pause,omitempty"`
	Kill        *KillRequest        `cbor:"kill,omitempty"`
	Restart     *RestartRequest     `cbor:"restart,omitempty"`
	EditBegin   *EditBeginRequest   `cbor:"edit_begin,omitempty"`
	EditEnd     *EditEndRequest     `cbor:"edit_end,omitempty"`
	Send        *SendRequest        `cbor:"send,omitempty"`
	Log         *LogRequest         `cbor:"log,omitempty"`
	Status      *StatusRequest      `cbor:"status,omitempty"`
	GroupAdd    *GroupAddRequest    `cbor:"group_add,omitempty"`
	GroupRemove *GroupRemoveRequest `cbor:"group_remove,omitempty"`
	GroupList   *GroupListRequest   `cbor:"group_list,omitempty"`
	Parallel    *ParallelRequest    `cbor:"parallel,omitempty"`
	Clean       *CleanRequest       `cbor:"clean,omitempty"`
	Reset       *ResetRequest       `cbor:"reset,omitempty"`
	Env         *EnvRequest         `cbor:"env,omitempty"`
	Wait        *WaitRequest        `cbor:"wait,omitempty"`
	Shutdown    *ShutdownRequest    `cbor:"shutdown,omitempty"`
}

// AddRequest creates a new task (spec.md §4.4).
type AddRequest struct {
	Command      string            `cbor:"command"`
	Path         string            `cbor:"path"`
	Environment  map[string]string `cbor:"environment"`
	Group        string            `cbor:"group,omitempty"`
	Label        string            `cbor:"label,omitempty"`
	Dependencies []task.ID         `cbor:"dependencies,omitempty"`
	Priority     int               `cbor:"priority,omitempty"`
	EnqueueAt    *time.Time        `cbor:"enqueue_at,omitempty"`
	Stashed      bool              `cbor:"stashed,omitempty"`
	Immediate    bool              `cbor:"immediate,omitempty"`
}

// AddResponse carries the id the daemon assigned to the new task.
type AddResponse struct {
	ID task.ID `cbor:"id"`
}

// RemoveRequest deletes non-running, non-paused tasks and their logs.
type RemoveRequest struct {
	IDs []task.ID `cbor:"ids"`
}

// SwitchRequest swaps the queue position and rewrites dependency lists
// for two Queued or Stashed tasks.
type SwitchRequest struct {
	A task.ID `cbor:"a"`
	B task.ID `cbor:"b"`
}

// StashRequest moves tasks from Queued to Stashed.
type StashRequest struct {
	Selection Selection `cbor:"selection"`
}

// EnqueueRequest moves tasks from Stashed to Queued, optionally
// scheduling a future promotion time.
type EnqueueRequest struct {
	Selection Selection  `cbor:"selection"`
	EnqueueAt *time.Time `cbor:"enqueue_at,omitempty"`
}

// StartRequest resumes tasks, or flips a group/all to the Running run
// state and resumes their children. ForceStart bypasses the cap and
// group-paused state for a single task id.
type StartRequest struct {
	Selection  Selection `cbor:"selection"`
	ForceStart bool      `cbor:"force_start,omitempty"`
}

// PauseRequest stops tasks, or flips a group/all to the Paused run
// state and stops their running children. WaitForChildren only flips
// the run state, leaving already-running children to finish on their
// own instead of signaling them to stop.
type PauseRequest struct {
	Selection       Selection `cbor:"selection"`
	WaitForChildren bool      `cbor:"wait_for_children,omitempty"`
}

// KillRequest sends a signal (default: terminate) to the selected
// tasks' process groups.
type KillRequest struct {
	Selection Selection `cbor:"selection"`
	Signal    int       `cbor:"signal,omitempty"`
}

// RestartRequest re-runs finished tasks, either in place or as clones,
// with optional edits applied atomically.
type RestartRequest struct {
	IDs       []task.ID `cbor:"ids"`
	InPlace   bool      `cbor:"in_place,omitempty"`
	Stashed   bool      `cbor:"stashed,omitempty"`
	Immediate bool      `cbor:"immediate,omitempty"`

	EditCommand  *string `cbor:"edit_command,omitempty"`
	EditPath     *string `cbor:"edit_path,omitempty"`
	EditLabel    *string `cbor:"edit_label,omitempty"`
	EditPriority *int    `cbor:"edit_priority,omitempty"`
}

// RestartResponse carries the ids of the tasks that will run: the same
// ids when InPlace, freshly allocated ids otherwise.
type RestartResponse struct {
	IDs []task.ID `cbor:"ids"`
}

// EditBeginRequest locks tasks for editing and returns their current
// editable fields.
type EditBeginRequest struct {
	IDs []task.ID `cbor:"ids"`
}

// EditableFields is a task's command/path/label/priority, the subset
// editable via EditBegin/EditEnd and Restart.
type EditableFields struct {
	ID       task.ID `cbor:"id"`
	Command  string  `cbor:"command"`
	Path     string  `cbor:"path"`
	Label    string  `cbor:"label,omitempty"`
	Priority int     `cbor:"priority"`
}

// EditBeginResponse returns the editable fields of every task just
// locked, in request order.
type EditBeginResponse struct {
	Tasks []EditableFields `cbor:"tasks"`
}

// EditEndRequest applies edits to Locked tasks and returns them to
// their prior status, or restores them unchanged when Restore is set.
type EditEndRequest struct {
	IDs     []task.ID `cbor:"ids"`
	Restore bool      `cbor:"restore,omitempty"`

	EditCommand  *string `cbor:"edit_command,omitempty"`
	EditPath     *string `cbor:"edit_path,omitempty"`
	EditLabel    *string `cbor:"edit_label,omitempty"`
	EditPriority *int    `cbor:"edit_priority,omitempty"`
}

// SendRequest writes bytes to a Running task's stdin.
type SendRequest struct {
	ID   task.ID `cbor:"id"`
	Data []byte  `cbor:"data"`
}

// LogRequest reads task log files, optionally truncated to the last
// Lines lines.
type LogRequest struct {
	Selection Selection `cbor:"selection"`
	Lines     int       `cbor:"lines,omitempty"`
	Full      bool      `cbor:"full,omitempty"`
}

// LogEntry is one task's captured output, returned for a LogRequest.
type LogEntry struct {
	ID        task.ID `cbor:"id"`
	Output    []byte  `cbor:"output"`
	Truncated bool    `cbor:"truncated,omitempty"`
	Error     string  `cbor:"error,omitempty"`
}

// LogResponse carries one LogEntry per task the selection resolved to.
type LogResponse struct {
	Entries []LogEntry `cbor:"entries"`
}

// StatusRequest returns the full daemon state, optionally filtered by
// group.
type StatusRequest struct {
	Group string `cbor:"group,omitempty"`
}

// StatusResponse mirrors state.Snapshot on the wire, decoupled from
// the internal type so internal/state can change independently of the
// protocol.
type StatusResponse struct {
	Tasks  []task.Task          `cbor:"tasks"`
	Groups map[string]GroupInfo `cbor:"groups"`
}

// GroupInfo is a group's wire representation.
type GroupInfo struct {
	Parallel int    `cbor:"parallel"`
	RunState string `cbor:"run_state"`
}

// GroupAddRequest creates a new group.
type GroupAddRequest struct {
	Name     string `cbor:"name"`
	Parallel int    `cbor:"parallel,omitempty"`
}

// GroupRemoveRequest deletes an empty group.
type GroupRemoveRequest struct {
	Name string `cbor:"name"`
}

// GroupListRequest has no fields; it returns every group.
type GroupListRequest struct{}

// GroupListResponse carries every group's current configuration.
type GroupListResponse struct {
	Groups map[string]GroupInfo `cbor:"groups"`
}

// ParallelRequest sets a group's parallelism cap.
type ParallelRequest struct {
	Group    string `cbor:"group"`
	Parallel int    `cbor:"parallel"`
}

// CleanRequest drops Done tasks matching the filter and deletes their
// logs.
type CleanRequest struct {
	Group          string `cbor:"group,omitempty"`
	SuccessfulOnly bool   `cbor:"successful_only,omitempty"`
}

// ResetRequest kills running tasks in scope, then removes all tasks
// and logs in scope. Groups themselves are preserved.
type ResetRequest struct {
	Groups []string `cbor:"groups,omitempty"`
	All    bool     `cbor:"all,omitempty"`
}

// EnvOp is the mutation EnvRequest applies.
type EnvOp string

const (
	EnvSet   EnvOp = "set"
	EnvUnset EnvOp = "unset"
)

// EnvRequest mutates a Queued/Stashed task's captured environment.
type EnvRequest struct {
	ID    task.ID `cbor:"id"`
	Op    EnvOp   `cbor:"op"`
	Name  string  `cbor:"name"`
	Value string  `cbor:"value,omitempty"`
}

// WaitRequest blocks the response until every task in Selection
// reaches TargetStatus (Done by default).
type WaitRequest struct {
	Selection    Selection       `cbor:"selection"`
	TargetStatus task.StatusKind `cbor:"target_status,omitempty"`
}

// ShutdownMode selects how the daemon tears itself down.
type ShutdownMode string

const (
	ShutdownGraceful  ShutdownMode = "graceful"
	ShutdownImmediate ShutdownMode = "immediate"
)

// ShutdownRequest asks the daemon to exit.
type ShutdownRequest struct {
	Mode ShutdownMode `cbor:"mode"`
}

// Response is the envelope for every reply. Exactly one of Error or
// Data (depending on the request) is meaningful on success; mirrors
// lib/service.Response's {ok, error, data} shape.
type Response struct {
	OK    bool   `cbor:"ok"`
	Error string `cbor:"error,omitempty"`
	Data  []byte `cbor:"data,omitempty"`
}
