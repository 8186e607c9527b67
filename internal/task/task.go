// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package task defines the daemon's task data model: the Task struct,
// its status variants, and the terminal Result variants nested inside
// Done. Status is a tagged union — each variant carries exactly the
// fields that make sense for that state, so "Running with no start
// time" or "Done with no result" cannot be represented.
package task

import "time"

// ID uniquely identifies a task. IDs are small non-negative integers,
// minimally reused: the state store always picks the smallest id not
// currently in use (see internal/state).
type ID int

// StatusKind tags which variant of Status is populated.
type StatusKind string

const (
	StatusQueued  StatusKind = "Queued"
	StatusStashed StatusKind = "Stashed"
	StatusLocked  StatusKind = "Locked"
	StatusRunning StatusKind = "Running"
	StatusPaused  StatusKind = "Paused"
	StatusDone    StatusKind = "Done"
)

// ResultKind tags which variant of Result populated a Done status.
type ResultKind string

const (
	ResultSuccess          ResultKind = "Success"
	ResultFailed           ResultKind = "Failed"
	ResultFailedToStart    ResultKind = "FailedToStart"
	ResultKilled           ResultKind = "Killed"
	ResultErrored          ResultKind = "Errored"
	ResultDependencyFailed ResultKind = "DependencyFailed"
)

// Result is the outcome of a terminated task. Only meaningful inside a
// Done status. ExitCode is populated for Failed, Reason for
// FailedToStart and Errored; the other kinds carry neither.
type Result struct {
	Kind     ResultKind `cbor:"kind"`
	ExitCode int        `cbor:"exit_code,omitempty"`
	Reason   string     `cbor:"reason,omitempty"`
}

// Success reports whether the result represents a task that completed
// normally with exit code 0. Used by dependency resolution (§4.3):
// only Success satisfies a dependency.
func (r Result) Success() bool {
	return r.Kind == ResultSuccess
}

// Status is the tagged union of a task's scheduling state. Construct
// one with the New* helpers below rather than the struct literal, so
// that invalid field combinations can't be assembled by accident.
type Status struct {
	Kind StatusKind `cbor:"kind"`

	// EnqueuedAt is set once a task is Queued (or Stashed with a
	// scheduled promotion time) and carries forward unchanged through
	// Running and Done, so it remains available for status display and
	// callback rendering after the task starts.
	EnqueuedAt *time.Time `cbor:"enqueued_at,omitempty"`

	// Start is set for Running, Paused, and Done.
	Start *time.Time `cbor:"start,omitempty"`

	// End and Result are set only for Done.
	End    *time.Time `cbor:"end,omitempty"`
	Result *Result    `cbor:"result,omitempty"`

	// PriorKind records the status a Locked task should revert to on
	// edit-end: StatusQueued or StatusStashed. Only meaningful when
	// Kind == StatusLocked.
	PriorKind StatusKind `cbor:"prior_kind,omitempty"`
	// PriorEnqueuedAt is the enqueue time to restore alongside
	// PriorKind, mirroring the Queued/Stashed field it replaces.
	PriorEnqueuedAt *time.Time `cbor:"prior_enqueued_at,omitempty"`
}

// NewQueued returns a Queued status enqueued at the given time.
func NewQueued(enqueuedAt time.Time) Status {
	t := enqueuedAt
	return Status{Kind: StatusQueued, EnqueuedAt: &t}
}

// NewStashed returns a Stashed status. If enqueueAt is the zero value,
// the task is held indefinitely until explicitly enqueued.
func NewStashed(enqueueAt time.Time) Status {
	if enqueueAt.IsZero() {
		return Status{Kind: StatusStashed}
	}
	t := enqueueAt
	return Status{Kind: StatusStashed, EnqueuedAt: &t}
}

// NewLocked returns a Locked status that remembers the status to
// restore on edit-end.
func NewLocked(prior Status) Status {
	return Status{
		Kind:            StatusLocked,
		PriorKind:       prior.Kind,
		PriorEnqueuedAt: prior.EnqueuedAt,
	}
}

// Restore returns the status a Locked task reverts to, per PriorKind.
func (s Status) Restore() Status {
	switch s.PriorKind {
	case StatusStashed:
		if s.PriorEnqueuedAt != nil {
			return NewStashed(*s.PriorEnqueuedAt)
		}
		return NewStashed(time.Time{})
	default:
		if s.PriorEnqueuedAt != nil {
			return NewQueued(*s.PriorEnqueuedAt)
		}
		return NewQueued(time.Now())
	}
}

// NewRunning returns a Running status starting at start, carrying forward
// the EnqueuedAt the task had while Queued/Stashed so it survives for
// callback rendering and Status display after the task starts.
func NewRunning(start time.Time, enqueuedAt *time.Time) Status {
	t := start
	return Status{Kind: StatusRunning, Start: &t, EnqueuedAt: enqueuedAt}
}

// NewPaused returns a Paused status, preserving the original start time.
func NewPaused(start time.Time) Status {
	t := start
	return Status{Kind: StatusPaused, Start: &t}
}

// NewDone returns a Done status with the given start/end times and
// result, carrying forward the task's EnqueuedAt.
func NewDone(start, end time.Time, result Result, enqueuedAt *time.Time) Status {
	s, e := start, end
	return Status{Kind: StatusDone, Start: &s, End: &e, Result: &result, EnqueuedAt: enqueuedAt}
}

// Task is a single user-submitted shell command with its scheduling
// metadata. The command string is stored verbatim and never
// pre-parsed or re-expanded by the daemon (spec.md §4.3).
type Task struct {
	ID ID `cbor:"id"`

	Command      string            `cbor:"command"`
	Path         string            `cbor:"path"`
	Environment  map[string]string `cbor:"environment"`
	Group        string            `cbor:"group"`
	Label        string            `cbor:"label,omitempty"`
	Dependencies []ID              `cbor:"dependencies,omitempty"`
	Priority     int               `cbor:"priority"`

	CreatedAt time.Time `cbor:"created_at"`

	Status Status `cbor:"status"`

	// ForceStarted is true if this task was started via a force-start
	// request and has not yet finished. A force-started task does not
	// count against its group's parallelism cap while Running/Paused
	// (spec.md §3 invariants, §9 open question).
	ForceStarted bool `cbor:"force_started,omitempty"`

	// WorkerSlot is the index, within its group, that this task
	// occupied while Running/Paused. Exposed to the child process as
	// PUEUE_WORKER_ID. Meaningless once the task leaves InFlight.
	WorkerSlot int `cbor:"worker_slot,omitempty"`
}

// Clone returns a deep copy of the task, safe to mutate independently.
func (t Task) Clone() Task {
	clone := t
	if t.Environment != nil {
		clone.Environment = make(map[string]string, len(t.Environment))
		for k, v := range t.Environment {
			clone.Environment[k] = v
		}
	}
	if t.Dependencies != nil {
		clone.Dependencies = append([]ID(nil), t.Dependencies...)
	}
	return clone
}

// IsTerminal reports whether the task has reached Done and will never
// be scheduled again without an explicit restart.
func (t Task) IsTerminal() bool {
	return t.Status.Kind == StatusDone
}

// InFlight reports whether the task currently owns a live process
// handle (Running or Paused).
func (t Task) InFlight() bool {
	return t.Status.Kind == StatusRunning || t.Status.Kind == StatusPaused
}
