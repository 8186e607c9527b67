// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package state implements the daemon's authoritative in-memory record
// of all tasks and groups: a single exclusive lock around the data,
// periodic snapshotting to disk, and the invariant-preserving
// mutations the dispatcher and scheduler perform against it.
//
// Every mutation goes through [Store.Do], which holds the store's lock
// for the duration of the callback and nothing longer — callers must
// not perform I/O or otherwise suspend while inside the callback (see
// spec.md §5). Persistence, connection I/O, and log reads happen
// outside the lock, against state cloned or read before/after the
// critical section.
package state

import (
	"fmt"
	"sort"
	"sync"

	"github.com/Nukesor/pueue/internal/group"
	"github.com/Nukesor/pueue/internal/task"
	"github.com/Nukesor/pueue/lib/clock"
)

// Snapshot is the full, lock-free view of tasks and groups. It is the
// type serialized to state.cbor and the type callbacks passed to
// [Store.Do] operate on directly.
type Snapshot struct {
	Tasks  map[task.ID]task.Task  `cbor:"tasks"`
	Groups map[string]group.Group `cbor:"groups"`
}

// clone returns a deep copy, safe to read or serialize outside the lock.
func (s Snapshot) clone() Snapshot {
	out := Snapshot{
		Tasks:  make(map[task.ID]task.Task, len(s.Tasks)),
		Groups: make(map[string]group.Group, len(s.Groups)),
	}
	for id, t := range s.Tasks {
		out.Tasks[id] = t.Clone()
	}
	for name, g := range s.Groups {
		out.Groups[name] = g
	}
	return out
}

// Store owns the single exclusive lock over all daemon state.
type Store struct {
	mu    sync.Mutex
	cond  *sync.Cond
	state Snapshot
	clock clock.Clock
}

// New returns an empty store seeded with the well-known default group,
// capped at defaultParallel (0 means unlimited).
func New(clk clock.Clock, defaultParallel int) *Store {
	s := &Store{
		state: Snapshot{
			Tasks:  make(map[task.ID]task.Task),
			Groups: map[string]group.Group{group.Default: group.NewDefault(defaultParallel)},
		},
		clock: clk,
	}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Do runs fn with the store's lock held, then broadcasts to any
// goroutines blocked in [Store.WaitUntil]. fn must not perform I/O, sleep,
// or otherwise suspend — the lock must be held only for the duration
// of this one unit of work (spec.md §5).
func (s *Store) Do(fn func(*Snapshot)) {
	s.mu.Lock()
	fn(&s.state)
	s.cond.Broadcast()
	s.mu.Unlock()
}

// View runs fn with the lock held and returns its result, for
// read-only queries that need a consistent view across several fields.
func View[T any](s *Store, fn func(Snapshot) T) T {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.state)
}

// Clone returns a deep copy of the current state, safe to use outside
// the lock (persistence, Status responses).
func (s *Store) Clone() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

// WaitUntil blocks until cond(snapshot) is true or stop is closed,
// re-checking every time [Store.Do] broadcasts a change. Returns false
// if stop was closed first.
func (s *Store) WaitUntil(stop <-chan struct{}, cond func(Snapshot) bool) bool {
	done := make(chan struct{})
	go func() {
		select {
		case <-stop:
			s.mu.Lock()
			s.cond.Broadcast()
			s.mu.Unlock()
		case <-done:
		}
	}()
	defer close(done)

	s.mu.Lock()
	defer s.mu.Unlock()
	for {
		if cond(s.state) {
			return true
		}
		select {
		case <-stop:
			return false
		default:
		}
		s.cond.Wait()
		select {
		case <-stop:
			return false
		default:
		}
	}
}

// NextID returns the smallest non-negative integer not currently used
// by any task (spec.md §4.1). Callers must hold the lock (call from
// within Do).
func NextID(snapshot Snapshot) task.ID {
	used := make(map[task.ID]bool, len(snapshot.Tasks))
	for id := range snapshot.Tasks {
		used[id] = true
	}
	for candidate := task.ID(0); ; candidate++ {
		if !used[candidate] {
			return candidate
		}
	}
}

// SortedTaskIDs returns every task id in ascending order, useful for
// deterministic iteration (eligibility ties broken by lower id).
func SortedTaskIDs(snapshot Snapshot) []task.ID {
	ids := make([]task.ID, 0, len(snapshot.Tasks))
	for id := range snapshot.Tasks {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// ValidateInvariants checks the invariants listed in spec.md §3/§8.
// Intended for use in tests, and optionally after each scheduler tick
// in debug builds.
func ValidateInvariants(snapshot Snapshot) error {
	for id, t := range snapshot.Tasks {
		if _, ok := snapshot.Groups[t.Group]; !ok {
			return fmt.Errorf("task %d: group %q does not exist", id, t.Group)
		}
		for _, dep := range t.Dependencies {
			if _, ok := snapshot.Tasks[dep]; !ok {
				return fmt.Errorf("task %d: dependency %d does not exist", id, dep)
			}
		}
		if t.Status.Kind == task.StatusDone {
			if t.Status.Start == nil || t.Status.End == nil {
				return fmt.Errorf("task %d: Done without start/end", id)
			}
			if t.Status.End.Before(*t.Status.Start) {
				return fmt.Errorf("task %d: end before start", id)
			}
		}
	}

	counts := make(map[string]int)
	for _, t := range snapshot.Tasks {
		if t.InFlight() && !t.ForceStarted {
			counts[t.Group]++
		}
	}
	for name, g := range snapshot.Groups {
		if g.Parallel > 0 && counts[name] > g.Parallel {
			return fmt.Errorf("group %q: %d in flight exceeds cap %d", name, counts[name], g.Parallel)
		}
	}
	return nil
}
