// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package state

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/Nukesor/pueue/internal/task"
	"github.com/Nukesor/pueue/lib/codec"
)

// SnapshotFileName is the name of the state snapshot file inside the
// daemon's data directory (spec.md §6).
const SnapshotFileName = "state.cbor"

// Save atomically persists the current state to <dataDir>/state.cbor:
// write to a temporary file, flush, fsync, and rename over the
// destination. A failure here is fatal to the daemon (spec.md §4.1,
// §7) — the caller should log and exit.
func (s *Store) Save(dataDir string) error {
	snapshot := s.Clone()
	return saveSnapshot(dataDir, snapshot)
}

func saveSnapshot(dataDir string, snapshot Snapshot) error {
	path := filepath.Join(dataDir, SnapshotFileName)
	tmp := path + ".tmp"

	data, err := codec.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("marshaling state snapshot: %w", err)
	}

	file, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("opening temp snapshot file: %w", err)
	}
	if _, err := file.Write(data); err != nil {
		file.Close()
		return fmt.Errorf("writing temp snapshot file: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		return fmt.Errorf("syncing temp snapshot file: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("closing temp snapshot file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("renaming snapshot into place: %w", err)
	}
	return nil
}

// Load reads <dataDir>/state.cbor if present and replaces the store's
// contents with it, applying the startup reclassification rules from
// spec.md §4.1:
//
//   - Running and Paused tasks become Queued with start/end cleared
//     (they will re-run from the beginning).
//   - Locked tasks revert to their pre-edit status (Queued or Stashed).
//
// If the file does not exist, Load is a no-op (fresh daemon start).
func (s *Store) Load(dataDir string) error {
	path := filepath.Join(dataDir, SnapshotFileName)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading state snapshot: %w", err)
	}

	var loaded Snapshot
	if err := codec.Unmarshal(data, &loaded); err != nil {
		return fmt.Errorf("decoding state snapshot: %w", err)
	}

	reclassify(&loaded)

	s.Do(func(snapshot *Snapshot) {
		*snapshot = loaded
	})
	return nil
}

// reclassify applies the startup re-classification rules in place.
func reclassify(snapshot *Snapshot) {
	for id, t := range snapshot.Tasks {
		switch t.Status.Kind {
		case task.StatusRunning, task.StatusPaused:
			t.Status = task.NewQueued(t.CreatedAt)
			t.ForceStarted = false
			t.WorkerSlot = 0
			snapshot.Tasks[id] = t
		case task.StatusLocked:
			t.Status = t.Status.Restore()
			snapshot.Tasks[id] = t
		}
	}
}
