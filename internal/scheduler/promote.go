// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package scheduler

import (
	"time"

	"github.com/Nukesor/pueue/internal/state"
	"github.com/Nukesor/pueue/internal/task"
)

// promoteStashed moves every Stashed task whose enqueue_at has
// arrived into Queued (spec.md §4.3 step 1).
func promoteStashed(snapshot *state.Snapshot, now time.Time) {
	for id, t := range snapshot.Tasks {
		if t.Status.Kind != task.StatusStashed {
			continue
		}
		if t.Status.EnqueuedAt == nil || t.Status.EnqueuedAt.After(now) {
			continue
		}
		t.Status = task.NewQueued(now)
		snapshot.Tasks[id] = t
	}
}
