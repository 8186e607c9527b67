// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package procmgr

import (
	"errors"
	"os/exec"
	"time"

	"github.com/Nukesor/pueue/internal/task"
)

// ReapResult is what TryReap returns for a task whose process has
// exited.
type ReapResult struct {
	End    time.Time
	Result task.Result
}

// TryReap non-blockingly checks whether id's process has exited,
// mirroring the try_wait pattern every process handler needs: a
// background goroutine (started in Spawn) calls the blocking Wait and
// posts its result on a channel, so reaping here is just a
// non-blocking channel receive (grounded on
// original_source/daemon/task_handler.rs's polling reap loop, adapted
// to Go's goroutine-plus-channel idiom instead of a poll syscall).
//
// On exit, drops the handle and returns (result, true). If the
// process is still running, returns (ReapResult{}, false).
func (h *Handler) TryReap(id task.ID) (ReapResult, bool) {
	h.mu.Lock()
	handle, ok := h.handles[id]
	h.mu.Unlock()
	if !ok {
		return ReapResult{}, false
	}

	select {
	case wr := <-handle.done:
		h.mu.Lock()
		delete(h.handles, id)
		h.mu.Unlock()

		end := h.clock.Now()
		return ReapResult{End: end, Result: resultFromWait(wr.err, handle.killedBy)}, true
	default:
		return ReapResult{}, false
	}
}

// resultFromWait maps the error from exec.Cmd.Wait into a task
// Result. killedBy is true if Handler.Kill was called for this
// handle, taking priority over exit-code interpretation (spec.md
// §4.2, §8 boundary behaviors: Kill on a Paused task yields Done(Killed)).
func resultFromWait(err error, killedBy bool) task.Result {
	if err == nil {
		return task.Result{Kind: task.ResultSuccess}
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if killedBy {
			return task.Result{Kind: task.ResultKilled}
		}
		return task.Result{Kind: task.ResultFailed, ExitCode: exitErr.ExitCode()}
	}

	if killedBy {
		return task.Result{Kind: task.ResultKilled}
	}
	return task.Result{Kind: task.ResultErrored, Reason: err.Error()}
}
