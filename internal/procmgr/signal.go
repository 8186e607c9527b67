// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package procmgr

import (
	"fmt"
	"runtime"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/Nukesor/pueue/internal/task"
)

// Pause sends a stop signal to id's entire process group. Windows has
// no equivalent and refuses the operation (spec.md §4.2, §9).
func (h *Handler) Pause(id task.ID) error {
	if runtime.GOOS == "windows" {
		return fmt.Errorf("pause is not supported on windows")
	}
	return h.signalGroup(id, syscall.SIGSTOP)
}

// Resume sends a continue signal to id's entire process group.
// Windows has no equivalent and refuses the operation.
func (h *Handler) Resume(id task.ID) error {
	if runtime.GOOS == "windows" {
		return fmt.Errorf("resume is not supported on windows")
	}
	return h.signalGroup(id, syscall.SIGCONT)
}

// Kill sends sig (SIGTERM if zero) to id's process group. If the task
// is currently paused, Kill first resumes it so the signal is
// actually delivered to a scheduler-visible process rather than one
// stopped in the kernel (spec.md §4.2, §8 boundary behaviors).
func (h *Handler) Kill(id task.ID, sig syscall.Signal, wasPaused bool) error {
	if sig == 0 {
		sig = syscall.SIGTERM
	}
	if wasPaused && runtime.GOOS != "windows" {
		_ = h.signalGroup(id, syscall.SIGCONT)
	}

	h.mu.Lock()
	handle, ok := h.handles[id]
	if ok {
		handle.killedBy = true
	}
	h.mu.Unlock()

	if runtime.GOOS == "windows" {
		sig = syscall.SIGKILL
	}
	return h.signalGroup(id, sig)
}

// Send writes data to id's stdin and flushes it. Valid only while the
// task is running (spec.md §4.4).
func (h *Handler) Send(id task.ID, data []byte) error {
	h.mu.Lock()
	handle, ok := h.handles[id]
	h.mu.Unlock()
	if !ok {
		return fmt.Errorf("task %d has no live process", id)
	}
	_, err := handle.stdin.Write(data)
	return err
}

// signalGroup delivers sig to the negative PID of id's process
// group, reaching the shell and every child it spawned.
func (h *Handler) signalGroup(id task.ID, sig syscall.Signal) error {
	h.mu.Lock()
	handle, ok := h.handles[id]
	h.mu.Unlock()
	if !ok {
		return fmt.Errorf("task %d has no live process", id)
	}
	if err := unix.Kill(-handle.cmd.Process.Pid, sig); err != nil {
		return fmt.Errorf("signaling task %d: %w", id, err)
	}
	return nil
}
