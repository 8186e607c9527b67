// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package procmgr manages the operating-system side of running tasks:
// spawning each task's command as the leader of its own process
// group, capturing combined stdout+stderr to a log file, signaling
// pause/resume/kill, and non-blocking reaping of exited children.
//
// A Handler holds one Handle per in-flight task, keyed by task id,
// guarded by its own mutex — distinct from the state store's lock
// (spec.md §3 Ownership, §5). Callers in internal/scheduler read and
// write state under the store's lock but must call into Handler
// outside that lock, since Spawn and signal delivery are syscalls that
// may block briefly.
package procmgr

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/Nukesor/pueue/internal/task"
	"github.com/Nukesor/pueue/lib/clock"
)

// Handle is the live process-group handle for one in-flight task.
type Handle struct {
	cmd      *exec.Cmd
	stdin    io.WriteCloser
	logFile  *os.File
	logPath  string
	start    time.Time
	done     chan waitResult
	killedBy bool // true once Handler.Kill has signaled this handle
}

type waitResult struct {
	err error
}

// Handler owns every live process-group handle, and the configuration
// needed to spawn new ones.
type Handler struct {
	mu      sync.Mutex
	handles map[task.ID]*Handle

	dataDir      string
	shellCommand []string
	envVars      map[string]string
	clock        clock.Clock
}

// New returns a Handler that writes task logs under <dataDir>/logs and
// spawns commands via shellCommand (e.g. []string{"sh", "-c", "{{.Command}}"}
// on POSIX). envVars is injected into every task's environment,
// overriding the task's own captured values (spec.md §4.2).
func New(dataDir string, shellCommand []string, envVars map[string]string, clk clock.Clock) *Handler {
	return &Handler{
		handles:      make(map[task.ID]*Handle),
		dataDir:      dataDir,
		shellCommand: shellCommand,
		envVars:      envVars,
		clock:        clk,
	}
}

// LogPath returns the path of the combined-output log file for id.
func (h *Handler) LogPath(id task.ID) string {
	return filepath.Join(h.dataDir, "logs", fmt.Sprintf("%d.log", int(id)))
}

// IsRunning reports whether id currently has a live handle.
func (h *Handler) IsRunning(id task.ID) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.handles[id]
	return ok
}

// Count returns the number of live handles, for diagnostics.
func (h *Handler) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.handles)
}

// Spawn launches t's command as the leader of a new process group,
// with combined stdout+stderr redirected to its log file. workerSlot
// is the 0-based slot index within the task's group, injected as
// PUEUE_WORKER_ID alongside PUEUE_GROUP (spec.md §4.2).
//
// On success, returns the start time to record on the task. On
// failure (log file creation or the underlying exec.Cmd.Start call),
// returns an error describing the reason — the caller transitions the
// task straight to Done(FailedToStart(reason)) without retrying.
func (h *Handler) Spawn(t task.Task, workerSlot int) (time.Time, error) {
	if err := os.MkdirAll(filepath.Join(h.dataDir, "logs"), 0o755); err != nil {
		return time.Time{}, fmt.Errorf("creating log directory: %w", err)
	}

	logPath := h.LogPath(t.ID)
	logFile, err := os.OpenFile(logPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return time.Time{}, fmt.Errorf("creating log file: %w", err)
	}

	argv, err := compileShellCommand(h.shellCommand, t.Command)
	if err != nil {
		logFile.Close()
		return time.Time{}, fmt.Errorf("compiling shell command: %w", err)
	}
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = t.Path
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Env = buildEnviron(t.Environment, h.envVars, t.Group, workerSlot)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		logFile.Close()
		return time.Time{}, fmt.Errorf("creating stdin pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		logFile.Close()
		return time.Time{}, fmt.Errorf("starting command: %w", err)
	}

	start := h.clock.Now()
	handle := &Handle{
		cmd:     cmd,
		stdin:   stdin,
		logFile: logFile,
		logPath: logPath,
		start:   start,
		done:    make(chan waitResult, 1),
	}

	go func() {
		err := cmd.Wait()
		logFile.Close()
		handle.done <- waitResult{err: err}
	}()

	h.mu.Lock()
	h.handles[t.ID] = handle
	h.mu.Unlock()

	return start, nil
}

// buildEnviron computes the process environment for a spawned task:
// the daemon's own environment, overridden by the task's captured
// environment, overridden by the daemon-global injected vars, plus
// the two vars exposing group and worker slot (spec.md §4.2).
func buildEnviron(taskEnv, globalEnv map[string]string, group string, workerSlot int) []string {
	merged := make(map[string]string)
	for _, kv := range os.Environ() {
		if i := strings.IndexByte(kv, '='); i >= 0 {
			merged[kv[:i]] = kv[i+1:]
		}
	}
	for k, v := range taskEnv {
		merged[k] = v
	}
	for k, v := range globalEnv {
		merged[k] = v
	}
	merged["PUEUE_GROUP"] = group
	merged["PUEUE_WORKER_ID"] = fmt.Sprintf("%d", workerSlot)

	out := make([]string, 0, len(merged))
	for k, v := range merged {
		out = append(out, k+"="+v)
	}
	return out
}
