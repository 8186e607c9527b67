// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package pidfile guards against two daemon instances sharing one data
// directory, grounded on original_source/daemon/pid.rs's
// create_pid_file/cleanup_pid_file.
package pidfile

import (
	"fmt"
	"os"
	"strconv"
	"syscall"
)

// Acquire writes the current process's pid to path, refusing if a live
// daemon already holds it. A stale file left behind by a crash is
// silently replaced.
func Acquire(path string) error {
	if existing, err := os.ReadFile(path); err == nil {
		pid, err := strconv.Atoi(string(existing))
		if err == nil && processAlive(pid) {
			return fmt.Errorf("pid file %s already exists and another daemon seems to be running (pid %d); stop it or remove the file", path, pid)
		}
	}

	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

// Release removes path. Safe to call even if Acquire was never called
// successfully on this path.
func Release(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing pid file %s: %w", path, err)
	}
	return nil
}

// processAlive reports whether pid names a running process, following
// the Unix convention that signal 0 checks existence without actually
// signaling.
func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return process.Signal(syscall.Signal(0)) == nil
}
