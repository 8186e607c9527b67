// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package procmgr

import (
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"text/template"

	"github.com/Nukesor/pueue/internal/task"
)

// CallbackParams is the set of variables available to a callback
// template, rendered after every Done transition (spec.md §4.2).
type CallbackParams struct {
	ID           task.ID
	Command      string
	Path         string
	Label        string
	Group        string
	Result       string
	ExitCode     string
	EnqueuedAt   string
	Start        string
	End          string
	Output       string
	QueuedCount  int
	StashedCount int
}

// callbackProcess is one spawned callback subprocess and the channel
// its background Wait goroutine reports exit on.
type callbackProcess struct {
	cmd  *exec.Cmd
	done chan error
}

// callbackTracker owns the set of in-flight callback subprocesses, so
// the scheduler can reap them the same way it reaps task processes
// (original_source/daemon/callbacks.rs's check_callbacks).
type callbackTracker struct {
	mu       sync.Mutex
	children []*callbackProcess
}

var callbacks callbackTracker

// RunCallback renders template against params and spawns the rendered
// string through the configured shell as a detached child. Failures
// are logged by the caller; they never affect task state (spec.md
// §4.2, §7).
func (h *Handler) RunCallback(templateString string, params CallbackParams) error {
	rendered, err := renderCallback(templateString, params)
	if err != nil {
		return fmt.Errorf("rendering callback template: %w", err)
	}

	argv, err := compileShellCommand(h.shellCommand, rendered)
	if err != nil {
		return fmt.Errorf("compiling callback command: %w", err)
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("spawning callback: %w", err)
	}

	proc := &callbackProcess{cmd: cmd, done: make(chan error, 1)}
	go func() { proc.done <- cmd.Wait() }()

	callbacks.mu.Lock()
	callbacks.children = append(callbacks.children, proc)
	callbacks.mu.Unlock()
	return nil
}

// ReapCallbacks non-blockingly checks every tracked callback process
// and drops the ones that have exited, logging failures via errLog if
// non-nil.
func ReapCallbacks(errLog func(err error)) {
	callbacks.mu.Lock()
	defer callbacks.mu.Unlock()

	live := callbacks.children[:0]
	for _, proc := range callbacks.children {
		select {
		case err := <-proc.done:
			if err != nil && errLog != nil {
				errLog(err)
			}
		default:
			live = append(live, proc)
		}
	}
	callbacks.children = live
}

func renderCallback(templateString string, params CallbackParams) (string, error) {
	tmpl, err := template.New("callback").Parse(templateString)
	if err != nil {
		return "", err
	}
	var out strings.Builder
	if err := tmpl.Execute(&out, params); err != nil {
		return "", err
	}
	return out.String(), nil
}

// FormatExitCode renders a Result's exit code the way callback
// templates expect: the numeric code for Failed, "0" for Success,
// empty otherwise.
func FormatExitCode(result task.Result) string {
	switch result.Kind {
	case task.ResultSuccess:
		return "0"
	case task.ResultFailed:
		return strconv.Itoa(result.ExitCode)
	default:
		return ""
	}
}
