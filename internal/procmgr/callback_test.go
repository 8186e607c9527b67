// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package procmgr

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Nukesor/pueue/internal/task"
)

func TestRunCallbackRendersAndExecutes(t *testing.T) {
	h := New(t.TempDir(), []string{"sh", "-c", "{{.Command}}"}, nil, nil)
	marker := filepath.Join(t.TempDir(), "marker")

	err := h.RunCallback(
		`touch `+marker+` # task {{.ID}} group {{.Group}} result {{.Result}}`,
		CallbackParams{ID: task.ID(3), Group: "default", Result: "Success"},
	)
	if err != nil {
		t.Fatalf("RunCallback: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, statErr := os.Stat(marker); statErr == nil {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("callback did not create marker file in time")
}

func TestFormatExitCode(t *testing.T) {
	cases := []struct {
		result task.Result
		want   string
	}{
		{task.Result{Kind: task.ResultSuccess}, "0"},
		{task.Result{Kind: task.ResultFailed, ExitCode: 17}, "17"},
		{task.Result{Kind: task.ResultKilled}, ""},
	}
	for _, c := range cases {
		if got := FormatExitCode(c.result); got != c.want {
			t.Errorf("FormatExitCode(%+v) = %q, want %q", c.result, got, c.want)
		}
	}
}
