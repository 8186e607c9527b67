// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.DefaultParallelTasks != 1 {
		t.Errorf("DefaultParallelTasks = %d, want 1", cfg.DefaultParallelTasks)
	}
	if len(cfg.ShellCommand) == 0 {
		t.Error("ShellCommand is empty")
	}
	if cfg.SocketPath == "" {
		t.Error("SocketPath is empty")
	}
	if cfg.UseTLS {
		t.Error("UseTLS = true, want false by default")
	}
}

func TestLoadFileMissingReturnsDefaults(t *testing.T) {
	cfg, err := LoadFile(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.DefaultParallelTasks != 1 {
		t.Errorf("DefaultParallelTasks = %d, want 1", cfg.DefaultParallelTasks)
	}
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pueue.yaml")
	content := `
default_parallel_tasks: 4
pause_group_on_failure: true
callback: "echo {{.ID}} done"
callback_log_lines: 20
host: "0.0.0.0"
port: 7000
socket_path: ""
use_tls: true
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}

	if cfg.DefaultParallelTasks != 4 {
		t.Errorf("DefaultParallelTasks = %d, want 4", cfg.DefaultParallelTasks)
	}
	if !cfg.PauseGroupOnFailure {
		t.Error("PauseGroupOnFailure = false, want true")
	}
	if cfg.CallbackLogLines != 20 {
		t.Errorf("CallbackLogLines = %d, want 20", cfg.CallbackLogLines)
	}
	if !cfg.UseTLS {
		t.Error("UseTLS = false, want true")
	}
}

func TestValidateRejectsBothTransports(t *testing.T) {
	cfg := Default()
	cfg.UseTLS = true
	// SocketPath still set from defaults: both transports configured.
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected an error when both use_tls and socket_path are set")
	}
}

func TestValidateRejectsNoTransport(t *testing.T) {
	cfg := Default()
	cfg.SocketPath = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected an error when neither use_tls nor socket_path is set")
	}
}

func TestValidateCollectsEveryProblem(t *testing.T) {
	cfg := Default()
	cfg.DataDir = ""
	cfg.DefaultParallelTasks = -1
	cfg.ShellCommand = nil
	cfg.SocketPath = ""

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected an error")
	}
	for _, want := range []string{"data_dir", "default_parallel_tasks", "shell_command", "transport"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("Validate() error %q missing %q — errors.Join should collect every problem, not just the first", err, want)
		}
	}
}

func TestExpandVariablesInDataDir(t *testing.T) {
	os.Setenv("HOME", "/home/tester")
	defer os.Unsetenv("HOME")

	path := filepath.Join(t.TempDir(), "pueue.yaml")
	content := "data_dir: \"${HOME}/pueue-data\"\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.DataDir != "/home/tester/pueue-data" {
		t.Errorf("DataDir = %q, want %q", cfg.DataDir, "/home/tester/pueue-data")
	}
}
