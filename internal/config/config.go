// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads the daemon's configuration file: the
// options from spec.md §6 that materially affect scheduling,
// process spawning, and transport, plus the paths under the data
// directory where state, logs, and certificates live.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"

	"gopkg.in/yaml.v3"
)

// Config is the daemon's full configuration.
type Config struct {
	DataDir string `yaml:"data_dir"`

	DefaultParallelTasks int  `yaml:"default_parallel_tasks"`
	PauseGroupOnFailure  bool `yaml:"pause_group_on_failure"`
	PauseAllOnFailure    bool `yaml:"pause_all_on_failure"`

	Callback         string `yaml:"callback"`
	CallbackLogLines int    `yaml:"callback_log_lines"`

	ShellCommand []string          `yaml:"shell_command"`
	EnvVars      map[string]string `yaml:"env_vars"`

	Host              string `yaml:"host"`
	Port              int    `yaml:"port"`
	UseTLS            bool   `yaml:"use_tls"`
	SocketPath        string `yaml:"socket_path"`
	SocketPermissions uint32 `yaml:"socket_permissions"`

	Secret string `yaml:"secret"`
}

// Default returns the configuration used as a base before loading the
// config file. Every field has a usable zero-value so a freshly
// initialized daemon works without a config file at all.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	dataDir := filepath.Join(homeDir, ".local", "share", "pueue")

	cfg := &Config{
		DataDir:              dataDir,
		DefaultParallelTasks: 1,
		CallbackLogLines:     10,
		EnvVars:              map[string]string{},
		SocketPath:           filepath.Join(dataDir, "pueue.sock"),
		SocketPermissions:    0o700,
		Host:                 "127.0.0.1",
		Port:                 6924,
	}
	cfg.ShellCommand = defaultShellCommand()
	return cfg
}

func defaultShellCommand() []string {
	if runtime.GOOS == "windows" {
		return []string{"powershell", "-c", "{{.Command}}"}
	}
	return []string{"sh", "-c", "{{.Command}}"}
}

// LoadFile reads path as YAML into a Default configuration, expands
// ${VAR} references in its paths, and returns the result. Returns the
// defaults unchanged if path does not exist — a daemon's first run
// needs no preexisting config file.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		cfg.expandVariables()
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	cfg.expandVariables()
	return cfg, nil
}

func (c *Config) expandVariables() {
	vars := map[string]string{"HOME": os.Getenv("HOME")}
	c.DataDir = expandVars(c.DataDir, vars)
	vars["PUEUE_DATA_DIR"] = c.DataDir
	c.SocketPath = expandVars(c.SocketPath, vars)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandVars expands ${VAR} and ${VAR:-default} patterns, checking
// vars before the process environment.
func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}
		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for internally inconsistent or
// missing required values, collecting every problem via errors.Join
// instead of failing fast on the first one.
func (c *Config) Validate() error {
	var errs []error
	if c.DataDir == "" {
		errs = append(errs, fmt.Errorf("data_dir is required"))
	}
	if c.DefaultParallelTasks < 0 {
		errs = append(errs, fmt.Errorf("default_parallel_tasks must be >= 0"))
	}
	if len(c.ShellCommand) == 0 {
		errs = append(errs, fmt.Errorf("shell_command must not be empty"))
	}
	if c.UseTLS && c.SocketPath != "" {
		errs = append(errs, fmt.Errorf("use_tls and socket_path are mutually exclusive transports"))
	}
	if !c.UseTLS && c.SocketPath == "" {
		errs = append(errs, fmt.Errorf("exactly one transport (use_tls or socket_path) must be set"))
	}
	return errors.Join(errs...)
}

// CertDir, LogDir, and PIDPath return the well-known paths under
// DataDir described in spec.md §6.
func (c *Config) CertDir() string { return filepath.Join(c.DataDir, "certs") }
func (c *Config) LogDir() string  { return filepath.Join(c.DataDir, "logs") }
func (c *Config) PIDPath() string { return filepath.Join(c.DataDir, "pueue.pid") }
