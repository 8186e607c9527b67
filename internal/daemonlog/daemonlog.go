// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package daemonlog constructs the daemon's structured logger, a thin
// wrapper grounded on lib/service.NewLogger adapted to pueued's
// logging destination (a file under the data directory rather than
// the service mesh's stderr convention).
package daemonlog

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

// Level names accepted in config/flags, matching slog's own.
const (
	LevelDebug = "debug"
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
)

// New creates the daemon's logger: a JSON handler writing to
// <dataDir>/pueued.log, additionally teed to stderr when foreground is
// true (i.e., the daemon was not told to daemonize). Returns the
// logger and the open log file so the caller can close it on
// shutdown.
func New(dataDir string, level string, foreground bool) (*slog.Logger, *os.File, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("creating data directory: %w", err)
	}

	path := filepath.Join(dataDir, "pueued.log")
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}

	var writer io.Writer = file
	if foreground {
		writer = io.MultiWriter(file, os.Stderr)
	}

	logger := slog.New(slog.NewJSONHandler(writer, &slog.HandlerOptions{
		Level: parseLevel(level),
	}))
	slog.SetDefault(logger)
	return logger, file, nil
}

func parseLevel(level string) slog.Level {
	switch level {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
