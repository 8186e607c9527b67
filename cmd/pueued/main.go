// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Pueued is the daemon half of the task queue: it owns the
// authoritative task/group state, runs the scheduling loop, spawns
// and reaps task processes, and serves client requests over a Unix
// socket or TLS-protected TCP listener (spec.md §1, §6).
package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/Nukesor/pueue/internal/config"
	"github.com/Nukesor/pueue/internal/daemonlog"
	"github.com/Nukesor/pueue/internal/dispatch"
	"github.com/Nukesor/pueue/internal/pidfile"
	"github.com/Nukesor/pueue/internal/procmgr"
	"github.com/Nukesor/pueue/internal/scheduler"
	"github.com/Nukesor/pueue/internal/state"
	"github.com/Nukesor/pueue/internal/transport"
	"github.com/Nukesor/pueue/internal/wire"
	"github.com/Nukesor/pueue/lib/clock"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath  string
		profile     string
		daemonize   bool
		verbose     int
		showVersion bool
	)

	flags := pflag.NewFlagSet("pueued", pflag.ContinueOnError)
	flags.StringVarP(&configPath, "config", "c", "", "path to a config file ($PUEUE_CONFIG_PATH if unset)")
	flags.StringVarP(&profile, "profile", "p", "", "unused placeholder for a named config profile")
	flags.BoolVarP(&daemonize, "daemonize", "d", false, "fork into the background after starting")
	flags.CountVarP(&verbose, "verbose", "v", "increase log verbosity (-v, -vv)")
	flags.BoolVar(&showVersion, "version", false, "print version information and exit")
	if err := flags.Parse(os.Args[1:]); err != nil {
		return err
	}

	if showVersion {
		fmt.Println("pueued (development build)")
		return nil
	}
	_ = profile // no config profile support; accepted for CLI compatibility

	if configPath == "" {
		configPath = os.Getenv("PUEUE_CONFIG_PATH")
	}
	cfg, err := config.LoadFile(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	if daemonize && os.Getenv("PUEUED_DAEMONIZED") == "" {
		return reexecDetached()
	}

	for _, dir := range []string{cfg.DataDir, cfg.CertDir(), cfg.LogDir()} {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}

	level := "info"
	if verbose > 0 {
		level = "debug"
	}
	logger, logFile, err := daemonlog.New(cfg.DataDir, level, !daemonize)
	if err != nil {
		return fmt.Errorf("setting up logging: %w", err)
	}
	if logFile != nil {
		defer logFile.Close()
	}

	pidPath := cfg.PIDPath()
	if err := pidfile.Acquire(pidPath); err != nil {
		return err
	}
	defer pidfile.Release(pidPath)

	clk := clock.Real()
	store := state.New(clk, cfg.DefaultParallelTasks)
	if err := store.Load(cfg.DataDir); err != nil {
		return fmt.Errorf("loading saved state: %w", err)
	}

	procs := procmgr.New(cfg.DataDir, cfg.ShellCommand, cfg.EnvVars, clk)
	sched := scheduler.New(store, procs, cfg, clk, logger)
	dispatcher := dispatch.New(store, procs, sched, cfg, clk, logger)

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	listener, err := transport.Listen(cfg, dispatcher, logger)
	if err != nil {
		return fmt.Errorf("starting transport: %w", err)
	}

	shutdownMode := make(chan wire.ShutdownMode, 1)
	dispatcher.Shutdown = func(mode wire.ShutdownMode) {
		logger.Info("shutdown requested", "mode", mode)
		shutdownMode <- mode
	}

	go sched.Run()

	serveErr := make(chan error, 1)
	go func() { serveErr <- listener.Serve() }()

	exitCode := waitForShutdown(sigCh, serveErr, shutdownMode, dispatcher, logger)

	listener.Close()
	drainTasks(procs, logger)
	sched.Stop()

	if err := store.Save(cfg.DataDir); err != nil {
		logger.Error("failed to save state on shutdown", "error", err)
	}

	logger.Info("daemon stopped", "exit_code", exitCode)
	if exitCode != 0 {
		os.Exit(exitCode)
	}
	return nil
}

// waitForShutdown blocks until the daemon should exit, returning the
// process exit code. The first SIGINT/SIGTERM starts a graceful
// shutdown through the dispatcher, and the function returns as soon as
// that shutdown reports its mode on shutdownMode. A second signal is
// only seen if it arrives before that report, and then only makes the
// exit code 1; it kills no tasks. Signals arriving later, while tasks
// drain, are not read. A client ShutdownRequest arrives via
// shutdownMode; Immediate yields exit code 1, Graceful 0.
func waitForShutdown(sigCh <-chan os.Signal, serveErr <-chan error, shutdownMode <-chan wire.ShutdownMode, dispatcher *dispatch.Dispatcher, logger *slog.Logger) int {
	select {
	case <-sigCh:
		logger.Info("signal received, shutting down gracefully")
		dispatcher.Handle(wire.Request{Action: "shutdown", Shutdown: &wire.ShutdownRequest{Mode: wire.ShutdownGraceful}})
	case err := <-serveErr:
		if err != nil {
			logger.Error("transport stopped unexpectedly", "error", err)
		}
		return 0
	case mode := <-shutdownMode:
		if mode == wire.ShutdownImmediate {
			return 1
		}
		return 0
	}

	select {
	case <-sigCh:
		logger.Info("second signal received, forcing shutdown")
		return 1
	case mode := <-shutdownMode:
		if mode == wire.ShutdownImmediate {
			return 1
		}
		return 0
	}
}

// drainTasks waits for every in-flight task's process to be reaped,
// up to a bound, before the daemon removes its pid file and
// exits — mirrors handle_shutdown's has_active_tasks() poll in
// original_source/daemon/task_handler/mod.rs.
func drainTasks(procs *procmgr.Handler, logger *slog.Logger) {
	const drainTimeout = 10 * time.Second
	deadline := time.Now().Add(drainTimeout)
	for procs.Count() > 0 && time.Now().Before(deadline) {
		time.Sleep(50 * time.Millisecond)
	}
	if n := procs.Count(); n > 0 {
		logger.Warn("exiting with tasks still running", "count", n)
	}
}

// reexecDetached starts a fresh copy of the current process in its own
// session, detached from the controlling terminal, then exits. The
// child inherits PUEUED_DAEMONIZED so it runs the real daemon instead
// of forking again.
func reexecDetached() error {
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("resolving executable path: %w", err)
	}

	cmd := exec.Command(exe, os.Args[1:]...)
	cmd.Env = append(os.Environ(), "PUEUED_DAEMONIZED=1")
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	devNull, err := os.OpenFile(os.DevNull, os.O_RDWR, 0)
	if err != nil {
		return fmt.Errorf("opening %s: %w", os.DevNull, err)
	}
	defer devNull.Close()
	cmd.Stdin = devNull
	cmd.Stdout = devNull
	cmd.Stderr = devNull

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("forking into background: %w", err)
	}
	fmt.Printf("pueued forked into background, pid %d\n", cmd.Process.Pid)
	return nil
}
