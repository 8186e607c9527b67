// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package scheduler implements the daemon's cooperative scheduling
// loop (spec.md §4.3): promoting delayed/dependent tasks, reaping
// finished children, starting new ones within each group's
// parallelism cap, and applying the pause-on-failure policy.
//
// Loop runs at a fixed cadence, mirroring the 300ms poll interval of
// original_source/daemon/task_handler.rs's TaskHandler::run, and can
// additionally be woken early via Wake for responsiveness after a
// request mutates state.
package scheduler

import (
	"log/slog"
	"time"

	"github.com/Nukesor/pueue/internal/config"
	"github.com/Nukesor/pueue/internal/procmgr"
	"github.com/Nukesor/pueue/internal/state"
	"github.com/Nukesor/pueue/lib/clock"
)

// tickInterval is the cadence at which Run re-evaluates state absent
// an explicit wakeup.
const tickInterval = 300 * time.Millisecond

// Scheduler drives the daemon's background loop against a Store and a
// procmgr.Handler.
type Scheduler struct {
	store   *state.Store
	procs   *procmgr.Handler
	cfg     *config.Config
	clock   clock.Clock
	logger  *slog.Logger
	wake    chan struct{}
	stop    chan struct{}
	stopped chan struct{}
}

// New returns a Scheduler ready to Run.
func New(store *state.Store, procs *procmgr.Handler, cfg *config.Config, clk clock.Clock, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		store:   store,
		procs:   procs,
		cfg:     cfg,
		clock:   clk,
		logger:  logger,
		wake:    make(chan struct{}, 1),
		stop:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
}

// Wake asks the loop to run a tick as soon as possible, instead of
// waiting for the next fixed-cadence tick. Non-blocking: if a wakeup
// is already pending, this is a no-op.
func (s *Scheduler) Wake() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Stop asks Run to return and blocks until it has.
func (s *Scheduler) Stop() {
	close(s.stop)
	<-s.stopped
}

// Run blocks, ticking the scheduler until Stop is called.
func (s *Scheduler) Run() {
	defer close(s.stopped)

	ticker := s.clock.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		s.Tick()

		select {
		case <-s.stop:
			return
		case <-ticker.C:
		case <-s.wake:
		}
	}
}

// Tick runs one full scheduling pass (spec.md §4.3, steps 1-5).
func (s *Scheduler) Tick() {
	now := s.clock.Now()

	s.store.Do(func(snapshot *state.Snapshot) {
		promoteStashed(snapshot, now)
	})

	finished := s.reap()

	s.store.Do(func(snapshot *state.Snapshot) {
		finished = append(finished, resolveDependencies(snapshot, now, s.logger)...)
	})

	toStart := state.View(s.store, eligibleToStart)

	for _, id := range toStart {
		s.startTask(id)
	}

	if len(finished) > 0 {
		s.applyPauseOnFailurePolicy(finished)
		s.fireCallbacks(finished)
	}

	procmgr.ReapCallbacks(func(err error) {
		s.logger.Warn("callback process failed", "error", err)
	})
}
