// Copyright (C) 2026 Solenne AI (dev@solenne.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package storyline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// =============================================================================
// Idle Suggestion Scheduler
// =============================================================================

// SuggestionScheduler runs the idle-absence check on a repeating timer.
//
// # Description
//
// Uses the ticker + done channel pattern for graceful shutdown. Start fires
// one immediate check and then one per interval. Restart semantics are
// deliberate: calling Start while running retires the previous timer before
// arming a new one, so exactly one timer exists afterward; timers never
// stack.
//
// # Thread Safety
//
// All public methods are safe for concurrent use. A tick caught in flight
// across a Stop or restart rechecks its own generation's liveness before
// its final write, so a stale tick never lands a suggestion after teardown.
type SuggestionScheduler struct {
	engine   *Engine
	interval time.Duration
	done     chan struct{}
	mu       sync.Mutex
	running  bool
}

// NewSuggestionScheduler creates a scheduler ticking at the engine's
// configured suggestion interval.
func NewSuggestionScheduler(engine *Engine) *SuggestionScheduler {
	return &SuggestionScheduler{
		engine:   engine,
		interval: engine.cfg.SuggestionInterval,
		done:     make(chan struct{}),
	}
}

// Start begins (or restarts) the suggestion timer. The first check runs
// immediately; subsequent checks run once per interval until Stop or
// context cancellation.
func (s *SuggestionScheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		// Idempotent restart: retire the previous timer first.
		close(s.done)
	}
	s.running = true
	s.done = make(chan struct{})
	done := s.done
	s.mu.Unlock()

	slog.Info("idle suggestion scheduler starting", "interval", s.interval.String())
	go s.runLoop(ctx, done)
}

// Stop cancels the timer; no further ticks occur. Safe to call on a
// stopped scheduler.
func (s *SuggestionScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}

	slog.Info("idle suggestion scheduler stopping")
	close(s.done)
	s.running = false
}

// IsRunning reports whether the scheduler's timer is armed.
func (s *SuggestionScheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// runLoop drives one scheduler generation. done belongs to this generation;
// a restart closes it and starts a fresh loop.
func (s *SuggestionScheduler) runLoop(ctx context.Context, done chan struct{}) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	stillRunning := func() bool {
		select {
		case <-done:
			return false
		default:
			return true
		}
	}

	s.engine.checkForSuggestion(ctx, stillRunning)

	for {
		select {
		case <-ctx.Done():
			slog.Info("idle suggestion scheduler stopped (context cancelled)")
			return
		case <-done:
			slog.Info("idle suggestion scheduler stopped (stop requested)")
			return
		case <-ticker.C:
			s.engine.checkForSuggestion(ctx, stillRunning)
		}
	}
}

// =============================================================================
// Phase Pass Scheduler
// =============================================================================

// PassScheduler runs the daily phase-advancement pass on a repeating timer.
//
// Unlike the suggestion scheduler, Start on a running PassScheduler is an
// error: the pass timer is long-period and a silent restart would mask a
// double-wiring bug in the host.
type PassScheduler struct {
	engine   *Engine
	interval time.Duration
	done     chan struct{}
	mu       sync.Mutex
	running  bool
}

// NewPassScheduler creates a scheduler ticking at the engine's configured
// pass interval.
func NewPassScheduler(engine *Engine) *PassScheduler {
	return &PassScheduler{
		engine:   engine,
		interval: engine.cfg.PassInterval,
		done:     make(chan struct{}),
	}
}

// Start begins the pass timer. The first pass runs immediately, which is
// how missed days get caught up right after host startup.
func (s *PassScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}
	s.running = true
	s.done = make(chan struct{})
	done := s.done
	s.mu.Unlock()

	slog.Info("phase pass scheduler starting", "interval", s.interval.String())
	go s.runLoop(ctx, done)
	return nil
}

// Stop cancels the timer. An in-flight pass finishes on its own; no new
// pass starts. Safe to call on a stopped scheduler.
func (s *PassScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}

	slog.Info("phase pass scheduler stopping")
	close(s.done)
	s.running = false
}

// IsRunning reports whether the pass timer is armed.
func (s *PassScheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *PassScheduler) runLoop(ctx context.Context, done chan struct{}) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.executePass(ctx)

	for {
		select {
		case <-ctx.Done():
			slog.Info("phase pass scheduler stopped (context cancelled)")
			return
		case <-done:
			slog.Info("phase pass scheduler stopped (stop requested)")
			return
		case <-ticker.C:
			s.executePass(ctx)
		}
	}
}

// executePass runs one pass, containing errors so the timer survives.
func (s *PassScheduler) executePass(ctx context.Context) {
	if err := s.engine.ProcessPass(ctx); err != nil {
		if errors.Is(err, ErrPassInProgress) {
			slog.Warn("phase pass still running, tick skipped")
			return
		}
		slog.Error("phase pass failed", "error", err)
	}
}
