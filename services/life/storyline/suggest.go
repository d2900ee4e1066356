// Copyright (C) 2026 Solenne AI (dev@solenne.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package storyline - idle-absence suggestion generation and surfacing.
package storyline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/solenne-ai/solenne/services/life/datatypes"
)

// checkForSuggestion is one idle-scheduler tick.
//
// # Description
//
// Applies the gating conditions in order and stops at the first one that
// fails: a recorded interaction must exist, the user must have been absent
// long enough, no pending suggestion may exist, and the shared creation
// cooldown must have lapsed. Only then is one suggestion generated, parsed,
// and persisted. A malformed generation is discarded without retry; the next
// tick gets another chance.
//
// stillRunning is consulted after the generation call and before the final
// write, so a tick in flight across a Stop never lands a write into a
// stopped scheduler's teardown.
func (e *Engine) checkForSuggestion(ctx context.Context, stillRunning func() bool) {
	ctx, span := tracer.Start(ctx, "storyline.check_for_suggestion")
	defer span.End()

	now := e.now()

	last, ok, err := e.history.LastInteraction(ctx)
	if err != nil {
		slog.Warn("suggestion tick: interaction read failed", "error", err)
		return
	}
	if !ok {
		// Never spoken yet; nothing to be absent from.
		return
	}

	absence := now.Sub(last)
	if absence < e.cfg.AbsenceThreshold {
		return
	}

	if _, err := e.store.LatestPendingSuggestion(ctx, now); err == nil {
		// One pending suggestion at a time.
		return
	} else if !errors.Is(err, ErrNotFound) {
		slog.Warn("suggestion tick: pending read failed", "error", err)
		return
	}

	cooldown, err := e.store.Cooldown(ctx)
	if err != nil {
		// Unlike the creation gate, skipping here costs nothing: the next
		// tick retries in minutes.
		slog.Warn("suggestion tick: cooldown read failed, skipping", "error", err)
		return
	}
	if cooldown.LastStorylineCreatedAt != nil &&
		now.Sub(*cooldown.LastStorylineCreatedAt) < e.cfg.Cooldown {
		return
	}

	slog.Info("user absent, generating storyline suggestion",
		"absence_minutes", int(absence.Minutes()))

	payload := e.generateSuggestion(ctx)
	if payload == nil {
		return
	}

	if !stillRunning() {
		slog.Debug("suggestion discarded, scheduler stopped mid-tick")
		return
	}

	sug := &datatypes.PendingSuggestion{
		ID:        newID(),
		Category:  payload.Category,
		Theme:     payload.Theme,
		Reasoning: payload.Reasoning,
		CreatedAt: now,
		ExpiresAt: now.Add(e.cfg.SuggestionExpiry),
	}
	if err := e.store.InsertSuggestion(ctx, sug); err != nil {
		slog.Error("suggestion persist failed", "error", err)
		return
	}

	if e.metrics != nil {
		e.metrics.SuggestionsTotal.Add(ctx, 1)
	}
	e.events.Publish(EventSuggestionReady, map[string]string{
		"suggestion_id": sug.ID,
		"category":      string(sug.Category),
		"theme":         sug.Theme,
	})

	slog.Info("suggestion persisted",
		"suggestion_id", sug.ID,
		"category", sug.Category,
		"theme", sug.Theme)
}

// generateSuggestion gathers context, calls the collaborator, and validates
// the response. Returns nil when this tick produces nothing usable.
func (e *Engine) generateSuggestion(ctx context.Context) *suggestionPayload {
	// Context gathering is best-effort; a thinner prompt still works.
	active, err := e.store.ListStorylines(ctx, StorylineFilter{ActiveOnly: true})
	if err != nil {
		slog.Warn("suggestion tick: active listing failed, prompting without it", "error", err)
		active = nil
	}
	summary, err := e.history.RecentSummary(ctx)
	if err != nil {
		slog.Warn("suggestion tick: summary read failed, prompting without it", "error", err)
		summary = ""
	}

	response, err := e.generate(ctx, e.buildSuggestionPrompt(active, summary), suggestionParams())
	if err != nil {
		slog.Warn("suggestion generation failed", "error", err)
		return nil
	}

	payload, err := parseSuggestionPayload(response)
	if err != nil {
		slog.Warn("suggestion discarded as malformed", "error", err)
		return nil
	}
	return payload
}

// GetPendingSuggestion returns the current pending suggestion, or nil when
// none is waiting. Expired and surfaced suggestions are never returned.
func (e *Engine) GetPendingSuggestion(ctx context.Context) (*datatypes.PendingSuggestion, error) {
	sug, err := e.store.LatestPendingSuggestion(ctx, e.now())
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read pending suggestion: %w", err)
	}
	return sug, nil
}

// MarkSurfaced records that the chat layer has shown a suggestion to the
// user. Idempotent: re-marking keeps the original surfacing instant.
func (e *Engine) MarkSurfaced(ctx context.Context, id string) (*datatypes.PendingSuggestion, error) {
	now := e.now()
	sug, err := e.store.MutateSuggestion(ctx, id, func(m *datatypes.PendingSuggestion) error {
		if m.Surfaced {
			return nil
		}
		m.Surfaced = true
		m.SurfacedAt = &now
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("mark suggestion surfaced: %w", err)
	}

	slog.Info("suggestion surfaced", "suggestion_id", id)
	return sug, nil
}

// UpdateSuggestionOutcome records the fate of a surfaced suggestion: it
// either became a storyline or was turned down for a reason.
func (e *Engine) UpdateSuggestionOutcome(ctx context.Context, id string, wasCreated bool, storylineID string, rejectedReason datatypes.RejectedReason) (*datatypes.PendingSuggestion, error) {
	if wasCreated && storylineID == "" {
		return nil, fmt.Errorf("created suggestion outcome requires a storyline id")
	}
	if !wasCreated && !rejectedReason.Valid() {
		return nil, fmt.Errorf("rejected suggestion outcome requires a valid reason, got %q", rejectedReason)
	}
	if wasCreated && rejectedReason != "" {
		return nil, fmt.Errorf("created suggestion outcome cannot carry a rejection reason")
	}

	sug, err := e.store.MutateSuggestion(ctx, id, func(m *datatypes.PendingSuggestion) error {
		if !m.Surfaced {
			return fmt.Errorf("suggestion not yet surfaced")
		}
		m.WasCreated = wasCreated
		m.ResultingStorylineID = storylineID
		m.RejectedReason = rejectedReason
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("record suggestion outcome: %w", err)
	}

	slog.Info("suggestion outcome recorded",
		"suggestion_id", id,
		"was_created", wasCreated,
		"storyline_id", storylineID,
		"rejected_reason", rejectedReason)
	return sug, nil
}
