// Copyright (C) 2026 Solenne AI (dev@solenne.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package storyline - the prompt context builder consumed by the chat layer.
package storyline

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/solenne-ai/solenne/services/life/datatypes"
)

// scoredStoryline pairs a storyline with its salience and the oldest
// unmentioned beat inside the recency window, if any.
type scoredStoryline struct {
	storyline *datatypes.Storyline
	update    *datatypes.StorylineUpdate
	salience  float64
}

// BuildContext assembles the bounded storyline section for an outbound
// prompt.
//
// # Description
//
// Every storyline is scored as phase urgency times emotional intensity,
// plus a bonus when an unmentioned beat exists inside the recency window.
// Low-intensity storylines are dropped, the rest sorted by salience, and at
// most the configured cap kept. The builder performs no writes.
//
// Concurrent calls are collapsed into one store scan; every caller in the
// window receives the same result.
func (e *Engine) BuildContext(ctx context.Context) (*PromptContext, error) {
	v, err, _ := e.contextGroup.Do("context", func() (interface{}, error) {
		return e.buildContext(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.(*PromptContext), nil
}

func (e *Engine) buildContext(ctx context.Context) (*PromptContext, error) {
	ctx, span := tracer.Start(ctx, "storyline.build_context")
	defer span.End()

	now := e.now()

	all, err := e.store.ListStorylines(ctx, StorylineFilter{})
	if err != nil {
		return nil, fmt.Errorf("list storylines: %w", err)
	}

	scored := make([]scoredStoryline, 0, len(all))
	for _, s := range all {
		if s.EmotionalIntensity < e.cfg.MinContextIntensity {
			continue
		}

		update, err := e.oldestUnmentionedUpdate(ctx, s.ID, now)
		if err != nil {
			slog.Warn("unmentioned beat lookup failed",
				"storyline_id", s.ID, "error", err)
		}

		salience := e.cfg.PhaseUrgency[s.Phase] * s.EmotionalIntensity
		if update != nil {
			salience += e.cfg.UnmentionedBonus
		}
		scored = append(scored, scoredStoryline{
			storyline: s,
			update:    update,
			salience:  salience,
		})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].salience > scored[j].salience
	})
	if len(scored) > e.cfg.MaxContextStorylines {
		scored = scored[:e.cfg.MaxContextStorylines]
	}

	pc := &PromptContext{}
	if len(scored) == 0 {
		return pc, nil
	}

	pc.HasActive = true
	pc.MostPressing = scored[0].storyline
	for _, sc := range scored {
		pc.Storylines = append(pc.Storylines, sc.storyline)
		if sc.update != nil {
			pc.UnmentionedUpdates = append(pc.UnmentionedUpdates, sc.update)
		}
	}
	pc.RenderedSection = renderContextSection(scored)
	return pc, nil
}

// oldestUnmentionedUpdate returns the storyline's next beat to surface.
// Oldest wins so multi-step closure arcs reach the user in order.
func (e *Engine) oldestUnmentionedUpdate(ctx context.Context, storylineID string, now time.Time) (*datatypes.StorylineUpdate, error) {
	updates, err := e.store.ListUpdates(ctx, UpdateFilter{
		StorylineID:     storylineID,
		UnmentionedOnly: true,
		CreatedAfter:    now.Add(-e.cfg.UnmentionedWindow),
	})
	if err != nil || len(updates) == 0 {
		return nil, err
	}
	return updates[0], nil
}

// renderContextSection writes the compact text block injected into prompts.
func renderContextSection(scored []scoredStoryline) string {
	var b strings.Builder
	b.WriteString("Your life right now:\n")
	for _, sc := range scored {
		s := sc.storyline
		fmt.Fprintf(&b, "- %s [%s, %s]", s.Title, s.Category, s.Phase)
		if s.CurrentEmotionalTone != "" {
			fmt.Fprintf(&b, ", feeling %s", s.CurrentEmotionalTone)
		}
		b.WriteString("\n")
		if sc.update != nil {
			fmt.Fprintf(&b, "  Not yet shared with the user: %s\n", sc.update.Content)
		}
	}
	return b.String()
}

// =============================================================================
// Chat-Layer Accessors
// =============================================================================

// GetStoryline fetches one storyline by ID.
func (e *Engine) GetStoryline(ctx context.Context, id string) (*datatypes.Storyline, error) {
	return e.store.GetStoryline(ctx, id)
}

// ListStorylines returns storylines matching the filter, newest first.
func (e *Engine) ListStorylines(ctx context.Context, filter StorylineFilter) ([]*datatypes.Storyline, error) {
	return e.store.ListStorylines(ctx, filter)
}

// ListUpdates returns narrative beats matching the filter, oldest first.
func (e *Engine) ListUpdates(ctx context.Context, filter UpdateFilter) ([]*datatypes.StorylineUpdate, error) {
	return e.store.ListUpdates(ctx, filter)
}

// ListAttempts returns the most recent creation-attempt audit rows.
func (e *Engine) ListAttempts(ctx context.Context, limit int) ([]*datatypes.CreationAttempt, error) {
	return e.store.ListAttempts(ctx, limit)
}

// DeleteStoryline removes a storyline and every beat it owns. Operator
// cleanup only; the normal lifecycle resolves, never deletes.
func (e *Engine) DeleteStoryline(ctx context.Context, id string) error {
	if err := e.store.DeleteStoryline(ctx, id); err != nil {
		return fmt.Errorf("delete storyline: %w", err)
	}
	slog.Info("storyline deleted", "storyline_id", id)
	return nil
}

// MarkUpdateMentioned records that the chat layer surfaced a beat, and
// refreshes the owning storyline's last-mentioned instant.
func (e *Engine) MarkUpdateMentioned(ctx context.Context, storylineID, updateID string) error {
	if err := e.store.MarkUpdateMentioned(ctx, storylineID, updateID); err != nil {
		return fmt.Errorf("mark update mentioned: %w", err)
	}

	now := e.now()
	if _, err := e.store.MutateStoryline(ctx, storylineID, func(m *datatypes.Storyline) error {
		m.LastMentionedAt = &now
		return nil
	}); err != nil {
		slog.Warn("last-mentioned refresh failed",
			"storyline_id", storylineID, "error", err)
	}
	return nil
}
