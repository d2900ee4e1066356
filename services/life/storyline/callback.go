// Copyright (C) 2026 Solenne AI (dev@solenne.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package storyline - callback selection over long-resolved storylines.
package storyline

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/solenne-ai/solenne/services/life/datatypes"
)

// SelectCallbackCandidate picks a resolved storyline worth bringing back up
// in conversation, or nil when nothing qualifies.
//
// # Description
//
// Eligibility requires a resolution at least the configured age in the
// past, and either no prior mention or a mention older than the configured
// gap. Candidates are capped to the top pool by emotional intensity, then
// one is drawn by cumulative-weight sampling where each weight is the
// candidate's intensity, so charged memories resurface more often without
// starving the rest.
func (e *Engine) SelectCallbackCandidate(ctx context.Context) (*datatypes.Storyline, error) {
	ctx, span := tracer.Start(ctx, "storyline.select_callback")
	defer span.End()

	now := e.now()

	resolved, err := e.store.ListStorylines(ctx, StorylineFilter{ResolvedOnly: true})
	if err != nil {
		return nil, fmt.Errorf("list resolved storylines: %w", err)
	}

	eligible := make([]*datatypes.Storyline, 0, len(resolved))
	for _, s := range resolved {
		if s.ResolvedAt == nil || now.Sub(*s.ResolvedAt) < e.cfg.CallbackMinAge {
			continue
		}
		if s.LastMentionedAt != nil && now.Sub(*s.LastMentionedAt) < e.cfg.CallbackMentionGap {
			continue
		}
		eligible = append(eligible, s)
	}
	if len(eligible) == 0 {
		return nil, nil
	}

	sort.SliceStable(eligible, func(i, j int) bool {
		return eligible[i].EmotionalIntensity > eligible[j].EmotionalIntensity
	})
	if len(eligible) > e.cfg.CallbackPoolSize {
		eligible = eligible[:e.cfg.CallbackPoolSize]
	}

	var total float64
	for _, s := range eligible {
		total += s.EmotionalIntensity
	}
	if total <= 0 {
		return eligible[0], nil
	}

	target := e.cfg.RandFloat() * total
	var cumulative float64
	for _, s := range eligible {
		cumulative += s.EmotionalIntensity
		if target < cumulative {
			slog.Debug("callback candidate selected",
				"storyline_id", s.ID, "title", s.Title)
			return s, nil
		}
	}
	return eligible[len(eligible)-1], nil
}

// MarkCallbackUsed records that the chat layer worked a callback into
// conversation, starting the mention gap over.
func (e *Engine) MarkCallbackUsed(ctx context.Context, id string) error {
	now := e.now()
	if _, err := e.store.MutateStoryline(ctx, id, func(m *datatypes.Storyline) error {
		m.LastMentionedAt = &now
		return nil
	}); err != nil {
		return fmt.Errorf("mark callback used: %w", err)
	}

	slog.Info("callback used", "storyline_id", id)
	return nil
}
