// Copyright (C) 2026 Solenne AI (dev@solenne.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package storyline - the closure engine: outcome-specific resolution arcs.
package storyline

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/solenne-ai/solenne/services/life/datatypes"
)

// stockOutcomeDescriptions back InitiateClosure when the description
// generation fails. In first person because they land in prompts verbatim.
var stockOutcomeDescriptions = map[datatypes.Outcome]string{
	datatypes.OutcomeSuccess:     "It worked out the way I hoped it would.",
	datatypes.OutcomeFailure:     "It did not work out, and I have to sit with that.",
	datatypes.OutcomeAbandoned:   "I decided to let it go before it went any further.",
	datatypes.OutcomeTransformed: "It turned into something different from what I started.",
}

// InitiateClosure resolves a storyline after first asking the collaborator
// for a one-sentence outcome description. A failed or unparseable
// generation falls back to the stock line for the outcome; closure never
// stalls on description quality.
func (e *Engine) InitiateClosure(ctx context.Context, storylineID string, outcome datatypes.Outcome) (*datatypes.Storyline, error) {
	ctx, span := tracer.Start(ctx, "storyline.initiate_closure")
	defer span.End()

	if !outcome.Valid() {
		return nil, fmt.Errorf("invalid outcome %q", outcome)
	}

	s, err := e.store.GetStoryline(ctx, storylineID)
	if err != nil {
		return nil, fmt.Errorf("load storyline: %w", err)
	}
	if !s.Active() {
		return nil, fmt.Errorf("storyline already resolved with outcome %s", s.Outcome)
	}

	description := stockOutcomeDescriptions[outcome]
	response, err := e.generate(ctx, e.buildOutcomeDescriptionPrompt(s, outcome), sentenceParams())
	if err != nil {
		slog.Warn("outcome description generation failed, using stock line",
			"storyline_id", storylineID, "error", err)
	} else if sentence, perr := parseSentence(response); perr != nil {
		slog.Warn("outcome description unparseable, using stock line",
			"storyline_id", storylineID, "error", perr)
	} else {
		description = sentence
	}

	return e.Resolve(ctx, storylineID, outcome, description, "")
}

// Resolve runs a storyline through its outcome's resolution template.
//
// # Description
//
// In order: the storyline enters resolving and takes on its outcome fields;
// the template's four closure steps are generated and persisted
// sequentially (a failed step leaves a gap, never aborts the arc); the
// storyline enters resolved; the template's mood impact is applied; and for
// outcomes that truly concluded, a one-sentence learning is extracted into
// the character-fact sink.
//
// The four steps form a multi-day emotional arc surfaced at most one per
// day by the chat layer, but they are all generated within this call.
//
// # Inputs
//
//   - resolutionEmotion: Optional; defaults to the template's first emotion.
//
// # Outputs
//
//   - *datatypes.Storyline: The resolved record.
//   - error: Non-nil for an invalid outcome, an unknown storyline, a
//     double resolve, or a store fault on the two phase writes.
func (e *Engine) Resolve(ctx context.Context, storylineID string, outcome datatypes.Outcome, outcomeDescription, resolutionEmotion string) (*datatypes.Storyline, error) {
	ctx, span := tracer.Start(ctx, "storyline.resolve")
	defer span.End()

	if !outcome.Valid() {
		return nil, fmt.Errorf("invalid outcome %q", outcome)
	}
	tmpl, ok := datatypes.TemplateFor(outcome)
	if !ok {
		return nil, fmt.Errorf("no resolution template for outcome %q", outcome)
	}
	if resolutionEmotion == "" && len(tmpl.Emotions) > 0 {
		resolutionEmotion = tmpl.Emotions[0]
	}

	now := e.now()
	s, err := e.store.MutateStoryline(ctx, storylineID, func(m *datatypes.Storyline) error {
		if !m.Active() {
			return fmt.Errorf("storyline already resolved with outcome %s", m.Outcome)
		}
		m.Phase = datatypes.PhaseResolving
		m.PhaseStartedAt = now
		m.Outcome = outcome
		m.OutcomeDescription = outcomeDescription
		m.ResolutionEmotion = resolutionEmotion
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("enter resolving: %w", err)
	}

	slog.Info("storyline resolving",
		"storyline_id", s.ID,
		"title", s.Title,
		"outcome", outcome)

	for _, step := range tmpl.Steps {
		if err := e.generateClosureStep(ctx, s, tmpl, step); err != nil {
			// All-attempted, not all-or-nothing: a failed step leaves a
			// gap and the arc continues.
			slog.Warn("closure step skipped",
				"storyline_id", s.ID,
				"step", step,
				"error", err)
		}
	}

	resolvedAt := e.now()
	s, err = e.store.MutateStoryline(ctx, storylineID, func(m *datatypes.Storyline) error {
		m.Phase = datatypes.PhaseResolved
		m.PhaseStartedAt = resolvedAt
		m.ResolvedAt = &resolvedAt
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("enter resolved: %w", err)
	}

	if err := e.mood.Apply(ctx, tmpl.MoodImpact); err != nil {
		slog.Warn("mood impact apply failed", "storyline_id", s.ID, "error", err)
	}

	e.events.Publish(EventStorylineResolved, map[string]string{
		"storyline_id": s.ID,
		"title":        s.Title,
		"outcome":      string(outcome),
	})

	if tmpl.ExtractLearning {
		e.extractLearning(ctx, s)
	}

	slog.Info("storyline resolved",
		"storyline_id", s.ID,
		"outcome", outcome,
		"mood_impact", tmpl.MoodImpact)
	return s, nil
}

// generateClosureStep produces and persists one step of the resolution arc.
func (e *Engine) generateClosureStep(ctx context.Context, s *datatypes.Storyline, tmpl datatypes.ResolutionTemplate, step datatypes.UpdateType) error {
	emotion := e.randomEmotion(tmpl.Emotions)

	response, err := e.generate(ctx, e.buildClosureStepPrompt(s, tmpl, step, emotion), beatParams())
	if err != nil {
		return err
	}
	payload, err := parseBeatPayload(response)
	if err != nil {
		return err
	}

	update := &datatypes.StorylineUpdate{
		ID:            newID(),
		StorylineID:   s.ID,
		UpdateType:    step,
		Content:       payload.Content,
		EmotionalTone: payload.EmotionalTone,
		CreatedAt:     e.now(),
	}
	if err := e.store.InsertUpdate(ctx, update); err != nil {
		return fmt.Errorf("persist closure step: %w", err)
	}

	if e.metrics != nil {
		e.metrics.ClosureStepsTotal.Add(ctx, 1,
			metric.WithAttributes(attribute.String("step", string(step))))
	}

	e.events.Publish(EventUpdateGenerated, map[string]string{
		"storyline_id": s.ID,
		"update_id":    update.ID,
		"update_type":  string(step),
	})
	return nil
}

// randomEmotion picks one of the template's candidate emotions.
func (e *Engine) randomEmotion(emotions []string) string {
	if len(emotions) == 0 {
		return ""
	}
	idx := int(e.cfg.RandFloat() * float64(len(emotions)))
	if idx >= len(emotions) {
		idx = len(emotions) - 1
	}
	return emotions[idx]
}

// extractLearning asks for the permanent takeaway and hands it to the
// character-fact sink. Best-effort: every failure path only logs.
func (e *Engine) extractLearning(ctx context.Context, s *datatypes.Storyline) {
	response, err := e.generate(ctx, e.buildLearningPrompt(s), sentenceParams())
	if err != nil {
		slog.Warn("learning extraction failed", "storyline_id", s.ID, "error", err)
		return
	}
	learning, err := parseSentence(response)
	if err != nil {
		slog.Warn("learning extraction unparseable", "storyline_id", s.ID, "error", err)
		return
	}

	if err := e.facts.StoreFact(ctx, "experiences", "storyline_"+s.ID, learning); err != nil {
		slog.Warn("learning fact write failed", "storyline_id", s.ID, "error", err)
		return
	}
	slog.Info("storyline learning stored", "storyline_id", s.ID, "learning", learning)
}
