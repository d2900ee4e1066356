// Copyright (C) 2026 Solenne AI (dev@solenne.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package storyline - the phase state machine and its daily processing pass.
package storyline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/solenne-ai/solenne/services/life/datatypes"
)

// phaseOrder is the forward progression for active storylines. Resolution
// phases (resolving, resolved, reflecting) are reached only through the
// closure path, never by timed advancement.
var phaseOrder = []datatypes.Phase{
	datatypes.PhaseAnnounced,
	datatypes.PhaseHoneymoon,
	datatypes.PhaseReality,
	datatypes.PhaseActive,
	datatypes.PhaseClimax,
}

// phaseBeatTypes maps an entered phase to the narrative beat kind that
// announces it. Entering announced produces no beat; the storyline's
// InitialAnnouncement covers it.
var phaseBeatTypes = map[datatypes.Phase]datatypes.UpdateType{
	datatypes.PhaseHoneymoon: datatypes.UpdateExcitement,
	datatypes.PhaseReality:   datatypes.UpdateRealityCheck,
	datatypes.PhaseActive:    datatypes.UpdateProgress,
	datatypes.PhaseClimax:    datatypes.UpdateTurningPoint,
}

// nextPhase returns the phase following p in the forward progression. The
// bool is false at climax, which only auto-resolution leaves.
func nextPhase(p datatypes.Phase) (datatypes.Phase, bool) {
	for i := 0; i < len(phaseOrder)-1; i++ {
		if phaseOrder[i] == p {
			return phaseOrder[i+1], true
		}
	}
	return "", false
}

// dayOf truncates an instant to its UTC calendar day.
func dayOf(t time.Time) time.Time {
	return t.UTC().Truncate(24 * time.Hour)
}

// ProcessPass runs one scheduled phase-advancement pass.
//
// # Description
//
// At most one pass runs at a time; a second caller gets ErrPassInProgress
// immediately rather than queueing. The pass is day-granular and idempotent:
// running it twice on the same calendar day performs no second advancement.
// When days were missed (host not running), one advancement step is applied
// per missed day, in sequence, each evaluated at that day's logical instant,
// so a storyline walks its phases exactly as if the passes had run on time.
//
// # Outputs
//
//   - error: ErrPassInProgress when overlapping, otherwise only
//     infrastructure faults reading or writing the day marker. Per-storyline
//     failures inside a step are logged and never abort siblings.
func (e *Engine) ProcessPass(ctx context.Context) error {
	if !e.passSem.TryAcquire(1) {
		return ErrPassInProgress
	}
	defer e.passSem.Release(1)

	ctx, span := tracer.Start(ctx, "storyline.process_pass")
	defer span.End()

	start := e.now()
	today := dayOf(start)

	steps, err := e.pendingSteps(ctx, today)
	if err != nil {
		return err
	}
	if len(steps) == 0 {
		slog.Debug("phase pass already processed today", "day", today.Format("2006-01-02"))
		return nil
	}
	if len(steps) > 1 {
		slog.Info("phase pass catching up missed days", "missed_days", len(steps))
	}

	for _, stepTime := range steps {
		e.runPassStep(ctx, stepTime)
	}

	if err := e.store.SetLastProcessedDay(ctx, today); err != nil {
		return fmt.Errorf("record processed day: %w", err)
	}

	if e.metrics != nil {
		e.metrics.PassDuration.Record(ctx, e.now().Sub(start).Seconds())
	}
	return nil
}

// pendingSteps computes the logical instants still owed before today counts
// as processed. Empty means today is already done.
func (e *Engine) pendingSteps(ctx context.Context, today time.Time) ([]time.Time, error) {
	last, ok, err := e.store.LastProcessedDay(ctx)
	if err != nil {
		return nil, fmt.Errorf("read last processed day: %w", err)
	}
	if !ok {
		// First pass ever: process today only, no history to replay.
		return []time.Time{today}, nil
	}

	lastDay := dayOf(last)
	if !lastDay.Before(today) {
		return nil, nil
	}

	missed := int(today.Sub(lastDay) / (24 * time.Hour))
	steps := make([]time.Time, 0, missed)
	for i := 1; i <= missed; i++ {
		steps = append(steps, lastDay.Add(time.Duration(i)*24*time.Hour))
	}
	return steps, nil
}

// runPassStep advances every storyline by one day-step evaluated at
// stepTime. Failures are contained per storyline.
func (e *Engine) runPassStep(ctx context.Context, stepTime time.Time) {
	active, err := e.store.ListStorylines(ctx, StorylineFilter{ActiveOnly: true})
	if err != nil {
		slog.Error("phase pass could not list active storylines", "error", err)
		return
	}

	for _, s := range active {
		if err := e.advanceStoryline(ctx, s.ID, stepTime); err != nil {
			slog.Error("storyline advancement failed",
				"storyline_id", s.ID,
				"title", s.Title,
				"error", err)
		}
	}

	if err := e.ageResolved(ctx, stepTime); err != nil {
		slog.Error("aging resolved storylines failed", "error", err)
	}

	if decayer, ok := e.mood.(MoodDecayer); ok {
		if err := decayer.Decay(ctx); err != nil {
			slog.Warn("mood decay failed", "error", err)
		}
	}
}

// advanceStoryline applies one day-step to a single storyline.
func (e *Engine) advanceStoryline(ctx context.Context, id string, stepTime time.Time) error {
	s, err := e.store.GetStoryline(ctx, id)
	if err != nil {
		return fmt.Errorf("load storyline: %w", err)
	}
	if !s.Active() {
		return nil
	}

	switch s.Phase {
	case datatypes.PhaseClimax:
		return e.advanceClimax(ctx, s)
	case datatypes.PhaseAnnounced, datatypes.PhaseHoneymoon,
		datatypes.PhaseReality, datatypes.PhaseActive:
		return e.advanceTimed(ctx, s, stepTime)
	default:
		// Resolution phases belong to the closure path.
		return nil
	}
}

// advanceTimed moves a storyline to its next phase once the configured
// duration has elapsed, then generates the entering beat.
func (e *Engine) advanceTimed(ctx context.Context, s *datatypes.Storyline, stepTime time.Time) error {
	duration, ok := e.cfg.PhaseDurations[s.Phase]
	if !ok {
		return fmt.Errorf("no duration configured for phase %s", s.Phase)
	}
	if stepTime.Sub(s.PhaseStartedAt) < duration {
		return nil
	}

	next, ok := nextPhase(s.Phase)
	if !ok {
		return nil
	}

	previous := s.Phase
	updated, err := e.store.MutateStoryline(ctx, s.ID, func(m *datatypes.Storyline) error {
		if !m.Active() {
			return fmt.Errorf("storyline resolved mid-pass")
		}
		m.Phase = next
		m.PhaseStartedAt = stepTime
		return nil
	})
	if err != nil {
		return fmt.Errorf("advance %s to %s: %w", previous, next, err)
	}

	slog.Info("storyline phase advanced",
		"storyline_id", updated.ID,
		"title", updated.Title,
		"from", previous,
		"to", next)

	e.events.Publish(EventPhaseChanged, map[string]string{
		"storyline_id": updated.ID,
		"from":         string(previous),
		"to":           string(next),
	})

	if beat, ok := phaseBeatTypes[next]; ok {
		if err := e.generatePhaseBeat(ctx, updated, beat); err != nil {
			// A failed generation costs one beat, not the pass.
			slog.Warn("phase beat generation failed",
				"storyline_id", updated.ID,
				"beat", beat,
				"error", err)
		}
	}
	return nil
}

// advanceClimax counts one more pass at climax and triggers auto-resolution
// once the configured limit is reached.
func (e *Engine) advanceClimax(ctx context.Context, s *datatypes.Storyline) error {
	updated, err := e.store.MutateStoryline(ctx, s.ID, func(m *datatypes.Storyline) error {
		if !m.Active() {
			return fmt.Errorf("storyline resolved mid-pass")
		}
		m.ClimaxPasses++
		return nil
	})
	if err != nil {
		return fmt.Errorf("count climax pass: %w", err)
	}

	if updated.ClimaxPasses < e.cfg.ClimaxPassLimit {
		slog.Debug("storyline holding at climax",
			"storyline_id", updated.ID,
			"passes", updated.ClimaxPasses,
			"limit", e.cfg.ClimaxPassLimit)
		return nil
	}

	outcome := e.weightedOutcome()
	slog.Info("storyline auto-resolving from climax",
		"storyline_id", updated.ID,
		"title", updated.Title,
		"passes", updated.ClimaxPasses,
		"outcome", outcome)

	_, err = e.InitiateClosure(ctx, updated.ID, outcome)
	return err
}

// weightedOutcome samples a terminal outcome by cumulative weight. It walks
// the fixed outcome order so a given random draw always maps to the same
// outcome.
func (e *Engine) weightedOutcome() datatypes.Outcome {
	var total float64
	for _, o := range datatypes.AllOutcomes {
		total += e.cfg.OutcomeWeights[o]
	}
	if total <= 0 {
		return datatypes.OutcomeSuccess
	}

	target := e.cfg.RandFloat() * total
	var cumulative float64
	for _, o := range datatypes.AllOutcomes {
		cumulative += e.cfg.OutcomeWeights[o]
		if target < cumulative {
			return o
		}
	}
	return datatypes.AllOutcomes[len(datatypes.AllOutcomes)-1]
}

// ageResolved moves storylines out of resolved into reflecting once they
// have sat long enough, making them callback material.
func (e *Engine) ageResolved(ctx context.Context, stepTime time.Time) error {
	resolved, err := e.store.ListStorylines(ctx, StorylineFilter{ResolvedOnly: true})
	if err != nil {
		return fmt.Errorf("list resolved storylines: %w", err)
	}

	for _, s := range resolved {
		if s.Phase != datatypes.PhaseResolved {
			continue
		}
		reference := s.PhaseStartedAt
		if s.ResolvedAt != nil {
			reference = *s.ResolvedAt
		}
		if stepTime.Sub(reference) < e.cfg.ReflectingAfter {
			continue
		}

		if _, err := e.store.MutateStoryline(ctx, s.ID, func(m *datatypes.Storyline) error {
			m.Phase = datatypes.PhaseReflecting
			m.PhaseStartedAt = stepTime
			return nil
		}); err != nil {
			slog.Error("storyline aging failed", "storyline_id", s.ID, "error", err)
			continue
		}
		slog.Info("storyline aged into reflecting",
			"storyline_id", s.ID,
			"title", s.Title)
	}
	return nil
}

// generatePhaseBeat asks the collaborator for the beat announcing the
// storyline's new phase and persists it.
func (e *Engine) generatePhaseBeat(ctx context.Context, s *datatypes.Storyline, beat datatypes.UpdateType) error {
	response, err := e.generate(ctx, e.buildBeatPrompt(s, beat), beatParams())
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
		UpdateType:    beat,
		Content:       payload.Content,
		EmotionalTone: payload.EmotionalTone,
		CreatedAt:     e.now(),
	}
	if err := e.store.InsertUpdate(ctx, update); err != nil {
		return fmt.Errorf("persist beat: %w", err)
	}

	// The freshest beat's tone becomes the storyline's current tone.
	if _, err := e.store.MutateStoryline(ctx, s.ID, func(m *datatypes.Storyline) error {
		m.CurrentEmotionalTone = payload.EmotionalTone
		return nil
	}); err != nil {
		slog.Warn("emotional tone refresh failed", "storyline_id", s.ID, "error", err)
	}

	e.events.Publish(EventUpdateGenerated, map[string]string{
		"storyline_id": s.ID,
		"update_id":    update.ID,
		"update_type":  string(beat),
	})
	return nil
}
