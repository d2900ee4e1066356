// Copyright (C) 2026 Solenne AI (dev@solenne.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package storyline

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/solenne-ai/solenne/services/life/datatypes"
)

// ProposeCreation runs a storyline proposal through the creation gate.
//
// # Description
//
// Validates the input, then applies the safety checks in order, stopping at
// the first failure: cooldown (fail open on store error), duplicate within
// the category's trailing window (fail open), single-active-slot (fail
// closed). If every check passes, persists the storyline and advances the
// shared cooldown record. One CreationAttempt audit row is written whatever
// happens; audit failures are logged, never surfaced.
//
// The check-and-persist section runs under the engine's creation mutex so
// the two proposal sources cannot interleave between a passed check and its
// write.
//
// # Inputs
//
//   - ctx: Carries cancellation and tracing.
//   - input: The proposed storyline fields; validated before any store read.
//   - source: Which path proposed the creation.
//
// # Outputs
//
//   - *CreationResult: Discriminated result; business rejections are result
//     variants, not errors.
//   - error: Non-nil only for malformed input or an unknown source.
func (e *Engine) ProposeCreation(ctx context.Context, input *datatypes.StorylineInput, source datatypes.AttemptSource) (*CreationResult, error) {
	ctx, span := tracer.Start(ctx, "storyline.propose_creation")
	defer span.End()

	if input == nil {
		return nil, fmt.Errorf("nil storyline input")
	}
	if err := input.Validate(); err != nil {
		slog.Warn("storyline proposal rejected by validation",
			"title", input.Title,
			"source", source,
			"error", err)
		return nil, err
	}
	if !source.Valid() {
		return nil, fmt.Errorf("unknown creation source %q", source)
	}

	e.creationMu.Lock()
	defer e.creationMu.Unlock()

	now := e.now()

	result := e.checkCooldown(ctx, now)
	if result == nil {
		result = e.checkDuplicate(ctx, input, now)
	}
	if result == nil {
		result = e.checkActiveSlot(ctx)
	}
	if result == nil {
		result = e.persistCreation(ctx, input, now)
	}

	e.recordAttempt(ctx, input, source, result, now)

	if result.Created {
		slog.Info("storyline created",
			"storyline_id", result.Storyline.ID,
			"title", result.Storyline.Title,
			"category", result.Storyline.Category,
			"source", source)
	} else {
		slog.Info("storyline proposal rejected",
			"title", input.Title,
			"reason", result.Reason,
			"source", source)
	}

	return result, nil
}

// checkCooldown enforces the minimum spacing between creations. Returns nil
// when the proposal may proceed.
func (e *Engine) checkCooldown(ctx context.Context, now time.Time) *CreationResult {
	state, err := e.store.Cooldown(ctx)
	if err != nil {
		// Fail open: the duplicate and active-slot checks still stand
		// between a store fault and runaway creation.
		slog.Warn("cooldown read failed, failing open", "error", err)
		return nil
	}
	if state.LastStorylineCreatedAt == nil {
		return nil
	}

	elapsed := now.Sub(*state.LastStorylineCreatedAt)
	if elapsed >= e.cfg.Cooldown {
		return nil
	}

	remaining := int(math.Ceil((e.cfg.Cooldown - elapsed).Hours()))
	return &CreationResult{
		Reason:                 datatypes.FailureCooldownActive,
		CooldownHoursRemaining: remaining,
	}
}

// checkDuplicate rejects titles too similar to a recent storyline in the
// same category. Returns nil when the proposal may proceed.
func (e *Engine) checkDuplicate(ctx context.Context, input *datatypes.StorylineInput, now time.Time) *CreationResult {
	candidates, err := e.store.ListStorylines(ctx, StorylineFilter{
		Category:     input.Category,
		CreatedAfter: now.Add(-e.cfg.DedupWindow),
	})
	if err != nil {
		// Fail open: duplicate protection is best-effort.
		slog.Warn("duplicate read failed, failing open", "error", err)
		return nil
	}

	for _, candidate := range candidates {
		similarity := TitleSimilarity(input.Title, candidate.Title)
		if similarity >= e.cfg.DuplicateThreshold {
			slog.Info("duplicate storyline detected",
				"proposed", input.Title,
				"existing", candidate.Title,
				"similarity", similarity)
			return &CreationResult{
				Reason:              datatypes.FailureDuplicateDetected,
				DuplicateMatchTitle: candidate.Title,
			}
		}
	}
	return nil
}

// checkActiveSlot enforces the single-active-storyline invariant. Returns
// nil when the slot is free.
func (e *Engine) checkActiveSlot(ctx context.Context) *CreationResult {
	active, err := e.store.ListStorylines(ctx, StorylineFilter{ActiveOnly: true, Limit: 1})
	if err != nil {
		// Fail closed: this invariant must never be bypassed by an
		// infrastructure fault.
		slog.Error("active-slot read failed, failing closed", "error", err)
		return &CreationResult{Reason: datatypes.FailureDBError}
	}
	if len(active) == 0 {
		return nil
	}

	blocking := active[0]
	return &CreationResult{
		Reason:                 datatypes.FailureCategoryConstraint,
		BlockingStorylineID:    blocking.ID,
		BlockingStorylineTitle: blocking.Title,
	}
}

// persistCreation writes the storyline and advances the cooldown record.
func (e *Engine) persistCreation(ctx context.Context, input *datatypes.StorylineInput, now time.Time) *CreationResult {
	s := &datatypes.Storyline{
		ID:                   newID(),
		Title:                input.Title,
		Category:             input.Category,
		Type:                 input.Type,
		Phase:                datatypes.PhaseAnnounced,
		CurrentEmotionalTone: input.CurrentEmotionalTone,
		EmotionalIntensity:   input.EmotionalIntensity,
		Stakes:               input.Stakes,
		UserInvolvement:      input.UserInvolvement,
		InitialAnnouncement:  input.InitialAnnouncement,
		CreatedAt:            now,
		PhaseStartedAt:       now,
		ShouldMentionBy:      now.Add(e.cfg.MentionByWindow),
	}

	if err := e.store.InsertStoryline(ctx, s); err != nil {
		slog.Error("storyline insert failed", "title", input.Title, "error", err)
		return &CreationResult{Reason: datatypes.FailureDBError}
	}

	created := now
	if err := e.store.SetCooldown(ctx, datatypes.CooldownState{LastStorylineCreatedAt: &created}); err != nil {
		// The storyline exists; losing the cooldown write weakens pacing
		// until the next successful creation but does not corrupt state.
		slog.Warn("cooldown write failed after creation", "storyline_id", s.ID, "error", err)
	}

	e.events.Publish(EventStorylineCreated, map[string]string{
		"storyline_id": s.ID,
		"title":        s.Title,
		"category":     string(s.Category),
	})

	return &CreationResult{Created: true, Storyline: s}
}

// recordAttempt appends the audit row and mirrors it to the attempt log.
// Neither write may block or alter the caller's result.
func (e *Engine) recordAttempt(ctx context.Context, input *datatypes.StorylineInput, source datatypes.AttemptSource, result *CreationResult, now time.Time) {
	attempt := &datatypes.CreationAttempt{
		ID:                     newID(),
		Title:                  input.Title,
		Category:               input.Category,
		Type:                   input.Type,
		Success:                result.Created,
		FailureReason:          result.Reason,
		CooldownHoursRemaining: result.CooldownHoursRemaining,
		DuplicateMatchTitle:    result.DuplicateMatchTitle,
		BlockingStorylineID:    result.BlockingStorylineID,
		Source:                 source,
		AttemptedAt:            now,
	}

	if err := e.store.AppendAttempt(ctx, attempt); err != nil {
		slog.Error("creation attempt audit write failed",
			"title", attempt.Title,
			"success", attempt.Success,
			"error", err)
	}
	if err := e.audit.LogAttempt(attempt); err != nil {
		slog.Warn("creation attempt log mirror failed", "error", err)
	}

	if e.metrics == nil {
		return
	}
	if result.Created {
		e.metrics.CreationsTotal.Add(ctx, 1,
			metric.WithAttributes(attribute.String("source", string(source))))
	} else {
		e.metrics.RejectionsTotal.Add(ctx, 1,
			metric.WithAttributes(
				attribute.String("source", string(source)),
				attribute.String("reason", string(result.Reason))))
	}
}
