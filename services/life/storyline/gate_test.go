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
	"testing"
	"time"

	"github.com/solenne-ai/solenne/services/life/datatypes"
)

// validInput builds a creation input that passes validation.
func validInput() *datatypes.StorylineInput {
	return &datatypes.StorylineInput{
		Title:                "Mural commission at the river cafe",
		Category:             datatypes.CategoryCreative,
		Type:                 datatypes.TypeProject,
		CurrentEmotionalTone: "excited",
		EmotionalIntensity:   0.7,
		Stakes:               "First paid wall in months",
		UserInvolvement:      datatypes.InvolvementAware,
		InitialAnnouncement:  "The river cafe wants a mural on their back wall!",
	}
}

// proposeOK runs a proposal and fails the test on a transport-level error.
func proposeOK(t *testing.T, fix *engineFixture, input *datatypes.StorylineInput) *CreationResult {
	t.Helper()
	result, err := fix.engine.ProposeCreation(context.Background(), input, datatypes.SourceConversation)
	if err != nil {
		t.Fatalf("ProposeCreation(%q) failed: %v", input.Title, err)
	}
	return result
}

// resolveDirectly marks a stored storyline resolved without running the
// closure engine, freeing the active slot for the next proposal.
func resolveDirectly(t *testing.T, fix *engineFixture, id string) {
	t.Helper()
	resolvedAt := fix.clock.Now()
	_, err := fix.store.MutateStoryline(context.Background(), id, func(m *datatypes.Storyline) error {
		m.Phase = datatypes.PhaseResolved
		m.Outcome = datatypes.OutcomeSuccess
		m.ResolvedAt = &resolvedAt
		return nil
	})
	if err != nil {
		t.Fatalf("resolveDirectly(%s) failed: %v", id, err)
	}
}

// =============================================================================
// Happy Path
// =============================================================================

// TestProposeCreation_CreatesStoryline checks the full creation path: stored
// fields, cooldown record, audit row, and the published event.
func TestProposeCreation_CreatesStoryline(t *testing.T) {
	fix := newTestEngine(t)
	ctx := context.Background()
	now := fix.clock.Now()

	result := proposeOK(t, fix, validInput())

	if !result.Created {
		t.Fatalf("expected creation, got reason %q", result.Reason)
	}
	if result.Storyline == nil {
		t.Fatal("created result carries no storyline")
	}
	if result.Rejected() {
		t.Error("created result reports Rejected")
	}

	stored := mustGetStoryline(t, fix, result.Storyline.ID)
	if stored.Phase != datatypes.PhaseAnnounced {
		t.Errorf("new storyline phase = %q, want %q", stored.Phase, datatypes.PhaseAnnounced)
	}
	if !stored.CreatedAt.Equal(now) || !stored.PhaseStartedAt.Equal(now) {
		t.Errorf("timestamps not pinned to creation time: created=%v phaseStarted=%v", stored.CreatedAt, stored.PhaseStartedAt)
	}
	if want := now.Add(24 * time.Hour); !stored.ShouldMentionBy.Equal(want) {
		t.Errorf("ShouldMentionBy = %v, want %v", stored.ShouldMentionBy, want)
	}
	if stored.Outcome != "" || stored.ResolvedAt != nil {
		t.Error("new storyline already carries resolution state")
	}

	cooldown, err := fix.store.Cooldown(ctx)
	if err != nil {
		t.Fatalf("Cooldown read failed: %v", err)
	}
	if cooldown.LastStorylineCreatedAt == nil || !cooldown.LastStorylineCreatedAt.Equal(now) {
		t.Errorf("cooldown not advanced to creation time: %+v", cooldown)
	}

	attempts, err := fix.store.ListAttempts(ctx, 0)
	if err != nil {
		t.Fatalf("ListAttempts failed: %v", err)
	}
	if len(attempts) != 1 {
		t.Fatalf("attempt rows = %d, want 1", len(attempts))
	}
	if !attempts[0].Success || attempts[0].Source != datatypes.SourceConversation {
		t.Errorf("attempt row = %+v, want success from conversation", attempts[0])
	}

	if !fix.events.has(EventStorylineCreated) {
		t.Errorf("no %s event published, got %v", EventStorylineCreated, fix.events.kinds())
	}
}

// =============================================================================
// Input Handling
// =============================================================================

// TestProposeCreation_NilInput verifies a nil proposal is an error, not a
// rejection variant.
func TestProposeCreation_NilInput(t *testing.T) {
	fix := newTestEngine(t)
	if _, err := fix.engine.ProposeCreation(context.Background(), nil, datatypes.SourceConversation); err == nil {
		t.Error("nil input accepted")
	}
}

// TestProposeCreation_InvalidInputSkipsAudit verifies validation failures
// error out before any store write, so no audit row appears.
func TestProposeCreation_InvalidInputSkipsAudit(t *testing.T) {
	fix := newTestEngine(t)
	ctx := context.Background()

	input := validInput()
	input.EmotionalIntensity = 1.5

	if _, err := fix.engine.ProposeCreation(ctx, input, datatypes.SourceConversation); err == nil {
		t.Fatal("out-of-range intensity accepted")
	}

	attempts, err := fix.store.ListAttempts(ctx, 0)
	if err != nil {
		t.Fatalf("ListAttempts failed: %v", err)
	}
	if len(attempts) != 0 {
		t.Errorf("validation failure wrote %d audit rows", len(attempts))
	}
}

// TestProposeCreation_UnknownSource verifies source values outside the fixed
// set are errors.
func TestProposeCreation_UnknownSource(t *testing.T) {
	fix := newTestEngine(t)
	if _, err := fix.engine.ProposeCreation(context.Background(), validInput(), datatypes.AttemptSource("cron")); err == nil {
		t.Error("unknown source accepted")
	}
}

// =============================================================================
// Cooldown Check
// =============================================================================

// TestProposeCreation_CooldownRejection verifies a second proposal inside the
// window is rejected with the remaining hours rounded up.
func TestProposeCreation_CooldownRejection(t *testing.T) {
	tests := []struct {
		name      string
		elapsed   time.Duration
		wantHours int
	}{
		{name: "ten hours in", elapsed: 10 * time.Hour, wantHours: 38},
		{name: "partial hour rounds up", elapsed: 46*time.Hour + 30*time.Minute, wantHours: 2},
		{name: "final hour", elapsed: 47*time.Hour + 59*time.Minute, wantHours: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fix := newTestEngine(t)
			first := proposeOK(t, fix, validInput())
			if !first.Created {
				t.Fatalf("setup creation rejected: %q", first.Reason)
			}
			resolveDirectly(t, fix, first.Storyline.ID)

			fix.clock.Advance(tt.elapsed)

			second := validInput()
			second.Title = "Evening pottery class across town"
			second.Category = datatypes.CategoryPersonal
			result := proposeOK(t, fix, second)

			if result.Created || result.Reason != datatypes.FailureCooldownActive {
				t.Fatalf("result = %+v, want cooldown rejection", result)
			}
			if result.CooldownHoursRemaining != tt.wantHours {
				t.Errorf("CooldownHoursRemaining = %d, want %d", result.CooldownHoursRemaining, tt.wantHours)
			}
		})
	}
}

// TestProposeCreation_CooldownExpires verifies a proposal exactly at the
// window boundary goes through.
func TestProposeCreation_CooldownExpires(t *testing.T) {
	fix := newTestEngine(t)

	first := proposeOK(t, fix, validInput())
	if !first.Created {
		t.Fatalf("setup creation rejected: %q", first.Reason)
	}
	resolveDirectly(t, fix, first.Storyline.ID)

	fix.clock.Advance(48 * time.Hour)

	second := validInput()
	second.Title = "Evening pottery class across town"
	second.Category = datatypes.CategoryPersonal
	result := proposeOK(t, fix, second)

	if !result.Created {
		t.Errorf("proposal at cooldown boundary rejected: %q", result.Reason)
	}
}

// TestProposeCreation_CooldownReadFailureFailsOpen verifies an unreadable
// cooldown record does not block creation.
func TestProposeCreation_CooldownReadFailureFailsOpen(t *testing.T) {
	fix := newTestEngine(t)
	fix.store.errCooldownRead = errors.New("disk gone")

	result := proposeOK(t, fix, validInput())
	if !result.Created {
		t.Errorf("cooldown read failure blocked creation: %q", result.Reason)
	}
}

// =============================================================================
// Duplicate Check
// =============================================================================

// TestProposeCreation_DuplicateDetection exercises the title-overlap
// threshold: two-thirds overlap is rejected, half overlap passes.
func TestProposeCreation_DuplicateDetection(t *testing.T) {
	fix := newTestEngine(t)

	seed := validInput()
	seed.Title = "Learning guitar"
	seed.Category = datatypes.CategoryPersonal
	seed.Type = datatypes.TypeGoal
	first := proposeOK(t, fix, seed)
	if !first.Created {
		t.Fatalf("setup creation rejected: %q", first.Reason)
	}
	resolveDirectly(t, fix, first.Storyline.ID)
	fix.clock.Advance(72 * time.Hour)

	near := validInput()
	near.Title = "Learning guitar classes"
	near.Category = datatypes.CategoryPersonal
	near.Type = datatypes.TypeGoal
	result := proposeOK(t, fix, near)
	if result.Created || result.Reason != datatypes.FailureDuplicateDetected {
		t.Fatalf("near-duplicate result = %+v, want duplicate rejection", result)
	}
	if result.DuplicateMatchTitle != "Learning guitar" {
		t.Errorf("DuplicateMatchTitle = %q, want %q", result.DuplicateMatchTitle, "Learning guitar")
	}

	far := validInput()
	far.Title = "Learning to play guitar"
	far.Category = datatypes.CategoryPersonal
	far.Type = datatypes.TypeGoal
	result = proposeOK(t, fix, far)
	if !result.Created {
		t.Errorf("half-overlap title rejected: %q %q", result.Reason, result.DuplicateMatchTitle)
	}
}

// TestProposeCreation_DuplicateWindowExpires verifies an identical title is
// allowed again once the trailing window has passed.
func TestProposeCreation_DuplicateWindowExpires(t *testing.T) {
	fix := newTestEngine(t)

	seed := validInput()
	seed.Title = "Learning guitar"
	seed.Category = datatypes.CategoryPersonal
	first := proposeOK(t, fix, seed)
	if !first.Created {
		t.Fatalf("setup creation rejected: %q", first.Reason)
	}
	resolveDirectly(t, fix, first.Storyline.ID)

	fix.clock.Advance(8 * 24 * time.Hour)

	again := validInput()
	again.Title = "Learning guitar"
	again.Category = datatypes.CategoryPersonal
	result := proposeOK(t, fix, again)
	if !result.Created {
		t.Errorf("identical title rejected after window lapsed: %q", result.Reason)
	}
}

// TestProposeCreation_DuplicateScopedToCategory verifies a matching title in
// a different category does not trip the duplicate check.
func TestProposeCreation_DuplicateScopedToCategory(t *testing.T) {
	fix := newTestEngine(t)

	seed := validInput()
	seed.Title = "Learning guitar"
	seed.Category = datatypes.CategoryPersonal
	first := proposeOK(t, fix, seed)
	if !first.Created {
		t.Fatalf("setup creation rejected: %q", first.Reason)
	}
	resolveDirectly(t, fix, first.Storyline.ID)
	fix.clock.Advance(72 * time.Hour)

	cross := validInput()
	cross.Title = "Learning guitar"
	cross.Category = datatypes.CategoryCreative
	result := proposeOK(t, fix, cross)
	if !result.Created {
		t.Errorf("same title in another category rejected: %q", result.Reason)
	}
}

// =============================================================================
// Active Slot Check
// =============================================================================

// TestProposeCreation_ActiveSlotBlocks verifies one unresolved storyline
// blocks every further proposal, whatever its category.
func TestProposeCreation_ActiveSlotBlocks(t *testing.T) {
	fix := newTestEngine(t)

	first := proposeOK(t, fix, validInput())
	if !first.Created {
		t.Fatalf("setup creation rejected: %q", first.Reason)
	}

	fix.clock.Advance(49 * time.Hour)

	second := validInput()
	second.Title = "Evening pottery class across town"
	second.Category = datatypes.CategoryPersonal
	result := proposeOK(t, fix, second)

	if result.Created || result.Reason != datatypes.FailureCategoryConstraint {
		t.Fatalf("result = %+v, want active-slot rejection", result)
	}
	if result.BlockingStorylineID != first.Storyline.ID {
		t.Errorf("BlockingStorylineID = %q, want %q", result.BlockingStorylineID, first.Storyline.ID)
	}
	if result.BlockingStorylineTitle != first.Storyline.Title {
		t.Errorf("BlockingStorylineTitle = %q, want %q", result.BlockingStorylineTitle, first.Storyline.Title)
	}
}

// TestProposeCreation_StoreFailureFailsClosed verifies an unreadable
// storyline list rejects the proposal instead of bypassing the slot check.
func TestProposeCreation_StoreFailureFailsClosed(t *testing.T) {
	fix := newTestEngine(t)
	fix.store.errListStorylines = errors.New("disk gone")

	result := proposeOK(t, fix, validInput())
	if result.Created || result.Reason != datatypes.FailureDBError {
		t.Fatalf("result = %+v, want db_error rejection", result)
	}
	fix.store.errListStorylines = nil
	if n := fix.store.storylineCount(t, StorylineFilter{}); n != 0 {
		t.Errorf("rejected proposal persisted %d storylines", n)
	}
}

// =============================================================================
// Audit Trail
// =============================================================================

// TestProposeCreation_AuditRowPerProposal verifies every proposal past
// validation leaves exactly one attempt row, rejections included.
func TestProposeCreation_AuditRowPerProposal(t *testing.T) {
	fix := newTestEngine(t)
	ctx := context.Background()

	first := proposeOK(t, fix, validInput())
	if !first.Created {
		t.Fatalf("setup creation rejected: %q", first.Reason)
	}

	// Inside cooldown and with the slot held: two rejected proposals.
	blocked := validInput()
	blocked.Title = "Evening pottery class across town"
	blocked.Category = datatypes.CategoryPersonal
	proposeOK(t, fix, blocked)
	proposeOK(t, fix, blocked)

	attempts, err := fix.store.ListAttempts(ctx, 0)
	if err != nil {
		t.Fatalf("ListAttempts failed: %v", err)
	}
	if len(attempts) != 3 {
		t.Fatalf("attempt rows = %d, want 3", len(attempts))
	}
	// Newest first: the two rejections precede the creation.
	if attempts[0].Success || attempts[1].Success || !attempts[2].Success {
		t.Errorf("attempt ordering wrong: %v %v %v", attempts[0].Success, attempts[1].Success, attempts[2].Success)
	}
	if attempts[0].FailureReason != datatypes.FailureCooldownActive {
		t.Errorf("rejection reason = %q, want cooldown_active", attempts[0].FailureReason)
	}
	if attempts[0].CooldownHoursRemaining == 0 {
		t.Error("rejection row missing cooldown hours")
	}
}

// TestProposeCreation_SingleActiveInvariant runs repeated proposals with the
// cooldown cleared between them and checks the active count never exceeds
// one.
func TestProposeCreation_SingleActiveInvariant(t *testing.T) {
	fix := newTestEngine(t)
	ctx := context.Background()

	titles := []string{
		"Mural commission at the river cafe",
		"Evening pottery class across town",
		"Helping dad fix the boat engine",
		"Organizing the block party",
	}
	categories := []datatypes.Category{
		datatypes.CategoryCreative,
		datatypes.CategoryPersonal,
		datatypes.CategoryFamily,
		datatypes.CategorySocial,
	}

	for i := range titles {
		input := validInput()
		input.Title = titles[i]
		input.Category = categories[i]
		proposeOK(t, fix, input)

		// Clear pacing state so only the slot check can reject.
		if err := fix.store.SetCooldown(ctx, datatypes.CooldownState{}); err != nil {
			t.Fatalf("SetCooldown failed: %v", err)
		}
		fix.clock.Advance(time.Hour)
	}

	if n := fix.store.storylineCount(t, StorylineFilter{ActiveOnly: true}); n != 1 {
		t.Errorf("active storylines = %d, want exactly 1", n)
	}
}
