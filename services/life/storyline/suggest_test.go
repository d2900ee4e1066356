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

const suggestionJSON = `{"category": "creative", "theme": "taking a weekend watercolor course", "reasoning": "she has been missing hands-on art lately"}`

// alwaysRunning is the stillRunning guard for tests that never stop the
// scheduler.
func alwaysRunning() bool { return true }

// absentUser backdates the last interaction past the absence threshold.
func absentUser(fix *engineFixture, ago time.Duration) {
	fix.history.last = fix.clock.Now().Add(-ago)
	fix.history.ok = true
}

// testSuggestion builds a pending suggestion for direct store insertion.
func testSuggestion(id string, createdAt time.Time) *datatypes.PendingSuggestion {
	return &datatypes.PendingSuggestion{
		ID:        id,
		Category:  datatypes.CategoryCreative,
		Theme:     "taking a weekend watercolor course",
		Reasoning: "she has been missing hands-on art lately",
		CreatedAt: createdAt,
		ExpiresAt: createdAt.Add(24 * time.Hour),
	}
}

// mustInsertSuggestion inserts directly into the store fake.
func mustInsertSuggestion(t *testing.T, fix *engineFixture, sug *datatypes.PendingSuggestion) {
	t.Helper()
	if err := fix.store.InsertSuggestion(context.Background(), sug); err != nil {
		t.Fatalf("InsertSuggestion(%s) failed: %v", sug.ID, err)
	}
}

// =============================================================================
// Suggestion Tick Gating
// =============================================================================

// TestCheckForSuggestion_PersistsAfterAbsence verifies a tick with every
// gate open produces one pending suggestion and announces it.
func TestCheckForSuggestion_PersistsAfterAbsence(t *testing.T) {
	fix := newTestEngine(t)
	ctx := context.Background()
	absentUser(fix, 45*time.Minute)
	fix.llm.responses = []string{suggestionJSON}

	fix.engine.checkForSuggestion(ctx, alwaysRunning)

	sug, err := fix.engine.GetPendingSuggestion(ctx)
	if err != nil {
		t.Fatalf("GetPendingSuggestion failed: %v", err)
	}
	if sug == nil {
		t.Fatal("no suggestion persisted")
	}
	if sug.Category != datatypes.CategoryCreative {
		t.Errorf("category = %q, want creative", sug.Category)
	}
	if sug.Theme != "taking a weekend watercolor course" {
		t.Errorf("theme = %q", sug.Theme)
	}
	if sug.Reasoning == "" {
		t.Error("reasoning not carried over")
	}
	if !sug.CreatedAt.Equal(fix.clock.Now()) {
		t.Errorf("CreatedAt = %v, want clock time", sug.CreatedAt)
	}
	if want := fix.clock.Now().Add(24 * time.Hour); !sug.ExpiresAt.Equal(want) {
		t.Errorf("ExpiresAt = %v, want %v", sug.ExpiresAt, want)
	}
	if sug.Surfaced {
		t.Error("fresh suggestion already surfaced")
	}
	if !fix.events.has(EventSuggestionReady) {
		t.Errorf("no %s event, got %v", EventSuggestionReady, fix.events.kinds())
	}
}

// TestCheckForSuggestion_GatesBeforeGeneration verifies each closed gate
// stops the tick before the collaborator is ever called.
func TestCheckForSuggestion_GatesBeforeGeneration(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T, fix *engineFixture)
	}{
		{
			name:  "no interaction recorded",
			setup: func(_ *testing.T, fix *engineFixture) { fix.history.ok = false },
		},
		{
			name:  "absence below threshold",
			setup: func(_ *testing.T, fix *engineFixture) { absentUser(fix, 10*time.Minute) },
		},
		{
			name: "interaction read failure",
			setup: func(_ *testing.T, fix *engineFixture) {
				fix.history.err = errors.New("history store down")
			},
		},
		{
			name: "pending suggestion exists",
			setup: func(t *testing.T, fix *engineFixture) {
				absentUser(fix, 45*time.Minute)
				mustInsertSuggestion(t, fix, testSuggestion("pending", fix.clock.Now().Add(-time.Hour)))
			},
		},
		{
			name: "pending read failure",
			setup: func(_ *testing.T, fix *engineFixture) {
				absentUser(fix, 45*time.Minute)
				fix.store.errSuggestionRead = errors.New("index corrupt")
			},
		},
		{
			name: "creation cooldown active",
			setup: func(t *testing.T, fix *engineFixture) {
				absentUser(fix, 45*time.Minute)
				created := fix.clock.Now().Add(-10 * time.Hour)
				if err := fix.store.SetCooldown(context.Background(), datatypes.CooldownState{LastStorylineCreatedAt: &created}); err != nil {
					t.Fatalf("SetCooldown failed: %v", err)
				}
			},
		},
		{
			name: "cooldown read failure",
			setup: func(_ *testing.T, fix *engineFixture) {
				absentUser(fix, 45*time.Minute)
				fix.store.errCooldownRead = errors.New("disk gone")
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fix := newTestEngine(t)
			tt.setup(t, fix)

			before := fix.llm.callCount()
			fix.engine.checkForSuggestion(context.Background(), alwaysRunning)

			if got := fix.llm.callCount(); got != before {
				t.Errorf("closed gate still called the collaborator %d times", got-before)
			}
		})
	}
}

// TestCheckForSuggestion_CooldownLapses verifies the shared creation
// cooldown blocks only until it expires.
func TestCheckForSuggestion_CooldownLapses(t *testing.T) {
	fix := newTestEngine(t)
	ctx := context.Background()
	absentUser(fix, 45*time.Minute)
	created := fix.clock.Now().Add(-47 * time.Hour)
	if err := fix.store.SetCooldown(ctx, datatypes.CooldownState{LastStorylineCreatedAt: &created}); err != nil {
		t.Fatalf("SetCooldown failed: %v", err)
	}
	fix.llm.responses = []string{suggestionJSON}

	fix.engine.checkForSuggestion(ctx, alwaysRunning)
	if sug, _ := fix.engine.GetPendingSuggestion(ctx); sug != nil {
		t.Fatal("suggestion created inside the cooldown window")
	}

	fix.clock.Advance(2 * time.Hour)
	absentUser(fix, 45*time.Minute)

	fix.engine.checkForSuggestion(ctx, alwaysRunning)
	if sug, _ := fix.engine.GetPendingSuggestion(ctx); sug == nil {
		t.Error("no suggestion after the cooldown lapsed")
	}
}

// TestCheckForSuggestion_MalformedDiscarded verifies unusable generations
// are dropped without a retry or a partial write.
func TestCheckForSuggestion_MalformedDiscarded(t *testing.T) {
	tests := []struct {
		name     string
		response string
	}{
		{name: "not json", response: "how about learning the banjo!"},
		{name: "category outside the set", response: `{"category": "galactic", "theme": "x", "reasoning": "y"}`},
		{name: "missing theme", response: `{"category": "creative", "reasoning": "y"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fix := newTestEngine(t)
			absentUser(fix, 45*time.Minute)
			fix.llm.responses = []string{tt.response}

			fix.engine.checkForSuggestion(context.Background(), alwaysRunning)

			if fix.llm.callCount() != 1 {
				t.Errorf("collaborator calls = %d, want exactly 1", fix.llm.callCount())
			}
			if sug, _ := fix.engine.GetPendingSuggestion(context.Background()); sug != nil {
				t.Errorf("malformed response persisted: %+v", sug)
			}
			if fix.events.has(EventSuggestionReady) {
				t.Error("event published for a discarded suggestion")
			}
		})
	}
}

// TestCheckForSuggestion_StoppedMidTick verifies a tick that loses its
// scheduler between generation and write discards the result.
func TestCheckForSuggestion_StoppedMidTick(t *testing.T) {
	fix := newTestEngine(t)
	absentUser(fix, 45*time.Minute)
	fix.llm.responses = []string{suggestionJSON}

	fix.engine.checkForSuggestion(context.Background(), func() bool { return false })

	if fix.llm.callCount() != 1 {
		t.Errorf("collaborator calls = %d, want 1", fix.llm.callCount())
	}
	if sug, _ := fix.engine.GetPendingSuggestion(context.Background()); sug != nil {
		t.Error("stopped tick still persisted its suggestion")
	}
}

// =============================================================================
// Pending Suggestion Access
// =============================================================================

// TestGetPendingSuggestion_NilWhenNone verifies absence is a nil result,
// not an error.
func TestGetPendingSuggestion_NilWhenNone(t *testing.T) {
	fix := newTestEngine(t)
	sug, err := fix.engine.GetPendingSuggestion(context.Background())
	if err != nil {
		t.Fatalf("GetPendingSuggestion failed: %v", err)
	}
	if sug != nil {
		t.Errorf("got %+v, want nil", sug)
	}
}

// TestGetPendingSuggestion_SkipsExpired verifies a suggestion past its
// expiry is never handed to the chat layer.
func TestGetPendingSuggestion_SkipsExpired(t *testing.T) {
	fix := newTestEngine(t)
	mustInsertSuggestion(t, fix, testSuggestion("old", fix.clock.Now().Add(-25*time.Hour)))

	sug, err := fix.engine.GetPendingSuggestion(context.Background())
	if err != nil {
		t.Fatalf("GetPendingSuggestion failed: %v", err)
	}
	if sug != nil {
		t.Errorf("expired suggestion returned: %+v", sug)
	}
}

// TestMarkSurfaced verifies surfacing stamps the instant once and takes the
// suggestion out of the pending set.
func TestMarkSurfaced(t *testing.T) {
	fix := newTestEngine(t)
	ctx := context.Background()
	mustInsertSuggestion(t, fix, testSuggestion("sug1", fix.clock.Now()))

	first, err := fix.engine.MarkSurfaced(ctx, "sug1")
	if err != nil {
		t.Fatalf("MarkSurfaced failed: %v", err)
	}
	if !first.Surfaced || first.SurfacedAt == nil || !first.SurfacedAt.Equal(fix.clock.Now()) {
		t.Errorf("surfacing not stamped: %+v", first)
	}

	if sug, _ := fix.engine.GetPendingSuggestion(ctx); sug != nil {
		t.Error("surfaced suggestion still pending")
	}

	// Re-marking keeps the original instant.
	fix.clock.Advance(time.Hour)
	again, err := fix.engine.MarkSurfaced(ctx, "sug1")
	if err != nil {
		t.Fatalf("repeat MarkSurfaced failed: %v", err)
	}
	if !again.SurfacedAt.Equal(*first.SurfacedAt) {
		t.Errorf("SurfacedAt moved on re-mark: %v → %v", first.SurfacedAt, again.SurfacedAt)
	}
}

// TestMarkSurfaced_Unknown verifies the not-found sentinel survives
// wrapping.
func TestMarkSurfaced_Unknown(t *testing.T) {
	fix := newTestEngine(t)
	if _, err := fix.engine.MarkSurfaced(context.Background(), "ghost"); !errors.Is(err, ErrNotFound) {
		t.Errorf("MarkSurfaced(ghost) = %v, want ErrNotFound", err)
	}
}

// =============================================================================
// Suggestion Outcomes
// =============================================================================

// surfacedSuggestion inserts and surfaces a suggestion, returning its id.
func surfacedSuggestion(t *testing.T, fix *engineFixture) string {
	t.Helper()
	mustInsertSuggestion(t, fix, testSuggestion("sug1", fix.clock.Now()))
	if _, err := fix.engine.MarkSurfaced(context.Background(), "sug1"); err != nil {
		t.Fatalf("MarkSurfaced failed: %v", err)
	}
	return "sug1"
}

// TestUpdateSuggestionOutcome_Created records a suggestion that became a
// storyline.
func TestUpdateSuggestionOutcome_Created(t *testing.T) {
	fix := newTestEngine(t)
	id := surfacedSuggestion(t, fix)

	sug, err := fix.engine.UpdateSuggestionOutcome(context.Background(), id, true, "s1", "")
	if err != nil {
		t.Fatalf("UpdateSuggestionOutcome failed: %v", err)
	}
	if !sug.WasCreated || sug.ResultingStorylineID != "s1" {
		t.Errorf("outcome not recorded: %+v", sug)
	}
	if sug.RejectedReason != "" {
		t.Errorf("created outcome carries rejection reason %q", sug.RejectedReason)
	}
}

// TestUpdateSuggestionOutcome_Rejected records a turned-down suggestion.
func TestUpdateSuggestionOutcome_Rejected(t *testing.T) {
	fix := newTestEngine(t)
	id := surfacedSuggestion(t, fix)

	sug, err := fix.engine.UpdateSuggestionOutcome(context.Background(), id, false, "", datatypes.RejectedNotInterested)
	if err != nil {
		t.Fatalf("UpdateSuggestionOutcome failed: %v", err)
	}
	if sug.WasCreated || sug.RejectedReason != datatypes.RejectedNotInterested {
		t.Errorf("rejection not recorded: %+v", sug)
	}
}

// TestUpdateSuggestionOutcome_Validation rejects inconsistent outcome
// combinations and outcomes on unsurfaced suggestions.
func TestUpdateSuggestionOutcome_Validation(t *testing.T) {
	tests := []struct {
		name        string
		surfaced    bool
		wasCreated  bool
		storylineID string
		reason      datatypes.RejectedReason
	}{
		{name: "created without storyline id", surfaced: true, wasCreated: true},
		{name: "rejected without reason", surfaced: true},
		{name: "rejected with unknown reason", surfaced: true, reason: datatypes.RejectedReason("meh")},
		{name: "created with rejection reason", surfaced: true, wasCreated: true, storylineID: "s1", reason: datatypes.RejectedNotInterested},
		{name: "outcome before surfacing", surfaced: false, wasCreated: true, storylineID: "s1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fix := newTestEngine(t)
			mustInsertSuggestion(t, fix, testSuggestion("sug1", fix.clock.Now()))
			if tt.surfaced {
				if _, err := fix.engine.MarkSurfaced(context.Background(), "sug1"); err != nil {
					t.Fatalf("MarkSurfaced failed: %v", err)
				}
			}

			if _, err := fix.engine.UpdateSuggestionOutcome(context.Background(), "sug1", tt.wasCreated, tt.storylineID, tt.reason); err == nil {
				t.Error("inconsistent outcome accepted")
			}
		})
	}
}

// =============================================================================
// Full Suggestion Lifecycle
// =============================================================================

// TestSuggestionLifecycle drives one suggestion from idle tick to a created
// storyline: generated, surfaced, accepted, and recorded.
func TestSuggestionLifecycle(t *testing.T) {
	fix := newTestEngine(t)
	ctx := context.Background()
	absentUser(fix, 45*time.Minute)
	fix.llm.responses = []string{suggestionJSON}

	fix.engine.checkForSuggestion(ctx, alwaysRunning)

	sug, err := fix.engine.GetPendingSuggestion(ctx)
	if err != nil || sug == nil {
		t.Fatalf("GetPendingSuggestion = %+v, %v", sug, err)
	}

	if _, err := fix.engine.MarkSurfaced(ctx, sug.ID); err != nil {
		t.Fatalf("MarkSurfaced failed: %v", err)
	}

	input := validInput()
	input.Title = "Weekend watercolor course"
	input.Category = sug.Category
	result, err := fix.engine.ProposeCreation(ctx, input, datatypes.SourceIdleSuggestion)
	if err != nil {
		t.Fatalf("ProposeCreation failed: %v", err)
	}
	if !result.Created {
		t.Fatalf("suggested storyline rejected: %q", result.Reason)
	}

	final, err := fix.engine.UpdateSuggestionOutcome(ctx, sug.ID, true, result.Storyline.ID, "")
	if err != nil {
		t.Fatalf("UpdateSuggestionOutcome failed: %v", err)
	}
	if !final.WasCreated || final.ResultingStorylineID != result.Storyline.ID {
		t.Errorf("lifecycle not recorded: %+v", final)
	}

	attempts, err := fix.store.ListAttempts(ctx, 0)
	if err != nil || len(attempts) != 1 {
		t.Fatalf("attempts = %v, %v", attempts, err)
	}
	if attempts[0].Source != datatypes.SourceIdleSuggestion {
		t.Errorf("attempt source = %q, want idle_suggestion", attempts[0].Source)
	}
}
