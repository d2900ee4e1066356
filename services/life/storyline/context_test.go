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
	"strings"
	"testing"
	"time"

	"github.com/solenne-ai/solenne/services/life/datatypes"
)

// testUpdate builds a narrative beat for direct store insertion.
func testUpdate(id, storylineID, content string, createdAt time.Time) *datatypes.StorylineUpdate {
	return &datatypes.StorylineUpdate{
		ID:            id,
		StorylineID:   storylineID,
		UpdateType:    datatypes.UpdateProgress,
		Content:       content,
		EmotionalTone: "steady",
		CreatedAt:     createdAt,
	}
}

// mustInsertUpdate inserts directly into the store fake.
func mustInsertUpdate(t *testing.T, fix *engineFixture, u *datatypes.StorylineUpdate) {
	t.Helper()
	if err := fix.store.InsertUpdate(context.Background(), u); err != nil {
		t.Fatalf("InsertUpdate(%s) failed: %v", u.ID, err)
	}
}

// buildContextOK builds the prompt context or fails the test.
func buildContextOK(t *testing.T, fix *engineFixture) *PromptContext {
	t.Helper()
	pc, err := fix.engine.BuildContext(context.Background())
	if err != nil {
		t.Fatalf("BuildContext failed: %v", err)
	}
	return pc
}

// contextIDs extracts storyline IDs in context order.
func contextIDs(pc *PromptContext) []string {
	out := make([]string, 0, len(pc.Storylines))
	for _, s := range pc.Storylines {
		out = append(out, s.ID)
	}
	return out
}

// =============================================================================
// Context Assembly
// =============================================================================

// TestBuildContext_EmptyStore verifies an empty store yields an inert
// context rather than an error.
func TestBuildContext_EmptyStore(t *testing.T) {
	fix := newTestEngine(t)

	pc := buildContextOK(t, fix)
	if pc.HasActive {
		t.Error("HasActive true with no storylines")
	}
	if pc.MostPressing != nil || len(pc.Storylines) != 0 || pc.RenderedSection != "" {
		t.Errorf("empty context carries data: %+v", pc)
	}
}

// TestBuildContext_SalienceOrdering verifies storylines rank by phase
// urgency times intensity, most pressing first.
func TestBuildContext_SalienceOrdering(t *testing.T) {
	fix := newTestEngine(t)

	climax := testStoryline("climax", datatypes.PhaseClimax, fixtureDay(-3))
	climax.EmotionalIntensity = 0.9 // 1.0 * 0.9 = 0.90
	mustInsertStoryline(t, fix, climax)

	announced := testStoryline("announced", datatypes.PhaseAnnounced, fixtureDay(-2))
	announced.EmotionalIntensity = 0.5 // 1.0 * 0.5 = 0.50
	mustInsertStoryline(t, fix, announced)

	active := testStoryline("active", datatypes.PhaseActive, fixtureDay(-1))
	active.EmotionalIntensity = 0.5 // 0.4 * 0.5 = 0.20
	mustInsertStoryline(t, fix, active)

	pc := buildContextOK(t, fix)

	if !pc.HasActive {
		t.Fatal("HasActive false")
	}
	want := []string{"climax", "announced", "active"}
	got := contextIDs(pc)
	if len(got) != len(want) {
		t.Fatalf("context storylines = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("position %d = %q, want %q", i, got[i], want[i])
		}
	}
	if pc.MostPressing == nil || pc.MostPressing.ID != "climax" {
		t.Errorf("MostPressing = %+v, want the climax storyline", pc.MostPressing)
	}
}

// TestBuildContext_DropsLowIntensity verifies the intensity floor: below it
// a storyline is invisible, at it the storyline stays.
func TestBuildContext_DropsLowIntensity(t *testing.T) {
	fix := newTestEngine(t)

	faint := testStoryline("faint", datatypes.PhaseClimax, fixtureDay(-2))
	faint.EmotionalIntensity = 0.2
	mustInsertStoryline(t, fix, faint)

	boundary := testStoryline("boundary", datatypes.PhaseActive, fixtureDay(-1))
	boundary.EmotionalIntensity = 0.3
	mustInsertStoryline(t, fix, boundary)

	pc := buildContextOK(t, fix)

	got := contextIDs(pc)
	if len(got) != 1 || got[0] != "boundary" {
		t.Errorf("context storylines = %v, want [boundary]", got)
	}
}

// TestBuildContext_UnmentionedBonus verifies a waiting beat lifts its
// storyline past an otherwise higher-ranked one, and the oldest waiting
// beat is the one surfaced.
func TestBuildContext_UnmentionedBonus(t *testing.T) {
	fix := newTestEngine(t)

	withBeats := testStoryline("with-beats", datatypes.PhaseActive, fixtureDay(-3))
	withBeats.EmotionalIntensity = 0.5 // base 0.20, +0.3 bonus = 0.50
	mustInsertStoryline(t, fix, withBeats)
	mustInsertUpdate(t, fix, testUpdate("u-old", "with-beats", "first beat", fix.clock.Now().Add(-48*time.Hour)))
	mustInsertUpdate(t, fix, testUpdate("u-new", "with-beats", "second beat", fix.clock.Now().Add(-24*time.Hour)))

	quiet := testStoryline("quiet", datatypes.PhaseReality, fixtureDay(-1))
	quiet.Title = "Evening pottery class across town"
	quiet.EmotionalIntensity = 0.5 // 0.25, no bonus
	mustInsertStoryline(t, fix, quiet)

	pc := buildContextOK(t, fix)

	got := contextIDs(pc)
	if len(got) != 2 || got[0] != "with-beats" || got[1] != "quiet" {
		t.Fatalf("context order = %v, want [with-beats quiet]", got)
	}
	if len(pc.UnmentionedUpdates) != 1 {
		t.Fatalf("UnmentionedUpdates = %d, want 1", len(pc.UnmentionedUpdates))
	}
	if pc.UnmentionedUpdates[0].ID != "u-old" {
		t.Errorf("surfaced beat = %q, want the oldest (u-old)", pc.UnmentionedUpdates[0].ID)
	}
	if !strings.Contains(pc.RenderedSection, "Not yet shared with the user: first beat") {
		t.Errorf("rendered section missing the waiting beat:\n%s", pc.RenderedSection)
	}
}

// TestBuildContext_BeatWindowAndMentions verifies beats outside the recency
// window or already mentioned earn no bonus and never surface.
func TestBuildContext_BeatWindowAndMentions(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T, fix *engineFixture)
	}{
		{
			name: "beat older than the window",
			setup: func(t *testing.T, fix *engineFixture) {
				mustInsertUpdate(t, fix, testUpdate("u1", "s1", "ancient beat", fix.clock.Now().Add(-8*24*time.Hour)))
			},
		},
		{
			name: "beat already mentioned",
			setup: func(t *testing.T, fix *engineFixture) {
				mustInsertUpdate(t, fix, testUpdate("u1", "s1", "told already", fix.clock.Now().Add(-24*time.Hour)))
				if err := fix.store.MarkUpdateMentioned(context.Background(), "s1", "u1"); err != nil {
					t.Fatalf("MarkUpdateMentioned failed: %v", err)
				}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fix := newTestEngine(t)
			s := testStoryline("s1", datatypes.PhaseActive, fixtureDay(-3))
			s.EmotionalIntensity = 0.5
			mustInsertStoryline(t, fix, s)
			tt.setup(t, fix)

			pc := buildContextOK(t, fix)
			if len(pc.UnmentionedUpdates) != 0 {
				t.Errorf("beat surfaced anyway: %+v", pc.UnmentionedUpdates)
			}
			if strings.Contains(pc.RenderedSection, "Not yet shared") {
				t.Errorf("rendered section carries a beat line:\n%s", pc.RenderedSection)
			}
		})
	}
}

// TestBuildContext_CapsStorylines verifies only the configured number of
// top-salience storylines survive.
func TestBuildContext_CapsStorylines(t *testing.T) {
	fix := newTestEngine(t)

	intensities := []float64{0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0}
	for i, intensity := range intensities {
		s := testStoryline(string(rune('a'+i)), datatypes.PhaseAnnounced, fixtureDay(-1))
		s.EmotionalIntensity = intensity
		mustInsertStoryline(t, fix, s)
	}

	pc := buildContextOK(t, fix)

	if len(pc.Storylines) != 5 {
		t.Fatalf("context storylines = %d, want 5", len(pc.Storylines))
	}
	got := contextIDs(pc)
	for _, dropped := range []string{"a", "b"} {
		for _, id := range got {
			if id == dropped {
				t.Errorf("lowest-salience storyline %q survived the cap", dropped)
			}
		}
	}
	if pc.MostPressing.ID != "g" {
		t.Errorf("MostPressing = %q, want the highest-intensity storyline", pc.MostPressing.ID)
	}
}

// TestBuildContext_ResolvingArcSurfaces verifies a resolving storyline's
// waiting closure beat reaches the context, so multi-day closure arcs are
// not cut off at resolution time.
func TestBuildContext_ResolvingArcSurfaces(t *testing.T) {
	fix := newTestEngine(t)

	s := testStoryline("closing", datatypes.PhaseResolving, fixtureDay(-1))
	s.Outcome = datatypes.OutcomeSuccess
	s.EmotionalIntensity = 0.7 // 0.9 * 0.7 = 0.63 before bonus
	mustInsertStoryline(t, fix, s)
	beat := testUpdate("u1", "closing", "I still cannot believe it worked", fix.clock.Now().Add(-time.Hour))
	beat.UpdateType = datatypes.UpdateOutcomeReaction
	mustInsertUpdate(t, fix, beat)

	pc := buildContextOK(t, fix)

	if len(pc.Storylines) != 1 || pc.Storylines[0].ID != "closing" {
		t.Fatalf("resolving storyline missing from context: %v", contextIDs(pc))
	}
	if len(pc.UnmentionedUpdates) != 1 || pc.UnmentionedUpdates[0].UpdateType != datatypes.UpdateOutcomeReaction {
		t.Errorf("closure beat not surfaced: %+v", pc.UnmentionedUpdates)
	}
}

// TestBuildContext_RenderedSection checks the text block carries title,
// category, phase, and tone.
func TestBuildContext_RenderedSection(t *testing.T) {
	fix := newTestEngine(t)
	mustInsertStoryline(t, fix, testStoryline("s1", datatypes.PhaseHoneymoon, fixtureDay(-1)))

	pc := buildContextOK(t, fix)

	for _, fragment := range []string{
		"Your life right now:",
		"Mural commission at the river cafe",
		"[creative, honeymoon]",
		"feeling excited",
	} {
		if !strings.Contains(pc.RenderedSection, fragment) {
			t.Errorf("rendered section missing %q:\n%s", fragment, pc.RenderedSection)
		}
	}
}

// TestBuildContext_PerformsNoWrites verifies context assembly leaves beats
// unmentioned and mention timestamps untouched.
func TestBuildContext_PerformsNoWrites(t *testing.T) {
	fix := newTestEngine(t)
	mustInsertStoryline(t, fix, testStoryline("s1", datatypes.PhaseActive, fixtureDay(-2)))
	mustInsertUpdate(t, fix, testUpdate("u1", "s1", "quiet progress", fix.clock.Now().Add(-time.Hour)))

	buildContextOK(t, fix)
	buildContextOK(t, fix)

	updates := storylineUpdates(t, fix, "s1")
	if len(updates) != 1 || updates[0].Mentioned {
		t.Errorf("context build mutated updates: %+v", updates)
	}
	if s := mustGetStoryline(t, fix, "s1"); s.LastMentionedAt != nil {
		t.Errorf("context build stamped LastMentionedAt: %v", s.LastMentionedAt)
	}
}

// =============================================================================
// Mention Bookkeeping
// =============================================================================

// TestMarkUpdateMentioned verifies surfacing a beat marks it and refreshes
// the storyline's last-mentioned instant, removing the context bonus.
func TestMarkUpdateMentioned(t *testing.T) {
	fix := newTestEngine(t)
	ctx := context.Background()
	s := testStoryline("s1", datatypes.PhaseActive, fixtureDay(-2))
	s.EmotionalIntensity = 0.5
	mustInsertStoryline(t, fix, s)
	mustInsertUpdate(t, fix, testUpdate("u1", "s1", "quiet progress", fix.clock.Now().Add(-time.Hour)))

	if err := fix.engine.MarkUpdateMentioned(ctx, "s1", "u1"); err != nil {
		t.Fatalf("MarkUpdateMentioned failed: %v", err)
	}

	updates := storylineUpdates(t, fix, "s1")
	if !updates[0].Mentioned {
		t.Error("beat not marked mentioned")
	}
	stored := mustGetStoryline(t, fix, "s1")
	if stored.LastMentionedAt == nil || !stored.LastMentionedAt.Equal(fix.clock.Now()) {
		t.Errorf("LastMentionedAt = %v, want clock time", stored.LastMentionedAt)
	}

	pc := buildContextOK(t, fix)
	if len(pc.UnmentionedUpdates) != 0 {
		t.Errorf("mentioned beat still surfaced: %+v", pc.UnmentionedUpdates)
	}
}

// TestMarkUpdateMentioned_Unknown verifies the not-found sentinel survives
// wrapping and no storyline is touched.
func TestMarkUpdateMentioned_Unknown(t *testing.T) {
	fix := newTestEngine(t)
	mustInsertStoryline(t, fix, testStoryline("s1", datatypes.PhaseActive, fixtureDay(-2)))

	if err := fix.engine.MarkUpdateMentioned(context.Background(), "s1", "ghost"); !errors.Is(err, ErrNotFound) {
		t.Errorf("MarkUpdateMentioned(ghost) = %v, want ErrNotFound", err)
	}
	if s := mustGetStoryline(t, fix, "s1"); s.LastMentionedAt != nil {
		t.Error("failed mention still stamped the storyline")
	}
}
