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
	"fmt"
	"testing"

	"github.com/solenne-ai/solenne/services/life/datatypes"
)

// beatJSONWithContent builds a parseable beat payload with fixed tone.
func beatJSONWithContent(content string) string {
	return fmt.Sprintf(`{"content": %q, "emotional_tone": "steady"}`, content)
}

// =============================================================================
// Resolve
// =============================================================================

// TestResolve_SuccessArc walks the full success resolution: outcome fields,
// the four-step sequence in template order, mood impact, learning
// extraction, and the resolved event.
func TestResolve_SuccessArc(t *testing.T) {
	fix := newTestEngine(t)
	ctx := context.Background()
	mustInsertStoryline(t, fix, testStoryline("s1", datatypes.PhaseClimax, fixtureDay(-1)))

	fix.llm.responses = []string{
		beatJSONWithContent("I keep grinning at the finished wall."),
		beatJSONWithContent("Grateful the owners trusted a first-timer."),
		beatJSONWithContent("Funny how scared I was at the sketch stage."),
		beatJSONWithContent("Big work is just small work that kept going."),
		"I can finish big things when the stakes are real.",
	}

	resolved, err := fix.engine.Resolve(ctx, "s1", datatypes.OutcomeSuccess, "The wall is done and signed.", "")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	if resolved.Phase != datatypes.PhaseResolved {
		t.Errorf("phase = %q, want resolved", resolved.Phase)
	}
	if resolved.Outcome != datatypes.OutcomeSuccess {
		t.Errorf("outcome = %q, want success", resolved.Outcome)
	}
	if resolved.OutcomeDescription != "The wall is done and signed." {
		t.Errorf("OutcomeDescription = %q", resolved.OutcomeDescription)
	}
	if resolved.ResolutionEmotion != "proud" {
		t.Errorf("default ResolutionEmotion = %q, want proud", resolved.ResolutionEmotion)
	}
	if resolved.ResolvedAt == nil || !resolved.ResolvedAt.Equal(fix.clock.Now()) {
		t.Errorf("ResolvedAt = %v, want clock time", resolved.ResolvedAt)
	}

	updates := storylineUpdates(t, fix, "s1")
	wantSteps := []datatypes.UpdateType{
		datatypes.UpdateOutcomeReaction,
		datatypes.UpdateGratitude,
		datatypes.UpdateReflection,
		datatypes.UpdateLessonLearned,
	}
	if len(updates) != len(wantSteps) {
		t.Fatalf("closure updates = %d, want %d", len(updates), len(wantSteps))
	}
	for i, u := range updates {
		if u.UpdateType != wantSteps[i] {
			t.Errorf("step %d type = %q, want %q", i, u.UpdateType, wantSteps[i])
		}
	}
	if updates[0].Content != "I keep grinning at the finished wall." {
		t.Errorf("first step content = %q; responses not consumed in step order", updates[0].Content)
	}

	if len(fix.mood.deltas) != 1 || fix.mood.deltas[0] != 0.4 {
		t.Errorf("mood deltas = %v, want [0.4]", fix.mood.deltas)
	}
	if len(fix.facts.facts) != 1 || fix.facts.facts[0].text != "I can finish big things when the stakes are real." {
		t.Errorf("learning facts = %+v", fix.facts.facts)
	}
	if !fix.events.has(EventStorylineResolved) {
		t.Errorf("no %s event, got %v", EventStorylineResolved, fix.events.kinds())
	}
}

// TestResolve_OutcomeArcs verifies each outcome produces its own step
// sequence, mood impact, and learning policy.
func TestResolve_OutcomeArcs(t *testing.T) {
	tests := []struct {
		outcome      datatypes.Outcome
		wantSteps    []datatypes.UpdateType
		wantMood     float64
		wantLearning bool
	}{
		{
			outcome: datatypes.OutcomeSuccess,
			wantSteps: []datatypes.UpdateType{
				datatypes.UpdateOutcomeReaction,
				datatypes.UpdateGratitude,
				datatypes.UpdateReflection,
				datatypes.UpdateLessonLearned,
			},
			wantMood:     0.4,
			wantLearning: true,
		},
		{
			outcome: datatypes.OutcomeFailure,
			wantSteps: []datatypes.UpdateType{
				datatypes.UpdateOutcomeReaction,
				datatypes.UpdateEmotionalProcessing,
				datatypes.UpdateMeaningMaking,
				datatypes.UpdateLessonLearned,
			},
			wantMood:     -0.3,
			wantLearning: true,
		},
		{
			outcome: datatypes.OutcomeAbandoned,
			wantSteps: []datatypes.UpdateType{
				datatypes.UpdateOutcomeReaction,
				datatypes.UpdateEmotionalProcessing,
				datatypes.UpdateMeaningMaking,
				datatypes.UpdateReflection,
			},
			wantMood:     0.1,
			wantLearning: true,
		},
		{
			outcome: datatypes.OutcomeTransformed,
			wantSteps: []datatypes.UpdateType{
				datatypes.UpdateOutcomeReaction,
				datatypes.UpdateEmotionalProcessing,
				datatypes.UpdateReflection,
				datatypes.UpdateLessonLearned,
			},
			wantMood:     0.2,
			wantLearning: false,
		},
	}

	for _, tt := range tests {
		t.Run(string(tt.outcome), func(t *testing.T) {
			fix := newTestEngine(t)
			mustInsertStoryline(t, fix, testStoryline("s1", datatypes.PhaseActive, fixtureDay(-1)))

			if _, err := fix.engine.Resolve(context.Background(), "s1", tt.outcome, "It ended.", ""); err != nil {
				t.Fatalf("Resolve(%s) failed: %v", tt.outcome, err)
			}

			updates := storylineUpdates(t, fix, "s1")
			if len(updates) != len(tt.wantSteps) {
				t.Fatalf("updates = %d, want %d", len(updates), len(tt.wantSteps))
			}
			for i, u := range updates {
				if u.UpdateType != tt.wantSteps[i] {
					t.Errorf("step %d = %q, want %q", i, u.UpdateType, tt.wantSteps[i])
				}
			}

			if len(fix.mood.deltas) != 1 || fix.mood.deltas[0] != tt.wantMood {
				t.Errorf("mood deltas = %v, want [%v]", fix.mood.deltas, tt.wantMood)
			}

			wantFacts := 0
			if tt.wantLearning {
				wantFacts = 1
			}
			if len(fix.facts.facts) != wantFacts {
				t.Errorf("stored facts = %d, want %d", len(fix.facts.facts), wantFacts)
			}
		})
	}
}

// TestResolve_CustomResolutionEmotion verifies a caller-supplied emotion is
// kept instead of the template default.
func TestResolve_CustomResolutionEmotion(t *testing.T) {
	fix := newTestEngine(t)
	mustInsertStoryline(t, fix, testStoryline("s1", datatypes.PhaseActive, fixtureDay(-1)))

	resolved, err := fix.engine.Resolve(context.Background(), "s1", datatypes.OutcomeFailure, "It fell through.", "tender")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if resolved.ResolutionEmotion != "tender" {
		t.Errorf("ResolutionEmotion = %q, want tender", resolved.ResolutionEmotion)
	}
}

// TestResolve_DoubleResolveRejected verifies a resolved storyline cannot be
// resolved again and keeps its original outcome.
func TestResolve_DoubleResolveRejected(t *testing.T) {
	fix := newTestEngine(t)
	ctx := context.Background()
	mustInsertStoryline(t, fix, testStoryline("s1", datatypes.PhaseActive, fixtureDay(-1)))

	if _, err := fix.engine.Resolve(ctx, "s1", datatypes.OutcomeSuccess, "Done.", ""); err != nil {
		t.Fatalf("first Resolve failed: %v", err)
	}
	if _, err := fix.engine.Resolve(ctx, "s1", datatypes.OutcomeFailure, "Actually not.", ""); err == nil {
		t.Fatal("second Resolve accepted")
	}

	if s := mustGetStoryline(t, fix, "s1"); s.Outcome != datatypes.OutcomeSuccess {
		t.Errorf("outcome after double resolve = %q, want success", s.Outcome)
	}
}

// TestResolve_UnknownStoryline verifies the not-found sentinel survives
// wrapping.
func TestResolve_UnknownStoryline(t *testing.T) {
	fix := newTestEngine(t)
	_, err := fix.engine.Resolve(context.Background(), "ghost", datatypes.OutcomeSuccess, "Done.", "")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Resolve(ghost) = %v, want ErrNotFound", err)
	}
}

// TestResolve_InvalidOutcome verifies outcomes outside the fixed set are
// rejected before any write.
func TestResolve_InvalidOutcome(t *testing.T) {
	fix := newTestEngine(t)
	mustInsertStoryline(t, fix, testStoryline("s1", datatypes.PhaseActive, fixtureDay(-1)))

	if _, err := fix.engine.Resolve(context.Background(), "s1", datatypes.Outcome("sideways"), "?", ""); err == nil {
		t.Fatal("invalid outcome accepted")
	}
	if s := mustGetStoryline(t, fix, "s1"); s.Phase != datatypes.PhaseActive {
		t.Errorf("storyline touched by invalid outcome: phase %q", s.Phase)
	}
}

// TestResolve_StepFailureLeavesGap verifies one failed step generation
// leaves a gap in the arc without aborting the remaining steps or the
// resolution itself.
func TestResolve_StepFailureLeavesGap(t *testing.T) {
	fix := newTestEngine(t)
	mustInsertStoryline(t, fix, testStoryline("s1", datatypes.PhaseActive, fixtureDay(-1)))

	// Success arc: calls 0-3 are the steps, call 4 the learning.
	fix.llm.respond = func(call int, _ string) (string, error) {
		switch call {
		case 1:
			return "", errors.New("model hiccup")
		case 4:
			return "Persistence beats perfect conditions.", nil
		default:
			return defaultBeatJSON, nil
		}
	}

	resolved, err := fix.engine.Resolve(context.Background(), "s1", datatypes.OutcomeSuccess, "Done.", "")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if resolved.Phase != datatypes.PhaseResolved {
		t.Errorf("phase = %q, want resolved despite step failure", resolved.Phase)
	}

	updates := storylineUpdates(t, fix, "s1")
	wantSteps := []datatypes.UpdateType{
		datatypes.UpdateOutcomeReaction,
		datatypes.UpdateReflection,
		datatypes.UpdateLessonLearned,
	}
	if len(updates) != len(wantSteps) {
		t.Fatalf("updates = %d, want %d with the gratitude step missing", len(updates), len(wantSteps))
	}
	for i, u := range updates {
		if u.UpdateType != wantSteps[i] {
			t.Errorf("step %d = %q, want %q", i, u.UpdateType, wantSteps[i])
		}
	}

	if len(fix.mood.deltas) != 1 {
		t.Errorf("mood not applied after gapped arc: %v", fix.mood.deltas)
	}
}

// =============================================================================
// InitiateClosure
// =============================================================================

// TestInitiateClosure_GeneratedDescription verifies the generated sentence
// becomes the outcome description.
func TestInitiateClosure_GeneratedDescription(t *testing.T) {
	fix := newTestEngine(t)
	mustInsertStoryline(t, fix, testStoryline("s1", datatypes.PhaseClimax, fixtureDay(-1)))

	fix.llm.responses = []string{
		"The owners loved it and asked for a second wall.",
		defaultBeatJSON,
		defaultBeatJSON,
		defaultBeatJSON,
		defaultBeatJSON,
		"Finished work opens doors sketches never will.",
	}

	resolved, err := fix.engine.InitiateClosure(context.Background(), "s1", datatypes.OutcomeSuccess)
	if err != nil {
		t.Fatalf("InitiateClosure failed: %v", err)
	}
	if resolved.OutcomeDescription != "The owners loved it and asked for a second wall." {
		t.Errorf("OutcomeDescription = %q", resolved.OutcomeDescription)
	}
	if resolved.Phase != datatypes.PhaseResolved {
		t.Errorf("phase = %q, want resolved", resolved.Phase)
	}
}

// TestInitiateClosure_StockFallback verifies a failed or unparseable
// description generation falls back to the stock line rather than stalling
// closure.
func TestInitiateClosure_StockFallback(t *testing.T) {
	tests := []struct {
		name        string
		description func(call int) (string, error)
	}{
		{
			name: "generation error",
			description: func(int) (string, error) {
				return "", errors.New("model offline")
			},
		},
		{
			name: "unparseable response",
			description: func(int) (string, error) {
				return "   \n\n", nil
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fix := newTestEngine(t)
			mustInsertStoryline(t, fix, testStoryline("s1", datatypes.PhaseClimax, fixtureDay(-1)))

			fix.llm.respond = func(call int, _ string) (string, error) {
				if call == 0 {
					return tt.description(call)
				}
				if call == 5 {
					return "Endings still count when borrowed words describe them.", nil
				}
				return defaultBeatJSON, nil
			}

			resolved, err := fix.engine.InitiateClosure(context.Background(), "s1", datatypes.OutcomeSuccess)
			if err != nil {
				t.Fatalf("InitiateClosure failed: %v", err)
			}
			if resolved.OutcomeDescription != "It worked out the way I hoped it would." {
				t.Errorf("OutcomeDescription = %q, want the stock success line", resolved.OutcomeDescription)
			}
			if resolved.Phase != datatypes.PhaseResolved {
				t.Errorf("phase = %q, want resolved", resolved.Phase)
			}
		})
	}
}

// TestInitiateClosure_AlreadyResolved verifies closure cannot rerun on a
// finished storyline.
func TestInitiateClosure_AlreadyResolved(t *testing.T) {
	fix := newTestEngine(t)
	s := testStoryline("s1", datatypes.PhaseResolved, fixtureDay(-1))
	s.Outcome = datatypes.OutcomeSuccess
	mustInsertStoryline(t, fix, s)

	if _, err := fix.engine.InitiateClosure(context.Background(), "s1", datatypes.OutcomeFailure); err == nil {
		t.Error("closure accepted on a resolved storyline")
	}
}

// TestInitiateClosure_InvalidOutcome verifies the outcome is validated
// before the storyline is even loaded.
func TestInitiateClosure_InvalidOutcome(t *testing.T) {
	fix := newTestEngine(t)
	if _, err := fix.engine.InitiateClosure(context.Background(), "s1", datatypes.Outcome("sideways")); err == nil {
		t.Error("invalid outcome accepted")
	}
}

// =============================================================================
// Emotion Sampling
// =============================================================================

// TestRandomEmotion maps random draws onto the candidate list and clamps
// the top edge.
func TestRandomEmotion(t *testing.T) {
	emotions := []string{"proud", "joyful", "accomplished", "grateful"}
	tests := []struct {
		draw float64
		want string
	}{
		{draw: 0, want: "proud"},
		{draw: 0.26, want: "joyful"},
		{draw: 0.6, want: "accomplished"},
		{draw: 0.99, want: "grateful"},
		{draw: 1.0, want: "grateful"}, // clamped
	}
	for _, tt := range tests {
		fix := newTestEngine(t)
		fix.engine.cfg.RandFloat = func() float64 { return tt.draw }
		if got := fix.engine.randomEmotion(emotions); got != tt.want {
			t.Errorf("draw %.2f → %q, want %q", tt.draw, got, tt.want)
		}
	}

	fix := newTestEngine(t)
	if got := fix.engine.randomEmotion(nil); got != "" {
		t.Errorf("empty candidate list → %q, want empty", got)
	}
}
