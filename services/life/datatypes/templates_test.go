// Copyright (C) 2026 Solenne AI (dev@solenne.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

import "testing"

// =============================================================================
// Resolution Template Table Tests
// =============================================================================

func TestResolutionTemplates_CoverAllOutcomes(t *testing.T) {
	for _, o := range AllOutcomes {
		tmpl, ok := TemplateFor(o)
		if !ok {
			t.Fatalf("outcome %q has no resolution template", o)
		}
		if len(tmpl.Emotions) == 0 {
			t.Errorf("outcome %q template has no candidate emotions", o)
		}
		if tmpl.ToneDirective == "" {
			t.Errorf("outcome %q template has no tone directive", o)
		}
		for i, step := range tmpl.Steps {
			if step == "" {
				t.Errorf("outcome %q template step %d is empty", o, i)
			}
		}
	}
}

func TestTemplateFor_UnknownOutcome(t *testing.T) {
	if _, ok := TemplateFor(Outcome("ascended")); ok {
		t.Error("unknown outcome should have no template")
	}
	if _, ok := TemplateFor(Outcome("")); ok {
		t.Error("active (zero) outcome should have no template")
	}
}

func TestResolutionTemplates_SuccessSequence(t *testing.T) {
	tmpl, _ := TemplateFor(OutcomeSuccess)
	want := [4]UpdateType{
		UpdateOutcomeReaction, UpdateGratitude, UpdateReflection, UpdateLessonLearned,
	}
	if tmpl.Steps != want {
		t.Errorf("success steps = %v, want %v", tmpl.Steps, want)
	}
	if tmpl.MoodImpact != 0.4 {
		t.Errorf("success mood impact = %v, want 0.4", tmpl.MoodImpact)
	}
}

func TestResolutionTemplates_FailureSequence(t *testing.T) {
	tmpl, _ := TemplateFor(OutcomeFailure)
	want := [4]UpdateType{
		UpdateOutcomeReaction, UpdateEmotionalProcessing, UpdateMeaningMaking, UpdateLessonLearned,
	}
	if tmpl.Steps != want {
		t.Errorf("failure steps = %v, want %v", tmpl.Steps, want)
	}
	if tmpl.MoodImpact != -0.3 {
		t.Errorf("failure mood impact = %v, want -0.3", tmpl.MoodImpact)
	}
}

func TestResolutionTemplates_AllStepsBeginWithReaction(t *testing.T) {
	for o, tmpl := range ResolutionTemplates {
		if tmpl.Steps[0] != UpdateOutcomeReaction {
			t.Errorf("outcome %q does not open with an outcome reaction", o)
		}
	}
}

func TestResolutionTemplates_TransformedSkipsLearning(t *testing.T) {
	tmpl, _ := TemplateFor(OutcomeTransformed)
	if tmpl.ExtractLearning {
		t.Error("transformed storylines have not concluded; no learning should be extracted")
	}
	for _, o := range []Outcome{OutcomeSuccess, OutcomeFailure, OutcomeAbandoned} {
		tmpl, _ := TemplateFor(o)
		if !tmpl.ExtractLearning {
			t.Errorf("outcome %q should extract a learning", o)
		}
	}
}
