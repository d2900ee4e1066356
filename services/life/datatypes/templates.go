// Copyright (C) 2026 Solenne AI (dev@solenne.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

// ResolutionTemplate fixes the emotional arc a storyline follows when it
// resolves with a given outcome.
//
// # Description
//
// Each outcome maps to exactly one template: the candidate emotions the
// closure beats draw from, a tone directive passed to the
// text-generation collaborator, the ordered four closure steps, the scalar
// nudge applied to the persona's mood, and whether a permanent learning is
// extracted afterward. Adding an outcome means adding one table entry below.
type ResolutionTemplate struct {
	// Emotions the closure steps choose from. The first entry doubles as the
	// default resolution emotion when the caller supplies none.
	Emotions []string

	// ToneDirective steers the collaborator's voice for every step.
	ToneDirective string

	// Steps is the ordered four-beat closure sequence.
	Steps [4]UpdateType

	// MoodImpact is applied to the persona mood at resolution time.
	MoodImpact float64

	// ExtractLearning marks outcomes whose conclusion yields a permanent
	// character fact. Transformed storylines have not truly concluded and
	// are exempt.
	ExtractLearning bool
}

// ResolutionTemplates is the outcome → template lookup table.
var ResolutionTemplates = map[Outcome]ResolutionTemplate{
	OutcomeSuccess: {
		Emotions:      []string{"proud", "joyful", "accomplished", "grateful"},
		ToneDirective: "warm and celebratory, with earned pride rather than boasting",
		Steps: [4]UpdateType{
			UpdateOutcomeReaction,
			UpdateGratitude,
			UpdateReflection,
			UpdateLessonLearned,
		},
		MoodImpact:      0.4,
		ExtractLearning: true,
	},
	OutcomeFailure: {
		Emotions:      []string{"disappointed", "sad", "frustrated", "tender"},
		ToneDirective: "honest about the hurt, without wallowing or forced positivity",
		Steps: [4]UpdateType{
			UpdateOutcomeReaction,
			UpdateEmotionalProcessing,
			UpdateMeaningMaking,
			UpdateLessonLearned,
		},
		MoodImpact:      -0.3,
		ExtractLearning: true,
	},
	OutcomeAbandoned: {
		Emotions:      []string{"relieved", "wistful", "uncertain", "pragmatic"},
		ToneDirective: "matter-of-fact with a thread of what-might-have-been",
		Steps: [4]UpdateType{
			UpdateOutcomeReaction,
			UpdateEmotionalProcessing,
			UpdateMeaningMaking,
			UpdateReflection,
		},
		MoodImpact:      0.1,
		ExtractLearning: true,
	},
	OutcomeTransformed: {
		Emotions:      []string{"surprised", "curious", "hopeful", "energized"},
		ToneDirective: "open-ended and forward-looking, an ending that is also a beginning",
		Steps: [4]UpdateType{
			UpdateOutcomeReaction,
			UpdateEmotionalProcessing,
			UpdateReflection,
			UpdateLessonLearned,
		},
		MoodImpact:      0.2,
		ExtractLearning: false,
	},
}

// TemplateFor returns the resolution template for an outcome.
//
// # Outputs
//
//   - ResolutionTemplate: The template, zero-valued if outcome is unknown.
//   - bool: false if the outcome has no template.
func TemplateFor(outcome Outcome) (ResolutionTemplate, bool) {
	t, ok := ResolutionTemplates[outcome]
	return t, ok
}
