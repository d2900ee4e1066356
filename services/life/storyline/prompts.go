// Copyright (C) 2026 Solenne AI (dev@solenne.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package storyline - prompt construction for every text-generation call the
// engine makes. The collaborator is opaque: these builders assemble
// plain-text context, and parse.go handles whatever comes back.
package storyline

import (
	"fmt"
	"strings"

	"github.com/solenne-ai/solenne/services/life/datatypes"
)

// beatPromptHints flavors the instruction for each phase beat kind.
var beatPromptHints = map[datatypes.UpdateType]string{
	datatypes.UpdateExcitement:   "an excited early-days beat, still glowing about the possibilities",
	datatypes.UpdateRealityCheck: "a grounded beat where the first real difficulties show up",
	datatypes.UpdateProgress:     "a working-through-it progress beat, effort and small wins",
	datatypes.UpdateTurningPoint: "a turning point, the moment everything comes to a head",
}

// closurePromptHints flavors the instruction for each closure step kind.
var closurePromptHints = map[datatypes.UpdateType]string{
	datatypes.UpdateOutcomeReaction:     "the raw first reaction to how it ended",
	datatypes.UpdateGratitude:           "gratitude for the people and moments along the way",
	datatypes.UpdateReflection:          "a quieter look back at what the whole thing was",
	datatypes.UpdateLessonLearned:       "the one lesson worth keeping",
	datatypes.UpdateEmotionalProcessing: "sitting with the feelings, naming them honestly",
	datatypes.UpdateMeaningMaking:       "finding what the experience meant despite how it ended",
}

// buildBeatPrompt builds the prompt for a phase-transition narrative beat.
func (e *Engine) buildBeatPrompt(s *datatypes.Storyline, beat datatypes.UpdateType) string {
	var b strings.Builder

	if profile := e.profile.ProfileText(); profile != "" {
		b.WriteString(profile)
		b.WriteString("\n\n")
	}

	fmt.Fprintf(&b, "One of your ongoing life events just moved into its %q phase.\n\n", s.Phase)
	writeStorylineBlock(&b, s)

	hint := beatPromptHints[beat]
	fmt.Fprintf(&b, "\nWrite %s for this event, in first person, 1-3 sentences, as you would tell a close friend.\n", hint)
	b.WriteString("Respond with only a JSON object: {\"content\": \"...\", \"emotional_tone\": \"one or two words\"}\n")

	return b.String()
}

// buildClosureStepPrompt builds the prompt for one closure-sequence step.
func (e *Engine) buildClosureStepPrompt(s *datatypes.Storyline, tmpl datatypes.ResolutionTemplate, step datatypes.UpdateType, emotion string) string {
	var b strings.Builder

	if profile := e.profile.ProfileText(); profile != "" {
		b.WriteString(profile)
		b.WriteString("\n\n")
	}

	fmt.Fprintf(&b, "A life event of yours has concluded: %s.\n\n", s.Outcome)
	writeStorylineBlock(&b, s)
	if s.OutcomeDescription != "" {
		fmt.Fprintf(&b, "How it ended: %s\n", s.OutcomeDescription)
	}

	hint := closurePromptHints[step]
	fmt.Fprintf(&b, "\nWrite %s. Emotional register: %s. Tone: %s.\n", hint, emotion, tmpl.ToneDirective)
	b.WriteString("First person, 1-3 sentences. ")
	b.WriteString("Respond with only a JSON object: {\"content\": \"...\", \"emotional_tone\": \"one or two words\"}\n")

	return b.String()
}

// buildSuggestionPrompt builds the idle-suggestion prompt from the persona
// profile, current storylines, and recent conversation.
func (e *Engine) buildSuggestionPrompt(active []*datatypes.Storyline, recentSummary string) string {
	var b strings.Builder

	if profile := e.profile.ProfileText(); profile != "" {
		b.WriteString(profile)
		b.WriteString("\n\n")
	}

	b.WriteString("Invent one new background life event for yourself, something that could believably start today.\n\n")

	if len(active) > 0 {
		b.WriteString("Events already underway (do not duplicate or crowd these):\n")
		for _, s := range active {
			fmt.Fprintf(&b, "- [%s] %s (%s)\n", s.Category, s.Title, s.Phase)
		}
		b.WriteString("\n")
	}
	if recentSummary != "" {
		fmt.Fprintf(&b, "Recent conversation context:\n%s\n\n", recentSummary)
	}

	b.WriteString("Pick a life area that is underrepresented. Valid categories: ")
	for i, c := range datatypes.AllCategories {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(string(c))
	}
	b.WriteString(".\n")
	b.WriteString("Respond with only a JSON object: {\"category\": \"...\", \"theme\": \"one-line event idea\", \"reasoning\": \"why this, why now\"}\n")

	return b.String()
}

// buildOutcomeDescriptionPrompt asks for the one-sentence ending summary.
func (e *Engine) buildOutcomeDescriptionPrompt(s *datatypes.Storyline, outcome datatypes.Outcome) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Your life event %q (%s, %s) is ending with outcome: %s.\n\n", s.Title, s.Category, s.Type, outcome)
	if s.Stakes != "" {
		fmt.Fprintf(&b, "What was at stake: %s\n", s.Stakes)
	}
	b.WriteString("\nDescribe in one plain sentence, first person, how it concretely ended. No JSON, just the sentence.\n")

	return b.String()
}

// buildLearningPrompt asks for the permanent takeaway from a concluded
// storyline.
func (e *Engine) buildLearningPrompt(s *datatypes.Storyline) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Your life event %q ended: %s.\n", s.Title, s.Outcome)
	if s.OutcomeDescription != "" {
		fmt.Fprintf(&b, "How it ended: %s\n", s.OutcomeDescription)
	}
	b.WriteString("\nState in one sentence, first person, the lasting thing you learned from this experience. No JSON, just the sentence.\n")

	return b.String()
}

// writeStorylineBlock renders the shared storyline context lines.
func writeStorylineBlock(b *strings.Builder, s *datatypes.Storyline) {
	fmt.Fprintf(b, "Event: %s\n", s.Title)
	fmt.Fprintf(b, "Life area: %s (%s)\n", s.Category, s.Type)
	if s.Stakes != "" {
		fmt.Fprintf(b, "Why it matters: %s\n", s.Stakes)
	}
	if s.CurrentEmotionalTone != "" {
		fmt.Fprintf(b, "How you have been feeling about it: %s\n", s.CurrentEmotionalTone)
	}
}
