// Copyright (C) 2026 Solenne AI (dev@solenne.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package datatypes provides data structures for the life engine service.
//
// This file contains the Storyline entity, its enumerations, and the
// StorylineUpdate narrative beat. For suggestion and audit types, see
// suggestion.go and attempt.go.
package datatypes

import (
	"time"
)

// =============================================================================
// Enumerations
// =============================================================================

// Category classifies which area of the persona's life a storyline occupies.
type Category string

const (
	CategoryWork     Category = "work"
	CategoryPersonal Category = "personal"
	CategoryFamily   Category = "family"
	CategorySocial   Category = "social"
	CategoryCreative Category = "creative"
)

// AllCategories lists every valid category, in presentation order.
var AllCategories = []Category{
	CategoryWork,
	CategoryPersonal,
	CategoryFamily,
	CategorySocial,
	CategoryCreative,
}

// Valid reports whether c is a member of the fixed category set.
func (c Category) Valid() bool {
	switch c {
	case CategoryWork, CategoryPersonal, CategoryFamily, CategorySocial, CategoryCreative:
		return true
	}
	return false
}

// StorylineType classifies the narrative shape of a storyline.
type StorylineType string

const (
	TypeProject      StorylineType = "project"
	TypeOpportunity  StorylineType = "opportunity"
	TypeChallenge    StorylineType = "challenge"
	TypeRelationship StorylineType = "relationship"
	TypeGoal         StorylineType = "goal"
)

// Valid reports whether t is a member of the fixed type set.
func (t StorylineType) Valid() bool {
	switch t {
	case TypeProject, TypeOpportunity, TypeChallenge, TypeRelationship, TypeGoal:
		return true
	}
	return false
}

// Phase is a storyline's position in its lifecycle state machine.
//
// Active storylines advance announced → honeymoon → reality → active →
// climax on a time-driven schedule. Resolution moves a storyline through
// resolving → resolved, and resolved storylines eventually age into
// reflecting.
type Phase string

const (
	PhaseAnnounced  Phase = "announced"
	PhaseHoneymoon  Phase = "honeymoon"
	PhaseReality    Phase = "reality"
	PhaseActive     Phase = "active"
	PhaseClimax     Phase = "climax"
	PhaseResolving  Phase = "resolving"
	PhaseResolved   Phase = "resolved"
	PhaseReflecting Phase = "reflecting"
)

// Valid reports whether p is a member of the phase set.
func (p Phase) Valid() bool {
	switch p {
	case PhaseAnnounced, PhaseHoneymoon, PhaseReality, PhaseActive,
		PhaseClimax, PhaseResolving, PhaseResolved, PhaseReflecting:
		return true
	}
	return false
}

// Outcome is the terminal classification of a resolved storyline.
// The zero value means the storyline is still active.
type Outcome string

const (
	OutcomeSuccess     Outcome = "success"
	OutcomeFailure     Outcome = "failure"
	OutcomeAbandoned   Outcome = "abandoned"
	OutcomeTransformed Outcome = "transformed"
)

// AllOutcomes lists every terminal outcome.
var AllOutcomes = []Outcome{
	OutcomeSuccess,
	OutcomeFailure,
	OutcomeAbandoned,
	OutcomeTransformed,
}

// Valid reports whether o is a terminal outcome (the zero value is not).
func (o Outcome) Valid() bool {
	switch o {
	case OutcomeSuccess, OutcomeFailure, OutcomeAbandoned, OutcomeTransformed:
		return true
	}
	return false
}

// UserInvolvement records how entangled the user is in a storyline.
type UserInvolvement string

const (
	InvolvementNone       UserInvolvement = "none"
	InvolvementAware      UserInvolvement = "aware"
	InvolvementSupportive UserInvolvement = "supportive"
	InvolvementInvolved   UserInvolvement = "involved"
	InvolvementCentral    UserInvolvement = "central"
)

// Valid reports whether u is a member of the involvement set.
func (u UserInvolvement) Valid() bool {
	switch u {
	case InvolvementNone, InvolvementAware, InvolvementSupportive,
		InvolvementInvolved, InvolvementCentral:
		return true
	}
	return false
}

// UpdateType tags a StorylineUpdate with the kind of narrative beat it
// carries. Phase beats are produced by phase transitions; closure beats by
// the resolution sequence.
type UpdateType string

const (
	// Phase beats.
	UpdateExcitement   UpdateType = "excitement"    // entering honeymoon
	UpdateRealityCheck UpdateType = "reality_check" // entering reality
	UpdateProgress     UpdateType = "progress"      // entering active
	UpdateTurningPoint UpdateType = "turning_point" // entering climax

	// Closure beats.
	UpdateOutcomeReaction     UpdateType = "outcome_reaction"
	UpdateGratitude           UpdateType = "gratitude"
	UpdateReflection          UpdateType = "reflection"
	UpdateLessonLearned       UpdateType = "lesson_learned"
	UpdateEmotionalProcessing UpdateType = "emotional_processing"
	UpdateMeaningMaking       UpdateType = "meaning_making"
)

// =============================================================================
// Entities
// =============================================================================

// Storyline is a simulated ongoing life event for the persona.
//
// # Description
//
// A Storyline is created by the creation gate, advanced through its phases by
// the phase engine, resolved by the closure engine, and later surfaced as a
// conversational callback. At most one storyline is active (Outcome unset) at
// any time.
//
// # Fields
//
//   - ClimaxPasses counts processing passes spent in the climax phase and
//     drives auto-resolution eligibility.
//   - ShouldMentionBy is a soft deadline hint for the chat layer, set at
//     creation; nothing in the engine enforces it.
type Storyline struct {
	ID       string        `json:"id"`
	Title    string        `json:"title"`
	Category Category      `json:"category"`
	Type     StorylineType `json:"type"`

	Phase              Phase   `json:"phase"`
	Outcome            Outcome `json:"outcome,omitempty"`
	OutcomeDescription string  `json:"outcome_description,omitempty"`
	ResolutionEmotion  string  `json:"resolution_emotion,omitempty"`

	CurrentEmotionalTone string  `json:"current_emotional_tone"`
	EmotionalIntensity   float64 `json:"emotional_intensity"`

	Stakes              string          `json:"stakes"`
	UserInvolvement     UserInvolvement `json:"user_involvement"`
	InitialAnnouncement string          `json:"initial_announcement"`

	CreatedAt       time.Time  `json:"created_at"`
	PhaseStartedAt  time.Time  `json:"phase_started_at"`
	ResolvedAt      *time.Time `json:"resolved_at,omitempty"`
	LastMentionedAt *time.Time `json:"last_mentioned_at,omitempty"`
	ShouldMentionBy time.Time  `json:"should_mention_by"`

	ClimaxPasses int `json:"climax_passes,omitempty"`
}

// Active reports whether the storyline has not yet resolved.
func (s *Storyline) Active() bool {
	return s.Outcome == ""
}

// PhaseAge returns how long the storyline has been in its current phase.
func (s *Storyline) PhaseAge(now time.Time) time.Duration {
	return now.Sub(s.PhaseStartedAt)
}

// StorylineUpdate is a timestamped narrative beat belonging to a storyline.
//
// Updates are exclusively owned by their storyline: deleting a storyline
// deletes its updates. Mentioned records whether the beat has been surfaced
// to the user by the chat layer.
type StorylineUpdate struct {
	ID            string     `json:"id"`
	StorylineID   string     `json:"storyline_id"`
	UpdateType    UpdateType `json:"update_type"`
	Content       string     `json:"content"`
	EmotionalTone string     `json:"emotional_tone"`
	CreatedAt     time.Time  `json:"created_at"`
	Mentioned     bool       `json:"mentioned"`
}
