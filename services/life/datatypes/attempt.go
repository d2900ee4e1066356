// Copyright (C) 2026 Solenne AI (dev@solenne.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

import "time"

// AttemptSource identifies which path proposed a storyline creation.
type AttemptSource string

const (
	SourceConversation   AttemptSource = "conversation"
	SourceIdleSuggestion AttemptSource = "idle_suggestion"
)

// Valid reports whether s is a known creation source.
func (s AttemptSource) Valid() bool {
	return s == SourceConversation || s == SourceIdleSuggestion
}

// FailureReason classifies why the creation gate rejected a proposal.
type FailureReason string

const (
	FailureCooldownActive     FailureReason = "cooldown_active"
	FailureDuplicateDetected  FailureReason = "duplicate_detected"
	FailureCategoryConstraint FailureReason = "category_constraint"
	FailureDBError            FailureReason = "db_error"
	FailureUnknown            FailureReason = "unknown"
)

// CreationAttempt is an immutable audit record of one creation-gate call.
//
// # Description
//
// One row is appended per ProposeCreation call, success or failure, with the
// diagnostic fields of whichever check rejected the proposal. Rows are
// append-only; the engine never mutates or deletes them. Retention is an
// operational concern handled outside the engine.
type CreationAttempt struct {
	ID string `json:"id"`

	Title    string        `json:"title"`
	Category Category      `json:"category"`
	Type     StorylineType `json:"type"`

	Success       bool          `json:"success"`
	FailureReason FailureReason `json:"failure_reason,omitempty"`

	CooldownHoursRemaining int    `json:"cooldown_hours_remaining,omitempty"`
	DuplicateMatchTitle    string `json:"duplicate_match_title,omitempty"`
	BlockingStorylineID    string `json:"blocking_storyline_id,omitempty"`

	Source      AttemptSource `json:"source"`
	AttemptedAt time.Time     `json:"attempted_at"`
}

// CooldownState is the single mutable record gating creation frequency.
//
// Written only by the creation gate; observed by the idle scheduler. A nil
// LastStorylineCreatedAt means no storyline has ever been created.
type CooldownState struct {
	LastStorylineCreatedAt *time.Time `json:"last_storyline_created_at,omitempty"`
}
