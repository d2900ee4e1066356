// Copyright (C) 2026 Solenne AI (dev@solenne.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

import "time"

// RejectedReason records why a surfaced suggestion did not become a
// storyline.
type RejectedReason string

const (
	RejectedNotInterested    RejectedReason = "not_interested"
	RejectedBadTiming        RejectedReason = "bad_timing"
	RejectedDuplicateConcern RejectedReason = "duplicate_concern"
	RejectedOther            RejectedReason = "other"
)

// Valid reports whether r is a member of the rejection set (the zero value
// is not).
func (r RejectedReason) Valid() bool {
	switch r {
	case RejectedNotInterested, RejectedBadTiming, RejectedDuplicateConcern, RejectedOther:
		return true
	}
	return false
}

// PendingSuggestion is a storyline candidate produced during user absence,
// waiting to be surfaced by the chat layer.
//
// # Description
//
// The idle scheduler writes at most one unsurfaced, unexpired suggestion at
// a time. Once surfaced, the suggestion's fate is recorded: either it became
// a storyline via the creation gate (WasCreated + ResultingStorylineID) or
// it was dropped (RejectedReason).
type PendingSuggestion struct {
	ID        string   `json:"id"`
	Category  Category `json:"category"`
	Theme     string   `json:"theme"`
	Reasoning string   `json:"reasoning"`

	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`

	Surfaced   bool       `json:"surfaced"`
	SurfacedAt *time.Time `json:"surfaced_at,omitempty"`

	WasCreated           bool           `json:"was_created"`
	ResultingStorylineID string         `json:"resulting_storyline_id,omitempty"`
	RejectedReason       RejectedReason `json:"rejected_reason,omitempty"`
}

// Expired reports whether the suggestion's surfacing window has passed.
func (p *PendingSuggestion) Expired(now time.Time) bool {
	return !now.Before(p.ExpiresAt)
}

// Pending reports whether the suggestion is still waiting to be surfaced.
func (p *PendingSuggestion) Pending(now time.Time) bool {
	return !p.Surfaced && !p.Expired(now)
}
