// Copyright (C) 2026 Solenne AI (dev@solenne.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package storyline implements the persona's life engine: the safety-gated
// creation of storylines, their phase state machine, outcome-specific
// closure, idle-absence suggestions, prompt context building, and historical
// callbacks.
//
// The engine owns no I/O of its own; persistence, text generation,
// conversation history, character facts, mood, and event delivery are all
// injected through the interfaces in this file, so every behavior is
// testable with deterministic fakes.
package storyline

import (
	"context"
	"errors"
	"time"

	"github.com/solenne-ai/solenne/services/life/datatypes"
)

// =============================================================================
// Errors
// =============================================================================

var (
	// ErrNotFound is returned by stores when a record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrAlreadyRunning is returned when starting a scheduler that is
	// already running.
	ErrAlreadyRunning = errors.New("scheduler already running")

	// ErrPassInProgress is returned when a phase pass is requested while
	// another is still running. Passes are skipped, never queued.
	ErrPassInProgress = errors.New("phase pass already in progress")
)

// =============================================================================
// Persistence Collaborator
// =============================================================================

// StorylineFilter narrows a storyline listing. Zero-valued fields match
// everything.
type StorylineFilter struct {
	// Category restricts to one life area.
	Category datatypes.Category

	// ActiveOnly keeps storylines with no outcome.
	ActiveOnly bool

	// ResolvedOnly keeps storylines with a terminal outcome.
	ResolvedOnly bool

	// CreatedAfter keeps storylines created strictly after this instant.
	CreatedAfter time.Time

	// Limit caps the result count; 0 means no cap.
	Limit int
}

// UpdateFilter narrows a storyline-update listing.
type UpdateFilter struct {
	// StorylineID restricts to one storyline's beats; empty matches all.
	StorylineID string

	// UnmentionedOnly keeps beats not yet surfaced to the user.
	UnmentionedOnly bool

	// CreatedAfter keeps beats created strictly after this instant.
	CreatedAfter time.Time

	// Limit caps the result count; 0 means no cap.
	Limit int
}

// Store is the abstract persistence collaborator for the four entity
// collections plus the cooldown record and the phase engine's day marker.
//
// # Description
//
// Each call is independently consistent; no atomicity is guaranteed across
// calls. Mutations of existing records go through mutator closures, which
// adapters must apply as an atomic read-modify-write on that single record.
//
// # Limitations
//
//   - Listing operations may scan; collections are single-user sized.
//   - Cross-call invariants (single active storyline) are the engine's
//     responsibility, not the store's.
type Store interface {
	// InsertStoryline persists a new storyline. Fails if the ID exists.
	InsertStoryline(ctx context.Context, s *datatypes.Storyline) error

	// GetStoryline fetches one storyline by ID; ErrNotFound if absent.
	GetStoryline(ctx context.Context, id string) (*datatypes.Storyline, error)

	// MutateStoryline applies mutate to the stored record atomically and
	// returns the mutated copy; ErrNotFound if absent.
	MutateStoryline(ctx context.Context, id string, mutate func(*datatypes.Storyline) error) (*datatypes.Storyline, error)

	// ListStorylines returns storylines matching the filter, newest first.
	ListStorylines(ctx context.Context, filter StorylineFilter) ([]*datatypes.Storyline, error)

	// DeleteStoryline removes a storyline and every update it owns.
	DeleteStoryline(ctx context.Context, id string) error

	// InsertUpdate persists a new narrative beat.
	InsertUpdate(ctx context.Context, u *datatypes.StorylineUpdate) error

	// ListUpdates returns beats matching the filter, oldest first.
	ListUpdates(ctx context.Context, filter UpdateFilter) ([]*datatypes.StorylineUpdate, error)

	// MarkUpdateMentioned flags one beat as surfaced to the user.
	MarkUpdateMentioned(ctx context.Context, storylineID, updateID string) error

	// InsertSuggestion persists a new pending suggestion.
	InsertSuggestion(ctx context.Context, sug *datatypes.PendingSuggestion) error

	// MutateSuggestion applies mutate to the stored suggestion atomically
	// and returns the mutated copy; ErrNotFound if absent.
	MutateSuggestion(ctx context.Context, id string, mutate func(*datatypes.PendingSuggestion) error) (*datatypes.PendingSuggestion, error)

	// LatestPendingSuggestion returns the most recent unsurfaced, unexpired
	// suggestion as of now; ErrNotFound if none qualifies.
	LatestPendingSuggestion(ctx context.Context, now time.Time) (*datatypes.PendingSuggestion, error)

	// AppendAttempt persists one immutable creation-attempt audit row.
	AppendAttempt(ctx context.Context, a *datatypes.CreationAttempt) error

	// ListAttempts returns the most recent audit rows, newest first.
	ListAttempts(ctx context.Context, limit int) ([]*datatypes.CreationAttempt, error)

	// Cooldown reads the creation cooldown record. A zero-valued state (nil
	// timestamp) is returned when nothing has been recorded yet.
	Cooldown(ctx context.Context) (datatypes.CooldownState, error)

	// SetCooldown overwrites the creation cooldown record.
	SetCooldown(ctx context.Context, cs datatypes.CooldownState) error

	// LastProcessedDay reads the phase engine's catch-up marker; the bool is
	// false when no pass has ever completed.
	LastProcessedDay(ctx context.Context) (time.Time, bool, error)

	// SetLastProcessedDay overwrites the phase engine's catch-up marker.
	SetLastProcessedDay(ctx context.Context, day time.Time) error
}

// =============================================================================
// Conversation, Facts, Mood
// =============================================================================

// ConversationHistory exposes the absence-detection signal and a short
// summary of recent dialogue for suggestion context.
type ConversationHistory interface {
	// LastInteraction returns the most recent user interaction instant; the
	// bool is false when no interaction has ever been recorded.
	LastInteraction(ctx context.Context) (time.Time, bool, error)

	// RecentSummary returns a bounded plain-text summary of recent
	// conversation, empty when none exists.
	RecentSummary(ctx context.Context) (string, error)
}

// FactSink receives permanent character facts extracted from concluded
// storylines.
type FactSink interface {
	StoreFact(ctx context.Context, category, key, text string) error
}

// PersonaProfile supplies the persona's self-description for generation
// context. Implementations return the current text; hot reloads are the
// implementation's concern.
type PersonaProfile interface {
	ProfileText() string
}

// MoodSink receives mood nudges from resolution outcomes.
type MoodSink interface {
	// Apply shifts the persona mood by delta, clamping at the sink's bounds.
	Apply(ctx context.Context, delta float64) error
}

// MoodDecayer is an optional extension of MoodSink. Sinks that implement
// it get one Decay call per simulated day so mood drifts back toward its
// resting point between resolutions.
type MoodDecayer interface {
	Decay(ctx context.Context) error
}

// =============================================================================
// Event Delivery
// =============================================================================

// Lifecycle event kinds published by the engine.
const (
	EventStorylineCreated  = "storyline_created"
	EventPhaseChanged      = "phase_changed"
	EventStorylineResolved = "storyline_resolved"
	EventUpdateGenerated   = "update_generated"
	EventSuggestionReady   = "suggestion_ready"
)

// EventSink receives lifecycle events for delivery to the chat layer.
// Publish must not block; sinks drop rather than stall the engine.
type EventSink interface {
	Publish(kind string, data map[string]string)
}

// nopEventSink drops all events. Used when no sink is configured.
type nopEventSink struct{}

func (nopEventSink) Publish(string, map[string]string) {}

// =============================================================================
// Attempt Audit Log
// =============================================================================

// AttemptLogger mirrors creation attempts to a tamper-evident operator log,
// separate from the store's queryable audit rows.
type AttemptLogger interface {
	// LogAttempt appends one attempt record to the log.
	LogAttempt(a *datatypes.CreationAttempt) error

	// Close flushes and releases the log.
	Close() error
}

// NoopAttemptLogger discards attempt records. Used when no log path is
// configured; the store's audit rows remain the source of truth.
type NoopAttemptLogger struct{}

func (NoopAttemptLogger) LogAttempt(*datatypes.CreationAttempt) error { return nil }
func (NoopAttemptLogger) Close() error                                { return nil }

// =============================================================================
// Results
// =============================================================================

// CreationResult is the discriminated outcome of one ProposeCreation call.
//
// # Description
//
// Expected business rejections (cooldown, duplicate, active-slot) are result
// variants, not errors; only infrastructure faults surface as FailureDBError.
// Exactly one of Created/Reason carries meaning: Created true means
// Storyline is set and Reason is empty.
type CreationResult struct {
	// Created reports whether a storyline was persisted.
	Created bool

	// Storyline is the persisted record when Created is true.
	Storyline *datatypes.Storyline

	// Reason classifies the rejection when Created is false.
	Reason datatypes.FailureReason

	// CooldownHoursRemaining accompanies cooldown_active rejections.
	CooldownHoursRemaining int

	// DuplicateMatchTitle accompanies duplicate_detected rejections.
	DuplicateMatchTitle string

	// BlockingStorylineID and BlockingStorylineTitle accompany
	// category_constraint rejections.
	BlockingStorylineID    string
	BlockingStorylineTitle string
}

// Rejected reports whether the proposal was turned away.
func (r *CreationResult) Rejected() bool {
	return !r.Created
}

// PromptContext is the bounded storyline summary handed to the chat layer.
type PromptContext struct {
	// HasActive reports whether any storyline survived the salience filter.
	HasActive bool `json:"has_active"`

	// Storylines are the kept storylines, most salient first.
	Storylines []*datatypes.Storyline `json:"storylines"`

	// UnmentionedUpdates are the unsurfaced beats backing the rendered
	// section, aligned with Storylines where present.
	UnmentionedUpdates []*datatypes.StorylineUpdate `json:"unmentioned_updates"`

	// MostPressing is the highest-salience storyline, nil when none.
	MostPressing *datatypes.Storyline `json:"most_pressing,omitempty"`

	// RenderedSection is the compact text block for prompt injection.
	RenderedSection string `json:"rendered_section"`
}
