// Copyright (C) 2026 Solenne AI (dev@solenne.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package datatypes - creation input and its validation.
//
// StorylineInput is validated with go-playground/validator before the
// creation gate touches the store; a proposal that fails here never produces
// an audit row because it never reached the gate's checks.
package datatypes

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// MaxTitleBytes caps the storyline title size. Byte length, not rune
	// count, so oversized multi-byte payloads are rejected too.
	MaxTitleBytes = 256

	// MaxNarrativeFieldBytes caps the free-form narrative fields
	// (stakes, initial announcement).
	MaxNarrativeFieldBytes = 4 * 1024 // 4KB
)

// =============================================================================
// Shared Validator Instance
// =============================================================================

// lifeValidate is the validator instance for life-engine datatypes.
// Initialized in init() with custom validators.
var lifeValidate *validator.Validate

func init() {
	lifeValidate = validator.New()

	_ = lifeValidate.RegisterValidation("titlebytes", validateTitleBytes)
	_ = lifeValidate.RegisterValidation("narrativebytes", validateNarrativeBytes)
}

// validateTitleBytes enforces MaxTitleBytes on a string field.
func validateTitleBytes(fl validator.FieldLevel) bool {
	return len(fl.Field().String()) <= MaxTitleBytes
}

// validateNarrativeBytes enforces MaxNarrativeFieldBytes on a string field.
func validateNarrativeBytes(fl validator.FieldLevel) bool {
	return len(fl.Field().String()) <= MaxNarrativeFieldBytes
}

// =============================================================================
// Creation Input
// =============================================================================

// StorylineInput carries every storyline creation field except lifecycle
// timestamps, which the creation gate assigns itself.
//
// # Validation
//
// Uses go-playground/validator:
//   - Title: required, max 256 bytes
//   - Category: required, member of the fixed category set
//   - Type: required, member of the fixed type set
//   - UserInvolvement: required, member of the involvement set
//   - EmotionalIntensity: 0.0-1.0
//   - Stakes, InitialAnnouncement: max 4KB each
type StorylineInput struct {
	Title    string        `json:"title" validate:"required,titlebytes"`
	Category Category      `json:"category" validate:"required,oneof=work personal family social creative"`
	Type     StorylineType `json:"type" validate:"required,oneof=project opportunity challenge relationship goal"`

	CurrentEmotionalTone string  `json:"current_emotional_tone" validate:"required"`
	EmotionalIntensity   float64 `json:"emotional_intensity" validate:"gte=0,lte=1"`

	Stakes              string          `json:"stakes" validate:"narrativebytes"`
	UserInvolvement     UserInvolvement `json:"user_involvement" validate:"required,oneof=none aware supportive involved central"`
	InitialAnnouncement string          `json:"initial_announcement" validate:"required,narrativebytes"`
}

// Validate checks the input against its validation tags.
//
// # Outputs
//
//   - error: Non-nil with the first violated constraint, nil if valid.
func (in *StorylineInput) Validate() error {
	if err := lifeValidate.Struct(in); err != nil {
		return fmt.Errorf("invalid storyline input: %w", err)
	}
	return nil
}
