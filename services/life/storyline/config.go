// Copyright (C) 2026 Solenne AI (dev@solenne.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package storyline

import (
	"math/rand"
	"os"
	"strconv"
	"time"

	"github.com/solenne-ai/solenne/services/life/datatypes"
)

// Config carries every engine tunable. Durations and thresholds here are
// policy, not structure: changing them never changes which checks run or in
// what order.
//
// # Environment Overrides
//
// DefaultConfig honors these variables when set:
//
//   - LIFE_COOLDOWN_HOURS: hours between successful creations (default 48)
//   - LIFE_DEDUP_WINDOW_DAYS: duplicate search window in days (default 7)
//   - LIFE_ABSENCE_MINUTES: idle minutes before suggesting (default 30)
//   - LIFE_SUGGESTION_INTERVAL_MINUTES: idle tick cadence (default 10)
//   - LIFE_CLIMAX_PASS_LIMIT: passes in climax before auto-resolution (default 5)
type Config struct {
	// Creation gate.
	Cooldown           time.Duration
	DedupWindow        time.Duration
	DuplicateThreshold float64

	// Phase engine.
	PassInterval    time.Duration
	PhaseDurations  map[datatypes.Phase]time.Duration
	ReflectingAfter time.Duration
	ClimaxPassLimit int
	OutcomeWeights  map[datatypes.Outcome]float64
	MentionByWindow time.Duration

	// Idle suggestions.
	SuggestionInterval time.Duration
	AbsenceThreshold   time.Duration
	SuggestionExpiry   time.Duration

	// Prompt context.
	PhaseUrgency         map[datatypes.Phase]float64
	MinContextIntensity  float64
	MaxContextStorylines int
	UnmentionedBonus     float64
	UnmentionedWindow    time.Duration

	// Callbacks.
	CallbackMinAge     time.Duration
	CallbackMentionGap time.Duration
	CallbackPoolSize   int

	// Injectable time and randomness. Tests pin these.
	Now       func() time.Time
	RandFloat func() float64
}

// DefaultConfig returns the reference configuration with environment
// overrides applied.
func DefaultConfig() Config {
	return Config{
		Cooldown:           time.Duration(getEnvInt("LIFE_COOLDOWN_HOURS", 48)) * time.Hour,
		DedupWindow:        time.Duration(getEnvInt("LIFE_DEDUP_WINDOW_DAYS", 7)) * 24 * time.Hour,
		DuplicateThreshold: 0.6,

		PassInterval: 24 * time.Hour,
		PhaseDurations: map[datatypes.Phase]time.Duration{
			datatypes.PhaseAnnounced: 1 * 24 * time.Hour,
			datatypes.PhaseHoneymoon: 2 * 24 * time.Hour,
			datatypes.PhaseReality:   3 * 24 * time.Hour,
			datatypes.PhaseActive:    4 * 24 * time.Hour,
		},
		ReflectingAfter: 3 * 24 * time.Hour,
		ClimaxPassLimit: getEnvInt("LIFE_CLIMAX_PASS_LIMIT", 5),
		OutcomeWeights: map[datatypes.Outcome]float64{
			datatypes.OutcomeSuccess:     0.5,
			datatypes.OutcomeTransformed: 0.3,
			datatypes.OutcomeFailure:     0.15,
			datatypes.OutcomeAbandoned:   0.05,
		},
		MentionByWindow: 24 * time.Hour,

		SuggestionInterval: time.Duration(getEnvInt("LIFE_SUGGESTION_INTERVAL_MINUTES", 10)) * time.Minute,
		AbsenceThreshold:   time.Duration(getEnvInt("LIFE_ABSENCE_MINUTES", 30)) * time.Minute,
		SuggestionExpiry:   24 * time.Hour,

		PhaseUrgency: map[datatypes.Phase]float64{
			datatypes.PhaseAnnounced:  1.0,
			datatypes.PhaseClimax:     1.0,
			datatypes.PhaseResolving:  0.9,
			datatypes.PhaseHoneymoon:  0.6,
			datatypes.PhaseReality:    0.5,
			datatypes.PhaseActive:     0.4,
			datatypes.PhaseResolved:   0.2,
			datatypes.PhaseReflecting: 0.1,
		},
		MinContextIntensity:  0.3,
		MaxContextStorylines: 5,
		UnmentionedBonus:     0.3,
		UnmentionedWindow:    7 * 24 * time.Hour,

		CallbackMinAge:     30 * 24 * time.Hour,
		CallbackMentionGap: 14 * 24 * time.Hour,
		CallbackPoolSize:   10,

		Now:       time.Now,
		RandFloat: rand.Float64,
	}
}

// getEnvInt returns an environment variable as int, or defaultVal if not
// set or invalid.
func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return defaultVal
}
