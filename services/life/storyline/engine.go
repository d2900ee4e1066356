// Copyright (C) 2026 Solenne AI (dev@solenne.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package storyline

import (
	"context"
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"

	"github.com/solenne-ai/solenne/pkg/telemetry"
	"github.com/solenne-ai/solenne/services/llm"
)

// tracer is the package tracer for engine operations.
var tracer = otel.Tracer("solenne.life.storyline")

// Deps bundles the engine's collaborators. Store, LLM, and History are
// required; the rest default to no-ops when nil.
type Deps struct {
	Store   Store
	LLM     llm.LLMClient
	History ConversationHistory
	Facts   FactSink
	Mood    MoodSink
	Events  EventSink
	Audit   AttemptLogger
	Profile PersonaProfile
	Metrics *telemetry.Metrics
}

// Engine drives the persona's simulated life.
//
// # Description
//
// One Engine instance serves both creation sources (conversation and idle
// suggestion), the daily phase pass, closure, context building, and
// callbacks. All methods are safe for concurrent use: creation is serialized
// under a single mutex, phase passes are guarded by a weighted semaphore,
// and context builds are deduplicated through singleflight.
//
// # Limitations
//
//   - Single-process by design. The creation mutex closes the
//     read-then-write race between the two creation sources inside this
//     process only.
type Engine struct {
	store   Store
	llm     llm.LLMClient
	history ConversationHistory
	facts   FactSink
	mood    MoodSink
	events  EventSink
	audit   AttemptLogger
	profile PersonaProfile
	metrics *telemetry.Metrics
	cfg     Config

	// creationMu serializes ProposeCreation's check-and-persist section.
	creationMu sync.Mutex

	// passSem guarantees phase passes never overlap.
	passSem *semaphore.Weighted

	// contextGroup collapses concurrent BuildContext calls.
	contextGroup singleflight.Group
}

// NewEngine validates dependencies, applies config defaults, and returns a
// ready engine.
//
// # Inputs
//
//   - deps: Collaborators; Store, LLM, and History must be non-nil.
//   - cfg: Tunables; zero-valued fields fall back to DefaultConfig values.
//
// # Outputs
//
//   - *Engine: Ready engine.
//   - error: Non-nil if a required dependency is missing.
func NewEngine(deps Deps, cfg Config) (*Engine, error) {
	if deps.Store == nil {
		return nil, fmt.Errorf("storyline engine requires a store")
	}
	if deps.LLM == nil {
		return nil, fmt.Errorf("storyline engine requires an LLM client")
	}
	if deps.History == nil {
		return nil, fmt.Errorf("storyline engine requires conversation history")
	}
	if deps.Facts == nil {
		deps.Facts = nopFactSink{}
	}
	if deps.Mood == nil {
		deps.Mood = nopMoodSink{}
	}
	if deps.Events == nil {
		deps.Events = nopEventSink{}
	}
	if deps.Audit == nil {
		deps.Audit = NoopAttemptLogger{}
	}
	if deps.Profile == nil {
		deps.Profile = nopProfile{}
	}

	return &Engine{
		store:   deps.Store,
		llm:     deps.LLM,
		history: deps.History,
		facts:   deps.Facts,
		mood:    deps.Mood,
		events:  deps.Events,
		audit:   deps.Audit,
		profile: deps.Profile,
		metrics: deps.Metrics,
		cfg:     applyConfigDefaults(cfg),
		passSem: semaphore.NewWeighted(1),
	}, nil
}

// Config returns the engine's effective configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// now returns the injected clock's current time.
func (e *Engine) now() time.Time {
	return e.cfg.Now()
}

// newID mints a fresh entity identifier.
func newID() string {
	return uuid.NewString()
}

// applyConfigDefaults fills in missing configuration values from the
// reference defaults.
func applyConfigDefaults(cfg Config) Config {
	def := DefaultConfig()

	if cfg.Cooldown == 0 {
		cfg.Cooldown = def.Cooldown
	}
	if cfg.DedupWindow == 0 {
		cfg.DedupWindow = def.DedupWindow
	}
	if cfg.DuplicateThreshold == 0 {
		cfg.DuplicateThreshold = def.DuplicateThreshold
	}
	if cfg.PassInterval == 0 {
		cfg.PassInterval = def.PassInterval
	}
	if cfg.PhaseDurations == nil {
		cfg.PhaseDurations = def.PhaseDurations
	}
	if cfg.ReflectingAfter == 0 {
		cfg.ReflectingAfter = def.ReflectingAfter
	}
	if cfg.ClimaxPassLimit == 0 {
		cfg.ClimaxPassLimit = def.ClimaxPassLimit
	}
	if cfg.OutcomeWeights == nil {
		cfg.OutcomeWeights = def.OutcomeWeights
	}
	if cfg.MentionByWindow == 0 {
		cfg.MentionByWindow = def.MentionByWindow
	}
	if cfg.SuggestionInterval == 0 {
		cfg.SuggestionInterval = def.SuggestionInterval
	}
	if cfg.AbsenceThreshold == 0 {
		cfg.AbsenceThreshold = def.AbsenceThreshold
	}
	if cfg.SuggestionExpiry == 0 {
		cfg.SuggestionExpiry = def.SuggestionExpiry
	}
	if cfg.PhaseUrgency == nil {
		cfg.PhaseUrgency = def.PhaseUrgency
	}
	if cfg.MinContextIntensity == 0 {
		cfg.MinContextIntensity = def.MinContextIntensity
	}
	if cfg.MaxContextStorylines == 0 {
		cfg.MaxContextStorylines = def.MaxContextStorylines
	}
	if cfg.UnmentionedBonus == 0 {
		cfg.UnmentionedBonus = def.UnmentionedBonus
	}
	if cfg.UnmentionedWindow == 0 {
		cfg.UnmentionedWindow = def.UnmentionedWindow
	}
	if cfg.CallbackMinAge == 0 {
		cfg.CallbackMinAge = def.CallbackMinAge
	}
	if cfg.CallbackMentionGap == 0 {
		cfg.CallbackMentionGap = def.CallbackMentionGap
	}
	if cfg.CallbackPoolSize == 0 {
		cfg.CallbackPoolSize = def.CallbackPoolSize
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.RandFloat == nil {
		cfg.RandFloat = seededRandFloat()
	}

	return cfg
}

// seededRandFloat builds a private generator seeded from crypto/rand so two
// engine instances never share a stream. Falls back to the global source if
// entropy is unavailable. The returned func is safe for concurrent use; the
// pass goroutine and HTTP handlers both draw from it.
func seededRandFloat() func() float64 {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return rand.Float64
	}
	rng := rand.New(rand.NewSource(int64(binary.LittleEndian.Uint64(b[:]))))
	var mu sync.Mutex
	return func() float64 {
		mu.Lock()
		defer mu.Unlock()
		return rng.Float64()
	}
}

// nopFactSink drops facts when no sink is configured.
type nopFactSink struct{}

func (nopFactSink) StoreFact(context.Context, string, string, string) error { return nil }

// nopMoodSink drops mood nudges when no sink is configured.
type nopMoodSink struct{}

func (nopMoodSink) Apply(context.Context, float64) error { return nil }

// nopProfile supplies an empty persona description.
type nopProfile struct{}

func (nopProfile) ProfileText() string { return "" }
