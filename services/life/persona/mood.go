// Copyright (C) 2026 Solenne AI (dev@solenne.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package persona

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	dgbadger "github.com/dgraph-io/badger/v4"

	"github.com/solenne-ai/solenne/services/life/storage/badger"
	"github.com/solenne-ai/solenne/services/life/storyline"
)

// moodKey is the single record holding the persona mood scalar.
const moodKey = "mood"

// Mood bounds and decay defaults. Mood drifts back toward the baseline a
// fraction of the remaining distance per simulated day, so a strong swing
// fades over roughly a week of passes.
const (
	moodMin  = -1.0
	moodMax  = 1.0
	moodSnap = 0.005

	defaultBaseline  = 0.0
	defaultDecayRate = 0.12
)

// moodRecord is the persisted form.
type moodRecord struct {
	Value     float64   `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// MoodStore persists the persona mood scalar in Badger under its own key,
// sharing the database with the storyline store.
//
// # Description
//
// Mood is one float in [-1, 1]. Resolution outcomes nudge it via Apply,
// and each simulated day decays it toward the baseline via Decay. A value
// within moodSnap of the baseline snaps exactly onto it.
//
// # Thread Safety
//
// Safe for concurrent use; every method runs in its own transaction.
type MoodStore struct {
	db        *badger.DB
	baseline  float64
	decayRate float64
	now       func() time.Time
}

var _ storyline.MoodSink = (*MoodStore)(nil)

// NewMoodStore creates a mood store over db.
func NewMoodStore(db *badger.DB) (*MoodStore, error) {
	if db == nil {
		return nil, errors.New("db must not be nil")
	}
	return &MoodStore{
		db:        db,
		baseline:  defaultBaseline,
		decayRate: defaultDecayRate,
		now:       time.Now,
	}, nil
}

// Apply shifts the mood by delta, clamping to [-1, 1].
func (m *MoodStore) Apply(ctx context.Context, delta float64) error {
	return m.db.WithTxn(ctx, func(txn *dgbadger.Txn) error {
		rec, err := m.load(txn)
		if err != nil {
			return err
		}
		rec.Value = clampMood(rec.Value + delta)
		rec.UpdatedAt = m.now().UTC()
		return m.save(txn, rec)
	})
}

// Decay moves the mood one step toward the baseline. Called once per
// simulated day by the daily pass.
func (m *MoodStore) Decay(ctx context.Context) error {
	return m.db.WithTxn(ctx, func(txn *dgbadger.Txn) error {
		rec, err := m.load(txn)
		if err != nil {
			return err
		}

		distance := rec.Value - m.baseline
		if distance == 0 {
			return nil
		}

		rec.Value = rec.Value - distance*m.decayRate
		if diff := rec.Value - m.baseline; diff < moodSnap && diff > -moodSnap {
			rec.Value = m.baseline
		}
		rec.UpdatedAt = m.now().UTC()
		return m.save(txn, rec)
	})
}

// Current returns the mood value and when it last changed. A mood that
// was never touched reports the baseline with a zero timestamp.
func (m *MoodStore) Current(ctx context.Context) (float64, time.Time, error) {
	var rec moodRecord
	err := m.db.WithReadTxn(ctx, func(txn *dgbadger.Txn) error {
		loaded, err := m.load(txn)
		if err != nil {
			return err
		}
		rec = loaded
		return nil
	})
	if err != nil {
		return 0, time.Time{}, err
	}
	return rec.Value, rec.UpdatedAt, nil
}

// load reads the mood record, defaulting to the baseline when absent.
func (m *MoodStore) load(txn *dgbadger.Txn) (moodRecord, error) {
	item, err := txn.Get([]byte(moodKey))
	if errors.Is(err, dgbadger.ErrKeyNotFound) {
		return moodRecord{Value: m.baseline}, nil
	}
	if err != nil {
		return moodRecord{}, fmt.Errorf("failed to read mood: %w", err)
	}

	var rec moodRecord
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &rec)
	}); err != nil {
		return moodRecord{}, fmt.Errorf("failed to decode mood: %w", err)
	}
	return rec, nil
}

func (m *MoodStore) save(txn *dgbadger.Txn, rec moodRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode mood: %w", err)
	}
	return txn.Set([]byte(moodKey), data)
}

func clampMood(v float64) float64 {
	if v > moodMax {
		return moodMax
	}
	if v < moodMin {
		return moodMin
	}
	return v
}
