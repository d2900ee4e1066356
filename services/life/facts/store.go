// Copyright (C) 2026 Solenne AI (dev@solenne.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package facts stores durable character facts: things the persona has
// learned, decided, or lived through. Resolved storylines deposit their
// extracted learnings here under the "experiences" category.
package facts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	dgbadger "github.com/dgraph-io/badger/v4"

	"github.com/solenne-ai/solenne/services/life/storage/badger"
	"github.com/solenne-ai/solenne/services/life/storyline"
)

const factKeyPrefix = "fact:"

// Fact is one stored character fact, addressed by category and key.
type Fact struct {
	Category  string    `json:"category"`
	Key       string    `json:"key"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store persists facts in the shared embedded BadgerDB under the
// "fact:" key space.
//
// # Thread Safety
//
// Safe for concurrent use; each method runs in its own transaction.
type Store struct {
	db *badger.DB

	now func() time.Time
}

var _ storyline.FactSink = (*Store)(nil)

// New wraps the shared database handle.
func New(db *badger.DB) (*Store, error) {
	if db == nil {
		return nil, errors.New("db must not be nil")
	}
	return &Store{db: db, now: time.Now}, nil
}

func factKey(category, key string) []byte {
	return []byte(factKeyPrefix + category + ":" + key)
}

// StoreFact inserts or updates a fact. Upserts preserve CreatedAt and
// refresh UpdatedAt.
//
// Implements the engine's fact sink for extracted learnings.
func (s *Store) StoreFact(ctx context.Context, category, key, text string) error {
	category = strings.TrimSpace(strings.ToLower(category))
	key = strings.TrimSpace(key)
	if category == "" || strings.Contains(category, ":") {
		return fmt.Errorf("invalid fact category %q", category)
	}
	if key == "" {
		return errors.New("fact key must not be empty")
	}
	if strings.TrimSpace(text) == "" {
		return errors.New("fact text must not be empty")
	}

	now := s.now().UTC()
	return s.db.WithTxn(ctx, func(txn *dgbadger.Txn) error {
		fact := Fact{
			Category:  category,
			Key:       key,
			Text:      text,
			CreatedAt: now,
			UpdatedAt: now,
		}

		// Keep the original creation time on upsert.
		var existing Fact
		item, err := txn.Get(factKey(category, key))
		if err == nil {
			if verr := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &existing)
			}); verr == nil && !existing.CreatedAt.IsZero() {
				fact.CreatedAt = existing.CreatedAt
			}
		} else if !errors.Is(err, dgbadger.ErrKeyNotFound) {
			return fmt.Errorf("read existing fact: %w", err)
		}

		data, err := json.Marshal(fact)
		if err != nil {
			return fmt.Errorf("encode fact: %w", err)
		}
		return txn.Set(factKey(category, key), data)
	})
}

// GetFact reads one fact. Missing facts map to storyline.ErrNotFound.
func (s *Store) GetFact(ctx context.Context, category, key string) (*Fact, error) {
	var fact Fact
	err := s.db.WithReadTxn(ctx, func(txn *dgbadger.Txn) error {
		item, err := txn.Get(factKey(category, key))
		if errors.Is(err, dgbadger.ErrKeyNotFound) {
			return storyline.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get fact: %w", err)
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &fact)
		})
	})
	if err != nil {
		return nil, err
	}
	return &fact, nil
}

// ListFacts returns facts, newest first by update time. An empty
// category lists every category.
func (s *Store) ListFacts(ctx context.Context, category string) ([]Fact, error) {
	prefix := factKeyPrefix
	if category != "" {
		prefix += strings.ToLower(category) + ":"
	}

	var out []Fact
	err := s.db.WithReadTxn(ctx, func(txn *dgbadger.Txn) error {
		opts := dgbadger.DefaultIteratorOptions
		opts.Prefix = []byte(prefix)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var fact Fact
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &fact)
			})
			if err != nil {
				return fmt.Errorf("decode fact %s: %w", it.Item().Key(), err)
			}
			out = append(out, fact)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

// DeleteFact removes one fact. Deleting a missing fact is not an error.
func (s *Store) DeleteFact(ctx context.Context, category, key string) error {
	return s.db.WithTxn(ctx, func(txn *dgbadger.Txn) error {
		return txn.Delete(factKey(category, key))
	})
}
