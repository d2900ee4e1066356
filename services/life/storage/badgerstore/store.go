// Copyright (C) 2026 Solenne AI (dev@solenne.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package badgerstore persists the life engine's entities in an embedded
// BadgerDB database.
//
// # Key Layout
//
//	story:<id>           one storyline, JSON encoded
//	update:<seq>         one narrative beat, zero-padded insertion sequence
//	suggestion:<id>      one pending suggestion, JSON encoded
//	attempt:<seq>        one creation-attempt audit row, insertion sequence
//	cooldown             the single creation cooldown record
//	pass:last_day        the phase engine's catch-up day marker
//
// Beats and attempts are keyed by a monotonic insertion sequence so that
// key order is insertion order: beat listings stay stable when several
// beats share a timestamp, and attempt listings read newest-first through
// a reverse scan. Sequences are recovered from the highest existing key on
// open, so they survive restarts.
//
// Collections are single-user sized; listing operations scan their prefix
// and filter in memory.
package badgerstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	dgbadger "github.com/dgraph-io/badger/v4"

	"github.com/solenne-ai/solenne/services/life/datatypes"
	"github.com/solenne-ai/solenne/services/life/storage/badger"
	"github.com/solenne-ai/solenne/services/life/storyline"
)

const (
	storyKeyPrefix      = "story:"
	updateKeyPrefix     = "update:"
	suggestionKeyPrefix = "suggestion:"
	attemptKeyPrefix    = "attempt:"
	cooldownKey         = "cooldown"
	lastDayKey          = "pass:last_day"
)

// Store implements storyline.Store on an embedded BadgerDB.
//
// # Thread Safety
//
// Safe for concurrent use. Each method runs in its own transaction;
// mutator closures execute inside a read-write transaction, so the
// read-modify-write they express is atomic per record.
type Store struct {
	db *badger.DB

	updateSeq  atomic.Uint64
	attemptSeq atomic.Uint64
}

var _ storyline.Store = (*Store)(nil)

// New wraps an opened database and recovers the beat and attempt insertion
// sequences from the highest existing keys.
func New(db *badger.DB) (*Store, error) {
	if db == nil {
		return nil, errors.New("db must not be nil")
	}

	s := &Store{db: db}
	err := db.WithReadTxn(context.Background(), func(txn *dgbadger.Txn) error {
		updateSeq, err := lastSequence(txn, updateKeyPrefix)
		if err != nil {
			return fmt.Errorf("recover update sequence: %w", err)
		}
		attemptSeq, err := lastSequence(txn, attemptKeyPrefix)
		if err != nil {
			return fmt.Errorf("recover attempt sequence: %w", err)
		}
		s.updateSeq.Store(updateSeq)
		s.attemptSeq.Store(attemptSeq)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

// lastSequence reads the sequence number of the highest key under prefix,
// or 0 when the prefix is empty.
func lastSequence(txn *dgbadger.Txn, prefix string) (uint64, error) {
	opts := dgbadger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Reverse = true

	it := txn.NewIterator(opts)
	defer it.Close()

	seek := append([]byte(prefix), 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF)
	it.Seek(seek)
	if !it.ValidForPrefix([]byte(prefix)) {
		return 0, nil
	}

	key := it.Item().Key()
	var seq uint64
	if _, err := fmt.Sscanf(string(key[len(prefix):]), "%016d", &seq); err != nil {
		return 0, fmt.Errorf("malformed key %q: %w", key, err)
	}
	return seq, nil
}

func storyKey(id string) []byte {
	return []byte(storyKeyPrefix + id)
}

func updateKey(seq uint64) []byte {
	return []byte(fmt.Sprintf("%s%016d", updateKeyPrefix, seq))
}

func suggestionKey(id string) []byte {
	return []byte(suggestionKeyPrefix + id)
}

func attemptKey(seq uint64) []byte {
	return []byte(fmt.Sprintf("%s%016d", attemptKeyPrefix, seq))
}

// getJSON reads and decodes one key into out. Missing keys map to
// storyline.ErrNotFound.
func getJSON(txn *dgbadger.Txn, key []byte, out any) error {
	item, err := txn.Get(key)
	if errors.Is(err, dgbadger.ErrKeyNotFound) {
		return storyline.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("get %s: %w", key, err)
	}
	return item.Value(func(val []byte) error {
		if err := json.Unmarshal(val, out); err != nil {
			return fmt.Errorf("decode %s: %w", key, err)
		}
		return nil
	})
}

// setJSON encodes and writes one key.
func setJSON(txn *dgbadger.Txn, key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := txn.Set(key, data); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// scanPrefix decodes every record under prefix in key order and hands it
// to visit. Returning false from visit stops the scan.
func scanPrefix[T any](txn *dgbadger.Txn, prefix string, reverse bool, visit func(rec *T) bool) error {
	opts := dgbadger.DefaultIteratorOptions
	opts.PrefetchValues = true
	opts.Reverse = reverse

	it := txn.NewIterator(opts)
	defer it.Close()

	p := []byte(prefix)
	seek := p
	if reverse {
		seek = append([]byte(prefix), 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF)
	}

	for it.Seek(seek); it.ValidForPrefix(p); it.Next() {
		item := it.Item()
		var rec T
		err := item.Value(func(val []byte) error {
			if err := json.Unmarshal(val, &rec); err != nil {
				return fmt.Errorf("decode %s: %w", item.Key(), err)
			}
			return nil
		})
		if err != nil {
			return err
		}
		if !visit(&rec) {
			return nil
		}
	}
	return nil
}

// =============================================================================
// Storylines
// =============================================================================

func (s *Store) InsertStoryline(ctx context.Context, sl *datatypes.Storyline) error {
	if sl == nil || sl.ID == "" {
		return errors.New("storyline must have an id")
	}
	return s.db.WithTxn(ctx, func(txn *dgbadger.Txn) error {
		key := storyKey(sl.ID)
		_, err := txn.Get(key)
		if err == nil {
			return fmt.Errorf("storyline %s already exists", sl.ID)
		}
		if !errors.Is(err, dgbadger.ErrKeyNotFound) {
			return fmt.Errorf("check %s: %w", key, err)
		}
		return setJSON(txn, key, sl)
	})
}

func (s *Store) GetStoryline(ctx context.Context, id string) (*datatypes.Storyline, error) {
	var out datatypes.Storyline
	err := s.db.WithReadTxn(ctx, func(txn *dgbadger.Txn) error {
		return getJSON(txn, storyKey(id), &out)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Store) MutateStoryline(ctx context.Context, id string, mutate func(*datatypes.Storyline) error) (*datatypes.Storyline, error) {
	var out datatypes.Storyline
	err := s.db.WithTxn(ctx, func(txn *dgbadger.Txn) error {
		key := storyKey(id)
		if err := getJSON(txn, key, &out); err != nil {
			return err
		}
		if err := mutate(&out); err != nil {
			return err
		}
		return setJSON(txn, key, &out)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Store) ListStorylines(ctx context.Context, filter storyline.StorylineFilter) ([]*datatypes.Storyline, error) {
	var out []*datatypes.Storyline
	err := s.db.WithReadTxn(ctx, func(txn *dgbadger.Txn) error {
		return scanPrefix(txn, storyKeyPrefix, false, func(sl *datatypes.Storyline) bool {
			if filter.Category != "" && sl.Category != filter.Category {
				return true
			}
			if filter.ActiveOnly && !sl.Active() {
				return true
			}
			if filter.ResolvedOnly && sl.Active() {
				return true
			}
			if !filter.CreatedAfter.IsZero() && !sl.CreatedAt.After(filter.CreatedAfter) {
				return true
			}
			out = append(out, sl)
			return true
		})
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *Store) DeleteStoryline(ctx context.Context, id string) error {
	return s.db.WithTxn(ctx, func(txn *dgbadger.Txn) error {
		key := storyKey(id)
		if _, err := txn.Get(key); err != nil {
			if errors.Is(err, dgbadger.ErrKeyNotFound) {
				return storyline.ErrNotFound
			}
			return fmt.Errorf("get %s: %w", key, err)
		}
		if err := txn.Delete(key); err != nil {
			return fmt.Errorf("delete %s: %w", key, err)
		}

		// Collect owned beat keys first; deleting while iterating is
		// undefined on a live iterator.
		var owned [][]byte
		err := scanKeyed[datatypes.StorylineUpdate](txn, updateKeyPrefix, func(k []byte, u *datatypes.StorylineUpdate) bool {
			if u.StorylineID == id {
				owned = append(owned, k)
			}
			return true
		})
		if err != nil {
			return err
		}
		for _, k := range owned {
			if err := txn.Delete(k); err != nil {
				return fmt.Errorf("delete %s: %w", k, err)
			}
		}
		return nil
	})
}

// scanKeyed is scanPrefix with the record's key copied out alongside it.
func scanKeyed[T any](txn *dgbadger.Txn, prefix string, visit func(key []byte, rec *T) bool) error {
	opts := dgbadger.DefaultIteratorOptions
	opts.PrefetchValues = true

	it := txn.NewIterator(opts)
	defer it.Close()

	p := []byte(prefix)
	for it.Seek(p); it.ValidForPrefix(p); it.Next() {
		item := it.Item()
		var rec T
		err := item.Value(func(val []byte) error {
			if err := json.Unmarshal(val, &rec); err != nil {
				return fmt.Errorf("decode %s: %w", item.Key(), err)
			}
			return nil
		})
		if err != nil {
			return err
		}
		if !visit(item.KeyCopy(nil), &rec) {
			return nil
		}
	}
	return nil
}

// =============================================================================
// Narrative Beats
// =============================================================================

func (s *Store) InsertUpdate(ctx context.Context, u *datatypes.StorylineUpdate) error {
	if u == nil || u.ID == "" {
		return errors.New("update must have an id")
	}
	seq := s.updateSeq.Add(1)
	return s.db.WithTxn(ctx, func(txn *dgbadger.Txn) error {
		return setJSON(txn, updateKey(seq), u)
	})
}

func (s *Store) ListUpdates(ctx context.Context, filter storyline.UpdateFilter) ([]*datatypes.StorylineUpdate, error) {
	var out []*datatypes.StorylineUpdate
	err := s.db.WithReadTxn(ctx, func(txn *dgbadger.Txn) error {
		return scanPrefix(txn, updateKeyPrefix, false, func(u *datatypes.StorylineUpdate) bool {
			if filter.StorylineID != "" && u.StorylineID != filter.StorylineID {
				return true
			}
			if filter.UnmentionedOnly && u.Mentioned {
				return true
			}
			if !filter.CreatedAfter.IsZero() && !u.CreatedAt.After(filter.CreatedAfter) {
				return true
			}
			out = append(out, u)
			return true
		})
	})
	if err != nil {
		return nil, err
	}

	// Key order is insertion order, so the stable sort keeps beats with
	// equal timestamps in the order they were written.
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *Store) MarkUpdateMentioned(ctx context.Context, storylineID, updateID string) error {
	return s.db.WithTxn(ctx, func(txn *dgbadger.Txn) error {
		var foundKey []byte
		var found datatypes.StorylineUpdate
		err := scanKeyed[datatypes.StorylineUpdate](txn, updateKeyPrefix, func(k []byte, u *datatypes.StorylineUpdate) bool {
			if u.StorylineID == storylineID && u.ID == updateID {
				foundKey = k
				found = *u
				return false
			}
			return true
		})
		if err != nil {
			return err
		}
		if foundKey == nil {
			return storyline.ErrNotFound
		}
		found.Mentioned = true
		return setJSON(txn, foundKey, &found)
	})
}

// =============================================================================
// Suggestions
// =============================================================================

func (s *Store) InsertSuggestion(ctx context.Context, sug *datatypes.PendingSuggestion) error {
	if sug == nil || sug.ID == "" {
		return errors.New("suggestion must have an id")
	}
	return s.db.WithTxn(ctx, func(txn *dgbadger.Txn) error {
		return setJSON(txn, suggestionKey(sug.ID), sug)
	})
}

func (s *Store) MutateSuggestion(ctx context.Context, id string, mutate func(*datatypes.PendingSuggestion) error) (*datatypes.PendingSuggestion, error) {
	var out datatypes.PendingSuggestion
	err := s.db.WithTxn(ctx, func(txn *dgbadger.Txn) error {
		key := suggestionKey(id)
		if err := getJSON(txn, key, &out); err != nil {
			return err
		}
		if err := mutate(&out); err != nil {
			return err
		}
		return setJSON(txn, key, &out)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Store) LatestPendingSuggestion(ctx context.Context, now time.Time) (*datatypes.PendingSuggestion, error) {
	var latest *datatypes.PendingSuggestion
	err := s.db.WithReadTxn(ctx, func(txn *dgbadger.Txn) error {
		return scanPrefix(txn, suggestionKeyPrefix, false, func(p *datatypes.PendingSuggestion) bool {
			if !p.Pending(now) {
				return true
			}
			if latest == nil || !p.CreatedAt.Before(latest.CreatedAt) {
				latest = p
			}
			return true
		})
	})
	if err != nil {
		return nil, err
	}
	if latest == nil {
		return nil, storyline.ErrNotFound
	}
	return latest, nil
}

// =============================================================================
// Attempt Audit Rows
// =============================================================================

func (s *Store) AppendAttempt(ctx context.Context, a *datatypes.CreationAttempt) error {
	if a == nil {
		return errors.New("attempt must not be nil")
	}
	seq := s.attemptSeq.Add(1)
	return s.db.WithTxn(ctx, func(txn *dgbadger.Txn) error {
		return setJSON(txn, attemptKey(seq), a)
	})
}

func (s *Store) ListAttempts(ctx context.Context, limit int) ([]*datatypes.CreationAttempt, error) {
	var out []*datatypes.CreationAttempt
	err := s.db.WithReadTxn(ctx, func(txn *dgbadger.Txn) error {
		return scanPrefix(txn, attemptKeyPrefix, true, func(a *datatypes.CreationAttempt) bool {
			out = append(out, a)
			return limit <= 0 || len(out) < limit
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// =============================================================================
// Cooldown and Day Marker
// =============================================================================

func (s *Store) Cooldown(ctx context.Context) (datatypes.CooldownState, error) {
	var out datatypes.CooldownState
	err := s.db.WithReadTxn(ctx, func(txn *dgbadger.Txn) error {
		err := getJSON(txn, []byte(cooldownKey), &out)
		if errors.Is(err, storyline.ErrNotFound) {
			return nil
		}
		return err
	})
	if err != nil {
		return datatypes.CooldownState{}, err
	}
	return out, nil
}

func (s *Store) SetCooldown(ctx context.Context, cs datatypes.CooldownState) error {
	return s.db.WithTxn(ctx, func(txn *dgbadger.Txn) error {
		return setJSON(txn, []byte(cooldownKey), cs)
	})
}

func (s *Store) LastProcessedDay(ctx context.Context) (time.Time, bool, error) {
	var day time.Time
	found := true
	err := s.db.WithReadTxn(ctx, func(txn *dgbadger.Txn) error {
		err := getJSON(txn, []byte(lastDayKey), &day)
		if errors.Is(err, storyline.ErrNotFound) {
			found = false
			return nil
		}
		return err
	})
	if err != nil {
		return time.Time{}, false, err
	}
	if !found {
		return time.Time{}, false, nil
	}
	return day, true, nil
}

func (s *Store) SetLastProcessedDay(ctx context.Context, day time.Time) error {
	return s.db.WithTxn(ctx, func(txn *dgbadger.Txn) error {
		return setJSON(txn, []byte(lastDayKey), day)
	})
}
