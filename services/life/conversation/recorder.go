// Copyright (C) 2026 Solenne AI (dev@solenne.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package conversation records when the user last talked to the persona
// and keeps a bounded rolling window of short exchange summaries. The
// engine reads both: the timestamp drives absence detection, the
// summaries season suggestion prompts.
package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	dgbadger "github.com/dgraph-io/badger/v4"

	"github.com/solenne-ai/solenne/services/life/storage/badger"
	"github.com/solenne-ai/solenne/services/life/storyline"
)

const (
	lastInteractionKey = "conv:last"
	summaryKeyPrefix   = "conv:summary:"

	// defaultMaxSummaries bounds the rolling window.
	defaultMaxSummaries = 20

	// defaultRecentWindow is how many of the newest summaries feed
	// RecentSummary.
	defaultRecentWindow = 5

	// maxSummaryBytes truncates a single summary entry.
	maxSummaryBytes = 512
)

// summaryRecord is one stored exchange summary.
type summaryRecord struct {
	At   time.Time `json:"at"`
	Text string    `json:"text"`
}

// lastRecord is the single most-recent-interaction marker.
type lastRecord struct {
	At time.Time `json:"at"`
}

// Recorder persists interaction state in the shared embedded BadgerDB
// under the "conv:" key space.
//
// # Thread Safety
//
// Safe for concurrent use; each method runs in its own transaction.
type Recorder struct {
	db *badger.DB

	maxSummaries int
	recentWindow int
	summarySeq   atomic.Uint64
	now          func() time.Time
}

var _ storyline.ConversationHistory = (*Recorder)(nil)

// New wraps the shared database handle and recovers the summary
// insertion sequence from the highest existing key.
func New(db *badger.DB) (*Recorder, error) {
	if db == nil {
		return nil, errors.New("db must not be nil")
	}

	r := &Recorder{
		db:           db,
		maxSummaries: defaultMaxSummaries,
		recentWindow: defaultRecentWindow,
		now:          time.Now,
	}

	err := db.WithReadTxn(context.Background(), func(txn *dgbadger.Txn) error {
		opts := dgbadger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Reverse = true

		it := txn.NewIterator(opts)
		defer it.Close()

		seek := append([]byte(summaryKeyPrefix), 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF)
		it.Seek(seek)
		if !it.ValidForPrefix([]byte(summaryKeyPrefix)) {
			return nil
		}

		key := it.Item().Key()
		var seq uint64
		if _, err := fmt.Sscanf(string(key[len(summaryKeyPrefix):]), "%016d", &seq); err != nil {
			return fmt.Errorf("malformed key %q: %w", key, err)
		}
		r.summarySeq.Store(seq)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("recover summary sequence: %w", err)
	}
	return r, nil
}

func summaryKey(seq uint64) []byte {
	return []byte(fmt.Sprintf("%s%016d", summaryKeyPrefix, seq))
}

// RecordInteraction marks now as the most recent interaction and, when
// summary is non-empty, appends it to the rolling window. Entries past
// the window bound are pruned oldest-first.
func (r *Recorder) RecordInteraction(ctx context.Context, summary string) error {
	now := r.now().UTC()
	summary = strings.TrimSpace(summary)
	if len(summary) > maxSummaryBytes {
		summary = summary[:maxSummaryBytes]
	}

	return r.db.WithTxn(ctx, func(txn *dgbadger.Txn) error {
		lastData, err := json.Marshal(lastRecord{At: now})
		if err != nil {
			return fmt.Errorf("encode last interaction: %w", err)
		}
		if err := txn.Set([]byte(lastInteractionKey), lastData); err != nil {
			return fmt.Errorf("set last interaction: %w", err)
		}

		if summary == "" {
			return nil
		}

		seq := r.summarySeq.Add(1)
		data, err := json.Marshal(summaryRecord{At: now, Text: summary})
		if err != nil {
			return fmt.Errorf("encode summary: %w", err)
		}
		if err := txn.Set(summaryKey(seq), data); err != nil {
			return fmt.Errorf("set summary: %w", err)
		}

		return r.pruneLocked(txn)
	})
}

// pruneLocked deletes the oldest summaries beyond the window bound.
// Runs inside the caller's read-write transaction.
func (r *Recorder) pruneLocked(txn *dgbadger.Txn) error {
	opts := dgbadger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Prefix = []byte(summaryKeyPrefix)

	it := txn.NewIterator(opts)
	defer it.Close()

	var keys [][]byte
	for it.Rewind(); it.Valid(); it.Next() {
		keys = append(keys, it.Item().KeyCopy(nil))
	}

	excess := len(keys) - r.maxSummaries
	for i := 0; i < excess; i++ {
		if err := txn.Delete(keys[i]); err != nil {
			return fmt.Errorf("prune summary %s: %w", keys[i], err)
		}
	}
	return nil
}

// LastInteraction returns the most recent interaction instant. The bool
// is false when no interaction has ever been recorded.
func (r *Recorder) LastInteraction(ctx context.Context) (time.Time, bool, error) {
	var rec lastRecord
	err := r.db.WithReadTxn(ctx, func(txn *dgbadger.Txn) error {
		item, err := txn.Get([]byte(lastInteractionKey))
		if errors.Is(err, dgbadger.ErrKeyNotFound) {
			return storyline.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get last interaction: %w", err)
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})
	if errors.Is(err, storyline.ErrNotFound) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	return rec.At, true, nil
}

// RecentSummary returns the newest summaries as bullet lines, oldest of
// the window first. Empty string when nothing is recorded.
func (r *Recorder) RecentSummary(ctx context.Context) (string, error) {
	var records []summaryRecord
	err := r.db.WithReadTxn(ctx, func(txn *dgbadger.Txn) error {
		opts := dgbadger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = []byte(summaryKeyPrefix)

		it := txn.NewIterator(opts)
		defer it.Close()

		seek := append([]byte(summaryKeyPrefix), 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF)
		for it.Seek(seek); it.ValidForPrefix([]byte(summaryKeyPrefix)); it.Next() {
			if len(records) >= r.recentWindow {
				break
			}
			var rec summaryRecord
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			})
			if err != nil {
				return fmt.Errorf("decode summary %s: %w", it.Item().Key(), err)
			}
			records = append(records, rec)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	if len(records) == 0 {
		return "", nil
	}

	// Reverse scan returned newest first; present oldest first.
	var b strings.Builder
	for i := len(records) - 1; i >= 0; i-- {
		fmt.Fprintf(&b, "- %s\n", records[i].Text)
	}
	return strings.TrimRight(b.String(), "\n"), nil
}
