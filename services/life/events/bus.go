// Copyright (C) 2026 Solenne AI (dev@solenne.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package events carries life events from the storyline engine to
// in-process subscribers, primarily the websocket event stream.
package events

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/solenne-ai/solenne/pkg/telemetry"
	"github.com/solenne-ai/solenne/services/life/storyline"
)

// Event is a single life event fanned out to subscribers.
type Event struct {
	ID        string            `json:"id"`
	Kind      string            `json:"kind"`
	Timestamp time.Time         `json:"timestamp"`
	Data      map[string]string `json:"data,omitempty"`
}

// Config controls bus behavior. The zero value is usable.
type Config struct {
	// Logger receives drop warnings. Defaults to slog.Default().
	Logger *slog.Logger

	// Metrics records published event counts. Optional.
	Metrics *telemetry.Metrics

	// SubscriberBuffer is the channel depth for each subscriber.
	// Defaults to 16.
	SubscriberBuffer int
}

// Bus is an in-process publish/subscribe fan-out.
//
// Publish never blocks: a subscriber that cannot keep up has events
// dropped rather than stalling the engine.
//
// Thread Safety: Safe for concurrent use.
type Bus struct {
	mu     sync.RWMutex
	subs   map[uint64]chan Event
	nextID uint64
	closed bool

	logger  *slog.Logger
	metrics *telemetry.Metrics
	buffer  int
	now     func() time.Time
}

// NewBus creates an event bus.
func NewBus(cfg Config) *Bus {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	buffer := cfg.SubscriberBuffer
	if buffer <= 0 {
		buffer = 16
	}
	return &Bus{
		subs:    make(map[uint64]chan Event),
		logger:  logger,
		metrics: cfg.Metrics,
		buffer:  buffer,
		now:     time.Now,
	}
}

// Publish fans an event out to all current subscribers.
//
// Implements the engine's event sink. Slow subscribers lose events;
// the storyline store remains the source of truth, the bus is only a
// live notification channel.
func (b *Bus) Publish(kind string, data map[string]string) {
	evt := Event{
		ID:        uuid.NewString(),
		Kind:      kind,
		Timestamp: b.now().UTC(),
		Data:      data,
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}

	if b.metrics != nil {
		b.metrics.EventsPublishedTotal.Add(context.Background(), 1,
			metric.WithAttributes(attribute.String("kind", kind)))
	}

	for id, ch := range b.subs {
		select {
		case ch <- evt:
		default:
			b.logger.Warn("dropping event for slow subscriber",
				"subscriber", id, "kind", kind)
		}
	}
}

// Subscribe registers a new subscriber and returns its event channel
// plus an unsubscribe function. The channel is closed on unsubscribe
// and on bus Close.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, b.buffer)
	if b.closed {
		close(ch)
		return ch, func() {}
	}

	id := b.nextID
	b.nextID++
	b.subs[id] = ch

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if sub, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(sub)
			}
		})
	}
	return ch, unsubscribe
}

// SubscriberCount returns the number of active subscribers.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close shuts the bus down and closes all subscriber channels.
// Publish becomes a no-op afterwards.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}

var _ storyline.EventSink = (*Bus)(nil)
