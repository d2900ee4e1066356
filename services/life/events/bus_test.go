// Copyright (C) 2026 Solenne AI (dev@solenne.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package events

import (
	"testing"
	"time"
)

func TestBus_PublishReachesSubscriber(t *testing.T) {
	bus := NewBus(Config{})
	defer bus.Close()

	ch, unsubscribe := bus.Subscribe()
	defer unsubscribe()

	bus.Publish("storyline_created", map[string]string{"storyline_id": "abc"})

	select {
	case evt := <-ch:
		if evt.Kind != "storyline_created" {
			t.Errorf("kind = %q, want storyline_created", evt.Kind)
		}
		if evt.Data["storyline_id"] != "abc" {
			t.Errorf("data = %v", evt.Data)
		}
		if evt.ID == "" {
			t.Error("event ID should be set")
		}
		if evt.Timestamp.IsZero() {
			t.Error("event timestamp should be set")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestBus_FansOutToAllSubscribers(t *testing.T) {
	bus := NewBus(Config{})
	defer bus.Close()

	ch1, unsub1 := bus.Subscribe()
	defer unsub1()
	ch2, unsub2 := bus.Subscribe()
	defer unsub2()

	bus.Publish("phase_changed", nil)

	for i, ch := range []<-chan Event{ch1, ch2} {
		select {
		case evt := <-ch:
			if evt.Kind != "phase_changed" {
				t.Errorf("subscriber %d: kind = %q", i, evt.Kind)
			}
		case <-time.After(time.Second):
			t.Fatalf("subscriber %d: timed out", i)
		}
	}
}

func TestBus_DropsWhenSubscriberFull(t *testing.T) {
	bus := NewBus(Config{SubscriberBuffer: 1})
	defer bus.Close()

	ch, unsubscribe := bus.Subscribe()
	defer unsubscribe()

	// Fill the buffer, then publish more. Publish must not block.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 5; i++ {
			bus.Publish("update_generated", nil)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a full subscriber")
	}

	// Exactly one event survived in the buffer.
	if got := len(ch); got != 1 {
		t.Errorf("buffered events = %d, want 1", got)
	}
}

func TestBus_UnsubscribeClosesChannel(t *testing.T) {
	bus := NewBus(Config{})
	defer bus.Close()

	ch, unsubscribe := bus.Subscribe()
	if bus.SubscriberCount() != 1 {
		t.Fatalf("SubscriberCount() = %d, want 1", bus.SubscriberCount())
	}

	unsubscribe()
	unsubscribe() // idempotent

	if bus.SubscriberCount() != 0 {
		t.Errorf("SubscriberCount() = %d, want 0", bus.SubscriberCount())
	}

	select {
	case _, open := <-ch:
		if open {
			t.Error("channel should be closed after unsubscribe")
		}
	case <-time.After(time.Second):
		t.Fatal("channel not closed")
	}
}

func TestBus_CloseStopsPublishing(t *testing.T) {
	bus := NewBus(Config{})
	ch, _ := bus.Subscribe()

	bus.Close()
	bus.Close() // idempotent

	// Channel closed by Close.
	if _, open := <-ch; open {
		t.Error("channel should be closed after bus Close")
	}

	// Publish after close is a no-op, not a panic.
	bus.Publish("storyline_resolved", nil)

	// Subscribe after close returns a closed channel.
	late, _ := bus.Subscribe()
	if _, open := <-late; open {
		t.Error("late subscription should yield a closed channel")
	}
}
