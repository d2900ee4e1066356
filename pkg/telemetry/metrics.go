// Copyright (C) 2026 Solenne AI (dev@solenne.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/metric"
)

// Metrics contains pre-defined instruments for the Solenne life service.
//
// Description:
//
//	Provides counters and histograms for the storyline lifecycle (creations,
//	phase passes, closures, suggestions), LLM generation calls, the event
//	bus, and the HTTP surface. All instrument names use the "life_" prefix.
//
// Thread Safety: Safe for concurrent use after creation.
type Metrics struct {
	// --- Storyline Metrics ---

	// CreationsTotal counts accepted storyline creations by source.
	CreationsTotal metric.Int64Counter

	// RejectionsTotal counts rejected creation attempts by reason and source.
	RejectionsTotal metric.Int64Counter

	// PassDuration records lifecycle pass duration in seconds.
	PassDuration metric.Float64Histogram

	// ClosureStepsTotal counts generated closure updates by type.
	ClosureStepsTotal metric.Int64Counter

	// SuggestionsTotal counts idle suggestions produced by the scheduler.
	SuggestionsTotal metric.Int64Counter

	// --- Generation Metrics ---

	// GenerationDuration records LLM generation duration in seconds.
	GenerationDuration metric.Float64Histogram

	// GenerationFailuresTotal counts failed LLM generation calls.
	GenerationFailuresTotal metric.Int64Counter

	// --- Event Metrics ---

	// EventsPublishedTotal counts life events published on the bus by kind.
	EventsPublishedTotal metric.Int64Counter

	// WebsocketClients tracks currently connected event stream clients.
	WebsocketClients metric.Int64UpDownCounter

	// --- HTTP Metrics ---

	// HTTPRequestsTotal counts HTTP requests by method, route, and status.
	HTTPRequestsTotal metric.Int64Counter

	// HTTPRequestDuration records HTTP request duration in seconds.
	HTTPRequestDuration metric.Float64Histogram

	// MoodValue reports the persona's current mood scalar. Registered
	// separately via RegisterMoodGauge because it needs a callback.
	MoodValue metric.Float64ObservableGauge
}

// NewMetrics creates a new Metrics instance with all instruments registered.
//
// Inputs:
//
//	meter - The OTel meter to use for instrument registration.
//
// Outputs:
//
//	*Metrics - The metrics instance with all counters and histograms initialized.
//	error - Non-nil if any registration fails.
//
// Thread Safety: Safe for concurrent use after creation.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	// --- Storyline Metrics ---
	m.CreationsTotal, err = meter.Int64Counter(
		"life_storyline_creations_total",
		metric.WithDescription("Accepted storyline creations"),
		metric.WithUnit("{storyline}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create storyline_creations_total: %w", err)
	}

	m.RejectionsTotal, err = meter.Int64Counter(
		"life_storyline_rejections_total",
		metric.WithDescription("Rejected storyline creation attempts"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create storyline_rejections_total: %w", err)
	}

	m.PassDuration, err = meter.Float64Histogram(
		"life_pass_duration_seconds",
		metric.WithDescription("Lifecycle pass duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60),
	)
	if err != nil {
		return nil, fmt.Errorf("create pass_duration: %w", err)
	}

	m.ClosureStepsTotal, err = meter.Int64Counter(
		"life_closure_steps_total",
		metric.WithDescription("Generated closure sequence updates"),
		metric.WithUnit("{update}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create closure_steps_total: %w", err)
	}

	m.SuggestionsTotal, err = meter.Int64Counter(
		"life_suggestions_total",
		metric.WithDescription("Idle suggestions produced"),
		metric.WithUnit("{suggestion}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create suggestions_total: %w", err)
	}

	// --- Generation Metrics ---
	m.GenerationDuration, err = meter.Float64Histogram(
		"life_generation_duration_seconds",
		metric.WithDescription("LLM generation duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120),
	)
	if err != nil {
		return nil, fmt.Errorf("create generation_duration: %w", err)
	}

	m.GenerationFailuresTotal, err = meter.Int64Counter(
		"life_generation_failures_total",
		metric.WithDescription("Failed LLM generation calls"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create generation_failures_total: %w", err)
	}

	// --- Event Metrics ---
	m.EventsPublishedTotal, err = meter.Int64Counter(
		"life_events_published_total",
		metric.WithDescription("Life events published on the bus"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create events_published_total: %w", err)
	}

	m.WebsocketClients, err = meter.Int64UpDownCounter(
		"life_websocket_clients",
		metric.WithDescription("Currently connected event stream clients"),
		metric.WithUnit("{client}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create websocket_clients: %w", err)
	}

	// --- HTTP Metrics ---
	m.HTTPRequestsTotal, err = meter.Int64Counter(
		"life_http_requests_total",
		metric.WithDescription("Total HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create http_requests_total: %w", err)
	}

	m.HTTPRequestDuration, err = meter.Float64Histogram(
		"life_http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5),
	)
	if err != nil {
		return nil, fmt.Errorf("create http_request_duration: %w", err)
	}

	return m, nil
}

// RegisterMoodGauge registers a callback for the persona mood gauge.
//
// Description:
//
//	Sets up an observable gauge that reports the persona's current mood
//	scalar in [-1, 1]. The callback is invoked each time metrics are
//	scraped.
//
// Inputs:
//
//	meter - The OTel meter to use for registration.
//	moodFunc - A function that returns the current mood value.
//
// Outputs:
//
//	metric.Registration - Registration handle for cleanup.
//	error - Non-nil if registration fails.
func (m *Metrics) RegisterMoodGauge(meter metric.Meter, moodFunc func() float64) (metric.Registration, error) {
	var err error
	m.MoodValue, err = meter.Float64ObservableGauge(
		"life_mood_value",
		metric.WithDescription("Persona mood scalar in [-1, 1]"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("create mood_value: %w", err)
	}

	return meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		o.ObserveFloat64(m.MoodValue, moodFunc())
		return nil
	}, m.MoodValue)
}
