// Copyright (C) 2026 Solenne AI (dev@solenne.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package telemetry

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

func initTestMeter(t *testing.T) metric.Meter {
	t.Helper()
	cfg := DefaultConfig()
	cfg.TraceExporter = "none"
	cfg.MetricExporter = "prometheus"

	shutdown, err := Init(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	t.Cleanup(func() { shutdown(context.Background()) })

	return otel.Meter("test_metrics")
}

func TestNewMetrics(t *testing.T) {
	metrics, err := NewMetrics(initTestMeter(t))
	if err != nil {
		t.Fatalf("NewMetrics() error = %v", err)
	}

	if metrics.CreationsTotal == nil {
		t.Error("CreationsTotal is nil")
	}
	if metrics.RejectionsTotal == nil {
		t.Error("RejectionsTotal is nil")
	}
	if metrics.PassDuration == nil {
		t.Error("PassDuration is nil")
	}
	if metrics.ClosureStepsTotal == nil {
		t.Error("ClosureStepsTotal is nil")
	}
	if metrics.SuggestionsTotal == nil {
		t.Error("SuggestionsTotal is nil")
	}
	if metrics.GenerationDuration == nil {
		t.Error("GenerationDuration is nil")
	}
	if metrics.GenerationFailuresTotal == nil {
		t.Error("GenerationFailuresTotal is nil")
	}
	if metrics.EventsPublishedTotal == nil {
		t.Error("EventsPublishedTotal is nil")
	}
	if metrics.WebsocketClients == nil {
		t.Error("WebsocketClients is nil")
	}
	if metrics.HTTPRequestsTotal == nil {
		t.Error("HTTPRequestsTotal is nil")
	}
	if metrics.HTTPRequestDuration == nil {
		t.Error("HTTPRequestDuration is nil")
	}
}

func TestMetrics_RecordStorylineMetrics(t *testing.T) {
	metrics, err := NewMetrics(initTestMeter(t))
	if err != nil {
		t.Fatalf("NewMetrics() error = %v", err)
	}

	ctx := context.Background()
	attrs := metric.WithAttributes(
		attribute.String("source", "autonomous"),
	)

	// Should not panic
	metrics.CreationsTotal.Add(ctx, 1, attrs)
	metrics.RejectionsTotal.Add(ctx, 1, attrs)
	metrics.PassDuration.Record(ctx, 0.42)
	metrics.ClosureStepsTotal.Add(ctx, 4)
	metrics.SuggestionsTotal.Add(ctx, 1)
	metrics.GenerationDuration.Record(ctx, 1.7)
	metrics.GenerationFailuresTotal.Add(ctx, 1)
}

func TestMetrics_RecordHTTPMetrics(t *testing.T) {
	metrics, err := NewMetrics(initTestMeter(t))
	if err != nil {
		t.Fatalf("NewMetrics() error = %v", err)
	}

	ctx := context.Background()
	attrs := metric.WithAttributes(
		attribute.String("method", "GET"),
		attribute.String("route", "/v1/context"),
		attribute.Int("status", 200),
	)

	metrics.HTTPRequestsTotal.Add(ctx, 1, attrs)
	metrics.HTTPRequestDuration.Record(ctx, 0.005, attrs)
	metrics.WebsocketClients.Add(ctx, 1)
	metrics.WebsocketClients.Add(ctx, -1)
}

func TestMetrics_RegisterMoodGauge(t *testing.T) {
	meter := initTestMeter(t)
	metrics, err := NewMetrics(meter)
	if err != nil {
		t.Fatalf("NewMetrics() error = %v", err)
	}

	reg, err := metrics.RegisterMoodGauge(meter, func() float64 { return 0.25 })
	if err != nil {
		t.Fatalf("RegisterMoodGauge() error = %v", err)
	}
	if reg == nil {
		t.Fatal("registration is nil")
	}
	if err := reg.Unregister(); err != nil {
		t.Errorf("Unregister() error = %v", err)
	}
}
