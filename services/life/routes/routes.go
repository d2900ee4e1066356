// Copyright (C) 2026 Solenne AI (dev@solenne.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package routes registers the life service's HTTP surface.
package routes

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/solenne-ai/solenne/pkg/telemetry"
	"github.com/solenne-ai/solenne/services/life/conversation"
	"github.com/solenne-ai/solenne/services/life/events"
	"github.com/solenne-ai/solenne/services/life/facts"
	"github.com/solenne-ai/solenne/services/life/handlers"
	"github.com/solenne-ai/solenne/services/life/persona"
	"github.com/solenne-ai/solenne/services/life/storyline"
)

// Deps carries the collaborators the route handlers close over.
type Deps struct {
	Engine   *storyline.Engine
	Mood     *persona.MoodStore
	Facts    *facts.Store
	Recorder *conversation.Recorder
	Bus      *events.Bus

	// Metrics enables the request middleware when non-nil.
	Metrics *telemetry.Metrics

	// EnableMetricsEndpoint mounts the Prometheus handler at /metrics.
	EnableMetricsEndpoint bool
}

// SetupRoutes registers every route of the life service API.
func SetupRoutes(router *gin.Engine, deps Deps) {
	if deps.Metrics != nil {
		router.Use(requestMetrics(deps.Metrics))
	}

	router.GET("/health", handlers.HealthCheck)
	if deps.EnableMetricsEndpoint {
		if h := telemetry.MetricsHandler(); h != nil {
			router.GET("/metrics", gin.WrapH(h))
		}
	}

	v1 := router.Group("/v1")
	{
		v1.GET("/context", handlers.GetContext(deps.Engine))
		v1.GET("/events", handlers.StreamEvents(deps.Bus, deps.Metrics))
		v1.POST("/interactions", handlers.RecordInteraction(deps.Recorder))
		v1.GET("/mood", handlers.GetMood(deps.Mood))
		v1.GET("/facts", handlers.ListFacts(deps.Facts))

		storylines := v1.Group("/storylines")
		{
			storylines.GET("", handlers.ListStorylines(deps.Engine))
			storylines.GET("/attempts", handlers.ListAttempts(deps.Engine))
			storylines.GET("/:id", handlers.GetStoryline(deps.Engine))
			storylines.POST("/propose", handlers.ProposeStoryline(deps.Engine))
			storylines.POST("/process", handlers.ProcessPass(deps.Engine))
			storylines.POST("/:id/resolve", handlers.ResolveStoryline(deps.Engine))
			storylines.POST("/:id/updates/:updateID/mentioned", handlers.MarkUpdateMentioned(deps.Engine))
			storylines.DELETE("/:id", handlers.DeleteStoryline(deps.Engine))
		}

		suggestions := v1.Group("/suggestions")
		{
			suggestions.GET("/pending", handlers.GetPendingSuggestion(deps.Engine))
			suggestions.POST("/:id/surfaced", handlers.MarkSuggestionSurfaced(deps.Engine))
			suggestions.POST("/:id/outcome", handlers.UpdateSuggestionOutcome(deps.Engine))
		}

		callbacks := v1.Group("/callbacks")
		{
			callbacks.GET("/candidate", handlers.GetCallbackCandidate(deps.Engine))
			callbacks.POST("/:id/used", handlers.MarkCallbackUsed(deps.Engine))
		}
	}
}

// requestMetrics records one count and one duration sample per request,
// labeled by route template rather than raw path so cardinality stays flat.
func requestMetrics(m *telemetry.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		attrs := metric.WithAttributes(
			attribute.String("method", c.Request.Method),
			attribute.String("route", route),
			attribute.String("status", strconv.Itoa(c.Writer.Status())),
		)

		ctx := c.Request.Context()
		m.HTTPRequestsTotal.Add(ctx, 1, attrs)
		m.HTTPRequestDuration.Record(ctx, time.Since(start).Seconds(), attrs)
	}
}
