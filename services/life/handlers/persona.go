// Copyright (C) 2026 Solenne AI (dev@solenne.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/solenne-ai/solenne/services/life/facts"
	"github.com/solenne-ai/solenne/services/life/persona"
)

// MoodResponse is the wire form of the persona mood scalar.
type MoodResponse struct {
	Value     float64    `json:"value"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// GetMood returns the current persona mood.
func GetMood(mood *persona.MoodStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		value, updatedAt, err := mood.Current(c.Request.Context())
		if err != nil {
			slog.Error("failed to read mood", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read mood"})
			return
		}

		resp := MoodResponse{Value: value}
		if !updatedAt.IsZero() {
			resp.UpdatedAt = &updatedAt
		}
		c.JSON(http.StatusOK, resp)
	}
}

// ListFacts returns stored character facts, optionally filtered by
// category, newest first.
func ListFacts(store *facts.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := store.ListFacts(c.Request.Context(), c.Query("category"))
		if err != nil {
			slog.Error("failed to list facts", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list facts"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"facts": list, "count": len(list)})
	}
}
