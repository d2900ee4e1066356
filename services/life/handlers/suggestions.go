// Copyright (C) 2026 Solenne AI (dev@solenne.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/solenne-ai/solenne/services/life/datatypes"
	"github.com/solenne-ai/solenne/services/life/storyline"
)

// SuggestionOutcomeRequest records what the user made of a surfaced
// suggestion. Created outcomes carry the resulting storyline id; declined
// ones carry a rejection reason.
type SuggestionOutcomeRequest struct {
	WasCreated           bool                     `json:"was_created"`
	ResultingStorylineID string                   `json:"resulting_storyline_id"`
	RejectedReason       datatypes.RejectedReason `json:"rejected_reason"`
}

// GetPendingSuggestion returns the suggestion waiting to be surfaced, or
// a 404 when none is pending.
func GetPendingSuggestion(engine *storyline.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		sug, err := engine.GetPendingSuggestion(c.Request.Context())
		if err != nil {
			slog.Error("failed to read pending suggestion", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read pending suggestion"})
			return
		}
		if sug == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "no pending suggestion"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"suggestion": sug})
	}
}

// MarkSuggestionSurfaced records that the chat layer showed a suggestion
// to the user.
func MarkSuggestionSurfaced(engine *storyline.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")

		sug, err := engine.MarkSurfaced(c.Request.Context(), id)
		if errors.Is(err, storyline.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "suggestion not found"})
			return
		}
		if err != nil {
			slog.Error("failed to mark suggestion surfaced", "suggestion_id", id, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to mark suggestion surfaced"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"suggestion": sug})
	}
}

// UpdateSuggestionOutcome records a surfaced suggestion's fate.
func UpdateSuggestionOutcome(engine *storyline.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")

		var req SuggestionOutcomeRequest
		if err := c.BindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}

		sug, err := engine.UpdateSuggestionOutcome(c.Request.Context(), id,
			req.WasCreated, req.ResultingStorylineID, req.RejectedReason)
		if errors.Is(err, storyline.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "suggestion not found"})
			return
		}
		if err != nil {
			slog.Warn("suggestion outcome rejected", "suggestion_id", id, "error", err)
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"suggestion": sug})
	}
}
