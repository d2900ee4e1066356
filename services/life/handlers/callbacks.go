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

	"github.com/solenne-ai/solenne/services/life/storyline"
)

// GetCallbackCandidate returns a long-resolved storyline worth bringing
// back up, or a 404 when nothing qualifies.
func GetCallbackCandidate(engine *storyline.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, err := engine.SelectCallbackCandidate(c.Request.Context())
		if err != nil {
			slog.Error("failed to select callback candidate", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to select callback candidate"})
			return
		}
		if s == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "no callback candidate"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"storyline": s})
	}
}

// MarkCallbackUsed records that the chat layer worked a callback into
// conversation, resetting the storyline's mention clock.
func MarkCallbackUsed(engine *storyline.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")

		err := engine.MarkCallbackUsed(c.Request.Context(), id)
		if errors.Is(err, storyline.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "storyline not found"})
			return
		}
		if err != nil {
			slog.Error("failed to mark callback used", "storyline_id", id, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to mark callback used"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "recorded", "storyline_id": id})
	}
}
