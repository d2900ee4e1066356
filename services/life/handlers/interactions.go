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

	"github.com/gin-gonic/gin"

	"github.com/solenne-ai/solenne/services/life/conversation"
)

// InteractionRequest notes one chat exchange. The summary is optional;
// when present it joins the rolling context used for suggestions.
type InteractionRequest struct {
	Summary string `json:"summary"`
}

// RecordInteraction timestamps a chat exchange, resetting the absence
// clock the idle scheduler watches.
func RecordInteraction(recorder *conversation.Recorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req InteractionRequest
		if c.Request.ContentLength > 0 {
			if err := c.BindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
				return
			}
		}

		if err := recorder.RecordInteraction(c.Request.Context(), req.Summary); err != nil {
			slog.Error("failed to record interaction", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to record interaction"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "recorded"})
	}
}
