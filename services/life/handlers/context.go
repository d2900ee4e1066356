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

	"github.com/solenne-ai/solenne/services/life/storyline"
)

// GetContext returns the prompt context block the chat layer injects
// before each reply: the salient storylines, their unsurfaced beats, and
// the rendered text section.
func GetContext(engine *storyline.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracer.Start(c.Request.Context(), "handlers.get_context")
		defer span.End()

		pc, err := engine.BuildContext(ctx)
		if err != nil {
			slog.Error("failed to build prompt context", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to build context"})
			return
		}
		c.JSON(http.StatusOK, pc)
	}
}
