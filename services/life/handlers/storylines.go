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
	"strconv"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/codes"

	"github.com/solenne-ai/solenne/services/life/datatypes"
	"github.com/solenne-ai/solenne/services/life/storyline"
)

// defaultAttemptLimit caps the attempts listing when no limit is given.
const defaultAttemptLimit = 20

// ProposeResponse is the wire form of a creation-gate result.
type ProposeResponse struct {
	Created                bool                    `json:"created"`
	Storyline              *datatypes.Storyline    `json:"storyline,omitempty"`
	Reason                 datatypes.FailureReason `json:"reason,omitempty"`
	CooldownHoursRemaining int                     `json:"cooldown_hours_remaining,omitempty"`
	DuplicateMatchTitle    string                  `json:"duplicate_match_title,omitempty"`
	BlockingStorylineID    string                  `json:"blocking_storyline_id,omitempty"`
	BlockingStorylineTitle string                  `json:"blocking_storyline_title,omitempty"`
}

// ResolveRequest carries the resolution parameters for one storyline.
// An empty OutcomeDescription asks the engine to compose one.
type ResolveRequest struct {
	Outcome            datatypes.Outcome `json:"outcome" binding:"required"`
	OutcomeDescription string            `json:"outcome_description"`
	ResolutionEmotion  string            `json:"resolution_emotion"`
}

// StorylineDetail is a storyline together with its beats, oldest first.
type StorylineDetail struct {
	Storyline *datatypes.Storyline         `json:"storyline"`
	Updates   []*datatypes.StorylineUpdate `json:"updates"`
}

// ListStorylines returns storylines filtered by the active and category
// query parameters.
func ListStorylines(engine *storyline.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		filter := storyline.StorylineFilter{}

		switch c.Query("active") {
		case "":
		case "true":
			filter.ActiveOnly = true
		case "false":
			filter.ResolvedOnly = true
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "active must be true or false"})
			return
		}

		if category := c.Query("category"); category != "" {
			cat := datatypes.Category(category)
			if !cat.Valid() {
				c.JSON(http.StatusBadRequest, gin.H{"error": "unknown category " + category})
				return
			}
			filter.Category = cat
		}

		if limit, ok := parseLimit(c); ok {
			filter.Limit = limit
		} else {
			return
		}

		storylines, err := engine.ListStorylines(c.Request.Context(), filter)
		if err != nil {
			slog.Error("failed to list storylines", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list storylines"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"storylines": storylines, "count": len(storylines)})
	}
}

// GetStoryline returns one storyline and its updates.
func GetStoryline(engine *storyline.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")

		s, err := engine.GetStoryline(c.Request.Context(), id)
		if errors.Is(err, storyline.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "storyline not found"})
			return
		}
		if err != nil {
			slog.Error("failed to load storyline", "storyline_id", id, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load storyline"})
			return
		}

		updates, err := engine.ListUpdates(c.Request.Context(), storyline.UpdateFilter{StorylineID: id})
		if err != nil {
			slog.Error("failed to load storyline updates", "storyline_id", id, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load storyline updates"})
			return
		}

		c.JSON(http.StatusOK, StorylineDetail{Storyline: s, Updates: updates})
	}
}

// ProposeStoryline runs a conversation-sourced proposal through the
// creation gate. Gate refusals are 200s with created=false; only
// malformed input is a 400.
func ProposeStoryline(engine *storyline.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracer.Start(c.Request.Context(), "handlers.propose_storyline")
		defer span.End()

		var input datatypes.StorylineInput
		if err := c.BindJSON(&input); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}

		result, err := engine.ProposeCreation(ctx, &input, datatypes.SourceConversation)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			slog.Warn("storyline proposal invalid", "title", input.Title, "error", err)
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		resp := ProposeResponse{
			Created:                result.Created,
			Storyline:              result.Storyline,
			Reason:                 result.Reason,
			CooldownHoursRemaining: result.CooldownHoursRemaining,
			DuplicateMatchTitle:    result.DuplicateMatchTitle,
			BlockingStorylineID:    result.BlockingStorylineID,
			BlockingStorylineTitle: result.BlockingStorylineTitle,
		}
		if result.Created {
			c.JSON(http.StatusCreated, resp)
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}

// ResolveStoryline concludes a storyline with an outcome. With a caller
// description the resolution runs as given; without one the engine
// composes the outcome line itself.
func ResolveStoryline(engine *storyline.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracer.Start(c.Request.Context(), "handlers.resolve_storyline")
		defer span.End()

		id := c.Param("id")
		var req ResolveRequest
		if err := c.BindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		if !req.Outcome.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown outcome " + string(req.Outcome)})
			return
		}

		current, err := engine.GetStoryline(ctx, id)
		if errors.Is(err, storyline.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "storyline not found"})
			return
		}
		if err != nil {
			slog.Error("failed to load storyline for resolution", "storyline_id", id, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load storyline"})
			return
		}
		if !current.Active() {
			c.JSON(http.StatusConflict, gin.H{
				"error":   "storyline already resolved",
				"outcome": current.Outcome,
			})
			return
		}

		var resolved *datatypes.Storyline
		if req.OutcomeDescription == "" {
			resolved, err = engine.InitiateClosure(ctx, id, req.Outcome)
		} else {
			resolved, err = engine.Resolve(ctx, id, req.Outcome, req.OutcomeDescription, req.ResolutionEmotion)
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			slog.Error("storyline resolution failed", "storyline_id", id, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "resolution failed"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"storyline": resolved})
	}
}

// MarkUpdateMentioned records that the chat layer surfaced a beat to the
// user, flipping its mentioned flag and refreshing the storyline's
// last-mentioned instant.
func MarkUpdateMentioned(engine *storyline.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		updateID := c.Param("updateID")

		err := engine.MarkUpdateMentioned(c.Request.Context(), id, updateID)
		if errors.Is(err, storyline.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "update not found"})
			return
		}
		if err != nil {
			slog.Error("failed to mark update mentioned",
				"storyline_id", id, "update_id", updateID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to mark update mentioned"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "mentioned"})
	}
}

// DeleteStoryline removes a storyline and all of its beats. Operator
// cleanup only; the normal lifecycle resolves storylines instead.
func DeleteStoryline(engine *storyline.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")

		if _, err := engine.GetStoryline(c.Request.Context(), id); errors.Is(err, storyline.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "storyline not found"})
			return
		} else if err != nil {
			slog.Error("failed to load storyline for deletion", "storyline_id", id, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load storyline"})
			return
		}

		if err := engine.DeleteStoryline(c.Request.Context(), id); err != nil {
			slog.Error("failed to delete storyline", "storyline_id", id, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete storyline"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "deleted"})
	}
}

// ProcessPass forces one phase-advancement pass outside the schedule.
func ProcessPass(engine *storyline.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		err := engine.ProcessPass(c.Request.Context())
		if errors.Is(err, storyline.ErrPassInProgress) {
			c.JSON(http.StatusConflict, gin.H{"error": "a pass is already running"})
			return
		}
		if err != nil {
			slog.Error("forced phase pass failed", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "pass failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "pass completed"})
	}
}

// ListAttempts returns recent creation-gate audit rows, newest first.
func ListAttempts(engine *storyline.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := defaultAttemptLimit
		if raw := c.Query("limit"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed < 1 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
				return
			}
			limit = parsed
		}

		attempts, err := engine.ListAttempts(c.Request.Context(), limit)
		if err != nil {
			slog.Error("failed to list creation attempts", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list attempts"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"attempts": attempts, "count": len(attempts)})
	}
}

// parseLimit reads the optional limit query parameter. The bool is false
// when the parameter was present but malformed, in which case a 400 has
// already been written.
func parseLimit(c *gin.Context) (int, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return 0, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
		return 0, false
	}
	return limit, true
}
