// Copyright (C) 2026 Solenne AI (dev@solenne.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package storyline

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/solenne-ai/solenne/services/life/datatypes"
)

// extractJSONObject pulls the first JSON object out of a model response.
// Handles markdown code fences and prose padding around the object.
func extractJSONObject(response string) (string, error) {
	response = strings.TrimSpace(response)
	response = strings.TrimPrefix(response, "```json")
	response = strings.TrimPrefix(response, "```")
	response = strings.TrimSuffix(response, "```")
	response = strings.TrimSpace(response)

	startIdx := strings.Index(response, "{")
	endIdx := strings.LastIndex(response, "}")
	if startIdx == -1 || endIdx == -1 || endIdx <= startIdx {
		return "", fmt.Errorf("no JSON object found in response: %s", truncate(response, 100))
	}

	return response[startIdx : endIdx+1], nil
}

// beatPayload is the JSON shape expected from beat and closure generations.
type beatPayload struct {
	Content       string `json:"content"`
	EmotionalTone string `json:"emotional_tone"`
}

// parseBeatPayload parses and validates a generated narrative beat.
//
// A malformed generation discards that single beat; it never cascades.
func parseBeatPayload(response string) (*beatPayload, error) {
	jsonStr, err := extractJSONObject(response)
	if err != nil {
		return nil, err
	}

	var payload beatPayload
	if err := json.Unmarshal([]byte(jsonStr), &payload); err != nil {
		return nil, fmt.Errorf("parse beat JSON: %w", err)
	}

	payload.Content = strings.TrimSpace(payload.Content)
	payload.EmotionalTone = strings.TrimSpace(payload.EmotionalTone)
	if payload.Content == "" {
		return nil, fmt.Errorf("beat payload missing content")
	}
	if payload.EmotionalTone == "" {
		return nil, fmt.Errorf("beat payload missing emotional_tone")
	}

	return &payload, nil
}

// suggestionPayload is the JSON shape expected from idle-suggestion
// generations.
type suggestionPayload struct {
	Category  datatypes.Category `json:"category"`
	Theme     string             `json:"theme"`
	Reasoning string             `json:"reasoning"`
}

// parseSuggestionPayload parses and validates a generated suggestion.
// All three fields must be present and the category must be a member of the
// fixed enum.
func parseSuggestionPayload(response string) (*suggestionPayload, error) {
	jsonStr, err := extractJSONObject(response)
	if err != nil {
		return nil, err
	}

	var payload suggestionPayload
	if err := json.Unmarshal([]byte(jsonStr), &payload); err != nil {
		return nil, fmt.Errorf("parse suggestion JSON: %w", err)
	}

	payload.Category = datatypes.Category(strings.ToLower(strings.TrimSpace(string(payload.Category))))
	payload.Theme = strings.TrimSpace(payload.Theme)
	payload.Reasoning = strings.TrimSpace(payload.Reasoning)

	if !payload.Category.Valid() {
		return nil, fmt.Errorf("suggestion category %q not in the fixed set", payload.Category)
	}
	if payload.Theme == "" {
		return nil, fmt.Errorf("suggestion payload missing theme")
	}
	if payload.Reasoning == "" {
		return nil, fmt.Errorf("suggestion payload missing reasoning")
	}

	return &payload, nil
}

// parseSentence trims a plain-text one-liner generation, rejecting empties.
func parseSentence(response string) (string, error) {
	s := strings.TrimSpace(response)
	// Keep only the first line; some models pad with commentary.
	if idx := strings.Index(s, "\n"); idx > 0 {
		s = strings.TrimSpace(s[:idx])
	}
	s = strings.Trim(s, "\"")
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("empty generation")
	}
	return s, nil
}

// truncate bounds a string for log and error messages.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
