// Copyright (C) 2026 Solenne AI (dev@solenne.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package storyline

import (
	"context"
	"time"

	"github.com/solenne-ai/solenne/services/llm"
)

// generate calls the text-generation collaborator and records latency and
// failure metrics. Callers treat an error as "no content this round"; the
// engine never retries within the same pass or tick.
func (e *Engine) generate(ctx context.Context, prompt string, params llm.GenerationParams) (string, error) {
	start := time.Now()
	response, err := e.llm.Generate(ctx, prompt, params)

	if e.metrics != nil {
		e.metrics.GenerationDuration.Record(ctx, time.Since(start).Seconds())
		if err != nil {
			e.metrics.GenerationFailuresTotal.Add(ctx, 1)
		}
	}

	return response, err
}

// beatParams bounds narrative beat generations. Beats want variety, so the
// temperature runs hot.
func beatParams() llm.GenerationParams {
	temp := float32(0.9)
	topP := float32(0.95)
	maxTokens := 200
	return llm.GenerationParams{
		Temperature: &temp,
		TopP:        &topP,
		MaxTokens:   &maxTokens,
	}
}

// suggestionParams bounds idle-suggestion generations.
func suggestionParams() llm.GenerationParams {
	temp := float32(1.0)
	topP := float32(0.95)
	maxTokens := 250
	return llm.GenerationParams{
		Temperature: &temp,
		TopP:        &topP,
		MaxTokens:   &maxTokens,
	}
}

// sentenceParams bounds one-line generations (outcome descriptions,
// learning extractions).
func sentenceParams() llm.GenerationParams {
	temp := float32(0.7)
	maxTokens := 80
	return llm.GenerationParams{
		Temperature: &temp,
		MaxTokens:   &maxTokens,
	}
}
