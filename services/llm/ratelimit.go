// Copyright (C) 2026 Solenne AI (dev@solenne.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package llm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"
)

// RateLimitedClient wraps an LLMClient with a token-bucket rate limit
// and a per-call timeout.
//
// Calls block until the limiter grants a slot or the caller's context
// expires. Each granted call then runs under its own deadline.
//
// Thread Safety: Safe for concurrent use.
type RateLimitedClient struct {
	inner   LLMClient
	limiter *rate.Limiter
	timeout time.Duration
}

// RateLimitConfig controls the wrapper. Zero values select defaults.
type RateLimitConfig struct {
	// RequestsPerMinute caps sustained generation throughput. Default 30.
	RequestsPerMinute int

	// Burst is the token bucket size. Default 5.
	Burst int

	// CallTimeout bounds each Generate call. Default 2 minutes.
	CallTimeout time.Duration
}

// NewRateLimitedClient wraps inner with rate limiting.
func NewRateLimitedClient(inner LLMClient, cfg RateLimitConfig) *RateLimitedClient {
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = 30
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 5
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 2 * time.Minute
	}
	return &RateLimitedClient{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Limit(float64(cfg.RequestsPerMinute)/60.0), cfg.Burst),
		timeout: cfg.CallTimeout,
	}
}

// Generate implements the LLMClient interface
func (r *RateLimitedClient) Generate(ctx context.Context, prompt string, params GenerationParams) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit wait: %w", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	out, err := r.inner.Generate(callCtx, prompt, params)
	if err != nil {
		if callCtx.Err() == context.DeadlineExceeded {
			slog.Warn("LLM call exceeded timeout", "timeout", r.timeout)
			return "", fmt.Errorf("generation timed out after %s: %w", r.timeout, err)
		}
		return "", err
	}
	return out, nil
}

var _ LLMClient = (*RateLimitedClient)(nil)
