// Copyright (C) 2026 Solenne AI (dev@solenne.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package llm

import "testing"

func TestNewOpenAIClient_RequiresAPIKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")

	if _, err := NewOpenAIClient(); err == nil {
		t.Fatal("NewOpenAIClient() without key should fail")
	}
}

func TestNewOpenAIClient_DefaultsModel(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "test-key")
	t.Setenv("OPENAI_MODEL", "")

	client, err := NewOpenAIClient()
	if err != nil {
		t.Fatalf("NewOpenAIClient() error = %v", err)
	}
	if client.model != "gpt-4o-mini" {
		t.Errorf("model = %q, want gpt-4o-mini", client.model)
	}
}

func TestNewOpenAIClient_UsesConfiguredModel(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "test-key")
	t.Setenv("OPENAI_MODEL", "gpt-4o")

	client, err := NewOpenAIClient()
	if err != nil {
		t.Fatalf("NewOpenAIClient() error = %v", err)
	}
	if client.model != "gpt-4o" {
		t.Errorf("model = %q, want gpt-4o", client.model)
	}
}
