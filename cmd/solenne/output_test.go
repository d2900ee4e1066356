// Copyright (C) 2026 Solenne AI (dev@solenne.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"os"
	"strings"
	"testing"
	"time"
)

// Helper to capture stdout
func captureStdout(f func()) string {
	old := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w

	f()

	w.Close()
	os.Stdout = old

	var buf bytes.Buffer
	io.Copy(&buf, r)
	return buf.String()
}

// =============================================================================
// OutputResult Exit Code Tests
// =============================================================================

func TestOutputResult_QuietMode(t *testing.T) {
	cfg := OutputConfig{Quiet: true}
	start := time.Now()

	if code := OutputResult(cfg, "status", start, nil, false, nil); code != CLIExitSuccess {
		t.Errorf("clean quiet run should exit %d, got %d", CLIExitSuccess, code)
	}
	if code := OutputResult(cfg, "status", start, nil, true, nil); code != CLIExitFindings {
		t.Errorf("findings should exit %d, got %d", CLIExitFindings, code)
	}
	if code := OutputResult(cfg, "status", start, nil, false, errors.New("boom")); code != CLIExitError {
		t.Errorf("errors should exit %d, got %d", CLIExitError, code)
	}
}

func TestOutputResult_QuietMode_NoOutput(t *testing.T) {
	output := captureStdout(func() {
		OutputResult(OutputConfig{Quiet: true}, "status", time.Now(), map[string]int{"n": 1}, false, nil)
	})
	if output != "" {
		t.Errorf("quiet mode should print nothing, got %q", output)
	}
}

func TestOutputResult_JSONEnvelope(t *testing.T) {
	start := time.Now()
	output := captureStdout(func() {
		code := OutputResult(OutputConfig{JSON: true}, "storylines list", start,
			map[string]int{"count": 3}, false, nil)
		if code != CLIExitSuccess {
			t.Errorf("expected success code, got %d", code)
		}
	})

	var result CommandResult
	if err := json.Unmarshal([]byte(output), &result); err != nil {
		t.Fatalf("JSON output does not parse: %v\n%s", err, output)
	}
	if result.APIVersion != "1.0" {
		t.Errorf("expected api_version 1.0, got %q", result.APIVersion)
	}
	if result.Command != "storylines list" {
		t.Errorf("expected command name in envelope, got %q", result.Command)
	}
	if !result.Success {
		t.Error("expected success true")
	}
}

func TestOutputResult_JSONError(t *testing.T) {
	output := captureStdout(func() {
		code := OutputResult(OutputConfig{JSON: true}, "process", time.Now(), nil, false,
			errors.New("a pass is already running"))
		if code != CLIExitError {
			t.Errorf("expected error code, got %d", code)
		}
	})

	var result CommandResult
	if err := json.Unmarshal([]byte(output), &result); err != nil {
		t.Fatalf("JSON error output does not parse: %v", err)
	}
	if result.Success {
		t.Error("expected success false")
	}
	if !strings.Contains(result.Error, "a pass is already running") {
		t.Errorf("expected the cause in the error field, got %q", result.Error)
	}
}

// =============================================================================
// OutputJSON Tests
// =============================================================================

func TestOutputJSON_Indented(t *testing.T) {
	output := captureStdout(func() {
		OutputJSON(map[string]string{"theme": "pottery"}, false)
	})
	if !strings.Contains(output, "\n  ") {
		t.Errorf("expected indented output, got %q", output)
	}
}

func TestOutputJSON_Compact(t *testing.T) {
	output := captureStdout(func() {
		OutputJSON(map[string]string{"theme": "pottery"}, true)
	})
	if strings.Contains(output, "  \"") {
		t.Errorf("expected compact output, got %q", output)
	}
}
