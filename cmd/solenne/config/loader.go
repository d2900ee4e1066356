// Copyright (C) 2026 Solenne AI (dev@solenne.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

var (
	// Global is a singleton instance
	Global SolenneConfig
	once   sync.Once
)

// defaultTemplate is written on first run. It must stay parseable into
// SolenneConfig and in sync with DefaultConfig.
const defaultTemplate = `# Solenne CLI configuration.
# Environment variables SOLENNE_SERVICE_URL and SOLENNE_AUDIT_LOG
# override these values when set.

service:
  # Address of the life service.
  endpoint: http://localhost:8600
  # HTTP timeout for CLI requests, in seconds.
  timeout_seconds: 30

output:
  # Output style: full, standard, minimal, or machine.
  # Empty picks full on a terminal and machine when piped.
  personality: ""

audit:
  # Creation attempt log checked by 'solenne audit verify'.
  log_path: ./logs/creation_attempts.jsonl
`

// Load ensures the config is loaded into the Global variable
func Load() error {
	var err error
	once.Do(func() {
		err = loadInternal()
	})
	return err
}

func loadInternal() error {
	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("could not find the user's home directory: %w", err)
	}
	configPath := filepath.Join(home, ".solenne", "solenne.yaml")
	// create it if it doesn't exist
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		fmt.Printf("First run detected, creating the config at %s\n", configPath)
		if err := createDefault(configPath); err != nil {
			return err
		}
	}
	// read the file
	data, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to read the config file: %w", err)
	}
	// parse the config into the Global struct
	if err = yaml.Unmarshal(data, &Global); err != nil {
		return fmt.Errorf("failed to parse the config into the Global singleton: %w", err)
	}
	applyEnvOverrides()
	return nil
}

func createDefault(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create the config directory: %w", err)
	}
	return os.WriteFile(path, []byte(defaultTemplate), 0644)
}

// applyEnvOverrides lets the environment win over the file.
func applyEnvOverrides() {
	if v := os.Getenv("SOLENNE_SERVICE_URL"); v != "" {
		Global.Service.Endpoint = v
	}
	if v := os.Getenv("SOLENNE_AUDIT_LOG"); v != "" {
		Global.Audit.LogPath = v
	}
}
