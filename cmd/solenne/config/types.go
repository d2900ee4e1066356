// Copyright (C) 2026 Solenne AI (dev@solenne.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package config

type SolenneConfig struct {
	// Service: where the life service listens
	Service ServiceConfig `yaml:"service"`

	// Output: CLI presentation defaults
	Output OutputConfig `yaml:"output"`

	// Audit: creation-attempt log settings for offline verification
	Audit AuditConfig `yaml:"audit"`
}

type ServiceConfig struct {
	Endpoint       string `yaml:"endpoint"`        // e.g. http://localhost:8600
	TimeoutSeconds int    `yaml:"timeout_seconds"` // e.g. 30
}

type OutputConfig struct {
	// Personality can be "full", "standard", "minimal", or "machine".
	// Empty picks full on a terminal and machine when piped.
	Personality string `yaml:"personality"`
}

type AuditConfig struct {
	LogPath string `yaml:"log_path"` // creation attempt log location
}

func DefaultConfig() SolenneConfig {
	return SolenneConfig{
		Service: ServiceConfig{
			Endpoint:       "http://localhost:8600",
			TimeoutSeconds: 30,
		},
		Output: OutputConfig{
			Personality: "",
		},
		Audit: AuditConfig{
			LogPath: "./logs/creation_attempts.jsonl",
		},
	}
}
