// Copyright (C) 2026 Solenne AI (dev@solenne.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Command life starts the Solenne storyline lifecycle HTTP server.
//
// This is the main entry point for the containerized life service. It
// reads configuration from environment variables and starts the server.
//
// # Environment Variables
//
//   - LIFE_PORT: HTTP server port (default: 8600)
//   - LLM_BACKEND_TYPE: LLM provider - openai, ollama, claude (default: ollama)
//   - LIFE_DATA_DIR: Badger database directory (default: ./data/life)
//   - LIFE_PROFILE_PATH: persona profile file, hot-reloaded (optional)
//   - LIFE_AUDIT_LOG: creation attempt log file (default: ./logs/creation_attempts.jsonl)
//   - LIFE_LOG_DIR: log file directory alongside stderr (optional)
//   - LIFE_LOG_LEVEL: minimum log level - debug, info, warn, error (default: info)
//   - LIFE_LOG_JSON: stderr logs as JSON (default: false)
//   - LIFE_METRICS_ENABLED: Prometheus /metrics endpoint (default: true)
//   - LIFE_LLM_RPM: generation calls per minute (default: 30)
//   - LIFE_LLM_TIMEOUT: per-generation timeout (default: 2m)
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OpenTelemetry collector (default: localhost:4317)
//
// The storyline engine reads its own tunables (LIFE_COOLDOWN_HOURS,
// LIFE_ABSENCE_MINUTES, ...) directly; see the storyline package.
//
// # Usage
//
//	# Build
//	go build -o life ./cmd/life
//
//	# Run
//	./life
package main

import (
	"log"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/solenne-ai/solenne/services/life"
	"github.com/solenne-ai/solenne/services/llm"
)

func main() {
	cfg := life.Config{
		Port:          getEnvInt("LIFE_PORT", 8600),
		LLMBackend:    getEnvString("LLM_BACKEND_TYPE", "ollama"),
		DataDir:       getEnvString("LIFE_DATA_DIR", "./data/life"),
		ProfilePath:   os.Getenv("LIFE_PROFILE_PATH"),
		AuditLogPath:  getEnvString("LIFE_AUDIT_LOG", "./logs/creation_attempts.jsonl"),
		OTelEndpoint:  getEnvString("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		EnableMetrics: getEnvBool("LIFE_METRICS_ENABLED", true),
		LogDir:        os.Getenv("LIFE_LOG_DIR"),
		LogLevel:      getEnvString("LIFE_LOG_LEVEL", "info"),
		LogJSON:       getEnvBool("LIFE_LOG_JSON", false),
		RateLimit: llm.RateLimitConfig{
			RequestsPerMinute: getEnvInt("LIFE_LLM_RPM", 30),
			CallTimeout:       getEnvDuration("LIFE_LLM_TIMEOUT", 2*time.Minute),
		},
	}

	slog.Info("starting life service",
		"port", cfg.Port,
		"llm_backend", cfg.LLMBackend,
		"data_dir", cfg.DataDir,
	)

	svc, err := life.New(cfg)
	if err != nil {
		log.Fatalf("Failed to create life service: %v", err)
	}

	// Run the server (blocks until shutdown)
	if err := svc.Run(); err != nil {
		log.Fatalf("Life service error: %v", err)
	}
}

// getEnvString returns the environment variable value or a default.
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns the environment variable as int or a default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvBool returns the environment variable as bool or a default.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

// getEnvDuration returns the environment variable as a duration or a
// default. Accepts Go duration syntax ("90s", "2m").
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
