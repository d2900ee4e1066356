// Copyright (C) 2026 Solenne AI (dev@solenne.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/solenne-ai/solenne/cmd/solenne/config"
	"github.com/solenne-ai/solenne/pkg/ux"
	"github.com/solenne-ai/solenne/services/life"
)

// runServe runs the life service inside the CLI process. Useful for
// development and single-machine setups; production deployments run
// cmd/life with its environment-driven config instead.
func runServe(cmd *cobra.Command, args []string) {
	cfg := life.Config{
		Port:          servePort,
		LLMBackend:    serveBackend,
		DataDir:       serveDataDir,
		ProfilePath:   serveProfilePath,
		AuditLogPath:  config.Global.Audit.LogPath,
		EnableMetrics: serveMetrics,
	}

	ux.Info(fmt.Sprintf("Starting the life service on port %d (backend %s)", cfg.Port, cfg.LLMBackend))

	svc, err := life.New(cfg)
	if err != nil {
		ux.Error(fmt.Sprintf("failed to start the life service: %v", err))
		os.Exit(CLIExitError)
	}

	if err := svc.Run(); err != nil {
		ux.Error(fmt.Sprintf("life service stopped: %v", err))
		os.Exit(CLIExitError)
	}
}
