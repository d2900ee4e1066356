// Copyright (C) 2026 Solenne AI (dev@solenne.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/solenne-ai/solenne/pkg/ux"
)

func runProcess(cmd *cobra.Command, args []string) {
	start := time.Now()

	if !jsonOutput && !quietOutput {
		ux.Info("Forcing a storyline processing pass...")
	}

	var resp struct {
		Status string `json:"status"`
	}
	if err := postJSON("/v1/storylines/process", nil, &resp); err != nil {
		finishCommand("process", start, nil, false, err)
		return
	}

	if !jsonOutput && !quietOutput {
		ux.Success("Processing pass completed.")
	}

	finishCommand("process", start, resp, false, nil)
}
