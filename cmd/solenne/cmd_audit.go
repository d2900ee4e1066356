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
	"time"

	"github.com/spf13/cobra"

	"github.com/solenne-ai/solenne/cmd/solenne/config"
	"github.com/solenne-ai/solenne/pkg/ux"
	"github.com/solenne-ai/solenne/services/life/storyline"
)

func runAuditVerify(cmd *cobra.Command, args []string) {
	start := time.Now()

	logPath := resolveAuditLogPath()
	result, err := verifyAttemptLog(logPath)
	if err != nil {
		finishCommand("audit verify", start, nil, false, err)
		return
	}

	if !jsonOutput && !quietOutput {
		ux.KeyValue("log", result.LogPath)
		if result.Valid {
			ux.Success(fmt.Sprintf("Hash chain intact across %d records", result.Records))
			ux.Summary(int(result.Records), 0, int(result.Records))
		} else {
			ux.Error(fmt.Sprintf("Hash chain breaks at record %d", result.BreakIndex))
			intact := int(result.BreakIndex)
			ux.Summary(intact, int(result.Records)-intact, int(result.Records))
		}
	}

	finishCommand("audit verify", start, result, !result.Valid, nil)
}

// resolveAuditLogPath picks the attempt log location: flag, then config
// file, then the service default.
func resolveAuditLogPath() string {
	if auditLogPath != "" {
		return auditLogPath
	}
	if config.Global.Audit.LogPath != "" {
		return config.Global.Audit.LogPath
	}
	return config.DefaultConfig().Audit.LogPath
}

// verifyAttemptLog walks the hash chain of the attempt log at logPath.
func verifyAttemptLog(logPath string) (AuditVerifyResult, error) {
	// Stat first so a missing log fails instead of being created empty
	if _, err := os.Stat(logPath); err != nil {
		return AuditVerifyResult{}, fmt.Errorf("attempt log not found at %s", logPath)
	}

	logger, err := storyline.NewFileAttemptLogger(logPath)
	if err != nil {
		return AuditVerifyResult{}, fmt.Errorf("open attempt log: %w", err)
	}
	defer logger.Close()

	valid, breakIndex, err := logger.VerifyChain()
	if err != nil {
		return AuditVerifyResult{}, err
	}
	count, err := logger.EntryCount()
	if err != nil {
		return AuditVerifyResult{}, err
	}

	return AuditVerifyResult{
		Valid:      valid,
		BreakIndex: breakIndex,
		Records:    count,
		LogPath:    logPath,
	}, nil
}
