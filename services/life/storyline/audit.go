// Copyright (C) 2026 Solenne AI (dev@solenne.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package storyline

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/solenne-ai/solenne/services/life/datatypes"
)

// =============================================================================
// File Attempt Logger
// =============================================================================

// GenesisHash is the chain anchor for the first record in an attempt log.
const GenesisHash = "0000000000000000000000000000000000000000000000000000000000000000"

// attemptLogFileMode restricts the log to owner read/write. The log reveals
// what the persona tried to invent about itself and when; that stays
// between the operator and the process.
const attemptLogFileMode = 0600

// attemptAuditRecord is one hash-chained line of the attempt log.
type attemptAuditRecord struct {
	Sequence  int64  `json:"sequence"`
	Timestamp string `json:"timestamp"`

	AttemptID     string                  `json:"attempt_id"`
	Title         string                  `json:"title"`
	Category      datatypes.Category      `json:"category"`
	Type          datatypes.StorylineType `json:"type"`
	Success       bool                    `json:"success"`
	FailureReason datatypes.FailureReason `json:"failure_reason,omitempty"`
	Source        datatypes.AttemptSource `json:"source"`

	PrevHash  string `json:"prev_hash"`
	EntryHash string `json:"entry_hash"`
}

// FileAttemptLogger mirrors creation attempts to a tamper-evident JSONL
// file, one record per line.
//
// # Description
//
// Each record carries the hash of the previous record plus its own hash,
// forming a chain: altering any line breaks verification from that point
// on. On open, the chain state is recovered from the existing file so the
// chain continues seamlessly across process restarts.
//
// # Thread Safety
//
// All methods are safe for concurrent use; file writes are serialized.
//
// # Limitations
//
//   - Log rotation must be handled externally, and verification across
//     rotated files needs the old files preserved.
type FileAttemptLogger struct {
	logFile  *os.File
	logPath  string
	fileMu   sync.Mutex
	sequence int64
	prevHash string
}

var _ AttemptLogger = (*FileAttemptLogger)(nil)

// NewFileAttemptLogger opens (or creates) the attempt log at logPath and
// recovers the hash-chain state from any existing records.
func NewFileAttemptLogger(logPath string) (*FileAttemptLogger, error) {
	file, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, attemptLogFileMode)
	if err != nil {
		return nil, fmt.Errorf("open attempt log: %w", err)
	}

	logger := &FileAttemptLogger{
		logFile:  file,
		logPath:  logPath,
		prevHash: GenesisHash,
	}
	if err := logger.recoverChainState(); err != nil {
		file.Close()
		return nil, fmt.Errorf("recover attempt log chain: %w", err)
	}

	slog.Info("attempt audit log opened",
		"log_path", logPath,
		"starting_sequence", logger.sequence)
	return logger, nil
}

// LogAttempt appends one creation attempt to the chain.
func (l *FileAttemptLogger) LogAttempt(a *datatypes.CreationAttempt) error {
	l.fileMu.Lock()
	defer l.fileMu.Unlock()

	if l.logFile == nil {
		return fmt.Errorf("attempt log is closed")
	}

	l.sequence++
	record := attemptAuditRecord{
		Sequence:      l.sequence,
		Timestamp:     a.AttemptedAt.UTC().Format(time.RFC3339),
		AttemptID:     a.ID,
		Title:         a.Title,
		Category:      a.Category,
		Type:          a.Type,
		Success:       a.Success,
		FailureReason: a.FailureReason,
		Source:        a.Source,
		PrevHash:      l.prevHash,
	}
	record.EntryHash = computeAttemptHash(record)

	jsonBytes, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal attempt record: %w", err)
	}
	if _, err := l.logFile.Write(append(jsonBytes, '\n')); err != nil {
		return fmt.Errorf("write attempt record: %w", err)
	}

	l.prevHash = record.EntryHash
	return nil
}

// VerifyChain checks every record's link and entry hash.
//
// # Outputs
//
//   - valid: True when the whole chain holds.
//   - breakIndex: Index of the first broken record, -1 when valid.
//   - error: Non-nil only when the file cannot be read.
func (l *FileAttemptLogger) VerifyChain() (valid bool, breakIndex int64, err error) {
	l.fileMu.Lock()
	logPath := l.logPath
	l.fileMu.Unlock()

	file, err := os.Open(logPath)
	if err != nil {
		return false, -1, fmt.Errorf("open attempt log for verification: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	prevHash := GenesisHash
	var index int64

	for scanner.Scan() {
		var record attemptAuditRecord
		if err := json.Unmarshal(scanner.Bytes(), &record); err != nil {
			continue
		}
		if record.Sequence == 0 {
			continue
		}

		if record.PrevHash != prevHash {
			return false, index, nil
		}
		if computeAttemptHash(record) != record.EntryHash {
			return false, index, nil
		}

		prevHash = record.EntryHash
		index++
	}
	if err := scanner.Err(); err != nil {
		return false, -1, fmt.Errorf("read attempt log: %w", err)
	}

	return true, -1, nil
}

// EntryCount returns the number of chained records in the log.
func (l *FileAttemptLogger) EntryCount() (int64, error) {
	l.fileMu.Lock()
	logPath := l.logPath
	l.fileMu.Unlock()

	file, err := os.Open(logPath)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("open attempt log: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	var count int64
	for scanner.Scan() {
		var record attemptAuditRecord
		if err := json.Unmarshal(scanner.Bytes(), &record); err != nil {
			continue
		}
		if record.Sequence > 0 {
			count++
		}
	}
	if err := scanner.Err(); err != nil {
		return 0, fmt.Errorf("read attempt log: %w", err)
	}
	return count, nil
}

// Close flushes and releases the log file. Safe to call twice.
func (l *FileAttemptLogger) Close() error {
	l.fileMu.Lock()
	defer l.fileMu.Unlock()

	if l.logFile == nil {
		return nil
	}
	if err := l.logFile.Close(); err != nil {
		return fmt.Errorf("close attempt log: %w", err)
	}
	l.logFile = nil
	return nil
}

// recoverChainState scans the existing file for the last record so the
// chain continues where the previous process left it.
func (l *FileAttemptLogger) recoverChainState() error {
	file, err := os.Open(l.logPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("open attempt log for reading: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	var last attemptAuditRecord
	for scanner.Scan() {
		var record attemptAuditRecord
		if err := json.Unmarshal(scanner.Bytes(), &record); err != nil {
			continue
		}
		if record.Sequence > 0 {
			last = record
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read attempt log: %w", err)
	}

	if last.Sequence > 0 {
		l.sequence = last.Sequence
		l.prevHash = last.EntryHash
	}
	return nil
}

// computeAttemptHash hashes a record's fields, excluding EntryHash, in a
// fixed order. Verification recomputes this exactly.
func computeAttemptHash(record attemptAuditRecord) string {
	data := fmt.Sprintf("%d|%s|%s|%s|%s|%s|%t|%s|%s|%s",
		record.Sequence,
		record.Timestamp,
		record.AttemptID,
		record.Title,
		record.Category,
		record.Type,
		record.Success,
		record.FailureReason,
		record.Source,
		record.PrevHash,
	)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
