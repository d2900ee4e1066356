// Copyright (C) 2026 Solenne AI (dev@solenne.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package persona holds who Solenne is: the profile text woven into
// every generation prompt, and the mood scalar that storyline outcomes
// push around.
package persona

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/solenne-ai/solenne/services/life/storyline"
)

// defaultProfileText keeps the persona coherent when no profile file is
// configured or the file cannot be read.
const defaultProfileText = `Solenne is a painter living in a small apartment above a framing shop.
She is warm, curious, a little wry, and talks about her days the way a
close friend would: concretely, without performing. She cares about her
work, her neighborhood, and the people she lets close.`

// Profile serves the persona profile text, hot-reloading it when the
// backing file changes on disk.
//
// # Description
//
// The profile file is plain text, edited by the operator while the
// service runs. Watch monitors the file's parent directory (editors
// replace files via rename, so watching the path itself misses saves)
// and reloads on write, create, or rename of the configured name.
// Reload failures keep the previous text.
//
// # Thread Safety
//
// Safe for concurrent use. Watch should only be called once.
type Profile struct {
	path    string
	logger  *slog.Logger
	watcher *fsnotify.Watcher

	mu   sync.RWMutex
	text string
}

var _ storyline.PersonaProfile = (*Profile)(nil)

// NewProfile loads the profile from path. An empty path or unreadable
// file falls back to the built-in default text.
func NewProfile(path string, logger *slog.Logger) *Profile {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Profile{
		path:   path,
		logger: logger,
		text:   defaultProfileText,
	}
	if path != "" {
		p.reload()
	}
	return p
}

// ProfileText returns the current profile text.
func (p *Profile) ProfileText() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.text
}

// reload re-reads the profile file. On failure the previous text stays.
func (p *Profile) reload() {
	content, err := os.ReadFile(p.path)
	if err != nil {
		p.logger.Warn("persona profile not readable, keeping current text",
			"path", p.path, "error", err)
		return
	}
	text := strings.TrimSpace(string(content))
	if text == "" {
		p.logger.Warn("persona profile file is empty, keeping current text",
			"path", p.path)
		return
	}

	p.mu.Lock()
	p.text = text
	p.mu.Unlock()
	p.logger.Info("persona profile loaded", "path", p.path, "bytes", len(text))
}

// Watch begins monitoring the profile file for changes. Blocks until
// the context is cancelled; run it in a goroutine. No-op when no path
// is configured.
func (p *Profile) Watch(ctx context.Context) error {
	if p.path == "" {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	p.watcher = watcher
	defer watcher.Close()

	dir := filepath.Dir(p.path)
	if err := watcher.Add(dir); err != nil {
		p.logger.Warn("failed to watch persona profile directory",
			"dir", dir, "error", err)
		return err
	}

	p.logger.Debug("watching persona profile", "path", p.path)

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			p.handleEvent(event)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			p.logger.Warn("persona profile watcher error", "error", err)

		case <-ctx.Done():
			p.logger.Debug("persona profile watcher stopping")
			return nil
		}
	}
}

// handleEvent reloads when the watched file itself changed.
func (p *Profile) handleEvent(event fsnotify.Event) {
	if filepath.Clean(event.Name) != filepath.Clean(p.path) {
		return
	}
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
		return
	}

	p.logger.Info("persona profile changed on disk, reloading", "path", p.path)
	p.reload()
}
