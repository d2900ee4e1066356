// Copyright (C) 2026 Solenne AI (dev@solenne.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/solenne-ai/solenne/pkg/ux"
	"github.com/solenne-ai/solenne/services/life/datatypes"
	"github.com/solenne-ai/solenne/services/life/facts"
)

func runStatus(cmd *cobra.Command, args []string) {
	start := time.Now()

	var health struct {
		Status  string `json:"status"`
		Service string `json:"service"`
	}
	if err := getJSON("/health", &health); err != nil {
		finishCommand("status", start, nil, false, err)
		return
	}

	var mood struct {
		Value float64 `json:"value"`
	}
	if err := getJSON("/v1/mood", &mood); err != nil {
		finishCommand("status", start, nil, false, err)
		return
	}

	var pc struct {
		HasActive    bool                   `json:"has_active"`
		Storylines   []*datatypes.Storyline `json:"storylines"`
		MostPressing *datatypes.Storyline   `json:"most_pressing"`
	}
	if err := getJSON("/v1/context", &pc); err != nil {
		finishCommand("status", start, nil, false, err)
		return
	}

	var active struct {
		Count int `json:"count"`
	}
	if err := getJSON("/v1/storylines?active=true", &active); err != nil {
		finishCommand("status", start, nil, false, err)
		return
	}

	result := StatusResult{
		Service:      health.Service,
		Status:       health.Status,
		Mood:         mood.Value,
		ActiveCount:  active.Count,
		MostPressing: pc.MostPressing,
	}

	if !jsonOutput && !quietOutput {
		ux.Title("Solenne")
		ux.KeyValue("service", fmt.Sprintf("%s (%s)", health.Service, health.Status))
		ux.KeyValue("mood", fmt.Sprintf("%+.2f", mood.Value))
		ux.KeyValue("active storylines", strconv.Itoa(active.Count))
		if pc.MostPressing != nil {
			s := pc.MostPressing
			ux.Box("Most pressing", fmt.Sprintf("%s\n%s, feeling %s (%.1f)",
				s.Title, s.Phase, s.CurrentEmotionalTone, s.EmotionalIntensity))
		} else if !pc.HasActive {
			ux.Muted("Nothing is happening in her life right now.")
		}
	}

	finishCommand("status", start, result, false, nil)
}

func runContext(cmd *cobra.Command, args []string) {
	start := time.Now()

	var pc struct {
		HasActive          bool                         `json:"has_active"`
		Storylines         []*datatypes.Storyline       `json:"storylines"`
		UnmentionedUpdates []*datatypes.StorylineUpdate `json:"unmentioned_updates"`
		MostPressing       *datatypes.Storyline         `json:"most_pressing"`
		RenderedSection    string                       `json:"rendered_section"`
	}
	if err := getJSON("/v1/context", &pc); err != nil {
		finishCommand("context", start, nil, false, err)
		return
	}

	if !jsonOutput && !quietOutput {
		if !pc.HasActive {
			ux.Muted("No storyline context would be injected right now.")
		} else {
			ux.Title(fmt.Sprintf("Prompt context (%d storylines)", len(pc.Storylines)))
			fmt.Println(pc.RenderedSection)
		}
	}

	finishCommand("context", start, pc, false, nil)
}

func runFacts(cmd *cobra.Command, args []string) {
	start := time.Now()

	path := "/v1/facts"
	if factsCategory != "" {
		path += "?category=" + url.QueryEscape(factsCategory)
	}

	var resp struct {
		Facts []*facts.Fact `json:"facts"`
		Count int           `json:"count"`
	}
	if err := getJSON(path, &resp); err != nil {
		finishCommand("facts", start, nil, false, err)
		return
	}

	if !jsonOutput && !quietOutput {
		if resp.Count == 0 {
			ux.Muted("No facts recorded yet.")
		} else {
			ux.Title(fmt.Sprintf("Character facts (%d)", resp.Count))
			for _, f := range resp.Facts {
				fmt.Printf("  %s %s  %s\n", ux.IconBullet.Render(), f.Text,
					ux.Styles.Muted.Render(fmt.Sprintf("[%s] %s", f.Category, formatTime(f.UpdatedAt))))
			}
		}
	}

	finishCommand("facts", start, resp, false, nil)
}
