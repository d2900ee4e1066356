// Copyright (C) 2026 Solenne AI (dev@solenne.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/solenne-ai/solenne/pkg/ux"
	"github.com/solenne-ai/solenne/services/life/datatypes"
)

func runStorylinesList(cmd *cobra.Command, args []string) {
	start := time.Now()

	if listActive && listResolved {
		finishCommand("storylines list", start, nil, false,
			errors.New("--active and --resolved are mutually exclusive"))
		return
	}

	query := url.Values{}
	if listActive {
		query.Set("active", "true")
	}
	if listResolved {
		query.Set("active", "false")
	}
	if listCategory != "" {
		query.Set("category", listCategory)
	}
	path := "/v1/storylines"
	if len(query) > 0 {
		path += "?" + query.Encode()
	}

	var resp struct {
		Storylines []*datatypes.Storyline `json:"storylines"`
		Count      int                    `json:"count"`
	}
	if err := getJSON(path, &resp); err != nil {
		finishCommand("storylines list", start, nil, false, err)
		return
	}

	if !jsonOutput && !quietOutput {
		if resp.Count == 0 {
			ux.Muted("No storylines recorded yet.")
		} else {
			ux.Title(fmt.Sprintf("Storylines (%d)", resp.Count))
			for _, s := range resp.Storylines {
				printStorylineLine(s)
			}
		}
	}

	finishCommand("storylines list", start, resp, false, nil)
}

func runStorylinesShow(cmd *cobra.Command, args []string) {
	start := time.Now()
	id := args[0]

	var detail struct {
		Storyline *datatypes.Storyline         `json:"storyline"`
		Updates   []*datatypes.StorylineUpdate `json:"updates"`
	}
	if err := getJSON("/v1/storylines/"+url.PathEscape(id), &detail); err != nil {
		finishCommand("storylines show", start, nil, false, err)
		return
	}

	if !jsonOutput && !quietOutput && detail.Storyline != nil {
		s := detail.Storyline
		ux.Title(s.Title)
		ux.KeyValue("id", s.ID)
		ux.KeyValue("category", fmt.Sprintf("%s / %s", s.Category, s.Type))
		ux.KeyValue("phase", string(s.Phase))
		if !s.Active() {
			ux.KeyValue("outcome", string(s.Outcome))
			if s.OutcomeDescription != "" {
				ux.KeyValue("ending", s.OutcomeDescription)
			}
		}
		ux.KeyValue("feeling", fmt.Sprintf("%s (%.1f)", s.CurrentEmotionalTone, s.EmotionalIntensity))
		if s.Stakes != "" {
			ux.KeyValue("stakes", s.Stakes)
		}
		ux.KeyValue("involvement", string(s.UserInvolvement))
		ux.KeyValue("started", formatTime(s.CreatedAt))
		if s.ResolvedAt != nil {
			ux.KeyValue("resolved", formatTime(*s.ResolvedAt))
		}

		if len(detail.Updates) > 0 {
			fmt.Println()
			ux.Muted(fmt.Sprintf("Beats (%d):", len(detail.Updates)))
			for _, u := range detail.Updates {
				marker := ux.IconBullet
				if !u.Mentioned {
					marker = ux.IconSpark
				}
				fmt.Printf("  %s %s  %s\n", marker.Render(), u.Content,
					ux.Styles.Muted.Render(fmt.Sprintf("(%s, %s)", u.UpdateType, formatTime(u.CreatedAt))))
			}
		}
	}

	finishCommand("storylines show", start, detail, false, nil)
}

func runStorylinesPropose(cmd *cobra.Command, args []string) {
	start := time.Now()

	input := datatypes.StorylineInput{
		Title:                proposeTitle,
		Category:             datatypes.Category(proposeCategory),
		Type:                 datatypes.StorylineType(proposeType),
		CurrentEmotionalTone: proposeTone,
		EmotionalIntensity:   proposeIntensity,
		Stakes:               proposeStakes,
		UserInvolvement:      datatypes.UserInvolvement(proposeInvolvement),
		InitialAnnouncement:  proposeAnnouncement,
	}

	var resp struct {
		Created                bool                    `json:"created"`
		Storyline              *datatypes.Storyline    `json:"storyline"`
		Reason                 datatypes.FailureReason `json:"reason"`
		CooldownHoursRemaining int                     `json:"cooldown_hours_remaining"`
		DuplicateMatchTitle    string                  `json:"duplicate_match_title"`
		BlockingStorylineTitle string                  `json:"blocking_storyline_title"`
	}
	if err := postJSON("/v1/storylines/propose", input, &resp); err != nil {
		finishCommand("storylines propose", start, nil, false, err)
		return
	}

	if !jsonOutput && !quietOutput {
		if resp.Created && resp.Storyline != nil {
			ux.Success(fmt.Sprintf("Storyline created: %s (%s)", resp.Storyline.Title, shortID(resp.Storyline.ID)))
		} else {
			switch resp.Reason {
			case datatypes.FailureCooldownActive:
				ux.Warning(fmt.Sprintf("Creation gate: cooldown active, about %dh remaining", resp.CooldownHoursRemaining))
			case datatypes.FailureDuplicateDetected:
				ux.Warning(fmt.Sprintf("Creation gate: too similar to %q", resp.DuplicateMatchTitle))
			case datatypes.FailureCategoryConstraint:
				ux.Warning(fmt.Sprintf("Creation gate: %q is still active", resp.BlockingStorylineTitle))
			default:
				ux.Warning(fmt.Sprintf("Creation gate refused the proposal (%s)", resp.Reason))
			}
		}
	}

	// A gate refusal is a finding, not an error
	finishCommand("storylines propose", start, resp, !resp.Created, nil)
}

func runStorylinesResolve(cmd *cobra.Command, args []string) {
	start := time.Now()
	id := args[0]

	outcome := datatypes.Outcome(resolveOutcome)
	if !outcome.Valid() {
		finishCommand("storylines resolve", start, nil, false,
			fmt.Errorf("unknown outcome %q (want success, failure, abandoned, or transformed)", resolveOutcome))
		return
	}

	payload := map[string]interface{}{
		"outcome":             outcome,
		"outcome_description": resolveDescription,
		"resolution_emotion":  resolveEmotion,
	}

	var resp struct {
		Storyline *datatypes.Storyline `json:"storyline"`
	}
	if err := postJSON("/v1/storylines/"+url.PathEscape(id)+"/resolve", payload, &resp); err != nil {
		finishCommand("storylines resolve", start, nil, false, err)
		return
	}

	if !jsonOutput && !quietOutput && resp.Storyline != nil {
		s := resp.Storyline
		ux.Success(fmt.Sprintf("Resolved %q as %s", s.Title, s.Outcome))
		if s.OutcomeDescription != "" {
			ux.Info(s.OutcomeDescription)
		}
	}

	finishCommand("storylines resolve", start, resp, false, nil)
}

func runStorylinesDelete(cmd *cobra.Command, args []string) {
	start := time.Now()
	id := args[0]

	var resp struct {
		Status string `json:"status"`
	}
	if err := deleteJSON("/v1/storylines/"+url.PathEscape(id), &resp); err != nil {
		finishCommand("storylines delete", start, nil, false, err)
		return
	}

	if !jsonOutput && !quietOutput {
		ux.Success(fmt.Sprintf("Deleted storyline %s and its beats", shortID(id)))
	}

	finishCommand("storylines delete", start, resp, false, nil)
}

func runStorylinesAttempts(cmd *cobra.Command, args []string) {
	start := time.Now()

	path := "/v1/storylines/attempts?limit=" + strconv.Itoa(attemptsLimit)

	var resp struct {
		Attempts []*datatypes.CreationAttempt `json:"attempts"`
		Count    int                          `json:"count"`
	}
	if err := getJSON(path, &resp); err != nil {
		finishCommand("storylines attempts", start, nil, false, err)
		return
	}

	if !jsonOutput && !quietOutput {
		if resp.Count == 0 {
			ux.Muted("No creation attempts recorded yet.")
		} else {
			ux.Title(fmt.Sprintf("Creation attempts (%d)", resp.Count))
			for _, a := range resp.Attempts {
				printAttemptLine(a)
			}
		}
	}

	finishCommand("storylines attempts", start, resp, false, nil)
}

func printStorylineLine(s *datatypes.Storyline) {
	icon := ux.IconPending
	state := string(s.Phase)
	if !s.Active() {
		icon = ux.IconSuccess
		state = string(s.Outcome)
	}
	fmt.Printf("  %s %s  %s\n", icon.Render(), s.Title,
		ux.Styles.Muted.Render(fmt.Sprintf("[%s/%s] %s  %s", s.Category, s.Type, state, shortID(s.ID))))
}

func printAttemptLine(a *datatypes.CreationAttempt) {
	icon := ux.IconSuccess
	detail := string(a.Source)
	if !a.Success {
		icon = ux.IconError
		detail = fmt.Sprintf("%s, %s", a.Source, a.FailureReason)
	}
	fmt.Printf("  %s %s  %s\n", icon.Render(), a.Title,
		ux.Styles.Muted.Render(fmt.Sprintf("[%s] %s  %s", detail, formatTime(a.AttemptedAt), shortID(a.ID))))
}
