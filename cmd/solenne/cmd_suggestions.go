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
	"time"

	"github.com/spf13/cobra"

	"github.com/solenne-ai/solenne/pkg/ux"
	"github.com/solenne-ai/solenne/services/life/datatypes"
)

// suggestionEnvelope is the wire wrapper every suggestion endpoint uses.
type suggestionEnvelope struct {
	Suggestion *datatypes.PendingSuggestion `json:"suggestion"`
}

func runSuggestionPending(cmd *cobra.Command, args []string) {
	start := time.Now()

	var resp suggestionEnvelope
	err := getJSON("/v1/suggestions/pending", &resp)
	if isNotFound(err) {
		if !jsonOutput && !quietOutput {
			ux.Muted("No suggestion is waiting right now.")
		}
		finishCommand("suggestion pending", start, nil, false, nil)
		return
	}
	if err != nil {
		finishCommand("suggestion pending", start, nil, false, err)
		return
	}

	if !jsonOutput && !quietOutput && resp.Suggestion != nil {
		printSuggestion(resp.Suggestion)
	}

	finishCommand("suggestion pending", start, resp, false, nil)
}

func runSuggestionSurfaced(cmd *cobra.Command, args []string) {
	start := time.Now()
	id := args[0]

	var resp suggestionEnvelope
	if err := postJSON("/v1/suggestions/"+url.PathEscape(id)+"/surfaced", nil, &resp); err != nil {
		finishCommand("suggestion surfaced", start, nil, false, err)
		return
	}

	if !jsonOutput && !quietOutput {
		ux.Success(fmt.Sprintf("Marked suggestion %s as surfaced", shortID(id)))
	}

	finishCommand("suggestion surfaced", start, resp, false, nil)
}

func runSuggestionOutcome(cmd *cobra.Command, args []string) {
	start := time.Now()
	id := args[0]

	if outcomeCreated && outcomeReason != "" {
		finishCommand("suggestion outcome", start, nil, false,
			errors.New("--created and --reason are mutually exclusive"))
		return
	}
	if !outcomeCreated && outcomeReason == "" {
		finishCommand("suggestion outcome", start, nil, false,
			errors.New("pass --created with --storyline-id, or --reason for a rejection"))
		return
	}
	if outcomeReason != "" && !datatypes.RejectedReason(outcomeReason).Valid() {
		finishCommand("suggestion outcome", start, nil, false,
			fmt.Errorf("unknown reason %q (want not_interested, bad_timing, duplicate_concern, or other)", outcomeReason))
		return
	}

	payload := map[string]interface{}{
		"was_created":            outcomeCreated,
		"resulting_storyline_id": outcomeStorylineID,
		"rejected_reason":        outcomeReason,
	}

	var resp suggestionEnvelope
	if err := postJSON("/v1/suggestions/"+url.PathEscape(id)+"/outcome", payload, &resp); err != nil {
		finishCommand("suggestion outcome", start, nil, false, err)
		return
	}

	if !jsonOutput && !quietOutput {
		if outcomeCreated {
			ux.Success(fmt.Sprintf("Suggestion %s became storyline %s", shortID(id), shortID(outcomeStorylineID)))
		} else {
			ux.Success(fmt.Sprintf("Suggestion %s recorded as declined (%s)", shortID(id), outcomeReason))
		}
	}

	finishCommand("suggestion outcome", start, resp, false, nil)
}

func printSuggestion(s *datatypes.PendingSuggestion) {
	ux.Title("Pending suggestion")
	ux.KeyValue("id", s.ID)
	ux.KeyValue("category", string(s.Category))
	ux.KeyValue("theme", s.Theme)
	if s.Reasoning != "" {
		ux.KeyValue("reasoning", s.Reasoning)
	}
	ux.KeyValue("expires", formatTime(s.ExpiresAt))
	if s.Surfaced {
		ux.KeyValue("surfaced", "yes")
	}
}
