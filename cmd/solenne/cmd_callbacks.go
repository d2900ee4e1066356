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
	"time"

	"github.com/spf13/cobra"

	"github.com/solenne-ai/solenne/pkg/ux"
	"github.com/solenne-ai/solenne/services/life/datatypes"
)

func runCallbackCandidate(cmd *cobra.Command, args []string) {
	start := time.Now()

	var resp struct {
		Storyline *datatypes.Storyline `json:"storyline"`
	}
	err := getJSON("/v1/callbacks/candidate", &resp)
	if isNotFound(err) {
		if !jsonOutput && !quietOutput {
			ux.Muted("No resolved storyline is ready for a callback.")
		}
		finishCommand("callback candidate", start, nil, false, nil)
		return
	}
	if err != nil {
		finishCommand("callback candidate", start, nil, false, err)
		return
	}

	if !jsonOutput && !quietOutput && resp.Storyline != nil {
		s := resp.Storyline
		ux.Title("Callback candidate")
		ux.KeyValue("id", s.ID)
		ux.KeyValue("storyline", s.Title)
		ux.KeyValue("outcome", string(s.Outcome))
		if s.ResolvedAt != nil {
			ux.KeyValue("resolved", formatTime(*s.ResolvedAt))
		}
		if s.OutcomeDescription != "" {
			ux.Muted(s.OutcomeDescription)
		}
	}

	finishCommand("callback candidate", start, resp, false, nil)
}

func runCallbackUsed(cmd *cobra.Command, args []string) {
	start := time.Now()
	id := args[0]

	var resp struct {
		Status      string `json:"status"`
		StorylineID string `json:"storyline_id"`
	}
	if err := postJSON("/v1/callbacks/"+url.PathEscape(id)+"/used", nil, &resp); err != nil {
		finishCommand("callback used", start, nil, false, err)
		return
	}

	if !jsonOutput && !quietOutput {
		ux.Success(fmt.Sprintf("Recorded callback to storyline %s", shortID(id)))
	}

	finishCommand("callback used", start, resp, false, nil)
}
