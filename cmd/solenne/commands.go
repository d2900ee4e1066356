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
)

// --- Global Command Variables ---
var (
	personalityLevel string // UX personality level (full/standard/minimal/machine)
	jsonOutput       bool
	compactOutput    bool
	quietOutput      bool
	serviceEndpoint  string // CLI override for the life service address

	listActive   bool
	listResolved bool
	listCategory string

	proposeTitle        string
	proposeCategory     string
	proposeType         string
	proposeTone         string
	proposeStakes       string
	proposeInvolvement  string
	proposeAnnouncement string
	proposeIntensity    float64

	resolveOutcome     string
	resolveDescription string
	resolveEmotion     string

	attemptsLimit int
	factsCategory string

	outcomeCreated     bool
	outcomeStorylineID string
	outcomeReason      string

	servePort        int
	serveBackend     string
	serveDataDir     string
	serveProfilePath string
	serveMetrics     bool

	auditLogPath string

	rootCmd = &cobra.Command{
		Use:   "solenne",
		Short: "A cli to observe and steer Solenne's simulated life",
		Long: `Solenne is a companion persona whose background life runs as a
				service. This tool talks to that service: inspect storylines,
				surface suggestions, force processing passes, and verify the
				creation audit log.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if err := config.Load(); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: could not load config: %v\n", err)
			}
			// Initialize UX personality from flag, config, or environment
			switch {
			case personalityLevel != "":
				ux.SetPersonalityLevel(ux.ParsePersonalityLevel(personalityLevel))
			case config.Global.Output.Personality != "":
				ux.SetPersonalityLevel(ux.ParsePersonalityLevel(config.Global.Output.Personality))
			default:
				ux.InitPersonality()
			}
		},
	}

	// --- Status / Context ---
	statusCmd = &cobra.Command{
		Use:   "status",
		Short: "Show service health, mood, and the most pressing storyline",
		Run:   runStatus, // Defined in cmd_status.go
	}
	contextCmd = &cobra.Command{
		Use:   "context",
		Short: "Show the prompt context block the chat layer would receive",
		Run:   runContext, // Defined in cmd_status.go
	}
	factsCmd = &cobra.Command{
		Use:   "facts",
		Short: "List the character facts accumulated from storylines",
		Run:   runFacts, // Defined in cmd_status.go
	}

	// --- Storylines ---
	storylinesCmd = &cobra.Command{
		Use:   "storylines",
		Short: "Inspect and manage Solenne's life storylines",
	}
	storylinesListCmd = &cobra.Command{
		Use:   "list",
		Short: "List storylines, optionally filtered by state and category",
		Run:   runStorylinesList, // Defined in cmd_storylines.go
	}
	storylinesShowCmd = &cobra.Command{
		Use:   "show [storyline_id]",
		Short: "Show one storyline with its narrative beats",
		Args:  cobra.ExactArgs(1),
		Run:   runStorylinesShow, // Defined in cmd_storylines.go
	}
	storylinesProposeCmd = &cobra.Command{
		Use:   "propose",
		Short: "Propose a new storyline through the creation gate",
		Run:   runStorylinesPropose, // Defined in cmd_storylines.go
	}
	storylinesResolveCmd = &cobra.Command{
		Use:   "resolve [storyline_id]",
		Short: "Resolve an active storyline with an outcome",
		Args:  cobra.ExactArgs(1),
		Run:   runStorylinesResolve, // Defined in cmd_storylines.go
	}
	storylinesDeleteCmd = &cobra.Command{
		Use:   "delete [storyline_id]",
		Short: "Delete a storyline and its beats (operator cleanup)",
		Args:  cobra.ExactArgs(1),
		Run:   runStorylinesDelete, // Defined in cmd_storylines.go
	}
	storylinesAttemptsCmd = &cobra.Command{
		Use:   "attempts",
		Short: "List recent creation attempts and why they passed or failed",
		Run:   runStorylinesAttempts, // Defined in cmd_storylines.go
	}

	// --- Suggestions ---
	suggestionCmd = &cobra.Command{
		Use:   "suggestion",
		Short: "Work with the idle-absence storyline suggestion",
	}
	suggestionPendingCmd = &cobra.Command{
		Use:   "pending",
		Short: "Show the suggestion waiting to be surfaced, if any",
		Run:   runSuggestionPending, // Defined in cmd_suggestions.go
	}
	suggestionSurfacedCmd = &cobra.Command{
		Use:   "surfaced [suggestion_id]",
		Short: "Record that a suggestion was shown to the user",
		Args:  cobra.ExactArgs(1),
		Run:   runSuggestionSurfaced, // Defined in cmd_suggestions.go
	}
	suggestionOutcomeCmd = &cobra.Command{
		Use:   "outcome [suggestion_id]",
		Short: "Record what the user made of a surfaced suggestion",
		Args:  cobra.ExactArgs(1),
		Run:   runSuggestionOutcome, // Defined in cmd_suggestions.go
	}

	// --- Callbacks ---
	callbackCmd = &cobra.Command{
		Use:   "callback",
		Short: "Select and record conversational callbacks to resolved storylines",
	}
	callbackCandidateCmd = &cobra.Command{
		Use:   "candidate",
		Short: "Pick a resolved storyline worth referencing in conversation",
		Run:   runCallbackCandidate, // Defined in cmd_callbacks.go
	}
	callbackUsedCmd = &cobra.Command{
		Use:   "used [storyline_id]",
		Short: "Record that a callback to a storyline was used",
		Args:  cobra.ExactArgs(1),
		Run:   runCallbackUsed, // Defined in cmd_callbacks.go
	}

	// --- Processing ---
	processCmd = &cobra.Command{
		Use:   "process",
		Short: "Force a storyline processing pass now",
		Run:   runProcess, // Defined in cmd_process.go
	}

	// --- Serve ---
	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the life service in-process",
		Run:   runServe, // Defined in cmd_serve.go
	}

	// --- Audit ---
	auditCmd = &cobra.Command{
		Use:   "audit",
		Short: "Inspect the creation attempt audit log",
	}
	auditVerifyCmd = &cobra.Command{
		Use:   "verify",
		Short: "Verify the hash chain of the creation attempt log",
		Long: `Walks the append-only creation attempt log and checks every
				record's link hash and entry hash. A broken chain means the
				log was edited after the fact.`,
		Run: runAuditVerify, // Defined in cmd_audit.go
	}
)

// init runs when the Go program starts
func init() {
	// Global output flags
	rootCmd.PersistentFlags().StringVar(&personalityLevel, "personality", "",
		"Output style: full (default, rich), standard, minimal, or machine (scripting)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Emit a JSON result envelope on stdout")
	rootCmd.PersistentFlags().BoolVar(&compactOutput, "compact", false, "JSON output without indentation")
	rootCmd.PersistentFlags().BoolVarP(&quietOutput, "quiet", "q", false, "No output, exit code only")
	rootCmd.PersistentFlags().StringVar(&serviceEndpoint, "endpoint", "",
		"Life service address (default from ~/.solenne/solenne.yaml)")

	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(contextCmd)
	rootCmd.AddCommand(factsCmd)
	factsCmd.Flags().StringVar(&factsCategory, "category", "", "Filter facts by category (e.g. experiences)")

	// storyline commands
	rootCmd.AddCommand(storylinesCmd)
	storylinesCmd.AddCommand(storylinesListCmd)
	storylinesListCmd.Flags().BoolVar(&listActive, "active", false, "Only the active storyline")
	storylinesListCmd.Flags().BoolVar(&listResolved, "resolved", false, "Only resolved storylines")
	storylinesListCmd.Flags().StringVar(&listCategory, "category", "", "Filter by category (work, personal, family, social, creative)")

	storylinesCmd.AddCommand(storylinesShowCmd)

	storylinesCmd.AddCommand(storylinesProposeCmd)
	storylinesProposeCmd.Flags().StringVar(&proposeTitle, "title", "", "Storyline title (required)")
	storylinesProposeCmd.Flags().StringVar(&proposeCategory, "category", "", "Category: work, personal, family, social, or creative (required)")
	storylinesProposeCmd.Flags().StringVar(&proposeType, "type", "", "Type: project, opportunity, challenge, relationship, or goal (required)")
	storylinesProposeCmd.Flags().StringVar(&proposeAnnouncement, "announcement", "", "How Solenne first mentions this (required)")
	storylinesProposeCmd.Flags().StringVar(&proposeTone, "tone", "excited", "Current emotional tone")
	storylinesProposeCmd.Flags().Float64Var(&proposeIntensity, "intensity", 0.5, "Emotional intensity, 0 to 1")
	storylinesProposeCmd.Flags().StringVar(&proposeStakes, "stakes", "", "What is at stake")
	storylinesProposeCmd.Flags().StringVar(&proposeInvolvement, "involvement", "aware", "User involvement: none, aware, supportive, involved, or central")
	storylinesProposeCmd.MarkFlagRequired("title")
	storylinesProposeCmd.MarkFlagRequired("category")
	storylinesProposeCmd.MarkFlagRequired("type")
	storylinesProposeCmd.MarkFlagRequired("announcement")

	storylinesCmd.AddCommand(storylinesResolveCmd)
	storylinesResolveCmd.Flags().StringVar(&resolveOutcome, "outcome", "", "Outcome: success, failure, abandoned, or transformed (required)")
	storylinesResolveCmd.Flags().StringVar(&resolveDescription, "description", "", "How it ended (generated when omitted)")
	storylinesResolveCmd.Flags().StringVar(&resolveEmotion, "emotion", "", "Resolution emotion")
	storylinesResolveCmd.MarkFlagRequired("outcome")

	storylinesCmd.AddCommand(storylinesDeleteCmd)

	storylinesCmd.AddCommand(storylinesAttemptsCmd)
	storylinesAttemptsCmd.Flags().IntVar(&attemptsLimit, "limit", 20, "Number of attempts to list, newest first")

	// suggestion commands
	rootCmd.AddCommand(suggestionCmd)
	suggestionCmd.AddCommand(suggestionPendingCmd)
	suggestionCmd.AddCommand(suggestionSurfacedCmd)
	suggestionCmd.AddCommand(suggestionOutcomeCmd)
	suggestionOutcomeCmd.Flags().BoolVar(&outcomeCreated, "created", false, "The suggestion became a storyline")
	suggestionOutcomeCmd.Flags().StringVar(&outcomeStorylineID, "storyline-id", "", "The resulting storyline id (with --created)")
	suggestionOutcomeCmd.Flags().StringVar(&outcomeReason, "reason", "", "Rejection reason: not_interested, bad_timing, duplicate_concern, or other")

	// callback commands
	rootCmd.AddCommand(callbackCmd)
	callbackCmd.AddCommand(callbackCandidateCmd)
	callbackCmd.AddCommand(callbackUsedCmd)

	rootCmd.AddCommand(processCmd)

	// serve command
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().IntVar(&servePort, "port", DefaultServicePort, "Port to listen on")
	serveCmd.Flags().StringVar(&serveBackend, "backend", "ollama", "LLM backend (ollama, openai, claude)")
	serveCmd.Flags().StringVar(&serveDataDir, "data-dir", "./data/life", "Badger data directory")
	serveCmd.Flags().StringVar(&serveProfilePath, "profile", "", "Persona profile JSON to hot-reload (built-in when empty)")
	serveCmd.Flags().BoolVar(&serveMetrics, "metrics", true, "Expose Prometheus metrics at /metrics")

	// audit commands
	rootCmd.AddCommand(auditCmd)
	auditCmd.AddCommand(auditVerifyCmd)
	auditVerifyCmd.Flags().StringVar(&auditLogPath, "log", "", "Attempt log path (default from config)")
}
