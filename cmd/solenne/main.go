// Copyright (C) 2026 Solenne AI (dev@solenne.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Command solenne is the operator CLI for the Solenne life service.
//
// It talks to a running life service over HTTP (solenne status,
// storylines, suggestion, callback, process), runs the service
// in-process (solenne serve), and verifies the creation audit log
// offline (solenne audit verify).
package main

import (
	"os"
)

func main() {
	// Execute the root command. Cobra handles parsing the arguments
	// and prints its own error message.
	if err := rootCmd.Execute(); err != nil {
		os.Exit(CLIExitError)
	}
}
