// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command envscope cross-references environment variable declarations
// against source code usage.
//
// # Usage
//
//	# Analyze the current directory
//	envscope check
//
//	# Machine-readable output for CI
//	envscope check --json
//
//	# Generate a .env.example from observed usage
//	envscope template -o .env.example
//
//	# Run as an HTTP service
//	envscope serve --addr :12230
package main

import (
	"os"
)

func main() {
	// Execute the root command. Cobra handles parsing the arguments.
	// Subcommands call os.Exit directly with their documented exit codes;
	// reaching here with an error means cobra itself rejected the input.
	if err := rootCmd.Execute(); err != nil {
		os.Exit(CLIExitError)
	}
}
