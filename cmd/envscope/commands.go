// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"github.com/spf13/cobra"

	"github.com/AleutianAI/envscope/pkg/logging"
)

// --- Global Command Variables ---
var (
	verbose bool
	logDir  string

	// appLogger is initialized in PersistentPreRun and shared by all
	// subcommands.
	appLogger *logging.Logger

	rootCmd = &cobra.Command{
		Use:   "envscope",
		Short: "Cross-reference environment declarations against source usage",
		Long: `Envscope joins layered env-style declaration files with lexical
scans of source code, then reports which variables are declared, used,
missing, stale, or leaking across visibility boundaries.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := logging.LevelInfo
			if verbose {
				level = logging.LevelDebug
			}
			appLogger = logging.New(logging.Config{
				Level:   level,
				LogDir:  logDir,
				Service: "envscope",
			})
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if appLogger != nil {
				appLogger.Close()
			}
		},
	}
)

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&logDir, "log-dir", "",
		"Write JSON logs to this directory (supports ~ expansion)")
}
