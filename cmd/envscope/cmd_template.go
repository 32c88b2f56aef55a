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
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/envscope/services/envscan"
	"github.com/AleutianAI/envscope/services/envscan/discover"
	"github.com/AleutianAI/envscope/services/envscan/template"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	templateIncludeUnused bool
	templateOutput        string
	templateHeader        string
)

// =============================================================================
// COMMAND DEFINITION
// =============================================================================

var templateCmd = &cobra.Command{
	Use:   "template [path]",
	Short: "Generate a .env.example from observed declarations and usage",
	Long: `Analyze a project and emit a sanitized declaration template: every
symbol that appears in declarations or source usage, grouped by
category, with shape-appropriate placeholders instead of real values.

Examples:
  envscope template
  envscope template ./web -o .env.example
  envscope template --include-unused`,
	Args: cobra.MaximumNArgs(1),
	Run:  runTemplate,
}

func init() {
	templateCmd.Flags().BoolVar(&templateIncludeUnused, "include-unused", false,
		"Include declared symbols that no source file reads")
	templateCmd.Flags().StringVarP(&templateOutput, "output", "o", "",
		"Write the template to this file instead of stdout")
	templateCmd.Flags().StringVar(&templateHeader, "header", "",
		"Custom header comment for the generated file")

	rootCmd.AddCommand(templateCmd)
}

// =============================================================================
// COMMAND IMPLEMENTATION
// =============================================================================

func runTemplate(cmd *cobra.Command, args []string) {
	root := "."
	if len(args) > 0 {
		root = args[0]
	}
	if _, err := os.Stat(root); err != nil {
		OutputError("Path not found", err)
		os.Exit(CLIExitError)
	}

	ctx := context.Background()

	layers, err := discover.Layers(root, nil)
	if err != nil {
		OutputError("Failed to discover declaration files", err)
		os.Exit(CLIExitError)
	}
	sources, err := discover.Sources(ctx, root, discover.Options{})
	if err != nil {
		OutputError("Failed to discover source files", err)
		os.Exit(CLIExitError)
	}

	result, err := envscan.Run(ctx, envscan.Inputs{
		Layers:  layers,
		Sources: sources,
	})
	if err != nil {
		OutputError("Analysis failed", err)
		os.Exit(CLIExitError)
	}

	var out io.Writer = os.Stdout
	var outFile *os.File
	if templateOutput != "" {
		outFile, err = os.Create(templateOutput)
		if err != nil {
			OutputError("Failed to create output file", err)
			os.Exit(CLIExitError)
		}
		out = outFile
	}

	opts := template.Options{
		IncludeUnused: templateIncludeUnused,
		Header:        templateHeader,
	}
	if err := template.Generate(out, result, opts); err != nil {
		OutputError("Failed to generate template", err)
		os.Exit(CLIExitError)
	}
	if outFile != nil {
		if err := outFile.Close(); err != nil {
			OutputError("Failed to write output file", err)
			os.Exit(CLIExitError)
		}
		fmt.Fprintf(os.Stderr, "Wrote %s\n", templateOutput)
	}
	os.Exit(CLIExitSuccess)
}
