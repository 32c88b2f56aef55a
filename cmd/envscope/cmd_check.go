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
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/envscope/services/envscan"
	"github.com/AleutianAI/envscope/services/envscan/cache"
	"github.com/AleutianAI/envscope/services/envscan/discover"
	"github.com/AleutianAI/envscope/services/envscan/report"
	"github.com/AleutianAI/envscope/services/envscan/watch"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	checkFormat      string
	checkJSON        bool
	checkStrict      bool
	checkWatch       bool
	checkCacheDir    string
	checkNoCache     bool
	checkRulesPath   string
	checkAllow       []string
	checkEnvFiles    []string
	checkInclude     []string
	checkExclude     []string
	checkMaxFileSize int64
	checkWorkers     int
)

// =============================================================================
// COMMAND DEFINITION
// =============================================================================

var checkCmd = &cobra.Command{
	Use:   "check [path]",
	Short: "Analyze environment declarations and source usage",
	Long: `Scan a project directory for env-style declaration files and source
code that reads environment variables, then report per-symbol records
and anomalies: missing declarations, unused declarations, typo
candidates, visibility mismatches, and placeholder-only declarations.

Examples:
  envscope check
  envscope check ./web --json
  envscope check --allow DEPLOY_HOOK_URL --strict
  envscope check --env-file .env.ci --env-file .env
  envscope check --watch

Exit Codes:
  0 = Analysis clean
  1 = Missing/unused declarations or anomalies found (with --strict,
      recoverable errors and dynamic accesses count too)
  2 = Error (invalid path, unreadable rules, cache failure)`,
	Args: cobra.MaximumNArgs(1),
	Run:  runCheck,
}

func init() {
	checkCmd.Flags().StringVar(&checkFormat, "format", "text",
		"Output format: text, markdown, json")
	checkCmd.Flags().BoolVar(&checkJSON, "json", false,
		"Output as JSON (shorthand for --format json)")
	checkCmd.Flags().BoolVar(&checkStrict, "strict", false,
		"Treat recoverable parse/scan errors and dynamic accesses as findings")
	checkCmd.Flags().BoolVar(&checkWatch, "watch", false,
		"Re-run analysis when declaration or source files change")
	checkCmd.Flags().StringVar(&checkCacheDir, "cache-dir", "",
		"Directory for the scan cache (default ~/.envscope/cache)")
	checkCmd.Flags().BoolVar(&checkNoCache, "no-cache", false,
		"Disable the scan cache")
	checkCmd.Flags().StringVar(&checkRulesPath, "rules", "",
		"YAML file overriding the built-in classification rules")
	checkCmd.Flags().StringSliceVar(&checkAllow, "allow", nil,
		"Symbols exempt from unused-declaration findings")
	checkCmd.Flags().StringSliceVar(&checkEnvFiles, "env-file", nil,
		"Declaration file names in priority order (default .env.local,.env.development,.env,.env.example)")
	checkCmd.Flags().StringSliceVar(&checkInclude, "include", nil,
		"Only scan source files matching these glob patterns")
	checkCmd.Flags().StringSliceVar(&checkExclude, "exclude", nil,
		"Skip source files matching these glob patterns")
	checkCmd.Flags().Int64Var(&checkMaxFileSize, "max-file-size", discover.DefaultMaxFileSize,
		"Skip source files larger than this size in bytes")
	checkCmd.Flags().IntVar(&checkWorkers, "workers", 0,
		"Number of parallel scan workers (0 = engine default)")

	rootCmd.AddCommand(checkCmd)
}

// =============================================================================
// COMMAND IMPLEMENTATION
// =============================================================================

func runCheck(cmd *cobra.Command, args []string) {
	// Indirection keeps deferred cleanup (cache close, signal release)
	// ahead of the process exit.
	code := executeCheck(args)
	if appLogger != nil {
		appLogger.Close()
	}
	os.Exit(code)
}

func executeCheck(args []string) int {
	root := "."
	if len(args) > 0 {
		root = args[0]
	}
	if _, err := os.Stat(root); err != nil {
		OutputError("Path not found", err)
		return CLIExitError
	}

	format, err := resolveFormat(checkFormat, checkJSON)
	if err != nil {
		OutputError("Invalid format", err)
		return CLIExitError
	}

	var rules *envscan.RuleSet
	if checkRulesPath != "" {
		rules, err = envscan.LoadRuleSet(checkRulesPath)
		if err != nil {
			OutputError("Failed to load rules", err)
			return CLIExitError
		}
	}

	var scanCache envscan.ScanCache
	if !checkNoCache {
		store, err := openCheckCache()
		if err != nil {
			OutputError("Failed to open scan cache", err)
			return CLIExitError
		}
		defer store.Close()
		scanCache = store
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	analyze := func() (*envscan.Result, error) {
		layers, err := discover.Layers(root, checkEnvFiles)
		if err != nil {
			return nil, fmt.Errorf("discover layers: %w", err)
		}
		sources, err := discover.Sources(ctx, root, discover.Options{
			Include:     checkInclude,
			Exclude:     checkExclude,
			MaxFileSize: checkMaxFileSize,
		})
		if err != nil {
			return nil, fmt.Errorf("discover sources: %w", err)
		}
		return envscan.Run(ctx, envscan.Inputs{
			Layers:    layers,
			Sources:   sources,
			AllowList: checkAllow,
			Rules:     rules,
			Cache:     scanCache,
			Workers:   checkWorkers,
		})
	}

	renderer := report.NewRenderer(format == report.FormatText && report.ColorEnabled(os.Stdout))

	runOnce := func() int {
		start := time.Now()
		result, err := analyze()
		if err != nil {
			OutputError("Analysis failed", err)
			return CLIExitError
		}
		appLogger.Debug("analysis complete",
			"run_id", result.RunID,
			"records", len(result.Records),
			"anomalies", len(result.Anomalies),
			"duration_ms", time.Since(start).Milliseconds(),
		)
		if err := renderer.Render(os.Stdout, result, format); err != nil {
			OutputError("Failed to render report", err)
			return CLIExitError
		}
		return checkExitCode(result, checkStrict)
	}

	if !checkWatch {
		return runOnce()
	}

	// Watch mode: report on every change batch, exit zero on interrupt.
	runOnce()
	watcher, err := watch.New(root, func(paths []string) {
		appLogger.Info("change detected", "files", len(paths))
		runOnce()
	}, nil)
	if err != nil {
		OutputError("Failed to create watcher", err)
		return CLIExitError
	}
	if err := watcher.Start(ctx); err != nil {
		OutputError("Failed to start watcher", err)
		return CLIExitError
	}
	fmt.Fprintln(os.Stderr, "Watching for changes (ctrl-c to stop)...")
	<-ctx.Done()
	watcher.Stop()
	return CLIExitSuccess
}

// resolveFormat merges the --format and --json flags. The --json flag wins
// so CI invocations stay short.
func resolveFormat(format string, jsonFlag bool) (report.Format, error) {
	if jsonFlag {
		return report.FormatJSON, nil
	}
	switch report.Format(format) {
	case report.FormatText, report.FormatMarkdown, report.FormatJSON:
		return report.Format(format), nil
	default:
		return "", fmt.Errorf("unknown format %q (want text, markdown, or json)", format)
	}
}

// checkExitCode maps an analysis result to the documented exit codes.
// Missing and unused records count as findings alongside anomalies; they
// are what the report lists.
func checkExitCode(result *envscan.Result, strict bool) int {
	if len(result.Anomalies) > 0 {
		return CLIExitFindings
	}
	for i := range result.Records {
		if result.Records[i].HasFlag(envscan.FlagMissing) || result.Records[i].HasFlag(envscan.FlagUnused) {
			return CLIExitFindings
		}
	}
	if strict && (len(result.ParseErrors) > 0 || len(result.ScanErrors) > 0 || result.DynamicUsages > 0) {
		return CLIExitFindings
	}
	return CLIExitSuccess
}

// openCheckCache opens the persistent scan cache, defaulting to
// ~/.envscope/cache when no directory is given.
func openCheckCache() (*cache.Store, error) {
	dir := checkCacheDir
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve cache directory: %w", err)
		}
		dir = filepath.Join(home, ".envscope", "cache")
	}
	cfg := cache.DefaultConfig(dir)
	cfg.Logger = appLogger.Slog()
	return cache.Open(cfg)
}
