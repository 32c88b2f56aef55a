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
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/envscope/services/envscan"
	"github.com/AleutianAI/envscope/services/envscan/cache"
	"github.com/AleutianAI/envscope/services/envscan/server"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	serveAddr      string
	serveCacheDir  string
	serveRulesPath string
	serveWorkers   int
)

// =============================================================================
// COMMAND DEFINITION
// =============================================================================

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the analysis engine as an HTTP service",
	Long: `Start an HTTP server exposing the analysis engine. Clients POST
declaration and source content to /v1/envscan/analyze and receive the
full cross-reference result; /v1/envscan/template returns a sanitized
declaration template. Prometheus metrics are served on /metrics.

Examples:
  envscope serve
  envscope serve --addr :8080 --cache-dir /var/cache/envscope`,
	Args: cobra.NoArgs,
	Run:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":12230",
		"Listen address")
	serveCmd.Flags().StringVar(&serveCacheDir, "cache-dir", "",
		"Directory for the scan cache (empty = in-memory cache)")
	serveCmd.Flags().StringVar(&serveRulesPath, "rules", "",
		"YAML file overriding the built-in classification rules")
	serveCmd.Flags().IntVar(&serveWorkers, "workers", 0,
		"Scan workers per request (0 = engine default)")

	rootCmd.AddCommand(serveCmd)
}

// =============================================================================
// COMMAND IMPLEMENTATION
// =============================================================================

func runServe(cmd *cobra.Command, args []string) {
	code := executeServe()
	if appLogger != nil {
		appLogger.Close()
	}
	os.Exit(code)
}

func executeServe() int {
	slogger := appLogger.Slog()

	var rules *envscan.RuleSet
	if serveRulesPath != "" {
		loaded, err := envscan.LoadRuleSet(serveRulesPath)
		if err != nil {
			OutputError("Failed to load rules", err)
			return CLIExitError
		}
		rules = loaded
	}

	var store *cache.Store
	var err error
	if serveCacheDir != "" {
		cfg := cache.DefaultConfig(serveCacheDir)
		cfg.Logger = slogger
		store, err = cache.Open(cfg)
	} else {
		store, err = cache.OpenInMemory()
	}
	if err != nil {
		OutputError("Failed to open scan cache", err)
		return CLIExitError
	}
	defer store.Close()

	shutdownTelemetry, err := server.InitTelemetry(server.DefaultTelemetryConfig())
	if err != nil {
		// Metrics are not worth refusing to serve over.
		appLogger.Warn("telemetry init failed", "error", err)
		shutdownTelemetry = func(context.Context) error { return nil }
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	server.SetupRoutes(router, &server.Server{
		Logger:  slogger,
		Cache:   store,
		Rules:   rules,
		Workers: serveWorkers,
	})

	srv := &http.Server{
		Addr:              serveAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		appLogger.Info("server listening", "addr", serveAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			OutputError("Server failed", err)
			return CLIExitError
		}
	case <-ctx.Done():
		appLogger.Info("shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			appLogger.Error("graceful shutdown failed", "error", err)
		}
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			appLogger.Warn("telemetry shutdown failed", "error", err)
		}
	}
	return CLIExitSuccess
}
