// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package server exposes the analysis engine over HTTP for editor plugins
// and CI bots that want results without shelling out to the CLI.
package server

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/envscope/services/envscan"
)

// Server carries the dependencies the HTTP handlers need.
type Server struct {
	// Logger receives request-level diagnostics. Required.
	Logger *slog.Logger

	// Cache optionally reuses scan results across requests.
	Cache envscan.ScanCache

	// Rules overrides the default classification rules. Nil selects the
	// built-in default rule set per request.
	Rules *envscan.RuleSet

	// Workers bounds the scan fan-out per request. Zero selects the
	// engine default.
	Workers int
}

// SetupRoutes registers all endpoints on the router.
func SetupRoutes(router *gin.Engine, s *Server) {
	router.GET("/health", HealthCheck)
	if h := MetricsHandler(); h != nil {
		router.GET("/metrics", gin.WrapH(h))
	}

	v1 := router.Group("/v1")
	{
		envscanGroup := v1.Group("/envscan")
		{
			envscanGroup.POST("/analyze", HandleAnalyze(s))
			envscanGroup.POST("/template", HandleTemplate(s))
		}
	}
}

// HealthCheck reports liveness.
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
