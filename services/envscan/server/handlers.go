// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/envscope/services/envscan"
	"github.com/AleutianAI/envscope/services/envscan/template"
)

// AnalyzeRequest is the payload for /v1/envscan/analyze and
// /v1/envscan/template. The caller supplies file contents directly; the
// server never reads the caller's filesystem.
type AnalyzeRequest struct {
	Layers    []envscan.Layer      `json:"layers"`
	Sources   []envscan.SourceFile `json:"sources"`
	AllowList []string             `json:"allow_list,omitempty"`

	// IncludeUnused only affects /template: keep declared-but-unused
	// symbols in the generated file.
	IncludeUnused bool `json:"include_unused,omitempty"`
}

// HandleAnalyze runs a full analysis and returns the result as JSON.
func HandleAnalyze(s *Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req AnalyzeRequest
		if err := c.BindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}

		result, err := s.run(c, req)
		if err != nil {
			return // response already written
		}

		s.Logger.Info("analysis served",
			"run_id", result.RunID,
			"records", len(result.Records),
			"anomalies", len(result.Anomalies))
		c.JSON(http.StatusOK, result)
	}
}

// HandleTemplate runs an analysis and returns a generated .env.example as
// plain text.
func HandleTemplate(s *Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req AnalyzeRequest
		if err := c.BindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}

		result, err := s.run(c, req)
		if err != nil {
			return
		}

		c.Header("Content-Type", "text/plain; charset=utf-8")
		c.Status(http.StatusOK)
		if err := template.Generate(c.Writer, result, template.Options{
			IncludeUnused: req.IncludeUnused,
		}); err != nil {
			s.Logger.Error("template render failed", "error", err)
		}
	}
}

// run executes the engine for a request, writing the error response itself
// when the run fails.
func (s *Server) run(c *gin.Context, req AnalyzeRequest) (*envscan.Result, error) {
	result, err := envscan.Run(c.Request.Context(), envscan.Inputs{
		Layers:    req.Layers,
		Sources:   req.Sources,
		AllowList: req.AllowList,
		Rules:     s.Rules,
		Cache:     s.Cache,
		Workers:   s.Workers,
	})
	if err != nil {
		if errors.Is(err, envscan.ErrEmptyInput) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return nil, err
		}
		s.Logger.Error("analysis failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return nil, err
	}
	return result, nil
}
