// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package envscan correlates declared configuration symbols against their
// usages across a source tree and flags anomalies.
//
// # Description
//
// The engine is a pure batch transformation over caller-supplied inputs:
// ordered declaration layers, in-scope source files, and an allow list.
// It runs a fixed pipeline:
//
//	declaration layers ─┐
//	                    ├─> cross-reference index ─> classifier ─> anomalies
//	source files ───────┘
//
// Declaration parsing is strictly sequential in layer-priority order because
// override resolution depends on processing order. Source scanning fans out
// across files with no shared mutable state, then merges deterministically.
// Classification and anomaly detection are pure functions over the merged
// index, so running the pipeline twice on identical input produces
// byte-identical ordered output.
//
// The engine owns no network, persisted state, or cancellation semantics of
// its own; a caller wanting a timeout wraps the context.
package envscan

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

// Run executes one full analysis over the given inputs.
//
// # Inputs
//
//   - ctx: Context for tracing. The engine runs to completion synchronously.
//   - in: Declaration layers, source files, allow list, and options.
//
// # Outputs
//
//   - *Result: Records sorted by name, anomalies sorted by (name, file,
//     line), the dynamic-usage coverage caveat, and all recoverable errors.
//   - error: ErrEmptyInput when there is nothing to analyze. Recoverable
//     parse and scan failures never surface here; they are collected on the
//     Result.
func Run(ctx context.Context, in Inputs) (*Result, error) {
	if len(in.Layers) == 0 && len(in.Sources) == 0 {
		return nil, ErrEmptyInput
	}

	start := time.Now()
	ctx, span := tracer.Start(ctx, "envscan.Run")
	defer span.End()

	store, parseErrs := LoadLayers(in.Layers)
	usages, scanErrs := scanSources(ctx, in.Sources, in.Cache, in.Workers)

	records := BuildIndex(store, usages, in.AllowList)
	Classify(records, in.Rules)
	anomalies := DetectAnomalies(records)

	result := &Result{
		RunID:         uuid.NewString(),
		Records:       records,
		Anomalies:     anomalies,
		DynamicUsages: CountDynamic(usages),
		ParseErrors:   parseErrs,
		ScanErrors:    scanErrs,
		Duration:      time.Since(start),
	}

	span.SetAttributes(
		attribute.Int("records", len(records)),
		attribute.Int("anomalies", len(anomalies)),
		attribute.Int("dynamic_usages", result.DynamicUsages),
	)
	recordRunMetrics(ctx, result, len(in.Sources), len(store.All()), result.Duration)

	return result, nil
}
