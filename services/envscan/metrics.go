// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package envscan

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Package-level tracer and meter for analysis runs.
var (
	tracer = otel.Tracer("envscope.envscan")
	meter  = otel.Meter("envscope.envscan")
)

// Metrics for analysis runs.
var (
	runDuration   metric.Float64Histogram
	runsTotal     metric.Int64Counter
	filesScanned  metric.Int64Counter
	declsParsed   metric.Int64Counter
	anomaliesSeen metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		runDuration, err = meter.Float64Histogram(
			"envscan_run_duration_seconds",
			metric.WithDescription("Duration of full analysis runs"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		runsTotal, err = meter.Int64Counter(
			"envscan_runs_total",
			metric.WithDescription("Total number of analysis runs"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		filesScanned, err = meter.Int64Counter(
			"envscan_files_scanned_total",
			metric.WithDescription("Source files scanned for usages"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		declsParsed, err = meter.Int64Counter(
			"envscan_declarations_total",
			metric.WithDescription("Declarations parsed from layers"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		anomaliesSeen, err = meter.Int64Counter(
			"envscan_anomalies_total",
			metric.WithDescription("Anomalies emitted, by kind"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// recordRunMetrics publishes metrics for one completed run.
func recordRunMetrics(ctx context.Context, result *Result, fileCount, declCount int, elapsed time.Duration) {
	if initMetrics() != nil {
		return
	}
	runsTotal.Add(ctx, 1)
	filesScanned.Add(ctx, int64(fileCount))
	declsParsed.Add(ctx, int64(declCount))
	runDuration.Record(ctx, elapsed.Seconds())
	for _, a := range result.Anomalies {
		anomaliesSeen.Add(ctx, 1, metric.WithAttributes(
			attribute.String("kind", string(a.Kind)),
		))
	}
}
