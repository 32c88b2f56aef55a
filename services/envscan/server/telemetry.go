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
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
)

// TelemetryConfig controls metric export for serve mode.
type TelemetryConfig struct {
	// ServiceName identifies this service in exported metrics.
	ServiceName string

	// ServiceVersion is the version string for this service.
	ServiceVersion string

	// Enabled turns on the Prometheus exporter. When false, the engine's
	// instruments record into a no-op provider.
	Enabled bool
}

// DefaultTelemetryConfig returns the standard serve-mode configuration.
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		ServiceName:    "envscope",
		ServiceVersion: "1.0.0",
		Enabled:        true,
	}
}

// prometheusHandler stores the Prometheus exporter's HTTP handler.
// Access via MetricsHandler().
var (
	prometheusHandler   http.Handler
	prometheusHandlerMu sync.RWMutex
)

// InitTelemetry wires the OpenTelemetry meter provider to a Prometheus
// exporter so the engine's instruments show up on /metrics.
//
// # Outputs
//
//   - shutdown: Cleanup function to call on exit. Never nil on success.
//   - error: Non-nil if the exporter cannot be created.
//
// # Thread Safety
//
// Call once at application startup.
func InitTelemetry(cfg TelemetryConfig) (shutdown func(context.Context) error, err error) {
	if !cfg.Enabled {
		return func(context.Context) error { return nil }, nil
	}

	exporter, err := promexporter.New()
	if err != nil {
		return nil, fmt.Errorf("create prometheus exporter: %w", err)
	}

	res := resource.NewWithAttributes(
		"",
		attribute.String("service.name", cfg.ServiceName),
		attribute.String("service.version", cfg.ServiceVersion),
	)

	mp := metric.NewMeterProvider(
		metric.WithResource(res),
		metric.WithReader(exporter),
	)
	otel.SetMeterProvider(mp)

	// The OTel prometheus exporter registers as a collector with the
	// default prometheus registry, so promhttp.Handler() includes the
	// engine's instruments.
	prometheusHandlerMu.Lock()
	prometheusHandler = promhttp.Handler()
	prometheusHandlerMu.Unlock()

	return mp.Shutdown, nil
}

// MetricsHandler returns the handler for the /metrics endpoint, or nil when
// telemetry is disabled or uninitialized.
//
// Thread Safety: Safe for concurrent use.
func MetricsHandler() http.Handler {
	prometheusHandlerMu.RLock()
	defer prometheusHandlerMu.RUnlock()
	return prometheusHandler
}
