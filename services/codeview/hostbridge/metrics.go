// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package hostbridge

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Package-level tracer and meter for host bridge operations.
var (
	tracer = otel.Tracer("aleutian.codeview.hostbridge")
	meter  = otel.Meter("aleutian.codeview.hostbridge")
)

// Metrics for host calls and streams.
var (
	callLatency   metric.Float64Histogram
	callTotal     metric.Int64Counter
	streamEmits   metric.Int64Counter
	staleDiscards metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		callLatency, err = meter.Float64Histogram(
			"codeview_host_call_duration_seconds",
			metric.WithDescription("Duration of extension host calls"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		callTotal, err = meter.Int64Counter(
			"codeview_host_call_total",
			metric.WithDescription("Total number of extension host calls"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		streamEmits, err = meter.Int64Counter(
			"codeview_host_stream_emissions_total",
			metric.WithDescription("Total push stream emissions received"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		staleDiscards, err = meter.Int64Counter(
			"codeview_stale_results_total",
			metric.WithDescription("Provider results discarded as stale"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// startCallSpan creates a span for one host call.
func startCallSpan(ctx context.Context, method string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "Host."+method,
		trace.WithAttributes(attribute.String("host.method", method)),
	)
}

// recordCall records latency and outcome of one host call.
func recordCall(ctx context.Context, method string, duration time.Duration, err error) {
	if initMetrics() != nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("method", method),
		attribute.Bool("success", err == nil),
	)
	callLatency.Record(ctx, duration.Seconds(), attrs)
	callTotal.Add(ctx, 1, attrs)
}

// recordStreamEmission counts one received push-stream payload.
func recordStreamEmission(ctx context.Context, kind string) {
	if initMetrics() != nil {
		return
	}
	streamEmits.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

// RecordStaleDiscard counts a provider result that arrived after its
// viewer or position was no longer current. Called by the hover and
// view layers; staleness is detected there, not on the wire.
func RecordStaleDiscard(ctx context.Context, surface string) {
	if initMetrics() != nil {
		return
	}
	staleDiscards.Add(ctx, 1, metric.WithAttributes(attribute.String("surface", surface)))
}
