// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/AleutianAI/limbic/bus"
	"github.com/AleutianAI/limbic/threshold"
)

// StatsSource is the slice of the bus the observer reads.
type StatsSource interface {
	Statistics() bus.Stats
}

// ThresholdSource is the slice of the engine the observer reads.
type ThresholdSource interface {
	Snapshots() []threshold.Snapshot
}

// Metrics contains the pre-defined instruments for the limbic daemon.
//
// Description:
//
//	Cumulative bus counters and the per-kind dynamic thresholds are
//	exported as observable instruments reading the bus's own atomics, so
//	the hot publish path carries no extra instrumentation cost. The
//	publish duration histogram is recorded inline by callers that time
//	their own publishes. All metrics use the "limbic_" prefix.
//
// Thread Safety: Safe for concurrent use after creation.
type Metrics struct {
	// PublishDuration records signal publish duration in seconds.
	PublishDuration metric.Float64Histogram

	// ObservationsTotal counts threshold engine observations by kind.
	ObservationsTotal metric.Int64Counter

	registration metric.Registration
}

// NewMetrics registers all limbic instruments with the meter.
//
// Inputs:
//
//	meter - The OTel meter to register with.
//	stats - The bus statistics source. Must not be nil.
//	thresholds - The threshold snapshot source. May be nil.
//
// Outputs:
//
//	*Metrics - The instrument set with all instruments initialized.
//	error - Non-nil if any registration fails.
func NewMetrics(meter metric.Meter, stats StatsSource, thresholds ThresholdSource) (*Metrics, error) {
	m := &Metrics{}
	var err error

	m.PublishDuration, err = meter.Float64Histogram(
		"limbic_publish_duration_seconds",
		metric.WithDescription("Signal publish duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.00001, 0.0001, 0.001, 0.005, 0.01, 0.05, 0.1),
	)
	if err != nil {
		return nil, fmt.Errorf("create publish_duration: %w", err)
	}

	m.ObservationsTotal, err = meter.Int64Counter(
		"limbic_observations_total",
		metric.WithDescription("Threshold engine observations"),
		metric.WithUnit("{observation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create observations_total: %w", err)
	}

	published, err := meter.Int64ObservableCounter(
		"limbic_signals_published_total",
		metric.WithDescription("Signals accepted onto the bus"),
		metric.WithUnit("{signal}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create signals_published_total: %w", err)
	}

	delivered, err := meter.Int64ObservableCounter(
		"limbic_signals_delivered_total",
		metric.WithDescription("Signal deliveries to subscribers"),
		metric.WithUnit("{delivery}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create signals_delivered_total: %w", err)
	}

	dropped, err := meter.Int64ObservableCounter(
		"limbic_signals_dropped_total",
		metric.WithDescription("Signals dropped by cooldown"),
		metric.WithUnit("{signal}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create signals_dropped_total: %w", err)
	}

	vetoed, err := meter.Int64ObservableCounter(
		"limbic_signals_vetoed_total",
		metric.WithDescription("Signals vetoed by modulation"),
		metric.WithUnit("{signal}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create signals_vetoed_total: %w", err)
	}

	faulted, err := meter.Int64ObservableCounter(
		"limbic_signals_faulted_total",
		metric.WithDescription("Malformed signals rejected before admission"),
		metric.WithUnit("{signal}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create signals_faulted_total: %w", err)
	}

	handlerFaults, err := meter.Int64ObservableCounter(
		"limbic_handler_faults_total",
		metric.WithDescription("Subscriber handler panics recovered"),
		metric.WithUnit("{fault}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create handler_faults_total: %w", err)
	}

	patternMatches, err := meter.Int64ObservableCounter(
		"limbic_pattern_matches_total",
		metric.WithDescription("Pattern matcher fires"),
		metric.WithUnit("{match}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create pattern_matches_total: %w", err)
	}

	activeSignals, err := meter.Int64ObservableGauge(
		"limbic_active_signals",
		metric.WithDescription("Signals currently live (unexpired)"),
		metric.WithUnit("{signal}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create active_signals: %w", err)
	}

	subscribers, err := meter.Int64ObservableGauge(
		"limbic_subscribers",
		metric.WithDescription("Registered subscribers including taps"),
		metric.WithUnit("{subscriber}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create subscribers: %w", err)
	}

	thresholdGauge, err := meter.Float64ObservableGauge(
		"limbic_threshold",
		metric.WithDescription("Current dynamic threshold per kind"),
	)
	if err != nil {
		return nil, fmt.Errorf("create threshold: %w", err)
	}

	triggerFires, err := meter.Int64ObservableCounter(
		"limbic_trigger_fires_total",
		metric.WithDescription("Adaptive threshold trigger fires by kind"),
		metric.WithUnit("{fire}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create trigger_fires_total: %w", err)
	}

	m.registration, err = meter.RegisterCallback(
		func(_ context.Context, o metric.Observer) error {
			s := stats.Statistics()
			o.ObserveInt64(published, int64(s.Published))
			o.ObserveInt64(delivered, int64(s.Delivered))
			o.ObserveInt64(dropped, int64(s.Dropped))
			o.ObserveInt64(vetoed, int64(s.Vetoed))
			o.ObserveInt64(faulted, int64(s.Faulted))
			o.ObserveInt64(handlerFaults, int64(s.HandlerFaults))
			o.ObserveInt64(patternMatches, int64(s.PatternMatches))
			o.ObserveInt64(activeSignals, int64(s.ActiveSignals))

			subs := s.Taps
			for _, n := range s.Subscribers {
				subs += n
			}
			o.ObserveInt64(subscribers, int64(subs))

			if thresholds != nil {
				for _, snap := range thresholds.Snapshots() {
					attrs := metric.WithAttributes(attribute.String("kind", snap.Kind.String()))
					o.ObserveFloat64(thresholdGauge, snap.Threshold, attrs)
					o.ObserveInt64(triggerFires, int64(snap.Fires), attrs)
				}
			}
			return nil
		},
		published, delivered, dropped, vetoed, faulted, handlerFaults,
		patternMatches, activeSignals, subscribers, thresholdGauge, triggerFires,
	)
	if err != nil {
		return nil, fmt.Errorf("register observer callback: %w", err)
	}

	return m, nil
}

// Close unregisters the observable callback.
func (m *Metrics) Close() error {
	if m.registration == nil {
		return nil
	}
	return m.registration.Unregister()
}
