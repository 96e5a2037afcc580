// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package threshold decides when a scalar observation stream should fire
// a corrective trigger.
//
// Each trigger kind keeps a rolling observation history and recomputes a
// dynamic threshold per observation: a configured base plus bounded
// correction terms for recent baseline drift, time of day, system load,
// and downstream success feedback. Firing is rate-limited per kind so a
// value that stays past threshold cannot flap.
//
// The adjustment weights are tunable defaults, not calibrated constants;
// every term is clamped and the final threshold is bounded.
package threshold

import "time"

// Defaults for per-kind tuning. All of them are overridable in KindConfig.
const (
	DefaultHistoryCap     = 50
	DefaultMinHistory     = 5
	DefaultRecentWindow   = 10
	DefaultHistoryWeight  = 0.3
	DefaultLoadWeight     = 0.05
	DefaultFeedbackWeight = 0.02
	DefaultCooldown       = 30 * time.Second
	DefaultTriggerTTL     = 5 * time.Second
)

// CircadianRule returns a threshold delta for an hour of day [0, 24).
//
// Negative deltas make a non-inverted kind more sensitive. The engine
// flips the sign for inverted kinds so a rule always expresses
// sensitivity, not raw direction.
type CircadianRule func(hour int) float64

// KindConfig tunes one trigger kind.
type KindConfig struct {
	// Base is the configured base threshold.
	Base float64 `yaml:"base"`

	// Min and Max clamp the computed threshold.
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`

	// Inverted fires on low values instead of high.
	Inverted bool `yaml:"inverted"`

	// Cooldown is the minimum spacing between fires of this kind.
	Cooldown time.Duration `yaml:"cooldown"`

	// Circadian optionally adjusts sensitivity by hour of day.
	Circadian CircadianRule `yaml:"-"`

	// LoadWeight bounds the load adjustment (zero disables).
	LoadWeight float64 `yaml:"load_weight"`

	// FeedbackWeight bounds the success-feedback adjustment (zero
	// disables).
	FeedbackWeight float64 `yaml:"feedback_weight"`

	// HistoryWeight scales the historical baseline-drift term.
	HistoryWeight float64 `yaml:"history_weight"`

	// HistoryCap bounds the observation FIFO.
	HistoryCap int `yaml:"history_cap"`

	// MinHistory is the observation count below which the historical
	// term is exactly zero.
	MinHistory int `yaml:"min_history"`

	// RecentWindow is how many of the newest observations form the
	// "recent" average.
	RecentWindow int `yaml:"recent_window"`
}

// withDefaults fills unset tuning fields.
func (c KindConfig) withDefaults() KindConfig {
	if c.Max == 0 {
		c.Max = 1
	}
	if c.Cooldown == 0 {
		c.Cooldown = DefaultCooldown
	}
	if c.HistoryWeight == 0 {
		c.HistoryWeight = DefaultHistoryWeight
	}
	if c.HistoryCap <= 0 {
		c.HistoryCap = DefaultHistoryCap
	}
	if c.MinHistory <= 0 {
		c.MinHistory = DefaultMinHistory
	}
	if c.RecentWindow <= 0 {
		c.RecentWindow = DefaultRecentWindow
	}
	return c
}

// ActiveWindow builds a circadian rule that increases sensitivity by
// delta inside [startHour, endHour). Windows may wrap midnight.
//
// Use for stress-like kinds that should react faster during the host's
// active hours.
func ActiveWindow(startHour, endHour int, delta float64) CircadianRule {
	return func(hour int) float64 {
		if inHourWindow(hour, startHour, endHour) {
			return -delta
		}
		return 0
	}
}

// RestWindow builds a circadian rule that increases sensitivity by delta
// outside [startHour, endHour), i.e. during rest hours.
//
// Use for recovery-like kinds that matter most when the host is idle.
func RestWindow(startHour, endHour int, delta float64) CircadianRule {
	return func(hour int) float64 {
		if inHourWindow(hour, startHour, endHour) {
			return 0
		}
		return -delta
	}
}

func inHourWindow(hour, start, end int) bool {
	if start <= end {
		return hour >= start && hour < end
	}
	return hour >= start || hour < end // wraps midnight
}
