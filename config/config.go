// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads and validates the limbic daemon's YAML
// configuration: bus admission tuning, per-kind cooldowns, adaptive
// threshold tuning, and the HTTP listen surface.
//
// Threshold tuning supports hot reload through Watcher; bus topology
// (history capacity, listen address) is fixed at startup.
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/limbic/signal"
	"github.com/AleutianAI/limbic/threshold"
)

// Duration is a time.Duration that round-trips through YAML as a humane
// string ("800ms", "30s"). Bare integers are taken as nanoseconds.
type Duration time.Duration

// Std returns the standard library form.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw any
	if err := value.Decode(&raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case string:
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", v, err)
		}
		*d = Duration(parsed)
	case int:
		*d = Duration(v)
	case int64:
		*d = Duration(v)
	case float64:
		*d = Duration(int64(v))
	default:
		return fmt.Errorf("invalid duration value %v", raw)
	}
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Config is the root of the limbic daemon configuration.
type Config struct {
	// Bus tunes signal admission and retention.
	Bus BusConfig `yaml:"bus"`

	// Thresholds tunes the adaptive trigger engine per kind.
	Thresholds map[string]ThresholdConfig `yaml:"thresholds" validate:"dive"`

	// HTTP configures the read-only inspection API.
	HTTP HTTPConfig `yaml:"http"`

	// Logging configures the structured logger.
	Logging LoggingConfig `yaml:"logging"`

	// Telemetry toggles the Prometheus metrics endpoint.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// BusConfig tunes signal admission and retention.
type BusConfig struct {
	// Cooldowns maps a signal kind to its minimum publish spacing per
	// (kind, source) pair. Kinds absent from the map are never throttled.
	Cooldowns map[string]Duration `yaml:"cooldowns"`

	// HistoryCap bounds the retained signal history ring.
	HistoryCap int `yaml:"history_cap" validate:"gte=0,lte=100000"`

	// RecentCap bounds each per-kind recent window used for pattern
	// matching.
	RecentCap int `yaml:"recent_cap" validate:"gte=0,lte=10000"`

	// SweepInterval is how often expired signals are evicted.
	SweepInterval Duration `yaml:"sweep_interval"`
}

// ThresholdConfig tunes one adaptive trigger kind. It mirrors the
// engine's KindConfig with a serializable circadian form.
type ThresholdConfig struct {
	Base     float64  `yaml:"base" validate:"gte=0,lte=1"`
	Min      float64  `yaml:"min" validate:"gte=0,lte=1,ltefield=Max"`
	Max      float64  `yaml:"max" validate:"gte=0,lte=1"`
	Inverted bool     `yaml:"inverted"`
	Cooldown Duration `yaml:"cooldown" validate:"gte=0"`

	// Circadian optionally adjusts sensitivity by hour of day.
	Circadian *CircadianConfig `yaml:"circadian,omitempty"`

	LoadWeight     float64 `yaml:"load_weight" validate:"gte=0,lte=0.5"`
	FeedbackWeight float64 `yaml:"feedback_weight" validate:"gte=0,lte=0.5"`
	HistoryWeight  float64 `yaml:"history_weight" validate:"gte=0,lte=1"`
	HistoryCap     int     `yaml:"history_cap" validate:"gte=0,lte=10000"`
	MinHistory     int     `yaml:"min_history" validate:"gte=0"`
	RecentWindow   int     `yaml:"recent_window" validate:"gte=0"`
}

// CircadianConfig is the serializable form of a circadian rule.
type CircadianConfig struct {
	// Mode is "active" (more sensitive inside the window) or "rest"
	// (more sensitive outside it).
	Mode string `yaml:"mode" validate:"oneof=active rest"`

	// StartHour and EndHour bound the window [start, end). Windows may
	// wrap midnight.
	StartHour int `yaml:"start_hour" validate:"gte=0,lte=23"`
	EndHour   int `yaml:"end_hour" validate:"gte=0,lte=23"`

	// Delta is the sensitivity adjustment applied by the rule.
	Delta float64 `yaml:"delta" validate:"gte=0,lte=0.5"`
}

// Rule materializes the config into an engine circadian rule.
func (c *CircadianConfig) Rule() threshold.CircadianRule {
	if c == nil {
		return nil
	}
	if c.Mode == "rest" {
		return threshold.RestWindow(c.StartHour, c.EndHour, c.Delta)
	}
	return threshold.ActiveWindow(c.StartHour, c.EndHour, c.Delta)
}

// KindConfig converts the serializable tuning into the engine form.
func (t ThresholdConfig) KindConfig() threshold.KindConfig {
	return threshold.KindConfig{
		Base:           t.Base,
		Min:            t.Min,
		Max:            t.Max,
		Inverted:       t.Inverted,
		Cooldown:       t.Cooldown.Std(),
		Circadian:      t.Circadian.Rule(),
		LoadWeight:     t.LoadWeight,
		FeedbackWeight: t.FeedbackWeight,
		HistoryWeight:  t.HistoryWeight,
		HistoryCap:     t.HistoryCap,
		MinHistory:     t.MinHistory,
		RecentWindow:   t.RecentWindow,
	}
}

// HTTPConfig configures the read-only inspection API.
type HTTPConfig struct {
	// Enabled turns the HTTP listener on.
	Enabled bool `yaml:"enabled"`

	// Addr is the listen address, e.g. ":8087".
	Addr string `yaml:"addr" validate:"required_if=Enabled true"`
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`

	// Format is "json" or "text".
	Format string `yaml:"format" validate:"omitempty,oneof=json text"`
}

// TelemetryConfig toggles the Prometheus metrics endpoint.
type TelemetryConfig struct {
	Enabled bool `yaml:"enabled"`
}

// DefaultConfig returns a runnable configuration: moderate cooldowns for
// the built-in kinds (alerts never throttled), conservative threshold
// tuning for stress and recovery, and the API on :8087.
func DefaultConfig() Config {
	return Config{
		Bus: BusConfig{
			Cooldowns: map[string]Duration{
				signal.KindStress.String():   Duration(800 * time.Millisecond),
				signal.KindRecovery.String(): Duration(2 * time.Second),
				signal.KindNovelty.String():  Duration(500 * time.Millisecond),
				signal.KindReward.String():   Duration(time.Second),
				// alert intentionally absent: never throttled
			},
			HistoryCap:    512,
			RecentCap:     64,
			SweepInterval: Duration(time.Second),
		},
		Thresholds: map[string]ThresholdConfig{
			signal.KindStress.String(): {
				Base:           0.7,
				Min:            0.2,
				Max:            0.95,
				Cooldown:       Duration(30 * time.Second),
				LoadWeight:     threshold.DefaultLoadWeight,
				FeedbackWeight: threshold.DefaultFeedbackWeight,
				HistoryWeight:  threshold.DefaultHistoryWeight,
				Circadian: &CircadianConfig{
					Mode:      "active",
					StartHour: 9,
					EndHour:   17,
					Delta:     0.05,
				},
			},
			signal.KindRecovery.String(): {
				Base:           0.3,
				Min:            0.05,
				Max:            0.8,
				Inverted:       true,
				Cooldown:       Duration(time.Minute),
				LoadWeight:     threshold.DefaultLoadWeight,
				FeedbackWeight: threshold.DefaultFeedbackWeight,
				HistoryWeight:  threshold.DefaultHistoryWeight,
				Circadian: &CircadianConfig{
					Mode:      "rest",
					StartHour: 9,
					EndHour:   17,
					Delta:     0.05,
				},
			},
		},
		HTTP: HTTPConfig{
			Enabled: true,
			Addr:    ":8087",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Telemetry: TelemetryConfig{
			Enabled: true,
		},
	}
}

var validate = validator.New()

// Validate checks structural constraints on the configuration.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	for kind, t := range c.Thresholds {
		if t.Max != 0 && t.Base > t.Max || t.Base < t.Min {
			return fmt.Errorf("config validation failed: thresholds[%s]: base %v outside bounds [%v, %v]",
				kind, t.Base, t.Min, t.Max)
		}
	}
	return nil
}
