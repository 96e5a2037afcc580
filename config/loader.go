// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/limbic/bus"
	"github.com/AleutianAI/limbic/signal"
)

// Load reads and validates a configuration file.
//
// Description:
//
//	Unknown YAML keys are rejected so typos fail loudly instead of
//	silently falling back to defaults. Fields absent from the file keep
//	their zero values; callers that want full defaults for an absent
//	file should use LoadOrDefault.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// LoadOrDefault loads the file at path, creating it with defaults first
// if it does not exist.
func LoadOrDefault(path string) (Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := WriteDefault(path); err != nil {
			return Config{}, err
		}
	}
	return Load(path)
}

// Parse decodes and validates raw YAML configuration.
func Parse(data []byte) (Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// WriteDefault writes the default configuration to path, creating parent
// directories as needed.
func WriteDefault(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// BusConfig converts the bus section into the bus package's form.
func (c *Config) BusConfig() bus.Config {
	cooldowns := make(map[signal.Kind]time.Duration, len(c.Bus.Cooldowns))
	for kind, d := range c.Bus.Cooldowns {
		cooldowns[signal.Kind(kind)] = d.Std()
	}
	return bus.Config{
		Cooldowns:     cooldowns,
		HistoryCap:    c.Bus.HistoryCap,
		RecentCap:     c.Bus.RecentCap,
		SweepInterval: c.Bus.SweepInterval.Std(),
	}
}
