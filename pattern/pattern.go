// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package pattern detects composite conditions across recent signals.
//
// A single signal is often not actionable on its own; three stress
// signals from two subsystems inside half a second is. Patterns declare
// such conditions (kinds, count, time window, field filters) and are
// evaluated synchronously after every accepted publish, bounding
// detection latency to publish cadence without a second polling loop.
package pattern

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/AleutianAI/limbic/signal"
)

// Configuration errors raised eagerly at registration time.
var (
	ErrNilCallback  = errors.New("pattern: callback must not be nil")
	ErrBadMinCount  = errors.New("pattern: min count must be at least 1")
	ErrBadWindow    = errors.New("pattern: window must not be negative")
	ErrBadLevelBand = errors.New("pattern: level min must not exceed level max")
)

// Callback is invoked with the matching envelopes, oldest first.
type Callback func(matched []*signal.Envelope)

// Pattern declares a composite condition over recent signals.
type Pattern struct {
	// Kinds restricts which signal kinds are considered. Empty means all.
	Kinds []signal.Kind `json:"kinds,omitempty"`

	// Window bounds how old a signal may be to count. Zero means no
	// time filter.
	Window time.Duration `json:"window"`

	// MinCount is the number of matching signals required to fire.
	MinCount int `json:"min_count"`

	// SourcePrefix, when set, requires the signal source to start with it.
	SourcePrefix string `json:"source_prefix,omitempty"`

	// LevelMin and LevelMax bound the raw (undecayed) level. A zero
	// LevelMax means no upper bound.
	LevelMin float64 `json:"level_min,omitempty"`
	LevelMax float64 `json:"level_max,omitempty"`

	// MetadataMatch requires every listed key to be present with an
	// equal value.
	MetadataMatch map[string]string `json:"metadata_match,omitempty"`
}

// Validate checks the pattern configuration.
//
// Configuration errors fail fast here; runtime evaluation never raises.
func (p Pattern) Validate() error {
	if p.MinCount < 1 {
		return fmt.Errorf("%w (got %d)", ErrBadMinCount, p.MinCount)
	}
	if p.Window < 0 {
		return fmt.Errorf("%w (got %v)", ErrBadWindow, p.Window)
	}
	if p.LevelMax != 0 && p.LevelMin > p.LevelMax {
		return fmt.Errorf("%w (%v > %v)", ErrBadLevelBand, p.LevelMin, p.LevelMax)
	}
	return nil
}

// wantsKind returns true if the pattern considers the given kind.
func (p Pattern) wantsKind(kind signal.Kind) bool {
	if len(p.Kinds) == 0 {
		return true
	}
	for _, k := range p.Kinds {
		if k == kind {
			return true
		}
	}
	return false
}

// matches applies the field filters to one envelope.
func (p Pattern) matches(e *signal.Envelope, now time.Time) bool {
	if p.Window > 0 && now.Sub(e.Timestamp) > p.Window {
		return false
	}
	if p.SourcePrefix != "" && !strings.HasPrefix(e.Source, p.SourcePrefix) {
		return false
	}
	if e.Level < p.LevelMin {
		return false
	}
	if p.LevelMax != 0 && e.Level > p.LevelMax {
		return false
	}
	for k, want := range p.MetadataMatch {
		if e.Metadata[k] != want {
			return false
		}
	}
	return true
}
