// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package signal

import (
	"errors"
	"math"
	"time"

	"github.com/google/uuid"
)

// DefaultTTL is applied when an envelope is built without an explicit TTL.
const DefaultTTL = 30 * time.Second

// ErrBadLevel is returned when a level is NaN or infinite.
var ErrBadLevel = errors.New("signal: level must be a finite number")

// Envelope is an immutable record of one signal occurrence.
//
// Description:
//
//	An envelope is "active" while its age is below its TTL, independent of
//	whether the bus still retains it in its history ring. Level is always
//	clamped to [0, 1] at construction.
type Envelope struct {
	// ID uniquely identifies this occurrence.
	ID string `json:"id"`

	// Kind is the signal kind.
	Kind Kind `json:"kind"`

	// Level is the scalar intensity in [0, 1].
	Level float64 `json:"level"`

	// Source identifies the producer subsystem.
	Source string `json:"source"`

	// Target optionally addresses a single consumer. Empty means broadcast.
	Target string `json:"target,omitempty"`

	// TTL bounds the envelope's active lifetime.
	TTL time.Duration `json:"ttl"`

	// CooldownHint is a producer-suggested minimum spacing for this
	// (kind, source) pair. The bus honors it when it exceeds the kind's
	// configured cooldown.
	CooldownHint time.Duration `json:"cooldown_hint,omitempty"`

	// Metadata carries opaque producer context.
	Metadata map[string]string `json:"metadata,omitempty"`

	// Timestamp is the publish time.
	Timestamp time.Time `json:"timestamp"`
}

// Option configures an envelope at construction.
type Option func(*Envelope)

// WithTTL sets the active lifetime. Non-positive values are ignored.
func WithTTL(ttl time.Duration) Option {
	return func(e *Envelope) {
		if ttl > 0 {
			e.TTL = ttl
		}
	}
}

// WithTarget addresses the envelope to a single consumer.
func WithTarget(target string) Option {
	return func(e *Envelope) {
		e.Target = target
	}
}

// WithCooldownHint suggests a minimum spacing for this (kind, source) pair.
func WithCooldownHint(d time.Duration) Option {
	return func(e *Envelope) {
		if d > 0 {
			e.CooldownHint = d
		}
	}
}

// WithMetadata attaches opaque producer context. The map is copied.
func WithMetadata(md map[string]string) Option {
	return func(e *Envelope) {
		if len(md) == 0 {
			return
		}
		e.Metadata = make(map[string]string, len(md))
		for k, v := range md {
			e.Metadata[k] = v
		}
	}
}

// New creates an envelope for one signal occurrence.
//
// Description:
//
//	Assigns a fresh ID and timestamp, applies the default TTL unless
//	overridden, and clamps level to [0, 1]. NaN and infinite levels are
//	rejected; a malformed observation must never enter the bus.
//
// Inputs:
//
//	kind - The signal kind.
//	level - Scalar intensity; clamped to [0, 1].
//	source - Producer identifier.
//	opts - Optional TTL, target, cooldown hint, metadata.
//
// Outputs:
//
//	*Envelope - The immutable envelope.
//	error - ErrBadLevel if level is NaN or infinite.
func New(kind Kind, level float64, source string, opts ...Option) (*Envelope, error) {
	if math.IsNaN(level) || math.IsInf(level, 0) {
		return nil, ErrBadLevel
	}
	if level < 0 {
		level = 0
	} else if level > 1 {
		level = 1
	}

	e := &Envelope{
		ID:        uuid.NewString(),
		Kind:      kind,
		Level:     level,
		Source:    source,
		TTL:       DefaultTTL,
		Timestamp: time.Now(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Age returns how long the envelope has existed at the given instant.
func (e *Envelope) Age(now time.Time) time.Duration {
	return now.Sub(e.Timestamp)
}

// Expired returns true once the envelope's age reaches its TTL.
func (e *Envelope) Expired(now time.Time) bool {
	return e.Age(now) >= e.TTL
}

// DecayedLevel returns the effective level at the given instant.
//
// Description:
//
//	Levels decay linearly to zero at TTL: level * max(0, 1 - age/ttl).
//	An expired envelope always reports zero.
func (e *Envelope) DecayedLevel(now time.Time) float64 {
	if e.TTL <= 0 {
		return 0
	}
	frac := 1 - float64(e.Age(now))/float64(e.TTL)
	if frac <= 0 {
		return 0
	}
	return e.Level * frac
}
