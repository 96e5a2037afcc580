// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package threshold

import (
	"sync"
	"time"
)

// DefaultNominalRate is the observation rate treated as load factor 1.0.
const DefaultNominalRate = 10.0 // observations per second

// LoadTracker estimates system load from the observation rate across
// all kinds.
//
// Description:
//
//	Keeps an exponentially weighted moving average of the instantaneous
//	observation rate. Factor() normalizes against a nominal rate: 1.0
//	means nominal, above means busy, below means idle. The engine turns
//	the factor into a small bounded threshold delta.
//
// Thread Safety: safe for concurrent use.
type LoadTracker struct {
	mu          sync.Mutex
	nominalRate float64
	rate        float64 // EWMA, observations per second
	lastNote    time.Time
}

// NewLoadTracker creates a tracker. Non-positive nominal rates fall back
// to DefaultNominalRate.
func NewLoadTracker(nominalRate float64) *LoadTracker {
	if nominalRate <= 0 {
		nominalRate = DefaultNominalRate
	}
	return &LoadTracker{nominalRate: nominalRate}
}

// Note records one observation at the given instant.
func (l *LoadTracker) Note(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.lastNote.IsZero() {
		l.lastNote = now
		l.rate = l.nominalRate // assume nominal until data accrues
		return
	}

	dt := now.Sub(l.lastNote).Seconds()
	l.lastNote = now
	if dt <= 0 {
		return
	}

	instant := 1.0 / dt
	const alpha = 0.2
	l.rate = (1-alpha)*l.rate + alpha*instant
}

// Factor returns the current load factor (1.0 = nominal).
func (l *LoadTracker) Factor() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.lastNote.IsZero() {
		return 1.0
	}
	return l.rate / l.nominalRate
}

// delta converts a load factor into a bounded threshold delta in
// sensitivity space: positive (less sensitive) when busy, negative when
// idle, clamped to ±weight.
func loadDelta(factor, weight float64) float64 {
	if weight <= 0 {
		return 0
	}
	d := (factor - 1.0) * weight
	if d > weight {
		return weight
	}
	if d < -weight {
		return -weight
	}
	return d
}
