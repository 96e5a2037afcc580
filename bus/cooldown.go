// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package bus

import (
	"sync"
	"time"

	"github.com/AleutianAI/limbic/signal"
)

// cooldownKey identifies one rate-limited stream.
type cooldownKey struct {
	kind   signal.Kind
	source string
}

// CooldownRegistry rate-limits signal admission per (kind, source).
//
// Description:
//
//	Equivalent to a leaky bucket holding one token per period, with no
//	burst allowance: a key is admitted iff at least one period has
//	elapsed since its last admission. A kind configured with a zero
//	period is never throttled; that setting is reserved for
//	safety-critical kinds.
//
// Thread Safety: safe for concurrent use.
type CooldownRegistry struct {
	mu      sync.Mutex
	periods map[signal.Kind]time.Duration
	last    map[cooldownKey]time.Time
}

// NewCooldownRegistry creates a registry with per-kind periods. The map
// is copied; kinds absent from it default to no throttling.
func NewCooldownRegistry(periods map[signal.Kind]time.Duration) *CooldownRegistry {
	r := &CooldownRegistry{
		periods: make(map[signal.Kind]time.Duration, len(periods)),
		last:    make(map[cooldownKey]time.Time),
	}
	for k, d := range periods {
		if d > 0 {
			r.periods[k] = d
		}
	}
	return r
}

// SetPeriod updates the cooldown period for a kind. Zero disables
// throttling for that kind.
func (r *CooldownRegistry) SetPeriod(kind signal.Kind, period time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if period <= 0 {
		delete(r.periods, kind)
		return
	}
	r.periods[kind] = period
}

// Period returns the configured period for a kind (zero if unthrottled).
func (r *CooldownRegistry) Period(kind signal.Kind) time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.periods[kind]
}

// Allow decides admission for one publish.
//
// Description:
//
//	A kind with a zero configured period is always admitted, regardless
//	of any producer hint. Otherwise the effective period is the larger
//	of the kind's period and the producer's cooldown hint, and admission
//	requires that much time since the key's last admission. On admission
//	the key's last-accepted time advances, so admission is strictly
//	time-ordered per key.
//
// Inputs:
//
//	kind - The signal kind.
//	source - The producer identifier.
//	hint - Producer-suggested minimum spacing (zero for none).
//	now - The publish instant.
//
// Outputs:
//
//	bool - True if the publish is admitted.
func (r *CooldownRegistry) Allow(kind signal.Kind, source string, hint time.Duration, now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	period := r.periods[kind]
	if period == 0 {
		return true
	}
	if hint > period {
		period = hint
	}

	key := cooldownKey{kind: kind, source: source}
	if last, ok := r.last[key]; ok && now.Sub(last) < period {
		return false
	}
	r.last[key] = now
	return true
}

// Reset clears all recorded admissions. Periods are kept.
func (r *CooldownRegistry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.last = make(map[cooldownKey]time.Time)
}
