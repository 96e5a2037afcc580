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

import "github.com/AleutianAI/limbic/signal"

// Stats is a point-in-time snapshot of bus counters.
//
// Counters are the sole externally visible indicator of degraded
// operation; there is no hard bus-level failure mode short of process
// termination.
type Stats struct {
	// Published counts signals that survived cooldown and modulation.
	Published uint64 `json:"published"`

	// Delivered counts completed handler invocations.
	Delivered uint64 `json:"delivered"`

	// Dropped counts cooldown denials.
	Dropped uint64 `json:"dropped"`

	// Vetoed counts modulation vetoes.
	Vetoed uint64 `json:"vetoed"`

	// Faulted counts malformed envelopes rejected before admission.
	Faulted uint64 `json:"faulted"`

	// HandlerFaults counts handler panics caught at the dispatch boundary.
	HandlerFaults uint64 `json:"handler_faults"`

	// PatternMatches counts pattern callback firings.
	PatternMatches uint64 `json:"pattern_matches"`

	// ActiveSignals is the current non-expired active-set size.
	ActiveSignals int `json:"active_signals"`

	// Subscribers is the per-kind subscription count (taps excluded).
	Subscribers map[signal.Kind]int `json:"subscribers"`

	// Taps is the number of kind-independent subscriptions.
	Taps int `json:"taps"`

	// Patterns is the number of registered patterns.
	Patterns int `json:"patterns"`
}

// Statistics returns a snapshot of the bus counters.
func (b *Bus) Statistics() Stats {
	now := b.now()

	b.mu.RLock()
	activeCount := 0
	for _, env := range b.active {
		if !env.Expired(now) {
			activeCount++
		}
	}
	b.mu.RUnlock()

	return Stats{
		Published:      b.published.Load(),
		Delivered:      b.delivered.Load(),
		Dropped:        b.dropped.Load(),
		Vetoed:         b.vetoed.Load(),
		Faulted:        b.faulted.Load(),
		HandlerFaults:  b.handlerFaults.Load(),
		PatternMatches: b.matcher.Matches(),
		ActiveSignals:  activeCount,
		Subscribers:    b.table.counts(),
		Taps:           b.table.tapCount(),
		Patterns:       b.matcher.Count(),
	}
}
