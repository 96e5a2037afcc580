// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package pattern

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/AleutianAI/limbic/ringbuf"
	"github.com/AleutianAI/limbic/signal"
)

// DefaultRecentCap bounds each per-kind recent window.
const DefaultRecentCap = 64

// entry pairs a registered pattern with its callback and fire state.
type entry struct {
	id       string
	pattern  Pattern
	callback Callback

	// lastFire suppresses refiring while the satisfying window is still
	// the one that already fired. See Evaluate.
	lastFire time.Time
}

// Matcher evaluates registered patterns against per-kind recent windows.
//
// Description:
//
//	The bus feeds every accepted envelope through Observe, then calls
//	Evaluate synchronously. Each pattern is error-isolated: a panicking
//	callback is logged and skipped, and never affects delivery of the
//	signal that triggered evaluation.
//
// Thread Safety: Matcher is safe for concurrent use.
type Matcher struct {
	mu        sync.Mutex
	recent    map[signal.Kind]*ringbuf.Ring[*signal.Envelope]
	entries   map[string]*entry
	order     []string // registration order
	recentCap int
	matches   uint64
	logger    *slog.Logger
	now       func() time.Time
}

// MatcherOption configures a Matcher.
type MatcherOption func(*Matcher)

// WithRecentCap sets the per-kind recent window capacity.
func WithRecentCap(n int) MatcherOption {
	return func(m *Matcher) {
		if n > 0 {
			m.recentCap = n
		}
	}
}

// WithLogger sets the logger for callback fault reports.
func WithLogger(logger *slog.Logger) MatcherOption {
	return func(m *Matcher) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithClock overrides the time source. Intended for tests.
func WithClock(now func() time.Time) MatcherOption {
	return func(m *Matcher) {
		if now != nil {
			m.now = now
		}
	}
}

// NewMatcher creates an empty matcher.
func NewMatcher(opts ...MatcherOption) *Matcher {
	m := &Matcher{
		recent:    make(map[signal.Kind]*ringbuf.Ring[*signal.Envelope]),
		entries:   make(map[string]*entry),
		recentCap: DefaultRecentCap,
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Register adds a pattern with its callback.
//
// Inputs:
//
//	p - The pattern; validated eagerly.
//	cb - Callback invoked with the matching envelopes, oldest first.
//
// Outputs:
//
//	string - Registration ID for Unregister.
//	error - Non-nil if the pattern configuration is invalid.
func (m *Matcher) Register(p Pattern, cb Callback) (string, error) {
	if cb == nil {
		return "", ErrNilCallback
	}
	if err := p.Validate(); err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	e := &entry{id: uuid.NewString(), pattern: p, callback: cb}
	m.entries[e.id] = e
	m.order = append(m.order, e.id)
	return e.id, nil
}

// Unregister removes a pattern registration.
//
// Outputs:
//
//	bool - True if the registration was found and removed.
func (m *Matcher) Unregister(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.entries[id]; !ok {
		return false
	}
	delete(m.entries, id)
	for i, oid := range m.order {
		if oid == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return true
}

// Observe appends an accepted envelope to its kind's recent window.
func (m *Matcher) Observe(env *signal.Envelope) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ring, ok := m.recent[env.Kind]
	if !ok {
		ring = ringbuf.New[*signal.Envelope](m.recentCap)
		m.recent[env.Kind] = ring
	}
	ring.Append(env)
}

// Evaluate runs every registered pattern against the recent windows.
//
// Description:
//
//	Called by the bus after each accepted publish. For each pattern:
//	gather the candidate kinds, filter each kind's recent window by the
//	pattern's time window and field filters, and invoke the callback if
//	the match count reaches MinCount. A fired pattern is then refractory
//	for one window length so a still-satisfied window does not refire on
//	every subsequent publish.
//
//	Callbacks run synchronously with panic isolation; one faulty pattern
//	never prevents the others from being evaluated.
func (m *Matcher) Evaluate(env *signal.Envelope) {
	now := m.now()

	m.mu.Lock()
	ids := make([]string, len(m.order))
	copy(ids, m.order)
	m.mu.Unlock()

	for _, id := range ids {
		m.mu.Lock()
		e, ok := m.entries[id]
		if !ok {
			m.mu.Unlock()
			continue
		}
		if !e.pattern.wantsKind(env.Kind) {
			m.mu.Unlock()
			continue
		}
		if !e.lastFire.IsZero() && e.pattern.Window > 0 && now.Sub(e.lastFire) < e.pattern.Window {
			m.mu.Unlock()
			continue
		}

		matched := m.collect(e.pattern, now)
		fired := len(matched) >= e.pattern.MinCount
		if fired {
			e.lastFire = now
			m.matches++
		}
		cb := e.callback
		m.mu.Unlock()

		if fired {
			m.safeInvoke(id, cb, matched)
		}
	}
}

// collect gathers matching envelopes across the pattern's candidate
// kinds, oldest first. Caller holds m.mu.
func (m *Matcher) collect(p Pattern, now time.Time) []*signal.Envelope {
	kinds := p.Kinds
	if len(kinds) == 0 {
		kinds = make([]signal.Kind, 0, len(m.recent))
		for k := range m.recent {
			kinds = append(kinds, k)
		}
	}

	var matched []*signal.Envelope
	for _, k := range kinds {
		ring, ok := m.recent[k]
		if !ok {
			continue
		}
		matched = append(matched, ring.Where(func(e *signal.Envelope) bool {
			return p.matches(e, now)
		})...)
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].Timestamp.Before(matched[j].Timestamp)
	})
	return matched
}

// safeInvoke runs a callback with panic recovery.
func (m *Matcher) safeInvoke(id string, cb Callback, matched []*signal.Envelope) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("pattern callback panicked",
				"pattern_id", id,
				"matched", len(matched),
				"panic", r,
			)
		}
	}()
	cb(matched)
}

// Count returns the number of registered patterns.
func (m *Matcher) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Matches returns the total number of pattern firings.
func (m *Matcher) Matches() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.matches
}
