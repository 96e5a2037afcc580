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
	"log/slog"
	"sync"

	"github.com/AleutianAI/limbic/signal"
)

// Rule is one modulation stage.
//
// A rule may return a replacement envelope, the input unchanged, or nil
// to veto the signal. A returned error (or a panic) marks the rule
// faulty: it is logged and treated as a no-op, and the pipeline
// continues with the prior envelope state. A faulty rule must never
// crash the bus.
type Rule func(*signal.Envelope) (*signal.Envelope, error)

// Pipeline applies modulation rules in registration order.
//
// Thread Safety: safe for concurrent use.
type Pipeline struct {
	mu     sync.RWMutex
	rules  []Rule
	logger *slog.Logger
}

// NewPipeline creates an empty pipeline.
func NewPipeline(logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{logger: logger}
}

// Add appends a rule. Rules run in the order they were added.
func (p *Pipeline) Add(rule Rule) error {
	if rule == nil {
		return ErrNilRule
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rules = append(p.rules, rule)
	return nil
}

// Len returns the number of registered rules.
func (p *Pipeline) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.rules)
}

// Apply runs the pipeline over one envelope.
//
// Outputs:
//
//	*signal.Envelope - The surviving (possibly rewritten) envelope, or
//	nil when vetoed.
//	bool - True if a stage vetoed the signal.
func (p *Pipeline) Apply(env *signal.Envelope) (*signal.Envelope, bool) {
	p.mu.RLock()
	rules := p.rules
	p.mu.RUnlock()

	for i, rule := range rules {
		out, ok := p.applyOne(i, rule, env)
		if !ok {
			continue // faulty rule, keep prior state
		}
		if out == nil {
			return nil, true
		}
		env = out
	}
	return env, false
}

// applyOne runs a single rule with panic recovery. The second return is
// false when the rule faulted.
func (p *Pipeline) applyOne(idx int, rule Rule, env *signal.Envelope) (out *signal.Envelope, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("modulation rule panicked",
				"rule_index", idx,
				"kind", env.Kind,
				"source", env.Source,
				"panic", r,
			)
			out, ok = nil, false
		}
	}()

	result, err := rule(env)
	if err != nil {
		p.logger.Warn("modulation rule failed",
			"rule_index", idx,
			"kind", env.Kind,
			"source", env.Source,
			"error", err,
		)
		return nil, false
	}
	return result, true
}
