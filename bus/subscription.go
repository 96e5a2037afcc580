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

	"github.com/google/uuid"

	"github.com/AleutianAI/limbic/signal"
)

// Handler consumes one delivered envelope.
//
// Handlers are always dispatched as independent goroutines; a handler
// may block or perform I/O without backpressuring producers. A handler
// may publish back onto the bus.
type Handler func(*signal.Envelope)

// SubscribeOption configures one subscription.
type SubscribeOption func(*subscription)

// WithDeclaredTarget restricts delivery of targeted signals.
//
// When an envelope carries a target, only subscriptions declaring that
// same target receive it. Broadcast envelopes (no target) are delivered
// to every subscription of the kind regardless of declared target.
func WithDeclaredTarget(target string) SubscribeOption {
	return func(s *subscription) {
		s.target = target
	}
}

// subscription is one registered handler.
type subscription struct {
	id      string
	kind    signal.Kind
	target  string
	handler Handler
	tap     bool // receives every kind
}

// subscriberTable maps kinds to handler lists.
//
// Mutated only under the bus lock plus its own mutex so it can also be
// read without holding the bus lock.
type subscriberTable struct {
	mu     sync.RWMutex
	byKind map[signal.Kind][]*subscription
	taps   []*subscription
	index  map[string]*subscription
}

func newSubscriberTable() *subscriberTable {
	return &subscriberTable{
		byKind: make(map[signal.Kind][]*subscription),
		index:  make(map[string]*subscription),
	}
}

func (t *subscriberTable) add(kind signal.Kind, handler Handler, opts ...SubscribeOption) string {
	sub := &subscription{id: uuid.NewString(), kind: kind, handler: handler}
	for _, opt := range opts {
		opt(sub)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.byKind[kind] = append(t.byKind[kind], sub)
	t.index[sub.id] = sub
	return sub.id
}

func (t *subscriberTable) addTap(handler Handler) string {
	sub := &subscription{id: uuid.NewString(), handler: handler, tap: true}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.taps = append(t.taps, sub)
	t.index[sub.id] = sub
	return sub.id
}

func (t *subscriberTable) remove(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	sub, ok := t.index[id]
	if !ok {
		return false
	}
	delete(t.index, id)

	if sub.tap {
		t.taps = removeSub(t.taps, id)
		return true
	}
	t.byKind[sub.kind] = removeSub(t.byKind[sub.kind], id)
	if len(t.byKind[sub.kind]) == 0 {
		delete(t.byKind, sub.kind)
	}
	return true
}

func removeSub(subs []*subscription, id string) []*subscription {
	for i, s := range subs {
		if s.id == id {
			return append(subs[:i], subs[i+1:]...)
		}
	}
	return subs
}

// matches returns the subscriptions that should receive the envelope,
// applying the declared-target filter for targeted signals.
func (t *subscriberTable) matches(env *signal.Envelope) []*subscription {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]*subscription, 0, len(t.byKind[env.Kind])+len(t.taps))
	for _, sub := range t.byKind[env.Kind] {
		if env.Target != "" && sub.target != env.Target {
			continue
		}
		out = append(out, sub)
	}
	out = append(out, t.taps...)
	return out
}

// counts returns the subscriber count per kind (taps excluded).
func (t *subscriberTable) counts() map[signal.Kind]int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make(map[signal.Kind]int, len(t.byKind))
	for k, subs := range t.byKind {
		out[k] = len(subs)
	}
	return out
}

func (t *subscriberTable) tapCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.taps)
}
