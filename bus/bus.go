// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package bus implements the in-process adaptive signal bus.
//
// The bus decouples signal producers from consumers with best-effort,
// at-most-one-per-cooldown delivery and optional content rewriting.
// Publish order is preserved for cooldown admission, modulation, and
// pattern evaluation; handler execution is fire-and-forget and only
// eventually ordered.
//
// Construct the bus explicitly at startup and pass it by reference to
// every component. There is deliberately no package-level instance.
package bus

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/AleutianAI/limbic/pattern"
	"github.com/AleutianAI/limbic/ringbuf"
	"github.com/AleutianAI/limbic/signal"
)

// Config configures a Bus.
type Config struct {
	// Cooldowns holds the per-kind admission period. Kinds absent from
	// the map (or set to zero) are never throttled.
	Cooldowns map[signal.Kind]time.Duration

	// HistoryCap bounds the history ring. History retains entries past
	// their TTL for analytics; only capacity evicts them.
	// Default: 512
	HistoryCap int

	// RecentCap bounds each per-kind recent window used by pattern
	// evaluation.
	// Default: 64
	RecentCap int

	// SweepInterval is the period of the background expiry sweep.
	// Default: 1s
	SweepInterval time.Duration
}

// DefaultConfig returns sensible defaults with no throttled kinds.
func DefaultConfig() Config {
	return Config{
		HistoryCap:    512,
		RecentCap:     pattern.DefaultRecentCap,
		SweepInterval: time.Second,
	}
}

// Bus is the in-process signal bus.
//
// Thread Safety:
//
//	Bus is safe for concurrent use. All admission state is guarded by
//	one coarse lock; handlers run on their own goroutines outside it,
//	so a handler may re-enter Publish.
type Bus struct {
	mu      sync.RWMutex
	active  map[string]*signal.Envelope
	history *ringbuf.Ring[*signal.Envelope]

	cooldowns *CooldownRegistry
	pipeline  *Pipeline
	table     *subscriberTable
	matcher   *pattern.Matcher

	logger *slog.Logger
	now    func() time.Time

	sweepInterval time.Duration
	cancelSweep   context.CancelFunc
	sweepDone     chan struct{}

	published     atomic.Uint64
	delivered     atomic.Uint64
	dropped       atomic.Uint64
	vetoed        atomic.Uint64
	faulted       atomic.Uint64
	handlerFaults atomic.Uint64
}

// Option configures a Bus.
type Option func(*Bus)

// WithLogger sets the logger for fault reports.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bus) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithClock overrides the time source. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(b *Bus) {
		if now != nil {
			b.now = now
		}
	}
}

// New creates a bus from the given configuration.
func New(cfg Config, opts ...Option) *Bus {
	if cfg.HistoryCap <= 0 {
		cfg.HistoryCap = 512
	}
	if cfg.RecentCap <= 0 {
		cfg.RecentCap = pattern.DefaultRecentCap
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = time.Second
	}

	b := &Bus{
		active:        make(map[string]*signal.Envelope),
		history:       ringbuf.New[*signal.Envelope](cfg.HistoryCap),
		cooldowns:     NewCooldownRegistry(cfg.Cooldowns),
		table:         newSubscriberTable(),
		logger:        slog.Default(),
		now:           time.Now,
		sweepInterval: cfg.SweepInterval,
	}
	for _, opt := range opts {
		opt(b)
	}
	b.pipeline = NewPipeline(b.logger)
	b.matcher = pattern.NewMatcher(
		pattern.WithRecentCap(cfg.RecentCap),
		pattern.WithLogger(b.logger),
		pattern.WithClock(b.now),
	)
	return b
}

// Publish runs one envelope through cooldown, modulation, retention,
// delivery, and pattern evaluation.
//
// Description:
//
//	Never blocks on handler execution and never propagates consumer
//	failures: handler panics are counted and logged at the dispatch
//	boundary. Dropped signals (cooldown, veto) are a normal outcome
//	reflected in the result variant and the statistics counters.
//
// Outputs:
//
//	signal.PublishResult - Accepted iff the signal was retained.
func (b *Bus) Publish(env *signal.Envelope) signal.PublishResult {
	if env == nil || math.IsNaN(env.Level) || math.IsInf(env.Level, 0) {
		b.faulted.Add(1)
		return signal.ResultFaulted
	}

	now := b.now()

	b.mu.Lock()
	if !b.cooldowns.Allow(env.Kind, env.Source, env.CooldownHint, now) {
		b.mu.Unlock()
		b.dropped.Add(1)
		return signal.ResultDeniedCooldown
	}

	out, wasVetoed := b.pipeline.Apply(env)
	if wasVetoed {
		b.mu.Unlock()
		b.vetoed.Add(1)
		return signal.ResultVetoed
	}
	env = out

	b.active[env.ID] = env
	b.history.Append(env)
	b.matcher.Observe(env)
	subs := b.table.matches(env)
	b.mu.Unlock()

	b.published.Add(1)

	for _, sub := range subs {
		b.dispatch(sub, env)
	}

	// Synchronous, per-pattern error isolated. Callbacks may re-enter
	// Publish; the bus lock is not held here.
	b.matcher.Evaluate(env)

	return signal.ResultAccepted
}

// Emit constructs and publishes an envelope in one call.
//
// Inputs:
//
//	kind - The signal kind.
//	level - Scalar intensity, clamped to [0, 1].
//	source - Producer identifier.
//	opts - Optional TTL, target, cooldown hint, metadata.
func (b *Bus) Emit(kind signal.Kind, level float64, source string, opts ...signal.Option) signal.PublishResult {
	env, err := signal.New(kind, level, source, opts...)
	if err != nil {
		b.faulted.Add(1)
		b.logger.Warn("rejected malformed signal",
			"kind", kind,
			"source", source,
			"error", err,
		)
		return signal.ResultFaulted
	}
	env.Timestamp = b.now()
	return b.Publish(env)
}

// dispatch schedules one handler invocation as an independent task.
func (b *Bus) dispatch(sub *subscription, env *signal.Envelope) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				b.handlerFaults.Add(1)
				b.logger.Error("signal handler panicked",
					"kind", env.Kind,
					"source", env.Source,
					"panic", r,
				)
			}
		}()
		sub.handler(env)
		b.delivered.Add(1)
	}()
}

// Subscribe registers a handler for a kind.
//
// Outputs:
//
//	string - Subscription ID for Unsubscribe.
//	error - ErrNilHandler if the handler is nil.
func (b *Bus) Subscribe(kind signal.Kind, handler Handler, opts ...SubscribeOption) (string, error) {
	if handler == nil {
		return "", ErrNilHandler
	}
	return b.table.add(kind, handler, opts...), nil
}

// SubscribeAll registers a kind-independent tap. Taps receive every
// accepted envelope, including targeted ones; they exist for audit and
// telemetry consumers.
func (b *Bus) SubscribeAll(handler Handler) (string, error) {
	if handler == nil {
		return "", ErrNilHandler
	}
	return b.table.addTap(handler), nil
}

// Unsubscribe removes a subscription.
func (b *Bus) Unsubscribe(id string) error {
	if !b.table.remove(id) {
		return ErrUnknownSubscription
	}
	return nil
}

// AddModulationRule appends a rewrite/veto stage to the pipeline.
func (b *Bus) AddModulationRule(rule Rule) error {
	return b.pipeline.Add(rule)
}

// RegisterPattern registers a composite-condition pattern.
//
// The pattern configuration is validated eagerly; see pattern.Pattern.
func (b *Bus) RegisterPattern(p pattern.Pattern, cb pattern.Callback) (string, error) {
	return b.matcher.Register(p, cb)
}

// UnregisterPattern removes a pattern registration.
func (b *Bus) UnregisterPattern(id string) bool {
	return b.matcher.Unregister(id)
}

// Cooldowns exposes the cooldown registry for runtime tuning.
func (b *Bus) Cooldowns() *CooldownRegistry {
	return b.cooldowns
}

// CurrentLevels returns, per kind, the maximum decayed level over the
// active set. Expired envelopes contribute nothing even before the
// sweep evicts them.
func (b *Bus) CurrentLevels() map[signal.Kind]float64 {
	now := b.now()

	b.mu.RLock()
	defer b.mu.RUnlock()

	levels := make(map[signal.Kind]float64)
	for _, env := range b.active {
		if env.Expired(now) {
			continue
		}
		if lvl := env.DecayedLevel(now); lvl > levels[env.Kind] {
			levels[env.Kind] = lvl
		}
	}
	return levels
}

// History returns retained envelopes, oldest first.
//
// Description:
//
//	The history ring retains entries past their TTL; only capacity
//	evicts them. Kind and source filter when non-empty; limit keeps the
//	newest entries when positive.
func (b *Bus) History(kind signal.Kind, source string, limit int) []*signal.Envelope {
	b.mu.RLock()
	entries := b.history.Where(func(e *signal.Envelope) bool {
		if kind != "" && e.Kind != kind {
			return false
		}
		if source != "" && e.Source != source {
			return false
		}
		return true
	})
	b.mu.RUnlock()

	if limit > 0 && len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	return entries
}

// Start launches the background expiry sweep.
//
// The sweep periodically evicts expired envelopes from the active set
// only; the history ring is untouched. Stop (or context cancellation)
// terminates it without draining in-flight handler goroutines.
func (b *Bus) Start(ctx context.Context) error {
	b.mu.Lock()
	if b.cancelSweep != nil {
		b.mu.Unlock()
		return ErrAlreadyRunning
	}
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	b.cancelSweep = cancel
	b.sweepDone = done
	b.mu.Unlock()

	go b.sweepLoop(ctx, done)
	return nil
}

// Stop cancels the expiry sweep and waits for it to exit.
func (b *Bus) Stop() {
	b.mu.Lock()
	cancel, done := b.cancelSweep, b.sweepDone
	b.cancelSweep = nil
	b.sweepDone = nil
	b.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

func (b *Bus) sweepLoop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(b.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := b.Sweep(); n > 0 {
				b.logger.Debug("expired signals evicted", "count", n)
			}
		}
	}
}

// Sweep evicts expired envelopes from the active set and returns the
// eviction count. Idempotent; safe to call at any time.
func (b *Bus) Sweep() int {
	now := b.now()

	b.mu.Lock()
	defer b.mu.Unlock()

	evicted := 0
	for id, env := range b.active {
		if env.Expired(now) {
			delete(b.active, id)
			evicted++
		}
	}
	return evicted
}
