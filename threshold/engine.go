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
	"errors"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/AleutianAI/limbic/ringbuf"
	"github.com/AleutianAI/limbic/signal"
)

// ErrBadObservation is returned for NaN or infinite values. Malformed
// observations are rejected before entering history.
var ErrBadObservation = errors.New("threshold: observation must be a finite number")

// DefaultBase is the base threshold for kinds observed before being
// configured.
const DefaultBase = 0.7

// Publisher is the slice of the bus the engine needs.
type Publisher interface {
	Publish(env *signal.Envelope) signal.PublishResult
}

// Decision reports the outcome of one observation.
type Decision struct {
	// Kind is the trigger kind observed.
	Kind signal.Kind `json:"kind"`

	// Value is the observed scalar.
	Value float64 `json:"value"`

	// Threshold is the dynamic threshold used for this observation.
	Threshold float64 `json:"threshold"`

	// Fired is true if a trigger was published.
	Fired bool `json:"fired"`
}

// state is the per-kind rolling record.
type state struct {
	cfg           KindConfig
	history       *ringbuf.Ring[float64]
	lastFire      time.Time
	lastThreshold float64
	successRate   float64 // EWMA, 0.5 until outcomes arrive
	outcomes      uint64
	fires         uint64
}

// Engine turns scalar observation streams into trigger signals.
//
// Description:
//
//	One authoritative observation stream per kind is assumed; the fire
//	cooldown is keyed per kind only. State is created lazily on first
//	observation and lives for the process lifetime.
//
// Thread Safety: Engine is safe for concurrent use.
type Engine struct {
	mu      sync.Mutex
	configs map[signal.Kind]KindConfig
	states  map[signal.Kind]*state

	bus        Publisher
	load       *LoadTracker
	logger     *slog.Logger
	now        func() time.Time
	source     string
	triggerTTL time.Duration
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithClock overrides the time source. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithLoadTracker replaces the default load tracker.
func WithLoadTracker(lt *LoadTracker) Option {
	return func(e *Engine) {
		if lt != nil {
			e.load = lt
		}
	}
}

// WithTriggerTTL sets the TTL of published trigger envelopes.
func WithTriggerTTL(ttl time.Duration) Option {
	return func(e *Engine) {
		if ttl > 0 {
			e.triggerTTL = ttl
		}
	}
}

// NewEngine creates an engine publishing triggers to the given bus.
func NewEngine(bus Publisher, opts ...Option) *Engine {
	e := &Engine{
		configs:    make(map[signal.Kind]KindConfig),
		states:     make(map[signal.Kind]*state),
		bus:        bus,
		load:       NewLoadTracker(DefaultNominalRate),
		logger:     slog.Default(),
		now:        time.Now,
		source:     "threshold-engine",
		triggerTTL: DefaultTriggerTTL,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Configure sets the tuning for a kind. Existing observation history is
// kept so reconfiguration does not reset the learned baseline.
func (e *Engine) Configure(kind signal.Kind, cfg KindConfig) {
	cfg = cfg.withDefaults()

	e.mu.Lock()
	defer e.mu.Unlock()
	e.configs[kind] = cfg
	if st, ok := e.states[kind]; ok {
		st.cfg = cfg
	}
}

// Observe feeds one scalar observation for a kind.
//
// Description:
//
//	Appends the value to the kind's history, recomputes the dynamic
//	threshold, and fires at most one trigger: crossing requires
//	value > threshold (value < threshold when inverted) and the kind's
//	fire cooldown to have elapsed. On fire the engine publishes a
//	KindTrigger envelope through the bus; bus-side drops are logged,
//	never propagated.
//
// Inputs:
//
//	kind - The trigger kind.
//	value - The observed scalar.
//	context - Optional producer context carried on the trigger.
//
// Outputs:
//
//	Decision - Value, computed threshold, and whether a trigger fired.
//	error - ErrBadObservation for NaN or infinite values.
func (e *Engine) Observe(kind signal.Kind, value float64, context string) (Decision, error) {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return Decision{}, ErrBadObservation
	}

	now := e.now()
	e.load.Note(now)

	e.mu.Lock()
	st := e.stateFor(kind)
	st.history.Append(value)

	th := e.computeLocked(st, now)
	st.lastThreshold = th

	crossed := value > th
	if st.cfg.Inverted {
		crossed = value < th
	}

	fired := crossed && (st.lastFire.IsZero() || now.Sub(st.lastFire) >= st.cfg.Cooldown)
	if fired {
		st.lastFire = now
		st.fires++
	}
	e.mu.Unlock()

	if fired {
		e.publishTrigger(kind, value, th, context)
	}

	return Decision{Kind: kind, Value: value, Threshold: th, Fired: fired}, nil
}

// ReportOutcome feeds success feedback for a kind's downstream action.
//
// Frequent success makes the kind slightly more sensitive; frequent
// failure backs it off. The effect is bounded by FeedbackWeight.
func (e *Engine) ReportOutcome(kind signal.Kind, success bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	st := e.stateFor(kind)
	outcome := 0.0
	if success {
		outcome = 1.0
	}
	const alpha = 0.3
	st.successRate = (1-alpha)*st.successRate + alpha*outcome
	st.outcomes++
}

// stateFor returns (creating lazily) the state for a kind. Caller holds
// e.mu.
func (e *Engine) stateFor(kind signal.Kind) *state {
	if st, ok := e.states[kind]; ok {
		return st
	}
	cfg, ok := e.configs[kind]
	if !ok {
		cfg = KindConfig{Base: DefaultBase}.withDefaults()
		e.configs[kind] = cfg
	}
	st := &state{
		cfg:         cfg,
		history:     ringbuf.New[float64](cfg.HistoryCap),
		successRate: 0.5,
	}
	e.states[kind] = st
	return st
}

// computeLocked computes the dynamic threshold for a state. Caller
// holds e.mu.
func (e *Engine) computeLocked(st *state, now time.Time) float64 {
	cfg := st.cfg
	th := cfg.Base

	// Historical baseline drift: chase the new baseline rather than a
	// stale absolute. Exactly zero until the FIFO reaches MinHistory.
	if st.history.Len() >= cfg.MinHistory {
		recent := mean(st.history.Tail(cfg.RecentWindow))
		historical := mean(st.history.Snapshot())
		shift := cfg.HistoryWeight * (recent - historical)
		if cfg.Inverted {
			th -= shift
		} else {
			th += shift
		}
	}

	// Remaining terms are expressed in sensitivity space: positive delta
	// means less sensitive, and the sign flips for inverted kinds.
	if cfg.Circadian != nil {
		th = applyDelta(th, cfg.Circadian(now.Hour()), cfg.Inverted)
	}
	th = applyDelta(th, loadDelta(e.load.Factor(), cfg.LoadWeight), cfg.Inverted)
	if cfg.FeedbackWeight > 0 && st.outcomes > 0 {
		feedback := (0.5 - st.successRate) * 2 * cfg.FeedbackWeight
		th = applyDelta(th, feedback, cfg.Inverted)
	}

	if th < cfg.Min {
		th = cfg.Min
	}
	if th > cfg.Max {
		th = cfg.Max
	}
	return th
}

// applyDelta applies a sensitivity-space delta: less sensitive means a
// higher threshold for normal kinds and a lower one for inverted kinds.
func applyDelta(th, delta float64, inverted bool) float64 {
	if inverted {
		return th - delta
	}
	return th + delta
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// publishTrigger sends the trigger envelope. Never propagates failures.
func (e *Engine) publishTrigger(kind signal.Kind, value, th float64, context string) {
	trig := signal.TriggerEvent{
		TriggerKind: kind,
		Value:       value,
		Threshold:   th,
		Context:     context,
	}
	env, err := trig.Envelope(e.source, e.triggerTTL)
	if err != nil {
		e.logger.Error("failed to build trigger envelope",
			"kind", kind,
			"error", err,
		)
		return
	}
	env.Timestamp = e.now()

	if res := e.bus.Publish(env); !res.Accepted() {
		e.logger.Debug("trigger dropped by bus",
			"kind", kind,
			"result", res.String(),
		)
	}
}

// Snapshot is a read-only view of one kind's state for telemetry.
type Snapshot struct {
	Kind        signal.Kind `json:"kind"`
	Base        float64     `json:"base"`
	Threshold   float64     `json:"threshold"`
	Inverted    bool        `json:"inverted"`
	SuccessRate float64     `json:"success_rate"`
	HistoryLen  int         `json:"history_len"`
	Fires       uint64      `json:"fires"`
	LastFire    time.Time   `json:"last_fire,omitempty"`
}

// SnapshotOf returns the state view for one kind.
func (e *Engine) SnapshotOf(kind signal.Kind) (Snapshot, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	st, ok := e.states[kind]
	if !ok {
		return Snapshot{}, false
	}
	return snapshotLocked(kind, st), true
}

// Snapshots returns all state views, sorted by kind.
func (e *Engine) Snapshots() []Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]Snapshot, 0, len(e.states))
	for kind, st := range e.states {
		out = append(out, snapshotLocked(kind, st))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Kind < out[j].Kind })
	return out
}

func snapshotLocked(kind signal.Kind, st *state) Snapshot {
	return Snapshot{
		Kind:        kind,
		Base:        st.cfg.Base,
		Threshold:   st.lastThreshold,
		Inverted:    st.cfg.Inverted,
		SuccessRate: st.successRate,
		HistoryLen:  st.history.Len(),
		Fires:       st.fires,
		LastFire:    st.lastFire,
	}
}
