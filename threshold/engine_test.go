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
	"math"
	"sync"
	"testing"
	"time"

	"github.com/AleutianAI/limbic/signal"
)

// capturingBus records published trigger envelopes.
type capturingBus struct {
	mu   sync.Mutex
	envs []*signal.Envelope
}

func (b *capturingBus) Publish(env *signal.Envelope) signal.PublishResult {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.envs = append(b.envs, env)
	return signal.ResultAccepted
}

func (b *capturingBus) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.envs)
}

type engineClock struct {
	mu sync.Mutex
	t  time.Time
}

func clockAt(hour int) *engineClock {
	return &engineClock{t: time.Date(2025, 6, 1, hour, 0, 0, 0, time.UTC)}
}

func (c *engineClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *engineClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// plain returns a config with every history-independent term disabled,
// so the threshold is exactly base until history accrues.
func plain(base float64) KindConfig {
	return KindConfig{
		Base:     base,
		Min:      0.2,
		Max:      0.95,
		Cooldown: time.Second,
	}
}

func newTestEngine(t *testing.T, clk *engineClock, kind signal.Kind, cfg KindConfig) (*Engine, *capturingBus) {
	t.Helper()
	pub := &capturingBus{}
	e := NewEngine(pub, WithClock(clk.Now))
	e.Configure(kind, cfg)
	return e, pub
}

func TestObserveRejectsBadValues(t *testing.T) {
	clk := clockAt(12)
	e, _ := newTestEngine(t, clk, signal.KindStress, plain(0.7))

	for _, v := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		if _, err := e.Observe(signal.KindStress, v, ""); !errors.Is(err, ErrBadObservation) {
			t.Errorf("Observe(%v) error = %v, want ErrBadObservation", v, err)
		}
	}

	// Nothing entered history.
	if snap, ok := e.SnapshotOf(signal.KindStress); ok && snap.HistoryLen != 0 {
		t.Errorf("HistoryLen = %d after rejected observations, want 0", snap.HistoryLen)
	}
}

func TestThresholdEqualsBaseBelowMinHistory(t *testing.T) {
	clk := clockAt(12)
	e, _ := newTestEngine(t, clk, signal.KindStress, plain(0.7))

	// MinHistory defaults to 5; the first four observations must see the
	// bare base threshold with no historical term.
	for i := 0; i < DefaultMinHistory-1; i++ {
		d, err := e.Observe(signal.KindStress, 0.4, "")
		if err != nil {
			t.Fatalf("Observe failed: %v", err)
		}
		if d.Threshold != 0.7 {
			t.Errorf("observation %d: threshold = %v, want exactly base 0.7", i, d.Threshold)
		}
		clk.Advance(100 * time.Millisecond)
	}
}

func TestConfigureMinOnlyKeepsUpperBound(t *testing.T) {
	clk := clockAt(12)
	// Max left unset: the upper bound must default to 1, not collapse the
	// clamp range to [0.2, 0].
	e, pub := newTestEngine(t, clk, signal.KindStress, KindConfig{
		Base:     0.7,
		Min:      0.2,
		Cooldown: time.Second,
	})

	d, err := e.Observe(signal.KindStress, 0.01, "")
	if err != nil {
		t.Fatalf("Observe failed: %v", err)
	}
	if d.Threshold != 0.7 {
		t.Errorf("threshold = %v, want base 0.7", d.Threshold)
	}
	if d.Fired {
		t.Error("observation far below threshold fired")
	}
	if pub.count() != 0 {
		t.Errorf("published %d triggers, want 0", pub.count())
	}
}

func TestHistoricalAdjustmentChasesBaseline(t *testing.T) {
	clk := clockAt(12)
	e, _ := newTestEngine(t, clk, signal.KindStress, plain(0.7))

	// Settle the baseline low, then jump the recent average high: the
	// threshold should rise above base to chase the new baseline.
	for i := 0; i < 30; i++ {
		if _, err := e.Observe(signal.KindStress, 0.3, ""); err != nil {
			t.Fatalf("Observe failed: %v", err)
		}
		clk.Advance(100 * time.Millisecond)
	}

	var last Decision
	for i := 0; i < 10; i++ {
		var err error
		last, err = e.Observe(signal.KindStress, 0.6, "")
		if err != nil {
			t.Fatalf("Observe failed: %v", err)
		}
		clk.Advance(100 * time.Millisecond)
	}

	if last.Threshold <= 0.7 {
		t.Errorf("threshold = %v after baseline rose, want above base 0.7", last.Threshold)
	}
}

func TestNoDoubleFireWithinCooldown(t *testing.T) {
	clk := clockAt(12)
	cfg := plain(0.7)
	cfg.Cooldown = 5 * time.Second
	e, pub := newTestEngine(t, clk, signal.KindStress, cfg)

	// Value stays past threshold on every observation; only the first
	// crossing may fire until the cooldown elapses.
	for i := 0; i < 10; i++ {
		if _, err := e.Observe(signal.KindStress, 0.9, ""); err != nil {
			t.Fatalf("Observe failed: %v", err)
		}
		clk.Advance(100 * time.Millisecond)
	}
	if got := pub.count(); got != 1 {
		t.Fatalf("fires = %d inside cooldown, want 1", got)
	}

	clk.Advance(5 * time.Second)
	if _, err := e.Observe(signal.KindStress, 0.9, ""); err != nil {
		t.Fatalf("Observe failed: %v", err)
	}
	if got := pub.count(); got != 2 {
		t.Errorf("fires = %d after cooldown elapsed, want 2", got)
	}
}

func TestOscillatingStream(t *testing.T) {
	// Scenario C: base 0.7, bounds (0.2, 0.95), 20 observations
	// oscillating 0.75/0.65. The threshold must stay inside bounds and
	// firing must not repeat inside the cooldown window even though the
	// high value exceeds 0.7 every other step.
	clk := clockAt(12)
	cfg := plain(0.7)
	cfg.Cooldown = 10 * time.Second
	e, pub := newTestEngine(t, clk, signal.KindStress, cfg)

	for i := 0; i < 20; i++ {
		v := 0.75
		if i%2 == 1 {
			v = 0.65
		}
		d, err := e.Observe(signal.KindStress, v, "")
		if err != nil {
			t.Fatalf("Observe failed: %v", err)
		}
		if d.Threshold < 0.2 || d.Threshold > 0.95 {
			t.Errorf("observation %d: threshold %v out of bounds", i, d.Threshold)
		}
		clk.Advance(200 * time.Millisecond)
	}

	if got := pub.count(); got != 1 {
		t.Errorf("fires = %d over oscillating stream, want 1 within cooldown", got)
	}
}

func TestInvertedFiresOnLowValues(t *testing.T) {
	clk := clockAt(12)
	cfg := plain(0.3)
	cfg.Inverted = true
	e, pub := newTestEngine(t, clk, signal.KindRecovery, cfg)

	if d, err := e.Observe(signal.KindRecovery, 0.8, ""); err != nil || d.Fired {
		t.Fatalf("high value fired inverted kind: %+v, err %v", d, err)
	}
	d, err := e.Observe(signal.KindRecovery, 0.1, "")
	if err != nil {
		t.Fatalf("Observe failed: %v", err)
	}
	if !d.Fired {
		t.Error("low value did not fire inverted kind")
	}
	if pub.count() != 1 {
		t.Errorf("published triggers = %d, want 1", pub.count())
	}
}

func TestTriggerEnvelopeContents(t *testing.T) {
	clk := clockAt(12)
	e, pub := newTestEngine(t, clk, signal.KindStress, plain(0.7))

	if _, err := e.Observe(signal.KindStress, 0.9, "sustained load"); err != nil {
		t.Fatalf("Observe failed: %v", err)
	}
	if pub.count() != 1 {
		t.Fatalf("published triggers = %d, want 1", pub.count())
	}

	trig, ok := signal.ParseTrigger(pub.envs[0])
	if !ok {
		t.Fatal("published envelope is not a parseable trigger")
	}
	if trig.TriggerKind != signal.KindStress {
		t.Errorf("TriggerKind = %v, want stress", trig.TriggerKind)
	}
	if trig.Value != 0.9 {
		t.Errorf("Value = %v, want 0.9", trig.Value)
	}
	if trig.Context != "sustained load" {
		t.Errorf("Context = %q, want %q", trig.Context, "sustained load")
	}
}

func TestCircadianSensitivity(t *testing.T) {
	cfg := plain(0.7)
	cfg.Circadian = ActiveWindow(9, 17, 0.1)

	t.Run("inside the active window the kind is more sensitive", func(t *testing.T) {
		clk := clockAt(12)
		e, _ := newTestEngine(t, clk, signal.KindStress, cfg)
		d, err := e.Observe(signal.KindStress, 0.1, "")
		if err != nil {
			t.Fatalf("Observe failed: %v", err)
		}
		if math.Abs(d.Threshold-0.6) > 1e-9 {
			t.Errorf("threshold = %v at noon, want 0.6", d.Threshold)
		}
	})

	t.Run("outside the window the base applies", func(t *testing.T) {
		clk := clockAt(3)
		e, _ := newTestEngine(t, clk, signal.KindStress, cfg)
		d, err := e.Observe(signal.KindStress, 0.1, "")
		if err != nil {
			t.Fatalf("Observe failed: %v", err)
		}
		if d.Threshold != 0.7 {
			t.Errorf("threshold = %v at 3am, want 0.7", d.Threshold)
		}
	})

	t.Run("rest window favors idle hours", func(t *testing.T) {
		rest := plain(0.3)
		rest.Inverted = true
		rest.Circadian = RestWindow(9, 17, 0.1)

		clk := clockAt(3)
		e, _ := newTestEngine(t, clk, signal.KindRecovery, rest)
		d, err := e.Observe(signal.KindRecovery, 0.9, "")
		if err != nil {
			t.Fatalf("Observe failed: %v", err)
		}
		// More sensitive for an inverted kind means a higher threshold.
		if math.Abs(d.Threshold-0.4) > 1e-9 {
			t.Errorf("threshold = %v during rest hours, want 0.4", d.Threshold)
		}
	})
}

func TestSuccessFeedback(t *testing.T) {
	cfg := plain(0.7)
	cfg.FeedbackWeight = 0.02

	t.Run("frequent success lowers the threshold", func(t *testing.T) {
		clk := clockAt(12)
		e, _ := newTestEngine(t, clk, signal.KindStress, cfg)
		for i := 0; i < 20; i++ {
			e.ReportOutcome(signal.KindStress, true)
		}
		d, err := e.Observe(signal.KindStress, 0.1, "")
		if err != nil {
			t.Fatalf("Observe failed: %v", err)
		}
		if d.Threshold >= 0.7 {
			t.Errorf("threshold = %v after sustained success, want below base", d.Threshold)
		}
	})

	t.Run("frequent failure raises the threshold", func(t *testing.T) {
		clk := clockAt(12)
		e, _ := newTestEngine(t, clk, signal.KindStress, cfg)
		for i := 0; i < 20; i++ {
			e.ReportOutcome(signal.KindStress, false)
		}
		d, err := e.Observe(signal.KindStress, 0.1, "")
		if err != nil {
			t.Fatalf("Observe failed: %v", err)
		}
		if d.Threshold <= 0.7 {
			t.Errorf("threshold = %v after sustained failure, want above base", d.Threshold)
		}
	})

	t.Run("feedback effect is bounded by the weight", func(t *testing.T) {
		clk := clockAt(12)
		e, _ := newTestEngine(t, clk, signal.KindStress, cfg)
		for i := 0; i < 100; i++ {
			e.ReportOutcome(signal.KindStress, true)
		}
		d, err := e.Observe(signal.KindStress, 0.1, "")
		if err != nil {
			t.Fatalf("Observe failed: %v", err)
		}
		if d.Threshold < 0.7-0.02-1e-9 {
			t.Errorf("threshold = %v, feedback exceeded its ±0.02 bound", d.Threshold)
		}
	})
}

func TestLazyStateAndSnapshots(t *testing.T) {
	clk := clockAt(12)
	pub := &capturingBus{}
	e := NewEngine(pub, WithClock(clk.Now))

	if _, ok := e.SnapshotOf(signal.KindNovelty); ok {
		t.Error("snapshot existed before first observation")
	}

	if _, err := e.Observe(signal.KindNovelty, 0.4, ""); err != nil {
		t.Fatalf("Observe failed: %v", err)
	}

	snap, ok := e.SnapshotOf(signal.KindNovelty)
	if !ok {
		t.Fatal("no snapshot after first observation")
	}
	if snap.Base != DefaultBase {
		t.Errorf("Base = %v for unconfigured kind, want %v", snap.Base, DefaultBase)
	}
	if snap.HistoryLen != 1 {
		t.Errorf("HistoryLen = %d, want 1", snap.HistoryLen)
	}

	all := e.Snapshots()
	if len(all) != 1 || all[0].Kind != signal.KindNovelty {
		t.Errorf("Snapshots = %+v, want one novelty entry", all)
	}
}

func TestLastFireMonotone(t *testing.T) {
	clk := clockAt(12)
	cfg := plain(0.7)
	cfg.Cooldown = time.Second
	e, _ := newTestEngine(t, clk, signal.KindStress, cfg)

	var prev time.Time
	for i := 0; i < 5; i++ {
		if _, err := e.Observe(signal.KindStress, 0.9, ""); err != nil {
			t.Fatalf("Observe failed: %v", err)
		}
		if snap, ok := e.SnapshotOf(signal.KindStress); ok {
			if snap.LastFire.Before(prev) {
				t.Errorf("LastFire went backwards: %v then %v", prev, snap.LastFire)
			}
			prev = snap.LastFire
		}
		clk.Advance(2 * time.Second)
	}
}
