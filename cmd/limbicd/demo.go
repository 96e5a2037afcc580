// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/AleutianAI/limbic/bus"
	"github.com/AleutianAI/limbic/pkg/logging"
	sig "github.com/AleutianAI/limbic/signal"
	"github.com/AleutianAI/limbic/threshold"
)

// runDemo emits synthetic traffic until the context is cancelled: a slow
// stress sine wave with jitter, occasional novelty spikes, and matching
// threshold observations so /thresholds and /levels have something to
// show.
func runDemo(ctx context.Context, b *bus.Bus, engine *threshold.Engine, logger *logging.Logger) {
	logger.Info("demo producer started")

	tapID, err := b.SubscribeAll(func(env *sig.Envelope) {
		if env.Kind == sig.KindTrigger {
			if trig, ok := sig.ParseTrigger(env); ok {
				logger.Info("trigger fired",
					"trigger_kind", trig.TriggerKind,
					"value", trig.Value,
					"threshold", trig.Threshold,
				)
			}
		}
	})
	if err == nil {
		defer b.Unsubscribe(tapID)
	}

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	start := time.Now()
	for {
		select {
		case <-ctx.Done():
			logger.Info("demo producer stopped")
			return
		case now := <-ticker.C:
			phase := now.Sub(start).Seconds() / 60.0 * 2 * math.Pi // one cycle per minute
			stress := 0.5 + 0.4*math.Sin(phase) + rng.Float64()*0.1
			if stress < 0 {
				stress = 0
			} else if stress > 1 {
				stress = 1
			}

			b.Emit(sig.KindStress, stress, "demo", sig.WithTTL(10*time.Second))
			engine.Observe(sig.KindStress, stress, "demo wave")

			recovery := 1 - stress
			b.Emit(sig.KindRecovery, recovery, "demo", sig.WithTTL(10*time.Second))
			engine.Observe(sig.KindRecovery, recovery, "demo wave")

			if rng.Float64() < 0.05 {
				b.Emit(sig.KindNovelty, 0.6+rng.Float64()*0.4, "demo",
					sig.WithTTL(5*time.Second))
			}
		}
	}
}
