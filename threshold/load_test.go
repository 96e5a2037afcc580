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
	"testing"
	"time"
)

func TestLoadTrackerFactor(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("unseeded tracker reports nominal", func(t *testing.T) {
		lt := NewLoadTracker(10)
		if f := lt.Factor(); f != 1.0 {
			t.Errorf("Factor = %v before any Note, want 1.0", f)
		}
	})

	t.Run("fast stream pushes the factor above nominal", func(t *testing.T) {
		lt := NewLoadTracker(10) // nominal 10/s
		now := base
		for i := 0; i < 100; i++ {
			lt.Note(now)
			now = now.Add(10 * time.Millisecond) // 100/s
		}
		if f := lt.Factor(); f <= 1.0 {
			t.Errorf("Factor = %v under a 100/s stream, want above 1.0", f)
		}
	})

	t.Run("idle stream pulls the factor below nominal", func(t *testing.T) {
		lt := NewLoadTracker(10)
		now := base
		for i := 0; i < 100; i++ {
			lt.Note(now)
			now = now.Add(time.Second) // 1/s
		}
		if f := lt.Factor(); f >= 1.0 {
			t.Errorf("Factor = %v under a 1/s stream, want below 1.0", f)
		}
	})

	t.Run("same-instant notes do not divide by zero", func(t *testing.T) {
		lt := NewLoadTracker(10)
		lt.Note(base)
		lt.Note(base)
		if f := lt.Factor(); f != 1.0 {
			t.Errorf("Factor = %v after duplicate timestamps, want 1.0", f)
		}
	})
}

func TestLoadDelta(t *testing.T) {
	cases := []struct {
		name   string
		factor float64
		weight float64
		want   float64
	}{
		{"zero weight disables", 5.0, 0, 0},
		{"nominal load is neutral", 1.0, 0.05, 0},
		{"busy clamps at +weight", 10.0, 0.05, 0.05},
		{"idle clamps at -weight", 0.0, 0.05, -0.05},
		{"small excursions pass through", 1.5, 0.05, 0.025},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := loadDelta(tc.factor, tc.weight); got != tc.want {
				t.Errorf("loadDelta(%v, %v) = %v, want %v", tc.factor, tc.weight, got, tc.want)
			}
		})
	}
}
