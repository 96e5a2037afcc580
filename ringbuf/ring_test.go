// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ringbuf

import (
	"reflect"
	"testing"
)

func TestRingAppendAndSnapshot(t *testing.T) {
	t.Run("empty ring snapshots nil", func(t *testing.T) {
		r := New[int](4)
		if got := r.Snapshot(); got != nil {
			t.Errorf("Snapshot = %v, want nil", got)
		}
		if r.Len() != 0 {
			t.Errorf("Len = %d, want 0", r.Len())
		}
	})

	t.Run("partial fill preserves order", func(t *testing.T) {
		r := New[int](4)
		r.Append(1)
		r.Append(2)
		r.Append(3)
		if got := r.Snapshot(); !reflect.DeepEqual(got, []int{1, 2, 3}) {
			t.Errorf("Snapshot = %v, want [1 2 3]", got)
		}
	})

	t.Run("overwrite evicts oldest", func(t *testing.T) {
		r := New[int](3)
		for i := 1; i <= 5; i++ {
			r.Append(i)
		}
		if got := r.Snapshot(); !reflect.DeepEqual(got, []int{3, 4, 5}) {
			t.Errorf("Snapshot = %v, want [3 4 5]", got)
		}
		if r.Len() != 3 {
			t.Errorf("Len = %d, want 3", r.Len())
		}
	})

	t.Run("default capacity applied", func(t *testing.T) {
		r := New[int](0)
		if r.Cap() != 100 {
			t.Errorf("Cap = %d, want 100", r.Cap())
		}
	})
}

func TestRingTail(t *testing.T) {
	r := New[int](5)
	for i := 1; i <= 7; i++ {
		r.Append(i)
	}

	cases := []struct {
		name string
		n    int
		want []int
	}{
		{"subset", 2, []int{6, 7}},
		{"exact", 5, []int{3, 4, 5, 6, 7}},
		{"over", 10, []int{3, 4, 5, 6, 7}},
		{"zero", 0, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := r.Tail(tc.n); !reflect.DeepEqual(got, tc.want) {
				t.Errorf("Tail(%d) = %v, want %v", tc.n, got, tc.want)
			}
		})
	}
}

func TestRingWhere(t *testing.T) {
	r := New[int](10)
	for i := 1; i <= 8; i++ {
		r.Append(i)
	}
	got := r.Where(func(v int) bool { return v%2 == 0 })
	if !reflect.DeepEqual(got, []int{2, 4, 6, 8}) {
		t.Errorf("Where = %v, want [2 4 6 8]", got)
	}
}

func TestRingEachStopsEarly(t *testing.T) {
	r := New[int](4)
	r.Append(1)
	r.Append(2)
	r.Append(3)

	var seen []int
	r.Each(func(v int) bool {
		seen = append(seen, v)
		return v < 2
	})
	if !reflect.DeepEqual(seen, []int{1, 2}) {
		t.Errorf("seen = %v, want [1 2]", seen)
	}
}
