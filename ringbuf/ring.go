// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ringbuf provides a fixed-capacity append-only ring.
//
// The bus history, the per-kind recent windows, and the threshold engine's
// observation FIFOs all need the same shape: O(1) append, bounded memory,
// oldest entry overwritten when full. Entries are never popped; readers
// take ordered snapshots.
package ringbuf

// Ring is a fixed-capacity overwrite ring.
//
// # Thread Safety
//
// NOT safe for concurrent use; the owner synchronizes.
type Ring[T any] struct {
	entries []T
	next    int // next write index
	size    int // current number of entries
}

// New creates a ring with the given capacity. Capacities below one fall
// back to a default of 100.
func New[T any](capacity int) *Ring[T] {
	if capacity <= 0 {
		capacity = 100
	}
	return &Ring[T]{entries: make([]T, capacity)}
}

// Append adds an entry, overwriting the oldest when full.
func (r *Ring[T]) Append(entry T) {
	r.entries[r.next] = entry
	r.next = (r.next + 1) % len(r.entries)
	if r.size < len(r.entries) {
		r.size++
	}
}

// Len returns the current number of entries.
func (r *Ring[T]) Len() int { return r.size }

// Cap returns the fixed capacity.
func (r *Ring[T]) Cap() int { return len(r.entries) }

// start returns the index of the oldest entry.
func (r *Ring[T]) start() int {
	if r.size < len(r.entries) {
		return 0
	}
	return r.next
}

// Snapshot returns all entries oldest-first. The returned slice is a copy.
func (r *Ring[T]) Snapshot() []T {
	if r.size == 0 {
		return nil
	}
	out := make([]T, 0, r.size)
	start := r.start()
	for i := 0; i < r.size; i++ {
		out = append(out, r.entries[(start+i)%len(r.entries)])
	}
	return out
}

// Each calls fn for every entry oldest-first. Return false to stop.
func (r *Ring[T]) Each(fn func(entry T) bool) {
	start := r.start()
	for i := 0; i < r.size; i++ {
		if !fn(r.entries[(start+i)%len(r.entries)]) {
			return
		}
	}
}

// Where returns the entries matching the predicate, oldest-first.
func (r *Ring[T]) Where(pred func(entry T) bool) []T {
	var out []T
	r.Each(func(entry T) bool {
		if pred(entry) {
			out = append(out, entry)
		}
		return true
	})
	return out
}

// Tail returns up to n of the newest entries, oldest-first.
func (r *Ring[T]) Tail(n int) []T {
	if n <= 0 || r.size == 0 {
		return nil
	}
	if n > r.size {
		n = r.size
	}
	out := make([]T, 0, n)
	start := r.start() + r.size - n
	for i := 0; i < n; i++ {
		out = append(out, r.entries[(start+i)%len(r.entries)])
	}
	return out
}
