// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type reloadRecorder struct {
	mu   sync.Mutex
	cfgs []Config
}

func (r *reloadRecorder) handle(cfg Config) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cfgs = append(r.cfgs, cfg)
}

func (r *reloadRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.cfgs)
}

func (r *reloadRecorder) last() Config {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cfgs[len(r.cfgs)-1]
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

func TestWatcherReloadsOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "limbic.yaml")
	require.NoError(t, os.WriteFile(path, []byte("http:\n  enabled: false\n"), 0644))

	rec := &reloadRecorder{}
	w, err := NewWatcher(path, rec.handle, WithDebounce(20*time.Millisecond))
	require.NoError(t, err)
	require.NoError(t, w.Start())
	defer w.Stop()

	require.NoError(t, os.WriteFile(path,
		[]byte("http:\n  enabled: true\n  addr: \":9099\"\n"), 0644))

	require.True(t, waitFor(t, 2*time.Second, func() bool { return rec.count() >= 1 }),
		"watcher never delivered the reload")
	assert.Equal(t, ":9099", rec.last().HTTP.Addr)
}

func TestWatcherRejectsBrokenConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "limbic.yaml")
	require.NoError(t, os.WriteFile(path, []byte("http:\n  enabled: false\n"), 0644))

	rec := &reloadRecorder{}
	w, err := NewWatcher(path, rec.handle, WithDebounce(20*time.Millisecond))
	require.NoError(t, err)
	require.NoError(t, w.Start())
	defer w.Stop()

	// Malformed YAML must never reach the handler.
	require.NoError(t, os.WriteFile(path, []byte("bus: [broken\n"), 0644))
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, 0, rec.count())

	// A subsequent good write recovers.
	require.NoError(t, os.WriteFile(path, []byte("bus:\n  history_cap: 128\n"), 0644))
	require.True(t, waitFor(t, 2*time.Second, func() bool { return rec.count() >= 1 }))
	assert.Equal(t, 128, rec.last().Bus.HistoryCap)
}

func TestWatcherIgnoresSiblingFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "limbic.yaml")
	require.NoError(t, os.WriteFile(path, []byte("http:\n  enabled: false\n"), 0644))

	rec := &reloadRecorder{}
	w, err := NewWatcher(path, rec.handle, WithDebounce(20*time.Millisecond))
	require.NoError(t, err)
	require.NoError(t, w.Start())
	defer w.Stop()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.yaml"), []byte("x: 1\n"), 0644))
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, 0, rec.count())
}

func TestWatcherStopIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "limbic.yaml")
	require.NoError(t, os.WriteFile(path, []byte("{}\n"), 0644))

	w, err := NewWatcher(path, func(Config) {})
	require.NoError(t, err)
	require.NoError(t, w.Start())
	w.Stop()
	w.Stop()
}

func TestNewWatcherRequiresHandler(t *testing.T) {
	_, err := NewWatcher("limbic.yaml", nil)
	assert.Error(t, err)
}
