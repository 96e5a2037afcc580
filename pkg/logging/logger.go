// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package logging provides structured logging for limbic components.
//
// Built on the standard library slog package. Default output is stderr
// following Unix CLI conventions; file logging is optional and writes
// JSON lines named {service}_{date}.log.
//
// # Basic Usage
//
//	logger := logging.Default()
//	logger.Info("bus started", "history_cap", 512)
//
// # Security Considerations
//
// This package does NOT automatically redact sensitive data. Signal
// metadata is opaque producer context and may carry anything; log
// metadata presence, not values, unless the producer is trusted.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Config configures the Logger behavior.
//
// A zero-value Config creates a logger that writes Info+ messages to
// stderr in text format.
type Config struct {
	// Level is the minimum severity: "debug", "info", "warn", "error".
	// Default: "info".
	Level string

	// JSON switches output to JSON lines. Default: text.
	JSON bool

	// LogDir enables file logging alongside stderr when non-empty.
	// Supports ~ expansion. Files are named {service}_{date}.log.
	LogDir string

	// Service names the log file. Default: "limbic".
	Service string
}

// Logger wraps slog.Logger with an optional log file to close.
type Logger struct {
	*slog.Logger
	file *os.File
}

// Default returns a stderr text logger at Info level.
func Default() *Logger {
	l, _ := New(Config{})
	return l
}

// New creates a logger from the configuration.
//
// Description:
//
//	Always logs to stderr. When LogDir is set, also writes JSON lines to
//	a dated file in that directory, creating it as needed. Call Close
//	when file logging is enabled.
//
// Outputs:
//
//	*Logger - The logger. Never nil; falls back to stderr-only on file
//	errors.
//	error - Non-nil if the log directory or file could not be created.
func New(cfg Config) (*Logger, error) {
	level := parseLevel(cfg.Level)

	var out io.Writer = os.Stderr
	var file *os.File

	if cfg.LogDir != "" {
		f, err := openLogFile(cfg.LogDir, cfg.Service)
		if err != nil {
			return newLogger(os.Stderr, level, cfg.JSON, nil),
				fmt.Errorf("failed to open log file: %w", err)
		}
		file = f
		out = io.MultiWriter(os.Stderr, f)
	}

	return newLogger(out, level, cfg.JSON, file), nil
}

// Close flushes and closes the log file, if any.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}

// SetAsDefault installs the logger as the process-wide slog default.
func (l *Logger) SetAsDefault() {
	slog.SetDefault(l.Logger)
}

func newLogger(out io.Writer, level slog.Level, json bool, file *os.File) *Logger {
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if json {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}
	return &Logger{Logger: slog.New(handler), file: file}
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func openLogFile(dir, service string) (*os.File, error) {
	if strings.HasPrefix(dir, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		dir = filepath.Join(home, strings.TrimPrefix(dir, "~"))
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	if service == "" {
		service = "limbic"
	}
	name := fmt.Sprintf("%s_%s.log", service, time.Now().Format("2006-01-02"))
	return os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
}
