// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package httpapi exposes the limbic daemon's read-only inspection API.
//
// The API never mutates bus state: signals enter the system through
// in-process producers only, so every endpoint is a GET over a snapshot.
package httpapi

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/limbic/bus"
	"github.com/AleutianAI/limbic/signal"
	"github.com/AleutianAI/limbic/threshold"
)

// ServiceVersion is the limbic service version.
const ServiceVersion = "0.1.0"

// DefaultHistoryLimit caps /history responses when no limit is given.
const DefaultHistoryLimit = 100

// BusView is the read-only slice of the bus the handlers need.
type BusView interface {
	CurrentLevels() map[signal.Kind]float64
	Statistics() bus.Stats
	History(kind signal.Kind, source string, limit int) []*signal.Envelope
}

// EngineView is the read-only slice of the threshold engine.
type EngineView interface {
	Snapshots() []threshold.Snapshot
}

// ErrorResponse is the standard error payload.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// Handlers contains the HTTP handlers for the inspection API.
type Handlers struct {
	bus    BusView
	engine EngineView
}

// NewHandlers creates handlers over the given views. The engine view may
// be nil when the threshold engine is disabled.
func NewHandlers(busView BusView, engineView EngineView) *Handlers {
	return &Handlers{bus: busView, engine: engineView}
}

// HandleHealth handles GET /v1/limbic/health.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"version": ServiceVersion,
	})
}

// HandleLevels handles GET /v1/limbic/levels.
//
// Response:
//
//	200 OK: map of kind to the maximum decayed level among live signals.
func (h *Handlers) HandleLevels(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"levels": h.bus.CurrentLevels()})
}

// HandleStatistics handles GET /v1/limbic/statistics.
func (h *Handlers) HandleStatistics(c *gin.Context) {
	c.JSON(http.StatusOK, h.bus.Statistics())
}

// HandleHistory handles GET /v1/limbic/history.
//
// Query Parameters:
//
//	kind - Optional kind filter.
//	source - Optional source filter.
//	limit - Maximum entries returned, newest kept (default 100).
//
// Response:
//
//	200 OK: matching envelopes, oldest first.
//	400 Bad Request: non-numeric or negative limit.
func (h *Handlers) HandleHistory(c *gin.Context) {
	limit := DefaultHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error: "limit must be a non-negative integer",
				Code:  "INVALID_LIMIT",
			})
			return
		}
		limit = parsed
	}

	entries := h.bus.History(signal.Kind(c.Query("kind")), c.Query("source"), limit)
	if entries == nil {
		entries = []*signal.Envelope{}
	}
	c.JSON(http.StatusOK, gin.H{
		"count":   len(entries),
		"history": entries,
	})
}

// HandleThresholds handles GET /v1/limbic/thresholds.
//
// Response:
//
//	200 OK: per-kind threshold snapshots.
//	503 Service Unavailable: threshold engine disabled.
func (h *Handlers) HandleThresholds(c *gin.Context) {
	if h.engine == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Error: "threshold engine is not running",
			Code:  "ENGINE_DISABLED",
		})
		return
	}
	snaps := h.engine.Snapshots()
	if snaps == nil {
		snaps = []threshold.Snapshot{}
	}
	c.JSON(http.StatusOK, gin.H{"thresholds": snaps})
}
