// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers all limbic routes with the router group.
//
// Endpoints:
//
//	GET /v1/limbic/health - Health check
//	GET /v1/limbic/levels - Current decayed level per kind
//	GET /v1/limbic/statistics - Bus counters
//	GET /v1/limbic/history - Retained signal history
//	GET /v1/limbic/thresholds - Adaptive threshold snapshots
//
// Example:
//
//	handlers := httpapi.NewHandlers(b, engine)
//	v1 := router.Group("/v1")
//	httpapi.RegisterRoutes(v1, handlers)
func RegisterRoutes(rg *gin.RouterGroup, handlers *Handlers) {
	limbic := rg.Group("/limbic")
	{
		limbic.GET("/health", handlers.HandleHealth)
		limbic.GET("/levels", handlers.HandleLevels)
		limbic.GET("/statistics", handlers.HandleStatistics)
		limbic.GET("/history", handlers.HandleHistory)
		limbic.GET("/thresholds", handlers.HandleThresholds)
	}
}

// NewRouter builds the daemon's router: recovery middleware, the v1 API,
// and an optional /metrics handler.
func NewRouter(handlers *Handlers, metrics http.Handler) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	v1 := router.Group("/v1")
	RegisterRoutes(v1, handlers)

	if metrics != nil {
		router.GET("/metrics", gin.WrapH(metrics))
	}
	return router
}
