// Copyright (C) 2026 Pathway Property Analytics (dev@pathwayprop.com.au)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pathwayprop/pathway/services/analysis"
	"github.com/pathwayprop/pathway/services/documents"
	"github.com/pathwayprop/pathway/services/orchestrator/handlers"
	"github.com/pathwayprop/pathway/services/orchestrator/observability"
	"github.com/pathwayprop/pathway/services/rag"
)

func SetupRoutes(router *gin.Engine, runner *analysis.Runner, pipeline *documents.Pipeline,
	ragEngine *rag.Engine, metrics *observability.Metrics) {

	router.GET("/health", handlers.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API version 1 group
	v1 := router.Group("/v1")
	{
		v1.POST("/analyses", handlers.StartAnalysis(runner, metrics))
		v1.GET("/analyses/:id", handlers.GetAnalysis(runner))
		v1.DELETE("/analyses/:id", handlers.CancelAnalysis(runner))
		v1.GET("/analyses/:id/events", handlers.HandleAnalysisEvents(runner))
		v1.POST("/documents", handlers.IngestDocument(pipeline, metrics))
		v1.POST("/query", handlers.HandleQuery(ragEngine, metrics))
		// Property-scoped read routes
		properties := v1.Group("/properties")
		{
			properties.GET("/:id/gatekeeper", handlers.GetPropertyGatekeeper(runner))
			properties.GET("/:id/score", handlers.GetPropertyScore(runner))
		}
	}
}
