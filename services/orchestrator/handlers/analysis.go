// Copyright (C) 2026 Pathway Property Analytics (dev@pathwayprop.com.au)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pathwayprop/pathway/pkg/validation"
	"github.com/pathwayprop/pathway/services/analysis"
	"github.com/pathwayprop/pathway/services/facts"
	"github.com/pathwayprop/pathway/services/orchestrator/datatypes"
	"github.com/pathwayprop/pathway/services/orchestrator/observability"
)

// StartAnalysis launches a new analysis run for a property.
//
// # Description
//
// Binds and validates the request, hands it to the runner, and returns the
// pending run snapshot with 202 Accepted. The run executes in the
// background; poll GET /v1/analyses/:id or subscribe to the events
// websocket for progress.
//
// # Inputs
//
//   - runner: The analysis runner
//   - metrics: Orchestrator metrics; may be nil in tests
//
// # Outputs
//
//   - 202 with the pending analysis snapshot
//   - 400 on malformed or invalid request bodies
func StartAnalysis(runner *analysis.Runner, metrics *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.StartAnalysisRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}
		if err := req.Validate(); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		state := req.State
		if state == "" {
			state = "VIC"
		}
		run, err := runner.Start(c.Request.Context(), analysis.StartRequest{
			PropertyID:   req.PropertyID,
			PropertyType: req.PropertyType,
			Attributes: facts.Attributes{
				Location: facts.Location{
					Address: req.Address,
					Lat:     req.Lat,
					Lng:     req.Lng,
					State:   state,
				},
				AskingPrice: req.AskingPrice,
				WeeklyRent:  req.WeeklyRent,
			},
		})
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		if metrics != nil {
			metrics.ActiveAnalyses.Inc()
		}
		c.JSON(http.StatusAccepted, run)
	}
}

// GetAnalysis returns the current snapshot of an analysis run.
func GetAnalysis(runner *analysis.Runner) gin.HandlerFunc {
	return func(c *gin.Context) {
		run, err := runner.Get(c.Param("id"))
		if err != nil {
			if errors.Is(err, analysis.ErrAnalysisNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "analysis not found"})
				return
			}
			slog.Error("Failed to load analysis", "analysis_id", c.Param("id"), "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load analysis"})
			return
		}
		c.JSON(http.StatusOK, run)
	}
}

// CancelAnalysis requests cancellation of a running analysis. Canceling a
// finished run is a no-op.
func CancelAnalysis(runner *analysis.Runner) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := runner.Cancel(c.Param("id")); err != nil {
			if errors.Is(err, analysis.ErrAnalysisNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "analysis not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"status": "cancel requested"})
	}
}

// GetPropertyGatekeeper returns the gatekeeper result from the most recent
// analysis of a property.
//
// # Description
//
// Looks up the latest run for the property and extracts its gatekeeper
// evaluation. Returns 404 when the property has never been analyzed, and
// 409 when the latest run has not reached the gatekeeper phase yet.
func GetPropertyGatekeeper(runner *analysis.Runner) gin.HandlerFunc {
	return func(c *gin.Context) {
		propertyID := c.Param("id")
		if err := validation.ValidateResourceID(propertyID); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		run, err := runner.Latest(propertyID)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "no analysis for property"})
			return
		}
		if run.Gatekeeper == nil {
			c.JSON(http.StatusConflict, gin.H{
				"error":       "gatekeeper result not available yet",
				"analysis_id": run.ID,
				"status":      run.Status,
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"analysis_id": run.ID,
			"property_id": run.PropertyID,
			"gatekeeper":  run.Gatekeeper,
		})
	}
}

// GetPropertyScore returns the composite risk report from the most recent
// analysis of a property.
//
// # Description
//
// Mirrors GetPropertyGatekeeper for the scoring report. A rejected run
// never produces a report; the 409 body carries the run status so callers
// can distinguish "still running" from "rejected".
func GetPropertyScore(runner *analysis.Runner) gin.HandlerFunc {
	return func(c *gin.Context) {
		propertyID := c.Param("id")
		if err := validation.ValidateResourceID(propertyID); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		run, err := runner.Latest(propertyID)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "no analysis for property"})
			return
		}
		if run.Report == nil {
			c.JSON(http.StatusConflict, gin.H{
				"error":       "risk report not available",
				"analysis_id": run.ID,
				"status":      run.Status,
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"analysis_id": run.ID,
			"property_id": run.PropertyID,
			"report":      run.Report,
		})
	}
}
