// Copyright (C) 2026 Pathway Property Analytics (dev@pathwayprop.com.au)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pathwayprop/pathway/services/orchestrator/datatypes"
	"github.com/pathwayprop/pathway/services/orchestrator/observability"
	"github.com/pathwayprop/pathway/services/rag"
)

// HandleQuery answers a grounded question against a property's documents.
//
// # Description
//
// Scopes retrieval to a single document when document_id is set, otherwise
// searches the whole property corpus. The answer carries citations back to
// the chunks it was grounded on; an empty citation list is flagged
// ambiguous.
//
// # Outputs
//
//   - 200 with the answer, citations, confidence, and flags
//   - 400 on malformed or invalid request bodies
//   - 500 when embedding, retrieval, or generation fails
func HandleQuery(engine *rag.Engine, metrics *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.QueryRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}
		if err := req.Validate(); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		scope := "property"
		if req.DocumentID != "" {
			scope = "document"
		}

		start := time.Now()
		var answer *rag.Answer
		var err error
		if req.DocumentID != "" {
			answer, err = engine.Query(c.Request.Context(), req.PropertyID, req.DocumentID, req.Question)
		} else {
			answer, err = engine.QueryProperty(c.Request.Context(), req.PropertyID, req.Question)
		}
		if metrics != nil {
			metrics.QueryDurationSeconds.WithLabelValues(scope).Observe(time.Since(start).Seconds())
		}
		if err != nil {
			if metrics != nil {
				metrics.QueriesTotal.WithLabelValues(scope, "error").Inc()
			}
			slog.Error("Query failed", "property_id", req.PropertyID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		if metrics != nil {
			outcome := "answered"
			if answer.NotFound {
				outcome = "not_found"
			}
			metrics.QueriesTotal.WithLabelValues(scope, outcome).Inc()
		}
		c.JSON(http.StatusOK, answer)
	}
}
