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

	"github.com/gin-gonic/gin"

	"github.com/pathwayprop/pathway/services/documents"
	"github.com/pathwayprop/pathway/services/orchestrator/datatypes"
	"github.com/pathwayprop/pathway/services/orchestrator/observability"
)

// IngestDocument receives extracted document pages and runs the ingest
// pipeline.
//
// # Description
//
// Validates the request, converts it to a pipeline document, and ingests
// it. Re-posting the same document ID replaces the prior chunks
// atomically; posting an empty page list removes the document.
//
// # Inputs
//
//   - pipeline: The document ingest pipeline
//   - metrics: Orchestrator metrics; may be nil in tests
//
// # Outputs
//
//   - 201 with the ingest result (chunk count, fallback flag, low-confidence pages)
//   - 400 on malformed or invalid request bodies
//   - 500 when chunking, embedding, or the store write fails
func IngestDocument(pipeline *documents.Pipeline, metrics *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.IngestDocumentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}
		if err := req.Validate(); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		doc := documents.Document{
			DocumentID: req.DocumentID,
			PropertyID: req.PropertyID,
			Kind:       documents.Kind(req.Kind),
			Source:     req.Source,
			Pages:      make([]documents.PageText, 0, len(req.Pages)),
		}
		for _, p := range req.Pages {
			confidence := 1.0
			if p.Confidence != nil {
				confidence = *p.Confidence
			}
			doc.Pages = append(doc.Pages, documents.PageText{
				PageNumber: p.PageNumber,
				Text:       p.Text,
				Confidence: confidence,
			})
		}

		result, err := pipeline.Ingest(c.Request.Context(), doc)
		if err != nil {
			slog.Error("Document ingest failed",
				"document_id", req.DocumentID,
				"property_id", req.PropertyID,
				"error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		if metrics != nil {
			metrics.DocumentsIngestedTotal.WithLabelValues(req.Kind).Inc()
			metrics.ChunksIngestedTotal.Add(float64(result.ChunkCount))
		}
		slog.Info("Document ingested",
			"document_id", result.DocumentID,
			"chunks", result.ChunkCount,
			"fallback", result.Fallback)
		c.JSON(http.StatusCreated, result)
	}
}
