// Copyright (C) 2026 Pathway Property Analytics (dev@pathwayprop.com.au)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package documents

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("pathway.documents")

// Embedder computes vectors for chunk texts. Batch order must match input
// order.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// IngestResult summarizes one ingestion.
type IngestResult struct {
	DocumentID         string `json:"document_id"`
	ChunkCount         int    `json:"chunk_count"`
	Fallback           bool   `json:"fallback"`
	LowConfidencePages []int  `json:"low_confidence_pages,omitempty"`
}

// Pipeline chunks, embeds and stores documents.
type Pipeline struct {
	chunker  *Chunker
	embedder Embedder
	store    Store
}

// NewPipeline wires a chunker, an embedder and a store.
func NewPipeline(chunker *Chunker, embedder Embedder, store Store) *Pipeline {
	return &Pipeline{chunker: chunker, embedder: embedder, store: store}
}

// # Description
//
//	Ingest runs the full document pipeline: normalize and chunk the pages,
//	embed every chunk text in one batch, then atomically replace the
//	document's chunk set in the store. Re-ingesting the same document
//	replaces its previous chunks; a document that normalizes to nothing is
//	removed.
//
// # Inputs
//
//	ctx - Context for cancellation.
//	doc - Document with identity, kind and OCR pages.
//
// # Outputs
//
//	*IngestResult - Chunk count and quality flags for the caller's report.
//	error         - Non-nil on invalid input, embedding failure or store
//	                failure; the store keeps the prior version on failure.
func (p *Pipeline) Ingest(ctx context.Context, doc Document) (*IngestResult, error) {
	ctx, span := tracer.Start(ctx, "documents.Ingest")
	defer span.End()

	if doc.DocumentID == "" || doc.PropertyID == "" {
		return nil, fmt.Errorf("document and property IDs are required")
	}

	chunks := p.chunker.Chunk(doc)
	if len(chunks) == 0 {
		slog.Warn("Document produced no chunks, removing", "document_id", doc.DocumentID)
		if err := p.store.Delete(ctx, doc.DocumentID); err != nil {
			return nil, err
		}
		return &IngestResult{DocumentID: doc.DocumentID}, nil
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}
	vectors, err := p.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embedding %d chunks of %s: %w", len(chunks), doc.DocumentID, err)
	}
	if len(vectors) != len(chunks) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(chunks))
	}

	now := time.Now().UTC()
	for i := range chunks {
		chunks[i].Vector = vectors[i]
		chunks[i].IngestedAt = now
	}

	if err := p.store.Replace(ctx, doc.DocumentID, chunks); err != nil {
		return nil, err
	}

	result := &IngestResult{
		DocumentID: doc.DocumentID,
		ChunkCount: len(chunks),
		Fallback:   chunks[0].Fallback,
	}
	for _, page := range doc.Pages {
		if page.Confidence < p.chunker.cfg.ConfidenceFloor {
			result.LowConfidencePages = append(result.LowConfidencePages, page.PageNumber)
		}
	}

	slog.Info("Ingested document",
		"document_id", doc.DocumentID,
		"property_id", doc.PropertyID,
		"kind", doc.Kind,
		"chunks", result.ChunkCount,
		"fallback", result.Fallback)
	span.SetAttributes(
		attribute.Int("documents.chunks", result.ChunkCount),
		attribute.Bool("documents.fallback", result.Fallback),
	)
	return result, nil
}
