// Copyright (C) 2026 Pathway Property Analytics (dev@pathwayprop.com.au)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package documents

import (
	"context"
	"errors"
)

// ErrDocumentNotFound is returned by Chunks for an unknown document.
var ErrDocumentNotFound = errors.New("document not found")

// ScoredChunk is a retrieved chunk with its similarity certainty in [0,1].
type ScoredChunk struct {
	Chunk
	Score float64
}

// SearchQuery scopes a vector search. PropertyID is required so one
// property's documents never answer for another; DocumentID optionally
// narrows to a single document.
type SearchQuery struct {
	Vector     []float32
	PropertyID string
	DocumentID string
	Limit      int
}

// Store persists document chunks and serves similarity search.
//
// Replace is atomic with respect to readers: a search during re-ingestion
// sees either the old chunk set or the new one, never a mixture.
type Store interface {
	Replace(ctx context.Context, documentID string, chunks []Chunk) error
	Delete(ctx context.Context, documentID string) error
	Search(ctx context.Context, query SearchQuery) ([]ScoredChunk, error)
	Chunks(ctx context.Context, documentID string) ([]Chunk, error)
}
