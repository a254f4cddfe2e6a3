// Copyright (C) 2026 Pathway Property Analytics (dev@pathwayprop.com.au)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package documents

import (
	"context"
	"math"
	"sort"
	"sync"
)

// DefaultSearchLimit bounds searches that do not set an explicit limit.
const DefaultSearchLimit = 10

// MemoryStore is an in-process Store used in lightweight mode and tests.
// Replace swaps the whole chunk slice for a document under the lock, so
// readers always observe a complete version.
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string][]Chunk
}

// NewMemoryStore builds an empty in-process store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string][]Chunk)}
}

// Replace installs the chunk set for a document, discarding any prior set.
func (s *MemoryStore) Replace(_ context.Context, documentID string, chunks []Chunk) error {
	snapshot := make([]Chunk, len(chunks))
	copy(snapshot, chunks)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[documentID] = snapshot
	return nil
}

// Delete removes a document's chunks. Deleting an unknown document is a
// no-op.
func (s *MemoryStore) Delete(_ context.Context, documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs, documentID)
	return nil
}

// Search ranks chunks of the query's property by cosine similarity,
// rescaled to certainty in [0,1] to match the vector store's scoring.
func (s *MemoryStore) Search(_ context.Context, query SearchQuery) ([]ScoredChunk, error) {
	limit := query.Limit
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var scored []ScoredChunk
	for docID, chunks := range s.docs {
		if query.DocumentID != "" && docID != query.DocumentID {
			continue
		}
		for _, chunk := range chunks {
			if chunk.PropertyID != query.PropertyID {
				continue
			}
			scored = append(scored, ScoredChunk{
				Chunk: chunk,
				Score: (1 + cosineSimilarity(query.Vector, chunk.Vector)) / 2,
			})
		}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		if scored[i].DocumentID != scored[j].DocumentID {
			return scored[i].DocumentID < scored[j].DocumentID
		}
		return scored[i].Ordinal < scored[j].Ordinal
	})
	if len(scored) > limit {
		scored = scored[:limit]
	}
	return scored, nil
}

// Chunks returns a document's chunks in ordinal order.
func (s *MemoryStore) Chunks(_ context.Context, documentID string) ([]Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	chunks, ok := s.docs[documentID]
	if !ok {
		return nil, ErrDocumentNotFound
	}
	out := make([]Chunk, len(chunks))
	copy(out, chunks)
	sort.Slice(out, func(i, j int) bool { return out[i].Ordinal < out[j].Ordinal })
	return out, nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
