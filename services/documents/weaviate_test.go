// Copyright (C) 2026 Pathway Property Analytics (dev@pathwayprop.com.au)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package documents

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionedObjectIDSeparatesIngestVersions(t *testing.T) {
	chunkID := ChunkID("doc-1", 0, "Clause 1: the vendor warrants title.")

	v1 := versionedObjectID(chunkID, "version-a")
	v2 := versionedObjectID(chunkID, "version-b")

	// An unchanged chunk re-ingested under a new version must land in a new
	// object, never overwrite the live one.
	assert.NotEqual(t, v1, v2)
	assert.NotEqual(t, chunkID, v1)
	assert.Equal(t, v1, versionedObjectID(chunkID, "version-a"))
}

func TestLiveVersionsPrefersInProcessRecord(t *testing.T) {
	store := NewWeaviateStore(nil)
	store.current.Store("doc-1", "version-b")

	now := time.Now().UTC()
	chunks := []Chunk{
		{DocumentID: "doc-1", Ordinal: 0, IngestedAt: now, ingestVersion: "version-b"},
		// Leftover from a prune that hasn't run yet, with a later clock.
		{DocumentID: "doc-1", Ordinal: 0, IngestedAt: now.Add(time.Minute), ingestVersion: "version-c"},
	}

	live := store.liveVersions(chunks)
	require.Equal(t, "version-b", live["doc-1"])
	assert.False(t, staleFor(chunks[0], live))
	assert.True(t, staleFor(chunks[1], live))
}

func TestLiveVersionsFallsBackToNewestVersion(t *testing.T) {
	// No in-process record, as after a restart or on another replica.
	store := NewWeaviateStore(nil)

	now := time.Now().UTC()
	chunks := []Chunk{
		{DocumentID: "doc-1", Ordinal: 0, IngestedAt: now.Add(-time.Hour), ingestVersion: "version-a"},
		{DocumentID: "doc-1", Ordinal: 1, IngestedAt: now.Add(-time.Hour), ingestVersion: "version-a"},
		{DocumentID: "doc-1", Ordinal: 0, IngestedAt: now, ingestVersion: "version-b"},
		{DocumentID: "doc-2", Ordinal: 0, IngestedAt: now, ingestVersion: "version-x"},
	}

	live := store.liveVersions(chunks)
	require.Equal(t, "version-b", live["doc-1"])
	require.Equal(t, "version-x", live["doc-2"])

	var kept []Chunk
	for _, chunk := range chunks {
		if !staleFor(chunk, live) {
			kept = append(kept, chunk)
		}
	}
	// Only the newest version of doc-1 survives, never a mixture.
	require.Len(t, kept, 2)
	assert.Equal(t, "version-b", kept[0].ingestVersion)
	assert.Equal(t, "version-x", kept[1].ingestVersion)
}

func TestChunkFromPropsReadsStableIdentity(t *testing.T) {
	props := map[string]interface{}{
		"chunk_id":    "logical-id",
		"content":     "Clause 1: the vendor warrants title.",
		"document_id": "doc-1",
		"_additional": map[string]interface{}{
			"id":        "versioned-object-id",
			"certainty": 0.92,
		},
	}

	chunk, certainty := chunkFromProps(props)
	assert.Equal(t, "logical-id", chunk.ID)
	assert.InDelta(t, 0.92, certainty, 1e-9)

	// Objects written before chunk_id existed fall back to the object ID.
	delete(props, "chunk_id")
	chunk, _ = chunkFromProps(props)
	assert.Equal(t, "versioned-object-id", chunk.ID)
}
