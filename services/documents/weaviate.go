// Copyright (C) 2026 Pathway Property Analytics (dev@pathwayprop.com.au)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package documents

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"
)

// ChunkClassName is the Weaviate class holding document chunks.
const ChunkClassName = "PropertyChunk"

// maxDocumentChunks caps a single document listing query.
const maxDocumentChunks = 10000

// WeaviateStore is the production Store backed by Weaviate.
//
// Replace writes the new chunk set under a fresh ingest version, with the
// version folded into each object ID so the writes never touch the live
// objects. The document's current version flips only after the whole batch
// lands, then superseded objects are pruned. Readers resolve one live
// version per document, so a search racing a re-ingestion sees one complete
// version, never a mixture.
type WeaviateStore struct {
	client *weaviate.Client

	// current maps documentID to its live ingest version. The record is
	// process-local; readers without it fall back to the newest version
	// present in Weaviate.
	current sync.Map
}

// NewWeaviateStore wraps a connected Weaviate client.
func NewWeaviateStore(client *weaviate.Client) *WeaviateStore {
	return &WeaviateStore{client: client}
}

// chunkClassSchema returns the Weaviate schema for PropertyChunk.
func chunkClassSchema() *models.Class {
	indexFilterable := new(bool)
	*indexFilterable = true

	return &models.Class{
		Class:       ChunkClassName,
		Description: "Structure-tagged chunk of an ingested property document",
		Vectorizer:  "none",
		InvertedIndexConfig: &models.InvertedIndexConfig{
			IndexTimestamps: true,
		},
		Properties: []*models.Property{
			{
				Name:            "chunk_id",
				DataType:        []string{"text"},
				Description:     "Stable chunk identity across ingest versions",
				IndexFilterable: indexFilterable,
				Tokenization:    "field",
			},
			{
				Name:         "content",
				DataType:     []string{"text"},
				Description:  "Chunk text",
				Tokenization: "word",
			},
			{
				Name:            "document_id",
				DataType:        []string{"text"},
				Description:     "Owning document",
				IndexFilterable: indexFilterable,
				Tokenization:    "field",
			},
			{
				Name:            "property_id",
				DataType:        []string{"text"},
				Description:     "Owning property",
				IndexFilterable: indexFilterable,
				Tokenization:    "field",
			},
			{
				Name:        "ordinal",
				DataType:    []string{"int"},
				Description: "Position within the document",
			},
			{
				Name:            "structural_tag",
				DataType:        []string{"text"},
				Description:     "Unit kind the chunk was cut from",
				IndexFilterable: indexFilterable,
				Tokenization:    "field",
			},
			{
				Name:         "section",
				DataType:     []string{"text"},
				Description:  "Section heading for citations",
				Tokenization: "word",
			},
			{
				Name:        "page_number",
				DataType:    []string{"int"},
				Description: "Source page",
			},
			{
				Name:        "split",
				DataType:    []string{"boolean"},
				Description: "Part of an oversized structural unit",
			},
			{
				Name:        "low_confidence",
				DataType:    []string{"boolean"},
				Description: "Cut from a page below the OCR confidence floor",
			},
			{
				Name:        "fallback",
				DataType:    []string{"boolean"},
				Description: "Page-level chunk, no structural boundary matched",
			},
			{
				Name:            "ingest_version",
				DataType:        []string{"text"},
				Description:     "Version tag of the ingestion that wrote the chunk",
				IndexFilterable: indexFilterable,
				Tokenization:    "field",
			},
			{
				Name:        "ingested_at",
				DataType:    []string{"int"},
				Description: "Ingestion time, unix milliseconds",
			},
		},
	}
}

// EnsureSchema creates the PropertyChunk class if it doesn't exist.
// Idempotent; call once at startup.
func (s *WeaviateStore) EnsureSchema(ctx context.Context) error {
	_, err := s.client.Schema().ClassGetter().WithClassName(ChunkClassName).Do(ctx)
	if err == nil {
		slog.Info("PropertyChunk schema already exists")
		return nil
	}

	slog.Info("Creating PropertyChunk schema")
	if err := s.client.Schema().ClassCreator().WithClass(chunkClassSchema()).Do(ctx); err != nil {
		return fmt.Errorf("creating PropertyChunk schema: %w", err)
	}
	return nil
}

// # Description
//
//	Replace ingests the chunk set for a document. All chunks are written in
//	one batch under a fresh ingest version; the version is part of each
//	object ID, so the new objects coexist with the live set until the
//	document's current version flips, which happens only when every batch
//	item succeeded. Objects from prior versions are pruned afterwards.
//
// # Inputs
//
//	ctx        - Context for cancellation.
//	documentID - Document whose chunks are being replaced.
//	chunks     - Full new chunk set; empty deletes the document.
//
// # Outputs
//
//	error - Non-nil if the batch write failed; the previous version stays
//	        live in that case.
func (s *WeaviateStore) Replace(ctx context.Context, documentID string, chunks []Chunk) error {
	if len(chunks) == 0 {
		return s.Delete(ctx, documentID)
	}

	version := uuid.NewString()
	objects := make([]*models.Object, len(chunks))
	for i, chunk := range chunks {
		objects[i] = &models.Object{
			Class:  ChunkClassName,
			ID:     strfmt.UUID(versionedObjectID(chunk.ID, version)),
			Vector: chunk.Vector,
			Properties: map[string]interface{}{
				"chunk_id":       chunk.ID,
				"content":        chunk.Text,
				"document_id":    chunk.DocumentID,
				"property_id":    chunk.PropertyID,
				"ordinal":        chunk.Ordinal,
				"structural_tag": chunk.StructuralTag,
				"section":        chunk.Section,
				"page_number":    chunk.PageNumber,
				"split":          chunk.Split,
				"low_confidence": chunk.LowConfidence,
				"fallback":       chunk.Fallback,
				"ingest_version": version,
				"ingested_at":    chunk.IngestedAt.UnixMilli(),
			},
		}
	}

	resp, err := s.client.Batch().ObjectsBatcher().WithObjects(objects...).Do(ctx)
	if err != nil {
		return fmt.Errorf("batch import of %d chunks failed: %w", len(chunks), err)
	}
	for _, item := range resp {
		if item.Result != nil && item.Result.Errors != nil && len(item.Result.Errors.Error) > 0 {
			return fmt.Errorf("batch item failed, keeping previous version of %s: %s",
				documentID, item.Result.Errors.Error[0].Message)
		}
	}

	s.current.Store(documentID, version)
	slog.Info("Replaced document chunks",
		"document_id", documentID,
		"chunks", len(chunks),
		"ingest_version", version)

	// Prune superseded objects. A failure here leaves dead weight behind
	// the version filter, not wrong results.
	if err := s.pruneStaleVersions(ctx, documentID, version); err != nil {
		slog.Warn("Failed to prune superseded chunks", "document_id", documentID, "error", err)
	}
	return nil
}

// versionedObjectID derives the Weaviate object ID for a chunk within one
// ingest version. Folding the version in means a re-ingestion's writes never
// overwrite the live objects they are about to supersede, even when the
// chunk content is unchanged.
func versionedObjectID(chunkID, version string) string {
	hash := sha256.Sum256([]byte(chunkID + "|" + version))
	id, _ := uuid.FromBytes(hash[:16])
	return id.String()
}

func (s *WeaviateStore) pruneStaleVersions(ctx context.Context, documentID, keepVersion string) error {
	where := filters.Where().
		WithOperator(filters.And).
		WithOperands([]*filters.WhereBuilder{
			filters.Where().
				WithPath([]string{"document_id"}).
				WithOperator(filters.Equal).
				WithValueString(documentID),
			filters.Where().
				WithPath([]string{"ingest_version"}).
				WithOperator(filters.NotEqual).
				WithValueString(keepVersion),
		})

	_, err := s.client.Batch().ObjectsBatchDeleter().
		WithClassName(ChunkClassName).
		WithWhere(where).
		Do(ctx)
	return err
}

// Delete removes every chunk of a document.
func (s *WeaviateStore) Delete(ctx context.Context, documentID string) error {
	where := filters.Where().
		WithPath([]string{"document_id"}).
		WithOperator(filters.Equal).
		WithValueString(documentID)

	_, err := s.client.Batch().ObjectsBatchDeleter().
		WithClassName(ChunkClassName).
		WithWhere(where).
		Do(ctx)
	if err != nil {
		return fmt.Errorf("deleting chunks of %s: %w", documentID, err)
	}
	s.current.Delete(documentID)
	return nil
}

var chunkFields = []graphql.Field{
	{Name: "chunk_id"},
	{Name: "content"},
	{Name: "document_id"},
	{Name: "property_id"},
	{Name: "ordinal"},
	{Name: "structural_tag"},
	{Name: "section"},
	{Name: "page_number"},
	{Name: "split"},
	{Name: "low_confidence"},
	{Name: "fallback"},
	{Name: "ingest_version"},
	{Name: "ingested_at"},
	{Name: "_additional", Fields: []graphql.Field{
		{Name: "id"},
		{Name: "certainty"},
	}},
}

// Search runs a NearVector query scoped to the property (and optionally a
// single document), dropping hits from superseded ingest versions.
func (s *WeaviateStore) Search(ctx context.Context, query SearchQuery) ([]ScoredChunk, error) {
	limit := query.Limit
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	where := filters.Where().
		WithPath([]string{"property_id"}).
		WithOperator(filters.Equal).
		WithValueString(query.PropertyID)
	if query.DocumentID != "" {
		where = filters.Where().
			WithOperator(filters.And).
			WithOperands([]*filters.WhereBuilder{
				where,
				filters.Where().
					WithPath([]string{"document_id"}).
					WithOperator(filters.Equal).
					WithValueString(query.DocumentID),
			})
	}

	nearVector := s.client.GraphQL().NearVectorArgBuilder().
		WithVector(query.Vector)

	result, err := s.client.GraphQL().Get().
		WithClassName(ChunkClassName).
		WithFields(chunkFields...).
		WithWhere(where).
		WithNearVector(nearVector).
		WithLimit(limit).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("weaviate search failed: %w", err)
	}

	var hits []ScoredChunk
	var seen []Chunk
	for _, props := range chunkResults(result) {
		chunk, certainty := chunkFromProps(props)
		hits = append(hits, ScoredChunk{Chunk: chunk, Score: certainty})
		seen = append(seen, chunk)
	}

	live := s.liveVersions(seen)
	var scored []ScoredChunk
	for _, hit := range hits {
		if staleFor(hit.Chunk, live) {
			continue
		}
		scored = append(scored, hit)
	}
	return scored, nil
}

// Chunks lists a document's live chunks in ordinal order.
func (s *WeaviateStore) Chunks(ctx context.Context, documentID string) ([]Chunk, error) {
	where := filters.Where().
		WithPath([]string{"document_id"}).
		WithOperator(filters.Equal).
		WithValueString(documentID)

	sortBy := graphql.Sort{
		Path:  []string{"ordinal"},
		Order: graphql.Asc,
	}

	result, err := s.client.GraphQL().Get().
		WithClassName(ChunkClassName).
		WithFields(chunkFields...).
		WithWhere(where).
		WithSort(sortBy).
		WithLimit(maxDocumentChunks).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("weaviate query failed: %w", err)
	}

	var all []Chunk
	for _, props := range chunkResults(result) {
		chunk, _ := chunkFromProps(props)
		all = append(all, chunk)
	}

	live := s.liveVersions(all)
	var chunks []Chunk
	for _, chunk := range all {
		if staleFor(chunk, live) {
			continue
		}
		chunks = append(chunks, chunk)
	}
	if len(chunks) == 0 {
		return nil, ErrDocumentNotFound
	}
	return chunks, nil
}

// liveVersions resolves the ingest version a reader should trust for each
// document in a result set. The in-process record from the last Replace wins
// when present; without one (after a restart, or on another replica) the
// newest version among the returned chunks stands in. Pruning keeps
// documents single-versioned at rest, so the fallback only matters in the
// window between a batch landing and its prune.
func (s *WeaviateStore) liveVersions(chunks []Chunk) map[string]string {
	live := make(map[string]string)
	newest := make(map[string]time.Time)
	for _, chunk := range chunks {
		if current, ok := s.current.Load(chunk.DocumentID); ok {
			live[chunk.DocumentID] = current.(string)
			continue
		}
		if at, ok := newest[chunk.DocumentID]; !ok || chunk.IngestedAt.After(at) {
			live[chunk.DocumentID] = chunk.ingestVersion
			newest[chunk.DocumentID] = chunk.IngestedAt
		}
	}
	return live
}

// staleFor reports whether the chunk belongs to a superseded ingest version.
func staleFor(chunk Chunk, live map[string]string) bool {
	return chunk.ingestVersion != "" && chunk.ingestVersion != live[chunk.DocumentID]
}

// chunkResults extracts the raw property maps from a GraphQL Get response.
func chunkResults(result *models.GraphQLResponse) []map[string]interface{} {
	if result == nil || result.Data["Get"] == nil {
		return nil
	}
	getMap, ok := result.Data["Get"].(map[string]interface{})
	if !ok || getMap[ChunkClassName] == nil {
		return nil
	}
	items, ok := getMap[ChunkClassName].([]interface{})
	if !ok {
		return nil
	}
	out := make([]map[string]interface{}, 0, len(items))
	for _, item := range items {
		if props, ok := item.(map[string]interface{}); ok {
			out = append(out, props)
		}
	}
	return out
}

func chunkFromProps(props map[string]interface{}) (Chunk, float64) {
	chunk := Chunk{
		ID:            stringProp(props, "chunk_id"),
		Text:          stringProp(props, "content"),
		DocumentID:    stringProp(props, "document_id"),
		PropertyID:    stringProp(props, "property_id"),
		Ordinal:       intProp(props, "ordinal"),
		StructuralTag: stringProp(props, "structural_tag"),
		Section:       stringProp(props, "section"),
		PageNumber:    intProp(props, "page_number"),
		Split:         boolProp(props, "split"),
		LowConfidence: boolProp(props, "low_confidence"),
		Fallback:      boolProp(props, "fallback"),
		IngestedAt:    time.UnixMilli(int64(intProp(props, "ingested_at"))).UTC(),
		ingestVersion: stringProp(props, "ingest_version"),
	}

	var certainty float64
	if additional, ok := props["_additional"].(map[string]interface{}); ok {
		// Objects written before chunk_id existed carry identity only in
		// the object ID.
		if id, ok := additional["id"].(string); ok && chunk.ID == "" {
			chunk.ID = id
		}
		if c, ok := additional["certainty"].(float64); ok {
			certainty = c
		}
	}
	return chunk, certainty
}

func stringProp(props map[string]interface{}, key string) string {
	v, _ := props[key].(string)
	return v
}

func intProp(props map[string]interface{}, key string) int {
	if v, ok := props[key].(float64); ok {
		return int(v)
	}
	return 0
}

func boolProp(props map[string]interface{}, key string) bool {
	v, _ := props[key].(bool)
	return v
}
