// Copyright (C) 2026 Pathway Property Analytics (dev@pathwayprop.com.au)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package documents turns OCR page text into retrievable, structure-tagged
// chunks and manages their lifecycle in the vector store. Chunking is index
// based over the normalized document text, so concatenating a document's
// chunks in ordinal order reproduces that text byte for byte.
package documents

import (
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Kind selects the structural pattern set used when chunking a document.
type Kind string

const (
	KindContract       Kind = "contract"
	KindTitle          Kind = "title"
	KindPlanning       Kind = "planning"
	KindStrataMinutes  Kind = "strata_minutes"
	KindBuildingReport Kind = "building_report"
	KindGeneric        Kind = "generic"
)

// PageText is one OCR'd page with its recognition confidence in [0,1].
type PageText struct {
	PageNumber int     `json:"page_number"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// Document is the ingestion input: identity plus the OCR'd pages.
type Document struct {
	DocumentID string     `json:"document_id"`
	PropertyID string     `json:"property_id"`
	Kind       Kind       `json:"kind"`
	Source     string     `json:"source"`
	Pages      []PageText `json:"pages"`
}

// Structural tags recorded on chunks. A tag names the unit the chunk was
// cut from, not the document kind.
const (
	TagClause           = "clause"
	TagPart             = "part"
	TagSchedule         = "schedule"
	TagSpecialCondition = "special_condition"
	TagAnnexure         = "annexure"
	TagMeetingItem      = "meeting_item"
	TagPreamble         = "preamble"
	TagPage             = "page"
)

// Chunk is one retrievable unit of a document.
//
// Split marks parts of an oversized structural unit; LowConfidence marks
// chunks cut from pages whose OCR confidence was below the pipeline floor;
// Fallback marks page-level chunks emitted when no structural pattern
// matched. All three flags flow into citation confidence downstream.
type Chunk struct {
	ID            string    `json:"id"`
	DocumentID    string    `json:"document_id"`
	PropertyID    string    `json:"property_id"`
	Ordinal       int       `json:"ordinal"`
	Text          string    `json:"text"`
	StructuralTag string    `json:"structural_tag"`
	Section       string    `json:"section"`
	PageNumber    int       `json:"page_number"`
	Split         bool      `json:"split"`
	LowConfidence bool      `json:"low_confidence"`
	Fallback      bool      `json:"fallback"`
	IngestedAt    time.Time `json:"ingested_at"`

	Vector []float32 `json:"-"`

	// ingestVersion tags which ingestion wrote the chunk; store internal.
	ingestVersion string
}

// ChunkID derives a stable deterministic UUID for a chunk, so re-ingesting
// identical content produces identical IDs.
func ChunkID(documentID string, ordinal int, text string) string {
	hash := sha256.Sum256([]byte(fmt.Sprintf("%s|%d|%s", documentID, ordinal, text)))
	id, _ := uuid.FromBytes(hash[:16])
	return id.String()
}
