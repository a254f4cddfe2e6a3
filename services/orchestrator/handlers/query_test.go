// Copyright (C) 2026 Pathway Property Analytics (dev@pathwayprop.com.au)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pathwayprop/pathway/services/documents"
	"github.com/pathwayprop/pathway/services/llm"
	"github.com/pathwayprop/pathway/services/rag"
)

func newQueryRouter(t *testing.T, client llm.LLMClient, seed []documents.Chunk) *gin.Engine {
	t.Helper()
	store := documents.NewMemoryStore()
	if len(seed) > 0 {
		require.NoError(t, store.Replace(context.Background(), seed[0].DocumentID, seed))
	}
	engine := rag.NewEngine(store, &stubEmbedder{}, client, rag.DefaultConfig())
	router := gin.New()
	router.POST("/v1/query", HandleQuery(engine, nil))
	return router
}

func seedChunks() []documents.Chunk {
	text := "The purchaser must pay a deposit of 10% within 14 days."
	return []documents.Chunk{{
		ID:         documents.ChunkID("contract-1", 0, text),
		DocumentID: "contract-1",
		PropertyID: "prop-1",
		Ordinal:    0,
		Text:       text,
		Section:    "2. DEPOSIT",
		PageNumber: 1,
		Vector:     []float32{float32(len(text)), 1},
		IngestedAt: time.Now().UTC(),
	}}
}

func TestQueryReturnsCitedAnswer(t *testing.T) {
	client := &stubLLM{reply: "ANSWER: A 10% deposit is payable within 14 days [Source 1].\nCONFIDENCE: HIGH"}
	router := newQueryRouter(t, client, seedChunks())

	w := postJSON(t, router, "/v1/query", map[string]any{
		"property_id": "prop-1",
		"document_id": "contract-1",
		"question":    "What deposit is required?",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var answer rag.Answer
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &answer))
	assert.False(t, answer.NotFound)
	assert.False(t, answer.Ambiguous)
	require.Len(t, answer.Citations, 1)
	assert.Equal(t, "contract-1", answer.Citations[0].DocumentID)
	assert.InDelta(t, 0.9, answer.Confidence, 1e-9)
}

func TestQueryPropertyScopeNotFoundSentinel(t *testing.T) {
	client := &stubLLM{reply: "ANSWER: NOT FOUND\nCONFIDENCE: LOW"}
	router := newQueryRouter(t, client, seedChunks())

	w := postJSON(t, router, "/v1/query", map[string]any{
		"property_id": "prop-1",
		"question":    "What is the strata levy?",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var answer rag.Answer
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &answer))
	assert.True(t, answer.NotFound)
	assert.Empty(t, answer.Citations)
}

func TestQueryEmptyCorpusSkipsGeneration(t *testing.T) {
	client := &stubLLM{reply: "should never be used"}
	router := newQueryRouter(t, client, nil)

	w := postJSON(t, router, "/v1/query", map[string]any{
		"property_id": "prop-1",
		"question":    "Anything at all?",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var answer rag.Answer
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &answer))
	assert.True(t, answer.NotFound)
}

func TestQueryRejectsInvalidBody(t *testing.T) {
	router := newQueryRouter(t, &stubLLM{reply: ""}, nil)

	w := postJSON(t, router, "/v1/query", map[string]any{
		"property_id": "prop-1",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = postJSON(t, router, "/v1/query", map[string]any{
		"property_id": `p" OR 1=1`,
		"question":    "q",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
