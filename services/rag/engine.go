// Copyright (C) 2026 Pathway Property Analytics (dev@pathwayprop.com.au)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package rag answers questions about ingested property documents with
// grounded, cited extracts. Every claim in an answer must cite a retrieved
// chunk; answers that cite nothing the engine supplied are flagged rather
// than trusted.
package rag

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/pathwayprop/pathway/services/documents"
	"github.com/pathwayprop/pathway/services/llm"
)

var tracer = otel.Tracer("pathway.rag")

// Config tunes retrieval depth.
type Config struct {
	// TopKDocument is the retrieval depth for single-document questions.
	TopKDocument int
	// TopKProperty is the retrieval depth for whole-property questions.
	TopKProperty int
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		TopKDocument: 5,
		TopKProperty: 10,
	}
}

// Citation points a claim back at the chunk that supports it.
type Citation struct {
	ChunkID    string `json:"chunk_id"`
	DocumentID string `json:"document_id"`
	Section    string `json:"section"`
	Page       int    `json:"page"`
}

// Answer is a grounded response to one question.
//
// NotFound reports that the documents do not answer the question.
// Ambiguous reports that the model answered without citing any supplied
// source; such answers must not be presented as grounded.
type Answer struct {
	Text       string     `json:"text"`
	Citations  []Citation `json:"citations"`
	Confidence float64    `json:"confidence"`
	NotFound   bool       `json:"not_found"`
	Ambiguous  bool       `json:"ambiguous"`
}

// Engine retrieves chunks and asks the LLM for a cited answer. Stateless
// and safe for concurrent use.
type Engine struct {
	store    documents.Store
	embedder llm.Embedder
	client   llm.LLMClient
	cfg      Config
}

// NewEngine wires the retrieval store, embedder and LLM backend.
func NewEngine(store documents.Store, embedder llm.Embedder, client llm.LLMClient, cfg Config) *Engine {
	defaults := DefaultConfig()
	if cfg.TopKDocument <= 0 {
		cfg.TopKDocument = defaults.TopKDocument
	}
	if cfg.TopKProperty <= 0 {
		cfg.TopKProperty = defaults.TopKProperty
	}
	return &Engine{store: store, embedder: embedder, client: client, cfg: cfg}
}

// Query answers a question against a single document of a property.
func (e *Engine) Query(ctx context.Context, propertyID, documentID, question string) (*Answer, error) {
	return e.answer(ctx, documents.SearchQuery{
		PropertyID: propertyID,
		DocumentID: documentID,
		Limit:      e.cfg.TopKDocument,
	}, question)
}

// QueryProperty answers a question against every document of a property.
func (e *Engine) QueryProperty(ctx context.Context, propertyID, question string) (*Answer, error) {
	return e.answer(ctx, documents.SearchQuery{
		PropertyID: propertyID,
		Limit:      e.cfg.TopKProperty,
	}, question)
}

// # Description
//
//	answer embeds the question, retrieves the top chunks under the query's
//	scope, prompts the LLM with numbered sources, and parses the reply
//	into a cited answer. With no retrievable chunks the answer is NotFound
//	without spending an LLM call. Citation references outside the supplied
//	source range are discarded; if none survive, the answer is flagged
//	Ambiguous and its confidence floored.
func (e *Engine) answer(ctx context.Context, query documents.SearchQuery, question string) (*Answer, error) {
	ctx, span := tracer.Start(ctx, "rag.answer")
	defer span.End()
	span.SetAttributes(
		attribute.String("rag.property_id", query.PropertyID),
		attribute.String("rag.document_id", query.DocumentID),
	)

	if question == "" {
		return nil, fmt.Errorf("question is required")
	}

	vector, err := e.embedder.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("failed to embed question: %w", err)
	}
	query.Vector = vector

	chunks, err := e.store.Search(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("retrieval failed: %w", err)
	}
	if len(chunks) == 0 {
		slog.Info("No chunks retrieved for question", "property_id", query.PropertyID)
		return &Answer{Text: notFoundSentinel, NotFound: true}, nil
	}

	prompt := buildPrompt(question, chunks)
	raw, err := e.client.Generate(ctx, prompt, generationParams())
	if err != nil {
		return nil, fmt.Errorf("LLM generation failed: %w", err)
	}

	answer := parseAnswer(raw, chunks)
	span.SetAttributes(
		attribute.Int("rag.sources", len(chunks)),
		attribute.Int("rag.citations", len(answer.Citations)),
		attribute.Bool("rag.not_found", answer.NotFound),
		attribute.Bool("rag.ambiguous", answer.Ambiguous),
	)
	return answer, nil
}

func generationParams() llm.GenerationParams {
	temperature := float32(0.1)
	maxTokens := 1024
	return llm.GenerationParams{
		Temperature: &temperature,
		MaxTokens:   &maxTokens,
	}
}
