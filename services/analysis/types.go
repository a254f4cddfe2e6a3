// Copyright (C) 2026 Pathway Property Analytics (dev@pathwayprop.com.au)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package analysis runs the full due-diligence sequence for one property:
// fetch facts, screen through the gatekeeper, run the category analyzers
// over the ingested documents, and aggregate the factors into a risk
// report. A gatekeeper REJECT stops the run before any analyzer spends an
// LLM call.
package analysis

import (
	"context"
	"time"

	"github.com/pathwayprop/pathway/services/facts"
	"github.com/pathwayprop/pathway/services/gatekeeper"
	"github.com/pathwayprop/pathway/services/rag"
	"github.com/pathwayprop/pathway/services/scoring"
)

// Status is the lifecycle state of an analysis run.
type Status string

const (
	StatusPending  Status = "pending"
	StatusRunning  Status = "running"
	StatusComplete Status = "complete"
	StatusRejected Status = "rejected"
	StatusFailed   Status = "failed"
	StatusCanceled Status = "canceled"
)

// Terminal reports whether the status is final; terminal runs never
// change again and become eligible for eviction.
func (s Status) Terminal() bool {
	switch s {
	case StatusComplete, StatusRejected, StatusFailed, StatusCanceled:
		return true
	}
	return false
}

// Phase names the pipeline stage an event refers to.
type Phase string

const (
	PhaseFacts      Phase = "facts"
	PhaseGatekeeper Phase = "gatekeeper"
	PhaseAnalysis   Phase = "analysis"
	PhaseScoring    Phase = "scoring"
	PhaseDone       Phase = "done"
)

// Event is one progress notification, streamed to websocket subscribers.
type Event struct {
	AnalysisID string    `json:"analysis_id"`
	Phase      Phase     `json:"phase"`
	Message    string    `json:"message"`
	Timestamp  time.Time `json:"timestamp"`
}

// StartRequest describes the property to analyze. Attributes carries the
// location for spatial lookups and the listing figures (asking price,
// weekly rent) the yield fact derives from; its PropertyID and
// PropertyType are filled from the top-level fields on Start.
type StartRequest struct {
	PropertyID   string           `json:"property_id"`
	PropertyType string           `json:"property_type"`
	Attributes   facts.Attributes `json:"attributes"`
}

// Analysis is the materialized state of one run. Gatekeeper and Report
// fill in as phases complete; Error is set only for StatusFailed.
type Analysis struct {
	ID           string             `json:"id"`
	PropertyID   string             `json:"property_id"`
	PropertyType string             `json:"property_type"`
	Status       Status             `json:"status"`
	StartedAt    time.Time          `json:"started_at"`
	FinishedAt   time.Time          `json:"finished_at,omitempty"`
	Facts        []facts.Fact       `json:"facts,omitempty"`
	Gatekeeper   *gatekeeper.Result `json:"gatekeeper,omitempty"`
	Report       *scoring.Report    `json:"report,omitempty"`
	Error        string             `json:"error,omitempty"`
}

// Retriever is the slice of the RAG engine analyzers use to question the
// ingested documents.
type Retriever interface {
	QueryProperty(ctx context.Context, propertyID, question string) (*rag.Answer, error)
}

// Request is what one analyzer sees: the property, its facts and the
// document retriever.
type Request struct {
	PropertyID   string
	PropertyType string
	Facts        *facts.Set
	Retriever    Retriever
}

// Analyzer inspects one risk category and returns its factors. Analyzers
// run concurrently and must be stateless.
type Analyzer interface {
	Name() string
	Analyze(ctx context.Context, req Request) ([]scoring.Factor, error)
}
