// Copyright (C) 2026 Pathway Property Analytics (dev@pathwayprop.com.au)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func validStart() StartAnalysisRequest {
	return StartAnalysisRequest{
		PropertyID:   "prop-1",
		PropertyType: "house",
		Address:      "1 Example St, Carlton",
		Lat:          -37.8,
		Lng:          144.96,
		State:        "VIC",
		AskingPrice:  650000,
		WeeklyRent:   500,
	}
}

func TestStartAnalysisRequestValid(t *testing.T) {
	req := validStart()
	assert.NoError(t, req.Validate())
}

func TestStartAnalysisRequestRejectsBadInput(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*StartAnalysisRequest)
	}{
		{"missing property id", func(r *StartAnalysisRequest) { r.PropertyID = "" }},
		{"injection in property id", func(r *StartAnalysisRequest) { r.PropertyID = `x" OR 1=1` }},
		{"unknown property type", func(r *StartAnalysisRequest) { r.PropertyType = "castle" }},
		{"missing address", func(r *StartAnalysisRequest) { r.Address = "" }},
		{"latitude out of range", func(r *StartAnalysisRequest) { r.Lat = 91 }},
		{"unknown state", func(r *StartAnalysisRequest) { r.State = "ZZ" }},
		{"negative asking price", func(r *StartAnalysisRequest) { r.AskingPrice = -1 }},
		{"negative weekly rent", func(r *StartAnalysisRequest) { r.WeeklyRent = -1 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := validStart()
			tc.mutate(&req)
			assert.Error(t, req.Validate())
		})
	}
}

func TestIngestDocumentRequestValid(t *testing.T) {
	conf := 0.9
	req := IngestDocumentRequest{
		PropertyID: "prop-1",
		DocumentID: "contract-1",
		Kind:       "contract",
		Pages: []IngestPage{
			{PageNumber: 1, Text: "1. VENDOR must disclose."},
			{PageNumber: 2, Text: "2. PURCHASER acknowledges.", Confidence: &conf},
		},
	}
	assert.NoError(t, req.Validate())
}

func TestIngestDocumentRequestRejectsOversizedPage(t *testing.T) {
	req := IngestDocumentRequest{
		PropertyID: "prop-1",
		DocumentID: "contract-1",
		Kind:       "contract",
		Pages: []IngestPage{
			{PageNumber: 1, Text: strings.Repeat("x", MaxPageTextBytes+1)},
		},
	}
	assert.Error(t, req.Validate())
}

func TestIngestDocumentRequestRejectsUnknownKind(t *testing.T) {
	req := IngestDocumentRequest{
		PropertyID: "prop-1",
		DocumentID: "doc-1",
		Kind:       "mortgage",
	}
	assert.Error(t, req.Validate())
}

func TestQueryRequestValid(t *testing.T) {
	req := QueryRequest{PropertyID: "prop-1", Question: "What deposit is required?"}
	assert.NoError(t, req.Validate())

	req.DocumentID = "contract-1"
	assert.NoError(t, req.Validate())
}

func TestQueryRequestRejectsOversizedQuestion(t *testing.T) {
	req := QueryRequest{
		PropertyID: "prop-1",
		Question:   strings.Repeat("q", MaxQuestionBytes+1),
	}
	assert.Error(t, req.Validate())
}
