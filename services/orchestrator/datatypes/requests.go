// Copyright (C) 2026 Pathway Property Analytics (dev@pathwayprop.com.au)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package datatypes provides request and response types for the orchestrator service.
package datatypes

import (
	"github.com/go-playground/validator/v10"

	"github.com/pathwayprop/pathway/pkg/validation"
)

const (
	// MaxQuestionBytes is the maximum size of a retrieval question.
	MaxQuestionBytes = 8 * 1024 // 8KB

	// MaxPageTextBytes is the maximum size of a single document page.
	// Checks byte length (not rune count) to bound memory per request.
	MaxPageTextBytes = 512 * 1024 // 512KB

	// MaxPagesPerDocument is the maximum number of pages in one ingest request.
	MaxPagesPerDocument = 2000
)

// validate is the shared validator instance for orchestrator datatypes.
// Initialized in init() with custom validators.
var validate *validator.Validate

func init() {
	validate = validator.New()

	_ = validate.RegisterValidation("resourceid", validateResourceID)
	_ = validate.RegisterValidation("questionbytes", validateQuestionBytes)
	_ = validate.RegisterValidation("pagebytes", validatePageBytes)
}

// validateResourceID enforces the identifier grammar shared with the
// vector store filter layer.
func validateResourceID(fl validator.FieldLevel) bool {
	return validation.ValidateResourceID(fl.Field().String()) == nil
}

func validateQuestionBytes(fl validator.FieldLevel) bool {
	return len(fl.Field().String()) <= MaxQuestionBytes
}

func validatePageBytes(fl validator.FieldLevel) bool {
	return len(fl.Field().String()) <= MaxPageTextBytes
}

// StartAnalysisRequest is the body for POST /v1/analyses.
//
// # Description
//
// Identifies the property to analyze and where it sits. The location is
// forwarded to the fact providers for spatial lookups; state defaults to
// VIC when omitted. The listing figures feed the gross-yield fact: the
// asking price directly, or the valuation estimate when the price is
// withheld.
//
// # Validation
//
// Uses go-playground/validator:
//   - PropertyID: required, 1-64 alphanumeric chars plus . - _
//   - PropertyType: required, one of house/apartment/townhouse/unit/land
//   - Address: required
//   - Lat/Lng: optional, checked to plausible ranges when non-zero
//   - AskingPrice/WeeklyRent: optional, non-negative
type StartAnalysisRequest struct {
	PropertyID   string  `json:"property_id" validate:"required,resourceid"`
	PropertyType string  `json:"property_type" validate:"required,oneof=house apartment townhouse unit land"`
	Address      string  `json:"address" validate:"required"`
	Lat          float64 `json:"lat" validate:"gte=-90,lte=90"`
	Lng          float64 `json:"lng" validate:"gte=-180,lte=180"`
	State        string  `json:"state" validate:"omitempty,oneof=VIC NSW QLD SA WA TAS NT ACT"`
	AskingPrice  float64 `json:"asking_price" validate:"gte=0"`
	WeeklyRent   float64 `json:"weekly_rent" validate:"gte=0"`
}

// Validate checks the request against its validation tags.
func (r *StartAnalysisRequest) Validate() error {
	return validate.Struct(r)
}

// IngestPage is one OCR'd page in an ingest request. Confidence is the
// OCR confidence in [0,1]; omit it for born-digital text.
type IngestPage struct {
	PageNumber int      `json:"page_number" validate:"gte=1"`
	Text       string   `json:"text" validate:"pagebytes"`
	Confidence *float64 `json:"confidence,omitempty" validate:"omitempty,gte=0,lte=1"`
}

// IngestDocumentRequest is the body for POST /v1/documents.
//
// # Description
//
// Carries the extracted pages of one property document. Re-ingesting the
// same document ID replaces the prior version atomically. An empty Pages
// list removes the document from the store.
//
// # Validation
//
// Uses go-playground/validator:
//   - PropertyID, DocumentID: required, 1-64 alphanumeric chars plus . - _
//   - Kind: required, one of contract/title/planning/strata_minutes/building_report/generic
//   - Pages: at most 2000 entries, each page text limited to 512KB
type IngestDocumentRequest struct {
	PropertyID string       `json:"property_id" validate:"required,resourceid"`
	DocumentID string       `json:"document_id" validate:"required,resourceid"`
	Kind       string       `json:"kind" validate:"required,oneof=contract title planning strata_minutes building_report generic"`
	Source     string       `json:"source"`
	Pages      []IngestPage `json:"pages" validate:"max=2000,dive"`
}

// Validate checks the request against its validation tags.
func (r *IngestDocumentRequest) Validate() error {
	return validate.Struct(r)
}

// QueryRequest is the body for POST /v1/query.
//
// # Description
//
// A grounded question against a property's ingested documents. When
// DocumentID is set, retrieval is scoped to that document; otherwise the
// whole property corpus is searched.
//
// # Validation
//
// Uses go-playground/validator:
//   - PropertyID: required, 1-64 alphanumeric chars plus . - _
//   - DocumentID: optional, same grammar
//   - Question: required, max 8KB
type QueryRequest struct {
	PropertyID string `json:"property_id" validate:"required,resourceid"`
	DocumentID string `json:"document_id,omitempty" validate:"omitempty,resourceid"`
	Question   string `json:"question" validate:"required,questionbytes"`
}

// Validate checks the request against its validation tags.
func (r *QueryRequest) Validate() error {
	return validate.Struct(r)
}
