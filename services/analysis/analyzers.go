// Copyright (C) 2026 Pathway Property Analytics (dev@pathwayprop.com.au)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package analysis

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pathwayprop/pathway/services/rag"
	"github.com/pathwayprop/pathway/services/scoring"
)

// DefaultAnalyzers returns the full production analyzer set.
func DefaultAnalyzers() []Analyzer {
	return []Analyzer{
		&LegalAnalyzer{},
		&TitleAnalyzer{},
		&PhysicalAnalyzer{},
		&StrataAnalyzer{},
		&PlanningAnalyzer{},
		&EnvironmentalAnalyzer{},
		&FinancialAnalyzer{},
	}
}

// probe is one document question an analyzer asks, with the severity it
// assigns when the documents confirm the risk.
type probe struct {
	name     string
	question string
	severity float64
	weight   float64
}

const maxFactorDetail = 240

// runProbes asks each probe through the retriever and converts confirmed
// answers to factors. NOT FOUND answers contribute nothing; ambiguous
// answers keep the factor but inherit the engine's floored confidence.
func runProbes(ctx context.Context, req Request, category scoring.Category, probes []probe) ([]scoring.Factor, error) {
	var factors []scoring.Factor
	for _, p := range probes {
		answer, err := req.Retriever.QueryProperty(ctx, req.PropertyID, p.question)
		if err != nil {
			return nil, fmt.Errorf("probe %q failed: %w", p.name, err)
		}
		factor, ok := factorFromAnswer(category, p, answer)
		if !ok {
			continue
		}
		factors = append(factors, factor)
	}
	return factors, nil
}

func factorFromAnswer(category scoring.Category, p probe, answer *rag.Answer) (scoring.Factor, bool) {
	if answer == nil || answer.NotFound {
		return scoring.Factor{}, false
	}
	if answer.Ambiguous {
		slog.Debug("Probe answered without citations, keeping floored confidence",
			"category", category, "probe", p.name)
	}
	detail := answer.Text
	if len(detail) > maxFactorDetail {
		detail = detail[:maxFactorDetail]
	}
	return scoring.Factor{
		Category:   category,
		Name:       p.name,
		Severity:   p.severity,
		Weight:     p.weight,
		Detail:     detail,
		Confidence: answer.Confidence,
	}, true
}

func strataApplies(propertyType string) bool {
	switch propertyType {
	case "apartment", "townhouse", "unit":
		return true
	}
	return false
}
