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

	"github.com/pathwayprop/pathway/services/facts"
	"github.com/pathwayprop/pathway/services/scoring"
)

// PlanningAnalyzer converts planning overlay facts into factors.
type PlanningAnalyzer struct{}

func (a *PlanningAnalyzer) Name() string { return "planning" }

func (a *PlanningAnalyzer) Analyze(_ context.Context, req Request) ([]scoring.Factor, error) {
	var factors []scoring.Factor

	if f, ok := req.Facts.Get(facts.KeyHeritageOverlay); ok && f.Value.Kind == facts.KindBoolean && f.Value.Boolean {
		factors = append(factors, scoring.Factor{
			Category:   scoring.CategoryPlanning,
			Name:       "heritage overlay",
			Severity:   0.5,
			Weight:     1,
			Detail:     "heritage overlay restricts demolition and alterations",
			Confidence: f.Confidence,
		})
	}
	if f, ok := req.Facts.Get(facts.KeyZoningCode); ok && f.Value.Kind == facts.KindCategory {
		switch f.Value.Category {
		case "IN1Z", "IN2Z", "IN3Z":
			factors = append(factors, scoring.Factor{
				Category:   scoring.CategoryPlanning,
				Name:       "industrial zoning",
				Severity:   0.7,
				Weight:     1,
				Detail:     fmt.Sprintf("zoned %s, residential use is restricted", f.Value.Category),
				Confidence: f.Confidence,
			})
		}
	}
	return factors, nil
}

// EnvironmentalAnalyzer converts hazard overlay facts into factors.
type EnvironmentalAnalyzer struct{}

func (a *EnvironmentalAnalyzer) Name() string { return "environmental" }

func (a *EnvironmentalAnalyzer) Analyze(_ context.Context, req Request) ([]scoring.Factor, error) {
	var factors []scoring.Factor

	if f, ok := req.Facts.Get(facts.KeyFloodAEP1); ok && f.Value.Kind == facts.KindBoolean && f.Value.Boolean {
		factors = append(factors, scoring.Factor{
			Category:   scoring.CategoryEnvironmental,
			Name:       "flood overlay",
			Severity:   0.7,
			Weight:     1,
			Detail:     "lot intersects the 1% AEP flood extent",
			Confidence: f.Confidence,
		})
	}
	if f, ok := req.Facts.Get(facts.KeyBALRating); ok && f.Value.Kind == facts.KindCategory {
		switch f.Value.Category {
		case "BAL-40", "BAL-FZ":
			factors = append(factors, scoring.Factor{
				Category:   scoring.CategoryEnvironmental,
				Name:       "extreme bushfire attack level",
				Severity:   0.7,
				Weight:     1,
				Detail:     fmt.Sprintf("rated %s", f.Value.Category),
				Confidence: f.Confidence,
			})
		case "BAL-29":
			factors = append(factors, scoring.Factor{
				Category:   scoring.CategoryEnvironmental,
				Name:       "elevated bushfire attack level",
				Severity:   0.4,
				Weight:     0.7,
				Detail:     "rated BAL-29",
				Confidence: f.Confidence,
			})
		}
	}
	if f, ok := req.Facts.Get(facts.KeyContaminationRisk); ok && f.Value.Kind == facts.KindCategory {
		switch f.Value.Category {
		case "HIGH", "CONFIRMED":
			factors = append(factors, scoring.Factor{
				Category:   scoring.CategoryEnvironmental,
				Name:       "contamination register entry",
				Severity:   0.8,
				Weight:     1,
				Detail:     fmt.Sprintf("contamination risk rated %s", f.Value.Category),
				Confidence: f.Confidence,
			})
		}
	}
	return factors, nil
}

// FinancialAnalyzer scores the deal itself, currently gross yield against
// the acquisition floor.
type FinancialAnalyzer struct{}

func (a *FinancialAnalyzer) Name() string { return "financial" }

func (a *FinancialAnalyzer) Analyze(_ context.Context, req Request) ([]scoring.Factor, error) {
	f, ok := req.Facts.Get(facts.KeyGrossYieldPct)
	if !ok || f.Value.Kind != facts.KindMeasurement || f.Confidence == 0 {
		return nil, nil
	}
	yield := f.Value.Measurement
	if yield >= 4 {
		return nil, nil
	}
	// Severity scales with how far below the 4% floor the yield sits.
	severity := (4 - yield) / 4
	if severity > 1 {
		severity = 1
	}
	return []scoring.Factor{{
		Category:   scoring.CategoryFinancial,
		Name:       "gross yield below floor",
		Severity:   severity,
		Weight:     1,
		Detail:     fmt.Sprintf("gross yield %.2f%% against a 4%% floor", yield),
		Confidence: f.Confidence,
	}}, nil
}
