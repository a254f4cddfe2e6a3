// Copyright (C) 2026 Pathway Property Analytics (dev@pathwayprop.com.au)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package analysis

import (
	"context"

	"github.com/pathwayprop/pathway/services/scoring"
)

// LegalAnalyzer questions the contract of sale for terms that shift risk
// onto the purchaser.
type LegalAnalyzer struct{}

func (a *LegalAnalyzer) Name() string { return "legal" }

func (a *LegalAnalyzer) Analyze(ctx context.Context, req Request) ([]scoring.Factor, error) {
	return runProbes(ctx, req, scoring.CategoryLegal, []probe{
		{
			name:     "unusual special conditions",
			question: "Do the special conditions depart from a standard contract of sale in ways that disadvantage the purchaser?",
			severity: 0.7,
			weight:   1,
		},
		{
			name:     "sunset or rescission rights",
			question: "Does the vendor hold any sunset clause or unilateral rescission right?",
			severity: 0.8,
			weight:   1,
		},
		{
			name:     "penalty interest terms",
			question: "What penalty interest applies if settlement is delayed?",
			severity: 0.4,
			weight:   0.5,
		},
	})
}

// TitleAnalyzer questions the title search and vendor statement for
// encumbrances.
type TitleAnalyzer struct{}

func (a *TitleAnalyzer) Name() string { return "title_encumbrance" }

func (a *TitleAnalyzer) Analyze(ctx context.Context, req Request) ([]scoring.Factor, error) {
	return runProbes(ctx, req, scoring.CategoryTitleEncumbrance, []probe{
		{
			name:     "easements and covenants",
			question: "Are there any easements, restrictive covenants or Section 173 agreements on the title?",
			severity: 0.6,
			weight:   1,
		},
		{
			name:     "caveats",
			question: "Are there any caveats recorded on the title?",
			severity: 0.8,
			weight:   1,
		},
	})
}

// PhysicalAnalyzer questions the building and pest reports.
type PhysicalAnalyzer struct{}

func (a *PhysicalAnalyzer) Name() string { return "physical" }

func (a *PhysicalAnalyzer) Analyze(ctx context.Context, req Request) ([]scoring.Factor, error) {
	return runProbes(ctx, req, scoring.CategoryPhysical, []probe{
		{
			name:     "structural defects",
			question: "Does the building report identify structural defects or major safety issues?",
			severity: 0.8,
			weight:   1,
		},
		{
			name:     "water damage",
			question: "Is there evidence of water penetration, rising damp or drainage problems?",
			severity: 0.6,
			weight:   0.8,
		},
		{
			name:     "termite activity",
			question: "Does the pest report identify active termites or past termite damage?",
			severity: 0.7,
			weight:   0.8,
		},
	})
}

// StrataAnalyzer questions owners corporation records. It only applies to
// strata-titled property types and returns nothing for houses.
type StrataAnalyzer struct{}

func (a *StrataAnalyzer) Name() string { return "strata" }

func (a *StrataAnalyzer) Analyze(ctx context.Context, req Request) ([]scoring.Factor, error) {
	if !strataApplies(req.PropertyType) {
		return nil, nil
	}
	return runProbes(ctx, req, scoring.CategoryStrata, []probe{
		{
			name:     "special levies",
			question: "Have any special levies been struck or proposed in the owners corporation minutes?",
			severity: 0.8,
			weight:   1,
		},
		{
			name:     "building defects in minutes",
			question: "Do the minutes record unresolved building defects, cladding issues or major remedial works?",
			severity: 0.7,
			weight:   1,
		},
		{
			name:     "litigation",
			question: "Is the owners corporation involved in any litigation or dispute?",
			severity: 0.6,
			weight:   0.7,
		},
	})
}
