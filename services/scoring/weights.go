// Copyright (C) 2026 Pathway Property Analytics (dev@pathwayprop.com.au)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package scoring folds per-category risk factors into one weighted
// property risk score with a rating band, the dominant factors, and a
// confidence derived from data completeness. Aggregation is pure
// arithmetic over its input: the same factors always produce the same
// report.
package scoring

import "sort"

// Category is a risk category contributing to the overall score.
type Category string

const (
	CategoryLegal            Category = "legal"
	CategoryTitleEncumbrance Category = "title_encumbrance"
	CategoryPlanning         Category = "planning"
	CategoryPhysical         Category = "physical"
	CategoryStrata           Category = "strata"
	CategoryEnvironmental    Category = "environmental"
	CategoryFinancial        Category = "financial"
)

// CategoryWeight is a category's share of the overall score. AppliesTo
// limits a category to certain property types; empty means all types.
// Inapplicable categories drop out of the weight denominator entirely, so
// a house is not diluted by a strata category it cannot have.
type CategoryWeight struct {
	Weight    float64  `json:"weight" yaml:"weight"`
	AppliesTo []string `json:"applies_to,omitempty" yaml:"applies_to,omitempty"`
}

// Weights maps categories to their share of the overall score.
type Weights map[Category]CategoryWeight

// DefaultWeights returns the production weight table.
func DefaultWeights() Weights {
	return Weights{
		CategoryLegal:            {Weight: 0.25},
		CategoryTitleEncumbrance: {Weight: 0.15},
		CategoryPlanning:         {Weight: 0.15},
		CategoryPhysical:         {Weight: 0.15},
		CategoryStrata:           {Weight: 0.10, AppliesTo: []string{"apartment", "townhouse", "unit"}},
		CategoryEnvironmental:    {Weight: 0.10},
		CategoryFinancial:        {Weight: 0.10},
	}
}

// appliesTo reports whether the category counts for the property type.
func (cw CategoryWeight) appliesTo(propertyType string) bool {
	if len(cw.AppliesTo) == 0 {
		return true
	}
	for _, t := range cw.AppliesTo {
		if t == propertyType {
			return true
		}
	}
	return false
}

// sortedCategories returns the weight table's categories in stable order.
func (w Weights) sortedCategories() []Category {
	out := make([]Category, 0, len(w))
	for category := range w {
		out = append(out, category)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
