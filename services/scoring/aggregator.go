// Copyright (C) 2026 Pathway Property Analytics (dev@pathwayprop.com.au)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package scoring

import (
	"log/slog"
	"sort"
)

// Rating bands over the 0-100 overall score.
const (
	RatingLow      = "LOW"
	RatingModerate = "MODERATE"
	RatingElevated = "ELEVATED"
	RatingHigh     = "HIGH"
	RatingCritical = "CRITICAL"
)

// topFactorCount is how many dominant factors the report surfaces.
const topFactorCount = 5

// Factor is one identified risk with its severity and in-category weight.
//
// Severity is in [0,1]; Weight is the factor's share within its category.
// Confidence reflects how complete the underlying data was and only feeds
// the report's confidence, never the score.
type Factor struct {
	Category   Category `json:"category"`
	Name       string   `json:"name"`
	Severity   float64  `json:"severity"`
	Weight     float64  `json:"weight"`
	Detail     string   `json:"detail,omitempty"`
	Confidence float64  `json:"confidence"`
}

// Input is one property's factors ready for aggregation.
type Input struct {
	PropertyID   string   `json:"property_id"`
	PropertyType string   `json:"property_type"`
	Factors      []Factor `json:"factors"`
}

// CategoryScore is one category's contribution in the report.
type CategoryScore struct {
	Category    Category `json:"category"`
	Score       float64  `json:"score"`
	Weight      float64  `json:"weight"`
	FactorCount int      `json:"factor_count"`
}

// TopFactor is one of the dominant risks, ranked by weighted contribution.
type TopFactor struct {
	Category     Category `json:"category"`
	Name         string   `json:"name"`
	Contribution float64  `json:"contribution"`
	Detail       string   `json:"detail,omitempty"`
}

// Report is the aggregated risk picture for one property.
type Report struct {
	PropertyID      string          `json:"property_id"`
	PropertyType    string          `json:"property_type"`
	OverallScore    float64         `json:"overall_score"`
	Rating          string          `json:"rating"`
	Categories      []CategoryScore `json:"categories"`
	TopFactors      []TopFactor     `json:"top_factors"`
	Confidence      float64         `json:"confidence"`
	Recommendations []string        `json:"recommendations"`
}

// Aggregator folds factors into reports using a fixed weight table. It is
// stateless: aggregating the same input twice yields identical reports.
type Aggregator struct {
	weights Weights
}

// NewAggregator builds an aggregator; nil weights get the default table.
func NewAggregator(weights Weights) *Aggregator {
	if len(weights) == 0 {
		weights = DefaultWeights()
	}
	return &Aggregator{weights: weights}
}

// # Description
//
//	Aggregate computes the weighted overall risk score. Each applicable
//	category scores as the weight-normalized mean severity of its factors;
//	the overall score is the category scores folded by category weight,
//	renormalized over the categories applicable to the property type, on a
//	0-100 scale. Factors for inapplicable categories (strata factors on a
//	house) are discarded with a warning rather than skewing the score.
//	Categories iterate in sorted order, so the fold is deterministic and
//	repeat aggregation of the same input is bit-identical.
//
// # Inputs
//
//	in - PropertyID, property type and the analyzed factors.
//
// # Outputs
//
//	*Report - Score, rating band, per-category breakdown, the top factors
//	          by weighted contribution, and mean factor confidence.
func (a *Aggregator) Aggregate(in Input) *Report {
	report := &Report{
		PropertyID:   in.PropertyID,
		PropertyType: in.PropertyType,
		Rating:       RatingLow,
	}

	byCategory := make(map[Category][]Factor)
	for _, factor := range in.Factors {
		cw, ok := a.weights[factor.Category]
		if !ok || !cw.appliesTo(in.PropertyType) {
			slog.Warn("Discarding factor for inapplicable category",
				"property_id", in.PropertyID,
				"property_type", in.PropertyType,
				"category", factor.Category,
				"factor", factor.Name)
			continue
		}
		byCategory[factor.Category] = append(byCategory[factor.Category], factor)
	}

	var weightedSum, weightTotal float64
	for _, category := range a.weights.sortedCategories() {
		cw := a.weights[category]
		if !cw.appliesTo(in.PropertyType) {
			continue
		}
		factors := byCategory[category]
		score := categoryScore(factors)
		report.Categories = append(report.Categories, CategoryScore{
			Category:    category,
			Score:       score * 100,
			Weight:      cw.Weight,
			FactorCount: len(factors),
		})
		weightedSum += score * cw.Weight
		weightTotal += cw.Weight
	}
	if weightTotal > 0 {
		report.OverallScore = weightedSum / weightTotal * 100
	}

	report.Rating = ratingFor(report.OverallScore)
	report.TopFactors = topFactors(byCategory)
	report.Confidence = meanConfidence(byCategory)
	report.Recommendations = recommendationsFor(report.Rating, len(in.Factors))
	return report
}

// categoryScore is the weight-normalized mean severity of a category's
// factors, in [0,1]. No factors means no identified risk.
func categoryScore(factors []Factor) float64 {
	var weightedSeverity, weightSum float64
	for _, f := range factors {
		weight := f.Weight
		if weight <= 0 {
			weight = 1
		}
		weightedSeverity += clamp01(f.Severity) * weight
		weightSum += weight
	}
	if weightSum == 0 {
		return 0
	}
	return weightedSeverity / weightSum
}

func ratingFor(score float64) string {
	switch {
	case score < 20:
		return RatingLow
	case score < 40:
		return RatingModerate
	case score < 60:
		return RatingElevated
	case score < 80:
		return RatingHigh
	default:
		return RatingCritical
	}
}

// topFactors ranks factors by severity-weighted contribution with a full
// tie-break chain so ordering never depends on map iteration.
func topFactors(byCategory map[Category][]Factor) []TopFactor {
	var all []Factor
	for _, factors := range byCategory {
		all = append(all, factors...)
	}
	sort.Slice(all, func(i, j int) bool {
		ci := contribution(all[i])
		cj := contribution(all[j])
		if ci != cj {
			return ci > cj
		}
		if all[i].Category != all[j].Category {
			return all[i].Category < all[j].Category
		}
		return all[i].Name < all[j].Name
	})

	n := len(all)
	if n > topFactorCount {
		n = topFactorCount
	}
	out := make([]TopFactor, 0, n)
	for _, f := range all[:n] {
		if contribution(f) == 0 {
			break
		}
		out = append(out, TopFactor{
			Category:     f.Category,
			Name:         f.Name,
			Contribution: contribution(f),
			Detail:       f.Detail,
		})
	}
	return out
}

func contribution(f Factor) float64 {
	weight := f.Weight
	if weight <= 0 {
		weight = 1
	}
	return clamp01(f.Severity) * weight
}

// meanConfidence is the mean factor confidence, the report's proxy for
// data completeness. No factors means nothing was verifiable.
func meanConfidence(byCategory map[Category][]Factor) float64 {
	var sum float64
	var count int
	for _, factors := range byCategory {
		for _, f := range factors {
			sum += clamp01(f.Confidence)
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}

func recommendationsFor(rating string, factorCount int) []string {
	if factorCount == 0 {
		return []string{"Insufficient analysis data; obtain and ingest the outstanding documents before relying on this score."}
	}
	switch rating {
	case RatingLow:
		return []string{"Risk profile is low; proceed with standard due diligence."}
	case RatingModerate:
		return []string{"Address the flagged factors with the vendor before going unconditional."}
	case RatingElevated:
		return []string{"Obtain specialist review of the top factors before exchange."}
	case RatingHigh:
		return []string{"Material risks identified; renegotiate terms or walk away unless resolved."}
	default:
		return []string{"Critical risk level; do not proceed without full legal review of every flagged factor."}
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
