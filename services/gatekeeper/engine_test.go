// Copyright (C) 2026 Pathway Property Analytics (dev@pathwayprop.com.au)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package gatekeeper

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pathwayprop/pathway/services/facts"
	"github.com/pathwayprop/pathway/services/gatekeeper/rulesets"
)

func testFact(key facts.Key, value facts.Value) facts.Fact {
	return facts.Fact{
		Key:         key,
		Value:       value,
		Source:      "test",
		Confidence:  0.9,
		RetrievedAt: time.Now().UTC(),
	}
}

func cleanFacts() []facts.Fact {
	return []facts.Fact{
		testFact(facts.KeyFloodAEP1, facts.Boolean(false)),
		testFact(facts.KeyFloodBuildingAtRisk, facts.Boolean(false)),
		testFact(facts.KeyBALRating, facts.Category("BAL-12.5")),
		testFact(facts.KeyANEF, facts.Measurement(12)),
		testFact(facts.KeyN70, facts.Measurement(5)),
		testFact(facts.KeyZoningCode, facts.Category("GRZ1")),
		testFact(facts.KeyHeritageOverlay, facts.Boolean(false)),
		testFact(facts.KeySocialHousingSA1Pct, facts.Measurement(3.2)),
		testFact(facts.KeySocialHousingStreetPct, facts.Measurement(0)),
		testFact(facts.KeyGrossYieldPct, facts.Measurement(4.8)),
		testFact(facts.KeyContaminationRisk, facts.Category("NONE")),
	}
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	rules, err := Load(rulesets.VicDefault)
	require.NoError(t, err)
	return NewEngine(rules, DefaultEngineConfig())
}

func findCheck(t *testing.T, result Result, ruleID string) CheckResult {
	t.Helper()
	for _, check := range result.Checks {
		if check.RuleID == ruleID {
			return check
		}
	}
	t.Fatalf("check %q not found in result", ruleID)
	return CheckResult{}
}

func TestEvaluateCleanPropertyProceeds(t *testing.T) {
	engine := newTestEngine(t)

	result := engine.Evaluate(context.Background(), facts.NewSet(cleanFacts()...))

	assert.Equal(t, VerdictProceed, result.Verdict)
	assert.Empty(t, result.KillReasons)
	for _, check := range result.Checks {
		assert.Equal(t, CheckPass, check.Score, "check %s", check.RuleID)
		assert.False(t, check.DataIncomplete, "check %s", check.RuleID)
	}
}

func TestEvaluateFloodKillRejectsButOtherCategoriesStillRun(t *testing.T) {
	engine := newTestEngine(t)
	set := cleanFacts()
	set[1] = testFact(facts.KeyFloodBuildingAtRisk, facts.Boolean(true))

	result := engine.Evaluate(context.Background(), facts.NewSet(set...))

	assert.Equal(t, VerdictReject, result.Verdict)
	assert.Equal(t, []string{"flood risk"}, result.KillReasons)

	flood := findCheck(t, result, "flood-building-at-risk")
	assert.Equal(t, CheckFail, flood.Score)

	// A kill stops only the rest of its own category.
	for _, check := range result.Checks {
		assert.NotEqual(t, "flood-overlay", check.RuleID)
	}
	anef := findCheck(t, result, "anef-exceeds-20")
	assert.Equal(t, CheckPass, anef.Score)
	yield := findCheck(t, result, "yield-below-floor")
	assert.Equal(t, CheckPass, yield.Score)
}

func TestEvaluateAircraftNoiseKill(t *testing.T) {
	engine := newTestEngine(t)
	set := cleanFacts()
	set[3] = testFact(facts.KeyANEF, facts.Measurement(25))

	result := engine.Evaluate(context.Background(), facts.NewSet(set...))

	assert.Equal(t, VerdictReject, result.Verdict)
	require.Len(t, result.KillReasons, 1)
	assert.Equal(t, "ANEF contour 25 exceeds 20", result.KillReasons[0])

	// n70 is in the same category and must be short-circuited.
	for _, check := range result.Checks {
		assert.NotEqual(t, "n70-exceeds-20", check.RuleID)
	}
}

func TestEvaluateWarningYieldsReview(t *testing.T) {
	tests := []struct {
		name   string
		key    facts.Key
		value  facts.Value
		ruleID string
	}{
		{"sa1 social housing over 15pct", facts.KeySocialHousingSA1Pct, facts.Measurement(16.5), "social-housing-sa1"},
		{"heritage overlay", facts.KeyHeritageOverlay, facts.Boolean(true), "heritage-overlay"},
		{"extreme bal rating", facts.KeyBALRating, facts.Category("BAL-FZ"), "bal-extreme"},
		{"yield below floor", facts.KeyGrossYieldPct, facts.Measurement(3.1), "yield-below-floor"},
		{"industrial zoning", facts.KeyZoningCode, facts.Category("IN1Z"), "industrial-zoning"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := newTestEngine(t)
			overridden := append([]facts.Fact{}, cleanFacts()...)
			overridden = append(overridden, testFact(tt.key, tt.value))

			result := engine.Evaluate(context.Background(), facts.NewSet(overridden...))

			assert.Equal(t, VerdictReview, result.Verdict)
			assert.Empty(t, result.KillReasons)
			check := findCheck(t, result, tt.ruleID)
			assert.Equal(t, CheckWarning, check.Score)
		})
	}
}

func TestEvaluateMissingFactDegradesToWarning(t *testing.T) {
	engine := newTestEngine(t)
	withoutANEF := make([]facts.Fact, 0, len(cleanFacts()))
	for _, f := range cleanFacts() {
		if f.Key != facts.KeyANEF {
			withoutANEF = append(withoutANEF, f)
		}
	}

	result := engine.Evaluate(context.Background(), facts.NewSet(withoutANEF...))

	assert.Equal(t, VerdictReview, result.Verdict)
	check := findCheck(t, result, "anef-exceeds-20")
	assert.Equal(t, CheckWarning, check.Score)
	assert.True(t, check.DataIncomplete)
}

func TestEvaluateLowConfidenceFactDegradesToWarning(t *testing.T) {
	engine := newTestEngine(t)
	set := cleanFacts()
	set[1] = facts.Unavailable(facts.KeyFloodBuildingAtRisk, "test")

	result := engine.Evaluate(context.Background(), facts.NewSet(set...))

	assert.Equal(t, VerdictReview, result.Verdict)
	assert.Empty(t, result.KillReasons)
	check := findCheck(t, result, "flood-building-at-risk")
	assert.Equal(t, CheckWarning, check.Score)
	assert.True(t, check.DataIncomplete)
}

func TestEvaluateOrderingIsDeterministic(t *testing.T) {
	engine := newTestEngine(t)
	set := facts.NewSet(cleanFacts()...)

	first := engine.Evaluate(context.Background(), set)
	second := engine.Evaluate(context.Background(), set)

	require.Equal(t, len(first.Checks), len(second.Checks))
	for i := range first.Checks {
		assert.Equal(t, first.Checks[i].RuleID, second.Checks[i].RuleID)
	}
}
