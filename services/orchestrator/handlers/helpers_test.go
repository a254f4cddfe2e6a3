// Copyright (C) 2026 Pathway Property Analytics (dev@pathwayprop.com.au)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"context"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/pathwayprop/pathway/services/analysis"
	"github.com/pathwayprop/pathway/services/facts"
	"github.com/pathwayprop/pathway/services/gatekeeper"
	"github.com/pathwayprop/pathway/services/gatekeeper/rulesets"
	"github.com/pathwayprop/pathway/services/llm"
	"github.com/pathwayprop/pathway/services/rag"
	"github.com/pathwayprop/pathway/services/scoring"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testFact(key facts.Key, value facts.Value) facts.Fact {
	return facts.Fact{
		Key:         key,
		Value:       value,
		Source:      "test",
		Confidence:  0.9,
		RetrievedAt: time.Now().UTC(),
	}
}

// cleanFactSet passes every gatekeeper rule. Later overrides win on key
// collision.
func cleanFactSet(overrides ...facts.Fact) *facts.Set {
	base := []facts.Fact{
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
	return facts.NewSet(append(base, overrides...)...)
}

type stubSource struct {
	set *facts.Set
	err error
}

func (s *stubSource) Fetch(ctx context.Context, attrs facts.Attributes) (*facts.Set, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.set, nil
}

type stubRetriever struct{}

func (s *stubRetriever) QueryProperty(ctx context.Context, propertyID, question string) (*rag.Answer, error) {
	return &rag.Answer{Text: "NOT FOUND", NotFound: true, Confidence: 0.4}, nil
}

// stubEmbedder returns length-derived vectors so similarity is
// deterministic without a sidecar.
type stubEmbedder struct{}

func (e *stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{float32(len(text)), 1}, nil
}

func (e *stubEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t)), 1}
	}
	return out, nil
}

type stubLLM struct {
	reply string
}

func (s *stubLLM) Generate(ctx context.Context, prompt string, params llm.GenerationParams) (string, error) {
	return s.reply, nil
}

var _ llm.Embedder = (*stubEmbedder)(nil)
var _ llm.LLMClient = (*stubLLM)(nil)

func newTestRunner(t *testing.T, source analysis.FactSource) *analysis.Runner {
	t.Helper()
	rules, err := gatekeeper.Load(rulesets.VicDefault)
	require.NoError(t, err)
	engine := gatekeeper.NewEngine(rules, gatekeeper.DefaultEngineConfig())
	return analysis.NewRunner(source, engine, &stubRetriever{},
		analysis.DefaultAnalyzers(), scoring.NewAggregator(nil))
}

// waitForFinish polls until the run reaches a terminal status.
func waitForFinish(t *testing.T, runner *analysis.Runner, id string) analysis.Analysis {
	t.Helper()
	var run analysis.Analysis
	require.Eventually(t, func() bool {
		var err error
		run, err = runner.Get(id)
		if err != nil {
			return false
		}
		switch run.Status {
		case analysis.StatusComplete, analysis.StatusRejected, analysis.StatusFailed, analysis.StatusCanceled:
			return true
		}
		return false
	}, 5*time.Second, 10*time.Millisecond, "analysis did not finish")
	return run
}
