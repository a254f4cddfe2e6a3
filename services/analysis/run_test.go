// Copyright (C) 2026 Pathway Property Analytics (dev@pathwayprop.com.au)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package analysis

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pathwayprop/pathway/services/facts"
	"github.com/pathwayprop/pathway/services/gatekeeper"
	"github.com/pathwayprop/pathway/services/gatekeeper/rulesets"
	"github.com/pathwayprop/pathway/services/rag"
	"github.com/pathwayprop/pathway/services/scoring"
)

type staticSource struct {
	set *facts.Set
}

func (s *staticSource) Fetch(context.Context, facts.Attributes) (*facts.Set, error) {
	return s.set, nil
}

type capturingSource struct {
	mu    sync.Mutex
	attrs facts.Attributes
	set   *facts.Set
}

func (s *capturingSource) Fetch(_ context.Context, attrs facts.Attributes) (*facts.Set, error) {
	s.mu.Lock()
	s.attrs = attrs
	s.mu.Unlock()
	return s.set, nil
}

func (s *capturingSource) last() facts.Attributes {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attrs
}

type blockingSource struct {
	started chan struct{}
}

func (s *blockingSource) Fetch(ctx context.Context, _ facts.Attributes) (*facts.Set, error) {
	close(s.started)
	<-ctx.Done()
	return nil, ctx.Err()
}

// scriptedRetriever confirms probes whose question contains a keyword and
// answers NOT FOUND for everything else.
type scriptedRetriever struct {
	keyword string
	calls   atomic.Int64
}

func (r *scriptedRetriever) QueryProperty(_ context.Context, _ string, question string) (*rag.Answer, error) {
	r.calls.Add(1)
	if r.keyword != "" && strings.Contains(question, r.keyword) {
		return &rag.Answer{
			Text:       "Yes, confirmed by the documents [Source 1].",
			Citations:  []rag.Citation{{ChunkID: "c1", DocumentID: "doc-1", Page: 2}},
			Confidence: 0.9,
		}, nil
	}
	return &rag.Answer{Text: "NOT FOUND", NotFound: true}, nil
}

func fact(key facts.Key, value facts.Value) facts.Fact {
	return facts.Fact{Key: key, Value: value, Source: "test", Confidence: 0.9, RetrievedAt: time.Now().UTC()}
}

func cleanSet() *facts.Set {
	return facts.NewSet(
		fact(facts.KeyFloodAEP1, facts.Boolean(false)),
		fact(facts.KeyFloodBuildingAtRisk, facts.Boolean(false)),
		fact(facts.KeyBALRating, facts.Category("BAL-12.5")),
		fact(facts.KeyANEF, facts.Measurement(10)),
		fact(facts.KeyN70, facts.Measurement(4)),
		fact(facts.KeyZoningCode, facts.Category("GRZ1")),
		fact(facts.KeyHeritageOverlay, facts.Boolean(false)),
		fact(facts.KeySocialHousingSA1Pct, facts.Measurement(2)),
		fact(facts.KeySocialHousingStreetPct, facts.Measurement(0)),
		fact(facts.KeyGrossYieldPct, facts.Measurement(5.1)),
		fact(facts.KeyContaminationRisk, facts.Category("NONE")),
	)
}

func newTestRunner(t *testing.T, source FactSource, retriever Retriever) *Runner {
	t.Helper()
	rules, err := gatekeeper.Load(rulesets.VicDefault)
	require.NoError(t, err)
	engine := gatekeeper.NewEngine(rules, gatekeeper.DefaultEngineConfig())
	return NewRunner(source, engine, retriever, DefaultAnalyzers(), scoring.NewAggregator(nil))
}

func waitForFinish(t *testing.T, runner *Runner, id string) Analysis {
	t.Helper()
	var result Analysis
	require.Eventually(t, func() bool {
		analysis, err := runner.Get(id)
		if err != nil {
			return false
		}
		switch analysis.Status {
		case StatusComplete, StatusRejected, StatusFailed, StatusCanceled:
			result = analysis
			return true
		}
		return false
	}, 5*time.Second, 10*time.Millisecond)
	return result
}

func TestRunCompletesWithReport(t *testing.T) {
	retriever := &scriptedRetriever{keyword: "special levies"}
	runner := newTestRunner(t, &staticSource{set: cleanSet()}, retriever)

	started, err := runner.Start(context.Background(), StartRequest{
		PropertyID:   "prop-1",
		PropertyType: "apartment",
	})
	require.NoError(t, err)
	assert.Equal(t, StatusPending, started.Status)

	final := waitForFinish(t, runner, started.ID)
	assert.Equal(t, StatusComplete, final.Status)
	require.NotNil(t, final.Gatekeeper)
	assert.Equal(t, gatekeeper.VerdictProceed, final.Gatekeeper.Verdict)
	require.NotNil(t, final.Report)
	assert.NotEmpty(t, final.Facts)

	// The confirmed strata levy probe must surface in the report.
	foundLevy := false
	for _, factor := range final.Report.TopFactors {
		if factor.Name == "special levies" {
			foundLevy = true
		}
	}
	assert.True(t, foundLevy)
	assert.Positive(t, retriever.calls.Load())
}

func TestRunRejectSkipsAnalyzers(t *testing.T) {
	set := facts.NewSet(append(cleanSet().All(),
		fact(facts.KeyFloodBuildingAtRisk, facts.Boolean(true)))...)
	retriever := &scriptedRetriever{}
	runner := newTestRunner(t, &staticSource{set: set}, retriever)

	started, err := runner.Start(context.Background(), StartRequest{
		PropertyID:   "prop-1",
		PropertyType: "house",
	})
	require.NoError(t, err)

	final := waitForFinish(t, runner, started.ID)
	assert.Equal(t, StatusRejected, final.Status)
	require.NotNil(t, final.Gatekeeper)
	assert.Equal(t, gatekeeper.VerdictReject, final.Gatekeeper.Verdict)
	assert.Equal(t, []string{"flood risk"}, final.Gatekeeper.KillReasons)
	assert.Nil(t, final.Report)
	assert.Zero(t, retriever.calls.Load(), "analyzers must not run after a reject")
}

func TestRunStreamsEventsToSubscribers(t *testing.T) {
	runner := newTestRunner(t, &staticSource{set: cleanSet()}, &scriptedRetriever{})

	started, err := runner.Start(context.Background(), StartRequest{
		PropertyID:   "prop-1",
		PropertyType: "house",
	})
	require.NoError(t, err)

	events, stop, err := runner.Subscribe(started.ID)
	require.NoError(t, err)
	defer stop()

	phases := make(map[Phase]bool)
	deadline := time.After(5 * time.Second)
	for {
		select {
		case event, ok := <-events:
			if !ok {
				final, err := runner.Get(started.ID)
				require.NoError(t, err)
				if !phases[PhaseDone] {
					// Subscribed after the run finished; the stream is
					// legitimately empty.
					assert.Equal(t, StatusComplete, final.Status)
				}
				return
			}
			phases[event.Phase] = true
		case <-deadline:
			t.Fatal("timed out waiting for events")
		}
	}
}

func TestRunCancel(t *testing.T) {
	source := &blockingSource{started: make(chan struct{})}
	runner := newTestRunner(t, source, &scriptedRetriever{})

	started, err := runner.Start(context.Background(), StartRequest{
		PropertyID:   "prop-1",
		PropertyType: "house",
	})
	require.NoError(t, err)

	<-source.started
	require.NoError(t, runner.Cancel(started.ID))

	final := waitForFinish(t, runner, started.ID)
	assert.Contains(t, []Status{StatusCanceled, StatusFailed}, final.Status)
}

func TestRunnerForwardsAttributesToFactSource(t *testing.T) {
	source := &capturingSource{set: cleanSet()}
	runner := newTestRunner(t, source, &scriptedRetriever{})

	started, err := runner.Start(context.Background(), StartRequest{
		PropertyID:   "prop-1",
		PropertyType: "house",
		Attributes: facts.Attributes{
			Location:    facts.Location{Address: "1 Example St, Carlton", State: "VIC"},
			AskingPrice: 650000,
			WeeklyRent:  500,
		},
	})
	require.NoError(t, err)
	waitForFinish(t, runner, started.ID)

	got := source.last()
	assert.Equal(t, "prop-1", got.PropertyID, "property identity must reach the providers")
	assert.Equal(t, "house", got.PropertyType)
	assert.Equal(t, 650000.0, got.AskingPrice)
	assert.Equal(t, 500.0, got.WeeklyRent)
	assert.Equal(t, "VIC", got.Location.State)
}

func TestRunnerEvictsExpiredTerminalRuns(t *testing.T) {
	runner := newTestRunner(t, &staticSource{set: cleanSet()}, &scriptedRetriever{})
	runner.SetRetention(10 * time.Millisecond)

	first, err := runner.Start(context.Background(), StartRequest{
		PropertyID:   "prop-1",
		PropertyType: "house",
	})
	require.NoError(t, err)
	waitForFinish(t, runner, first.ID)

	time.Sleep(25 * time.Millisecond)

	// The next Start sweeps the registry.
	second, err := runner.Start(context.Background(), StartRequest{
		PropertyID:   "prop-2",
		PropertyType: "house",
	})
	require.NoError(t, err)

	_, err = runner.Get(first.ID)
	assert.ErrorIs(t, err, ErrAnalysisNotFound, "expired terminal runs must be swept")
	_, err = runner.Get(second.ID)
	assert.NoError(t, err)
}

func TestRunnerKeepsLiveRunsPastRetention(t *testing.T) {
	source := &blockingSource{started: make(chan struct{})}
	runner := newTestRunner(t, source, &scriptedRetriever{})
	runner.SetRetention(time.Millisecond)

	first, err := runner.Start(context.Background(), StartRequest{
		PropertyID:   "prop-1",
		PropertyType: "house",
	})
	require.NoError(t, err)
	<-source.started

	time.Sleep(10 * time.Millisecond)
	_, err = runner.Start(context.Background(), StartRequest{
		PropertyID:   "prop-2",
		PropertyType: "house",
	})
	require.NoError(t, err)

	_, err = runner.Get(first.ID)
	assert.NoError(t, err, "in-flight runs are never swept")
	require.NoError(t, runner.Cancel(first.ID))
}

func TestRunValidatesRequest(t *testing.T) {
	runner := newTestRunner(t, &staticSource{set: cleanSet()}, &scriptedRetriever{})

	_, err := runner.Start(context.Background(), StartRequest{PropertyType: "house"})
	assert.Error(t, err)
	_, err = runner.Start(context.Background(), StartRequest{PropertyID: "p"})
	assert.Error(t, err)

	_, err = runner.Get("missing")
	assert.ErrorIs(t, err, ErrAnalysisNotFound)
	assert.ErrorIs(t, runner.Cancel("missing"), ErrAnalysisNotFound)
}
