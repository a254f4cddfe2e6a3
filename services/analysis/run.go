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
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/pathwayprop/pathway/services/facts"
	"github.com/pathwayprop/pathway/services/gatekeeper"
	"github.com/pathwayprop/pathway/services/scoring"
)

var tracer = otel.Tracer("pathway.analysis")

// ErrAnalysisNotFound is returned for unknown analysis IDs.
var ErrAnalysisNotFound = fmt.Errorf("analysis not found")

// FactSource fetches the property facts. *facts.Adapter satisfies it.
type FactSource interface {
	Fetch(ctx context.Context, attrs facts.Attributes) (*facts.Set, error)
}

// defaultRunRetention is how long finished runs stay queryable before
// Start sweeps them out of the registry.
const defaultRunRetention = time.Hour

// run is the mutable state of one analysis plus its subscribers.
type run struct {
	mu       sync.Mutex
	analysis Analysis
	cancel   context.CancelFunc
	subs     map[chan Event]struct{}
}

// Runner executes analyses and keeps their state for polling and event
// streaming. Runs execute on their own goroutine; Start returns as soon
// as the run is registered.
type Runner struct {
	source     FactSource
	engine     *gatekeeper.Engine
	retriever  Retriever
	analyzers  []Analyzer
	aggregator *scoring.Aggregator
	observer   func(Analysis)
	retention  time.Duration

	mu   sync.Mutex
	runs map[string]*run
}

// NewRunner wires the pipeline stages.
func NewRunner(source FactSource, engine *gatekeeper.Engine, retriever Retriever, analyzers []Analyzer, aggregator *scoring.Aggregator) *Runner {
	return &Runner{
		source:     source,
		engine:     engine,
		retriever:  retriever,
		analyzers:  analyzers,
		aggregator: aggregator,
		retention:  defaultRunRetention,
		runs:       make(map[string]*run),
	}
}

// SetRetention overrides how long finished runs stay queryable. Runs past
// retention are swept when the next analysis starts, so the registry stays
// bounded under sustained load.
func (r *Runner) SetRetention(d time.Duration) {
	if d > 0 {
		r.retention = d
	}
}

// SetObserver registers a callback invoked with the final snapshot of
// every run that reaches a terminal status. Set before the first Start;
// the callback must not block.
func (r *Runner) SetObserver(fn func(Analysis)) {
	r.observer = fn
}

// Start registers a new analysis and launches it in the background. The
// returned snapshot is in StatusPending; poll Get or Subscribe for
// progress.
func (r *Runner) Start(ctx context.Context, req StartRequest) (Analysis, error) {
	if req.PropertyID == "" {
		return Analysis{}, fmt.Errorf("property_id is required")
	}
	if req.PropertyType == "" {
		return Analysis{}, fmt.Errorf("property_type is required")
	}
	req.Attributes.PropertyID = req.PropertyID
	req.Attributes.PropertyType = req.PropertyType

	// The run must outlive the request that started it.
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	state := &run{
		analysis: Analysis{
			ID:           uuid.NewString(),
			PropertyID:   req.PropertyID,
			PropertyType: req.PropertyType,
			Status:       StatusPending,
			StartedAt:    time.Now().UTC(),
		},
		cancel: cancel,
		subs:   make(map[chan Event]struct{}),
	}

	r.mu.Lock()
	r.evictExpired(time.Now())
	r.runs[state.analysis.ID] = state
	r.mu.Unlock()

	slog.Info("Starting analysis",
		"analysis_id", state.analysis.ID,
		"property_id", req.PropertyID,
		"property_type", req.PropertyType)
	go r.execute(runCtx, state, req)
	return state.snapshot(), nil
}

// Get returns a snapshot of an analysis.
func (r *Runner) Get(id string) (Analysis, error) {
	r.mu.Lock()
	state, ok := r.runs[id]
	r.mu.Unlock()
	if !ok {
		return Analysis{}, ErrAnalysisNotFound
	}
	return state.snapshot(), nil
}

// Latest returns a snapshot of the most recently started analysis for a
// property.
func (r *Runner) Latest(propertyID string) (Analysis, error) {
	r.mu.Lock()
	var newest *run
	for _, state := range r.runs {
		if state.analysis.PropertyID != propertyID {
			continue
		}
		if newest == nil || state.analysis.StartedAt.After(newest.analysis.StartedAt) {
			newest = state
		}
	}
	r.mu.Unlock()
	if newest == nil {
		return Analysis{}, ErrAnalysisNotFound
	}
	return newest.snapshot(), nil
}

// evictExpired drops terminal runs whose retention has lapsed. Caller
// holds r.mu.
func (r *Runner) evictExpired(now time.Time) {
	for id, state := range r.runs {
		state.mu.Lock()
		expired := state.analysis.Status.Terminal() &&
			now.Sub(state.analysis.FinishedAt) > r.retention
		state.mu.Unlock()
		if expired {
			delete(r.runs, id)
		}
	}
}

// Cancel stops a running analysis. Canceling a finished analysis is a
// no-op.
func (r *Runner) Cancel(id string) error {
	r.mu.Lock()
	state, ok := r.runs[id]
	r.mu.Unlock()
	if !ok {
		return ErrAnalysisNotFound
	}
	state.cancel()
	return nil
}

// Subscribe streams progress events for an analysis. The returned stop
// function must be called to release the subscription.
func (r *Runner) Subscribe(id string) (<-chan Event, func(), error) {
	r.mu.Lock()
	state, ok := r.runs[id]
	r.mu.Unlock()
	if !ok {
		return nil, nil, ErrAnalysisNotFound
	}

	ch := make(chan Event, 16)
	state.mu.Lock()
	if state.analysis.Status.Terminal() {
		// Run already finished; hand back a closed stream.
		close(ch)
		state.mu.Unlock()
		return ch, func() {}, nil
	}
	state.subs[ch] = struct{}{}
	state.mu.Unlock()

	stop := func() {
		state.mu.Lock()
		if _, live := state.subs[ch]; live {
			delete(state.subs, ch)
			close(ch)
		}
		state.mu.Unlock()
	}
	return ch, stop, nil
}

// execute runs the pipeline phases in order. A gatekeeper REJECT or a
// phase failure ends the run early; analyzer failures degrade to missing
// factors rather than failing the whole analysis.
func (r *Runner) execute(ctx context.Context, state *run, req StartRequest) {
	ctx, span := tracer.Start(ctx, "analysis.execute")
	defer span.End()
	span.SetAttributes(attribute.String("analysis.id", state.analysis.ID))

	state.update(func(a *Analysis) { a.Status = StatusRunning })

	r.emit(state, PhaseFacts, "fetching property facts")
	set, err := r.source.Fetch(ctx, req.Attributes)
	if err != nil {
		r.fail(state, fmt.Errorf("fact retrieval failed: %w", err))
		return
	}
	state.update(func(a *Analysis) { a.Facts = set.All() })
	if r.checkCanceled(ctx, state) {
		return
	}

	r.emit(state, PhaseGatekeeper, "screening against acquisition rules")
	verdict := r.engine.Evaluate(ctx, set)
	state.update(func(a *Analysis) { a.Gatekeeper = &verdict })
	if verdict.Verdict == gatekeeper.VerdictReject {
		slog.Info("Gatekeeper rejected property, skipping document analysis",
			"analysis_id", state.analysis.ID,
			"kill_reasons", verdict.KillReasons)
		r.finish(state, StatusRejected)
		return
	}
	if r.checkCanceled(ctx, state) {
		return
	}

	r.emit(state, PhaseAnalysis, "analyzing documents")
	factors := r.runAnalyzers(ctx, state, req, set)
	if r.checkCanceled(ctx, state) {
		return
	}

	r.emit(state, PhaseScoring, "aggregating risk score")
	report := r.aggregator.Aggregate(scoring.Input{
		PropertyID:   req.PropertyID,
		PropertyType: req.PropertyType,
		Factors:      factors,
	})
	state.update(func(a *Analysis) { a.Report = report })

	r.finish(state, StatusComplete)
}

// runAnalyzers fans the analyzers out concurrently and joins their
// factors. A failed analyzer logs and contributes nothing.
func (r *Runner) runAnalyzers(ctx context.Context, state *run, req StartRequest, set *facts.Set) []scoring.Factor {
	request := Request{
		PropertyID:   req.PropertyID,
		PropertyType: req.PropertyType,
		Facts:        set,
		Retriever:    r.retriever,
	}

	var mu sync.Mutex
	var factors []scoring.Factor
	var wg sync.WaitGroup
	for _, analyzer := range r.analyzers {
		wg.Add(1)
		go func(analyzer Analyzer) {
			defer wg.Done()
			found, err := analyzer.Analyze(ctx, request)
			if err != nil {
				slog.Warn("Analyzer failed, continuing without its factors",
					"analysis_id", state.analysis.ID,
					"analyzer", analyzer.Name(),
					"error", err)
				return
			}
			mu.Lock()
			factors = append(factors, found...)
			mu.Unlock()
			r.emit(state, PhaseAnalysis, fmt.Sprintf("%s analyzer finished with %d factors", analyzer.Name(), len(found)))
		}(analyzer)
	}
	wg.Wait()
	return factors
}

func (r *Runner) checkCanceled(ctx context.Context, state *run) bool {
	if ctx.Err() == nil {
		return false
	}
	slog.Info("Analysis canceled", "analysis_id", state.analysis.ID)
	r.finish(state, StatusCanceled)
	return true
}

func (r *Runner) fail(state *run, err error) {
	slog.Error("Analysis failed", "analysis_id", state.analysis.ID, "error", err)
	state.update(func(a *Analysis) { a.Error = err.Error() })
	r.finish(state, StatusFailed)
}

func (r *Runner) finish(state *run, status Status) {
	state.update(func(a *Analysis) {
		a.Status = status
		a.FinishedAt = time.Now().UTC()
	})
	r.emit(state, PhaseDone, string(status))
	state.closeSubs()
	if r.observer != nil {
		r.observer(state.snapshot())
	}
}

// emit broadcasts a progress event without blocking; slow subscribers
// lose events rather than stalling the run.
func (r *Runner) emit(state *run, phase Phase, message string) {
	event := Event{
		AnalysisID: state.analysis.ID,
		Phase:      phase,
		Message:    message,
		Timestamp:  time.Now().UTC(),
	}
	state.mu.Lock()
	defer state.mu.Unlock()
	for ch := range state.subs {
		select {
		case ch <- event:
		default:
		}
	}
}

func (s *run) update(fn func(*Analysis)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.analysis)
}

func (s *run) snapshot() Analysis {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.analysis
}

func (s *run) closeSubs() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for ch := range s.subs {
		close(ch)
		delete(s.subs, ch)
	}
}
