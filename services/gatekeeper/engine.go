// Copyright (C) 2026 Pathway Property Analytics (dev@pathwayprop.com.au)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package gatekeeper screens a property against a compiled YAML rule set
// before any document-level analysis is paid for. Rules are grouped into
// categories (flood, aircraft noise, social housing, zoning); categories
// evaluate independently and a KILL only short-circuits the remaining rules
// of its own category, so the final report still itemizes every category.
package gatekeeper

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/pathwayprop/pathway/services/facts"
)

var tracer = otel.Tracer("pathway.gatekeeper")

// EngineConfig tunes evaluation behavior.
type EngineConfig struct {
	// ConfidenceFloor is the minimum fact confidence a rule will act on.
	// Facts below the floor degrade the check to WARNING with
	// data_incomplete set, never to a silent pass.
	ConfidenceFloor float64
}

// DefaultEngineConfig returns the production defaults.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{ConfidenceFloor: 0.5}
}

// Engine evaluates fact sets against one compiled rule set. It holds no
// per-property state and is safe for concurrent use.
type Engine struct {
	rules *RuleSet
	cfg   EngineConfig
}

// NewEngine builds an engine over an already compiled rule set.
func NewEngine(rules *RuleSet, cfg EngineConfig) *Engine {
	if cfg.ConfidenceFloor <= 0 {
		cfg.ConfidenceFloor = DefaultEngineConfig().ConfidenceFloor
	}
	return &Engine{rules: rules, cfg: cfg}
}

// RuleVersion reports the version string of the loaded rule set.
func (e *Engine) RuleVersion() string {
	return e.rules.Version
}

// # Description
//
//	Evaluate runs every category of the rule set against the property's
//	fact set and folds the per-check outcomes into a single verdict.
//	Output ordering is deterministic: categories in declaration order,
//	rules by (order, id) within each category. A KILL rule firing stops
//	the remaining rules of that category only; all other categories still
//	run so the report stays complete. The verdict is the most severe
//	outcome observed: any KILL yields REJECT, otherwise any WARNING or
//	FAIL yields REVIEW, otherwise PROCEED.
//
// # Inputs
//
//	ctx - Context carrying the active trace span.
//	set - Facts for the property under evaluation. Missing or
//	      low-confidence facts degrade their checks rather than pass.
//
// # Outputs
//
//	Result - Verdict, the itemized checks, and the rendered kill reasons.
func (e *Engine) Evaluate(ctx context.Context, set *facts.Set) Result {
	_, span := tracer.Start(ctx, "gatekeeper.Evaluate")
	defer span.End()

	result := Result{
		Verdict:     VerdictProceed,
		RuleVersion: e.rules.Version,
		Checks:      make([]CheckResult, 0, len(e.rules.Rules)),
		KillReasons: []string{},
	}

	for _, category := range e.rules.Categories() {
		for _, rule := range e.rules.ByCategory(category) {
			check, killReason := e.evaluateRule(&rule, set)
			result.Checks = append(result.Checks, check)
			if killReason != "" {
				result.KillReasons = append(result.KillReasons, killReason)
				slog.Warn("Kill rule fired",
					"rule_id", rule.ID,
					"category", rule.Category,
					"reason", killReason)
				break
			}
		}
	}

	for _, check := range result.Checks {
		if check.Score != CheckPass {
			result.Verdict = VerdictReview
			break
		}
	}
	if len(result.KillReasons) > 0 {
		result.Verdict = VerdictReject
	}

	span.SetAttributes(
		attribute.String("gatekeeper.verdict", string(result.Verdict)),
		attribute.Int("gatekeeper.kill_count", len(result.KillReasons)),
		attribute.String("gatekeeper.rule_version", e.rules.Version),
	)
	return result
}

// evaluateRule scores one rule. The second return value is the rendered
// kill reason when a KILL rule fired, empty otherwise.
func (e *Engine) evaluateRule(rule *Rule, set *facts.Set) (CheckResult, string) {
	check := CheckResult{
		RuleID:   rule.ID,
		Category: rule.Category,
		Score:    CheckPass,
	}

	fact, ok := set.Get(rule.FactKey)
	if !ok || fact.Confidence < e.cfg.ConfidenceFloor {
		check.Score = CheckWarning
		check.DataIncomplete = true
		check.Detail = fmt.Sprintf("fact %s unavailable or below confidence floor", rule.FactKey)
		return check, ""
	}

	if !rule.predicate(fact) {
		check.Detail = fmt.Sprintf("%s = %s", rule.FactKey, fact.Value.String())
		return check, ""
	}

	message := rule.RenderMessage(fact)
	check.Detail = message
	switch rule.Severity {
	case SeverityKill, SeverityFail:
		check.Score = CheckFail
	case SeverityWarning:
		check.Score = CheckWarning
	case SeverityPass:
		check.Score = CheckPass
	}
	if rule.Severity == SeverityKill {
		return check, message
	}
	return check, ""
}
