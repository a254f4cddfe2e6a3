// Copyright (C) 2026 Pathway Property Analytics (dev@pathwayprop.com.au)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package gatekeeper

// Severity classifies what a fired rule means for the property.
type Severity string

const (
	SeverityPass    Severity = "PASS"
	SeverityWarning Severity = "WARNING"
	SeverityFail    Severity = "FAIL"
	SeverityKill    Severity = "KILL"
)

// Verdict is the overall screening outcome. REJECT dominates REVIEW
// dominates PROCEED; the engine always reports the most severe outcome
// across independently evaluated categories, never an average.
type Verdict string

const (
	VerdictProceed Verdict = "PROCEED"
	VerdictReview  Verdict = "REVIEW"
	VerdictReject  Verdict = "REJECT"
)

// CheckScore is the per-check outcome recorded in the audit output.
type CheckScore string

const (
	CheckPass    CheckScore = "PASS"
	CheckWarning CheckScore = "WARNING"
	CheckFail    CheckScore = "FAIL"
)

// CheckResult is the itemized outcome for one rule evaluation.
//
// DataIncomplete marks checks degraded to WARNING because the backing fact
// was missing or below the configured confidence floor; report rendering
// must surface it so the end user is not shown false certainty.
type CheckResult struct {
	RuleID         string     `json:"rule_id"`
	Category       string     `json:"category"`
	Score          CheckScore `json:"score"`
	Detail         string     `json:"detail"`
	DataIncomplete bool       `json:"data_incomplete,omitempty"`
}

// Result is the full gatekeeper output for one property.
type Result struct {
	Verdict     Verdict       `json:"verdict"`
	RuleVersion string        `json:"rule_version"`
	Checks      []CheckResult `json:"checks"`
	KillReasons []string      `json:"kill_reasons"`
}
