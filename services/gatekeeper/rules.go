// Copyright (C) 2026 Pathway Property Analytics (dev@pathwayprop.com.au)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package gatekeeper

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/pathwayprop/pathway/services/facts"
)

// InvalidRuleDefinitionError reports a rule that failed to compile. Rule
// sets are compiled once at load time so a malformed definition is caught
// at startup, never mid-evaluation.
type InvalidRuleDefinitionError struct {
	RuleID string
	Reason string
}

func (e *InvalidRuleDefinitionError) Error() string {
	return fmt.Sprintf("invalid rule definition %q: %s", e.RuleID, e.Reason)
}

// IsInvalidRuleDefinition checks if an error is an InvalidRuleDefinitionError.
func IsInvalidRuleDefinition(err error) bool {
	var target *InvalidRuleDefinitionError
	return errors.As(err, &target)
}

// predicateSpec is the on-disk shape of a rule condition.
type predicateSpec struct {
	Fact  string    `yaml:"fact"`
	Op    string    `yaml:"op"`
	Value yaml.Node `yaml:"value"`
}

// ruleSpec is the on-disk shape of a single rule.
type ruleSpec struct {
	ID       string        `yaml:"id"`
	Category string        `yaml:"category"`
	Severity string        `yaml:"severity"`
	Order    int           `yaml:"order"`
	Message  string        `yaml:"message"`
	When     predicateSpec `yaml:"when"`
}

// ruleFileSpec is the on-disk shape of a whole rule set.
type ruleFileSpec struct {
	Version string     `yaml:"version"`
	Rules   []ruleSpec `yaml:"rules"`
}

// Rule is a compiled screening rule. The predicate is compiled from the
// YAML definition at load time and runs against a single fact.
type Rule struct {
	ID       string
	Category string
	Severity Severity
	Order    int
	Message  string
	FactKey  facts.Key

	predicate func(facts.Fact) bool
}

// RenderMessage fills the {value} placeholder with the concrete fact value.
func (r *Rule) RenderMessage(f facts.Fact) string {
	return strings.ReplaceAll(r.Message, "{value}", f.Value.String())
}

// RuleSet is a compiled, ordered collection of rules, grouped by category.
type RuleSet struct {
	Version    string
	Rules      []Rule
	categories []string
}

// Categories returns the distinct rule categories in evaluation order.
func (rs *RuleSet) Categories() []string {
	return rs.categories
}

// ByCategory returns the rules of one category in evaluation order.
func (rs *RuleSet) ByCategory(category string) []Rule {
	var out []Rule
	for _, r := range rs.Rules {
		if r.Category == category {
			out = append(out, r)
		}
	}
	return out
}

// # Description
//
//	Load parses and compiles a YAML rule set. Every predicate is compiled
//	here, so evaluation never sees an expression the compiler did not
//	accept. Callers should treat a load failure as fatal configuration.
//
// # Inputs
//
//	data - Raw YAML bytes, typically the embedded default or an operator
//	       supplied override file.
//
// # Outputs
//
//	*RuleSet - Compiled rules sorted by (order, id) for deterministic
//	           evaluation, with the category list in first-seen order.
//	error    - *InvalidRuleDefinitionError describing the first bad rule.
func Load(data []byte) (*RuleSet, error) {
	var spec ruleFileSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, &InvalidRuleDefinitionError{Reason: fmt.Sprintf("parse rule file: %v", err)}
	}
	if spec.Version == "" {
		return nil, &InvalidRuleDefinitionError{Reason: "rule file missing version"}
	}
	if len(spec.Rules) == 0 {
		return nil, &InvalidRuleDefinitionError{Reason: "rule file contains no rules"}
	}

	rs := &RuleSet{Version: spec.Version}
	seen := make(map[string]bool, len(spec.Rules))
	for i := range spec.Rules {
		rule, err := compileRule(&spec.Rules[i])
		if err != nil {
			return nil, err
		}
		if seen[rule.ID] {
			return nil, &InvalidRuleDefinitionError{RuleID: rule.ID, Reason: "duplicate rule id"}
		}
		seen[rule.ID] = true
		rs.Rules = append(rs.Rules, rule)
	}

	sort.SliceStable(rs.Rules, func(i, j int) bool {
		if rs.Rules[i].Order != rs.Rules[j].Order {
			return rs.Rules[i].Order < rs.Rules[j].Order
		}
		return rs.Rules[i].ID < rs.Rules[j].ID
	})

	seenCat := make(map[string]bool)
	for _, r := range rs.Rules {
		if !seenCat[r.Category] {
			seenCat[r.Category] = true
			rs.categories = append(rs.categories, r.Category)
		}
	}
	return rs, nil
}

func compileRule(spec *ruleSpec) (Rule, error) {
	if spec.ID == "" {
		return Rule{}, &InvalidRuleDefinitionError{Reason: "rule missing id"}
	}
	if spec.Category == "" {
		return Rule{}, &InvalidRuleDefinitionError{RuleID: spec.ID, Reason: "rule missing category"}
	}
	if spec.Message == "" {
		return Rule{}, &InvalidRuleDefinitionError{RuleID: spec.ID, Reason: "rule missing message"}
	}
	severity := Severity(spec.Severity)
	switch severity {
	case SeverityPass, SeverityWarning, SeverityFail, SeverityKill:
	default:
		return Rule{}, &InvalidRuleDefinitionError{RuleID: spec.ID, Reason: fmt.Sprintf("unknown severity %q", spec.Severity)}
	}
	if spec.When.Fact == "" {
		return Rule{}, &InvalidRuleDefinitionError{RuleID: spec.ID, Reason: "predicate missing fact"}
	}

	predicate, err := compilePredicate(spec.ID, &spec.When)
	if err != nil {
		return Rule{}, err
	}
	return Rule{
		ID:        spec.ID,
		Category:  spec.Category,
		Severity:  severity,
		Order:     spec.Order,
		Message:   spec.Message,
		FactKey:   facts.Key(spec.When.Fact),
		predicate: predicate,
	}, nil
}

func compilePredicate(ruleID string, spec *predicateSpec) (func(facts.Fact) bool, error) {
	switch spec.Op {
	case "gt", "gte", "lt", "lte":
		var threshold float64
		if err := spec.Value.Decode(&threshold); err != nil {
			return nil, &InvalidRuleDefinitionError{RuleID: ruleID, Reason: fmt.Sprintf("op %q needs a numeric value: %v", spec.Op, err)}
		}
		op := spec.Op
		return func(f facts.Fact) bool {
			if f.Value.Kind != facts.KindMeasurement {
				return false
			}
			v := f.Value.Measurement
			switch op {
			case "gt":
				return v > threshold
			case "gte":
				return v >= threshold
			case "lt":
				return v < threshold
			default:
				return v <= threshold
			}
		}, nil

	case "eq", "neq":
		var want string
		if err := spec.Value.Decode(&want); err != nil {
			return nil, &InvalidRuleDefinitionError{RuleID: ruleID, Reason: fmt.Sprintf("op %q needs a string value: %v", spec.Op, err)}
		}
		negate := spec.Op == "neq"
		return func(f facts.Fact) bool {
			if f.Value.Kind != facts.KindCategory {
				return false
			}
			return (f.Value.Category == want) != negate
		}, nil

	case "in":
		var members []string
		if err := spec.Value.Decode(&members); err != nil {
			return nil, &InvalidRuleDefinitionError{RuleID: ruleID, Reason: fmt.Sprintf("op %q needs a string list: %v", spec.Op, err)}
		}
		if len(members) == 0 {
			return nil, &InvalidRuleDefinitionError{RuleID: ruleID, Reason: `op "in" needs a non-empty list`}
		}
		set := make(map[string]bool, len(members))
		for _, m := range members {
			set[m] = true
		}
		return func(f facts.Fact) bool {
			return f.Value.Kind == facts.KindCategory && set[f.Value.Category]
		}, nil

	case "true", "false":
		want := spec.Op == "true"
		if !spec.Value.IsZero() {
			return nil, &InvalidRuleDefinitionError{RuleID: ruleID, Reason: fmt.Sprintf("op %q takes no value", spec.Op)}
		}
		return func(f facts.Fact) bool {
			return f.Value.Kind == facts.KindBoolean && f.Value.Boolean == want
		}, nil

	default:
		return nil, &InvalidRuleDefinitionError{RuleID: ruleID, Reason: fmt.Sprintf("unknown op %q", spec.Op)}
	}
}
