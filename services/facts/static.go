// Copyright (C) 2026 Pathway Property Analytics (dev@pathwayprop.com.au)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package facts

import (
	"context"
	"time"
)

// StaticProvider serves a fixed fact map. Used in lightweight mode when no
// spatial service is configured, and in tests.
type StaticProvider struct {
	name  string
	facts []Fact
}

// NewStaticProvider builds a provider that always returns the given facts,
// restamped at lookup time.
func NewStaticProvider(name string, fs ...Fact) *StaticProvider {
	return &StaticProvider{name: name, facts: fs}
}

func (p *StaticProvider) Name() string { return p.name }

func (p *StaticProvider) Keys() []Key {
	keys := make([]Key, 0, len(p.facts))
	for _, f := range p.facts {
		keys = append(keys, f.Key)
	}
	return keys
}

func (p *StaticProvider) Lookup(ctx context.Context, _ Attributes) ([]Fact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	out := make([]Fact, len(p.facts))
	for i, f := range p.facts {
		f.Source = p.name
		f.RetrievedAt = now
		out[i] = f
	}
	return out, nil
}

// StaticValuation returns a fixed estimate; the lightweight-mode stand-in
// for a comparables provider.
type StaticValuation struct {
	Result Valuation
}

func (v *StaticValuation) Estimate(ctx context.Context, _ Attributes) (*Valuation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := v.Result
	return &out, nil
}
