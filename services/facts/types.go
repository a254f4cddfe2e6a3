// Copyright (C) 2026 Pathway Property Analytics (dev@pathwayprop.com.au)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package facts normalizes heterogeneous external lookups (spatial overlays,
// flood and fire ratings, demographic density, zoning) into uniform typed
// fact records scoped to a single property.
//
// Facts are immutable once retrieved within an analysis run; a new run
// re-fetches. Providers that fail or time out still yield a fact for each of
// their keys, carrying confidence 0, so the gatekeeper can degrade the
// corresponding checks instead of silently passing them.
package facts

import (
	"fmt"
	"sort"
	"time"
)

// Key identifies a supported fact.
type Key string

// Supported fact keys. The set mirrors the street-level checks the
// gatekeeper rule sets reference.
const (
	KeyFloodAEP1              Key = "flood_1aep"
	KeyFloodBuildingAtRisk    Key = "flood_building_at_risk"
	KeyBALRating              Key = "bal_rating"
	KeyANEF                   Key = "anef"
	KeyN70                    Key = "n70"
	KeyZoningCode             Key = "zoning_code"
	KeyHeritageOverlay        Key = "heritage_overlay"
	KeySocialHousingSA1Pct    Key = "social_housing_sa1_pct"
	KeySocialHousingStreetPct Key = "social_housing_street_pct"
	KeyGrossYieldPct          Key = "gross_yield_pct"
	KeySA1Code                Key = "sa1_code"
	KeyContaminationRisk      Key = "contamination_risk"
)

// Kind discriminates the value union of a fact.
type Kind int

const (
	KindMeasurement Kind = iota
	KindCategory
	KindBoolean
)

// Value is a tagged union of the three value shapes a fact can carry.
// Use the constructor helpers; the zero Value is a 0.0 measurement.
type Value struct {
	Kind        Kind
	Measurement float64
	Category    string
	Boolean     bool
}

// Measurement wraps a numeric value (ANEF, density percentage, yield).
func Measurement(v float64) Value { return Value{Kind: KindMeasurement, Measurement: v} }

// Category wraps an enumerated value (BAL rating, zoning code, SA1 code).
func Category(s string) Value { return Value{Kind: KindCategory, Category: s} }

// Boolean wraps a yes/no overlay membership (flood extent, heritage).
func Boolean(b bool) Value { return Value{Kind: KindBoolean, Boolean: b} }

func (v Value) String() string {
	switch v.Kind {
	case KindCategory:
		return v.Category
	case KindBoolean:
		return fmt.Sprintf("%t", v.Boolean)
	default:
		return fmt.Sprintf("%g", v.Measurement)
	}
}

// Fact is one typed key/value record for a property.
type Fact struct {
	Key         Key       `json:"key"`
	Value       Value     `json:"value"`
	Source      string    `json:"source"`
	Confidence  float64   `json:"confidence"`
	RetrievedAt time.Time `json:"retrieved_at"`
}

// Unavailable builds a confidence-0 fact for a key whose provider failed or
// timed out. The fact is still present in the set so downstream checks can
// flag data_incomplete rather than skip.
func Unavailable(key Key, source string) Fact {
	return Fact{
		Key:         key,
		Source:      source,
		Confidence:  0,
		RetrievedAt: time.Now().UTC(),
	}
}

// Set is an immutable collection of facts keyed by Key. Build one with
// NewSet; lookups never mutate.
type Set struct {
	facts map[Key]Fact
}

// NewSet builds a fact set. Later facts win on key collision.
func NewSet(fs ...Fact) *Set {
	m := make(map[Key]Fact, len(fs))
	for _, f := range fs {
		m[f.Key] = f
	}
	return &Set{facts: m}
}

// Get returns the fact for key, if present.
func (s *Set) Get(key Key) (Fact, bool) {
	if s == nil {
		return Fact{}, false
	}
	f, ok := s.facts[key]
	return f, ok
}

// Len reports the number of facts in the set.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.facts)
}

// Keys returns the keys present, sorted for deterministic iteration.
func (s *Set) Keys() []Key {
	if s == nil {
		return nil
	}
	keys := make([]Key, 0, len(s.facts))
	for k := range s.facts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// All returns the facts in key order.
func (s *Set) All() []Fact {
	keys := s.Keys()
	out := make([]Fact, 0, len(keys))
	for _, k := range keys {
		out = append(out, s.facts[k])
	}
	return out
}

// MeanConfidence averages the confidence of every fact in the set.
// Empty sets report 0.
func (s *Set) MeanConfidence() float64 {
	if s.Len() == 0 {
		return 0
	}
	var sum float64
	for _, f := range s.facts {
		sum += f.Confidence
	}
	return sum / float64(s.Len())
}

// Location identifies where a property sits for spatial lookups.
type Location struct {
	Address string  `json:"address"`
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	State   string  `json:"state"`
}

// Comparable is one comparable sale returned by a valuation provider.
type Comparable struct {
	Address   string  `json:"address"`
	SalePrice float64 `json:"sale_price"`
	SaleDate  string  `json:"sale_date"`
	Distance  float64 `json:"distance_km"`
}

// Valuation is the estimate a valuation provider returns for a property.
type Valuation struct {
	Value       float64      `json:"value"`
	Confidence  float64      `json:"confidence"`
	Comparables []Comparable `json:"comparables"`
}

// Attributes describes the property under analysis. Providers read the
// slice of it they understand: spatial providers the location, listing-
// derived providers the price and rent figures.
type Attributes struct {
	PropertyID   string   `json:"property_id"`
	Location     Location `json:"location"`
	PropertyType string   `json:"property_type"`
	Bedrooms     int      `json:"bedrooms"`
	Bathrooms    int      `json:"bathrooms"`
	LandSizeSqm  float64  `json:"land_size_sqm"`
	BuildingYear int      `json:"building_year"`
	AskingPrice  float64  `json:"asking_price"`
	WeeklyRent   float64  `json:"weekly_rent"`
}
