// Copyright (C) 2026 Pathway Property Analytics (dev@pathwayprop.com.au)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package facts

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingValuer struct{}

func (f *failingValuer) Estimate(context.Context, Attributes) (*Valuation, error) {
	return nil, &ProviderError{Provider: "valuation", Err: errors.New("comparables service down")}
}

func TestYieldProviderDerivesYieldFromAskingPrice(t *testing.T) {
	p := NewYieldProvider(nil)

	// 500 * 52 / 650000 * 100 = 4.0
	fs, err := p.Lookup(context.Background(), Attributes{AskingPrice: 650000, WeeklyRent: 500})
	require.NoError(t, err)
	require.Len(t, fs, 1)

	fact := fs[0]
	assert.Equal(t, KeyGrossYieldPct, fact.Key)
	assert.InDelta(t, 4.0, fact.Value.Measurement, 1e-9)
	assert.Equal(t, askingPriceConfidence, fact.Confidence)
	assert.Equal(t, "valuation", fact.Source)
}

func TestYieldProviderFallsBackToEstimate(t *testing.T) {
	p := NewYieldProvider(&StaticValuation{
		Result: Valuation{Value: 520000, Confidence: 0.8},
	})

	// 400 * 52 / 520000 * 100 = 4.0
	fs, err := p.Lookup(context.Background(), Attributes{WeeklyRent: 400})
	require.NoError(t, err)
	require.Len(t, fs, 1)
	assert.InDelta(t, 4.0, fs[0].Value.Measurement, 1e-9)
	assert.Equal(t, 0.8, fs[0].Confidence, "estimate-backed yields carry the estimate's confidence")
}

func TestYieldProviderDegradesWithoutRent(t *testing.T) {
	p := NewYieldProvider(&StaticValuation{Result: Valuation{Value: 650000, Confidence: 0.8}})

	fs, err := p.Lookup(context.Background(), Attributes{AskingPrice: 650000})
	require.NoError(t, err)
	require.Len(t, fs, 1)
	assert.Equal(t, KeyGrossYieldPct, fs[0].Key)
	assert.Equal(t, 0.0, fs[0].Confidence)
}

func TestYieldProviderDegradesWithoutPriceOrValuer(t *testing.T) {
	p := NewYieldProvider(nil)

	fs, err := p.Lookup(context.Background(), Attributes{WeeklyRent: 500})
	require.NoError(t, err)
	require.Len(t, fs, 1)
	assert.Equal(t, 0.0, fs[0].Confidence)
}

func TestYieldProviderSurfacesEstimateFailure(t *testing.T) {
	p := NewYieldProvider(&failingValuer{})

	_, err := p.Lookup(context.Background(), Attributes{WeeklyRent: 500})
	require.Error(t, err)
	assert.True(t, IsProviderError(err))
}

func TestYieldProviderThroughAdapterFeedsGatekeeperKey(t *testing.T) {
	adapter := NewAdapter(DefaultAdapterConfig(),
		NewYieldProvider(nil))

	set, err := adapter.Fetch(context.Background(), Attributes{AskingPrice: 800000, WeeklyRent: 500})
	require.NoError(t, err)

	yield, ok := set.Get(KeyGrossYieldPct)
	require.True(t, ok)
	assert.InDelta(t, 3.25, yield.Value.Measurement, 1e-9)
	assert.Greater(t, yield.Confidence, 0.0)
}

func TestHTTPValuationProviderPostsAttributes(t *testing.T) {
	var got Attributes
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/estimate", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(Valuation{Value: 615000, Confidence: 0.85})
	}))
	defer server.Close()

	p := NewHTTPValuationProvider(server.URL)
	v, err := p.Estimate(context.Background(), Attributes{
		PropertyID: "prop-1",
		WeeklyRent: 480,
		Location:   Location{Address: "1 Example St, Carlton", State: "VIC"},
	})
	require.NoError(t, err)
	assert.Equal(t, 615000.0, v.Value)
	assert.Equal(t, "prop-1", got.PropertyID)
	assert.Equal(t, 480.0, got.WeeklyRent)
}

func TestHTTPValuationProviderWrapsServiceErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no comparables", http.StatusBadGateway)
	}))
	defer server.Close()

	p := NewHTTPValuationProvider(server.URL)
	_, err := p.Estimate(context.Background(), Attributes{WeeklyRent: 480})
	require.Error(t, err)
	assert.True(t, IsProviderError(err))
}
