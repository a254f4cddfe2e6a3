// Copyright (C) 2026 Pathway Property Analytics (dev@pathwayprop.com.au)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package facts

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// blockingProvider never returns before its delay; used to exercise the
// per-provider timeout path.
type blockingProvider struct {
	delay time.Duration
	keys  []Key
}

func (p *blockingProvider) Name() string { return "slow" }
func (p *blockingProvider) Keys() []Key  { return p.keys }

func (p *blockingProvider) Lookup(ctx context.Context, _ Attributes) ([]Fact, error) {
	select {
	case <-time.After(p.delay):
		return []Fact{{Key: p.keys[0], Value: Measurement(1), Source: "slow", Confidence: 1}}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type failingProvider struct{}

func (p *failingProvider) Name() string { return "broken" }
func (p *failingProvider) Keys() []Key  { return []Key{KeyZoningCode} }
func (p *failingProvider) Lookup(context.Context, Attributes) ([]Fact, error) {
	return nil, errors.New("connection refused")
}

type countingProvider struct {
	calls atomic.Int64
}

func (p *countingProvider) Name() string { return "counted" }
func (p *countingProvider) Keys() []Key  { return []Key{KeyANEF} }
func (p *countingProvider) Lookup(context.Context, Attributes) ([]Fact, error) {
	p.calls.Add(1)
	return []Fact{{Key: KeyANEF, Value: Measurement(12), Source: "counted", Confidence: 1, RetrievedAt: time.Now()}}, nil
}

func TestFetchJoinsAllProviders(t *testing.T) {
	adapter := NewAdapter(DefaultAdapterConfig(),
		NewStaticProvider("a", Fact{Key: KeyANEF, Value: Measurement(12), Confidence: 1}),
		NewStaticProvider("b", Fact{Key: KeyFloodAEP1, Value: Boolean(true), Confidence: 0.9}),
	)

	set, err := adapter.Fetch(context.Background(), Attributes{Location: Location{Address: "1 Test St", Lat: -37.8, Lng: 144.9, State: "VIC"}})
	require.NoError(t, err)
	require.Equal(t, 2, set.Len())

	anef, ok := set.Get(KeyANEF)
	require.True(t, ok)
	assert.Equal(t, 12.0, anef.Value.Measurement)
	assert.Equal(t, "a", anef.Source)

	flood, ok := set.Get(KeyFloodAEP1)
	require.True(t, ok)
	assert.True(t, flood.Value.Boolean)
}

func TestFetchDegradesSlowProviderToConfidenceZero(t *testing.T) {
	cfg := AdapterConfig{ProviderTimeout: 20 * time.Millisecond, CacheTTL: time.Minute}
	adapter := NewAdapter(cfg,
		&blockingProvider{delay: time.Second, keys: []Key{KeyN70}},
		NewStaticProvider("fast", Fact{Key: KeyANEF, Value: Measurement(5), Confidence: 1}),
	)

	set, err := adapter.Fetch(context.Background(), Attributes{Location: Location{State: "VIC"}})
	require.NoError(t, err)

	n70, ok := set.Get(KeyN70)
	require.True(t, ok, "slow provider must still contribute an unavailable fact")
	assert.Equal(t, 0.0, n70.Confidence)

	anef, ok := set.Get(KeyANEF)
	require.True(t, ok)
	assert.Equal(t, 1.0, anef.Confidence)
}

func TestFetchDegradesFailedProvider(t *testing.T) {
	adapter := NewAdapter(DefaultAdapterConfig(), &failingProvider{})

	set, err := adapter.Fetch(context.Background(), Attributes{Location: Location{State: "VIC"}})
	require.NoError(t, err)

	zoning, ok := set.Get(KeyZoningCode)
	require.True(t, ok)
	assert.Equal(t, 0.0, zoning.Confidence)
	assert.Equal(t, "broken", zoning.Source)
}

func TestFetchServesRepeatLookupsFromCache(t *testing.T) {
	p := &countingProvider{}
	adapter := NewAdapter(AdapterConfig{ProviderTimeout: time.Second, CacheTTL: time.Minute}, p)

	attrs := Attributes{Location: Location{Lat: -37.8, Lng: 144.9, State: "VIC"}}
	_, err := adapter.Fetch(context.Background(), attrs)
	require.NoError(t, err)
	_, err = adapter.Fetch(context.Background(), attrs)
	require.NoError(t, err)

	assert.Equal(t, int64(1), p.calls.Load())
}

func TestFetchCacheDistinguishesListingFields(t *testing.T) {
	p := &countingProvider{}
	adapter := NewAdapter(AdapterConfig{ProviderTimeout: time.Second, CacheTTL: time.Minute}, p)

	loc := Location{Lat: -37.8, Lng: 144.9, State: "VIC"}
	_, err := adapter.Fetch(context.Background(), Attributes{Location: loc, AskingPrice: 600000, WeeklyRent: 500})
	require.NoError(t, err)
	_, err = adapter.Fetch(context.Background(), Attributes{Location: loc, AskingPrice: 700000, WeeklyRent: 500})
	require.NoError(t, err)

	assert.Equal(t, int64(2), p.calls.Load(), "a re-listed price must not reuse the cached lookup")
}

func TestFetchHonorsCallerCancellation(t *testing.T) {
	adapter := NewAdapter(DefaultAdapterConfig(),
		&blockingProvider{delay: time.Minute, keys: []Key{KeyN70}})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := adapter.Fetch(ctx, Attributes{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSetMeanConfidence(t *testing.T) {
	set := NewSet(
		Fact{Key: KeyANEF, Confidence: 1.0},
		Fact{Key: KeyN70, Confidence: 0.5},
	)
	assert.InDelta(t, 0.75, set.MeanConfidence(), 1e-9)
	assert.Equal(t, 0.0, NewSet().MeanConfidence())
}
