// Copyright (C) 2026 Pathway Property Analytics (dev@pathwayprop.com.au)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package facts

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

var tracer = otel.Tracer("pathway.facts")

// AdapterConfig tunes the fan-out behavior.
type AdapterConfig struct {
	// ProviderTimeout bounds each individual provider lookup. A provider
	// that exceeds it contributes confidence-0 facts instead of blocking
	// the run.
	ProviderTimeout time.Duration

	// CacheTTL controls how long resolved provider results are reused.
	// Retried runs within the TTL do not re-hit external services.
	CacheTTL time.Duration
}

// DefaultAdapterConfig returns the adapter defaults.
func DefaultAdapterConfig() AdapterConfig {
	return AdapterConfig{
		ProviderTimeout: 15 * time.Second,
		CacheTTL:        10 * time.Minute,
	}
}

// Adapter fans lookups out to every registered provider concurrently and
// joins on all results or their timeouts, producing one immutable fact set
// per call.
//
// Thread safety: Adapter is safe for concurrent use; each Fetch builds its
// own result set and the cache is internally synchronized.
type Adapter struct {
	providers []Provider
	cfg       AdapterConfig
	cache     *gocache.Cache
}

// NewAdapter builds an adapter over the given providers.
func NewAdapter(cfg AdapterConfig, providers ...Provider) *Adapter {
	if cfg.ProviderTimeout <= 0 {
		cfg.ProviderTimeout = DefaultAdapterConfig().ProviderTimeout
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultAdapterConfig().CacheTTL
	}
	return &Adapter{
		providers: providers,
		cfg:       cfg,
		cache:     gocache.New(cfg.CacheTTL, 2*cfg.CacheTTL),
	}
}

// Fetch resolves facts for a property from every provider.
//
// Lookups run concurrently, each under its own timeout. A provider that
// errors or times out yields a confidence-0 fact per key it owns; the fact
// set is therefore always complete over the union of provider keys, and the
// caller can distinguish "checked and clear" from "could not check" by
// confidence alone. Fetch only fails outright when ctx itself is canceled.
func (a *Adapter) Fetch(ctx context.Context, attrs Attributes) (*Set, error) {
	ctx, span := tracer.Start(ctx, "Adapter.Fetch")
	defer span.End()
	span.SetAttributes(
		attribute.String("location.address", attrs.Location.Address),
		attribute.Int("providers", len(a.providers)),
	)

	var (
		mu    sync.Mutex
		found []Fact
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, p := range a.providers {
		p := p
		g.Go(func() error {
			fs := a.lookupOne(gctx, p, attrs)
			mu.Lock()
			found = append(found, fs...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	set := NewSet(found...)
	span.SetAttributes(attribute.Int("facts", set.Len()))
	return set, nil
}

// lookupOne resolves a single provider, serving from cache when possible.
// It never returns an error: failures degrade to confidence-0 facts.
func (a *Adapter) lookupOne(ctx context.Context, p Provider, attrs Attributes) []Fact {
	key := cacheKey(p.Name(), attrs)
	if cached, ok := a.cache.Get(key); ok {
		slog.Debug("Fact lookup served from cache", "provider", p.Name(), "address", attrs.Location.Address)
		return cached.([]Fact)
	}

	lctx, cancel := context.WithTimeout(ctx, a.cfg.ProviderTimeout)
	defer cancel()

	fs, err := p.Lookup(lctx, attrs)
	if err != nil {
		slog.Warn("Fact provider degraded to confidence 0",
			"provider", p.Name(), "address", attrs.Location.Address, "error", err)
		return unavailableAll(p)
	}
	if len(fs) == 0 {
		slog.Warn("Fact provider returned no facts", "provider", p.Name(), "address", attrs.Location.Address)
		return unavailableAll(p)
	}

	a.cache.Set(key, fs, gocache.DefaultExpiration)
	return fs
}

func unavailableAll(p Provider) []Fact {
	keys := p.Keys()
	out := make([]Fact, 0, len(keys))
	for _, k := range keys {
		out = append(out, Unavailable(k, p.Name()))
	}
	return out
}

// cacheKey covers the listing fields as well as the location, so a
// re-listed property with a new price or rent is not served a stale yield.
func cacheKey(provider string, attrs Attributes) string {
	loc := attrs.Location
	return fmt.Sprintf("%s|%.5f,%.5f|%s|%.0f|%.0f",
		provider, loc.Lat, loc.Lng, loc.State, attrs.AskingPrice, attrs.WeeklyRent)
}
