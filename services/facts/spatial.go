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
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// SpatialProvider queries a state planning spatial service (WFS-style JSON
// endpoint) for overlay and statistical facts: flood extent, bushfire BAL,
// zoning, heritage, aircraft noise, and SA1 social-housing density.
//
// The endpoint contract is a single lookup call returning per-key values
// with confidences:
//
//	GET {base}/lookup?lat=...&lng=...&state=...
//	→ {"facts": {"flood_1aep": {"value": true, "confidence": 0.9}, ...}}
//
// Calls are rate limited; state portals throttle aggressively.
type SpatialProvider struct {
	httpClient *http.Client
	baseURL    string
	limiter    *rate.Limiter
}

// NewSpatialProvider builds a provider for the given base URL.
// rps bounds outbound request rate; pass 0 for the default of 5/s.
func NewSpatialProvider(baseURL string, rps float64) *SpatialProvider {
	if rps <= 0 {
		rps = 5
	}
	return &SpatialProvider{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
	}
}

func (p *SpatialProvider) Name() string { return "spatial-wfs" }

func (p *SpatialProvider) Keys() []Key {
	return []Key{
		KeyFloodAEP1,
		KeyFloodBuildingAtRisk,
		KeyBALRating,
		KeyANEF,
		KeyN70,
		KeyZoningCode,
		KeyHeritageOverlay,
		KeySocialHousingSA1Pct,
		KeySA1Code,
		KeyContaminationRisk,
	}
}

type spatialFactPayload struct {
	Value      json.RawMessage `json:"value"`
	Confidence float64         `json:"confidence"`
}

type spatialLookupResponse struct {
	Facts map[string]spatialFactPayload `json:"facts"`
}

func (p *SpatialProvider) Lookup(ctx context.Context, attrs Attributes) ([]Fact, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, &ProviderError{Provider: p.Name(), Err: err}
	}

	loc := attrs.Location
	q := url.Values{}
	q.Set("lat", fmt.Sprintf("%f", loc.Lat))
	q.Set("lng", fmt.Sprintf("%f", loc.Lng))
	q.Set("state", loc.State)
	lookupURL := fmt.Sprintf("%s/lookup?%s", p.baseURL, q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, lookupURL, nil)
	if err != nil {
		return nil, &ProviderError{Provider: p.Name(), Err: err}
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, &ProviderError{Provider: p.Name(), Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ProviderError{Provider: p.Name(), Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &ProviderError{
			Provider: p.Name(),
			Err:      fmt.Errorf("spatial service returned status %d: %s", resp.StatusCode, string(body)),
		}
	}

	var parsed spatialLookupResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, &ProviderError{Provider: p.Name(), Err: fmt.Errorf("failed to parse spatial response: %w", err)}
	}

	now := time.Now().UTC()
	out := make([]Fact, 0, len(p.Keys()))
	for _, key := range p.Keys() {
		payload, ok := parsed.Facts[string(key)]
		if !ok {
			out = append(out, Unavailable(key, p.Name()))
			continue
		}
		value, err := decodeFactValue(key, payload.Value)
		if err != nil {
			slog.Warn("Spatial fact value malformed, degrading", "key", key, "error", err)
			out = append(out, Unavailable(key, p.Name()))
			continue
		}
		out = append(out, Fact{
			Key:         key,
			Value:       value,
			Source:      p.Name(),
			Confidence:  payload.Confidence,
			RetrievedAt: now,
		})
	}
	return out, nil
}

// decodeFactValue maps the wire value into the typed union expected for the
// key. Overlay keys are booleans, ratings and codes are categories, and the
// rest are measurements.
func decodeFactValue(key Key, raw json.RawMessage) (Value, error) {
	switch key {
	case KeyFloodAEP1, KeyFloodBuildingAtRisk, KeyHeritageOverlay:
		var b bool
		if err := json.Unmarshal(raw, &b); err != nil {
			return Value{}, err
		}
		return Boolean(b), nil
	case KeyBALRating, KeyZoningCode, KeySA1Code, KeyContaminationRisk:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return Value{}, err
		}
		return Category(s), nil
	default:
		var m float64
		if err := json.Unmarshal(raw, &m); err != nil {
			return Value{}, err
		}
		return Measurement(m), nil
	}
}
