// Copyright (C) 2026 Pathway Property Analytics (dev@pathwayprop.com.au)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package facts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HTTPValuationProvider calls an external comparables/valuation service.
//
// Contract: POST {base}/estimate with the property attributes, returning
// {"value": ..., "confidence": ..., "comparables": [...]}.
type HTTPValuationProvider struct {
	httpClient *http.Client
	baseURL    string
}

// NewHTTPValuationProvider builds a valuation client for the given base URL.
func NewHTTPValuationProvider(baseURL string) *HTTPValuationProvider {
	return &HTTPValuationProvider{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    strings.TrimSuffix(baseURL, "/"),
	}
}

func (p *HTTPValuationProvider) Estimate(ctx context.Context, attrs Attributes) (*Valuation, error) {
	payload, err := json.Marshal(attrs)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal valuation request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.baseURL+"/estimate", bytes.NewBuffer(payload))
	if err != nil {
		return nil, &ProviderError{Provider: "valuation", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, &ProviderError{Provider: "valuation", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ProviderError{Provider: "valuation", Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &ProviderError{
			Provider: "valuation",
			Err:      fmt.Errorf("valuation service returned status %d: %s", resp.StatusCode, string(body)),
		}
	}

	var v Valuation
	if err := json.Unmarshal(body, &v); err != nil {
		return nil, &ProviderError{Provider: "valuation", Err: fmt.Errorf("failed to parse valuation response: %w", err)}
	}
	return &v, nil
}

// askingPriceConfidence is the confidence of a yield computed from a
// listed asking price rather than a modeled estimate.
const askingPriceConfidence = 0.95

// YieldProvider derives the gross rental yield fact from the listing
// attributes: weekly rent × 52 / price, as a percentage. The asking price
// is used when listed; otherwise the valuer's estimate stands in, carrying
// the estimate's own confidence.
type YieldProvider struct {
	valuer ValuationProvider
}

// NewYieldProvider wraps a valuation client as a fact provider. A nil
// valuer is allowed; yields then require a listed asking price.
func NewYieldProvider(valuer ValuationProvider) *YieldProvider {
	return &YieldProvider{valuer: valuer}
}

func (p *YieldProvider) Name() string { return "valuation" }

func (p *YieldProvider) Keys() []Key { return []Key{KeyGrossYieldPct} }

func (p *YieldProvider) Lookup(ctx context.Context, attrs Attributes) ([]Fact, error) {
	if attrs.WeeklyRent <= 0 {
		return []Fact{Unavailable(KeyGrossYieldPct, p.Name())}, nil
	}

	price := attrs.AskingPrice
	confidence := askingPriceConfidence
	if price <= 0 {
		if p.valuer == nil {
			return []Fact{Unavailable(KeyGrossYieldPct, p.Name())}, nil
		}
		v, err := p.valuer.Estimate(ctx, attrs)
		if err != nil {
			return nil, err
		}
		if v.Value <= 0 {
			return []Fact{Unavailable(KeyGrossYieldPct, p.Name())}, nil
		}
		price = v.Value
		confidence = v.Confidence
	}

	yield := attrs.WeeklyRent * 52 / price * 100
	return []Fact{{
		Key:         KeyGrossYieldPct,
		Value:       Measurement(yield),
		Source:      p.Name(),
		Confidence:  confidence,
		RetrievedAt: time.Now().UTC(),
	}}, nil
}
