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
	"fmt"
)

// Provider is one external fact source (a state planning WFS, a census
// endpoint, an aircraft-noise overlay service). A provider owns a fixed set
// of keys and returns a fact for each on success.
//
// Implementations must be safe for concurrent use; the adapter fans out to
// all providers at once.
type Provider interface {
	// Name identifies the provider in fact sources and logs.
	Name() string

	// Keys lists the fact keys this provider resolves. The adapter uses the
	// list to synthesize confidence-0 facts when the provider fails.
	Keys() []Key

	// Lookup resolves the provider's facts for a property. Spatial
	// providers read attrs.Location; listing-derived providers read the
	// price and rent fields. Implementations must honor ctx cancellation
	// and deadlines.
	Lookup(ctx context.Context, attrs Attributes) ([]Fact, error)
}

// ValuationProvider estimates market value with comparable sales.
type ValuationProvider interface {
	Estimate(ctx context.Context, attrs Attributes) (*Valuation, error)
}

// ProviderError wraps a provider failure. Provider failures are never fatal
// to an analysis run; the adapter degrades the affected facts to
// confidence 0 and carries on.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("fact provider %s unavailable: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// IsProviderError checks if an error is a *ProviderError. Handlers use it to
// map degraded lookups to flags rather than failure responses.
func IsProviderError(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe)
}
