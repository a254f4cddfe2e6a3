// Copyright (C) 2026 Pathway Property Analytics (dev@pathwayprop.com.au)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package validation provides input validation utilities for security-critical operations.
//
// This package contains validators for user-provided inputs that are used in
// database queries, file paths, or log output. Using these validators prevents
// injection attacks (GraphQL filter injection, path traversal, log forgery).
package validation

import (
	"fmt"
	"regexp"
	"strings"
)

// resourceIDPattern matches valid property and document identifiers.
// Allows: letters, digits, dots, hyphens, underscores. Must start with
// an alphanumeric. Max length: 64 characters.
var resourceIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._\-]{0,63}$`)

// ValidateResourceID validates a property or document identifier before it
// is interpolated into a vector store filter or used as a log field.
//
// Valid identifiers:
//   - 1-64 characters
//   - Letters A-Z a-z and digits 0-9
//   - Dots (.), hyphens (-), and underscores (_) after the first character
//
// Returns an error if the identifier is invalid.
//
// Example:
//
//	if err := validation.ValidateResourceID(propertyID); err != nil {
//	    return nil, fmt.Errorf("invalid property_id: %w", err)
//	}
//	// Safe to use in a store filter
func ValidateResourceID(id string) error {
	if id == "" {
		return fmt.Errorf("identifier cannot be empty")
	}

	if !resourceIDPattern.MatchString(id) {
		return fmt.Errorf("invalid identifier format: %q (must be 1-64 alphanumeric chars, dots, hyphens, or underscores)", id)
	}

	return nil
}

// SanitizeResourceID normalizes and validates an identifier.
// Returns the trimmed identifier if valid, or an error if invalid.
func SanitizeResourceID(id string) (string, error) {
	normalized := strings.TrimSpace(id)
	if err := ValidateResourceID(normalized); err != nil {
		return "", err
	}
	return normalized, nil
}
