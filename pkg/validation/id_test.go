// Copyright (C) 2026 Pathway Property Analytics (dev@pathwayprop.com.au)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateResourceIDAcceptsCommonForms(t *testing.T) {
	valid := []string{
		"prop-123",
		"doc_2026.01",
		"A1",
		"x",
		"PROP-VIC-3000-0042",
	}
	for _, id := range valid {
		assert.NoError(t, ValidateResourceID(id), "id %q", id)
	}
}

func TestValidateResourceIDRejectsInjectionShapes(t *testing.T) {
	invalid := []string{
		"",
		"-leading-hyphen",
		"has space",
		"quote\"break",
		"semi;colon",
		"../traversal",
		"newline\nid",
		strings.Repeat("a", 65),
	}
	for _, id := range invalid {
		assert.Error(t, ValidateResourceID(id), "id %q", id)
	}
}

func TestSanitizeResourceIDTrimsWhitespace(t *testing.T) {
	got, err := SanitizeResourceID("  prop-9  ")
	require.NoError(t, err)
	assert.Equal(t, "prop-9", got)
}

func TestSanitizeResourceIDRejectsInnerWhitespace(t *testing.T) {
	_, err := SanitizeResourceID("prop 9")
	assert.Error(t, err)
}
