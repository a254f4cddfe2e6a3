// Copyright (C) 2026 Pathway Property Analytics (dev@pathwayprop.com.au)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package rulesets embeds the shipped gatekeeper rule files so the binary
// screens sensibly with no rule file on disk. Operators override with
// PATHWAY_RULES_PATH.
package rulesets

import _ "embed"

// VicDefault is the default Victorian screening rule set.
//
//go:embed vic_default.yaml
var VicDefault []byte
