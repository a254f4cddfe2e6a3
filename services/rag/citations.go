// Copyright (C) 2026 Pathway Property Analytics (dev@pathwayprop.com.au)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package rag

import (
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/pathwayprop/pathway/services/documents"
)

var (
	answerLineRe     = regexp.MustCompile(`(?s)ANSWER:\s*(.*?)(?:\nCONFIDENCE:|\z)`)
	confidenceLineRe = regexp.MustCompile(`CONFIDENCE:\s*(HIGH|MEDIUM|LOW)`)
	sourceRefRe      = regexp.MustCompile(`\[Source (\d+)\]`)
)

// Stated self-confidence maps to a numeric prior; it is degraded further
// when the cited material itself is suspect.
var confidenceByLabel = map[string]float64{
	"HIGH":   0.9,
	"MEDIUM": 0.7,
	"LOW":    0.4,
}

const (
	defaultConfidence = 0.4
	// degradedSourceFactor discounts answers resting on split or
	// low-confidence OCR chunks.
	degradedSourceFactor = 0.8
)

// # Description
//
//	parseAnswer extracts the ANSWER and CONFIDENCE fields from the raw LLM
//	reply and resolves [Source N] references against the chunks that were
//	actually supplied. References outside 1..len(chunks) are dropped; a
//	reply that answers without any surviving citation is flagged Ambiguous
//	and floored to LOW confidence. Confidence is discounted once when any
//	cited chunk is a split part or came from a low-confidence page.
func parseAnswer(raw string, chunks []documents.ScoredChunk) *Answer {
	text := raw
	if m := answerLineRe.FindStringSubmatch(raw); m != nil {
		text = strings.TrimSpace(m[1])
	} else {
		text = strings.TrimSpace(text)
	}

	confidence := defaultConfidence
	if m := confidenceLineRe.FindStringSubmatch(raw); m != nil {
		confidence = confidenceByLabel[m[1]]
	} else {
		slog.Debug("LLM reply missing CONFIDENCE field, assuming LOW")
	}

	if strings.Contains(text, notFoundSentinel) {
		return &Answer{Text: notFoundSentinel, NotFound: true}
	}

	answer := &Answer{Text: text, Confidence: confidence}
	seen := make(map[int]bool)
	degraded := false
	for _, m := range sourceRefRe.FindAllStringSubmatch(text, -1) {
		n, err := strconv.Atoi(m[1])
		if err != nil || n < 1 || n > len(chunks) {
			slog.Warn("LLM cited a source that was not supplied", "reference", m[0], "sources", len(chunks))
			continue
		}
		if seen[n] {
			continue
		}
		seen[n] = true
		chunk := chunks[n-1]
		answer.Citations = append(answer.Citations, Citation{
			ChunkID:    chunk.ID,
			DocumentID: chunk.DocumentID,
			Section:    chunk.Section,
			Page:       chunk.PageNumber,
		})
		if chunk.Split || chunk.LowConfidence || chunk.Fallback {
			degraded = true
		}
	}

	if len(answer.Citations) == 0 {
		answer.Ambiguous = true
		answer.Confidence = confidenceByLabel["LOW"]
		return answer
	}
	if degraded {
		answer.Confidence *= degradedSourceFactor
	}
	return answer
}
