// Copyright (C) 2026 Pathway Property Analytics (dev@pathwayprop.com.au)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package documents

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"
)

// ChunkerConfig tunes structural chunking.
type ChunkerConfig struct {
	// MaxChunkSize is the byte length above which a structural unit is cut
	// into split parts at paragraph or sentence boundaries.
	MaxChunkSize int
	// ConfidenceFloor marks chunks from pages whose OCR confidence falls
	// below it as low_confidence.
	ConfidenceFloor float64
}

// DefaultChunkerConfig returns the production defaults.
func DefaultChunkerConfig() ChunkerConfig {
	return ChunkerConfig{
		MaxChunkSize:    2000,
		ConfidenceFloor: 0.5,
	}
}

// Chunker cuts normalized document text into structure-tagged chunks. It is
// stateless and safe for concurrent use.
type Chunker struct {
	cfg ChunkerConfig
}

// NewChunker builds a chunker, applying defaults for zero config fields.
func NewChunker(cfg ChunkerConfig) *Chunker {
	defaults := DefaultChunkerConfig()
	if cfg.MaxChunkSize <= 0 {
		cfg.MaxChunkSize = defaults.MaxChunkSize
	}
	if cfg.ConfidenceFloor <= 0 {
		cfg.ConfidenceFloor = defaults.ConfidenceFloor
	}
	return &Chunker{cfg: cfg}
}

// headerPattern pairs a structural tag with the line pattern that opens a
// unit of that kind. Order is priority: the first pattern matching at an
// offset names the tag.
type headerPattern struct {
	tag string
	re  *regexp.Regexp
}

var legalPatterns = []headerPattern{
	{TagSpecialCondition, regexp.MustCompile(`(?m)^Special Condition\s+\d+`)},
	{TagSchedule, regexp.MustCompile(`(?m)^SCHEDULE\s+\d+`)},
	{TagPart, regexp.MustCompile(`(?m)^PART\s+[A-Z0-9]+`)},
	{TagAnnexure, regexp.MustCompile(`(?m)^ANNEXURE\s+[A-Z]`)},
	{TagClause, regexp.MustCompile(`(?m)^\d+(?:\.\d+)*\.?\s+[A-Z]`)},
}

var strataPatterns = []headerPattern{
	{TagMeetingItem, regexp.MustCompile(`(?m)^(?:AGM|EGM|MINUTES|MOTION\s+\d+|ITEM\s+\d+|RESOLUTION(?:\s+\d+)?)`)},
}

var excessBlankLines = regexp.MustCompile(`\n{3,}`)

// NormalizePage canonicalizes OCR page text: CRLF and bare CR become LF,
// NUL bytes are dropped, runs of three or more newlines collapse to a
// paragraph break. Chunking operates on this normalized form, and chunk
// round-trips are exact against it.
func NormalizePage(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = strings.ReplaceAll(text, "\x00", "")
	return excessBlankLines.ReplaceAllString(text, "\n\n")
}

// normalizedDoc is the joined page text with enough indexing to map any
// byte offset back to its source page.
type normalizedDoc struct {
	text       string
	pageStarts []int
	pages      []PageText
}

// normalize joins the normalized pages with a paragraph break and records
// where each page begins.
func normalize(pages []PageText) normalizedDoc {
	var b strings.Builder
	doc := normalizedDoc{pages: pages}
	for i, page := range pages {
		if i > 0 {
			b.WriteString("\n\n")
		}
		doc.pageStarts = append(doc.pageStarts, b.Len())
		b.WriteString(NormalizePage(page.Text))
	}
	doc.text = b.String()
	return doc
}

// pageAt returns the index of the page containing the byte offset.
func (d *normalizedDoc) pageAt(offset int) int {
	idx := sort.Search(len(d.pageStarts), func(i int) bool {
		return d.pageStarts[i] > offset
	})
	if idx == 0 {
		return 0
	}
	return idx - 1
}

// # Description
//
//	Chunk cuts a document into retrievable chunks. Pages are normalized and
//	joined, then the pattern set for the document kind locates structural
//	unit boundaries (clauses, parts, schedules, special conditions and
//	annexures for legal documents; motions, items and resolutions for
//	strata minutes). Every unit becomes one chunk; units over MaxChunkSize
//	become ordered split parts cut at paragraph or sentence boundaries.
//	Text before the first boundary becomes a preamble chunk. When no
//	boundary matches at all, each page becomes a fallback chunk so nothing
//	is dropped. Concatenating the returned chunk texts in ordinal order
//	reproduces the normalized document text exactly.
//
// # Inputs
//
//	doc - Document with OCR pages. An empty document yields no chunks.
//
// # Outputs
//
//	[]Chunk - Ordered chunks with deterministic IDs; vectors unset.
func (c *Chunker) Chunk(doc Document) []Chunk {
	norm := normalize(doc.Pages)
	if norm.text == "" {
		return nil
	}

	boundaries := findBoundaries(norm.text, patternsFor(doc.Kind))
	if len(boundaries) == 0 {
		return c.fallbackChunks(doc, &norm)
	}

	var chunks []Chunk
	ordinal := 0
	if boundaries[0].offset > 0 {
		chunks = c.appendUnit(chunks, doc, &norm, unit{
			start: 0,
			end:   boundaries[0].offset,
			tag:   TagPreamble,
		}, &ordinal)
	}
	for i, b := range boundaries {
		end := len(norm.text)
		if i+1 < len(boundaries) {
			end = boundaries[i+1].offset
		}
		chunks = c.appendUnit(chunks, doc, &norm, unit{
			start: b.offset,
			end:   end,
			tag:   b.tag,
		}, &ordinal)
	}
	return chunks
}

// boundary is one structural unit start found in the document text.
type boundary struct {
	offset int
	tag    string
}

// unit is a half-open byte range of one structural unit.
type unit struct {
	start int
	end   int
	tag   string
}

func patternsFor(kind Kind) []headerPattern {
	if kind == KindStrataMinutes {
		return strataPatterns
	}
	return legalPatterns
}

// findBoundaries locates all unit starts, deduplicated by offset with
// pattern priority, sorted ascending.
func findBoundaries(text string, patterns []headerPattern) []boundary {
	seen := make(map[int]bool)
	var out []boundary
	for _, p := range patterns {
		for _, loc := range p.re.FindAllStringIndex(text, -1) {
			if !seen[loc[0]] {
				seen[loc[0]] = true
				out = append(out, boundary{offset: loc[0], tag: p.tag})
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].offset < out[j].offset })
	return out
}

// appendUnit emits the chunks of one structural unit, splitting when the
// unit exceeds the configured size.
func (c *Chunker) appendUnit(chunks []Chunk, doc Document, norm *normalizedDoc, u unit, ordinal *int) []Chunk {
	text := norm.text[u.start:u.end]
	section := ""
	if u.tag != TagPreamble {
		section = sectionLabel(text)
	}

	parts := splitBySize(text, c.cfg.MaxChunkSize)
	offset := u.start
	for _, part := range parts {
		page := norm.pages[norm.pageAt(offset)]
		chunks = append(chunks, Chunk{
			ID:            ChunkID(doc.DocumentID, *ordinal, part),
			DocumentID:    doc.DocumentID,
			PropertyID:    doc.PropertyID,
			Ordinal:       *ordinal,
			Text:          part,
			StructuralTag: u.tag,
			Section:       section,
			PageNumber:    page.PageNumber,
			Split:         len(parts) > 1,
			LowConfidence: page.Confidence < c.cfg.ConfidenceFloor,
		})
		*ordinal++
		offset += len(part)
	}
	return chunks
}

// fallbackChunks emits one chunk per page when no structural boundary
// matched anywhere in the document.
func (c *Chunker) fallbackChunks(doc Document, norm *normalizedDoc) []Chunk {
	var chunks []Chunk
	ordinal := 0
	for i := range norm.pages {
		// The separator between pages belongs to the preceding chunk, so
		// page spans run start-to-start and concatenate exactly.
		start := norm.pageStarts[i]
		end := len(norm.text)
		if i+1 < len(norm.pageStarts) {
			end = norm.pageStarts[i+1]
		}
		page := norm.pages[i]
		for _, part := range splitBySize(norm.text[start:end], c.cfg.MaxChunkSize) {
			chunks = append(chunks, Chunk{
				ID:            ChunkID(doc.DocumentID, ordinal, part),
				DocumentID:    doc.DocumentID,
				PropertyID:    doc.PropertyID,
				Ordinal:       ordinal,
				Text:          part,
				StructuralTag: TagPage,
				PageNumber:    page.PageNumber,
				Split:         end-start > c.cfg.MaxChunkSize,
				LowConfidence: page.Confidence < c.cfg.ConfidenceFloor,
				Fallback:      true,
			})
			ordinal++
		}
	}
	return chunks
}

// sectionLabel is the first line of a unit, trimmed, used as the citation
// section reference.
func sectionLabel(text string) string {
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		text = text[:i]
	}
	return strings.TrimSpace(text)
}

// splitBySize cuts text into parts no longer than max bytes. Cuts land on
// the last paragraph break, sentence end, line break or space inside the
// window, falling back to a hard cut on a rune boundary. Parts concatenate
// back to the input exactly.
func splitBySize(text string, max int) []string {
	if len(text) <= max {
		return []string{text}
	}
	var parts []string
	for len(text) > max {
		cut := lastSplitPoint(text[:max])
		if cut <= 0 {
			cut = max
			for cut > 0 && !utf8.RuneStart(text[cut]) {
				cut--
			}
			if cut == 0 {
				cut = max
			}
		}
		parts = append(parts, text[:cut])
		text = text[cut:]
	}
	if len(text) > 0 {
		parts = append(parts, text)
	}
	return parts
}

func lastSplitPoint(window string) int {
	if i := strings.LastIndex(window, "\n\n"); i > 0 {
		return i + 2
	}
	if i := strings.LastIndex(window, ". "); i > 0 {
		return i + 2
	}
	if i := strings.LastIndex(window, "\n"); i > 0 {
		return i + 1
	}
	if i := strings.LastIndex(window, " "); i > 0 {
		return i + 1
	}
	return -1
}
