// Copyright (C) 2026 Pathway Property Analytics (dev@pathwayprop.com.au)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package rag

import (
	"fmt"
	"strings"

	"github.com/pathwayprop/pathway/services/documents"
)

// notFoundSentinel is the exact phrase the model must use when the
// documents do not answer the question. Parsing keys off it.
const notFoundSentinel = "NOT FOUND"

// buildPrompt renders the conveyancer instructions with numbered source
// blocks. Source numbering is 1-based and matches the [Source N] citation
// contract parsed out of the reply.
func buildPrompt(question string, chunks []documents.ScoredChunk) string {
	var b strings.Builder
	b.WriteString("You are an experienced Australian conveyancer reviewing property documents.\n")
	b.WriteString("Answer the question using ONLY the numbered sources below.\n")
	b.WriteString("Cite every claim with the source number in the form [Source N].\n")
	b.WriteString("If the sources do not contain the answer, reply with exactly \"")
	b.WriteString(notFoundSentinel)
	b.WriteString("\".\nDo not speculate and do not use outside knowledge.\n\n")

	for i, chunk := range chunks {
		b.WriteString(fmt.Sprintf("[Source %d]", i+1))
		if chunk.Section != "" {
			b.WriteString(" " + chunk.Section)
		}
		b.WriteString(fmt.Sprintf(" (page %d)\n", chunk.PageNumber))
		b.WriteString(chunk.Text)
		b.WriteString("\n\n")
	}

	b.WriteString("Question: ")
	b.WriteString(question)
	b.WriteString("\n\nReply in this format:\nANSWER: <your answer with [Source N] citations>\nCONFIDENCE: <HIGH, MEDIUM or LOW>\n")
	return b.String()
}
