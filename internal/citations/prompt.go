package citations

import (
	"fmt"
	"strings"

	"github.com/Epistemic-Technology/research-library/models"
)

// NotInLibrary is the exact reply the answer prompt asks for when the context
// cannot answer the question
const NotInLibrary = "Not in library"

const answerSystemPrompt = "You are a research assistant. Answer ONLY using the provided context. " +
	"If not answerable, reply exactly: " + NotInLibrary + ". " +
	"Cite every factual claim with numbered footnotes in Oxford style, using the page ranges given in the context metadata. " +
	"Start with 3–5 bullet points, then details."

const citeSystemPrompt = "You are an academic assistant for a historian. " +
	"Match the paragraph with supporting sources ONLY from the provided context. " +
	"Return Oxford-style footnotes and bibliography entries using ONLY sources present in context. " +
	"Use exact page ranges from context metadata. " +
	"Do NOT invent sources, authors, years, publishers, or page numbers. " +
	"If publisher/place is unknown, omit it rather than guessing. " +
	"Output STRICT JSON (no extra text) with this schema:\n" +
	`{"footnotes": [{"source_id": <item_id>, "text": "Oxford footnote text"}], ` +
	`"bibliography": [{"source_id": <item_id>, "text": "Oxford bibliography entry"}]}`

func writeContext(b *strings.Builder, selection []models.ScoredChunk, withSourceID bool) {
	for i, c := range selection {
		fmt.Fprintf(b, "\n[CTX %d] %s\n%s\n", i, FormatMeta(c, withSourceID), c.Chunk.Text)
	}
}

// BuildAnswerPrompt returns the system and user messages for a direct answer
func BuildAnswerPrompt(question string, selection []models.ScoredChunk) (string, string) {
	var b strings.Builder
	b.WriteString("Question: ")
	b.WriteString(question)
	b.WriteString("\n\nContext:\n")
	writeContext(&b, selection, false)
	return answerSystemPrompt, b.String()
}

// BuildCitePrompt returns the system and user messages asking for JSON
// footnotes and bibliography entries for one paragraph
func BuildCitePrompt(paragraph string, selection []models.ScoredChunk) (string, string) {
	var b strings.Builder
	b.WriteString("Paragraph:\n")
	b.WriteString(paragraph)
	b.WriteString("\n\nContext:\n")
	writeContext(&b, selection, true)
	return citeSystemPrompt, b.String()
}
