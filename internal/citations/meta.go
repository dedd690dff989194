// Package citations formats retrieved chunks for prompting and assembles
// per-paragraph footnotes and a bibliography from generator output.
package citations

import (
	"fmt"
	"strconv"

	"github.com/Epistemic-Technology/research-library/models"
)

// PageLabels returns the printed start and end labels of a chunk. Resolved
// display labels are used when present, else physical page plus the item offset.
func PageLabels(c models.ScoredChunk) (string, string) {
	start := strconv.Itoa(c.Chunk.PageStart + c.DisplayOffset)
	end := strconv.Itoa(c.Chunk.PageEnd + c.DisplayOffset)
	if l := c.Chunk.DisplayStartLabel; l != nil && *l != "" {
		start = *l
	}
	if l := c.Chunk.DisplayEndLabel; l != nil && *l != "" {
		end = *l
	}
	return start, end
}

// FormatMeta renders "Title (Author, Year) p.S–E", with "n.d." for a missing
// year and an optional "[source_id=N]" suffix
func FormatMeta(c models.ScoredChunk, withSourceID bool) string {
	author := ""
	if c.Author != "" {
		author = c.Author + ", "
	}
	year := "n.d."
	if c.Year != 0 {
		year = strconv.Itoa(c.Year)
	}
	start, end := PageLabels(c)
	meta := fmt.Sprintf("%s (%s%s) p.%s–%s", c.Title, author, year, start, end)
	if withSourceID {
		meta += fmt.Sprintf(" [source_id=%d]", c.Chunk.ItemID)
	}
	return meta
}

// Sources lists the chunks handed to the generator, with their similarity
func Sources(selection []models.ScoredChunk) []models.SourceCitation {
	out := make([]models.SourceCitation, 0, len(selection))
	for _, c := range selection {
		out = append(out, models.SourceCitation{
			ItemID:     c.Chunk.ItemID,
			ChunkID:    c.Chunk.ID,
			Citation:   fmt.Sprintf("%s [sim=%.3f]", FormatMeta(c, false), c.Similarity),
			Similarity: c.Similarity,
		})
	}
	return out
}
