// Package chunker groups page texts into token-budgeted chunks that remember
// the physical page span they came from.
package chunker

import (
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/Epistemic-Technology/research-library/models"
)

const (
	DefaultTargetTokens   = 1000
	DefaultOversizeTokens = 1600
	DefaultResplitTokens  = 1000
)

// Options controls chunk sizing. Zero values take the defaults.
type Options struct {
	// TargetTokens is the budget for page accumulation
	TargetTokens int
	// OversizeTokens is the size above which a chunk is re-split on paragraphs
	OversizeTokens int
	// ResplitTokens is the budget for paragraph accumulation when re-splitting
	ResplitTokens int
}

func (o Options) withDefaults() Options {
	if o.TargetTokens <= 0 {
		o.TargetTokens = DefaultTargetTokens
	}
	if o.OversizeTokens <= 0 {
		o.OversizeTokens = DefaultOversizeTokens
	}
	if o.ResplitTokens <= 0 {
		o.ResplitTokens = DefaultResplitTokens
	}
	return o
}

// ApproxTokens estimates tokens as 1.3 per whitespace-separated word, minimum one word
func ApproxTokens(s string) int {
	words := max(1, len(strings.Fields(s)))
	return int(math.Round(float64(words) * 1.3))
}

// InferSection returns the first trimmed line longer than three characters,
// cut to 80 characters, or nil
func InferSection(text string) *string {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		runes := []rune(line)
		if len(runes) > 3 {
			if len(runes) > 80 {
				line = string(runes[:80])
			}
			return &line
		}
	}
	return nil
}

// Build chunks pages with the default sizes and the given target
func Build(pages map[int]string, targetTokens int) []models.Chunk {
	return BuildWithOptions(pages, Options{TargetTokens: targetTokens})
}

// BuildWithOptions accumulates non-blank pages in ascending page order,
// flushing before a page would push the accumulator over the target. Chunks
// that still exceed the oversize limit are re-split on paragraph boundaries
// and keep their parent's page span.
func BuildWithOptions(pages map[int]string, opts Options) []models.Chunk {
	opts = opts.withDefaults()

	pageNums := make([]int, 0, len(pages))
	for p := range pages {
		pageNums = append(pageNums, p)
	}
	sort.Ints(pageNums)

	var (
		chunks    []models.Chunk
		cur       string
		startPage int
		lastPage  int
	)
	for _, p := range pageNums {
		text := strings.TrimSpace(pages[p])
		if text == "" {
			continue
		}
		try := text
		if cur != "" {
			try = cur + "\n\n" + text
		}
		if cur != "" && ApproxTokens(try) > opts.TargetTokens {
			chunks = append(chunks, newChunk(cur, startPage, lastPage))
			cur, startPage, lastPage = text, p, p
			continue
		}
		if cur == "" {
			startPage = p
		}
		cur, lastPage = try, p
	}
	if cur != "" {
		chunks = append(chunks, newChunk(cur, startPage, lastPage))
	}

	refined := make([]models.Chunk, 0, len(chunks))
	for _, c := range chunks {
		if c.TokenCount <= opts.OversizeTokens {
			refined = append(refined, c)
			continue
		}
		refined = append(refined, resplit(c, opts.ResplitTokens)...)
	}
	return refined
}

var paragraphBreak = regexp.MustCompile(`\n{2,}`)

func resplit(c models.Chunk, budget int) []models.Chunk {
	var out []models.Chunk
	acc := ""
	for _, para := range paragraphBreak.Split(c.Text, -1) {
		if strings.TrimSpace(para) == "" {
			continue
		}
		try := para
		if acc != "" {
			try = acc + "\n\n" + para
		}
		if acc != "" && ApproxTokens(try) > budget {
			out = append(out, newChunk(acc, c.PageStart, c.PageEnd))
			acc = para
			continue
		}
		acc = try
	}
	if acc != "" {
		out = append(out, newChunk(acc, c.PageStart, c.PageEnd))
	}
	return out
}

func newChunk(text string, pageStart, pageEnd int) models.Chunk {
	return models.Chunk{
		Section:    InferSection(text),
		PageStart:  pageStart,
		PageEnd:    pageEnd,
		Text:       text,
		TokenCount: ApproxTokens(text),
	}
}
