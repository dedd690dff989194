// Package retrieval ranks stored chunks against a query vector and selects a
// context window that balances relevance against source diversity.
package retrieval

import (
	"math"
	"sort"

	"github.com/Epistemic-Technology/research-library/models"
)

const (
	// FloorQA is the minimum best similarity for question answering
	FloorQA = 0.25
	// FloorCite is the minimum best similarity for citing a paragraph
	FloorCite = 0.20

	DefaultPerSourceCap       = 3
	DefaultMinDistinctSources = 3
	DefaultMaxTotal           = 8
)

// Options bounds a diversity selection
type Options struct {
	PerSourceCap       int
	MinDistinctSources int
	MaxTotal           int
}

// DefaultOptions returns the question answering defaults
func DefaultOptions() Options {
	return Options{
		PerSourceCap:       DefaultPerSourceCap,
		MinDistinctSources: DefaultMinDistinctSources,
		MaxTotal:           DefaultMaxTotal,
	}
}

func (o Options) withDefaults() Options {
	if o.PerSourceCap <= 0 {
		o.PerSourceCap = DefaultPerSourceCap
	}
	if o.MinDistinctSources <= 0 {
		o.MinDistinctSources = DefaultMinDistinctSources
	}
	if o.MaxTotal <= 0 {
		o.MaxTotal = DefaultMaxTotal
	}
	return o
}

// Cosine computes cosine similarity over the shorter of the two vectors
func Cosine(a, b []float32) float64 {
	n := min(len(a), len(b))
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	return dot / (math.Sqrt(na)*math.Sqrt(nb) + 1e-8)
}

// Score sets the similarity of every candidate to query and returns them in
// descending similarity order. Ties keep their input order.
func Score(query []float32, candidates []models.ScoredChunk) []models.ScoredChunk {
	scored := make([]models.ScoredChunk, len(candidates))
	for i, c := range candidates {
		c.Similarity = Cosine(query, c.Chunk.Embedding)
		scored[i] = c
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Similarity > scored[j].Similarity
	})
	return scored
}

// TopK returns the first k of an already scored slice with no diversity
// constraint
func TopK(scored []models.ScoredChunk, k int) []models.ScoredChunk {
	if k <= 0 || k >= len(scored) {
		return scored
	}
	return scored[:k]
}

type ranked struct {
	chunk models.ScoredChunk
	rank  int
}

// Select picks a diverse context from scored, which must already be in
// descending similarity order (see Score):
//
//  1. each source keeps at most PerSourceCap of its best chunks
//  2. the best chunk of each of the top MinDistinctSources sources is taken
//  3. remaining slots up to MaxTotal are filled from the pooled remainder by
//     similarity
//
// The result is ordered by similarity, ties by input order.
func Select(scored []models.ScoredChunk, opts Options) []models.ScoredChunk {
	opts = opts.withDefaults()
	if len(scored) == 0 {
		return nil
	}

	// Groups in order of their best member
	var order []int64
	groups := make(map[int64][]ranked)
	for i, c := range scored {
		id := c.Chunk.ItemID
		g, seen := groups[id]
		if !seen {
			order = append(order, id)
		}
		if len(g) < opts.PerSourceCap {
			groups[id] = append(g, ranked{chunk: c, rank: i})
		}
	}

	seeds := min(opts.MinDistinctSources, len(order), opts.MaxTotal)
	selected := make([]ranked, 0, opts.MaxTotal)
	var pool []ranked
	for gi, id := range order {
		g := groups[id]
		if gi < seeds {
			selected = append(selected, g[0])
			pool = append(pool, g[1:]...)
		} else {
			pool = append(pool, g...)
		}
	}

	sort.Slice(pool, func(i, j int) bool { return pool[i].rank < pool[j].rank })
	for _, r := range pool {
		if len(selected) >= opts.MaxTotal {
			break
		}
		selected = append(selected, r)
	}

	sort.Slice(selected, func(i, j int) bool { return selected[i].rank < selected[j].rank })
	out := make([]models.ScoredChunk, len(selected))
	for i, r := range selected {
		out[i] = r.chunk
	}
	return out
}

// Sufficient reports whether the best similarity in selection reaches floor
func Sufficient(selection []models.ScoredChunk, floor float64) bool {
	if len(selection) == 0 {
		return false
	}
	best := selection[0].Similarity
	for _, c := range selection[1:] {
		best = math.Max(best, c.Similarity)
	}
	return best >= floor
}

// DistinctSources counts the items represented in selection
func DistinctSources(selection []models.ScoredChunk) int {
	seen := make(map[int64]struct{}, len(selection))
	for _, c := range selection {
		seen[c.Chunk.ItemID] = struct{}{}
	}
	return len(seen)
}
