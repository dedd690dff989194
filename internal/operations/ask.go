package operations

import (
	"context"
	"fmt"
	"strings"

	"github.com/Epistemic-Technology/research-library/internal/citations"
	"github.com/Epistemic-Technology/research-library/internal/llm"
	"github.com/Epistemic-Technology/research-library/internal/retrieval"
	"github.com/Epistemic-Technology/research-library/models"
)

// NotAnswerable is returned as the answer when retrieval is too weak to ground one
const NotAnswerable = "Not in library (retrieval too weak)."

// AskParams configures a grounded question
type AskParams struct {
	Question string
	// ItemIDs restricts retrieval to these items; empty means the whole library
	ItemIDs      []int64
	MaxChunks    int
	PerSourceCap int
	MinDistinct  int
	Provider     string
	Model        string
}

// Ask answers a question from the library with diversity-constrained retrieval
func (l *Library) Ask(ctx context.Context, params AskParams) (*models.AnswerResult, error) {
	question := strings.TrimSpace(params.Question)
	if question == "" {
		return nil, &InputError{Msg: "Question is required."}
	}

	embedder, err := l.Embedder()
	if err != nil {
		return nil, err
	}
	gen, err := l.Generator(params.Provider)
	if err != nil {
		return nil, err
	}

	qVec, err := embedder.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("failed to embed question: %w", err)
	}

	candidates, err := l.store.CandidateChunks(ctx, params.ItemIDs)
	if err != nil {
		return nil, err
	}

	opts := retrieval.Options{
		PerSourceCap:       firstPositive(params.PerSourceCap, l.cfg.Retrieval.PerSourceCap),
		MinDistinctSources: firstPositive(params.MinDistinct, l.cfg.Retrieval.MinDistinctSources),
		MaxTotal:           firstPositive(params.MaxChunks, l.cfg.Retrieval.MaxChunks),
	}
	selection := retrieval.Select(retrieval.Score(qVec, candidates), opts)
	l.log.Info("Selected %d chunks from %d sources out of %d candidates",
		len(selection), retrieval.DistinctSources(selection), len(candidates))

	result := &models.AnswerResult{
		Question: question,
		Sources:  citations.Sources(selection),
	}

	floor := l.cfg.Retrieval.AnswerFloor
	if floor == 0 {
		floor = retrieval.FloorQA
	}
	if !retrieval.Sufficient(selection, floor) {
		result.Answer = NotAnswerable
		result.Insufficient = true
		return result, nil
	}

	system, user := citations.BuildAnswerPrompt(question, selection)
	out, err := gen.Generate(ctx, llm.GenerateRequest{
		Model:       params.Model,
		System:      system,
		User:        user,
		Temperature: l.cfg.Generation.Temperature,
		MaxTokens:   l.cfg.Generation.AnswerMaxTokens,
	})
	if err != nil {
		return nil, err
	}

	result.Answer = strings.TrimSpace(out.Text)
	result.Model = out.Model
	return result, nil
}

// CiteParams configures footnoting a draft
type CiteParams struct {
	Draft     string
	ItemIDs   []int64
	MaxChunks int
	Provider  string
	Model     string
}

// Cite footnotes every paragraph of a draft from the library. Footnotes are
// numbered across the whole draft. A generation error aborts the run.
func (l *Library) Cite(ctx context.Context, params CiteParams) (*models.CitationResult, error) {
	paragraphs := citations.SplitParagraphs(params.Draft)
	if len(paragraphs) == 0 {
		return nil, &InputError{Msg: "Draft is required."}
	}

	embedder, err := l.Embedder()
	if err != nil {
		return nil, err
	}
	gen, err := l.Generator(params.Provider)
	if err != nil {
		return nil, err
	}

	// Candidates are loaded once for the whole draft
	candidates, err := l.store.CandidateChunks(ctx, params.ItemIDs)
	if err != nil {
		return nil, err
	}

	maxChunks := firstPositive(params.MaxChunks, l.cfg.Retrieval.MaxChunks)
	floor := l.cfg.Retrieval.CiteFloor
	if floor == 0 {
		floor = retrieval.FloorCite
	}

	asm := citations.NewAssembler()
	for i, para := range paragraphs {
		vec, err := embedder.Embed(ctx, para)
		if err != nil {
			return nil, fmt.Errorf("failed to embed paragraph %d: %w", i+1, err)
		}

		top := retrieval.TopK(retrieval.Score(vec, candidates), maxChunks)
		if !retrieval.Sufficient(top, floor) {
			asm.AddPlaceholder(para, citations.NoSuitableSource)
			continue
		}

		system, user := citations.BuildCitePrompt(para, top)
		out, err := gen.Generate(ctx, llm.GenerateRequest{
			Model:       params.Model,
			System:      system,
			User:        user,
			Temperature: l.cfg.Generation.Temperature,
			MaxTokens:   l.cfg.Generation.CiteMaxTokens,
			JSON:        true,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to cite paragraph %d: %w", i+1, err)
		}

		resp, err := citations.ParseCitationJSON(out.Text)
		if err != nil {
			l.log.Warn("Paragraph %d: %v", i+1, err)
			asm.AddPlaceholder(para, citations.ParseFailure(out.Text))
			continue
		}
		asm.AddCited(para, resp)
	}

	return asm.Result(), nil
}

func firstPositive(values ...int) int {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}
	return 0
}
