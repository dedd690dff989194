package tools

import (
	"context"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Epistemic-Technology/research-library/internal/logger"
	"github.com/Epistemic-Technology/research-library/internal/operations"
	"github.com/Epistemic-Technology/research-library/models"
)

type LibraryCiteQuery struct {
	Draft     string  `json:"draft"` // Paragraphs separated by blank lines
	ItemIDs   []int64 `json:"item_ids,omitempty"`
	MaxChunks int     `json:"max_chunks,omitempty"` // Candidate passages per paragraph (default 8)
	Provider  string  `json:"provider,omitempty"`
	Model     string  `json:"model,omitempty"`
}

func LibraryCiteTool() *mcp.Tool {
	inputschema, err := jsonschema.For[LibraryCiteQuery](nil)
	if err != nil {
		panic(err)
	}
	return &mcp.Tool{
		Name:        "library-cite",
		Description: "Add Chicago-style footnotes and a bibliography to a draft, citing books in the research library. Each paragraph is matched against the library separately; paragraphs with no supporting passage get a placeholder note rather than an invented citation.",
		InputSchema: inputschema,
	}
}

func LibraryCiteToolHandler(ctx context.Context, req *mcp.CallToolRequest, query LibraryCiteQuery, lib *operations.Library, log logger.Logger) (*mcp.CallToolResult, *models.CitationResult, error) {
	log.Info("library-cite tool called")

	result, err := lib.Cite(ctx, operations.CiteParams{
		Draft:     query.Draft,
		ItemIDs:   query.ItemIDs,
		MaxChunks: query.MaxChunks,
		Provider:  query.Provider,
		Model:     query.Model,
	})
	if err != nil {
		log.Error("library-cite tool failed: %v", err)
		return nil, nil, err
	}
	return nil, result, nil
}
