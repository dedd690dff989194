package tools

import (
	"context"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Epistemic-Technology/research-library/internal/logger"
	"github.com/Epistemic-Technology/research-library/internal/operations"
	"github.com/Epistemic-Technology/research-library/models"
)

type LibrarySearchQuery struct {
	Query   string  `json:"query"` // SQLite FTS syntax: words, "phrases", OR, prefix*
	ItemIDs []int64 `json:"item_ids,omitempty"`
	Limit   int     `json:"limit,omitempty"` // Default 20
}

type LibrarySearchResponse struct {
	Hits  []models.SearchHit `json:"hits"`
	Count int                `json:"count"`
}

func LibrarySearchTool() *mcp.Tool {
	inputschema, err := jsonschema.For[LibrarySearchQuery](nil)
	if err != nil {
		panic(err)
	}
	return &mcp.Tool{
		Name:        "library-search",
		Description: "Full-text keyword search over the text of every ingested book. Returns matching passages with their item and PDF page range. Use this to find exact wording; use library-ask for questions.",
		InputSchema: inputschema,
	}
}

func LibrarySearchToolHandler(ctx context.Context, req *mcp.CallToolRequest, query LibrarySearchQuery, lib *operations.Library, log logger.Logger) (*mcp.CallToolResult, *LibrarySearchResponse, error) {
	log.Info("library-search tool called")

	limit := query.Limit
	if limit <= 0 {
		limit = 20
	}
	hits, err := lib.Search(ctx, query.Query, query.ItemIDs, limit)
	if err != nil {
		return nil, nil, err
	}
	if hits == nil {
		hits = []models.SearchHit{}
	}
	return nil, &LibrarySearchResponse{Hits: hits, Count: len(hits)}, nil
}
