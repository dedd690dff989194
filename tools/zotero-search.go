package tools

import (
	"context"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Epistemic-Technology/research-library/internal/logger"
	"github.com/Epistemic-Technology/research-library/internal/operations"
)

type ZoteroSearchQuery struct {
	Query      string   `json:"query,omitempty"`      // Quick search text (searches title, creator, year)
	ItemTypes  []string `json:"item_types,omitempty"` // Filter by type (default books and book sections)
	Collection string   `json:"collection,omitempty"` // Filter by collection key (see zotero-collections)
	Limit      int      `json:"limit,omitempty"`      // Max results (default 25)
}

type ZoteroSearchResponse struct {
	Items []operations.ZoteroSource `json:"items"`
	Count int                       `json:"count"`
}

func ZoteroSearchTool() *mcp.Tool {
	inputschema, err := jsonschema.For[ZoteroSearchQuery](nil)
	if err != nil {
		panic(err)
	}
	return &mcp.Tool{
		Name:        "zotero-search",
		Description: "Search a Zotero library for books that have a PDF or EPUB attachment. Pass an attachment key as zotero_id to library-ingest to add the book to the research library with its Zotero metadata.",
		InputSchema: inputschema,
	}
}

func ZoteroSearchToolHandler(ctx context.Context, req *mcp.CallToolRequest, query ZoteroSearchQuery, lib *operations.Library, log logger.Logger) (*mcp.CallToolResult, *ZoteroSearchResponse, error) {
	log.Info("zotero-search tool called")

	items, err := lib.SearchZotero(ctx, operations.ZoteroSearchParams{
		Query:      query.Query,
		ItemTypes:  query.ItemTypes,
		Collection: query.Collection,
		Limit:      query.Limit,
	})
	if err != nil {
		return nil, nil, err
	}
	if items == nil {
		items = []operations.ZoteroSource{}
	}
	return nil, &ZoteroSearchResponse{Items: items, Count: len(items)}, nil
}
