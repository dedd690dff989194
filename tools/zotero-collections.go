package tools

import (
	"context"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Epistemic-Technology/research-library/internal/logger"
	"github.com/Epistemic-Technology/research-library/internal/operations"
)

type ZoteroCollectionsQuery struct{}

type ZoteroCollectionsResponse struct {
	Collections []operations.ZoteroCollection `json:"collections"`
	Count       int                           `json:"count"`
}

func ZoteroCollectionsTool() *mcp.Tool {
	inputschema, err := jsonschema.For[ZoteroCollectionsQuery](nil)
	if err != nil {
		panic(err)
	}
	return &mcp.Tool{
		Name:        "zotero-collections",
		Description: "List the collections of a Zotero library with their keys and parents. Use a key as the collection filter of zotero-search.",
		InputSchema: inputschema,
	}
}

func ZoteroCollectionsToolHandler(ctx context.Context, req *mcp.CallToolRequest, query ZoteroCollectionsQuery, lib *operations.Library, log logger.Logger) (*mcp.CallToolResult, *ZoteroCollectionsResponse, error) {
	log.Info("zotero-collections tool called")

	collections, err := lib.ZoteroCollections(ctx)
	if err != nil {
		return nil, nil, err
	}
	if collections == nil {
		collections = []operations.ZoteroCollection{}
	}
	return nil, &ZoteroCollectionsResponse{Collections: collections, Count: len(collections)}, nil
}
