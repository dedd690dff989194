package tools

import (
	"context"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Epistemic-Technology/research-library/internal/logger"
	"github.com/Epistemic-Technology/research-library/internal/operations"
	"github.com/Epistemic-Technology/research-library/models"
)

type LibraryItemsQuery struct{}

type LibraryItemsResponse struct {
	Items []models.ItemSummary `json:"items"`
	Count int                  `json:"count"`
}

func LibraryItemsTool() *mcp.Tool {
	inputschema, err := jsonschema.For[LibraryItemsQuery](nil)
	if err != nil {
		panic(err)
	}
	return &mcp.Tool{
		Name:        "library-items",
		Description: "List every item in the research library with its chunk and page label counts. Item IDs returned here are used by the other library and page-labels tools.",
		InputSchema: inputschema,
	}
}

func LibraryItemsToolHandler(ctx context.Context, req *mcp.CallToolRequest, query LibraryItemsQuery, lib *operations.Library, log logger.Logger) (*mcp.CallToolResult, *LibraryItemsResponse, error) {
	log.Info("library-items tool called")

	items, err := lib.ListItems(ctx)
	if err != nil {
		return nil, nil, err
	}
	if items == nil {
		items = []models.ItemSummary{}
	}
	return nil, &LibraryItemsResponse{Items: items, Count: len(items)}, nil
}

type LibraryItemDeleteQuery struct {
	ItemID int64 `json:"item_id"`
}

type LibraryItemDeleteResponse struct {
	ItemID  int64  `json:"item_id"`
	Message string `json:"message"`
}

func LibraryItemDeleteTool() *mcp.Tool {
	inputschema, err := jsonschema.For[LibraryItemDeleteQuery](nil)
	if err != nil {
		panic(err)
	}
	return &mcp.Tool{
		Name:        "library-item-delete",
		Description: "Delete an item from the research library together with its chunks and page labels.",
		InputSchema: inputschema,
	}
}

func LibraryItemDeleteToolHandler(ctx context.Context, req *mcp.CallToolRequest, query LibraryItemDeleteQuery, lib *operations.Library, log logger.Logger) (*mcp.CallToolResult, *LibraryItemDeleteResponse, error) {
	log.Info("library-item-delete tool called for item %d", query.ItemID)

	if err := lib.DeleteItem(ctx, query.ItemID); err != nil {
		return nil, nil, err
	}
	return nil, &LibraryItemDeleteResponse{
		ItemID:  query.ItemID,
		Message: fmt.Sprintf("Deleted item %d.", query.ItemID),
	}, nil
}
