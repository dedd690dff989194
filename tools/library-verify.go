package tools

import (
	"context"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Epistemic-Technology/research-library/internal/logger"
	"github.com/Epistemic-Technology/research-library/internal/operations"
	"github.com/Epistemic-Technology/research-library/models"
)

type LibraryVerifyQuery struct {
	ItemID  int64  `json:"item_id"`
	N       int    `json:"n,omitempty"`        // Number of random chunks (default 5)
	PDFPath string `json:"pdf_path,omitempty"` // Source PDF to compare against; defaults to the ingested path
}

type LibraryVerifyResponse struct {
	ItemID  int64                 `json:"item_id"`
	Samples []models.VerifySample `json:"samples"`
}

func LibraryVerifyTool() *mcp.Tool {
	inputschema, err := jsonschema.For[LibraryVerifyQuery](nil)
	if err != nil {
		panic(err)
	}
	return &mcp.Tool{
		Name:        "library-verify",
		Description: "Spot-check an item's page mapping. Samples random chunks and shows each one's PDF pages, offset pages and resolved printed labels next to the text extracted from the same PDF page.",
		InputSchema: inputschema,
	}
}

func LibraryVerifyToolHandler(ctx context.Context, req *mcp.CallToolRequest, query LibraryVerifyQuery, lib *operations.Library, log logger.Logger) (*mcp.CallToolResult, *LibraryVerifyResponse, error) {
	log.Info("library-verify tool called for item %d", query.ItemID)

	samples, err := lib.Verify(ctx, operations.VerifyParams{ItemID: query.ItemID, N: query.N, PDFPath: query.PDFPath})
	if err != nil {
		return nil, nil, err
	}
	return nil, &LibraryVerifyResponse{ItemID: query.ItemID, Samples: samples}, nil
}
