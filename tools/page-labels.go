package tools

import (
	"context"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Epistemic-Technology/research-library/internal/logger"
	"github.com/Epistemic-Technology/research-library/internal/operations"
	"github.com/Epistemic-Technology/research-library/internal/pagelabels"
	"github.com/Epistemic-Technology/research-library/models"
)

type PageLabelsGetQuery struct {
	ItemID int64 `json:"item_id"`
	Page   int   `json:"page,omitempty"` // Listing page, 50 PDF pages each (default 1)
}

func PageLabelsGetTool() *mcp.Tool {
	inputschema, err := jsonschema.For[PageLabelsGetQuery](nil)
	if err != nil {
		panic(err)
	}
	return &mcp.Tool{
		Name:        "page-labels-get",
		Description: "List the printed page label of each PDF page of an item, with the method that produced it and a snippet of the page text. An empty page map is seeded from the item's display offset first.",
		InputSchema: inputschema,
	}
}

func PageLabelsGetToolHandler(ctx context.Context, req *mcp.CallToolRequest, query PageLabelsGetQuery, lib *operations.Library, log logger.Logger) (*mcp.CallToolResult, *operations.PageLabelsView, error) {
	log.Info("page-labels-get tool called for item %d", query.ItemID)

	view, err := lib.PageLabels(ctx, query.ItemID, query.Page)
	if err != nil {
		return nil, nil, err
	}
	return nil, view, nil
}

type PageLabelsUpdateQuery struct {
	ItemID        int64  `json:"item_id"`
	PDFPage       int    `json:"pdf_page"`                 // Physical page, 1-based
	DisplayLabel  string `json:"display_label"`            // Printed label, e.g. "xii" or "37"
	DisplayNumber *int   `json:"display_number,omitempty"` // Parsed from an arabic label when omitted
}

func PageLabelsUpdateTool() *mcp.Tool {
	inputschema, err := jsonschema.For[PageLabelsUpdateQuery](nil)
	if err != nil {
		panic(err)
	}
	return &mcp.Tool{
		Name:        "page-labels-update",
		Description: "Set the printed label of a single PDF page. Manual labels always win over detected ones. Citation ranges of affected chunks are recomputed.",
		InputSchema: inputschema,
	}
}

func PageLabelsUpdateToolHandler(ctx context.Context, req *mcp.CallToolRequest, query PageLabelsUpdateQuery, lib *operations.Library, log logger.Logger) (*mcp.CallToolResult, *models.AdminResult, error) {
	log.Info("page-labels-update tool called for item %d page %d", query.ItemID, query.PDFPage)

	result, err := lib.UpdateOne(ctx, query.ItemID, query.PDFPage, query.DisplayLabel, query.DisplayNumber)
	if err != nil {
		return nil, nil, err
	}
	return nil, result, nil
}

type PageLabelsBulkRuleQuery struct {
	ItemID            int64  `json:"item_id"`
	RomanUntilPDF     int    `json:"roman_until_pdf"`
	RomanStartAt      int    `json:"roman_start_at,omitempty"` // Default 1
	RomanUpper        bool   `json:"roman_upper,omitempty"`
	RomanPrefix       string `json:"roman_prefix,omitempty"`
	ArabicStartPDF    int    `json:"arabic_start_pdf,omitempty"`
	ArabicStartNumber int    `json:"arabic_start_number,omitempty"`
	ArabicPrefix      string `json:"arabic_prefix,omitempty"`
}

func (q PageLabelsBulkRuleQuery) rule() pagelabels.RuleParams {
	return pagelabels.RuleParams{
		RomanUntilPDF:     q.RomanUntilPDF,
		RomanStartAt:      q.RomanStartAt,
		RomanUpper:        q.RomanUpper,
		RomanPrefix:       q.RomanPrefix,
		ArabicStartPDF:    q.ArabicStartPDF,
		ArabicStartNumber: q.ArabicStartNumber,
		ArabicPrefix:      q.ArabicPrefix,
	}
}

func PageLabelsBulkRuleTool() *mcp.Tool {
	inputschema, err := jsonschema.For[PageLabelsBulkRuleQuery](nil)
	if err != nil {
		panic(err)
	}
	return &mcp.Tool{
		Name:        "page-labels-bulk-rule",
		Description: "Label a whole item with roman front matter followed by arabic body pages. roman_until_pdf is the last PDF page numbered in roman (0 for none); arabic numbering starts at arabic_start_pdf (default the next page) with arabic_start_number (default 1).",
		InputSchema: inputschema,
	}
}

func PageLabelsBulkRuleToolHandler(ctx context.Context, req *mcp.CallToolRequest, query PageLabelsBulkRuleQuery, lib *operations.Library, log logger.Logger) (*mcp.CallToolResult, *models.AdminResult, error) {
	log.Info("page-labels-bulk-rule tool called for item %d", query.ItemID)

	result, err := lib.BulkRule(ctx, query.ItemID, query.rule())
	if err != nil {
		return nil, nil, err
	}
	return nil, result, nil
}

type PageLabelsAutodetectQuery struct {
	ItemID int64 `json:"item_id"`
	// Apply writes the detected split; otherwise detection is only reported
	Apply bool `json:"apply,omitempty"`
}

func PageLabelsAutodetectTool() *mcp.Tool {
	inputschema, err := jsonschema.For[PageLabelsAutodetectQuery](nil)
	if err != nil {
		panic(err)
	}
	return &mcp.Tool{
		Name:        "page-labels-autodetect",
		Description: "Look for the boundary between roman front matter and the arabic-numbered body in an item's first pages. Reports the detected split; set apply to true to write it. Manual and rule labels are never overwritten.",
		InputSchema: inputschema,
	}
}

func PageLabelsAutodetectToolHandler(ctx context.Context, req *mcp.CallToolRequest, query PageLabelsAutodetectQuery, lib *operations.Library, log logger.Logger) (*mcp.CallToolResult, *models.AdminResult, error) {
	log.Info("page-labels-autodetect tool called for item %d (apply=%t)", query.ItemID, query.Apply)

	result, err := lib.Autodetect(ctx, query.ItemID, query.Apply)
	if err != nil {
		return nil, nil, err
	}
	return nil, result, nil
}
