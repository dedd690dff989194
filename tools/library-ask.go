package tools

import (
	"context"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Epistemic-Technology/research-library/internal/logger"
	"github.com/Epistemic-Technology/research-library/internal/operations"
	"github.com/Epistemic-Technology/research-library/models"
)

type LibraryAskQuery struct {
	Question     string  `json:"question"`
	ItemIDs      []int64 `json:"item_ids,omitempty"`       // Restrict retrieval to these items
	MaxChunks    int     `json:"max_chunks,omitempty"`     // Context passages handed to the model (default 8)
	PerSourceCap int     `json:"per_source_cap,omitempty"` // Max passages from one item (default 3)
	MinDistinct  int     `json:"min_distinct,omitempty"`   // Items to draw from before filling (default 3)
	Provider     string  `json:"provider,omitempty"`       // "claude" or "openai"
	Model        string  `json:"model,omitempty"`
}

func LibraryAskTool() *mcp.Tool {
	inputschema, err := jsonschema.For[LibraryAskQuery](nil)
	if err != nil {
		panic(err)
	}
	return &mcp.Tool{
		Name:        "library-ask",
		Description: "Answer a question using only passages retrieved from the research library. Retrieval spreads across several books before taking more passages from any one. If no passage is similar enough the tool says so instead of answering. The answer is Markdown with footnotes citing printed page numbers.",
		InputSchema: inputschema,
	}
}

func LibraryAskToolHandler(ctx context.Context, req *mcp.CallToolRequest, query LibraryAskQuery, lib *operations.Library, log logger.Logger) (*mcp.CallToolResult, *models.AnswerResult, error) {
	log.Info("library-ask tool called")

	result, err := lib.Ask(ctx, operations.AskParams{
		Question:     query.Question,
		ItemIDs:      query.ItemIDs,
		MaxChunks:    query.MaxChunks,
		PerSourceCap: query.PerSourceCap,
		MinDistinct:  query.MinDistinct,
		Provider:     query.Provider,
		Model:        query.Model,
	})
	if err != nil {
		log.Error("library-ask tool failed: %v", err)
		return nil, nil, err
	}
	return nil, result, nil
}
