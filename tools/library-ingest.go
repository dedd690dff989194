package tools

import (
	"context"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Epistemic-Technology/research-library/internal/logger"
	"github.com/Epistemic-Technology/research-library/internal/operations"
	"github.com/Epistemic-Technology/research-library/internal/storage"
	"github.com/Epistemic-Technology/research-library/models"
)

type LibraryIngestQuery struct {
	Path          string `json:"path,omitempty"`      // Local PDF or EPUB file
	ZoteroID      string `json:"zotero_id,omitempty"` // Zotero attachment key (see zotero-search)
	URL           string `json:"url,omitempty"`
	RawData       []byte `json:"raw_data,omitempty"`
	Title         string `json:"title,omitempty"`
	Author        string `json:"author,omitempty"`
	Year          int    `json:"year,omitempty"`
	DisplayOffset int    `json:"display_offset,omitempty"` // Printed page = PDF page + offset, used when no labels are found
	Force         bool   `json:"force,omitempty"`          // Re-ingest even if the same file is already in the library
}

type LibraryIngestResponse struct {
	ItemID        int64                  `json:"item_id"`
	Pages         int                    `json:"pages"`
	Chunks        int                    `json:"chunks"`
	Embedded      int                    `json:"embedded"`
	LabelMethod   models.PageLabelMethod `json:"label_method,omitempty"`
	Duplicate     bool                   `json:"duplicate"`
	Log           []string               `json:"log"`
	ResourcePaths []string               `json:"resource_paths"`
}

func LibraryIngestTool() *mcp.Tool {
	inputschema, err := jsonschema.For[LibraryIngestQuery](nil)
	if err != nil {
		panic(err)
	}
	return &mcp.Tool{
		Name:        "library-ingest",
		Description: "Add a PDF or EPUB book to the research library. The file is split into page-aware chunks, embedded, and its printed page labels are resolved so answers and citations can point at real page numbers. Provide exactly one of path, zotero_id, url or raw_data. Title is taken from Zotero or the file name when omitted.",
		InputSchema: inputschema,
	}
}

func LibraryIngestToolHandler(ctx context.Context, req *mcp.CallToolRequest, query LibraryIngestQuery, lib *operations.Library, log logger.Logger) (*mcp.CallToolResult, *LibraryIngestResponse, error) {
	log.Info("library-ingest tool called")

	response := &LibraryIngestResponse{Log: []string{}}
	params := operations.IngestParams{
		Source: models.SourceInfo{
			Path:     query.Path,
			ZoteroID: query.ZoteroID,
			URL:      query.URL,
		},
		Data:          query.RawData,
		Filename:      query.Path,
		Title:         query.Title,
		Author:        query.Author,
		Year:          query.Year,
		DisplayOffset: query.DisplayOffset,
		Force:         query.Force,
		Progress: func(line string) {
			response.Log = append(response.Log, line)
		},
	}

	result, err := lib.Ingest(ctx, params)
	if result != nil {
		response.ItemID = result.ItemID
		response.Pages = result.Pages
		response.Chunks = result.Chunks
		response.Embedded = result.Embedded
		response.LabelMethod = result.LabelMethod
		response.Duplicate = result.Duplicate
		response.ResourcePaths = storage.CalculateResourcePaths(result.ItemID, result.Pages)
	}
	if err != nil {
		log.Error("library-ingest tool failed: %v", err)
		if result != nil && result.ItemID != 0 {
			return nil, nil, fmt.Errorf("ingest of item %d stopped after %d of %d chunks: %w", result.ItemID, result.Embedded, result.Chunks, err)
		}
		return nil, nil, err
	}

	return nil, response, nil
}
