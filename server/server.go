package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Epistemic-Technology/research-library/internal/config"
	"github.com/Epistemic-Technology/research-library/internal/logger"
	"github.com/Epistemic-Technology/research-library/internal/operations"
	"github.com/Epistemic-Technology/research-library/internal/storage"
	"github.com/Epistemic-Technology/research-library/models"
	"github.com/Epistemic-Technology/research-library/resources"
	"github.com/Epistemic-Technology/research-library/tools"
)

const Version = "v0.1.0"

func CreateServer(lib *operations.Library, log logger.Logger) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{Name: "research-library", Version: Version}, nil)

	itemResourceHandler := resources.NewItemResourceHandler(lib.Store())

	// Register tools with library and logger dependencies
	mcp.AddTool(server, tools.LibraryIngestTool(), func(ctx context.Context, req *mcp.CallToolRequest, query tools.LibraryIngestQuery) (*mcp.CallToolResult, *tools.LibraryIngestResponse, error) {
		return tools.LibraryIngestToolHandler(ctx, req, query, lib, log)
	})

	mcp.AddTool(server, tools.LibraryAskTool(), func(ctx context.Context, req *mcp.CallToolRequest, query tools.LibraryAskQuery) (*mcp.CallToolResult, *models.AnswerResult, error) {
		return tools.LibraryAskToolHandler(ctx, req, query, lib, log)
	})

	mcp.AddTool(server, tools.LibraryCiteTool(), func(ctx context.Context, req *mcp.CallToolRequest, query tools.LibraryCiteQuery) (*mcp.CallToolResult, *models.CitationResult, error) {
		return tools.LibraryCiteToolHandler(ctx, req, query, lib, log)
	})

	mcp.AddTool(server, tools.LibraryItemsTool(), func(ctx context.Context, req *mcp.CallToolRequest, query tools.LibraryItemsQuery) (*mcp.CallToolResult, *tools.LibraryItemsResponse, error) {
		return tools.LibraryItemsToolHandler(ctx, req, query, lib, log)
	})

	mcp.AddTool(server, tools.LibraryItemDeleteTool(), func(ctx context.Context, req *mcp.CallToolRequest, query tools.LibraryItemDeleteQuery) (*mcp.CallToolResult, *tools.LibraryItemDeleteResponse, error) {
		return tools.LibraryItemDeleteToolHandler(ctx, req, query, lib, log)
	})

	mcp.AddTool(server, tools.LibrarySearchTool(), func(ctx context.Context, req *mcp.CallToolRequest, query tools.LibrarySearchQuery) (*mcp.CallToolResult, *tools.LibrarySearchResponse, error) {
		return tools.LibrarySearchToolHandler(ctx, req, query, lib, log)
	})

	mcp.AddTool(server, tools.LibraryVerifyTool(), func(ctx context.Context, req *mcp.CallToolRequest, query tools.LibraryVerifyQuery) (*mcp.CallToolResult, *tools.LibraryVerifyResponse, error) {
		return tools.LibraryVerifyToolHandler(ctx, req, query, lib, log)
	})

	mcp.AddTool(server, tools.PageLabelsGetTool(), func(ctx context.Context, req *mcp.CallToolRequest, query tools.PageLabelsGetQuery) (*mcp.CallToolResult, *operations.PageLabelsView, error) {
		return tools.PageLabelsGetToolHandler(ctx, req, query, lib, log)
	})

	mcp.AddTool(server, tools.PageLabelsUpdateTool(), func(ctx context.Context, req *mcp.CallToolRequest, query tools.PageLabelsUpdateQuery) (*mcp.CallToolResult, *models.AdminResult, error) {
		return tools.PageLabelsUpdateToolHandler(ctx, req, query, lib, log)
	})

	mcp.AddTool(server, tools.PageLabelsBulkRuleTool(), func(ctx context.Context, req *mcp.CallToolRequest, query tools.PageLabelsBulkRuleQuery) (*mcp.CallToolResult, *models.AdminResult, error) {
		return tools.PageLabelsBulkRuleToolHandler(ctx, req, query, lib, log)
	})

	mcp.AddTool(server, tools.PageLabelsAutodetectTool(), func(ctx context.Context, req *mcp.CallToolRequest, query tools.PageLabelsAutodetectQuery) (*mcp.CallToolResult, *models.AdminResult, error) {
		return tools.PageLabelsAutodetectToolHandler(ctx, req, query, lib, log)
	})

	mcp.AddTool(server, tools.ZoteroSearchTool(), func(ctx context.Context, req *mcp.CallToolRequest, query tools.ZoteroSearchQuery) (*mcp.CallToolResult, *tools.ZoteroSearchResponse, error) {
		return tools.ZoteroSearchToolHandler(ctx, req, query, lib, log)
	})

	mcp.AddTool(server, tools.ZoteroCollectionsTool(), func(ctx context.Context, req *mcp.CallToolRequest, query tools.ZoteroCollectionsQuery) (*mcp.CallToolResult, *tools.ZoteroCollectionsResponse, error) {
		return tools.ZoteroCollectionsToolHandler(ctx, req, query, lib, log)
	})

	// Index of every item's resources
	server.AddResource(&mcp.Resource{
		URI:         "library://items",
		Name:        "library-items",
		Description: "Resources available for every ingested item",
		MIMEType:    "application/json",
	}, func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		list, err := itemResourceHandler.ListResources(ctx)
		if err != nil {
			return nil, err
		}
		data, err := json.MarshalIndent(list, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to marshal resource list: %w", err)
		}
		return &mcp.ReadResourceResult{
			Contents: []*mcp.ResourceContents{{URI: req.Params.URI, MIMEType: "application/json", Text: string(data)}},
		}, nil
	})

	// Template for an item with its counts
	server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: "item://{itemId}",
		Name:        "library-item",
		Description: "Library item metadata with chunk and page label counts",
		MIMEType:    "application/json",
	}, func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		return itemResourceHandler.ReadResource(ctx, req.Params.URI)
	})

	// Template for chunks
	server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: "item://{itemId}/chunks",
		Name:        "library-item-chunks",
		Description: "All chunks of the item with PDF page spans and printed page labels",
		MIMEType:    "application/json",
	}, func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		return itemResourceHandler.ReadResource(ctx, req.Params.URI)
	})

	// Template for the page label map
	server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: "item://{itemId}/pages",
		Name:        "library-item-pages",
		Description: "Page label map of the item",
		MIMEType:    "application/json",
	}, func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		return itemResourceHandler.ReadResource(ctx, req.Params.URI)
	})

	// Template for individual page
	server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: "item://{itemId}/pages/{pdfPage}",
		Name:        "library-item-page",
		Description: "A single page by PDF page number (1-based) or printed label, with its text",
		MIMEType:    "application/json",
	}, func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		return itemResourceHandler.ReadResource(ctx, req.Params.URI)
	})

	return server
}

// HTTPHandler serves srv over the MCP streamable HTTP transport
func HTTPHandler(srv *mcp.Server) http.Handler {
	return mcp.NewStreamableHTTPHandler(func(_ *http.Request) *mcp.Server {
		return srv
	}, nil)
}

// OpenLibrary opens the SQLite store at cfg.DBPath and builds a library over it.
// The caller closes the returned store.
func OpenLibrary(cfg *config.Config, log logger.Logger) (*operations.Library, storage.Store, error) {
	store, err := initializeStorage(cfg.DBPath, log)
	if err != nil {
		return nil, nil, err
	}
	lib, err := operations.NewLibrary(store, cfg, log)
	if err != nil {
		store.Close()
		return nil, nil, err
	}
	return lib, store, nil
}

// initializeStorage creates and initializes the storage backend
func initializeStorage(dbPath string, log logger.Logger) (storage.Store, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	log.Info("Initializing SQLite database at: %s", dbPath)

	store, err := storage.NewSQLiteStore(dbPath, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create SQLite store: %w", err)
	}

	return store, nil
}
