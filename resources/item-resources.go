package resources

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Epistemic-Technology/research-library/internal/storage"
	"github.com/Epistemic-Technology/research-library/models"
)

const pageTextChars = 8000

// ItemResourceHandler handles resource requests for ingested library items
type ItemResourceHandler struct {
	store storage.Store
}

// NewItemResourceHandler creates a new item resource handler
func NewItemResourceHandler(store storage.Store) *ItemResourceHandler {
	return &ItemResourceHandler{store: store}
}

// ListResources returns the top-level resources of every item
func (h *ItemResourceHandler) ListResources(ctx context.Context) ([]*mcp.Resource, error) {
	items, err := h.store.ListItems(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}

	resources := []*mcp.Resource{}
	for _, summary := range items {
		item := summary.Item
		resources = append(resources,
			&mcp.Resource{
				URI:         fmt.Sprintf("item://%d", item.ID),
				Name:        fmt.Sprintf("%s (Item)", item.Title),
				Description: fmt.Sprintf("Library item: %s", item.Title),
				MIMEType:    "application/json",
			},
			&mcp.Resource{
				URI:         fmt.Sprintf("item://%d/chunks", item.ID),
				Name:        fmt.Sprintf("%s (Chunks)", item.Title),
				Description: "All chunks with their PDF page spans and printed page labels",
				MIMEType:    "application/json",
			},
			&mcp.Resource{
				URI:         fmt.Sprintf("item://%d/pages", item.ID),
				Name:        fmt.Sprintf("%s (Page Labels)", item.Title),
				Description: "The page label map of the item",
				MIMEType:    "application/json",
			},
		)
	}
	return resources, nil
}

// ReadResource reads a specific resource by URI
func (h *ItemResourceHandler) ReadResource(ctx context.Context, uri string) (*mcp.ReadResourceResult, error) {
	// Parse URI: item://id/resource_type/optional_page
	if !strings.HasPrefix(uri, "item://") {
		return nil, fmt.Errorf("invalid URI scheme, expected item://")
	}

	parts := strings.Split(strings.TrimPrefix(uri, "item://"), "/")
	itemID, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || itemID <= 0 {
		return nil, fmt.Errorf("invalid item ID: %s", parts[0])
	}

	resourceType := ""
	if len(parts) > 1 {
		resourceType = parts[1]
	}

	var content any
	switch resourceType {
	case "":
		content, err = h.getItem(ctx, itemID)
	case "chunks":
		content, err = h.store.GetChunks(ctx, itemID)
	case "pages":
		if len(parts) > 2 {
			content, err = h.getPage(ctx, itemID, parts[2])
		} else {
			content, err = h.store.GetPageMap(ctx, itemID)
		}
	default:
		return nil, fmt.Errorf("unknown resource type: %s", resourceType)
	}
	if err != nil {
		return nil, err
	}

	data, err := json.MarshalIndent(content, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s: %w", uri, err)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{
			{
				URI:      uri,
				MIMEType: "application/json",
				Text:     string(data),
			},
		},
	}, nil
}

type itemDocument struct {
	Item          *models.Item `json:"item"`
	ChunkCount    int          `json:"chunk_count"`
	PageMapCount  int          `json:"page_map_count"`
	ResourcePaths []string     `json:"resource_paths"`
}

func (h *ItemResourceHandler) getItem(ctx context.Context, itemID int64) (*itemDocument, error) {
	item, err := h.store.GetItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	chunks, err := h.store.GetChunks(ctx, itemID)
	if err != nil {
		return nil, err
	}
	entries, err := h.store.GetPageMap(ctx, itemID)
	if err != nil {
		return nil, err
	}
	return &itemDocument{
		Item:          item,
		ChunkCount:    len(chunks),
		PageMapCount:  len(entries),
		ResourcePaths: storage.CalculateResourcePaths(itemID, item.PageCount),
	}, nil
}

type pageDocument struct {
	PDFPage       int                    `json:"pdf_page"`
	DisplayLabel  string                 `json:"display_label"`
	DisplayNumber *int                   `json:"display_number,omitempty"`
	Method        models.PageLabelMethod `json:"method,omitempty"`
	Text          string                 `json:"text"`
}

// getPage resolves a PDF page number, or failing that a printed label such as "xii"
func (h *ItemResourceHandler) getPage(ctx context.Context, itemID int64, identifier string) (*pageDocument, error) {
	item, err := h.store.GetItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	entries, err := h.store.GetPageMap(ctx, itemID)
	if err != nil {
		return nil, err
	}

	page := &pageDocument{}
	if n, err := strconv.Atoi(identifier); err == nil && n > 0 {
		page.PDFPage = n
		page.DisplayLabel = strconv.Itoa(n + item.DisplayOffset)
		for _, e := range entries {
			if e.PDFPage == n {
				page.DisplayLabel, page.DisplayNumber, page.Method = e.DisplayLabel, e.DisplayNumber, e.Method
				break
			}
		}
	} else {
		for _, e := range entries {
			if strings.EqualFold(e.DisplayLabel, identifier) {
				page.PDFPage, page.DisplayLabel, page.DisplayNumber, page.Method = e.PDFPage, e.DisplayLabel, e.DisplayNumber, e.Method
				break
			}
		}
		if page.PDFPage == 0 {
			return nil, fmt.Errorf("item %d has no page labelled %q: %w", itemID, identifier, storage.ErrNotFound)
		}
	}

	page.Text, err = h.store.TextForPage(ctx, itemID, page.PDFPage, pageTextChars)
	if err != nil {
		return nil, err
	}
	return page, nil
}
