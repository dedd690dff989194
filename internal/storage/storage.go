package storage

import (
	"context"

	"github.com/Epistemic-Technology/research-library/models"
)

// Store defines the interface for persisting items, chunks and page label maps
type Store interface {
	// CreateItem inserts a new item and returns its ID
	CreateItem(ctx context.Context, item *models.Item) (int64, error)

	// GetItem retrieves an item by ID
	GetItem(ctx context.Context, itemID int64) (*models.Item, error)

	// FindItemByHash returns the item previously ingested from identical bytes
	FindItemByHash(ctx context.Context, contentHash string) (*models.Item, error)

	// ListItems returns all items with chunk and page map counts, newest first
	ListItems(ctx context.Context) ([]models.ItemSummary, error)

	// UpdateDisplayOffset changes the fallback page shift and recomputes chunk ranges
	UpdateDisplayOffset(ctx context.Context, itemID int64, offset int) error

	// DeleteItem removes an item together with its chunks and page map
	DeleteItem(ctx context.Context, itemID int64) error

	// InsertChunks stores one batch of chunks atomically, resolving display ranges
	// from the current page map
	InsertChunks(ctx context.Context, itemID int64, chunks []models.Chunk) (int, error)

	// GetChunks retrieves all chunks for an item ordered by page
	GetChunks(ctx context.Context, itemID int64) ([]models.Chunk, error)

	// CandidateChunks returns every embedded chunk with item metadata, optionally
	// restricted to the given item IDs
	CandidateChunks(ctx context.Context, itemIDs []int64) ([]models.ScoredChunk, error)

	// SampleChunks returns up to n random chunks of an item
	SampleChunks(ctx context.Context, itemID int64, n int) ([]models.Chunk, error)

	// TextForPage returns the text of the shortest chunk covering a physical page
	TextForPage(ctx context.Context, itemID int64, pdfPage int, limitChars int) (string, error)

	// MaxPage returns the highest physical page covered by an item's chunks
	MaxPage(ctx context.Context, itemID int64) (int, error)

	// SearchChunks runs a full-text query over chunk text and section titles
	SearchChunks(ctx context.Context, query string, itemIDs []int64, limit int) ([]models.SearchHit, error)

	// SeedPageMap inserts entries only for pages that have none
	SeedPageMap(ctx context.Context, entries []models.PageMapEntry) (int, error)

	// UpsertPageMap writes entries that supersede the existing ones for their page
	UpsertPageMap(ctx context.Context, entries []models.PageMapEntry) (int, error)

	// ApplyPageMap upserts entries and recomputes the item's display ranges atomically
	ApplyPageMap(ctx context.Context, itemID int64, entries []models.PageMapEntry) (int, error)

	// GetPageMap returns the full page map for an item ordered by page
	GetPageMap(ctx context.Context, itemID int64) ([]models.PageMapEntry, error)

	// GetPageMapPage returns one window of the page map and the total entry count
	GetPageMapPage(ctx context.Context, itemID int64, limit, offset int) ([]models.PageMapEntry, int, error)

	// MaxMappedPage returns the highest page present in the page map
	MaxMappedPage(ctx context.Context, itemID int64) (int, error)

	// RecomputeDisplayRanges refreshes the display fields of every chunk of an item
	RecomputeDisplayRanges(ctx context.Context, itemID int64) (int, error)

	// VerifySchema fails with a SchemaError naming the first missing table or column
	VerifySchema(ctx context.Context) error

	// Close closes the database connection
	Close() error
}
