package tools

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Epistemic-Technology/research-library/internal/config"
	"github.com/Epistemic-Technology/research-library/internal/llm"
	"github.com/Epistemic-Technology/research-library/internal/logger"
	"github.com/Epistemic-Technology/research-library/internal/operations"
	"github.com/Epistemic-Technology/research-library/internal/storage"
	"github.com/Epistemic-Technology/research-library/models"
)

type stubExtractor struct{}

func (stubExtractor) PageCount(ctx context.Context, path string) (int, error) { return 1, nil }

func (stubExtractor) PageText(ctx context.Context, path string, page int) (string, error) {
	return "stub page", nil
}

func newTestLibrary(t *testing.T) (*operations.Library, *storage.SQLiteStore) {
	t.Helper()
	store, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "library.sqlite"), logger.NewNoOpLogger())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	cfg := config.Default()
	cfg.Embedding.APIKey = ""
	cfg.Zotero = config.ZoteroConfig{}
	lib, err := operations.NewLibrary(store, cfg, logger.NewNoOpLogger(), operations.WithExtractor(stubExtractor{}))
	require.NoError(t, err)
	return lib, store
}

func TestToolDefinitions(t *testing.T) {
	defs := []struct {
		name string
		tool func() string
	}{
		{"library-ingest", func() string { return LibraryIngestTool().Name }},
		{"library-ask", func() string { return LibraryAskTool().Name }},
		{"library-cite", func() string { return LibraryCiteTool().Name }},
		{"library-items", func() string { return LibraryItemsTool().Name }},
		{"library-item-delete", func() string { return LibraryItemDeleteTool().Name }},
		{"library-search", func() string { return LibrarySearchTool().Name }},
		{"library-verify", func() string { return LibraryVerifyTool().Name }},
		{"page-labels-get", func() string { return PageLabelsGetTool().Name }},
		{"page-labels-update", func() string { return PageLabelsUpdateTool().Name }},
		{"page-labels-bulk-rule", func() string { return PageLabelsBulkRuleTool().Name }},
		{"page-labels-autodetect", func() string { return PageLabelsAutodetectTool().Name }},
		{"zotero-search", func() string { return ZoteroSearchTool().Name }},
		{"zotero-collections", func() string { return ZoteroCollectionsTool().Name }},
	}
	for _, d := range defs {
		t.Run(d.name, func(t *testing.T) {
			assert.Equal(t, d.name, d.tool())
		})
	}
	assert.NotNil(t, PageLabelsBulkRuleTool().InputSchema)
}

func TestLibraryItemsAndDelete(t *testing.T) {
	lib, store := newTestLibrary(t)
	ctx := context.Background()

	_, resp, err := LibraryItemsToolHandler(ctx, nil, LibraryItemsQuery{}, lib, logger.NewNoOpLogger())
	require.NoError(t, err)
	assert.Equal(t, 0, resp.Count)
	assert.NotNil(t, resp.Items)

	itemID, err := store.CreateItem(ctx, &models.Item{Title: "Walden"})
	require.NoError(t, err)

	_, resp, err = LibraryItemsToolHandler(ctx, nil, LibraryItemsQuery{}, lib, logger.NewNoOpLogger())
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Count)

	_, del, err := LibraryItemDeleteToolHandler(ctx, nil, LibraryItemDeleteQuery{ItemID: itemID}, lib, logger.NewNoOpLogger())
	require.NoError(t, err)
	assert.Equal(t, "Deleted item 1.", del.Message)

	_, _, err = LibraryItemDeleteToolHandler(ctx, nil, LibraryItemDeleteQuery{ItemID: itemID}, lib, logger.NewNoOpLogger())
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestPageLabelTools(t *testing.T) {
	lib, store := newTestLibrary(t)
	ctx := context.Background()
	log := logger.NewNoOpLogger()

	itemID, err := store.CreateItem(ctx, &models.Item{Title: "Walden", DisplayOffset: 2})
	require.NoError(t, err)
	_, err = store.InsertChunks(ctx, itemID, []models.Chunk{
		{PageStart: 1, PageEnd: 1, Text: "Contents"},
		{PageStart: 2, PageEnd: 2, Text: "Chapter 1\nEconomy"},
		{PageStart: 3, PageEnd: 3, Text: "more economy"},
	})
	require.NoError(t, err)

	_, view, err := PageLabelsGetToolHandler(ctx, nil, PageLabelsGetQuery{ItemID: itemID}, lib, log)
	require.NoError(t, err)
	assert.Equal(t, 3, view.Seeded)
	require.Len(t, view.Rows, 3)
	assert.Equal(t, "3", view.Rows[0].DisplayLabel)

	_, res, err := PageLabelsUpdateToolHandler(ctx, nil, PageLabelsUpdateQuery{ItemID: itemID, PDFPage: 1, DisplayLabel: "v"}, lib, log)
	require.NoError(t, err)
	assert.Equal(t, "update_one", res.Action)

	_, res, err = PageLabelsAutodetectToolHandler(ctx, nil, PageLabelsAutodetectQuery{ItemID: itemID}, lib, log)
	require.NoError(t, err)
	require.NotNil(t, res.Detection)
	assert.True(t, res.Detection.Found)
	assert.Equal(t, 0, res.Applied)

	_, res, err = PageLabelsBulkRuleToolHandler(ctx, nil, PageLabelsBulkRuleQuery{ItemID: itemID, RomanUntilPDF: 1, ArabicStartNumber: 1}, lib, log)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Applied)

	entries, err := store.GetPageMap(ctx, itemID)
	require.NoError(t, err)
	assert.Equal(t, "i", entries[0].DisplayLabel)
	assert.Equal(t, "2", entries[2].DisplayLabel)
}

func TestToolErrors(t *testing.T) {
	lib, _ := newTestLibrary(t)
	ctx := context.Background()
	log := logger.NewNoOpLogger()

	_, _, err := LibraryAskToolHandler(ctx, nil, LibraryAskQuery{Question: "What is economy?"}, lib, log)
	assert.True(t, llm.IsConfigError(err))

	_, _, err = LibrarySearchToolHandler(ctx, nil, LibrarySearchQuery{}, lib, log)
	var inputErr *operations.InputError
	assert.ErrorAs(t, err, &inputErr)

	_, _, err = LibraryVerifyToolHandler(ctx, nil, LibraryVerifyQuery{ItemID: 42}, lib, log)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, _, err = ZoteroSearchToolHandler(ctx, nil, ZoteroSearchQuery{Query: "walden"}, lib, log)
	assert.ErrorAs(t, err, &inputErr)

	_, _, err = LibraryIngestToolHandler(ctx, nil, LibraryIngestQuery{RawData: []byte("%PDF-1.4")}, lib, log)
	assert.True(t, llm.IsConfigError(err))
}
