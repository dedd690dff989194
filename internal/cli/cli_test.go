package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Epistemic-Technology/research-library/internal/config"
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

// setupTestLibrary points the commands at a fresh library
func setupTestLibrary(t *testing.T) *storage.SQLiteStore {
	t.Helper()
	store, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "library.sqlite"), logger.NewNoOpLogger())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	cfg := config.Default()
	cfg.Embedding.APIKey = ""
	cfg.Zotero = config.ZoteroConfig{}
	lib, err := operations.NewLibrary(store, cfg, logger.NewNoOpLogger(), operations.WithExtractor(stubExtractor{}))
	require.NoError(t, err)

	original := openLibrary
	openLibrary = func(*cobra.Command) (*operations.Library, func(), error) {
		return lib, func() {}, nil
	}
	t.Cleanup(func() { openLibrary = original })
	return store
}

func addItem(t *testing.T, store *storage.SQLiteStore) int64 {
	t.Helper()
	ctx := context.Background()
	id, err := store.CreateItem(ctx, &models.Item{Title: "Walden", Author: "Henry David Thoreau", Year: 1854, PageCount: 2})
	require.NoError(t, err)
	_, err = store.InsertChunks(ctx, id, []models.Chunk{
		{PageStart: 1, PageEnd: 1, Text: "Economy. When I wrote the following pages", TokenCount: 8, Embedding: []float32{1, 0}},
		{PageStart: 2, PageEnd: 2, Text: "I lived alone in the woods", TokenCount: 7, Embedding: []float32{0, 1}},
	})
	require.NoError(t, err)
	return id
}

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	jsonOutput = false
	pagesPage = 1

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	defer rootCmd.SetArgs(nil)

	err := rootCmd.ExecuteContext(context.Background())
	return buf.String(), err
}

func TestRootCommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"ingest", "ask", "cite", "pages", "items", "delete", "search", "verify", "zotero", "serve"} {
		assert.True(t, names[want], "missing command %s", want)
	}

	sub := make(map[string]bool)
	for _, c := range pagesCmd.Commands() {
		sub[c.Name()] = true
	}
	for _, want := range []string{"get", "set", "rule", "autodetect", "offset", "seed"} {
		assert.True(t, sub[want], "missing pages command %s", want)
	}
}

func TestArgumentValidation(t *testing.T) {
	setupTestLibrary(t)

	_, err := run(t, "", "delete")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg(s)")

	_, err = run(t, "", "delete", "abc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid item ID")

	_, err = run(t, "", "ingest")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "a path, --zotero-id or --url is required")

	_, err = run(t, "", "pages", "offset", "1", "two")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid offset")
}

func TestItemsAndDelete(t *testing.T) {
	store := setupTestLibrary(t)

	out, err := run(t, "", "items")
	require.NoError(t, err)
	assert.Contains(t, out, "No items.")

	id := addItem(t, store)
	out, err = run(t, "", "items")
	require.NoError(t, err)
	assert.Contains(t, out, "[1] Walden - Henry David Thoreau (1854)")
	assert.Contains(t, out, "chunks=2")

	out, err = run(t, "", "delete", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted item 1.")

	_, err = store.GetItem(context.Background(), id)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestPagesCommands(t *testing.T) {
	store := setupTestLibrary(t)
	id := addItem(t, store)

	out, err := run(t, "", "pages", "seed", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "Seeded 2 pages from display offset 0.")

	out, err = run(t, "", "pages", "set", "1", "1", "ix")
	require.NoError(t, err)
	assert.Contains(t, out, "Updated page 1.")

	out, err = run(t, "", "--json", "pages", "get", "1")
	require.NoError(t, err)
	var view operations.PageLabelsView
	require.NoError(t, json.Unmarshal([]byte(out), &view))
	require.Len(t, view.Rows, 2)
	assert.Equal(t, "ix", view.Rows[0].DisplayLabel)
	assert.Equal(t, models.MethodManual, view.Rows[0].Method)
	assert.Equal(t, "2", view.Rows[1].DisplayLabel)

	out, err = run(t, "", "pages", "autodetect", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "Autodetect:")

	_, err = run(t, "", "pages", "offset", "1", "4")
	require.NoError(t, err)
	item, err := store.GetItem(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, 4, item.DisplayOffset)
}

func TestSearch(t *testing.T) {
	store := setupTestLibrary(t)
	addItem(t, store)

	out, err := run(t, "", "search", "woods")
	require.NoError(t, err)
	assert.Contains(t, out, "Walden pp.2–2")

	out, err = run(t, "", "search", "harpoon")
	require.NoError(t, err)
	assert.Contains(t, out, "No results found.")
}

func TestCiteReadsDraftFromStdin(t *testing.T) {
	setupTestLibrary(t)

	_, err := run(t, "   \n\n", "cite")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Draft is required.")
}

func TestZoteroRequiresCredentials(t *testing.T) {
	setupTestLibrary(t)

	_, err := run(t, "", "zotero", "collections")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ZOTERO_API_KEY")
}
