package operations

import (
	"context"
	"encoding/json"
	"os"
	"testing"

	"github.com/Epistemic-Technology/zotero/zotero"

	"github.com/Epistemic-Technology/research-library/internal/config"
	"github.com/Epistemic-Technology/research-library/internal/logger"
)

// zoteroLibrary builds a Library with Zotero credentials from the environment.
// Skips the test if credentials are not available.
func zoteroLibrary(t *testing.T) *Library {
	apiKey := os.Getenv("ZOTERO_API_KEY")
	libraryID := os.Getenv("ZOTERO_LIBRARY_ID")
	if apiKey == "" || libraryID == "" {
		t.Skip("ZOTERO_API_KEY and ZOTERO_LIBRARY_ID not set, skipping integration test")
	}

	cfg := config.Default()
	cfg.Zotero.APIKey = apiKey
	cfg.Zotero.LibraryID = libraryID
	lib, err := NewLibrary(nil, cfg, logger.NewNoOpLogger(), WithExtractor(&fakeExtractor{}))
	if err != nil {
		t.Fatalf("NewLibrary failed: %v", err)
	}
	return lib
}

func TestSearchZotero_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	lib := zoteroLibrary(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		params ZoteroSearchParams
	}{
		{"Default book search", ZoteroSearchParams{Limit: 5}},
		{"Search with query", ZoteroSearchParams{Query: "history", Limit: 3}},
		{"Journal articles", ZoteroSearchParams{ItemTypes: []string{"journalArticle"}, Limit: 5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results, err := lib.SearchZotero(ctx, tt.params)
			if err != nil {
				t.Fatalf("SearchZotero failed: %v", err)
			}
			t.Logf("Found %d items", len(results))

			for i, item := range results {
				if item.Key == "" {
					t.Errorf("Item %d has empty Key", i)
				}
				if len(item.Attachments) == 0 {
					t.Errorf("Item %d returned without ingestable attachments", i)
				}
				for _, att := range item.Attachments {
					if !ingestableTypes[att.ContentType] {
						t.Errorf("Attachment %s has non-ingestable type %s", att.Key, att.ContentType)
					}
				}
			}
		})
	}
}

func TestZoteroCollections_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	lib := zoteroLibrary(t)
	collections, err := lib.ZoteroCollections(context.Background())
	if err != nil {
		t.Fatalf("ZoteroCollections failed: %v", err)
	}
	for i, c := range collections {
		if c.Key == "" {
			t.Errorf("Collection %d has empty Key", i)
		}
	}
}

func TestSearchZotero_MissingCredentials(t *testing.T) {
	tests := []struct {
		name      string
		apiKey    string
		libraryID string
		wantError string
	}{
		{"Missing API key", "", "12345", "Set ZOTERO_API_KEY to search Zotero."},
		{"Missing library ID", "test-key", "", "Set ZOTERO_LIBRARY_ID to search Zotero."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Zotero.APIKey = tt.apiKey
			cfg.Zotero.LibraryID = tt.libraryID
			lib, err := NewLibrary(nil, cfg, logger.NewNoOpLogger(), WithExtractor(&fakeExtractor{}))
			if err != nil {
				t.Fatalf("NewLibrary failed: %v", err)
			}

			_, err = lib.SearchZotero(context.Background(), ZoteroSearchParams{Limit: 5})
			if err == nil {
				t.Fatal("Expected error but got none")
			}
			if err.Error() != tt.wantError {
				t.Errorf("Expected error %q, got %q", tt.wantError, err.Error())
			}
		})
	}
}

func TestIngestableAttachments(t *testing.T) {
	raw := `[
		{"key": "PDF1", "data": {"key": "PDF1", "itemType": "attachment", "contentType": "application/pdf", "filename": "book.pdf"}},
		{"key": "EPUB1", "data": {"key": "EPUB1", "itemType": "attachment", "contentType": "application/epub+zip", "filename": "book.epub"}},
		{"key": "HTML1", "data": {"key": "HTML1", "itemType": "attachment", "contentType": "text/html", "filename": "snapshot.html"}},
		{"key": "NOTE1", "data": {"key": "NOTE1", "itemType": "note"}}
	]`
	var children []zotero.Item
	if err := json.Unmarshal([]byte(raw), &children); err != nil {
		t.Fatalf("failed to decode fixture: %v", err)
	}

	refs := ingestableAttachments(children)
	if len(refs) != 2 {
		t.Fatalf("Expected 2 ingestable attachments, got %d", len(refs))
	}
	if refs[0].Key != "PDF1" || refs[1].Key != "EPUB1" {
		t.Errorf("Unexpected attachments %+v", refs)
	}
}
