package documents

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/Epistemic-Technology/zotero/zotero"
)

// ItemMetadata is the citation metadata an item is stored with
type ItemMetadata struct {
	Title  string
	Author string
	Year   int
}

// FetchZoteroMetadata retrieves citation metadata for a Zotero item (attachment or parent item).
// If the zoteroID is an attachment, it fetches the parent item's metadata.
// Returns nil if the item is an orphaned attachment.
func FetchZoteroMetadata(ctx context.Context, zoteroID string, apiKey string, libraryID string) (*ItemMetadata, error) {
	if zoteroID == "" || apiKey == "" || libraryID == "" {
		return nil, fmt.Errorf("zoteroID, apiKey, and libraryID are required")
	}

	client := zotero.NewClient(libraryID, zotero.LibraryTypeUser, zotero.WithAPIKey(apiKey))

	item, err := client.Item(ctx, zoteroID, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch Zotero item %s: %w", zoteroID, err)
	}

	// If this is an attachment, fetch the parent item instead
	if item.Data.ItemType == "attachment" && item.Data.ParentItem != "" {
		parentItem, err := client.Item(ctx, item.Data.ParentItem, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch parent item %s: %w", item.Data.ParentItem, err)
		}
		item = parentItem
	}

	if item.Data.ItemType == "attachment" {
		return nil, nil
	}

	return zoteroItemToMetadata(item), nil
}

// zoteroItemToMetadata joins creator names with "; " and takes the year from the date field
func zoteroItemToMetadata(item *zotero.Item) *ItemMetadata {
	metadata := &ItemMetadata{Title: item.Data.Title}

	var authors []string
	for _, creator := range item.Data.Creators {
		var name string
		if creator.Name != "" {
			name = creator.Name
		} else if creator.FirstName != "" || creator.LastName != "" {
			name = strings.TrimSpace(creator.FirstName + " " + creator.LastName)
		}
		if name != "" {
			authors = append(authors, name)
		}
	}
	metadata.Author = strings.Join(authors, "; ")

	if item.Data.Extra != nil {
		if val, ok := item.Data.Extra["date"].(string); ok {
			metadata.Year = ParseYear(val)
		}
	}

	return metadata
}

var yearPattern = regexp.MustCompile(`\b(1[5-9]\d{2}|20\d{2})\b`)

// ParseYear extracts a four-digit year from a free-form date, or 0
func ParseYear(date string) int {
	m := yearPattern.FindString(date)
	if m == "" {
		return 0
	}
	year, _ := strconv.Atoi(m)
	return year
}

// MergeMetadata fills empty fields of explicit with values from fallback.
// Explicit values always win.
func MergeMetadata(explicit ItemMetadata, fallback *ItemMetadata) ItemMetadata {
	if fallback == nil {
		return explicit
	}
	merged := explicit
	if merged.Title == "" {
		merged.Title = fallback.Title
	}
	if merged.Author == "" {
		merged.Author = fallback.Author
	}
	if merged.Year == 0 {
		merged.Year = fallback.Year
	}
	return merged
}
