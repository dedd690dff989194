package operations

import (
	"context"
	"fmt"
	"strings"

	"github.com/Epistemic-Technology/zotero/zotero"
)

// ZoteroSearchParams filters a Zotero library for ingestable books
type ZoteroSearchParams struct {
	Query string
	// ItemTypes defaults to books and book sections
	ItemTypes  []string
	Collection string
	Limit      int
}

// ZoteroSource is a Zotero item with the attachments that can be ingested
type ZoteroSource struct {
	Key         string          `json:"key"`
	Title       string          `json:"title"`
	Author      string          `json:"author,omitempty"`
	Date        string          `json:"date,omitempty"`
	Attachments []ZoteroFileRef `json:"attachments"`
}

// ZoteroFileRef is an attachment; its key is passed as zotero_id to ingest
type ZoteroFileRef struct {
	Key         string `json:"key"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
}

// ZoteroCollection is a collection key usable as a search filter
type ZoteroCollection struct {
	Key    string `json:"key"`
	Name   string `json:"name"`
	Parent string `json:"parent,omitempty"`
}

var ingestableTypes = map[string]bool{
	"application/pdf":      true,
	"application/epub+zip": true,
}

func (l *Library) zoteroClient() (*zotero.Client, error) {
	if l.cfg.Zotero.APIKey == "" {
		return nil, &InputError{Msg: "Set ZOTERO_API_KEY to search Zotero."}
	}
	if l.cfg.Zotero.LibraryID == "" {
		return nil, &InputError{Msg: "Set ZOTERO_LIBRARY_ID to search Zotero."}
	}
	return zotero.NewClient(l.cfg.Zotero.LibraryID, zotero.LibraryTypeUser, zotero.WithAPIKey(l.cfg.Zotero.APIKey)), nil
}

// SearchZotero finds Zotero items that carry a PDF or EPUB attachment
func (l *Library) SearchZotero(ctx context.Context, params ZoteroSearchParams) ([]ZoteroSource, error) {
	client, err := l.zoteroClient()
	if err != nil {
		return nil, err
	}

	query := &zotero.QueryParams{
		Q:        params.Query,
		QMode:    "titleCreatorYear",
		ItemType: params.ItemTypes,
		Limit:    params.Limit,
		Sort:     "title",
	}
	if query.Limit <= 0 {
		query.Limit = 25
	}
	if len(query.ItemType) == 0 {
		query.ItemType = []string{"book || bookSection"}
	}

	var items []zotero.Item
	if params.Collection != "" {
		items, err = client.CollectionItems(ctx, params.Collection, query)
	} else {
		items, err = client.Items(ctx, query)
	}
	if err != nil {
		l.log.Error("Zotero search failed: %v", err)
		return nil, fmt.Errorf("failed to search Zotero library: %w", err)
	}

	sources := make([]ZoteroSource, 0, len(items))
	for _, item := range items {
		if item.Data.ItemType == "attachment" {
			continue
		}
		children, err := client.Children(ctx, item.Key, nil)
		if err != nil {
			l.log.Warn("Failed to list attachments of %s: %v", item.Key, err)
			continue
		}
		refs := ingestableAttachments(children)
		if len(refs) == 0 {
			continue
		}
		source := ZoteroSource{
			Key:         item.Key,
			Title:       item.Data.Title,
			Attachments: refs,
		}
		var names []string
		for _, c := range item.Data.Creators {
			name := c.Name
			if name == "" {
				name = strings.TrimSpace(c.FirstName + " " + c.LastName)
			}
			if name != "" {
				names = append(names, name)
			}
		}
		source.Author = strings.Join(names, "; ")
		if date, ok := item.Data.Extra["date"].(string); ok {
			source.Date = date
		}
		sources = append(sources, source)
	}
	l.log.Info("Zotero search %q: %d of %d items have ingestable files", params.Query, len(sources), len(items))
	return sources, nil
}

// ZoteroCollections lists the library's collections
func (l *Library) ZoteroCollections(ctx context.Context) ([]ZoteroCollection, error) {
	client, err := l.zoteroClient()
	if err != nil {
		return nil, err
	}
	collections, err := client.Collections(ctx, &zotero.QueryParams{Limit: 100, Sort: "title"})
	if err != nil {
		return nil, fmt.Errorf("failed to list Zotero collections: %w", err)
	}
	out := make([]ZoteroCollection, 0, len(collections))
	for _, c := range collections {
		out = append(out, ZoteroCollection{
			Key:    c.Data.Key,
			Name:   c.Data.Name,
			Parent: c.Data.ParentCollection.String(),
		})
	}
	return out, nil
}

func ingestableAttachments(children []zotero.Item) []ZoteroFileRef {
	var refs []ZoteroFileRef
	for _, child := range children {
		if child.Data.ItemType != "attachment" || !ingestableTypes[child.Data.ContentType] {
			continue
		}
		refs = append(refs, ZoteroFileRef{
			Key:         child.Key,
			Filename:    child.Data.Filename,
			ContentType: child.Data.ContentType,
		})
	}
	return refs
}
