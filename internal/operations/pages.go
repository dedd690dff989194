package operations

import (
	"context"
	"fmt"
	"strings"

	"github.com/Epistemic-Technology/research-library/internal/documents"
	"github.com/Epistemic-Technology/research-library/internal/pagelabels"
	"github.com/Epistemic-Technology/research-library/models"
)

const (
	// PageLabelsPerPage is the admin listing window size
	PageLabelsPerPage = 50
	labelSnippetChars = 180
	autodetectChars   = 6000
)

// PageLabelRow is one page map entry with a text snippet of the page
type PageLabelRow struct {
	PDFPage       int                    `json:"pdf_page"`
	DisplayLabel  string                 `json:"display_label"`
	DisplayNumber *int                   `json:"display_number,omitempty"`
	Method        models.PageLabelMethod `json:"method"`
	Confidence    float64                `json:"confidence"`
	Snippet       string                 `json:"snippet"`
}

// PageLabelsView is one window of an item's page map
type PageLabelsView struct {
	Item    *models.Item   `json:"item"`
	Rows    []PageLabelRow `json:"rows"`
	Page    int            `json:"page"`
	Pages   int            `json:"pages"`
	Total   int            `json:"total"`
	Seeded  int            `json:"seeded,omitempty"`
	PerPage int            `json:"per_page"`
}

// PageLabels returns labels for window page (1-based) of an item, seeding the
// map from the display offset when it is empty
func (l *Library) PageLabels(ctx context.Context, itemID int64, page int) (*PageLabelsView, error) {
	item, err := l.store.GetItem(ctx, itemID)
	if err != nil {
		return nil, err
	}

	seed, err := l.SeedIfEmpty(ctx, itemID)
	if err != nil {
		return nil, err
	}

	page = max(page, 1)
	entries, total, err := l.store.GetPageMapPage(ctx, itemID, PageLabelsPerPage, (page-1)*PageLabelsPerPage)
	if err != nil {
		return nil, err
	}

	view := &PageLabelsView{
		Item:    item,
		Rows:    make([]PageLabelRow, 0, len(entries)),
		Page:    page,
		Pages:   (total + PageLabelsPerPage - 1) / PageLabelsPerPage,
		Total:   total,
		Seeded:  seed.Applied,
		PerPage: PageLabelsPerPage,
	}
	for _, e := range entries {
		text, err := l.store.TextForPage(ctx, itemID, e.PDFPage, labelSnippetChars*4)
		if err != nil {
			return nil, err
		}
		view.Rows = append(view.Rows, PageLabelRow{
			PDFPage:       e.PDFPage,
			DisplayLabel:  e.DisplayLabel,
			DisplayNumber: e.DisplayNumber,
			Method:        e.Method,
			Confidence:    e.Confidence,
			Snippet:       documents.Snippet(text, labelSnippetChars),
		})
	}
	return view, nil
}

// maxPage is the last physical page an admin rule applies to: the page map's
// extent, else the chunks' extent
func (l *Library) maxPage(ctx context.Context, itemID int64) (int, error) {
	n, err := l.store.MaxMappedPage(ctx, itemID)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		return n, nil
	}
	return l.store.MaxPage(ctx, itemID)
}

// apply writes entries and recomputes the item's chunk ranges atomically
func (l *Library) apply(ctx context.Context, itemID int64, entries []models.PageMapEntry) (int, error) {
	return l.store.ApplyPageMap(ctx, itemID, entries)
}

// UpdateOne sets the label of a single physical page. A nil number is parsed
// from the label when it is arabic.
func (l *Library) UpdateOne(ctx context.Context, itemID int64, pdfPage int, label string, number *int) (*models.AdminResult, error) {
	label = strings.TrimSpace(label)
	if pdfPage < 1 {
		return nil, &InputError{Msg: "pdf_page must be at least 1."}
	}
	if label == "" {
		return nil, &InputError{Msg: "display_label is required."}
	}
	if _, err := l.store.GetItem(ctx, itemID); err != nil {
		return nil, err
	}

	applied, err := l.apply(ctx, itemID, []models.PageMapEntry{pagelabels.Manual(itemID, pdfPage, label, number)})
	if err != nil {
		return nil, err
	}
	l.log.Info("Item %d: page %d labelled %q", itemID, pdfPage, label)
	return &models.AdminResult{
		Action:  "update_one",
		ItemID:  itemID,
		Applied: applied,
		Message: fmt.Sprintf("Updated page %d.", pdfPage),
	}, nil
}

// BulkRule applies a roman front matter / arabic body rule across the item
func (l *Library) BulkRule(ctx context.Context, itemID int64, params pagelabels.RuleParams) (*models.AdminResult, error) {
	if _, err := l.store.GetItem(ctx, itemID); err != nil {
		return nil, err
	}
	maxPage, err := l.maxPage(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if maxPage <= 0 {
		return nil, &InputError{Msg: fmt.Sprintf("Item %d has no pages.", itemID)}
	}

	applied, err := l.apply(ctx, itemID, pagelabels.BulkRule(itemID, params, maxPage))
	if err != nil {
		return nil, err
	}
	return &models.AdminResult{
		Action:  "bulk_rule",
		ItemID:  itemID,
		Applied: applied,
		Message: "Applied roman→arabic rule and recomputed chunk citation ranges.",
	}, nil
}

// Autodetect looks for the roman/arabic boundary in the stored text. The
// detected split is only written when apply is set.
func (l *Library) Autodetect(ctx context.Context, itemID int64, apply bool) (*models.AdminResult, error) {
	if _, err := l.store.GetItem(ctx, itemID); err != nil {
		return nil, err
	}
	lastChunkPage, err := l.store.MaxPage(ctx, itemID)
	if err != nil {
		return nil, err
	}

	var textErr error
	detection := pagelabels.AutodetectSplit(func(p int) string {
		text, err := l.store.TextForPage(ctx, itemID, p, autodetectChars)
		if err != nil && textErr == nil {
			textErr = err
		}
		return text
	}, lastChunkPage)
	if textErr != nil {
		return nil, textErr
	}

	result := &models.AdminResult{
		Action:    "autodetect",
		ItemID:    itemID,
		Detection: &detection,
		Message:   "Autodetect: " + detection.Message,
	}
	if !detection.Found || !apply {
		return result, nil
	}

	maxPage, err := l.maxPage(ctx, itemID)
	if err != nil {
		return nil, err
	}
	applied, err := l.apply(ctx, itemID, pagelabels.AutodetectEntries(itemID, detection.RomanUntil, maxPage))
	if err != nil {
		return nil, err
	}
	result.Applied = applied
	result.Message = fmt.Sprintf("Autodetect applied: roman until PDF page %d; arabic from %d.", detection.RomanUntil, detection.RomanUntil+1)
	return result, nil
}

// SeedIfEmpty fills an empty page map with offset labels for every page
// covered by the item's chunks
func (l *Library) SeedIfEmpty(ctx context.Context, itemID int64) (*models.AdminResult, error) {
	result := &models.AdminResult{Action: "seed", ItemID: itemID}

	mapped, err := l.store.MaxMappedPage(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if mapped > 0 {
		result.Message = "Page map already present."
		return result, nil
	}

	item, err := l.store.GetItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	maxPage, err := l.store.MaxPage(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if maxPage <= 0 {
		result.Message = "No pages found."
		return result, nil
	}

	applied, err := l.store.SeedPageMap(ctx, pagelabels.Seed(itemID, maxPage, item.DisplayOffset))
	if err != nil {
		return nil, err
	}
	if _, err := l.store.RecomputeDisplayRanges(ctx, itemID); err != nil {
		return nil, err
	}
	result.Applied = applied
	result.Message = fmt.Sprintf("Seeded %d pages from display offset %d.", applied, item.DisplayOffset)
	return result, nil
}

// SetOffset changes the fallback page shift of an item
func (l *Library) SetOffset(ctx context.Context, itemID int64, offset int) (*models.AdminResult, error) {
	if err := l.store.UpdateDisplayOffset(ctx, itemID, offset); err != nil {
		return nil, err
	}
	return &models.AdminResult{
		Action:  "set_offset",
		ItemID:  itemID,
		Message: fmt.Sprintf("Display offset set to %d.", offset),
	}, nil
}
