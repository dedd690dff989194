package operations

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/Epistemic-Technology/research-library/internal/documents"
	"github.com/Epistemic-Technology/research-library/models"
)

const verifySnippetChars = 160

// ListItems returns every item with its chunk and page map counts
func (l *Library) ListItems(ctx context.Context) ([]models.ItemSummary, error) {
	return l.store.ListItems(ctx)
}

// DeleteItem removes an item with its chunks and page map
func (l *Library) DeleteItem(ctx context.Context, itemID int64) error {
	if err := l.store.DeleteItem(ctx, itemID); err != nil {
		return err
	}
	l.log.Info("Deleted item %d", itemID)
	return nil
}

// Search runs a full-text query over chunk text
func (l *Library) Search(ctx context.Context, query string, itemIDs []int64, limit int) ([]models.SearchHit, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, &InputError{Msg: "Query is required."}
	}
	return l.store.SearchChunks(ctx, query, itemIDs, limit)
}

// VerifyParams selects chunks to spot-check against the source PDF
type VerifyParams struct {
	ItemID int64
	N      int
	// PDFPath is a copy of the source PDF. When empty the stored source path
	// is used if it still exists.
	PDFPath string
}

// Verify samples random chunks and shows their stored pages next to the
// text extracted from the same physical pages of the PDF
func (l *Library) Verify(ctx context.Context, params VerifyParams) ([]models.VerifySample, error) {
	item, err := l.store.GetItem(ctx, params.ItemID)
	if err != nil {
		return nil, err
	}
	n := params.N
	if n <= 0 {
		n = 5
	}

	chunks, err := l.store.SampleChunks(ctx, params.ItemID, n)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, &InputError{Msg: "No chunks for this item."}
	}

	pdfPath := params.PDFPath
	if pdfPath == "" && strings.EqualFold(filepath.Ext(item.SourcePath), ".pdf") {
		if _, err := os.Stat(item.SourcePath); err == nil {
			pdfPath = item.SourcePath
		}
	}

	samples := make([]models.VerifySample, 0, len(chunks))
	for _, c := range chunks {
		s := models.VerifySample{
			ChunkID:      c.ID,
			PageStart:    c.PageStart,
			PageEnd:      c.PageEnd,
			OffsetStart:  c.PageStart + item.DisplayOffset,
			OffsetEnd:    c.PageEnd + item.DisplayOffset,
			ChunkSnippet: verifySnippet(c.Text, "[empty]"),
		}
		if c.DisplayStartLabel != nil {
			s.DisplayStart = *c.DisplayStartLabel
		}
		if c.DisplayEndLabel != nil {
			s.DisplayEnd = *c.DisplayEndLabel
		}
		if pdfPath != "" {
			s.PDFSnippet = l.pdfSnippet(ctx, pdfPath, c.PageStart)
			if c.PageEnd != c.PageStart {
				s.PDFSnippet2 = l.pdfSnippet(ctx, pdfPath, c.PageEnd)
			}
		}
		samples = append(samples, s)
	}
	return samples, nil
}

func (l *Library) pdfSnippet(ctx context.Context, path string, page int) string {
	if page < 1 {
		return ""
	}
	text, err := l.extractor.PageText(ctx, path, page)
	if err != nil {
		l.log.Warn("Failed to extract page %d of %s: %v", page, path, err)
		return ""
	}
	return verifySnippet(text, "[empty page text]")
}

func verifySnippet(text, empty string) string {
	if s := documents.Snippet(text, verifySnippetChars); s != "" {
		return s
	}
	return empty
}
