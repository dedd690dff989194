package documents

import (
	"context"
	"fmt"

	"github.com/gen2brain/go-fitz"
)

// FitzExtractor reads pages in process through MuPDF
type FitzExtractor struct{}

// PageCount returns the number of pages MuPDF reports
func (e *FitzExtractor) PageCount(ctx context.Context, path string) (int, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open document: %w", err)
	}
	defer doc.Close()
	return doc.NumPage(), nil
}

// PageText returns the text of one 1-based page
func (e *FitzExtractor) PageText(ctx context.Context, path string, page int) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	doc, err := fitz.New(path)
	if err != nil {
		return "", fmt.Errorf("failed to open document: %w", err)
	}
	defer doc.Close()

	if page < 1 || page > doc.NumPage() {
		return "", fmt.Errorf("page %d out of range (1-%d)", page, doc.NumPage())
	}
	text, err := doc.Text(page - 1)
	if err != nil {
		return "", fmt.Errorf("failed to extract page %d: %w", page, err)
	}
	return text, nil
}
