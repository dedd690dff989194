package operations

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/Epistemic-Technology/research-library/internal/chunker"
	"github.com/Epistemic-Technology/research-library/internal/documents"
	"github.com/Epistemic-Technology/research-library/internal/pagelabels"
	"github.com/Epistemic-Technology/research-library/internal/storage"
	"github.com/Epistemic-Technology/research-library/models"
)

// IngestParams describes one document to add to the library
type IngestParams struct {
	// Source locates the document; ignored when Data is set
	Source models.SourceInfo
	// Data holds uploaded bytes
	Data []byte
	// Filename is the original name of an upload, used as the title fallback
	Filename string

	Title         string
	Author        string
	Year          int
	DisplayOffset int
	LibraryBookID *int64

	// Force re-ingests bytes that are already in the library
	Force bool
	// Progress receives one line per pipeline stage
	Progress func(line string)
}

func (p IngestParams) progress(format string, args ...any) {
	if p.Progress != nil {
		p.Progress(fmt.Sprintf(format, args...))
	}
}

// Ingest extracts, chunks, embeds and stores a document. It runs to
// completion even if ctx is cancelled. A failure part way through embedding
// leaves the chunks of completed batches in place.
func (l *Library) Ingest(ctx context.Context, params IngestParams) (*models.IngestResult, error) {
	ctx = context.WithoutCancel(ctx)

	// Credentials are checked before any work is done
	embedder, err := l.Embedder()
	if err != nil {
		return nil, err
	}

	doc, err := l.loadDocument(ctx, params)
	if err != nil {
		return nil, err
	}
	params.progress("Document received.")

	if doc.Type != "pdf" && doc.Type != "epub" {
		return nil, &InputError{Msg: fmt.Sprintf("unsupported document type %q (expected PDF or EPUB)", doc.Type)}
	}

	hash := documents.ContentHash(doc.Data)
	if !params.Force {
		existing, err := l.store.FindItemByHash(ctx, hash)
		switch {
		case err == nil:
			l.log.Info("Document already ingested as item %d", existing.ID)
			params.progress("Already ingested. Item ID: %d", existing.ID)
			return &models.IngestResult{ItemID: existing.ID, Pages: existing.PageCount, Duplicate: true}, nil
		case !errors.Is(err, storage.ErrNotFound):
			return nil, err
		}
	}

	if err := l.store.VerifySchema(ctx); err != nil {
		return nil, err
	}
	params.progress("Database ready.")

	meta := l.resolveMetadata(ctx, params)
	if meta.Title == "" {
		return nil, &InputError{Msg: "Title is required."}
	}

	scratch, err := documents.Materialize(doc, l.cfg.Extraction.TempDir)
	if err != nil {
		return nil, err
	}
	defer scratch.Cleanup()

	pdfPath := scratch.Path
	if doc.Type == "epub" {
		converted, err := l.converter.Convert(ctx, scratch.Path)
		if err != nil {
			return nil, err
		}
		defer converted.Cleanup()
		pdfPath = converted.Path
	}

	pageCount, pages, err := documents.ExtractPages(ctx, l.extractor, pdfPath, l.log)
	if err != nil {
		return nil, err
	}
	params.progress("Pages: %d", pageCount)
	params.progress("Text extracted.")

	item := &models.Item{
		Title:         meta.Title,
		Author:        meta.Author,
		Year:          meta.Year,
		DisplayOffset: params.DisplayOffset,
		LibraryBookID: params.LibraryBookID,
		ContentHash:   hash,
		SourcePath:    sourcePath(params),
		PageCount:     pageCount,
	}
	itemID, err := l.store.CreateItem(ctx, item)
	if err != nil {
		return nil, err
	}
	l.log.Info("Created item %d (%s, %d pages)", itemID, item.Title, pageCount)

	method, err := l.labelPages(ctx, itemID, pdfPath, pages, pageCount, params.DisplayOffset)
	if err != nil {
		return nil, err
	}
	params.progress("Page labels: %s", method)

	chunks := chunker.Build(pages, l.cfg.Chunking.TargetTokens)
	params.progress("Chunks built: %d", len(chunks))

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	result := &models.IngestResult{
		ItemID:      itemID,
		Pages:       pageCount,
		Chunks:      len(chunks),
		LabelMethod: method,
	}

	next := 0
	err = embedder.EmbedAll(ctx, texts, func(batch int, vectors [][]float32) error {
		part := chunks[next : next+len(vectors)]
		for i := range part {
			part[i].Embedding = vectors[i]
		}
		n, err := l.store.InsertChunks(ctx, itemID, part)
		if err != nil {
			return err
		}
		next += len(vectors)
		result.Embedded += n
		params.progress("Embedded batch %d", batch)
		return nil
	})
	if err != nil {
		l.log.Error("Ingest of item %d stopped after %d of %d chunks: %v", itemID, result.Embedded, len(chunks), err)
		return result, err
	}

	params.progress("Ingest complete. Item ID: %d", itemID)
	return result, nil
}

func (l *Library) loadDocument(ctx context.Context, params IngestParams) (models.DocumentData, error) {
	if len(params.Data) > 0 {
		return models.DocumentData{Data: params.Data, Type: documents.DetectDocumentType(params.Data)}, nil
	}
	if params.Source == (models.SourceInfo{}) {
		return models.DocumentData{}, &InputError{Msg: "A file, path, URL or Zotero ID is required."}
	}
	if params.Source.Path == "" && params.Source.ZoteroID != "" {
		if l.cfg.Zotero.APIKey == "" || l.cfg.Zotero.LibraryID == "" {
			return models.DocumentData{}, &InputError{Msg: "Set ZOTERO_API_KEY and ZOTERO_LIBRARY_ID to ingest from Zotero."}
		}
	}
	doc, err := documents.GetData(ctx, params.Source, l.cfg.Zotero.APIKey, l.cfg.Zotero.LibraryID)
	if err != nil {
		return models.DocumentData{}, fmt.Errorf("failed to fetch document: %w", err)
	}
	return doc, nil
}

// resolveMetadata fills blanks from Zotero and finally the file name
func (l *Library) resolveMetadata(ctx context.Context, params IngestParams) documents.ItemMetadata {
	meta := documents.ItemMetadata{
		Title:  strings.TrimSpace(params.Title),
		Author: strings.TrimSpace(params.Author),
		Year:   params.Year,
	}
	if params.Source.ZoteroID != "" && l.cfg.Zotero.APIKey != "" && l.cfg.Zotero.LibraryID != "" {
		zm, err := documents.FetchZoteroMetadata(ctx, params.Source.ZoteroID, l.cfg.Zotero.APIKey, l.cfg.Zotero.LibraryID)
		if err != nil {
			l.log.Warn("Failed to fetch Zotero metadata for %s: %v", params.Source.ZoteroID, err)
		}
		meta = documents.MergeMetadata(meta, zm)
	}
	if meta.Title == "" {
		if name := filepath.Base(sourcePath(params)); name != "." {
			meta.Title = strings.TrimSuffix(name, filepath.Ext(name))
		}
	}
	return meta
}

// sourcePath is the absolute path of a local source, else the upload's file name
func sourcePath(params IngestParams) string {
	switch {
	case params.Source.Path != "" && len(params.Data) == 0:
		if abs, err := filepath.Abs(params.Source.Path); err == nil {
			return abs
		}
		return params.Source.Path
	case params.Filename != "":
		return filepath.Base(params.Filename)
	default:
		return ""
	}
}

// labelPages stores the best available page labelling, then fills any gaps
// with offset labels
func (l *Library) labelPages(ctx context.Context, itemID int64, pdfPath string, pages map[int]string, pageCount, offset int) (models.PageLabelMethod, error) {
	native, err := l.nativeLabels(pdfPath)
	if err != nil {
		l.log.Warn("Failed to read native page labels: %v", err)
		native = nil
	}

	entries, method := pagelabels.Resolve(itemID, native, pages, pageCount)
	if len(entries) > 0 {
		if _, err := l.store.UpsertPageMap(ctx, entries); err != nil {
			return "", err
		}
	}
	if _, err := l.store.SeedPageMap(ctx, pagelabels.Seed(itemID, pageCount, offset)); err != nil {
		return "", err
	}
	return method, nil
}
