package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/Epistemic-Technology/research-library/internal/logger"
	"github.com/Epistemic-Technology/research-library/internal/pagelabels"
	"github.com/Epistemic-Technology/research-library/internal/storage/migrations"
	"github.com/Epistemic-Technology/research-library/models"
)

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db  *sql.DB
	log logger.Logger
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (or creates) the database at dbPath and brings its schema up to date
func NewSQLiteStore(dbPath string, log logger.Logger) (*SQLiteStore, error) {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	if dir := filepath.Dir(dbPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection serializes writers and keeps batch transactions simple
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{db: db, log: log}
	if err := store.migrate(context.Background(), migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

const itemColumns = `i.id, i.title, i.author, i.year, i.display_offset, i.library_book_id,
	i.content_hash, i.source_path, i.page_count, i.created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner, extra ...any) (*models.Item, error) {
	var (
		item        models.Item
		author      sql.NullString
		year        sql.NullInt64
		bookID      sql.NullInt64
		contentHash sql.NullString
		sourcePath  sql.NullString
		pageCount   sql.NullInt64
		createdAt   sql.NullString
	)
	dest := []any{&item.ID, &item.Title, &author, &year, &item.DisplayOffset, &bookID,
		&contentHash, &sourcePath, &pageCount, &createdAt}
	dest = append(dest, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	item.Author = author.String
	item.Year = int(year.Int64)
	if bookID.Valid {
		id := bookID.Int64
		item.LibraryBookID = &id
	}
	item.ContentHash = contentHash.String
	item.SourcePath = sourcePath.String
	item.PageCount = int(pageCount.Int64)
	item.CreatedAt = parseTimestamp(createdAt.String)
	return &item, nil
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func parseTimestamp(value string) time.Time {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t
		}
	}
	return time.Time{}
}

// CreateItem inserts a new item and returns its ID
func (s *SQLiteStore) CreateItem(ctx context.Context, item *models.Item) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO items (title, author, year, display_offset, library_book_id, content_hash, source_path, page_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, item.Title, nullString(item.Author), nullInt(item.Year), item.DisplayOffset, item.LibraryBookID,
		nullString(item.ContentHash), nullString(item.SourcePath), nullInt(item.PageCount))
	if err != nil {
		return 0, fmt.Errorf("failed to insert item: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read item id: %w", err)
	}
	item.ID = id
	return id, nil
}

// GetItem retrieves an item by ID
func (s *SQLiteStore) GetItem(ctx context.Context, itemID int64) (*models.Item, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+itemColumns+" FROM items i WHERE i.id = ?", itemID)
	item, err := scanItem(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("item %d: %w", itemID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get item: %w", err)
	}
	return item, nil
}

// FindItemByHash returns ErrNotFound when no item was ingested from the same bytes
func (s *SQLiteStore) FindItemByHash(ctx context.Context, contentHash string) (*models.Item, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+itemColumns+" FROM items i WHERE i.content_hash = ? ORDER BY i.id LIMIT 1", contentHash)
	item, err := scanItem(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find item by hash: %w", err)
	}
	return item, nil
}

// ListItems returns all items with chunk and page map counts
func (s *SQLiteStore) ListItems(ctx context.Context) ([]models.ItemSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+itemColumns+`,
			(SELECT COUNT(*) FROM chunks c WHERE c.item_id = i.id),
			(SELECT COUNT(*) FROM page_map p WHERE p.item_id = i.id),
			(SELECT COALESCE(MAX(c.page_end), 0) FROM chunks c WHERE c.item_id = i.id)
		FROM items i
		ORDER BY i.id DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	defer rows.Close()

	var summaries []models.ItemSummary
	for rows.Next() {
		var summary models.ItemSummary
		item, err := scanItem(rows, &summary.ChunkCount, &summary.PageMapCount, &summary.MaxPage)
		if err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		summary.Item = *item
		summaries = append(summaries, summary)
	}
	return summaries, rows.Err()
}

// UpdateDisplayOffset changes the fallback page shift and recomputes chunk ranges
func (s *SQLiteStore) UpdateDisplayOffset(ctx context.Context, itemID int64, offset int) error {
	result, err := s.db.ExecContext(ctx, "UPDATE items SET display_offset = ? WHERE id = ?", offset, itemID)
	if err != nil {
		return fmt.Errorf("failed to update display offset: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("item %d: %w", itemID, ErrNotFound)
	}
	_, err = s.RecomputeDisplayRanges(ctx, itemID)
	return err
}

// DeleteItem removes an item and everything that belongs to it. Child rows are
// deleted explicitly since older databases were created without cascading keys.
func (s *SQLiteStore) DeleteItem(ctx context.Context, itemID int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM chunks WHERE item_id = ?", itemID); err != nil {
		return fmt.Errorf("failed to delete chunks: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM page_map WHERE item_id = ?", itemID); err != nil {
		return fmt.Errorf("failed to delete page map: %w", err)
	}
	result, err := tx.ExecContext(ctx, "DELETE FROM items WHERE id = ?", itemID)
	if err != nil {
		return fmt.Errorf("failed to delete item: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("item %d: %w", itemID, ErrNotFound)
	}
	return tx.Commit()
}

// InsertChunks stores one batch in a single transaction. Display ranges are
// resolved against the page map as it stands inside that transaction.
func (s *SQLiteStore) InsertChunks(ctx context.Context, itemID int64, chunks []models.Chunk) (int, error) {
	if len(chunks) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var offset int
	if err := tx.QueryRowContext(ctx, "SELECT display_offset FROM items WHERE id = ?", itemID).Scan(&offset); err != nil {
		if err == sql.ErrNoRows {
			return 0, fmt.Errorf("item %d: %w", itemID, ErrNotFound)
		}
		return 0, fmt.Errorf("failed to read display offset: %w", err)
	}
	entries, err := queryPageMap(ctx, tx, itemID)
	if err != nil {
		return 0, err
	}
	lookup := pagelabels.MapLookup(entries)

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (item_id, section, page_start, page_end, text, embedding, token_count,
			display_start, display_end, display_start_label, display_end_label)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare chunk insert: %w", err)
	}
	defer stmt.Close()

	for i := range chunks {
		chunk := &chunks[i]
		display := pagelabels.DisplayRange(chunk.PageStart, chunk.PageEnd, lookup, offset)
		result, err := stmt.ExecContext(ctx, itemID, chunk.Section, chunk.PageStart, chunk.PageEnd, chunk.Text,
			PackVector(chunk.Embedding), chunk.TokenCount, display.Start, display.End,
			display.StartLabel, display.EndLabel)
		if err != nil {
			return 0, fmt.Errorf("failed to insert chunk %d: %w", i, err)
		}
		id, err := result.LastInsertId()
		if err != nil {
			return 0, fmt.Errorf("failed to read chunk id: %w", err)
		}
		chunk.ID = id
		chunk.ItemID = itemID
		chunk.DisplayStart = display.Start
		chunk.DisplayEnd = display.End
		chunk.DisplayStartLabel = stringPtr(display.StartLabel)
		chunk.DisplayEndLabel = stringPtr(display.EndLabel)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit chunks: %w", err)
	}
	return len(chunks), nil
}

const chunkColumns = `c.id, c.item_id, c.section, c.page_start, c.page_end, c.text, c.embedding,
	c.token_count, c.display_start, c.display_end, c.display_start_label, c.display_end_label`

func scanChunk(row rowScanner, extra ...any) (*models.Chunk, error) {
	var (
		chunk        models.Chunk
		section      sql.NullString
		pageStart    sql.NullInt64
		pageEnd      sql.NullInt64
		embedding    []byte
		tokenCount   sql.NullInt64
		displayStart sql.NullInt64
		displayEnd   sql.NullInt64
		startLabel   sql.NullString
		endLabel     sql.NullString
	)
	dest := []any{&chunk.ID, &chunk.ItemID, &section, &pageStart, &pageEnd, &chunk.Text, &embedding,
		&tokenCount, &displayStart, &displayEnd, &startLabel, &endLabel}
	dest = append(dest, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	if section.Valid {
		chunk.Section = &section.String
	}
	chunk.PageStart = int(pageStart.Int64)
	chunk.PageEnd = int(pageEnd.Int64)
	chunk.Embedding = UnpackVector(embedding)
	chunk.TokenCount = int(tokenCount.Int64)
	chunk.DisplayStart = nullIntPtr(displayStart)
	chunk.DisplayEnd = nullIntPtr(displayEnd)
	if startLabel.Valid {
		chunk.DisplayStartLabel = &startLabel.String
	}
	if endLabel.Valid {
		chunk.DisplayEndLabel = &endLabel.String
	}
	return &chunk, nil
}

// GetChunks retrieves all chunks for an item ordered by page
func (s *SQLiteStore) GetChunks(ctx context.Context, itemID int64) ([]models.Chunk, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+chunkColumns+" FROM chunks c WHERE c.item_id = ? ORDER BY c.page_start, c.id", itemID)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}
	defer rows.Close()

	var chunks []models.Chunk
	for rows.Next() {
		chunk, err := scanChunk(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}
		chunks = append(chunks, *chunk)
	}
	return chunks, rows.Err()
}

// CandidateChunks returns embedded chunks joined with their item metadata
func (s *SQLiteStore) CandidateChunks(ctx context.Context, itemIDs []int64) ([]models.ScoredChunk, error) {
	query := `
		SELECT ` + chunkColumns + `, i.title, i.author, i.year, i.display_offset
		FROM chunks c
		JOIN items i ON i.id = c.item_id
		WHERE c.embedding IS NOT NULL AND length(c.embedding) > 0`
	args := []any{}
	if len(itemIDs) > 0 {
		query += " AND c.item_id IN (" + placeholders(len(itemIDs)) + ")"
		for _, id := range itemIDs {
			args = append(args, id)
		}
	}
	query += " ORDER BY c.id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query candidate chunks: %w", err)
	}
	defer rows.Close()

	var candidates []models.ScoredChunk
	for rows.Next() {
		var (
			author sql.NullString
			year   sql.NullInt64
			sc     models.ScoredChunk
		)
		chunk, err := scanChunk(rows, &sc.Title, &author, &year, &sc.DisplayOffset)
		if err != nil {
			return nil, fmt.Errorf("failed to scan candidate chunk: %w", err)
		}
		sc.Chunk = *chunk
		sc.Author = author.String
		sc.Year = int(year.Int64)
		candidates = append(candidates, sc)
	}
	return candidates, rows.Err()
}

// SampleChunks returns up to n random chunks of an item
func (s *SQLiteStore) SampleChunks(ctx context.Context, itemID int64, n int) ([]models.Chunk, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+chunkColumns+" FROM chunks c WHERE c.item_id = ? ORDER BY RANDOM() LIMIT ?", itemID, n)
	if err != nil {
		return nil, fmt.Errorf("failed to sample chunks: %w", err)
	}
	defer rows.Close()

	var chunks []models.Chunk
	for rows.Next() {
		chunk, err := scanChunk(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}
		chunks = append(chunks, *chunk)
	}
	return chunks, rows.Err()
}

var horizontalSpace = regexp.MustCompile(`[ \t]+`)

// TextForPage returns the text of the narrowest chunk covering pdfPage with
// runs of spaces collapsed, cut to limitChars runes. It returns "" when no
// chunk covers the page.
func (s *SQLiteStore) TextForPage(ctx context.Context, itemID int64, pdfPage int, limitChars int) (string, error) {
	var text string
	err := s.db.QueryRowContext(ctx, `
		SELECT text FROM chunks
		WHERE item_id = ? AND page_start <= ? AND page_end >= ?
		ORDER BY (page_end - page_start), length(text)
		LIMIT 1
	`, itemID, pdfPage, pdfPage).Scan(&text)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read page text: %w", err)
	}

	text = strings.TrimSpace(horizontalSpace.ReplaceAllString(text, " "))
	if limitChars > 0 {
		runes := []rune(text)
		if len(runes) > limitChars {
			text = string(runes[:limitChars])
		}
	}
	return text, nil
}

// MaxPage returns the highest physical page covered by an item's chunks
func (s *SQLiteStore) MaxPage(ctx context.Context, itemID int64) (int, error) {
	var maxPage int
	err := s.db.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(page_end), 0) FROM chunks WHERE item_id = ?", itemID).Scan(&maxPage)
	if err != nil {
		return 0, fmt.Errorf("failed to read max page: %w", err)
	}
	return maxPage, nil
}

// SearchChunks runs an FTS4 MATCH query. Matched terms are wrapped in brackets in the snippet.
func (s *SQLiteStore) SearchChunks(ctx context.Context, query string, itemIDs []int64, limit int) ([]models.SearchHit, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}

	stmt := `
		SELECT c.id, c.item_id, i.title, c.page_start, c.page_end,
			snippet(chunks_fts, '[', ']', '...', 0, 16)
		FROM chunks_fts
		JOIN chunks c ON c.id = chunks_fts.docid
		JOIN items i ON i.id = c.item_id
		WHERE chunks_fts MATCH ?`
	args := []any{query}
	if len(itemIDs) > 0 {
		stmt += " AND c.item_id IN (" + placeholders(len(itemIDs)) + ")"
		for _, id := range itemIDs {
			args = append(args, id)
		}
	}
	stmt += " ORDER BY c.item_id, c.page_start LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search chunks: %w", err)
	}
	defer rows.Close()

	var hits []models.SearchHit
	for rows.Next() {
		var hit models.SearchHit
		var pageStart, pageEnd sql.NullInt64
		if err := rows.Scan(&hit.ChunkID, &hit.ItemID, &hit.Title, &pageStart, &pageEnd, &hit.Snippet); err != nil {
			return nil, fmt.Errorf("failed to scan search hit: %w", err)
		}
		hit.PageStart = int(pageStart.Int64)
		hit.PageEnd = int(pageEnd.Int64)
		hits = append(hits, hit)
	}
	return hits, rows.Err()
}

// SeedPageMap inserts entries only for pages that have none and returns how many landed
func (s *SQLiteStore) SeedPageMap(ctx context.Context, entries []models.PageMapEntry) (int, error) {
	if len(entries) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	inserted := 0
	for _, e := range entries {
		result, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO page_map (item_id, pdf_page, display_label, display_number, method, confidence)
			VALUES (?, ?, ?, ?, ?, ?)
		`, e.ItemID, e.PDFPage, e.DisplayLabel, e.DisplayNumber, string(e.Method), confidenceOf(e))
		if err != nil {
			return 0, fmt.Errorf("failed to seed page %d: %w", e.PDFPage, err)
		}
		n, _ := result.RowsAffected()
		inserted += int(n)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit page map seed: %w", err)
	}
	return inserted, nil
}

// UpsertPageMap writes each entry that supersedes the stored one for its page.
// It returns the number of entries written.
func (s *SQLiteStore) UpsertPageMap(ctx context.Context, entries []models.PageMapEntry) (int, error) {
	if len(entries) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	applied, err := upsertPageMap(ctx, tx, entries)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit page map: %w", err)
	}
	return applied, nil
}

// ApplyPageMap upserts entries and recomputes the item's chunk display
// ranges in one transaction. Either both land or neither does.
func (s *SQLiteStore) ApplyPageMap(ctx context.Context, itemID int64, entries []models.PageMapEntry) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	applied, err := upsertPageMap(ctx, tx, entries)
	if err != nil {
		return 0, err
	}
	if _, err := recomputeDisplayRanges(ctx, tx, itemID); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit page map: %w", err)
	}
	return applied, nil
}

func upsertPageMap(ctx context.Context, tx *sql.Tx, entries []models.PageMapEntry) (int, error) {
	applied := 0
	for _, e := range entries {
		e.Confidence = confidenceOf(e)
		existing, found, err := queryPageMapEntry(ctx, tx, e.ItemID, e.PDFPage)
		if err != nil {
			return 0, err
		}
		if found && !models.Supersedes(existing, e) {
			continue
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO page_map (item_id, pdf_page, display_label, display_number, method, confidence)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(item_id, pdf_page) DO UPDATE SET
				display_label = excluded.display_label,
				display_number = excluded.display_number,
				method = excluded.method,
				confidence = excluded.confidence
		`, e.ItemID, e.PDFPage, e.DisplayLabel, e.DisplayNumber, string(e.Method), e.Confidence)
		if err != nil {
			return 0, fmt.Errorf("failed to write page %d: %w", e.PDFPage, err)
		}
		applied++
	}
	return applied, nil
}

// GetPageMap returns the full page map for an item ordered by page
func (s *SQLiteStore) GetPageMap(ctx context.Context, itemID int64) ([]models.PageMapEntry, error) {
	return queryPageMap(ctx, s.db, itemID)
}

// GetPageMapPage returns one window of the page map and the total entry count
func (s *SQLiteStore) GetPageMapPage(ctx context.Context, itemID int64, limit, offset int) ([]models.PageMapEntry, int, error) {
	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM page_map WHERE item_id = ?", itemID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count page map: %w", err)
	}
	if limit <= 0 {
		limit = 200
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT item_id, pdf_page, display_label, display_number, method, confidence
		FROM page_map WHERE item_id = ? ORDER BY pdf_page LIMIT ? OFFSET ?
	`, itemID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query page map: %w", err)
	}
	defer rows.Close()

	entries, err := scanPageMapRows(rows)
	if err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

// MaxMappedPage returns the highest page present in the page map
func (s *SQLiteStore) MaxMappedPage(ctx context.Context, itemID int64) (int, error) {
	var maxPage int
	err := s.db.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(pdf_page), 0) FROM page_map WHERE item_id = ?", itemID).Scan(&maxPage)
	if err != nil {
		return 0, fmt.Errorf("failed to read max mapped page: %w", err)
	}
	return maxPage, nil
}

// RecomputeDisplayRanges refreshes every chunk's display fields from the
// current page map and offset in one transaction
func (s *SQLiteStore) RecomputeDisplayRanges(ctx context.Context, itemID int64) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	n, err := recomputeDisplayRanges(ctx, tx, itemID)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit display ranges: %w", err)
	}
	return n, nil
}

func recomputeDisplayRanges(ctx context.Context, tx *sql.Tx, itemID int64) (int, error) {
	var offset int
	if err := tx.QueryRowContext(ctx, "SELECT display_offset FROM items WHERE id = ?", itemID).Scan(&offset); err != nil {
		if err == sql.ErrNoRows {
			return 0, fmt.Errorf("item %d: %w", itemID, ErrNotFound)
		}
		return 0, fmt.Errorf("failed to read display offset: %w", err)
	}
	entries, err := queryPageMap(ctx, tx, itemID)
	if err != nil {
		return 0, err
	}
	lookup := pagelabels.MapLookup(entries)

	type span struct {
		id         int64
		start, end int
	}
	rows, err := tx.QueryContext(ctx, "SELECT id, page_start, page_end FROM chunks WHERE item_id = ?", itemID)
	if err != nil {
		return 0, fmt.Errorf("failed to query chunk spans: %w", err)
	}
	var spans []span
	for rows.Next() {
		var sp span
		var start, end sql.NullInt64
		if err := rows.Scan(&sp.id, &start, &end); err != nil {
			rows.Close()
			return 0, fmt.Errorf("failed to scan chunk span: %w", err)
		}
		sp.start, sp.end = int(start.Int64), int(end.Int64)
		spans = append(spans, sp)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	for _, sp := range spans {
		display := pagelabels.DisplayRange(sp.start, sp.end, lookup, offset)
		_, err := tx.ExecContext(ctx, `
			UPDATE chunks SET display_start = ?, display_end = ?, display_start_label = ?, display_end_label = ?
			WHERE id = ?
		`, display.Start, display.End, display.StartLabel, display.EndLabel, sp.id)
		if err != nil {
			return 0, fmt.Errorf("failed to update chunk %d: %w", sp.id, err)
		}
	}

	return len(spans), nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

type rowQueryer interface {
	queryer
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func queryPageMap(ctx context.Context, q queryer, itemID int64) ([]models.PageMapEntry, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT item_id, pdf_page, display_label, display_number, method, confidence
		FROM page_map WHERE item_id = ? ORDER BY pdf_page
	`, itemID)
	if err != nil {
		return nil, fmt.Errorf("failed to query page map: %w", err)
	}
	defer rows.Close()
	return scanPageMapRows(rows)
}

func queryPageMapEntry(ctx context.Context, q rowQueryer, itemID int64, pdfPage int) (models.PageMapEntry, bool, error) {
	row := q.QueryRowContext(ctx, `
		SELECT item_id, pdf_page, display_label, display_number, method, confidence
		FROM page_map WHERE item_id = ? AND pdf_page = ?
	`, itemID, pdfPage)
	entry, err := scanPageMapEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.PageMapEntry{}, false, nil
	}
	if err != nil {
		return models.PageMapEntry{}, false, fmt.Errorf("failed to read page map entry: %w", err)
	}
	return entry, true, nil
}

func scanPageMapRows(rows *sql.Rows) ([]models.PageMapEntry, error) {
	var entries []models.PageMapEntry
	for rows.Next() {
		entry, err := scanPageMapEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan page map entry: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func scanPageMapEntry(row rowScanner) (models.PageMapEntry, error) {
	var (
		entry      models.PageMapEntry
		label      sql.NullString
		number     sql.NullInt64
		method     sql.NullString
		confidence sql.NullFloat64
	)
	if err := row.Scan(&entry.ItemID, &entry.PDFPage, &label, &number, &method, &confidence); err != nil {
		return entry, err
	}
	entry.DisplayLabel = label.String
	entry.DisplayNumber = nullIntPtr(number)
	entry.Method = models.PageLabelMethod(method.String)
	entry.Confidence = confidence.Float64
	return entry, nil
}

func confidenceOf(e models.PageMapEntry) float64 {
	if e.Confidence > 0 {
		return e.Confidence
	}
	return e.Method.DefaultConfidence()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullInt(n int) any {
	if n == 0 {
		return nil
	}
	return n
}

func nullIntPtr(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}

func stringPtr(s string) *string {
	return &s
}
