package models

import "time"

// Item is one ingested source document (usually a book)
type Item struct {
	ID            int64     `json:"id"`
	Title         string    `json:"title"`
	Author        string    `json:"author,omitempty"`
	Year          int       `json:"year,omitempty"`
	DisplayOffset int       `json:"display_offset"`
	LibraryBookID *int64    `json:"library_book_id,omitempty"`
	ContentHash   string    `json:"content_hash,omitempty"`
	SourcePath    string    `json:"source_path,omitempty"`
	PageCount     int       `json:"page_count,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

type Chunk struct {
	ID                int64     `json:"id"`
	ItemID            int64     `json:"item_id"`
	Section           *string   `json:"section,omitempty"`
	PageStart         int       `json:"page_start"`
	PageEnd           int       `json:"page_end"`
	Text              string    `json:"text"`
	Embedding         []float32 `json:"-"`
	TokenCount        int       `json:"token_count"`
	DisplayStart      *int      `json:"display_start,omitempty"`
	DisplayEnd        *int      `json:"display_end,omitempty"`
	DisplayStartLabel *string   `json:"display_start_label,omitempty"`
	DisplayEndLabel   *string   `json:"display_end_label,omitempty"`
}

// PageLabelMethod records how a page label was obtained
type PageLabelMethod string

const (
	MethodPDFLabel   PageLabelMethod = "pdf_label"
	MethodHeader     PageLabelMethod = "header"
	MethodOffset     PageLabelMethod = "offset"
	MethodManual     PageLabelMethod = "manual"
	MethodRule       PageLabelMethod = "rule"
	MethodAutodetect PageLabelMethod = "autodetect"
)

// DefaultConfidence returns the confidence assigned to entries produced by the method
func (m PageLabelMethod) DefaultConfidence() float64 {
	switch m {
	case MethodPDFLabel, MethodManual:
		return 1.0
	case MethodRule:
		return 0.95
	case MethodAutodetect:
		return 0.90
	case MethodHeader:
		return 0.6
	case MethodOffset:
		return 0.40
	default:
		return 0
	}
}

// Authoritative reports whether the method comes from an explicit admin correction
func (m PageLabelMethod) Authoritative() bool {
	return m == MethodManual || m == MethodRule
}

// Valid reports whether m is one of the known methods
func (m PageLabelMethod) Valid() bool {
	switch m {
	case MethodPDFLabel, MethodHeader, MethodOffset, MethodManual, MethodRule, MethodAutodetect:
		return true
	}
	return false
}

// PageMapEntry maps one physical page of an item to its printed label
type PageMapEntry struct {
	ItemID        int64           `json:"item_id"`
	PDFPage       int             `json:"pdf_page"`
	DisplayLabel  string          `json:"display_label"`
	DisplayNumber *int            `json:"display_number,omitempty"`
	Method        PageLabelMethod `json:"method"`
	Confidence    float64         `json:"confidence"`
}

// Supersedes reports whether incoming should replace existing for the same page.
// Manual and rule writes always land; nothing else displaces them. Otherwise the
// higher (or equal) confidence wins.
func Supersedes(existing, incoming PageMapEntry) bool {
	if incoming.Method.Authoritative() {
		return true
	}
	if existing.Method.Authoritative() {
		return false
	}
	return incoming.Confidence >= existing.Confidence
}

// ScoredChunk is a retrieval candidate with its owning item's citation metadata
type ScoredChunk struct {
	Chunk         Chunk   `json:"chunk"`
	Title         string  `json:"title"`
	Author        string  `json:"author,omitempty"`
	Year          int     `json:"year,omitempty"`
	DisplayOffset int     `json:"display_offset"`
	Similarity    float64 `json:"similarity"`
}

// SourceCitation is one source actually handed to the generator
type SourceCitation struct {
	ItemID     int64   `json:"item_id"`
	ChunkID    int64   `json:"chunk_id"`
	Citation   string  `json:"citation"`
	Similarity float64 `json:"similarity"`
}

type AnswerResult struct {
	Question     string           `json:"question"`
	Answer       string           `json:"answer"`
	Sources      []SourceCitation `json:"sources"`
	Insufficient bool             `json:"insufficient"`
	Model        string           `json:"model,omitempty"`
}

type Footnote struct {
	Number   int    `json:"number"`
	SourceID *int64 `json:"source_id,omitempty"`
	Text     string `json:"text"`
}

type CitationResult struct {
	Markdown     string     `json:"markdown"`
	Footnotes    []Footnote `json:"footnotes"`
	Bibliography []string   `json:"bibliography"`
}

// SplitDetection is the outcome of scanning front matter for the roman/arabic boundary
type SplitDetection struct {
	Found      bool   `json:"found"`
	SplitPage  int    `json:"split_page,omitempty"`
	RomanUntil int    `json:"roman_until,omitempty"`
	Message    string `json:"message"`
}

// AdminResult is returned by every page label admin action
type AdminResult struct {
	Action    string          `json:"action"`
	ItemID    int64           `json:"item_id"`
	Applied   int             `json:"applied"`
	Detection *SplitDetection `json:"detection,omitempty"`
	Message   string          `json:"message"`
}

type VerifySample struct {
	ChunkID      int64  `json:"chunk_id"`
	PageStart    int    `json:"page_start"`
	PageEnd      int    `json:"page_end"`
	OffsetStart  int    `json:"offset_start"`
	OffsetEnd    int    `json:"offset_end"`
	DisplayStart string `json:"display_start,omitempty"`
	DisplayEnd   string `json:"display_end,omitempty"`
	ChunkSnippet string `json:"chunk_snippet"`
	PDFSnippet   string `json:"pdf_snippet,omitempty"`
	PDFSnippet2  string `json:"pdf_snippet_end,omitempty"`
}

type IngestResult struct {
	ItemID      int64           `json:"item_id"`
	Pages       int             `json:"pages"`
	Chunks      int             `json:"chunks"`
	Embedded    int             `json:"embedded"`
	LabelMethod PageLabelMethod `json:"label_method"`
	Duplicate   bool            `json:"duplicate"`
}

// ItemSummary is an item with its chunk and page map counts
type ItemSummary struct {
	Item         Item `json:"item"`
	ChunkCount   int  `json:"chunk_count"`
	PageMapCount int  `json:"page_map_count"`
	MaxPage      int  `json:"max_page"`
}

// SearchHit is a full-text match against chunk text
type SearchHit struct {
	ChunkID   int64  `json:"chunk_id"`
	ItemID    int64  `json:"item_id"`
	Title     string `json:"title"`
	PageStart int    `json:"page_start"`
	PageEnd   int    `json:"page_end"`
	Snippet   string `json:"snippet"`
}

// DocumentData holds raw document bytes and the detected type
type DocumentData struct {
	Data []byte
	Type string
}

// SourceInfo contains information about where a document came from
type SourceInfo struct {
	Path     string `json:"path,omitempty"`
	ZoteroID string `json:"zotero_id,omitempty"`
	URL      string `json:"url,omitempty"`
}
