package web

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Epistemic-Technology/research-library/internal/operations"
	"github.com/Epistemic-Technology/research-library/internal/pagelabels"
	"github.com/Epistemic-Technology/research-library/models"
)

// maxUploadBytes bounds a single ingest upload
const maxUploadBytes = 512 << 20

func parseItemID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, &operations.InputError{Msg: "A positive item ID is required."}
	}
	return id, nil
}

// parseItemIDs reads repeated or comma-separated item query values
func parseItemIDs(values []string) ([]int64, error) {
	var ids []int64
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if strings.TrimSpace(part) == "" {
				continue
			}
			id, err := parseItemID(part)
			if err != nil {
				return nil, err
			}
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (s *Server) handleGetPages(c *gin.Context) {
	itemID, err := parseItemID(c.Query("item"))
	if err != nil {
		RespondWithOperationError(c, err)
		return
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))

	view, err := s.lib.PageLabels(c.Request.Context(), itemID, page)
	if err != nil {
		RespondWithOperationError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// PageActionRequest is the body of POST /pages, as a form or JSON
type PageActionRequest struct {
	Action string `form:"action" json:"action"`
	ItemID int64  `form:"item_id" json:"item_id"`

	// update_one
	PDFPage       int    `form:"pdf_page" json:"pdf_page"`
	DisplayLabel  string `form:"display_label" json:"display_label"`
	DisplayNumber *int   `form:"display_number" json:"display_number"`

	// bulk_rule
	RomanUntilPDF     int    `form:"roman_until_pdf" json:"roman_until_pdf"`
	RomanStartAt      int    `form:"roman_start_at" json:"roman_start_at"`
	RomanUpper        bool   `form:"roman_upper" json:"roman_upper"`
	RomanPrefix       string `form:"roman_prefix" json:"roman_prefix"`
	ArabicStartPDF    int    `form:"arabic_start_pdf" json:"arabic_start_pdf"`
	ArabicStartNumber int    `form:"arabic_start_number" json:"arabic_start_number"`
	ArabicPrefix      string `form:"arabic_prefix" json:"arabic_prefix"`

	// autodetect writes only when confirmed
	Confirm bool `form:"confirm" json:"confirm"`

	// set_offset
	Offset int `form:"offset" json:"offset"`
}

func (s *Server) handlePostPages(c *gin.Context) {
	var req PageActionRequest
	if err := c.ShouldBind(&req); err != nil {
		RespondWithBadRequest(c, "Invalid request data: "+err.Error())
		return
	}
	if req.ItemID <= 0 {
		RespondWithBadRequest(c, "A positive item ID is required.")
		return
	}

	ctx := c.Request.Context()
	var (
		result *models.AdminResult
		err    error
	)
	switch req.Action {
	case "update_one":
		result, err = s.lib.UpdateOne(ctx, req.ItemID, req.PDFPage, req.DisplayLabel, req.DisplayNumber)
	case "bulk_rule":
		result, err = s.lib.BulkRule(ctx, req.ItemID, pagelabels.RuleParams{
			RomanUntilPDF:     req.RomanUntilPDF,
			RomanStartAt:      req.RomanStartAt,
			RomanUpper:        req.RomanUpper,
			RomanPrefix:       req.RomanPrefix,
			ArabicStartPDF:    req.ArabicStartPDF,
			ArabicStartNumber: req.ArabicStartNumber,
			ArabicPrefix:      req.ArabicPrefix,
		})
	case "autodetect":
		result, err = s.lib.Autodetect(ctx, req.ItemID, req.Confirm)
	case "seed":
		result, err = s.lib.SeedIfEmpty(ctx, req.ItemID)
	case "set_offset":
		result, err = s.lib.SetOffset(ctx, req.ItemID, req.Offset)
	default:
		RespondWithBadRequest(c, fmt.Sprintf("Unknown action %q.", req.Action))
		return
	}
	if err != nil {
		RespondWithOperationError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// handleIngest accepts a multipart upload (field "file") or a path, URL or
// Zotero ID, and streams one progress line per stage as plain text
func (s *Server) handleIngest(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadBytes)

	params := operations.IngestParams{
		Source: models.SourceInfo{
			Path:     c.PostForm("path"),
			ZoteroID: c.PostForm("zotero_id"),
			URL:      c.PostForm("url"),
		},
		Title:  c.PostForm("title"),
		Author: c.PostForm("author"),
		Force:  c.PostForm("force") == "true" || c.PostForm("force") == "1",
	}
	if v := c.PostForm("year"); v != "" {
		year, err := strconv.Atoi(v)
		if err != nil {
			RespondWithBadRequest(c, "year must be a number.")
			return
		}
		params.Year = year
	}
	if v := c.PostForm("display_offset"); v != "" {
		offset, err := strconv.Atoi(v)
		if err != nil {
			RespondWithBadRequest(c, "display_offset must be a number.")
			return
		}
		params.DisplayOffset = offset
	}
	if v := c.PostForm("library_book_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			RespondWithBadRequest(c, "library_book_id must be a number.")
			return
		}
		params.LibraryBookID = &id
	}

	if fh, err := c.FormFile("file"); err == nil {
		f, err := fh.Open()
		if err != nil {
			RespondWithBadRequest(c, "Could not read the uploaded file.")
			return
		}
		params.Data, err = io.ReadAll(f)
		f.Close()
		if err != nil {
			RespondWithBadRequest(c, "Could not read the uploaded file.")
			return
		}
		params.Filename = fh.Filename
	}

	// Nothing is written until the first progress line, so early failures
	// still get a JSON error response
	started := false
	params.Progress = func(line string) {
		if !started {
			c.Header("Content-Type", "text/plain; charset=utf-8")
			c.Header("X-Content-Type-Options", "nosniff")
			c.Status(http.StatusOK)
			started = true
		}
		fmt.Fprintln(c.Writer, line)
		c.Writer.Flush()
	}

	_, err := s.lib.Ingest(c.Request.Context(), params)
	if err == nil {
		return
	}
	s.log.Error("Ingest failed (request_id=%s): %v", GetRequestID(c), err)
	if started {
		fmt.Fprintf(c.Writer, "Error: %v\n", err)
		c.Writer.Flush()
		return
	}
	RespondWithOperationError(c, err)
}

// AskRequest is the body of POST /ask
type AskRequest struct {
	Question     string  `json:"question"`
	ItemIDs      []int64 `json:"item_ids"`
	MaxChunks    int     `json:"max_chunks"`
	PerSourceCap int     `json:"per_source_cap"`
	MinDistinct  int     `json:"min_distinct"`
	Provider     string  `json:"provider"`
	Model        string  `json:"model"`
}

func (s *Server) handleAsk(c *gin.Context) {
	var req AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondWithBadRequest(c, "Invalid request data: "+err.Error())
		return
	}
	result, err := s.lib.Ask(c.Request.Context(), operations.AskParams{
		Question:     req.Question,
		ItemIDs:      req.ItemIDs,
		MaxChunks:    req.MaxChunks,
		PerSourceCap: req.PerSourceCap,
		MinDistinct:  req.MinDistinct,
		Provider:     req.Provider,
		Model:        req.Model,
	})
	if err != nil {
		RespondWithOperationError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// CiteRequest is the body of POST /cite
type CiteRequest struct {
	Draft     string  `json:"draft"`
	ItemIDs   []int64 `json:"item_ids"`
	MaxChunks int     `json:"max_chunks"`
	Provider  string  `json:"provider"`
	Model     string  `json:"model"`
}

func (s *Server) handleCite(c *gin.Context) {
	var req CiteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondWithBadRequest(c, "Invalid request data: "+err.Error())
		return
	}
	result, err := s.lib.Cite(c.Request.Context(), operations.CiteParams{
		Draft:     req.Draft,
		ItemIDs:   req.ItemIDs,
		MaxChunks: req.MaxChunks,
		Provider:  req.Provider,
		Model:     req.Model,
	})
	if err != nil {
		RespondWithOperationError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleVerify(c *gin.Context) {
	itemID, err := parseItemID(c.Query("item"))
	if err != nil {
		RespondWithOperationError(c, err)
		return
	}
	n, _ := strconv.Atoi(c.DefaultQuery("n", "5"))

	samples, err := s.lib.Verify(c.Request.Context(), operations.VerifyParams{ItemID: itemID, N: n, PDFPath: c.Query("pdf")})
	if err != nil {
		RespondWithOperationError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"item_id": itemID, "samples": samples})
}

func (s *Server) handleListItems(c *gin.Context) {
	items, err := s.lib.ListItems(c.Request.Context())
	if err != nil {
		RespondWithOperationError(c, err)
		return
	}
	if items == nil {
		items = []models.ItemSummary{}
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "count": len(items)})
}

func (s *Server) handleDeleteItem(c *gin.Context) {
	itemID, err := parseItemID(c.Param("id"))
	if err != nil {
		RespondWithOperationError(c, err)
		return
	}
	if err := s.lib.DeleteItem(c.Request.Context(), itemID); err != nil {
		RespondWithOperationError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"item_id": itemID, "message": fmt.Sprintf("Deleted item %d.", itemID)})
}

func (s *Server) handleSearch(c *gin.Context) {
	itemIDs, err := parseItemIDs(c.QueryArray("item"))
	if err != nil {
		RespondWithOperationError(c, err)
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	hits, err := s.lib.Search(c.Request.Context(), c.Query("q"), itemIDs, limit)
	if err != nil {
		RespondWithOperationError(c, err)
		return
	}
	if hits == nil {
		hits = []models.SearchHit{}
	}
	c.JSON(http.StatusOK, gin.H{"hits": hits, "count": len(hits)})
}

func (s *Server) handleZoteroSearch(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "25"))
	items, err := s.lib.SearchZotero(c.Request.Context(), operations.ZoteroSearchParams{
		Query:      c.Query("q"),
		ItemTypes:  c.QueryArray("type"),
		Collection: c.Query("collection"),
		Limit:      limit,
	})
	if err != nil {
		RespondWithOperationError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "count": len(items)})
}

func (s *Server) handleZoteroCollections(c *gin.Context) {
	collections, err := s.lib.ZoteroCollections(c.Request.Context())
	if err != nil {
		RespondWithOperationError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"collections": collections, "count": len(collections)})
}
