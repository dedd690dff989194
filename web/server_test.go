package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Epistemic-Technology/research-library/internal/config"
	"github.com/Epistemic-Technology/research-library/internal/llm"
	"github.com/Epistemic-Technology/research-library/internal/logger"
	"github.com/Epistemic-Technology/research-library/internal/operations"
	"github.com/Epistemic-Technology/research-library/internal/storage"
	"github.com/Epistemic-Technology/research-library/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testExtractor struct{}

func (testExtractor) PageCount(ctx context.Context, path string) (int, error) { return 2, nil }

func (testExtractor) PageText(ctx context.Context, path string, page int) (string, error) {
	return fmt.Sprintf("page %d of the test book with some words", page), nil
}

type testEmbedder struct{}

func (testEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{1, 0}, nil
}

func (testEmbedder) EmbedAll(ctx context.Context, texts []string, onBatch func(int, [][]float32) error) error {
	vectors := make([][]float32, len(texts))
	for i := range texts {
		vectors[i] = []float32{1, 0}
	}
	return onBatch(1, vectors)
}

func (testEmbedder) Model() string { return "test-embed" }

type testGenerator struct{}

func (testGenerator) Generate(ctx context.Context, req llm.GenerateRequest) (*llm.Generation, error) {
	return &llm.Generation{Text: "An answer [CTX 0].", Model: "test-model", FinishReason: "stop"}, nil
}

func (testGenerator) Name() string { return "test" }

func newTestServer(t *testing.T, opts ...operations.Option) (*Server, *storage.SQLiteStore) {
	t.Helper()
	store, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "library.sqlite"), logger.NewNoOpLogger())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	cfg := config.Default()
	cfg.Embedding.APIKey = ""
	cfg.Zotero = config.ZoteroConfig{}
	cfg.Extraction.TempDir = t.TempDir()

	base := []operations.Option{
		operations.WithExtractor(testExtractor{}),
		operations.WithNativeLabels(func(string) ([]string, error) { return nil, nil }),
	}
	lib, err := operations.NewLibrary(store, cfg, logger.NewNoOpLogger(), append(base, opts...)...)
	require.NoError(t, err)
	return NewServer(lib, nil, logger.NewNoOpLogger()), store
}

func do(t *testing.T, s *Server, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func createItem(t *testing.T, store *storage.SQLiteStore, pages int) int64 {
	t.Helper()
	ctx := context.Background()
	id, err := store.CreateItem(ctx, &models.Item{Title: "Walden", Author: "Henry David Thoreau", Year: 1854, PageCount: pages})
	require.NoError(t, err)
	var chunks []models.Chunk
	for p := 1; p <= pages; p++ {
		chunks = append(chunks, models.Chunk{PageStart: p, PageEnd: p, Text: fmt.Sprintf("text on page %d", p), TokenCount: 4, Embedding: []float32{1, 0}})
	}
	_, err = store.InsertChunks(ctx, id, chunks)
	require.NoError(t, err)
	return id
}

func TestHealthAndRequestID(t *testing.T) {
	s, _ := newTestServer(t)

	w := do(t, s, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	w = do(t, s, req)
	assert.Equal(t, "abc-123", w.Header().Get(RequestIDHeader))
}

func TestPagesView(t *testing.T) {
	s, store := newTestServer(t)
	id := createItem(t, store, 3)

	w := do(t, s, httptest.NewRequest(http.MethodGet, fmt.Sprintf("/pages?item=%d", id), nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var view operations.PageLabelsView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	assert.Equal(t, 3, view.Seeded)
	assert.Equal(t, 3, view.Total)
	require.Len(t, view.Rows, 3)
	assert.Equal(t, "1", view.Rows[0].DisplayLabel)

	w = do(t, s, httptest.NewRequest(http.MethodGet, "/pages?item=999", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "not_found", decodeError(t, w).ErrorCode)

	w = do(t, s, httptest.NewRequest(http.MethodGet, "/pages?item=abc", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPageActions(t *testing.T) {
	s, store := newTestServer(t)
	id := createItem(t, store, 4)
	ctx := context.Background()

	// JSON submission
	body := fmt.Sprintf(`{"action":"bulk_rule","item_id":%d,"roman_until_pdf":2,"roman_start_at":1,"arabic_start_pdf":3,"arabic_start_number":1}`, id)
	req := httptest.NewRequest(http.MethodPost, "/pages", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := do(t, s, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var result models.AdminResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, 4, result.Applied)

	entries, err := store.GetPageMap(ctx, id)
	require.NoError(t, err)
	labels := make([]string, 0, len(entries))
	for _, e := range entries {
		labels = append(labels, e.DisplayLabel)
	}
	assert.Equal(t, []string{"i", "ii", "1", "2"}, labels)

	// Form submission
	form := strings.NewReader(fmt.Sprintf("action=update_one&item_id=%d&pdf_page=1&display_label=xv&display_number=15", id))
	req = httptest.NewRequest(http.MethodPost, "/pages", form)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w = do(t, s, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	entries, err = store.GetPageMap(ctx, id)
	require.NoError(t, err)
	require.Len(t, entries, 4)
	assert.Equal(t, "xv", entries[0].DisplayLabel)
	require.NotNil(t, entries[0].DisplayNumber)
	assert.Equal(t, 15, *entries[0].DisplayNumber)

	body = fmt.Sprintf(`{"action":"set_offset","item_id":%d,"offset":5}`, id)
	req = httptest.NewRequest(http.MethodPost, "/pages", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w = do(t, s, req)
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())

	req = httptest.NewRequest(http.MethodPost, "/pages", strings.NewReader(fmt.Sprintf(`{"action":"explode","item_id":%d}`, id)))
	req.Header.Set("Content-Type", "application/json")
	w = do(t, s, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_input", decodeError(t, w).ErrorCode)

	req = httptest.NewRequest(http.MethodPost, "/pages", strings.NewReader(`{"action":"seed"}`))
	req.Header.Set("Content-Type", "application/json")
	w = do(t, s, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func multipartIngest(t *testing.T, fields map[string]string, filename string, data []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if data != nil {
		fw, err := mw.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = fw.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/ingest", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestIngestStreamsProgress(t *testing.T) {
	s, store := newTestServer(t, operations.WithEmbedder(testEmbedder{}))

	req := multipartIngest(t, map[string]string{"title": "Walden", "author": "Henry David Thoreau", "year": "1854"},
		"walden.pdf", []byte("%PDF-1.4 uploaded test document"))
	w := do(t, s, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/plain")
	out := w.Body.String()
	assert.Contains(t, out, "Document received.")
	assert.Contains(t, out, "Pages: 2")
	assert.Contains(t, out, "Ingest complete. Item ID: 1")
	assert.NotContains(t, out, "Error:")

	items, err := store.ListItems(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 1854, items[0].Item.Year)
}

func TestIngestErrors(t *testing.T) {
	// No embedding key configured: fails before any progress is written
	s, _ := newTestServer(t)
	req := multipartIngest(t, map[string]string{"title": "Walden"}, "walden.pdf", []byte("%PDF-1.4 test"))
	w := do(t, s, req)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "config_error", decodeError(t, w).ErrorCode)

	s, _ = newTestServer(t, operations.WithEmbedder(testEmbedder{}))
	req = multipartIngest(t, map[string]string{"year": "eighteen"}, "walden.pdf", []byte("%PDF-1.4 test"))
	w = do(t, s, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// A Zotero source without credentials is rejected before anything is streamed
	req = multipartIngest(t, map[string]string{"zotero_id": "ABCD1234"}, "", nil)
	w = do(t, s, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_input", decodeError(t, w).ErrorCode)

	// Unsupported bytes fail after the document is received, so the error is streamed
	req = multipartIngest(t, map[string]string{"title": "Notes"}, "notes.txt", []byte("plain text notes"))
	w = do(t, s, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Error: unsupported document type")
}

func TestAskAndCite(t *testing.T) {
	s, store := newTestServer(t, operations.WithEmbedder(testEmbedder{}), operations.WithGenerator(testGenerator{}))
	createItem(t, store, 2)

	req := httptest.NewRequest(http.MethodPost, "/ask", strings.NewReader(`{"question":"What is on page one?"}`))
	req.Header.Set("Content-Type", "application/json")
	w := do(t, s, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var answer models.AnswerResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &answer))
	assert.NotEmpty(t, answer.Sources)

	req = httptest.NewRequest(http.MethodPost, "/ask", strings.NewReader(`{"question":"  "}`))
	req.Header.Set("Content-Type", "application/json")
	w = do(t, s, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	req = httptest.NewRequest(http.MethodPost, "/cite", strings.NewReader(`{"draft":""}`))
	req.Header.Set("Content-Type", "application/json")
	w = do(t, s, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	req = httptest.NewRequest(http.MethodPost, "/cite", strings.NewReader(`not json`))
	req.Header.Set("Content-Type", "application/json")
	w = do(t, s, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestItemsSearchAndDelete(t *testing.T) {
	s, store := newTestServer(t)
	id := createItem(t, store, 2)

	w := do(t, s, httptest.NewRequest(http.MethodGet, "/items", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Items []models.ItemSummary `json:"items"`
		Count int                  `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Equal(t, 1, list.Count)

	w = do(t, s, httptest.NewRequest(http.MethodGet, fmt.Sprintf("/search?q=page&item=%d", id), nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var hits struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &hits))
	assert.Equal(t, 2, hits.Count)

	w = do(t, s, httptest.NewRequest(http.MethodGet, "/search?q=page&item=x", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, s, httptest.NewRequest(http.MethodDelete, fmt.Sprintf("/items/%d", id), nil))
	require.Equal(t, http.StatusOK, w.Code)

	w = do(t, s, httptest.NewRequest(http.MethodGet, "/items", nil))
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Equal(t, 0, list.Count)
	assert.NotNil(t, list.Items)
}

func TestZoteroRoutesRequireCredentials(t *testing.T) {
	s, _ := newTestServer(t)

	for _, path := range []string{"/zotero/collections", "/zotero/search?q=walden"} {
		w := do(t, s, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusBadRequest, w.Code, path)
		assert.Equal(t, "invalid_input", decodeError(t, w).ErrorCode)
	}
}

func TestRespondWithOperationError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"upstream", fmt.Errorf("failed: %w", &llm.UpstreamError{Provider: "openai", StatusCode: 503, Body: "down"}), http.StatusBadGateway, "upstream_error"},
		{"input", &operations.InputError{Msg: "Question is required."}, http.StatusBadRequest, "invalid_input"},
		{"not found", fmt.Errorf("item 4: %w", storage.ErrNotFound), http.StatusNotFound, "not_found"},
		{"config", &llm.ConfigError{Msg: "Set OPENAI_API_KEY."}, http.StatusInternalServerError, "config_error"},
		{"schema", &storage.SchemaError{Table: "chunks", Column: "embedding"}, http.StatusInternalServerError, "schema_error"},
		{"other", errors.New("disk on fire"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			RespondWithOperationError(c, tt.err)

			assert.Equal(t, tt.status, w.Code)
			resp := decodeError(t, w)
			assert.Equal(t, tt.code, resp.ErrorCode)
			assert.NotEmpty(t, resp.Message)
		})
	}
}
