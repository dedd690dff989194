package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/Epistemic-Technology/research-library/internal/config"
	"github.com/Epistemic-Technology/research-library/internal/logger"
)

type embeddingRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
}

type embeddingDatum struct {
	Object    string    `json:"object"`
	Index     int       `json:"index"`
	Embedding []float64 `json:"embedding"`
}

// writeEmbeddings answers with one vector per input, [len(text), index],
// listed in reverse order
func writeEmbeddings(w http.ResponseWriter, req embeddingRequest) {
	data := make([]embeddingDatum, 0, len(req.Input))
	for i := len(req.Input) - 1; i >= 0; i-- {
		data = append(data, embeddingDatum{
			Object:    "embedding",
			Index:     i,
			Embedding: []float64{float64(len(req.Input[i])), float64(i)},
		})
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"object": "list",
		"data":   data,
		"model":  req.Model,
		"usage":  map[string]int{"prompt_tokens": 1, "total_tokens": 1},
	})
}

func newTestEmbeddingClient(t *testing.T, handler http.HandlerFunc, batchSize int) *EmbeddingClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewEmbeddingClient(config.EmbeddingConfig{
		APIKey:    "test-key",
		BaseURL:   server.URL + "/v1",
		Model:     "test-embed",
		BatchSize: batchSize,
	}, logger.NewNoOpLogger())
	if err != nil {
		t.Fatalf("NewEmbeddingClient failed: %v", err)
	}
	client.retry = fastRetry
	return client
}

func decodeEmbeddingRequest(t *testing.T, r *http.Request) embeddingRequest {
	t.Helper()
	var req embeddingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		t.Errorf("failed to decode request: %v", err)
	}
	return req
}

func TestNewEmbeddingClient_MissingKey(t *testing.T) {
	_, err := NewEmbeddingClient(config.EmbeddingConfig{}, logger.NewNoOpLogger())
	if err == nil {
		t.Fatal("Expected error for missing API key")
	}
	if !IsConfigError(err) {
		t.Errorf("Expected config error, got %T", err)
	}
	if err.Error() != "Set OPENAI_API_KEY for embeddings." {
		t.Errorf("Unexpected message: %q", err.Error())
	}
}

func TestEmbedBatch_OrdersByIndex(t *testing.T) {
	client := newTestEmbeddingClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/embeddings" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Unexpected Authorization header %q", got)
		}
		req := decodeEmbeddingRequest(t, r)
		if req.Model != "test-embed" {
			t.Errorf("Expected model test-embed, got %s", req.Model)
		}
		writeEmbeddings(w, req)
	}, 64)

	vectors, err := client.EmbedBatch(context.Background(), []string{"a", "bb", "ccc"})
	if err != nil {
		t.Fatalf("EmbedBatch failed: %v", err)
	}
	if len(vectors) != 3 {
		t.Fatalf("Expected 3 vectors, got %d", len(vectors))
	}
	for i, v := range vectors {
		if int(v[0]) != i+1 || int(v[1]) != i {
			t.Errorf("vector %d = %v, want [%d %d]", i, v, i+1, i)
		}
	}
}

func TestEmbedBatch_CountMismatch(t *testing.T) {
	client := newTestEmbeddingClient(t, func(w http.ResponseWriter, r *http.Request) {
		req := decodeEmbeddingRequest(t, r)
		req.Input = req.Input[:1]
		writeEmbeddings(w, req)
	}, 64)

	_, err := client.EmbedBatch(context.Background(), []string{"a", "b"})
	if err == nil {
		t.Fatal("Expected error for vector count mismatch")
	}
}

func TestEmbedBatch_RetriesRateLimit(t *testing.T) {
	var calls atomic.Int32
	client := newTestEmbeddingClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error":{"message":"slow down","type":"rate_limit_exceeded"}}`))
			return
		}
		writeEmbeddings(w, decodeEmbeddingRequest(t, r))
	}, 64)

	vec, err := client.Embed(context.Background(), "query")
	if err != nil {
		t.Fatalf("Embed failed after retry: %v", err)
	}
	if len(vec) != 2 {
		t.Errorf("Expected 2 dimensions, got %d", len(vec))
	}
	if calls.Load() != 2 {
		t.Errorf("Expected 2 calls, got %d", calls.Load())
	}
}

func TestEmbedBatch_UpstreamError(t *testing.T) {
	client := newTestEmbeddingClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"message":"input too long","type":"invalid_request_error"}}`))
	}, 64)

	_, err := client.Embed(context.Background(), "query")
	if err == nil {
		t.Fatal("Expected upstream error")
	}
	upstream, ok := AsUpstreamError(err)
	if !ok {
		t.Fatalf("Expected *UpstreamError, got %T: %v", err, err)
	}
	if upstream.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", upstream.StatusCode)
	}
	if !strings.Contains(upstream.Body, "input too long") {
		t.Errorf("Expected body to carry upstream message, got %q", upstream.Body)
	}
	if !strings.HasPrefix(err.Error(), "embeddings API error (400)") {
		t.Errorf("Unexpected error text %q", err.Error())
	}
}

func TestEmbedAll_Batches(t *testing.T) {
	var sizes []int
	client := newTestEmbeddingClient(t, func(w http.ResponseWriter, r *http.Request) {
		req := decodeEmbeddingRequest(t, r)
		sizes = append(sizes, len(req.Input))
		writeEmbeddings(w, req)
	}, 2)

	texts := []string{"a", "bb", "ccc", "dddd", "eeeee"}
	var batches []int
	var all [][]float32
	err := client.EmbedAll(context.Background(), texts, func(batch int, vectors [][]float32) error {
		batches = append(batches, batch)
		all = append(all, vectors...)
		return nil
	})
	if err != nil {
		t.Fatalf("EmbedAll failed: %v", err)
	}

	if len(batches) != 3 || batches[0] != 1 || batches[2] != 3 {
		t.Errorf("Unexpected batch numbers %v", batches)
	}
	if len(sizes) != 3 || sizes[0] != 2 || sizes[1] != 2 || sizes[2] != 1 {
		t.Errorf("Unexpected request sizes %v", sizes)
	}
	for i, v := range all {
		if int(v[0]) != len(texts[i]) {
			t.Errorf("vector %d belongs to the wrong text: %v", i, v)
		}
	}
}

func TestEmbedAll_AbortsOnFailure(t *testing.T) {
	var calls atomic.Int32
	client := newTestEmbeddingClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 2 {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"error":{"message":"boom"}}`))
			return
		}
		writeEmbeddings(w, decodeEmbeddingRequest(t, r))
	}, 1)

	delivered := 0
	err := client.EmbedAll(context.Background(), []string{"a", "b", "c"}, func(batch int, vectors [][]float32) error {
		delivered++
		return nil
	})
	if err == nil {
		t.Fatal("Expected error from second batch")
	}
	if delivered != 1 {
		t.Errorf("Expected 1 delivered batch, got %d", delivered)
	}
	if calls.Load() != 2 {
		t.Errorf("Expected no requests after the failure, got %d calls", calls.Load())
	}

	callbackErr := errors.New("store full")
	err = client.EmbedAll(context.Background(), []string{"x"}, func(int, [][]float32) error {
		return callbackErr
	})
	if !errors.Is(err, callbackErr) {
		t.Errorf("Expected callback error, got %v", err)
	}
}
