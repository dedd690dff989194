package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	t.Setenv("RESEARCH_DB_PATH", filepath.Join(t.TempDir(), "lib.sqlite"))
	t.Setenv("OPENAI_EMBED_MODEL", "")
	t.Setenv("RESEARCH_PROVIDER", "")
	t.Setenv("RESEARCH_EMBED_BATCH_SIZE", "")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Embedding.BatchSize != 64 {
		t.Errorf("BatchSize = %d, want 64", cfg.Embedding.BatchSize)
	}
	if cfg.Embedding.BatchDelay != 200*time.Millisecond {
		t.Errorf("BatchDelay = %v, want 200ms", cfg.Embedding.BatchDelay)
	}
	if cfg.Embedding.Model != DefaultEmbedModel {
		t.Errorf("Model = %q, want %q", cfg.Embedding.Model, DefaultEmbedModel)
	}
	if cfg.Retrieval.AnswerFloor != 0.25 || cfg.Retrieval.CiteFloor != 0.20 {
		t.Errorf("floors = %v/%v, want 0.25/0.20", cfg.Retrieval.AnswerFloor, cfg.Retrieval.CiteFloor)
	}
	if cfg.Retrieval.PerSourceCap != 3 || cfg.Retrieval.MinDistinctSources != 3 || cfg.Retrieval.MaxChunks != 8 {
		t.Errorf("unexpected retrieval defaults: %+v", cfg.Retrieval)
	}
	if cfg.Generation.Provider != "claude" {
		t.Errorf("Provider = %q, want claude", cfg.Generation.Provider)
	}
}

func TestLoadYAMLThenEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "research.yaml")
	yamlBody := `
db_path: /tmp/from-yaml.sqlite
embedding:
  model: text-embedding-3-large
  batch_size: 16
  batch_delay: 50ms
retrieval:
  per_source_cap: 2
generation:
  provider: openai
`
	if err := os.WriteFile(path, []byte(yamlBody), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("RESEARCH_DB_PATH", "")
	t.Setenv("OPENAI_EMBED_MODEL", "")
	t.Setenv("RESEARCH_PROVIDER", "")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.DBPath != "/tmp/from-yaml.sqlite" {
		t.Errorf("DBPath = %q", cfg.DBPath)
	}
	if cfg.Embedding.Model != "text-embedding-3-large" || cfg.Embedding.BatchSize != 16 {
		t.Errorf("embedding = %+v", cfg.Embedding)
	}
	if cfg.Embedding.BatchDelay != 50*time.Millisecond {
		t.Errorf("BatchDelay = %v", cfg.Embedding.BatchDelay)
	}
	if cfg.Retrieval.PerSourceCap != 2 {
		t.Errorf("PerSourceCap = %d", cfg.Retrieval.PerSourceCap)
	}
	if cfg.Generation.Provider != "openai" {
		t.Errorf("Provider = %q", cfg.Generation.Provider)
	}
	if cfg.Embedding.APIKey != "sk-test" || cfg.Generation.OpenAIAPIKey != "sk-test" {
		t.Error("OPENAI_API_KEY not applied")
	}

	t.Setenv("OPENAI_EMBED_MODEL", "custom-embed")
	cfg, err = Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Embedding.Model != "custom-embed" {
		t.Errorf("env override not applied, got %q", cfg.Embedding.Model)
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("embedding: [unclosed"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestSaveRoundTripOmitsSecrets(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "research.yaml")
	cfg := Default()
	cfg.Embedding.APIKey = "sk-secret"
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "sk-secret") {
		t.Error("API key written to config file")
	}
}
