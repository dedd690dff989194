package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultEmbedModel      = "text-embedding-3-small"
	DefaultOpenAIModel     = "gpt-4o-mini"
	DefaultOpenRouterURL   = "https://openrouter.ai/api/v1"
	DefaultOpenRouterModel = "anthropic/claude-sonnet-4"
)

// EmbeddingConfig configures the embedding client
type EmbeddingConfig struct {
	APIKey     string        `yaml:"-"`
	BaseURL    string        `yaml:"base_url"`
	Model      string        `yaml:"model"`
	BatchSize  int           `yaml:"batch_size"`
	BatchDelay time.Duration `yaml:"batch_delay"`
}

// GenerationConfig configures the answer and citation generators
type GenerationConfig struct {
	// Provider is "claude" (OpenRouter) or "openai"
	Provider         string  `yaml:"provider"`
	OpenAIAPIKey     string  `yaml:"-"`
	OpenAIBaseURL    string  `yaml:"openai_base_url"`
	OpenAIModel      string  `yaml:"openai_model"`
	OpenRouterAPIKey string  `yaml:"-"`
	OpenRouterURL    string  `yaml:"openrouter_base_url"`
	OpenRouterModel  string  `yaml:"openrouter_model"`
	Temperature      float64 `yaml:"temperature"`
	AnswerMaxTokens  int     `yaml:"answer_max_tokens"`
	CiteMaxTokens    int     `yaml:"cite_max_tokens"`
}

// RetrievalConfig holds the diversity selection knobs and similarity floors
type RetrievalConfig struct {
	MaxChunks          int     `yaml:"max_chunks"`
	PerSourceCap       int     `yaml:"per_source_cap"`
	MinDistinctSources int     `yaml:"min_distinct_sources"`
	AnswerFloor        float64 `yaml:"answer_floor"`
	CiteFloor          float64 `yaml:"cite_floor"`
}

type ChunkingConfig struct {
	TargetTokens int `yaml:"target_tokens"`
}

// ExtractionConfig selects the page text backend
type ExtractionConfig struct {
	// Backend is "poppler" or "fitz"
	Backend   string `yaml:"backend"`
	Converter string `yaml:"converter"`
	TempDir   string `yaml:"temp_dir"`
}

type ZoteroConfig struct {
	APIKey    string `yaml:"-"`
	LibraryID string `yaml:"library_id"`
}

type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// Config is the root application configuration
type Config struct {
	DBPath     string           `yaml:"db_path"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Generation GenerationConfig `yaml:"generation"`
	Retrieval  RetrievalConfig  `yaml:"retrieval"`
	Chunking   ChunkingConfig   `yaml:"chunking"`
	Extraction ExtractionConfig `yaml:"extraction"`
	Zotero     ZoteroConfig     `yaml:"zotero"`
	HTTP       HTTPConfig       `yaml:"http"`
}

// Load reads .env (if present), then the YAML file at path (if present), then
// environment overrides, and finally fills defaults. An empty path means
// RESEARCH_CONFIG or ./research.yaml.
func Load(path string) (*Config, error) {
	// A missing .env is fine
	_ = godotenv.Load()

	if path == "" {
		path = os.Getenv("RESEARCH_CONFIG")
	}
	if path == "" {
		path = "research.yaml"
	}

	cfg := &Config{}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	applyEnv(cfg)
	if err := applyDefaults(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns a configuration built only from the environment and defaults
func Default() *Config {
	cfg := &Config{}
	applyEnv(cfg)
	_ = applyDefaults(cfg)
	return cfg
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.Embedding.APIKey = v
		cfg.Generation.OpenAIAPIKey = v
	}
	if v := os.Getenv("OPENAI_BASE_URL"); v != "" {
		cfg.Embedding.BaseURL = v
		cfg.Generation.OpenAIBaseURL = v
	}
	if v := os.Getenv("OPENAI_EMBED_MODEL"); v != "" {
		cfg.Embedding.Model = v
	}
	if v := os.Getenv("OPENROUTER_API_KEY"); v != "" {
		cfg.Generation.OpenRouterAPIKey = v
	}
	if v := os.Getenv("RESEARCH_PROVIDER"); v != "" {
		cfg.Generation.Provider = v
	}
	if v := os.Getenv("RESEARCH_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("RESEARCH_HTTP_ADDR"); v != "" {
		cfg.HTTP.Addr = v
	}
	if v := os.Getenv("RESEARCH_EXTRACTOR"); v != "" {
		cfg.Extraction.Backend = v
	}
	if v := os.Getenv("RESEARCH_EMBED_BATCH_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Embedding.BatchSize = n
		}
	}
	if v := os.Getenv("ZOTERO_API_KEY"); v != "" {
		cfg.Zotero.APIKey = v
	}
	if v := os.Getenv("ZOTERO_LIBRARY_ID"); v != "" {
		cfg.Zotero.LibraryID = v
	}
}

func applyDefaults(cfg *Config) error {
	if cfg.DBPath == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get user home directory: %w", err)
		}
		cfg.DBPath = filepath.Join(homeDir, ".research-library", "library.sqlite")
	}

	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = DefaultEmbedModel
	}
	if cfg.Embedding.BatchSize <= 0 {
		cfg.Embedding.BatchSize = 64
	}
	if cfg.Embedding.BatchDelay <= 0 {
		cfg.Embedding.BatchDelay = 200 * time.Millisecond
	}

	if cfg.Generation.Provider == "" {
		cfg.Generation.Provider = "claude"
	}
	if cfg.Generation.OpenAIModel == "" {
		cfg.Generation.OpenAIModel = DefaultOpenAIModel
	}
	if cfg.Generation.OpenRouterURL == "" {
		cfg.Generation.OpenRouterURL = DefaultOpenRouterURL
	}
	if cfg.Generation.OpenRouterModel == "" {
		cfg.Generation.OpenRouterModel = DefaultOpenRouterModel
	}
	if cfg.Generation.Temperature == 0 {
		cfg.Generation.Temperature = 0.1
	}
	if cfg.Generation.AnswerMaxTokens <= 0 {
		cfg.Generation.AnswerMaxTokens = 2000
	}
	if cfg.Generation.CiteMaxTokens <= 0 {
		cfg.Generation.CiteMaxTokens = 1000
	}

	if cfg.Retrieval.MaxChunks <= 0 {
		cfg.Retrieval.MaxChunks = 8
	}
	if cfg.Retrieval.PerSourceCap <= 0 {
		cfg.Retrieval.PerSourceCap = 3
	}
	if cfg.Retrieval.MinDistinctSources <= 0 {
		cfg.Retrieval.MinDistinctSources = 3
	}
	if cfg.Retrieval.AnswerFloor == 0 {
		cfg.Retrieval.AnswerFloor = 0.25
	}
	if cfg.Retrieval.CiteFloor == 0 {
		cfg.Retrieval.CiteFloor = 0.20
	}

	if cfg.Chunking.TargetTokens <= 0 {
		cfg.Chunking.TargetTokens = 1000
	}

	if cfg.Extraction.Backend == "" {
		cfg.Extraction.Backend = "poppler"
	}
	if cfg.Extraction.Converter == "" {
		cfg.Extraction.Converter = "ebook-convert"
	}

	if cfg.HTTP.Addr == "" {
		cfg.HTTP.Addr = "127.0.0.1:8080"
	}

	return nil
}

// Save writes cfg as YAML, creating parent directories. Credentials are never written.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}
