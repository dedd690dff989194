package operations

import (
	"context"
	"sync"

	"github.com/Epistemic-Technology/research-library/internal/config"
	"github.com/Epistemic-Technology/research-library/internal/documents"
	"github.com/Epistemic-Technology/research-library/internal/llm"
	"github.com/Epistemic-Technology/research-library/internal/logger"
	"github.com/Epistemic-Technology/research-library/internal/storage"
)

// InputError reports a missing or malformed request parameter
type InputError struct {
	Msg string
}

func (e *InputError) Error() string {
	return e.Msg
}

// Converter turns a non-PDF document into a PDF on disk
type Converter interface {
	Convert(ctx context.Context, path string) (*documents.Converted, error)
}

// Library ties the store, extractors and model clients together. Every
// front end (MCP tools, admin HTTP, CLI) drives the same Library.
type Library struct {
	store        storage.Store
	cfg          *config.Config
	log          logger.Logger
	extractor    documents.Extractor
	converter    Converter
	nativeLabels func(path string) ([]string, error)

	mu         sync.Mutex
	embedder   llm.Embedder
	generators map[string]llm.Generator
	newGen     func(provider string) (llm.Generator, error)
}

// Option customises a Library
type Option func(*Library)

// WithEmbedder replaces the configured embedding client
func WithEmbedder(e llm.Embedder) Option {
	return func(l *Library) { l.embedder = e }
}

// WithGenerator makes every provider resolve to g
func WithGenerator(g llm.Generator) Option {
	return func(l *Library) {
		l.newGen = func(string) (llm.Generator, error) { return g, nil }
	}
}

// WithExtractor replaces the configured page extractor
func WithExtractor(ex documents.Extractor) Option {
	return func(l *Library) { l.extractor = ex }
}

// WithConverter replaces the EPUB converter
func WithConverter(c Converter) Option {
	return func(l *Library) { l.converter = c }
}

// WithNativeLabels replaces the PDF /PageLabels reader
func WithNativeLabels(fn func(path string) ([]string, error)) Option {
	return func(l *Library) { l.nativeLabels = fn }
}

// NewLibrary builds a Library over store. Model clients are created lazily so
// that admin commands work without API keys.
func NewLibrary(store storage.Store, cfg *config.Config, log logger.Logger, opts ...Option) (*Library, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	l := &Library{
		store:        store,
		cfg:          cfg,
		log:          log.With("operations"),
		converter:    &documents.EPUBConverter{Tool: cfg.Extraction.Converter, TempDir: cfg.Extraction.TempDir},
		nativeLabels: documents.NativeLabels,
		generators:   make(map[string]llm.Generator),
	}
	l.newGen = func(provider string) (llm.Generator, error) {
		return llm.NewGenerator(cfg.Generation, provider, log)
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.extractor == nil {
		ex, err := documents.NewExtractor(cfg.Extraction.Backend)
		if err != nil {
			return nil, err
		}
		l.extractor = ex
	}
	return l, nil
}

// Store returns the underlying store
func (l *Library) Store() storage.Store {
	return l.store
}

// Config returns the active configuration
func (l *Library) Config() *config.Config {
	return l.cfg
}

// Embedder returns the embedding client, creating it on first use
func (l *Library) Embedder() (llm.Embedder, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.embedder != nil {
		return l.embedder, nil
	}
	e, err := llm.NewEmbeddingClient(l.cfg.Embedding, l.log)
	if err != nil {
		return nil, err
	}
	l.embedder = e
	return e, nil
}

// Generator returns the generator for provider (empty means the configured
// default), creating it on first use
func (l *Library) Generator(provider string) (llm.Generator, error) {
	if provider == "" {
		provider = l.cfg.Generation.Provider
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if g, ok := l.generators[provider]; ok {
		return g, nil
	}
	g, err := l.newGen(provider)
	if err != nil {
		return nil, err
	}
	l.generators[provider] = g
	return g, nil
}
