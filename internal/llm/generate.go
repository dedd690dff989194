package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/responses"
	"github.com/openai/openai-go/v3/shared"
	"github.com/sony/gobreaker"

	"github.com/Epistemic-Technology/research-library/internal/config"
	"github.com/Epistemic-Technology/research-library/internal/logger"
)

// GenerateRequest is one prompt for a text generator
type GenerateRequest struct {
	// Model overrides the generator's default model
	Model       string
	System      string
	User        string
	Temperature float64
	MaxTokens   int
	// JSON asks the provider for a single JSON object
	JSON bool
}

// Generation is a completed response
type Generation struct {
	Text         string
	Model        string
	FinishReason string
	InputTokens  int64
	OutputTokens int64
}

// Truncated reports whether generation stopped at the token limit
func (g *Generation) Truncated() bool {
	return g.FinishReason == "length"
}

// Generator produces text from a system and user prompt
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (*Generation, error)
	Name() string
}

// NewGenerator returns the generator for provider, or cfg.Provider when
// provider is empty. "claude" and "openrouter" use OpenRouter.
func NewGenerator(cfg config.GenerationConfig, provider string, log logger.Logger) (Generator, error) {
	if provider == "" {
		provider = cfg.Provider
	}
	switch strings.ToLower(provider) {
	case "", "claude", "openrouter":
		if cfg.OpenRouterAPIKey == "" {
			return nil, &ConfigError{Msg: "Set OPENROUTER_API_KEY when using Claude."}
		}
		return NewOpenRouterGenerator(cfg, log), nil
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			return nil, &ConfigError{Msg: "Set OPENAI_API_KEY."}
		}
		return NewOpenAIGenerator(cfg, log), nil
	default:
		return nil, &ConfigError{Msg: fmt.Sprintf("unknown generation provider %q", provider)}
	}
}

func newBreaker(name string, log logger.Logger) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 5,
		Interval:    10 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Warn("Circuit breaker %s: %s -> %s", name, from, to)
		},
	})
}

// OpenAIGenerator generates with the OpenAI Responses API
type OpenAIGenerator struct {
	client  openai.Client
	model   string
	breaker *gobreaker.CircuitBreaker
	retry   RetryPolicy
	log     logger.Logger
}

// NewOpenAIGenerator builds a Responses API generator. The key is not checked here.
func NewOpenAIGenerator(cfg config.GenerationConfig, log logger.Logger) *OpenAIGenerator {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.OpenAIAPIKey), option.WithMaxRetries(0)}
	if cfg.OpenAIBaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.OpenAIBaseURL))
	}
	model := cfg.OpenAIModel
	if model == "" {
		model = config.DefaultOpenAIModel
	}
	log = log.With("openai")
	return &OpenAIGenerator{
		client:  openai.NewClient(opts...),
		model:   model,
		breaker: newBreaker("OpenAIResponses", log),
		retry:   DefaultRetryPolicy,
		log:     log,
	}
}

func (g *OpenAIGenerator) Name() string {
	return "openai"
}

func (g *OpenAIGenerator) Generate(ctx context.Context, req GenerateRequest) (*Generation, error) {
	model := req.Model
	if model == "" {
		model = g.model
	}

	params := responses.ResponseNewParams{
		Model: shared.ResponsesModel(model),
		Input: responses.ResponseNewParamsInputUnion{OfString: openai.String(req.User)},
	}
	if req.System != "" {
		params.Instructions = openai.String(req.System)
	}
	if req.Temperature > 0 {
		params.Temperature = openai.Float(req.Temperature)
	}
	if req.MaxTokens > 0 {
		params.MaxOutputTokens = openai.Int(int64(req.MaxTokens))
	}
	if req.JSON {
		params.Text = responses.ResponseTextConfigParam{
			Format: responses.ResponseFormatTextConfigUnionParam{
				OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
			},
		}
	}

	resp, err := execute(ctx, g.breaker, g.retry, g.log, func(ctx context.Context) (*responses.Response, error) {
		resp, err := g.client.Responses.New(ctx, params)
		return resp, toUpstreamError("openai", err)
	})
	if err != nil {
		return nil, err
	}

	gen := &Generation{
		Text:         resp.OutputText(),
		Model:        string(resp.Model),
		FinishReason: "stop",
		InputTokens:  resp.Usage.InputTokens,
		OutputTokens: resp.Usage.OutputTokens,
	}
	if string(resp.Status) == "incomplete" {
		gen.FinishReason = string(resp.IncompleteDetails.Reason)
		if gen.FinishReason == "max_output_tokens" {
			gen.FinishReason = "length"
		}
	}
	logUsage(g.log, gen)
	return gen, nil
}

// OpenRouterGenerator generates with OpenRouter's OpenAI-compatible chat
// completions endpoint
type OpenRouterGenerator struct {
	client  openai.Client
	model   string
	breaker *gobreaker.CircuitBreaker
	retry   RetryPolicy
	log     logger.Logger
}

// NewOpenRouterGenerator builds a chat completions generator pointed at OpenRouter
func NewOpenRouterGenerator(cfg config.GenerationConfig, log logger.Logger) *OpenRouterGenerator {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	baseURL := cfg.OpenRouterURL
	if baseURL == "" {
		baseURL = config.DefaultOpenRouterURL
	}
	model := cfg.OpenRouterModel
	if model == "" {
		model = config.DefaultOpenRouterModel
	}
	log = log.With("openrouter")
	return &OpenRouterGenerator{
		client: openai.NewClient(
			option.WithAPIKey(cfg.OpenRouterAPIKey),
			option.WithBaseURL(baseURL),
			option.WithMaxRetries(0),
		),
		model:   model,
		breaker: newBreaker("OpenRouterChat", log),
		retry:   DefaultRetryPolicy,
		log:     log,
	}
}

func (g *OpenRouterGenerator) Name() string {
	return "openrouter"
}

func (g *OpenRouterGenerator) Generate(ctx context.Context, req GenerateRequest) (*Generation, error) {
	model := req.Model
	if model == "" {
		model = g.model
	}

	var messages []openai.ChatCompletionMessageParamUnion
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	messages = append(messages, openai.UserMessage(req.User))

	params := openai.ChatCompletionNewParams{
		Messages: messages,
		Model:    shared.ChatModel(model),
	}
	if req.Temperature > 0 {
		params.Temperature = openai.Float(req.Temperature)
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}
	if req.JSON {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		}
	}

	resp, err := execute(ctx, g.breaker, g.retry, g.log, func(ctx context.Context) (*openai.ChatCompletion, error) {
		resp, err := g.client.Chat.Completions.New(ctx, params)
		return resp, toUpstreamError("openrouter", err)
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("openrouter returned no choices")
	}

	gen := &Generation{
		Text:         resp.Choices[0].Message.Content,
		Model:        resp.Model,
		FinishReason: string(resp.Choices[0].FinishReason),
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
	}
	logUsage(g.log, gen)
	return gen, nil
}

// execute runs fn through the circuit breaker with 429 retries inside it
func execute[T any](ctx context.Context, cb *gobreaker.CircuitBreaker, policy RetryPolicy, log logger.Logger, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	result, err := cb.Execute(func() (interface{}, error) {
		return RateLimitedCall(ctx, policy, log, fn)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return zero, fmt.Errorf("generation temporarily unavailable: %w", err)
		}
		return zero, err
	}
	return result.(T), nil
}

func logUsage(log logger.Logger, gen *Generation) {
	log.Info("Generation finished: model=%s finish=%s input_tokens=%d output_tokens=%d",
		gen.Model, gen.FinishReason, gen.InputTokens, gen.OutputTokens)
	if gen.Truncated() {
		log.Warn("Generation truncated at the token limit (model=%s)", gen.Model)
	}
}
