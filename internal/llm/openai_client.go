// ABOUTME: OpenAI-compatible client for embeddings and answer generation
// ABOUTME: Targets Ollama's /v1 API by default; any OpenAI-compatible server works
package llm

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/MichaelShoemaker/history-of-rome-podcast-llm/internal/core"
	"github.com/MichaelShoemaker/history-of-rome-podcast-llm/internal/models"
	"github.com/MichaelShoemaker/history-of-rome-podcast-llm/internal/util"
	openai "github.com/sashabaranov/go-openai"
)

const (
	// DefaultChatModel is the default model for answer generation
	DefaultChatModel = "llama3.1:8b"
	// DefaultEmbeddingModel is the default model for embeddings
	DefaultEmbeddingModel = "all-minilm"
	// placeholderAPIKey satisfies the client when the server ignores keys (Ollama)
	placeholderAPIKey = "ollama"
)

// ClientConfig holds configuration for the OpenAI-compatible client
type ClientConfig struct {
	APIKey         string
	BaseURL        string
	ChatModel      string
	EmbeddingModel string
	Temperature    float32
	TopP           float32
	MaxTokens      int
	Timeout        time.Duration
	MaxRetries     int
	RetryDelay     time.Duration
	// Service names the backend in connectivity errors
	Service string
}

// DefaultConfig returns the default client configuration for an Ollama base URL
func DefaultConfig(baseURL string) *ClientConfig {
	return &ClientConfig{
		BaseURL:        baseURL,
		ChatModel:      DefaultChatModel,
		EmbeddingModel: DefaultEmbeddingModel,
		Temperature:    0.7,
		TopP:           0.9,
		MaxTokens:      1000,
		Timeout:        120 * time.Second,
		RetryDelay:     2 * time.Second,
		Service:        "ollama",
	}
}

// OpenAIClient wraps the go-openai client with timeouts and optional retries
type OpenAIClient struct {
	client         *openai.Client
	chatModel      string
	embeddingModel string
	temperature    float32
	topP           float32
	maxTokens      int
	timeout        time.Duration
	maxRetries     int
	retryDelay     time.Duration
	service        string
}

// NewOpenAIClientWithConfig creates a client. An API key is required only
// when no base URL is given, i.e. when talking to the hosted OpenAI API.
func NewOpenAIClientWithConfig(config *ClientConfig) (*OpenAIClient, error) {
	apiKey := config.APIKey
	if apiKey == "" {
		if config.BaseURL == "" {
			return nil, errors.New("OpenAI API key is required")
		}
		apiKey = placeholderAPIKey
	}

	clientConfig := openai.DefaultConfig(apiKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}

	service := config.Service
	if service == "" {
		service = "openai"
	}

	return &OpenAIClient{
		client:         openai.NewClientWithConfig(clientConfig),
		chatModel:      config.ChatModel,
		embeddingModel: config.EmbeddingModel,
		temperature:    config.Temperature,
		topP:           config.TopP,
		maxTokens:      config.MaxTokens,
		timeout:        config.Timeout,
		maxRetries:     config.MaxRetries,
		retryDelay:     config.RetryDelay,
		service:        service,
	}, nil
}

func (c *OpenAIClient) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

// classify marks transport failures as connectivity errors; API errors
// (unknown model, bad request) pass through unchanged
func (c *OpenAIClient) classify(err error) error {
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	if errors.As(err, &apiErr) || errors.As(err, &reqErr) {
		return err
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return &core.ConnectivityError{Service: c.service, Err: err}
}

// GenerateEmbeddings embeds a batch of texts, preserving input order
func (c *OpenAIClient) GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	var vectors [][]float32
	result := util.Retry(ctx, util.RetryPolicy{
		MaxAttempts: c.maxRetries + 1,
		Delay:       c.retryDelay,
		Backoff:     true,
	}, func(ctx context.Context, attempt int) error {
		reqCtx, cancel := c.withTimeout(ctx)
		resp, err := c.client.CreateEmbeddings(reqCtx, openai.EmbeddingRequestStrings{
			Input: texts,
			Model: openai.EmbeddingModel(c.embeddingModel),
		})
		cancel()

		if err != nil {
			return fmt.Errorf("attempt %d: %w", attempt, c.classify(err))
		}
		if len(resp.Data) != len(texts) {
			return fmt.Errorf("attempt %d: expected %d embeddings, got %d", attempt, len(texts), len(resp.Data))
		}

		sort.Slice(resp.Data, func(i, j int) bool { return resp.Data[i].Index < resp.Data[j].Index })
		vectors = make([][]float32, len(resp.Data))
		for i, d := range resp.Data {
			vectors[i] = d.Embedding
		}
		return nil
	})
	if !result.OK() {
		return nil, fmt.Errorf("failed to generate embeddings: %w", result.Err)
	}
	return vectors, nil
}

// GenerateAnswer sends the prompt as a single user message and times the call
func (c *OpenAIClient) GenerateAnswer(ctx context.Context, prompt string) (*models.Generation, error) {
	reqCtx, cancel := c.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	resp, err := c.client.CreateChatCompletion(reqCtx, openai.ChatCompletionRequest{
		Model: c.chatModel,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		Temperature: c.temperature,
		TopP:        c.topP,
		MaxTokens:   c.maxTokens,
	})
	elapsed := time.Since(start)
	if err != nil {
		return nil, c.classify(err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("no completion choices returned")
	}

	return &models.Generation{
		Text:    resp.Choices[0].Message.Content,
		Model:   c.chatModel,
		Elapsed: elapsed,
	}, nil
}

// ListModels returns the model ids the server has available
func (c *OpenAIClient) ListModels(ctx context.Context) ([]string, error) {
	reqCtx, cancel := c.withTimeout(ctx)
	defer cancel()

	resp, err := c.client.ListModels(reqCtx)
	if err != nil {
		return nil, c.classify(err)
	}
	names := make([]string, 0, len(resp.Models))
	for _, m := range resp.Models {
		names = append(names, m.ID)
	}
	return names, nil
}

// Embedder exposes the client as a core.Embedder
func (c *OpenAIClient) Embedder() *EmbeddingAdapter {
	return &EmbeddingAdapter{client: c}
}

// Generator exposes the client as a core.Generator
func (c *OpenAIClient) Generator() *GenerationAdapter {
	return &GenerationAdapter{client: c}
}

// EmbeddingAdapter embeds with the client's embedding model
type EmbeddingAdapter struct {
	client *OpenAIClient
}

func (a *EmbeddingAdapter) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return a.client.GenerateEmbeddings(ctx, texts)
}

func (a *EmbeddingAdapter) ModelName() string {
	return a.client.embeddingModel
}

// GenerationAdapter generates with the client's chat model
type GenerationAdapter struct {
	client *OpenAIClient
}

func (a *GenerationAdapter) Generate(ctx context.Context, prompt string) (*models.Generation, error) {
	return a.client.GenerateAnswer(ctx, prompt)
}

func (a *GenerationAdapter) ListModels(ctx context.Context) ([]string, error) {
	return a.client.ListModels(ctx)
}

func (a *GenerationAdapter) ModelName() string {
	return a.client.chatModel
}

var (
	_ core.Embedder  = (*EmbeddingAdapter)(nil)
	_ core.Generator = (*GenerationAdapter)(nil)
)
