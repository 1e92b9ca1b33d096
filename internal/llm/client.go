// Package llm provides the chat-completion and embedding client used by
// article analysis, semantic resolution and index building.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// LLM errors.
var (
	// ErrEmptyResponse indicates the model returned no choices.
	ErrEmptyResponse = errors.New("empty model response")
)

// ClientConfig holds configuration for the LLM client.
type ClientConfig struct {
	// APIKey authenticates requests (required).
	APIKey string

	// BaseURL overrides the API endpoint (optional, used in tests).
	BaseURL string

	// ChatModel is the chat-completion model.
	ChatModel string

	// EmbedModel is the embedding model.
	EmbedModel string

	// EmbedDimensions is the requested embedding size.
	EmbedDimensions int

	// RequestsPerSecond bounds outbound calls. Default: 3 req/s with a
	// burst of 5, matching the account's rate limits.
	RequestsPerSecond float64

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client wraps the OpenAI API behind a rate limiter. All calls block
// until the limiter admits them.
type Client struct {
	api        *openai.Client
	chatModel  string
	embedModel openai.EmbeddingModel
	embedDims  int
	limiter    *rate.Limiter
	logger     zerolog.Logger
}

// NewClient creates a new LLM client.
func NewClient(cfg ClientConfig) *Client {
	apiConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		apiConfig.BaseURL = cfg.BaseURL
	}

	rps := cfg.RequestsPerSecond
	if rps == 0 {
		rps = 3
	}

	return &Client{
		api:        openai.NewClientWithConfig(apiConfig),
		chatModel:  cfg.ChatModel,
		embedModel: openai.EmbeddingModel(cfg.EmbedModel),
		embedDims:  cfg.EmbedDimensions,
		limiter:    rate.NewLimiter(rate.Limit(rps), 5),
		logger:     cfg.Logger,
	}
}

// Complete runs one chat completion with a system and a user message
// and returns the trimmed assistant reply.
func (c *Client) Complete(ctx context.Context, system, user string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.chatModel,
		Temperature: 0,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}

	answer := strings.TrimSpace(resp.Choices[0].Message.Content)

	c.logger.Debug().
		Str("model", c.chatModel).
		Int("prompt_tokens", resp.Usage.PromptTokens).
		Int("completion_tokens", resp.Usage.CompletionTokens).
		Msg("chat completion done")

	return answer, nil
}

// Embed returns one embedding vector per input text, in input order.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	resp, err := c.api.CreateEmbeddings(ctx, openai.EmbeddingRequestStrings{
		Input:      texts,
		Model:      c.embedModel,
		Dimensions: c.embedDims,
	})
	if err != nil {
		return nil, fmt.Errorf("creating embeddings: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Data))
	}

	vectors := make([][]float32, len(resp.Data))
	for _, d := range resp.Data {
		vectors[d.Index] = d.Embedding
	}
	return vectors, nil
}
