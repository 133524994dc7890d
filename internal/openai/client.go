package openai

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/cloo-solutions/ragline/internal/domain"
	"github.com/cloo-solutions/ragline/internal/embedding"
	openai "github.com/sashabaranov/go-openai"
)

const (
	// DefaultEmbeddingModel is used when the caller passes no model.
	DefaultEmbeddingModel = openai.SmallEmbedding3
	// DefaultChatModel is used for generation when no model is configured.
	DefaultChatModel = openai.GPT4oMini
)

var (
	// ErrEmptyPrompt is returned when a generation request has no prompt
	ErrEmptyPrompt = errors.New("prompt cannot be empty")
	// ErrNoAPIKey is returned when OpenAI API key is not set
	ErrNoAPIKey = errors.New("OPENAI_API_KEY environment variable not set")
)

// API is the subset of the OpenAI SDK the client uses.
type API interface {
	CreateEmbeddings(ctx context.Context, texts []string, model string) ([][]float32, error)
	CreateChatCompletion(ctx context.Context, system, prompt, model string) (string, error)
}

// Client serves both as an embedding provider and a generation model.
type Client struct {
	api       API
	chatModel string
}

type OpenAIAdapter struct {
	client *openai.Client
}

func NewOpenAIAdapter(apiKey string) *OpenAIAdapter {
	return &OpenAIAdapter{client: openai.NewClient(apiKey)}
}

// CreateEmbeddings calls the OpenAI API to embed a batch of texts.
func (a *OpenAIAdapter) CreateEmbeddings(ctx context.Context, texts []string, model string) ([][]float32, error) {
	resp, err := a.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(model),
	})
	if err != nil {
		return nil, err
	}

	vectors := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		if d.Index >= 0 && d.Index < len(vectors) {
			vectors[d.Index] = d.Embedding
		} else {
			vectors[i] = d.Embedding
		}
	}
	return vectors, nil
}

// CreateChatCompletion runs a single non-streaming chat completion.
func (a *OpenAIAdapter) CreateChatCompletion(ctx context.Context, system, prompt, model string) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if system != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: system})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: prompt})

	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    model,
		Messages: messages,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("no completion choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}

type Config struct {
	APIKey    string
	ChatModel string
}

// NewClient creates a new OpenAI client using defaults.
func NewClient(apiKey string) *Client {
	return NewClientWithConfig(Config{APIKey: apiKey})
}

// NewClientWithConfig creates a new OpenAI client with explicit configuration.
func NewClientWithConfig(cfg Config) *Client {
	chatModel := cfg.ChatModel
	if chatModel == "" {
		chatModel = DefaultChatModel
	}
	return &Client{
		api:       NewOpenAIAdapter(cfg.APIKey),
		chatModel: chatModel,
	}
}

// NewClientFromEnv creates a new OpenAI client using OPENAI_API_KEY environment variable
func NewClientFromEnv() (*Client, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, ErrNoAPIKey
	}
	return NewClient(apiKey), nil
}

// Embed implements embedding.Provider.
func (c *Client) Embed(ctx context.Context, texts []string, model string) (*embedding.Response, error) {
	if model == "" {
		model = string(DefaultEmbeddingModel)
	}
	if len(texts) == 0 {
		return &embedding.Response{Model: model}, nil
	}

	vectors, err := c.api.CreateEmbeddings(ctx, texts, model)
	if err != nil {
		return nil, domain.NewEmbeddingError("failed to create embeddings", err)
	}

	dim := 0
	if len(vectors) > 0 {
		dim = len(vectors[0])
	}
	return &embedding.Response{Vectors: vectors, Dim: dim, Model: model}, nil
}

// Generate implements the retrieval generator using a chat completion.
func (c *Client) Generate(ctx context.Context, req domain.GenerationRequest) (string, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return "", ErrEmptyPrompt
	}
	model := req.Model
	if model == "" {
		model = c.chatModel
	}

	answer, err := c.api.CreateChatCompletion(ctx, req.System, req.Prompt, model)
	if err != nil {
		return "", domain.NewGenerationError(fmt.Sprintf("chat completion with %s failed", model), err)
	}
	return answer, nil
}
