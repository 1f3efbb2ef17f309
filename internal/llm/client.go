package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

const (
	// DefaultModel is the chat model used for translation calls.
	DefaultModel = "gpt-4o"
	// DefaultTemperature keeps translations close to literal.
	DefaultTemperature float32 = 0.2
	// DefaultTimeout bounds a single provider call. It is the only
	// cancellation point for an in-flight translation.
	DefaultTimeout = 5 * time.Minute
)

// ErrNoChoices is returned when the provider responds without any
// completion choices.
var ErrNoChoices = errors.New("no completion choices returned")

// ModelLimits describes a chat model's token capacity.
type ModelLimits struct {
	ContextWindow   int
	MaxOutputTokens int
}

var modelLimits = map[string]ModelLimits{
	"gpt-4o":        {ContextWindow: 128000, MaxOutputTokens: 16384},
	"gpt-4":         {ContextWindow: 8192, MaxOutputTokens: 2048},
	"gpt-3.5-turbo": {ContextWindow: 4096, MaxOutputTokens: 1024},
}

// LimitsForModel returns the token limits for a model, or zero limits for
// an unknown model (which callers treat as "no room").
func LimitsForModel(model string) ModelLimits {
	return modelLimits[model]
}

// ChatAPI defines the completion surface used by the client, satisfied by
// *openai.Client.
type ChatAPI interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Config holds client configuration.
type Config struct {
	APIKey      string
	Model       string
	Temperature float32
	Timeout     time.Duration
}

// Client wraps the OpenAI chat API for translation calls.
type Client struct {
	api         ChatAPI
	model       string
	temperature float32
	timeout     time.Duration
}

// NewClient creates a translation client with defaults applied.
func NewClient(cfg Config) *Client {
	return NewClientWithAPI(openai.NewClient(cfg.APIKey), cfg)
}

// NewClientWithAPI creates a client over an explicit ChatAPI, used by
// tests to substitute the provider.
func NewClientWithAPI(api ChatAPI, cfg Config) *Client {
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	temperature := cfg.Temperature
	if temperature == 0 {
		temperature = DefaultTemperature
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		api:         api,
		model:       model,
		temperature: temperature,
		timeout:     timeout,
	}
}

// Model returns the configured chat model name.
func (c *Client) Model() string {
	return c.model
}

// Limits returns the token limits of the configured model.
func (c *Client) Limits() ModelLimits {
	return LimitsForModel(c.model)
}

// Complete sends one (system prompt, user text) pair and returns the
// completion text. The call is bounded by the client's wall-clock
// timeout; once issued it cannot be cancelled any other way.
func (c *Client) Complete(ctx context.Context, systemPrompt, userText string, maxOutputTokens int) (string, error) {
	return c.complete(ctx, systemPrompt, userText, maxOutputTokens, nil)
}

// CompleteJSON is Complete with the provider forced into JSON-object
// response mode, used for multi-source alignment calls.
func (c *Client) CompleteJSON(ctx context.Context, systemPrompt, userText string, maxOutputTokens int) (string, error) {
	return c.complete(ctx, systemPrompt, userText, maxOutputTokens, &openai.ChatCompletionResponseFormat{
		Type: openai.ChatCompletionResponseFormatTypeJSONObject,
	})
}

func (c *Client) complete(ctx context.Context, systemPrompt, userText string, maxOutputTokens int, format *openai.ChatCompletionResponseFormat) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userText},
		},
		MaxTokens:      maxOutputTokens,
		Temperature:    c.temperature,
		ResponseFormat: format,
	}

	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrNoChoices
	}

	return resp.Choices[0].Message.Content, nil
}
