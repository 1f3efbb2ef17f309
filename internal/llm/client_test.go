package llm

import (
	"context"
	"errors"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubChatAPI struct {
	request  openai.ChatCompletionRequest
	response openai.ChatCompletionResponse
	err      error
}

func (s *stubChatAPI) CreateChatCompletion(_ context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	s.request = request
	return s.response, s.err
}

func chatResponse(content string) openai.ChatCompletionResponse {
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: content}},
		},
	}
}

func TestClientDefaults(t *testing.T) {
	client := NewClientWithAPI(&stubChatAPI{}, Config{APIKey: "key"})

	assert.Equal(t, DefaultModel, client.Model())
	assert.Equal(t, 128000, client.Limits().ContextWindow)
	assert.Equal(t, 16384, client.Limits().MaxOutputTokens)
}

func TestCompleteSendsPromptAndText(t *testing.T) {
	api := &stubChatAPI{response: chatResponse("translated")}
	client := NewClientWithAPI(api, Config{Model: "gpt-4"})

	out, err := client.Complete(context.Background(), "system prompt", "user text", 512)
	require.NoError(t, err)
	assert.Equal(t, "translated", out)

	assert.Equal(t, "gpt-4", api.request.Model)
	assert.Equal(t, 512, api.request.MaxTokens)
	require.Len(t, api.request.Messages, 2)
	assert.Equal(t, openai.ChatMessageRoleSystem, api.request.Messages[0].Role)
	assert.Equal(t, "system prompt", api.request.Messages[0].Content)
	assert.Equal(t, "user text", api.request.Messages[1].Content)
	assert.Nil(t, api.request.ResponseFormat)
}

func TestCompleteJSONForcesJSONMode(t *testing.T) {
	api := &stubChatAPI{response: chatResponse(`{"translation": "x"}`)}
	client := NewClientWithAPI(api, Config{})

	_, err := client.CompleteJSON(context.Background(), "prompt", "text", 512)
	require.NoError(t, err)

	require.NotNil(t, api.request.ResponseFormat)
	assert.Equal(t, openai.ChatCompletionResponseFormatTypeJSONObject, api.request.ResponseFormat.Type)
}

func TestCompleteProviderError(t *testing.T) {
	api := &stubChatAPI{err: errors.New("rate limited")}
	client := NewClientWithAPI(api, Config{})

	_, err := client.Complete(context.Background(), "prompt", "text", 512)
	assert.ErrorContains(t, err, "rate limited")
}

func TestCompleteNoChoices(t *testing.T) {
	api := &stubChatAPI{}
	client := NewClientWithAPI(api, Config{})

	_, err := client.Complete(context.Background(), "prompt", "text", 512)
	assert.ErrorIs(t, err, ErrNoChoices)
}

func TestLimitsForUnknownModel(t *testing.T) {
	limits := LimitsForModel("some-other-model")
	assert.Zero(t, limits.ContextWindow)
	assert.Zero(t, limits.MaxOutputTokens)
}
