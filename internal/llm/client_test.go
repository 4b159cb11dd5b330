package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/soyeahso/kairos/internal/config"
	"github.com/soyeahso/kairos/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func silentLog() *logging.Logger {
	return logging.New(nil, "silent")
}

// --- Registry tests ---

func TestRegistryRegisterAndResolve(t *testing.T) {
	reg := NewRegistry(silentLog())

	mock := &MockClient{ProviderName: "test-provider"}
	reg.Register("test-provider", mock)

	client, err := reg.Resolve("test-provider")
	require.NoError(t, err)
	assert.Equal(t, "test-provider", client.Name())
	assert.True(t, reg.IsProvider("test-provider"))
}

func TestRegistryAlias(t *testing.T) {
	reg := NewRegistry(silentLog())

	reg.Register("gemini", &MockClient{ProviderName: "gemini"})
	reg.Alias("gemini-1.5-pro", "gemini")

	client, err := reg.Resolve("gemini-1.5-pro")
	require.NoError(t, err)
	assert.Equal(t, "gemini", client.Name())
	assert.False(t, reg.IsProvider("gemini-1.5-pro"))
}

func TestRegistryFallback(t *testing.T) {
	reg := NewRegistry(silentLog())

	mock := &MockClient{ProviderName: "default-llm"}
	reg.Register("default-llm", mock)
	reg.SetFallback("default-llm")

	// Unknown model should resolve to fallback
	client, err := reg.Resolve("unknown-model-xyz")
	require.NoError(t, err)
	assert.Equal(t, "default-llm", client.Name())
}

func TestRegistryResolveNotFound(t *testing.T) {
	reg := NewRegistry(silentLog())

	_, err := reg.Resolve("nonexistent")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "no LLM provider")
}

func TestRegistryListKeepsOrder(t *testing.T) {
	reg := NewRegistry(silentLog())
	reg.Register("b", &MockClient{ProviderName: "b"})
	reg.Register("a", &MockClient{ProviderName: "a"})
	reg.Register("b", &MockClient{ProviderName: "b2"})

	assert.Equal(t, []string{"b", "a"}, reg.List())
}

func TestNewRegistryFromConfig(t *testing.T) {
	cfg := config.ModelConfig{
		Provider: "gemini",
		APIKey:   "g-key",
		Model:    "gemini-1.5-pro",
		Fallbacks: []config.ModelProvider{
			{Provider: "openai", APIKey: "sk", Model: "gpt-4o-mini"},
			{Provider: "gemini", APIKey: "g2", Model: "gemini-1.5-flash"},
			{Provider: "openai"}, // no key: skipped
		},
	}
	reg, err := NewRegistryFromConfig(cfg, silentLog())
	require.NoError(t, err)
	assert.Equal(t, []string{"gemini", "openai", "gemini-2"}, reg.List())

	c, err := reg.Resolve("gpt-4o-mini")
	require.NoError(t, err)
	assert.Equal(t, "openai", c.Name())

	c, err = reg.Resolve("whatever")
	require.NoError(t, err)
	assert.Equal(t, "gemini", c.Name())
}

func TestNewRegistryFromConfigPrimaryInvalid(t *testing.T) {
	_, err := NewRegistryFromConfig(config.ModelConfig{Provider: "gemini"}, silentLog())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "primary model provider")

	_, err = NewRegistryFromConfig(config.ModelConfig{Provider: "claude", APIKey: "x"}, silentLog())
	assert.Error(t, err)
}

func TestNewClientOllama(t *testing.T) {
	c, err := NewClient(config.ModelProvider{Provider: "ollama", Model: "llama3.1"})
	require.NoError(t, err)
	assert.Equal(t, "ollama", c.Name())
}

// --- MockClient tests ---

func TestMockClientComplete(t *testing.T) {
	mock := &MockClient{
		ProviderName: "test",
		CompleteFunc: func(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
			return &CompletionResponse{
				Content: "The answer is 42",
				Usage:   Usage{InputTokens: 10, OutputTokens: 5},
			}, nil
		},
	}

	resp, err := mock.Complete(context.Background(), CompletionRequest{
		Messages: []Message{{Role: RoleUser, Content: "What is the answer?"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "The answer is 42", resp.Content)
	assert.Equal(t, 10, resp.Usage.InputTokens)
}

func TestMockClientStreamReplaysComplete(t *testing.T) {
	mock := &MockClient{
		ProviderName: "test",
		CompleteFunc: func(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
			return &CompletionResponse{ToolCalls: []ToolCall{{ID: "c1", Name: "w"}}}, nil
		},
	}

	ch, err := mock.Stream(context.Background(), CompletionRequest{})
	require.NoError(t, err)

	var events []StreamEvent
	for evt := range ch {
		events = append(events, evt)
	}

	require.Len(t, events, 1)
	assert.Equal(t, StreamDone, events[0].Type)
	assert.Len(t, events[0].Response.ToolCalls, 1)
}

func TestMockClientStreamDefault(t *testing.T) {
	mock := &MockClient{ProviderName: "test"}

	ch, err := mock.Stream(context.Background(), CompletionRequest{})
	require.NoError(t, err)

	var events []StreamEvent
	for evt := range ch {
		events = append(events, evt)
	}

	assert.Len(t, events, 2)
	assert.Equal(t, StreamDelta, events[0].Type)
	assert.Equal(t, StreamDone, events[1].Type)
	assert.Equal(t, "mock response", events[1].Response.Content)
}

func TestMockClientCompleteError(t *testing.T) {
	mock := &MockClient{
		ProviderName: "test",
		CompleteFunc: func(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
			return nil, &ProviderError{Provider: "test", Message: "rate limited", Code: 429}
		},
	}

	_, err := mock.Complete(context.Background(), CompletionRequest{})
	assert.Error(t, err)

	var provErr *ProviderError
	assert.ErrorAs(t, err, &provErr)
	assert.Equal(t, 429, provErr.Code)

	_, err = mock.Stream(context.Background(), CompletionRequest{})
	assert.ErrorAs(t, err, &provErr)
}

func TestCompletionRequestJSON(t *testing.T) {
	temp := 0.7
	req := CompletionRequest{
		Model:  "gemini-1.5-pro",
		System: "You are helpful.",
		Messages: []Message{
			{Role: RoleUser, Content: "hi"},
			{Role: RoleAssistant, ToolCalls: []ToolCall{{ID: "c1", Name: "w", Arguments: "{}"}}},
			{Role: RoleTool, ToolCallID: "c1", Name: "w", Content: "sunny"},
		},
		MaxTokens:   1024,
		Temperature: &temp,
	}
	data, err := json.Marshal(req)
	require.NoError(t, err)

	var decoded CompletionRequest
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, req, decoded)
}

func TestProviderErrorFormat(t *testing.T) {
	tests := []struct {
		err  ProviderError
		want string
	}{
		{ProviderError{Provider: "a", Message: "fail", Code: 500}, "a: 500 fail"},
		{ProviderError{Provider: "b", Message: "oops"}, "b: oops"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.err.Error(), fmt.Sprintf("%+v", tt.err))
	}
}

func TestParseJSONSchema(t *testing.T) {
	assert.Nil(t, parseJSONSchema(""))
	assert.Nil(t, parseJSONSchema("{not json"))
	schema := parseJSONSchema(`{"type":"object"}`)
	assert.Equal(t, "object", schema["type"])
}
