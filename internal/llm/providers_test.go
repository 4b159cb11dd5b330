package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func weatherRequest() CompletionRequest {
	zero := 0.0
	return CompletionRequest{
		System: "You are a helpful assistant.",
		Messages: []Message{
			{Role: RoleUser, Content: "What's the weather in Lucknow?"},
		},
		Tools: []ToolDefinition{{
			Name:        "OpenWeatherMap",
			Description: "Current weather for a city",
			InputSchema: `{"type":"object","properties":{"city":{"type":"string"}},"required":["city"]}`,
		}},
		MaxTokens:   256,
		Temperature: &zero,
	}
}

// --- Gemini ---

func TestBuildGeminiRequestMergesToolResults(t *testing.T) {
	req := CompletionRequest{
		System: "sys",
		Messages: []Message{
			{Role: RoleUser, Content: "weather in two cities"},
			{Role: RoleAssistant, ToolCalls: []ToolCall{
				{ID: "c1", Name: "OpenWeatherMap", Arguments: `{"city":"Lucknow"}`},
				{ID: "c2", Name: "OpenWeatherMap", Arguments: "Delhi"},
			}},
			{Role: RoleTool, ToolCallID: "c1", Name: "OpenWeatherMap", Content: "31C"},
			{Role: RoleTool, ToolCallID: "c2", Name: "OpenWeatherMap", Content: "29C"},
		},
	}

	body := buildGeminiRequest(req)
	require.NotNil(t, body.SystemInstruction)
	assert.Equal(t, "sys", body.SystemInstruction.Parts[0].Text)
	require.Len(t, body.Contents, 3)

	model := body.Contents[1]
	assert.Equal(t, "model", model.Role)
	require.Len(t, model.Parts, 2)
	assert.Equal(t, "Lucknow", model.Parts[0].FunctionCall.Args["city"])
	assert.Equal(t, "Delhi", model.Parts[1].FunctionCall.Args["input"])

	results := body.Contents[2]
	assert.Equal(t, "user", results.Role)
	require.Len(t, results.Parts, 2)
	assert.Equal(t, "31C", results.Parts[0].FunctionResponse.Response["content"])
	assert.Equal(t, "29C", results.Parts[1].FunctionResponse.Response["content"])
}

func TestGeminiComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models/gemini-1.5-pro:generateContent", r.URL.Path)
		assert.Equal(t, "g-key", r.Header.Get("x-goog-api-key"))

		var body geminiRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if assert.Len(t, body.Tools, 1) {
			assert.Equal(t, "OpenWeatherMap", body.Tools[0].FunctionDeclarations[0].Name)
		}
		assert.NotNil(t, body.GenerationConfig.Temperature)

		fmt.Fprint(w, `{"candidates":[{"content":{"role":"model","parts":[{"functionCall":{"name":"OpenWeatherMap","args":{"city":"Lucknow"}}}]},"finishReason":"STOP"}],"usageMetadata":{"promptTokenCount":12,"candidatesTokenCount":3}}`)
	}))
	defer srv.Close()

	c := NewGeminiClient("g-key", "gemini-1.5-pro", srv.URL)
	resp, err := c.Complete(context.Background(), weatherRequest())
	require.NoError(t, err)

	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, "OpenWeatherMap", resp.ToolCalls[0].Name)
	assert.JSONEq(t, `{"city":"Lucknow"}`, resp.ToolCalls[0].Arguments)
	assert.True(t, strings.HasPrefix(resp.ToolCalls[0].ID, "call_"))
	assert.Equal(t, 12, resp.Usage.InputTokens)
	assert.Equal(t, "STOP", resp.StopReason)
}

func TestGeminiCompleteError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"error":{"message":"quota"}}`)
	}))
	defer srv.Close()

	c := NewGeminiClient("g-key", "gemini-1.5-pro", srv.URL)
	_, err := c.Complete(context.Background(), weatherRequest())
	var provErr *ProviderError
	require.ErrorAs(t, err, &provErr)
	assert.Equal(t, 429, provErr.Code)
	assert.Equal(t, "gemini", provErr.Provider)
}

func TestGeminiStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models/gemini-1.5-pro:streamGenerateContent", r.URL.Path)
		assert.Equal(t, "sse", r.URL.Query().Get("alt"))
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"candidates\":[{\"content\":{\"role\":\"model\",\"parts\":[{\"text\":\"It is \"}]}}]}\n\n")
		fmt.Fprint(w, "data: {\"candidates\":[{\"content\":{\"role\":\"model\",\"parts\":[{\"text\":\"sunny.\"}]},\"finishReason\":\"STOP\"}],\"usageMetadata\":{\"promptTokenCount\":5,\"candidatesTokenCount\":2}}\n\n")
	}))
	defer srv.Close()

	c := NewGeminiClient("g-key", "gemini-1.5-pro", srv.URL)
	ch, err := c.Stream(context.Background(), weatherRequest())
	require.NoError(t, err)

	var deltas []string
	var final *CompletionResponse
	for evt := range ch {
		switch evt.Type {
		case "delta":
			deltas = append(deltas, evt.Content)
		case "done":
			final = evt.Response
		case "error":
			t.Fatalf("unexpected error: %s", evt.Error)
		}
	}
	assert.Equal(t, []string{"It is ", "sunny."}, deltas)
	require.NotNil(t, final)
	assert.Equal(t, "It is sunny.", final.Content)
	assert.Equal(t, "STOP", final.StopReason)
	assert.Equal(t, 2, final.Usage.OutputTokens)
}

// --- OpenAI ---

func TestOpenAIComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		raw, _ := io.ReadAll(r.Body)
		var body struct {
			Model    string `json:"model"`
			Messages []struct {
				Role string `json:"role"`
			} `json:"messages"`
			Tools []any `json:"tools"`
		}
		assert.NoError(t, json.Unmarshal(raw, &body))
		assert.Equal(t, "gpt-4o-mini", body.Model)
		if assert.Len(t, body.Messages, 2) {
			assert.Equal(t, "system", body.Messages[0].Role)
		}
		assert.Len(t, body.Tools, 1)

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"cmpl-1","object":"chat.completion","model":"gpt-4o-mini","choices":[{"index":0,"message":{"role":"assistant","content":"","tool_calls":[{"id":"call_1","type":"function","function":{"name":"OpenWeatherMap","arguments":"{\"city\":\"Lucknow\"}"}}]},"finish_reason":"tool_calls"}],"usage":{"prompt_tokens":20,"completion_tokens":7,"total_tokens":27}}`)
	}))
	defer srv.Close()

	c := NewOpenAIClient("openai", "sk-test", "gpt-4o-mini", srv.URL+"/v1")
	resp, err := c.Complete(context.Background(), weatherRequest())
	require.NoError(t, err)

	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, ToolCall{ID: "call_1", Name: "OpenWeatherMap", Arguments: `{"city":"Lucknow"}`}, resp.ToolCalls[0])
	assert.Equal(t, "tool_calls", resp.StopReason)
	assert.Equal(t, 20, resp.Usage.InputTokens)
	assert.Equal(t, 7, resp.Usage.OutputTokens)
}

func TestOpenAICompleteAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprint(w, `{"error":{"message":"overloaded","type":"server_error"}}`)
	}))
	defer srv.Close()

	c := NewOpenAIClient("openai", "sk-test", "gpt-4o-mini", srv.URL+"/v1")
	_, err := c.Complete(context.Background(), weatherRequest())
	var provErr *ProviderError
	require.ErrorAs(t, err, &provErr)
	assert.Equal(t, http.StatusServiceUnavailable, provErr.Code)
	assert.Equal(t, "openai", provErr.Provider)
}

func TestOpenAIStreamAccumulatesToolCalls(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		chunks := []string{
			`{"id":"1","object":"chat.completion.chunk","model":"gpt-4o-mini","choices":[{"index":0,"delta":{"role":"assistant","content":"Checking"}}]}`,
			`{"id":"1","object":"chat.completion.chunk","model":"gpt-4o-mini","choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"id":"call_1","type":"function","function":{"name":"OpenWeatherMap","arguments":"{\"city\""}}]}}]}`,
			`{"id":"1","object":"chat.completion.chunk","model":"gpt-4o-mini","choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"function":{"arguments":":\"Lucknow\"}"}}]},"finish_reason":"tool_calls"}]}`,
		}
		for _, c := range chunks {
			fmt.Fprintf(w, "data: %s\n\n", c)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	c := NewOpenAIClient("openai", "sk-test", "gpt-4o-mini", srv.URL+"/v1")
	ch, err := c.Stream(context.Background(), weatherRequest())
	require.NoError(t, err)

	var final *CompletionResponse
	var text strings.Builder
	for evt := range ch {
		switch evt.Type {
		case "delta":
			text.WriteString(evt.Content)
		case "done":
			final = evt.Response
		case "error":
			t.Fatalf("unexpected error: %s", evt.Error)
		}
	}
	assert.Equal(t, "Checking", text.String())
	require.NotNil(t, final)
	require.Len(t, final.ToolCalls, 1)
	assert.Equal(t, "call_1", final.ToolCalls[0].ID)
	assert.Equal(t, `{"city":"Lucknow"}`, final.ToolCalls[0].Arguments)
	assert.Equal(t, "tool_calls", final.StopReason)
}

func TestOpenAIBuildRequestToolMessages(t *testing.T) {
	c := NewOpenAIClient("openai", "sk", "gpt-4o-mini", "")
	req := c.buildRequest(CompletionRequest{
		Model: "openai",
		Messages: []Message{
			{Role: RoleUser, Content: "hi"},
			{Role: RoleAssistant, ToolCalls: []ToolCall{{ID: "c1", Name: "w", Arguments: "{}"}}},
			{Role: RoleTool, ToolCallID: "c1", Name: "w", Content: "ok"},
		},
	})
	assert.Equal(t, "gpt-4o-mini", req.Model)
	require.Len(t, req.Messages, 3)
	assert.Equal(t, "c1", req.Messages[1].ToolCalls[0].ID)
	assert.Equal(t, "tool", req.Messages[2].Role)
	assert.Equal(t, "c1", req.Messages[2].ToolCallID)
}
