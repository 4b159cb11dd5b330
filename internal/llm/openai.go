package llm

import (
	"context"
	"errors"
	"io"
	"sort"
	"time"

	"github.com/sashabaranov/go-openai"
)

// OpenAIClient talks to the OpenAI chat completions API, or any server that
// implements it (Ollama, vLLM) when a base URL is given.
type OpenAIClient struct {
	name   string
	model  string
	client *openai.Client
}

// NewOpenAIClient creates an OpenAI-compatible client registered under name.
func NewOpenAIClient(name, apiKey, model, baseURL string) *OpenAIClient {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIClient{
		name:   name,
		model:  model,
		client: openai.NewClientWithConfig(cfg),
	}
}

// Name returns the provider name.
func (o *OpenAIClient) Name() string {
	return o.name
}

// Complete sends a non-streaming chat completion request.
func (o *OpenAIClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	start := time.Now()
	resp, err := o.client.CreateChatCompletion(ctx, o.buildRequest(req))
	if err != nil {
		return nil, o.wrapError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, &ProviderError{Provider: o.name, Message: "response has no choices"}
	}

	choice := resp.Choices[0]
	out := &CompletionResponse{
		Content:    choice.Message.Content,
		StopReason: string(choice.FinishReason),
		Model:      resp.Model,
		Duration:   time.Since(start),
		Usage: Usage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
		},
	}
	for _, tc := range choice.Message.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	return out, nil
}

// Stream sends a streaming chat completion request. Tool call fragments are
// accumulated by index and delivered whole in the final done event.
func (o *OpenAIClient) Stream(ctx context.Context, req CompletionRequest) (<-chan StreamEvent, error) {
	oreq := o.buildRequest(req)
	oreq.Stream = true
	oreq.StreamOptions = &openai.StreamOptions{IncludeUsage: true}

	stream, err := o.client.CreateChatCompletionStream(ctx, oreq)
	if err != nil {
		return nil, o.wrapError(err)
	}

	eventChan := make(chan StreamEvent)
	go func() {
		defer close(eventChan)
		defer stream.Close()

		start := time.Now()
		send := func(evt StreamEvent) bool {
			select {
			case eventChan <- evt:
				return true
			case <-ctx.Done():
				return false
			}
		}

		final := &CompletionResponse{Model: oreq.Model}
		var content []byte
		calls := make(map[int]*ToolCall)
		for {
			chunk, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				send(StreamEvent{Type: StreamError, Error: o.wrapError(err).Error()})
				return
			}
			if chunk.Model != "" {
				final.Model = chunk.Model
			}
			if chunk.Usage != nil {
				final.Usage = Usage{InputTokens: chunk.Usage.PromptTokens, OutputTokens: chunk.Usage.CompletionTokens}
			}
			if len(chunk.Choices) == 0 {
				continue
			}
			choice := chunk.Choices[0]
			if choice.FinishReason != "" {
				final.StopReason = string(choice.FinishReason)
			}
			if choice.Delta.Content != "" {
				content = append(content, choice.Delta.Content...)
				if !send(StreamEvent{Type: StreamDelta, Content: choice.Delta.Content}) {
					return
				}
			}
			for i, tc := range choice.Delta.ToolCalls {
				idx := i
				if tc.Index != nil {
					idx = *tc.Index
				}
				acc, ok := calls[idx]
				if !ok {
					acc = &ToolCall{}
					calls[idx] = acc
				}
				if tc.ID != "" {
					acc.ID = tc.ID
				}
				if tc.Function.Name != "" {
					acc.Name = tc.Function.Name
				}
				acc.Arguments += tc.Function.Arguments
			}
		}

		final.Content = string(content)
		final.ToolCalls = collectToolCalls(calls)
		final.Duration = time.Since(start)
		send(StreamEvent{Type: StreamDone, Response: final})
	}()
	return eventChan, nil
}

func collectToolCalls(calls map[int]*ToolCall) []ToolCall {
	if len(calls) == 0 {
		return nil
	}
	idx := make([]int, 0, len(calls))
	for i := range calls {
		idx = append(idx, i)
	}
	sort.Ints(idx)
	out := make([]ToolCall, 0, len(idx))
	for _, i := range idx {
		out = append(out, *calls[i])
	}
	return out
}

func (o *OpenAIClient) buildRequest(req CompletionRequest) openai.ChatCompletionRequest {
	model := o.model
	if req.Model != "" && req.Model != o.name {
		model = req.Model
	}

	out := openai.ChatCompletionRequest{
		Model:     model,
		MaxTokens: req.MaxTokens,
	}
	if req.Temperature != nil {
		out.Temperature = float32(*req.Temperature)
	}

	if req.System != "" {
		out.Messages = append(out.Messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}
	for _, msg := range req.Messages {
		m := openai.ChatCompletionMessage{Content: msg.Content}
		switch msg.Role {
		case RoleSystem:
			m.Role = openai.ChatMessageRoleSystem
		case RoleAssistant:
			m.Role = openai.ChatMessageRoleAssistant
			for _, tc := range msg.ToolCalls {
				m.ToolCalls = append(m.ToolCalls, openai.ToolCall{
					ID:   tc.ID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      tc.Name,
						Arguments: tc.Arguments,
					},
				})
			}
		case RoleTool:
			m.Role = openai.ChatMessageRoleTool
			m.ToolCallID = msg.ToolCallID
			m.Name = msg.Name
		default:
			m.Role = openai.ChatMessageRoleUser
		}
		out.Messages = append(out.Messages, m)
	}

	for _, t := range req.Tools {
		params := parseJSONSchema(t.InputSchema)
		if params == nil {
			params = map[string]any{"type": "object", "properties": map[string]any{}}
		}
		out.Tools = append(out.Tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  params,
			},
		})
	}
	return out
}

func (o *OpenAIClient) wrapError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &ProviderError{Provider: o.name, Code: apiErr.HTTPStatusCode, Message: apiErr.Message}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		msg := reqErr.Error()
		return &ProviderError{Provider: o.name, Code: reqErr.HTTPStatusCode, Message: msg}
	}
	return &ProviderError{Provider: o.name, Message: err.Error()}
}
