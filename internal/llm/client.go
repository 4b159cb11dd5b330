// Package llm defines the model client interface, the provider registry and
// the concrete HTTP providers. Every provider supports native tool calling:
// tool definitions go out with the request and tool calls come back as
// structured ToolCall values.
package llm

import (
	"context"
	"time"
)

// Wire roles. The domain's "human" is sent as RoleUser.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
	RoleTool      = "tool"
)

// Message is one entry of the provider-facing transcript.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"toolCalls,omitempty"`  // assistant only
	ToolCallID string     `json:"toolCallId,omitempty"` // tool only
	Name       string     `json:"name,omitempty"`       // tool name, tool only
}

// ToolDefinition is what the model is told about a callable tool.
type ToolDefinition struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	InputSchema string `json:"inputSchema"` // JSON Schema document
}

// CompletionRequest is the input to Complete and Stream. System is sent in
// whatever slot the provider reserves for instructions.
type CompletionRequest struct {
	Model       string           `json:"model,omitempty"`
	System      string           `json:"system,omitempty"`
	Messages    []Message        `json:"messages"`
	Tools       []ToolDefinition `json:"tools,omitempty"`
	MaxTokens   int              `json:"maxTokens,omitempty"`
	Temperature *float64         `json:"temperature,omitempty"`
	Stream      bool             `json:"stream,omitempty"` // set by callers of Stream
}

// CompletionResponse is one assistant reply.
type CompletionResponse struct {
	Content    string        `json:"content"`
	ToolCalls  []ToolCall    `json:"toolCalls,omitempty"`
	StopReason string        `json:"stopReason,omitempty"`
	Model      string        `json:"model,omitempty"`
	Usage      Usage         `json:"usage"`
	Duration   time.Duration `json:"duration,omitempty"`
}

// ToolCall is a model request to run a tool. Providers that do not assign
// call ids get one synthesized.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type Usage struct {
	InputTokens  int `json:"inputTokens"`
	OutputTokens int `json:"outputTokens"`
}

// StreamEventType tags a StreamEvent.
type StreamEventType string

const (
	StreamDelta StreamEventType = "delta" // Content holds new text
	StreamDone  StreamEventType = "done"  // Response holds the merged reply
	StreamError StreamEventType = "error" // Error describes the failure
)

// StreamEvent is one item on a Stream channel. A stream ends with exactly one
// done or error event, then the channel is closed.
type StreamEvent struct {
	Type     StreamEventType     `json:"type"`
	Content  string              `json:"content,omitempty"`
	Error    string              `json:"error,omitempty"`
	Response *CompletionResponse `json:"response,omitempty"`
}

// Client is a model provider.
type Client interface {
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// Stream returns text deltas as they arrive. The done event carries the
	// full reply including tool calls.
	Stream(ctx context.Context, req CompletionRequest) (<-chan StreamEvent, error)

	// Name is the provider name used in logs and failover ("gemini", "openai").
	Name() string
}
