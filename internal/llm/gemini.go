package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

const defaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// GeminiClient is a direct HTTP client for the Google Gemini API.
type GeminiClient struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

// NewGeminiClient creates a new Gemini API client. An empty baseURL uses the
// public endpoint.
func NewGeminiClient(apiKey, model, baseURL string) *GeminiClient {
	if baseURL == "" {
		baseURL = defaultGeminiBaseURL
	}
	return &GeminiClient{
		apiKey:  apiKey,
		model:   model,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 120 * time.Second},
	}
}

// Name returns the provider name.
func (g *GeminiClient) Name() string {
	return "gemini"
}

// Complete sends a non-streaming completion request to the Gemini API.
func (g *GeminiClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	start := time.Now()
	model := g.modelFor(req)

	resp, err := g.post(ctx, model, "generateContent", req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ProviderError{Provider: "gemini", Message: "reading response: " + err.Error()}
	}

	var result geminiResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, &ProviderError{Provider: "gemini", Message: "parsing response: " + err.Error()}
	}

	out := result.toCompletion(model)
	out.Duration = time.Since(start)
	return out, nil
}

// Stream sends a streaming completion request to the Gemini API using
// server-sent events.
func (g *GeminiClient) Stream(ctx context.Context, req CompletionRequest) (<-chan StreamEvent, error) {
	model := g.modelFor(req)
	resp, err := g.post(ctx, model, "streamGenerateContent?alt=sse", req)
	if err != nil {
		return nil, err
	}

	eventChan := make(chan StreamEvent)
	go g.readStream(ctx, resp.Body, model, eventChan)
	return eventChan, nil
}

func (g *GeminiClient) modelFor(req CompletionRequest) string {
	if req.Model != "" && req.Model != g.Name() {
		return req.Model
	}
	return g.model
}

func (g *GeminiClient) post(ctx context.Context, model, method string, req CompletionRequest) (*http.Response, error) {
	payload, err := json.Marshal(buildGeminiRequest(req))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:%s", g.baseURL, model, method)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", g.apiKey)

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, &ProviderError{Provider: "gemini", Message: err.Error()}
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, &ProviderError{Provider: "gemini", Code: resp.StatusCode, Message: strings.TrimSpace(string(body))}
	}
	return resp, nil
}

func (g *GeminiClient) readStream(ctx context.Context, body io.ReadCloser, model string, eventChan chan<- StreamEvent) {
	defer close(eventChan)
	defer body.Close()

	send := func(evt StreamEvent) bool {
		select {
		case eventChan <- evt:
			return true
		case <-ctx.Done():
			return false
		}
	}

	var merged geminiResponse
	var parts []geminiPart
	scanner := newServerSentEventScanner(body)
	for scanner.Scan() {
		data, ok := scanner.Data()
		if !ok {
			continue
		}

		var chunk geminiResponse
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			continue
		}
		if chunk.UsageMetadata.PromptTokenCount > 0 || chunk.UsageMetadata.CandidatesTokenCount > 0 {
			merged.UsageMetadata = chunk.UsageMetadata
		}
		if len(chunk.Candidates) == 0 {
			continue
		}
		cand := chunk.Candidates[0]
		if cand.FinishReason != "" {
			merged.Candidates = []geminiCandidate{{FinishReason: cand.FinishReason}}
		}
		for _, part := range cand.Content.Parts {
			parts = append(parts, part)
			if part.Text != "" && !send(StreamEvent{Type: StreamDelta, Content: part.Text}) {
				return
			}
		}
	}
	if err := scanner.Err(); err != nil {
		send(StreamEvent{Type: StreamError, Error: fmt.Sprintf("reading stream: %v", err)})
		return
	}

	if len(merged.Candidates) == 0 {
		merged.Candidates = []geminiCandidate{{}}
	}
	merged.Candidates[0].Content.Parts = parts
	send(StreamEvent{Type: StreamDone, Response: merged.toCompletion(model)})
}

// buildGeminiRequest maps a CompletionRequest onto the generateContent
// schema. Consecutive tool results are merged into a single user turn so
// each model turn with N function calls is answered by N function responses.
func buildGeminiRequest(req CompletionRequest) geminiRequest {
	out := geminiRequest{
		GenerationConfig: geminiGenerationConfig{
			MaxOutputTokens: req.MaxTokens,
			Temperature:     req.Temperature,
		},
	}
	if req.System != "" {
		out.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: req.System}}}
	}

	for _, msg := range req.Messages {
		switch msg.Role {
		case RoleSystem:
			// Mid-conversation system text travels as a user turn.
			out.Contents = append(out.Contents, geminiContent{Role: "user", Parts: []geminiPart{{Text: msg.Content}}})
		case RoleAssistant:
			c := geminiContent{Role: "model"}
			if msg.Content != "" {
				c.Parts = append(c.Parts, geminiPart{Text: msg.Content})
			}
			for _, tc := range msg.ToolCalls {
				c.Parts = append(c.Parts, geminiPart{FunctionCall: &geminiFunctionCall{
					Name: tc.Name,
					Args: argumentsToObject(tc.Arguments),
				}})
			}
			if len(c.Parts) == 0 {
				c.Parts = []geminiPart{{Text: ""}}
			}
			out.Contents = append(out.Contents, c)
		case RoleTool:
			part := geminiPart{FunctionResponse: &geminiFunctionResponse{
				Name:     msg.Name,
				Response: map[string]any{"content": msg.Content},
			}}
			if n := len(out.Contents); n > 0 && out.Contents[n-1].Role == "user" && out.Contents[n-1].Parts[0].FunctionResponse != nil {
				out.Contents[n-1].Parts = append(out.Contents[n-1].Parts, part)
				continue
			}
			out.Contents = append(out.Contents, geminiContent{Role: "user", Parts: []geminiPart{part}})
		default:
			out.Contents = append(out.Contents, geminiContent{Role: "user", Parts: []geminiPart{{Text: msg.Content}}})
		}
	}

	if len(req.Tools) > 0 {
		decls := make([]geminiFunctionDeclaration, len(req.Tools))
		for i, t := range req.Tools {
			decls[i] = geminiFunctionDeclaration{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  parseJSONSchema(t.InputSchema),
			}
		}
		out.Tools = []geminiTool{{FunctionDeclarations: decls}}
	}
	return out
}

// argumentsToObject decodes tool call arguments into the object Gemini
// expects. Non-object arguments are wrapped as {"input": ...}.
func argumentsToObject(args string) map[string]any {
	var obj map[string]any
	if err := json.Unmarshal([]byte(args), &obj); err == nil && obj != nil {
		return obj
	}
	return map[string]any{"input": args}
}

func (r *geminiResponse) toCompletion(model string) *CompletionResponse {
	var content strings.Builder
	var toolCalls []ToolCall
	stopReason := ""

	if len(r.Candidates) > 0 {
		candidate := r.Candidates[0]
		stopReason = candidate.FinishReason
		for _, part := range candidate.Content.Parts {
			if part.Text != "" {
				content.WriteString(part.Text)
			}
			if part.FunctionCall != nil {
				args, _ := json.Marshal(part.FunctionCall.Args)
				toolCalls = append(toolCalls, ToolCall{
					ID:        "call_" + uuid.NewString(),
					Name:      part.FunctionCall.Name,
					Arguments: string(args),
				})
			}
		}
	}

	return &CompletionResponse{
		Content:    content.String(),
		StopReason: stopReason,
		ToolCalls:  toolCalls,
		Model:      model,
		Usage: Usage{
			InputTokens:  r.UsageMetadata.PromptTokenCount,
			OutputTokens: r.UsageMetadata.CandidatesTokenCount,
		},
	}
}

// API request structures

type geminiRequest struct {
	SystemInstruction *geminiContent         `json:"systemInstruction,omitempty"`
	Contents          []geminiContent        `json:"contents"`
	Tools             []geminiTool           `json:"tools,omitempty"`
	GenerationConfig  geminiGenerationConfig `json:"generationConfig"`
}

type geminiGenerationConfig struct {
	MaxOutputTokens int      `json:"maxOutputTokens,omitempty"`
	Temperature     *float64 `json:"temperature,omitempty"`
}

type geminiTool struct {
	FunctionDeclarations []geminiFunctionDeclaration `json:"functionDeclarations"`
}

type geminiFunctionDeclaration struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text             string                  `json:"text,omitempty"`
	FunctionCall     *geminiFunctionCall     `json:"functionCall,omitempty"`
	FunctionResponse *geminiFunctionResponse `json:"functionResponse,omitempty"`
}

type geminiFunctionCall struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

type geminiFunctionResponse struct {
	Name     string         `json:"name"`
	Response map[string]any `json:"response"`
}

// API response structures

type geminiResponse struct {
	Candidates    []geminiCandidate `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
	} `json:"usageMetadata"`
}

type geminiCandidate struct {
	Content      geminiContent `json:"content"`
	FinishReason string        `json:"finishReason"`
}
