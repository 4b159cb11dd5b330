package llm

import "context"

// MockClient is a test double for Client.
type MockClient struct {
	ProviderName string
	CompleteFunc func(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
	StreamFunc   func(ctx context.Context, req CompletionRequest) (<-chan StreamEvent, error)
}

func (m *MockClient) Name() string { return m.ProviderName }

func (m *MockClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, req)
	}
	return &CompletionResponse{Content: "mock response"}, nil
}

// Stream uses StreamFunc when set. Otherwise it replays Complete as a single
// delta followed by a done event, so scripted CompleteFunc responses drive
// streaming callers too.
func (m *MockClient) Stream(ctx context.Context, req CompletionRequest) (<-chan StreamEvent, error) {
	if m.StreamFunc != nil {
		return m.StreamFunc(ctx, req)
	}
	resp, err := m.Complete(ctx, req)
	if err != nil {
		return nil, err
	}
	ch := make(chan StreamEvent, 2)
	if resp.Content != "" {
		ch <- StreamEvent{Type: StreamDelta, Content: resp.Content}
	}
	ch <- StreamEvent{Type: StreamDone, Response: resp}
	close(ch)
	return ch, nil
}
