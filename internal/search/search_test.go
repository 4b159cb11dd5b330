package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/soyeahso/kairos/internal/llm"
	"github.com/soyeahso/kairos/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedModel answers the optimize and synthesize calls in order and
// records every request.
type scriptedModel struct {
	mu       sync.Mutex
	replies  []string
	requests []llm.CompletionRequest
	err      error
}

func (m *scriptedModel) client() *llm.MockClient {
	return &llm.MockClient{
		ProviderName: "mock",
		CompleteFunc: func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
			m.mu.Lock()
			defer m.mu.Unlock()
			m.requests = append(m.requests, req)
			if m.err != nil {
				return nil, m.err
			}
			reply := ""
			if len(m.replies) > 0 {
				reply, m.replies = m.replies[0], m.replies[1:]
			}
			return &llm.CompletionResponse{Content: reply}, nil
		},
	}
}

func staticBackend(resp Response, err error) (Backend, *[]string) {
	var queries []string
	return BackendFunc(func(ctx context.Context, query string) (Response, error) {
		queries = append(queries, query)
		return resp, err
	}), &queries
}

func newTestPipeline(model *scriptedModel, backend Backend) *Pipeline {
	return NewPipeline(model.client(), backend, PipelineConfig{Model: "test-model"}, logging.New(nil, "silent"))
}

func TestRunFiveResultsKeepsThreeLinks(t *testing.T) {
	var organic []Organic
	for i := 1; i <= 5; i++ {
		organic = append(organic, Organic{
			Title:   fmt.Sprintf("Result %d", i),
			Link:    fmt.Sprintf("https://example.com/%d", i),
			Snippet: fmt.Sprintf("snippet %d", i),
		})
	}
	backend, queries := staticBackend(Response{Organic: organic}, nil)
	model := &scriptedModel{replies: []string{"IPL 2024 final result", "KKR won."}}

	st, err := newTestPipeline(model, backend).Run(context.Background(), "who won ipl?")
	require.NoError(t, err)

	assert.Equal(t, []string{"IPL 2024 final result"}, *queries)
	assert.Equal(t, []string{"https://example.com/1", "https://example.com/2", "https://example.com/3"}, st.Links)
	require.Len(t, st.Documents, 1)
	assert.Equal(t, "snippet 1\n\nsnippet 2\n\nsnippet 3\n\nsnippet 4\n\nsnippet 5", st.Documents[0])
	assert.Equal(t, "KKR won.", st.FinalAnswer)
	assert.Equal(t, "IPL 2024 final result", st.OptimizedQuery)
}

func TestRunPromptsCarryQuestionAndDocuments(t *testing.T) {
	backend, _ := staticBackend(Response{Organic: []Organic{{Link: "https://a", Snippet: "Lucknow is in Uttar Pradesh."}}}, nil)
	model := &scriptedModel{replies: []string{"Lucknow state India", "Uttar Pradesh."}}

	_, err := newTestPipeline(model, backend).Run(context.Background(), "where is lucknow")
	require.NoError(t, err)

	require.Len(t, model.requests, 2)
	optimize, synth := model.requests[0], model.requests[1]
	assert.Equal(t, "test-model", optimize.Model)
	assert.Contains(t, optimize.System, "search-friendly")
	assert.Equal(t, "user_request: where is lucknow", optimize.Messages[0].Content)
	assert.Empty(t, optimize.Tools)

	assert.Contains(t, synth.Messages[0].Content, "User's original question: where is lucknow")
	assert.Contains(t, synth.Messages[0].Content, "Lucknow is in Uttar Pradesh.")
	assert.Contains(t, synth.Messages[0].Content, "If the documents don't help, say so clearly.")
}

func TestRunRawResponse(t *testing.T) {
	backend, _ := staticBackend(Response{Raw: "No good Google Search Result was found"}, nil)
	model := &scriptedModel{replies: []string{"query", "I could not find anything."}}

	st, err := newTestPipeline(model, backend).Run(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, []string{"No good Google Search Result was found"}, st.Documents)
	assert.Empty(t, st.Links)
	assert.NotNil(t, st.Links)
}

func TestExtractSitelinksInEncounterOrder(t *testing.T) {
	resp := Response{Organic: []Organic{
		{Link: "https://a", Sitelinks: []Sitelink{{Link: "https://a/1"}, {Link: "https://a/2"}}},
		{Link: "https://b"},
	}}
	docs, links := extract(resp)
	assert.Equal(t, []string{"https://a", "https://a/1", "https://a/2"}, links)
	assert.Equal(t, []string{""}, docs)
}

func TestExtractSkipsMissingFields(t *testing.T) {
	resp := Response{Organic: []Organic{
		{Title: "no link", Snippet: "s1"},
		{Link: "https://b"},
	}}
	docs, links := extract(resp)
	assert.Equal(t, []string{"https://b"}, links)
	assert.Equal(t, []string{"s1"}, docs)
}

func TestRunEmptyOptimizationFallsBackToQuestion(t *testing.T) {
	backend, queries := staticBackend(Response{Organic: []Organic{{Snippet: "x"}}}, nil)
	model := &scriptedModel{replies: []string{"   ", "answer"}}

	_, err := newTestPipeline(model, backend).Run(context.Background(), "weather in lucknow today")
	require.NoError(t, err)
	assert.Equal(t, []string{"weather in lucknow today"}, *queries)
}

func TestRunBackendErrorPropagates(t *testing.T) {
	backend, _ := staticBackend(Response{}, &BackendError{Backend: "serper", StatusCode: 403, Message: "Unauthorized"})
	model := &scriptedModel{replies: []string{"q"}}

	_, err := newTestPipeline(model, backend).Run(context.Background(), "q")
	require.Error(t, err)
	var be *BackendError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, 403, be.StatusCode)
	assert.Len(t, model.requests, 1)
}

func TestRunModelErrorPropagates(t *testing.T) {
	backend, queries := staticBackend(Response{}, nil)
	model := &scriptedModel{err: errors.New("quota")}

	_, err := newTestPipeline(model, backend).Run(context.Background(), "q")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota")
	assert.Empty(t, *queries)
}

// --- Tool ---

func TestToolExecute(t *testing.T) {
	backend, queries := staticBackend(Response{Organic: []Organic{{Snippet: "s"}}}, nil)
	model := &scriptedModel{replies: []string{"optimized", "final"}}
	tool := NewTool(newTestPipeline(model, backend))

	assert.Equal(t, "web_search", tool.Name())
	out, err := tool.Execute(context.Background(), `{"query":"latest news"}`)
	require.NoError(t, err)
	assert.Equal(t, "final", out)
	assert.Equal(t, "user_request: latest news", model.requests[0].Messages[0].Content)
	assert.Equal(t, []string{"optimized"}, *queries)
}

func TestToolExecuteError(t *testing.T) {
	backend, _ := staticBackend(Response{}, &BackendError{Backend: "serper", Message: "down"})
	tool := NewTool(newTestPipeline(&scriptedModel{replies: []string{"q"}}, backend))
	_, err := tool.Execute(context.Background(), "news")
	assert.Error(t, err)
}

func TestQueryArg(t *testing.T) {
	for raw, want := range map[string]string{
		`{"query":"a"}`: "a",
		`{"input":"b"}`: "b",
		`"c"`:           "c",
		"d e":           "d e",
	} {
		got, err := queryArg(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, want, got)
	}
	_, err := queryArg(`{"other":"x"}`)
	assert.Error(t, err)
	_, err = queryArg("")
	assert.Error(t, err)
}

// --- Serper ---

func TestSerperSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "serper-key", r.Header.Get("X-API-KEY"))
		var req serperRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, serperRequest{Q: "ipl final", GL: "in", HL: "en"}, req)
		fmt.Fprint(w, `{"searchParameters":{"q":"ipl final"},"organic":[
			{"title":"T","link":"https://x","snippet":"S","position":1,
			 "sitelinks":[{"title":"Sub","link":"https://x/sub"}]}]}`)
	}))
	defer srv.Close()

	b := NewSerperBackend(SerperConfig{APIKey: "serper-key", Endpoint: srv.URL, GL: "in", HL: "en", RateLimit: 100})
	resp, err := b.Search(context.Background(), "ipl final")
	require.NoError(t, err)
	require.Len(t, resp.Organic, 1)
	assert.Equal(t, "https://x", resp.Organic[0].Link)
	assert.Equal(t, "https://x/sub", resp.Organic[0].Sitelinks[0].Link)
	assert.False(t, resp.IsRaw())
}

func TestSerperPlainTextResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "No good Google Search Result was found\n")
	}))
	defer srv.Close()

	resp, err := NewSerperBackend(SerperConfig{Endpoint: srv.URL}).Search(context.Background(), "q")
	require.NoError(t, err)
	assert.True(t, resp.IsRaw())
	assert.Equal(t, "No good Google Search Result was found", resp.Raw)
}

func TestSerperHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `{"message":"Unauthorized.","statusCode":403}`)
	}))
	defer srv.Close()

	_, err := NewSerperBackend(SerperConfig{Endpoint: srv.URL}).Search(context.Background(), "q")
	var be *BackendError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, http.StatusForbidden, be.StatusCode)
	assert.Equal(t, "serper: Unauthorized. (HTTP 403)", be.Error())
}

func TestSerperRateLimitHonoursContext(t *testing.T) {
	b := NewSerperBackend(SerperConfig{Endpoint: "http://127.0.0.1:1", RateLimit: 0.001})
	// Drain the single burst token so the next Wait must block.
	require.True(t, b.limiter.Allow())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := b.Search(ctx, "q")
	var be *BackendError
	require.ErrorAs(t, err, &be)
	assert.True(t, strings.Contains(be.Error(), "rate limit"))
}
