package cli

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/soyeahso/kairos/internal/agent"
	"github.com/soyeahso/kairos/internal/config"
	"github.com/soyeahso/kairos/internal/domain"
	"github.com/soyeahso/kairos/internal/llm"
	"github.com/soyeahso/kairos/internal/logging"
	"github.com/soyeahso/kairos/internal/search"
	"github.com/soyeahso/kairos/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testGraph(t *testing.T, model llm.Client) (*agent.Graph, *agent.MemoryCheckpointStore) {
	t.Helper()
	cp := agent.NewMemoryCheckpointStore()
	g, err := agent.NewGraph(agent.GraphConfig{}, agent.Deps{
		Model:       model,
		Checkpoints: cp,
		Log:         logging.New(nil, "silent"),
	})
	require.NoError(t, err)
	return g, cp
}

func echoModel() *llm.MockClient {
	return &llm.MockClient{
		ProviderName: "mock",
		CompleteFunc: func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
			last := req.Messages[len(req.Messages)-1]
			return &llm.CompletionResponse{Content: "You said: " + last.Content}, nil
		},
	}
}

func TestChatTurn(t *testing.T) {
	g, _ := testGraph(t, echoModel())

	var out bytes.Buffer
	require.NoError(t, chatTurn(context.Background(), g, &out, "t1", "hello", false))
	assert.Equal(t, "You said: hello\n", out.String())
}

func TestChatTurn_Stream(t *testing.T) {
	g, _ := testGraph(t, echoModel())

	var out bytes.Buffer
	require.NoError(t, chatTurn(context.Background(), g, &out, "t1", "hello", true))
	assert.Contains(t, out.String(), "You said: hello")
	assert.True(t, strings.HasSuffix(out.String(), "\n"))
}

func TestChatLoop(t *testing.T) {
	g, cp := testGraph(t, echoModel())

	in := strings.NewReader("one\n\n  two  \n/exit\nnever\n")
	var out bytes.Buffer
	require.NoError(t, chatLoop(context.Background(), g, in, &out, "t1", false))

	assert.Contains(t, out.String(), "You said: one")
	assert.Contains(t, out.String(), "You said: two")
	assert.NotContains(t, out.String(), "never")

	st, err := cp.Load(context.Background(), "t1")
	require.NoError(t, err)
	require.NotNil(t, st)
	assert.Len(t, st.Messages, 4)
}

func TestChatLoop_ReportsErrorsAndContinues(t *testing.T) {
	model := &llm.MockClient{
		ProviderName: "mock",
		CompleteFunc: func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
			return nil, errors.New("provider down")
		},
	}
	g, _ := testGraph(t, model)

	in := strings.NewReader("first\nsecond\n")
	var out bytes.Buffer
	require.NoError(t, chatLoop(context.Background(), g, in, &out, "t1", false))
	assert.Equal(t, 2, strings.Count(out.String(), "error: "))
}

func TestFirstLine(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"short", 10, "short"},
		{"abcdef", 3, "abc…"},
		{"line one\nline two", 100, "line one …"},
		{"héllo wörld", 5, "héllo…"},
		{"", 5, ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, firstLine(tt.in, tt.max))
		})
	}
}

func TestIndent(t *testing.T) {
	assert.Equal(t, "  a\n  b", indent("a\nb", "  "))
}

func TestPrintThreadList(t *testing.T) {
	var out bytes.Buffer
	printThreadList(&out, nil)
	assert.Equal(t, "no threads\n", out.String())

	out.Reset()
	printThreadList(&out, []domain.ThreadSummary{
		{ThreadID: "t1", Step: domain.StepDone, Messages: 4, UpdatedAt: time.Now()},
		{ThreadID: "t2", Step: domain.StepFailed, Messages: 1, UpdatedAt: time.Now()},
	})
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "t1")
	assert.Contains(t, lines[0], "4 msgs")
	assert.Contains(t, lines[1], "failed")
}

func TestPrintThread(t *testing.T) {
	st := domain.NewConversationState("t1")
	st.Step = domain.StepFailed
	st.Error = "model error"
	st.Append(
		domain.NewHumanMessage("weather?"),
		domain.Message{Role: domain.RoleAssistant, ToolCalls: []domain.ToolCall{{ID: "c1", Name: "get_weather", Arguments: `{"city":"Oslo"}`}}, Timestamp: time.Now()},
		domain.Message{Role: domain.RoleTool, ToolCallID: "c1", Content: "sunny", Timestamp: time.Now()},
	)

	var out bytes.Buffer
	printThread(&out, st)
	s := out.String()
	assert.Contains(t, s, "Thread:     t1")
	assert.Contains(t, s, "Error:      model error")
	assert.Contains(t, s, `→ c1 get_weather({"city":"Oslo"})`)
	assert.Contains(t, s, "tool (c1)")
	assert.Contains(t, s, "    sunny")
}

func TestPrintHits(t *testing.T) {
	var out bytes.Buffer
	printHits(&out, nil)
	assert.Equal(t, "no matches\n", out.String())

	out.Reset()
	printHits(&out, []store.MessageHit{{
		ThreadID: "t1",
		Seq:      2,
		Message:  domain.Message{Role: domain.RoleAssistant, Content: "It is sunny\nin Oslo"},
	}})
	assert.Equal(t, "t1 #2 assistant: It is sunny …\n", out.String())
}

func TestPrintSearchState(t *testing.T) {
	st := &search.State{
		Question:    "q",
		FinalAnswer: "42",
		Links:       []string{"https://a.example", "https://b.example"},
	}

	var out bytes.Buffer
	require.NoError(t, printSearchState(&out, st, false))
	assert.Equal(t, "42\n\nSources:\n  https://a.example\n  https://b.example\n", out.String())

	out.Reset()
	require.NoError(t, printSearchState(&out, st, true))
	assert.Contains(t, out.String(), `"finalAnswer": "42"`)
}

func TestDeleteThread(t *testing.T) {
	db, err := store.Open(":memory:", logging.New(nil, "silent"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	s := store.NewSQLiteCheckpointStore(db)
	ctx := context.Background()

	st := domain.NewConversationState("t1")
	st.Append(domain.NewHumanMessage("hi"), domain.Message{Role: domain.RoleAssistant, Content: "hello", Timestamp: time.Now()})
	require.NoError(t, s.Save(ctx, st))

	var out bytes.Buffer
	require.NoError(t, deleteThread(ctx, s, &out, "t1"))
	assert.Equal(t, "Deleted t1 (2 messages)\n", out.String())

	got, err := s.Load(ctx, "t1")
	require.NoError(t, err)
	assert.Nil(t, got)

	assert.EqualError(t, deleteThread(ctx, s, &out, "t1"), "thread not found: t1")
}

func TestReadCode(t *testing.T) {
	code, err := readCode(strings.NewReader("  4/abc-123\n"))
	require.NoError(t, err)
	assert.Equal(t, "4/abc-123", code)

	_, err = readCode(strings.NewReader(""))
	assert.Error(t, err)
}

func TestPrintValue(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, printValue(&out, "gemini"))
	require.NoError(t, printValue(&out, 8000))
	require.NoError(t, printValue(&out, map[string]any{"token": "t"}))
	require.NoError(t, printValue(&out, []any{"a", "b"}))
	assert.Equal(t, "gemini\n8000\ntoken: t\n- a\n- b\n", out.String())
}

func TestSaveDoc(t *testing.T) {
	old := paths
	t.Cleanup(func() { paths = old })
	paths = config.PathsUnder(t.TempDir())

	var warn bytes.Buffer
	err := saveDoc(&warn, map[string]any{"gateway": map[string]any{"port": "not-a-port"}})
	assert.Error(t, err)
	assert.NoFileExists(t, paths.Config)

	require.NoError(t, saveDoc(&warn, map[string]any{"gateway": map[string]any{"bind": "everywhere"}}))
	assert.FileExists(t, paths.Config)
	assert.Contains(t, warn.String(), "gateway.bind")

	doc, err := config.LoadRaw(paths.Config)
	require.NoError(t, err)
	v, ok := config.KeyPath{"gateway", "bind"}.Lookup(doc)
	require.True(t, ok)
	assert.Equal(t, "everywhere", v)
}

func TestRootRejectsUnknownLogLevel(t *testing.T) {
	t.Setenv("KAIROS_HOME", t.TempDir())
	t.Cleanup(func() { logLevel = "" })

	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"--log-level", "loud", "version"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid --log-level "loud"`)
}
