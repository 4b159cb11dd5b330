package history

import (
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"github.com/soyeahso/kairos/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// byteTokenizer counts one token per byte.
type byteTokenizer struct{}

func (byteTokenizer) Count(text string) int { return len(text) }

func byteCounter() *Counter {
	return &Counter{Tokenizer: byteTokenizer{}, PerMessageOverhead: DefaultPerMessageOverhead}
}

func human(content string) domain.Message {
	return domain.Message{Role: domain.RoleHuman, Content: content}
}

func TestEstimateTokenizer(t *testing.T) {
	tk := EstimateTokenizer{}
	assert.Equal(t, 0, tk.Count(""))
	assert.Equal(t, 1, tk.Count("abcd"))
	assert.Equal(t, 2, tk.Count("abcde"))
	assert.Equal(t, 2, tk.Count("नम"))
}

func TestNewTokenizerEstimate(t *testing.T) {
	tk, err := NewTokenizer("estimate")
	require.NoError(t, err)
	assert.IsType(t, EstimateTokenizer{}, tk)
}

func TestCountEmpty(t *testing.T) {
	assert.Equal(t, 0, byteCounter().Count(nil))
}

func TestCountAddsOverhead(t *testing.T) {
	c := byteCounter()
	msgs := []domain.Message{human("hello"), {Role: domain.RoleAssistant, Content: "hi"}}
	assert.Equal(t, 5+4+2+4, c.Count(msgs))
}

func TestCountIncludesToolCalls(t *testing.T) {
	c := byteCounter()
	m := domain.Message{
		Role:      domain.RoleAssistant,
		ToolCalls: []domain.ToolCall{{ID: "c1", Name: "abc", Arguments: "Lucknow"}},
	}
	assert.Equal(t, 4+3+7, c.CountMessage(m))
}

func TestCountMonotonic(t *testing.T) {
	c := NewCounter(nil)
	rng := rand.New(rand.NewSource(7))
	var msgs []domain.Message
	prev := 0
	for i := 0; i < 100; i++ {
		msgs = append(msgs, human(strings.Repeat("w ", rng.Intn(20))))
		n := c.Count(msgs)
		assert.GreaterOrEqual(t, n, prev)
		prev = n
	}
}

func TestTrimEmpty(t *testing.T) {
	out := Trim(byteCounter(), nil, 10)
	assert.Empty(t, out)
}

func TestTrimUnderBudgetUnchanged(t *testing.T) {
	msgs := []domain.Message{human("What's the weather in Lucknow?")}
	out := Trim(byteCounter(), msgs, 4000)
	assert.Equal(t, msgs, out)
}

func TestTrimSingleMessageOverBudget(t *testing.T) {
	msgs := []domain.Message{human(strings.Repeat("x", 100))}
	out := Trim(byteCounter(), msgs, 10)
	assert.Equal(t, msgs, out)
}

func TestTrimSystemOnly(t *testing.T) {
	msgs := []domain.Message{domain.NewSystemMessage(strings.Repeat("s", 100))}
	out := Trim(byteCounter(), msgs, 1)
	require.Len(t, out, 1)
	assert.Equal(t, domain.RoleSystem, out[0].Role)
}

func TestTrimNonPositiveBudgetKeepsLast(t *testing.T) {
	msgs := []domain.Message{
		domain.NewSystemMessage("sys"),
		human("a"), human("b"), human("c"),
	}
	for _, budget := range []int{0, -5} {
		out := Trim(byteCounter(), msgs, budget)
		require.Len(t, out, 2)
		assert.Equal(t, "sys", out[0].Content)
		assert.Equal(t, "c", out[1].Content)
	}
}

func TestTrimDoesNotMutateInput(t *testing.T) {
	msgs := []domain.Message{human("aaaa"), human("bbbb"), human("cccc")}
	snapshot := domain.CloneMessages(msgs)
	_ = Trim(byteCounter(), msgs, 1)
	assert.Equal(t, snapshot, msgs)
}

func TestTrimFiftyMessagesKeepsLastThree(t *testing.T) {
	// each message costs 1300+4 tokens: three fit in 4000, four do not
	msgs := []domain.Message{domain.NewSystemMessage("You are a helpful assistant.")}
	for i := 1; i <= 50; i++ {
		body := fmt.Sprintf("msg%02d", i)
		msgs = append(msgs, human(body+strings.Repeat(".", 1300-len(body))))
	}

	out := NewTrimmer(byteCounter(), 4000).Trim(msgs)
	require.Len(t, out, 4)
	assert.Equal(t, domain.RoleSystem, out[0].Role)
	assert.True(t, strings.HasPrefix(out[1].Content, "msg48"))
	assert.True(t, strings.HasPrefix(out[2].Content, "msg49"))
	assert.True(t, strings.HasPrefix(out[3].Content, "msg50"))
}

func TestTrimDropsOrphanedToolResults(t *testing.T) {
	msgs := []domain.Message{
		domain.NewSystemMessage("sys"),
		human(strings.Repeat("q", 50)),
		{Role: domain.RoleAssistant, ToolCalls: []domain.ToolCall{{ID: "c1", Name: "w"}, {ID: "c2", Name: "w"}}},
		domain.NewToolMessage("c1", "r1"),
		domain.NewToolMessage("c2", "r2"),
		{Role: domain.RoleAssistant, Content: "answer"},
	}
	// evicting up to r1 fits the budget and leaves r2 without its request
	out := Trim(byteCounter(), msgs, 20)
	require.Len(t, out, 2)
	assert.Equal(t, domain.RoleSystem, out[0].Role)
	assert.Equal(t, "answer", out[1].Content)
	assert.NoError(t, domain.Validate(out))
}

func TestTrimProperties(t *testing.T) {
	c := byteCounter()
	rng := rand.New(rand.NewSource(42))
	roles := []domain.Role{domain.RoleHuman, domain.RoleAssistant}

	for iter := 0; iter < 200; iter++ {
		n := rng.Intn(30)
		var msgs []domain.Message
		if n > 0 && rng.Intn(2) == 0 {
			msgs = append(msgs, domain.NewSystemMessage(strings.Repeat("s", rng.Intn(200))))
		}
		for i := 0; i < n; i++ {
			msgs = append(msgs, domain.Message{
				Role:    roles[rng.Intn(len(roles))],
				Content: fmt.Sprintf("%d:%s", i, strings.Repeat("x", rng.Intn(300))),
			})
		}
		budget := rng.Intn(2000) - 100

		out := Trim(c, msgs, budget)
		assert.LessOrEqual(t, len(out), len(msgs))
		if len(msgs) > 0 {
			require.NotEmpty(t, out)
			assert.Equal(t, msgs[len(msgs)-1], out[len(out)-1])
			if msgs[0].Role == domain.RoleSystem {
				assert.Equal(t, msgs[0], out[0])
			}
		}
		assert.Equal(t, out, Trim(c, out, budget), "trim must be idempotent")
	}
}
