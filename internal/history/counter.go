package history

import "github.com/soyeahso/kairos/internal/domain"

// DefaultPerMessageOverhead is the fixed per-message allowance for role and
// framing tokens.
const DefaultPerMessageOverhead = 4

// Counter estimates the token footprint of a message sequence.
type Counter struct {
	Tokenizer          Tokenizer
	PerMessageOverhead int
}

// NewCounter creates a Counter with the default per-message overhead.
func NewCounter(tk Tokenizer) *Counter {
	if tk == nil {
		tk = EstimateTokenizer{}
	}
	return &Counter{Tokenizer: tk, PerMessageOverhead: DefaultPerMessageOverhead}
}

// CountMessage returns the tokens for one message: its content plus the
// names and arguments of any tool calls, plus the fixed overhead.
func (c *Counter) CountMessage(m domain.Message) int {
	n := c.Tokenizer.Count(m.Content) + c.PerMessageOverhead
	for _, tc := range m.ToolCalls {
		n += c.Tokenizer.Count(tc.Name) + c.Tokenizer.Count(tc.Arguments)
	}
	return n
}

// Count returns the total tokens of msgs. An empty sequence counts 0.
func (c *Counter) Count(msgs []domain.Message) int {
	total := 0
	for _, m := range msgs {
		total += c.CountMessage(m)
	}
	return total
}
