// Package history counts conversation tokens and trims a conversation to fit
// a model's context budget.
package history

import (
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// Tokenizer counts the tokens of a single text. Implementations must be
// deterministic and safe for concurrent use.
type Tokenizer interface {
	Count(text string) int
}

// EstimateTokenizer approximates BPE token counts without any tables:
// roughly four ASCII bytes per token and one token per non-ASCII rune.
type EstimateTokenizer struct{}

func (EstimateTokenizer) Count(text string) int {
	ascii, other := 0, 0
	for _, r := range text {
		if r < 128 {
			ascii++
		} else {
			other++
		}
	}
	return (ascii+3)/4 + other
}

// TiktokenTokenizer counts tokens with a tiktoken BPE encoding.
type TiktokenTokenizer struct {
	mu  sync.Mutex
	enc *tiktoken.Tiktoken
}

// NewTiktokenTokenizer loads the named encoding (e.g. "cl100k_base"). If the
// name is not an encoding it is tried as a model name.
func NewTiktokenTokenizer(name string) (*TiktokenTokenizer, error) {
	enc, err := tiktoken.GetEncoding(name)
	if err != nil {
		var modelErr error
		enc, modelErr = tiktoken.EncodingForModel(name)
		if modelErr != nil {
			return nil, fmt.Errorf("loading tiktoken encoding %q: %w", name, err)
		}
	}
	return &TiktokenTokenizer{enc: enc}, nil
}

func (t *TiktokenTokenizer) Count(text string) int {
	if text == "" {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.enc.Encode(text, nil, nil))
}

// NewTokenizer returns a tiktoken tokenizer for the encoding, falling back to
// EstimateTokenizer when the encoding is "estimate" or its tables cannot be
// loaded. The returned error reports the fallback and is informational.
func NewTokenizer(encoding string) (Tokenizer, error) {
	if encoding == "" || encoding == "estimate" {
		return EstimateTokenizer{}, nil
	}
	tk, err := NewTiktokenTokenizer(encoding)
	if err != nil {
		return EstimateTokenizer{}, err
	}
	return tk, nil
}
