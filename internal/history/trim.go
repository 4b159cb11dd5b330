package history

import "github.com/soyeahso/kairos/internal/domain"

// Trimmer reduces a conversation to fit a token budget.
type Trimmer struct {
	Counter *Counter
	Budget  int
}

// NewTrimmer creates a Trimmer.
func NewTrimmer(counter *Counter, budget int) *Trimmer {
	return &Trimmer{Counter: counter, Budget: budget}
}

// Trim applies the trimmer's budget to msgs.
func (t *Trimmer) Trim(msgs []domain.Message) []domain.Message {
	return Trim(t.Counter, msgs, t.Budget)
}

// Trim returns the working set sent to the model. A leading system message
// is pinned and does not count toward budget. The oldest remaining messages
// are evicted while their total exceeds budget and more than one remains, so
// the newest message is always kept even when it alone exceeds budget. Tool
// results left at the front after eviction lost their request and are
// dropped as well. The input slice is never modified.
func Trim(counter *Counter, msgs []domain.Message, budget int) []domain.Message {
	if len(msgs) == 0 {
		return []domain.Message{}
	}

	var pinned *domain.Message
	rest := msgs
	if msgs[0].Role == domain.RoleSystem {
		pinned = &msgs[0]
		rest = msgs[1:]
	}

	total := counter.Count(rest)
	start := 0
	for total > budget && len(rest)-start > 1 {
		total -= counter.CountMessage(rest[start])
		start++
	}
	if start > 0 {
		for len(rest)-start > 1 && rest[start].Role == domain.RoleTool {
			start++
		}
	}

	out := make([]domain.Message, 0, len(rest)-start+1)
	if pinned != nil {
		out = append(out, *pinned)
	}
	return append(out, rest[start:]...)
}
