package domain

import "time"

// Step is a node of the agent state machine. It is checkpointed with the
// conversation so an interrupted turn can be resumed.
type Step string

const (
	StepRespond Step = "respond"
	StepTools   Step = "tools"
	StepDone    Step = "done"
	StepFailed  Step = "failed"
)

// Terminal reports whether no further transitions follow this step.
func (s Step) Terminal() bool {
	return s == StepDone || s == StepFailed || s == ""
}

// ConversationState is the checkpointed state of one thread.
type ConversationState struct {
	ThreadID   string    `json:"threadId"`
	Messages   []Message `json:"messages,omitempty"`
	Step       Step      `json:"step"`
	Iterations int       `json:"iterations"`      // RESPOND→TOOLS cycles in the current turn
	Error      string    `json:"error,omitempty"` // set when Step is failed
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// NewConversationState creates an empty state for a thread.
func NewConversationState(threadID string) *ConversationState {
	now := time.Now()
	return &ConversationState{
		ThreadID:  threadID,
		Step:      StepDone,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Append adds messages to the durable log.
func (s *ConversationState) Append(msgs ...Message) {
	s.Messages = append(s.Messages, msgs...)
	s.UpdatedAt = time.Now()
}

// LastMessage returns the most recent message, if any.
func (s *ConversationState) LastMessage() (Message, bool) {
	if len(s.Messages) == 0 {
		return Message{}, false
	}
	return s.Messages[len(s.Messages)-1], true
}

// LastAssistant returns the most recent assistant message, if any.
func (s *ConversationState) LastAssistant() (Message, bool) {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Role == RoleAssistant {
			return s.Messages[i], true
		}
	}
	return Message{}, false
}

// Clone returns a deep copy safe to hand to another goroutine or store.
func (s *ConversationState) Clone() *ConversationState {
	if s == nil {
		return nil
	}
	c := *s
	c.Messages = CloneMessages(s.Messages)
	return &c
}

// ThreadSummary describes a stored thread without its messages.
type ThreadSummary struct {
	ThreadID  string    `json:"threadId"`
	Messages  int       `json:"messages"`
	Step      Step      `json:"step"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Summary returns the thread summary of s.
func (s *ConversationState) Summary() ThreadSummary {
	return ThreadSummary{
		ThreadID:  s.ThreadID,
		Messages:  len(s.Messages),
		Step:      s.Step,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
}
