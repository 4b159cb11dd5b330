// Package domain holds the conversation data model shared by the engine,
// the checkpoint stores and the gateway.
package domain

import (
	"fmt"
	"time"
)

// Role tags who produced a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleHuman     Role = "human"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleHuman, RoleAssistant, RoleTool:
		return true
	}
	return false
}

// ToolCall is a model-issued request to run a named tool.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"` // raw text, usually JSON
}

// Message is a single entry in a thread's durable log.
type Message struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"toolCalls,omitempty"`  // assistant only
	ToolCallID string     `json:"toolCallId,omitempty"` // tool only
	Timestamp  time.Time  `json:"timestamp"`
}

// HasToolCalls reports whether the message requests at least one tool call.
// A nil and an empty slice are treated the same.
func (m Message) HasToolCalls() bool {
	return m.Role == RoleAssistant && len(m.ToolCalls) > 0
}

// NewHumanMessage builds a human message stamped with the current time.
func NewHumanMessage(content string) Message {
	return Message{Role: RoleHuman, Content: content, Timestamp: time.Now()}
}

// NewSystemMessage builds a system message.
func NewSystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content, Timestamp: time.Now()}
}

// NewToolMessage builds the result message answering the tool call with the given id.
func NewToolMessage(callID, content string) Message {
	return Message{Role: RoleTool, Content: content, ToolCallID: callID, Timestamp: time.Now()}
}

// CloneMessages deep-copies a message slice, including tool call slices.
func CloneMessages(msgs []Message) []Message {
	if msgs == nil {
		return nil
	}
	out := make([]Message, len(msgs))
	for i, m := range msgs {
		out[i] = m
		if m.ToolCalls != nil {
			out[i].ToolCalls = append([]ToolCall(nil), m.ToolCalls...)
		}
	}
	return out
}

// Validate checks that every tool message answers a tool call issued by an
// earlier assistant message and that all roles are known.
func Validate(msgs []Message) error {
	issued := make(map[string]bool)
	for i, m := range msgs {
		if !m.Role.Valid() {
			return fmt.Errorf("message %d: unknown role %q", i, m.Role)
		}
		switch m.Role {
		case RoleAssistant:
			for _, tc := range m.ToolCalls {
				issued[tc.ID] = true
			}
		case RoleTool:
			if !issued[m.ToolCallID] {
				return fmt.Errorf("message %d: tool result %q has no matching tool call", i, m.ToolCallID)
			}
		}
	}
	return nil
}
