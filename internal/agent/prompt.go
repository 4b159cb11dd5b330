package agent

import (
	"fmt"
	"strings"
	"time"
)

// PromptConfig controls system prompt generation.
type PromptConfig struct {
	Instruction string
	ToolNames   []string
	Now         time.Time
}

// BuildSystemPrompt constructs the system message sent ahead of every
// working context.
func BuildSystemPrompt(cfg PromptConfig) string {
	var b strings.Builder

	b.WriteString(strings.TrimSpace(cfg.Instruction))
	b.WriteString("\n\n")

	// Date context
	now := cfg.Now
	if now.IsZero() {
		now = time.Now()
	}
	fmt.Fprintf(&b, "Current date: %s\n", now.Format("2006-01-02"))

	if len(cfg.ToolNames) > 0 {
		fmt.Fprintf(&b, "Available tools: %s\n", strings.Join(cfg.ToolNames, ", "))
	}

	return strings.TrimRight(b.String(), "\n")
}
