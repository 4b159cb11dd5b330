package search

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Tool exposes a Pipeline as the web_search tool.
type Tool struct {
	pipeline *Pipeline
}

// NewTool wraps p as a tool.
func NewTool(p *Pipeline) *Tool {
	return &Tool{pipeline: p}
}

func (t *Tool) Name() string { return "web_search" }

func (t *Tool) Description() string {
	return "Searches the web for current information and answers the query from the results. " +
		"Use it for news, events, facts and anything that may have changed recently."
}

func (t *Tool) InputSchema() string {
	return `{"type":"object","properties":{"query":{"type":"string","description":"What to search for"}},"required":["query"]}`
}

// Execute runs the pipeline and returns its final answer. A failure is
// returned as an error for the invoker to report to the model.
func (t *Tool) Execute(ctx context.Context, args string) (string, error) {
	query, err := queryArg(args)
	if err != nil {
		return "", err
	}
	st, err := t.pipeline.Run(ctx, query)
	if err != nil {
		return "", err
	}
	return st.FinalAnswer, nil
}

func queryArg(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	switch {
	case raw == "":
		return "", fmt.Errorf("missing argument %q", "query")
	case strings.HasPrefix(raw, "{"):
		var in map[string]any
		if err := json.Unmarshal([]byte(raw), &in); err != nil {
			return "", fmt.Errorf("invalid arguments: %w", err)
		}
		for _, key := range []string{"query", "input", "q"} {
			if s, ok := in[key].(string); ok && strings.TrimSpace(s) != "" {
				return s, nil
			}
		}
		return "", fmt.Errorf("missing argument %q", "query")
	case strings.HasPrefix(raw, `"`):
		return strconv.Unquote(raw)
	default:
		return raw, nil
	}
}
