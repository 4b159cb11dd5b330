package tools

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// PythonTool runs a snippet with the configured interpreter and returns its
// combined output. It is not sandboxed.
type PythonTool struct {
	interpreter string
	timeout     time.Duration
}

// NewPythonTool creates the python_repl tool.
func NewPythonTool(interpreter string, timeout time.Duration) *PythonTool {
	if interpreter == "" {
		interpreter = "python3"
	}
	return &PythonTool{interpreter: interpreter, timeout: timeout}
}

func (p *PythonTool) Name() string { return "python_repl" }

func (p *PythonTool) Description() string {
	return "A Python shell. Use this to execute python commands. Input should be a valid python command. " +
		"If you want to see the output of a value, you should print it out with `print(...)`."
}

func (p *PythonTool) InputSchema() string {
	return `{"type":"object","properties":{"code":{"type":"string","description":"Python source to execute"}},"required":["code"]}`
}

func (p *PythonTool) Execute(ctx context.Context, args string) (string, error) {
	code, err := stringArg(args, "code")
	if err != nil {
		return "", err
	}
	code = stripCodeFence(code)

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, p.interpreter, "-c", code)
	cmd.WaitDelay = time.Second
	out, err := cmd.CombinedOutput()
	output := strings.TrimRight(string(out), "\n")
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("execution timed out after %s", p.timeout)
		}
		if output != "" {
			return "", fmt.Errorf("%w: %s", err, output)
		}
		return "", err
	}
	if output == "" {
		return "(no output)", nil
	}
	return output, nil
}

// stripCodeFence removes a surrounding ```python fence if the model added one.
func stripCodeFence(code string) string {
	trimmed := strings.TrimSpace(code)
	if !strings.HasPrefix(trimmed, "```") {
		return code
	}
	trimmed = strings.TrimPrefix(trimmed, "```")
	if nl := strings.IndexByte(trimmed, '\n'); nl >= 0 {
		trimmed = trimmed[nl+1:]
	}
	return strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
}
