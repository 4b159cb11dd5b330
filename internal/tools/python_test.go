package tools

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The tests drive the tool with sh, which accepts the same -c flag, so
// they do not depend on a Python installation.

func TestPythonToolOutput(t *testing.T) {
	p := NewPythonTool("sh", 5*time.Second)
	out, err := p.Execute(context.Background(), `{"code":"echo hello"}`)
	require.NoError(t, err)
	assert.Equal(t, "hello", out)
}

func TestPythonToolNoOutput(t *testing.T) {
	p := NewPythonTool("sh", 5*time.Second)
	out, err := p.Execute(context.Background(), "true")
	require.NoError(t, err)
	assert.Equal(t, "(no output)", out)
}

func TestPythonToolFailureIncludesOutput(t *testing.T) {
	p := NewPythonTool("sh", 5*time.Second)
	_, err := p.Execute(context.Background(), `{"code":"echo oops >&2; exit 3"}`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "oops")
}

func TestPythonToolTimeout(t *testing.T) {
	p := NewPythonTool("sh", 50*time.Millisecond)
	_, err := p.Execute(context.Background(), `{"code":"sleep 5"}`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timed out")
}

func TestStripCodeFence(t *testing.T) {
	assert.Equal(t, "print(1)", stripCodeFence("```python\nprint(1)\n```"))
	assert.Equal(t, "print(1)", stripCodeFence("print(1)"))
}
