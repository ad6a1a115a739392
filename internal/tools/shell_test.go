package tools

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runShell(t *testing.T, command string) string {
	t.Helper()
	tool := ShellTool(t.TempDir(), 30)
	out, err := tool.Execute(context.Background(), map[string]any{"command": command})
	require.NoError(t, err)
	return out
}

func TestShellToolCapturesStdout(t *testing.T) {
	assert.Equal(t, "hello", runShell(t, "echo hello"))
}

func TestShellToolCombinesStderr(t *testing.T) {
	out := runShell(t, "echo out; echo err 1>&2")
	assert.Contains(t, out, "out")
	assert.Contains(t, out, "err")
}

func TestShellToolNonZeroExitIsNotAnError(t *testing.T) {
	out := runShell(t, "echo boom; exit 3")
	assert.Contains(t, out, "Command failed (exit code 3)")
	assert.Contains(t, out, "boom")
}

func TestShellToolEmptyCommand(t *testing.T) {
	out := runShell(t, "   ")
	assert.Contains(t, out, "no command provided")
}

func TestShellToolEmptyOutput(t *testing.T) {
	assert.Equal(t, "(no output)", runShell(t, "true"))
}

func TestShellToolRunsInWorkDir(t *testing.T) {
	dir := t.TempDir()
	tool := ShellTool(dir, 30)
	out, err := tool.Execute(context.Background(), map[string]any{"command": "pwd"})
	require.NoError(t, err)
	assert.Contains(t, out, dir)
}

func TestShellToolTimeout(t *testing.T) {
	tool := ShellTool(t.TempDir(), 1)
	out, err := tool.Execute(context.Background(), map[string]any{"command": "sleep 5"})
	require.NoError(t, err)
	assert.Contains(t, out, "timed out")
}

func TestTruncateOutput(t *testing.T) {
	long := strings.Repeat("x", maxShellOutput+100)
	got := truncateOutput(long)
	assert.Len(t, got, maxShellOutput+len("\n... (output truncated)"))
	assert.True(t, strings.HasSuffix(got, "(output truncated)"))
}
