package tools

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

const maxShellOutput = 16000

// BuiltinProvider serves in-process tools. It has no subprocess to
// manage, so Open and Close are trivial.
type BuiltinProvider struct {
	tools []*Tool
}

// NewBuiltinProvider wraps a fixed set of in-process tools.
func NewBuiltinProvider(tools ...*Tool) *BuiltinProvider {
	return &BuiltinProvider{tools: tools}
}

func (p *BuiltinProvider) Name() string { return "builtin" }

func (p *BuiltinProvider) Open(ctx context.Context) ([]*Tool, error) {
	return p.tools, nil
}

func (p *BuiltinProvider) Close() error { return nil }

// ShellTool runs a command through `sh -c` in workDir and returns the
// combined stdout and stderr. A non-zero exit is not an error: the
// failure is formatted into the result text so the model can react to
// it. timeoutSeconds bounds each invocation; zero means no bound
// beyond the turn context.
func ShellTool(workDir string, timeoutSeconds int) *Tool {
	return &Tool{
		Name:        "shell",
		Description: "Execute a shell command in the working directory and return its combined stdout and stderr.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"command": map[string]any{
					"type":        "string",
					"description": "The shell command to execute.",
				},
			},
			"required": []any{"command"},
		},
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			command, _ := args["command"].(string)
			if strings.TrimSpace(command) == "" {
				return "Command failed: no command provided", nil
			}
			if timeoutSeconds > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, time.Duration(timeoutSeconds)*time.Second)
				defer cancel()
			}
			cmd := exec.CommandContext(ctx, "sh", "-c", command)
			cmd.Dir = workDir
			out, err := cmd.CombinedOutput()
			text := truncateOutput(string(out))
			if ctx.Err() == context.DeadlineExceeded {
				return fmt.Sprintf("Command timed out after %ds:\n%s", timeoutSeconds, text), nil
			}
			if err != nil {
				if exitErr, ok := err.(*exec.ExitError); ok {
					return fmt.Sprintf("Command failed (exit code %d):\n%s", exitErr.ExitCode(), text), nil
				}
				return fmt.Sprintf("Command failed: %v", err), nil
			}
			if text == "" {
				return "(no output)", nil
			}
			return text, nil
		},
	}
}

func truncateOutput(s string) string {
	s = strings.TrimRight(s, "\n")
	if len(s) <= maxShellOutput {
		return s
	}
	return s[:maxShellOutput] + "\n... (output truncated)"
}
