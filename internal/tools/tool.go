// Package tools assembles the per-turn tool surface: stdio MCP servers
// for filesystem and web search plus the in-process shell tool. A Pool
// opens every provider at the start of a turn, merges their tools into
// a single capability set, and tears everything down when the turn ends.
package tools

import (
	"context"
	"fmt"
)

// Tool is a single callable capability exposed to the model.
type Tool struct {
	Name        string
	Description string
	// InputSchema is a JSON-schema object describing the arguments.
	InputSchema map[string]any
	// Execute runs the tool. A tool-level failure (bad arguments,
	// non-zero exit, server-side error) is reported in the returned
	// string so the model can see it; the error return is reserved for
	// transport problems and cancellation.
	Execute func(ctx context.Context, args map[string]any) (string, error)
}

// Provider owns a set of tools with a shared lifecycle. MCP providers
// spawn a subprocess on Open; the builtin provider is a no-op wrapper.
type Provider interface {
	Name() string
	Open(ctx context.Context) ([]*Tool, error)
	Close() error
}

// ProviderError identifies which provider failed during pool setup.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("tool provider %q: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }
