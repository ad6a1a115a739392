// Package provider resolves a (provider, model) pair to a callable LLM
// client. The mapping from provider name to endpoint and credential is a
// configuration concern; clients themselves are stateless per call.
package provider

import (
	"context"
	"errors"
)

// ErrUnknownProvider is returned by Resolve for an unrecognized provider
// name. It fails fast, before any model call.
var ErrUnknownProvider = errors.New("unknown provider")

// Message is one entry of the conversation sent to a model.
type Message struct {
	Role    string `json:"role"` // system, user, assistant, tool
	Content string `json:"content"`

	// ToolCalls carries the tool invocations an assistant message made.
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`

	// ToolCallID and Name identify which invocation a role=tool result
	// answers.
	ToolCallID string `json:"tool_call_id,omitempty"`
	Name       string `json:"name,omitempty"`
}

// ToolDefinition describes a tool the model may invoke.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"` // JSON Schema for parameters
}

// ToolCall is a tool invocation requested by the model.
type ToolCall struct {
	ID   string         `json:"id"`
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

// Request is one generation step: full message list, available tools, and
// the system instructions for the active agent variant.
type Request struct {
	System    string
	Messages  []Message
	Tools     []ToolDefinition
	MaxTokens int
}

// Response is the non-streaming result of one generation step.
type Response struct {
	Text       string
	ToolCalls  []ToolCall
	StopReason string // end_turn, tool_use, max_tokens
}

// ChunkKind discriminates stream fragments. The set is closed: consumers can
// switch exhaustively instead of probing an open-ended shape.
type ChunkKind int

const (
	ChunkText ChunkKind = iota
	ChunkToolCall
	ChunkDone
	ChunkError
)

// Chunk is one streaming fragment. Exactly one of Text, ToolCall, Err is
// meaningful, as selected by Kind; a Done chunk closes the step.
type Chunk struct {
	Kind     ChunkKind
	Text     string
	ToolCall *ToolCall
	Err      error
}

// Client is a resolved generation handle for one provider/model pair.
type Client interface {
	// Provider returns the provider name this client was resolved for.
	Provider() string
	// Model returns the model identifier in use.
	Model() string
	// Generate runs one non-streaming generation step.
	Generate(ctx context.Context, req Request) (*Response, error)
	// GenerateStream runs one step, delivering fragments as they arrive.
	// The channel always terminates with a Done or Error chunk and is then
	// closed.
	GenerateStream(ctx context.Context, req Request) <-chan Chunk
}
