package provider

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"axe/internal/logging"
)

// OpenAIClient speaks the OpenAI chat completions dialect. It also serves
// every OpenAI-compatible provider (groq, xai, deepseek, qwen, kimi,
// minimax) by pointing BaseURL at that provider's endpoint.
type OpenAIClient struct {
	provider   string
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

// OpenAIConfig holds configuration for an OpenAI-compatible client.
type OpenAIConfig struct {
	Provider string
	APIKey   string
	BaseURL  string
	Model    string
	Timeout  time.Duration
}

// NewOpenAIClient creates a client for an OpenAI-compatible endpoint.
func NewOpenAIClient(cfg OpenAIConfig) *OpenAIClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Minute
	}
	return &OpenAIClient{
		provider:   cfg.Provider,
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		model:      cfg.Model,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

func (c *OpenAIClient) Provider() string { return c.provider }
func (c *OpenAIClient) Model() string    { return c.model }

// Wire types for the chat completions API.

type oaToolCall struct {
	Index    *int   `json:"index,omitempty"`
	ID       string `json:"id,omitempty"`
	Type     string `json:"type,omitempty"`
	Function struct {
		Name      string `json:"name,omitempty"`
		Arguments string `json:"arguments,omitempty"`
	} `json:"function"`
}

type oaMessage struct {
	Role       string       `json:"role"`
	Content    string       `json:"content"`
	ToolCalls  []oaToolCall `json:"tool_calls,omitempty"`
	ToolCallID string       `json:"tool_call_id,omitempty"`
	Name       string       `json:"name,omitempty"`
}

type oaTool struct {
	Type     string `json:"type"`
	Function struct {
		Name        string         `json:"name"`
		Description string         `json:"description,omitempty"`
		Parameters  map[string]any `json:"parameters,omitempty"`
	} `json:"function"`
}

type oaRequest struct {
	Model     string      `json:"model"`
	Messages  []oaMessage `json:"messages"`
	Tools     []oaTool    `json:"tools,omitempty"`
	MaxTokens int         `json:"max_tokens,omitempty"`
	Stream    bool        `json:"stream,omitempty"`
}

type oaChoice struct {
	Index   int `json:"index"`
	Message struct {
		Role      string       `json:"role"`
		Content   string       `json:"content"`
		ToolCalls []oaToolCall `json:"tool_calls"`
	} `json:"message"`
	Delta *struct {
		Content   string       `json:"content,omitempty"`
		ToolCalls []oaToolCall `json:"tool_calls,omitempty"`
	} `json:"delta,omitempty"`
	FinishReason string `json:"finish_reason"`
}

type oaResponse struct {
	Choices []oaChoice `json:"choices"`
	Error   *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

func (c *OpenAIClient) buildRequest(req Request, stream bool) ([]byte, error) {
	messages := make([]oaMessage, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, oaMessage{Role: "system", Content: req.System})
	}
	for _, m := range req.Messages {
		om := oaMessage{
			Role:       m.Role,
			Content:    m.Content,
			ToolCallID: m.ToolCallID,
			Name:       m.Name,
		}
		for _, tc := range m.ToolCalls {
			args, err := json.Marshal(tc.Args)
			if err != nil {
				return nil, fmt.Errorf("failed to marshal tool args: %w", err)
			}
			otc := oaToolCall{ID: tc.ID, Type: "function"}
			otc.Function.Name = tc.Name
			otc.Function.Arguments = string(args)
			om.ToolCalls = append(om.ToolCalls, otc)
		}
		messages = append(messages, om)
	}

	body := oaRequest{
		Model:     c.model,
		Messages:  messages,
		MaxTokens: req.MaxTokens,
		Stream:    stream,
	}
	for _, t := range req.Tools {
		var ot oaTool
		ot.Type = "function"
		ot.Function.Name = t.Name
		ot.Function.Description = t.Description
		ot.Function.Parameters = t.InputSchema
		body.Tools = append(body.Tools, ot)
	}
	return json.Marshal(body)
}

func (c *OpenAIClient) newHTTPRequest(ctx context.Context, payload []byte) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	return req, nil
}

// Generate runs one non-streaming generation step.
func (c *OpenAIClient) Generate(ctx context.Context, req Request) (*Response, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("%s: API key not configured", c.provider)
	}

	payload, err := c.buildRequest(req, false)
	if err != nil {
		return nil, err
	}
	httpReq, err := c.newHTTPRequest(ctx, payload)
	if err != nil {
		return nil, err
	}

	logging.APIDebug("%s generate model=%s messages=%d tools=%d", c.provider, c.model, len(req.Messages), len(req.Tools))

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%s API returned status %d: %s", c.provider, resp.StatusCode, truncate(string(body), 500))
	}

	var parsed oaResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if parsed.Error != nil {
		return nil, fmt.Errorf("%s API error: %s", c.provider, parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return nil, fmt.Errorf("no choices in response")
	}

	choice := parsed.Choices[0]
	out := &Response{
		Text:       choice.Message.Content,
		StopReason: normalizeStopReason(choice.FinishReason),
	}
	for _, otc := range choice.Message.ToolCalls {
		tc, err := decodeToolCall(otc)
		if err != nil {
			return nil, err
		}
		out.ToolCalls = append(out.ToolCalls, tc)
	}
	return out, nil
}

// GenerateStream runs one step over SSE. Text deltas are forwarded as they
// arrive; tool calls are accumulated across deltas and emitted once complete.
func (c *OpenAIClient) GenerateStream(ctx context.Context, req Request) <-chan Chunk {
	out := make(chan Chunk, 64)

	go func() {
		defer close(out)

		if c.apiKey == "" {
			out <- Chunk{Kind: ChunkError, Err: fmt.Errorf("%s: API key not configured", c.provider)}
			return
		}

		payload, err := c.buildRequest(req, true)
		if err != nil {
			out <- Chunk{Kind: ChunkError, Err: err}
			return
		}
		httpReq, err := c.newHTTPRequest(ctx, payload)
		if err != nil {
			out <- Chunk{Kind: ChunkError, Err: err}
			return
		}

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			out <- Chunk{Kind: ChunkError, Err: fmt.Errorf("request failed: %w", err)}
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(resp.Body)
			out <- Chunk{Kind: ChunkError, Err: fmt.Errorf("%s API returned status %d: %s", c.provider, resp.StatusCode, truncate(string(body), 500))}
			return
		}

		// The scanner runs in its own goroutine so ctx cancellation can
		// force-close the body and unblock Scan.
		acc := newToolCallAccumulator()
		scanDone := make(chan struct{})
		scanErr := make(chan error, 1)

		go func() {
			defer close(scanDone)
			scanner := bufio.NewScanner(resp.Body)
			scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
			for scanner.Scan() {
				line := scanner.Text()
				if !strings.HasPrefix(line, "data: ") {
					continue
				}
				data := strings.TrimPrefix(line, "data: ")
				if data == "[DONE]" {
					return
				}

				var chunk oaResponse
				if err := json.Unmarshal([]byte(data), &chunk); err != nil {
					continue // skip malformed chunks
				}
				if len(chunk.Choices) == 0 || chunk.Choices[0].Delta == nil {
					continue
				}
				delta := chunk.Choices[0].Delta
				if delta.Content != "" {
					select {
					case out <- Chunk{Kind: ChunkText, Text: delta.Content}:
					case <-ctx.Done():
						return
					}
				}
				for _, otc := range delta.ToolCalls {
					acc.add(otc)
				}
			}
			if err := scanner.Err(); err != nil {
				scanErr <- err
			}
		}()

		select {
		case <-scanDone:
			select {
			case err := <-scanErr:
				out <- Chunk{Kind: ChunkError, Err: fmt.Errorf("stream error: %w", err)}
				return
			default:
			}
		case <-ctx.Done():
			resp.Body.Close()
			<-scanDone
			out <- Chunk{Kind: ChunkError, Err: ctx.Err()}
			return
		}

		calls, err := acc.finish()
		if err != nil {
			out <- Chunk{Kind: ChunkError, Err: err}
			return
		}
		for i := range calls {
			select {
			case out <- Chunk{Kind: ChunkToolCall, ToolCall: &calls[i]}:
			case <-ctx.Done():
				out <- Chunk{Kind: ChunkError, Err: ctx.Err()}
				return
			}
		}
		out <- Chunk{Kind: ChunkDone}
	}()

	return out
}

// toolCallAccumulator reassembles tool calls whose name and argument JSON
// arrive fragmented across SSE deltas, keyed by the delta index.
type toolCallAccumulator struct {
	order []int
	byIdx map[int]*partialCall
}

type partialCall struct {
	id   string
	name string
	args strings.Builder
}

func newToolCallAccumulator() *toolCallAccumulator {
	return &toolCallAccumulator{byIdx: make(map[int]*partialCall)}
}

func (a *toolCallAccumulator) add(otc oaToolCall) {
	idx := 0
	if otc.Index != nil {
		idx = *otc.Index
	}
	pc, ok := a.byIdx[idx]
	if !ok {
		pc = &partialCall{}
		a.byIdx[idx] = pc
		a.order = append(a.order, idx)
	}
	if otc.ID != "" {
		pc.id = otc.ID
	}
	if otc.Function.Name != "" {
		pc.name = otc.Function.Name
	}
	pc.args.WriteString(otc.Function.Arguments)
}

func (a *toolCallAccumulator) finish() ([]ToolCall, error) {
	var calls []ToolCall
	for _, idx := range a.order {
		pc := a.byIdx[idx]
		args := make(map[string]any)
		if raw := strings.TrimSpace(pc.args.String()); raw != "" {
			if err := json.Unmarshal([]byte(raw), &args); err != nil {
				return nil, fmt.Errorf("tool call %s: bad arguments %q: %w", pc.name, truncate(raw, 200), err)
			}
		}
		calls = append(calls, ToolCall{ID: pc.id, Name: pc.name, Args: args})
	}
	return calls, nil
}

func decodeToolCall(otc oaToolCall) (ToolCall, error) {
	args := make(map[string]any)
	if raw := strings.TrimSpace(otc.Function.Arguments); raw != "" {
		if err := json.Unmarshal([]byte(raw), &args); err != nil {
			return ToolCall{}, fmt.Errorf("tool call %s: bad arguments: %w", otc.Function.Name, err)
		}
	}
	return ToolCall{ID: otc.ID, Name: otc.Function.Name, Args: args}, nil
}

func normalizeStopReason(reason string) string {
	switch reason {
	case "tool_calls":
		return "tool_use"
	case "length":
		return "max_tokens"
	case "stop", "":
		return "end_turn"
	default:
		return reason
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
