package tools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"

	"axe/internal/logging"
)

const mcpCallTimeout = 2 * time.Minute

// MCPProvider runs an MCP server as a stdio subprocess and exposes its
// tools. The subprocess lives for the duration of one turn: Open spawns
// it and performs the initialize handshake, Close kills it.
type MCPProvider struct {
	name    string
	command string
	args    []string
	env     []string

	client *client.Client
}

// NewMCPProvider describes a stdio MCP server. The subprocess is not
// started until Open.
func NewMCPProvider(name, command string, args ...string) *MCPProvider {
	return &MCPProvider{name: name, command: command, args: args}
}

func (p *MCPProvider) Name() string { return p.name }

func (p *MCPProvider) Open(ctx context.Context) ([]*Tool, error) {
	c, err := client.NewStdioMCPClient(p.command, p.env, p.args...)
	if err != nil {
		return nil, fmt.Errorf("start %s: %w", p.command, err)
	}

	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcp.Implementation{Name: "axe", Version: "0.1.0"}
	if _, err := c.Initialize(ctx, initReq); err != nil {
		c.Close()
		return nil, fmt.Errorf("initialize: %w", err)
	}

	listed, err := c.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("list tools: %w", err)
	}

	p.client = c
	out := make([]*Tool, 0, len(listed.Tools))
	for _, t := range listed.Tools {
		out = append(out, p.wrap(t))
	}
	logging.Tools("provider %s: %d tools from %s", p.name, len(out), p.command)
	return out, nil
}

func (p *MCPProvider) wrap(t mcp.Tool) *Tool {
	name := t.Name
	return &Tool{
		Name:        name,
		Description: t.Description,
		InputSchema: schemaToMap(t.InputSchema),
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			ctx, cancel := context.WithTimeout(ctx, mcpCallTimeout)
			defer cancel()

			req := mcp.CallToolRequest{}
			req.Params.Name = name
			req.Params.Arguments = args
			res, err := p.client.CallTool(ctx, req)
			if err != nil {
				if ctx.Err() != nil {
					return "", ctx.Err()
				}
				// Server-side tool failure: report it to the model
				// rather than aborting the turn.
				return fmt.Sprintf("Tool %s failed: %v", name, err), nil
			}
			text := flattenContent(res.Content)
			if res.IsError {
				return fmt.Sprintf("Tool %s failed:\n%s", name, text), nil
			}
			if text == "" {
				return "(no output)", nil
			}
			return text, nil
		},
	}
}

func (p *MCPProvider) Close() error {
	if p.client == nil {
		return nil
	}
	err := p.client.Close()
	p.client = nil
	return err
}

func schemaToMap(s mcp.ToolInputSchema) map[string]any {
	out := map[string]any{"type": "object"}
	if s.Type != "" {
		out["type"] = s.Type
	}
	if len(s.Properties) > 0 {
		out["properties"] = s.Properties
	}
	if len(s.Required) > 0 {
		req := make([]any, len(s.Required))
		for i, r := range s.Required {
			req[i] = r
		}
		out["required"] = req
	}
	return out
}

func flattenContent(content []mcp.Content) string {
	var parts []string
	for _, c := range content {
		if tc, ok := c.(mcp.TextContent); ok {
			parts = append(parts, tc.Text)
		}
	}
	return strings.TrimSpace(strings.Join(parts, "\n"))
}
