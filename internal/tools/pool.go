package tools

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"axe/internal/config"
	"axe/internal/logging"
)

// Pool opens a set of providers for one turn and merges their tools.
// In strict mode any provider failure aborts the open; otherwise the
// failure becomes a warning and the turn proceeds with the tools that
// did come up.
type Pool struct {
	providers []Provider
	strict    bool
	disabled  map[string]bool

	mu        sync.Mutex
	opened    []Provider
	closeOnce sync.Once
}

// CapabilitySet is the merged tool surface for a single turn.
type CapabilitySet struct {
	byName map[string]*Tool
	order  []string

	// Warnings describes providers that failed to open in non-strict
	// mode, for surfacing to the user.
	Warnings []string
}

// Get returns the named tool, or nil.
func (cs *CapabilitySet) Get(name string) *Tool { return cs.byName[name] }

// Tools returns every merged tool in registration order.
func (cs *CapabilitySet) Tools() []*Tool {
	out := make([]*Tool, 0, len(cs.order))
	for _, name := range cs.order {
		out = append(out, cs.byName[name])
	}
	return out
}

// Len reports how many tools the set holds.
func (cs *CapabilitySet) Len() int { return len(cs.order) }

func (cs *CapabilitySet) add(t *Tool) {
	if _, replaced := cs.byName[t.Name]; !replaced {
		cs.order = append(cs.order, t.Name)
	}
	// Later providers win on name conflict.
	cs.byName[t.Name] = t
}

// NewPool builds a pool over providers in merge order: on a tool name
// conflict the later provider's tool wins. Tools named in disabled are
// dropped from the merged set.
func NewPool(providers []Provider, strict bool, disabled []string) *Pool {
	dis := make(map[string]bool, len(disabled))
	for _, name := range disabled {
		dis[name] = true
	}
	return &Pool{providers: providers, strict: strict, disabled: dis}
}

// DefaultProviders is the standard per-turn lineup: the filesystem MCP
// server scoped to workDir, the DuckDuckGo search MCP server, and the
// in-process shell tool. Merge order puts builtin tools last so they
// win any name conflict.
func DefaultProviders(workDir string, cfg config.ToolsConfig) []Provider {
	return []Provider{
		NewMCPProvider("filesystem", "npx", "-y", "@modelcontextprotocol/server-filesystem", workDir),
		NewMCPProvider("search", "uvx", "duckduckgo-mcp-server"),
		NewBuiltinProvider(ShellTool(workDir, cfg.ShellTimeoutSeconds)),
	}
}

// Open starts every provider concurrently and merges the results in
// provider order. The caller must Close the pool when the turn ends,
// whether or not Open succeeded.
func (p *Pool) Open(ctx context.Context) (*CapabilitySet, error) {
	results := make([][]*Tool, len(p.providers))
	failures := make([]error, len(p.providers))

	var g errgroup.Group
	for i, prov := range p.providers {
		g.Go(func() error {
			ts, err := prov.Open(ctx)
			if err != nil {
				failures[i] = &ProviderError{Provider: prov.Name(), Err: err}
				if p.strict {
					return failures[i]
				}
				return nil
			}
			p.mu.Lock()
			p.opened = append(p.opened, prov)
			p.mu.Unlock()
			results[i] = ts
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		p.Close()
		return nil, err
	}

	cs := &CapabilitySet{byName: make(map[string]*Tool)}
	for i, ts := range results {
		if failures[i] != nil {
			logging.Tools("provider failed, continuing without it: %v", failures[i])
			cs.Warnings = append(cs.Warnings, fmt.Sprintf("%s tools unavailable: %v", p.providers[i].Name(), failures[i].(*ProviderError).Err))
			continue
		}
		for _, t := range ts {
			if p.disabled[t.Name] {
				continue
			}
			cs.add(t)
		}
	}
	logging.Tools("pool open: %d tools, %d warnings", cs.Len(), len(cs.Warnings))
	return cs, nil
}

// Close tears down every provider that opened. It is safe to call more
// than once and never fails: a provider that will not shut down cleanly
// is logged and abandoned.
func (p *Pool) Close() {
	p.closeOnce.Do(func() {
		p.mu.Lock()
		opened := p.opened
		p.opened = nil
		p.mu.Unlock()
		for _, prov := range opened {
			if err := prov.Close(); err != nil {
				logging.Tools("provider %s close: %v", prov.Name(), err)
			}
		}
	})
}
