package tools

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	name    string
	tools   []*Tool
	openErr error

	opens  atomic.Int32
	closes atomic.Int32
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Open(ctx context.Context) ([]*Tool, error) {
	f.opens.Add(1)
	if f.openErr != nil {
		return nil, f.openErr
	}
	return f.tools, nil
}

func (f *fakeProvider) Close() error {
	f.closes.Add(1)
	return nil
}

func namedTool(name string) *Tool {
	return &Tool{
		Name:        name,
		InputSchema: map[string]any{"type": "object"},
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			return name, nil
		},
	}
}

func TestPoolMergesInProviderOrder(t *testing.T) {
	a := &fakeProvider{name: "a", tools: []*Tool{namedTool("read"), namedTool("write")}}
	b := &fakeProvider{name: "b", tools: []*Tool{namedTool("search")}}
	pool := NewPool([]Provider{a, b}, false, nil)
	defer pool.Close()

	cs, err := pool.Open(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, cs.Len())

	var names []string
	for _, tool := range cs.Tools() {
		names = append(names, tool.Name)
	}
	assert.Equal(t, []string{"read", "write", "search"}, names)
}

func TestPoolLastProviderWinsOnConflict(t *testing.T) {
	first := &fakeProvider{name: "first", tools: []*Tool{namedTool("shell")}}
	second := &fakeProvider{name: "second", tools: []*Tool{namedTool("shell")}}
	pool := NewPool([]Provider{first, second}, false, nil)
	defer pool.Close()

	cs, err := pool.Open(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, cs.Len())

	out, err := cs.Get("shell").Execute(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "shell", out)
	// The surviving tool is second's instance: both return their own
	// name here, so distinguish by identity instead.
	assert.Same(t, second.tools[0], cs.Get("shell"))
}

func TestPoolDegradesWhenProviderFails(t *testing.T) {
	broken := &fakeProvider{name: "search", openErr: errors.New("spawn failed")}
	ok := &fakeProvider{name: "builtin", tools: []*Tool{namedTool("shell")}}
	pool := NewPool([]Provider{broken, ok}, false, nil)
	defer pool.Close()

	cs, err := pool.Open(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, cs.Len())
	require.Len(t, cs.Warnings, 1)
	assert.Contains(t, cs.Warnings[0], "search tools unavailable")
}

func TestPoolStrictFailsWholeOpen(t *testing.T) {
	broken := &fakeProvider{name: "search", openErr: errors.New("spawn failed")}
	ok := &fakeProvider{name: "builtin", tools: []*Tool{namedTool("shell")}}
	pool := NewPool([]Provider{broken, ok}, true, nil)

	_, err := pool.Open(context.Background())
	require.Error(t, err)

	var perr *ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "search", perr.Provider)

	// Providers that did open must still be torn down.
	assert.Equal(t, int32(1), ok.closes.Load())
}

func TestPoolDisabledToolsAreDropped(t *testing.T) {
	p := &fakeProvider{name: "builtin", tools: []*Tool{namedTool("shell"), namedTool("read")}}
	pool := NewPool([]Provider{p}, false, []string{"shell"})
	defer pool.Close()

	cs, err := pool.Open(context.Background())
	require.NoError(t, err)
	assert.Nil(t, cs.Get("shell"))
	assert.NotNil(t, cs.Get("read"))
}

func TestPoolCloseIsIdempotent(t *testing.T) {
	p := &fakeProvider{name: "builtin", tools: []*Tool{namedTool("shell")}}
	pool := NewPool([]Provider{p}, false, nil)

	_, err := pool.Open(context.Background())
	require.NoError(t, err)

	pool.Close()
	pool.Close()
	assert.Equal(t, int32(1), p.closes.Load())
}
