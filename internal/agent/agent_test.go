package agent

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"axe/internal/config"
	"axe/internal/provider"
	"axe/internal/store"
	"axe/internal/tools"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))
}

// fakeClient plays back a per-step script of chunks and records every
// request it sees.
type fakeClient struct {
	mu       sync.Mutex
	scripts  [][]provider.Chunk
	requests []provider.Request
}

func (f *fakeClient) Provider() string { return "fake" }
func (f *fakeClient) Model() string    { return "fake-1" }

func (f *fakeClient) Generate(ctx context.Context, req provider.Request) (*provider.Response, error) {
	return nil, errors.New("not used")
}

func (f *fakeClient) GenerateStream(ctx context.Context, req provider.Request) <-chan provider.Chunk {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	idx := len(f.requests) - 1
	if idx >= len(f.scripts) {
		idx = len(f.scripts) - 1
	}
	script := f.scripts[idx]
	f.mu.Unlock()

	ch := make(chan provider.Chunk, len(script)+1)
	go func() {
		defer close(ch)
		for _, c := range script {
			select {
			case <-ctx.Done():
				ch <- provider.Chunk{Kind: provider.ChunkError, Err: ctx.Err()}
				return
			case ch <- c:
			}
		}
	}()
	return ch
}

func (f *fakeClient) requestCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func (f *fakeClient) request(i int) provider.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[i]
}

// blockingClient emits one text chunk, then holds the stream open until
// the context is cancelled.
type blockingClient struct {
	started chan struct{}
}

func (b *blockingClient) Provider() string { return "fake" }
func (b *blockingClient) Model() string    { return "fake-1" }

func (b *blockingClient) Generate(ctx context.Context, req provider.Request) (*provider.Response, error) {
	return nil, errors.New("not used")
}

func (b *blockingClient) GenerateStream(ctx context.Context, req provider.Request) <-chan provider.Chunk {
	ch := make(chan provider.Chunk, 2)
	go func() {
		defer close(ch)
		ch <- provider.Chunk{Kind: provider.ChunkText, Text: "partial "}
		close(b.started)
		<-ctx.Done()
		ch <- provider.Chunk{Kind: provider.ChunkError, Err: ctx.Err()}
	}()
	return ch
}

func text(s string) provider.Chunk { return provider.Chunk{Kind: provider.ChunkText, Text: s} }
func done() provider.Chunk         { return provider.Chunk{Kind: provider.ChunkDone} }

func call(id, name string, args map[string]any) provider.Chunk {
	return provider.Chunk{Kind: provider.ChunkToolCall, ToolCall: &provider.ToolCall{ID: id, Name: name, Args: args}}
}

// countingPool wraps a real pool and counts teardowns.
type countingPool struct {
	inner  *tools.Pool
	closes atomic.Int32
}

func (p *countingPool) Open(ctx context.Context) (*tools.CapabilitySet, error) {
	return p.inner.Open(ctx)
}

func (p *countingPool) Close() {
	p.closes.Add(1)
	p.inner.Close()
}

type testEnv struct {
	store     *store.Store
	sessionID string
	orch      *Orchestrator
}

func newTestEnv(t *testing.T, client provider.Client, poolTools ...*tools.Tool) *testEnv {
	t.Helper()
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	sess, err := st.CreateSession("/tmp/axe-test")
	require.NoError(t, err)

	resolve := func(p, m string) (provider.Client, error) { return client, nil }
	newPool := func() ToolPool {
		return tools.NewPool([]tools.Provider{tools.NewBuiltinProvider(poolTools...)}, false, nil)
	}
	orch := New(st, resolve, newPool, t.TempDir(), config.TurnConfig{StepBudget: 10, HistoryWindow: 50})
	return &testEnv{store: st, sessionID: sess.ID, orch: orch}
}

func collect(t *testing.T, events <-chan Event) []Event {
	t.Helper()
	var out []Event
	for ev := range events {
		out = append(out, ev)
	}
	return out
}

func assistantText(events []Event) string {
	var b strings.Builder
	for _, ev := range events {
		if ev.Kind == EventText {
			b.WriteString(ev.Text)
		}
	}
	return b.String()
}

func TestPlainTextTurn(t *testing.T) {
	client := &fakeClient{scripts: [][]provider.Chunk{{text("Hello"), text(" there"), done()}}}
	env := newTestEnv(t, client)

	events := collect(t, env.orch.RunTurn(context.Background(), TurnRequest{
		SessionID: env.sessionID,
		Input:     "hi",
	}))
	assert.Equal(t, "Hello there", assistantText(events))

	msgs, err := env.store.Recent(env.sessionID, 10)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, store.RoleUser, msgs[0].Role)
	assert.Equal(t, "hi", msgs[0].Content)
	assert.Equal(t, store.RoleAssistant, msgs[1].Role)
	assert.Equal(t, "Hello there", msgs[1].Content)
	assert.Less(t, msgs[0].ID, msgs[1].ID)
}

func TestToolLoopFeedsResultsBack(t *testing.T) {
	var gotArgs map[string]any
	echo := &tools.Tool{
		Name:        "echo",
		InputSchema: map[string]any{"type": "object"},
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			gotArgs = args
			return "echoed: " + args["text"].(string), nil
		},
	}
	client := &fakeClient{scripts: [][]provider.Chunk{
		{call("c1", "echo", map[string]any{"text": "ping"}), done()},
		{text("The tool said ping."), done()},
	}}
	env := newTestEnv(t, client, echo)

	events := collect(t, env.orch.RunTurn(context.Background(), TurnRequest{
		SessionID: env.sessionID,
		Input:     "use the tool",
	}))

	var notes []string
	for _, ev := range events {
		if ev.Kind == EventThinking {
			notes = append(notes, ev.Text)
		}
	}
	assert.Equal(t, []string{"running echo"}, notes)
	assert.Equal(t, map[string]any{"text": "ping"}, gotArgs)
	assert.Equal(t, "The tool said ping.", assistantText(events))

	// Second step must see the tool result message.
	require.Equal(t, 2, client.requestCount())
	second := client.request(1)
	last := second.Messages[len(second.Messages)-1]
	assert.Equal(t, "tool", last.Role)
	assert.Equal(t, "c1", last.ToolCallID)
	assert.Equal(t, "echoed: ping", last.Content)

	msgs, err := env.store.Recent(env.sessionID, 10)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "The tool said ping.", msgs[1].Content)
}

func TestStepBudgetTerminatesLoop(t *testing.T) {
	spin := &tools.Tool{
		Name:        "spin",
		InputSchema: map[string]any{"type": "object"},
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			return "again", nil
		},
	}
	// Every step asks for another tool call.
	client := &fakeClient{scripts: [][]provider.Chunk{
		{call("c1", "spin", map[string]any{}), done()},
	}}
	env := newTestEnv(t, client, spin)
	env.orch.turn.StepBudget = 3

	events := collect(t, env.orch.RunTurn(context.Background(), TurnRequest{
		SessionID: env.sessionID,
		Input:     "loop forever",
	}))
	assert.Equal(t, 3, client.requestCount())
	assert.Contains(t, assistantText(events), "step limit")
}

func TestCancellationIsSilent(t *testing.T) {
	client := &blockingClient{started: make(chan struct{})}
	env := newTestEnv(t, client)

	pool := &countingPool{inner: tools.NewPool([]tools.Provider{tools.NewBuiltinProvider()}, false, nil)}
	env.orch.newPool = func() ToolPool { return pool }

	ctx, cancel := context.WithCancel(context.Background())
	events := env.orch.RunTurn(ctx, TurnRequest{SessionID: env.sessionID, Input: "hang"})

	first := <-events
	assert.Equal(t, EventText, first.Kind)
	<-client.started
	cancel()

	rest := collect(t, events)
	for _, ev := range rest {
		assert.NotContains(t, ev.Text, "Error")
	}

	// Only the user message survives the interrupted turn.
	msgs, err := env.store.Recent(env.sessionID, 10)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, store.RoleUser, msgs[0].Role)

	// Teardown happens on the cancellation exit path too, exactly once.
	assert.Equal(t, int32(1), pool.closes.Load())
}

func TestCancellationPersistsPartialWhenConfigured(t *testing.T) {
	client := &blockingClient{started: make(chan struct{})}
	env := newTestEnv(t, client)
	env.orch.turn.PersistPartialTurns = true

	ctx, cancel := context.WithCancel(context.Background())
	events := env.orch.RunTurn(ctx, TurnRequest{SessionID: env.sessionID, Input: "hang"})

	first := <-events
	assert.Equal(t, EventText, first.Kind)
	<-client.started
	cancel()
	collect(t, events)

	msgs, err := env.store.Recent(env.sessionID, 10)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, store.RoleAssistant, msgs[1].Role)
	assert.Equal(t, "partial ", msgs[1].Content)
}

func TestBackendFailureEmitsErrorAndSkipsPersist(t *testing.T) {
	client := &fakeClient{scripts: [][]provider.Chunk{
		{text("part"), {Kind: provider.ChunkError, Err: errors.New("rate limited")}},
	}}
	env := newTestEnv(t, client)

	events := collect(t, env.orch.RunTurn(context.Background(), TurnRequest{
		SessionID: env.sessionID,
		Input:     "hi",
	}))
	final := events[len(events)-1]
	assert.Equal(t, EventText, final.Kind)
	assert.Contains(t, final.Text, "rate limited")

	msgs, err := env.store.Recent(env.sessionID, 10)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, store.RoleUser, msgs[0].Role)
}

func TestResolveFailureEmitsError(t *testing.T) {
	env := newTestEnv(t, &fakeClient{scripts: [][]provider.Chunk{{done()}}})
	env.orch.resolve = func(p, m string) (provider.Client, error) {
		return nil, errors.New("unknown provider \"nope\"")
	}

	events := collect(t, env.orch.RunTurn(context.Background(), TurnRequest{
		SessionID: env.sessionID,
		Input:     "hi",
	}))
	assert.Contains(t, assistantText(events), "unknown provider")
}

func TestFileReferencesAnnotateModelInputOnly(t *testing.T) {
	client := &fakeClient{scripts: [][]provider.Chunk{{text("ok"), done()}}}
	env := newTestEnv(t, client)

	require.NoError(t, os.WriteFile(filepath.Join(env.orch.workDir, "notes.md"), []byte("x"), 0o644))
	input := "summarize @notes.md and @missing.txt"

	collect(t, env.orch.RunTurn(context.Background(), TurnRequest{
		SessionID: env.sessionID,
		Input:     input,
	}))

	sent := client.request(0)
	last := sent.Messages[len(sent.Messages)-1]
	require.Contains(t, last.Content, "referenced these files")
	note := last.Content[strings.Index(last.Content, "referenced these files"):]
	assert.Contains(t, note, "notes.md")
	assert.NotContains(t, note, "missing.txt")

	msgs, err := env.store.Recent(env.sessionID, 10)
	require.NoError(t, err)
	assert.Equal(t, input, msgs[0].Content)
}

func TestHistoryWindowBoundsContext(t *testing.T) {
	client := &fakeClient{scripts: [][]provider.Chunk{{text("ok"), done()}}}
	env := newTestEnv(t, client)
	env.orch.turn.HistoryWindow = 4

	for i := 0; i < 10; i++ {
		_, err := env.store.Append(env.sessionID, store.RoleUser, "old")
		require.NoError(t, err)
	}
	collect(t, env.orch.RunTurn(context.Background(), TurnRequest{
		SessionID: env.sessionID,
		Input:     "newest",
	}))

	sent := client.request(0)
	assert.Len(t, sent.Messages, 4)
	assert.Equal(t, "newest", sent.Messages[3].Content)
}

func TestAgentToolFilter(t *testing.T) {
	a := &tools.Tool{Name: "a", InputSchema: map[string]any{"type": "object"}}
	b := &tools.Tool{Name: "b", InputSchema: map[string]any{"type": "object"}}
	client := &fakeClient{scripts: [][]provider.Chunk{{text("ok"), done()}}}
	env := newTestEnv(t, client, a, b)

	collect(t, env.orch.RunTurn(context.Background(), TurnRequest{
		SessionID: env.sessionID,
		Input:     "hi",
		Agent:     config.AgentVariant{Name: "narrow", Tools: []string{"b"}},
	}))

	sent := client.request(0)
	require.Len(t, sent.Tools, 1)
	assert.Equal(t, "b", sent.Tools[0].Name)
}

func TestRunCollectsFinalText(t *testing.T) {
	client := &fakeClient{scripts: [][]provider.Chunk{{text("one "), text("shot"), done()}}}
	env := newTestEnv(t, client)

	out, err := env.orch.Run(context.Background(), TurnRequest{SessionID: env.sessionID, Input: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "one shot", out)
}

func TestSystemPromptPassedThrough(t *testing.T) {
	client := &fakeClient{scripts: [][]provider.Chunk{{text("ok"), done()}}}
	env := newTestEnv(t, client)

	agents := config.BuiltinAgents()
	collect(t, env.orch.RunTurn(context.Background(), TurnRequest{
		SessionID: env.sessionID,
		Input:     "hi",
		Agent:     agents[0],
	}))
	assert.Equal(t, agents[0].SystemPrompt, client.request(0).System)
}
