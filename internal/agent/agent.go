package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"axe/internal/config"
	"axe/internal/logging"
	"axe/internal/provider"
	"axe/internal/store"
	"axe/internal/tools"
)

// ToolPool is the per-turn tool lifecycle the orchestrator drives.
type ToolPool interface {
	Open(ctx context.Context) (*tools.CapabilitySet, error)
	Close()
}

// PoolFactory builds a fresh pool for each turn. Tool connections are
// never reused across turns.
type PoolFactory func() ToolPool

// ClientResolver maps a provider/model pair to a backend client.
type ClientResolver func(providerName, modelName string) (provider.Client, error)

// TurnRequest describes one user turn.
type TurnRequest struct {
	SessionID string
	Input     string
	Provider  string
	Model     string
	Agent     config.AgentVariant
}

// Orchestrator runs turns against a session store and model backend.
type Orchestrator struct {
	store   *store.Store
	resolve ClientResolver
	newPool PoolFactory
	workDir string
	turn    config.TurnConfig
}

// New wires an orchestrator. turn carries the step budget and history
// window; zero values fall back to the defaults.
func New(st *store.Store, resolve ClientResolver, newPool PoolFactory, workDir string, turn config.TurnConfig) *Orchestrator {
	if turn.StepBudget <= 0 {
		turn.StepBudget = config.DefaultStepBudget
	}
	if turn.HistoryWindow <= 0 {
		turn.HistoryWindow = config.DefaultHistoryWindow
	}
	return &Orchestrator{store: st, resolve: resolve, newPool: newPool, workDir: workDir, turn: turn}
}

// RunTurn starts a turn and returns its event stream. The channel is
// closed when the turn finishes, fails, or is cancelled. Cancellation
// is silent: the stream just ends and nothing from the interrupted
// generation is persisted.
func (o *Orchestrator) RunTurn(ctx context.Context, req TurnRequest) <-chan Event {
	events := make(chan Event, 32)
	go func() {
		defer close(events)
		o.runTurn(ctx, req, events)
	}()
	return events
}

// Run executes a turn to completion and returns the assistant text.
// Used by the one-shot CLI path.
func (o *Orchestrator) Run(ctx context.Context, req TurnRequest) (string, error) {
	var b strings.Builder
	for ev := range o.RunTurn(ctx, req) {
		if ev.Kind == EventText {
			b.WriteString(ev.Text)
		}
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return b.String(), nil
}

func (o *Orchestrator) runTurn(ctx context.Context, req TurnRequest, events chan<- Event) {
	// The session id is pinned here: if the user switches sessions while
	// the turn is streaming, messages still land in the session the turn
	// started in.
	sessionID := req.SessionID

	if _, err := o.store.Append(sessionID, store.RoleUser, req.Input); err != nil {
		events <- textEvent(fmt.Sprintf("Error: could not save your message: %v", err))
		return
	}

	history, err := o.store.Recent(sessionID, o.turn.HistoryWindow)
	if err != nil {
		events <- textEvent(fmt.Sprintf("Error: could not load session history: %v", err))
		return
	}
	msgs := historyMessages(history)
	if n := len(msgs); n > 0 {
		msgs[n-1].Content = annotateInput(o.workDir, req.Input)
	}

	client, err := o.resolve(req.Provider, req.Model)
	if err != nil {
		events <- textEvent(fmt.Sprintf("Error: %v", err))
		return
	}

	pool := o.newPool()
	defer pool.Close()
	caps, err := pool.Open(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		events <- textEvent(fmt.Sprintf("Error: could not start tools: %v", err))
		return
	}
	for _, w := range caps.Warnings {
		events <- thinkingEvent(w)
	}

	active := allowedTools(caps, req.Agent.Tools)
	defs := definitions(active)
	byName := make(map[string]*tools.Tool, len(active))
	for _, t := range active {
		byName[t.Name] = t
	}

	logging.Turn("turn start: session=%s provider=%s model=%s tools=%d", sessionID, client.Provider(), client.Model(), len(active))

	var final strings.Builder
	for step := 0; step < o.turn.StepBudget; step++ {
		stream := client.GenerateStream(ctx, provider.Request{
			System:   req.Agent.SystemPrompt,
			Messages: msgs,
			Tools:    defs,
		})

		var stepText strings.Builder
		var calls []provider.ToolCall
		for chunk := range stream {
			switch chunk.Kind {
			case provider.ChunkText:
				stepText.WriteString(chunk.Text)
				final.WriteString(chunk.Text)
				events <- textEvent(chunk.Text)
			case provider.ChunkToolCall:
				calls = append(calls, *chunk.ToolCall)
			case provider.ChunkError:
				if ctx.Err() != nil || errors.Is(chunk.Err, context.Canceled) {
					logging.Turn("turn cancelled: session=%s step=%d", sessionID, step)
					o.persistPartial(sessionID, final.String())
					return
				}
				logging.Turn("turn failed: session=%s step=%d err=%v", sessionID, step, chunk.Err)
				events <- textEvent(fmt.Sprintf("Error: %v", chunk.Err))
				return
			case provider.ChunkDone:
			}
		}
		if ctx.Err() != nil {
			logging.Turn("turn cancelled: session=%s step=%d", sessionID, step)
			o.persistPartial(sessionID, final.String())
			return
		}

		if len(calls) == 0 {
			o.persistAssistant(sessionID, final.String())
			logging.Turn("turn done: session=%s steps=%d chars=%d", sessionID, step+1, final.Len())
			return
		}

		msgs = append(msgs, provider.Message{Role: "assistant", Content: stepText.String(), ToolCalls: calls})
		for _, call := range calls {
			events <- thinkingEvent("running " + call.Name)
			result := o.executeCall(ctx, byName, call)
			if ctx.Err() != nil {
				logging.Turn("turn cancelled during tool call: session=%s tool=%s", sessionID, call.Name)
				o.persistPartial(sessionID, final.String())
				return
			}
			msgs = append(msgs, provider.Message{
				Role:       "tool",
				Content:    result,
				ToolCallID: call.ID,
				Name:       call.Name,
			})
		}
	}

	// Step budget exhausted: stop deterministically with what we have.
	events <- textEvent("\n\n[Stopped: tool step limit reached.]")
	o.persistAssistant(sessionID, final.String())
	logging.Turn("turn hit step budget: session=%s budget=%d", sessionID, o.turn.StepBudget)
}

func (o *Orchestrator) executeCall(ctx context.Context, byName map[string]*tools.Tool, call provider.ToolCall) string {
	tool := byName[call.Name]
	if tool == nil {
		return fmt.Sprintf("Tool %s is not available.", call.Name)
	}
	result, err := tool.Execute(ctx, call.Args)
	if err != nil {
		return fmt.Sprintf("Tool %s failed: %v", call.Name, err)
	}
	return result
}

// persistPartial saves a cancelled turn's accumulated text when
// turn.persist_partial_turns is set. The default drops the buffer.
func (o *Orchestrator) persistPartial(sessionID, text string) {
	if !o.turn.PersistPartialTurns {
		return
	}
	o.persistAssistant(sessionID, text)
}

func (o *Orchestrator) persistAssistant(sessionID, text string) {
	if text == "" {
		return
	}
	if _, err := o.store.Append(sessionID, store.RoleAssistant, text); err != nil {
		logging.Turn("persist assistant message: session=%s err=%v", sessionID, err)
	}
}

// allowedTools applies an agent variant's tool allowlist. An empty
// allowlist means every tool.
func allowedTools(caps *tools.CapabilitySet, allow []string) []*tools.Tool {
	all := caps.Tools()
	if len(allow) == 0 {
		return all
	}
	allowed := make(map[string]bool, len(allow))
	for _, name := range allow {
		allowed[name] = true
	}
	out := make([]*tools.Tool, 0, len(all))
	for _, t := range all {
		if allowed[t.Name] {
			out = append(out, t)
		}
	}
	return out
}

func definitions(ts []*tools.Tool) []provider.ToolDefinition {
	out := make([]provider.ToolDefinition, 0, len(ts))
	for _, t := range ts {
		out = append(out, provider.ToolDefinition{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: t.InputSchema,
		})
	}
	return out
}
