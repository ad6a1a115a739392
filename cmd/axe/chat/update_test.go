package chat

import (
	"context"
	"path/filepath"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"axe/internal/agent"
	"axe/internal/config"
	"axe/internal/store"
)

type fakeRunner struct {
	ch   chan agent.Event
	reqs []agent.TurnRequest
	ctx  context.Context
}

func (f *fakeRunner) RunTurn(ctx context.Context, req agent.TurnRequest) <-chan agent.Event {
	f.ctx = ctx
	f.reqs = append(f.reqs, req)
	return f.ch
}

func newTestModel(t *testing.T) (Model, *fakeRunner) {
	t.Helper()
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	sess, err := st.CreateSession("/tmp/axe-chat-test")
	require.NoError(t, err)

	cfg, err := config.Load(filepath.Join(t.TempDir(), "config.json"))
	require.NoError(t, err)

	runner := &fakeRunner{ch: make(chan agent.Event, 8)}
	m := New(Options{
		Config:     cfg,
		ConfigPath: filepath.Join(t.TempDir(), "config.json"),
		Store:      st,
		Runner:     runner,
		Agents:     config.BuiltinAgents(),
		SessionID:  sess.ID,
		WorkDir:    "/tmp/axe-chat-test",
		Version:    "test",
	})

	updated, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	return updated.(Model), runner
}

func key(t tea.KeyType) tea.KeyMsg { return tea.KeyMsg{Type: t} }

func keyRune(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

func submitText(t *testing.T, m Model, text string) (Model, tea.Cmd) {
	t.Helper()
	m.textarea.SetValue(text)
	updated, cmd := m.Update(key(tea.KeyEnter))
	return updated.(Model), cmd
}

func TestSubmitStartsTurn(t *testing.T) {
	m, runner := newTestModel(t)

	m, cmd := submitText(t, m, "hello there")
	assert.True(t, m.isLoading)
	assert.NotNil(t, cmd)
	require.Len(t, runner.reqs, 1)
	assert.Equal(t, "hello there", runner.reqs[0].Input)
	assert.Equal(t, m.sessionID, runner.reqs[0].SessionID)

	// The user entry shows immediately.
	require.NotEmpty(t, m.history)
	last := m.history[len(m.history)-1]
	assert.Equal(t, roleUser, last.role)
	assert.Equal(t, "hello there", last.content)
}

func TestSubmitRejectedWhileLoading(t *testing.T) {
	m, runner := newTestModel(t)

	m, _ = submitText(t, m, "first")
	require.Len(t, runner.reqs, 1)

	m, _ = submitText(t, m, "second")
	assert.Len(t, runner.reqs, 1)
	assert.Equal(t, "second", m.textarea.Value())
}

func TestStreamEventsAccumulateAndFinalize(t *testing.T) {
	m, _ := newTestModel(t)
	m, _ = submitText(t, m, "hi")

	m, _ = m.handleStreamEvent(streamEventMsg{ev: agent.Event{Kind: agent.EventText, Text: "Hel"}, ok: true})
	m, _ = m.handleStreamEvent(streamEventMsg{ev: agent.Event{Kind: agent.EventThinking, Text: "running shell"}, ok: true})
	assert.Equal(t, "running shell", m.thinking)
	m, _ = m.handleStreamEvent(streamEventMsg{ev: agent.Event{Kind: agent.EventText, Text: "lo"}, ok: true})
	assert.Equal(t, "Hello", m.streamBuf)
	assert.Empty(t, m.thinking)

	m, _ = m.handleStreamEvent(streamEventMsg{ok: false})
	assert.False(t, m.isLoading)
	assert.Empty(t, m.streamBuf)
	last := m.history[len(m.history)-1]
	assert.Equal(t, roleAssistant, last.role)
	assert.Equal(t, "Hello", last.content)
}

func TestCtrlCDuringTurnCancelsInsteadOfQuitting(t *testing.T) {
	m, runner := newTestModel(t)
	m, _ = submitText(t, m, "hi")
	m, _ = m.handleStreamEvent(streamEventMsg{ev: agent.Event{Kind: agent.EventText, Text: "part"}, ok: true})

	updated, cmd := m.Update(key(tea.KeyCtrlC))
	m = updated.(Model)
	assert.Nil(t, cmd)
	assert.Error(t, runner.ctx.Err())
	assert.True(t, m.isLoading)

	// Text buffered before the close is dropped, not shown.
	m, _ = m.handleStreamEvent(streamEventMsg{ev: agent.Event{Kind: agent.EventText, Text: "stale"}, ok: true})
	m, _ = m.handleStreamEvent(streamEventMsg{ok: false})
	assert.False(t, m.isLoading)
	last := m.history[len(m.history)-1]
	assert.Equal(t, roleUser, last.role)
}

func TestPickerSelectionSaturates(t *testing.T) {
	m, _ := newTestModel(t)
	updated, _ := m.handleCommand("/provider")
	m = updated.(Model)
	require.Equal(t, ModeProviderPick, m.mode)
	require.NotEmpty(t, m.pickerItems)

	m.selected = 0
	updated, _ = m.Update(key(tea.KeyUp))
	m = updated.(Model)
	assert.Equal(t, 0, m.selected)

	m.selected = len(m.pickerItems) - 1
	updated, _ = m.Update(key(tea.KeyDown))
	m = updated.(Model)
	assert.Equal(t, len(m.pickerItems)-1, m.selected)

	updated, _ = m.Update(keyRune('j'))
	m = updated.(Model)
	assert.Equal(t, len(m.pickerItems)-1, m.selected)
}

func TestPickerEscReturnsToChat(t *testing.T) {
	m, _ := newTestModel(t)
	updated, _ := m.handleCommand("/provider")
	m = updated.(Model)

	updated, _ = m.Update(key(tea.KeyEsc))
	m = updated.(Model)
	assert.Equal(t, ModeChat, m.mode)
	assert.Empty(t, m.pickerItems)
}

func TestProviderCommitUpdatesConfig(t *testing.T) {
	m, _ := newTestModel(t)
	updated, _ := m.handleCommand("/provider")
	m = updated.(Model)

	var idx int
	for i, it := range m.pickerItems {
		if it.id == "openai" {
			idx = i
			break
		}
	}
	m.selected = idx
	updated, _ = m.Update(key(tea.KeyEnter))
	m = updated.(Model)

	assert.Equal(t, ModeChat, m.mode)
	assert.Equal(t, "openai", m.cfg.Provider)
	assert.NotEmpty(t, m.cfg.Model)

	saved, err := config.Load(m.cfgPath)
	require.NoError(t, err)
	assert.Equal(t, "openai", saved.Provider)
}

func TestAgentCommitSwitchesVariant(t *testing.T) {
	m, _ := newTestModel(t)
	updated, _ := m.handleCommand("/agent")
	m = updated.(Model)
	require.Equal(t, ModeAgentPick, m.mode)

	for i, it := range m.pickerItems {
		if it.id == "researcher" {
			m.selected = i
		}
	}
	updated, _ = m.Update(key(tea.KeyEnter))
	m = updated.(Model)
	assert.Equal(t, "researcher", m.agent.Name)
	assert.NotEmpty(t, m.agent.Tools)
}

func TestPickerOpensOnCurrentSelection(t *testing.T) {
	m, _ := newTestModel(t)
	m.cfg.Provider = "groq"
	updated, _ := m.handleCommand("/provider")
	m = updated.(Model)
	assert.Equal(t, "groq", m.pickerItems[m.selected].id)
}
