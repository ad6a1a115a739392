package chat

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"axe/internal/agent"
)

// streamEventMsg delivers one orchestrator event to the update loop.
// ok=false means the event channel closed: the turn is over.
type streamEventMsg struct {
	ev agent.Event
	ok bool
}

// waitForEvent blocks on the turn's event channel and hands the next
// event (or the close) back to bubbletea.
func waitForEvent(ch <-chan agent.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-ch
		return streamEventMsg{ev: ev, ok: ok}
	}
}

// startTurn kicks off one conversation turn. The cancel func is held so
// Ctrl+C can interrupt generation.
func (m Model) startTurn(input string) (Model, tea.Cmd) {
	ctx, cancel := context.WithCancel(context.Background())
	m.cancelTurn = cancel
	m.isLoading = true
	m.streamBuf = ""
	m.thinking = ""
	m.history = append(m.history, message{role: roleUser, content: input})

	m.events = m.runner.RunTurn(ctx, agent.TurnRequest{
		SessionID: m.sessionID,
		Input:     input,
		Provider:  m.cfg.Provider,
		Model:     m.cfg.Model,
		Agent:     m.agent,
	})
	m.refreshViewport()
	return m, tea.Batch(m.spinner.Tick, waitForEvent(m.events))
}

func (m Model) handleStreamEvent(msg streamEventMsg) (Model, tea.Cmd) {
	if !msg.ok {
		// Turn finished (completed, failed, or cancelled): the stream
		// buffer becomes the assistant entry, empty on cancellation.
		if m.cancelTurn != nil {
			m.cancelTurn()
			m.cancelTurn = nil
		}
		m.isLoading = false
		if m.streamBuf != "" {
			m.history = append(m.history, message{role: roleAssistant, content: m.streamBuf})
		}
		m.streamBuf = ""
		m.thinking = ""
		m.events = nil
		m.refreshViewport()
		return m, nil
	}

	// cancelTurn == nil while still loading means the user interrupted:
	// drop anything still buffered in the stream.
	interrupted := m.cancelTurn == nil
	switch msg.ev.Kind {
	case agent.EventText:
		if !interrupted {
			m.streamBuf += msg.ev.Text
			m.thinking = ""
		}
	case agent.EventThinking:
		if !interrupted {
			m.thinking = msg.ev.Text
		}
	}
	m.refreshViewport()
	return m, waitForEvent(m.events)
}

// interruptTurn cancels in-flight generation. The stream keeps being
// drained until the orchestrator closes the channel.
func (m Model) interruptTurn() Model {
	if m.cancelTurn != nil {
		m.cancelTurn()
		m.cancelTurn = nil
	}
	m.streamBuf = ""
	m.thinking = "cancelling"
	return m
}
