package chat

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"axe/internal/provider"
	"axe/internal/store"
)

const helpText = `Commands:
  /history   browse and switch sessions
  /provider  switch model provider
  /model     switch model
  /agent     switch agent variant
  /new       start a new session
  /clear     clear the screen
  /help      show this help
  /quit      exit

Reference files with @path. Ctrl+C stops a running response.`

// handleCommand executes a slash command locally. Commands are never
// sent to the model.
func (m Model) handleCommand(input string) (tea.Model, tea.Cmd) {
	cmd := strings.Fields(input)[0]
	switch cmd {
	case "/help":
		m.notify(helpText)

	case "/history":
		return m.openSessionPicker()

	case "/provider":
		items := make([]pickerItem, 0, len(provider.Names()))
		for _, name := range provider.Names() {
			models := provider.Models(name)
			items = append(items, pickerItem{
				id:    name,
				title: name,
				desc:  fmt.Sprintf("%d models", len(models)),
			})
		}
		return m.openPicker(ModeProviderPick, "Select a provider", items, m.cfg.Provider)

	case "/model":
		models := provider.Models(m.cfg.Provider)
		if len(models) == 0 {
			m.notify("No models known for provider " + m.cfg.Provider)
			break
		}
		items := make([]pickerItem, 0, len(models))
		for _, name := range models {
			items = append(items, pickerItem{id: name, title: name})
		}
		return m.openPicker(ModeModelPick, "Select a model ("+m.cfg.Provider+")", items, m.cfg.Model)

	case "/agent":
		items := make([]pickerItem, 0, len(m.agents))
		for _, a := range m.agents {
			items = append(items, pickerItem{id: a.Name, title: a.Name, desc: a.Description})
		}
		return m.openPicker(ModeAgentPick, "Select an agent", items, m.agent.Name)

	case "/new":
		sess, err := m.store.CreateSession(m.workDir)
		if err != nil {
			m.notify("Could not create session: " + err.Error())
			break
		}
		m.sessionID = sess.ID
		m.history = nil
		m.notify("Started " + sess.Name)

	case "/clear":
		m.history = nil

	case "/quit", "/exit":
		return m, tea.Quit

	default:
		m.notify("Unknown command " + cmd + " (try /help)")
	}
	m.refreshViewport()
	return m, nil
}

func (m Model) openSessionPicker() (tea.Model, tea.Cmd) {
	sessions, err := m.store.ListSessions(m.workDir, store.CurrentPath)
	if err != nil {
		m.notify("Could not list sessions: " + err.Error())
		m.refreshViewport()
		return m, nil
	}
	if len(sessions) == 0 {
		m.notify("No sessions yet in this directory.")
		m.refreshViewport()
		return m, nil
	}
	items := make([]pickerItem, 0, len(sessions))
	for _, s := range sessions {
		items = append(items, pickerItem{
			id:    s.ID,
			title: s.Name,
			desc:  fmt.Sprintf("%d messages · %s", s.MessageCount, s.LastMessageAt.Format("Jan 2 15:04")),
		})
	}
	return m.openPicker(ModeSessionPick, "Sessions", items, m.sessionID)
}
