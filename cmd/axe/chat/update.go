package chat

import (
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"

	"axe/internal/config"
	"axe/internal/logging"
	"axe/internal/provider"
)

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m.handleResize(msg)

	case spinner.TickMsg:
		if !m.isLoading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case streamEventMsg:
		return m.handleStreamEvent(msg)

	case ConfigReloadedMsg:
		m.cfg = msg.Config
		m.agent = config.FindAgent(m.agents, msg.Config.Agent)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	var cmd tea.Cmd
	m.textarea, cmd = m.textarea.Update(msg)
	return m, cmd
}

func (m Model) handleResize(msg tea.WindowSizeMsg) (Model, tea.Cmd) {
	m.width = msg.Width
	m.height = msg.Height

	headerHeight := 3
	inputHeight := 5
	footerHeight := 2
	vpHeight := msg.Height - headerHeight - inputHeight - footerHeight
	if vpHeight < 1 {
		vpHeight = 1
	}

	if !m.ready {
		m.viewport = viewport.New(msg.Width, vpHeight)
		renderer, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(msg.Width-4),
		)
		if err == nil {
			m.renderer = renderer
		}
		m.loadHistory()
		m.ready = true
	} else {
		m.viewport.Width = msg.Width
		m.viewport.Height = vpHeight
	}
	m.textarea.SetWidth(msg.Width - 4)
	m.refreshViewport()
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.mode != ModeChat {
		return m.handlePickerKey(msg)
	}

	switch msg.Type {
	case tea.KeyCtrlC:
		if m.isLoading {
			return m.interruptTurn(), nil
		}
		return m, tea.Quit

	case tea.KeyEnter:
		return m.submit()

	case tea.KeyPgUp:
		m.viewport.HalfViewUp()
		return m, nil

	case tea.KeyPgDown:
		m.viewport.HalfViewDown()
		return m, nil
	}

	var cmd tea.Cmd
	m.textarea, cmd = m.textarea.Update(msg)
	return m, cmd
}

// submit routes the input line: slash commands stay local, everything
// else becomes a turn. Submission is rejected while a turn is running.
func (m Model) submit() (tea.Model, tea.Cmd) {
	input := strings.TrimSpace(m.textarea.Value())
	if input == "" {
		return m, nil
	}
	if m.isLoading {
		return m, nil
	}
	m.textarea.Reset()
	if strings.HasPrefix(input, "/") {
		return m.handleCommand(input)
	}
	return m.startTurn(input)
}

// handlePickerKey drives the selection lists. The index saturates at
// both ends instead of wrapping.
func (m Model) handlePickerKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		if m.selected > 0 {
			m.selected--
		}
		return m, nil
	case "down", "j":
		if m.selected < len(m.pickerItems)-1 {
			m.selected++
		}
		return m, nil
	case "enter":
		return m.commitSelection()
	case "esc", "q", "ctrl+c":
		m.mode = ModeChat
		m.pickerItems = nil
		return m, nil
	}
	return m, nil
}

func (m Model) openPicker(mode ViewMode, title string, items []pickerItem, current string) (tea.Model, tea.Cmd) {
	m.mode = mode
	m.pickerTitle = title
	m.pickerItems = items
	m.selected = 0
	for i, it := range items {
		if it.id == current {
			m.selected = i
			break
		}
	}
	return m, nil
}

func (m Model) commitSelection() (tea.Model, tea.Cmd) {
	if len(m.pickerItems) == 0 {
		m.mode = ModeChat
		return m, nil
	}
	sel := m.pickerItems[m.selected]
	mode := m.mode
	m.mode = ModeChat
	m.pickerItems = nil

	switch mode {
	case ModeSessionPick:
		return m.switchSession(sel.id)

	case ModeProviderPick:
		models := provider.Models(sel.id)
		model := ""
		if len(models) > 0 {
			model = models[0]
		}
		if err := m.cfg.SetProvider(m.cfgPath, sel.id, model); err != nil {
			logging.Session("save provider selection: %v", err)
		}
		m.notify("Provider set to " + sel.id + " (" + model + ")")

	case ModeModelPick:
		m.cfg.Model = sel.id
		if err := m.cfg.Save(m.cfgPath); err != nil {
			logging.Session("save model selection: %v", err)
		}
		m.notify("Model set to " + sel.id)

	case ModeAgentPick:
		m.agent = config.FindAgent(m.agents, sel.id)
		m.cfg.Agent = m.agent.Name
		if err := m.cfg.Save(m.cfgPath); err != nil {
			logging.Session("save agent selection: %v", err)
		}
		m.notify("Agent set to " + m.agent.Name)
	}
	m.refreshViewport()
	return m, nil
}

func (m Model) switchSession(id string) (tea.Model, tea.Cmd) {
	m.sessionID = id
	m.loadHistory()
	m.refreshViewport()
	m.viewport.GotoBottom()
	return m, nil
}

// notify appends a local system line to the conversation view.
func (m *Model) notify(text string) {
	m.history = append(m.history, message{role: roleSystem, content: text})
}
