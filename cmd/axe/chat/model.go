// Package chat is the interactive TUI: a bubbletea program that renders
// the conversation, dispatches slash commands, and pumps orchestrator
// events into the view while a turn is streaming.
package chat

import (
	"context"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"axe/internal/agent"
	"axe/internal/config"
	"axe/internal/store"
)

// ViewMode selects which surface owns the keyboard.
type ViewMode int

const (
	ModeChat ViewMode = iota
	ModeSessionPick
	ModeProviderPick
	ModeModelPick
	ModeAgentPick
)

// bootHistoryLimit bounds how much of a session is loaded for display.
const bootHistoryLimit = 1000

const (
	roleUser      = "user"
	roleAssistant = "assistant"
	roleSystem    = "system"
)

// message is one rendered history entry. System entries are local UI
// output (command results, warnings) and never reach the model.
type message struct {
	role    string
	content string
}

// ConfigReloadedMsg is sent by the config file watcher when ~/.axe
// config changes on disk while the TUI is running.
type ConfigReloadedMsg struct {
	Config *config.UserConfig
}

// pickerItem is one row of a selection list.
type pickerItem struct {
	id    string
	title string
	desc  string
}

// turnRunner is the orchestrator surface the TUI drives.
type turnRunner interface {
	RunTurn(ctx context.Context, req agent.TurnRequest) <-chan agent.Event
}

// Options wires the chat model to its collaborators.
type Options struct {
	Config     *config.UserConfig
	ConfigPath string
	Store      *store.Store
	Runner     turnRunner
	Agents     []config.AgentVariant
	SessionID  string
	WorkDir    string
	Version    string
}

// Model is the bubbletea model for the chat screen.
type Model struct {
	textarea textarea.Model
	viewport viewport.Model
	spinner  spinner.Model
	renderer *glamour.TermRenderer
	styles   Styles

	mode        ViewMode
	pickerTitle string
	pickerItems []pickerItem
	selected    int

	cfg     *config.UserConfig
	cfgPath string
	store   *store.Store
	runner  turnRunner
	agents  []config.AgentVariant
	agent   config.AgentVariant
	workDir string
	version string

	sessionID string
	history   []message

	// In-flight turn state.
	isLoading  bool
	streamBuf  string
	thinking   string
	events     <-chan agent.Event
	cancelTurn context.CancelFunc

	width  int
	height int
	ready  bool
}

// New builds the chat model. History for the active session is loaded
// lazily on the first WindowSizeMsg, once the viewport exists.
func New(opts Options) Model {
	ta := textarea.New()
	ta.Placeholder = "Ask anything ('/' for commands, @file to reference files)"
	ta.Prompt = "> "
	ta.CharLimit = 0
	ta.SetHeight(3)
	ta.ShowLineNumbers = false
	ta.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(accentColor)

	return Model{
		textarea:  ta,
		spinner:   sp,
		styles:    defaultStyles(),
		cfg:       opts.Config,
		cfgPath:   opts.ConfigPath,
		store:     opts.Store,
		runner:    opts.Runner,
		agents:    opts.Agents,
		agent:     config.FindAgent(opts.Agents, opts.Config.Agent),
		workDir:   opts.WorkDir,
		version:   opts.Version,
		sessionID: opts.SessionID,
	}
}

func (m Model) Init() tea.Cmd {
	return textarea.Blink
}

// loadHistory replaces the displayed history with the stored tail of the
// active session.
func (m *Model) loadHistory() {
	m.history = nil
	msgs, err := m.store.Recent(m.sessionID, bootHistoryLimit)
	if err != nil {
		m.history = append(m.history, message{role: roleSystem, content: "Could not load history: " + err.Error()})
		return
	}
	for _, msg := range msgs {
		m.history = append(m.history, message{role: msg.Role, content: msg.Content})
	}
}
