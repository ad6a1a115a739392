package chat

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	if m.mode != ModeChat {
		return m.renderPicker()
	}

	return lipgloss.JoinVertical(
		lipgloss.Left,
		m.renderHeader(),
		m.viewport.View(),
		m.styles.Input.Render(m.textarea.View()),
		m.renderFooter(),
	)
}

func (m Model) renderHeader() string {
	title := m.styles.Header.Render(" axe ")
	version := m.styles.Muted.Render(m.version)

	var status string
	if m.isLoading {
		note := m.thinking
		if note == "" {
			note = "thinking"
		}
		status = m.spinner.View() + " " + m.styles.Muted.Render(note)
	} else {
		status = m.styles.Badge.Render("ready")
	}

	line := lipgloss.JoinHorizontal(lipgloss.Center, title, " ", version, "  ", status)
	divider := m.styles.Muted.Render(strings.Repeat("─", max(m.width, 1)))
	return lipgloss.JoinVertical(lipgloss.Left, line, divider)
}

func (m Model) renderFooter() string {
	hints := "/help for commands"
	if m.isLoading {
		hints = "Ctrl+C to stop"
	}
	return m.styles.Muted.Render(fmt.Sprintf(" %s · %s · %s | %s",
		m.cfg.Provider, m.cfg.Model, m.agent.Name, hints))
}

// refreshViewport re-renders the conversation into the viewport and
// keeps it pinned to the bottom.
func (m *Model) refreshViewport() {
	if !m.ready {
		return
	}
	var sb strings.Builder
	for _, msg := range m.history {
		switch msg.role {
		case roleUser:
			sb.WriteString(m.styles.UserLabel.Render("You") + "\n")
			sb.WriteString(msg.content)
			sb.WriteString("\n")
		case roleSystem:
			sb.WriteString(m.styles.Muted.Render(msg.content))
			sb.WriteString("\n")
		default:
			sb.WriteString(m.styles.BotLabel.Render("axe") + "\n")
			sb.WriteString(m.renderMarkdown(msg.content))
			sb.WriteString("\n")
		}
	}
	if m.streamBuf != "" {
		sb.WriteString(m.styles.BotLabel.Render("axe") + "\n")
		sb.WriteString(m.streamBuf)
		sb.WriteString("\n")
	}
	m.viewport.SetContent(sb.String())
	m.viewport.GotoBottom()
}

// renderMarkdown falls back to plain text when glamour cannot render.
func (m Model) renderMarkdown(content string) (out string) {
	defer func() {
		if r := recover(); r != nil {
			out = content
		}
	}()
	if m.renderer == nil || content == "" {
		return content
	}
	rendered, err := m.renderer.Render(content)
	if err != nil {
		return content
	}
	return rendered
}

func (m Model) renderPicker() string {
	var sb strings.Builder
	sb.WriteString(m.styles.Header.Render(" "+m.pickerTitle+" ") + "\n\n")
	for i, item := range m.pickerItems {
		cursor := "  "
		line := item.title
		if item.desc != "" {
			line += "  " + m.styles.Muted.Render(item.desc)
		}
		if i == m.selected {
			cursor = m.styles.Cursor.Render("> ")
			line = m.styles.Cursor.Render(item.title)
			if item.desc != "" {
				line += "  " + m.styles.Muted.Render(item.desc)
			}
		}
		sb.WriteString(cursor + line + "\n")
	}
	sb.WriteString("\n" + m.styles.Muted.Render("↑/↓ move · enter select · esc cancel"))
	return sb.String()
}
