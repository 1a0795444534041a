// Package tui implements the interactive chat interface. It is a thin
// presentation layer over the conversation engine: every state transition
// lives in the engine, the UI only renders and forwards input.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"charm.land/bubbles/v2/textinput"
	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/lipgloss"

	"github.com/chatiitd/chatterm/internal/api"
	"github.com/chatiitd/chatterm/internal/conversation"
)

const sendTimeout = 2 * time.Minute

// Theme holds the color scheme for the chat display.
type Theme struct {
	User      lipgloss.Color
	Assistant lipgloss.Color
	Pending   lipgloss.Color
	Error     lipgloss.Color
	Hint      lipgloss.Color
}

// defaultTheme provides default colors.
var defaultTheme = Theme{
	User:      lipgloss.Color("#5FAFD7"), // light blue
	Assistant: lipgloss.Color("#00D787"), // green
	Pending:   lipgloss.Color("#6C6C6C"), // dim gray
	Error:     lipgloss.Color("#FF005F"), // red
	Hint:      lipgloss.Color("#6C6C6C"),
}

func (t Theme) userStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.User).Bold(true)
}

func (t Theme) assistantStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Assistant).Bold(true)
}

func (t Theme) pendingStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Pending).Italic(true)
}

func (t Theme) errorStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Error)
}

func (t Theme) hintStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Hint).Italic(true)
}

// sendResultMsg carries the outcome of one send.
type sendResultMsg struct {
	err error
}

// chatModel is the bubbletea model for the conversation view.
type chatModel struct {
	engine *conversation.Engine
	token  string
	input  textinput.Model
	theme  Theme
	width  int
	banner string
}

// newChatModel creates the chat model.
func newChatModel(engine *conversation.Engine, token string) chatModel {
	input := textinput.New()
	input.Placeholder = "Type your message..."
	input.Focus()

	return chatModel{
		engine: engine,
		token:  token,
		input:  input,
		theme:  defaultTheme,
	}
}

// Init returns the initial command.
func (m chatModel) Init() tea.Cmd {
	return nil
}

// Update handles messages and returns the updated model.
func (m chatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tea.KeyPressMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit
		case "enter":
			if m.engine.Sending() {
				// Sends are serialized; ignore until the pending one resolves.
				return m, nil
			}
			content := strings.TrimSpace(m.input.Value())
			if content == "" {
				return m, nil
			}
			m.input.SetValue("")
			m.banner = ""
			return m, m.sendCmd(content)
		}

		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd

	case sendResultMsg:
		if msg.err != nil && !errors.Is(msg.err, conversation.ErrSendInFlight) {
			m.banner = "Send failed: " + api.ErrorMessage(msg.err)
			// The engine restored the draft; put it back into the input so
			// resubmitting is a single keypress.
			m.input.SetValue(m.engine.Draft())
		}
		return m, nil
	}

	return m, nil
}

// sendCmd submits the message in a command to avoid blocking Update().
func (m chatModel) sendCmd(content string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		defer cancel()

		return sendResultMsg{err: m.engine.Send(ctx, m.token, content)}
	}
}

// View renders the conversation.
func (m chatModel) View() tea.View {
	return tea.NewView(m.renderContent())
}

// renderContent builds the display string.
func (m chatModel) renderContent() string {
	var b strings.Builder

	if id := m.engine.ActiveID(); id != "" {
		b.WriteString(m.theme.hintStyle().Render("chat "+id) + "\n\n")
	} else {
		b.WriteString(m.theme.hintStyle().Render("new conversation: your first message starts it") + "\n\n")
	}

	entries := m.engine.Entries()
	if len(entries) == 0 {
		b.WriteString(m.theme.hintStyle().Render("No messages yet. Start the conversation!") + "\n")
	}
	for _, entry := range entries {
		var label string
		if entry.FromUser() {
			label = m.theme.userStyle().Render("You")
		} else {
			label = m.theme.assistantStyle().Render("Assistant")
		}
		b.WriteString(label + "  " + m.wrap(entry.Content))
		if entry.Pending != nil {
			b.WriteString(" " + m.theme.pendingStyle().Render("(sending...)"))
		}
		b.WriteString("\n")
	}

	if m.engine.Sending() {
		b.WriteString(m.theme.pendingStyle().Render("assistant is thinking...") + "\n")
	}
	if m.banner != "" {
		b.WriteString(m.theme.errorStyle().Render(m.banner) + "\n")
	}

	b.WriteString("\n" + m.input.View() + "\n")
	b.WriteString(m.theme.hintStyle().Render("enter to send · esc to quit") + "\n")
	return b.String()
}

// wrap re-flows message content to the terminal width.
func (m chatModel) wrap(s string) string {
	if m.width <= 12 {
		return s
	}
	return lipgloss.NewStyle().Width(m.width - 12).Render(s)
}

// Run runs the interactive chat UI until the user quits.
func Run(engine *conversation.Engine, token string) error {
	p := tea.NewProgram(newChatModel(engine, token))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("chat UI error: %w", err)
	}
	return nil
}
