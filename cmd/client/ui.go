package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/gorilla/websocket"

	"chatrelay/pkg/protocol"
)

type view int

const (
	viewLogin view = iota
	viewChat
)

// serverMsg wraps one decoded frame from the server.
type serverMsg struct {
	payload any
}

type connClosedMsg struct {
	err error
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("105"))
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	systemStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("244")).Italic(true)
	senderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("75"))
	selfStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("114"))
	panelStyle  = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)
)

type model struct {
	conn   *websocket.Conn
	server string
	view   view

	// Login view
	username    textinput.Model
	password    textinput.Model
	loginStatus string

	// Chat view
	user       string
	composer   textinput.Model
	transcript viewport.Model
	lines      []string
	users      []string

	width  int
	height int
	ready  bool
}

func newModel(conn *websocket.Conn, server string) model {
	username := textinput.New()
	username.Placeholder = "username"
	username.Focus()
	username.CharLimit = 32

	password := textinput.New()
	password.Placeholder = "password"
	password.EchoMode = textinput.EchoPassword
	password.CharLimit = 64

	composer := textinput.New()
	composer.Placeholder = "Type a message and press Enter"
	composer.CharLimit = 512

	return model{
		conn:     conn,
		server:   server,
		view:     viewLogin,
		username: username,
		password: password,
		composer: composer,
	}
}

func (m model) Init() tea.Cmd {
	return textinput.Blink
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.transcript = viewport.New(msg.Width-24, msg.Height-6)
		m.transcript.SetContent(strings.Join(m.lines, "\n"))
		m.transcript.GotoBottom()
		m.ready = true
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit
		}
		if m.view == viewLogin {
			return m.updateLogin(msg)
		}
		return m.updateChat(msg)

	case serverMsg:
		return m.handleServerMessage(msg.payload)

	case connClosedMsg:
		if m.view == viewChat {
			m.appendLine(systemStyle.Render("Connection to server lost."))
			return m, tea.Quit
		}
		m.loginStatus = errorStyle.Render("Connection closed by server.")
		return m, tea.Quit
	}

	return m, nil
}

func (m model) updateLogin(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "tab", "shift+tab":
		if m.username.Focused() {
			m.username.Blur()
			m.password.Focus()
		} else {
			m.password.Blur()
			m.username.Focus()
		}
		return m, nil

	case "enter":
		if m.username.Focused() {
			m.username.Blur()
			m.password.Focus()
			return m, nil
		}
		username := strings.TrimSpace(m.username.Value())
		password := m.password.Value()
		if username == "" || password == "" {
			m.loginStatus = errorStyle.Render("Enter both username and password.")
			return m, nil
		}
		m.loginStatus = labelStyle.Render("Logging in...")
		if err := m.conn.WriteJSON(protocol.Login{
			Type: protocol.TypeLogin, Username: username, Password: password,
		}); err != nil {
			m.loginStatus = errorStyle.Render("Send failed: " + err.Error())
		}
		return m, nil
	}

	var cmd tea.Cmd
	if m.username.Focused() {
		m.username, cmd = m.username.Update(msg)
	} else {
		m.password, cmd = m.password.Update(msg)
	}
	return m, cmd
}

func (m model) updateChat(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		text := strings.TrimSpace(m.composer.Value())
		if text == "" {
			return m, nil
		}
		if err := m.conn.WriteJSON(protocol.ChatMessage{
			Type: protocol.TypeChatMessage, Message: text,
		}); err != nil {
			m.appendLine(systemStyle.Render("Send failed: " + err.Error()))
			return m, nil
		}
		// The server never echoes a message back to its sender.
		now := time.Now().Format(protocol.TimestampFormat)
		m.appendLine(fmt.Sprintf("%s %s: %s",
			labelStyle.Render("["+now+"]"), selfStyle.Render(m.user), text))
		m.composer.Reset()
		return m, nil

	case "pgup", "pgdown", "up", "down":
		var cmd tea.Cmd
		m.transcript, cmd = m.transcript.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.composer, cmd = m.composer.Update(msg)
	return m, cmd
}

func (m model) handleServerMessage(payload any) (tea.Model, tea.Cmd) {
	switch msg := payload.(type) {
	case *protocol.AuthResponse:
		if !msg.Success {
			m.loginStatus = errorStyle.Render("Login failed: " + msg.Message)
			return m, nil
		}
		m.user = msg.Username
		m.view = viewChat
		m.composer.Focus()
		return m, nil

	case *protocol.ChatHistory:
		for _, entry := range msg.History {
			m.appendChat(entry)
		}
		return m, nil

	case *protocol.ChatMessage:
		m.appendChat(*msg)
		return m, nil

	case *protocol.Status:
		m.appendLine(systemStyle.Render(fmt.Sprintf("[%s] %s", msg.Timestamp, msg.Message)))
		return m, nil

	case *protocol.UserList:
		m.users = msg.Users
		return m, nil
	}
	return m, nil
}

func (m *model) appendChat(msg protocol.ChatMessage) {
	style := senderStyle
	if msg.Sender == m.user {
		style = selfStyle
	}
	m.appendLine(fmt.Sprintf("%s %s: %s",
		labelStyle.Render("["+msg.Timestamp+"]"), style.Render(msg.Sender), msg.Message))
}

func (m *model) appendLine(line string) {
	m.lines = append(m.lines, line)
	if m.ready {
		m.transcript.SetContent(strings.Join(m.lines, "\n"))
		m.transcript.GotoBottom()
	}
}

func (m model) View() string {
	if m.view == viewLogin {
		return m.loginView()
	}
	return m.chatView()
}

func (m model) loginView() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("chatrelay"))
	b.WriteString(labelStyle.Render("  " + m.server))
	b.WriteString("\n\n")
	b.WriteString(labelStyle.Render("Username") + "\n")
	b.WriteString(m.username.View() + "\n\n")
	b.WriteString(labelStyle.Render("Password") + "\n")
	b.WriteString(m.password.View() + "\n\n")
	if m.loginStatus != "" {
		b.WriteString(m.loginStatus + "\n\n")
	}
	b.WriteString(labelStyle.Render("enter: log in • tab: switch field • esc: quit"))
	return panelStyle.Render(b.String())
}

func (m model) chatView() string {
	if !m.ready {
		return "Connecting..."
	}

	online := titleStyle.Render("Online") + "\n"
	for _, u := range m.users {
		if u == m.user {
			online += selfStyle.Render(u) + "\n"
		} else {
			online += u + "\n"
		}
	}
	sidebar := panelStyle.Width(18).Height(m.height - 6).Render(online)

	transcript := panelStyle.Width(m.width - 22).Render(m.transcript.View())
	body := lipgloss.JoinHorizontal(lipgloss.Top, transcript, sidebar)

	return lipgloss.JoinVertical(lipgloss.Left,
		body,
		m.composer.View(),
		labelStyle.Render("enter: send • up/down: scroll • esc: quit"),
	)
}
