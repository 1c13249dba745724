package ui

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"kgnchat/internal/models"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Styles for the UI
var (
	appStyle    = lipgloss.NewStyle().Padding(1, 2)
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7D56F4")).PaddingBottom(1)
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#5A5A5A")).PaddingTop(1)
	inputStyle  = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#A3A3A3")).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#7D56F4")).
			Padding(0, 1).
			MarginRight(2)
	msgStyle  = lipgloss.NewStyle().Padding(0, 1).Border(lipgloss.RoundedBorder(), false, false, false, true)
	outStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7D56F4"))
	timeStyle = lipgloss.NewStyle().Faint(true)
	inStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575"))
)

// lineMsg is a line received from the server
type lineMsg string

// disconnectedMsg reports that the server side of the session ended
type disconnectedMsg struct{ err error }

// chatModel is the session view shown after a successful handshake. It
// exchanges raw lines with the server and interprets none of them.
type chatModel struct {
	conn     net.Conn
	nickname string
	viewport viewport.Model
	textarea textarea.Model
	lines    []models.Line
	err      error
	ready    bool
	msgChan  chan tea.Msg
	width    int
}

// StartChatUI runs the session view on an established connection and
// closes it on exit.
func StartChatUI(conn net.Conn, nickname string) error {
	defer conn.Close()
	p := tea.NewProgram(initialModel(conn, nickname))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running program: %w", err)
	}
	return nil
}

// initialModel creates the initial model for the session view
func initialModel(conn net.Conn, nickname string) chatModel {
	ta := textarea.New()
	ta.Placeholder = "Type a line..."
	ta.Prompt = "│ "
	ta.Focus()
	ta.ShowLineNumbers = false

	// Custom key binding for sending lines
	ta.KeyMap.InsertNewline = key.NewBinding(
		key.WithKeys("ctrl+s", "enter"),
		key.WithHelp("Enter", "send line"),
	)

	ta.SetWidth(50)
	ta.SetHeight(2)
	ta.CharLimit = 280

	return chatModel{
		conn:     conn,
		nickname: nickname,
		textarea: ta,
		msgChan:  make(chan tea.Msg),
	}
}

// Init initializes the session view
func (m chatModel) Init() tea.Cmd {
	return tea.Batch(
		tea.EnterAltScreen,
		waitForLines(m.conn, m.msgChan),
		readLines(m.msgChan),
	)
}

// Update handles model updates
func (m chatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		tiCmd tea.Cmd
		vpCmd tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyEsc:
			return m, tea.Quit
		case key.Matches(msg, m.textarea.KeyMap.InsertNewline):
			return m.sendLine()
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		if !m.ready {
			m.viewport = viewport.New(msg.Width-6, msg.Height-7)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width - 6
			m.viewport.Height = msg.Height - 7
		}
		m.textarea.SetWidth(msg.Width - 6)
		m.viewport.SetContent(formatLines(m.lines, m.width))

	case lineMsg:
		m.appendLine(models.Line{Text: string(msg), Time: time.Now()})
		return m, readLines(m.msgChan)

	case disconnectedMsg:
		m.err = msg.err
		return m, nil
	}

	m.textarea, tiCmd = m.textarea.Update(msg)
	m.viewport, vpCmd = m.viewport.Update(msg)
	return m, tea.Batch(tiCmd, vpCmd)
}

// sendLine writes the typed line to the server
func (m chatModel) sendLine() (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(m.textarea.Value())
	if text == "" || m.err != nil {
		return m, nil
	}

	if _, err := io.WriteString(m.conn, text+"\n"); err != nil {
		m.err = err
		return m, nil
	}
	m.appendLine(models.Line{Text: text, Time: time.Now(), Outgoing: true})
	m.textarea.Reset()
	return m, nil
}

func (m *chatModel) appendLine(l models.Line) {
	m.lines = append(m.lines, l)
	if m.ready {
		m.viewport.SetContent(formatLines(m.lines, m.width))
		m.viewport.GotoBottom()
	}
}

// View renders the session view
func (m chatModel) View() string {
	if !m.ready {
		return "\n  Initializing..."
	}

	status := "Enter to send • Ctrl+C to quit • " + time.Now().Format("15:04")
	if m.err != nil {
		status = "Disconnected: " + m.err.Error() + " • Ctrl+C to quit"
	}

	title := titleStyle.Render("💬 KGN Chat - " + m.nickname + " @ " + m.conn.RemoteAddr().String())
	view := lipgloss.JoinVertical(
		lipgloss.Left,
		title,
		m.viewport.View(),
		lipgloss.NewStyle().PaddingTop(1).Render(inputStyle.Render(m.textarea.View())),
		statusStyle.Render(status),
	)

	return appStyle.Render(view)
}

// waitForLines reads lines from the server until the connection ends
func waitForLines(conn net.Conn, msgChan chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		scanner := bufio.NewScanner(conn)
		for scanner.Scan() {
			msgChan <- lineMsg(scanner.Text())
		}
		err := scanner.Err()
		if err == nil {
			err = io.EOF
		}
		msgChan <- disconnectedMsg{err: err}
		return nil
	}
}

// readLines reads one message from the channel
func readLines(msgChan chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		return <-msgChan
	}
}

// formatLines formats lines for display
func formatLines(lines []models.Line, width int) string {
	var formatted strings.Builder
	contentWidth := width - 20

	for _, l := range lines {
		marker := inStyle.Render("<")
		if l.Outgoing {
			marker = outStyle.Render(">")
		}
		stamp := timeStyle.Render(l.Time.Format("15:04"))
		content := msgStyle.Render(lipgloss.NewStyle().Width(contentWidth).Render(l.Text))

		line := lipgloss.JoinHorizontal(
			lipgloss.Top,
			lipgloss.NewStyle().Width(10).Render(marker+" "+stamp),
			content,
		)
		formatted.WriteString(line + "\n")
	}
	return formatted.String()
}
