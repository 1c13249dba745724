package ui

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"kgnchat/internal/client"
	"kgnchat/internal/utils"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const (
	msgConnectionFailed    = "Connection failed"
	msgConnectionFailedTip = "Check the address and port and try again"
	msgNickInUse           = "This nickname is already in use"
)

var (
	labelStyle  = lipgloss.NewStyle().Width(10).Foreground(lipgloss.Color("#A3A3A3"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5F87"))
	dialogStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#FF5F87")).
			Padding(0, 1)
)

type formState int

const (
	stateEditing formState = iota
	stateConnecting
	stateFailed
)

// form rows, top to bottom
var formFields = []utils.Field{utils.FieldNickname, utils.FieldAddress, utils.FieldPort}

var fieldLabels = map[utils.Field]string{
	utils.FieldNickname: "Nickname",
	utils.FieldAddress:  "Address",
	utils.FieldPort:     "Port",
}

type connectKeyMap struct {
	Next   key.Binding
	Prev   key.Binding
	Submit key.Binding
	Retry  key.Binding
	Back   key.Binding
	Quit   key.Binding
}

var connectKeys = connectKeyMap{
	Next:   key.NewBinding(key.WithKeys("tab", "down"), key.WithHelp("Tab", "next field")),
	Prev:   key.NewBinding(key.WithKeys("shift+tab", "up"), key.WithHelp("Shift+Tab", "previous field")),
	Submit: key.NewBinding(key.WithKeys("enter"), key.WithHelp("Enter", "connect")),
	Retry:  key.NewBinding(key.WithKeys("r", "enter"), key.WithHelp("R", "retry")),
	Back:   key.NewBinding(key.WithKeys("esc"), key.WithHelp("Esc", "cancel")),
	Quit:   key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("Ctrl+C", "quit")),
}

// outcomeMsg carries the outcome of one attempt back into the program
type outcomeMsg struct {
	handle  *client.Handle
	outcome client.Outcome
}

// connectModel is the connection form
type connectModel struct {
	establisher *client.Establisher
	timeout     time.Duration
	inputs      map[utils.Field]*textinput.Model
	focus       int
	errs        map[utils.Field]error
	state       formState
	spinner     spinner.Model
	handle      *client.Handle
	conn        net.Conn
	nickname    string
}

// RunConnectForm shows the connection form and returns the open connection
// and nickname once a handshake succeeds. conn is nil if the user quit.
func RunConnectForm(e *client.Establisher, details utils.ConnectionDetails, timeout time.Duration) (net.Conn, string, error) {
	p := tea.NewProgram(newConnectModel(e, details, timeout))
	final, err := p.Run()
	if err != nil {
		return nil, "", fmt.Errorf("error running program: %w", err)
	}
	m := final.(connectModel)
	return m.conn, m.nickname, nil
}

func newConnectModel(e *client.Establisher, details utils.ConnectionDetails, timeout time.Duration) connectModel {
	values := map[utils.Field]string{
		utils.FieldNickname: details.Nickname,
		utils.FieldAddress:  details.Address,
		utils.FieldPort:     details.Port,
	}

	inputs := make(map[utils.Field]*textinput.Model, len(formFields))
	for _, f := range formFields {
		ti := textinput.New()
		ti.Placeholder = fieldLabels[f]
		ti.Prompt = "│ "
		ti.CharLimit = 64
		ti.SetValue(values[f])
		inputs[f] = &ti
	}
	inputs[utils.FieldPort].CharLimit = 5
	inputs[formFields[0]].Focus()

	s := spinner.New()
	s.Spinner = spinner.Dot

	return connectModel{
		establisher: e,
		timeout:     timeout,
		inputs:      inputs,
		errs:        map[utils.Field]error{},
		spinner:     s,
	}
}

func (m connectModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m connectModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if key.Matches(msg, connectKeys.Quit) {
			if m.handle != nil {
				m.handle.Cancel()
			}
			return m, tea.Quit
		}
		switch m.state {
		case stateConnecting:
			if key.Matches(msg, connectKeys.Back) {
				return m.cancel(), nil
			}
			return m, nil
		case stateFailed:
			switch {
			case key.Matches(msg, connectKeys.Retry):
				return m.connect()
			case key.Matches(msg, connectKeys.Back):
				m.state = stateEditing
				return m, nil
			}
			return m, nil
		}

		switch {
		case key.Matches(msg, connectKeys.Submit):
			return m.connect()
		case key.Matches(msg, connectKeys.Next):
			cmd := m.focusIndex((m.focus + 1) % len(formFields))
			return m, cmd
		case key.Matches(msg, connectKeys.Prev):
			cmd := m.focusIndex((m.focus + len(formFields) - 1) % len(formFields))
			return m, cmd
		}

	case outcomeMsg:
		if msg.handle != m.handle {
			// Stale outcome from a cancelled attempt.
			if msg.outcome.Conn != nil {
				msg.outcome.Conn.Close()
			}
			return m, nil
		}
		return m.handleOutcome(msg.outcome)

	case spinner.TickMsg:
		if m.state != stateConnecting {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	if m.state != stateEditing {
		return m, nil
	}
	f := formFields[m.focus]
	var cmd tea.Cmd
	*m.inputs[f], cmd = m.inputs[f].Update(msg)
	return m, cmd
}

// connect validates the form and starts a handshake
func (m connectModel) connect() (tea.Model, tea.Cmd) {
	m.errs = map[utils.Field]error{}
	res := utils.ValidateDetails(m.details())
	if !res.Valid() {
		m.errs = res.Errors
		m.state = stateEditing
		cmd := m.focusField(res.FirstInvalid)
		return m, cmd
	}

	req := res.Request
	req.Timeout = m.timeout
	m.handle = m.establisher.Start(context.Background(), req)
	m.nickname = req.Nickname
	m.state = stateConnecting
	return m, tea.Batch(waitForOutcome(m.handle), m.spinner.Tick)
}

// cancel abandons the attempt in flight; its outcome is discarded
func (m connectModel) cancel() connectModel {
	m.handle.Cancel()
	m.handle = nil
	m.state = stateEditing
	return m
}

func (m connectModel) handleOutcome(o client.Outcome) (tea.Model, tea.Cmd) {
	m.handle = nil
	switch o.Kind {
	case client.Success:
		m.conn = o.Conn
		return m, tea.Quit
	case client.NickInUse:
		m.state = stateEditing
		m.errs = map[utils.Field]error{utils.FieldNickname: errors.New(msgNickInUse)}
		cmd := m.focusField(utils.FieldNickname)
		return m, cmd
	case client.NetworkFailure:
		m.state = stateFailed
		failed := errors.New(msgConnectionFailed)
		m.errs = map[utils.Field]error{utils.FieldAddress: failed, utils.FieldPort: failed}
		return m, nil
	}
	m.state = stateEditing
	return m, nil
}

func (m connectModel) details() utils.ConnectionDetails {
	return utils.ConnectionDetails{
		Nickname: m.inputs[utils.FieldNickname].Value(),
		Address:  m.inputs[utils.FieldAddress].Value(),
		Port:     m.inputs[utils.FieldPort].Value(),
	}
}

func (m *connectModel) focusField(f utils.Field) tea.Cmd {
	for i, ff := range formFields {
		if ff == f {
			return m.focusIndex(i)
		}
	}
	return nil
}

func (m *connectModel) focusIndex(i int) tea.Cmd {
	m.focus = i
	var cmd tea.Cmd
	for j, f := range formFields {
		if j == i {
			cmd = m.inputs[f].Focus()
		} else {
			m.inputs[f].Blur()
		}
	}
	return cmd
}

// waitForOutcome delivers the attempt's outcome to the program
func waitForOutcome(h *client.Handle) tea.Cmd {
	return func() tea.Msg {
		return outcomeMsg{handle: h, outcome: <-h.Done()}
	}
}

func (m connectModel) View() string {
	title := titleStyle.Render("💬 KGN Chat")

	if m.state == stateConnecting {
		return appStyle.Render(lipgloss.JoinVertical(
			lipgloss.Left,
			title,
			m.spinner.View()+" Connecting...",
			statusStyle.Render("Esc to cancel • Ctrl+C to quit"),
		))
	}

	var rows []string
	for _, f := range formFields {
		row := lipgloss.JoinHorizontal(lipgloss.Top, labelStyle.Render(fieldLabels[f]), m.inputs[f].View())
		rows = append(rows, row)
		if err, ok := m.errs[f]; ok {
			rows = append(rows, errorStyle.Render(strings.Repeat(" ", 10)+err.Error()))
		}
	}

	parts := []string{title, lipgloss.JoinVertical(lipgloss.Left, rows...)}
	if m.state == stateFailed {
		parts = append(parts, dialogStyle.Render(msgConnectionFailed+". "+msgConnectionFailedTip+".\n\nR to retry • Esc to close"))
	} else {
		parts = append(parts, statusStyle.Render("Enter to connect • Tab to switch field • Ctrl+C to quit"))
	}
	return appStyle.Render(lipgloss.JoinVertical(lipgloss.Left, parts...))
}
