package cmd

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

// initAnswers is what the init form collects.
type initAnswers struct {
	ServerName    string
	Host          string
	User          string
	Password      string
	WorkspaceName string
}

const (
	fieldServer = iota
	fieldHost
	fieldUser
	fieldPassword
	fieldWorkspace
)

type initModel struct {
	inputs   []textinput.Model
	focusIdx int
	canceled bool
	done     bool
}

func initialInitModel(workspaceArg string) initModel {
	cwd, _ := os.Getwd()
	defaultWorkspace := filepath.Base(cwd)

	server := textinput.New()
	server.Placeholder = "dev"
	server.Focus()
	server.CharLimit = 32
	server.Width = 20

	hostName := textinput.New()
	hostName.Placeholder = "(local system)"
	hostName.CharLimit = 253
	hostName.Width = 30

	user := textinput.New()
	user.Placeholder = "BUILDER"
	user.CharLimit = 10
	user.Width = 20

	password := textinput.New()
	password.EchoMode = textinput.EchoPassword
	password.EchoCharacter = '•'
	password.CharLimit = 128
	password.Width = 20

	workspace := textinput.New()
	if workspaceArg != "" {
		workspace.Placeholder = workspaceArg
	} else {
		workspace.Placeholder = defaultWorkspace
	}
	workspace.CharLimit = 64
	workspace.Width = 20

	return initModel{
		inputs: []textinput.Model{server, hostName, user, password, workspace},
	}
}

func (m initModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m initModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			m.canceled = true
			m.done = true
			return m, tea.Quit
		case "enter":
			m.done = true
			return m, tea.Quit
		case "tab", "shift+tab", "down", "up":
			if msg.String() == "up" || msg.String() == "shift+tab" {
				m.focusIdx--
			} else {
				m.focusIdx++
			}
			if m.focusIdx >= len(m.inputs) {
				m.focusIdx = 0
			} else if m.focusIdx < 0 {
				m.focusIdx = len(m.inputs) - 1
			}
			for i := range m.inputs {
				if i == m.focusIdx {
					m.inputs[i].Focus()
				} else {
					m.inputs[i].Blur()
				}
			}
			return m, nil
		}
	}

	cmds := make([]tea.Cmd, len(m.inputs))
	for i := range m.inputs {
		m.inputs[i], cmds[i] = m.inputs[i].Update(msg)
	}

	return m, tea.Batch(cmds...)
}

func (m initModel) View() string {
	var b strings.Builder
	b.WriteString("\n")
	labels := []string{"Server name", "Host", "User profile", "Password", "Workspace name"}

	for i, input := range m.inputs {
		b.WriteString(labels[i] + ": " + input.View() + "\n")
	}

	b.WriteString("\n[Enter] to continue • [Tab] next field • [Esc] to cancel\n")
	return b.String()
}

// answers applies the defaults shown as placeholders.
func (m initModel) answers() initAnswers {
	value := func(i int, def string) string {
		if v := strings.TrimSpace(m.inputs[i].Value()); v != "" {
			return v
		}
		return def
	}
	return initAnswers{
		ServerName:    value(fieldServer, "dev"),
		Host:          value(fieldHost, ""),
		User:          strings.ToUpper(value(fieldUser, "BUILDER")),
		Password:      m.inputs[fieldPassword].Value(),
		WorkspaceName: value(fieldWorkspace, "."),
	}
}

func RunInitTUI(workspaceArg string) (initAnswers, bool) {
	p := tea.NewProgram(initialInitModel(workspaceArg))
	m, err := p.Run()
	if err != nil {
		return initAnswers{}, true
	}

	final := m.(initModel)
	if final.canceled {
		return initAnswers{}, true
	}

	answers := final.answers()
	if answers.WorkspaceName == "." && workspaceArg != "" {
		answers.WorkspaceName = workspaceArg
	}
	return answers, false
}
