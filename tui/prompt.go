package tui

import (
	"errors"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"jamsesh/theme"
)

// ErrPromptCancelled is returned when the user quits the name prompt.
var ErrPromptCancelled = errors.New("name prompt cancelled")

const maxNameLen = 32

type promptModel struct {
	input     textinput.Model
	theme     *theme.Theme
	name      string
	cancelled bool
}

func newPrompt(th *theme.Theme) promptModel {
	if th == nil {
		th = theme.New(nil)
	}
	in := textinput.New()
	in.Placeholder = "your name"
	in.CharLimit = maxNameLen
	in.Width = maxNameLen
	in.Focus()
	return promptModel{input: in, theme: th}
}

func (m promptModel) Init() tea.Cmd { return textinput.Blink }

func (m promptModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.cancelled = true
			return m, tea.Quit
		case tea.KeyEnter:
			if name := strings.TrimSpace(m.input.Value()); name != "" {
				m.name = name
				return m, tea.Quit
			}
			return m, nil
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m promptModel) View() string {
	if m.name != "" || m.cancelled {
		return ""
	}
	title := lipgloss.NewStyle().Foreground(m.theme.Accent()).Render("jamsesh")
	hint := lipgloss.NewStyle().Foreground(m.theme.Muted()).Render("enter to join, esc to quit")
	return "\n  " + title + "\n\n  " + m.input.View() + "\n\n  " + hint + "\n"
}

// AskName shows a one-line prompt and returns the trimmed name.
func AskName(th *theme.Theme, opts ...tea.ProgramOption) (string, error) {
	final, err := tea.NewProgram(newPrompt(th), opts...).Run()
	if err != nil {
		return "", err
	}
	m := final.(promptModel)
	if m.cancelled || m.name == "" {
		return "", ErrPromptCancelled
	}
	return m.name, nil
}
