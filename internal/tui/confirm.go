// internal/tui/confirm.go
//
// A yes/no question rendered with bubbletea. The model follows the Elm
// architecture: key messages update the selection and Enter (or a direct
// y/n) resolves the answer and quits the program.

package tui

import (
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// ErrAborted is returned when the user leaves the prompt without answering.
var ErrAborted = errors.New("tui: prompt aborted")

type confirmKeyMap struct {
	Yes    key.Binding
	No     key.Binding
	Toggle key.Binding
	Submit key.Binding
	Abort  key.Binding
}

var confirmKeys = confirmKeyMap{
	Yes:    key.NewBinding(key.WithKeys("y", "Y"), key.WithHelp("y", "yes")),
	No:     key.NewBinding(key.WithKeys("n", "N"), key.WithHelp("n", "no")),
	Toggle: key.NewBinding(key.WithKeys("left", "right", "h", "l", "tab"), key.WithHelp("←/→", "switch")),
	Submit: key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "confirm")),
	Abort:  key.NewBinding(key.WithKeys("esc", "ctrl+c"), key.WithHelp("esc", "cancel")),
}

var (
	questionStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#F7B801"))
	activeStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#111111")).Background(lipgloss.Color("#5B8DEF")).Padding(0, 1)
	idleStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#AAAAAA")).Padding(0, 1)
	hintStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
)

// ConfirmModel asks a single yes/no question.
type ConfirmModel struct {
	question string
	choice   bool
	answered bool
	aborted  bool
}

// NewConfirm starts with def selected.
func NewConfirm(question string, def bool) ConfirmModel {
	return ConfirmModel{question: question, choice: def}
}

func (m ConfirmModel) Init() tea.Cmd {
	return nil
}

func (m ConfirmModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch {
	case key.Matches(keyMsg, confirmKeys.Yes):
		m.choice, m.answered = true, true
		return m, tea.Quit
	case key.Matches(keyMsg, confirmKeys.No):
		m.choice, m.answered = false, true
		return m, tea.Quit
	case key.Matches(keyMsg, confirmKeys.Toggle):
		m.choice = !m.choice
	case key.Matches(keyMsg, confirmKeys.Submit):
		m.answered = true
		return m, tea.Quit
	case key.Matches(keyMsg, confirmKeys.Abort):
		m.aborted = true
		return m, tea.Quit
	}
	return m, nil
}

func (m ConfirmModel) View() string {
	if m.answered || m.aborted {
		return ""
	}
	yes, no := idleStyle.Render("Yes"), idleStyle.Render("No")
	if m.choice {
		yes = activeStyle.Render("Yes")
	} else {
		no = activeStyle.Render("No")
	}
	hint := hintStyle.Render(fmt.Sprintf("%s · %s · %s",
		confirmKeys.Toggle.Help().Key+" "+confirmKeys.Toggle.Help().Desc,
		confirmKeys.Submit.Help().Key+" "+confirmKeys.Submit.Help().Desc,
		confirmKeys.Abort.Help().Key+" "+confirmKeys.Abort.Help().Desc))
	return lipgloss.JoinVertical(lipgloss.Left,
		questionStyle.Render(m.question),
		lipgloss.JoinHorizontal(lipgloss.Top, yes, " ", no),
		hint,
	) + "\n"
}

// Result reports the answer once the program has finished.
func (m ConfirmModel) Result() (bool, error) {
	if m.aborted || !m.answered {
		return false, ErrAborted
	}
	return m.choice, nil
}

// Confirm runs the question as a bubbletea program on in/out.
func Confirm(in io.Reader, out io.Writer, question string, def bool) (bool, error) {
	program := tea.NewProgram(NewConfirm(question, def), tea.WithInput(in), tea.WithOutput(out))
	final, err := program.Run()
	if err != nil {
		return false, fmt.Errorf("tui: run prompt: %w", err)
	}
	model, ok := final.(ConfirmModel)
	if !ok {
		return false, fmt.Errorf("tui: unexpected model %T", final)
	}
	return model.Result()
}
